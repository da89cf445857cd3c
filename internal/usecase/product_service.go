package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"product-authenticity-service/internal/domain"
)

// ImagePublisher はクレデンシャル画像を外部の配信先に公開するインターフェース。
type ImagePublisher interface {
	Publish(ctx context.Context, productID string, png []byte) (string, error)
}

// Issuer はクレデンシャル発行のインターフェース。
type Issuer interface {
	Issue(ctx context.Context, fields domain.ProductFields) (*domain.Credential, error)
}

// ProductService は製品登録と管理のビジネスロジックを提供する。
type ProductService struct {
	repo      ProductRepository
	issuer    Issuer
	registry  Registry
	publisher ImagePublisher // nil の場合は公開しない
}

// NewProductService は新しいProductServiceを生成する。
func NewProductService(repo ProductRepository, issuer Issuer, registry Registry, publisher ImagePublisher) *ProductService {
	return &ProductService{
		repo:      repo,
		issuer:    issuer,
		registry:  registry,
		publisher: publisher,
	}
}

// RegisterProduct はクレデンシャルを発行し、レコードストアとレジストリの両方に書き込む。
// レジストリへの書き込みに失敗した場合は挿入済みのレコードを削除する。
func (s *ProductService) RegisterProduct(ctx context.Context, sellerID string, fields domain.ProductFields) (*domain.Registration, error) {
	if err := fields.Validate(); err != nil {
		return nil, err
	}
	if err := domain.ValidateSellerID(sellerID); err != nil {
		return nil, err
	}

	// 既存チェック
	exists, err := s.repo.ExistsByProductID(ctx, fields.ProductID)
	if err != nil {
		return nil, fmt.Errorf("checking existing product: %w", err)
	}
	if exists {
		return nil, domain.ErrProductAlreadyExists
	}

	credential, err := s.issuer.Issue(ctx, fields)
	if err != nil {
		return nil, fmt.Errorf("issuing credential: %w", err)
	}

	product := &domain.Product{
		SellerID:       sellerID,
		Fields:         fields,
		CryptoToken:    credential.Token.Ciphertext,
		TokenSignature: credential.Token.Signature,
		HiddenQRNonce:  credential.Token.Payload.Nonce,
		QRTimestamp:    credential.Token.Payload.Timestamp,
		QRVersion:      domain.QRVersionDualLayer,
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("saving product: %w", err)
	}

	receipt, err := s.registry.Write(ctx, fields)
	if err != nil {
		s.compensate(ctx, fields.ProductID)
		if errors.Is(err, domain.ErrProductAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrRegistryUnavailable, err)
	}

	s.publish(ctx, product, credential.QRImage)

	slog.InfoContext(ctx, "product registered",
		"product_id", fields.ProductID,
		"seller_id", sellerID,
		"transaction_ref", receipt.TransactionRef,
		"block_ref", receipt.BlockRef,
	)

	return &domain.Registration{
		Product:    product,
		Credential: credential,
		Receipt:    receipt,
	}, nil
}

// compensate はレジストリ書き込み失敗時に挿入済みのレコードを削除する。
func (s *ProductService) compensate(ctx context.Context, productID string) {
	if err := s.repo.DeleteByProductID(ctx, productID); err != nil {
		slog.ErrorContext(ctx, "failed to roll back product after registry failure",
			"operation", "register_product",
			"product_id", productID,
			"error", err,
		)
	}
}

// publish はクレデンシャル画像を公開し、URLをレコードに保存する。失敗は無視する。
func (s *ProductService) publish(ctx context.Context, product *domain.Product, png []byte) {
	if s.publisher == nil {
		return
	}
	url, err := s.publisher.Publish(ctx, product.Fields.ProductID, png)
	if err != nil {
		slog.WarnContext(ctx, "failed to publish credential image",
			"operation", "register_product",
			"product_id", product.Fields.ProductID,
			"error", err,
		)
		return
	}
	if err := s.repo.UpdateImageURL(ctx, product.Fields.ProductID, url); err != nil {
		slog.WarnContext(ctx, "failed to store credential image url",
			"operation", "register_product",
			"product_id", product.Fields.ProductID,
			"error", err,
		)
		return
	}
	product.QRImageURL = url
}

// GetProduct は製品を取得する。
func (s *ProductService) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	if err := domain.ValidateProductID(productID); err != nil {
		return nil, err
	}
	product, err := s.repo.FindByProductID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("fetching product: %w", err)
	}
	if product == nil {
		return nil, domain.ErrProductNotFound
	}
	return product, nil
}

// ListProducts は販売者の製品一覧を取得する。sellerID が空の場合は全件を返す。
func (s *ProductService) ListProducts(ctx context.Context, sellerID string) ([]*domain.Product, error) {
	products, err := s.repo.FindAllBySellerID(ctx, sellerID)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return products, nil
}

// DeleteProduct は製品レコードを削除する。レジストリの記録は追記専用のため残る。
func (s *ProductService) DeleteProduct(ctx context.Context, productID string) error {
	if err := domain.ValidateProductID(productID); err != nil {
		return err
	}
	exists, err := s.repo.ExistsByProductID(ctx, productID)
	if err != nil {
		return fmt.Errorf("checking product: %w", err)
	}
	if !exists {
		return domain.ErrProductNotFound
	}
	if err := s.repo.DeleteByProductID(ctx, productID); err != nil {
		return fmt.Errorf("deleting product: %w", err)
	}
	return nil
}
