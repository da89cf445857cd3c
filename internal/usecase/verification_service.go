package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"product-authenticity-service/internal/domain"
)

// ProductRepository は製品レコードへのデータアクセスのインターフェース。
// FindByProductID は存在しない場合 nil, nil を返す。
type ProductRepository interface {
	FindByProductID(ctx context.Context, productID string) (*domain.Product, error)
	ExistsByProductID(ctx context.Context, productID string) (bool, error)
	FindAllBySellerID(ctx context.Context, sellerID string) ([]*domain.Product, error)
	Create(ctx context.Context, product *domain.Product) error
	DeleteByProductID(ctx context.Context, productID string) error
	UpdateImageURL(ctx context.Context, productID, url string) error
	RecordVerification(ctx context.Context, productID string, bothLayers bool, verifiedAt time.Time) error
}

// VerificationLogRepository は検証ログへの追記専用データアクセスのインターフェース。
type VerificationLogRepository interface {
	Append(ctx context.Context, entry *domain.VerificationLogEntry) error
	FindByProductID(ctx context.Context, productID string) ([]*domain.VerificationLogEntry, error)
}

// Registry は製品情報の外部レジストリのインターフェース。
// 記録が存在しない場合は Found=false を返し、エラーにはしない。
type Registry interface {
	Write(ctx context.Context, fields domain.ProductFields) (*domain.RegistryReceipt, error)
	Read(ctx context.Context, productID string) (*domain.RegistryRecord, error)
}

const reasonCiphertextMismatch = "token does not match credential on file"

// VerificationService は保存済みレコード、レジストリ、隠しレイヤーのトークンを
// 突き合わせて真贋を判定する。
type VerificationService struct {
	products ProductRepository
	logs     VerificationLogRepository
	registry Registry
	tokens   TokenCodec
	now      func() time.Time
}

// NewVerificationService は新しいVerificationServiceを生成する。
func NewVerificationService(products ProductRepository, logs VerificationLogRepository, registry Registry, tokens TokenCodec) *VerificationService {
	return &VerificationService{
		products: products,
		logs:     logs,
		registry: registry,
		tokens:   tokens,
		now:      time.Now,
	}
}

// Verify は1回の検証リクエストに対する判定結果を返す。
// 製品やレジストリ記録が存在しない場合も結果として返し、エラーにはしない。
// エラーを返すのはレコードストアまたはレジストリの読み出しに失敗した場合のみ。
func (s *VerificationService) Verify(ctx context.Context, req domain.VerificationRequest) (*domain.VerificationResult, error) {
	if err := domain.ValidateProductID(req.ProductID); err != nil {
		return nil, err
	}

	product, err := s.products.FindByProductID(ctx, req.ProductID)
	if err != nil {
		return nil, fmt.Errorf("fetching product: %w", err)
	}
	if product == nil {
		result := newResult(domain.OutcomeNotFound)
		s.appendLog(ctx, req, result)
		return result, nil
	}

	record, err := s.registry.Read(ctx, req.ProductID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRegistryUnavailable, err)
	}

	result := newResult(domain.OutcomeFakeNotOnChain)
	result.Product = product
	result.QRFormat = product.QRVersion
	result.Registry = record
	if !record.Found {
		s.appendLog(ctx, req, result)
		return result, nil
	}

	basicMatch := basicDataMatches(product.Fields, record.Fields())

	hiddenVerified := false
	if req.HasHiddenLayer() && product.CryptoToken != "" {
		tv := s.tokens.Verify(req.HiddenLayerToken, req.HiddenLayerSignature, product.Fields)
		result.CryptoTokenValid = tv.Valid
		result.TokenReason = tv.Reason
		hiddenVerified = tv.Valid && req.HiddenLayerToken == product.CryptoToken
		if tv.Valid && !hiddenVerified {
			result.TokenReason = reasonCiphertextMismatch
		}
	}

	var outcome domain.Outcome
	switch {
	case basicMatch && hiddenVerified:
		outcome = domain.OutcomeGenuineBothLayers
	case basicMatch && product.QRVersion == domain.QRVersionDualLayer:
		outcome = domain.OutcomeSuspiciousHiddenLayerMissing
	case basicMatch:
		outcome = domain.OutcomeVerifiedVisibleOnly
	default:
		outcome = domain.OutcomeFakeDataMismatch
	}
	result.Outcome = outcome
	result.SecurityLevel = outcome.SecurityLevel()
	result.VisibleLayer = basicMatch
	result.HiddenLayer = hiddenVerified
	result.BothLayersVerified = basicMatch && hiddenVerified

	s.appendLog(ctx, req, result)
	if basicMatch {
		s.recordVerification(ctx, req.ProductID, result.BothLayersVerified)
	}

	return result, nil
}

// ListVerifications は製品の検証ログを新しい順に返す。
func (s *VerificationService) ListVerifications(ctx context.Context, productID string) ([]*domain.VerificationLogEntry, error) {
	exists, err := s.products.ExistsByProductID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("checking product: %w", err)
	}
	if !exists {
		return nil, domain.ErrProductNotFound
	}
	entries, err := s.logs.FindByProductID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("fetching verification logs: %w", err)
	}
	return entries, nil
}

func newResult(outcome domain.Outcome) *domain.VerificationResult {
	return &domain.VerificationResult{
		Outcome:       outcome,
		SecurityLevel: outcome.SecurityLevel(),
	}
}

// basicDataMatches は製品IDを除く4項目を完全一致で比較する。
func basicDataMatches(stored, registered domain.ProductFields) bool {
	m := domain.CompareFields(stored, registered)
	return m.Name && m.Brand && m.BatchNo && m.ExpiryDate
}

// appendLog は検証ログを追記する。失敗しても判定結果には影響させない。
func (s *VerificationService) appendLog(ctx context.Context, req domain.VerificationRequest, result *domain.VerificationResult) {
	method := domain.VerificationMethodManualID
	if req.HasHiddenLayer() {
		method = domain.VerificationMethodHiddenDetection
	}
	reason := result.TokenReason
	if reason == "" {
		reason = result.Outcome.Authenticity()
	}

	entry := &domain.VerificationLogEntry{
		ProductID:           req.ProductID,
		VisibleLayerMatched: result.VisibleLayer,
		HiddenLayerMatched:  result.HiddenLayer,
		TokenSignatureValid: result.CryptoTokenValid,
		Method:              method,
		Outcome:             result.Outcome,
		Reason:              reason,
		CreatedAt:           s.now(),
	}
	if err := s.logs.Append(ctx, entry); err != nil {
		slog.WarnContext(ctx, "failed to append verification log",
			"operation", "verify_product",
			"product_id", req.ProductID,
			"error", err,
		)
	}
}

// recordVerification は検証回数を更新する。失敗しても判定結果には影響させない。
func (s *VerificationService) recordVerification(ctx context.Context, productID string, bothLayers bool) {
	if err := s.products.RecordVerification(ctx, productID, bothLayers, s.now()); err != nil {
		slog.WarnContext(ctx, "failed to record verification",
			"operation", "verify_product",
			"product_id", productID,
			"error", err,
		)
	}
}
