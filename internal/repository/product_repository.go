// Package repository はデータアクセス層の実装を提供する。
package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"product-authenticity-service/internal/domain"
)

// ProductModel はgorm用のモデル定義。
type ProductModel struct {
	ID                   string     `gorm:"column:id;type:varchar(36);primaryKey"`
	ProductID            string     `gorm:"column:product_id;type:varchar(64);not null;uniqueIndex"`
	SellerID             string     `gorm:"column:seller_id;type:varchar(255);not null;index:idx_products_seller_id"`
	Name                 string     `gorm:"column:name;type:varchar(255);not null"`
	Brand                string     `gorm:"column:brand;type:varchar(255);not null"`
	BatchNo              string     `gorm:"column:batch_no;type:varchar(255);not null"`
	ExpiryDate           string     `gorm:"column:expiry_date;type:varchar(64);not null"`
	CryptoToken          string     `gorm:"column:crypto_token;type:text;not null"`
	TokenSignature       string     `gorm:"column:token_signature;type:varchar(64);not null"`
	HiddenQRNonce        string     `gorm:"column:hidden_qr_nonce;type:varchar(32);not null"`
	QRTimestamp          int64      `gorm:"column:qr_timestamp;not null"`
	QRVersion            string     `gorm:"column:qr_version;type:varchar(32);not null"`
	QRImageURL           string     `gorm:"column:qr_image_url;type:varchar(512);not null"`
	VerificationCount    uint       `gorm:"column:verification_count;not null;default:0"`
	LastVerifiedAt       *time.Time `gorm:"column:last_verified_at"`
	IsVerifiedBothLayers bool       `gorm:"column:is_verified_both_layers;not null;default:false"`
	CreatedAt            time.Time  `gorm:"column:created_at;not null;autoCreateTime"`
	UpdatedAt            time.Time  `gorm:"column:updated_at;not null;autoUpdateTime"`
}

// TableName はテーブル名を返す。
func (ProductModel) TableName() string {
	return "products"
}

// BeforeCreate はレコード作成前にUUIDを生成する。
func (m *ProductModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}

// toDomain はモデルをドメインエンティティに変換する。
func (m *ProductModel) toDomain() *domain.Product {
	return &domain.Product{
		ID:       m.ID,
		SellerID: m.SellerID,
		Fields: domain.ProductFields{
			ProductID:  m.ProductID,
			Name:       m.Name,
			Brand:      m.Brand,
			BatchNo:    m.BatchNo,
			ExpiryDate: m.ExpiryDate,
		},
		CryptoToken:          m.CryptoToken,
		TokenSignature:       m.TokenSignature,
		HiddenQRNonce:        m.HiddenQRNonce,
		QRTimestamp:          m.QRTimestamp,
		QRVersion:            m.QRVersion,
		QRImageURL:           m.QRImageURL,
		VerificationCount:    m.VerificationCount,
		LastVerifiedAt:       m.LastVerifiedAt,
		IsVerifiedBothLayers: m.IsVerifiedBothLayers,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}
}

// ProductRepository は製品レコードへのデータアクセスを提供する。
type ProductRepository struct {
	db *gorm.DB
}

// NewProductRepository は新しいProductRepositoryを生成する。
func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// FindByProductID は製品IDで製品を取得する。存在しない場合は nil, nil を返す。
func (r *ProductRepository) FindByProductID(ctx context.Context, productID string) (*domain.Product, error) {
	var model ProductModel
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.ErrorContext(ctx, "failed to find product",
			"operation", "find_by_product_id",
			"product_id", productID,
			"error", err,
		)
		return nil, err
	}
	return model.toDomain(), nil
}

// ExistsByProductID は製品が存在するか確認する。
func (r *ProductRepository) ExistsByProductID(ctx context.Context, productID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&ProductModel{}).
		Where("product_id = ?", productID).
		Count(&count).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to count products",
			"operation", "exists_by_product_id",
			"product_id", productID,
			"error", err,
		)
		return false, err
	}
	return count > 0, nil
}

// FindAllBySellerID は販売者の製品を新しい順に取得する。sellerID が空の場合は全件。
func (r *ProductRepository) FindAllBySellerID(ctx context.Context, sellerID string) ([]*domain.Product, error) {
	query := r.db.WithContext(ctx).Order("created_at DESC").Order("product_id ASC")
	if sellerID != "" {
		query = query.Where("seller_id = ?", sellerID)
	}

	var models []ProductModel
	if err := query.Find(&models).Error; err != nil {
		slog.ErrorContext(ctx, "failed to find products",
			"operation", "find_all_by_seller_id",
			"seller_id", sellerID,
			"error", err,
		)
		return nil, err
	}

	products := make([]*domain.Product, len(models))
	for i := range models {
		products[i] = models[i].toDomain()
	}
	return products, nil
}

// Create は新しい製品レコードを保存する。
func (r *ProductRepository) Create(ctx context.Context, product *domain.Product) error {
	model := &ProductModel{
		ID:                   product.ID,
		ProductID:            product.Fields.ProductID,
		SellerID:             product.SellerID,
		Name:                 product.Fields.Name,
		Brand:                product.Fields.Brand,
		BatchNo:              product.Fields.BatchNo,
		ExpiryDate:           product.Fields.ExpiryDate,
		CryptoToken:          product.CryptoToken,
		TokenSignature:       product.TokenSignature,
		HiddenQRNonce:        product.HiddenQRNonce,
		QRTimestamp:          product.QRTimestamp,
		QRVersion:            product.QRVersion,
		QRImageURL:           product.QRImageURL,
		IsVerifiedBothLayers: product.IsVerifiedBothLayers,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrProductAlreadyExists
		}
		slog.ErrorContext(ctx, "failed to create product",
			"operation", "create",
			"product_id", product.Fields.ProductID,
			"error", err,
		)
		return err
	}
	// gormで設定された値をドメインエンティティに反映
	product.ID = model.ID
	product.CreatedAt = model.CreatedAt
	product.UpdatedAt = model.UpdatedAt
	return nil
}

// DeleteByProductID は製品レコードを削除する。
func (r *ProductRepository) DeleteByProductID(ctx context.Context, productID string) error {
	result := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Delete(&ProductModel{})
	if result.Error != nil {
		slog.ErrorContext(ctx, "failed to delete product",
			"operation", "delete_by_product_id",
			"product_id", productID,
			"error", result.Error,
		)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

// UpdateImageURL は公開済みクレデンシャル画像のURLを保存する。
func (r *ProductRepository) UpdateImageURL(ctx context.Context, productID, url string) error {
	result := r.db.WithContext(ctx).
		Model(&ProductModel{}).
		Where("product_id = ?", productID).
		Update("qr_image_url", url)
	if result.Error != nil {
		slog.ErrorContext(ctx, "failed to update image url",
			"operation", "update_image_url",
			"product_id", productID,
			"error", result.Error,
		)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

// RecordVerification は検証回数を1増やし、最終検証日時と二層検証フラグを更新する。
// 製品情報のフィールドは変更しない。
func (r *ProductRepository) RecordVerification(ctx context.Context, productID string, bothLayers bool, verifiedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&ProductModel{}).
		Where("product_id = ?", productID).
		Updates(map[string]any{
			"verification_count":      gorm.Expr("verification_count + ?", 1),
			"last_verified_at":        verifiedAt,
			"is_verified_both_layers": bothLayers,
		})
	if result.Error != nil {
		slog.ErrorContext(ctx, "failed to record verification",
			"operation", "record_verification",
			"product_id", productID,
			"error", result.Error,
		)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}
