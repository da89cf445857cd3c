package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"product-authenticity-service/internal/domain"
)

// VerificationLogModel はgorm用のモデル定義。
type VerificationLogModel struct {
	ID                  string    `gorm:"column:id;type:varchar(36);primaryKey"`
	ProductID           string    `gorm:"column:product_id;type:varchar(64);not null;index:idx_qr_verification_logs_product_id"`
	VisibleLayerMatched bool      `gorm:"column:visible_layer_matched;not null"`
	HiddenLayerMatched  bool      `gorm:"column:hidden_layer_matched;not null"`
	TokenSignatureValid bool      `gorm:"column:token_signature_valid;not null"`
	Method              string    `gorm:"column:verification_method;type:varchar(32);not null"`
	Outcome             string    `gorm:"column:outcome;type:varchar(64);not null"`
	Reason              string    `gorm:"column:reason;type:varchar(255);not null"`
	CreatedAt           time.Time `gorm:"column:created_at;not null"`
}

// TableName はテーブル名を返す。
func (VerificationLogModel) TableName() string {
	return "qr_verification_logs"
}

// BeforeCreate はレコード作成前にUUIDを生成する。
func (m *VerificationLogModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	return nil
}

func (m *VerificationLogModel) toDomain() *domain.VerificationLogEntry {
	return &domain.VerificationLogEntry{
		ID:                  m.ID,
		ProductID:           m.ProductID,
		VisibleLayerMatched: m.VisibleLayerMatched,
		HiddenLayerMatched:  m.HiddenLayerMatched,
		TokenSignatureValid: m.TokenSignatureValid,
		Method:              domain.VerificationMethod(m.Method),
		Outcome:             domain.Outcome(m.Outcome),
		Reason:              m.Reason,
		CreatedAt:           m.CreatedAt,
	}
}

// VerificationLogRepository は検証ログへの追記と参照を提供する。更新・削除は提供しない。
type VerificationLogRepository struct {
	db *gorm.DB
}

// NewVerificationLogRepository は新しいVerificationLogRepositoryを生成する。
func NewVerificationLogRepository(db *gorm.DB) *VerificationLogRepository {
	return &VerificationLogRepository{db: db}
}

// Append は検証ログを1件追記する。
func (r *VerificationLogRepository) Append(ctx context.Context, entry *domain.VerificationLogEntry) error {
	model := &VerificationLogModel{
		ID:                  entry.ID,
		ProductID:           entry.ProductID,
		VisibleLayerMatched: entry.VisibleLayerMatched,
		HiddenLayerMatched:  entry.HiddenLayerMatched,
		TokenSignatureValid: entry.TokenSignatureValid,
		Method:              string(entry.Method),
		Outcome:             string(entry.Outcome),
		Reason:              entry.Reason,
		CreatedAt:           entry.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		slog.ErrorContext(ctx, "failed to append verification log",
			"operation", "append",
			"product_id", entry.ProductID,
			"error", err,
		)
		return err
	}
	entry.ID = model.ID
	entry.CreatedAt = model.CreatedAt
	return nil
}

// FindByProductID は製品の検証ログを新しい順に取得する。
func (r *VerificationLogRepository) FindByProductID(ctx context.Context, productID string) ([]*domain.VerificationLogEntry, error) {
	var models []VerificationLogModel
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at DESC").
		Find(&models).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to find verification logs",
			"operation", "find_by_product_id",
			"product_id", productID,
			"error", err,
		)
		return nil, err
	}

	entries := make([]*domain.VerificationLogEntry, len(models))
	for i := range models {
		entries[i] = models[i].toDomain()
	}
	return entries, nil
}
