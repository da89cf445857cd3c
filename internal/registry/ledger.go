// Package registry はレジストリ（製品情報の追記専用の記録先）のアダプタを提供する。
package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"product-authenticity-service/internal/domain"
)

// ErrChainCorrupted は保存済みブロックのハッシュが一致しない場合のエラー。
var ErrChainCorrupted = errors.New("registry: ledger chain corrupted")

var genesisPreviousHash = strings.Repeat("0", sha256.Size*2)

// BlockModel はregistry_blocksテーブルのモデル。
// ジェネシスブロックのみ ProductID が nil。
type BlockModel struct {
	Index        uint64  `gorm:"column:block_index;primaryKey;autoIncrement:false"`
	ProductID    *string `gorm:"column:product_id;type:varchar(64);uniqueIndex"`
	Name         string  `gorm:"column:name;type:varchar(255);not null"`
	Brand        string  `gorm:"column:brand;type:varchar(255);not null"`
	BatchNo      string  `gorm:"column:batch_no;type:varchar(255);not null"`
	ExpiryDate   string  `gorm:"column:expiry_date;type:varchar(64);not null"`
	Seller       string  `gorm:"column:seller;type:varchar(255);not null"`
	TimestampMs  int64   `gorm:"column:timestamp_ms;not null"`
	PreviousHash string  `gorm:"column:previous_hash;type:varchar(64);not null"`
	Hash         string  `gorm:"column:hash;type:varchar(64);not null"`
}

// TableName はテーブル名を返す。
func (BlockModel) TableName() string {
	return "registry_blocks"
}

// computeHash はハッシュ列以外の全列からブロックハッシュを計算する。
func (b *BlockModel) computeHash() string {
	productID := ""
	if b.ProductID != nil {
		productID = *b.ProductID
	}
	// フィールド順は固定
	payload, _ := json.Marshal(struct {
		Index        uint64 `json:"index"`
		ProductID    string `json:"productId"`
		Name         string `json:"name"`
		Brand        string `json:"brand"`
		BatchNo      string `json:"batchNo"`
		ExpiryDate   string `json:"expiryDate"`
		Seller       string `json:"seller"`
		Timestamp    int64  `json:"timestamp"`
		PreviousHash string `json:"previousHash"`
	}{b.Index, productID, b.Name, b.Brand, b.BatchNo, b.ExpiryDate, b.Seller, b.TimestampMs, b.PreviousHash})
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func (b *BlockModel) toRecord() *domain.RegistryRecord {
	record := &domain.RegistryRecord{
		Found:      true,
		Name:       b.Name,
		Brand:      b.Brand,
		BatchNo:    b.BatchNo,
		ExpiryDate: b.ExpiryDate,
		Seller:     b.Seller,
	}
	if b.ProductID != nil {
		record.ProductID = *b.ProductID
	}
	return record
}

// Ledger はデータベース上のハッシュチェーンとして実装したローカルレジストリ。
// 書き込みはプロセス内で直列化される。
type Ledger struct {
	db     *gorm.DB
	signer string
	now    func() time.Time
	mu     sync.Mutex
}

// NewLedger は新しいLedgerを生成する。signer は書き込んだブロックの販売者欄に記録される。
func NewLedger(db *gorm.DB, signer string) *Ledger {
	return &Ledger{
		db:     db,
		signer: signer,
		now:    time.Now,
	}
}

// Write は製品情報を新しいブロックとしてチェーンの末尾に追加する。
func (l *Ledger) Write(ctx context.Context, fields domain.ProductFields) (*domain.RegistryReceipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var block BlockModel
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&BlockModel{}).Where("product_id = ?", fields.ProductID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: %s is already on the ledger", domain.ErrProductAlreadyExists, fields.ProductID)
		}

		tip, err := l.tip(tx)
		if err != nil {
			return err
		}

		productID := fields.ProductID
		block = BlockModel{
			Index:        tip.Index + 1,
			ProductID:    &productID,
			Name:         fields.Name,
			Brand:        fields.Brand,
			BatchNo:      fields.BatchNo,
			ExpiryDate:   fields.ExpiryDate,
			Seller:       l.signer,
			TimestampMs:  l.now().UnixMilli(),
			PreviousHash: tip.Hash,
		}
		block.Hash = block.computeHash()
		return tx.Create(&block).Error
	})
	if err != nil {
		if !errors.Is(err, domain.ErrProductAlreadyExists) {
			slog.ErrorContext(ctx, "failed to append ledger block",
				"operation", "ledger_write",
				"product_id", fields.ProductID,
				"error", err,
			)
		}
		return nil, err
	}

	return &domain.RegistryReceipt{
		TransactionRef: block.Hash,
		BlockRef:       block.Index,
	}, nil
}

// tip は末尾のブロックを返す。チェーンが空ならジェネシスブロックを作成する。
func (l *Ledger) tip(tx *gorm.DB) (*BlockModel, error) {
	var last BlockModel
	err := tx.Order("block_index DESC").First(&last).Error
	if err == nil {
		return &last, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	genesis := BlockModel{
		Index:        0,
		PreviousHash: genesisPreviousHash,
	}
	genesis.Hash = genesis.computeHash()
	if err := tx.Create(&genesis).Error; err != nil {
		return nil, fmt.Errorf("creating genesis block: %w", err)
	}
	return &genesis, nil
}

// Read は製品IDに対応するブロックを返す。存在しない場合は Found=false。
// 保存済みのハッシュが内容と一致しない場合は ErrChainCorrupted を返す。
func (l *Ledger) Read(ctx context.Context, productID string) (*domain.RegistryRecord, error) {
	var block BlockModel
	err := l.db.WithContext(ctx).Where("product_id = ?", productID).First(&block).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &domain.RegistryRecord{Found: false}, nil
		}
		slog.ErrorContext(ctx, "failed to read ledger block",
			"operation", "ledger_read",
			"product_id", productID,
			"error", err,
		)
		return nil, err
	}

	if block.computeHash() != block.Hash {
		slog.ErrorContext(ctx, "ledger block hash mismatch",
			"operation", "ledger_read",
			"product_id", productID,
			"block_index", block.Index,
		)
		return nil, fmt.Errorf("%w: block %d", ErrChainCorrupted, block.Index)
	}
	return block.toRecord(), nil
}

// VerifyChain はチェーン全体のハッシュと連結を検証し、検証したブロック数を返す。
func (l *Ledger) VerifyChain(ctx context.Context) (int, error) {
	var blocks []BlockModel
	if err := l.db.WithContext(ctx).Order("block_index ASC").Find(&blocks).Error; err != nil {
		return 0, err
	}

	prevHash := genesisPreviousHash
	for i := range blocks {
		b := &blocks[i]
		if b.Index != uint64(i) {
			return i, fmt.Errorf("%w: missing block %d", ErrChainCorrupted, i)
		}
		if b.PreviousHash != prevHash {
			return i, fmt.Errorf("%w: block %d does not link to its predecessor", ErrChainCorrupted, b.Index)
		}
		if b.computeHash() != b.Hash {
			return i, fmt.Errorf("%w: block %d hash mismatch", ErrChainCorrupted, b.Index)
		}
		prevHash = b.Hash
	}
	return len(blocks), nil
}
