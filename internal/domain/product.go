// Package domain はドメインモデルとビジネスルールを定義する。
package domain

import (
	"fmt"
	"regexp"
	"time"
	"unicode/utf8"
)

// QRVersionDualLayer は二層QRクレデンシャルの形式を表す。
const QRVersionDualLayer = "dual-layer"

// ProductFields は製品の識別情報を表す。
// クレデンシャル発行後は変更されない。フィールド順はシリアライズ順を兼ねる。
type ProductFields struct {
	ProductID  string `json:"productId"`
	Name       string `json:"name"`
	Brand      string `json:"brand"`
	BatchNo    string `json:"batchNo"`
	ExpiryDate string `json:"expiryDate"` // 文字列として比較する（日付としては解釈しない）
}

// Complete は全フィールドが設定されているかを返す。
func (f ProductFields) Complete() bool {
	return f.ProductID != "" && f.Name != "" && f.Brand != "" && f.BatchNo != "" && f.ExpiryDate != ""
}

var productIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// ValidateProductID は製品IDの形式を検証する。
func ValidateProductID(productID string) error {
	if !productIDPattern.MatchString(productID) {
		return ErrInvalidProductID
	}
	return nil
}

// 各フィールドの最大文字数。products テーブルのカラム定義に合わせる。
const (
	MaxTextFieldLength  = 255
	MaxExpiryDateLength = 64
)

// Validate は製品情報の入力を検証する。
func (f ProductFields) Validate() error {
	if !f.Complete() {
		return ErrInvalidProductFields
	}
	if err := ValidateProductID(f.ProductID); err != nil {
		return err
	}
	limits := []struct {
		name  string
		value string
		max   int
	}{
		{"name", f.Name, MaxTextFieldLength},
		{"brand", f.Brand, MaxTextFieldLength},
		{"batchNo", f.BatchNo, MaxTextFieldLength},
		{"expiryDate", f.ExpiryDate, MaxExpiryDateLength},
	}
	for _, l := range limits {
		if utf8.RuneCountInString(l.value) > l.max {
			return fmt.Errorf("%w: %s exceeds %d characters", ErrInvalidProductFields, l.name, l.max)
		}
	}
	return nil
}

// ValidateSellerID は出品者IDを検証する。
func ValidateSellerID(sellerID string) error {
	if sellerID == "" {
		return fmt.Errorf("%w: seller id", ErrInvalidProductFields)
	}
	if utf8.RuneCountInString(sellerID) > MaxTextFieldLength {
		return fmt.Errorf("%w: seller id exceeds %d characters", ErrInvalidProductFields, MaxTextFieldLength)
	}
	return nil
}

// Product は保存済みの製品レコードを表す。
type Product struct {
	ID                   string
	SellerID             string
	Fields               ProductFields
	CryptoToken          string
	TokenSignature       string
	HiddenQRNonce        string
	QRTimestamp          int64
	QRVersion            string
	QRImageURL           string
	VerificationCount    uint
	LastVerifiedAt       *time.Time
	IsVerifiedBothLayers bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Registration は製品登録の結果を表す。
type Registration struct {
	Product    *Product
	Credential *Credential
	Receipt    *RegistryReceipt
}
