package domain

import "encoding/base64"

// TokenPayload は暗号トークンに封入されるペイロード。
// 発行ごとに新しく生成され、再利用されない。
type TokenPayload struct {
	ProductID  string `json:"productId"`
	Name       string `json:"name"`
	Brand      string `json:"brand"`
	BatchNo    string `json:"batchNo"`
	ExpiryDate string `json:"expiryDate"`
	Timestamp  int64  `json:"timestamp"` // ミリ秒
	Nonce      string `json:"nonce"`     // 16バイト乱数の16進表現
}

// Fields はペイロードに含まれる製品情報を返す。
func (p TokenPayload) Fields() ProductFields {
	return ProductFields{
		ProductID:  p.ProductID,
		Name:       p.Name,
		Brand:      p.Brand,
		BatchNo:    p.BatchNo,
		ExpiryDate: p.ExpiryDate,
	}
}

// CryptoToken は製品情報に束縛された暗号トークンを表す。
// Signature は平文ではなく Ciphertext に対するMAC。
type CryptoToken struct {
	Ciphertext    string
	IntegrityHash string
	Signature     string
	Payload       TokenPayload
}

// SecretLayerData は隠しレイヤーに符号化されるデータ。
type SecretLayerData struct {
	Ciphertext string `json:"ciphertext"`
	Signature  string `json:"signature"`
	ProductID  string `json:"productId"`
	Timestamp  int64  `json:"timestamp"`
}

// Credential は発行済みの二層QRクレデンシャルを表す。
type Credential struct {
	VisibleLayerData string
	SecretLayerData  string
	QRImage          []byte // PNG
	Format           string
	MIMEType         string
	Token            *CryptoToken
}

// DataURI は画像をdata URI形式で返す。
func (c *Credential) DataURI() string {
	return "data:" + c.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(c.QRImage)
}

// TokenFailure はトークン検証失敗の種別を表す。
type TokenFailure string

const (
	// TokenFailureNone は検証成功を表す。
	TokenFailureNone TokenFailure = ""
	// TokenFailureSignatureMismatch は署名不一致（改ざんまたは鍵違い）を表す。
	TokenFailureSignatureMismatch TokenFailure = "signature_mismatch"
	// TokenFailureCorrupt は復号できないトークンを表す。
	TokenFailureCorrupt TokenFailure = "corrupt_token"
	// TokenFailureFieldMismatch は製品情報の不一致を表す。
	TokenFailureFieldMismatch TokenFailure = "field_mismatch"
)

// Reason は失敗種別に対応する説明文を返す。
func (f TokenFailure) Reason() string {
	switch f {
	case TokenFailureSignatureMismatch:
		return "signature mismatch: tampered or wrong key"
	case TokenFailureCorrupt:
		return "corrupt token"
	case TokenFailureFieldMismatch:
		return "token data mismatch"
	default:
		return "token verified"
	}
}

// FieldMatches はフィールドごとの一致結果を表す。
type FieldMatches struct {
	ProductID  bool `json:"productId"`
	Name       bool `json:"name"`
	Brand      bool `json:"brand"`
	BatchNo    bool `json:"batchNo"`
	ExpiryDate bool `json:"expiryDate"`
}

// CompareFields は2つの製品情報をフィールドごとに完全一致で比較する。
func CompareFields(a, b ProductFields) FieldMatches {
	return FieldMatches{
		ProductID:  a.ProductID == b.ProductID,
		Name:       a.Name == b.Name,
		Brand:      a.Brand == b.Brand,
		BatchNo:    a.BatchNo == b.BatchNo,
		ExpiryDate: a.ExpiryDate == b.ExpiryDate,
	}
}

// All は全フィールドが一致しているかを返す。
func (m FieldMatches) All() bool {
	return m.ProductID && m.Name && m.Brand && m.BatchNo && m.ExpiryDate
}

// TokenVerification はトークン検証の結果を表す。
type TokenVerification struct {
	Valid   bool
	Failure TokenFailure
	Reason  string
	Matches *FieldMatches // 復号に成功した場合のみ設定される
	Payload *TokenPayload
}
