// Package token は製品情報に束縛された暗号トークンの生成と検証を提供する。
package token

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"golang.org/x/crypto/hkdf"

	"product-authenticity-service/internal/domain"
)

const (
	keySize   = 32 // AES-256 / HMAC-SHA256
	nonceSize = 16

	encryptionInfo = "qr-token-encryption"
	signatureInfo  = "qr-token-signature"
)

// ErrEmptySecret は秘密鍵が設定されていない場合のエラー。
var ErrEmptySecret = errors.New("token: secret key is empty")

// Codec はトークンの生成と検証を行う。
// 秘密鍵はプロセス全体の設定値であり、リクエストごとには変わらない。
type Codec struct {
	encKey []byte
	macKey []byte
	now    func() time.Time
	rand   io.Reader
}

// Option はCodecの設定を変更する。
type Option func(*Codec)

// WithClock は現在時刻の取得関数を差し替える。
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// WithRandom は乱数源を差し替える。
func WithRandom(r io.Reader) Option {
	return func(c *Codec) { c.rand = r }
}

// NewCodec は秘密鍵から暗号化鍵と署名鍵をHKDFで導出してCodecを生成する。
func NewCodec(secret string, opts ...Option) (*Codec, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	encKey, err := deriveKey(secret, encryptionInfo)
	if err != nil {
		return nil, err
	}
	macKey, err := deriveKey(secret, signatureInfo)
	if err != nil {
		return nil, err
	}

	c := &Codec{
		encKey: encKey,
		macKey: macKey,
		now:    time.Now,
		rand:   rand.Reader,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func deriveKey(secret, info string) ([]byte, error) {
	h := hkdf.New(sha256.New, []byte(secret), nil, []byte(info))
	key := make([]byte, keySize)
	if _, err := io.ReadFull(h, key); err != nil {
		return nil, fmt.Errorf("deriving %s key: %w", info, err)
	}
	return key, nil
}

// Generate は製品情報に束縛された新しいトークンを生成する。
func (c *Codec) Generate(fields domain.ProductFields) (*domain.CryptoToken, error) {
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(c.rand, nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	payload := domain.TokenPayload{
		ProductID:  fields.ProductID,
		Name:       fields.Name,
		Brand:      fields.Brand,
		BatchNo:    fields.BatchNo,
		ExpiryDate: fields.ExpiryDate,
		Timestamp:  c.now().UnixMilli(),
		Nonce:      hex.EncodeToString(nonce),
	}

	serialized, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("serializing payload: %w", err)
	}

	ciphertext, err := c.encrypt(serialized)
	if err != nil {
		return nil, err
	}

	return &domain.CryptoToken{
		Ciphertext:    ciphertext,
		IntegrityHash: integrityHash(serialized, payload.Timestamp),
		Signature:     c.sign(ciphertext),
		Payload:       payload,
	}, nil
}

// Verify は署名、復号、フィールド照合の順にトークンを検証する。
// 署名が一致しない場合は復号を試みない。エラーは返さず結果に格納する。
func (c *Codec) Verify(ciphertext, signature string, claimed domain.ProductFields) *domain.TokenVerification {
	if !c.signatureValid(ciphertext, signature) {
		return failed(domain.TokenFailureSignatureMismatch)
	}

	plaintext, err := c.decrypt(ciphertext)
	if err != nil {
		return failed(domain.TokenFailureCorrupt)
	}

	var payload domain.TokenPayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return failed(domain.TokenFailureCorrupt)
	}

	matches := domain.CompareFields(payload.Fields(), claimed)
	result := &domain.TokenVerification{
		Valid:   matches.All(),
		Matches: &matches,
		Payload: &payload,
	}
	if !result.Valid {
		result.Failure = domain.TokenFailureFieldMismatch
	}
	result.Reason = result.Failure.Reason()
	return result
}

// VerifyIntegrityHash はペイロードから整合性ハッシュを再計算して比較する。
func VerifyIntegrityHash(payload domain.TokenPayload, hash string) bool {
	serialized, err := json.Marshal(payload)
	if err != nil {
		return false
	}
	expected := integrityHash(serialized, payload.Timestamp)
	return hmac.Equal([]byte(expected), []byte(hash))
}

func failed(f domain.TokenFailure) *domain.TokenVerification {
	return &domain.TokenVerification{
		Valid:   false,
		Failure: f,
		Reason:  f.Reason(),
	}
}

func integrityHash(serialized []byte, timestamp int64) string {
	h := sha256.New()
	h.Write(serialized)
	h.Write([]byte(strconv.FormatInt(timestamp, 10)))
	return hex.EncodeToString(h.Sum(nil))
}

func (c *Codec) sign(ciphertext string) string {
	mac := hmac.New(sha256.New, c.macKey)
	mac.Write([]byte(ciphertext))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Codec) signatureValid(ciphertext, signature string) bool {
	provided, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, c.macKey)
	mac.Write([]byte(ciphertext))
	return hmac.Equal(mac.Sum(nil), provided)
}

// encrypt はAES-256-GCMで暗号化し、nonce||暗号文をBase64で返す。
func (c *Codec) encrypt(plaintext []byte) (string, error) {
	gcm, err := c.gcm()
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(c.rand, nonce); err != nil {
		return "", fmt.Errorf("generating gcm nonce: %w", err)
	}
	sealed := gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (c *Codec) decrypt(ciphertext string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, err
	}
	gcm, err := c.gcm()
	if err != nil {
		return nil, err
	}
	if len(data) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, sealed := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	return gcm.Open(nil, nonce, sealed, nil)
}

func (c *Codec) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.encKey)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
