package infra

import (
	"context"
	"encoding/base64"
	"fmt"

	kms "cloud.google.com/go/kms/apiv1"
	kmspb "cloud.google.com/go/kms/apiv1/kmspb"

	"product-authenticity-service/config"
)

// KMSClient はCloud KMSクライアントをラップする。
type KMSClient struct {
	client  *kms.KeyManagementClient
	keyName string
}

// NewKMSClient は指定されたキー名でKMSClientを生成する。
func NewKMSClient(ctx context.Context, keyName string) (*KMSClient, error) {
	if keyName == "" {
		return nil, fmt.Errorf("KMS_KEY_NAME is required")
	}

	client, err := kms.NewKeyManagementClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating KMS client: %w", err)
	}

	return &KMSClient{
		client:  client,
		keyName: keyName,
	}, nil
}

// Encrypt は平文をCloud KMSで暗号化する。
func (c *KMSClient) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	resp, err := c.client.Encrypt(ctx, &kmspb.EncryptRequest{
		Name:      c.keyName,
		Plaintext: plaintext,
	})
	if err != nil {
		return nil, fmt.Errorf("encrypting: %w", err)
	}
	return resp.Ciphertext, nil
}

// Decrypt は暗号文をCloud KMSで復号する。
func (c *KMSClient) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	resp, err := c.client.Decrypt(ctx, &kmspb.DecryptRequest{
		Name:       c.keyName,
		Ciphertext: ciphertext,
	})
	if err != nil {
		return nil, fmt.Errorf("decrypting: %w", err)
	}
	return resp.Plaintext, nil
}

// Close はKMSクライアントを閉じる。
func (c *KMSClient) Close() error {
	return c.client.Close()
}

// Decrypter は暗号文を復号するインターフェース。
type Decrypter interface {
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

// ResolveTokenSecret はトークン秘密鍵を決定する。
// CRYPTO_SECRET_KEY_CIPHERTEXT (Base64) が設定されていればKMSで復号し、
// なければ CRYPTO_SECRET_KEY をそのまま使う。
func ResolveTokenSecret(ctx context.Context, cfg *config.Config, kmsClient Decrypter) (string, error) {
	if cfg.CryptoSecretKeyCiphertext == "" {
		if cfg.CryptoSecretKey == "" {
			return "", fmt.Errorf("CRYPTO_SECRET_KEY or CRYPTO_SECRET_KEY_CIPHERTEXT is required")
		}
		return cfg.CryptoSecretKey, nil
	}
	if kmsClient == nil {
		return "", fmt.Errorf("KMS client is required to unwrap CRYPTO_SECRET_KEY_CIPHERTEXT")
	}

	ciphertext, err := base64.StdEncoding.DecodeString(cfg.CryptoSecretKeyCiphertext)
	if err != nil {
		return "", fmt.Errorf("decoding CRYPTO_SECRET_KEY_CIPHERTEXT: %w", err)
	}
	plaintext, err := kmsClient.Decrypt(ctx, ciphertext)
	if err != nil {
		return "", fmt.Errorf("unwrapping token secret: %w", err)
	}
	if len(plaintext) == 0 {
		return "", fmt.Errorf("unwrapped token secret is empty")
	}
	return string(plaintext), nil
}

// Encrypter は平文を暗号化するインターフェース。
type Encrypter interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
}

// WrapTokenSecret はトークン秘密鍵をKMSで暗号化し、
// CRYPTO_SECRET_KEY_CIPHERTEXT に設定できるBase64文字列を返す。
func WrapTokenSecret(ctx context.Context, kmsClient Encrypter, secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("token secret is empty")
	}
	ciphertext, err := kmsClient.Encrypt(ctx, []byte(secret))
	if err != nil {
		return "", fmt.Errorf("wrapping token secret: %w", err)
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}
