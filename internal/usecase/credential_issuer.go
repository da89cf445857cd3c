package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"log/slog"

	"product-authenticity-service/internal/domain"
)

// MIMETypePNG はクレデンシャル画像のMIMEタイプ。
const MIMETypePNG = "image/png"

// TokenCodec は暗号トークンの生成と検証のインターフェース。
type TokenCodec interface {
	Generate(fields domain.ProductFields) (*domain.CryptoToken, error)
	Verify(ciphertext, signature string, claimed domain.ProductFields) *domain.TokenVerification
}

// LayerCodec は二層QR画像の描画と合成のインターフェース。
type LayerCodec interface {
	RenderVisible(data string) (*image.NRGBA, error)
	RenderHidden(data string) (*image.NRGBA, error)
	Composite(visible, hidden image.Image, productID string) ([]byte, error)
}

// CredentialIssuer は製品情報から二層QRクレデンシャルを発行する。
// 永続化やレジストリへの書き込みは行わない。
type CredentialIssuer struct {
	tokens TokenCodec
	layers LayerCodec
}

// NewCredentialIssuer は新しいCredentialIssuerを生成する。
func NewCredentialIssuer(tokens TokenCodec, layers LayerCodec) *CredentialIssuer {
	return &CredentialIssuer{
		tokens: tokens,
		layers: layers,
	}
}

// Issue はトークンを生成し、可視レイヤーと隠しレイヤーを合成した画像を返す。
func (i *CredentialIssuer) Issue(ctx context.Context, fields domain.ProductFields) (*domain.Credential, error) {
	token, err := i.tokens.Generate(fields)
	if err != nil {
		return nil, fmt.Errorf("generating token: %w", err)
	}

	visibleData, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("serializing visible data: %w", err)
	}
	secretData, err := json.Marshal(domain.SecretLayerData{
		Ciphertext: token.Ciphertext,
		Signature:  token.Signature,
		ProductID:  fields.ProductID,
		Timestamp:  token.Payload.Timestamp,
	})
	if err != nil {
		return nil, fmt.Errorf("serializing secret data: %w", err)
	}

	visible, err := i.layers.RenderVisible(string(visibleData))
	if err != nil {
		return nil, err
	}
	hidden, err := i.layers.RenderHidden(string(secretData))
	if err != nil {
		return nil, err
	}
	qrImage, err := i.layers.Composite(visible, hidden, fields.ProductID)
	if err != nil {
		return nil, err
	}

	slog.DebugContext(ctx, "credential issued",
		"product_id", fields.ProductID,
		"image_bytes", len(qrImage),
	)

	return &domain.Credential{
		VisibleLayerData: string(visibleData),
		SecretLayerData:  string(secretData),
		QRImage:          qrImage,
		Format:           domain.QRVersionDualLayer,
		MIMEType:         MIMETypePNG,
		Token:            token,
	}, nil
}
