package infra

import (
	"context"
	"fmt"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// CloudinaryPublisher はクレデンシャル画像をCloudinaryにアップロードする。
type CloudinaryPublisher struct {
	cld    *cloudinary.Cloudinary
	folder string
}

// NewCloudinaryPublisher は新しいCloudinaryPublisherを生成する。
func NewCloudinaryPublisher(cloudName, apiKey, apiSecret, folder string) (*CloudinaryPublisher, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("initializing Cloudinary: %w", err)
	}
	return &CloudinaryPublisher{
		cld:    cld,
		folder: folder,
	}, nil
}

// Publish はPNGを製品IDをpublic IDとしてアップロードし、HTTPSのURLを返す。
// 同じ製品IDで再度呼ばれた場合は上書きする。
func (p *CloudinaryPublisher) Publish(ctx context.Context, productID string, png []byte) (string, error) {
	result, err := p.cld.Upload.Upload(ctx, png, uploader.UploadParams{
		Folder:       p.folder,
		PublicID:     productID,
		Overwrite:    api.Bool(true),
		ResourceType: "image",
	})
	if err != nil {
		return "", fmt.Errorf("uploading to Cloudinary: %w", err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("uploading to Cloudinary: %s", result.Error.Message)
	}
	return result.SecureURL, nil
}
