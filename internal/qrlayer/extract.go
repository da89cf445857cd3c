package qrlayer

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"

	"product-authenticity-service/internal/domain"
)

const (
	visibleSampleStep = 5
	hiddenSampleStep  = 2

	darkThreshold = 128
	minDarkRatio  = 0.3
	maxDarkRatio  = 0.7
	minDiversity  = 0.5

	markerMinRed   = 200
	markerMaxGreen = 100
	markerMaxBlue  = 100

	detectionMethod = "image-analysis"
)

// MaxImageDimension はデコードを許可する画像の幅・高さの上限（ピクセル）。
const MaxImageDimension = 4096

// Extract は画像がクレデンシャル形式に見えるかを判定する。
// あくまで近似的な分類であり、埋め込まれたデータの復号は行わない。
func (c *Codec) Extract(imageBytes []byte) (*domain.LayerAnalysis, error) {
	// 圧縮後のサイズが小さくても展開後は巨大になり得るため、先にヘッダーで寸法を確認する
	cfg, _, err := image.DecodeConfig(bytes.NewReader(imageBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidImage, err)
	}
	if cfg.Width > MaxImageDimension || cfg.Height > MaxImageDimension {
		return nil, fmt.Errorf("%w: %dx%d exceeds %dx%d",
			domain.ErrInvalidImage, cfg.Width, cfg.Height, MaxImageDimension, MaxImageDimension)
	}

	img, _, err := image.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidImage, err)
	}

	darkRatio := darkRatio(img)
	diversity, ok := hiddenDiversity(img)

	result := &domain.LayerAnalysis{
		HasVisibleLayer:    darkRatio > minDarkRatio && darkRatio < maxDarkRatio,
		HasHiddenLayer:     ok && diversity > minDiversity,
		HasSecurityMarkers: hasMarkers(img),
		Analysis: domain.LayerMetrics{
			DarkRatio:       darkRatio,
			HiddenDiversity: diversity,
			DetectionMethod: detectionMethod,
		},
	}
	result.IsDualLayer = result.HasVisibleLayer && result.HasHiddenLayer && result.HasSecurityMarkers
	if result.HasVisibleLayer {
		result.Analysis.VisibleOpacity = 1.0
	}
	if result.HasHiddenLayer {
		result.Analysis.HiddenOpacity = HiddenOpacity
	}
	return result, nil
}

func darkRatio(img image.Image) float64 {
	b := img.Bounds()
	var sampled, darkCount int
	for y := b.Min.Y; y < b.Max.Y; y += visibleSampleStep {
		for x := b.Min.X; x < b.Max.X; x += visibleSampleStep {
			p := nrgba(img, x, y)
			if (int(p.R)+int(p.G)+int(p.B))/3 < darkThreshold {
				darkCount++
			}
			sampled++
		}
	}
	if sampled == 0 {
		return 0
	}
	return float64(darkCount) / float64(sampled)
}

// hiddenDiversity は右下の隠しレイヤー領域における色の多様度を返す。
// 領域が画像に収まらない場合は false を返す。
func hiddenDiversity(img image.Image) (float64, bool) {
	b := img.Bounds()
	region := image.Rect(
		b.Max.X-HiddenSize-HiddenInset, b.Max.Y-HiddenSize-HiddenInset,
		b.Max.X-HiddenInset, b.Max.Y-HiddenInset,
	)
	if !region.In(b) {
		return 0, false
	}

	seen := make(map[color.NRGBA]struct{})
	sampled := 0
	for y := region.Min.Y; y < region.Max.Y; y += hiddenSampleStep {
		for x := region.Min.X; x < region.Max.X; x += hiddenSampleStep {
			seen[nrgba(img, x, y)] = struct{}{}
			sampled++
		}
	}
	return float64(len(seen)) / float64(sampled), true
}

func hasMarkers(img image.Image) bool {
	b := img.Bounds()
	if b.Empty() {
		return false
	}
	corners := []image.Point{
		{b.Min.X, b.Min.Y},
		{b.Max.X - 1, b.Min.Y},
		{b.Min.X, b.Max.Y - 1},
		{b.Max.X - 1, b.Max.Y - 1},
	}
	for _, p := range corners {
		c := nrgba(img, p.X, p.Y)
		if c.R <= markerMinRed || c.G >= markerMaxGreen || c.B >= markerMaxBlue {
			return false
		}
	}
	return true
}

func nrgba(img image.Image, x, y int) color.NRGBA {
	return color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
}
