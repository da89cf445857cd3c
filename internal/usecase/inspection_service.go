package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"product-authenticity-service/internal/domain"
)

// LayerExtractor は画像のレイヤー構成を推定するインターフェース。
type LayerExtractor interface {
	Extract(imageBytes []byte) (*domain.LayerAnalysis, error)
}

// InspectionService はスキャン画像がクレデンシャル形式に見えるかを判定する。
// 結果は参考情報であり、真贋判定には使用しない。
type InspectionService struct {
	extractor LayerExtractor
}

// NewInspectionService は新しいInspectionServiceを生成する。
func NewInspectionService(extractor LayerExtractor) *InspectionService {
	return &InspectionService{extractor: extractor}
}

// Inspect は画像を解析する。
func (s *InspectionService) Inspect(ctx context.Context, imageBytes []byte) (*domain.LayerAnalysis, error) {
	if len(imageBytes) == 0 {
		return nil, fmt.Errorf("%w: empty body", domain.ErrInvalidImage)
	}

	analysis, err := s.extractor.Extract(imageBytes)
	if err != nil {
		return nil, err
	}

	slog.DebugContext(ctx, "credential image inspected",
		"is_dual_layer", analysis.IsDualLayer,
		"dark_ratio", analysis.Analysis.DarkRatio,
		"hidden_diversity", analysis.Analysis.HiddenDiversity,
	)
	return analysis, nil
}
