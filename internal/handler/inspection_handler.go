package handler

import (
	"errors"
	"io"
	"net/http"

	"product-authenticity-service/internal/middleware"
	"product-authenticity-service/internal/usecase"
	"product-authenticity-service/pkg/httputil"
)

// MaxInspectBodyBytes は解析対象画像の上限サイズ。
const MaxInspectBodyBytes = 5 << 20

// InspectionHandler はクレデンシャル画像解析のHTTPハンドラを提供する。
type InspectionHandler struct {
	service *usecase.InspectionService
}

// NewInspectionHandler は新しいInspectionHandlerを生成する。
func NewInspectionHandler(service *usecase.InspectionService) *InspectionHandler {
	return &InspectionHandler{service: service}
}

// Inspect はアップロードされた画像が二層形式に見えるかを解析する。
// 結果は参考情報であり、真贋判定には使わない。
func (h *InspectionHandler) Inspect(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxInspectBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			middleware.WriteAuditLog(r.Context(), "INSPECT_CREDENTIAL", "", middleware.AuditFailed)
			httputil.Error(w, http.StatusRequestEntityTooLarge, "IMAGE_TOO_LARGE", "image exceeds 5 MiB")
			return
		}
		httputil.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "failed to read request body")
		return
	}

	analysis, err := h.service.Inspect(r.Context(), body)
	if err != nil {
		writeError(r.Context(), w, "INSPECT_CREDENTIAL", "", err)
		return
	}

	middleware.WriteAuditLog(r.Context(), "INSPECT_CREDENTIAL", "", middleware.AuditSuccess)
	httputil.JSON(w, http.StatusOK, analysis)
}
