package handler

import (
	"context"
	"errors"
	"net/http"

	"product-authenticity-service/internal/domain"
	"product-authenticity-service/internal/middleware"
	"product-authenticity-service/pkg/httputil"
)

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

var errorMappings = []errorMapping{
	{domain.ErrInvalidProductID, http.StatusBadRequest, "INVALID_PRODUCT_ID", "invalid product ID format"},
	{domain.ErrInvalidProductFields, http.StatusBadRequest, "INVALID_PRODUCT_FIELDS", "seller_id, product_id, name, brand, batch_no and expiry_date are required"},
	{domain.ErrInvalidImage, http.StatusBadRequest, "INVALID_IMAGE", "image could not be decoded"},
	{domain.ErrProductNotFound, http.StatusNotFound, "PRODUCT_NOT_FOUND", "product not found"},
	{domain.ErrProductAlreadyExists, http.StatusConflict, "PRODUCT_ALREADY_EXISTS", "product already registered"},
	{domain.ErrRegistryUnavailable, http.StatusBadGateway, "REGISTRY_UNAVAILABLE", "registry unavailable"},
}

// writeError はエラーをHTTPステータスに変換してレスポンスを返し、監査ログを出力する。
func writeError(ctx context.Context, w http.ResponseWriter, operation, productID string, err error) {
	middleware.WriteAuditLog(ctx, operation, productID, middleware.AuditFailed)
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			httputil.Error(w, m.status, m.code, m.message)
			return
		}
	}
	httputil.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
}
