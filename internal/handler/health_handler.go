package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"product-authenticity-service/pkg/httputil"
)

// Pinger は疎通確認できる依存先。*sql.DB が満たす。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler はヘルスチェックを提供する。
type HealthHandler struct {
	db Pinger
}

// NewHealthHandler は新しいHealthHandlerを生成する。
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

// Healthz はレコードストアへの疎通を確認する。
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		slog.ErrorContext(ctx, "health check failed",
			"operation", "Healthz",
			"error", err,
		)
		httputil.Error(w, http.StatusServiceUnavailable, "UNAVAILABLE", "database unavailable")
		return
	}
	httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
