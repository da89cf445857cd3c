// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"time"
)

// 監査ログの結果値
const (
	AuditSuccess = "SUCCESS"
	AuditFailed  = "FAILED"
)

// WriteAuditLog は監査ログを出力する。
// resultには AuditSuccess / AuditFailed、検証の場合は判定結果を渡す。
func WriteAuditLog(ctx context.Context, operation string, productID string, result string) {
	slog.InfoContext(ctx, "product operation completed",
		"operation", operation,
		"product_id", productID,
		"result", result,
		"timestamp", time.Now().UTC().Format(time.RFC3339),
	)
}
