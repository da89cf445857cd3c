package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// RouterConfig はルーター生成に必要なハンドラと設定。
type RouterConfig struct {
	Products      *ProductHandler
	Verifications *VerificationHandler
	Inspections   *InspectionHandler
	Health        *HealthHandler

	// PublicRateLimit は検証・画像解析ルートに適用する。nil の場合は制限しない。
	PublicRateLimit func(http.Handler) http.Handler
	AllowedOrigins  []string
}

// NewRouter はルーターを生成する。
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// ミドルウェア
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"Retry-After"},
		MaxAge:         300,
	}))

	publicLimit := cfg.PublicRateLimit
	if publicLimit == nil {
		publicLimit = func(next http.Handler) http.Handler { return next }
	}

	r.Get("/healthz", cfg.Health.Healthz)

	// ルート定義
	r.Route("/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Post("/", cfg.Products.RegisterProduct)
			r.Get("/", cfg.Products.ListProducts)
			r.Route("/{product_id}", func(r chi.Router) {
				r.Get("/", cfg.Products.GetProduct)
				r.Delete("/", cfg.Products.DeleteProduct)
				r.With(publicLimit).Get("/verify", cfg.Verifications.Verify)
				r.Get("/verifications", cfg.Verifications.ListVerifications)
			})
		})
		r.With(publicLimit).Post("/credentials/inspect", cfg.Inspections.Inspect)
	})

	return otelhttp.NewHandler(r, "product-authenticity-service")
}
