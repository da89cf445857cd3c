// Package main はAPIサーバーのエントリポイント。
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"product-authenticity-service/config"
	"product-authenticity-service/internal/handler"
	"product-authenticity-service/internal/infra"
	"product-authenticity-service/internal/middleware"
	"product-authenticity-service/internal/qrlayer"
	"product-authenticity-service/internal/registry"
	"product-authenticity-service/internal/repository"
	"product-authenticity-service/internal/token"
	"product-authenticity-service/internal/usecase"
)

func main() {
	ctx := context.Background()

	// .envファイルを読み込む（存在しない場合は無視）
	// 既存の環境変数は上書きしない
	_ = godotenv.Load()

	// 設定読み込み
	cfg := config.Load()

	// トレーサー初期化（ロガー設定の前に実行）
	tp, err := infra.InitTracer(ctx, cfg)
	if err != nil {
		slog.Error("failed to init tracer", "error", err)
		os.Exit(1)
	}
	if tp != nil {
		defer func() {
			if err := tp.Shutdown(ctx); err != nil {
				slog.Error("failed to shutdown tracer", "error", err)
			}
		}()
	}

	// トレース情報付きロガーを設定
	infra.SetupLogger(cfg)

	// DB初期化
	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is not set")
		os.Exit(1)
	}
	db, err := infra.NewDB(cfg)
	if err != nil {
		slog.Error("failed to init database", "error", err)
		os.Exit(1)
	}
	sqlDB, err := db.DB()
	if err != nil {
		slog.Error("failed to get database handle", "error", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	// トークン秘密鍵（KMSで暗号化されている場合は復号する）
	var decrypter infra.Decrypter
	if cfg.KMSKeyName != "" {
		kmsClient, err := infra.NewKMSClient(ctx, cfg.KMSKeyName)
		if err != nil {
			slog.Error("failed to init KMS client", "error", err)
			os.Exit(1)
		}
		defer func() {
			if closeErr := kmsClient.Close(); closeErr != nil {
				slog.Error("failed to close KMS client", "error", closeErr)
			}
		}()
		decrypter = kmsClient
	}
	secret, err := infra.ResolveTokenSecret(ctx, cfg, decrypter)
	if err != nil {
		slog.Error("failed to resolve token secret", "error", err)
		os.Exit(1)
	}
	tokens, err := token.NewCodec(secret)
	if err != nil {
		slog.Error("failed to init token codec", "error", err)
		os.Exit(1)
	}

	// レジストリ
	var reg usecase.Registry
	switch cfg.RegistryBackend {
	case config.RegistryBackendHTTP:
		if cfg.RegistryURL == "" {
			slog.Error("REGISTRY_URL is not set")
			os.Exit(1)
		}
		reg = registry.NewHTTPClient(cfg.RegistryURL, cfg.RegistryTimeout)
	default:
		reg = registry.NewLedger(db, cfg.RegistrySigner)
	}

	// 画像の公開先（任意）
	var publisher usecase.ImagePublisher
	if cfg.CloudinaryEnabled() {
		p, err := infra.NewCloudinaryPublisher(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		if err != nil {
			slog.Error("failed to init Cloudinary", "error", err)
			os.Exit(1)
		}
		publisher = p
	}

	// 公開ルートのレート制限（REDIS_URLがあればインスタンス間で共有）
	var limiter middleware.Limiter = middleware.NewMemoryLimiter(cfg.VerifyRateLimitRPS, cfg.VerifyRateLimitBurst)
	if cfg.RedisURL != "" {
		rdb, err := infra.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			slog.Error("failed to init redis", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
		perMinute := int64(cfg.VerifyRateLimitRPS*60) + int64(cfg.VerifyRateLimitBurst)
		limiter = middleware.NewRedisLimiter(rdb, "ratelimit:public:", perMinute, time.Minute)
	}

	// DI
	layers := qrlayer.NewCodec()
	products := repository.NewProductRepository(db)
	logs := repository.NewVerificationLogRepository(db)
	issuer := usecase.NewCredentialIssuer(tokens, layers)

	router := handler.NewRouter(handler.RouterConfig{
		Products:        handler.NewProductHandler(usecase.NewProductService(products, issuer, reg, publisher)),
		Verifications:   handler.NewVerificationHandler(usecase.NewVerificationService(products, logs, reg, tokens)),
		Inspections:     handler.NewInspectionHandler(usecase.NewInspectionService(layers)),
		Health:          handler.NewHealthHandler(sqlDB),
		PublicRateLimit: middleware.RateLimit(limiter, time.Minute),
		AllowedOrigins:  cfg.AllowedOrigins,
	})

	// サーバー起動
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		<-sigCh

		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("starting server",
		"port", cfg.Port,
		"registry_backend", cfg.RegistryBackend,
		"image_publishing", publisher != nil,
		"shared_rate_limit", cfg.RedisURL != "",
	)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
