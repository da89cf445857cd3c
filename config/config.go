// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// レジストリのバックエンド種別
const (
	RegistryBackendLedger = "ledger"
	RegistryBackendHTTP   = "http"
)

// Config はアプリケーション設定を表す。
type Config struct {
	Port               string
	DatabaseURL        string
	MigrationsDir      string // 空の場合は埋め込みのマイグレーションを使う
	LogLevel           string
	GoogleCloudProject string

	// トークン秘密鍵。CryptoSecretKeyCiphertext が設定されていればKMSで復号して使う。
	CryptoSecretKey           string
	CryptoSecretKeyCiphertext string
	KMSKeyName                string

	RegistryBackend string
	RegistryURL     string
	RegistrySigner  string
	RegistryTimeout time.Duration

	AllowedOrigins       []string
	RedisURL             string
	VerifyRateLimitRPS   float64
	VerifyRateLimitBurst int

	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	CloudinaryFolder    string

	OtelEnabled      bool
	OtelEndpoint     string
	OtelServiceName  string
	OtelSamplingRate float64
}

// Load は環境変数から設定を読み込む。
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		MigrationsDir:      os.Getenv("MIGRATIONS_DIR"),
		LogLevel:           getEnv("LOG_LEVEL", "INFO"),
		GoogleCloudProject: os.Getenv("GOOGLE_CLOUD_PROJECT"),

		CryptoSecretKey:           os.Getenv("CRYPTO_SECRET_KEY"),
		CryptoSecretKeyCiphertext: os.Getenv("CRYPTO_SECRET_KEY_CIPHERTEXT"),
		KMSKeyName:                os.Getenv("KMS_KEY_NAME"),

		RegistryBackend: getEnv("REGISTRY_BACKEND", RegistryBackendLedger),
		RegistryURL:     os.Getenv("REGISTRY_URL"),
		RegistrySigner:  getEnv("REGISTRY_SIGNER", "local-ledger"),
		RegistryTimeout: getEnvDuration("REGISTRY_TIMEOUT", 10*time.Second),

		AllowedOrigins:       getEnvList("ALLOWED_ORIGINS", []string{"*"}),
		RedisURL:             os.Getenv("REDIS_URL"),
		VerifyRateLimitRPS:   getEnvFloat("VERIFY_RATE_LIMIT_RPS", 5),
		VerifyRateLimitBurst: getEnvInt("VERIFY_RATE_LIMIT_BURST", 20),

		CloudinaryCloudName: os.Getenv("CLOUDINARY_CLOUD_NAME"),
		CloudinaryAPIKey:    os.Getenv("CLOUDINARY_API_KEY"),
		CloudinaryAPISecret: os.Getenv("CLOUDINARY_API_SECRET"),
		CloudinaryFolder:    getEnv("CLOUDINARY_FOLDER", "product-qr"),

		OtelEnabled:      getEnvBool("OTEL_ENABLED", false),
		OtelEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OtelServiceName:  getEnv("OTEL_SERVICE_NAME", "product-authenticity-service"),
		OtelSamplingRate: getEnvFloat("OTEL_SAMPLING_RATE", 1.0),
	}
}

// CloudinaryEnabled はCDN公開の設定が揃っているかを返す。
func (c *Config) CloudinaryEnabled() bool {
	return c.CloudinaryCloudName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return defaultVal
}

func getEnvList(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var list []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	return list
}
