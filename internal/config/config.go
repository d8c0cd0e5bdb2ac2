package config

import (
	"os"
	"strconv"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// StorageConfig holds blob storage settings. Backend selects between the
// local content-addressed directory ("disk") and an S3-compatible object
// store ("s3").
type StorageConfig struct {
	Backend        string
	Dir            string
	MaxUploadSize  int64
	Compress       bool
	RetentionCount int
	MinIO          MinIOConfig
}

// MinIOConfig holds object storage settings for the S3-compatible backend.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// ValidationConfig bounds the structure of uploaded JSON documents.
type ValidationConfig struct {
	MaxDepth     int
	MaxKeys      int
	MaxStringLen int
}

// RateLimitConfig configures the per-client sliding windows: one counting
// requests, one summing declared upload bytes.
type RateLimitConfig struct {
	Requests        int
	WindowSec       int
	UploadBytes     int64
	UploadWindowSec int
}

// AuthConfig holds API key hashing parameters.
type AuthConfig struct {
	BcryptCost int
}

// AppConfig is the centralized configuration struct for the application.
// It is populated once from environment variables at startup and passed to
// each component; nothing reads ambient env state after Load returns.
type AppConfig struct {
	AppHost    string
	Port       string
	Database   DatabaseConfig
	Storage    StorageConfig
	Validation ValidationConfig
	RateLimit  RateLimitConfig
	Auth       AuthConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost: getEnv("APP_HOST", "localhost:8080"),
		Port:    getEnv("PORT", "8080"),
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		Storage: StorageConfig{
			Backend:        getEnv("STORAGE_BACKEND", "disk"),
			Dir:            getEnv("STORAGE_DIR", "uploads"),
			MaxUploadSize:  getEnvInt64("MAX_UPLOAD_SIZE", 100*1024*1024),
			Compress:       getEnvBool("STORAGE_COMPRESS", true),
			RetentionCount: getEnvInt("RETENTION_COUNT", 5),
			MinIO: MinIOConfig{
				Endpoint:  getEnv("MINIO_ENDPOINT", ""),
				AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
				SecretKey: getEnv("MINIO_SECRET_KEY", ""),
				Bucket:    getEnv("MINIO_BUCKET", ""),
				UseSSL:    getEnvBool("MINIO_USE_SSL", false),
			},
		},
		Validation: ValidationConfig{
			MaxDepth:     getEnvInt("MAX_JSON_DEPTH", 50),
			MaxKeys:      getEnvInt("MAX_JSON_KEYS", 10000),
			MaxStringLen: getEnvInt("MAX_STRING_LENGTH", 1024*1024),
		},
		RateLimit: RateLimitConfig{
			Requests:        getEnvInt("RATE_LIMIT_REQUESTS", 100),
			WindowSec:       getEnvInt("RATE_LIMIT_WINDOW", 60),
			UploadBytes:     getEnvInt64("RATE_LIMIT_UPLOAD_SIZE", 500*1024*1024),
			UploadWindowSec: getEnvInt("RATE_LIMIT_UPLOAD_WINDOW", 60),
		},
		Auth: AuthConfig{
			BcryptCost: getEnvInt("API_KEY_BCRYPT_COST", 10),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			return i
		}
	}
	return def
}
