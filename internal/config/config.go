package config

import (
	"os"
	"strconv"
)

// Config holds all runtime configuration read from the environment.
type Config struct {
	Port      string
	DBPath    string
	UploadDir string

	// Upload limits
	MaxUploadSize int64 // total multipart form size in bytes
	MaxFileSize   int64 // per-file limit in bytes

	// Free plan quotas
	FreeMaxStorage   int64 // per-user storage in bytes
	FreeMaxSiteFiles int   // files per website

	// Sessions
	JWTSecret           string
	SessionLifetimeDays int

	// Analytics
	EnableAnalytics bool

	// Storage backend: "local" (default) or "s3"
	StorageBackend string
	S3Endpoint     string
	S3Bucket       string
	S3Region       string
	S3AccessKeyID  string
	S3SecretKey    string
	S3UsePathStyle bool
}

// Load reads configuration from environment variables, applying defaults.
func Load() *Config {
	return &Config{
		Port:      getEnv("PORT", "8080"),
		DBPath:    getEnv("DB_PATH", "./data/filelink.db"),
		UploadDir: getEnv("UPLOAD_DIR", "./uploads"),

		MaxUploadSize: getEnvInt64("MAX_UPLOAD_SIZE", 100<<20),
		MaxFileSize:   getEnvInt64("MAX_FILE_SIZE", 50<<20),

		FreeMaxStorage:   getEnvInt64("FREE_MAX_STORAGE", 100<<20),
		FreeMaxSiteFiles: int(getEnvInt64("FREE_MAX_SITE_FILES", 50)),

		JWTSecret:           getEnv("JWT_SECRET", "dev-secret-change-in-production"),
		SessionLifetimeDays: int(getEnvInt64("SESSION_LIFETIME_DAYS", 7)),

		EnableAnalytics: getEnvBool("ENABLE_ANALYTICS", true),

		StorageBackend: getEnv("STORAGE_BACKEND", "local"),
		S3Endpoint:     getEnv("S3_ENDPOINT", ""),
		S3Bucket:       getEnv("S3_BUCKET", ""),
		S3Region:       getEnv("S3_REGION", "us-east-1"),
		S3AccessKeyID:  getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretKey:    getEnv("S3_SECRET_ACCESS_KEY", ""),
		S3UsePathStyle: getEnvBool("S3_USE_PATH_STYLE", true),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
