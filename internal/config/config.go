package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the server configuration loaded from environment variables.
type Config struct {
	// AppEnv is the running environment (development/production).
	AppEnv string
	// ServerPort is the HTTP port to listen on.
	ServerPort string
	// ConnectionsFile is the YAML file describing the exposed databases.
	ConnectionsFile string
	// LogLevel is one of DEBUG, INFO, WARN, ERROR.
	LogLevel string
	// LogFormat is "json" or "text".
	LogFormat string
	// AllowedOrigins is a list of CORS allowed domains.
	AllowedOrigins []string
	// RateLimitPerMinute caps requests per client IP. Zero disables limiting.
	RateLimitPerMinute int
	RateLimitBurst     int
	// FlushEvery is the number of streamed lines between explicit HTTP flushes.
	FlushEvery int
	// StorageType determines where to save exports: "local" or "s3".
	StorageType string
	// LocalStoragePath is the directory for local exports.
	LocalStoragePath string
	// AWSRegion is the AWS region for S3 uploads.
	AWSRegion string
	// S3Bucket is the target S3 bucket name.
	S3Bucket string
	// S3Endpoint is an optional custom endpoint (MinIO and other S3 providers).
	S3Endpoint string
	// S3PathStyle enables path-style addressing.
	S3PathStyle bool
	// WorkerCount is the number of concurrent export jobs allowed.
	WorkerCount int
	// MaxDBConcurrency restricts the number of export queries running at once.
	MaxDBConcurrency int64
	// DefaultTimeout is the maximum duration for an export job.
	DefaultTimeout time.Duration
	// Compression gzips exports unless the request says otherwise.
	Compression bool
}

func Load() *Config {
	return &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		ServerPort:         getEnv("SERVER_PORT", "8080"),
		ConnectionsFile:    getEnv("CONNECTIONS_FILE", "config.yaml"),
		LogLevel:           strings.ToUpper(getEnv("LOG_LEVEL", "INFO")),
		LogFormat:          getEnv("LOG_FORMAT", "json"),
		AllowedOrigins:     getEnvSlice("ALLOWED_ORIGINS", []string{"*"}),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 0),
		RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 20),
		FlushEvery:         getEnvInt("FLUSH_EVERY", 500),
		StorageType:        getEnv("STORAGE_TYPE", "local"),
		LocalStoragePath:   getEnv("LOCAL_STORAGE_PATH", "./exports"),
		AWSRegion:          getEnv("AWS_REGION", "us-east-1"),
		S3Bucket:           getEnv("S3_BUCKET", ""),
		S3Endpoint:         getEnv("S3_ENDPOINT", ""),
		S3PathStyle:        getEnvBool("S3_PATH_STYLE", false),
		WorkerCount:        getEnvInt("WORKER_COUNT", 4),
		MaxDBConcurrency:   int64(getEnvInt("MAX_DB_CONCURRENCY", 2)),
		DefaultTimeout:     getEnvDuration("DEFAULT_TIMEOUT", 15*time.Minute),
		Compression:        getEnvBool("COMPRESSION", false),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var result []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			result = append(result, item)
		}
	}
	return result
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}
