package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Env      string
	LogLevel string

	// Payconiq API
	PayconiqAPIKey         string
	PayconiqEnvironment    string
	PayconiqEndpoint       string
	PayconiqSearchPageSize int
	PayconiqCallbackURL    string
	PayconiqReturnURL      string

	// Ledger (Redis)
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	LedgerTTL     time.Duration

	// Export (S3)
	ExportS3Bucket      string
	ExportS3Prefix      string
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		PayconiqAPIKey:         getEnv("PAYCONIQ_API_KEY", ""),
		PayconiqEnvironment:    strings.ToLower(strings.TrimSpace(getEnv("PAYCONIQ_ENVIRONMENT", "ext"))),
		PayconiqEndpoint:       strings.TrimSpace(getEnv("PAYCONIQ_ENDPOINT", "")),
		PayconiqSearchPageSize: getEnvAsInt("PAYCONIQ_SEARCH_PAGE_SIZE", 50),
		PayconiqCallbackURL:    getEnv("PAYCONIQ_CALLBACK_URL", ""),
		PayconiqReturnURL:      getEnv("PAYCONIQ_RETURN_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		LedgerTTL:     getEnvAsDuration("LEDGER_TTL", 30*24*time.Hour),

		ExportS3Bucket:      getEnv("EXPORT_S3_BUCKET", ""),
		ExportS3Prefix:      strings.Trim(getEnv("EXPORT_S3_PREFIX", "payconiq/payments"), "/"),
		AWSRegion:           getEnv("AWS_REGION", "eu-west-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
	}
}

// LedgerEnabled reports whether a Redis address was configured.
func (c *Config) LedgerEnabled() bool {
	return strings.TrimSpace(c.RedisAddr) != ""
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
