package config

import (
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/WeDesignz/WebApp-sub000/internal/shared/telemetry"
)

// Config holds application configuration.
type Config struct {
	Port            string
	CORSAllowOrigin []string
	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string
	DatabaseURL     string
	RedisURL        string
	QueueURL        string
	Env             string
	LogLevel        string

	PaymentProvider  string
	PaymentKeyID     string
	PaymentKeySecret string

	MockPDF MockPDFConfig
	Worker  WorkerConfig
}

// WorkerConfig tunes the SQS poller.
type WorkerConfig struct {
	VisibilityTimeout time.Duration
	Concurrency       int
	ShutdownTimeout   time.Duration
	// MaxRetryDelay caps the visibility backoff applied to failed messages.
	MaxRetryDelay time.Duration
}

// MockPDFConfig carries the price table and entitlement defaults served to clients.
type MockPDFConfig struct {
	Currency              string
	FirstNUnitPrice       int64
	SpecificUnitPrice     int64
	FreeTierSize          int
	AllowedSizes          []int
	SubscriptionAllowance int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Local env files are optional; missing files are not an error.
	for _, path := range []string{".env", "cmd/.env"} {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err != nil {
				telemetry.Warn("config.env_file_failed", map[string]any{"path": path, "error": err.Error()})
			}
		}
	}

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		telemetry.Warn("config.database_url_missing", map[string]any{"env": env})
	}

	return Config{
		Port:             getEnv("PORT", "8080"),
		CORSAllowOrigin:  splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		ObjectStoreType:  normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:    getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:        getEnv("AWS_REGION", ""),
		S3Bucket:         getEnv("S3_BUCKET", ""),
		S3Prefix:         getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:      getEnv("SSE_KMS_KEY_ID", ""),
		DatabaseURL:      dbURL,
		RedisURL:         getEnv("REDIS_URL", ""),
		QueueURL:         getEnv("MOCKPDF_SQS_QUEUE_URL", ""),
		Env:              env,
		LogLevel:         getEnv("LOG_LEVEL", ""),
		PaymentProvider:  normalizePaymentProvider(getEnv("PAYMENT_PROVIDER", "local")),
		PaymentKeyID:     getEnv("PAYMENT_KEY_ID", ""),
		PaymentKeySecret: getEnv("PAYMENT_KEY_SECRET", ""),
		MockPDF: MockPDFConfig{
			Currency:              strings.ToUpper(getEnv("MOCKPDF_CURRENCY", "INR")),
			FirstNUnitPrice:       getEnvInt64("MOCKPDF_FIRST_N_UNIT_PRICE", 500),
			SpecificUnitPrice:     getEnvInt64("MOCKPDF_SPECIFIC_UNIT_PRICE", 1000),
			FreeTierSize:          int(getEnvInt64("MOCKPDF_FREE_TIER_SIZE", 50)),
			AllowedSizes:          parseSizes(getEnv("MOCKPDF_ALLOWED_SIZES", "50,100,200,500")),
			SubscriptionAllowance: int(getEnvInt64("MOCKPDF_SUBSCRIPTION_ALLOWANCE", 0)),
		},
		Worker: WorkerConfig{
			VisibilityTimeout: getEnvSeconds("MOCKPDF_SQS_VISIBILITY_TIMEOUT_SECONDS", 300),
			Concurrency:       int(getEnvInt64("MOCKPDF_WORKER_CONCURRENCY", 4)),
			ShutdownTimeout:   getEnvSeconds("MOCKPDF_SHUTDOWN_TIMEOUT_SECONDS", 30),
			MaxRetryDelay:     getEnvSeconds("MOCKPDF_WORKER_MAX_RETRY_DELAY_SECONDS", 900),
		},
	}
}

// IsDevLike reports whether env is a local development environment.
func IsDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		telemetry.Warn("config.invalid_int", map[string]any{"key": key, "error": err.Error()})
		return def
	}
	return val
}

func getEnvSeconds(key string, def int64) time.Duration {
	return time.Duration(getEnvInt64(key, def)) * time.Second
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// parseSizes returns the distinct positive sizes in ascending order.
func parseSizes(raw string) []int {
	seen := make(map[int]struct{})
	var out []int
	for _, p := range splitAndTrim(raw) {
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 {
			telemetry.Warn("config.invalid_bundle_size", map[string]any{"value": p})
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

func normalizePaymentProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "razorpay":
		return "razorpay"
	default:
		return "local"
	}
}
