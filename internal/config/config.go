// Package config centralises configuration parsing for the gym finance services.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"

	"example.com/gymfinance/internal/finance"
)

// Config captures runtime configuration values for the API and consumer.
type Config struct {
	AppEnv             string
	LogLevel           string
	HTTPAddress        string
	MetricsAddress     string
	CORSAllowedOrigins []string
	RateLimit          int // requests per minute per client IP, 0 disables
	ShutdownTimeout    time.Duration

	PostgresURL string // empty selects the in-memory store
	RedisURL    string // empty disables the result cache
	CacheTTL    time.Duration

	KafkaBrokers []string
	KafkaGroupID string
	KafkaTopics  []string

	JWTSecret string
	JWTIssuer string

	FetchTimeout   time.Duration
	LookbackMonths int
	ForecastMonths int
	DefaultCompare string
}

// Load reads an optional .env file and then environment variables into Config,
// applying defaults suitable for local development.
func Load() Config {
	_ = loadDotEnv(".env")

	return Config{
		AppEnv:             getEnv("APP_ENV", "production"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		HTTPAddress:        getEnv("HTTP_ADDRESS", ":8080"),
		MetricsAddress:     getEnv("METRICS_ADDRESS", ":9102"),
		CORSAllowedOrigins: splitAndTrim(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		RateLimit:          getIntEnv("RATE_LIMIT_PER_MINUTE", 120),
		ShutdownTimeout:    getDurationEnv("SHUTDOWN_TIMEOUT", 10*time.Second),
		PostgresURL:        getEnv("POSTGRES_URL", ""),
		RedisURL:           getEnv("REDIS_URL", ""),
		CacheTTL:           getDurationEnv("CACHE_TTL", 15*time.Minute),
		KafkaBrokers:       splitAndTrim(getEnv("KAFKA_BROKERS", "kafka:9092")),
		KafkaGroupID:       getEnv("KAFKA_GROUP_ID", "gymfinance-cache-invalidator"),
		KafkaTopics:        splitAndTrim(getEnv("KAFKA_TOPICS", "ledger_events")),
		JWTSecret:          getEnv("JWT_SECRET", "dev-secret-change-me"),
		JWTIssuer:          getEnv("JWT_ISSUER", "i5e.identity"),
		FetchTimeout:       getDurationEnv("FETCH_TIMEOUT", 10*time.Second),
		LookbackMonths:     getIntEnv("LOOKBACK_MONTHS", finance.DefaultLookbackMonths),
		ForecastMonths:     getIntEnv("FORECAST_MONTHS", finance.DefaultForecastMonths),
		DefaultCompare:     getEnv("DEFAULT_COMPARE", "none"),
	}
}

// Validate rejects values the engine cannot run with.
func (c Config) Validate() error {
	if c.FetchTimeout <= 0 {
		return eris.Errorf("FETCH_TIMEOUT must be positive, got %s", c.FetchTimeout)
	}
	if c.LookbackMonths <= 0 {
		return eris.Errorf("LOOKBACK_MONTHS must be positive, got %d", c.LookbackMonths)
	}
	if c.ForecastMonths <= 0 {
		return eris.Errorf("FORECAST_MONTHS must be positive, got %d", c.ForecastMonths)
	}
	if _, err := finance.ParseCompareMode(c.DefaultCompare); err != nil {
		return eris.Wrap(err, "DEFAULT_COMPARE")
	}
	if c.RateLimit < 0 {
		return eris.Errorf("RATE_LIMIT_PER_MINUTE must not be negative, got %d", c.RateLimit)
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return eris.New("JWT_SECRET is required")
	}
	return nil
}

// CompareMode returns the parsed default comparison mode. Call Validate first.
func (c Config) CompareMode() finance.CompareMode {
	mode, _ := finance.ParseCompareMode(c.DefaultCompare)
	return mode
}

// loadDotEnv applies a dotenv file without overriding variables already set.
// A missing file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return eris.Wrapf(err, "load %s", path)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}
