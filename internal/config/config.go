// Package config handles loading and validation of application configuration
// from environment variables. Supports .env files via godotenv.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultJWTSecret = "dev-secret-change-in-production"

// Config holds all application configuration
type Config struct {
	// Server settings
	Port        int
	Environment string // "local" | "development" | "staging" | "production"

	// Database
	DatabaseURL string

	// Security
	JWTSecret      string
	TokenTTL       time.Duration
	AllowedOrigins []string
	// Proxies whose X-Forwarded-For / X-Real-IP headers are believed.
	// Empty means the socket peer is always the client.
	TrustedProxies []string

	// Public submission throttling
	SubmissionLimit  int
	SubmissionWindow time.Duration

	// Redis (rate limiting & cross-instance event relay). Empty disables both.
	RedisURL string

	// RabbitMQ export of lifecycle events. Empty disables it.
	AMQPURL      string
	AMQPExchange string

	// Media uploads
	UploadDir   string
	MaxFileSize int64
	MaxFiles    int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnvInt("PORT", 3001),
		Environment: getEnv("ENVIRONMENT", "development"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		JWTSecret:      getEnv("JWT_SECRET", defaultJWTSecret),
		TokenTTL:       getEnvDuration("TOKEN_TTL", 24*time.Hour),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000"), ","),
		TrustedProxies: getEnvList("TRUSTED_PROXIES"),

		SubmissionLimit:  getEnvInt("SUBMISSION_LIMIT", 5),
		SubmissionWindow: getEnvDuration("SUBMISSION_WINDOW", time.Hour),

		RedisURL: getEnv("REDIS_URL", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "seeit.reports"),

		UploadDir:   getEnv("UPLOAD_DIR", "./uploads"),
		MaxFileSize: int64(getEnvInt("MAX_FILE_SIZE", 10<<20)),
		MaxFiles:    getEnvInt("MAX_FILES", 5),
	}

	if cfg.SubmissionLimit <= 0 {
		return nil, fmt.Errorf("SUBMISSION_LIMIT must be positive, got %d", cfg.SubmissionLimit)
	}

	// Validate required fields in production
	if cfg.Environment == "production" {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required in production")
		}
		if cfg.JWTSecret == defaultJWTSecret {
			return nil, fmt.Errorf("JWT_SECRET must be set in production")
		}
	}

	return cfg, nil
}

// IsDevelopment reports whether verbose development logging should be used.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "local"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
