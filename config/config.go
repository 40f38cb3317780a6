package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds application configuration values.
type Config struct {
	Port string

	DBDriver   string // "postgres" or "sqlite"
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	SQLitePath string

	JWTSecret string
	TaxRate   decimal.Decimal // percent, e.g. 10 for 10%

	AllowedOrigins  string
	BodyLimitBytes  int
	RateLimitMax    int
	RateLimitWindow int // seconds

	LogLevel  string
	LogFormat string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	AuditStream   string
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	// A missing .env is fine; real deployments inject the environment.
	_ = godotenv.Load()

	cfg := Config{
		Port:            envString("PORT", "8080"),
		DBDriver:        strings.ToLower(envString("DB_DRIVER", "postgres")),
		DBHost:          envString("DB_HOST", "localhost"),
		DBPort:          envInt("DB_PORT", 5432),
		DBUser:          envString("DB_USER", "postgres"),
		DBPassword:      os.Getenv("DB_PASSWORD"),
		DBName:          envString("DB_NAME", "hospital"),
		DBSSLMode:       envString("DB_SSLMODE", "disable"),
		SQLitePath:      envString("SQLITE_PATH", "hospital.db"),
		JWTSecret:       envString("JWT_SECRET_KEY", os.Getenv("JWT_SECRET")),
		AllowedOrigins:  envString("ALLOWED_ORIGINS", "*"),
		BodyLimitBytes:  envInt("BODY_LIMIT_MB", 4) * 1024 * 1024,
		RateLimitMax:    envInt("RATE_LIMIT_MAX", 60),
		RateLimitWindow: envInt("RATE_LIMIT_WINDOW_SECONDS", 60),
		LogLevel:        envString("LOG_LEVEL", "info"),
		LogFormat:       envString("LOG_FORMAT", "json"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         envInt("REDIS_DB", 0),
		AuditStream:     envString("AUDIT_STREAM", "hospital:audit"),
	}

	rate, err := decimal.NewFromString(envString("TAX_RATE", "0"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid TAX_RATE: %w", err)
	}
	if rate.IsNegative() {
		return Config{}, fmt.Errorf("invalid TAX_RATE: must not be negative")
	}
	cfg.TaxRate = rate

	if cfg.DBDriver != "postgres" && cfg.DBDriver != "sqlite" {
		return Config{}, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return Config{}, fmt.Errorf("JWT secret not configured (set JWT_SECRET_KEY or JWT_SECRET)")
	}
	return cfg, nil
}

// PostgresDSN builds the key/value DSN understood by pgx.
func (c Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=UTC",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode)
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// envInt reads an int env var with a default fallback.
func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n >= 0 {
			return n
		}
	}
	return def
}
