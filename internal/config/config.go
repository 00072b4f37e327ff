package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment    string // ENV: production, development, etc.
	Port           string
	DatabaseURL    string // empty runs on the in-memory store
	RedisURL       string // empty disables the digest lock
	JWTSecret      string
	EncryptionKey  string // base64 of 32 bytes; empty stores entries in plaintext
	BaseURL        string // used to build links in notifications and mail
	AllowedOrigins []string

	SMTPHost     string // empty logs mail instead of sending it
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	MailFrom     string

	MailRatePerSecond float64
	DigestLockTTL     time.Duration
}

// Load reads the environment, after loading a .env file if one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Environment:    strings.ToLower(strings.TrimSpace(getEnv("ENV", "development"))),
		Port:           getEnv("PORT", "8080"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		EncryptionKey:  os.Getenv("ENCRYPTION_KEY"),
		BaseURL:        strings.TrimRight(getEnv("APP_BASE_URL", "http://localhost:3000"), "/"),
		AllowedOrigins: parseOrigins(getEnv("ALLOWED_ORIGINS", "*")),
		SMTPHost:       os.Getenv("SMTP_HOST"),
		SMTPUsername:   os.Getenv("SMTP_USERNAME"),
		SMTPPassword:   os.Getenv("SMTP_PASSWORD"),
		MailFrom:       getEnv("MAIL_FROM", "Mentor Journal <no-reply@localhost>"),
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	var err error
	if cfg.SMTPPort, err = strconv.Atoi(getEnv("SMTP_PORT", "587")); err != nil {
		return nil, fmt.Errorf("SMTP_PORT: %w", err)
	}
	if cfg.MailRatePerSecond, err = strconv.ParseFloat(getEnv("MAIL_RATE_PER_SECOND", "5"), 64); err != nil {
		return nil, fmt.Errorf("MAIL_RATE_PER_SECOND: %w", err)
	}
	if cfg.DigestLockTTL, err = time.ParseDuration(getEnv("DIGEST_LOCK_TTL", "15m")); err != nil {
		return nil, fmt.Errorf("DIGEST_LOCK_TTL: %w", err)
	}
	return cfg, nil
}

// IsProduction returns true when ENV is set to "production".
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func parseOrigins(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
