package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("ENV", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("APP_BASE_URL", "https://journal.example.com/")
	t.Setenv("ALLOWED_ORIGINS", "")
	t.Setenv("SMTP_PORT", "")
	t.Setenv("MAIL_RATE_PER_SECOND", "")
	t.Setenv("DIGEST_LOCK_TTL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Environment)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, "https://journal.example.com", cfg.BaseURL)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, 587, cfg.SMTPPort)
	assert.Equal(t, 5.0, cfg.MailRatePerSecond)
	assert.Equal(t, 15*time.Minute, cfg.DigestLockTTL)
	assert.Empty(t, cfg.DatabaseURL)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("ENV", " Production ")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, ,https://b.example.com")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("DIGEST_LOCK_TTL", "90s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, 2525, cfg.SMTPPort)
	assert.Equal(t, 90*time.Second, cfg.DigestLockTTL)
}

func TestLoad_Errors(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := Load()
	assert.ErrorContains(t, err, "JWT_SECRET")

	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DIGEST_LOCK_TTL", "soon")
	_, err = Load()
	assert.ErrorContains(t, err, "DIGEST_LOCK_TTL")
}
