package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("PORT", "")
	t.Setenv("SUBMISSION_LIMIT", "")
	t.Setenv("SUBMISSION_WINDOW", "")
	t.Setenv("TRUSTED_PROXIES", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3001, cfg.Port)
	assert.Equal(t, 5, cfg.SubmissionLimit)
	assert.Equal(t, time.Hour, cfg.SubmissionWindow)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, int64(10<<20), cfg.MaxFileSize)
	assert.Empty(t, cfg.TrustedProxies)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "staging")
	t.Setenv("PORT", "8081")
	t.Setenv("TOKEN_TTL", "2h")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.0.2.1,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Port)
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, []string{"10.0.0.0/8", "192.0.2.1"}, cfg.TrustedProxies)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoadProductionRequiresSecrets(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("DATABASE_URL", "postgres://localhost/seeit")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.ErrorContains(t, err, "JWT_SECRET")

	t.Setenv("JWT_SECRET", "s3cr3t")
	t.Setenv("DATABASE_URL", "")
	_, err = Load()
	assert.ErrorContains(t, err, "DATABASE_URL")
}

func TestLoadRejectsNonPositiveLimit(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("SUBMISSION_LIMIT", "0")

	_, err := Load()
	assert.Error(t, err)
}
