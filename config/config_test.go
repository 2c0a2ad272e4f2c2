package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnvDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg := LoadEnv()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "/api", cfg.Server.BasePath)
	assert.Equal(t, 4*time.Hour, cfg.JWT.TTL)
	assert.False(t, cfg.Logger.Development)
	assert.False(t, cfg.Mongo.Transactions)
	require.NoError(t, cfg.Validate())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("PORT", "9000")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("JWT_TTL", "3600")
	t.Setenv("MONGODB_TIMEOUT", "2s")
	t.Setenv("MONGODB_TRANSACTIONS", "true")

	cfg := LoadEnv()

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, time.Hour, cfg.JWT.TTL)
	assert.Equal(t, 2*time.Second, cfg.Mongo.Timeout)
	assert.True(t, cfg.Mongo.Transactions)
	assert.True(t, cfg.Logger.Development)
}

func TestValidateRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	err := LoadEnv().Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestEnvFile(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	assert.Equal(t, ".env.production", EnvFile())

	t.Setenv("APP_ENV", "")
	assert.Equal(t, ".env.development", EnvFile())
}

func TestValidateRejectsUnknownTimezone(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("TIMEZONE", "Mars/Olympus")

	err := LoadEnv().Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "TIMEZONE")
}
