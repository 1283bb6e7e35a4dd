package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PAYMENTS_CURRENCY", "")
	t.Setenv("FRONTEND_ORIGINS", "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "usd", cfg.Currency)
	assert.Equal(t, 10*time.Second, cfg.ProcessorTimeout)
	assert.Equal(t, 3, cfg.ProcessorMaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.ProcessorRetryBackoff)
	assert.Equal(t, 15*time.Second, cfg.RecoveryPollInterval)
	assert.Equal(t, 8, cfg.RecoveryMaxAttempts)
	assert.Empty(t, cfg.FrontendOrigins)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("APP_ENV", "Production")
	t.Setenv("PAYMENTS_CURRENCY", " EUR ")
	t.Setenv("FRONTEND_ORIGINS", "https://app.example.org, https://admin.example.org,")
	t.Setenv("PROCESSOR_TIMEOUT", "3s")
	t.Setenv("RECOVERY_MAX_ATTEMPTS", "5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "eur", cfg.Currency)
	assert.Equal(t, []string{"https://app.example.org", "https://admin.example.org"}, cfg.FrontendOrigins)
	assert.Equal(t, 3*time.Second, cfg.ProcessorTimeout)
	assert.Equal(t, 5, cfg.RecoveryMaxAttempts)
}

func TestLoad_InvalidCurrencyFallsBack(t *testing.T) {
	t.Setenv("PAYMENTS_CURRENCY", "dollars")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "usd", cfg.Currency)
}
