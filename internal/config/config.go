package config

import (
	"strings"
	"time"

	"cleanup-backend/internal/pkg/validation"

	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env                 string
	Port                string
	DatabaseURL         string
	RedisURL            string
	LogLevel            string
	StripeSecretKey     string
	StripeWebhookSecret string
	Currency            string // PAYMENTS_CURRENCY, lowercase ISO code
	FrontendOrigins     []string
	HealthAdminKey      string

	ProcessorTimeout      time.Duration
	ProcessorMaxAttempts  int
	ProcessorRetryBackoff time.Duration

	RecoveryPollInterval time.Duration
	RecoveryMaxAttempts  int
	RecoveryBackoff      time.Duration

	WebhookEventTTL time.Duration

	OnboardingRefreshURL string
	OnboardingReturnURL  string
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig()

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("PORT", "8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("PAYMENTS_CURRENCY", "usd")
	v.SetDefault("PROCESSOR_TIMEOUT", "10s")
	v.SetDefault("PROCESSOR_MAX_ATTEMPTS", 3)
	v.SetDefault("PROCESSOR_RETRY_BACKOFF", "250ms")
	v.SetDefault("RECOVERY_POLL_INTERVAL", "15s")
	v.SetDefault("RECOVERY_MAX_ATTEMPTS", 8)
	v.SetDefault("RECOVERY_BACKOFF", "30s")
	v.SetDefault("WEBHOOK_EVENT_TTL", "72h")

	return &Config{
		Env:                   strings.ToLower(v.GetString("APP_ENV")),
		Port:                  v.GetString("PORT"),
		DatabaseURL:           v.GetString("DATABASE_URL"),
		RedisURL:              v.GetString("REDIS_URL"),
		LogLevel:              v.GetString("LOG_LEVEL"),
		StripeSecretKey:       v.GetString("STRIPE_SECRET_KEY"),
		StripeWebhookSecret:   v.GetString("STRIPE_WEBHOOK_SECRET"),
		Currency:              validation.NormalizeCurrency(v.GetString("PAYMENTS_CURRENCY"), "usd"),
		FrontendOrigins:       splitList(v.GetString("FRONTEND_ORIGINS")),
		HealthAdminKey:        v.GetString("HEALTH_ADMIN_KEY"),
		ProcessorTimeout:      v.GetDuration("PROCESSOR_TIMEOUT"),
		ProcessorMaxAttempts:  v.GetInt("PROCESSOR_MAX_ATTEMPTS"),
		ProcessorRetryBackoff: v.GetDuration("PROCESSOR_RETRY_BACKOFF"),
		RecoveryPollInterval:  v.GetDuration("RECOVERY_POLL_INTERVAL"),
		RecoveryMaxAttempts:   v.GetInt("RECOVERY_MAX_ATTEMPTS"),
		RecoveryBackoff:       v.GetDuration("RECOVERY_BACKOFF"),
		WebhookEventTTL:       v.GetDuration("WEBHOOK_EVENT_TTL"),
		OnboardingRefreshURL:  v.GetString("ONBOARDING_REFRESH_URL"),
		OnboardingReturnURL:   v.GetString("ONBOARDING_RETURN_URL"),
	}, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
