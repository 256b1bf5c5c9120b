package config

import (
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_NAME", "APP_ENV", "PORT", "LOG_LEVEL", "DATABASE_URL", "REDIS_URL", "JWT_SECRET",
		"ACCESS_TOKEN_TTL", "TRANSFER_RATE_LIMIT", "DEFAULT_CURRENCY", "NOTIFICATION_CHANNEL", "ADMIN_PHONE", "ADMIN_PASSWORD",
		idemTTLSecondsEnvVar, idemTTLDurEnvVar, shutdownSecondsEnvVar, shutdownDurationEnvVar,
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDevelopmentDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.IsDev() {
		t.Fatalf("expected development env, got %q", cfg.AppEnv)
	}
	if cfg.JWTSecret == "" {
		t.Fatalf("development should fall back to a local secret")
	}
	if cfg.TransferRateLimit != defaultTransferRateLimit || cfg.DefaultCurrency != "USD" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.IdempotencyTTL != defaultIdempotencyTTL || cfg.AccessTokenTTL != defaultAccessTokenTTL {
		t.Fatalf("unexpected durations: %+v", cfg)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("unexpected address %q", cfg.Address())
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", ":9090")
	t.Setenv("IDEMPOTENCY_TTL_SECONDS", "60")
	t.Setenv("SHUTDOWN_TIMEOUT", "3s")
	t.Setenv("ACCESS_TOKEN_TTL", "30m")
	t.Setenv("TRANSFER_RATE_LIMIT", "25")
	t.Setenv("DEFAULT_CURRENCY", "eur")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Address() != ":9090" {
		t.Fatalf("unexpected address %q", cfg.Address())
	}
	if cfg.IdempotencyTTL != time.Minute || cfg.ShutdownPeriod != 3*time.Second || cfg.AccessTokenTTL != 30*time.Minute {
		t.Fatalf("unexpected durations: %+v", cfg)
	}
	if cfg.TransferRateLimit != 25 || cfg.DefaultCurrency != "EUR" {
		t.Fatalf("unexpected overrides: %+v", cfg)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	for key, value := range map[string]string{
		"TRANSFER_RATE_LIMIT": "lots",
		"IDEMPOTENCY_TTL":     "forever",
		shutdownSecondsEnvVar: "ten",
		"ACCESS_TOKEN_TTL":    "1 hour",
	} {
		clearEnv(t)
		t.Setenv(key, value)
		if _, err := Load(); err == nil {
			t.Fatalf("%s=%q: expected error", key, value)
		}
	}
}

func TestLoadProductionRequiresBackends(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "production")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error without DATABASE_URL")
	}

	t.Setenv("DATABASE_URL", "postgres://localhost/evc")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("JWT_SECRET", "short")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for a short JWT secret")
	}

	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.IsDev() {
		t.Fatalf("production must not be treated as development")
	}
}
