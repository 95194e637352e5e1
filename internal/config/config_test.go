package config

import (
	"strings"
	"testing"
	"time"
)

func setMinimalEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvJWTSecret, "secret")
}

func TestLoad_Defaults(t *testing.T) {
	setMinimalEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	if cfg.Store.Driver != DriverSQLite {
		t.Fatalf("expected sqlite driver, got %q", cfg.Store.Driver)
	}
	if cfg.App.Addr() != ":8080" {
		t.Fatalf("expected :8080, got %q", cfg.App.Addr())
	}
	if !cfg.App.IsDev() {
		t.Fatal("expected dev environment by default")
	}
	if cfg.Orders.MinLeadTime != 30*time.Minute {
		t.Fatalf("expected 30m lead time, got %v", cfg.Orders.MinLeadTime)
	}
	if cfg.Orders.MaxSaveAttempts != 3 || cfg.Orders.TopN != 5 {
		t.Fatalf("unexpected order defaults: %+v", cfg.Orders)
	}
	if cfg.JWT.TTL != 24*time.Hour || cfg.JWT.Issuer != "grouporder" {
		t.Fatalf("unexpected jwt defaults: ttl=%v issuer=%q", cfg.JWT.TTL, cfg.JWT.Issuer)
	}
	if len(cfg.CORS.AllowedOrigins) != 1 || cfg.CORS.AllowedOrigins[0] != "*" {
		t.Fatalf("unexpected cors origins: %v", cfg.CORS.AllowedOrigins)
	}
	if cfg.Redis.KeyPrefix != "grouporder" {
		t.Fatalf("unexpected redis prefix %q", cfg.Redis.KeyPrefix)
	}
}

func TestLoad_Overrides(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvStoreDriver, "Redis")
	t.Setenv(EnvRedisURL, "redis://localhost:6379/1")
	t.Setenv(EnvMinLeadTime, "45m")
	t.Setenv(EnvCORSOrigins, "https://a.example,https://b.example")
	t.Setenv(EnvAppPort, "9090")
	t.Setenv(EnvLogFormat, "json")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	if cfg.Store.Driver != DriverRedis {
		t.Fatalf("expected redis driver, got %q", cfg.Store.Driver)
	}
	if cfg.Orders.MinLeadTime != 45*time.Minute {
		t.Fatalf("expected 45m, got %v", cfg.Orders.MinLeadTime)
	}
	if len(cfg.CORS.AllowedOrigins) != 2 {
		t.Fatalf("expected 2 origins, got %v", cfg.CORS.AllowedOrigins)
	}
	if cfg.App.Addr() != ":9090" {
		t.Fatalf("expected :9090, got %q", cfg.App.Addr())
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "missing secret",
			env:     map[string]string{},
			wantErr: "JWT_SECRET",
		},
		{
			name:    "unknown driver",
			env:     map[string]string{EnvJWTSecret: "s", EnvStoreDriver: "mongo"},
			wantErr: EnvStoreDriver,
		},
		{
			name:    "postgres without dsn",
			env:     map[string]string{EnvJWTSecret: "s", EnvStoreDriver: "postgres"},
			wantErr: EnvPostgresDSN,
		},
		{
			name:    "redis without address",
			env:     map[string]string{EnvJWTSecret: "s", EnvStoreDriver: "redis"},
			wantErr: EnvRedisAddr,
		},
		{
			name:    "bad log level",
			env:     map[string]string{EnvJWTSecret: "s", EnvLogLevel: "verbose"},
			wantErr: EnvLogLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvJWTSecret, "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error mentioning %s, got %v", tt.wantErr, err)
			}
		})
	}
}
