package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.AppEnv != "development" {
		t.Errorf("expected default AppEnv 'development', got %s", cfg.AppEnv)
	}

	if cfg.AppPort != 8080 {
		t.Errorf("expected default AppPort 8080, got %d", cfg.AppPort)
	}

	if cfg.KVBackend != BackendRedis {
		t.Errorf("expected default KVBackend %q, got %q", BackendRedis, cfg.KVBackend)
	}

	if cfg.ClickRateLimit != 100 {
		t.Errorf("expected default ClickRateLimit 100, got %d", cfg.ClickRateLimit)
	}

	if cfg.ClickRateWindow != time.Minute {
		t.Errorf("expected default ClickRateWindow 1m, got %s", cfg.ClickRateWindow)
	}

	if cfg.ProductionCacheTTL != 24*time.Hour {
		t.Errorf("expected default ProductionCacheTTL 24h, got %s", cfg.ProductionCacheTTL)
	}

	if cfg.ArchiveConfigured() {
		t.Error("archive should not be configured by default")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("KV_BACKEND", "badger")
	t.Setenv("BADGER_DIR", "/var/lib/tracking")
	t.Setenv("ADMIN_SECRET", "s3cret")
	t.Setenv("CLICK_RATE_LIMIT", "5")
	t.Setenv("CLICK_RATE_WINDOW", "10s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.KVBackend != BackendBadger || cfg.BadgerDir != "/var/lib/tracking" {
		t.Errorf("unexpected badger settings: %q %q", cfg.KVBackend, cfg.BadgerDir)
	}
	if cfg.AdminSecret != "s3cret" {
		t.Errorf("expected AdminSecret to be set, got %q", cfg.AdminSecret)
	}
	if cfg.ClickRateLimit != 5 || cfg.ClickRateWindow != 10*time.Second {
		t.Errorf("unexpected rate limit settings: %d %s", cfg.ClickRateLimit, cfg.ClickRateWindow)
	}
}

func TestLoad_InvalidBackend(t *testing.T) {
	t.Setenv("KV_BACKEND", "memcached")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown KV_BACKEND, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			KVBackend:          BackendRedis,
			LogFormat:          "json",
			ClickRateLimit:     100,
			ClickRateWindow:    time.Minute,
			ProductionCacheTTL: 24 * time.Hour,
			ProxyRateLimit:     30,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"text log format", func(c *Config) { c.LogFormat = "text" }, false},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, true},
		{"zero rate limit", func(c *Config) { c.ClickRateLimit = 0 }, true},
		{"zero window", func(c *Config) { c.ClickRateWindow = 0 }, true},
		{"zero cache ttl", func(c *Config) { c.ProductionCacheTTL = 0 }, true},
		{"archive without database", func(c *Config) { c.ArchiveEnabled = true }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ArchiveConfigured(t *testing.T) {
	cfg := &Config{ArchiveEnabled: true, DatabaseURL: "postgres://localhost/archive", KVBackend: BackendRedis}
	if !cfg.ArchiveConfigured() {
		t.Error("expected archive to be configured")
	}

	cfg.KVBackend = BackendBadger
	if cfg.ArchiveConfigured() {
		t.Error("archive requires the redis backend")
	}
}

func TestConfig_IsDevelopment(t *testing.T) {
	cfg := &Config{AppEnv: "development"}
	if !cfg.IsDevelopment() {
		t.Error("expected IsDevelopment to return true")
	}

	cfg.AppEnv = "production"
	if cfg.IsDevelopment() {
		t.Error("expected IsDevelopment to return false")
	}
	if !cfg.IsProduction() {
		t.Error("expected IsProduction to return true")
	}
}
