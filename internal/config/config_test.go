package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "DB_MAX_CONNS", "GEMINI_API_KEY", "GOOGLE_API_KEY", "LIVE_FEED_INTERVAL", "DEFAULT_FAULT_HOURS"} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ServerPort != "4000" || cfg.DBMaxConns != 10 || cfg.DefaultFaultHours != 24 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.LiveFeedInterval != 15*time.Second || cfg.GeminiAPIKey != "" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("AUTO_MIGRATE", "true")
	t.Setenv("DB_MAX_CONNS", "not-a-number")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "fallback-key")
	t.Setenv("LIVE_FEED_INTERVAL", "2s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ServerPort != "8080" || !cfg.AutoMigrate {
		t.Fatalf("expected overrides to apply: %+v", cfg)
	}
	if cfg.DBMaxConns != 10 {
		t.Fatalf("expected invalid int to fall back to default, got %d", cfg.DBMaxConns)
	}
	if cfg.GeminiAPIKey != "fallback-key" {
		t.Fatalf("expected GOOGLE_API_KEY fallback, got %q", cfg.GeminiAPIKey)
	}
	if cfg.LiveFeedInterval != 2*time.Second {
		t.Fatalf("unexpected interval: %s", cfg.LiveFeedInterval)
	}
}
