package config

import (
	"strings"
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Port != "8080" || cfg.Storage != StoragePostgres {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.DB.MaxConns != 20 || cfg.ShutdownTimeout != 10*time.Second {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Stats.AppName != "ewm-main-service" || cfg.Stats.Timeout != 2*time.Second {
		t.Fatalf("unexpected stats defaults %+v", cfg.Stats)
	}
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STORAGE", "memory")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_NAME", "ewm")
	t.Setenv("STATS_SERVER_URL", "http://stats:9090")
	t.Setenv("LOG_FORMAT", "text")

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Port != "9090" || cfg.Storage != StorageMemory || cfg.Log.Format != "text" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.Stats.ServerURL != "http://stats:9090" {
		t.Fatalf("expected stats url, got %q", cfg.Stats.ServerURL)
	}
	if !strings.Contains(cfg.DB.DSN(), "host=db.internal") || !strings.Contains(cfg.DB.DSN(), "dbname=ewm") {
		t.Fatalf("unexpected dsn %q", cfg.DB.DSN())
	}
}

func TestParseRejectsUnknownStorage(t *testing.T) {
	t.Setenv("STORAGE", "sqlite")

	if _, err := Parse(); err == nil {
		t.Fatal("expected error for unknown storage")
	}
}

func TestParseRejectsBadDuration(t *testing.T) {
	t.Setenv("STATS_TIMEOUT", "soon")

	_, err := Parse()
	if err == nil || !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env error, got %v", err)
	}
}

func TestParseSeedIDs(t *testing.T) {
	t.Setenv("SEED_USER_IDS", "1,2,3")
	t.Setenv("SEED_CATEGORY_IDS", "7")

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(cfg.SeedUsers) != 3 || cfg.SeedUsers[2] != 3 {
		t.Fatalf("expected users [1 2 3], got %v", cfg.SeedUsers)
	}
	if len(cfg.SeedCategories) != 1 || cfg.SeedCategories[0] != 7 {
		t.Fatalf("expected categories [7], got %v", cfg.SeedCategories)
	}
}
