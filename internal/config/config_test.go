package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.DBMaxRetries != 3 {
		t.Errorf("DBMaxRetries = %d, want 3", cfg.DBMaxRetries)
	}
	if cfg.DBRetryDelay != 2500*time.Millisecond {
		t.Errorf("DBRetryDelay = %s, want 2.5s", cfg.DBRetryDelay)
	}
	if cfg.DBQueryTimeout != 30*time.Second {
		t.Errorf("DBQueryTimeout = %s, want 30s", cfg.DBQueryTimeout)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_NAME", "sponsors")
	t.Setenv("DB_RETRY_DELAY", "1s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBHost != "db.internal" {
		t.Errorf("DBHost = %q", cfg.DBHost)
	}
	if cfg.DBRetryDelay != time.Second {
		t.Errorf("DBRetryDelay = %s, want 1s", cfg.DBRetryDelay)
	}

	dsn := cfg.DSN()
	for _, part := range []string{"host=db.internal", "dbname=sponsors"} {
		if !strings.Contains(dsn, part) {
			t.Errorf("DSN %q missing %q", dsn, part)
		}
	}
}
