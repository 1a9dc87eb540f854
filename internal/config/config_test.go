package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeTempConfig(t, "version: 1\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Embedding.Dimension != 1536 {
		t.Errorf("Embedding.Dimension = %d, want 1536", cfg.Embedding.Dimension)
	}
	if cfg.Cache.TTL != time.Hour {
		t.Errorf("Cache.TTL = %v, want 1h", cfg.Cache.TTL)
	}
	if cfg.Router.Strategy != "round_robin" {
		t.Errorf("Router.Strategy = %q, want round_robin", cfg.Router.Strategy)
	}
	if cfg.RateLimit.DefaultRPM != 60 {
		t.Errorf("RateLimit.DefaultRPM = %d, want 60", cfg.RateLimit.DefaultRPM)
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeTempConfig(t, `
version: 1
embedding:
  dimension: 3072
  default_provider: openai
cache:
  ttl: 30m
  max_entries: 500
router:
  strategy: cost_optimized
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Embedding.Dimension != 3072 {
		t.Errorf("Embedding.Dimension = %d, want 3072", cfg.Embedding.Dimension)
	}
	if cfg.Cache.TTL != 30*time.Minute {
		t.Errorf("Cache.TTL = %v, want 30m", cfg.Cache.TTL)
	}
	if cfg.Cache.MaxEntries != 500 {
		t.Errorf("Cache.MaxEntries = %d, want 500", cfg.Cache.MaxEntries)
	}
	if cfg.Router.Strategy != "cost_optimized" {
		t.Errorf("Router.Strategy = %q, want cost_optimized", cfg.Router.Strategy)
	}
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	path := writeTempConfig(t, "version: 1\nbogus_key: true\n")

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown top-level field")
	}
}

func TestLoad_VersionMismatch(t *testing.T) {
	path := writeTempConfig(t, "version: 99\n")

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected version validation error")
	}
	var ve *VersionError
	if !asVersionError(err, &ve) {
		t.Fatalf("expected *VersionError, got %T: %v", err, err)
	}
}

func TestLoad_WithInclude(t *testing.T) {
	dir := t.TempDir()
	basePath := filepath.Join(dir, "base.yaml")
	mainPath := filepath.Join(dir, "main.yaml")

	if err := os.WriteFile(basePath, []byte("cache:\n  ttl: 15m\n"), 0o600); err != nil {
		t.Fatalf("write base config: %v", err)
	}
	if err := os.WriteFile(mainPath, []byte("version: 1\n$include: base.yaml\nrouter:\n  strategy: least_latency\n"), 0o600); err != nil {
		t.Fatalf("write main config: %v", err)
	}

	cfg, err := Load(mainPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Cache.TTL != 15*time.Minute {
		t.Errorf("Cache.TTL = %v, want 15m (from include)", cfg.Cache.TTL)
	}
	if cfg.Router.Strategy != "least_latency" {
		t.Errorf("Router.Strategy = %q, want least_latency", cfg.Router.Strategy)
	}
}

func asVersionError(err error, target **VersionError) bool {
	ve, ok := err.(*VersionError)
	if !ok {
		return false
	}
	*target = ve
	return true
}
