package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, "addr: \":9090\"\nmax_workers: 8\nasset_timeout: 5s\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != ":9090" || cfg.MaxWorkers != 8 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.AssetTimeout != Duration(5*time.Second) {
		t.Errorf("asset_timeout = %v, want 5s", cfg.AssetTimeout)
	}
	// Untouched fields keep their defaults.
	if cfg.DefaultStrategy != "first" || cfg.Metadata != "metadata.json" {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoadRejectsBadWorkerCount(t *testing.T) {
	if _, err := Load(writeConfig(t, "max_workers: -2\n")); err == nil {
		t.Error("negative max_workers accepted")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("missing file accepted")
	}
}
