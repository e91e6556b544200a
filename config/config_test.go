package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SERVER_BASE_URL", "")
	t.Setenv("GERRIT_PROBE_TIMEOUT", "")
	t.Setenv("DATASTORE_DRIVER", "")
	t.Setenv("HISTORY_RETENTION", "")
	t.Setenv("SWEEP_INTERVAL", "")
	t.Setenv("DATASTORE_DSN", "")
	t.Setenv("STATE_PATH", "/tmp/state")

	cfg := Load()
	if cfg.BackendBaseURL != "http://localhost:8001" {
		t.Fatalf("unexpected backend base url: %s", cfg.BackendBaseURL)
	}
	if cfg.GerritProbeTimeout != 8*time.Second {
		t.Fatalf("unexpected probe timeout: %s", cfg.GerritProbeTimeout)
	}
	if cfg.DataStoreDSN != filepath.Join("/tmp/state", "repo-gateway.db") {
		t.Fatalf("unexpected dsn: %s", cfg.DataStoreDSN)
	}
	if cfg.HistoryRetention != 30*24*time.Hour || cfg.SweepInterval != time.Hour {
		t.Fatalf("unexpected retention settings: %s every %s", cfg.HistoryRetention, cfg.SweepInterval)
	}
}

func TestLoadTrimsBackendURLAndClampsTimeout(t *testing.T) {
	t.Setenv("SERVER_BASE_URL", "http://backend:9000/")
	t.Setenv("GERRIT_PROBE_TIMEOUT", "1m")

	cfg := Load()
	if cfg.BackendBaseURL != "http://backend:9000" {
		t.Fatalf("trailing slash not trimmed: %s", cfg.BackendBaseURL)
	}
	if cfg.GerritProbeTimeout != maxProbeTimeout {
		t.Fatalf("expected clamp to %s got %s", maxProbeTimeout, cfg.GerritProbeTimeout)
	}

	t.Setenv("GERRIT_PROBE_TIMEOUT", "1s")
	if got := Load().GerritProbeTimeout; got != minProbeTimeout {
		t.Fatalf("expected clamp to %s got %s", minProbeTimeout, got)
	}
}

func TestLoadDotEnvKeepsExistingValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("RGW_DOTENV_FROM_FILE=file\nRGW_DOTENV_PRESET=file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("RGW_DOTENV_PRESET", "process")
	t.Cleanup(func() { _ = os.Unsetenv("RGW_DOTENV_FROM_FILE") })

	LoadDotEnv(path, filepath.Join(dir, "missing.env"))

	if got := os.Getenv("RGW_DOTENV_FROM_FILE"); got != "file" {
		t.Fatalf("expected value from file, got %q", got)
	}
	if got := os.Getenv("RGW_DOTENV_PRESET"); got != "process" {
		t.Fatalf("existing variable overwritten: %q", got)
	}
}
