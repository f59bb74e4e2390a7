package appconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "metrics:\n  addr: \":9200\"\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Metrics.Addr != ":9200" {
		t.Fatalf("expected explicit addr preserved, got %s", cfg.Metrics.Addr)
	}
	if cfg.Storage.SettingsPath == "" || cfg.Storage.RestartReasonPath == "" {
		t.Fatalf("expected storage path defaults applied, got %+v", cfg.Storage)
	}
	if cfg.Sensor.Port == "" {
		t.Fatalf("expected sensor port default applied")
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
