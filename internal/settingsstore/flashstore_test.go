package settingsstore

import (
	"os"
	"path/filepath"
	"testing"
)

func corruptLastByte(t *testing.T, path string) {
	t.Helper()
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read for corruption: %v", err)
	}
	raw[len(raw)-1] ^= 0xFF
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write corrupted: %v", err)
	}
}

func TestFlashStoreDefaultsWhenMissing(t *testing.T) {
	dir := t.TempDir()
	fs, err := Open(filepath.Join(dir, "settings.bin"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s := fs.GetCopy()
	if s.MqttHost == "" {
		t.Fatalf("expected default settings, got zero value")
	}
}

func TestFlashStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.bin")
	fs, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := fs.ApplyJSON([]byte(`{"deviceName":"unit-under-test","samplePeriodMs":50}`)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if fs.GetCopy().SamplePeriodMs != 200 {
		t.Fatalf("expected sample period clamped to 200, got %d", fs.GetCopy().SamplePeriodMs)
	}

	fs2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if fs2.GetCopy().DeviceName != "unit-under-test" {
		t.Fatalf("expected persisted device name, got %q", fs2.GetCopy().DeviceName)
	}
}

func TestFlashStoreCorruptCRCFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.bin")
	fs, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := fs.ApplyJSON([]byte(`{"deviceName":"corrupt-me"}`)); err != nil {
		t.Fatalf("apply: %v", err)
	}

	corruptLastByte(t, path)

	fs2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if fs2.GetCopy().DeviceName == "corrupt-me" {
		t.Fatalf("expected fallback to defaults after crc corruption")
	}
}
