// Package settingsstore implements the flash-backed settings collaborator:
// a single-record blob with a magic number and CRC32, adapted from the
// teacher's multi-record WAL framing down to one record since settings
// have no history to replay.
package settingsstore

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"sync"

	"github.com/VamoKnut/hastig/internal/domain"
	"github.com/VamoKnut/hastig/internal/ports"
)

// magic identifies a valid settings blob, matching the persisted-state
// contract's {magic, crc32, settings} envelope.
const magic uint32 = 0x53455453

// FlashStore persists Settings as {magic, crc32, json} in a single file,
// standing in for the last flash sector on the real board.
type FlashStore struct {
	mu       sync.RWMutex
	path     string
	settings domain.Settings
}

// Open loads settings from path, falling back to factory defaults when the
// file is missing, the magic doesn't match, or the CRC is invalid.
func Open(path string) (*FlashStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	fs := &FlashStore{path: path}
	settings, err := loadValidated(path)
	if err != nil {
		settings = domain.Defaults()
	}
	fs.settings = settings
	return fs, nil
}

func loadValidated(path string) (domain.Settings, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.Settings{}, err
	}
	if len(raw) < 8 {
		return domain.Settings{}, fmt.Errorf("settings blob too short")
	}
	gotMagic := binary.BigEndian.Uint32(raw[0:4])
	gotCRC := binary.BigEndian.Uint32(raw[4:8])
	body := raw[8:]
	if gotMagic != magic {
		return domain.Settings{}, fmt.Errorf("bad settings magic")
	}
	if crc32.ChecksumIEEE(body) != gotCRC {
		return domain.Settings{}, fmt.Errorf("bad settings crc")
	}
	var s domain.Settings
	if err := json.Unmarshal(body, &s); err != nil {
		return domain.Settings{}, err
	}
	return s, nil
}

// GetCopy returns a value snapshot, so concurrent readers never race a
// writer's JSON patch + flash save.
func (f *FlashStore) GetCopy() domain.Settings {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.settings
}

// ApplyJSON merges a partial JSON patch onto the current settings and
// persists the result. Unknown keys are ignored by json.Unmarshal's
// default behavior onto a named struct.
func (f *FlashStore) ApplyJSON(patch []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	merged := f.settings
	if err := json.Unmarshal(patch, &merged); err != nil {
		return fmt.Errorf("settings patch: %w", err)
	}
	merged.SamplePeriodMs = domain.ClampSamplePeriod(merged.SamplePeriodMs)
	f.settings = merged
	return f.saveLocked()
}

// Save persists the current in-memory settings.
func (f *FlashStore) Save() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saveLocked()
}

func (f *FlashStore) saveLocked() error {
	body, err := json.Marshal(f.settings)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	var hdr [8]byte
	binary.BigEndian.PutUint32(hdr[0:4], magic)
	binary.BigEndian.PutUint32(hdr[4:8], crc32.ChecksumIEEE(body))
	buf.Write(hdr[:])
	buf.Write(body)
	return os.WriteFile(f.path, buf.Bytes(), 0o644)
}

// FactoryReset resets in-memory settings to defaults and persists them.
func (f *FlashStore) FactoryReset() error {
	f.mu.Lock()
	f.settings = domain.Defaults()
	f.mu.Unlock()
	return f.Save()
}

var _ ports.SettingsStore = (*FlashStore)(nil)
