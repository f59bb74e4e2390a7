// Package restartreason persists the 32-bit restart reason code across a
// hibernate cycle, standing in for the board's backup-domain register.
package restartreason

import (
	"encoding/binary"
	"os"
	"path/filepath"

	"github.com/VamoKnut/hastig/internal/domain"
	"github.com/VamoKnut/hastig/internal/ports"
)

// Store persists the restart reason as a single 4-byte little-endian file,
// simulating a backup-domain register that survives deep standby.
type Store struct {
	path string
}

func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &Store{path: path}, nil
}

// Read returns UnexpectedReboot when no reason was ever persisted, matching
// a cold boot with no prior hibernate.
func (s *Store) Read() domain.RestartReason {
	raw, err := os.ReadFile(s.path)
	if err != nil || len(raw) < 4 {
		return domain.UnexpectedReboot
	}
	return domain.RestartReason(binary.LittleEndian.Uint32(raw))
}

func (s *Store) Write(reason domain.RestartReason) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(reason))
	return os.WriteFile(s.path, buf[:], 0o644)
}

var _ ports.RestartReasonStore = (*Store)(nil)
