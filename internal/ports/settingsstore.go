package ports

import "github.com/VamoKnut/hastig/internal/domain"

// SettingsStore is the external flash-backed settings collaborator. All
// reads are value snapshots so a concurrent writer never races a reader
// mid publish/aggregate cycle.
type SettingsStore interface {
	GetCopy() domain.Settings
	ApplyJSON(patch []byte) error
	Save() error
	FactoryReset() error
}

// RestartReasonStore is the external backup-domain restart reason
// collaborator.
type RestartReasonStore interface {
	Read() domain.RestartReason
	Write(domain.RestartReason) error
}
