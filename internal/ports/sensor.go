package ports

import "github.com/VamoKnut/hastig/internal/domain"

// Sensor is the external Modbus-RTU / simulated sensor collaborator.
// Implementations are selected at startup by configured sensor type.
type Sensor interface {
	Name() string
	Begin(settings domain.Settings) error
	Sample(relMs uint32) (domain.Sample, error)
	End() error
}

// SensorFactory builds a Sensor for a configured sensor type tag.
type SensorFactory func(sensorType int) (Sensor, error)
