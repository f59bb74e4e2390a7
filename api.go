package hastig

import (
	base "github.com/VamoKnut/hastig/pkg/hastig"
)

// Type aliases so consumers can import github.com/VamoKnut/hastig directly
// instead of the pkg/hastig subpackage.
type (
	Config         = base.Config
	Node           = base.Node
	Observability  = base.Observability
	CellularModem  = base.CellularModem
	MQTTClient     = base.MQTTClient
	BoardHAL       = base.BoardHAL
	Battery        = base.Battery
	SensorFactory  = base.SensorFactory
	SettingsStore  = base.SettingsStore
	Clock          = base.Clock
)

// LoadConfig reads and validates a Config from a YAML file.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

// New builds a Node against cfg.
func New(cfg *Config, opts ...Option) (*Node, error) {
	return base.New(cfg, opts...)
}

// Option is the node's functional-options type, re-exported for embedders.
type Option = base.Option

func WithObservability(obs Observability) Option {
	return base.WithObservability(obs)
}

func WithCellularModem(m CellularModem) Option {
	return base.WithCellularModem(m)
}

func WithMQTTFactory(f func(host string, port int, clientID, user, pass string) MQTTClient) Option {
	return base.WithMQTTFactory(f)
}

func WithBoard(b interface {
	BoardHAL
	Battery
}) Option {
	return base.WithBoard(b)
}

func WithSensorFactory(f SensorFactory) Option { return base.WithSensorFactory(f) }

func WithSettingsStore(s SettingsStore) Option { return base.WithSettingsStore(s) }

func WithClock(c Clock) Option { return base.WithClock(c) }
