// Package hastig is the node's public embedding surface: load a Config,
// build a Node with Option overrides, and Run it. Everything under
// internal/ is wiring detail; this package and the root-level re-exports in
// api.go are the supported way to embed the node in another Go program.
package hastig

import (
	"context"
	"fmt"

	"github.com/VamoKnut/hastig/internal/appconfig"
	"github.com/VamoKnut/hastig/internal/ports"
	"github.com/VamoKnut/hastig/internal/system"
)

// Config is the node's bootstrap configuration.
type Config = appconfig.Config

// LoadConfig reads and validates a Config from a YAML file.
func LoadConfig(path string) (*Config, error) {
	return appconfig.Load(path)
}

// Observability, CellularModem, MQTTClient, BoardHAL, and Battery are
// re-exported so callers can implement their own adapters without
// importing internal/ports directly.
type (
	Observability = ports.Observability
	CellularModem = ports.CellularModem
	MQTTClient    = ports.MQTTClient
	BoardHAL      = ports.BoardHAL
	Battery       = ports.Battery
)

// Option customizes the adapters a Node wires by default.
type Option = system.ContextOption

// Node wraps a fully wired system.SystemContext and exposes the lifecycle
// hooks an embedder needs.
type Node struct {
	sc *system.SystemContext
}

// New builds a Node against cfg, applying any Option overrides.
func New(cfg *Config, opts ...Option) (*Node, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	sc, err := system.New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &Node{sc: sc}, nil
}

// WithObservability plugs in a custom Observability backend.
func WithObservability(obs Observability) Option {
	return system.WithObservability(obs)
}

// WithCellularModem overrides the default simulated cellular modem.
func WithCellularModem(m CellularModem) Option {
	return system.WithCellularModem(m)
}

// WithMQTTFactory overrides the default paho-backed MQTT client factory.
func WithMQTTFactory(f func(host string, port int, clientID, user, pass string) MQTTClient) Option {
	return system.WithMQTTFactory(f)
}

// WithBoard overrides the default simulated board HAL/battery.
func WithBoard(b interface {
	BoardHAL
	Battery
}) Option {
	return system.WithBoard(b)
}

// SensorFactory builds a Sensor for a configured sensor type tag.
type SensorFactory = ports.SensorFactory

// SettingsStore persists and retrieves the node's Settings blob.
type SettingsStore = ports.SettingsStore

// Clock abstracts wall time so orchestrator/comms-pump timers are testable.
type Clock = ports.Clock

// WithSensorFactory overrides the default sensor factory.
func WithSensorFactory(f SensorFactory) Option {
	return system.WithSensorFactory(f)
}

// WithSettingsStore overrides the default flash-backed settings store.
func WithSettingsStore(s SettingsStore) Option {
	return system.WithSettingsStore(s)
}

// WithClock overrides the default wall clock.
func WithClock(c Clock) Option {
	return system.WithClock(c)
}

// Start launches the node's activities and metrics server without blocking.
func (n *Node) Start() { n.sc.Start() }

// Run starts the node and blocks, driving the cooperative main loop until
// ctx is cancelled or the power manager executes a sleep transaction.
func (n *Node) Run(ctx context.Context) error { return n.sc.Run(ctx) }

// Shutdown stops the node's activity goroutines and metrics server.
func (n *Node) Shutdown(ctx context.Context) error { return n.sc.Shutdown(ctx) }
