// Package appconfig loads the node's bootstrap configuration: everything
// that must be known before a SettingsStore even exists (where its flash
// blob lives, which adapters to wire, where metrics are served).
package appconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the static bootstrap surface read once at process start. It is
// distinct from domain.Settings, which is the runtime-mutable, server- and
// flash-backed configuration the orchestrator patches live.
type Config struct {
	Metrics     MetricsConfig     `yaml:"metrics"`
	Storage     StorageConfig     `yaml:"storage"`
	Sensor      SensorConfig      `yaml:"sensor"`
	Cellular    CellularConfig    `yaml:"cellular"`
	WakePin     WakePinConfig     `yaml:"wake_pin"`
}

// MetricsConfig controls the Prometheus HTTP exporter.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// StorageConfig points at the flash-blob files this node persists across
// hibernate cycles.
type StorageConfig struct {
	SettingsPath     string `yaml:"settings_path"`
	RestartReasonPath string `yaml:"restart_reason_path"`
}

// SensorConfig selects the synthetic fallback sensor. Port is defaulted but
// not read by any component: the Modbus-RTU adapter always opens
// /dev/ttyRS485.
type SensorConfig struct {
	Simulated bool   `yaml:"simulated"`
	Port      string `yaml:"port"`
}

// CellularConfig is parsed but Simulated is not read by any component:
// SystemContext wires the simulated modem unless WithCellularModem supplies
// another one.
type CellularConfig struct {
	Simulated bool `yaml:"simulated"`
}

// WakePinConfig is informational metadata only: it is not included in
// status/config snapshots, and the BoardHAL does not gate on it.
type WakePinConfig struct {
	Pin int `yaml:"pin"`
}

// Load reads path, applies defaults for anything left zero, and validates
// the result.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}
	if c.Storage.SettingsPath == "" {
		c.Storage.SettingsPath = "./data/settings.bin"
	}
	if c.Storage.RestartReasonPath == "" {
		c.Storage.RestartReasonPath = "./data/restart_reason.bin"
	}
	if c.Sensor.Port == "" {
		c.Sensor.Port = "/dev/ttyRS485"
	}
	if c.WakePin.Pin == 0 {
		c.WakePin.Pin = 1
	}
}

func (c *Config) validate() error {
	if c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required")
	}
	if c.Storage.SettingsPath == "" {
		return fmt.Errorf("storage.settings_path is required")
	}
	if c.Storage.RestartReasonPath == "" {
		return fmt.Errorf("storage.restart_reason_path is required")
	}
	return nil
}
