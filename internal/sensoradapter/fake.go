package sensoradapter

import (
	"math"

	"github.com/VamoKnut/hastig/internal/domain"
	"github.com/VamoKnut/hastig/internal/ports"
)

// Fake is a synthetic single-channel sensor used for bench testing and CI
// without a physical RS485 bus attached. It always succeeds.
type Fake struct {
	k0 string
}

func NewFake() *Fake { return &Fake{k0: "temp"} }

func (f *Fake) Name() string { return "fake" }

func (f *Fake) Begin(settings domain.Settings) error { return nil }

func (f *Fake) Sample(relMs uint32) (domain.Sample, error) {
	// A slow sine wave around 20°C so windowed aggregates show visible
	// min/avg/max spread without a real bus.
	v := 20 + 5*float32(math.Sin(float64(relMs)/5000.0))
	return domain.Sample{RelMs: relMs, K0: f.k0, V0: v, OK: true}, nil
}

func (f *Fake) End() error { return nil }

var _ ports.Sensor = (*Fake)(nil)
