package sensoradapter

import (
	"testing"

	"github.com/VamoKnut/hastig/internal/domain"
)

func TestFakeSensorSamplesOK(t *testing.T) {
	f := NewFake()
	if err := f.Begin(domain.Defaults()); err != nil {
		t.Fatalf("begin: %v", err)
	}
	s, err := f.Sample(0)
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if !s.OK || s.K0 == "" {
		t.Fatalf("unexpected sample: %+v", s)
	}
	if err := f.End(); err != nil {
		t.Fatalf("end: %v", err)
	}
}

func TestNewSensorFactorySelectsFakeByDefault(t *testing.T) {
	s, err := NewSensor(int(TypeFake))
	if err != nil {
		t.Fatalf("new sensor: %v", err)
	}
	if s.Name() != "fake" {
		t.Fatalf("expected fake sensor, got %s", s.Name())
	}
}
