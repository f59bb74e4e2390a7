package sampling

import (
	"testing"
	"time"

	"github.com/VamoKnut/hastig/internal/bus"
	"github.com/VamoKnut/hastig/internal/domain"
	"github.com/VamoKnut/hastig/internal/ports"
	"github.com/VamoKnut/hastig/internal/sensoradapter"
)

type fakeHAL struct{ railOn bool }

func (f *fakeHAL) SetSensorRailPower(on bool) error      { f.railOn = on; return nil }
func (f *fakeHAL) SetAllPeripheralsPower(on bool) error  { return nil }
func (f *fakeHAL) SetExternalPowerEnabled(on bool) error { return nil }
func (f *fakeHAL) EnableWakeupFromPin() error            { return nil }
func (f *fakeHAL) EnableWakeupFromRTC(time.Duration) error { return nil }
func (f *fakeHAL) StandByUntilWakeupEvent() error        { return nil }
func (f *fakeHAL) FlushConsole() error                   { return nil }

type instantClock struct{}

func (instantClock) NowMs() uint32       { return 0 }
func (instantClock) Sleep(time.Duration) {}

type fakeSettingsStore struct{ s domain.Settings }

func (f *fakeSettingsStore) GetCopy() domain.Settings   { return f.s }
func (f *fakeSettingsStore) ApplyJSON([]byte) error     { return nil }
func (f *fakeSettingsStore) Save() error                { return nil }
func (f *fakeSettingsStore) FactoryReset() error        { return nil }

type nopObs struct{}

func (nopObs) LogInfo(string, ...ports.Field)             {}
func (nopObs) LogWarn(string, ...ports.Field)             {}
func (nopObs) LogError(string, error, ...ports.Field)     {}
func (nopObs) IncCounter(string, map[string]string, float64)  {}
func (nopObs) SetGauge(string, map[string]string, float64)    {}
func (nopObs) ObserveLatency(string, float64)             {}

func TestSamplingActivityEmitsOnEnable(t *testing.T) {
	b := bus.NewSystemBus(nopObs{})
	hal := &fakeHAL{}
	store := &fakeSettingsStore{s: domain.Defaults()}
	act := New(b, hal, store, instantClock{}, nopObs{}, func(int) (ports.Sensor, error) { return sensoradapter.NewFake(), nil })

	waitDone := act.Run(func() uint32 { return 0 })
	act.SetEnabled(true)

	deadline := time.Now().Add(time.Second)
	for b.SensorToAgg.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if b.SensorToAgg.Len() == 0 {
		t.Fatalf("expected at least one sample published")
	}

	act.SetEnabled(false)
	act.Stop()
	waitDone()

	if hal.railOn {
		t.Fatalf("expected sensor rail powered off after disable")
	}
}

func TestSamplingActivityIdempotentEnable(t *testing.T) {
	b := bus.NewSystemBus(nopObs{})
	hal := &fakeHAL{}
	store := &fakeSettingsStore{s: domain.Defaults()}
	act := New(b, hal, store, instantClock{}, nopObs{}, func(int) (ports.Sensor, error) { return sensoradapter.NewFake(), nil })

	waitDone := act.Run(func() uint32 { return 0 })
	act.SetEnabled(true)
	act.SetEnabled(true)

	time.Sleep(10 * time.Millisecond)
	act.SetEnabled(false)
	act.Stop()
	waitDone()
}
