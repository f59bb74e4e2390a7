package aggregation

import (
	"testing"
	"time"

	"github.com/VamoKnut/hastig/internal/bus"
	"github.com/VamoKnut/hastig/internal/domain"
	"github.com/VamoKnut/hastig/internal/ports"
)

type fakeSettingsStore struct{ s domain.Settings }

func (f *fakeSettingsStore) GetCopy() domain.Settings { return f.s }
func (f *fakeSettingsStore) ApplyJSON([]byte) error    { return nil }
func (f *fakeSettingsStore) Save() error               { return nil }
func (f *fakeSettingsStore) FactoryReset() error       { return nil }

type nopObs struct{}

func (nopObs) LogInfo(string, ...ports.Field)                 {}
func (nopObs) LogWarn(string, ...ports.Field)                 {}
func (nopObs) LogError(string, error, ...ports.Field)         {}
func (nopObs) IncCounter(string, map[string]string, float64)  {}
func (nopObs) SetGauge(string, map[string]string, float64)    {}
func (nopObs) ObserveLatency(string, float64)                 {}

func TestAggregationActivityEmitsAfterWindow(t *testing.T) {
	b := bus.NewSystemBus(nopObs{})
	settings := domain.Defaults()
	settings.AggPeriodS = 1
	store := &fakeSettingsStore{s: settings}

	act := New(b, store, nopObs{})

	var now uint32
	waitDone := act.Run(func() uint32 { return now })
	act.SetEnabled(true)

	b.SensorToAgg.Put(domain.Sample{RelMs: 0, K0: "t", V0: 10, OK: true})
	b.SensorToAgg.Put(domain.Sample{RelMs: 500, K0: "t", V0: 20, OK: true})
	now = 1100

	deadline := time.Now().Add(2 * time.Second)
	for b.AggToComms.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	agg, ok := b.AggToComms.TryGet()
	if !ok {
		t.Fatalf("expected an emitted aggregate")
	}
	if agg.N != 2 || agg.V0Avg != 15 {
		t.Fatalf("unexpected aggregate: %+v", agg)
	}

	act.SetEnabled(false)
	act.Stop()
	waitDone()
}
