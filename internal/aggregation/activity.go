// Package aggregation implements the Aggregation Activity: drives the
// accumulator by wall-clock time window and forwards completed aggregates
// to the comms pump.
package aggregation

import (
	"sync"
	"time"

	"github.com/VamoKnut/hastig/internal/accumulator"
	"github.com/VamoKnut/hastig/internal/bus"
	"github.com/VamoKnut/hastig/internal/domain"
	"github.com/VamoKnut/hastig/internal/ports"
)

// pollInterval bounds window-boundary latency to at most this long, per the
// concurrency model's 50ms suspension budget.
const pollInterval = 50 * time.Millisecond

// Activity folds samples from the sensor→agg mailbox into windowed
// aggregates and forwards them to the agg→comms mailbox.
type Activity struct {
	bus      *bus.SystemBus
	settings ports.SettingsStore
	obs      ports.Observability

	mu      sync.Mutex
	enabled bool
	wake    chan struct{}
	stop    chan struct{}
}

func New(b *bus.SystemBus, settings ports.SettingsStore, obs ports.Observability) *Activity {
	return &Activity{
		bus:      b,
		settings: settings,
		obs:      obs,
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}
}

// SetEnabled toggles windowing. Idempotent, matching the sampling activity's
// contract.
func (a *Activity) SetEnabled(on bool) {
	a.mu.Lock()
	changed := a.enabled != on
	a.enabled = on
	a.mu.Unlock()
	if changed {
		select {
		case a.wake <- struct{}{}:
		default:
		}
	}
}

func (a *Activity) isEnabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enabled
}

// Run drives the activity goroutine until Stop is called.
func (a *Activity) Run(relMs func() uint32) func() {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-a.stop:
				return
			case <-a.wake:
				if a.isEnabled() {
					a.runWindows(relMs)
				}
			}
		}
	}()
	return func() { <-done }
}

func (a *Activity) Stop() { close(a.stop) }

// runWindows loops windows until disabled, each one wall-clock bounded to
// the settings-snapshotted aggPeriodS taken at window start.
func (a *Activity) runWindows(relMs func() uint32) {
	for a.isEnabled() {
		window := time.Duration(a.settings.GetCopy().AggPeriodS) * time.Second

		var acc accumulator.Accumulator
		acc.Reset(relMs())
		startWall := time.Now()

		for a.isEnabled() && time.Since(startWall) < window {
			select {
			case <-a.stop:
				return
			default:
			}
			s, ok := a.bus.SensorToAgg.TryGet()
			if ok {
				acc.Add(s)
				continue
			}
			time.Sleep(pollInterval)
		}

		var agg domain.Aggregate
		if !acc.Emit(&agg) {
			continue
		}
		if bus.PutDropCounted(a.bus.AggToComms, a.obs, agg) {
			a.publishWorkerEvent(agg)
		}
	}
}

func (a *Activity) publishWorkerEvent(agg domain.Aggregate) {
	bus.PutDropCounted(a.bus.WorkerToOrch, a.obs, domain.WorkerEvent{
		Type:  domain.AggregateReady,
		TsMs:  uint32(time.Now().UnixMilli()),
		RelMs: agg.RelEndMs,
		N:     agg.N,
		OK:    agg.OK,
	})
}
