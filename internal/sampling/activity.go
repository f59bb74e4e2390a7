// Package sampling implements the Sampling Activity: power, warm up, and
// poll the sensor, emitting samples onto the sensor→agg mailbox.
package sampling

import (
	"sync"
	"time"

	"github.com/VamoKnut/hastig/internal/bus"
	"github.com/VamoKnut/hastig/internal/domain"
	"github.com/VamoKnut/hastig/internal/ports"
)

const minSamplePeriodMs = 200

// Activity is the single-threaded sensor actor. It is driven by an
// enable/disable flag plus a one-shot request flag, replacing the source's
// RTOS event-flag word with a mutex-guarded flag and wake/one-shot channels.
type Activity struct {
	bus      *bus.SystemBus
	hal      ports.BoardHAL
	settings ports.SettingsStore
	clock    ports.Clock
	obs      ports.Observability
	newSensor ports.SensorFactory

	mu      sync.Mutex
	enabled bool
	wake    chan struct{}
	oneShot chan struct{}
	stop    chan struct{}

	sensor ports.Sensor
}

func New(b *bus.SystemBus, hal ports.BoardHAL, settings ports.SettingsStore, clock ports.Clock, obs ports.Observability, newSensor ports.SensorFactory) *Activity {
	return &Activity{
		bus:       b,
		hal:       hal,
		settings:  settings,
		clock:     clock,
		obs:       obs,
		newSensor: newSensor,
		wake:      make(chan struct{}, 1),
		oneShot:   make(chan struct{}, 1),
		stop:      make(chan struct{}),
	}
}

// SetEnabled toggles continuous sampling. It is idempotent: calling it
// twice with the same value has the same externally observable effect as
// calling it once.
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

// RequestOneShot asks for a single sample outside of (or alongside) a
// continuous sampling session. It is serialized onto the same activity
// goroutine via its own flag, per the one-shot/continuous concurrency
// decision this node makes explicit.
func (a *Activity) RequestOneShot() {
	select {
	case a.oneShot <- struct{}{}:
	default:
	}
}

func (a *Activity) isEnabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enabled
}

// Run drives the activity goroutine until Stop is called by the power
// manager's sleep transaction. It returns a function that blocks until the
// goroutine has exited.
func (a *Activity) Run(relMs func() uint32) func() {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-a.stop:
				return
			case <-a.oneShot:
				a.runOneShot(relMs)
			case <-a.wake:
				if a.isEnabled() {
					a.runSession(relMs)
				}
			}
		}
	}()
	return func() { <-done }
}

// Stop cancels the activity goroutine. Sampling in progress runs to its next
// suspension point (sensor end(), rail off) before exiting.
func (a *Activity) Stop() {
	close(a.stop)
}

// runSession powers and warms the sensor, then samples continuously until
// SetEnabled(false) is observed.
func (a *Activity) runSession(relMs func() uint32) {
	settings := a.settings.GetCopy()
	if err := a.beginSensor(settings); err != nil {
		a.obs.LogError("sampling: begin failed", err)
		return
	}
	defer a.endSensor()

	period := time.Duration(clampPeriod(settings.SamplePeriodMs)) * time.Millisecond

	for a.isEnabled() {
		s, err := a.sensor.Sample(relMs())
		if err != nil {
			a.obs.LogWarn("sampling: sample failed", ports.Field{Key: "err", Value: err.Error()})
		} else if s.OK {
			if bus.PutDropCounted(a.bus.SensorToAgg, a.obs, s) {
				a.publishWorkerEvent(s)
			}
		}
		a.clock.Sleep(period)
	}
}

func (a *Activity) runOneShot(relMs func() uint32) {
	settings := a.settings.GetCopy()
	wasRunning := a.sensor != nil
	if !wasRunning {
		if err := a.beginSensor(settings); err != nil {
			a.obs.LogError("sampling: one-shot begin failed", err)
			return
		}
		defer a.endSensor()
	}

	s, err := a.sensor.Sample(relMs())
	if err != nil {
		a.obs.LogWarn("sampling: one-shot sample failed", ports.Field{Key: "err", Value: err.Error()})
		return
	}
	bus.PutDropCounted(a.bus.OneShot, a.obs, s)
	a.publishWorkerEvent(s)
}

func (a *Activity) beginSensor(settings domain.Settings) error {
	if err := a.hal.SetSensorRailPower(true); err != nil {
		return err
	}
	a.clock.Sleep(time.Duration(settings.SensorWarmupMs) * time.Millisecond)

	sensor, err := a.newSensor(settings.SensorType)
	if err != nil {
		_ = a.hal.SetSensorRailPower(false)
		return err
	}
	if err := sensor.Begin(settings); err != nil {
		_ = a.hal.SetSensorRailPower(false)
		return err
	}
	a.sensor = sensor
	return nil
}

func (a *Activity) endSensor() {
	if a.sensor == nil {
		return
	}
	_ = a.sensor.End()
	a.sensor = nil
	_ = a.hal.SetSensorRailPower(false)
}

func (a *Activity) publishWorkerEvent(s domain.Sample) {
	bus.PutDropCounted(a.bus.WorkerToOrch, a.obs, domain.WorkerEvent{
		Type:  domain.SampleTaken,
		TsMs:  uint32(time.Now().UnixMilli()),
		RelMs: s.RelMs,
		N:     1,
		OK:    s.OK,
	})
}

// clampPeriod enforces the minimum sample period silently.
func clampPeriod(ms uint32) uint32 {
	if ms < minSamplePeriodMs {
		return minSamplePeriodMs
	}
	return ms
}
