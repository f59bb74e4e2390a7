package power

import (
	"testing"
	"time"

	"github.com/VamoKnut/hastig/internal/domain"
	"github.com/VamoKnut/hastig/internal/ports"
)

type fakeComms struct {
	prepared     bool
	loopCount    int
	shutdownDone bool
}

func (c *fakeComms) PrepareHibernate()    { c.prepared = true }
func (c *fakeComms) LoopOnce()            { c.loopCount++ }
func (c *fakeComms) ShutdownForHibernate() { c.shutdownDone = true }

type fakeController struct {
	enabled bool
	stopped bool
}

func (f *fakeController) SetEnabled(on bool) { f.enabled = on }
func (f *fakeController) Stop()              { f.stopped = true }

type fakeStopper struct{ stopped bool }

func (f *fakeStopper) Stop() { f.stopped = true }

type fakeRestartStore struct {
	written domain.RestartReason
}

func (f *fakeRestartStore) Read() domain.RestartReason { return domain.UnexpectedReboot }
func (f *fakeRestartStore) Write(r domain.RestartReason) error {
	f.written = r
	return nil
}

type fakeBoard struct {
	rtcDuration    time.Duration
	pinArmed       bool
	standByCalled  bool
	consoleFlushed bool
}

func (b *fakeBoard) SetSensorRailPower(bool) error       { return nil }
func (b *fakeBoard) SetAllPeripheralsPower(bool) error   { return nil }
func (b *fakeBoard) SetExternalPowerEnabled(bool) error  { return nil }
func (b *fakeBoard) EnableWakeupFromPin() error           { b.pinArmed = true; return nil }
func (b *fakeBoard) EnableWakeupFromRTC(d time.Duration) error {
	b.rtcDuration = d
	return nil
}
func (b *fakeBoard) StandByUntilWakeupEvent() error { b.standByCalled = true; return nil }
func (b *fakeBoard) FlushConsole() error            { b.consoleFlushed = true; return nil }

type nopObs struct{}

func (nopObs) LogInfo(string, ...ports.Field)                {}
func (nopObs) LogWarn(string, ...ports.Field)                {}
func (nopObs) LogError(string, error, ...ports.Field)        {}
func (nopObs) IncCounter(string, map[string]string, float64) {}
func (nopObs) SetGauge(string, map[string]string, float64)   {}
func (nopObs) ObserveLatency(string, float64)                {}

type instantClock struct{}

func (instantClock) NowMs() uint32       { return 0 }
func (instantClock) Sleep(time.Duration) {}

func newTestManager() (*Manager, *fakeComms, *fakeStopper, *fakeController, *fakeController, *fakeRestartStore, *fakeBoard) {
	comms := &fakeComms{}
	orch := &fakeStopper{}
	agg := &fakeController{}
	sampling := &fakeController{}
	restart := &fakeRestartStore{}
	board := &fakeBoard{}
	m := New(board, restart, comms, orch, agg, sampling, instantClock{}, nopObs{})
	return m, comms, orch, agg, sampling, restart, board
}

func TestRequestSleepIgnoredWhilePending(t *testing.T) {
	m, _, _, _, _, _, _ := newTestManager()
	m.RequestSleep(domain.HibernateForced, 100)
	m.RequestSleep(domain.HibernateInactivity, 999)

	if !m.Pending() {
		t.Fatalf("expected pending sleep request")
	}
	if m.req.reason != domain.HibernateForced || m.req.durationS != 100 {
		t.Fatalf("second request should not overwrite the first, got %+v", m.req)
	}
}

func TestRequestSleepClampsDuration(t *testing.T) {
	m, _, _, _, _, _, _ := newTestManager()
	m.RequestSleep(domain.HibernateForced, 1)
	if m.req.durationS != minSleepS {
		t.Fatalf("expected clamp to %d, got %d", minSleepS, m.req.durationS)
	}

	m2, _, _, _, _, _, _ := newTestManager()
	m2.RequestSleep(domain.HibernateForced, 999999)
	if m2.req.durationS != maxSleepS {
		t.Fatalf("expected clamp to %d, got %d", maxSleepS, m2.req.durationS)
	}
}

func TestServiceExecutesFullTransaction(t *testing.T) {
	m, comms, orch, agg, sampling, restart, board := newTestManager()
	m.RequestSleep(domain.HibernateForced, 120)

	if !m.Service() {
		t.Fatalf("expected Service to report it ran a transaction")
	}

	if !comms.prepared || !comms.shutdownDone {
		t.Fatalf("expected comms prepared and shut down, got %+v", comms)
	}
	if comms.loopCount == 0 {
		t.Fatalf("expected comms pumped during the grace window")
	}
	if agg.enabled || sampling.enabled {
		t.Fatalf("expected producers disabled")
	}
	if !orch.stopped || !agg.stopped || !sampling.stopped {
		t.Fatalf("expected orchestrator, aggregation, and sampling all stopped")
	}
	if restart.written != domain.Forced {
		t.Fatalf("expected persisted restart reason Forced, got %v", restart.written)
	}
	if board.rtcDuration != 120*time.Second {
		t.Fatalf("expected RTC alarm of 120s, got %v", board.rtcDuration)
	}
	if !board.pinArmed || !board.standByCalled || !board.consoleFlushed {
		t.Fatalf("expected wake pin armed, console flushed, standby entered, got %+v", board)
	}
	if m.Pending() || m.InProgress() {
		t.Fatalf("expected manager idle after transaction completes")
	}
}

func TestServiceNoopWithoutPendingRequest(t *testing.T) {
	m, comms, _, _, _, _, _ := newTestManager()
	if m.Service() {
		t.Fatalf("expected no transaction without a pending request")
	}
	if comms.prepared {
		t.Fatalf("expected comms untouched")
	}
}
