// Package power executes the sleep transaction: the sequence of comms
// draining, producer shutdown, restart-reason persistence, and platform
// deep-standby that the orchestrator arms via RequestSleep and the system
// loop drives to completion via Service.
package power

import (
	"sync"
	"time"

	"github.com/VamoKnut/hastig/internal/domain"
	"github.com/VamoKnut/hastig/internal/ports"
)

const (
	minSleepS = 5
	maxSleepS = 43200 // 12h safety cap

	hibernateStatusGrace = 1500 * time.Millisecond
	graceLoopTick        = 20 * time.Millisecond
)

// Comms is the subset of the comms pump the sleep transaction drives
// directly: pause new connects, keep pumping during the grace window, then
// tear down without a full modem END.
type Comms interface {
	PrepareHibernate()
	LoopOnce()
	ShutdownForHibernate()
}

// ActivityController is satisfied by the sampling and aggregation
// activities: disabled first, stopped second.
type ActivityController interface {
	SetEnabled(bool)
	Stop()
}

// Stopper is satisfied by the orchestrator, which has no enable/disable
// state of its own but must stop ticking before aggregation and sampling do.
type Stopper interface {
	Stop()
}

type sleepRequest struct {
	reason    domain.HibernateReason
	durationS uint32
}

// Manager owns the pending/in-progress sleep-request state machine. A
// request is armed by RequestSleep from any goroutine; Service, polled from
// the system loop, executes it to completion.
type Manager struct {
	board         ports.BoardHAL
	restartReason ports.RestartReasonStore
	comms         Comms
	orchestrator  Stopper
	aggregation   ActivityController
	sampling      ActivityController
	clock         ports.Clock
	obs           ports.Observability

	mu         sync.Mutex
	pending    bool
	inProgress bool
	req        sleepRequest
}

// New wires a Manager against its collaborators. No wake pin is passed in:
// EnableWakeupFromPin takes no pin argument, matching how the reference board
// exposes a single fixed wake-capable GPIO.
func New(board ports.BoardHAL, restartReason ports.RestartReasonStore, comms Comms, orchestrator Stopper, aggregation, sampling ActivityController, clock ports.Clock, obs ports.Observability) *Manager {
	return &Manager{
		board:         board,
		restartReason: restartReason,
		comms:         comms,
		orchestrator:  orchestrator,
		aggregation:   aggregation,
		sampling:      sampling,
		clock:         clock,
		obs:           obs,
	}
}

func clampSleepS(s uint32) uint32 {
	if s < minSleepS {
		return minSleepS
	}
	if s > maxSleepS {
		return maxSleepS
	}
	return s
}

// RequestSleep arms a sleep transaction. A request already pending or in
// progress is left untouched: the orchestrator only ever needs one active
// hibernate at a time, and a second call (e.g. a repeated emergency-battery
// tick) must not restart the clamp or overwrite the first reason.
func (m *Manager) RequestSleep(reason domain.HibernateReason, durationS uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending || m.inProgress {
		return
	}
	m.req = sleepRequest{reason: reason, durationS: clampSleepS(durationS)}
	m.pending = true
}

// Service should be polled frequently (every tick) from the system loop. It
// returns true once it has executed a full sleep transaction. On real
// hardware StandByUntilWakeupEvent does not return, so a true result should
// never actually reach the caller outside of tests and the simulated
// BoardHAL.
func (m *Manager) Service() bool {
	m.mu.Lock()
	if !m.pending {
		m.mu.Unlock()
		return false
	}
	m.pending = false
	m.inProgress = true
	req := m.req
	m.mu.Unlock()

	m.obs.LogInfo("power: sleep requested",
		ports.Field{Key: "reason", Value: req.reason.String()},
		ports.Field{Key: "durationS", Value: req.durationS})

	m.comms.PrepareHibernate()

	graceDeadline := time.Now().Add(hibernateStatusGrace)
	for time.Now().Before(graceDeadline) {
		m.comms.LoopOnce()
		m.clock.Sleep(graceLoopTick)
	}

	m.obs.LogInfo("power: disabling producers")
	m.sampling.SetEnabled(false)
	m.aggregation.SetEnabled(false)

	m.obs.LogInfo("power: stopping threads")
	m.orchestrator.Stop()
	m.aggregation.Stop()
	m.sampling.Stop()

	m.obs.LogInfo("power: shutting down comms")
	m.comms.ShutdownForHibernate()

	m.obs.LogInfo("power: persisting restart reason")
	if err := m.restartReason.Write(req.reason.RestartReasonFor()); err != nil {
		m.obs.LogError("power: failed to persist restart reason", err)
	}

	m.obs.LogInfo("power: entering standby",
		ports.Field{Key: "durationS", Value: req.durationS})
	_ = m.board.FlushConsole()
	if err := m.board.EnableWakeupFromPin(); err != nil {
		m.obs.LogError("power: enable wakeup pin failed", err)
	}
	if err := m.board.EnableWakeupFromRTC(time.Duration(req.durationS) * time.Second); err != nil {
		m.obs.LogError("power: enable wakeup rtc failed", err)
	}
	if err := m.board.StandByUntilWakeupEvent(); err != nil {
		m.obs.LogError("power: standby returned with error", err)
	}

	m.obs.LogWarn("power: returned from hibernate (unexpected)")
	m.mu.Lock()
	m.inProgress = false
	m.mu.Unlock()
	return true
}

// Pending reports whether a sleep request is armed but not yet executing.
func (m *Manager) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending
}

// InProgress reports whether the sleep transaction is currently executing.
func (m *Manager) InProgress() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inProgress
}
