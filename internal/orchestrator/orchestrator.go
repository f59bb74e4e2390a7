// Package orchestrator implements the top-level state machine: Aware,
// Sampling, Hibernating, plus the timers, activity tracking, command
// decoder, and hibernate-reason policy that drive every other component.
package orchestrator

import (
	"encoding/json"
	"time"

	"github.com/VamoKnut/hastig/internal/bus"
	"github.com/VamoKnut/hastig/internal/domain"
	"github.com/VamoKnut/hastig/internal/ports"
)

// State is one of the three orchestrator states.
type State int

const (
	Aware State = iota
	Sampling
	Hibernating
)

func (s State) String() string {
	switch s {
	case Aware:
		return "aware"
	case Sampling:
		return "sampling"
	case Hibernating:
		return "hibernate"
	default:
		return "unknown"
	}
}

const (
	mqttConnectTimeout   = 120 * time.Second
	noNetworkHibernateS  = 900
	pollTick             = 20 * time.Millisecond
)

// Enabler is the subset of the sampling/aggregation activities the
// orchestrator drives directly.
type Enabler interface {
	SetEnabled(bool)
}

// Sleeper is the subset of the power manager the orchestrator drives.
type Sleeper interface {
	RequestSleep(reason domain.HibernateReason, durationS uint32)
}

// OneShotRequester is satisfied by the sampling activity's one-shot path.
type OneShotRequester interface {
	RequestOneShot()
}

// Orchestrator owns the top-level state and every cross-cutting timer.
type Orchestrator struct {
	bus         *bus.SystemBus
	settings    ports.SettingsStore
	battery     ports.Battery
	sampling    Enabler
	aggregation Enabler
	oneShot     OneShotRequester
	power       Sleeper
	obs         ports.Observability
	clock       ports.Clock

	state     State
	prevState State
	bootMs    uint32
	session   domain.SessionRef

	lastActivityMs uint32
	lastStatusMs   uint32
	mqttUpMs       uint32

	lowBattArmed  bool
	emergencyAtMs uint32

	unackedAggregateCount uint32
	noNetworkHibernateFired bool

	stopped bool
}

func New(b *bus.SystemBus, settings ports.SettingsStore, battery ports.Battery, samplingAct, aggregationAct Enabler, oneShot OneShotRequester, power Sleeper, obs ports.Observability, clock ports.Clock) *Orchestrator {
	return &Orchestrator{
		bus:         b,
		settings:    settings,
		battery:     battery,
		sampling:    samplingAct,
		aggregation: aggregationAct,
		oneShot:     oneShot,
		power:       power,
		obs:         obs,
		clock:       clock,
		state:       Aware,
		prevState:   Aware,
	}
}

// Start enters the initial Aware state, matching the spec's "entered
// immediately after thread start" contract.
func (o *Orchestrator) Start(nowMs uint32) {
	o.bootMs = nowMs
	o.lastActivityMs = nowMs
	o.enterState(Aware, domain.HibernateInactivity, 0)
}

// Tick runs one 20ms iteration: poll one event (priority comms > worker >
// UI) then evaluate every timer.
func (o *Orchestrator) Tick(nowMs uint32) {
	if evt, ok := o.bus.TryGetNext(pollTick); ok {
		o.dispatch(nowMs, evt)
	}
	o.checkTimers(nowMs)
}

func (o *Orchestrator) dispatch(nowMs uint32, evt bus.OrchEvent) {
	o.lastActivityMs = nowMs
	switch evt.Kind {
	case bus.FromComms:
		o.handleCommsEvent(nowMs, evt.Comms)
	case bus.FromWorker:
		// Worker telemetry only refreshes activity; no further action.
	case bus.FromUi:
		// UI telemetry only refreshes activity; no further action.
	}
}

func (o *Orchestrator) handleCommsEvent(nowMs uint32, ce domain.CommsEvent) {
	switch ce.Type {
	case domain.MqttUp:
		o.mqttUpMs = nowMs
	case domain.MqttDown:
		o.mqttUpMs = 0
	case domain.ServerCommand:
		o.handleServerCommand(nowMs, ce.Payload)
	case domain.AggregatePublishAttempted:
		o.unackedAggregateCount++
	}
}

type serverCommand struct {
	Type             string  `json:"type"`
	SleepSeconds     *uint32 `json:"sleepSeconds"`
	SamplingInterval *uint32 `json:"samplingInterval"`
	AggPeriodS       *uint32 `json:"aggPeriodS"`
	SessionID        string  `json:"sessionID"`
}

// handleServerCommand decodes the inbound JSON `type` field and applies
// its effect, matching the spec's command table exactly plus the
// supplemented oneShotSample addition.
func (o *Orchestrator) handleServerCommand(nowMs uint32, payload []byte) {
	var cmd serverCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		o.obs.LogWarn("orchestrator: malformed command json")
		return
	}

	switch cmd.Type {
	case "keepSampling":
		o.unackedAggregateCount = 0
	case "nudge":
		// activity refresh already applied by dispatch
	case "startSampling":
		o.applyStartSamplingOverrides(cmd)
		o.startSession(cmd.SessionID)
		o.enterState(Sampling, domain.HibernateInactivity, 0)
	case "stopSampling":
		o.enterState(Aware, domain.HibernateInactivity, 0)
	case "getConfig":
		o.publishConfig(nowMs)
	case "hibernate":
		o.enterState(Hibernating, domain.HibernateForced, o.clampForcedSleep(cmd.SleepSeconds))
	case "resetBatteryStatistics":
		_ = o.battery.ResetStatistics()
	case "factoryReset":
		_ = o.settings.FactoryReset()
	case "oneShotSample":
		if o.oneShot != nil {
			o.oneShot.RequestOneShot()
		}
	default:
		o.obs.LogWarn("orchestrator: unknown command", ports.Field{Key: "type", Value: cmd.Type})
	}
}

func (o *Orchestrator) applyStartSamplingOverrides(cmd serverCommand) {
	if cmd.SamplingInterval == nil && cmd.AggPeriodS == nil {
		return
	}
	patch := map[string]any{}
	if cmd.SamplingInterval != nil {
		patch["samplePeriodMs"] = domain.ClampSamplePeriod(*cmd.SamplingInterval)
	}
	if cmd.AggPeriodS != nil {
		patch["aggPeriodS"] = *cmd.AggPeriodS
	}
	body, err := json.Marshal(patch)
	if err != nil {
		return
	}
	_ = o.settings.ApplyJSON(body)
}

func (o *Orchestrator) startSession(serverID string) {
	id := serverID
	if id == "" {
		id = domain.NewSessionID()
	}
	o.session = domain.SessionRef{RefMs: o.clock.NowMs(), SessionID: id}
}

func (o *Orchestrator) clampForcedSleep(sleepSeconds *uint32) uint32 {
	settings := o.settings.GetCopy()
	if sleepSeconds == nil {
		return settings.DefaultSleepS
	}
	s := *sleepSeconds
	if s < 1 {
		return settings.DefaultSleepS
	}
	if s > settings.MaxForcedSleepS {
		return settings.MaxForcedSleepS
	}
	return s
}

// checkTimers evaluates every per-tick timer in the spec's fixed order.
func (o *Orchestrator) checkTimers(nowMs uint32) {
	settings := o.settings.GetCopy()

	// 1. No-network hibernate gate.
	if !o.noNetworkHibernateFired && o.state != Hibernating &&
		nowMs-o.bootMs > uint32(mqttConnectTimeout.Milliseconds()) && o.mqttUpMs == 0 {
		o.noNetworkHibernateFired = true
		o.enterState(Hibernating, domain.HibernateNoNetwork, noNetworkHibernateS)
		return
	}

	// 2. Status cadence.
	if (o.state == Aware || o.state == Sampling) &&
		nowMs-o.lastStatusMs > settings.StatusIntervalS*1000 {
		o.lastStatusMs = nowMs
		o.publishStatus(nowMs)
	}

	// 3. Low-battery arm/disarm.
	voltage := o.battery.VoltageV()
	if voltage < settings.LowBattMinV {
		if !o.lowBattArmed {
			o.lowBattArmed = true
			o.emergencyAtMs = nowMs + settings.EmergencyDelayS*1000
			o.publishLowBatteryAlert(voltage, settings.LowBattMinV)
		}
	} else {
		o.lowBattArmed = false
	}

	// 4. Emergency fire.
	if o.state != Hibernating && o.lowBattArmed && nowMs >= o.emergencyAtMs {
		o.enterState(Hibernating, domain.HibernateEmergencyPowerSave, settings.EmergencySleepS)
		return
	}

	// 5. Inactivity hibernate.
	if (o.state == Aware || o.state == Sampling) &&
		nowMs-o.lastActivityMs > settings.AwareTimeoutS*1000 {
		o.enterState(Hibernating, domain.HibernateInactivity, settings.DefaultSleepS)
		return
	}

	// 6. Unacked limit.
	if o.state == Sampling {
		limit := settings.MaxUnackedPackets
		if limit < 1 {
			limit = 1
		}
		if o.unackedAggregateCount >= limit {
			o.enterState(Aware, domain.HibernateInactivity, 0)
		}
	}
}

// enterState applies the state-entry effects table and transitions.
func (o *Orchestrator) enterState(next State, reason domain.HibernateReason, durationS uint32) {
	prev := o.state
	o.prevState = prev
	o.state = next

	switch next {
	case Aware:
		o.sampling.SetEnabled(false)
		o.aggregation.SetEnabled(false)
		o.unackedAggregateCount = 0
		if prev != next {
			o.publishModeChange(next, prev, "", 0)
		} else {
			o.publishStatus(o.clock.NowMs())
		}
	case Sampling:
		o.sampling.SetEnabled(true)
		o.aggregation.SetEnabled(true)
		o.unackedAggregateCount = 0
		if prev != next {
			o.publishModeChange(next, prev, "", 0)
		}
	case Hibernating:
		o.sampling.SetEnabled(false)
		o.aggregation.SetEnabled(false)
		if prev != next {
			o.publishModeChange(next, prev, reason.String(), durationS)
		} else {
			o.publishHibernating(reason, durationS)
		}
		if o.power != nil {
			o.power.RequestSleep(reason, durationS)
		}
	}
}

func (o *Orchestrator) publishModeChange(next, prev State, reason string, durationS uint32) {
	payload := map[string]any{
		"type":         "modeChange",
		"mode":         next.String(),
		"previousMode": prev.String(),
	}
	if reason != "" {
		payload["reason"] = reason
		payload["expectedDuration"] = durationS
	}
	o.sendOrchCommand(domain.PublishAwake, payload)
}

func (o *Orchestrator) publishHibernating(reason domain.HibernateReason, durationS uint32) {
	payload := map[string]any{
		"type":             "modeChange",
		"mode":             Hibernating.String(),
		"reason":           reason.String(),
		"expectedDuration": durationS,
	}
	o.sendOrchCommand(domain.PublishHibernating, payload)
}

func (o *Orchestrator) publishStatus(nowMs uint32) {
	payload := map[string]any{
		"battV": o.battery.VoltageV(),
	}
	o.sendOrchCommand(domain.PublishAwake, payload)
}

func (o *Orchestrator) publishLowBatteryAlert(voltage, minimum float32) {
	payload := map[string]any{
		"type":           "alert",
		"message":        "low battery",
		"mode":           o.state.String(),
		"minimumVoltage": minimum,
		"voltage":        voltage,
	}
	o.sendOrchCommand(domain.PublishAwake, payload)
}

func (o *Orchestrator) publishConfig(nowMs uint32) {
	bus.PutDropCounted(o.bus.OrchToComms, o.obs, domain.OrchCommand{
		Type: domain.PublishConfig,
		TsMs: nowMs,
	})
}

func (o *Orchestrator) sendOrchCommand(t domain.OrchCommandType, payload map[string]any) {
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}
	bus.PutDropCounted(o.bus.OrchToComms, o.obs, domain.OrchCommand{
		Type:    t,
		TsMs:    o.clock.NowMs(),
		Payload: body,
	})
}

// State reports the current top-level state.
func (o *Orchestrator) State() State { return o.state }

// SetSleeper wires the power manager after construction, breaking the
// New/New constructor cycle between Orchestrator and power.Manager (the
// power manager needs a Stopper for the orchestrator, the orchestrator
// needs a Sleeper for the power manager).
func (o *Orchestrator) SetSleeper(power Sleeper) { o.power = power }

// Stop marks the orchestrator as terminated. It does not own a goroutine of
// its own (SystemContext drives Tick synchronously); this only flips the
// flag that SystemContext.Shutdown reads to skip stopping the activities a
// completed sleep transaction already stopped. The power manager calls it
// in the source's UI -> Orchestrator -> Aggregation -> Sampling order.
func (o *Orchestrator) Stop() { o.stopped = true }

// Stopped reports whether Stop has been called.
func (o *Orchestrator) Stopped() bool { return o.stopped }
