// Package commspump implements the Comms Pump: the cellular → TCP → MQTT
// lifecycle state machine, polled from a cooperative main-context tick via
// LoopOnce, since the cellular driver on the original hardware is only
// safe to call from that context.
package commspump

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/VamoKnut/hastig/internal/bus"
	"github.com/VamoKnut/hastig/internal/deviceid"
	"github.com/VamoKnut/hastig/internal/domain"
	"github.com/VamoKnut/hastig/internal/ports"
)

const (
	netFailBackoffShort   = 1500 * time.Millisecond
	netFailBackoffLong    = 5 * time.Second
	netFailBackoffCutover = 5
	netFailResetEvery     = 3
	tcpConnectRetries     = 3
	tcpRetryDelay         = time.Second
	maxPublishBytes       = 320
	maxClientBufferBytes  = 512
	configSnapshotSections = 5
)

// Pump is the single-threaded protocol state machine described by the
// spec's per-tick sequence. It has no goroutine of its own: the caller
// (SystemContext's cooperative loop) drives LoopOnce.
type Pump struct {
	bus      *bus.SystemBus
	settings ports.SettingsStore
	modem    ports.CellularModem
	newMQTT  func(host string, port int, clientID, user, pass string) ports.MQTTClient
	obs      ports.Observability
	clock    ports.Clock

	wantConnected      bool
	hibernatePending   bool
	netConnected       bool
	mqttConnected      bool
	subscriptionsReady bool

	netFailCount int
	mqtt         ports.MQTTClient
	nodeID       string
}

// New wires a Pump. newMQTT is a factory rather than a fixed client because
// a settings change (host/port/creds) requires a fresh client on next
// connect attempt.
func New(b *bus.SystemBus, settings ports.SettingsStore, modem ports.CellularModem, obs ports.Observability, clock ports.Clock, newMQTT func(host string, port int, clientID, user, pass string) ports.MQTTClient) *Pump {
	return &Pump{
		bus:         b,
		settings:    settings,
		modem:       modem,
		newMQTT:     newMQTT,
		obs:         obs,
		clock:       clock,
		wantConnected: true,
	}
}

// LoopOnce runs one tick of the pump: drain commands, drive the network and
// MQTT state machines, then drain and publish aggregates.
func (p *Pump) LoopOnce() {
	for {
		cmd, ok := p.bus.OrchToComms.TryGet()
		if !ok {
			break
		}
		p.handleOrchCommand(cmd)
	}

	if p.wantConnected && !p.hibernatePending {
		if !p.netConnected {
			if err := p.ensureNetwork(); err != nil {
				p.obs.LogWarn("comms: network attach failed", ports.Field{Key: "err", Value: err.Error()})
			}
		}
		if p.netConnected && !p.mqttConnected {
			if err := p.ensureMqtt(); err != nil {
				p.obs.LogWarn("comms: mqtt connect failed", ports.Field{Key: "err", Value: err.Error()})
			}
		}
		if p.mqttConnected && !p.mqtt.IsConnected() {
			p.teardownLinks(false)
			p.emitComms(domain.MqttDown, "", nil)
		}
	}

	for {
		agg, ok := p.bus.AggToComms.TryGet()
		if !ok {
			break
		}
		if err := p.publishAggregate(agg); err != nil {
			p.obs.LogWarn("comms: publish aggregate failed", ports.Field{Key: "err", Value: err.Error()})
		}
		p.emitComms(domain.AggregatePublishAttempted, "", nil)
	}

	for {
		s, ok := p.bus.OneShot.TryGet()
		if !ok {
			break
		}
		if err := p.PublishOneShot(s); err != nil {
			p.obs.LogWarn("comms: publish one-shot failed", ports.Field{Key: "err", Value: err.Error()})
		}
	}
}

func (p *Pump) emitComms(t domain.CommsEventType, topic string, payload []byte) {
	bus.PutDropCounted(p.bus.CommsToOrch, p.obs, domain.CommsEvent{
		Type:    t,
		TsMs:    uint32(time.Now().UnixMilli()),
		Topic:   topic,
		Payload: payload,
	})
}

// ensureNetwork attaches the modem to the packet network, applying the
// backoff and every-third-failure reset the original firmware uses.
func (p *Pump) ensureNetwork() error {
	settings := p.settings.GetCopy()
	err := p.modem.Attach(settings.APN, settings.ApnUser, settings.ApnPass, 30*time.Second)
	if err != nil {
		p.netFailCount++
		backoff := netFailBackoffShort
		if p.netFailCount >= netFailBackoffCutover {
			backoff = netFailBackoffLong
		}
		if p.netFailCount%netFailResetEvery == 0 {
			_ = p.modem.Reset()
		}
		p.clock.Sleep(backoff)
		return err
	}
	p.netFailCount = 0
	p.netConnected = true
	p.emitComms(domain.NetUp, "", nil)
	return nil
}

// ensureMqtt dials TCP (retried), CONNECTs, and subscribes cmd+cfg.
func (p *Pump) ensureMqtt() error {
	settings := p.settings.GetCopy()
	p.nodeID = deviceid.NodeID(settings.DeviceName)

	var lastErr error
	for attempt := 0; attempt < tcpConnectRetries; attempt++ {
		if _, err := p.modem.DialTCP(settings.MqttHost, settings.MqttPort, 5*time.Second); err != nil {
			lastErr = err
			p.clock.Sleep(tcpRetryDelay)
			continue
		}
		lastErr = nil
		break
	}
	if lastErr != nil {
		return fmt.Errorf("tcp connect: %w", lastErr)
	}

	p.mqtt = p.newMQTT(settings.MqttHost, settings.MqttPort, settings.MqttClientID, settings.MqttUser, settings.MqttPass)

	token := p.mqtt.Connect()
	if !token.Wait() || token.Error() != nil {
		return fmt.Errorf("mqtt connect: %w", token.Error())
	}

	cmdTopic := BuildTopic(TopicPrefix, p.nodeID, PostfixCmd)
	cfgTopic := BuildTopic(TopicPrefix, p.nodeID, PostfixCfg)

	if tok := p.mqtt.Subscribe(cmdTopic, 0, p.onMessage); tok.Wait() && tok.Error() != nil {
		return fmt.Errorf("subscribe cmd: %w", tok.Error())
	}
	if tok := p.mqtt.Subscribe(cfgTopic, 0, p.onMessage); tok.Wait() && tok.Error() != nil {
		return fmt.Errorf("subscribe cfg: %w", tok.Error())
	}

	p.mqttConnected = true
	p.subscriptionsReady = true
	p.emitComms(domain.MqttUp, "", nil)
	return nil
}

// onMessage is the inbound dispatcher: cfg topic messages are applied to
// settings directly, everything else is forwarded as a ServerCommand event
// for the orchestrator to interpret. It replaces the source's self-pointer
// callback trampoline with a plain closure.
func (p *Pump) onMessage(msg ports.MQTTMessage) {
	if TopicHasPostfix(msg.Topic(), PostfixCfg) {
		if err := p.settings.ApplyJSON(msg.Payload()); err != nil {
			p.obs.LogWarn("comms: cfg apply failed", ports.Field{Key: "err", Value: err.Error()})
		}
		return
	}
	p.emitComms(domain.ServerCommand, msg.Topic(), msg.Payload())
}

// PrepareHibernate blocks new connects and tears down without disconnecting
// MQTT or ending the modem session, so the final status publish already
// queued can still egress during the grace window.
func (p *Pump) PrepareHibernate() {
	p.hibernatePending = true
	p.teardownLinks(false)
}

// ShutdownForHibernate is the final teardown at the end of the grace
// window: still hibernate-safe (no blocking DISCONNECT/modem END).
func (p *Pump) ShutdownForHibernate() {
	p.teardownLinks(false)
}

// Resume clears hibernatePending, allowing LoopOnce to reconnect on wake.
func (p *Pump) Resume() {
	p.hibernatePending = false
}

// teardownLinks tears down MQTT and, if endGsm, the modem session too.
// Hibernate-safe callers pass endGsm=false to avoid a blocking DISCONNECT.
func (p *Pump) teardownLinks(endGsm bool) {
	if p.mqtt != nil && p.mqtt.IsConnected() && endGsm {
		p.mqtt.Disconnect(250)
	}
	p.mqttConnected = false
	p.subscriptionsReady = false

	if endGsm {
		_ = p.modem.Detach()
		p.netConnected = false
		p.emitComms(domain.NetDown, "", nil)
	}
}

func (p *Pump) handleOrchCommand(cmd domain.OrchCommand) {
	switch cmd.Type {
	case domain.PublishAwake:
		p.publishStatus("aware", cmd.Payload)
	case domain.PublishHibernating:
		p.publishStatus("hibernate", cmd.Payload)
	case domain.PublishConfig:
		if err := p.publishConfigSnapshot(); err != nil {
			p.obs.LogWarn("comms: publish config failed", ports.Field{Key: "err", Value: err.Error()})
		}
	case domain.ApplySettingsJson:
		if err := p.settings.ApplyJSON(cmd.Payload); err != nil {
			p.obs.LogWarn("comms: apply settings failed", ports.Field{Key: "err", Value: err.Error()})
		}
	}
}

// publishStatus merges extra JSON fields into {type:"status", tsMs, mode}
// and publishes on .../status.
func (p *Pump) publishStatus(mode string, extraJSON []byte) {
	base := map[string]any{
		"type": "status",
		"tsMs": time.Now().UnixMilli(),
		"mode": mode,
	}
	if len(extraJSON) > 0 {
		var extra map[string]any
		if err := json.Unmarshal(extraJSON, &extra); err == nil {
			for k, v := range extra {
				base[k] = v
			}
		}
	}
	_ = p.publishJSON(PostfixStatus, base)
}

func (p *Pump) publishJSON(postfix string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if len(body) > maxClientBufferBytes {
		return fmt.Errorf("publish payload too large: %d bytes", len(body))
	}
	if p.mqtt == nil || !p.mqtt.IsConnected() {
		return fmt.Errorf("mqtt not connected")
	}
	topic := BuildTopic(TopicPrefix, p.nodeID, postfix)
	token := p.mqtt.Publish(topic, 0, false, body)
	if !token.Wait() || token.Error() != nil {
		return fmt.Errorf("publish %s: %w", topic, token.Error())
	}
	return nil
}

// publishConfigSnapshot tries one object first; if it doesn't fit the
// per-publish budget it chunks into 5 sections with secrets masked.
func (p *Pump) publishConfigSnapshot() error {
	settings := p.settings.GetCopy().Masked()
	single := map[string]any{"type": "config", "settings": settings}
	body, err := json.Marshal(single)
	if err == nil && len(body) <= maxPublishBytes {
		return p.publishJSON(PostfixStatus, single)
	}

	sections := []struct {
		name domain.ConfigSection
		data any
	}{
		{domain.SectionNetwork, map[string]any{"apn": settings.APN, "apnUser": settings.ApnUser, "apnPass": settings.ApnPass, "simPin": settings.SimPin}},
		{domain.SectionMqtt, map[string]any{"mqttHost": settings.MqttHost, "mqttPort": settings.MqttPort, "mqttUser": settings.MqttUser, "mqttClientId": settings.MqttClientID}},
		{domain.SectionDevice, map[string]any{"deviceName": settings.DeviceName}},
		{domain.SectionSchedule, map[string]any{"samplePeriodMs": settings.SamplePeriodMs, "aggPeriodS": settings.AggPeriodS}},
		{domain.SectionPower, map[string]any{"lowBattMinV": settings.LowBattMinV, "emergencyDelayS": settings.EmergencyDelayS, "emergencySleepS": settings.EmergencySleepS, "maxForcedSleepS": settings.MaxForcedSleepS}},
	}
	for i, sec := range sections {
		chunk := map[string]any{
			"type":    "configChunk",
			"tsMs":    time.Now().UnixMilli(),
			"chunk":   i + 1,
			"total":   configSnapshotSections,
			"section": sec.name.String(),
			"data":    sec.data,
		}
		if err := p.publishJSON(PostfixStatus, chunk); err != nil {
			return err
		}
	}
	return nil
}

// isTempChannel reports whether the given channel name is "temp", generalizing
// the rounding rule to whichever channel carries the temperature reading.
func isTempChannel(name string) bool { return name == "temp" }

func roundTo(v float32, decimals int) float32 {
	mul := float32(1)
	for i := 0; i < decimals; i++ {
		mul *= 10
	}
	return float32(int64(v*mul+0.5)) / mul
}

func roundedFor(name string, v float32) float32 {
	if isTempChannel(name) {
		return roundTo(v, 1)
	}
	return roundTo(v, 2)
}

// publishAggregate rounds values (2 decimals, 1 when the channel is
// "temp") and emits {type:"data", ...} on .../data.
func (p *Pump) publishAggregate(a domain.Aggregate) error {
	payload := map[string]any{
		"type": "data",
		"t0":   a.RelStartMs,
		"t1":   a.RelEndMs,
		"n":    a.N,
		"ok":   a.OK,
	}
	payload[a.K0+"Avg"] = roundedFor(a.K0, a.V0Avg)
	payload[a.K0+"Min"] = roundedFor(a.K0, a.V0Min)
	payload[a.K0+"Max"] = roundedFor(a.K0, a.V0Max)
	if a.HasV1() {
		payload[a.K1+"Avg"] = roundedFor(a.K1, a.V1Avg)
		payload[a.K1+"Min"] = roundedFor(a.K1, a.V1Min)
		payload[a.K1+"Max"] = roundedFor(a.K1, a.V1Max)
	}
	return p.publishJSON(PostfixData, payload)
}

// PublishOneShot publishes a single ad hoc sample result, requested via
// the supplemented oneShotSample command.
func (p *Pump) PublishOneShot(s domain.Sample) error {
	payload := map[string]any{
		"type": "oneShotSampleResult",
		"t":    s.RelMs,
		"ok":   s.OK,
	}
	payload[s.K0] = roundedFor(s.K0, s.V0)
	if s.K1 != "" {
		payload[s.K1] = roundedFor(s.K1, s.V1)
	}
	return p.publishJSON(PostfixStatus, payload)
}

// NodeID exposes the resolved node id (device name or hardware hex id).
func (p *Pump) NodeID() string { return p.nodeID }
