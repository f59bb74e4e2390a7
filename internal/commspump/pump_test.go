package commspump

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/VamoKnut/hastig/internal/bus"
	"github.com/VamoKnut/hastig/internal/domain"
	"github.com/VamoKnut/hastig/internal/ports"
)

type fakeToken struct{ err error }

func (f fakeToken) Wait() bool  { return true }
func (f fakeToken) Error() error { return f.err }

type fakeMQTT struct {
	connected bool
	published []publishedMsg
	subs      map[string]func(ports.MQTTMessage)
}

type publishedMsg struct {
	topic   string
	payload []byte
}

func newFakeMQTT() *fakeMQTT { return &fakeMQTT{subs: map[string]func(ports.MQTTMessage){}} }

func (f *fakeMQTT) Connect() ports.MQTTToken   { f.connected = true; return fakeToken{} }
func (f *fakeMQTT) Disconnect(uint)            { f.connected = false }
func (f *fakeMQTT) IsConnected() bool          { return f.connected }
func (f *fakeMQTT) Publish(topic string, _ byte, _ bool, payload []byte) ports.MQTTToken {
	f.published = append(f.published, publishedMsg{topic, payload})
	return fakeToken{}
}
func (f *fakeMQTT) Subscribe(topic string, _ byte, handler func(ports.MQTTMessage)) ports.MQTTToken {
	f.subs[topic] = handler
	return fakeToken{}
}

type fakeModem struct{ attached bool }

func (m *fakeModem) Attach(apn, user, pass string, timeout time.Duration) error {
	m.attached = true
	return nil
}
func (m *fakeModem) Detach() error { m.attached = false; return nil }
func (m *fakeModem) Reset() error  { return nil }
func (m *fakeModem) DialTCP(host string, port int, timeout time.Duration) (ports.Conn, error) {
	return fakeConn{}, nil
}

type fakeConn struct{}

func (fakeConn) Close() error { return nil }

type fakeSettingsStore struct{ s domain.Settings }

func (f *fakeSettingsStore) GetCopy() domain.Settings { return f.s }
func (f *fakeSettingsStore) ApplyJSON([]byte) error    { return nil }
func (f *fakeSettingsStore) Save() error               { return nil }
func (f *fakeSettingsStore) FactoryReset() error       { return nil }

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

func newTestPump() (*Pump, *fakeMQTT, *fakeModem, *bus.SystemBus) {
	b := bus.NewSystemBus(nopObs{})
	modem := &fakeModem{}
	client := newFakeMQTT()
	store := &fakeSettingsStore{s: domain.Defaults()}
	p := New(b, store, modem, nopObs{}, instantClock{}, func(host string, port int, clientID, user, pass string) ports.MQTTClient {
		return client
	})
	return p, client, modem, b
}

func TestLoopOnceBringsUpNetworkAndMqtt(t *testing.T) {
	p, client, modem, b := newTestPump()
	p.LoopOnce()

	if !modem.attached {
		t.Fatalf("expected modem attached")
	}
	if !client.connected {
		t.Fatalf("expected mqtt connected")
	}
	if len(client.subs) != 2 {
		t.Fatalf("expected 2 subscriptions, got %d", len(client.subs))
	}

	evt, ok := b.CommsToOrch.TryGet()
	if !ok || evt.Type != domain.NetUp {
		t.Fatalf("expected NetUp event first, got %+v ok=%v", evt, ok)
	}
	evt, ok = b.CommsToOrch.TryGet()
	if !ok || evt.Type != domain.MqttUp {
		t.Fatalf("expected MqttUp event next, got %+v ok=%v", evt, ok)
	}
}

func TestPublishAggregateRoundsTempToOneDecimal(t *testing.T) {
	p, client, _, b := newTestPump()
	p.LoopOnce()
	client.published = nil

	b.AggToComms.Put(domain.Aggregate{
		K0: "temp", V0Avg: 21.2345, V0Min: 20.111, V0Max: 22.999, N: 3, OK: true,
	})
	p.LoopOnce()

	if len(client.published) != 1 {
		t.Fatalf("expected one publish, got %d", len(client.published))
	}
	if client.published[0].topic != "hastigNode/Hastig/data" {
		t.Fatalf("unexpected topic: %s", client.published[0].topic)
	}

	var body map[string]any
	if err := json.Unmarshal(client.published[0].payload, &body); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if body["tempAvg"] != 21.2 || body["tempMin"] != 20.1 || body["tempMax"] != 23.0 {
		t.Fatalf("expected temp values rounded to one decimal, got %v", body)
	}
}

func TestCfgTopicAppliesSettingsWithoutForwarding(t *testing.T) {
	p, client, _, b := newTestPump()
	p.LoopOnce()

	cfgTopic := BuildTopic(TopicPrefix, p.NodeID(), PostfixCfg)
	handler := client.subs[cfgTopic]
	if handler == nil {
		t.Fatalf("expected cfg subscription")
	}
	handler(testMessage{topic: cfgTopic, payload: []byte(`{"deviceName":"x"}`)})

	if evt, ok := b.CommsToOrch.TryGet(); ok && evt.Type == domain.ServerCommand {
		t.Fatalf("cfg message should not be forwarded as a command")
	}
}

func TestCmdTopicForwardsServerCommand(t *testing.T) {
	p, client, _, b := newTestPump()
	p.LoopOnce()
	b.CommsToOrch.TryGet() // NetUp
	b.CommsToOrch.TryGet() // MqttUp

	cmdTopic := BuildTopic(TopicPrefix, p.NodeID(), PostfixCmd)
	handler := client.subs[cmdTopic]
	handler(testMessage{topic: cmdTopic, payload: []byte(`{"type":"nudge"}`)})

	evt, ok := b.CommsToOrch.TryGet()
	if !ok || evt.Type != domain.ServerCommand {
		t.Fatalf("expected forwarded ServerCommand, got %+v ok=%v", evt, ok)
	}
}

func TestLoopOnceDrainsOneShotAndPublishesResult(t *testing.T) {
	p, client, _, b := newTestPump()
	p.LoopOnce()
	client.published = nil

	b.OneShot.Put(domain.Sample{K0: "temp", V0: 21.26, OK: true, RelMs: 42})
	p.LoopOnce()

	if len(client.published) != 1 {
		t.Fatalf("expected one publish, got %d", len(client.published))
	}
	if client.published[0].topic != "hastigNode/Hastig/status" {
		t.Fatalf("unexpected topic: %s", client.published[0].topic)
	}
	if _, ok := b.OneShot.TryGet(); ok {
		t.Fatalf("expected one-shot mailbox drained")
	}
}

type testMessage struct {
	topic   string
	payload []byte
}

func (m testMessage) Topic() string   { return m.topic }
func (m testMessage) Payload() []byte { return m.payload }
