package commspump

import (
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/VamoKnut/hastig/internal/ports"
)

// pahoClient adapts github.com/eclipse/paho.mqtt.golang onto ports.MQTTClient.
type pahoClient struct {
	client mqtt.Client
}

// NewPahoClient dials broker tcp://host:port with the given credentials and
// client id, using paho's default QoS-0-friendly options. It matches the
// Pump.New factory signature so it can be plugged in directly by
// SystemContext wiring.
func NewPahoClient(host string, port int, clientID, user, pass string) ports.MQTTClient {
	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", host, port)).
		SetClientID(clientID).
		SetAutoReconnect(false).
		SetConnectTimeout(0)
	if user != "" {
		opts.SetUsername(user)
		opts.SetPassword(pass)
	}
	return &pahoClient{client: mqtt.NewClient(opts)}
}

func (p *pahoClient) Connect() ports.MQTTToken { return p.client.Connect() }

func (p *pahoClient) Disconnect(quiesceMs uint) { p.client.Disconnect(quiesceMs) }

func (p *pahoClient) IsConnected() bool { return p.client.IsConnected() }

func (p *pahoClient) Publish(topic string, qos byte, retained bool, payload []byte) ports.MQTTToken {
	return p.client.Publish(topic, qos, retained, payload)
}

func (p *pahoClient) Subscribe(topic string, qos byte, handler func(ports.MQTTMessage)) ports.MQTTToken {
	return p.client.Subscribe(topic, qos, func(_ mqtt.Client, msg mqtt.Message) {
		handler(pahoMessage{msg})
	})
}

type pahoMessage struct{ msg mqtt.Message }

func (m pahoMessage) Topic() string   { return m.msg.Topic() }
func (m pahoMessage) Payload() []byte { return m.msg.Payload() }

var _ ports.MQTTClient = (*pahoClient)(nil)
