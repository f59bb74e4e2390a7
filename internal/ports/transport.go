package ports

import "time"

// MQTTToken is the minimal subset of a paho publish/subscribe token this
// module depends on, so the comms pump can be tested against a fake client.
type MQTTToken interface {
	Wait() bool
	Error() error
}

// MQTTMessage is an inbound message handed to the subscription callback.
type MQTTMessage interface {
	Topic() string
	Payload() []byte
}

// MQTTClient is the external MQTT collaborator. The production adapter
// wraps github.com/eclipse/paho.mqtt.golang; tests use a fake.
type MQTTClient interface {
	Connect() MQTTToken
	Disconnect(quiesceMs uint)
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload []byte) MQTTToken
	Subscribe(topic string, qos byte, handler func(MQTTMessage)) MQTTToken
}

// CellularModem is the external cellular/GSM collaborator: attach to the
// packet network, hand back a TCP-capable dialer, and allow a hard reset
// after repeated attach failures.
type CellularModem interface {
	Attach(apn, user, pass string, timeout time.Duration) error
	Detach() error
	Reset() error
	DialTCP(host string, port int, timeout time.Duration) (Conn, error)
}

// Conn is the minimal byte-stream connection returned by DialTCP.
type Conn interface {
	Close() error
}
