// Package celladapter provides a simulated cellular modem collaborator so
// the comms pump's network state machine can be exercised without real GSM
// hardware. A production board would swap this for a driver over the modem
// UART; the pump's contract (ports.CellularModem) is identical either way.
package celladapter

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/VamoKnut/hastig/internal/ports"
)

// Simulated is a cellular modem stand-in that attaches successfully unless
// failures were queued with FailNextAttaches, and dials real TCP sockets, so it can be pointed at a local MQTT broker
// in tests without any radio hardware.
type Simulated struct {
	attached    bool
	resetCount  int
	failNextN   int
}

func New() *Simulated { return &Simulated{} }

// FailNextAttaches makes the next n Attach calls fail, for exercising the
// comms pump's backoff and modem-reset behavior in tests.
func (s *Simulated) FailNextAttaches(n int) { s.failNextN = n }

func (s *Simulated) Attach(apn, user, pass string, timeout time.Duration) error {
	if s.failNextN > 0 {
		s.failNextN--
		return fmt.Errorf("simulated attach failure (apn=%s)", apn)
	}
	s.attached = true
	return nil
}

func (s *Simulated) Detach() error {
	s.attached = false
	return nil
}

func (s *Simulated) Reset() error {
	s.resetCount++
	s.attached = false
	return nil
}

func (s *Simulated) ResetCount() int { return s.resetCount }

func (s *Simulated) DialTCP(host string, port int, timeout time.Duration) (ports.Conn, error) {
	if !s.attached {
		return nil, fmt.Errorf("modem not attached")
	}
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, strconv.Itoa(port)), timeout)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

var _ ports.CellularModem = (*Simulated)(nil)
