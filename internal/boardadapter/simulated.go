// Package boardadapter provides a simulated ports.BoardHAL/ports.Battery for
// running this node as an ordinary process during development. A real
// deployment replaces this with a platform-specific implementation talking
// to the PMIC, GPIO, and RTC peripherals this interface abstracts.
package boardadapter

import (
	"sync"
	"time"
)

// simStandbyCap bounds how long Simulated actually blocks in
// StandByUntilWakeupEvent. A real board never returns from this call; a
// development process can't sleep for up to 12h and still be useful, so the
// simulated wake fires early once the cap is reached.
const simStandbyCap = 3 * time.Second

// Simulated implements ports.BoardHAL and ports.Battery entirely in memory,
// for local runs and tests against the real adapter wiring.
type Simulated struct {
	mu sync.Mutex

	sensorRailOn     bool
	peripheralsOn    bool
	externalPowerOn  bool
	pinWakeArmed     bool
	rtcWakeAfter     time.Duration
	standbyEntered   bool
	voltage          float32
}

// New returns a Simulated with peripherals powered and a healthy battery
// voltage, matching the board's state immediately after a cold boot.
func New(initialVoltage float32) *Simulated {
	return &Simulated{
		peripheralsOn:   true,
		externalPowerOn: true,
		voltage:         initialVoltage,
	}
}

func (s *Simulated) SetSensorRailPower(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sensorRailOn = on
	return nil
}

func (s *Simulated) SetAllPeripheralsPower(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peripheralsOn = on
	return nil
}

func (s *Simulated) SetExternalPowerEnabled(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.externalPowerOn = on
	return nil
}

func (s *Simulated) EnableWakeupFromPin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pinWakeArmed = true
	return nil
}

func (s *Simulated) EnableWakeupFromRTC(after time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rtcWakeAfter = after
	return nil
}

// StandByUntilWakeupEvent blocks for min(armed RTC duration, simStandbyCap)
// then returns, simulating a wake event.
func (s *Simulated) StandByUntilWakeupEvent() error {
	s.mu.Lock()
	s.standbyEntered = true
	wait := s.rtcWakeAfter
	s.mu.Unlock()

	if wait > simStandbyCap {
		wait = simStandbyCap
	}
	time.Sleep(wait)
	return nil
}

func (s *Simulated) FlushConsole() error { return nil }

// VoltageV returns the simulated battery voltage. SetVoltage lets tests
// simulate low-battery conditions.
func (s *Simulated) VoltageV() float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.voltage
}

func (s *Simulated) SetVoltage(v float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voltage = v
}

func (s *Simulated) ResetStatistics() error { return nil }
