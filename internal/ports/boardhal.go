package ports

import "time"

// Battery is the external PMIC/fuel-gauge collaborator.
type Battery interface {
	VoltageV() float32
	ResetStatistics() error
}

// BoardHAL is the external GPIO/PMIC/standby collaborator: peripheral power
// rails, wake-source arming, and the point of no return into deep standby.
type BoardHAL interface {
	SetSensorRailPower(on bool) error
	SetAllPeripheralsPower(on bool) error
	SetExternalPowerEnabled(on bool) error
	EnableWakeupFromPin() error
	EnableWakeupFromRTC(after time.Duration) error
	// StandByUntilWakeupEvent hands control to the platform's deep-standby
	// primitive. It does not return on a real device; the simulated
	// implementation returns once the wake duration elapses.
	StandByUntilWakeupEvent() error
	FlushConsole() error
}

// Clock abstracts wall time so orchestrator/comms-pump timers are testable
// without real sleeps.
type Clock interface {
	NowMs() uint32
	Sleep(d time.Duration)
}
