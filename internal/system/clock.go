package system

import "time"

// wallClock implements ports.Clock against the process's monotonic clock,
// relative to when the node booted. Millisecond values wrap at 2^32 exactly
// like the source firmware's millis() counter. The orchestrator's
// elapsed-time timers compute deltas by unsigned subtraction and so tolerate
// that wraparound; its emergency deadline is a plain >= comparison.
type wallClock struct {
	boot time.Time
}

func newWallClock() *wallClock {
	return &wallClock{boot: time.Now()}
}

func (c *wallClock) NowMs() uint32 {
	return uint32(time.Since(c.boot).Milliseconds())
}

func (c *wallClock) Sleep(d time.Duration) {
	time.Sleep(d)
}
