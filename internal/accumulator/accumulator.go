// Package accumulator implements the windowed min/avg/max reducer coupling
// the sampling activity to the publisher, with no notion of wall-clock
// itself: the aggregation activity owns the window boundary and calls
// Reset/Add/Emit around it.
package accumulator

import (
	"math"

	"github.com/VamoKnut/hastig/internal/domain"
)

// Accumulator folds a stream of domain.Sample sharing K0 and (optionally)
// K1 into one domain.Aggregate. Single-precision sums, no Kahan
// compensation: windows are bounded to a few hundred samples.
type Accumulator struct {
	started bool
	t0      uint32
	t1      uint32
	k0      string
	k1      string
	n       uint32
	ok      bool

	sum0, min0, max0 float32
	sum1, min1, max1 float32
}

// Reset zeroes the accumulator and records the window start time.
func (a *Accumulator) Reset(startMs uint32) {
	*a = Accumulator{
		t0:   startMs,
		t1:   startMs,
		min0: float32(math.Inf(1)),
		max0: float32(math.Inf(-1)),
		min1: float32(math.Inf(1)),
		max1: float32(math.Inf(-1)),
		ok:   true,
	}
}

// Add folds one sample into the running reduction. The first sample
// captures K0/K1; later samples are assumed to share them.
func (a *Accumulator) Add(s domain.Sample) {
	if !a.started {
		a.started = true
		a.t0 = s.RelMs
		a.k0 = s.K0
		a.k1 = s.K1
	}
	a.t1 = s.RelMs
	a.n++
	a.ok = a.ok && s.OK

	a.sum0 += s.V0
	if s.V0 < a.min0 {
		a.min0 = s.V0
	}
	if s.V0 > a.max0 {
		a.max0 = s.V0
	}

	if a.k1 != "" {
		a.sum1 += s.V1
		if s.V1 < a.min1 {
			a.min1 = s.V1
		}
		if s.V1 > a.max1 {
			a.max1 = s.V1
		}
	}
}

// Emit produces the reduced aggregate. It returns false and writes nothing
// when no sample was added since the last Reset.
func (a *Accumulator) Emit(out *domain.Aggregate) bool {
	if a.n == 0 {
		return false
	}

	*out = domain.Aggregate{
		RelStartMs: a.t0,
		RelEndMs:   a.t1,
		K0:         a.k0,
		V0Avg:      a.sum0 / float32(a.n),
		V0Min:      a.min0,
		V0Max:      a.max0,
		N:          a.n,
		OK:         a.ok,
	}

	if a.k1 != "" {
		out.K1 = a.k1
		out.V1Avg = a.sum1 / float32(a.n)
		out.V1Min = a.min1
		out.V1Max = a.max1
	}

	return true
}
