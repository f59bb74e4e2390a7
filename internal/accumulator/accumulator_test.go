package accumulator

import (
	"math"
	"testing"

	"github.com/VamoKnut/hastig/internal/domain"
)

func TestEmitGatingWithoutAdd(t *testing.T) {
	var a Accumulator
	a.Reset(0)
	var out domain.Aggregate
	if a.Emit(&out) {
		t.Fatalf("expected emit to fail with no samples added")
	}
}

func TestHappySamplingWindow(t *testing.T) {
	var a Accumulator
	a.Reset(0)
	a.Add(domain.Sample{RelMs: 0, K0: "temp", V0: 10, OK: true})
	a.Add(domain.Sample{RelMs: 1000, K0: "temp", V0: 20, OK: true})
	a.Add(domain.Sample{RelMs: 2000, K0: "temp", V0: 30, OK: true})

	var out domain.Aggregate
	if !a.Emit(&out) {
		t.Fatalf("expected emit to succeed")
	}
	if out.RelStartMs != 0 || out.RelEndMs != 2000 || out.N != 3 || !out.OK {
		t.Fatalf("unexpected envelope: %+v", out)
	}
	if out.V0Avg != 20 || out.V0Min != 10 || out.V0Max != 30 {
		t.Fatalf("unexpected reduction: %+v", out)
	}
}

func TestAggregateConservation(t *testing.T) {
	var a Accumulator
	a.Reset(0)
	vals := []float32{3, 7, 11, 2, 19}
	var sum float32
	for i, v := range vals {
		a.Add(domain.Sample{RelMs: uint32(i * 1000), K0: "p", V0: v, OK: true})
		sum += v
	}
	var out domain.Aggregate
	if !a.Emit(&out) {
		t.Fatalf("expected emit")
	}
	total := out.V0Avg * float32(out.N)
	if math.Abs(float64(total-sum)) > 1e-3 {
		t.Fatalf("conservation violated: avg*n=%v sum=%v", total, sum)
	}
	if !(out.V0Min <= out.V0Avg && out.V0Avg <= out.V0Max) {
		t.Fatalf("min<=avg<=max violated: %+v", out)
	}
}

func TestRelStartMsCapturesFirstSampleNotReset(t *testing.T) {
	var a Accumulator
	a.Reset(500)
	a.Add(domain.Sample{RelMs: 780, K0: "temp", V0: 10, OK: true})
	a.Add(domain.Sample{RelMs: 1200, K0: "temp", V0: 20, OK: true})

	var out domain.Aggregate
	if !a.Emit(&out) {
		t.Fatalf("expected emit")
	}
	if out.RelStartMs != 780 {
		t.Fatalf("expected RelStartMs to be the first sample's RelMs (780), got %d", out.RelStartMs)
	}
}

func TestSecondChannelIgnoredWhenK1Empty(t *testing.T) {
	var a Accumulator
	a.Reset(0)
	a.Add(domain.Sample{RelMs: 0, K0: "a", V0: 1, OK: true})
	var out domain.Aggregate
	a.Emit(&out)
	if out.HasV1() {
		t.Fatalf("expected no second channel, got %+v", out)
	}
}

func TestOkIsLogicalAnd(t *testing.T) {
	var a Accumulator
	a.Reset(0)
	a.Add(domain.Sample{RelMs: 0, K0: "a", V0: 1, OK: true})
	a.Add(domain.Sample{RelMs: 1, K0: "a", V0: 2, OK: false})
	var out domain.Aggregate
	a.Emit(&out)
	if out.OK {
		t.Fatalf("expected ok=false when any sample failed")
	}
}
