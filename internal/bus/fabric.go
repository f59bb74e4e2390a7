package bus

import (
	"time"

	"github.com/VamoKnut/hastig/internal/domain"
	"github.com/VamoKnut/hastig/internal/ports"
)

// Depths are fixed per mailbox pair, matching the original firmware's
// static queue sizing.
const (
	DepthSensorToAgg  = 32
	DepthAggToComms   = 16
	DepthUiToOrch     = 16
	DepthCommsToOrch  = 16
	DepthWorkerToOrch = 8
	DepthOrchToComms  = 16
	DepthOneShot      = 1
)

// SystemBus owns every mailbox in the node. It is constructed once at
// startup by SystemContext and handed to activities as a borrowed
// reference, replacing the source's global mailbox singletons.
type SystemBus struct {
	SensorToAgg  *Mailbox[domain.Sample]
	OneShot      *Mailbox[domain.Sample]
	AggToComms   *Mailbox[domain.Aggregate]
	UiToOrch     *Mailbox[domain.UiEvent]
	CommsToOrch  *Mailbox[domain.CommsEvent]
	WorkerToOrch *Mailbox[domain.WorkerEvent]
	OrchToComms  *Mailbox[domain.OrchCommand]

	obs ports.Observability
}

// NewSystemBus wires every mailbox at its fixed depth.
func NewSystemBus(obs ports.Observability) *SystemBus {
	return &SystemBus{
		SensorToAgg:  NewMailbox[domain.Sample]("sensor_to_agg", DepthSensorToAgg),
		OneShot:      NewMailbox[domain.Sample]("one_shot", DepthOneShot),
		AggToComms:   NewMailbox[domain.Aggregate]("agg_to_comms", DepthAggToComms),
		UiToOrch:     NewMailbox[domain.UiEvent]("ui_to_orch", DepthUiToOrch),
		CommsToOrch:  NewMailbox[domain.CommsEvent]("comms_to_orch", DepthCommsToOrch),
		WorkerToOrch: NewMailbox[domain.WorkerEvent]("worker_to_orch", DepthWorkerToOrch),
		OrchToComms:  NewMailbox[domain.OrchCommand]("orch_to_comms", DepthOrchToComms),
		obs:          obs,
	}
}

// PutDropCounted publishes v and, on ErrBusFull, logs and counts the drop
// instead of propagating the error — every producer in this node treats a
// full mailbox as a drop, never a stall.
func PutDropCounted[T any](m *Mailbox[T], obs ports.Observability, v T) bool {
	if err := m.Put(v); err != nil {
		if obs != nil {
			obs.LogWarn("mailbox full, dropping", ports.Field{Key: "mailbox", Value: m.Name()})
			obs.IncCounter("hastig_bus_dropped_total", map[string]string{"mailbox": m.Name()}, 1)
		}
		return false
	}
	return true
}

// OrchEventKind tags which mailbox an event polled by TryGetNext came from.
type OrchEventKind int

const (
	NoEvent OrchEventKind = iota
	FromComms
	FromWorker
	FromUi
)

// OrchEvent is the union TryGetNext returns: exactly one of the three
// payload fields is meaningful, selected by Kind.
type OrchEvent struct {
	Kind   OrchEventKind
	Comms  domain.CommsEvent
	Worker domain.WorkerEvent
	Ui     domain.UiEvent
}

// TryGetNext polls the comms, worker, and UI mailboxes in that fixed
// priority order, returning the first available event. If none arrives
// within timeout it returns (OrchEvent{}, false). This ordering is
// load-bearing: server commands and network state changes must preempt UI
// chatter.
func (b *SystemBus) TryGetNext(timeout time.Duration) (OrchEvent, bool) {
	const pollInterval = time.Millisecond
	deadline := time.Now().Add(timeout)
	for {
		if ce, ok := b.CommsToOrch.TryGet(); ok {
			return OrchEvent{Kind: FromComms, Comms: ce}, true
		}
		if we, ok := b.WorkerToOrch.TryGet(); ok {
			return OrchEvent{Kind: FromWorker, Worker: we}, true
		}
		if ue, ok := b.UiToOrch.TryGet(); ok {
			return OrchEvent{Kind: FromUi, Ui: ue}, true
		}
		if !time.Now().Before(deadline) {
			return OrchEvent{}, false
		}
		time.Sleep(pollInterval)
	}
}
