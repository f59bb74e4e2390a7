package domain

// OrchCommandType tags a command the orchestrator sends to the comms pump.
type OrchCommandType int

const (
	PublishAwake OrchCommandType = iota
	PublishHibernating
	PublishConfig
	ApplySettingsJson
)

// OrchCommand travels on the orch→comms mailbox. Payload carries the extra
// JSON fields (status mode, hibernate reason/duration, a settings patch)
// as a pre-encoded blob so the comms pump never has to know orchestrator
// internals.
type OrchCommand struct {
	Type    OrchCommandType
	TsMs    uint32
	Payload []byte
}

// CommsEventType tags an event the comms pump raises toward the orchestrator.
type CommsEventType int

const (
	Boot CommsEventType = iota
	NetUp
	NetDown
	MqttUp
	MqttDown
	ServerCommand
	PublishFailed
	AggregatePublishAttempted
)

// CommsEvent travels on the comms→orch mailbox.
type CommsEvent struct {
	Type    CommsEventType
	TsMs    uint32
	Topic   string
	Payload []byte
}

// WorkerEventType tags an event raised by the sampling or aggregation
// activities toward the orchestrator.
type WorkerEventType int

const (
	SampleTaken WorkerEventType = iota
	AggregateReady
)

// WorkerEvent travels on the worker→orch mailbox.
type WorkerEvent struct {
	Type  WorkerEventType
	TsMs  uint32
	RelMs uint32
	N     uint32
	OK    bool
}

// UiEvent travels on the ui→orch mailbox.
type UiEvent struct {
	TsMs  uint32
	Topic string
	Value string
}
