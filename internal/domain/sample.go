// Package domain holds the value types shared across every activity: the
// sensor samples and aggregates on the data path, and the events and
// commands on the control path.
package domain

// Sample is one reading taken off the sensor. A sample carries one or two
// channels; an empty K1 means the reading is single-channel.
type Sample struct {
	RelMs uint32
	K0    string
	V0    float32
	K1    string
	V1    float32
	OK    bool
}

// Aggregate is the windowed reduction of a stream of Samples sharing K0/K1.
type Aggregate struct {
	RelStartMs uint32
	RelEndMs   uint32
	K0         string
	V0Avg      float32
	V0Min      float32
	V0Max      float32
	K1         string
	V1Avg      float32
	V1Min      float32
	V1Max      float32
	N          uint32
	OK         bool
}

// HasV1 reports whether the second channel was populated.
func (a Aggregate) HasV1() bool { return a.K1 != "" }
