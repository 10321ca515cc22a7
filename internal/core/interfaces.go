// Package core defines the leaf types shared by the benchmark engine.
package core

import "time"

// Event records a single task iteration executed by a workload slot.
type Event struct {
	Workload  string
	Slot      int // 1-based slot number within the workload
	Round     int // 1-based iteration number within the slot
	Timestamp time.Time
	Duration  time.Duration
	Success   bool
	Error     string
}

// Reporter receives iteration events from running workloads.
// Implementations must be safe for concurrent use.
type Reporter interface {
	Report(Event)
}

// NullReporter discards all events.
var NullReporter Reporter = nullReporter{}

type nullReporter struct{}

func (nullReporter) Report(Event) {}

// Reporters fans every event out to each of its members in order.
type Reporters []Reporter

func (rs Reporters) Report(e Event) {
	for _, r := range rs {
		r.Report(e)
	}
}
