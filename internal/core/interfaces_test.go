package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNullReporter(t *testing.T) {
	assert.NotPanics(t, func() { NullReporter.Report(Event{Workload: "test", Success: true}) })
}

type recordingReporter struct {
	events []Event
}

func (r *recordingReporter) Report(e Event) { r.events = append(r.events, e) }

func TestReporters_FanOut(t *testing.T) {
	a, b := &recordingReporter{}, &recordingReporter{}
	rs := Reporters{a, NullReporter, b}

	rs.Report(Event{Workload: "w", Round: 1})
	rs.Report(Event{Workload: "w", Round: 2})

	for _, r := range []*recordingReporter{a, b} {
		require.Len(t, r.events, 2)
		assert.Equal(t, 1, r.events[0].Round)
		assert.Equal(t, 2, r.events[1].Round)
	}
}
