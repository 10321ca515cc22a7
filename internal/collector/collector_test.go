package collector

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"benchlab/internal/core"
)

func TestCollector_CollectsEvents(t *testing.T) {
	c := NewCollector()
	c.Report(core.Event{Workload: "a", Slot: 1, Success: true, Duration: 10 * time.Millisecond})
	c.Report(core.Event{Workload: "a", Slot: 2, Success: false, Duration: 20 * time.Millisecond})
	c.Close()

	assert.Len(t, c.Events(), 2)
	total, failed := c.Counts()
	assert.EqualValues(t, 2, total)
	assert.EqualValues(t, 1, failed)
}

func TestCollector_ReportAfterCloseIsDropped(t *testing.T) {
	c := NewCollector()
	c.Close()
	c.Close() // idempotent

	c.Report(core.Event{Workload: "late", Success: true})

	assert.Zero(t, c.Size())
}

func TestCollector_Compute(t *testing.T) {
	c := NewCollector()
	c.Report(core.Event{Workload: "w1", Success: true, Duration: 10 * time.Millisecond})
	c.Report(core.Event{Workload: "w1", Success: true, Duration: 20 * time.Millisecond})
	c.Report(core.Event{Workload: "w2", Success: false, Duration: 30 * time.Millisecond})
	c.Close()

	m := c.Compute()
	assert.EqualValues(t, 3, m.TotalIterations)
	assert.EqualValues(t, 2, m.SuccessCount)
	assert.EqualValues(t, 1, m.FailureCount)
	assert.EqualValues(t, 2, m.Workloads["w1"].Count)
	assert.EqualValues(t, 1, m.Workloads["w2"].Failed)
}

func TestCollector_ThreadSafety(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	const slots, rounds = 100, 50

	for i := 0; i < slots; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				c.Report(core.Event{Workload: "concurrent", Slot: slot, Round: j + 1, Success: true})
			}
		}(i)
	}
	wg.Wait()
	c.Close()

	assert.Len(t, c.Events(), slots*rounds)
}

func TestCollector_FeedPushesDurationsInMillis(t *testing.T) {
	c := NewCollector()
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.Report(core.Event{Workload: "a", Timestamp: ts, Duration: 1500 * time.Microsecond, Success: true})
	c.Close()

	var got []DataPoint
	c.Feed(ConsumerFunc(func(p DataPoint) { got = append(got, p) }))

	require.Len(t, got, 1)
	assert.Equal(t, 1.5, got[0].Value)
	assert.True(t, got[0].Timestamp.Equal(ts))
	assert.Equal(t, IterationsID, c.ID())
}

func TestSeries_RecordAndFeed(t *testing.T) {
	s := NewSeries("queue.depth")
	s.Record(3)
	s.Record(5)

	var sum float64
	s.Feed(ConsumerFunc(func(p DataPoint) { sum += p.Value }))

	assert.Equal(t, 2, s.Size())
	assert.Equal(t, 8.0, sum)
	assert.Equal(t, "queue.depth: 2 data points", s.String())
}

func TestRegistry_PrefixLookup(t *testing.T) {
	r := NewRegistry()
	r.Add(NewSeries("queue.depth"))
	r.Add(NewSeries("queue.age"))
	r.Add(NewSeries("latency"))

	assert.Len(t, r.Collectors(""), 3)
	queue := r.Collectors("queue.")
	require.Len(t, queue, 2)
	assert.Equal(t, "queue.depth", queue[0].ID(), "registration order")
	assert.Equal(t, "queue.age", queue[1].ID())

	_, ok := r.Get("latency")
	assert.True(t, ok)
	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestComputePercentile(t *testing.T) {
	durations := []time.Duration{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}

	assert.Equal(t, time.Duration(50), ComputePercentile(durations, 0.50))
	assert.Equal(t, time.Duration(90), ComputePercentile(durations, 0.90))
	assert.Zero(t, ComputePercentile(nil, 0.5))
}

func TestComputeDurationMetrics(t *testing.T) {
	m := ComputeDurationMetrics([]time.Duration{30, 10, 20})
	assert.Equal(t, time.Duration(10), m.Min)
	assert.Equal(t, time.Duration(30), m.Max)
	assert.Equal(t, time.Duration(20), m.Avg)
	assert.Equal(t, time.Duration(20), m.P50)
}

func TestComputeMetrics_Empty(t *testing.T) {
	m := ComputeMetrics(nil, time.Second)
	assert.Zero(t, m.TotalIterations)
	assert.Empty(t, m.Workloads)
}

func TestFormatText(t *testing.T) {
	m := ComputeMetrics([]core.Event{
		{Workload: "b", Success: true, Duration: 2 * time.Millisecond},
		{Workload: "a", Success: false, Duration: 4 * time.Millisecond},
	}, time.Second)

	var buf bytes.Buffer
	FormatText(&buf, "demo", m)
	out := buf.String()

	for _, want := range []string{"demo - Benchmark Results", "Total Iterations: 2", "Success Rate:     50.0%"} {
		assert.Contains(t, out, want)
	}
	assert.Less(t, strings.Index(out, "  a "), strings.Index(out, "  b "), "workloads sorted by name")
}

func TestFormatText_NoIterations(t *testing.T) {
	var buf bytes.Buffer
	FormatText(&buf, "demo", ComputeMetrics(nil, 0))
	assert.Contains(t, buf.String(), "No iterations collected")
}

func TestFormatJSON(t *testing.T) {
	m := ComputeMetrics([]core.Event{{Workload: "a", Success: true, Duration: time.Millisecond}}, time.Second)

	var buf bytes.Buffer
	require.NoError(t, FormatJSON(&buf, "demo", m))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "demo", decoded["title"])
	assert.Equal(t, float64(1), decoded["totalIterations"])
}

func TestFormatNumber(t *testing.T) {
	tests := map[int]string{0: "0", 999: "999", 1000: "1,000", 1234567: "1,234,567", -4500: "-4,500"}
	for in, want := range tests {
		assert.Equal(t, want, formatNumber(in), "formatNumber(%d)", in)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := map[time.Duration]string{
		500 * time.Microsecond:  "500µs",
		1500 * time.Microsecond: "1.50ms",
		2 * time.Second:         "2.00s",
	}
	for in, want := range tests {
		assert.Equal(t, want, FormatDuration(in), "FormatDuration(%v)", in)
	}
}
