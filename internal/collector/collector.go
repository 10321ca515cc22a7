// Package collector gathers iteration events and other recorded data points
// and exposes them to reporters.
package collector

import (
	"sync"
	"sync/atomic"
	"time"

	"benchlab/internal/core"
)

// IterationsID is the id of the collector fed by the engine itself.
const IterationsID = "iterations"

// DataPoint is one recorded value.
type DataPoint struct {
	Timestamp time.Time
	Value     float64
}

// Consumer receives data points pushed by a DataCollector.
type Consumer interface {
	Receive(DataPoint)
}

// ConsumerFunc adapts a function to Consumer.
type ConsumerFunc func(DataPoint)

func (f ConsumerFunc) Receive(p DataPoint) { f(p) }

// DataCollector is the reporting-side view of recorded data.
type DataCollector interface {
	ID() string
	Size() int
	Feed(Consumer)
}

// Collector aggregates iteration events from workload slots.
// It implements core.Reporter and DataCollector; each event is fed as a data
// point holding the iteration duration in milliseconds.
type Collector struct {
	id        string
	events    []core.Event
	ch        chan core.Event
	done      chan struct{}
	mu        sync.Mutex
	sendMu    sync.RWMutex
	closed    bool
	total     atomic.Int64
	failed    atomic.Int64
	startTime time.Time
	endTime   time.Time
}

// NewCollector creates a new Collector and starts its collection goroutine.
func NewCollector() *Collector {
	return NewCollectorWithID(IterationsID)
}

// NewCollectorWithID creates a Collector registered under id.
func NewCollectorWithID(id string) *Collector {
	c := &Collector{
		id:        id,
		events:    make([]core.Event, 0),
		ch:        make(chan core.Event, 1000),
		done:      make(chan struct{}),
		startTime: time.Now(),
	}
	go c.collect()
	return c
}

func (c *Collector) collect() {
	for event := range c.ch {
		c.mu.Lock()
		c.events = append(c.events, event)
		c.mu.Unlock()
	}
	close(c.done)
}

// Report records an event. Thread-safe. Events reported after Close are dropped.
func (c *Collector) Report(event core.Event) {
	c.sendMu.RLock()
	defer c.sendMu.RUnlock()
	if c.closed {
		return
	}
	c.total.Add(1)
	if !event.Success {
		c.failed.Add(1)
	}
	c.ch <- event
}

// Close stops accepting events and waits until every accepted event is stored.
// Calling Close more than once is a no-op.
func (c *Collector) Close() {
	c.sendMu.Lock()
	if c.closed {
		c.sendMu.Unlock()
		return
	}
	c.closed = true
	c.mu.Lock()
	c.endTime = time.Now()
	c.mu.Unlock()
	close(c.ch)
	c.sendMu.Unlock()
	<-c.done
}

// Events returns a copy of collected events.
func (c *Collector) Events() []core.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]core.Event, len(c.events))
	copy(result, c.events)
	return result
}

// Counts returns the number of reported iterations and how many failed.
// Unlike Events it includes events still in flight.
func (c *Collector) Counts() (total, failed int) {
	return int(c.total.Load()), int(c.failed.Load())
}

// Duration returns the collection duration.
// If the collector is closed, returns the duration from start to end.
// If still running, returns the duration from start to now.
func (c *Collector) Duration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.endTime.IsZero() {
		return c.endTime.Sub(c.startTime)
	}
	return time.Since(c.startTime)
}

// Compute computes metrics over the events collected so far.
func (c *Collector) Compute() *Metrics {
	return ComputeMetrics(c.Events(), c.Duration())
}

func (c *Collector) ID() string { return c.id }

func (c *Collector) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func (c *Collector) Feed(consumer Consumer) {
	for _, e := range c.Events() {
		consumer.Receive(DataPoint{
			Timestamp: e.Timestamp,
			Value:     float64(e.Duration) / float64(time.Millisecond),
		})
	}
}

func (c *Collector) String() string {
	total, failed := c.Counts()
	return c.id + ": " + formatNumber(total) + " iterations, " + formatNumber(failed) + " failed"
}
