package collector

import (
	"fmt"
	"sync"
	"time"
)

// Series is a DataCollector for values recorded by tasks, for example a
// queue depth sampled during a run.
type Series struct {
	id     string
	mu     sync.Mutex
	points []DataPoint
}

func NewSeries(id string) *Series {
	return &Series{id: id}
}

// Record appends value with the current time.
func (s *Series) Record(value float64) {
	s.RecordAt(time.Now(), value)
}

func (s *Series) RecordAt(ts time.Time, value float64) {
	s.mu.Lock()
	s.points = append(s.points, DataPoint{Timestamp: ts, Value: value})
	s.mu.Unlock()
}

func (s *Series) ID() string { return s.id }

func (s *Series) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.points)
}

func (s *Series) Feed(consumer Consumer) {
	s.mu.Lock()
	points := make([]DataPoint, len(s.points))
	copy(points, s.points)
	s.mu.Unlock()
	for _, p := range points {
		consumer.Receive(p)
	}
}

func (s *Series) String() string {
	return fmt.Sprintf("%s: %d data points", s.id, s.Size())
}

// Registry holds the collectors of one benchmark in registration order.
type Registry struct {
	mu         sync.RWMutex
	collectors []DataCollector
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Add registers c and returns it.
func (r *Registry) Add(c DataCollector) DataCollector {
	r.mu.Lock()
	r.collectors = append(r.collectors, c)
	r.mu.Unlock()
	return c
}

// Collectors returns every collector whose id starts with prefix; an empty
// prefix matches all.
func (r *Registry) Collectors(prefix string) []DataCollector {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []DataCollector
	for _, c := range r.collectors {
		if len(c.ID()) >= len(prefix) && c.ID()[:len(prefix)] == prefix {
			out = append(out, c)
		}
	}
	return out
}

// Get returns the collector registered under id.
func (r *Registry) Get(id string) (DataCollector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.collectors {
		if c.ID() == id {
			return c, true
		}
	}
	return nil, false
}
