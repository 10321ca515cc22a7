package lab

import (
	"sync"
	"time"
)

// timers runs one-shot actions for time based starts and stops. Pending
// actions can be released early, which runs each of them exactly once right
// away, or cancelled, which drops them.
type timers struct {
	mu       sync.Mutex
	pending  map[*time.Timer]func()
	released bool
}

func newTimers() *timers {
	return &timers{pending: make(map[*time.Timer]func())}
}

func (t *timers) after(d time.Duration, f func()) {
	t.mu.Lock()
	if t.released {
		t.mu.Unlock()
		f()
		return
	}
	var timer *time.Timer
	timer = time.AfterFunc(d, func() {
		t.mu.Lock()
		_, ok := t.pending[timer]
		delete(t.pending, timer)
		t.mu.Unlock()
		if ok {
			f()
		}
	})
	t.pending[timer] = f
	t.mu.Unlock()
}

// release runs every pending action now. Actions scheduled afterwards run
// immediately.
func (t *timers) release() {
	t.mu.Lock()
	t.released = true
	actions := make([]func(), 0, len(t.pending))
	for timer, f := range t.pending {
		timer.Stop()
		actions = append(actions, f)
	}
	clear(t.pending)
	t.mu.Unlock()

	for _, f := range actions {
		f()
	}
}

// cancel drops every pending action.
func (t *timers) cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for timer := range t.pending {
		timer.Stop()
	}
	clear(t.pending)
}

func (t *timers) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}
