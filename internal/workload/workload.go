// Package workload models a declared unit of repeated benchmark work.
package workload

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"benchlab/internal/core"
)

// NoDelay disables the pause between successive executions of a slot's task.
const NoDelay time.Duration = -1

// Workload describes one independently schedulable unit of repeated work.
// Configuration methods return the workload so calls can be chained; they are
// meant to be used before the benchmark runs.
type Workload struct {
	name          string
	parallelUnits int
	factory       TaskFactory
	start         StartCondition
	duration      Duration
	delay         time.Duration
	rateLimit     int
	clock         core.Clock

	// unix nanoseconds, 0 until set
	started  atomic.Int64
	finished atomic.Int64

	mu       sync.RWMutex
	handlers map[Event][]Handler
}

// New creates a workload with a single parallel unit and no delay.
func New(name string) *Workload {
	return &Workload{
		name:          name,
		parallelUnits: 1,
		delay:         NoDelay,
		clock:         core.RealClock{},
		handlers:      make(map[Event][]Handler),
	}
}

func (w *Workload) Name() string { return w.name }

func (w *Workload) ParallelUnits() int { return w.parallelUnits }

// SetParallelTasks sets how many task slots run concurrently. Zero excludes
// the workload from the run.
func (w *Workload) SetParallelTasks(n int) *Workload {
	if n < 0 {
		n = 0
	}
	w.parallelUnits = n
	return w
}

// HasTasksToRun reports whether the workload has at least one slot.
func (w *Workload) HasTasksToRun() bool { return w.parallelUnits > 0 }

func (w *Workload) TaskFactory() TaskFactory { return w.factory }

func (w *Workload) SetTaskFactory(f TaskFactory) *Workload {
	w.factory = f
	return w
}

func (w *Workload) StartCondition() StartCondition { return w.start }

func (w *Workload) SetStartCondition(c StartCondition) *Workload {
	w.start = c
	return w
}

func (w *Workload) StartImmediately() *Workload { return w.SetStartCondition(Immediately{}) }

func (w *Workload) StartAfter(d time.Duration) *Workload {
	return w.SetStartCondition(AfterDelay{Delay: d})
}

func (w *Workload) StartAfterCompletion(predecessor *Workload) *Workload {
	return w.SetStartCondition(AfterCompletion{Predecessor: predecessor})
}

func (w *Workload) Duration() Duration { return w.duration }

func (w *Workload) SetDuration(d Duration) *Workload {
	w.duration = d
	return w
}

func (w *Workload) RunRepetitions(n int) *Workload { return w.SetDuration(Repetitions{Count: n}) }

func (w *Workload) RunFor(d time.Duration) *Workload { return w.SetDuration(TimeSpan{Span: d}) }

func (w *Workload) RunUntilCompletion(dependency *Workload) *Workload {
	return w.SetDuration(UntilCompletion{Dependency: dependency})
}

func (w *Workload) Delay() time.Duration { return w.delay }

// SetDelay sets the pause inserted after every execution of a slot's task.
func (w *Workload) SetDelay(d time.Duration) *Workload {
	w.delay = d
	return w
}

func (w *Workload) HasDelay() bool { return w.delay > 0 }

// RateLimit returns the maximum iterations per second across all slots, 0 for none.
func (w *Workload) RateLimit() int { return w.rateLimit }

func (w *Workload) SetRateLimit(perSecond int) *Workload {
	w.rateLimit = perSecond
	return w
}

// SetClock replaces the clock used for lifecycle timestamps.
func (w *Workload) SetClock(c core.Clock) *Workload {
	w.clock = c
	return w
}

// Handle registers h for ev. Handlers for the same event run in registration order.
func (w *Workload) Handle(ev Event, h Handler) *Workload {
	w.mu.Lock()
	w.handlers[ev] = append(w.handlers[ev], h)
	w.mu.Unlock()
	return w
}

// OnInitialization is shorthand for Handle(Initialization, HandlerFunc(f)).
func (w *Workload) OnInitialization(f HandlerFunc) *Workload { return w.Handle(Initialization, f) }

// OnCompletion is shorthand for Handle(Completion, HandlerFunc(f)).
func (w *Workload) OnCompletion(f HandlerFunc) *Workload { return w.Handle(Completion, f) }

// Handlers returns a snapshot of the handlers registered for ev.
func (w *Workload) Handlers(ev Event) []Handler {
	w.mu.RLock()
	defer w.mu.RUnlock()
	hs := w.handlers[ev]
	out := make([]Handler, len(hs))
	copy(out, hs)
	return out
}

// MarkStarted records the start timestamp. Only the first call has an effect.
func (w *Workload) MarkStarted() bool {
	return w.started.CompareAndSwap(0, w.clock.Now().UnixNano())
}

// MarkFinished records the finish timestamp. Only the first call has an effect.
func (w *Workload) MarkFinished() bool {
	return w.finished.CompareAndSwap(0, w.clock.Now().UnixNano())
}

// Started returns the start timestamp, or the zero time.
func (w *Workload) Started() time.Time { return fromNanos(w.started.Load()) }

// Finished returns the finish timestamp, or the zero time.
func (w *Workload) Finished() time.Time { return fromNanos(w.finished.Load()) }

func (w *Workload) IsStarted() bool { return w.started.Load() != 0 }

func (w *Workload) IsFinished() bool { return w.finished.Load() != 0 }

// ExecutionTime returns finished - started, or -1 while the workload has not finished.
func (w *Workload) ExecutionTime() time.Duration {
	if !w.IsFinished() || !w.IsStarted() {
		return -1
	}
	return time.Duration(w.finished.Load() - w.started.Load())
}

func (w *Workload) String() string {
	var b strings.Builder
	b.WriteString(w.name)
	if et := w.ExecutionTime(); et >= 0 {
		fmt.Fprintf(&b, "(%dms)", et.Milliseconds())
	} else {
		b.WriteString("(-1ms)")
	}
	fmt.Fprintf(&b, "->Parallel tasks:%d", w.parallelUnits)
	fmt.Fprintf(&b, ",%v,%v", w.start, w.duration)
	return b.String()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
