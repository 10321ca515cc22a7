// Package coordinator runs a single workload: it fans the workload's task
// slots out over a dedicated pool, drives each slot's iterations according to
// the workload's duration, and fires the lifecycle events.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"benchlab/internal/core"
	"benchlab/internal/logging"
	"benchlab/internal/metrics"
	"benchlab/internal/ratelimit"
	"benchlab/internal/scope"
	"benchlab/internal/workload"
)

// Scope keys bound by the manager.
const (
	WorkloadKey = "workload" // workload name, on the workload scope
	SlotKey     = "slot"     // 1-based slot number, on each slot scope
)

// Pool runs workload run-functions. *errgroup.Group satisfies it.
type Pool interface {
	Go(f func() error)
}

// Config carries the collaborators shared by all managers of a benchmark.
type Config struct {
	Reporter core.Reporter
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// Manager owns the execution of one workload.
type Manager struct {
	workload *workload.Workload
	scope    *scope.Scope
	reporter core.Reporter
	metrics  *metrics.Metrics
	logger   *slog.Logger
	limiter  *ratelimit.Limiter

	ctx     context.Context
	cancel  context.CancelFunc
	stopped atomic.Bool
	aborted atomic.Bool
	started atomic.Bool

	scheduled atomic.Int32
	finished  atomic.Int32

	mu       sync.Mutex
	contexts []*scope.Scope

	done chan struct{}
}

// NewManager prepares w for execution. The workload gets a child of parent as
// its scope. Cancelling ctx interrupts the workload's tasks.
func NewManager(ctx context.Context, w *workload.Workload, parent *scope.Scope, cfg Config) *Manager {
	if cfg.Reporter == nil {
		cfg.Reporter = core.NullReporter
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	ctx, cancel := context.WithCancel(ctx)
	sc := parent.Child().Bind(WorkloadKey, w.Name())
	return &Manager{
		workload: w,
		scope:    sc,
		reporter: cfg.Reporter,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger.With("workload", w.Name()),
		limiter:  ratelimit.ForWorkload(w.RateLimit()),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

func (m *Manager) Workload() *workload.Workload { return m.workload }

// Scope returns the workload scope handed to event handlers.
func (m *Manager) Scope() *scope.Scope { return m.scope }

// Start submits the workload's run-function to pool and returns a channel
// that is closed once the Completion event has fired. Only the first call
// schedules the workload; later calls are logged and return the same channel.
func (m *Manager) Start(pool Pool) <-chan struct{} {
	if !m.started.CompareAndSwap(false, true) {
		m.logger.Warn("workload already started, ignoring start request")
		return m.done
	}
	pool.Go(func() error {
		m.run()
		return nil
	})
	return m.done
}

// Stop requests cooperative cancellation: slots finish their current
// iteration and start no new one, and blocked tasks and delays observe the
// cancelled context. Stopping a workload that has not started yet makes it
// complete without iterating once it is started.
func (m *Manager) Stop() {
	if m.stopped.Swap(true) {
		return
	}
	m.logger.Info("canceling workload")
	m.cancel()
}

// Abort stops the workload because the whole run is being torn down.
func (m *Manager) Abort() {
	m.aborted.Store(true)
	m.Stop()
}

// Done is closed after the workload fired Completion.
func (m *Manager) Done() <-chan struct{} { return m.done }

func (m *Manager) IsStarted() bool { return m.started.Load() }

func (m *Manager) IsStopped() bool { return m.stopped.Load() }

// Progress returns how many slots were scheduled and how many have finished.
func (m *Manager) Progress() (scheduled, finished int) {
	return int(m.scheduled.Load()), int(m.finished.Load())
}

// Contexts returns the slot scopes created so far, in slot order.
func (m *Manager) Contexts() []*scope.Scope {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*scope.Scope, len(m.contexts))
	copy(out, m.contexts)
	return out
}

func (m *Manager) run() {
	defer close(m.done)
	defer m.cancel()

	w := m.workload
	w.MarkStarted()
	m.logger.Info("starting workload", "parallel", w.ParallelUnits(), "duration", fmt.Sprint(w.Duration()))

	m.fire(workload.Initialization)

	slots := new(errgroup.Group)
	slots.SetLimit(max(w.ParallelUnits(), 1))
	for i := 1; i <= w.ParallelUnits(); i++ {
		slot := i
		sc := m.scope.Child().Bind(SlotKey, slot)
		m.mu.Lock()
		m.contexts = append(m.contexts, sc)
		m.mu.Unlock()

		n := m.scheduled.Add(1)
		m.logger.Debug("scheduling task", "slot", slot, "scheduled", n)
		slots.Go(func() error {
			defer func() {
				left := m.scheduled.Load() - m.finished.Add(1)
				m.logger.Debug("finished task", "slot", slot, "tasks_left", left)
			}()
			m.runSlot(slot, sc)
			return nil
		})
	}
	_ = slots.Wait()

	m.diagnoseInterruption()
	w.MarkFinished()
	m.logger.Info("finished workload", "execution_time", w.ExecutionTime())
	m.fire(workload.Completion)
}

func (m *Manager) fire(ev workload.Event) {
	if err := m.workload.Fire(ev, m.scope, m.logger); err != nil {
		for range joinedCount(err) {
			m.metrics.HandlerFailed(m.workload.Name(), ev.String())
		}
	}
}

func (m *Manager) runSlot(slot int, sc *scope.Scope) {
	name := m.workload.Name()
	m.metrics.SlotStarted(name)
	defer m.metrics.SlotFinished(name)
	defer m.recoverPanic(slot)

	task, err := m.workload.TaskFactory().Create(sc)
	if err != nil {
		m.logger.Error("creating task failed", "slot", slot, "error", err)
		m.reporter.Report(core.Event{
			Workload:  name,
			Slot:      slot,
			Timestamp: time.Now(),
			Success:   false,
			Error:     fmt.Sprintf("create task: %v", err),
		})
		return
	}
	m.logger.Debug("executing task", "slot", slot)

	switch d := m.workload.Duration().(type) {
	case workload.Repetitions:
		for round := 1; round <= d.Count; round++ {
			if m.interrupted() || !m.execute(task, sc, slot, round) {
				return
			}
		}
	case workload.TimeSpan, workload.UntilCompletion:
		for round := 1; !m.interrupted(); round++ {
			if !m.execute(task, sc, slot, round) {
				return
			}
		}
	default:
		m.logger.Error("unsupported duration", "duration", fmt.Sprint(d))
	}
}

// execute runs one iteration followed by the optional delay. It returns false
// when the slot must stop iterating.
func (m *Manager) execute(task workload.Task, sc *scope.Scope, slot, round int) bool {
	if err := m.limiter.Wait(m.ctx); err != nil {
		return false
	}

	start := time.Now()
	err := runIteration(m.ctx, task, sc)
	elapsed := time.Since(start)

	if err != nil && m.isCancellation(err) {
		m.logger.Debug("iteration cancelled", "slot", slot, "round", round)
		return false
	}

	event := core.Event{
		Workload:  m.workload.Name(),
		Slot:      slot,
		Round:     round,
		Timestamp: start,
		Duration:  elapsed,
		Success:   err == nil,
	}
	if err != nil {
		event.Error = err.Error()
		m.logger.Warn("task iteration failed", "slot", slot, "round", round, "error", err)
	}
	m.reporter.Report(event)
	m.metrics.ObserveIteration(event.Workload, elapsed, event.Success)

	if m.workload.HasDelay() {
		timer := time.NewTimer(m.workload.Delay())
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-m.ctx.Done():
			return false
		}
	}
	return true
}

func runIteration(ctx context.Context, task workload.Task, sc *scope.Scope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return task.Run(ctx, sc)
}

// recoverPanic recovers from panics outside task iterations (task creation)
// and reports them as failed events.
func (m *Manager) recoverPanic(slot int) {
	if r := recover(); r != nil {
		m.logger.Error("task slot panicked", "slot", slot, "panic", r)
		m.reporter.Report(core.Event{
			Workload:  m.workload.Name(),
			Slot:      slot,
			Timestamp: time.Now(),
			Success:   false,
			Error:     fmt.Sprintf("panic: %v", r),
		})
	}
}

func (m *Manager) interrupted() bool {
	return m.stopped.Load() || m.ctx.Err() != nil
}

// isCancellation distinguishes the cooperative stop signal from a genuine
// task failure that happens to wrap a context error.
func (m *Manager) isCancellation(err error) bool {
	if m.ctx.Err() == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// diagnoseInterruption logs stops that no start or duration rule explains.
func (m *Manager) diagnoseInterruption() {
	if m.aborted.Load() || !m.interrupted() {
		return
	}
	w := m.workload
	if !m.stopped.Load() {
		m.logger.Error("workload interrupted although no stop was requested", "unexpected", true)
		return
	}
	switch d := w.Duration().(type) {
	case workload.UntilCompletion:
		if !d.Dependency.IsFinished() {
			m.logger.Error("workload stopped although dependency has not finished",
				"dependency", d.Dependency.Name(), "unexpected", true)
		}
	case workload.Repetitions:
		m.logger.Error("workload stopped although no time based duration specified", "unexpected", true)
	case workload.TimeSpan:
		if elapsed := time.Since(w.Started()); elapsed < d.Span {
			m.logger.Error("workload stopped before its time span elapsed",
				"elapsed", elapsed, "span", d.Span, "unexpected", true)
		}
	}
}

func joinedCount(err error) int {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return len(j.Unwrap())
	}
	return 1
}
