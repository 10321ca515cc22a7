// Package lab measures benchmarks: it validates their workload graphs, wires
// the start and stop triggers between workloads and drives every workload to
// completion.
package lab

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"benchlab/internal/benchmark"
	"benchlab/internal/collector"
	"benchlab/internal/coordinator"
	"benchlab/internal/core"
	"benchlab/internal/depgraph"
	"benchlab/internal/logging"
	"benchlab/internal/metrics"
	"benchlab/internal/scope"
	"benchlab/internal/workload"
)

// RunID is the root scope key holding the id of the benchmark's measurement.
const RunID = "Run id"

var (
	// ErrAlreadyMeasured is returned when a benchmark is run a second time.
	ErrAlreadyMeasured = errors.New("benchmark has already been measured")
	// ErrTimedOut is returned by Measure when the benchmark's own timeout
	// ended the measurement. Run logs it and goes on with the next benchmark.
	ErrTimedOut = errors.New("benchmark timeout elapsed")
)

// Option configures a Laboratory.
type Option func(*Laboratory)

// WithLogger sets the logger used for benchmarks without a log stream.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Laboratory) { l.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Laboratory) { l.metrics = m }
}

// WithReporter adds a sink that receives every iteration event of every run.
func WithReporter(r core.Reporter) Option {
	return func(l *Laboratory) { l.reporters = append(l.reporters, r) }
}

// Laboratory runs benchmarks.
type Laboratory struct {
	logger    *slog.Logger
	metrics   *metrics.Metrics
	reporters []core.Reporter
}

func New(opts ...Option) *Laboratory {
	l := &Laboratory{logger: logging.Discard()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run validates every benchmark and, only if all of them are valid, measures
// them one after the other. Cancelling ctx aborts the running benchmark: its
// workloads stop, still fire Completion, and Run returns the context error.
func (l *Laboratory) Run(ctx context.Context, benchmarks ...*benchmark.Benchmark) error {
	var errs []error
	for _, b := range benchmarks {
		if err := depgraph.Validate(b.Workloads()); err != nil {
			errs = append(errs, fmt.Errorf("benchmark %q: %w", b.Title(), err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	for _, b := range benchmarks {
		err := l.Measure(ctx, b)
		if errors.Is(err, ErrTimedOut) {
			l.logger.Warn("benchmark ended by its timeout, continuing", "benchmark", b.Title(), "timeout", b.Timeout())
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Measure validates b, runs its workloads to completion and stores the slot
// scopes of all workloads as the benchmark's executions. When the
// benchmark's timeout ends the run, the result is an ErrTimedOut error;
// cancelling ctx yields the context error.
func (l *Laboratory) Measure(ctx context.Context, b *benchmark.Benchmark) error {
	if err := depgraph.Validate(b.Workloads()); err != nil {
		return fmt.Errorf("benchmark %q: %w", b.Title(), err)
	}
	if !b.MarkMeasured() {
		return fmt.Errorf("benchmark %q: %w", b.Title(), ErrAlreadyMeasured)
	}

	runID := uuid.NewString()
	b.SetProperty(RunID, runID)
	logger := b.Logger(l.logger).With("run_id", runID)

	parent := ctx
	if timeout := b.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, timeout, ErrTimedOut)
		defer cancel()
	}

	iterations := collector.NewCollector()
	b.AddCollector(iterations)
	defer iterations.Close()

	workloads := b.Workloads()
	if cycle := depgraph.CompletionCycle(workloads); cycle != nil {
		logger.Warn("workloads wait for each other's completion, the run ends only through cancellation",
			"workloads", names(cycle))
	}

	cfg := coordinator.Config{
		Reporter: append(core.Reporters{iterations}, l.reporters...),
		Metrics:  l.metrics,
		Logger:   logger,
	}
	managers := make(map[*workload.Workload]*coordinator.Manager, len(workloads))
	for _, w := range workloads {
		managers[w] = coordinator.NewManager(ctx, w, b.RootScope(), cfg)
	}

	pool := new(errgroup.Group)
	pool.SetLimit(max(len(workloads), 1))
	timers := newTimers()

	logger.Info("starting experiment", "workloads", len(workloads), "at", time.Now())

	// All triggers are installed before anything starts, so that a
	// predecessor finishing instantly cannot miss its dependents.
	for _, w := range workloads {
		l.wire(b, w, managers, pool, timers, logger)
	}

	for _, w := range workloads {
		m := managers[w]
		switch c := w.StartCondition().(type) {
		case workload.Immediately:
			m.Start(pool)
		case workload.AfterDelay:
			logger.Info("scheduling workload start", "workload", w.Name(), "at", time.Now().Add(c.Delay))
			timers.after(c.Delay, func() { m.Start(pool) })
		}
	}

	finished := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			logger.Warn("run cancelled, aborting workloads", "cause", context.Cause(ctx))
			for _, m := range managers {
				m.Abort()
			}
			timers.release()
		case <-finished:
		}
	}()

	for _, w := range workloads {
		<-managers[w].Done()
	}
	close(finished)
	timers.cancel()
	_ = pool.Wait()

	logger.Info("finished experiment", "iterations", iterations.String())

	var executions []*scope.Scope
	for _, w := range workloads {
		executions = append(executions, managers[w].Contexts()...)
	}
	b.SetExecutions(executions)

	if err := ctx.Err(); err != nil {
		if parent.Err() == nil && errors.Is(context.Cause(ctx), ErrTimedOut) {
			return fmt.Errorf("benchmark %q: %w", b.Title(), ErrTimedOut)
		}
		return fmt.Errorf("benchmark %q: %w", b.Title(), err)
	}
	return nil
}

// wire installs the handlers that drive w: the stop timer of a time based
// duration, and the start or stop triggers on the workloads w depends on.
func (l *Laboratory) wire(b *benchmark.Benchmark, w *workload.Workload,
	managers map[*workload.Workload]*coordinator.Manager, pool coordinator.Pool,
	timers *timers, logger *slog.Logger) {
	m := managers[w]

	w.OnCompletion(func(*scope.Scope) error {
		l.metrics.WorkloadCompleted(b.Title())
		return nil
	})

	if d, ok := w.Duration().(workload.TimeSpan); ok {
		w.OnInitialization(func(*scope.Scope) error {
			logger.Info("scheduling timer to cancel workload",
				"workload", w.Name(), "at", time.Now().Add(d.Span))
			timers.after(d.Span, m.Stop)
			return nil
		})
	}

	if c, ok := w.StartCondition().(workload.AfterCompletion); ok {
		c.Predecessor.OnCompletion(func(*scope.Scope) error {
			logger.Info("predecessor completed, starting workload",
				"workload", w.Name(), "predecessor", c.Predecessor.Name())
			m.Start(pool)
			return nil
		})
	}

	if d, ok := w.Duration().(workload.UntilCompletion); ok {
		d.Dependency.OnCompletion(func(*scope.Scope) error {
			logger.Info("dependency completed, stopping workload",
				"workload", w.Name(), "dependency", d.Dependency.Name())
			m.Stop()
			return nil
		})
	}
}

func names(workloads []*workload.Workload) []string {
	out := make([]string, len(workloads))
	for i, w := range workloads {
		out[i] = w.Name()
	}
	return out
}
