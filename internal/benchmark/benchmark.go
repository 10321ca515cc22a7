// Package benchmark holds the definition and the results of one performance
// measurement: its workloads, global properties, collectors and reporters.
package benchmark

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"benchlab/internal/collector"
	"benchlab/internal/logging"
	"benchlab/internal/scope"
	"benchlab/internal/workload"
)

// Well-known property keys bound on the root scope.
const (
	TimeoutInSeconds = "Timeout in seconds"
	SampleInterval   = "Sample interval"
	BasePath         = "Base path"
	LogStream        = "Log stream"
	Title            = "Title"
	ReportBaseDir    = "Report base dir"
)

// ErrEmptyTitle is returned by New when the title cannot name a directory.
var ErrEmptyTitle = errors.New("benchmark title must be a valid identifier for a directory")

// Reporter turns a measured benchmark into some output.
type Reporter interface {
	Generate(b *Benchmark) error
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(b *Benchmark) error

func (f ReporterFunc) Generate(b *Benchmark) error { return f(b) }

// Benchmark aggregates the workloads of one measurement and, after the run,
// the slot scopes of every workload.
type Benchmark struct {
	title      string
	root       *scope.Scope
	collectors *collector.Registry

	mu         sync.Mutex
	workloads  []*workload.Workload
	reporters  []Reporter
	executions []*scope.Scope
	measured   bool
}

func New(title string) (*Benchmark, error) {
	if strings.TrimSpace(title) == "" || strings.ContainsAny(title, `/\`) {
		return nil, ErrEmptyTitle
	}
	b := &Benchmark{
		title:      title,
		collectors: collector.NewRegistry(),
	}
	b.root = scope.New(b)
	b.root.Bind(Title, title)
	return b, nil
}

func (b *Benchmark) Title() string { return b.title }

// RootScope returns the global scope every workload scope descends from.
func (b *Benchmark) RootScope() *scope.Scope { return b.root }

// SetProperty binds a global value visible from every workload and slot scope.
func (b *Benchmark) SetProperty(key string, value any) *Benchmark {
	b.root.Bind(key, value)
	return b
}

func (b *Benchmark) Property(key string) (any, bool) { return b.root.GetLocal(key) }

func (b *Benchmark) IsDefined(key string) bool { return b.root.Contains(key) }

func (b *Benchmark) SetBasePath(path string) *Benchmark { return b.SetProperty(BasePath, path) }

func (b *Benchmark) SetSampleInterval(d time.Duration) *Benchmark {
	return b.SetProperty(SampleInterval, d)
}

// SampleIntervalOr returns the configured sample interval or def.
func (b *Benchmark) SampleIntervalOr(def time.Duration) time.Duration {
	if d, ok := scope.Lookup[time.Duration](b.root, SampleInterval); ok && d > 0 {
		return d
	}
	return def
}

func (b *Benchmark) SetTimeout(d time.Duration) *Benchmark {
	return b.SetProperty(TimeoutInSeconds, int(d/time.Second))
}

// Timeout returns the overall run deadline, or 0 when none is configured.
func (b *Benchmark) Timeout() time.Duration {
	if s, ok := scope.Lookup[int](b.root, TimeoutInSeconds); ok && s > 0 {
		return time.Duration(s) * time.Second
	}
	return 0
}

// SetLogStream directs the log output of this benchmark's run to w.
func (b *Benchmark) SetLogStream(w io.Writer) *Benchmark { return b.SetProperty(LogStream, w) }

// LogStream returns the configured log sink, falling back to stdout.
func (b *Benchmark) LogStream() io.Writer {
	if w, ok := scope.Lookup[io.Writer](b.root, LogStream); ok && w != nil {
		return w
	}
	return os.Stdout
}

// Logger returns a text logger writing to the log stream when one is set,
// otherwise fallback.
func (b *Benchmark) Logger(fallback *slog.Logger) *slog.Logger {
	var logger *slog.Logger
	if w, ok := scope.Lookup[io.Writer](b.root, LogStream); ok && w != nil {
		logger = logging.NewLoggerWithWriter(slog.LevelInfo, "text", w)
	} else if fallback != nil {
		logger = fallback
	} else {
		logger = slog.Default()
	}
	return logger.With("benchmark", b.title)
}

// AddWorkload registers workloads. Workloads without tasks to run are
// dropped with a warning.
func (b *Benchmark) AddWorkload(workloads ...*workload.Workload) *Benchmark {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, w := range workloads {
		if w == nil {
			continue
		}
		if !w.HasTasksToRun() {
			b.Logger(nil).Warn("ignoring workload without tasks to run", "workload", w.Name())
			continue
		}
		b.workloads = append(b.workloads, w)
	}
	return b
}

func (b *Benchmark) Workloads() []*workload.Workload {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*workload.Workload, len(b.workloads))
	copy(out, b.workloads)
	return out
}

// Workload returns the registered workload with the given name.
func (b *Benchmark) Workload(name string) (*workload.Workload, bool) {
	for _, w := range b.Workloads() {
		if w.Name() == name {
			return w, true
		}
	}
	return nil, false
}

func (b *Benchmark) AddReporter(r Reporter) *Benchmark {
	b.mu.Lock()
	b.reporters = append(b.reporters, r)
	b.mu.Unlock()
	return b
}

func (b *Benchmark) AddCollector(c collector.DataCollector) collector.DataCollector {
	return b.collectors.Add(c)
}

// Collectors returns the collectors whose id starts with prefix.
func (b *Benchmark) Collectors(prefix string) []collector.DataCollector {
	return b.collectors.Collectors(prefix)
}

func (b *Benchmark) Collector(id string) (collector.DataCollector, bool) {
	return b.collectors.Get(id)
}

// Iterations returns the iteration collector attached by the laboratory.
func (b *Benchmark) Iterations() (*collector.Collector, bool) {
	c, ok := b.collectors.Get(collector.IterationsID)
	if !ok {
		return nil, false
	}
	it, ok := c.(*collector.Collector)
	return it, ok
}

// SetExecutions stores the slot scopes of a finished run.
func (b *Benchmark) SetExecutions(executions []*scope.Scope) {
	b.mu.Lock()
	b.executions = executions
	b.mu.Unlock()
}

// Executions returns the slot scopes of all workloads, one per task slot.
func (b *Benchmark) Executions() []*scope.Scope {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*scope.Scope, len(b.executions))
	copy(out, b.executions)
	return out
}

// MarkMeasured records that the benchmark has been run. It reports false if
// it was already measured; workloads carry handlers and timestamps of a
// single run.
func (b *Benchmark) MarkMeasured() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.measured {
		return false
	}
	b.measured = true
	return true
}

// GenerateReports runs every registered reporter in registration order and
// stops at the first failure.
func (b *Benchmark) GenerateReports() error {
	b.mu.Lock()
	reporters := make([]Reporter, len(b.reporters))
	copy(reporters, b.reporters)
	b.mu.Unlock()

	logger := b.Logger(nil)
	if len(reporters) == 0 {
		logger.Info("skipping report generation because no reporters have been registered")
		return nil
	}

	dir, err := b.prepareDirectory()
	if err != nil {
		return err
	}
	b.SetProperty(ReportBaseDir, dir)

	for i, r := range reporters {
		logger.Info("generating report", "reporter", fmt.Sprintf("%T", r), "dir", dir)
		if err := r.Generate(b); err != nil {
			return fmt.Errorf("reporter %d: %w", i, err)
		}
	}
	return nil
}

// ReportBaseDir returns the directory prepared by GenerateReports.
func (b *Benchmark) ReportBaseDir() string {
	dir, _ := scope.Lookup[string](b.root, ReportBaseDir)
	return dir
}

func (b *Benchmark) prepareDirectory() (string, error) {
	base, _ := scope.Lookup[string](b.root, BasePath)
	dir := filepath.Join(base, b.title, fmt.Sprint(time.Now().UnixMilli()))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("prepare report directory: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("prepare report directory: %w", err)
	}
	return abs, nil
}

func (b *Benchmark) String() string {
	var sb strings.Builder
	workloads := b.Workloads()
	fmt.Fprintf(&sb, "Experiment %s with %d workloads\n", b.title, len(workloads))
	for _, w := range workloads {
		fmt.Fprintf(&sb, "\t%s\n", w)
	}
	sb.WriteString("and additional parameters:\n")
	props := b.root.Properties()
	for _, k := range b.root.Keys() {
		fmt.Fprintf(&sb, "\t%s:%v\n", k, props[k])
	}
	return sb.String()
}
