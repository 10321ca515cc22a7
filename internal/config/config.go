// Package config reads benchmark definitions from YAML and builds them into
// runnable benchmarks.
package config

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"benchlab/internal/benchmark"
	"benchlab/internal/data"
	"benchlab/internal/httptask"
	"benchlab/internal/scope"
	"benchlab/internal/workload"
)

// Task types.
const (
	TaskSleep = "sleep"
	TaskHTTP  = "http"
)

// Config is the root of a benchmark file.
type Config struct {
	Title          string            `yaml:"title"`
	BasePath       string            `yaml:"basePath,omitempty"`
	SampleInterval time.Duration     `yaml:"sampleInterval,omitempty"`
	Timeout        time.Duration     `yaml:"timeout,omitempty"`
	Properties     map[string]string `yaml:"properties,omitempty"`
	Workloads      []WorkloadConfig  `yaml:"workloads"`

	// Dir resolves relative data file paths. LoadConfig sets it to the
	// directory of the file.
	Dir string `yaml:"-"`
}

// WorkloadConfig declares one workload. Parallel defaults to 1; an explicit
// 0 keeps the workload out of the run.
type WorkloadConfig struct {
	Name     string          `yaml:"name"`
	Parallel *int            `yaml:"parallel,omitempty"`
	Start    *StartConfig    `yaml:"start,omitempty"`
	Duration *DurationConfig `yaml:"duration,omitempty"`
	Delay    time.Duration   `yaml:"delay,omitempty"`
	RPS      int             `yaml:"rps,omitempty"`
	Task     *TaskConfig     `yaml:"task,omitempty"`

	Data map[string]DataConfig `yaml:"data,omitempty"`
}

// DataConfig names a CSV or JSON file whose rows are bound as
// data.<name>.<field> before every iteration.
type DataConfig struct {
	File string    `yaml:"file"`
	Mode data.Mode `yaml:"mode,omitempty"`
}

// StartConfig sets exactly one of its fields.
type StartConfig struct {
	Immediately   bool          `yaml:"immediately,omitempty"`
	After         time.Duration `yaml:"after,omitempty"`
	AfterWorkload string        `yaml:"afterWorkload,omitempty"`
}

// DurationConfig sets exactly one of its fields.
type DurationConfig struct {
	Repetitions *int          `yaml:"repetitions,omitempty"`
	Lasts       time.Duration `yaml:"lasts,omitempty"`
	Until       string        `yaml:"until,omitempty"`
}

type TaskConfig struct {
	Type  string          `yaml:"type"`
	Sleep time.Duration   `yaml:"sleep,omitempty"`
	Steps []httptask.Step `yaml:"steps,omitempty"`
}

// LoadConfig reads and parses a YAML benchmark file.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	cfg, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	cfg.Dir = filepath.Dir(path)
	return cfg, nil
}

func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return &cfg, nil
}

// BuildOptions carries the collaborators of built tasks.
type BuildOptions struct {
	Client *http.Client
	Debug  *httptask.DebugLogger
}

// Build turns the configuration into a benchmark. Workload references are
// resolved by name. A workload without start, duration or task is built
// without it so that graph validation reports the gap.
func (c *Config) Build(opts BuildOptions) (*benchmark.Benchmark, error) {
	b, err := benchmark.New(c.Title)
	if err != nil {
		return nil, err
	}
	if c.BasePath != "" {
		b.SetBasePath(c.BasePath)
	}
	if c.SampleInterval > 0 {
		b.SetSampleInterval(c.SampleInterval)
	}
	if c.Timeout > 0 {
		b.SetTimeout(c.Timeout)
	}
	for k, v := range c.Properties {
		b.SetProperty(k, v)
	}

	var errs []error
	byName := make(map[string]*workload.Workload, len(c.Workloads))
	built := make([]*workload.Workload, 0, len(c.Workloads))
	for i, wc := range c.Workloads {
		if wc.Name == "" {
			errs = append(errs, fmt.Errorf("workload %d: name is required", i))
			continue
		}
		if _, dup := byName[wc.Name]; dup {
			errs = append(errs, fmt.Errorf("workload %q: duplicate name", wc.Name))
			continue
		}
		w, err := wc.newWorkload(opts, c.Dir)
		if err != nil {
			errs = append(errs, fmt.Errorf("workload %q: %w", wc.Name, err))
			continue
		}
		byName[wc.Name] = w
		built = append(built, w)
	}

	resolve := func(owner, name string) (*workload.Workload, bool) {
		w, ok := byName[name]
		if !ok {
			errs = append(errs, fmt.Errorf("workload %q: references unknown workload %q", owner, name))
		}
		return w, ok
	}
	for _, wc := range c.Workloads {
		w, ok := byName[wc.Name]
		if !ok {
			continue
		}
		if err := wc.Start.validate(); err != nil {
			errs = append(errs, fmt.Errorf("workload %q: start: %w", wc.Name, err))
		} else if wc.Start != nil {
			switch {
			case wc.Start.AfterWorkload != "":
				if p, ok := resolve(wc.Name, wc.Start.AfterWorkload); ok {
					w.StartAfterCompletion(p)
				}
			case wc.Start.After > 0:
				w.StartAfter(wc.Start.After)
			default:
				w.StartImmediately()
			}
		}
		if err := wc.Duration.validate(); err != nil {
			errs = append(errs, fmt.Errorf("workload %q: duration: %w", wc.Name, err))
		} else if wc.Duration != nil {
			switch {
			case wc.Duration.Until != "":
				if d, ok := resolve(wc.Name, wc.Duration.Until); ok {
					w.RunUntilCompletion(d)
				}
			case wc.Duration.Lasts > 0:
				w.RunFor(wc.Duration.Lasts)
			default:
				w.RunRepetitions(*wc.Duration.Repetitions)
			}
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	b.AddWorkload(built...)
	return b, nil
}

func (wc WorkloadConfig) newWorkload(opts BuildOptions, dir string) (*workload.Workload, error) {
	w := workload.New(wc.Name)
	if wc.Parallel != nil {
		if *wc.Parallel < 0 {
			return nil, fmt.Errorf("parallel must not be negative, got %d", *wc.Parallel)
		}
		w.SetParallelTasks(*wc.Parallel)
	}
	if wc.Delay > 0 {
		w.SetDelay(wc.Delay)
	}
	if wc.RPS < 0 {
		return nil, fmt.Errorf("rps must not be negative, got %d", wc.RPS)
	}
	w.SetRateLimit(wc.RPS)
	if wc.Task != nil {
		f, err := wc.Task.factory(opts)
		if err != nil {
			return nil, fmt.Errorf("task: %w", err)
		}
		sources, err := wc.sources(dir)
		if err != nil {
			return nil, err
		}
		w.SetTaskFactory(data.Feed(f, sources))
	}
	return w, nil
}

func (wc WorkloadConfig) sources(dir string) (data.Sources, error) {
	names := make([]string, 0, len(wc.Data))
	for name := range wc.Data {
		names = append(names, name)
	}
	sort.Strings(names)

	sources := make(data.Sources, 0, len(names))
	for _, name := range names {
		dc := wc.Data[name]
		if dc.File == "" {
			return nil, fmt.Errorf("data %q: file is required", name)
		}
		src, err := data.Load(name, dc.File, dc.Mode, dir)
		if err != nil {
			return nil, fmt.Errorf("data %q: %w", name, err)
		}
		sources = append(sources, src)
	}
	return sources, nil
}

func (s *StartConfig) validate() error {
	if s == nil {
		return nil
	}
	n := 0
	if s.Immediately {
		n++
	}
	if s.After > 0 {
		n++
	}
	if s.AfterWorkload != "" {
		n++
	}
	if n != 1 {
		return errors.New("exactly one of immediately, after or afterWorkload must be set")
	}
	return nil
}

func (d *DurationConfig) validate() error {
	if d == nil {
		return nil
	}
	n := 0
	if d.Repetitions != nil {
		if *d.Repetitions < 0 {
			return fmt.Errorf("repetitions must not be negative, got %d", *d.Repetitions)
		}
		n++
	}
	if d.Lasts > 0 {
		n++
	}
	if d.Until != "" {
		n++
	}
	if n != 1 {
		return errors.New("exactly one of repetitions, lasts or until must be set")
	}
	return nil
}

func (t *TaskConfig) factory(opts BuildOptions) (workload.TaskFactory, error) {
	switch t.Type {
	case TaskSleep:
		return SleepFactory(t.Sleep), nil
	case TaskHTTP:
		return httptask.NewFactory(t.Steps, opts.Client, opts.Debug)
	default:
		return nil, fmt.Errorf("unknown task type %q", t.Type)
	}
}

// SleepFactory creates tasks that sleep for d per iteration, returning early
// with the context error when cancelled.
func SleepFactory(d time.Duration) workload.TaskFactory {
	return workload.TaskFactoryFunc(func(*scope.Scope) (workload.Task, error) {
		return workload.TaskFunc(func(ctx context.Context, _ *scope.Scope) error {
			if d <= 0 {
				return ctx.Err()
			}
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-t.C:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}), nil
	})
}
