package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"benchlab/internal/benchmark"
	"benchlab/internal/depgraph"
	"benchlab/internal/scope"
	"benchlab/internal/workload"
)

const checkout = `
title: checkout
basePath: ./reports
sampleInterval: 100ms
timeout: 2m
properties:
  env: staging
workloads:
  - name: warmup
    parallel: 4
    start: {immediately: true}
    duration: {repetitions: 5}
    delay: 10ms
    rps: 50
    task: {type: sleep, sleep: 5ms}
  - name: load
    start: {afterWorkload: warmup}
    duration: {lasts: 10s}
    task:
      type: http
      steps:
        - name: list
          method: GET
          url: "https://example.com/items"
          extract:
            first: "$.items[0].id"
  - name: monitor
    start: {after: 2s}
    duration: {until: load}
    task: {type: sleep, sleep: 1s}
`

func TestLoadConfig(t *testing.T) {
	cfg := loadConfigFromString(t, checkout)

	assert.Equal(t, "checkout", cfg.Title)
	assert.Equal(t, 100*time.Millisecond, cfg.SampleInterval)
	assert.Equal(t, 2*time.Minute, cfg.Timeout)
	require.Len(t, cfg.Workloads, 3)

	warmup := cfg.Workloads[0]
	assert.Equal(t, 4, *warmup.Parallel)
	assert.Equal(t, 10*time.Millisecond, warmup.Delay)
	assert.Equal(t, 50, warmup.RPS)
	assert.True(t, warmup.Start.Immediately)
	assert.Equal(t, 5, *warmup.Duration.Repetitions)

	steps := cfg.Workloads[1].Task.Steps
	require.Len(t, steps, 1)
	assert.Equal(t, "$.items[0].id", steps[0].Extract["first"])
}

func TestBuild(t *testing.T) {
	b, err := loadConfigFromString(t, checkout).Build(BuildOptions{})
	require.NoError(t, err)

	assert.Equal(t, "checkout", b.Title())
	assert.Equal(t, 2*time.Minute, b.Timeout())
	assert.Equal(t, 100*time.Millisecond, b.SampleIntervalOr(0))
	env, _ := b.Property("env")
	assert.Equal(t, "staging", env)
	basePath, _ := b.Property(benchmark.BasePath)
	assert.Equal(t, "./reports", basePath)

	warmup, _ := b.Workload("warmup")
	load, _ := b.Workload("load")
	monitor, _ := b.Workload("monitor")
	require.NotNil(t, warmup)
	require.NotNil(t, load)
	require.NotNil(t, monitor)

	assert.Equal(t, 4, warmup.ParallelUnits())
	assert.Equal(t, 10*time.Millisecond, warmup.Delay())
	assert.Equal(t, 50, warmup.RateLimit())
	assert.Equal(t, workload.Immediately{}, warmup.StartCondition())
	assert.Equal(t, workload.Repetitions{Count: 5}, warmup.Duration())
	assert.Equal(t, workload.AfterCompletion{Predecessor: warmup}, load.StartCondition())
	assert.Equal(t, workload.TimeSpan{Span: 10 * time.Second}, load.Duration())
	assert.Equal(t, workload.AfterDelay{Delay: 2 * time.Second}, monitor.StartCondition())
	assert.Equal(t, workload.UntilCompletion{Dependency: load}, monitor.Duration())
	assert.Equal(t, 1, load.ParallelUnits(), "default parallelism")

	assert.NoError(t, depgraph.Validate(b.Workloads()))
}

func TestBuild_MissingPartsAreLeftToValidation(t *testing.T) {
	cfg := loadConfigFromString(t, `
title: partial
workloads:
  - name: bare
`)
	b, err := cfg.Build(BuildOptions{})
	require.NoError(t, err)

	err = depgraph.Validate(b.Workloads())
	for _, k := range []depgraph.Kind{depgraph.MissingFactory, depgraph.MissingStart, depgraph.MissingDuration} {
		assert.True(t, depgraph.HasKind(err, k), "expected %v in %v", k, err)
	}
}

func TestBuild_ZeroParallelIsFiltered(t *testing.T) {
	cfg := loadConfigFromString(t, `
title: filtered
workloads:
  - name: idle
    parallel: 0
    start: {immediately: true}
    duration: {repetitions: 1}
    task: {type: sleep}
  - name: after-idle
    start: {afterWorkload: idle}
    duration: {repetitions: 1}
    task: {type: sleep}
`)
	b, err := cfg.Build(BuildOptions{})
	require.NoError(t, err)
	require.Len(t, b.Workloads(), 1, "idle workload is filtered")
	assert.True(t, depgraph.HasKind(depgraph.Validate(b.Workloads()), depgraph.UnknownDependency),
		"a dependency on a filtered workload fails validation")
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"empty title", `workloads: []`, "title"},
		{"missing name", "title: x\nworkloads:\n  - parallel: 1\n", "name is required"},
		{"duplicate", "title: x\nworkloads:\n  - name: a\n  - name: a\n", "duplicate name"},
		{"unknown start ref", "title: x\nworkloads:\n  - name: a\n    start: {afterWorkload: b}\n", `unknown workload "b"`},
		{"unknown duration ref", "title: x\nworkloads:\n  - name: a\n    duration: {until: b}\n", `unknown workload "b"`},
		{"two starts", "title: x\nworkloads:\n  - name: a\n    start: {immediately: true, after: 1s}\n", "exactly one of immediately"},
		{"no duration kind", "title: x\nworkloads:\n  - name: a\n    duration: {}\n", "exactly one of repetitions"},
		{"negative repetitions", "title: x\nworkloads:\n  - name: a\n    duration: {repetitions: -1}\n", "must not be negative"},
		{"negative parallel", "title: x\nworkloads:\n  - name: a\n    parallel: -2\n", "parallel must not be negative"},
		{"unknown task", "title: x\nworkloads:\n  - name: a\n    task: {type: grpc}\n", `unknown task type "grpc"`},
		{"http without steps", "title: x\nworkloads:\n  - name: a\n    task: {type: http}\n", "at least one step"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.content))
			require.NoError(t, err)
			_, err = cfg.Build(BuildOptions{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestBuild_EmptyTitleIsSentinel(t *testing.T) {
	_, err := (&Config{}).Build(BuildOptions{})
	assert.ErrorIs(t, err, benchmark.ErrEmptyTitle)
}

func TestSleepFactory(t *testing.T) {
	task, err := SleepFactory(10 * time.Millisecond).Create(scope.New(nil))
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, task.Run(context.Background(), nil))
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	long, _ := SleepFactory(time.Hour).Create(nil)
	assert.ErrorIs(t, long.Run(ctx, nil), context.Canceled)
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, err := LoadConfig("/nonexistent/benchmark.yaml")
	assert.Error(t, err)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	_, err := LoadConfig(createTempFile(t, "title: [unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config file")
}

func TestLoadConfig_InvalidDuration(t *testing.T) {
	_, err := LoadConfig(createTempFile(t, "title: x\ntimeout: soon\n"))
	assert.Error(t, err)
}

func loadConfigFromString(t *testing.T, content string) *Config {
	t.Helper()
	cfg, err := LoadConfig(createTempFile(t, content))
	require.NoError(t, err)
	return cfg
}

func createTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "benchmark.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestBuild_DataSourcesRelativeToConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "users.csv"), []byte("name\nalice\nbob\n"), 0o644))
	path := filepath.Join(dir, "bench.yaml")
	yml := `
title: feed
workloads:
  - name: login
    start: {immediately: true}
    duration: {repetitions: 2}
    task: {type: sleep}
    data:
      users: {file: users.csv}
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.Dir)

	b, err := cfg.Build(BuildOptions{})
	require.NoError(t, err)
	w, ok := b.Workload("login")
	require.True(t, ok)

	sc := scope.New(nil)
	task, err := w.TaskFactory().Create(sc)
	require.NoError(t, err)
	require.NoError(t, task.Run(context.Background(), sc))
	name, _ := scope.Lookup[string](sc, "data.users.name")
	assert.Equal(t, "alice", name, "first row bound before the iteration")
}

func TestBuild_DataSourceErrors(t *testing.T) {
	cfg := &Config{
		Title: "feed",
		Workloads: []WorkloadConfig{{
			Name: "w",
			Task: &TaskConfig{Type: TaskSleep},
			Data: map[string]DataConfig{"missing": {File: "nope.csv"}},
		}},
	}
	_, err := cfg.Build(BuildOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `data "missing"`)
}
