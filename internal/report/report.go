// Package report provides the reporters run after a benchmark was measured.
package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"benchlab/internal/benchmark"
	"benchlab/internal/collector"
	"benchlab/internal/coordinator"
	"benchlab/internal/scope"
)

// ErrNoIterations is returned by summary reporters when the benchmark has no
// iteration collector, which means it was never measured.
var ErrNoIterations = errors.New("benchmark has no iteration data")

func iterationMetrics(b *benchmark.Benchmark) (*collector.Metrics, error) {
	it, ok := b.Iterations()
	if !ok {
		return nil, fmt.Errorf("benchmark %q: %w", b.Title(), ErrNoIterations)
	}
	return it.Compute(), nil
}

// Text writes the human-readable summary to Out.
type Text struct {
	Out io.Writer
}

func (r Text) Generate(b *benchmark.Benchmark) error {
	m, err := iterationMetrics(b)
	if err != nil {
		return err
	}
	collector.FormatText(r.Out, b.Title(), m)
	return nil
}

// JSON writes the summary as a JSON document to Out.
type JSON struct {
	Out io.Writer
}

func (r JSON) Generate(b *benchmark.Benchmark) error {
	m, err := iterationMetrics(b)
	if err != nil {
		return err
	}
	return collector.FormatJSON(r.Out, b.Title(), m)
}

// File writes report.txt into the report directory: the benchmark
// description, the collectors and the slot count of every workload.
type File struct{}

const reportFile = "report.txt"

func (File) Generate(b *benchmark.Benchmark) error {
	dir := b.ReportBaseDir()
	if dir == "" {
		return errors.New("report directory has not been prepared")
	}
	f, err := os.Create(filepath.Join(dir, reportFile))
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer f.Close()

	fmt.Fprintln(f, "###### EXPERIMENT ##########")
	fmt.Fprintln(f, b)
	fmt.Fprintln(f)
	fmt.Fprintln(f, "##### COLLECTORS ########")
	for _, c := range b.Collectors("") {
		fmt.Fprintln(f, c)
	}
	fmt.Fprintln(f)
	fmt.Fprintln(f, "##### EXECUTIONS ########")
	counts, order := slotsPerWorkload(b.Executions())
	for _, name := range order {
		fmt.Fprintf(f, "%s: %d slots\n", name, counts[name])
	}
	return f.Close()
}

func slotsPerWorkload(executions []*scope.Scope) (map[string]int, []string) {
	counts := make(map[string]int)
	var order []string
	for _, sc := range executions {
		name, _ := scope.Lookup[string](sc, coordinator.WorkloadKey)
		if counts[name] == 0 {
			order = append(order, name)
		}
		counts[name]++
	}
	return counts, order
}

// CSV writes one <collector id>.csv file per collector into the report
// directory, holding the data points fed by the collector.
type CSV struct {
	// Prefix selects the collectors to export; empty exports all.
	Prefix string
}

func (r CSV) Generate(b *benchmark.Benchmark) error {
	dir := b.ReportBaseDir()
	if dir == "" {
		return errors.New("report directory has not been prepared")
	}
	for _, c := range b.Collectors(r.Prefix) {
		if err := writeSeries(filepath.Join(dir, c.ID()+".csv"), c); err != nil {
			return fmt.Errorf("collector %s: %w", c.ID(), err)
		}
	}
	return nil
}

func writeSeries(path string, c collector.DataCollector) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	_ = w.Write([]string{"timestamp", "value"})
	c.Feed(collector.ConsumerFunc(func(p collector.DataPoint) {
		_ = w.Write([]string{
			p.Timestamp.UTC().Format(time.RFC3339Nano),
			strconv.FormatFloat(p.Value, 'f', -1, 64),
		})
	}))
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}
