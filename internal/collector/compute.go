package collector

import (
	"sort"
	"time"

	"benchlab/internal/core"
)

// DurationMetrics summarizes a set of iteration durations.
type DurationMetrics struct {
	Min time.Duration
	Max time.Duration
	Avg time.Duration
	P50 time.Duration
	P90 time.Duration
	P95 time.Duration
	P99 time.Duration
}

// WorkloadMetrics holds per-workload counts.
type WorkloadMetrics struct {
	Count    int
	Success  int
	Failed   int
	Duration DurationMetrics
}

// Metrics is the summary of a benchmark run.
type Metrics struct {
	TotalIterations  int
	SuccessCount     int
	FailureCount     int
	SuccessRate      float64
	IterationsPerSec float64
	TestDuration     time.Duration
	Duration         DurationMetrics
	Workloads        map[string]*WorkloadMetrics
}

// ComputeMetrics computes metrics from events. Pure function, no side effects.
func ComputeMetrics(events []core.Event, testDuration time.Duration) *Metrics {
	m := &Metrics{
		Workloads:    make(map[string]*WorkloadMetrics),
		TestDuration: testDuration,
	}

	if len(events) == 0 {
		return m
	}

	allDurations := make([]time.Duration, 0, len(events))
	workloadDurations := make(map[string][]time.Duration)

	for _, e := range events {
		m.TotalIterations++
		if e.Success {
			m.SuccessCount++
		} else {
			m.FailureCount++
		}
		allDurations = append(allDurations, e.Duration)

		wm, exists := m.Workloads[e.Workload]
		if !exists {
			wm = &WorkloadMetrics{}
			m.Workloads[e.Workload] = wm
		}
		wm.Count++
		if e.Success {
			wm.Success++
		} else {
			wm.Failed++
		}
		workloadDurations[e.Workload] = append(workloadDurations[e.Workload], e.Duration)
	}

	m.SuccessRate = float64(m.SuccessCount) / float64(m.TotalIterations) * 100
	if m.TestDuration > 0 {
		m.IterationsPerSec = float64(m.TotalIterations) / m.TestDuration.Seconds()
	}

	m.Duration = ComputeDurationMetrics(allDurations)
	for name, durations := range workloadDurations {
		m.Workloads[name].Duration = ComputeDurationMetrics(durations)
	}

	return m
}

// ComputeDurationMetrics returns min, max, mean and percentiles of durations.
func ComputeDurationMetrics(durations []time.Duration) DurationMetrics {
	if len(durations) == 0 {
		return DurationMetrics{}
	}
	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}
	return DurationMetrics{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / time.Duration(len(sorted)),
		P50: ComputePercentile(sorted, 0.50),
		P90: ComputePercentile(sorted, 0.90),
		P95: ComputePercentile(sorted, 0.95),
		P99: ComputePercentile(sorted, 0.99),
	}
}

// ComputePercentile returns the nearest-rank percentile p (0..1) of sorted.
func ComputePercentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(p*float64(len(sorted))+0.5) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}

// WorkloadNames returns the workload names in sorted order.
func (m *Metrics) WorkloadNames() []string {
	names := make([]string, 0, len(m.Workloads))
	for name := range m.Workloads {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
