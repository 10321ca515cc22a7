package collector

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"
)

// FormatText writes metrics in human-readable format.
func FormatText(w io.Writer, title string, m *Metrics) {
	if m.TotalIterations == 0 {
		fmt.Fprintln(w, "No iterations collected")
		return
	}

	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "%s - Benchmark Results\n", title)
	fmt.Fprintln(w, "==============================")
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "Duration:         %v\n", m.TestDuration.Round(time.Millisecond))
	fmt.Fprintf(w, "Total Iterations: %s\n", formatNumber(m.TotalIterations))
	fmt.Fprintf(w, "Success Rate:     %.1f%% (%s / %s)\n",
		m.SuccessRate, formatNumber(m.SuccessCount), formatNumber(m.TotalIterations))
	fmt.Fprintf(w, "Iterations/sec:   %.1f\n", m.IterationsPerSec)
	fmt.Fprintln(w, "")

	fmt.Fprintln(w, "Iteration Times:")
	fmt.Fprintf(w, "  Min:    %s\n", FormatDuration(m.Duration.Min))
	fmt.Fprintf(w, "  Avg:    %s\n", FormatDuration(m.Duration.Avg))
	fmt.Fprintf(w, "  P50:    %s\n", FormatDuration(m.Duration.P50))
	fmt.Fprintf(w, "  P90:    %s\n", FormatDuration(m.Duration.P90))
	fmt.Fprintf(w, "  P95:    %s\n", FormatDuration(m.Duration.P95))
	fmt.Fprintf(w, "  P99:    %s\n", FormatDuration(m.Duration.P99))
	fmt.Fprintf(w, "  Max:    %s\n", FormatDuration(m.Duration.Max))
	fmt.Fprintln(w, "")

	fmt.Fprintln(w, "By Workload:")
	for _, name := range m.WorkloadNames() {
		wm := m.Workloads[name]
		fmt.Fprintf(w, "  %-15s %s iters  failed=%d  avg=%s  p95=%s  p99=%s\n",
			name, formatNumber(wm.Count), wm.Failed,
			FormatDuration(wm.Duration.Avg),
			FormatDuration(wm.Duration.P95),
			FormatDuration(wm.Duration.P99))
	}
}

// FormatJSON writes metrics in JSON format.
func FormatJSON(w io.Writer, title string, m *Metrics) error {
	output := struct {
		Title            string                         `json:"title"`
		Duration         string                         `json:"duration"`
		TotalIterations  int                            `json:"totalIterations"`
		SuccessCount     int                            `json:"successCount"`
		FailureCount     int                            `json:"failureCount"`
		SuccessRate      float64                        `json:"successRate"`
		IterationsPerSec float64                        `json:"iterationsPerSec"`
		Durations        jsonDurationMetrics            `json:"durations"`
		Workloads        map[string]jsonWorkloadMetrics `json:"workloads"`
	}{
		Title:            title,
		Duration:         m.TestDuration.Round(time.Millisecond).String(),
		TotalIterations:  m.TotalIterations,
		SuccessCount:     m.SuccessCount,
		FailureCount:     m.FailureCount,
		SuccessRate:      m.SuccessRate,
		IterationsPerSec: m.IterationsPerSec,
		Durations:        toJSONDurationMetrics(m.Duration),
		Workloads:        make(map[string]jsonWorkloadMetrics),
	}

	for name, wm := range m.Workloads {
		output.Workloads[name] = jsonWorkloadMetrics{
			Count:       wm.Count,
			Success:     wm.Success,
			Failed:      wm.Failed,
			SuccessRate: float64(wm.Success) / float64(wm.Count) * 100,
			Durations:   toJSONDurationMetrics(wm.Duration),
		}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

type jsonDurationMetrics struct {
	Min string `json:"min"`
	Max string `json:"max"`
	Avg string `json:"avg"`
	P50 string `json:"p50"`
	P90 string `json:"p90"`
	P95 string `json:"p95"`
	P99 string `json:"p99"`
}

type jsonWorkloadMetrics struct {
	Count       int                 `json:"count"`
	Success     int                 `json:"success"`
	Failed      int                 `json:"failed"`
	SuccessRate float64             `json:"successRate"`
	Durations   jsonDurationMetrics `json:"durations"`
}

func toJSONDurationMetrics(d DurationMetrics) jsonDurationMetrics {
	return jsonDurationMetrics{
		Min: FormatDuration(d.Min),
		Max: FormatDuration(d.Max),
		Avg: FormatDuration(d.Avg),
		P50: FormatDuration(d.P50),
		P90: FormatDuration(d.P90),
		P95: FormatDuration(d.P95),
		P99: FormatDuration(d.P99),
	}
}

// FormatDuration renders d with a unit suited to its magnitude.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%.2fms", float64(d)/float64(time.Millisecond))
	default:
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
}

// formatNumber inserts thousands separators.
func formatNumber(n int) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	s := strconv.Itoa(n)
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	return s
}
