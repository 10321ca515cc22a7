// Package metrics instruments the benchmark engine with Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "benchlab"

// Metrics holds the engine collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	iterations        *prometheus.CounterVec
	iterationDuration *prometheus.HistogramVec
	activeSlots       *prometheus.GaugeVec
	workloadsDone     *prometheus.CounterVec
	handlerFailures   *prometheus.CounterVec
}

// New registers the engine collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		iterations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "iterations_total",
			Help:      "Task iterations executed, by workload and outcome.",
		}, []string{"workload", "outcome"}),
		iterationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "iteration_duration_seconds",
			Help:      "Duration of single task iterations.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 16),
		}, []string{"workload"}),
		activeSlots: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_slots",
			Help:      "Task slots currently running, by workload.",
		}, []string{"workload"}),
		workloadsDone: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workloads_completed_total",
			Help:      "Workloads that fired their completion event, by benchmark.",
		}, []string{"benchmark"}),
		handlerFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_failures_total",
			Help:      "Event handlers that returned an error or panicked.",
		}, []string{"workload", "event"}),
	}
}

// ObserveIteration records one finished iteration.
func (m *Metrics) ObserveIteration(workload string, d time.Duration, success bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.iterations.WithLabelValues(workload, outcome).Inc()
	m.iterationDuration.WithLabelValues(workload).Observe(d.Seconds())
}

// SlotStarted and SlotFinished track the active slot gauge.
func (m *Metrics) SlotStarted(workload string) {
	if m == nil {
		return
	}
	m.activeSlots.WithLabelValues(workload).Inc()
}

func (m *Metrics) SlotFinished(workload string) {
	if m == nil {
		return
	}
	m.activeSlots.WithLabelValues(workload).Dec()
}

func (m *Metrics) WorkloadCompleted(benchmark string) {
	if m == nil {
		return
	}
	m.workloadsDone.WithLabelValues(benchmark).Inc()
}

func (m *Metrics) HandlerFailed(workload, event string) {
	if m == nil {
		return
	}
	m.handlerFailures.WithLabelValues(workload, event).Inc()
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
