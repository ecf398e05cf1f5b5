// Package metrics exports operation counters and state gauges in the
// Prometheus text format.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/qareports/internal/core"
)

const namespace = "qareports"

// Recorder implements core.MetricsRecorder on a private registry, so
// several recorders can coexist in one process.
type Recorder struct {
	registry  *prometheus.Registry
	results   *prometheus.CounterVec
	durations *prometheus.HistogramVec
}

// NewRecorder creates a recorder with Go runtime and process collectors
// registered.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	r := &Recorder{
		registry: reg,
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Operations by name and outcome.",
		}, []string{"operation", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	reg.MustRegister(
		r.results,
		r.durations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Observe records one operation outcome.
func (r *Recorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	r.results.WithLabelValues(operation, status).Inc()
	r.durations.WithLabelValues(operation).Observe(duration.Seconds())
}

// TrackStats exports headline record counts, computed at scrape time.
func (r *Recorder) TrackStats(stats func() core.Stats) {
	gauge := func(name, help string, pick func(core.Stats) int) prometheus.GaugeFunc {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(pick(stats())) })
	}
	r.registry.MustRegister(
		gauge("records", "Records across all reports.", func(s core.Stats) int { return s.TotalParts }),
		gauge("records_pending", "Records awaiting correction.", func(s core.Stats) int { return s.PendingParts }),
		gauge("records_corrected", "Records marked corrected.", func(s core.Stats) int { return s.CorrectedParts }),
		gauge("records_invalid", "Records that could not be classified.", func(s core.Stats) int { return s.InvalidParts }),
	)
}

// Registry exposes the underlying registry for tests and extra collectors.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
