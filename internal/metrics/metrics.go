// Package metrics records request executions as Prometheus metrics.
//
// A Recorder owns a private registry so that several recorders can coexist in
// one process. It implements the engine's Observer interface:
//
//	rec := metrics.New()
//	engine := http.NewEngine(jar, http.WithObserver(rec))
//	...
//	rec.WriteTextfile("/var/lib/node_exporter/riposte.prom")
//
// Metrics:
//   - riposte_requests_total{method,status_class}: completed and failed executions
//   - riposte_errors_total{category}: failures by error category
//   - riposte_warnings_total{category}: non-fatal warnings attached to results
//   - riposte_phase_duration_seconds{phase}: duration of every trace phase
//   - riposte_response_body_bytes: body size as received on the wire
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wesleyorama2/riposte/internal/apierror"
	"github.com/wesleyorama2/riposte/internal/http"
	"github.com/wesleyorama2/riposte/internal/trace"
)

const namespace = "riposte"

// Recorder is an engine observer backed by Prometheus collectors.
type Recorder struct {
	registry      *prometheus.Registry
	requestsTotal *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	warningsTotal *prometheus.CounterVec
	phaseSeconds  *prometheus.HistogramVec
	bodyBytes     prometheus.Histogram
}

// New creates a Recorder with its own registry.
func New() *Recorder {
	r := prometheus.NewRegistry()
	m := &Recorder{
		registry: r,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Executed requests by method and status class",
		}, []string{"method", "status_class"}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Failed executions by error category",
		}, []string{"category"}),
		warningsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "warnings_total",
			Help:      "Non-fatal warnings by error category",
		}, []string{"category"}),
		phaseSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Request phase durations",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"phase"}),
		bodyBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "response_body_bytes",
			Help:      "Response body size as received",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 8),
		}),
	}
	r.MustRegister(m.requestsTotal, m.errorsTotal, m.warningsTotal, m.phaseSeconds, m.bodyBytes)
	return m
}

// Registry returns the registry holding the recorder's collectors.
func (m *Recorder) Registry() *prometheus.Registry { return m.registry }

// ObserveExecution implements http.Observer.
func (m *Recorder) ObserveExecution(method string, result *http.Result, err error) {
	if err != nil {
		category := string(apierror.CategoryOf(err))
		if category == "" {
			category = "unknown"
		}
		m.requestsTotal.WithLabelValues(method, "error").Inc()
		m.errorsTotal.WithLabelValues(category).Inc()
		return
	}

	m.requestsTotal.WithLabelValues(method, StatusClass(result.Status)).Inc()
	for _, w := range result.Warnings {
		m.warningsTotal.WithLabelValues(string(w.Category)).Inc()
	}
	for _, p := range trace.Phases() {
		d, ok := result.Stats.Durations[p]
		if !ok {
			continue
		}
		m.phaseSeconds.WithLabelValues(string(p)).Observe(d.Seconds())
	}
	m.bodyBytes.Observe(float64(result.BodySize))
}

// WriteTextfile writes the current metric values in the text exposition
// format, replacing path atomically.
func (m *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	return nil
}

// StatusClass maps a status code onto "1xx".."5xx".
func StatusClass(status int) string {
	if status < 100 || status > 599 {
		return "other"
	}
	return fmt.Sprintf("%dxx", status/100)
}

