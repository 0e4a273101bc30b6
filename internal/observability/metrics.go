// Package observability is the injectable metrics sink the core logs
// through (spec §6.4): "the logging backend... is an injectable sink" and
// "the core emits metrics for: connection state transitions, WS
// reconnects... task executions" — the core only ever depends on the
// Metrics interface, never on a concrete backend.
package observability

import "log/slog"

// Metrics is the sink every component reports through. Count increments a
// named counter by one per call; Gauge records a point-in-time value;
// Observe records a distribution sample (e.g. request latency).
type Metrics interface {
	Count(name string, tags ...string)
	Gauge(name string, value float64, tags ...string)
	Observe(name string, value float64, tags ...string)
}

// SlogMetrics is the default Metrics implementation: every call is logged
// as a structured "metric" event, grounded on the teacher's
// `logger.With("component", ...)` convention — no external metrics backend
// is wired, matching spec §6.4's "injectable sink" framing.
type SlogMetrics struct {
	logger *slog.Logger
}

// NewSlogMetrics constructs a slog-backed Metrics sink.
func NewSlogMetrics(logger *slog.Logger) *SlogMetrics {
	return &SlogMetrics{logger: logger.With("component", "metrics")}
}

func (m *SlogMetrics) Count(name string, tags ...string) {
	m.logger.Info("metric", "kind", "count", "name", name, "tags", tags, "value", 1)
}

func (m *SlogMetrics) Gauge(name string, value float64, tags ...string) {
	m.logger.Info("metric", "kind", "gauge", "name", name, "tags", tags, "value", value)
}

func (m *SlogMetrics) Observe(name string, value float64, tags ...string) {
	m.logger.Info("metric", "kind", "observe", "name", name, "tags", tags, "value", value)
}

// NoopMetrics discards every call; useful in tests that don't care about
// the metrics surface.
type NoopMetrics struct{}

func (NoopMetrics) Count(name string, tags ...string)                  {}
func (NoopMetrics) Gauge(name string, value float64, tags ...string)   {}
func (NoopMetrics) Observe(name string, value float64, tags ...string) {}
