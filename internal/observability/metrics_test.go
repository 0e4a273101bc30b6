package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestSlogMetricsCountEmitsStructuredEvent(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	m := NewSlogMetrics(logger)

	m.Count("orders_placed", "exchange:mexc_spot")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if entry["name"] != "orders_placed" {
		t.Errorf("name = %v, want orders_placed", entry["name"])
	}
	if entry["kind"] != "count" {
		t.Errorf("kind = %v, want count", entry["kind"])
	}
}

func TestSlogMetricsGaugeAndObserve(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	m := NewSlogMetrics(logger)

	m.Gauge("queue_depth", 12.5)
	m.Observe("fill_latency_ms", 42.0)

	out := buf.String()
	if !strings.Contains(out, "queue_depth") || !strings.Contains(out, "fill_latency_ms") {
		t.Errorf("expected both metric names in output, got: %s", out)
	}
}

func TestNoopMetricsNeverPanics(t *testing.T) {
	t.Parallel()
	var m NoopMetrics
	m.Count("x")
	m.Gauge("y", 1)
	m.Observe("z", 1)
}
