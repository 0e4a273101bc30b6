package engine

import (
	"io"
	"log/slog"
	"testing"
	"time"

	_ "cexarb/internal/exchange/gateio"
	_ "cexarb/internal/exchange/mexc"

	"cexarb/internal/config"
)

func noopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		Exchanges: map[string]config.ExchangeConfig{
			"MEXC_SPOT": {
				Name:         "MEXC_SPOT",
				BaseURL:      "https://api.mexc.com",
				WebsocketURL: "wss://wbs.mexc.com/ws",
				RateLimit:    config.RateLimitConfig{RequestsPerSecond: 10, Burst: 10},
			},
		},
		Scheduler:   config.SchedulerConfig{TickInterval: 250 * time.Millisecond},
		Persistence: config.PersistenceConfig{DataDir: dir, SchemaVersion: 1},
		Logging:     config.LoggingConfig{Level: "info", Format: "text"},
		Admin:       config.AdminConfig{Enabled: false},
	}
}

func TestNewBuildsOneRuntimePerConfiguredExchange(t *testing.T) {
	t.Parallel()
	e, err := New(testConfig(t), noopLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	pub, priv, ok := e.Composite("MEXC_SPOT")
	if !ok {
		t.Fatal("expected MEXC_SPOT composite to be registered")
	}
	if pub == nil {
		t.Error("expected a public composite")
	}
	if priv != nil {
		t.Error("expected no private composite without credentials")
	}
}

func TestNewFailsForUnregisteredExchangeTag(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	cfg.Exchanges["UNKNOWN_EXCHANGE"] = config.ExchangeConfig{
		Name: "UNKNOWN_EXCHANGE", BaseURL: "x", WebsocketURL: "y",
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 1},
	}
	if _, err := New(cfg, noopLogger()); err == nil {
		t.Error("expected error for an exchange tag with no registered adapter")
	}
}

func TestExchangeSnapshotReportsDisconnectedBeforeStart(t *testing.T) {
	t.Parallel()
	e, err := New(testConfig(t), noopLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	snap := e.ExchangeSnapshot()
	if len(snap) != 1 {
		t.Fatalf("len(snapshot) = %d, want 1", len(snap))
	}
	if snap[0].Connected {
		t.Error("expected Connected=false before Start")
	}
}

func TestSchedulerSnapshotEmptyBeforeAnyTaskAdded(t *testing.T) {
	t.Parallel()
	e, err := New(testConfig(t), noopLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if len(e.SchedulerSnapshot()) != 0 {
		t.Error("expected no tasks registered yet")
	}
}
