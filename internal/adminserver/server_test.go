package adminserver

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"cexarb/internal/scheduler"
)

func noopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeProvider struct {
	tasks     []scheduler.Snapshot
	exchanges []ExchangeStatus
}

func (f *fakeProvider) SchedulerSnapshot() []scheduler.Snapshot { return f.tasks }
func (f *fakeProvider) ExchangeSnapshot() []ExchangeStatus      { return f.exchanges }

func testServer() (*Server, *fakeProvider) {
	provider := &fakeProvider{
		tasks:     []scheduler.Snapshot{{TaskID: "t1", Symbol: "BTCUSDT", State: scheduler.StateRunning}},
		exchanges: []ExchangeStatus{{Exchange: "MEXC_SPOT", Role: "public", Connected: true, SymbolCount: 3}},
	}
	return NewServer(0, provider, noopLogger()), provider
}

func TestHandleHealthReturnsOK(t *testing.T) {
	t.Parallel()
	s, _ := testServer()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	s.server.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
}

func TestHandleSchedulerReturnsTaskSnapshots(t *testing.T) {
	t.Parallel()
	s, provider := testServer()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/scheduler", nil)
	s.server.Handler.ServeHTTP(rec, req)

	var got []scheduler.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got) != len(provider.tasks) || got[0].TaskID != "t1" {
		t.Errorf("got %+v, want %+v", got, provider.tasks)
	}
}

func TestHandleExchangesReturnsExchangeStatuses(t *testing.T) {
	t.Parallel()
	s, provider := testServer()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/exchanges", nil)
	s.server.Handler.ServeHTTP(rec, req)

	var got []ExchangeStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got) != len(provider.exchanges) || !got[0].Connected {
		t.Errorf("got %+v, want %+v", got, provider.exchanges)
	}
}

func TestIsOriginAllowedLocalhostAndEmpty(t *testing.T) {
	t.Parallel()
	if !isOriginAllowed("", "example.com:8080") {
		t.Error("expected empty origin allowed")
	}
	if !isOriginAllowed("http://localhost:3000", "example.com:8080") {
		t.Error("expected localhost origin allowed")
	}
	if isOriginAllowed("http://evil.com", "example.com:8080") {
		t.Error("expected cross-origin request rejected")
	}
	if !isOriginAllowed("http://example.com", "example.com:8080") {
		t.Error("expected same-host origin allowed")
	}
}

func TestBuildSnapshotCombinesTasksAndExchanges(t *testing.T) {
	t.Parallel()
	_, provider := testServer()
	snap := BuildSnapshot(provider)
	if len(snap.Tasks) != 1 || len(snap.Exchanges) != 1 {
		t.Errorf("BuildSnapshot() = %+v, want 1 task and 1 exchange", snap)
	}
}
