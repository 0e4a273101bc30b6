package adminserver

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
)

// handlers holds the HTTP handler dependencies for the admin surface.
type handlers struct {
	provider Provider
	hub      *Hub
	logger   *slog.Logger
}

func newHandlers(provider Provider, hub *Hub, logger *slog.Logger) *handlers {
	return &handlers{provider: provider, hub: hub, logger: logger.With("component", "admin-handlers")}
}

func (h *handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (h *handlers) handleScheduler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.provider.SchedulerSnapshot()); err != nil {
		h.logger.Error("failed to encode scheduler snapshot", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (h *handlers) handleExchanges(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.provider.ExchangeSnapshot()); err != nil {
		h.logger.Error("failed to encode exchange snapshot", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (h *handlers) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(req *http.Request) bool { return isOriginAllowed(req.Header.Get("Origin"), req.Host) },
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := newWSClient(h.hub, conn)

	snapshot := BuildSnapshot(h.provider)
	evt := newEvent("snapshot", snapshot)
	data, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error("failed to marshal initial snapshot", "error", err)
		return
	}
	select {
	case client.send <- data:
	default:
		h.logger.Warn("failed to send initial snapshot to observer")
	}
}

// isOriginAllowed restricts non-empty Origin headers to localhost or the
// request's own host; non-browser clients that omit Origin are allowed
// through, matching the teacher's handling of that case.
func isOriginAllowed(origin, reqHost string) bool {
	if origin == "" {
		return true
	}
	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := strings.ToLower(originURL.Hostname())
	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return true
	}
	reqHostname := reqHost
	if h, _, err := net.SplitHostPort(reqHost); err == nil {
		reqHostname = h
	}
	return strings.EqualFold(host, reqHostname)
}
