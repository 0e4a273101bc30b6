package adminserver

import (
	"time"

	"cexarb/internal/scheduler"
)

// ExchangeStatus is one exchange composite's connection state as surfaced
// on /api/exchanges (spec §6.4).
type ExchangeStatus struct {
	Exchange    string `json:"exchange"`
	Role        string `json:"role"` // "public" or "private"
	Connected   bool   `json:"connected"`
	SymbolCount int    `json:"symbol_count"`
}

// AdminSnapshot is the complete point-in-time state served by /api/scheduler
// + /api/exchanges combined, and broadcast as the initial /ws payload.
type AdminSnapshot struct {
	Timestamp time.Time              `json:"timestamp"`
	Tasks     []scheduler.Snapshot   `json:"tasks"`
	Exchanges []ExchangeStatus       `json:"exchanges"`
}

// Provider is the read-only surface the admin server queries; internal/engine's
// Engine type implements it. This is not a trading surface — it issues no
// exchange calls (spec §6.4).
type Provider interface {
	SchedulerSnapshot() []scheduler.Snapshot
	ExchangeSnapshot() []ExchangeStatus
}

// BuildSnapshot assembles the combined admin snapshot from a Provider.
func BuildSnapshot(p Provider) AdminSnapshot {
	return AdminSnapshot{
		Timestamp: time.Now(),
		Tasks:     p.SchedulerSnapshot(),
		Exchanges: p.ExchangeSnapshot(),
	}
}
