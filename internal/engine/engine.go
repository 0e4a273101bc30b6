// Package engine is the orchestrator cmd/engine drives: it builds one
// Public/Private composite pair per configured exchange from the
// registry, wires the scheduler and (optionally) the admin server, and
// owns the start/stop lifecycle — grounded on the teacher's
// engine/engine.go ("wires scanner -> strategy -> exchange, manages
// market lifecycle"), generalized from Polymarket's single-venue wiring
// to this module's N-exchange registry lookup.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"cexarb/internal/adminserver"
	"cexarb/internal/composite"
	"cexarb/internal/config"
	"cexarb/internal/registry"
	"cexarb/internal/scheduler"
	"cexarb/internal/transport/ws"
	"cexarb/pkg/domain"
)

// exchangeRuntime bundles the composite pair for one configured exchange.
// private is nil when the exchange's config carries no credentials (a
// public-data-only deployment for that venue).
type exchangeRuntime struct {
	tag     domain.ExchangeEnum
	public  *composite.Public
	private *composite.Private
}

// Engine owns every composite exchange, the strategy scheduler, and
// (optionally) the read-only admin server.
type Engine struct {
	cfg       config.Config
	logger    *slog.Logger
	scheduler *scheduler.Scheduler
	admin     *adminserver.Server

	mu        sync.RWMutex
	exchanges map[domain.ExchangeEnum]*exchangeRuntime

	cancel context.CancelFunc
}

// New constructs an Engine from config: builds every exchange's adapter
// via the registry, wires its composite pair, and (if enabled) constructs
// the admin server bound to the engine as its Provider.
func New(cfg config.Config, logger *slog.Logger) (*Engine, error) {
	var persist *scheduler.Persistence
	if cfg.Persistence.DataDir != "" {
		p, err := scheduler.Open(cfg.Persistence.DataDir, cfg.Persistence.SchemaVersion, cfg.Persistence.MaxContextAge)
		if err != nil {
			return nil, fmt.Errorf("open persistence: %w", err)
		}
		persist = p
	}

	e := &Engine{
		cfg:       cfg,
		logger:    logger,
		scheduler: scheduler.New(cfg.Scheduler.TickInterval, cfg.Scheduler.TaskErrorBackoff, cfg.Scheduler.StopGracePeriod, persist, logger),
		exchanges: make(map[domain.ExchangeEnum]*exchangeRuntime),
	}

	for name, exCfg := range cfg.Exchanges {
		tag := domain.ExchangeEnum(name)
		adapter, err := registry.Build(tag, exCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("build adapter %s: %w", tag, err)
		}

		pub := composite.NewPublic(exCfg, adapter, logger)
		pub.OnConnectionState(func(s ws.ConnectionState) { e.onConnectionState(tag, "public", s) })
		rt := &exchangeRuntime{tag: tag, public: pub}

		if exCfg.Credentials != nil {
			priv, err := composite.NewPrivate(exCfg, adapter, composite.PrivateWebsocketHandlers{}, 0, logger)
			if err != nil {
				logger.Warn("private composite unavailable, continuing public-only", "exchange", tag, "error", err)
			} else {
				priv.OnConnectionState(func(s ws.ConnectionState) { e.onConnectionState(tag, "private", s) })
				rt.private = priv
			}
		}

		e.exchanges[tag] = rt
	}

	if cfg.Admin.Enabled {
		e.admin = adminserver.NewServer(cfg.Admin.Port, e, logger)
	}

	return e, nil
}

func (e *Engine) onConnectionState(tag domain.ExchangeEnum, role string, s ws.ConnectionState) {
	e.logger.Info("connection state changed", "exchange", tag, "role", role, "state", s)
	if e.admin != nil {
		e.admin.BroadcastConnectionState(string(tag), role, string(s))
	}
}

// Composite returns the public/private composite pair for tag, if
// configured, for callers that build scheduler.Task instances from them;
// cmd/engine builds none.
func (e *Engine) Composite(tag domain.ExchangeEnum) (*composite.Public, *composite.Private, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	rt, ok := e.exchanges[tag]
	if !ok {
		return nil, nil, false
	}
	return rt.public, rt.private, true
}

// AddTask registers a strategy task with the scheduler.
func (e *Engine) AddTask(task scheduler.Task) { e.scheduler.Add(task) }

// Start initializes every composite (REST symbol metadata) and runs their
// WS clients, the scheduler's tick loop, and the admin server, all in
// their own goroutines; it returns once everything has been launched, not
// once they've exited.
func (e *Engine) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	e.mu.RLock()
	runtimes := make([]*exchangeRuntime, 0, len(e.exchanges))
	for _, rt := range e.exchanges {
		runtimes = append(runtimes, rt)
	}
	e.mu.RUnlock()

	for _, rt := range runtimes {
		if err := rt.public.Initialize(runCtx); err != nil {
			return fmt.Errorf("initialize %s public: %w", rt.tag, err)
		}
		go func(rt *exchangeRuntime) {
			if err := rt.public.Run(runCtx); err != nil && runCtx.Err() == nil {
				e.logger.Error("public ws run failed", "exchange", rt.tag, "error", err)
			}
		}(rt)

		if rt.private == nil {
			continue
		}
		if err := rt.private.Initialize(runCtx); err != nil {
			e.logger.Warn("initialize private failed, continuing public-only", "exchange", rt.tag, "error", err)
			continue
		}
		go func(rt *exchangeRuntime) {
			if err := rt.private.Run(runCtx); err != nil && runCtx.Err() == nil {
				e.logger.Error("private ws run failed", "exchange", rt.tag, "error", err)
			}
		}(rt)
	}

	go e.scheduler.Run(runCtx)

	if e.admin != nil {
		go func() {
			if err := e.admin.Start(); err != nil {
				e.logger.Error("admin server failed", "error", err)
			}
		}()
	}

	return nil
}

// Stop gracefully shuts down the admin server, the scheduler (waiting up
// to its configured grace period), and every composite's WS client.
func (e *Engine) Stop() {
	if e.admin != nil {
		if err := e.admin.Stop(); err != nil {
			e.logger.Error("admin server stop failed", "error", err)
		}
	}

	e.scheduler.Stop()

	if e.cancel != nil {
		e.cancel()
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	for tag, rt := range e.exchanges {
		if err := rt.public.Close(); err != nil {
			e.logger.Warn("close public failed", "exchange", tag, "error", err)
		}
		if rt.private != nil {
			if err := rt.private.Close(); err != nil {
				e.logger.Warn("close private failed", "exchange", tag, "error", err)
			}
		}
	}
}

// SchedulerSnapshot implements adminserver.Provider.
func (e *Engine) SchedulerSnapshot() []scheduler.Snapshot { return e.scheduler.Snapshot() }

// ExchangeSnapshot implements adminserver.Provider.
func (e *Engine) ExchangeSnapshot() []adminserver.ExchangeStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]adminserver.ExchangeStatus, 0, len(e.exchanges)*2)
	for tag, rt := range e.exchanges {
		out = append(out, adminserver.ExchangeStatus{
			Exchange:    string(tag),
			Role:        "public",
			Connected:   rt.public.IsConnected(),
			SymbolCount: len(rt.public.SymbolsInfo()),
		})
		if rt.private != nil {
			out = append(out, adminserver.ExchangeStatus{
				Exchange:    string(tag),
				Role:        "private",
				Connected:   rt.private.IsConnected(),
				SymbolCount: len(rt.private.SymbolsInfo()),
			})
		}
	}
	return out
}
