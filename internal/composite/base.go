// Package composite implements the public/private composite-exchange
// runtime (spec §4.4): a shared Base (connection state, symbol metadata)
// specialized by Public (cached market data) and Private (uncached
// trading surface), both built from one exchange.Adapter.
package composite

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"cexarb/internal/config"
	"cexarb/internal/exchange"
	"cexarb/internal/transport/ws"
	"cexarb/pkg/domain"
)

// Base holds the state and connection-state dispatch shared by Public and
// Private (spec §4.4.1), grounded on the teacher's Engine's WS-state
// handling generalized down to one composite instance.
type Base struct {
	cfg     config.ExchangeConfig
	tag     domain.ExchangeEnum
	adapter exchange.Adapter
	logger  *slog.Logger

	publicRest exchange.PublicRest

	stateMu  sync.RWMutex
	state    ws.ConnectionState
	handlers []func(ws.ConnectionState)

	symbolsMu   sync.RWMutex
	symbolsInfo domain.SymbolsInfo

	// onReconnect is invoked after a CONNECTED transition that follows a
	// RECONNECTING state, implementing "_refresh_exchange_data()" (spec
	// §4.4.1). Public/Private set this during their own construction since
	// Go has no virtual-method override to hook into.
	onReconnect func(ctx context.Context)
	lastState   ws.ConnectionState
}

func newBase(cfg config.ExchangeConfig, adapter exchange.Adapter, logger *slog.Logger) *Base {
	return &Base{
		cfg: cfg, tag: adapter.Tag(), adapter: adapter,
		publicRest: adapter.NewPublicRest(),
		state:      ws.Disconnected,
		lastState:  ws.Disconnected,
		logger:     logger.With("component", "composite", "exchange", string(adapter.Tag())),
	}
}

// Initialize loads symbols_info via REST (spec §4.4.1's initialize()).
func (b *Base) Initialize(ctx context.Context) error {
	info, err := b.publicRest.GetSymbolsInfo(ctx)
	if err != nil {
		return fmt.Errorf("%s: initialize: %w", b.tag, err)
	}
	b.symbolsMu.Lock()
	b.symbolsInfo = info
	b.symbolsMu.Unlock()
	return nil
}

// refreshExchangeData re-fetches symbols_info; called on post-reconnect
// CONNECTED transitions.
func (b *Base) refreshExchangeData(ctx context.Context) {
	if err := b.Initialize(ctx); err != nil {
		b.logger.Warn("failed to refresh exchange data after reconnect", "error", err)
	}
}

// IsConnected reports whether the underlying WS connection, if any, is
// currently CONNECTED.
func (b *Base) IsConnected() bool {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()
	return b.state == ws.Connected
}

// ConnectionState returns the current WS connection state.
func (b *Base) ConnectionState() ws.ConnectionState {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()
	return b.state
}

// SymbolsInfo returns the cached symbol metadata map.
func (b *Base) SymbolsInfo() domain.SymbolsInfo {
	b.symbolsMu.RLock()
	defer b.symbolsMu.RUnlock()
	out := make(domain.SymbolsInfo, len(b.symbolsInfo))
	for k, v := range b.symbolsInfo {
		out[k] = v
	}
	return out
}

// OnConnectionState registers a callback invoked on every state transition.
func (b *Base) OnConnectionState(fn func(ws.ConnectionState)) {
	b.stateMu.Lock()
	b.handlers = append(b.handlers, fn)
	b.stateMu.Unlock()
}

// handleStateChange is wired as the ws.Client's OnStateChange callback. It
// dispatches to registered handlers and, on CONNECTED following a
// RECONNECTING transition, triggers refreshExchangeData.
func (b *Base) handleStateChange(ctx context.Context, s ws.ConnectionState) {
	b.stateMu.Lock()
	prev := b.lastState
	b.state = s
	// ws.Client passes through CONNECTING between RECONNECTING and
	// CONNECTED; skip it so prev still shows the reconnect.
	if s != ws.Connecting {
		b.lastState = s
	}
	handlers := append([]func(ws.ConnectionState){}, b.handlers...)
	b.stateMu.Unlock()

	for _, h := range handlers {
		h(s)
	}

	if s == ws.Connected && prev == ws.Reconnecting && b.onReconnect != nil {
		b.onReconnect(ctx)
	}
}

// Tag returns the exchange tag this composite wraps.
func (b *Base) Tag() domain.ExchangeEnum { return b.tag }

// Close is a no-op at the Base level; Public/Private close their own WS
// clients.
func (b *Base) Close() error { return nil }
