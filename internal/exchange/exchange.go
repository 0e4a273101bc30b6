// Package exchange defines the adapter contract every per-exchange package
// (mexc, gateio) implements: uniform REST surfaces producing domain types,
// plus the WS dialects consumed by internal/transport/ws. Composite
// exchanges (internal/composite) are built on top of these interfaces.
package exchange

import (
	"context"
	"time"

	"cexarb/internal/transport/ws"
	"cexarb/pkg/domain"
)

// PublicRest is the read-only market-data REST surface every adapter
// implements (spec §4.3).
type PublicRest interface {
	GetSymbolsInfo(ctx context.Context) (domain.SymbolsInfo, error)
	GetOrderBook(ctx context.Context, symbol domain.Symbol, depth int) (domain.OrderBook, error)
	GetRecentTrades(ctx context.Context, symbol domain.Symbol, limit int) ([]domain.Trade, error)
	GetBookTicker(ctx context.Context, symbol domain.Symbol) (domain.BookTicker, error)
	// GetKlinesBatch paginates across the exchange's per-call maxima,
	// respecting rate limits, until [start,end) is covered.
	GetKlinesBatch(ctx context.Context, symbol domain.Symbol, interval domain.KlineInterval, start, end time.Time) ([]domain.Kline, error)
}

// PrivateRest is the uncached trading REST surface (spec §4.4.3). Every
// call issues a fresh request; composites never serve these from cache.
type PrivateRest interface {
	GetBalances(ctx context.Context) ([]domain.AssetBalance, error)
	GetAssetBalance(ctx context.Context, asset domain.AssetName) (domain.AssetBalance, error)
	GetOpenOrders(ctx context.Context, symbol domain.Symbol) ([]domain.Order, error)
	GetOrder(ctx context.Context, symbol domain.Symbol, orderID domain.OrderId) (domain.Order, error)
	PlaceOrder(ctx context.Context, symbol domain.Symbol, side domain.Side, orderType domain.OrderType, price, qty float64, tif domain.TimeInForce) (domain.Order, error)
	CancelOrder(ctx context.Context, symbol domain.Symbol, orderID domain.OrderId) error
	CancelAllOrders(ctx context.Context, symbol domain.Symbol) error
	ModifyOrder(ctx context.Context, symbol domain.Symbol, orderID domain.OrderId, price, qty float64) (domain.Order, error)
	// ModifySupported reports whether ModifyOrder is implemented natively
	// by this exchange, or must be emulated as cancel+place by the caller.
	ModifySupported() bool
	GetPositions(ctx context.Context) ([]domain.Position, error)
}

// ListenKeyRest is implemented by adapters whose private WS authenticates
// via a REST-minted session token (e.g. MEXC) rather than in-band login.
type ListenKeyRest interface {
	CreateListenKey(ctx context.Context) (string, error)
	KeepAliveListenKey(ctx context.Context, key string) error
	DeleteListenKey(ctx context.Context, key string) error
}

// Validator checks an order against SymbolInfo before any wire call (spec
// §4.4.3's "Order validation"); rejections return
// *domain.OrderValidationError before the request is built. The gateio and
// mexc validators check min/max quantity, min notional and IsActive; neither
// checks price or quantity precision.
type Validator interface {
	ValidateOrder(info domain.SymbolInfo, side domain.Side, price, qty float64) error
}

// Adapter bundles everything a Factory needs to construct public/private
// composite exchanges for one ExchangeEnum tag.
type Adapter interface {
	Tag() domain.ExchangeEnum
	NewPublicRest() PublicRest
	NewPrivateRest() (PrivateRest, error) // error if credentials missing
	NewPublicWSDialect() ws.Dialect
	NewPrivateWSDialect() (ws.Dialect, error)
	Validator() Validator
	SymbolToWire(domain.Symbol) string
	WireToSymbol(string) (domain.Symbol, error)
	// PublicChannels returns the ws.Client.Subscribe channel identifiers for
	// one symbol's market-data streams (orderbook, trades, book ticker).
	PublicChannels(domain.Symbol) []string
	// PrivateChannels returns the channel identifiers for the private
	// user-data streams (account, orders, executions).
	PrivateChannels() []string
}
