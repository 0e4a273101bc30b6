// Package domain defines the shared data structures used across all packages.
//
// This package is the common vocabulary for the engine — symbols, orders,
// order books, balances, and positions. It has no dependencies on internal
// packages, so it can be imported by any layer. Records here are constructed
// without side effects and hold no references to clients or callbacks; a
// serialization layer converts them to/from exchange-native formats at the
// adapter boundary only.
package domain

import "time"

// ————————————————————————————————————————————————————————————————————————
// Core enums
// ————————————————————————————————————————————————————————————————————————

// AssetName is an opaque uppercase asset identifier, e.g. "BTC", "USDT".
type AssetName string

// Symbol identifies a tradeable instrument. Equality and hashing are
// structural. Futures sort after spot when ordering a symbol list.
type Symbol struct {
	Base      AssetName
	Quote     AssetName
	IsFutures bool
}

func (s Symbol) String() string {
	if s.IsFutures {
		return string(s.Base) + "_" + string(s.Quote) + "-FUTURES"
	}
	return string(s.Base) + "_" + string(s.Quote)
}

// Less orders spot symbols before futures symbols, then lexicographically.
func (s Symbol) Less(other Symbol) bool {
	if s.IsFutures != other.IsFutures {
		return !s.IsFutures
	}
	if s.Base != other.Base {
		return s.Base < other.Base
	}
	return s.Quote < other.Quote
}

// ExchangeEnum is the closed set of exchange tags every adapter registers
// under exactly one of.
type ExchangeEnum string

const (
	MexcSpot      ExchangeEnum = "MEXC_SPOT"
	GateioSpot    ExchangeEnum = "GATEIO_SPOT"
	GateioFutures ExchangeEnum = "GATEIO_FUTURES"
)

// OrderId is an opaque exchange-assigned order identifier.
type OrderId string

// Side is the direction of an order or fill.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// Sign returns +1 for Buy, -1 for Sell.
func (s Side) Sign() float64 {
	if s == Buy {
		return 1
	}
	return -1
}

// OrderType enumerates the supported order lifecycles.
type OrderType string

const (
	Limit             OrderType = "LIMIT"
	Market            OrderType = "MARKET"
	LimitMaker        OrderType = "LIMIT_MAKER"
	ImmediateOrCancel OrderType = "IMMEDIATE_OR_CANCEL"
	FillOrKill        OrderType = "FILL_OR_KILL"
	StopLimit         OrderType = "STOP_LIMIT"
	StopMarket        OrderType = "STOP_MARKET"
)

// OrderStatus is the closed set of order lifecycle states.
type OrderStatus string

const (
	StatusNew             OrderStatus = "NEW"
	StatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	StatusFilled          OrderStatus = "FILLED"
	StatusCanceled        OrderStatus = "CANCELED"
	StatusRejected        OrderStatus = "REJECTED"
	StatusExpired         OrderStatus = "EXPIRED"
	StatusUnknown         OrderStatus = "UNKNOWN"
)

// IsTerminal reports whether the order can no longer mutate.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case StatusFilled, StatusCanceled, StatusRejected, StatusExpired:
		return true
	}
	return false
}

// TimeInForce controls order expiry semantics.
type TimeInForce string

const (
	GTC TimeInForce = "GTC"
	IOC TimeInForce = "IOC"
	FOK TimeInForce = "FOK"
	GTD TimeInForce = "GTD"
)

// KlineInterval is a closed enum of candle durations.
type KlineInterval string

const (
	Interval1m  KlineInterval = "1m"
	Interval5m  KlineInterval = "5m"
	Interval15m KlineInterval = "15m"
	Interval30m KlineInterval = "30m"
	Interval1h  KlineInterval = "1h"
	Interval4h  KlineInterval = "4h"
	Interval12h KlineInterval = "12h"
	Interval1d  KlineInterval = "1d"
	Interval1w  KlineInterval = "1w"
	Interval1M  KlineInterval = "1M"
)

// ————————————————————————————————————————————————————————————————————————
// Market records
// ————————————————————————————————————————————————————————————————————————
//
// Numeric policy: all prices, quantities, and fees are 64-bit floats. No
// arbitrary-precision decimals; rounding is exchange-specific precision
// truncation applied only at the wire boundary (see internal/exchange).
// Internal comparisons use explicit tolerances (min_step, tick_tolerance).

// PriceLevel is a single bid or ask level.
type PriceLevel struct {
	Price float64
	Qty   float64
}

// BookTicker is a compact record of top-of-book prices and sizes.
type BookTicker struct {
	Symbol      Symbol
	BidPrice    float64
	BidQty      float64
	AskPrice    float64
	AskQty      float64
	TimestampMs int64
}

// MidPrice returns the midpoint of the top-of-book quote.
func (b BookTicker) MidPrice() float64 {
	return (b.BidPrice + b.AskPrice) / 2
}

// OrderBookUpdateKind tags how an OrderBook reached its current state.
type OrderBookUpdateKind string

const (
	BookSnapshot  OrderBookUpdateKind = "SNAPSHOT"
	BookDiff      OrderBookUpdateKind = "DIFF"
	BookReconnect OrderBookUpdateKind = "RECONNECT"
)

// OrderBook is a full depth view, bids ordered descending, asks ascending.
type OrderBook struct {
	Symbol      Symbol
	Bids        []PriceLevel
	Asks        []PriceLevel
	TimestampMs int64
	UpdateID    int64
}

// BestBid returns the top bid, or zero value and false if empty.
func (ob OrderBook) BestBid() (PriceLevel, bool) {
	if len(ob.Bids) == 0 {
		return PriceLevel{}, false
	}
	return ob.Bids[0], true
}

// BestAsk returns the top ask, or zero value and false if empty.
func (ob OrderBook) BestAsk() (PriceLevel, bool) {
	if len(ob.Asks) == 0 {
		return PriceLevel{}, false
	}
	return ob.Asks[0], true
}

// Trade is a single executed trade, public or own-fill.
type Trade struct {
	Symbol        Symbol
	Side          Side
	Price         float64
	Quantity      float64
	QuoteQuantity float64
	TimestampMs   int64
	TradeID       string
	IsMaker       bool
}

// Kline is a single OHLCV candle.
type Kline struct {
	Symbol      Symbol
	Interval    KlineInterval
	OpenTimeMs  int64
	CloseTimeMs int64
	Open        float64
	High        float64
	Low         float64
	Close       float64
	Volume      float64
}

// SymbolInfo carries precision and trading-limit metadata for one symbol.
type SymbolInfo struct {
	Symbol        Symbol
	PricePrecision int
	QtyPrecision   int
	MinQuantity    float64
	MaxQuantity    float64
	MinNotional    float64
	Tick           float64
	Step           float64
	IsActive       bool
}

// SymbolsInfo maps every tradeable symbol on one exchange to its metadata.
type SymbolsInfo map[Symbol]SymbolInfo

// ————————————————————————————————————————————————————————————————————————
// Trading records
// ————————————————————————————————————————————————————————————————————————

// Order is the normalized order record returned by every adapter.
//
// Invariant: 0 <= FilledQuantity <= Quantity; Status == StatusFilled iff
// FilledQuantity is within step tolerance of Quantity.
type Order struct {
	OrderID         OrderId
	ClientOrderID   string
	Symbol          Symbol
	Side            Side
	OrderType       OrderType
	Price           float64
	Quantity        float64
	FilledQuantity  float64
	Status          OrderStatus
	TimestampMs     int64
	AveragePrice    float64
	Fee             float64
	FeeAsset        AssetName
}

// AssetBalance is a single asset's available/locked balance.
type AssetBalance struct {
	Asset     AssetName
	Available float64
	Locked    float64
}

// Total returns Available + Locked.
func (b AssetBalance) Total() float64 { return b.Available + b.Locked }

// PositionMode is the operating mode of a strategy leg's Position.
type PositionMode string

const (
	ModeAccumulate PositionMode = "accumulate"
	ModeHedge      PositionMode = "hedge"
	ModeRelease    PositionMode = "release"
)

// Position tracks directional exposure for one (exchange, symbol) leg of a
// strategy. See position.go in this package for the mutating operations.
type Position struct {
	Qty        float64
	Price      float64      // volume-weighted average entry price of the remaining qty
	Side       Side
	Mode       PositionMode
	AccQty     float64      // lifetime quantity accumulated in accumulate mode
	TargetQty  float64
	LastOrder  *Order
	RealizedPnL   float64
	UnrealizedPnL float64
	LastUpdated   time.Time
}
