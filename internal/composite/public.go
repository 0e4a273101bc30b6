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

// OrderBookUpdate is delivered to registered handlers whenever a symbol's
// book changes, tagged with how it arrived (spec §4.4.2).
type OrderBookUpdate struct {
	Symbol domain.Symbol
	Kind   domain.OrderBookUpdateKind
	Book   domain.OrderBook
}

// Public is the cached public-market-data composite (spec §4.4.2): a
// per-symbol OrderBook/BookTicker cache fed by WS diffs, backstopped by a
// REST snapshot on every new subscription and on reconnect.
type Public struct {
	*Base

	rest    exchange.PublicRest
	adapter exchange.Adapter
	wsc     *ws.Client

	booksMu sync.RWMutex
	books   map[domain.Symbol]domain.OrderBook
	tickers map[domain.Symbol]domain.BookTicker

	subMu     sync.Mutex
	subscribed map[domain.Symbol]bool

	handlersMu    sync.RWMutex
	bookHandlers  []func(OrderBookUpdate)
	tickerHandlers []func(domain.BookTicker)
}

// NewPublic constructs a public composite for one exchange.
func NewPublic(cfg config.ExchangeConfig, adapter exchange.Adapter, logger *slog.Logger) *Public {
	base := newBase(cfg, adapter, logger)
	dialect := adapter.NewPublicWSDialect()
	policy := policyFromConfig(cfg.Websocket)
	wsc := ws.New(string(adapter.Tag())+":public", cfg.WebsocketURL, dialect, policy, base.logger)

	p := &Public{
		Base: base, rest: base.publicRest, adapter: adapter, wsc: wsc,
		books: make(map[domain.Symbol]domain.OrderBook),
		tickers: make(map[domain.Symbol]domain.BookTicker),
		subscribed: make(map[domain.Symbol]bool),
	}
	base.onReconnect = p.onReconnect
	return p
}

func policyFromConfig(c config.WebsocketConfig) ws.ReconnectPolicy {
	return ws.ReconnectPolicy{
		InitialDelay:      c.ReconnectDelay,
		BackoffFactor:     c.ReconnectBackoff,
		MaxDelay:          c.MaxReconnectDelay,
		MaxAttempts:       c.MaxReconnectAttempts,
		PingInterval:      c.PingInterval,
		ReadTimeout:       c.HeartbeatInterval,
		ResubscribeOnConn: true,
	}
}

// Run starts the WS client and its dispatch loop; blocks until ctx is done.
func (p *Public) Run(ctx context.Context) error {
	p.wsc.OnStateChange(func(s ws.ConnectionState) { p.handleStateChange(ctx, s) })
	go p.dispatchLoop(ctx)
	return p.wsc.Run(ctx)
}

// Close stops the WS client.
func (p *Public) Close() error { return p.wsc.Close() }

// OnOrderBookUpdate registers a handler invoked on every book change.
func (p *Public) OnOrderBookUpdate(fn func(OrderBookUpdate)) {
	p.handlersMu.Lock()
	p.bookHandlers = append(p.bookHandlers, fn)
	p.handlersMu.Unlock()
}

// OnBookTicker registers a handler invoked on every book-ticker push.
func (p *Public) OnBookTicker(fn func(domain.BookTicker)) {
	p.handlersMu.Lock()
	p.tickerHandlers = append(p.tickerHandlers, fn)
	p.handlersMu.Unlock()
}

// OrderBook returns the cached book for a symbol, or false if not tracked.
func (p *Public) OrderBook(symbol domain.Symbol) (domain.OrderBook, bool) {
	p.booksMu.RLock()
	defer p.booksMu.RUnlock()
	ob, ok := p.books[symbol]
	return ob, ok
}

// BookTicker returns the cached top-of-book for a symbol, or false if not
// tracked.
func (p *Public) BookTicker(symbol domain.Symbol) (domain.BookTicker, bool) {
	p.booksMu.RLock()
	defer p.booksMu.RUnlock()
	bt, ok := p.tickers[symbol]
	return bt, ok
}

// AddSymbol subscribes to one symbol's market data: fetches a REST
// snapshot, caches it as SNAPSHOT, then subscribes the WS channels.
func (p *Public) AddSymbol(ctx context.Context, symbol domain.Symbol) error {
	p.subMu.Lock()
	if p.subscribed[symbol] {
		p.subMu.Unlock()
		return nil
	}
	p.subscribed[symbol] = true
	p.subMu.Unlock()

	if err := p.loadSnapshot(ctx, symbol, domain.BookSnapshot); err != nil {
		return err
	}
	return p.wsc.Subscribe(p.adapter.PublicChannels(symbol))
}

// RemoveSymbol unsubscribes and evicts the cached state for a symbol.
func (p *Public) RemoveSymbol(symbol domain.Symbol) error {
	p.subMu.Lock()
	if !p.subscribed[symbol] {
		p.subMu.Unlock()
		return nil
	}
	delete(p.subscribed, symbol)
	p.subMu.Unlock()

	p.booksMu.Lock()
	delete(p.books, symbol)
	delete(p.tickers, symbol)
	p.booksMu.Unlock()

	return p.wsc.Unsubscribe(p.adapter.PublicChannels(symbol))
}

// BulkInitialize loads REST snapshots for every symbol concurrently (error
// isolation: one symbol's failure does not block the rest) and then
// subscribes each over WS (spec §4.4.2's "gather with error isolation").
func (p *Public) BulkInitialize(ctx context.Context, symbols []domain.Symbol) error {
	var wg sync.WaitGroup
	errsMu := sync.Mutex{}
	var errs []error

	for _, sym := range symbols {
		wg.Add(1)
		go func(sym domain.Symbol) {
			defer wg.Done()
			if err := p.AddSymbol(ctx, sym); err != nil {
				errsMu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", sym, err))
				errsMu.Unlock()
				p.logger.Warn("bulk initialize: symbol failed", "symbol", sym.String(), "error", err)
			}
		}(sym)
	}
	wg.Wait()

	if len(errs) == len(symbols) && len(symbols) > 0 {
		return fmt.Errorf("bulk initialize: all %d symbols failed: %w", len(symbols), errs[0])
	}
	return nil
}

func (p *Public) loadSnapshot(ctx context.Context, symbol domain.Symbol, kind domain.OrderBookUpdateKind) error {
	ob, err := p.rest.GetOrderBook(ctx, symbol, 100)
	if err != nil {
		return fmt.Errorf("snapshot %s: %w", symbol, err)
	}
	p.booksMu.Lock()
	p.books[symbol] = ob
	p.booksMu.Unlock()

	p.emitBookUpdate(OrderBookUpdate{Symbol: symbol, Kind: kind, Book: ob})
	return nil
}

// onReconnect re-snapshots every subscribed symbol and tags the update
// RECONNECT (spec §8's "at least one SNAPSHOT since the latest CONNECTED
// transition" invariant — RECONNECT carries the same guarantee as SNAPSHOT).
func (p *Public) onReconnect(ctx context.Context) {
	p.refreshExchangeData(ctx)

	p.subMu.Lock()
	symbols := make([]domain.Symbol, 0, len(p.subscribed))
	for s := range p.subscribed {
		symbols = append(symbols, s)
	}
	p.subMu.Unlock()

	for _, s := range symbols {
		if err := p.loadSnapshot(ctx, s, domain.BookReconnect); err != nil {
			p.logger.Warn("reconnect snapshot failed", "symbol", s.String(), "error", err)
		}
	}
}

func (p *Public) dispatchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-p.wsc.Messages():
			if !ok {
				return
			}
			p.handleMessage(msg)
		}
	}
}

func (p *Public) handleMessage(msg ws.ParsedMessage) {
	switch msg.Kind {
	case ws.MsgOrderbook:
		ob, ok := msg.Payload.(domain.OrderBook)
		if !ok {
			return
		}
		p.booksMu.Lock()
		p.books[ob.Symbol] = ob
		p.booksMu.Unlock()
		p.emitBookUpdate(OrderBookUpdate{Symbol: ob.Symbol, Kind: domain.BookDiff, Book: ob})
	case ws.MsgBookTicker:
		bt, ok := msg.Payload.(domain.BookTicker)
		if !ok {
			return
		}
		p.booksMu.Lock()
		p.tickers[bt.Symbol] = bt
		p.booksMu.Unlock()
		p.emitTicker(bt)
	case ws.MsgError:
		p.logger.Warn("public ws error frame", "channel", msg.Channel, "error", msg.Err)
	}
}

func (p *Public) emitBookUpdate(u OrderBookUpdate) {
	p.handlersMu.RLock()
	handlers := append([]func(OrderBookUpdate){}, p.bookHandlers...)
	p.handlersMu.RUnlock()
	for _, h := range handlers {
		h(u)
	}
}

func (p *Public) emitTicker(bt domain.BookTicker) {
	p.handlersMu.RLock()
	handlers := append([]func(domain.BookTicker){}, p.tickerHandlers...)
	p.handlersMu.RUnlock()
	for _, h := range handlers {
		h(bt)
	}
}
