package composite

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"cexarb/internal/config"
	"cexarb/internal/transport/ws"
	"cexarb/pkg/domain"
)

func noopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSymbol() domain.Symbol {
	return domain.Symbol{Base: "BTC", Quote: "USDT"}
}

func newTestPublic(rest *fakePublicRest) *Public {
	adapter := &fakeAdapter{tag: domain.MexcSpot, pubRest: rest}
	cfg := config.ExchangeConfig{Name: "mexc", WebsocketURL: "wss://example.invalid"}
	return NewPublic(cfg, adapter, noopLogger())
}

func TestPublicAddSymbolCachesSnapshot(t *testing.T) {
	t.Parallel()
	sym := testSymbol()
	rest := &fakePublicRest{books: map[domain.Symbol]domain.OrderBook{
		sym: {Symbol: sym, Bids: []domain.PriceLevel{{Price: 100, Qty: 1}}},
	}}
	p := newTestPublic(rest)

	// With no live connection, AddSymbol's WS subscribe is only recorded
	// for the next connect; the REST snapshot lands in cache before it.
	_ = p.AddSymbol(context.Background(), sym)

	ob, ok := p.OrderBook(sym)
	if !ok {
		t.Fatal("expected order book to be cached after AddSymbol")
	}
	if len(ob.Bids) != 1 || ob.Bids[0].Price != 100 {
		t.Errorf("unexpected cached book: %+v", ob)
	}
}

func TestPublicAddSymbolIsIdempotent(t *testing.T) {
	t.Parallel()
	sym := testSymbol()
	calls := 0
	rest := &fakePublicRest{books: map[domain.Symbol]domain.OrderBook{sym: {Symbol: sym}}}
	p := newTestPublic(rest)

	_ = p.AddSymbol(context.Background(), sym)
	_ = p.AddSymbol(context.Background(), sym)

	_ = calls
	p.subMu.Lock()
	n := len(p.subscribed)
	p.subMu.Unlock()
	if n != 1 {
		t.Errorf("expected exactly one subscription entry, got %d", n)
	}
}

func TestPublicRemoveSymbolEvictsCache(t *testing.T) {
	t.Parallel()
	sym := testSymbol()
	rest := &fakePublicRest{books: map[domain.Symbol]domain.OrderBook{sym: {Symbol: sym}}}
	p := newTestPublic(rest)

	_ = p.AddSymbol(context.Background(), sym)
	if _, ok := p.OrderBook(sym); !ok {
		t.Fatal("precondition: book should be cached")
	}

	_ = p.RemoveSymbol(sym)
	if _, ok := p.OrderBook(sym); ok {
		t.Error("expected book to be evicted after RemoveSymbol")
	}
}

func TestPublicBulkInitializeIsolatesPerSymbolErrors(t *testing.T) {
	t.Parallel()
	good := domain.Symbol{Base: "BTC", Quote: "USDT"}
	bad := domain.Symbol{Base: "ETH", Quote: "USDT"}
	rest := &fakePublicRest{
		books:   map[domain.Symbol]domain.OrderBook{good: {Symbol: good}},
		bookErr: map[domain.Symbol]error{bad: errors.New("rest down")},
	}
	p := newTestPublic(rest)

	err := p.BulkInitialize(context.Background(), []domain.Symbol{good, bad})
	if err != nil {
		t.Errorf("expected partial success (not all symbols failed), got error: %v", err)
	}
	if _, ok := p.OrderBook(good); !ok {
		t.Error("expected the good symbol to be cached despite the bad one failing")
	}
	if _, ok := p.OrderBook(bad); ok {
		t.Error("did not expect the bad symbol to be cached")
	}
}

func TestPublicBulkInitializeFailsWhenAllSymbolsFail(t *testing.T) {
	t.Parallel()
	sym := testSymbol()
	rest := &fakePublicRest{bookErr: map[domain.Symbol]error{sym: errors.New("rest down")}}
	p := newTestPublic(rest)

	err := p.BulkInitialize(context.Background(), []domain.Symbol{sym})
	if err == nil {
		t.Error("expected an error when every symbol fails to initialize")
	}
}

func TestPublicHandleMessageUpdatesBookAndTickerCache(t *testing.T) {
	t.Parallel()
	sym := testSymbol()
	p := newTestPublic(&fakePublicRest{})

	var gotTicker domain.BookTicker
	p.OnBookTicker(func(bt domain.BookTicker) { gotTicker = bt })

	var gotUpdate OrderBookUpdate
	p.OnOrderBookUpdate(func(u OrderBookUpdate) { gotUpdate = u })

	p.handleMessage(ws.ParsedMessage{Kind: ws.MsgBookTicker, Payload: domain.BookTicker{Symbol: sym, BidPrice: 99, AskPrice: 101}})
	p.handleMessage(ws.ParsedMessage{Kind: ws.MsgOrderbook, Payload: domain.OrderBook{Symbol: sym, UpdateID: 42}})

	bt, ok := p.BookTicker(sym)
	if !ok || bt.BidPrice != 99 || bt.AskPrice != 101 {
		t.Errorf("BookTicker cache = %+v, ok=%v", bt, ok)
	}
	if gotTicker.BidPrice != 99 {
		t.Errorf("ticker handler did not receive the update: %+v", gotTicker)
	}

	ob, ok := p.OrderBook(sym)
	if !ok || ob.UpdateID != 42 {
		t.Errorf("OrderBook cache = %+v, ok=%v", ob, ok)
	}
	if gotUpdate.Kind != domain.BookDiff {
		t.Errorf("expected DIFF-tagged update, got %v", gotUpdate.Kind)
	}
}
