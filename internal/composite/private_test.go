package composite

import (
	"context"
	"testing"
	"time"

	"cexarb/internal/config"
	"cexarb/pkg/domain"
)

func newTestPrivate(t *testing.T, rest *fakePrivateRest, validator *fakeValidator) *Private {
	t.Helper()
	adapter := &fakeAdapter{tag: domain.MexcSpot, pubRest: &fakePublicRest{}, privRest: rest, validator: validator}
	cfg := config.ExchangeConfig{Name: "mexc", WebsocketURL: "wss://example.invalid"}
	pr, err := NewPrivate(cfg, adapter, PrivateWebsocketHandlers{}, 0, noopLogger())
	if err != nil {
		t.Fatalf("NewPrivate: %v", err)
	}
	return pr
}

func TestPrivatePlaceLimitOrderRequiresInitialize(t *testing.T) {
	t.Parallel()
	pr := newTestPrivate(t, &fakePrivateRest{}, &fakeValidator{})

	_, err := pr.PlaceLimitOrder(context.Background(), testSymbol(), domain.Buy, 100, 1, domain.GTC)
	if err == nil {
		t.Fatal("expected an error placing an order before symbol metadata is cached")
	}
}

func TestPrivatePlaceLimitOrderValidatesAfterInitialize(t *testing.T) {
	t.Parallel()
	sym := testSymbol()
	pubRest := &fakePublicRest{symbolsInfo: domain.SymbolsInfo{sym: {Symbol: sym, Tick: 0.1, Step: 0.01}}}
	rest := &fakePrivateRest{}
	adapter := &fakeAdapter{tag: domain.MexcSpot, pubRest: pubRest, privRest: rest, validator: &fakeValidator{}}
	cfg := config.ExchangeConfig{Name: "mexc", WebsocketURL: "wss://example.invalid"}
	pr, err := NewPrivate(cfg, adapter, PrivateWebsocketHandlers{}, 0, noopLogger())
	if err != nil {
		t.Fatalf("NewPrivate: %v", err)
	}

	if err := pr.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	order, err := pr.PlaceLimitOrder(context.Background(), sym, domain.Buy, 100, 1, domain.GTC)
	if err != nil {
		t.Fatalf("PlaceLimitOrder: %v", err)
	}
	if order.OrderType != domain.Limit {
		t.Errorf("OrderType = %v, want Limit", order.OrderType)
	}
}

func TestPrivatePlaceLimitOrderRejectedByValidator(t *testing.T) {
	t.Parallel()
	sym := testSymbol()
	pubRest := &fakePublicRest{symbolsInfo: domain.SymbolsInfo{sym: {Symbol: sym}}}
	rest := &fakePrivateRest{}
	adapter := &fakeAdapter{tag: domain.MexcSpot, pubRest: pubRest, privRest: rest, validator: &fakeValidator{err: &domain.OrderValidationError{Symbol: sym, Reason: "qty below minimum"}}}
	cfg := config.ExchangeConfig{WebsocketURL: "wss://example.invalid"}
	pr, err := NewPrivate(cfg, adapter, PrivateWebsocketHandlers{}, 0, noopLogger())
	if err != nil {
		t.Fatalf("NewPrivate: %v", err)
	}
	_ = pr.Initialize(context.Background())

	_, err = pr.PlaceLimitOrder(context.Background(), sym, domain.Buy, 100, 1, domain.GTC)
	if err == nil {
		t.Fatal("expected validator rejection to propagate")
	}
}

func TestPrivateModifyOrderEmulatesWhenUnsupported(t *testing.T) {
	t.Parallel()
	sym := testSymbol()
	pubRest := &fakePublicRest{symbolsInfo: domain.SymbolsInfo{sym: {Symbol: sym}}}
	rest := &fakePrivateRest{modifySupport: false, orders: map[domain.OrderId]domain.Order{
		"existing": {OrderID: "existing", Symbol: sym, Side: domain.Buy, Status: domain.StatusNew},
	}}
	adapter := &fakeAdapter{tag: domain.MexcSpot, pubRest: pubRest, privRest: rest, validator: &fakeValidator{}}
	cfg := config.ExchangeConfig{WebsocketURL: "wss://example.invalid"}
	pr, err := NewPrivate(cfg, adapter, PrivateWebsocketHandlers{}, 0, noopLogger())
	if err != nil {
		t.Fatalf("NewPrivate: %v", err)
	}
	_ = pr.Initialize(context.Background())

	order, err := pr.ModifyOrder(context.Background(), sym, "existing", 105, 2)
	if err != nil {
		t.Fatalf("ModifyOrder: %v", err)
	}
	if order.Price != 105 || order.Quantity != 2 {
		t.Errorf("emulated modify did not place the new order as expected: %+v", order)
	}

	found := false
	for _, id := range rest.cancelled {
		if id == "existing" {
			found = true
		}
	}
	if !found {
		t.Error("expected the emulated modify to cancel the existing order")
	}
}

func TestPrivateModifyOrderUsesNativeWhenSupported(t *testing.T) {
	t.Parallel()
	sym := testSymbol()
	pubRest := &fakePublicRest{symbolsInfo: domain.SymbolsInfo{sym: {Symbol: sym}}}
	rest := &fakePrivateRest{modifySupport: true, orders: map[domain.OrderId]domain.Order{
		"existing": {OrderID: "existing", Symbol: sym, Side: domain.Buy},
	}}
	adapter := &fakeAdapter{tag: domain.MexcSpot, pubRest: pubRest, privRest: rest, validator: &fakeValidator{}}
	cfg := config.ExchangeConfig{WebsocketURL: "wss://example.invalid"}
	pr, err := NewPrivate(cfg, adapter, PrivateWebsocketHandlers{}, 0, noopLogger())
	if err != nil {
		t.Fatalf("NewPrivate: %v", err)
	}
	_ = pr.Initialize(context.Background())

	_, err = pr.ModifyOrder(context.Background(), sym, "existing", 105, 2)
	if err != nil {
		t.Fatalf("ModifyOrder: %v", err)
	}
	if len(rest.cancelled) != 0 {
		t.Error("native modify path should never call CancelOrder")
	}
}

func TestPrivateRunWithoutPrivateWSBlocksUntilContextDone(t *testing.T) {
	t.Parallel()
	adapter := &fakeAdapter{tag: domain.MexcSpot, pubRest: &fakePublicRest{}, privRest: &fakePrivateRest{}, privDialectErr: context.Canceled, validator: &fakeValidator{}}
	cfg := config.ExchangeConfig{WebsocketURL: "wss://example.invalid"}
	pr, err := NewPrivate(cfg, adapter, PrivateWebsocketHandlers{}, 0, noopLogger())
	if err != nil {
		t.Fatalf("NewPrivate: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := pr.Run(ctx); err == nil {
		t.Error("expected Run to return ctx's error once the deadline elapses")
	}
}
