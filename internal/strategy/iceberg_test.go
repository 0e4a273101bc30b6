package strategy

import (
	"testing"
	"time"

	"cexarb/pkg/domain"
)

func TestRoundToTickFloorsForBuy(t *testing.T) {
	t.Parallel()
	got := roundToTick(100.07, 0.1, domain.Buy)
	if got != 100.0 {
		t.Errorf("roundToTick(buy) = %v, want 100.0", got)
	}
}

func TestRoundToTickCeilsForSell(t *testing.T) {
	t.Parallel()
	got := roundToTick(100.01, 0.1, domain.Sell)
	if got != 100.1 {
		t.Errorf("roundToTick(sell) = %v, want 100.1", got)
	}
}

func TestRoundToTickNoOpWhenTickIsZero(t *testing.T) {
	t.Parallel()
	got := roundToTick(123.456, 0, domain.Buy)
	if got != 123.456 {
		t.Errorf("roundToTick(tick=0) = %v, want unchanged 123.456", got)
	}
}

func TestStepDelayIsMidpointOfWindow(t *testing.T) {
	t.Parallel()
	got := stepDelay()
	if got != 750*time.Millisecond {
		t.Errorf("stepDelay() = %v, want 750ms", got)
	}
	if got < icebergMinDelay || got > icebergMaxDelay {
		t.Errorf("stepDelay() = %v, out of [%v,%v] window", got, icebergMinDelay, icebergMaxDelay)
	}
}

func TestIcebergContextAccessors(t *testing.T) {
	t.Parallel()
	sym := domain.Symbol{Base: "BTC", Quote: "USDT"}
	ice := NewIceberg("task-1", nil, nil, IcebergContext{Symbol: sym, Side: domain.Buy, TotalQuantity: 10})

	if ice.ID() != "task-1" {
		t.Errorf("ID() = %v, want task-1", ice.ID())
	}
	if ice.Symbol() != sym.String() {
		t.Errorf("Symbol() = %v, want %v", ice.Symbol(), sym.String())
	}
	if ice.ContextType() != IcebergTaskType {
		t.Errorf("ContextType() = %v, want %v", ice.ContextType(), IcebergTaskType)
	}
	ctx, ok := ice.Context().(IcebergContext)
	if !ok || ctx.TotalQuantity != 10 {
		t.Errorf("Context() = %+v, want the stored IcebergContext", ice.Context())
	}
}
