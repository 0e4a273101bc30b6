package strategy

import (
	"math"
	"testing"

	"cexarb/pkg/domain"
)

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestSpreadEntryPct(t *testing.T) {
	t.Parallel()
	// fut_bid above spot_ask by 1% before fees.
	got := spreadEntryPct(100, 101, 0.001, 0.001)
	want := (101.0-100.0)/100.0*100 - (0.001+0.001)*100
	if !almostEqual(got, want) {
		t.Errorf("spreadEntryPct() = %v, want %v", got, want)
	}
}

func TestSpreadEntryPctNegativeWhenFutDiscounted(t *testing.T) {
	t.Parallel()
	got := spreadEntryPct(100, 99, 0, 0)
	if got >= 0 {
		t.Errorf("spreadEntryPct() = %v, want negative when fut_bid < spot_ask", got)
	}
}

func TestDeltaNeutralContextAccessors(t *testing.T) {
	t.Parallel()
	sym := domain.Symbol{Base: "BTC", Quote: "USDT"}
	dn := NewDeltaNeutral("task-1", nil, nil, nil, nil, DeltaNeutralContext{Symbol: sym, TotalQuantity: 5})

	if dn.ID() != "task-1" {
		t.Errorf("ID() = %v, want task-1", dn.ID())
	}
	if dn.Symbol() != sym.String() {
		t.Errorf("Symbol() = %v, want %v", dn.Symbol(), sym.String())
	}
	if dn.ContextType() != DeltaNeutralTaskType {
		t.Errorf("ContextType() = %v, want %v", dn.ContextType(), DeltaNeutralTaskType)
	}
	if dn.ctx.State != ArbIdle {
		t.Errorf("default State = %v, want idle", dn.ctx.State)
	}
	if dn.ctx.SpotPosition.Mode != domain.ModeAccumulate {
		t.Errorf("default SpotPosition.Mode = %v, want accumulate", dn.ctx.SpotPosition.Mode)
	}
}

func TestSpotPositionReleaseModeDoesNotAccumulate(t *testing.T) {
	t.Parallel()
	pos := domain.Position{TargetQty: 10}.SetMode(domain.ModeRelease)
	pos = pos.Update(domain.Buy, 3, 100)

	if pos.AccQty != 0 {
		t.Errorf("AccQty = %v, want 0 while releasing (only accumulate mode tracks AccQty)", pos.AccQty)
	}
	if pos.Qty != 3 {
		t.Errorf("Qty = %v, want 3", pos.Qty)
	}
}

func TestSpotPositionResetReturnsToAccumulateOnlyWhenSetExplicitly(t *testing.T) {
	t.Parallel()
	pos := domain.Position{Qty: 5, Side: domain.Sell}.SetMode(domain.ModeRelease)
	pos = pos.Reset(20, true).SetMode(domain.ModeAccumulate)

	if pos.Mode != domain.ModeAccumulate {
		t.Errorf("Mode = %v, want accumulate after reset+re-set", pos.Mode)
	}
	if pos.TargetQty != 20 || pos.Qty != 0 {
		t.Errorf("Reset() = %+v, want TargetQty=20 Qty=0", pos)
	}
}

func TestUnrealizedPnLPctPositiveWhenExitBasisBeatsEntry(t *testing.T) {
	t.Parallel()
	dn := &DeltaNeutral{ctx: DeltaNeutralContext{
		Params:          TradingParameters{SpotFee: 0, FutFee: 0},
		SpotPosition:    domain.Position{Side: domain.Buy, Price: 100},
		FuturesPosition: domain.Position{Side: domain.Sell, Price: 101},
	}}
	// entry basis = 100 - 101 = -1; exit at spot bid 102, fut ask 100 -> exit basis = 2
	got := dn.unrealizedPnLPct(domain.BookTicker{BidPrice: 102}, domain.BookTicker{AskPrice: 100})
	if got <= 0 {
		t.Errorf("unrealizedPnLPct() = %v, want positive improvement over entry basis", got)
	}
}

func TestUnrealizedPnLPctZeroWhenEntryBasisZero(t *testing.T) {
	t.Parallel()
	dn := &DeltaNeutral{ctx: DeltaNeutralContext{
		SpotPosition:    domain.Position{Price: 0},
		FuturesPosition: domain.Position{Price: 0},
	}}
	got := dn.unrealizedPnLPct(domain.BookTicker{BidPrice: 100}, domain.BookTicker{AskPrice: 99})
	if got != 0 {
		t.Errorf("unrealizedPnLPct() = %v, want 0 guard when entry basis is 0", got)
	}
}
