package domain

import (
	"math"
	"testing"
)

func TestPositionUpdateOpensFromFlat(t *testing.T) {
	t.Parallel()
	p := Position{}
	p = p.Update(Buy, 10, 0.50)

	if p.Qty != 10 {
		t.Errorf("Qty = %v, want 10", p.Qty)
	}
	if p.Price != 0.50 {
		t.Errorf("Price = %v, want 0.50", p.Price)
	}
	if p.Side != Buy {
		t.Errorf("Side = %v, want BUY", p.Side)
	}
}

func TestPositionUpdateSameSideAverages(t *testing.T) {
	t.Parallel()
	p := Position{}
	p = p.Update(Buy, 10, 0.50)
	p = p.Update(Buy, 10, 0.60)

	if p.Qty != 20 {
		t.Errorf("Qty = %v, want 20", p.Qty)
	}
	// avg = (0.50*10 + 0.60*10) / 20 = 0.55
	if math.Abs(p.Price-0.55) > 1e-10 {
		t.Errorf("Price = %v, want 0.55", p.Price)
	}
}

func TestPositionUpdateOppositeSideReduces(t *testing.T) {
	t.Parallel()
	p := Position{}
	p = p.Update(Buy, 10, 0.50)
	p = p.Update(Sell, 4, 0.55)

	if p.Qty != 6 {
		t.Errorf("Qty = %v, want 6", p.Qty)
	}
	if p.Side != Buy {
		t.Errorf("Side = %v, want BUY (not flipped by partial reduce)", p.Side)
	}
	if p.Price != 0.50 {
		t.Errorf("Price = %v, want unchanged 0.50 on partial reduce", p.Price)
	}
}

func TestPositionUpdateExactReduceClearsSide(t *testing.T) {
	t.Parallel()
	p := Position{}
	p = p.Update(Buy, 10, 0.50)
	p = p.Update(Sell, 10, 0.55)

	if p.Qty != 0 {
		t.Errorf("Qty = %v, want 0", p.Qty)
	}
	if p.Side != "" {
		t.Errorf("Side = %v, want cleared", p.Side)
	}
	if p.Price != 0 {
		t.Errorf("Price = %v, want 0", p.Price)
	}
}

func TestPositionUpdateOverfillFlipsSide(t *testing.T) {
	t.Parallel()
	p := Position{}
	p = p.Update(Buy, 10, 0.50)
	p = p.Update(Sell, 15, 0.60)

	if p.Side != Sell {
		t.Errorf("Side = %v, want SELL after overfill flip", p.Side)
	}
	if p.Qty != 5 {
		t.Errorf("Qty = %v, want 5 (overfill remainder)", p.Qty)
	}
	if p.Price != 0.60 {
		t.Errorf("Price = %v, want 0.60 (fill price of the flip)", p.Price)
	}
}

func TestPositionUpdateAccumulatesAccQtyInAccumulateMode(t *testing.T) {
	t.Parallel()
	p := Position{Mode: ModeAccumulate, TargetQty: 200}
	p = p.Update(Buy, 100, 50)
	if p.AccQty != 100 {
		t.Errorf("AccQty = %v, want 100 after first fill", p.AccQty)
	}
	if p.GetRemainingQty(10) != 100 {
		t.Errorf("GetRemainingQty() = %v, want 100", p.GetRemainingQty(10))
	}

	p = p.Update(Buy, 100, 52)
	if p.AccQty != 200 {
		t.Errorf("AccQty = %v, want 200 after second fill", p.AccQty)
	}
	if !p.IsFulfilled(10) {
		t.Error("expected fulfilled once AccQty reaches TargetQty")
	}
}

func TestPositionUpdateDoesNotAccumulateOutsideAccumulateMode(t *testing.T) {
	t.Parallel()
	p := Position{Mode: ModeHedge}
	p = p.Update(Buy, 100, 50)
	if p.AccQty != 0 {
		t.Errorf("AccQty = %v, want 0 in hedge mode", p.AccQty)
	}
	if p.Qty != 100 {
		t.Errorf("Qty = %v, want 100 (Update still opens the position)", p.Qty)
	}
	if p.IsFulfilled(10) {
		t.Error("expected never-fulfilled in hedge mode (TargetQty stays 0)")
	}
}

func TestPositionGetRemainingQty(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name     string
		pos      Position
		minStep  float64
		expected float64
	}{
		{"far from target", Position{TargetQty: 100, AccQty: 20}, 1, 80},
		{"within min step", Position{TargetQty: 100, AccQty: 99.5}, 1, 0},
		{"exactly at target", Position{TargetQty: 100, AccQty: 100}, 1, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := tc.pos.GetRemainingQty(tc.minStep)
			if got != tc.expected {
				t.Errorf("GetRemainingQty() = %v, want %v", got, tc.expected)
			}
		})
	}
}

func TestPositionIsFulfilled(t *testing.T) {
	t.Parallel()
	p := Position{TargetQty: 100, AccQty: 99.9}
	if !p.IsFulfilled(0.2) {
		t.Error("expected fulfilled within min step")
	}
	if p.IsFulfilled(0.05) {
		t.Error("expected not fulfilled outside min step")
	}
}

func TestPositionReset(t *testing.T) {
	t.Parallel()
	p := Position{Qty: 5, Price: 0.5, Side: Buy, TargetQty: 10, AccQty: 5, RealizedPnL: 12}

	cleared := p.Reset(50, false)
	if cleared.TargetQty != 50 || cleared.AccQty != 0 || cleared.Qty != 0 {
		t.Errorf("Reset did not clear accumulation state: %+v", cleared)
	}
	if cleared.RealizedPnL != 12 {
		t.Errorf("RealizedPnL = %v, want preserved 12 when resetPnL=false", cleared.RealizedPnL)
	}

	resetWithPnL := p.Reset(50, true)
	if resetWithPnL.RealizedPnL != 0 {
		t.Errorf("RealizedPnL = %v, want 0 when resetPnL=true", resetWithPnL.RealizedPnL)
	}
}

func TestPositionSetMode(t *testing.T) {
	t.Parallel()
	p := Position{}
	p = p.SetMode(ModeHedge)
	if p.Mode != ModeHedge {
		t.Errorf("Mode = %v, want hedge", p.Mode)
	}
}
