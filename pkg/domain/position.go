package domain

import "math"

// Update merges a fill into the position (spec §4.6): a same-side fill
// VWAP-averages into the remaining quantity; an opposite-side fill
// reduces it; a fill that exceeds the remaining quantity flips the
// position to the fill's side, carrying the overfill remainder at the
// fill price.
func (p Position) Update(side Side, qty, price float64) Position {
	if p.Mode == ModeAccumulate {
		p.AccQty += qty
	}

	if p.Qty == 0 || p.Side == "" {
		p.Side = side
		p.Qty = qty
		p.Price = price
		return p
	}

	if side == p.Side {
		totalCost := p.Price*p.Qty + price*qty
		p.Qty += qty
		if p.Qty > 0 {
			p.Price = totalCost / p.Qty
		}
		return p
	}

	if qty <= p.Qty {
		p.Qty -= qty
		if p.Qty == 0 {
			p.Price = 0
			p.Side = ""
		}
		return p
	}

	remainder := qty - p.Qty
	p.Side = side
	p.Qty = remainder
	p.Price = price
	return p
}

// GetRemainingQty returns the quantity still needed to reach TargetQty,
// clamped to zero once within minStep of the target.
func (p Position) GetRemainingQty(minStep float64) float64 {
	remaining := p.TargetQty - p.AccQty
	if remaining < minStep {
		return 0
	}
	return remaining
}

// IsFulfilled reports whether the position has accumulated within minStep
// of its target quantity. A position without a positive TargetQty is never
// fulfilled.
func (p Position) IsFulfilled(minStep float64) bool {
	if p.TargetQty <= 0 {
		return false
	}
	return math.Abs(p.TargetQty-p.AccQty) < minStep
}

// Reset clears a position for a new target, optionally preserving
// realized PnL across the reset.
func (p Position) Reset(target float64, resetPnL bool) Position {
	p.TargetQty = target
	p.AccQty = 0
	p.Qty = 0
	p.Price = 0
	p.Side = ""
	p.LastOrder = nil
	if resetPnL {
		p.RealizedPnL = 0
		p.UnrealizedPnL = 0
	}
	return p
}

// SetMode transitions the position's operating mode.
func (p Position) SetMode(mode PositionMode) Position {
	p.Mode = mode
	return p
}
