package mexc

import (
	"fmt"

	"cexarb/pkg/domain"
)

// validator enforces min/max quantity, min-notional (when price > 0) and
// is-active constraints before any wire call, grounded on the original
// Python's validators.py. Price and quantity precision are not checked.
type validator struct{}

func (validator) ValidateOrder(info domain.SymbolInfo, side domain.Side, price, qty float64) error {
	if qty < info.MinQuantity {
		return &domain.OrderValidationError{Symbol: info.Symbol, Reason: fmt.Sprintf("qty %.8f below minimum %.8f", qty, info.MinQuantity)}
	}
	if info.MaxQuantity > 0 && qty > info.MaxQuantity {
		return &domain.OrderValidationError{Symbol: info.Symbol, Reason: fmt.Sprintf("qty %.8f above maximum %.8f", qty, info.MaxQuantity)}
	}
	if price > 0 && info.MinNotional > 0 && price*qty < info.MinNotional {
		return &domain.OrderValidationError{Symbol: info.Symbol, Reason: fmt.Sprintf("notional %.8f below minimum %.8f", price*qty, info.MinNotional)}
	}
	if !info.IsActive {
		return &domain.OrderValidationError{Symbol: info.Symbol, Reason: "symbol is not active"}
	}
	return nil
}
