package gateio

import (
	"fmt"
	"strconv"
	"strings"

	"cexarb/pkg/domain"
)

// mappings are configuration-driven dictionaries built once per adapter
// instance, matching MEXC's mapping.go approach (spec §4.3).
type mappings struct {
	statusFromWire map[string]domain.OrderStatus
	typeToWire     map[domain.OrderType]string
	typeFromWire   map[string]domain.OrderType
	tifToWire      map[domain.TimeInForce]string
	intervalToWire map[domain.KlineInterval]string
}

func newMappings() *mappings {
	return &mappings{
		statusFromWire: map[string]domain.OrderStatus{
			"open":      domain.StatusNew,
			"closed":    domain.StatusFilled,
			"cancelled": domain.StatusCanceled,
		},
		typeToWire: map[domain.OrderType]string{
			domain.Limit:             "limit",
			domain.Market:            "market",
			domain.ImmediateOrCancel: "limit",
			domain.FillOrKill:        "limit",
		},
		typeFromWire: map[string]domain.OrderType{
			"limit":  domain.Limit,
			"market": domain.Market,
		},
		tifToWire: map[domain.TimeInForce]string{
			domain.GTC: "gtc",
			domain.IOC: "ioc",
			domain.FOK: "fok",
			domain.GTD: "poc",
		},
		intervalToWire: map[domain.KlineInterval]string{
			domain.Interval1m:  "1m",
			domain.Interval5m:  "5m",
			domain.Interval15m: "15m",
			domain.Interval30m: "30m",
			domain.Interval1h:  "1h",
			domain.Interval4h:  "4h",
			domain.Interval12h: "12h",
			domain.Interval1d:  "1d",
			domain.Interval1w:  "7d",
			domain.Interval1M:  "30d",
		},
	}
}

func (m *mappings) statusFrom(wire string) domain.OrderStatus {
	if s, ok := m.statusFromWire[wire]; ok {
		return s
	}
	return domain.StatusUnknown
}

func (m *mappings) typeFrom(wire string) domain.OrderType {
	if t, ok := m.typeFromWire[wire]; ok {
		return t
	}
	return domain.Limit
}

// spotSymbolToWire maps Symbol -> "BTC_USDT": Gate.io spot pairs are always
// underscore-delimited, so no heuristic split is needed (unlike MEXC).
func spotSymbolToWire(s domain.Symbol) string {
	return strings.ToUpper(string(s.Base)) + "_" + strings.ToUpper(string(s.Quote))
}

func spotWireToSymbol(wire string) (domain.Symbol, error) {
	parts := strings.SplitN(strings.ToUpper(wire), "_", 2)
	if len(parts) != 2 {
		return domain.Symbol{}, fmt.Errorf("gateio: cannot split spot pair %q", wire)
	}
	return domain.Symbol{Base: domain.AssetName(parts[0]), Quote: domain.AssetName(parts[1])}, nil
}

// futuresSymbolToWire maps a futures Symbol to Gate.io's contract name.
// Perpetuals use "BASE_QUOTE" (no expiry suffix); dated/delivery contracts
// append "_YYYYMMDD" (spec §4.3/§8). This adapter only trades perpetuals
// (spec §1's "representative set" scope), so the expiry branch exists for
// forward-compatibility with delivery contracts surfaced in market data,
// per futures_symbol_mapper.py's BASE_QUOTE_YYYYMMDD format.
func futuresSymbolToWire(s domain.Symbol, expiry string) string {
	base := strings.ToUpper(string(s.Base)) + "_" + strings.ToUpper(string(s.Quote))
	if expiry == "" {
		return base
	}
	return base + "_" + expiry
}

// futuresWireToSymbol reverses futuresSymbolToWire, returning the parsed
// Symbol and the expiry date string (empty for a perpetual contract).
// Delivery contracts carry their 8-digit expiry as a third underscore-
// delimited segment (futures_symbol_mapper.py's _delivery_pattern
// `^(.+)_([A-Z]+)_(\d{8})$`), so the split only consumes it when present.
func futuresWireToSymbol(wire string) (domain.Symbol, string, error) {
	wire = strings.ToUpper(wire)
	var expiry string
	if idx := strings.LastIndex(wire, "_"); idx >= 0 {
		candidate := wire[idx+1:]
		if len(candidate) == 8 {
			if _, err := strconv.Atoi(candidate); err == nil {
				expiry = candidate
				wire = wire[:idx]
			}
		}
	}
	parts := strings.SplitN(wire, "_", 2)
	if len(parts) != 2 {
		return domain.Symbol{}, "", fmt.Errorf("gateio: cannot split futures contract %q", wire)
	}
	return domain.Symbol{Base: domain.AssetName(parts[0]), Quote: domain.AssetName(parts[1]), IsFutures: true}, expiry, nil
}
