package mexc

import (
	"fmt"
	"strings"

	"cexarb/pkg/domain"
)

// mappings are configuration-driven dictionaries built once per adapter,
// matching the original Python's exchange_mappings.py dict-of-dicts
// approach rather than a switch statement per call site (spec §4.3).
type mappings struct {
	statusToWire   map[domain.OrderStatus]string
	statusFromWire map[string]domain.OrderStatus
	typeToWire     map[domain.OrderType]string
	typeFromWire   map[string]domain.OrderType
	tifToWire      map[domain.TimeInForce]string
	intervalToWire map[domain.KlineInterval]string
}

func newMappings() *mappings {
	m := &mappings{
		statusToWire: map[domain.OrderStatus]string{
			domain.StatusNew:             "NEW",
			domain.StatusPartiallyFilled: "PARTIALLY_FILLED",
			domain.StatusFilled:          "FILLED",
			domain.StatusCanceled:        "CANCELED",
			domain.StatusRejected:        "REJECTED",
			domain.StatusExpired:         "EXPIRED",
		},
		typeToWire: map[domain.OrderType]string{
			domain.Limit:             "LIMIT",
			domain.Market:            "MARKET",
			domain.LimitMaker:        "LIMIT_MAKER",
			domain.ImmediateOrCancel: "IMMEDIATE_OR_CANCEL",
			domain.FillOrKill:        "FILL_OR_KILL",
		},
		tifToWire: map[domain.TimeInForce]string{
			domain.GTC: "GTC",
			domain.IOC: "IOC",
			domain.FOK: "FOK",
		},
		intervalToWire: map[domain.KlineInterval]string{
			domain.Interval1m:  "1m",
			domain.Interval5m:  "5m",
			domain.Interval15m: "15m",
			domain.Interval30m: "30m",
			domain.Interval1h:  "60m",
			domain.Interval4h:  "4h",
			domain.Interval12h: "12h",
			domain.Interval1d:  "1d",
			domain.Interval1w:  "1W",
			domain.Interval1M:  "1M",
		},
	}
	m.statusFromWire = invertStatus(m.statusToWire)
	m.typeFromWire = invertType(m.typeToWire)
	return m
}

func invertStatus(m map[domain.OrderStatus]string) map[string]domain.OrderStatus {
	out := make(map[string]domain.OrderStatus, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}

func invertType(m map[domain.OrderType]string) map[string]domain.OrderType {
	out := make(map[string]domain.OrderType, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
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

// symbolToWire maps Symbol -> "BTCUSDT" (MEXC spot has no expiry-dated
// contracts, so this mapping never carries a date segment).
func symbolToWire(s domain.Symbol) string {
	return strings.ToUpper(string(s.Base) + string(s.Quote))
}

// wireToSymbol reverses symbolToWire given the set of known quote assets.
// MEXC spot pairs are ambiguous without a quote-asset list (e.g. "BTCUSDT"
// could split many ways); the split takes the first suffix match from the
// fixed commonQuotes list below, and a pair whose quote is not listed
// returns an error.
var commonQuotes = []string{"USDT", "USDC", "BTC", "ETH", "BUSD"}

func wireToSymbol(wire string) (domain.Symbol, error) {
	wire = strings.ToUpper(wire)
	for _, q := range commonQuotes {
		if strings.HasSuffix(wire, q) && len(wire) > len(q) {
			base := wire[:len(wire)-len(q)]
			return domain.Symbol{Base: domain.AssetName(base), Quote: domain.AssetName(q)}, nil
		}
	}
	return domain.Symbol{}, fmt.Errorf("mexc: cannot split pair %q into base/quote", wire)
}
