package mexc

import (
	"testing"

	"cexarb/pkg/domain"
)

func TestSymbolWireRoundTrip(t *testing.T) {
	t.Parallel()
	cases := []struct {
		base, quote string
	}{
		{"BTC", "USDT"},
		{"BTC", "USDC"},
		{"ETH", "BTC"},
		{"MX", "ETH"},
	}

	for _, c := range cases {
		sym := domain.Symbol{Base: domain.AssetName(c.base), Quote: domain.AssetName(c.quote)}
		wire := symbolToWire(sym)

		got, err := wireToSymbol(wire)
		if err != nil {
			t.Errorf("wireToSymbol(%q) error = %v", wire, err)
			continue
		}
		if got != sym {
			t.Errorf("round trip %+v -> %q -> %+v, want %+v", sym, wire, got, sym)
		}
	}
}

func TestSymbolToWireUppercasesAndConcatenates(t *testing.T) {
	t.Parallel()
	sym := domain.Symbol{Base: "btc", Quote: "usdt"}
	if got, want := symbolToWire(sym), "BTCUSDT"; got != want {
		t.Errorf("symbolToWire() = %v, want %v", got, want)
	}
}

func TestWireToSymbolRejectsUnknownQuote(t *testing.T) {
	t.Parallel()
	if _, err := wireToSymbol("NOTAREALPAIR"); err == nil {
		t.Errorf("wireToSymbol() error = nil, want error for unrecognized quote suffix")
	}
}
