package gateio

import (
	"testing"

	"cexarb/pkg/domain"
)

func TestSpotSymbolWireRoundTrip(t *testing.T) {
	t.Parallel()
	cases := []struct {
		base, quote string
	}{
		{"BTC", "USDT"},
		{"BTC", "USDC"},
		{"ETH", "BTC"},
		{"ETH", "USDT"},
	}

	for _, c := range cases {
		sym := domain.Symbol{Base: domain.AssetName(c.base), Quote: domain.AssetName(c.quote)}
		wire := spotSymbolToWire(sym)

		got, err := spotWireToSymbol(wire)
		if err != nil {
			t.Errorf("spotWireToSymbol(%q) error = %v", wire, err)
			continue
		}
		if got != sym {
			t.Errorf("round trip %+v -> %q -> %+v, want %+v", sym, wire, got, sym)
		}
	}
}

func TestSpotSymbolToWireUsesUnderscore(t *testing.T) {
	t.Parallel()
	sym := domain.Symbol{Base: "btc", Quote: "usdt"}
	if got, want := spotSymbolToWire(sym), "BTC_USDT"; got != want {
		t.Errorf("spotSymbolToWire() = %v, want %v", got, want)
	}
}

func TestFuturesSymbolWireRoundTripPerpetual(t *testing.T) {
	t.Parallel()
	sym := domain.Symbol{Base: "BTC", Quote: "USDT", IsFutures: true}

	wire := futuresSymbolToWire(sym, "")
	if wire != "BTC_USDT" {
		t.Errorf("futuresSymbolToWire(perpetual) = %v, want BTC_USDT", wire)
	}

	gotSym, gotExpiry, err := futuresWireToSymbol(wire)
	if err != nil {
		t.Fatalf("futuresWireToSymbol(%q) error = %v", wire, err)
	}
	if gotSym != sym {
		t.Errorf("futuresWireToSymbol() symbol = %+v, want %+v", gotSym, sym)
	}
	if gotExpiry != "" {
		t.Errorf("futuresWireToSymbol() expiry = %q, want empty for perpetual", gotExpiry)
	}
}

func TestFuturesSymbolWireRoundTripDeliveryContract(t *testing.T) {
	t.Parallel()
	sym := domain.Symbol{Base: "BTC", Quote: "USDT", IsFutures: true}
	const expiry = "20241225"

	wire := futuresSymbolToWire(sym, expiry)
	if wire != "BTC_USDT_"+expiry {
		t.Errorf("futuresSymbolToWire(delivery) = %v, want BTC_USDT_%s", wire, expiry)
	}

	gotSym, gotExpiry, err := futuresWireToSymbol(wire)
	if err != nil {
		t.Fatalf("futuresWireToSymbol(%q) error = %v", wire, err)
	}
	if gotSym != sym {
		t.Errorf("futuresWireToSymbol() symbol = %+v, want %+v", gotSym, sym)
	}
	if gotExpiry != expiry {
		t.Errorf("futuresWireToSymbol() expiry = %q, want %q", gotExpiry, expiry)
	}
}

func TestSpotWireToSymbolRejectsUnsplittable(t *testing.T) {
	t.Parallel()
	if _, err := spotWireToSymbol("NOUNDERSCORE"); err == nil {
		t.Errorf("spotWireToSymbol() error = nil, want error for pair with no delimiter")
	}
}
