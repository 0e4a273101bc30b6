package gateio

import (
	"fmt"
	"log/slog"

	"cexarb/internal/config"
	"cexarb/internal/exchange"
	"cexarb/internal/registry"
	"cexarb/internal/transport/httpx"
	"cexarb/internal/transport/ws"
	"cexarb/pkg/domain"
)

// Adapter implements exchange.Adapter for one Gate.io market (spot or
// USDT-margined perpetual futures); both share this scaffolding and differ
// only in market/settle, set at construction.
type Adapter struct {
	tag    domain.ExchangeEnum
	market marketType
	settle string
	cfg    config.ExchangeConfig
	signer *Signer
	http   *httpx.Client
	logger *slog.Logger
}

// NewSpot builds a Gate.io spot adapter from its exchange config.
func NewSpot(cfg config.ExchangeConfig, logger *slog.Logger) *Adapter {
	signer := NewSigner(cfg.Credentials)
	return &Adapter{
		tag: domain.GateioSpot, market: marketSpot, cfg: cfg, signer: signer,
		http:   httpx.NewClient(domain.GateioSpot, cfg, signer, logger),
		logger: logger.With("adapter", "gateio", "market", "spot"),
	}
}

// NewFutures builds a Gate.io USDT-margined perpetual futures adapter.
// settle is the settlement asset ("usdt" for the representative contracts
// this module trades).
func NewFutures(cfg config.ExchangeConfig, settle string, logger *slog.Logger) *Adapter {
	signer := NewSigner(cfg.Credentials)
	return &Adapter{
		tag: domain.GateioFutures, market: marketFutures, settle: settle, cfg: cfg, signer: signer,
		http:   httpx.NewClient(domain.GateioFutures, cfg, signer, logger),
		logger: logger.With("adapter", "gateio", "market", "futures", "settle", settle),
	}
}

func (a *Adapter) Tag() domain.ExchangeEnum { return a.tag }

func (a *Adapter) NewPublicRest() exchange.PublicRest {
	return NewPublicRest(a.http, a.market, a.settle, a.logger)
}

func (a *Adapter) NewPrivateRest() (exchange.PrivateRest, error) {
	return NewPrivateRest(a.http, a.signer, a.market, a.settle, a.logger)
}

func (a *Adapter) NewPublicWSDialect() ws.Dialect {
	return newPublicDialect(a.market)
}

func (a *Adapter) NewPrivateWSDialect() (ws.Dialect, error) {
	if a.signer == nil {
		return nil, fmt.Errorf("gateio: private websocket requires api_key/secret_key credentials")
	}
	return newPrivateDialect(a.signer, newMappings(), a.market), nil
}

func (a *Adapter) Validator() exchange.Validator { return validator{} }

func (a *Adapter) SymbolToWire(s domain.Symbol) string {
	if a.market == marketFutures {
		return futuresSymbolToWire(s, "")
	}
	return spotSymbolToWire(s)
}

func (a *Adapter) WireToSymbol(wire string) (domain.Symbol, error) {
	if a.market == marketFutures {
		sym, _, err := futuresWireToSymbol(wire)
		return sym, err
	}
	return spotWireToSymbol(wire)
}

func (a *Adapter) marketPrefix() string {
	if a.market == marketFutures {
		return "futures"
	}
	return "spot"
}

func (a *Adapter) PublicChannels(s domain.Symbol) []string {
	wire := a.SymbolToWire(s)
	prefix := a.marketPrefix()
	return []string{
		prefix + ".order_book_update:" + wire,
		prefix + ".trades:" + wire,
		prefix + ".book_ticker:" + wire,
	}
}

func (a *Adapter) PrivateChannels() []string {
	prefix := a.marketPrefix()
	return []string{
		prefix + ".balances",
		prefix + ".orders",
		prefix + ".usertrades",
	}
}

// defaultFuturesSettle is the settlement asset used when the engine
// registers the futures adapter without a market-specific override; the
// representative contract set this module trades (spec §1) is entirely
// USDT-margined.
const defaultFuturesSettle = "usdt"

func init() {
	registry.Register(domain.GateioSpot, func(cfg config.ExchangeConfig, logger *slog.Logger) exchange.Adapter {
		return NewSpot(cfg, logger)
	})
	registry.Register(domain.GateioFutures, func(cfg config.ExchangeConfig, logger *slog.Logger) exchange.Adapter {
		return NewFutures(cfg, defaultFuturesSettle, logger)
	})
}
