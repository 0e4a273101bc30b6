package mexc

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

// Adapter implements exchange.Adapter for MEXC spot.
type Adapter struct {
	cfg    config.ExchangeConfig
	signer *Signer
	http   *httpx.Client
	logger *slog.Logger
}

// New builds a MEXC spot adapter from its exchange config.
func New(cfg config.ExchangeConfig, logger *slog.Logger) *Adapter {
	signer := NewSigner(cfg.Credentials)
	return &Adapter{
		cfg:    cfg,
		signer: signer,
		http:   httpx.NewClient(domain.MexcSpot, cfg, signer, logger),
		logger: logger.With("adapter", "mexc"),
	}
}

func (a *Adapter) Tag() domain.ExchangeEnum { return domain.MexcSpot }

func (a *Adapter) NewPublicRest() exchange.PublicRest {
	return NewPublicRest(a.http, a.logger)
}

func (a *Adapter) NewPrivateRest() (exchange.PrivateRest, error) {
	return NewPrivateRest(a.http, a.signer, a.logger)
}

func (a *Adapter) NewPublicWSDialect() ws.Dialect {
	return newPublicDialect()
}

// NewPrivateWSDialect returns the dialect for MEXC's listen-key-authenticated
// private stream. The caller (internal/composite) is responsible for minting
// the listen key via the adapter's ListenKeyRest surface and appending it as
// the "listenKey" query parameter on the dial URL, since the dial URL itself
// is owned by ws.Client, not the Dialect.
func (a *Adapter) NewPrivateWSDialect() (ws.Dialect, error) {
	if a.signer == nil {
		return nil, fmt.Errorf("mexc: private websocket requires api_key/secret_key credentials")
	}
	return newPrivateDialect(newMappings()), nil
}

func (a *Adapter) Validator() exchange.Validator { return validator{} }

func (a *Adapter) SymbolToWire(s domain.Symbol) string { return symbolToWire(s) }

func (a *Adapter) WireToSymbol(wire string) (domain.Symbol, error) { return wireToSymbol(wire) }

func (a *Adapter) PublicChannels(s domain.Symbol) []string {
	wire := symbolToWire(s)
	return []string{
		channelName("depth", wire),
		channelName("deals", wire),
		channelName("bookTicker", wire),
	}
}

func (a *Adapter) PrivateChannels() []string {
	return []string{
		"spot@private.account.v3.api",
		"spot@private.orders.v3.api",
		"spot@private.deals.v3.api",
	}
}

func init() {
	registry.Register(domain.MexcSpot, func(cfg config.ExchangeConfig, logger *slog.Logger) exchange.Adapter {
		return New(cfg, logger)
	})
}
