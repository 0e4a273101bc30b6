package composite

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cexarb/internal/config"
	"cexarb/internal/exchange"
	"cexarb/internal/transport/ws"
	"cexarb/pkg/domain"
)

// PrivateWebsocketHandlers are the callbacks the strategy layer registers
// against a Private composite's optional user-data stream (spec §4.4.3).
// Any handler left nil is simply never invoked.
type PrivateWebsocketHandlers struct {
	OnOrder     func(domain.Order)
	OnBalance   func(domain.AssetBalance)
	OnExecution func(domain.Trade)
}

// BalanceSnapshot groups a set of balances with the time they were read.
// The balance_sync_interval ticker does not build one: it passes each
// balance it fetches to PrivateWebsocketHandlers.OnBalance.
type BalanceSnapshot struct {
	Balances []domain.AssetBalance
	AsOf     time.Time
}

// Private is the uncached trading composite (spec §4.4.3): every method
// issues a fresh REST request, never serving from a cache. A private WS
// connection is optional and, when present, only feeds registered
// callbacks — it never backstops the REST calls above.
type Private struct {
	*Base

	rest      exchange.PrivateRest
	validator exchange.Validator
	adapter   exchange.Adapter

	wsc      *ws.Client
	handlers PrivateWebsocketHandlers

	listenKeyRest exchange.ListenKeyRest
	listenKey     string

	balanceSyncInterval time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewPrivate constructs a private composite. handlers may be the zero value
// if no callbacks are needed (REST-only usage); balanceSyncInterval of 0
// disables the periodic REST balance sync that feeds handlers.OnBalance.
func NewPrivate(cfg config.ExchangeConfig, adapter exchange.Adapter, handlers PrivateWebsocketHandlers, balanceSyncInterval time.Duration, logger *slog.Logger) (*Private, error) {
	base := newBase(cfg, adapter, logger)

	rest, err := adapter.NewPrivateRest()
	if err != nil {
		return nil, fmt.Errorf("%s: private composite: %w", adapter.Tag(), err)
	}

	pr := &Private{
		Base: base, rest: rest, validator: adapter.Validator(), adapter: adapter,
		handlers:            handlers,
		balanceSyncInterval: balanceSyncInterval,
		stopCh:              make(chan struct{}),
	}

	if lk, ok := adapter.(exchange.ListenKeyRest); ok {
		pr.listenKeyRest = lk
	}

	base.onReconnect = pr.onReconnect
	return pr, nil
}

// Run starts the optional private WS connection (minting/renewing a
// listen key first if this adapter authenticates that way) and the
// optional balance-sync ticker. Blocks until ctx is done.
func (pr *Private) Run(ctx context.Context) error {
	dialect, err := pr.adapter.NewPrivateWSDialect()
	if err != nil {
		pr.logger.Info("private websocket disabled", "reason", err)
		if pr.balanceSyncInterval > 0 {
			go pr.balanceSyncLoop(ctx)
		}
		<-ctx.Done()
		return ctx.Err()
	}

	dialURL := pr.cfg.WebsocketURL
	if pr.listenKeyRest != nil {
		key, err := pr.listenKeyRest.CreateListenKey(ctx)
		if err != nil {
			return fmt.Errorf("%s: create listen key: %w", pr.tag, err)
		}
		pr.listenKey = key
		dialURL = dialURL + "?listenKey=" + key
		go pr.keepAliveListenKey(ctx)
	}

	policy := policyFromConfig(pr.cfg.Websocket)
	pr.wsc = ws.New(string(pr.tag)+":private", dialURL, dialect, policy, pr.logger)
	pr.wsc.OnStateChange(func(s ws.ConnectionState) { pr.handleStateChange(ctx, s) })

	if err := pr.wsc.Subscribe(pr.adapter.PrivateChannels()); err != nil {
		pr.logger.Warn("initial private subscribe failed, will retry on connect", "error", err)
	}

	go pr.dispatchLoop(ctx)
	if pr.balanceSyncInterval > 0 {
		go pr.balanceSyncLoop(ctx)
	}

	return pr.wsc.Run(ctx)
}

// Close stops the private WS connection and releases the listen key, if any.
func (pr *Private) Close() error {
	pr.stopOnce.Do(func() { close(pr.stopCh) })
	if pr.listenKeyRest != nil && pr.listenKey != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := pr.listenKeyRest.DeleteListenKey(ctx, pr.listenKey); err != nil {
			pr.logger.Warn("failed to delete listen key on close", "error", err)
		}
	}
	if pr.wsc != nil {
		return pr.wsc.Close()
	}
	return nil
}

func (pr *Private) keepAliveListenKey(ctx context.Context) {
	ticker := time.NewTicker(20 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-pr.stopCh:
			return
		case <-ticker.C:
			if err := pr.listenKeyRest.KeepAliveListenKey(ctx, pr.listenKey); err != nil {
				pr.logger.Warn("listen key keepalive failed", "error", err)
			}
		}
	}
}

func (pr *Private) balanceSyncLoop(ctx context.Context) {
	ticker := time.NewTicker(pr.balanceSyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-pr.stopCh:
			return
		case <-ticker.C:
			balances, err := pr.rest.GetBalances(ctx)
			if err != nil {
				pr.logger.Warn("balance sync failed", "error", err)
				continue
			}
			if pr.handlers.OnBalance != nil {
				for _, b := range balances {
					pr.handlers.OnBalance(b)
				}
			}
		}
	}
}

func (pr *Private) onReconnect(ctx context.Context) {
	pr.refreshExchangeData(ctx)
	if err := pr.wsc.Subscribe(pr.adapter.PrivateChannels()); err != nil {
		pr.logger.Warn("resubscribe after reconnect failed", "error", err)
	}
}

func (pr *Private) dispatchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-pr.wsc.Messages():
			if !ok {
				return
			}
			pr.handleMessage(msg)
		}
	}
}

func (pr *Private) handleMessage(msg ws.ParsedMessage) {
	switch msg.Kind {
	case ws.MsgOrder:
		if pr.handlers.OnOrder == nil {
			return
		}
		if o, ok := msg.Payload.(domain.Order); ok {
			pr.handlers.OnOrder(o)
		}
	case ws.MsgBalance:
		if pr.handlers.OnBalance == nil {
			return
		}
		if b, ok := msg.Payload.(domain.AssetBalance); ok {
			pr.handlers.OnBalance(b)
		}
	case ws.MsgExecution:
		if pr.handlers.OnExecution == nil {
			return
		}
		if t, ok := msg.Payload.(domain.Trade); ok {
			pr.handlers.OnExecution(t)
		}
	case ws.MsgError:
		pr.logger.Warn("private ws error frame", "channel", msg.Channel, "error", msg.Err)
	}
}

// ————————————————————————————————————————————————————————————————————————
// Uncached trading surface — every call is a fresh REST request (spec
// §4.4.3's universal invariant: composites never cache private state).
// ————————————————————————————————————————————————————————————————————————

// PlaceLimitOrder validates against the cached symbol metadata, then places
// a GTC (or caller-specified TIF) limit order.
func (pr *Private) PlaceLimitOrder(ctx context.Context, symbol domain.Symbol, side domain.Side, price, qty float64, tif domain.TimeInForce) (domain.Order, error) {
	if err := pr.validate(symbol, side, price, qty); err != nil {
		return domain.Order{}, err
	}
	return pr.rest.PlaceOrder(ctx, symbol, side, domain.Limit, price, qty, tif)
}

// PlaceMarketOrder validates against the cached symbol metadata (price 0
// skips the min-notional check), then places a market order.
func (pr *Private) PlaceMarketOrder(ctx context.Context, symbol domain.Symbol, side domain.Side, qty float64) (domain.Order, error) {
	if err := pr.validate(symbol, side, 0, qty); err != nil {
		return domain.Order{}, err
	}
	return pr.rest.PlaceOrder(ctx, symbol, side, domain.Market, 0, qty, domain.GTC)
}

func (pr *Private) validate(symbol domain.Symbol, side domain.Side, price, qty float64) error {
	info, ok := pr.SymbolsInfo()[symbol]
	if !ok {
		return fmt.Errorf("%s: %s: no symbol metadata cached, call Initialize first", pr.tag, symbol)
	}
	return pr.validator.ValidateOrder(info, side, price, qty)
}

func (pr *Private) CancelOrder(ctx context.Context, symbol domain.Symbol, orderID domain.OrderId) error {
	return pr.rest.CancelOrder(ctx, symbol, orderID)
}

func (pr *Private) CancelAllOrders(ctx context.Context, symbol domain.Symbol) error {
	return pr.rest.CancelAllOrders(ctx, symbol)
}

func (pr *Private) GetOrder(ctx context.Context, symbol domain.Symbol, orderID domain.OrderId) (domain.Order, error) {
	return pr.rest.GetOrder(ctx, symbol, orderID)
}

func (pr *Private) GetOpenOrders(ctx context.Context, symbol domain.Symbol) ([]domain.Order, error) {
	return pr.rest.GetOpenOrders(ctx, symbol)
}

func (pr *Private) GetBalances(ctx context.Context) ([]domain.AssetBalance, error) {
	return pr.rest.GetBalances(ctx)
}

func (pr *Private) GetAssetBalance(ctx context.Context, asset domain.AssetName) (domain.AssetBalance, error) {
	return pr.rest.GetAssetBalance(ctx, asset)
}

func (pr *Private) GetPositions(ctx context.Context) ([]domain.Position, error) {
	return pr.rest.GetPositions(ctx)
}

// ModifyOrder uses the adapter's native modify if supported, otherwise
// emulates it as cancel-then-place (spec §4.4.3's ModifySupported gate).
func (pr *Private) ModifyOrder(ctx context.Context, symbol domain.Symbol, orderID domain.OrderId, price, qty float64) (domain.Order, error) {
	if pr.rest.ModifySupported() {
		return pr.rest.ModifyOrder(ctx, symbol, orderID, price, qty)
	}

	existing, err := pr.rest.GetOrder(ctx, symbol, orderID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("modify (emulated): fetch existing: %w", err)
	}
	if err := pr.rest.CancelOrder(ctx, symbol, orderID); err != nil {
		return domain.Order{}, fmt.Errorf("modify (emulated): cancel: %w", err)
	}
	return pr.PlaceLimitOrder(ctx, symbol, existing.Side, price, qty, domain.GTC)
}
