package mexc

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"cexarb/internal/transport/httpx"
	"cexarb/pkg/domain"
)

// PrivateRest implements exchange.PrivateRest for MEXC spot. Every call
// issues a fresh signed REST request; nothing here is ever served from
// cache (spec §3.5 invariant 1).
type PrivateRest struct {
	http     *httpx.Client
	signer   *Signer
	mappings *mappings
	logger   *slog.Logger
}

func NewPrivateRest(http *httpx.Client, signer *Signer, logger *slog.Logger) (*PrivateRest, error) {
	if signer == nil {
		return nil, fmt.Errorf("mexc: private REST requires api_key/secret_key credentials")
	}
	return &PrivateRest{http: http, signer: signer, mappings: newMappings(), logger: logger.With("adapter", "mexc", "surface", "private_rest")}, nil
}

type accountBalance struct {
	Asset  string `json:"asset"`
	Free   string `json:"free"`
	Locked string `json:"locked"`
}

type accountResponse struct {
	Balances []accountBalance `json:"balances"`
}

func (p *PrivateRest) GetBalances(ctx context.Context) ([]domain.AssetBalance, error) {
	var resp accountResponse
	if err := p.http.Request(ctx, "GET", "/api/v3/account", nil, "", true, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.AssetBalance, 0, len(resp.Balances))
	for _, b := range resp.Balances {
		avail, _ := strconv.ParseFloat(b.Free, 64)
		locked, _ := strconv.ParseFloat(b.Locked, 64)
		out = append(out, domain.AssetBalance{Asset: domain.AssetName(b.Asset), Available: avail, Locked: locked})
	}
	return out, nil
}

func (p *PrivateRest) GetAssetBalance(ctx context.Context, asset domain.AssetName) (domain.AssetBalance, error) {
	balances, err := p.GetBalances(ctx)
	if err != nil {
		return domain.AssetBalance{}, err
	}
	for _, b := range balances {
		if b.Asset == asset {
			return b, nil
		}
	}
	return domain.AssetBalance{Asset: asset}, nil
}

type orderResponse struct {
	OrderID       string `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	Price         string `json:"price"`
	OrigQty       string `json:"origQty"`
	ExecutedQty   string `json:"executedQty"`
	Status        string `json:"status"`
	Time          int64  `json:"time"`
}

func (p *PrivateRest) toDomainOrder(symbol domain.Symbol, r orderResponse) domain.Order {
	price, _ := strconv.ParseFloat(r.Price, 64)
	qty, _ := strconv.ParseFloat(r.OrigQty, 64)
	filled, _ := strconv.ParseFloat(r.ExecutedQty, 64)
	return domain.Order{
		OrderID: domain.OrderId(r.OrderID), ClientOrderID: r.ClientOrderID,
		Symbol: symbol, Side: domain.Side(r.Side), OrderType: p.mappings.typeFrom(r.Type),
		Price: price, Quantity: qty, FilledQuantity: filled,
		Status: p.mappings.statusFrom(r.Status), TimestampMs: r.Time,
	}
}

func (p *PrivateRest) GetOpenOrders(ctx context.Context, symbol domain.Symbol) ([]domain.Order, error) {
	var resp []orderResponse
	q := map[string]string{"symbol": symbolToWire(symbol)}
	if err := p.http.Request(ctx, "GET", "/api/v3/openOrders", q, "", true, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.Order, 0, len(resp))
	for _, r := range resp {
		out = append(out, p.toDomainOrder(symbol, r))
	}
	return out, nil
}

func (p *PrivateRest) GetOrder(ctx context.Context, symbol domain.Symbol, orderID domain.OrderId) (domain.Order, error) {
	var resp orderResponse
	q := map[string]string{"symbol": symbolToWire(symbol), "orderId": string(orderID)}
	err := p.http.Request(ctx, "GET", "/api/v3/order", q, "", true, &resp)
	if cerr, ok := err.(*domain.ExchangeClientError); ok && cerr.StatusCode == 400 {
		return domain.Order{}, &domain.OrderNotFoundError{Exchange: domain.MexcSpot, OrderID: orderID}
	}
	if err != nil {
		return domain.Order{}, err
	}
	return p.toDomainOrder(symbol, resp), nil
}

func (p *PrivateRest) PlaceOrder(ctx context.Context, symbol domain.Symbol, side domain.Side, orderType domain.OrderType, price, qty float64, tif domain.TimeInForce) (domain.Order, error) {
	wireType, ok := p.mappings.typeToWire[orderType]
	if !ok {
		wireType = "LIMIT"
	}
	q := map[string]string{
		"symbol":   symbolToWire(symbol),
		"side":     string(side),
		"type":     wireType,
		"quantity": strconv.FormatFloat(qty, 'f', -1, 64),
	}
	if orderType != domain.Market {
		q["price"] = strconv.FormatFloat(price, 'f', -1, 64)
		if tifWire, ok := p.mappings.tifToWire[tif]; ok {
			q["timeInForce"] = tifWire
		}
	}

	var resp orderResponse
	if err := p.http.Request(ctx, "POST", "/api/v3/order", q, "", true, &resp); err != nil {
		if cerr, ok := err.(*domain.ExchangeClientError); ok && cerr.StatusCode == 400 {
			return domain.Order{}, &domain.InsufficientBalanceError{Exchange: domain.MexcSpot, Asset: symbol.Quote, Required: price * qty}
		}
		return domain.Order{}, err
	}
	return p.toDomainOrder(symbol, resp), nil
}

func (p *PrivateRest) CancelOrder(ctx context.Context, symbol domain.Symbol, orderID domain.OrderId) error {
	q := map[string]string{"symbol": symbolToWire(symbol), "orderId": string(orderID)}
	err := p.http.Request(ctx, "DELETE", "/api/v3/order", q, "", true, nil)
	if cerr, ok := err.(*domain.ExchangeClientError); ok && cerr.StatusCode == 400 {
		return &domain.OrderNotFoundError{Exchange: domain.MexcSpot, OrderID: orderID}
	}
	return err
}

func (p *PrivateRest) CancelAllOrders(ctx context.Context, symbol domain.Symbol) error {
	q := map[string]string{"symbol": symbolToWire(symbol)}
	return p.http.Request(ctx, "DELETE", "/api/v3/openOrders", q, "", true, nil)
}

// ModifyOrder is emulated as cancel+place — MEXC spot has no native modify.
func (p *PrivateRest) ModifyOrder(ctx context.Context, symbol domain.Symbol, orderID domain.OrderId, price, qty float64) (domain.Order, error) {
	return domain.Order{}, fmt.Errorf("mexc: modify not natively supported, caller must cancel+place")
}

func (p *PrivateRest) ModifySupported() bool { return false }

// GetPositions returns an empty slice: MEXC spot carries no margin/futures
// positions.
func (p *PrivateRest) GetPositions(ctx context.Context) ([]domain.Position, error) {
	return nil, nil
}

// Listen-key lifecycle (spec §4.3's private WS listen-key variant).

func (p *PrivateRest) CreateListenKey(ctx context.Context) (string, error) {
	var resp struct {
		ListenKey string `json:"listenKey"`
	}
	if err := p.http.Request(ctx, "POST", "/api/v3/userDataStream", nil, "", true, &resp); err != nil {
		return "", err
	}
	return resp.ListenKey, nil
}

func (p *PrivateRest) KeepAliveListenKey(ctx context.Context, key string) error {
	q := map[string]string{"listenKey": key}
	return p.http.Request(ctx, "PUT", "/api/v3/userDataStream", q, "", true, nil)
}

func (p *PrivateRest) DeleteListenKey(ctx context.Context, key string) error {
	q := map[string]string{"listenKey": key}
	return p.http.Request(ctx, "DELETE", "/api/v3/userDataStream", q, "", true, nil)
}
