package gateio

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"cexarb/internal/transport/httpx"
	"cexarb/pkg/domain"
)

// PrivateRest implements exchange.PrivateRest for Gate.io spot or futures.
type PrivateRest struct {
	http     *httpx.Client
	signer   *Signer
	mappings *mappings
	market   marketType
	settle   string
	logger   *slog.Logger
}

func NewPrivateRest(http *httpx.Client, signer *Signer, market marketType, settle string, logger *slog.Logger) (*PrivateRest, error) {
	if signer == nil {
		return nil, fmt.Errorf("gateio: private REST requires api_key/secret_key credentials")
	}
	return &PrivateRest{http: http, signer: signer, mappings: newMappings(), market: market, settle: settle,
		logger: logger.With("adapter", "gateio", "market", marketName(market), "surface", "private_rest")}, nil
}

func (p *PrivateRest) symbolToWire(s domain.Symbol) string {
	if p.market == marketFutures {
		return futuresSymbolToWire(s, "")
	}
	return spotSymbolToWire(s)
}

func (p *PrivateRest) wireToSymbol(wire string) (domain.Symbol, error) {
	if p.market == marketFutures {
		sym, _, err := futuresWireToSymbol(wire)
		return sym, err
	}
	return spotWireToSymbol(wire)
}

type spotAccount struct {
	Currency  string `json:"currency"`
	Available string `json:"available"`
	Locked    string `json:"locked"`
}

// futuresAccount carries the single settlement-asset wallet; Gate.io
// futures margin is cross-collateralized per settlement currency rather
// than per traded symbol.
type futuresAccount struct {
	Total     string `json:"total"`
	Available string `json:"available"`
}

func (p *PrivateRest) GetBalances(ctx context.Context) ([]domain.AssetBalance, error) {
	if p.market == marketFutures {
		var resp futuresAccount
		path := fmt.Sprintf("/api/v4/futures/%s/accounts", p.settle)
		if err := p.http.Request(ctx, "GET", path, nil, "", true, &resp); err != nil {
			return nil, err
		}
		total, _ := strconv.ParseFloat(resp.Total, 64)
		avail, _ := strconv.ParseFloat(resp.Available, 64)
		return []domain.AssetBalance{{Asset: domain.AssetName(p.settle), Available: avail, Locked: total - avail}}, nil
	}

	var resp []spotAccount
	if err := p.http.Request(ctx, "GET", "/api/v4/spot/accounts", nil, "", true, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.AssetBalance, 0, len(resp))
	for _, a := range resp {
		avail, _ := strconv.ParseFloat(a.Available, 64)
		locked, _ := strconv.ParseFloat(a.Locked, 64)
		out = append(out, domain.AssetBalance{Asset: domain.AssetName(a.Currency), Available: avail, Locked: locked})
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

type spotOrder struct {
	ID           string `json:"id"`
	Text         string `json:"text"`
	CurrencyPair string `json:"currency_pair"`
	Side         string `json:"side"`
	Type         string `json:"type"`
	Price        string `json:"price"`
	Amount       string `json:"amount"`
	FilledTotal  string `json:"filled_total"`
	Left         string `json:"left"`
	Status       string `json:"status"`
	CreateTimeMs string `json:"create_time_ms"`
}

func (p *PrivateRest) toDomainSpotOrder(symbol domain.Symbol, r spotOrder) domain.Order {
	price, _ := strconv.ParseFloat(r.Price, 64)
	amount, _ := strconv.ParseFloat(r.Amount, 64)
	left, _ := strconv.ParseFloat(r.Left, 64)
	ts, _ := strconv.ParseInt(r.CreateTimeMs, 10, 64)
	side := domain.Buy
	if r.Side == "sell" {
		side = domain.Sell
	}
	return domain.Order{
		OrderID: domain.OrderId(r.ID), ClientOrderID: r.Text,
		Symbol: symbol, Side: side, OrderType: p.mappings.typeFrom(r.Type),
		Price: price, Quantity: amount, FilledQuantity: amount - left,
		Status: p.mappings.statusFrom(r.Status), TimestampMs: ts,
	}
}

type futuresOrder struct {
	ID     int64  `json:"id"`
	Text   string `json:"text"`
	Contract string `json:"contract"`
	Price  string `json:"price"`
	Size   float64 `json:"size"`
	Left   float64 `json:"left"`
	Status string `json:"status"`
	CreateTime float64 `json:"create_time"`
}

func (p *PrivateRest) toDomainFuturesOrder(symbol domain.Symbol, r futuresOrder) domain.Order {
	price, _ := strconv.ParseFloat(r.Price, 64)
	side := domain.Buy
	size := r.Size
	if size < 0 {
		side = domain.Sell
		size = -size
	}
	left := absFloat(r.Left)
	return domain.Order{
		OrderID: domain.OrderId(strconv.FormatInt(r.ID, 10)), ClientOrderID: r.Text,
		Symbol: symbol, Side: side, OrderType: domain.Limit,
		Price: price, Quantity: size, FilledQuantity: size - left,
		Status: p.mappings.statusFrom(r.Status), TimestampMs: int64(r.CreateTime * 1000),
	}
}

func (p *PrivateRest) GetOpenOrders(ctx context.Context, symbol domain.Symbol) ([]domain.Order, error) {
	wire := p.symbolToWire(symbol)
	if p.market == marketFutures {
		var resp []futuresOrder
		q := map[string]string{"contract": wire, "status": "open"}
		path := fmt.Sprintf("/api/v4/futures/%s/orders", p.settle)
		if err := p.http.Request(ctx, "GET", path, q, "", true, &resp); err != nil {
			return nil, err
		}
		out := make([]domain.Order, 0, len(resp))
		for _, r := range resp {
			out = append(out, p.toDomainFuturesOrder(symbol, r))
		}
		return out, nil
	}

	var resp []spotOrder
	q := map[string]string{"currency_pair": wire, "status": "open"}
	if err := p.http.Request(ctx, "GET", "/api/v4/spot/orders", q, "", true, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.Order, 0, len(resp))
	for _, r := range resp {
		out = append(out, p.toDomainSpotOrder(symbol, r))
	}
	return out, nil
}

func (p *PrivateRest) GetOrder(ctx context.Context, symbol domain.Symbol, orderID domain.OrderId) (domain.Order, error) {
	if p.market == marketFutures {
		var resp futuresOrder
		path := fmt.Sprintf("/api/v4/futures/%s/orders/%s", p.settle, orderID)
		err := p.http.Request(ctx, "GET", path, nil, "", true, &resp)
		if cerr, ok := err.(*domain.ExchangeClientError); ok && cerr.StatusCode == 404 {
			return domain.Order{}, &domain.OrderNotFoundError{Exchange: domain.GateioFutures, OrderID: orderID}
		}
		if err != nil {
			return domain.Order{}, err
		}
		return p.toDomainFuturesOrder(symbol, resp), nil
	}

	var resp spotOrder
	path := "/api/v4/spot/orders/" + string(orderID)
	q := map[string]string{"currency_pair": p.symbolToWire(symbol)}
	err := p.http.Request(ctx, "GET", path, q, "", true, &resp)
	if cerr, ok := err.(*domain.ExchangeClientError); ok && cerr.StatusCode == 404 {
		return domain.Order{}, &domain.OrderNotFoundError{Exchange: domain.GateioSpot, OrderID: orderID}
	}
	if err != nil {
		return domain.Order{}, err
	}
	return p.toDomainSpotOrder(symbol, resp), nil
}

func (p *PrivateRest) PlaceOrder(ctx context.Context, symbol domain.Symbol, side domain.Side, orderType domain.OrderType, price, qty float64, tif domain.TimeInForce) (domain.Order, error) {
	wireType := p.mappings.typeToWire[orderType]
	if wireType == "" {
		wireType = "limit"
	}
	tifWire := p.mappings.tifToWire[tif]
	exchangeTag := domain.GateioSpot
	if p.market == marketFutures {
		exchangeTag = domain.GateioFutures
	}

	if p.market == marketFutures {
		size := qty
		if side == domain.Sell {
			size = -qty
		}
		body := map[string]interface{}{
			"contract": p.symbolToWire(symbol),
			"size":     size,
			"price":    strconv.FormatFloat(price, 'f', -1, 64),
			"tif":      tifWire,
		}
		b, _ := json.Marshal(body)
		var resp futuresOrder
		path := fmt.Sprintf("/api/v4/futures/%s/orders", p.settle)
		if err := p.http.Request(ctx, "POST", path, nil, string(b), true, &resp); err != nil {
			if cerr, ok := err.(*domain.ExchangeClientError); ok && cerr.StatusCode == 400 {
				return domain.Order{}, &domain.InsufficientBalanceError{Exchange: exchangeTag, Asset: domain.AssetName(p.settle), Required: price * qty}
			}
			return domain.Order{}, err
		}
		return p.toDomainFuturesOrder(symbol, resp), nil
	}

	body := map[string]interface{}{
		"currency_pair": p.symbolToWire(symbol),
		"side":          string(side),
		"type":          wireType,
		"amount":        strconv.FormatFloat(qty, 'f', -1, 64),
		"price":         strconv.FormatFloat(price, 'f', -1, 64),
		"time_in_force": tifWire,
	}
	b, _ := json.Marshal(body)
	var resp spotOrder
	if err := p.http.Request(ctx, "POST", "/api/v4/spot/orders", nil, string(b), true, &resp); err != nil {
		if cerr, ok := err.(*domain.ExchangeClientError); ok && cerr.StatusCode == 400 {
			return domain.Order{}, &domain.InsufficientBalanceError{Exchange: exchangeTag, Asset: symbol.Quote, Required: price * qty}
		}
		return domain.Order{}, err
	}
	return p.toDomainSpotOrder(symbol, resp), nil
}

func (p *PrivateRest) CancelOrder(ctx context.Context, symbol domain.Symbol, orderID domain.OrderId) error {
	exchangeTag := domain.GateioSpot
	if p.market == marketFutures {
		exchangeTag = domain.GateioFutures
		path := fmt.Sprintf("/api/v4/futures/%s/orders/%s", p.settle, orderID)
		err := p.http.Request(ctx, "DELETE", path, nil, "", true, nil)
		if cerr, ok := err.(*domain.ExchangeClientError); ok && cerr.StatusCode == 404 {
			return &domain.OrderNotFoundError{Exchange: exchangeTag, OrderID: orderID}
		}
		return err
	}

	path := "/api/v4/spot/orders/" + string(orderID)
	q := map[string]string{"currency_pair": p.symbolToWire(symbol)}
	err := p.http.Request(ctx, "DELETE", path, q, "", true, nil)
	if cerr, ok := err.(*domain.ExchangeClientError); ok && cerr.StatusCode == 404 {
		return &domain.OrderNotFoundError{Exchange: exchangeTag, OrderID: orderID}
	}
	return err
}

func (p *PrivateRest) CancelAllOrders(ctx context.Context, symbol domain.Symbol) error {
	if p.market == marketFutures {
		q := map[string]string{"contract": p.symbolToWire(symbol)}
		path := fmt.Sprintf("/api/v4/futures/%s/orders", p.settle)
		return p.http.Request(ctx, "DELETE", path, q, "", true, nil)
	}
	q := map[string]string{"currency_pair": p.symbolToWire(symbol)}
	return p.http.Request(ctx, "DELETE", "/api/v4/spot/orders", q, "", true, nil)
}

// ModifyOrder uses Gate.io futures' native amend endpoint; spot has none, so
// it is emulated as cancel+place by the caller.
func (p *PrivateRest) ModifyOrder(ctx context.Context, symbol domain.Symbol, orderID domain.OrderId, price, qty float64) (domain.Order, error) {
	if p.market != marketFutures {
		return domain.Order{}, fmt.Errorf("gateio: spot modify not natively supported, caller must cancel+place")
	}
	body := map[string]interface{}{"price": strconv.FormatFloat(price, 'f', -1, 64), "size": qty}
	b, _ := json.Marshal(body)
	var resp futuresOrder
	path := fmt.Sprintf("/api/v4/futures/%s/orders/%s", p.settle, orderID)
	if err := p.http.Request(ctx, "PUT", path, nil, string(b), true, &resp); err != nil {
		return domain.Order{}, err
	}
	return p.toDomainFuturesOrder(symbol, resp), nil
}

func (p *PrivateRest) ModifySupported() bool { return p.market == marketFutures }

type futuresPosition struct {
	Contract string `json:"contract"`
	Size     float64 `json:"size"`
	EntryPrice string `json:"entry_price"`
	UnrealisedPnl string `json:"unrealised_pnl"`
}

// GetPositions returns open futures positions; spot carries none.
func (p *PrivateRest) GetPositions(ctx context.Context) ([]domain.Position, error) {
	if p.market != marketFutures {
		return nil, nil
	}
	var resp []futuresPosition
	path := fmt.Sprintf("/api/v4/futures/%s/positions", p.settle)
	if err := p.http.Request(ctx, "GET", path, nil, "", true, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.Position, 0, len(resp))
	for _, pos := range resp {
		if pos.Size == 0 {
			continue
		}
		entry, _ := strconv.ParseFloat(pos.EntryPrice, 64)
		pnl, _ := strconv.ParseFloat(pos.UnrealisedPnl, 64)
		side := domain.Buy
		size := pos.Size
		if size < 0 {
			side = domain.Sell
			size = -size
		}
		out = append(out, domain.Position{Qty: size, Price: entry, Side: side, UnrealizedPnL: pnl, Mode: domain.ModeHedge})
	}
	return out, nil
}
