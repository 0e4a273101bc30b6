package gateio

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"cexarb/internal/transport/httpx"
	"cexarb/pkg/domain"
)

// marketType selects which Gate.io API family (spot or USDT-margined
// perpetual futures) a PublicRest/PrivateRest instance talks to. Both
// families share the same host and auth scheme but different path prefixes
// and payload shapes.
type marketType int

const (
	marketSpot marketType = iota
	marketFutures
)

// PublicRest implements exchange.PublicRest for Gate.io spot or futures,
// selected by market.
type PublicRest struct {
	http     *httpx.Client
	mappings *mappings
	market   marketType
	settle   string // futures settlement asset, e.g. "usdt"
	logger   *slog.Logger
}

func NewPublicRest(http *httpx.Client, market marketType, settle string, logger *slog.Logger) *PublicRest {
	return &PublicRest{http: http, mappings: newMappings(), market: market, settle: settle,
		logger: logger.With("adapter", "gateio", "market", marketName(market), "surface", "public_rest")}
}

func marketName(m marketType) string {
	if m == marketFutures {
		return "futures"
	}
	return "spot"
}

func (p *PublicRest) symbolToWire(s domain.Symbol) string {
	if p.market == marketFutures {
		return futuresSymbolToWire(s, "")
	}
	return spotSymbolToWire(s)
}

func (p *PublicRest) wireToSymbol(wire string) (domain.Symbol, error) {
	if p.market == marketFutures {
		sym, _, err := futuresWireToSymbol(wire)
		return sym, err
	}
	return spotWireToSymbol(wire)
}

type spotCurrencyPair struct {
	ID              string `json:"id"`
	Base            string `json:"base"`
	Quote           string `json:"quote"`
	MinBaseAmount   string `json:"min_base_amount"`
	MinQuoteAmount  string `json:"min_quote_amount"`
	AmountPrecision int    `json:"amount_precision"`
	Precision       int    `json:"precision"`
	TradeStatus     string `json:"trade_status"`
}

type futuresContract struct {
	Name           string `json:"name"`
	OrderSizeMin   int64  `json:"order_size_min"`
	OrderSizeMax   int64  `json:"order_size_max"`
	OrderPriceRound string `json:"order_price_round"`
	QuantoMultiplier string `json:"quanto_multiplier"`
	InDelisting    bool   `json:"in_delisting"`
}

// GetSymbolsInfo fetches /api/v4/spot/currency_pairs or
// /api/v4/futures/{settle}/contracts depending on market.
func (p *PublicRest) GetSymbolsInfo(ctx context.Context) (domain.SymbolsInfo, error) {
	if p.market == marketFutures {
		return p.getFuturesSymbolsInfo(ctx)
	}
	return p.getSpotSymbolsInfo(ctx)
}

func (p *PublicRest) getSpotSymbolsInfo(ctx context.Context) (domain.SymbolsInfo, error) {
	var resp []spotCurrencyPair
	if err := p.http.Request(ctx, "GET", "/api/v4/spot/currency_pairs", nil, "", false, &resp); err != nil {
		return nil, err
	}
	out := make(domain.SymbolsInfo, len(resp))
	for _, c := range resp {
		sym, err := p.wireToSymbol(c.ID)
		if err != nil {
			p.logger.Debug("skipping unparseable symbol", "symbol", c.ID, "error", err)
			continue
		}
		minQty, _ := strconv.ParseFloat(c.MinBaseAmount, 64)
		minNotional, _ := strconv.ParseFloat(c.MinQuoteAmount, 64)
		out[sym] = domain.SymbolInfo{
			Symbol: sym, PricePrecision: c.Precision, QtyPrecision: c.AmountPrecision,
			MinQuantity: minQty, MinNotional: minNotional,
			Tick: pow10(-c.Precision), Step: pow10(-c.AmountPrecision),
			IsActive: c.TradeStatus == "tradable",
		}
	}
	return out, nil
}

func (p *PublicRest) getFuturesSymbolsInfo(ctx context.Context) (domain.SymbolsInfo, error) {
	var resp []futuresContract
	path := fmt.Sprintf("/api/v4/futures/%s/contracts", p.settle)
	if err := p.http.Request(ctx, "GET", path, nil, "", false, &resp); err != nil {
		return nil, err
	}
	out := make(domain.SymbolsInfo, len(resp))
	for _, c := range resp {
		sym, _, err := futuresWireToSymbol(c.Name)
		if err != nil {
			p.logger.Debug("skipping unparseable contract", "contract", c.Name, "error", err)
			continue
		}
		tick, _ := strconv.ParseFloat(c.OrderPriceRound, 64)
		out[sym] = domain.SymbolInfo{
			Symbol: sym, MinQuantity: float64(c.OrderSizeMin), MaxQuantity: float64(c.OrderSizeMax),
			Tick: tick, Step: 1, IsActive: !c.InDelisting,
		}
	}
	return out, nil
}

func pow10(exp int) float64 {
	v := 1.0
	if exp >= 0 {
		for i := 0; i < exp; i++ {
			v *= 10
		}
		return v
	}
	for i := 0; i < -exp; i++ {
		v /= 10
	}
	return v
}

type orderBookResponse struct {
	Bids  [][2]string `json:"bids"`
	Asks  [][2]string `json:"asks"`
	ID    int64       `json:"id"`
	Current int64     `json:"current"`
}

// futuresOrderBookLevel is futures' [price, size] shape where size is an
// integer contract count rather than a decimal string.
type futuresOrderBookLevel struct {
	Price string  `json:"p"`
	Size  float64 `json:"s"`
}

type futuresOrderBookResponse struct {
	Bids []futuresOrderBookLevel `json:"bids"`
	Asks []futuresOrderBookLevel `json:"asks"`
	ID   int64                   `json:"id"`
}

func (p *PublicRest) GetOrderBook(ctx context.Context, symbol domain.Symbol, depth int) (domain.OrderBook, error) {
	wire := p.symbolToWire(symbol)
	if p.market == marketFutures {
		var resp futuresOrderBookResponse
		q := map[string]string{"contract": wire, "limit": strconv.Itoa(depth)}
		path := fmt.Sprintf("/api/v4/futures/%s/order_book", p.settle)
		if err := p.http.Request(ctx, "GET", path, q, "", false, &resp); err != nil {
			return domain.OrderBook{}, err
		}
		return domain.OrderBook{
			Symbol: symbol, Bids: futuresLevelsToDomain(resp.Bids), Asks: futuresLevelsToDomain(resp.Asks),
			TimestampMs: time.Now().UnixMilli(), UpdateID: resp.ID,
		}, nil
	}

	var resp orderBookResponse
	q := map[string]string{"currency_pair": wire, "limit": strconv.Itoa(depth)}
	if err := p.http.Request(ctx, "GET", "/api/v4/spot/order_book", q, "", false, &resp); err != nil {
		return domain.OrderBook{}, err
	}
	return domain.OrderBook{
		Symbol: symbol, Bids: parseLevels(resp.Bids), Asks: parseLevels(resp.Asks),
		TimestampMs: time.Now().UnixMilli(), UpdateID: resp.ID,
	}, nil
}

func parseLevels(raw [][2]string) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, len(raw))
	for _, lvl := range raw {
		price, _ := strconv.ParseFloat(lvl[0], 64)
		qty, _ := strconv.ParseFloat(lvl[1], 64)
		out = append(out, domain.PriceLevel{Price: price, Qty: qty})
	}
	return out
}

func futuresLevelsToDomain(levels []futuresOrderBookLevel) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, len(levels))
	for _, l := range levels {
		price, _ := strconv.ParseFloat(l.Price, 64)
		out = append(out, domain.PriceLevel{Price: price, Qty: l.Size})
	}
	return out
}

type spotTrade struct {
	ID        string `json:"id"`
	CreateTimeMs string `json:"create_time_ms"`
	Price     string `json:"price"`
	Amount    string `json:"amount"`
	Side      string `json:"side"`
}

type futuresTrade struct {
	ID        int64   `json:"id"`
	CreateTime float64 `json:"create_time"`
	Price     string  `json:"price"`
	Size      float64 `json:"size"`
}

func (p *PublicRest) GetRecentTrades(ctx context.Context, symbol domain.Symbol, limit int) ([]domain.Trade, error) {
	wire := p.symbolToWire(symbol)
	if p.market == marketFutures {
		var resp []futuresTrade
		q := map[string]string{"contract": wire, "limit": strconv.Itoa(limit)}
		path := fmt.Sprintf("/api/v4/futures/%s/trades", p.settle)
		if err := p.http.Request(ctx, "GET", path, q, "", false, &resp); err != nil {
			return nil, err
		}
		out := make([]domain.Trade, 0, len(resp))
		for _, t := range resp {
			price, _ := strconv.ParseFloat(t.Price, 64)
			side := domain.Buy
			if t.Size < 0 {
				side = domain.Sell
			}
			out = append(out, domain.Trade{
				Symbol: symbol, Side: side, Price: price, Quantity: absFloat(t.Size),
				QuoteQuantity: price * absFloat(t.Size), TimestampMs: int64(t.CreateTime * 1000),
				TradeID: strconv.FormatInt(t.ID, 10),
			})
		}
		return out, nil
	}

	var resp []spotTrade
	q := map[string]string{"currency_pair": wire, "limit": strconv.Itoa(limit)}
	if err := p.http.Request(ctx, "GET", "/api/v4/spot/trades", q, "", false, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.Trade, 0, len(resp))
	for _, t := range resp {
		price, _ := strconv.ParseFloat(t.Price, 64)
		qty, _ := strconv.ParseFloat(t.Amount, 64)
		ts, _ := strconv.ParseInt(t.CreateTimeMs, 10, 64)
		side := domain.Buy
		if t.Side == "sell" {
			side = domain.Sell
		}
		out = append(out, domain.Trade{
			Symbol: symbol, Side: side, Price: price, Quantity: qty,
			QuoteQuantity: price * qty, TimestampMs: ts, TradeID: t.ID,
		})
	}
	return out, nil
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

type spotTicker struct {
	CurrencyPair string `json:"currency_pair"`
	HighestBid   string `json:"highest_bid"`
	LowestAsk    string `json:"lowest_ask"`
}

type futuresTicker struct {
	Contract string `json:"contract"`
	Last     string `json:"last"`
}

// GetBookTicker fetches top-of-book. Gate.io's spot /tickers omits
// bid/ask size, so BidQty/AskQty come back zero. The futures branch reads
// only the last trade price and returns it as both BidPrice and AskPrice.
func (p *PublicRest) GetBookTicker(ctx context.Context, symbol domain.Symbol) (domain.BookTicker, error) {
	wire := p.symbolToWire(symbol)
	if p.market == marketFutures {
		var resp []futuresTicker
		q := map[string]string{"contract": wire}
		path := fmt.Sprintf("/api/v4/futures/%s/tickers", p.settle)
		if err := p.http.Request(ctx, "GET", path, q, "", false, &resp); err != nil {
			return domain.BookTicker{}, err
		}
		if len(resp) == 0 {
			return domain.BookTicker{}, fmt.Errorf("gateio: no ticker for %s", wire)
		}
		last, _ := strconv.ParseFloat(resp[0].Last, 64)
		return domain.BookTicker{Symbol: symbol, BidPrice: last, AskPrice: last, TimestampMs: time.Now().UnixMilli()}, nil
	}

	var resp []spotTicker
	q := map[string]string{"currency_pair": wire}
	if err := p.http.Request(ctx, "GET", "/api/v4/spot/tickers", q, "", false, &resp); err != nil {
		return domain.BookTicker{}, err
	}
	if len(resp) == 0 {
		return domain.BookTicker{}, fmt.Errorf("gateio: no ticker for %s", wire)
	}
	bid, _ := strconv.ParseFloat(resp[0].HighestBid, 64)
	ask, _ := strconv.ParseFloat(resp[0].LowestAsk, 64)
	return domain.BookTicker{Symbol: symbol, BidPrice: bid, AskPrice: ask, TimestampMs: time.Now().UnixMilli()}, nil
}

const maxCandlesPerCall = 1000

type spotCandle = []string

// GetKlinesBatch paginates across Gate.io's per-call maximum, mirroring
// mexc's cursor-advance pattern (spec §4.3).
func (p *PublicRest) GetKlinesBatch(ctx context.Context, symbol domain.Symbol, interval domain.KlineInterval, start, end time.Time) ([]domain.Kline, error) {
	wireInterval, ok := p.mappings.intervalToWire[interval]
	if !ok {
		return nil, fmt.Errorf("gateio: unsupported interval %s", interval)
	}
	wire := p.symbolToWire(symbol)

	path := "/api/v4/spot/candlesticks"
	pairParam := "currency_pair"
	if p.market == marketFutures {
		path = fmt.Sprintf("/api/v4/futures/%s/candlesticks", p.settle)
		pairParam = "contract"
	}

	var out []domain.Kline
	cursor := start
	for cursor.Before(end) {
		var rows []spotCandle
		q := map[string]string{
			pairParam: wire, "interval": wireInterval,
			"from": strconv.FormatInt(cursor.Unix(), 10),
			"to":   strconv.FormatInt(end.Unix(), 10),
			"limit": strconv.Itoa(maxCandlesPerCall),
		}
		if err := p.http.Request(ctx, "GET", path, q, "", false, &rows); err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			break
		}
		for _, r := range rows {
			k, err := parseCandleRow(symbol, interval, r)
			if err != nil {
				p.logger.Warn("skipping malformed candle row", "error", err)
				continue
			}
			out = append(out, k)
		}
		lastTs, _ := strconv.ParseInt(rows[len(rows)-1][0], 10, 64)
		next := time.Unix(lastTs+1, 0)
		if !next.After(cursor) {
			break
		}
		cursor = next
		if len(rows) < maxCandlesPerCall {
			break
		}
	}
	return out, nil
}

// parseCandleRow decodes Gate.io's [timestamp, volume, close, high, low,
// open, ...] candle row (spot and futures share this column order).
func parseCandleRow(symbol domain.Symbol, interval domain.KlineInterval, r spotCandle) (domain.Kline, error) {
	if len(r) < 6 {
		return domain.Kline{}, fmt.Errorf("short candle row")
	}
	ts, _ := strconv.ParseInt(r[0], 10, 64)
	volume, _ := strconv.ParseFloat(r[1], 64)
	closeP, _ := strconv.ParseFloat(r[2], 64)
	high, _ := strconv.ParseFloat(r[3], 64)
	low, _ := strconv.ParseFloat(r[4], 64)
	open, _ := strconv.ParseFloat(r[5], 64)
	return domain.Kline{
		Symbol: symbol, Interval: interval, OpenTimeMs: ts * 1000,
		Open: open, High: high, Low: low, Close: closeP, Volume: volume,
	}, nil
}
