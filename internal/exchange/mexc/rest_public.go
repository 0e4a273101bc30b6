package mexc

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"cexarb/internal/transport/httpx"
	"cexarb/pkg/domain"
)

// PublicRest implements exchange.PublicRest for MEXC spot.
type PublicRest struct {
	http     *httpx.Client
	mappings *mappings
	logger   *slog.Logger
}

func NewPublicRest(http *httpx.Client, logger *slog.Logger) *PublicRest {
	return &PublicRest{http: http, mappings: newMappings(), logger: logger.With("adapter", "mexc", "surface", "public_rest")}
}

type exchangeInfoSymbol struct {
	Symbol              string `json:"symbol"`
	Status              string `json:"status"`
	BaseAssetPrecision  int    `json:"baseAssetPrecision"`
	QuotePrecision      int    `json:"quotePrecision"`
	MinQty              string `json:"baseSizePrecision"`
	MaxQty              string `json:"maxQuoteAmount"`
	MinNotional         string `json:"quoteAmountPrecision"`
}

type exchangeInfoResponse struct {
	Symbols []exchangeInfoSymbol `json:"symbols"`
}

// GetSymbolsInfo fetches /api/v3/exchangeInfo and converts it to SymbolsInfo.
func (p *PublicRest) GetSymbolsInfo(ctx context.Context) (domain.SymbolsInfo, error) {
	var resp exchangeInfoResponse
	if err := p.http.Request(ctx, "GET", "/api/v3/exchangeInfo", nil, "", false, &resp); err != nil {
		return nil, err
	}

	out := make(domain.SymbolsInfo, len(resp.Symbols))
	for _, s := range resp.Symbols {
		sym, err := wireToSymbol(s.Symbol)
		if err != nil {
			p.logger.Debug("skipping unparseable symbol", "symbol", s.Symbol, "error", err)
			continue
		}
		minQty, _ := strconv.ParseFloat(s.MinQty, 64)
		minNotional, _ := strconv.ParseFloat(s.MinNotional, 64)
		out[sym] = domain.SymbolInfo{
			Symbol:         sym,
			PricePrecision: s.QuotePrecision,
			QtyPrecision:   s.BaseAssetPrecision,
			MinQuantity:    minQty,
			MinNotional:    minNotional,
			Tick:           pow10(-s.QuotePrecision),
			Step:           pow10(-s.BaseAssetPrecision),
			IsActive:       s.Status == "1" || s.Status == "ENABLED",
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

type depthResponse struct {
	Bids [][2]string `json:"bids"`
	Asks [][2]string `json:"asks"`
}

// GetOrderBook fetches /api/v3/depth for a symbol.
func (p *PublicRest) GetOrderBook(ctx context.Context, symbol domain.Symbol, depth int) (domain.OrderBook, error) {
	var resp depthResponse
	q := map[string]string{"symbol": symbolToWire(symbol), "limit": strconv.Itoa(depth)}
	if err := p.http.Request(ctx, "GET", "/api/v3/depth", q, "", false, &resp); err != nil {
		return domain.OrderBook{}, err
	}
	return domain.OrderBook{
		Symbol:      symbol,
		Bids:        parseLevels(resp.Bids),
		Asks:        parseLevels(resp.Asks),
		TimestampMs: time.Now().UnixMilli(),
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

type tradeResponse struct {
	ID       int64  `json:"id"`
	Price    string `json:"price"`
	Qty      string `json:"qty"`
	QuoteQty string `json:"quoteQty"`
	Time     int64  `json:"time"`
	IsBuyer  bool   `json:"isBuyerMaker"`
}

// GetRecentTrades fetches /api/v3/trades for a symbol.
func (p *PublicRest) GetRecentTrades(ctx context.Context, symbol domain.Symbol, limit int) ([]domain.Trade, error) {
	var resp []tradeResponse
	q := map[string]string{"symbol": symbolToWire(symbol), "limit": strconv.Itoa(limit)}
	if err := p.http.Request(ctx, "GET", "/api/v3/trades", q, "", false, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.Trade, 0, len(resp))
	for _, t := range resp {
		price, _ := strconv.ParseFloat(t.Price, 64)
		qty, _ := strconv.ParseFloat(t.Qty, 64)
		quoteQty, _ := strconv.ParseFloat(t.QuoteQty, 64)
		side := domain.Buy
		if t.IsBuyer {
			side = domain.Sell
		}
		out = append(out, domain.Trade{
			Symbol: symbol, Side: side, Price: price, Quantity: qty,
			QuoteQuantity: quoteQty, TimestampMs: t.Time, TradeID: strconv.FormatInt(t.ID, 10),
		})
	}
	return out, nil
}

type bookTickerResponse struct {
	BidPrice string `json:"bidPrice"`
	BidQty   string `json:"bidQty"`
	AskPrice string `json:"askPrice"`
	AskQty   string `json:"askQty"`
}

// GetBookTicker fetches /api/v3/ticker/bookTicker for a symbol.
func (p *PublicRest) GetBookTicker(ctx context.Context, symbol domain.Symbol) (domain.BookTicker, error) {
	var resp bookTickerResponse
	q := map[string]string{"symbol": symbolToWire(symbol)}
	if err := p.http.Request(ctx, "GET", "/api/v3/ticker/bookTicker", q, "", false, &resp); err != nil {
		return domain.BookTicker{}, err
	}
	bid, _ := strconv.ParseFloat(resp.BidPrice, 64)
	bidQty, _ := strconv.ParseFloat(resp.BidQty, 64)
	ask, _ := strconv.ParseFloat(resp.AskPrice, 64)
	askQty, _ := strconv.ParseFloat(resp.AskQty, 64)
	return domain.BookTicker{
		Symbol: symbol, BidPrice: bid, BidQty: bidQty, AskPrice: ask, AskQty: askQty,
		TimestampMs: time.Now().UnixMilli(),
	}, nil
}

// maxKlinesPerCall is MEXC's per-request kline cap.
const maxKlinesPerCall = 1000

type klineRow = []interface{}

// GetKlinesBatch paginates across MEXC's 1000-candle-per-call maximum,
// respecting rate limits via the underlying httpx.Client, until [start,end)
// is covered (spec §4.3).
func (p *PublicRest) GetKlinesBatch(ctx context.Context, symbol domain.Symbol, interval domain.KlineInterval, start, end time.Time) ([]domain.Kline, error) {
	wireInterval, ok := p.mappings.intervalToWire[interval]
	if !ok {
		return nil, fmt.Errorf("mexc: unsupported interval %s", interval)
	}

	var out []domain.Kline
	cursor := start
	for cursor.Before(end) {
		var rows []klineRow
		q := map[string]string{
			"symbol":    symbolToWire(symbol),
			"interval":  wireInterval,
			"startTime": strconv.FormatInt(cursor.UnixMilli(), 10),
			"endTime":   strconv.FormatInt(end.UnixMilli(), 10),
			"limit":     strconv.Itoa(maxKlinesPerCall),
		}
		if err := p.http.Request(ctx, "GET", "/api/v3/klines", q, "", false, &rows); err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			break
		}
		for _, r := range rows {
			k, err := parseKlineRow(symbol, interval, r)
			if err != nil {
				p.logger.Warn("skipping malformed kline row", "error", err)
				continue
			}
			out = append(out, k)
		}
		last := rows[len(rows)-1]
		closeMs, _ := last[6].(float64)
		next := time.UnixMilli(int64(closeMs) + 1)
		if !next.After(cursor) {
			break
		}
		cursor = next
		if len(rows) < maxKlinesPerCall {
			break
		}
	}
	return out, nil
}

func parseKlineRow(symbol domain.Symbol, interval domain.KlineInterval, r klineRow) (domain.Kline, error) {
	if len(r) < 7 {
		return domain.Kline{}, fmt.Errorf("short kline row")
	}
	toFloat := func(v interface{}) float64 {
		switch x := v.(type) {
		case float64:
			return x
		case string:
			f, _ := strconv.ParseFloat(x, 64)
			return f
		}
		return 0
	}
	openMs, _ := r[0].(float64)
	closeMs, _ := r[6].(float64)
	return domain.Kline{
		Symbol: symbol, Interval: interval,
		OpenTimeMs: int64(openMs), CloseTimeMs: int64(closeMs),
		Open: toFloat(r[1]), High: toFloat(r[2]), Low: toFloat(r[3]), Close: toFloat(r[4]),
		Volume: toFloat(r[5]),
	}, nil
}
