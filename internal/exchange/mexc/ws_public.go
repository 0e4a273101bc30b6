package mexc

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"cexarb/internal/transport/ws"
	"cexarb/pkg/domain"
)

// publicDialect implements ws.Dialect for MEXC's public market-data stream:
// wss://wbs.mexc.com/ws, subscribed to with a
// {"method":"SUBSCRIPTION","params":[...]} envelope (spec §6.1).
type publicDialect struct{}

func newPublicDialect() *publicDialect { return &publicDialect{} }

type subscribeFrame struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
}

func (d *publicDialect) BuildSubscribe(channels []string) ([]interface{}, error) {
	return []interface{}{subscribeFrame{Method: "SUBSCRIPTION", Params: channels}}, nil
}

func (d *publicDialect) BuildUnsubscribe(channels []string) ([]interface{}, error) {
	return []interface{}{subscribeFrame{Method: "UNSUBSCRIPTION", Params: channels}}, nil
}

// AuthFrame is nil: the public channel needs no login.
func (d *publicDialect) AuthFrame() (interface{}, error) { return nil, nil }

// UsesNativePing is false: MEXC's public stream expects an application-level
// {"method":"PING"} text frame rather than a WS control-frame ping.
func (d *publicDialect) UsesNativePing() bool { return false }

func (d *publicDialect) AppPingMessage() []byte {
	b, _ := json.Marshal(map[string]string{"method": "PING"})
	return b
}

// envelope is MEXC's public push-message shape: {"c": channel, "d": {...},
// "s": symbol, "t": timestampMs}. Control responses carry "id"/"code"/"msg"
// instead and are reported as SUBSCRIPTION_CONFIRM or ERROR.
type envelope struct {
	Channel   string          `json:"c"`
	Symbol    string          `json:"s"`
	Data      json.RawMessage `json:"d"`
	Timestamp int64           `json:"t"`
	ID        *int            `json:"id"`
	Code      *int            `json:"code"`
	Msg       string          `json:"msg"`
}

func (d *publicDialect) Parse(raw []byte) ws.ParsedMessage {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return ws.ParsedMessage{Kind: ws.MsgUnknown, Raw: raw, Err: fmt.Errorf("mexc: parse envelope: %w", err)}
	}

	if env.Code != nil {
		if *env.Code != 0 {
			return ws.ParsedMessage{Kind: ws.MsgError, Raw: raw, Err: fmt.Errorf("mexc ws error %d: %s", *env.Code, env.Msg)}
		}
		return ws.ParsedMessage{Kind: ws.MsgSubscriptionConfirm, Raw: raw}
	}

	switch {
	case strings.Contains(env.Channel, "aggre.depth") || strings.Contains(env.Channel, "depth"):
		payload, err := parseDepthPayload(env)
		return ws.ParsedMessage{Kind: ws.MsgOrderbook, Channel: env.Channel, Payload: payload, Raw: raw, Err: err}
	case strings.Contains(env.Channel, "deals") || strings.Contains(env.Channel, "trade"):
		payload, err := parseTradesPayload(env)
		return ws.ParsedMessage{Kind: ws.MsgTrade, Channel: env.Channel, Payload: payload, Raw: raw, Err: err}
	case strings.Contains(env.Channel, "bookTicker"):
		payload, err := parseBookTickerPayload(env)
		return ws.ParsedMessage{Kind: ws.MsgBookTicker, Channel: env.Channel, Payload: payload, Raw: raw, Err: err}
	case strings.Contains(env.Channel, "PONG"):
		return ws.ParsedMessage{Kind: ws.MsgHeartbeat, Channel: env.Channel, Raw: raw}
	default:
		return ws.ParsedMessage{Kind: ws.MsgUnknown, Channel: env.Channel, Raw: raw}
	}
}

type depthLevel struct {
	Price string `json:"p"`
	Qty   string `json:"v"`
}

type depthData struct {
	Bids    []depthLevel `json:"bids"`
	Asks    []depthLevel `json:"asks"`
	Version string       `json:"r"`
}

func parseDepthPayload(env envelope) (domain.OrderBook, error) {
	var d depthData
	if err := json.Unmarshal(env.Data, &d); err != nil {
		return domain.OrderBook{}, fmt.Errorf("mexc: parse depth payload: %w", err)
	}
	sym, err := wireToSymbol(env.Symbol)
	if err != nil {
		return domain.OrderBook{}, err
	}
	updateID, _ := strconv.ParseInt(d.Version, 10, 64)
	return domain.OrderBook{
		Symbol:      sym,
		Bids:        depthLevelsToDomain(d.Bids),
		Asks:        depthLevelsToDomain(d.Asks),
		TimestampMs: env.Timestamp,
		UpdateID:    updateID,
	}, nil
}

func depthLevelsToDomain(levels []depthLevel) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, len(levels))
	for _, l := range levels {
		price, _ := strconv.ParseFloat(l.Price, 64)
		qty, _ := strconv.ParseFloat(l.Qty, 64)
		out = append(out, domain.PriceLevel{Price: price, Qty: qty})
	}
	return out
}

type dealRecord struct {
	Price string `json:"p"`
	Qty   string `json:"v"`
	Side  int    `json:"S"` // 1 = buy, 2 = sell
	Time  int64  `json:"t"`
}

type dealsData struct {
	Deals []dealRecord `json:"deals"`
}

func parseTradesPayload(env envelope) ([]domain.Trade, error) {
	var d dealsData
	if err := json.Unmarshal(env.Data, &d); err != nil {
		return nil, fmt.Errorf("mexc: parse deals payload: %w", err)
	}
	sym, err := wireToSymbol(env.Symbol)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Trade, 0, len(d.Deals))
	for _, t := range d.Deals {
		price, _ := strconv.ParseFloat(t.Price, 64)
		qty, _ := strconv.ParseFloat(t.Qty, 64)
		side := domain.Buy
		if t.Side == 2 {
			side = domain.Sell
		}
		out = append(out, domain.Trade{
			Symbol: sym, Side: side, Price: price, Quantity: qty,
			QuoteQuantity: price * qty, TimestampMs: t.Time,
		})
	}
	return out, nil
}

type bookTickerData struct {
	BidPrice string `json:"b"`
	BidQty   string `json:"B"`
	AskPrice string `json:"a"`
	AskQty   string `json:"A"`
}

func parseBookTickerPayload(env envelope) (domain.BookTicker, error) {
	var d bookTickerData
	if err := json.Unmarshal(env.Data, &d); err != nil {
		return domain.BookTicker{}, fmt.Errorf("mexc: parse bookTicker payload: %w", err)
	}
	sym, err := wireToSymbol(env.Symbol)
	if err != nil {
		return domain.BookTicker{}, err
	}
	bid, _ := strconv.ParseFloat(d.BidPrice, 64)
	bidQty, _ := strconv.ParseFloat(d.BidQty, 64)
	ask, _ := strconv.ParseFloat(d.AskPrice, 64)
	askQty, _ := strconv.ParseFloat(d.AskQty, 64)
	return domain.BookTicker{
		Symbol: sym, BidPrice: bid, BidQty: bidQty, AskPrice: ask, AskQty: askQty,
		TimestampMs: env.Timestamp,
	}, nil
}

// channelName builds MEXC's dot-separated public channel string, e.g.
// "spot@public.aggre.depth.v3.api@100ms@BTCUSDT".
func channelName(kind, symbol string) string {
	switch kind {
	case "depth":
		return "spot@public.aggre.depth.v3.api@100ms@" + symbol
	case "deals":
		return "spot@public.aggre.deals.v3.api@100ms@" + symbol
	case "bookTicker":
		return "spot@public.bookTicker.v3.api@" + symbol
	default:
		return "spot@public." + kind + "@" + symbol
	}
}
