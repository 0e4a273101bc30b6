package gateio

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"cexarb/internal/transport/ws"
	"cexarb/pkg/domain"
)

// publicDialect implements ws.Dialect for Gate.io's public market-data
// stream, using the shared {time, channel, event, payload} envelope (spec
// §6.1). One dialect instance serves either spot or futures, selected at
// construction, since the envelope shape and channel names differ only in
// a "futures." vs "spot." prefix.
type publicDialect struct {
	market marketType
}

func newPublicDialect(market marketType) *publicDialect {
	return &publicDialect{market: market}
}

// subscribeFrame is Gate.io's generic request envelope.
type subscribeFrame struct {
	Time    int64       `json:"time"`
	Channel string      `json:"channel"`
	Event   string      `json:"event"`
	Payload []string    `json:"payload"`
}

func (d *publicDialect) channelPrefix() string {
	if d.market == marketFutures {
		return "futures"
	}
	return "spot"
}

// BuildSubscribe groups channel identifiers of the form "channel:symbol"
// into one subscribe frame per distinct channel, matching Gate.io's
// one-frame-per-channel convention.
func (d *publicDialect) BuildSubscribe(channels []string) ([]interface{}, error) {
	return d.buildFrames(channels, "subscribe")
}

func (d *publicDialect) BuildUnsubscribe(channels []string) ([]interface{}, error) {
	return d.buildFrames(channels, "unsubscribe")
}

func (d *publicDialect) buildFrames(channels []string, event string) ([]interface{}, error) {
	grouped := map[string][]string{}
	for _, ch := range channels {
		parts := strings.SplitN(ch, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("gateio: malformed channel spec %q, want \"channel:symbol\"", ch)
		}
		grouped[parts[0]] = append(grouped[parts[0]], parts[1])
	}
	out := make([]interface{}, 0, len(grouped))
	for channel, symbols := range grouped {
		out = append(out, subscribeFrame{Channel: channel, Event: event, Payload: symbols})
	}
	return out, nil
}

// AuthFrame is nil for the public stream.
func (d *publicDialect) AuthFrame() (interface{}, error) { return nil, nil }

// UsesNativePing is true: Gate.io's public stream accepts WS control-frame
// pings on a 20s interval, unlike MEXC's application-level ping.
func (d *publicDialect) UsesNativePing() bool { return true }

func (d *publicDialect) AppPingMessage() []byte { return nil }

type pushFrame struct {
	Time    int64           `json:"time"`
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Result  json.RawMessage `json:"result"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (d *publicDialect) Parse(raw []byte) ws.ParsedMessage {
	var f pushFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return ws.ParsedMessage{Kind: ws.MsgUnknown, Raw: raw, Err: fmt.Errorf("gateio: parse frame: %w", err)}
	}
	if f.Error != nil {
		return ws.ParsedMessage{Kind: ws.MsgError, Channel: f.Channel, Raw: raw, Err: fmt.Errorf("gateio ws error %d: %s", f.Error.Code, f.Error.Message)}
	}
	if f.Event == "subscribe" || f.Event == "unsubscribe" {
		return ws.ParsedMessage{Kind: ws.MsgSubscriptionConfirm, Channel: f.Channel, Raw: raw}
	}

	switch {
	case strings.HasSuffix(f.Channel, ".order_book_update") || strings.HasSuffix(f.Channel, ".order_book"):
		payload, err := d.parseOrderBook(f)
		return ws.ParsedMessage{Kind: ws.MsgOrderbook, Channel: f.Channel, Payload: payload, Raw: raw, Err: err}
	case strings.HasSuffix(f.Channel, ".trades"):
		payload, err := d.parseTrades(f)
		return ws.ParsedMessage{Kind: ws.MsgTrade, Channel: f.Channel, Payload: payload, Raw: raw, Err: err}
	case strings.HasSuffix(f.Channel, ".book_ticker"):
		payload, err := d.parseBookTicker(f)
		return ws.ParsedMessage{Kind: ws.MsgBookTicker, Channel: f.Channel, Payload: payload, Raw: raw, Err: err}
	default:
		return ws.ParsedMessage{Kind: ws.MsgUnknown, Channel: f.Channel, Raw: raw}
	}
}

func (d *publicDialect) wireToSymbol(wire string) (domain.Symbol, error) {
	if d.market == marketFutures {
		sym, _, err := futuresWireToSymbol(wire)
		return sym, err
	}
	return spotWireToSymbol(wire)
}

type depthUpdate struct {
	Contract string      `json:"s"`
	Pair     string      `json:"currency_pair"`
	Bids     [][2]string `json:"b"`
	Asks     [][2]string `json:"a"`
	UpdateID int64       `json:"u"`
}

func (d *publicDialect) parseOrderBook(f pushFrame) (domain.OrderBook, error) {
	var u depthUpdate
	if err := json.Unmarshal(f.Result, &u); err != nil {
		return domain.OrderBook{}, fmt.Errorf("gateio: parse depth result: %w", err)
	}
	wire := u.Pair
	if wire == "" {
		wire = u.Contract
	}
	sym, err := d.wireToSymbol(wire)
	if err != nil {
		return domain.OrderBook{}, err
	}
	return domain.OrderBook{
		Symbol: sym, Bids: parseLevels(u.Bids), Asks: parseLevels(u.Asks),
		TimestampMs: f.Time * 1000, UpdateID: u.UpdateID,
	}, nil
}

type tradeUpdate struct {
	Contract     string `json:"contract"`
	CurrencyPair string `json:"currency_pair"`
	Price        string `json:"price"`
	Amount       string `json:"amount"`
	Size         float64 `json:"size"`
	Side         string `json:"side"`
	CreateTimeMs string `json:"create_time_ms"`
	CreateTime   float64 `json:"create_time"`
	ID           int64  `json:"id"`
}

func (d *publicDialect) parseTrades(f pushFrame) (domain.Trade, error) {
	var u tradeUpdate
	if err := json.Unmarshal(f.Result, &u); err != nil {
		return domain.Trade{}, fmt.Errorf("gateio: parse trade result: %w", err)
	}
	wire := u.CurrencyPair
	if wire == "" {
		wire = u.Contract
	}
	sym, err := d.wireToSymbol(wire)
	if err != nil {
		return domain.Trade{}, err
	}
	price, _ := strconv.ParseFloat(u.Price, 64)

	if d.market == marketFutures {
		side := domain.Buy
		size := u.Size
		if size < 0 {
			side = domain.Sell
			size = -size
		}
		return domain.Trade{
			Symbol: sym, Side: side, Price: price, Quantity: size, QuoteQuantity: price * size,
			TimestampMs: int64(u.CreateTime * 1000), TradeID: strconv.FormatInt(u.ID, 10),
		}, nil
	}

	qty, _ := strconv.ParseFloat(u.Amount, 64)
	ts, _ := strconv.ParseInt(u.CreateTimeMs, 10, 64)
	side := domain.Buy
	if u.Side == "sell" {
		side = domain.Sell
	}
	return domain.Trade{
		Symbol: sym, Side: side, Price: price, Quantity: qty, QuoteQuantity: price * qty,
		TimestampMs: ts, TradeID: strconv.FormatInt(u.ID, 10),
	}, nil
}

type bookTickerUpdate struct {
	Contract     string `json:"s"`
	CurrencyPair string `json:"currency_pair"`
	BidPrice     string `json:"b"`
	BidQty       string `json:"B"`
	AskPrice     string `json:"a"`
	AskQty       string `json:"A"`
}

func (d *publicDialect) parseBookTicker(f pushFrame) (domain.BookTicker, error) {
	var u bookTickerUpdate
	if err := json.Unmarshal(f.Result, &u); err != nil {
		return domain.BookTicker{}, fmt.Errorf("gateio: parse book_ticker result: %w", err)
	}
	wire := u.CurrencyPair
	if wire == "" {
		wire = u.Contract
	}
	sym, err := d.wireToSymbol(wire)
	if err != nil {
		return domain.BookTicker{}, err
	}
	bid, _ := strconv.ParseFloat(u.BidPrice, 64)
	bidQty, _ := strconv.ParseFloat(u.BidQty, 64)
	ask, _ := strconv.ParseFloat(u.AskPrice, 64)
	askQty, _ := strconv.ParseFloat(u.AskQty, 64)
	return domain.BookTicker{Symbol: sym, BidPrice: bid, BidQty: bidQty, AskPrice: ask, AskQty: askQty, TimestampMs: f.Time * 1000}, nil
}
