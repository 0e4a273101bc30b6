package gateio

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cexarb/internal/transport/ws"
	"cexarb/pkg/domain"
)

// privateDialect implements ws.Dialect for Gate.io's private user-data
// stream. Unlike MEXC's listen-key-in-URL scheme, Gate.io signs each
// subscribe request individually: every subscribe frame carries an "auth"
// block of {method, KEY, SIGN} where SIGN is HMAC-SHA512 over
// "channel={channel}&event={event}&time={time}" (spec §6.1).
type privateDialect struct {
	signer   *Signer
	mappings *mappings
	market   marketType
}

func newPrivateDialect(signer *Signer, m *mappings, market marketType) *privateDialect {
	return &privateDialect{signer: signer, mappings: m, market: market}
}

type authBlock struct {
	Method string `json:"method"`
	KEY    string `json:"KEY"`
	SIGN   string `json:"SIGN"`
}

type authedSubscribeFrame struct {
	Time    int64     `json:"time"`
	Channel string    `json:"channel"`
	Event   string    `json:"event"`
	Payload []string  `json:"payload"`
	Auth    authBlock `json:"auth"`
}

func (d *privateDialect) signRequest(channel, event string, timestamp int64) (authBlock, error) {
	message := fmt.Sprintf("channel=%s&event=%s&time=%d", channel, event, timestamp)
	mac := hmac.New(sha512.New, []byte(d.signer.secretKey))
	mac.Write([]byte(message))
	return authBlock{Method: "api_key", KEY: d.signer.apiKey, SIGN: hex.EncodeToString(mac.Sum(nil))}, nil
}

func (d *privateDialect) buildFrames(channels []string, event string) ([]interface{}, error) {
	grouped := map[string][]string{}
	for _, ch := range channels {
		parts := strings.SplitN(ch, ":", 2)
		channel := parts[0]
		var payload []string
		if len(parts) == 2 {
			payload = []string{parts[1]}
		}
		grouped[channel] = append(grouped[channel], payload...)
	}
	out := make([]interface{}, 0, len(grouped))
	for channel, payload := range grouped {
		timestamp := time.Now().Unix()
		auth, err := d.signRequest(channel, event, timestamp)
		if err != nil {
			return nil, err
		}
		out = append(out, authedSubscribeFrame{Channel: channel, Event: event, Payload: payload, Auth: auth, Time: timestamp})
	}
	return out, nil
}

func (d *privateDialect) BuildSubscribe(channels []string) ([]interface{}, error) {
	return d.buildFrames(channels, "subscribe")
}

func (d *privateDialect) BuildUnsubscribe(channels []string) ([]interface{}, error) {
	return d.buildFrames(channels, "unsubscribe")
}

// AuthFrame is nil: Gate.io signs every subscribe request individually
// rather than performing a single upfront login handshake.
func (d *privateDialect) AuthFrame() (interface{}, error) { return nil, nil }

func (d *privateDialect) UsesNativePing() bool { return true }

func (d *privateDialect) AppPingMessage() []byte { return nil }

func (d *privateDialect) Parse(raw []byte) ws.ParsedMessage {
	var f pushFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return ws.ParsedMessage{Kind: ws.MsgUnknown, Raw: raw, Err: fmt.Errorf("gateio: parse private frame: %w", err)}
	}
	if f.Error != nil {
		return ws.ParsedMessage{Kind: ws.MsgError, Channel: f.Channel, Raw: raw, Err: fmt.Errorf("gateio private ws error %d: %s", f.Error.Code, f.Error.Message)}
	}
	if f.Event == "subscribe" || f.Event == "unsubscribe" {
		return ws.ParsedMessage{Kind: ws.MsgSubscriptionConfirm, Channel: f.Channel, Raw: raw}
	}

	switch {
	case strings.HasSuffix(f.Channel, ".balances"):
		payload, err := d.parseBalance(f)
		return ws.ParsedMessage{Kind: ws.MsgBalance, Channel: f.Channel, Payload: payload, Raw: raw, Err: err}
	case strings.HasSuffix(f.Channel, ".orders"):
		payload, err := d.parseOrder(f)
		return ws.ParsedMessage{Kind: ws.MsgOrder, Channel: f.Channel, Payload: payload, Raw: raw, Err: err}
	case strings.HasSuffix(f.Channel, ".usertrades"):
		payload, err := d.parseExecution(f)
		return ws.ParsedMessage{Kind: ws.MsgExecution, Channel: f.Channel, Payload: payload, Raw: raw, Err: err}
	default:
		return ws.ParsedMessage{Kind: ws.MsgUnknown, Channel: f.Channel, Raw: raw}
	}
}

type balanceUpdate struct {
	Currency  string `json:"currency"`
	Available string `json:"available"`
	Total     string `json:"total"`
}

func (d *privateDialect) parseBalance(f pushFrame) (domain.AssetBalance, error) {
	var rows []balanceUpdate
	if err := json.Unmarshal(f.Result, &rows); err != nil {
		return domain.AssetBalance{}, fmt.Errorf("gateio: parse balance result: %w", err)
	}
	if len(rows) == 0 {
		return domain.AssetBalance{}, fmt.Errorf("gateio: empty balance update")
	}
	r := rows[0]
	avail, _ := strconv.ParseFloat(r.Available, 64)
	total, _ := strconv.ParseFloat(r.Total, 64)
	return domain.AssetBalance{Asset: domain.AssetName(r.Currency), Available: avail, Locked: total - avail}, nil
}

type spotOrderUpdate struct {
	ID           string `json:"id"`
	Text         string `json:"text"`
	CurrencyPair string `json:"currency_pair"`
	Side         string `json:"side"`
	Price        string `json:"price"`
	Amount       string `json:"amount"`
	Left         string `json:"left"`
	Status       string `json:"status"`
	Event        string `json:"event"`
	UpdateTimeMs string `json:"update_time_ms"`
}

type futuresOrderUpdate struct {
	ID         int64   `json:"id"`
	Text       string  `json:"text"`
	Contract   string  `json:"contract"`
	Price      string  `json:"price"`
	Size       float64 `json:"size"`
	Left       float64 `json:"left"`
	Status     string  `json:"status"`
	FinishAs   string  `json:"finish_as"`
	UpdateTime float64 `json:"update_time"`
}

func (d *privateDialect) parseOrder(f pushFrame) (domain.Order, error) {
	if d.market == marketFutures {
		var rows []futuresOrderUpdate
		if err := json.Unmarshal(f.Result, &rows); err != nil {
			return domain.Order{}, fmt.Errorf("gateio: parse futures order result: %w", err)
		}
		if len(rows) == 0 {
			return domain.Order{}, fmt.Errorf("gateio: empty order update")
		}
		r := rows[0]
		sym, _, err := futuresWireToSymbol(r.Contract)
		if err != nil {
			return domain.Order{}, err
		}
		price, _ := strconv.ParseFloat(r.Price, 64)
		side := domain.Buy
		size := r.Size
		if size < 0 {
			side = domain.Sell
			size = -size
		}
		return domain.Order{
			OrderID: domain.OrderId(strconv.FormatInt(r.ID, 10)), ClientOrderID: r.Text,
			Symbol: sym, Side: side, Price: price,
			Quantity: size, FilledQuantity: size - absFloat(r.Left),
			Status: d.statusFromEvent(r.Status, r.FinishAs), TimestampMs: int64(r.UpdateTime * 1000),
		}, nil
	}

	var rows []spotOrderUpdate
	if err := json.Unmarshal(f.Result, &rows); err != nil {
		return domain.Order{}, fmt.Errorf("gateio: parse spot order result: %w", err)
	}
	if len(rows) == 0 {
		return domain.Order{}, fmt.Errorf("gateio: empty order update")
	}
	r := rows[0]
	sym, err := spotWireToSymbol(r.CurrencyPair)
	if err != nil {
		return domain.Order{}, err
	}
	price, _ := strconv.ParseFloat(r.Price, 64)
	ts, _ := strconv.ParseInt(r.UpdateTimeMs, 10, 64)
	amount, _ := strconv.ParseFloat(r.Amount, 64)
	left, _ := strconv.ParseFloat(r.Left, 64)
	side := domain.Buy
	if r.Side == "sell" {
		side = domain.Sell
	}
	return domain.Order{
		OrderID: domain.OrderId(r.ID), ClientOrderID: r.Text, Symbol: sym, Side: side,
		Price: price, Quantity: amount, FilledQuantity: amount - left,
		Status: d.statusFromEvent(r.Status, r.Event), TimestampMs: ts,
	}, nil
}

// statusFromEvent resolves an order's terminal state from Gate.io's event
// field (spot: "put"/"update"/"finish") or finish_as field (futures:
// "filled"/"cancelled"/"liquidated"/...), falling back to the plain status
// mapping for non-terminal updates.
func (d *privateDialect) statusFromEvent(status, finishIndicator string) domain.OrderStatus {
	switch finishIndicator {
	case "finish", "filled":
		return domain.StatusFilled
	case "cancelled", "ioc", "auto_deleveraged", "position_closed", "reduce_only":
		return domain.StatusCanceled
	case "liquidated":
		return domain.StatusFilled
	}
	return d.mappings.statusFrom(status)
}

func (d *privateDialect) wireToSymbol(wire string) (domain.Symbol, error) {
	if d.market == marketFutures {
		sym, _, err := futuresWireToSymbol(wire)
		return sym, err
	}
	return spotWireToSymbol(wire)
}

type userTradeUpdate struct {
	ID           string `json:"id"`
	CurrencyPair string `json:"currency_pair"`
	Contract     string `json:"contract"`
	Side         string `json:"side"`
	Price        string `json:"price"`
	Amount       string `json:"amount"`
	Size         float64 `json:"size"`
	Role         string `json:"role"`
	CreateTimeMs string `json:"create_time_ms"`
	CreateTime   float64 `json:"create_time"`
}

func (d *privateDialect) parseExecution(f pushFrame) (domain.Trade, error) {
	var rows []userTradeUpdate
	if err := json.Unmarshal(f.Result, &rows); err != nil {
		return domain.Trade{}, fmt.Errorf("gateio: parse usertrades result: %w", err)
	}
	if len(rows) == 0 {
		return domain.Trade{}, fmt.Errorf("gateio: empty usertrades update")
	}
	r := rows[0]
	wire := r.CurrencyPair
	if wire == "" {
		wire = r.Contract
	}
	sym, err := d.wireToSymbol(wire)
	if err != nil {
		return domain.Trade{}, err
	}
	price, _ := strconv.ParseFloat(r.Price, 64)
	isMaker := r.Role == "maker"

	if d.market == marketFutures {
		side := domain.Buy
		size := r.Size
		if size < 0 {
			side = domain.Sell
			size = -size
		}
		return domain.Trade{
			Symbol: sym, Side: side, Price: price, Quantity: size, QuoteQuantity: price * size,
			TimestampMs: int64(r.CreateTime * 1000), TradeID: r.ID, IsMaker: isMaker,
		}, nil
	}

	qty, _ := strconv.ParseFloat(r.Amount, 64)
	ts, _ := strconv.ParseInt(r.CreateTimeMs, 10, 64)
	side := domain.Buy
	if r.Side == "sell" {
		side = domain.Sell
	}
	return domain.Trade{
		Symbol: sym, Side: side, Price: price, Quantity: qty, QuoteQuantity: price * qty,
		TimestampMs: ts, TradeID: r.ID, IsMaker: isMaker,
	}, nil
}
