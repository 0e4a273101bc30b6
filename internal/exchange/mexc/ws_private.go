package mexc

import (
	"encoding/json"
	"fmt"
	"strconv"

	"cexarb/internal/transport/ws"
	"cexarb/pkg/domain"
)

// privateDialect implements ws.Dialect for MEXC's private user-data stream.
// Authentication is listen-key-in-URL (spec §4.3's ListenKeyRest variant):
// the listen key is appended as a query parameter on the dial URL by the
// private composite (internal/composite's Private.Run) before dialing, so
// AuthFrame is always nil here.
//
// MEXC's production private stream also accepts binary Protocol-Buffers
// frames (spec §6.1); this dialect only decodes the JSON variant, which the
// v3 private stream also serves alongside the binary one.
type privateDialect struct {
	mappings *mappings
}

func newPrivateDialect(m *mappings) *privateDialect {
	return &privateDialect{mappings: m}
}

func (d *privateDialect) BuildSubscribe(channels []string) ([]interface{}, error) {
	return []interface{}{subscribeFrame{Method: "SUBSCRIPTION", Params: channels}}, nil
}

func (d *privateDialect) BuildUnsubscribe(channels []string) ([]interface{}, error) {
	return []interface{}{subscribeFrame{Method: "UNSUBSCRIPTION", Params: channels}}, nil
}

// AuthFrame is nil: auth already happened via the listen-key URL parameter.
func (d *privateDialect) AuthFrame() (interface{}, error) { return nil, nil }

func (d *privateDialect) UsesNativePing() bool { return false }

func (d *privateDialect) AppPingMessage() []byte {
	b, _ := json.Marshal(map[string]string{"method": "PING"})
	return b
}

func (d *privateDialect) Parse(raw []byte) ws.ParsedMessage {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return ws.ParsedMessage{Kind: ws.MsgUnknown, Raw: raw, Err: fmt.Errorf("mexc: parse private envelope: %w", err)}
	}

	if env.Code != nil {
		if *env.Code != 0 {
			return ws.ParsedMessage{Kind: ws.MsgError, Raw: raw, Err: fmt.Errorf("mexc private ws error %d: %s", *env.Code, env.Msg)}
		}
		return ws.ParsedMessage{Kind: ws.MsgSubscriptionConfirm, Raw: raw}
	}

	switch env.Channel {
	case "spot@private.account.v3.api":
		payload, err := d.parseBalance(env)
		return ws.ParsedMessage{Kind: ws.MsgBalance, Channel: env.Channel, Payload: payload, Raw: raw, Err: err}
	case "spot@private.orders.v3.api":
		payload, err := d.parseOrder(env)
		return ws.ParsedMessage{Kind: ws.MsgOrder, Channel: env.Channel, Payload: payload, Raw: raw, Err: err}
	case "spot@private.deals.v3.api":
		payload, err := d.parseExecution(env)
		return ws.ParsedMessage{Kind: ws.MsgExecution, Channel: env.Channel, Payload: payload, Raw: raw, Err: err}
	default:
		return ws.ParsedMessage{Kind: ws.MsgUnknown, Channel: env.Channel, Raw: raw}
	}
}

type privateBalancePayload struct {
	Asset  string `json:"a"`
	Free   string `json:"f"`
	Locked string `json:"l"`
}

func (d *privateDialect) parseBalance(env envelope) (domain.AssetBalance, error) {
	var p privateBalancePayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		return domain.AssetBalance{}, fmt.Errorf("mexc: parse account payload: %w", err)
	}
	avail, _ := strconv.ParseFloat(p.Free, 64)
	locked, _ := strconv.ParseFloat(p.Locked, 64)
	return domain.AssetBalance{Asset: domain.AssetName(p.Asset), Available: avail, Locked: locked}, nil
}

type privateOrderPayload struct {
	OrderID       string `json:"i"`
	ClientOrderID string `json:"c"`
	Side          int    `json:"S"`
	OrderType     int    `json:"o"`
	Price         string `json:"p"`
	Quantity      string `json:"v"`
	Filled        string `json:"cv"`
	Status        int    `json:"s"`
	Time          int64  `json:"O"`
}

// mexc private order/deal status codes: 1 new, 2 filled, 3 partially
// filled, 4 canceled, 5 partially canceled.
func orderStatusFromCode(code int) domain.OrderStatus {
	switch code {
	case 1:
		return domain.StatusNew
	case 2:
		return domain.StatusFilled
	case 3:
		return domain.StatusPartiallyFilled
	case 4, 5:
		return domain.StatusCanceled
	default:
		return domain.StatusUnknown
	}
}

func sideFromCode(code int) domain.Side {
	if code == 1 {
		return domain.Buy
	}
	return domain.Sell
}

func (d *privateDialect) parseOrder(env envelope) (domain.Order, error) {
	var p privateOrderPayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		return domain.Order{}, fmt.Errorf("mexc: parse order payload: %w", err)
	}
	sym, err := wireToSymbol(env.Symbol)
	if err != nil {
		return domain.Order{}, err
	}
	price, _ := strconv.ParseFloat(p.Price, 64)
	qty, _ := strconv.ParseFloat(p.Quantity, 64)
	filled, _ := strconv.ParseFloat(p.Filled, 64)
	return domain.Order{
		OrderID: domain.OrderId(p.OrderID), ClientOrderID: p.ClientOrderID,
		Symbol: sym, Side: sideFromCode(p.Side), Price: price, Quantity: qty,
		FilledQuantity: filled, Status: orderStatusFromCode(p.Status), TimestampMs: p.Time,
	}, nil
}

type privateDealPayload struct {
	OrderID string `json:"i"`
	Side    int    `json:"S"`
	Price   string `json:"p"`
	Qty     string `json:"v"`
	Time    int64  `json:"t"`
	IsMaker bool   `json:"m"`
}

func (d *privateDialect) parseExecution(env envelope) (domain.Trade, error) {
	var p privateDealPayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		return domain.Trade{}, fmt.Errorf("mexc: parse deal payload: %w", err)
	}
	sym, err := wireToSymbol(env.Symbol)
	if err != nil {
		return domain.Trade{}, err
	}
	price, _ := strconv.ParseFloat(p.Price, 64)
	qty, _ := strconv.ParseFloat(p.Qty, 64)
	return domain.Trade{
		Symbol: sym, Side: sideFromCode(p.Side), Price: price, Quantity: qty,
		QuoteQuantity: price * qty, TimestampMs: p.Time, TradeID: p.OrderID, IsMaker: p.IsMaker,
	}, nil
}
