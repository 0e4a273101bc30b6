// Package ws implements the reconnecting, heartbeating WebSocket client
// shared by every exchange adapter. Per-exchange specifics (subscription
// framing, envelope parsing, heartbeat style) are supplied via a Dialect so
// the reconnect/backoff/dispatch machinery stays exchange-agnostic.
package ws

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ConnectionState is the client's connection lifecycle state, published to
// a registered handler on every transition (spec §4.2.2).
type ConnectionState string

const (
	Disconnected ConnectionState = "DISCONNECTED"
	Connecting   ConnectionState = "CONNECTING"
	Connected    ConnectionState = "CONNECTED"
	Reconnecting ConnectionState = "RECONNECTING"
	Errored      ConnectionState = "ERROR"
)

// ParsedMessageKind discriminates dispatched frames.
type ParsedMessageKind string

const (
	MsgOrderbook            ParsedMessageKind = "ORDERBOOK"
	MsgTrade                ParsedMessageKind = "TRADE"
	MsgBookTicker           ParsedMessageKind = "BOOK_TICKER"
	MsgBalance              ParsedMessageKind = "BALANCE"
	MsgOrder                ParsedMessageKind = "ORDER"
	MsgExecution            ParsedMessageKind = "EXECUTION"
	MsgHeartbeat            ParsedMessageKind = "HEARTBEAT"
	MsgSubscriptionConfirm  ParsedMessageKind = "SUBSCRIPTION_CONFIRM"
	MsgError                ParsedMessageKind = "ERROR"
	MsgUnknown              ParsedMessageKind = "UNKNOWN"
)

// ParsedMessage is the typed envelope every Dialect.Parse call produces.
type ParsedMessage struct {
	Kind          ParsedMessageKind
	Channel       string
	Payload       interface{}
	CorrelationID string
	Raw           []byte
	Err           error
}

// Dialect supplies the exchange-specific behavior the generic client needs:
// how to build subscription frames, how to parse an incoming frame into a
// ParsedMessage, and what heartbeat style this connection uses.
type Dialect interface {
	// BuildSubscribe returns the frames to send for the given (channel,
	// symbol) pairs, e.g. one combined frame or one per channel.
	BuildSubscribe(channels []string) ([]interface{}, error)
	// BuildUnsubscribe mirrors BuildSubscribe for unsubscription.
	BuildUnsubscribe(channels []string) ([]interface{}, error)
	// Parse decodes a raw frame into a typed ParsedMessage.
	Parse(raw []byte) ParsedMessage
	// AuthFrame returns a login frame for in-band private-channel auth, or
	// nil if this connection needs no in-band auth (e.g. public channel,
	// or listen-key-in-URL auth already applied to the dial URL).
	AuthFrame() (interface{}, error)
	// UsesNativePing reports whether this exchange relies on the
	// websocket control-frame ping/pong (true) or an application-level
	// text ping (false). The two are never both active on one connection.
	UsesNativePing() bool
	// AppPingMessage returns the application-level ping payload, used only
	// when UsesNativePing() is false.
	AppPingMessage() []byte
}

// ReconnectPolicy holds the per-exchange backoff/heartbeat parameters from
// spec §4.2.2 / §6.2's WebsocketConfig.
type ReconnectPolicy struct {
	InitialDelay      time.Duration
	BackoffFactor     float64
	MaxDelay          time.Duration
	MaxAttempts       int // 0 = unlimited
	PingInterval      time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	ResubscribeOnConn bool
}

func defaultedPolicy(p ReconnectPolicy) ReconnectPolicy {
	if p.InitialDelay <= 0 {
		p.InitialDelay = time.Second
	}
	if p.BackoffFactor <= 1 {
		p.BackoffFactor = 2
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 30 * time.Second
	}
	if p.PingInterval <= 0 {
		p.PingInterval = 50 * time.Second
	}
	if p.ReadTimeout <= 0 {
		p.ReadTimeout = 90 * time.Second
	}
	if p.WriteTimeout <= 0 {
		p.WriteTimeout = 10 * time.Second
	}
	return p
}

// Client manages one WebSocket connection: connect, reconnect with
// exponential backoff, heartbeat, and typed message dispatch.
type Client struct {
	url     string
	dialect Dialect
	policy  ReconnectPolicy
	name    string

	conn   *websocket.Conn
	connMu sync.Mutex

	subMu      sync.RWMutex
	subscribed map[string]bool

	messages chan ParsedMessage

	stateMu sync.RWMutex
	state   ConnectionState
	onState func(ConnectionState)

	logger *slog.Logger
}

// New creates a WS client for one connection (public or private channel
// set) of one exchange.
func New(name, url string, dialect Dialect, policy ReconnectPolicy, logger *slog.Logger) *Client {
	return &Client{
		url:        url,
		dialect:    dialect,
		policy:     defaultedPolicy(policy),
		name:       name,
		subscribed: make(map[string]bool),
		messages:   make(chan ParsedMessage, 256),
		state:      Disconnected,
		logger:     logger.With("component", "ws_client", "conn", name),
	}
}

// Messages returns the channel of dispatched frames.
func (c *Client) Messages() <-chan ParsedMessage { return c.messages }

// OnStateChange registers a handler invoked on every connection-state
// transition. Only one handler may be registered.
func (c *Client) OnStateChange(fn func(ConnectionState)) {
	c.stateMu.Lock()
	c.onState = fn
	c.stateMu.Unlock()
}

func (c *Client) setState(s ConnectionState) {
	c.stateMu.Lock()
	c.state = s
	handler := c.onState
	c.stateMu.Unlock()
	if handler != nil {
		handler(s)
	}
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// Run connects and maintains the connection with auto-reconnect. Blocks
// until ctx is cancelled or MaxAttempts is exhausted.
func (c *Client) Run(ctx context.Context) error {
	delay := c.policy.InitialDelay
	attempts := 0

	for {
		c.setState(Connecting)
		err := c.connectAndRead(ctx)
		if ctx.Err() != nil {
			c.setState(Disconnected)
			return ctx.Err()
		}

		attempts++
		c.setState(Reconnecting)
		c.logger.Warn("websocket disconnected, reconnecting", "error", err, "delay", delay, "attempt", attempts)

		if c.policy.MaxAttempts > 0 && attempts >= c.policy.MaxAttempts {
			c.setState(Errored)
			return fmt.Errorf("%s: exceeded max reconnect attempts (%d): %w", c.name, c.policy.MaxAttempts, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * c.policy.BackoffFactor)
		if delay > c.policy.MaxDelay {
			delay = c.policy.MaxDelay
		}
	}
}

// Subscribe adds channels to the subscription set and, if connected, sends
// the subscribe frame immediately; otherwise the channels go out with the
// resubscribe on the next connect.
func (c *Client) Subscribe(channels []string) error {
	c.subMu.Lock()
	for _, ch := range channels {
		c.subscribed[ch] = true
	}
	c.subMu.Unlock()

	c.connMu.Lock()
	connected := c.conn != nil
	c.connMu.Unlock()
	if !connected {
		return nil
	}

	frames, err := c.dialect.BuildSubscribe(channels)
	if err != nil {
		return err
	}
	for _, f := range frames {
		if err := c.writeJSON(f); err != nil {
			return err
		}
	}
	return nil
}

// Unsubscribe removes channels and sends the unsubscribe frame if connected.
func (c *Client) Unsubscribe(channels []string) error {
	c.subMu.Lock()
	for _, ch := range channels {
		delete(c.subscribed, ch)
	}
	c.subMu.Unlock()

	c.connMu.Lock()
	connected := c.conn != nil
	c.connMu.Unlock()
	if !connected {
		return nil
	}

	frames, err := c.dialect.BuildUnsubscribe(channels)
	if err != nil {
		return err
	}
	for _, f := range frames {
		if err := c.writeJSON(f); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying connection, if any.
func (c *Client) Close() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	defer func() {
		c.connMu.Lock()
		conn.Close()
		c.conn = nil
		c.connMu.Unlock()
	}()

	if authFrame, err := c.dialect.AuthFrame(); err != nil {
		return fmt.Errorf("build auth frame: %w", err)
	} else if authFrame != nil {
		if err := c.writeJSON(authFrame); err != nil {
			return fmt.Errorf("send auth: %w", err)
		}
	}

	if c.policy.ResubscribeOnConn {
		c.subMu.RLock()
		channels := make([]string, 0, len(c.subscribed))
		for ch := range c.subscribed {
			channels = append(channels, ch)
		}
		c.subMu.RUnlock()
		if len(channels) > 0 {
			frames, err := c.dialect.BuildSubscribe(channels)
			if err != nil {
				return fmt.Errorf("build subscribe: %w", err)
			}
			for _, f := range frames {
				if err := c.writeJSON(f); err != nil {
					return fmt.Errorf("resubscribe: %w", err)
				}
			}
		}
	}

	c.setState(Connected)
	c.logger.Info("websocket connected")

	if c.dialect.UsesNativePing() {
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(c.policy.ReadTimeout))
			return nil
		})
	}

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go c.pingLoop(pingCtx)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn.SetReadDeadline(time.Now().Add(c.policy.ReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		c.dispatch(msg)
	}
}

func (c *Client) dispatch(raw []byte) {
	parsed := c.dialect.Parse(raw)
	if parsed.Err != nil && parsed.Kind != MsgError {
		c.logger.Warn("parse error, dropping frame", "error", parsed.Err)
		return
	}
	select {
	case c.messages <- parsed:
	default:
		c.logger.Warn("message channel full, dropping event", "kind", parsed.Kind, "channel", parsed.Channel)
	}
}

func (c *Client) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(c.policy.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.connMu.Lock()
			conn := c.conn
			c.connMu.Unlock()
			if conn == nil {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(c.policy.WriteTimeout))
			var err error
			if c.dialect.UsesNativePing() {
				err = conn.WriteMessage(websocket.PingMessage, nil)
			} else {
				err = conn.WriteMessage(websocket.TextMessage, c.dialect.AppPingMessage())
			}
			if err != nil {
				c.logger.Warn("ping failed", "error", err)
				return
			}
		}
	}
}

func (c *Client) writeJSON(v interface{}) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("%s: websocket not connected", c.name)
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.policy.WriteTimeout))
	return c.conn.WriteJSON(v)
}
