package strategy

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"cexarb/internal/composite"
	"cexarb/internal/scheduler"
	"cexarb/pkg/domain"
)

// ArbitrageState is the state machine's closed set of phases (spec
// §4.6.2's context.arbitrage_state).
type ArbitrageState string

const (
	ArbIdle      ArbitrageState = "idle"
	ArbAnalyzing ArbitrageState = "analyzing"
	ArbEntering  ArbitrageState = "entering"
	ArbHolding   ArbitrageState = "holding"
	ArbExiting   ArbitrageState = "exiting"
	ArbError     ArbitrageState = "error"
)

// TradingParameters tunes entry/exit thresholds (spec §4.6.2).
type TradingParameters struct {
	MaxEntryCostPct         float64 `json:"max_entry_cost_pct"`
	MinProfitPct            float64 `json:"min_profit_pct"`
	MaxHours                float64 `json:"max_hours"`
	SpotFee                 float64 `json:"spot_fee"`
	FutFee                  float64 `json:"fut_fee"`
	LimitOrdersEnabled      bool    `json:"limit_orders_enabled"`
	LimitProfitPct          float64 `json:"limit_profit_pct"`
	LimitProfitTolerancePct float64 `json:"limit_profit_tolerance_pct"`
}

// DeltaNeutralContext is the persistable state for one delta-neutral task.
type DeltaNeutralContext struct {
	Symbol         domain.Symbol       `json:"symbol"`
	SpotExchange   domain.ExchangeEnum `json:"spot_exchange"`
	FuturesExchange domain.ExchangeEnum `json:"futures_exchange"`
	Params         TradingParameters   `json:"params"`
	SpotPosition   domain.Position     `json:"spot_position"`
	FuturesPosition domain.Position    `json:"futures_position"`
	State          ArbitrageState      `json:"arbitrage_state"`
	EntryTimeUnix  int64               `json:"entry_time_unix,omitempty"`
	OffsetTicks    float64             `json:"offset_ticks"`
	TickTolerance  float64             `json:"tick_tolerance"`
	OrderQty       float64             `json:"order_qty"`
	TotalQuantity  float64             `json:"total_quantity"`
	Cycles         int                 `json:"cycles"`
	Volume         float64             `json:"volume"`
}

// DeltaNeutralTaskType is the context_type tag this task persists under.
const DeltaNeutralTaskType = "delta_neutral"

// DeltaNeutral opens matched long-spot/short-futures (or reverse)
// positions when the spread clears entry cost, holds while delta-neutral,
// and exits on profit target/timeout (spec §4.6.2), grounded on
// maker_limit_simple_delta_neutral_task.py's _manage_spot_limit_order_place
// / _manage_spot_order_cancel / _adjust_futures_position / handle_spot_mode
// cycle, mapped onto Go's composite/scheduler split.
type DeltaNeutral struct {
	id      string
	spot    *composite.Private
	spotPub *composite.Public
	fut     *composite.Private
	futPub  *composite.Public
	ctx     DeltaNeutralContext
	state   scheduler.TaskState
}

// NewDeltaNeutral constructs a delta-neutral task wired to both legs'
// composites.
func NewDeltaNeutral(id string, spot, fut *composite.Private, spotPub, futPub *composite.Public, ctx DeltaNeutralContext) *DeltaNeutral {
	if ctx.State == "" {
		ctx.State = ArbIdle
	}
	if ctx.SpotPosition.Mode == "" {
		ctx.SpotPosition = ctx.SpotPosition.SetMode(domain.ModeAccumulate)
	}
	return &DeltaNeutral{id: id, spot: spot, spotPub: spotPub, fut: fut, futPub: futPub, ctx: ctx, state: scheduler.StateIdle}
}

func (t *DeltaNeutral) ID() string                { return t.id }
func (t *DeltaNeutral) Symbol() string             { return t.ctx.Symbol.String() }
func (t *DeltaNeutral) ContextType() string        { return DeltaNeutralTaskType }
func (t *DeltaNeutral) Context() any                { return t.ctx }
func (t *DeltaNeutral) State() scheduler.TaskState { return t.state }

func (t *DeltaNeutral) Start(ctx context.Context) error {
	t.state = scheduler.StateRunning
	return nil
}

func (t *DeltaNeutral) Stop(ctx context.Context) error {
	t.state = scheduler.StateCancelled
	return nil
}

func (t *DeltaNeutral) Cleanup() error {
	if t.ctx.SpotPosition.LastOrder != nil {
		_ = t.spot.CancelOrder(context.Background(), t.ctx.Symbol, t.ctx.SpotPosition.LastOrder.OrderID)
	}
	return nil
}

// ExecuteOnce advances the state machine at most one transition per call
// (spec §4.6.2: "Per step the state machine advances at most one
// transition").
func (t *DeltaNeutral) ExecuteOnce(ctx context.Context) scheduler.StepResult {
	switch t.ctx.State {
	case ArbIdle, ArbAnalyzing:
		return t.stepAnalyze(ctx)
	case ArbEntering:
		return t.stepEnter(ctx)
	case ArbHolding:
		return t.stepHold(ctx)
	case ArbExiting:
		return t.stepExit(ctx)
	default:
		t.ctx.State = ArbAnalyzing
		return scheduler.StepResult{ShouldContinue: true, NextDelay: time.Second, State: scheduler.StateRunning}
	}
}

func (t *DeltaNeutral) spotTicker() (domain.BookTicker, bool) { return t.spotPub.BookTicker(t.ctx.Symbol) }
func (t *DeltaNeutral) futTicker() (domain.BookTicker, bool)  { return t.futPub.BookTicker(t.ctx.Symbol) }

// spreadEntryPct computes (fut_bid - spot_ask)/spot_ask*100 - fees, per
// spec §4.6.2's entry logic.
func spreadEntryPct(spotAsk, futBid, spotFee, futFee float64) float64 {
	return (futBid-spotAsk)/spotAsk*100 - (spotFee+futFee)*100
}

func (t *DeltaNeutral) stepAnalyze(ctx context.Context) scheduler.StepResult {
	spot, okS := t.spotTicker()
	fut, okF := t.futTicker()
	if !okS || !okF {
		return scheduler.StepResult{ShouldContinue: true, NextDelay: time.Second, State: scheduler.StateRunning}
	}

	entry := spreadEntryPct(spot.AskPrice, fut.BidPrice, t.ctx.Params.SpotFee, t.ctx.Params.FutFee)
	if entry < -t.ctx.Params.MaxEntryCostPct {
		t.ctx.State = ArbAnalyzing
		return scheduler.StepResult{ShouldContinue: true, NextDelay: time.Second, State: scheduler.StateRunning}
	}

	t.ctx.State = ArbEntering
	return scheduler.StepResult{ShouldContinue: true, NextDelay: 500 * time.Millisecond, State: scheduler.StateRunning}
}

func (t *DeltaNeutral) stepEnter(ctx context.Context) scheduler.StepResult {
	if err := t.reconcileSpotFill(ctx); err != nil {
		return t.errorResult(err)
	}
	if err := t.manageSpotLimitOrderPlace(ctx); err != nil {
		return t.errorResult(err)
	}
	cancelled, err := t.manageSpotOrderCancel(ctx)
	if err != nil {
		return t.errorResult(err)
	}
	if err := t.adjustFuturesPosition(ctx); err != nil {
		return t.errorResult(err)
	}
	_ = cancelled

	if t.ctx.SpotPosition.IsFulfilled(t.minBaseQty(t.ctx.SpotExchange)) {
		t.ctx.State = ArbHolding
		now := nowUnix()
		t.ctx.EntryTimeUnix = now
		t.ctx.Cycles++
	}
	return scheduler.StepResult{ShouldContinue: true, NextDelay: 500 * time.Millisecond, State: scheduler.StateRunning}
}

func (t *DeltaNeutral) stepHold(ctx context.Context) scheduler.StepResult {
	spot, okS := t.spotTicker()
	fut, okF := t.futTicker()
	if !okS || !okF {
		return scheduler.StepResult{ShouldContinue: true, NextDelay: time.Second, State: scheduler.StateRunning}
	}

	pnlPct := t.unrealizedPnLPct(spot, fut)
	elapsedHours := float64(nowUnix()-t.ctx.EntryTimeUnix) / 3600.0

	if pnlPct >= t.ctx.Params.MinProfitPct || elapsedHours >= t.ctx.Params.MaxHours {
		t.ctx.State = ArbExiting
	}
	return scheduler.StepResult{ShouldContinue: true, NextDelay: time.Second, State: scheduler.StateRunning}
}

// stepExit drives the spot leg's accumulate -> release mode cycle: once
// holding flips to exiting, the spot position switches to release mode and
// is worked back down to flat against the opposite side of book using the
// same resting-order/cancel-on-drift machinery as entry, rehedging the
// futures leg to match after every fill. Once flat, both legs' PnL
// trackers reset and the task returns to analyzing in accumulate mode.
func (t *DeltaNeutral) stepExit(ctx context.Context) scheduler.StepResult {
	if t.ctx.SpotPosition.Mode != domain.ModeRelease {
		t.ctx.SpotPosition = t.ctx.SpotPosition.SetMode(domain.ModeRelease)
	}

	if err := t.reconcileSpotFill(ctx); err != nil {
		return t.errorResult(err)
	}
	if err := t.manageSpotLimitOrderPlace(ctx); err != nil {
		return t.errorResult(err)
	}
	if _, err := t.manageSpotOrderCancel(ctx); err != nil {
		return t.errorResult(err)
	}
	if err := t.adjustFuturesPosition(ctx); err != nil {
		return t.errorResult(err)
	}

	minStep := t.minBaseQty(t.ctx.SpotExchange)
	if t.ctx.SpotPosition.Qty < minStep && t.ctx.SpotPosition.LastOrder == nil {
		t.ctx.SpotPosition = t.ctx.SpotPosition.Reset(t.ctx.TotalQuantity, true).SetMode(domain.ModeAccumulate)
		t.ctx.FuturesPosition = t.ctx.FuturesPosition.Reset(t.ctx.TotalQuantity, true)
		t.ctx.State = ArbAnalyzing
	}
	return scheduler.StepResult{ShouldContinue: true, NextDelay: 500 * time.Millisecond, State: scheduler.StateRunning}
}

// unrealizedPnLPct computes exit PnL considering current bid/ask (spec
// §4.6.2's exit logic): spot sell at bid(1-fee), futures buy at
// ask(1+fee), minus the original entry basis.
func (t *DeltaNeutral) unrealizedPnLPct(spot, fut domain.BookTicker) float64 {
	spotExit := spot.BidPrice * (1 - t.ctx.Params.SpotFee)
	futExit := fut.AskPrice * (1 + t.ctx.Params.FutFee)
	entryBasis := t.ctx.SpotPosition.Price - t.ctx.FuturesPosition.Price
	exitBasis := spotExit - futExit
	if entryBasis == 0 {
		return 0
	}
	return (exitBasis - entryBasis) / math.Abs(entryBasis) * 100
}

// reconcileSpotFill folds a terminal spot order's fill into SpotPosition
// (Qty/Price net exposure and, when in accumulate mode, AccQty progress
// toward TargetQty), then clears LastOrder so a fresh one can be placed.
func (t *DeltaNeutral) reconcileSpotFill(ctx context.Context) error {
	curr := t.ctx.SpotPosition.LastOrder
	if curr == nil {
		return nil
	}

	order, err := t.spot.GetOrder(ctx, t.ctx.Symbol, curr.OrderID)
	if err != nil {
		return fmt.Errorf("fetch spot order: %w", err)
	}
	if !order.Status.IsTerminal() {
		return nil
	}

	if order.FilledQuantity > 0 {
		t.ctx.SpotPosition = t.ctx.SpotPosition.Update(order.Side, order.FilledQuantity, order.AveragePrice)
	}
	t.ctx.SpotPosition.LastOrder = nil
	return nil
}

// manageSpotLimitOrderPlace places (or leaves alone) the spot leg's limit
// order, mirroring _manage_spot_limit_order_place.
func (t *DeltaNeutral) manageSpotLimitOrderPlace(ctx context.Context) error {
	if t.ctx.SpotPosition.LastOrder != nil {
		return nil
	}

	minStep := t.minBaseQty(t.ctx.SpotExchange)

	side := domain.Buy
	var maxQty float64
	if t.ctx.SpotPosition.Mode == domain.ModeRelease {
		// Release works the held Qty back down to zero rather than
		// accumulating toward TargetQty, so the remaining amount to place
		// is the position's current size, not GetRemainingQty.
		side = domain.Sell
		maxQty = t.ctx.SpotPosition.Qty
	} else {
		maxQty = t.ctx.SpotPosition.GetRemainingQty(minStep)
	}
	if maxQty < minStep {
		return nil
	}

	ticker, ok := t.spotTicker()
	if !ok {
		return nil
	}

	if !t.ctx.Params.LimitOrdersEnabled {
		order, err := t.spot.PlaceMarketOrder(ctx, t.ctx.Symbol, side, math.Min(t.ctx.OrderQty, maxQty))
		if err != nil {
			return fmt.Errorf("spot market entry: %w", err)
		}
		t.ctx.SpotPosition.LastOrder = &order
		return nil
	}

	futTicker, ok := t.futTicker()
	if !ok {
		return nil
	}
	// spot_limit = fut_bid / (1 + limit_profit_pct/100), constrained below
	// spot ask (spec §4.6.2).
	spotLimit := futTicker.BidPrice / (1 + t.ctx.Params.LimitProfitPct/100)
	if spotLimit >= ticker.AskPrice {
		spotLimit = ticker.AskPrice - t.tickSize()
	}

	qty := math.Min(t.ctx.OrderQty, maxQty)
	order, err := t.spot.PlaceLimitOrder(ctx, t.ctx.Symbol, side, spotLimit, qty, domain.GTC)
	if err != nil {
		return fmt.Errorf("spot limit entry: %w", err)
	}
	t.ctx.SpotPosition.LastOrder = &order
	return nil
}

// manageSpotOrderCancel cancels the resting spot limit order if price has
// drifted beyond limit_profit_tolerance_pct, mirroring
// _manage_spot_order_cancel.
func (t *DeltaNeutral) manageSpotOrderCancel(ctx context.Context) (bool, error) {
	curr := t.ctx.SpotPosition.LastOrder
	if curr == nil {
		return false, nil
	}

	ticker, ok := t.spotTicker()
	if !ok {
		return false, nil
	}
	topPrice := ticker.BidPrice
	if curr.Side == domain.Sell {
		topPrice = ticker.AskPrice
	}

	driftPct := math.Abs(curr.Price-topPrice) / curr.Price * 100
	if driftPct <= t.ctx.Params.LimitProfitTolerancePct {
		return false, nil
	}

	if err := t.spot.CancelOrder(ctx, t.ctx.Symbol, curr.OrderID); err != nil {
		return false, fmt.Errorf("cancel drifted spot limit: %w", err)
	}
	t.ctx.SpotPosition.LastOrder = nil
	return true, nil
}

// adjustFuturesPosition rehedges the futures leg by a single market order
// of signed delta, mirroring _adjust_futures_position.
func (t *DeltaNeutral) adjustFuturesPosition(ctx context.Context) error {
	spotQty := t.ctx.SpotPosition.Qty
	if spotQty < t.minBaseQty(t.ctx.SpotExchange) {
		spotQty = 0
	}
	delta := spotQty - t.ctx.FuturesPosition.Qty
	if math.Abs(delta) < t.minBaseQty(t.ctx.FuturesExchange) {
		return nil
	}

	// Long spot is hedged by short futures.
	side := domain.Sell
	if delta < 0 {
		side = domain.Buy
	}

	order, err := t.fut.PlaceMarketOrder(ctx, t.ctx.Symbol, side, math.Abs(delta))
	if err != nil {
		return fmt.Errorf("hedge futures: %w", err)
	}
	t.ctx.FuturesPosition = t.ctx.FuturesPosition.Update(side, order.FilledQuantity, order.AveragePrice)
	return nil
}

// minBaseQty returns the minimum tradeable step for the given exchange's
// cached symbol metadata.
func (t *DeltaNeutral) minBaseQty(exch domain.ExchangeEnum) float64 {
	var priv *composite.Private
	if exch == t.ctx.SpotExchange {
		priv = t.spot
	} else {
		priv = t.fut
	}
	info, ok := priv.SymbolsInfo()[t.ctx.Symbol]
	if !ok {
		return 0
	}
	return info.Step
}

func (t *DeltaNeutral) tickSize() float64 {
	info, ok := t.spot.SymbolsInfo()[t.ctx.Symbol]
	if !ok {
		return 0
	}
	return info.Tick
}

// errorResult translates a domain error into the state transitions spec §7
// mandates: InsufficientBalanceError drives the task into exiting (the
// unhedged leg is liquidated by the normal stepExit cycle on the next tick);
// OrderValidationError is unrecoverable by retrying and ends the task in
// ERROR, persisted for an operator to inspect. Anything else is a
// transport/exchange hiccup and just backs off.
func (t *DeltaNeutral) errorResult(err error) scheduler.StepResult {
	var insufficientBalance *domain.InsufficientBalanceError
	if errors.As(err, &insufficientBalance) {
		t.ctx.State = ArbExiting
		return scheduler.StepResult{ShouldContinue: true, NextDelay: time.Second, State: scheduler.StateRunning, Err: err}
	}

	var orderValidation *domain.OrderValidationError
	if errors.As(err, &orderValidation) {
		t.ctx.State = ArbError
		return scheduler.StepResult{ShouldContinue: false, State: scheduler.StateError, Err: err}
	}

	return scheduler.StepResult{ShouldContinue: true, NextDelay: time.Second, State: scheduler.StateRunning, Err: err}
}

// nowUnix exists to keep time.Now() calls in one place for this task
// (unix seconds, matching EntryTimeUnix's persisted form).
func nowUnix() int64 { return time.Now().Unix() }
