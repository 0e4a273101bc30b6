package strategy

import (
	"context"
	"errors"
	"fmt"
	"math"

	"cexarb/internal/composite"
	"cexarb/internal/scheduler"
	"cexarb/pkg/domain"
)

// OperationMode selects how CrossExchange treats its spot leg once entered
// (spec §4.6.3): traditional holds a single entry until the caller stops
// the task; spot_switching keeps migrating the spot leg toward whichever
// candidate exchange scans cheapest.
type OperationMode string

const (
	OperationTraditional   OperationMode = "traditional"
	OperationSpotSwitching OperationMode = "spot_switching"
)

// ExchangeLegConfig tunes one leg's order-placement behavior: how far off
// top-of-book to quote, how much drift to tolerate before replacing a
// resting order, and whether to cross the spread with a market order
// instead of resting.
type ExchangeLegConfig struct {
	TickTolerance float64 `json:"tick_tolerance"`
	TicksOffset   float64 `json:"ticks_offset"`
	UseMarket     bool    `json:"use_market"`
}

// SpotOpportunity is one candidate spot exchange's scanned entry cost
// (spec §4.6.3's opportunity scan).
type SpotOpportunity struct {
	Exchange    domain.ExchangeEnum `json:"exchange"`
	EntryPrice  float64             `json:"entry_price"`
	CostPct     float64             `json:"cost_pct"`
	MaxQuantity float64             `json:"max_quantity"`
}

// MultiSpotPositionState tracks which spot exchange currently holds
// inventory, the exchange-keyed spot positions, and the futures hedge
// position (spec §4.6.3).
type MultiSpotPositionState struct {
	ActiveExchange  domain.ExchangeEnum                      `json:"active_exchange,omitempty"`
	SpotPositions   map[domain.ExchangeEnum]domain.Position `json:"spot_positions"`
	FuturesPosition domain.Position                          `json:"futures_position"`
}

// HasPositions reports whether a spot exchange currently holds the working
// position.
func (m MultiSpotPositionState) HasPositions() bool { return m.ActiveExchange != "" }

// ActivePosition returns the position held at ActiveExchange, or the zero
// value if nothing is active.
func (m MultiSpotPositionState) ActivePosition() domain.Position {
	if m.ActiveExchange == "" {
		return domain.Position{}
	}
	return m.SpotPositions[m.ActiveExchange]
}

// SetActivePosition writes p back under ActiveExchange.
func (m *MultiSpotPositionState) SetActivePosition(p domain.Position) {
	if m.SpotPositions == nil {
		m.SpotPositions = make(map[domain.ExchangeEnum]domain.Position)
	}
	m.SpotPositions[m.ActiveExchange] = p
}

// ClearActive drops the active exchange's entry once its position has been
// fully released back to flat.
func (m *MultiSpotPositionState) ClearActive() {
	delete(m.SpotPositions, m.ActiveExchange)
	m.ActiveExchange = ""
}

// TotalSpotQty sums Qty across every tracked spot exchange.
func (m MultiSpotPositionState) TotalSpotQty() float64 {
	total := 0.0
	for _, p := range m.SpotPositions {
		total += p.Qty
	}
	return total
}

// Delta is the net exposure the futures leg must hedge: total spot qty
// minus futures qty. Delta neutrality requires |Delta()| < min_base_qty
// of the hedge exchange.
func (m MultiSpotPositionState) Delta() float64 {
	return m.TotalSpotQty() - m.FuturesPosition.Qty
}

// CrossExchangeContext is the persistable state for one cross-exchange
// arbitrage-with-hedging task (spec §4.6.3): scan a pool of candidate spot
// exchanges for the cheapest entry against a single futures hedge, enter
// the best one, and (in spot_switching mode) migrate the spot leg as
// better opportunities emerge.
type CrossExchangeContext struct {
	Symbol          domain.Symbol       `json:"symbol"`
	TotalQuantity   float64             `json:"total_quantity"`
	OrderQty        float64             `json:"order_qty"`
	MaxEntryCostPct float64             `json:"max_entry_cost_pct"`

	SpotExchanges      []domain.ExchangeEnum                    `json:"spot_exchanges"`
	FuturesExchange    domain.ExchangeEnum                       `json:"futures_exchange"`
	OperationMode      OperationMode                             `json:"operation_mode"`
	MinSwitchProfitPct float64                                   `json:"min_switch_profit_pct"`
	SpotSwitchEnabled  bool                                      `json:"spot_switch_enabled"`
	Settings           map[domain.ExchangeEnum]ExchangeLegConfig `json:"settings"`

	MultiSpotPositions MultiSpotPositionState `json:"multi_spot_positions"`
	CurrentOpportunity *SpotOpportunity       `json:"current_opportunity,omitempty"`

	Cycles int     `json:"cycles"`
	Volume float64 `json:"volume"`
}

// CrossExchangeTaskType is the context_type tag this task persists under.
const CrossExchangeTaskType = "cross_exchange_arbitrage"

// ExchangeComposite bundles the trading and market-data composites for one
// exchange, as wired by whatever constructs this task from the engine's
// running composite registry.
type ExchangeComposite struct {
	Private *composite.Private
	Public  *composite.Public
}

// leg is the resolved composite handle plus per-exchange order settings.
type leg struct {
	private *composite.Private
	public  *composite.Public
	cfg     ExchangeLegConfig
}

// CrossExchange scans a pool of spot exchanges for the cheapest entry
// against a single futures hedge, enters the winner, and keeps the hedge
// leg's futures position tracking total spot delta across every exchange
// it has touched (spec §4.6.3), grounded on
// multi_spot_futures_arbitrage_task.py's opportunity scan / switch
// evaluation / active-position bookkeeping, reusing Iceberg's
// tick-offset-and-replace order shape and DeltaNeutral's
// accumulate/release position-mode cycle for the migrating spot leg.
type CrossExchange struct {
	id    string
	spots map[domain.ExchangeEnum]leg
	fut   leg
	ctx   CrossExchangeContext
	state scheduler.TaskState
}

// NewCrossExchange constructs a cross-exchange arbitrage task wired to a
// pool of candidate spot exchanges and a single futures hedge exchange.
func NewCrossExchange(id string, spotExchanges map[domain.ExchangeEnum]ExchangeComposite, futExchange ExchangeComposite, ctx CrossExchangeContext) *CrossExchange {
	spots := make(map[domain.ExchangeEnum]leg, len(spotExchanges))
	for exch, c := range spotExchanges {
		spots[exch] = leg{private: c.Private, public: c.Public, cfg: ctx.Settings[exch]}
	}
	return &CrossExchange{
		id:    id,
		spots: spots,
		fut:   leg{private: futExchange.Private, public: futExchange.Public, cfg: ctx.Settings[ctx.FuturesExchange]},
		ctx:   ctx,
		state: scheduler.StateIdle,
	}
}

func (t *CrossExchange) ID() string                { return t.id }
func (t *CrossExchange) Symbol() string            { return t.ctx.Symbol.String() }
func (t *CrossExchange) ContextType() string       { return CrossExchangeTaskType }
func (t *CrossExchange) Context() any              { return t.ctx }
func (t *CrossExchange) State() scheduler.TaskState { return t.state }

func (t *CrossExchange) Start(ctx context.Context) error {
	t.state = scheduler.StateRunning
	return nil
}

func (t *CrossExchange) Stop(ctx context.Context) error {
	t.state = scheduler.StateCancelled
	return nil
}

func (t *CrossExchange) Cleanup() error {
	pos := t.ctx.MultiSpotPositions.ActivePosition()
	if pos.LastOrder == nil {
		return nil
	}
	l, ok := t.spots[t.ctx.MultiSpotPositions.ActiveExchange]
	if !ok {
		return nil
	}
	return l.private.CancelOrder(context.Background(), t.ctx.Symbol, pos.LastOrder.OrderID)
}

// entryCostPct computes (spot_ask - fut_bid)/spot_ask*100, spec §4.6.3's
// opportunity-scan formula: lower (more negative) is cheaper to enter.
func entryCostPct(spotAsk, futBid float64) float64 {
	return (spotAsk - futBid) / spotAsk * 100
}

// ExecuteOnce reconciles the active spot leg's resting order, rescans every
// candidate spot exchange, opens or migrates the position as the scan and
// operation mode dictate, then rehedges the futures leg to the resulting
// total spot delta.
func (t *CrossExchange) ExecuteOnce(ctx context.Context) scheduler.StepResult {
	if err := t.reconcileActiveLeg(ctx); err != nil {
		return t.errorResult(err)
	}

	t.scanOpportunities()

	if !t.ctx.MultiSpotPositions.HasPositions() {
		t.openBestOpportunity()
	} else if t.ctx.OperationMode == OperationSpotSwitching && t.ctx.SpotSwitchEnabled {
		t.evaluateSwitch()
	}

	if err := t.manageActiveLeg(ctx); err != nil {
		return t.errorResult(err)
	}
	if err := t.rebalanceHedge(ctx); err != nil {
		return t.errorResult(err)
	}

	t.state = scheduler.StateRunning
	return scheduler.StepResult{ShouldContinue: true, NextDelay: stepDelay(), State: t.state}
}

// reconcileActiveLeg folds a terminal order's fill into the active
// exchange's position and clears LastOrder, mirroring Iceberg's last-order
// bookkeeping.
func (t *CrossExchange) reconcileActiveLeg(ctx context.Context) error {
	if !t.ctx.MultiSpotPositions.HasPositions() {
		return nil
	}
	pos := t.ctx.MultiSpotPositions.ActivePosition()
	if pos.LastOrder == nil {
		return nil
	}
	l, ok := t.spots[t.ctx.MultiSpotPositions.ActiveExchange]
	if !ok {
		return nil
	}

	order, err := l.private.GetOrder(ctx, t.ctx.Symbol, pos.LastOrder.OrderID)
	if err != nil {
		return fmt.Errorf("%s: fetch order: %w", t.ctx.MultiSpotPositions.ActiveExchange, err)
	}
	if !order.Status.IsTerminal() {
		return nil
	}
	if order.FilledQuantity > 0 {
		pos = pos.Update(order.Side, order.FilledQuantity, order.AveragePrice)
	}
	pos.LastOrder = nil
	t.ctx.MultiSpotPositions.SetActivePosition(pos)
	return nil
}

// scanOpportunities computes entry cost for every candidate spot exchange
// against the futures bid and keeps the cheapest as CurrentOpportunity
// (spec §4.6.3: "for each candidate spot exchange, compute entry cost
// ... pick minimum").
func (t *CrossExchange) scanOpportunities() {
	futTicker, ok := t.fut.public.BookTicker(t.ctx.Symbol)
	if !ok {
		t.ctx.CurrentOpportunity = nil
		return
	}

	remaining := t.ctx.TotalQuantity - t.ctx.MultiSpotPositions.TotalSpotQty()
	size := math.Min(t.ctx.OrderQty, remaining)

	var best *SpotOpportunity
	for _, exch := range t.ctx.SpotExchanges {
		l, ok := t.spots[exch]
		if !ok {
			continue
		}
		ticker, ok := l.public.BookTicker(t.ctx.Symbol)
		if !ok {
			continue
		}
		cand := SpotOpportunity{
			Exchange:    exch,
			EntryPrice:  ticker.AskPrice,
			CostPct:     entryCostPct(ticker.AskPrice, futTicker.BidPrice),
			MaxQuantity: size,
		}
		if best == nil || cand.CostPct < best.CostPct {
			c := cand
			best = &c
		}
	}
	t.ctx.CurrentOpportunity = best
}

// openBestOpportunity activates CurrentOpportunity's exchange once its
// entry cost clears MaxEntryCostPct. No order placement happens here;
// manageActiveLeg places the first order on the next step.
func (t *CrossExchange) openBestOpportunity() {
	opp := t.ctx.CurrentOpportunity
	if opp == nil || opp.CostPct > t.ctx.MaxEntryCostPct {
		return
	}
	t.ctx.MultiSpotPositions.ActiveExchange = opp.Exchange
	t.ctx.MultiSpotPositions.SetActivePosition(domain.Position{TargetQty: t.ctx.TotalQuantity}.SetMode(domain.ModeAccumulate))
}

// evaluateSwitch flips the active position into release mode once it is
// fully entered and a cheaper candidate's switch profit clears
// MinSwitchProfitPct (spec §4.6.3's switch-opportunity comparison). Once
// flat, the next step's openBestOpportunity re-enters at whatever scans
// cheapest, which will usually be this same target.
func (t *CrossExchange) evaluateSwitch() {
	active := t.ctx.MultiSpotPositions.ActiveExchange
	pos := t.ctx.MultiSpotPositions.ActivePosition()
	if pos.Mode != domain.ModeAccumulate {
		return
	}
	activeLeg, ok := t.spots[active]
	if !ok || !pos.IsFulfilled(t.minStepFor(activeLeg)) {
		return
	}

	opp := t.ctx.CurrentOpportunity
	if opp == nil || opp.Exchange == active {
		return
	}

	ticker, ok := activeLeg.public.BookTicker(t.ctx.Symbol)
	if !ok {
		return
	}
	exitPrice := ticker.BidPrice
	profitPct := (exitPrice - opp.EntryPrice) / exitPrice * 100
	if profitPct > t.ctx.MinSwitchProfitPct {
		pos.Mode = domain.ModeRelease
		t.ctx.MultiSpotPositions.SetActivePosition(pos)
	}
}

// manageActiveLeg works the active exchange's resting order: buying toward
// TotalQuantity in accumulate mode, or selling back to flat in release
// mode, reusing deltaneutral's accumulate/release cycle for the spot leg
// that now migrates between exchanges instead of staying fixed to one.
func (t *CrossExchange) manageActiveLeg(ctx context.Context) error {
	if !t.ctx.MultiSpotPositions.HasPositions() {
		return nil
	}
	exch := t.ctx.MultiSpotPositions.ActiveExchange
	l, ok := t.spots[exch]
	if !ok {
		return nil
	}
	pos := t.ctx.MultiSpotPositions.ActivePosition()
	minStep := t.minStepFor(l)

	side := domain.Buy
	var maxQty float64
	if pos.Mode == domain.ModeRelease {
		side = domain.Sell
		maxQty = pos.Qty
	} else {
		maxQty = pos.GetRemainingQty(minStep)
	}

	if maxQty >= minStep {
		if ticker, ok := l.public.BookTicker(t.ctx.Symbol); ok {
			if err := t.manageLegOrder(ctx, l, &pos, side, ticker, maxQty); err != nil {
				t.ctx.MultiSpotPositions.SetActivePosition(pos)
				return fmt.Errorf("%s: %w", exch, err)
			}
		}
	}
	t.ctx.MultiSpotPositions.SetActivePosition(pos)

	if pos.Mode == domain.ModeRelease && pos.Qty < minStep && pos.LastOrder == nil {
		t.ctx.Cycles++
		t.ctx.MultiSpotPositions.ClearActive()
	}
	return nil
}

// manageLegOrder places (or cancel-replaces, if drifted beyond
// tick_tolerance) one leg's resting order, sized to the lesser of
// order_qty and maxQty.
func (t *CrossExchange) manageLegOrder(ctx context.Context, l leg, pos *domain.Position, side domain.Side, ticker domain.BookTicker, maxQty float64) error {
	info, ok := l.private.SymbolsInfo()[t.ctx.Symbol]
	if !ok {
		return nil
	}

	topPrice := ticker.BidPrice
	if side == domain.Sell {
		topPrice = ticker.AskPrice
	}
	targetPrice := topPrice + side.Sign()*l.cfg.TicksOffset*info.Tick

	if pos.LastOrder != nil {
		if math.Abs(pos.LastOrder.Price-targetPrice) <= l.cfg.TickTolerance*info.Tick {
			return nil
		}
		if err := l.private.CancelOrder(ctx, t.ctx.Symbol, pos.LastOrder.OrderID); err != nil {
			return fmt.Errorf("cancel drifted order: %w", err)
		}
		pos.LastOrder = nil
	}

	size := math.Min(t.ctx.OrderQty, maxQty)
	if size < info.Step {
		return nil
	}

	var order domain.Order
	var err error
	if l.cfg.UseMarket {
		order, err = l.private.PlaceMarketOrder(ctx, t.ctx.Symbol, side, size)
	} else {
		order, err = l.private.PlaceLimitOrder(ctx, t.ctx.Symbol, side, roundToTick(targetPrice, info.Tick, side), size, domain.GTC)
	}
	if err != nil {
		return fmt.Errorf("place order: %w", err)
	}
	pos.LastOrder = &order
	return nil
}

// rebalanceHedge rehedges the futures leg to the net delta across every
// spot exchange via a single market order (spec §4.6.3: "the hedge leg's
// futures position tracks the total spot quantity across exchanges").
func (t *CrossExchange) rebalanceHedge(ctx context.Context) error {
	delta := t.ctx.MultiSpotPositions.Delta()
	if math.Abs(delta) < t.minStepFor(t.fut) {
		return nil
	}

	// Long spot is hedged by short futures.
	side := domain.Sell
	if delta < 0 {
		side = domain.Buy
	}

	order, err := t.fut.private.PlaceMarketOrder(ctx, t.ctx.Symbol, side, math.Abs(delta))
	if err != nil {
		return fmt.Errorf("%s: hedge: %w", t.ctx.FuturesExchange, err)
	}
	t.ctx.MultiSpotPositions.FuturesPosition = t.ctx.MultiSpotPositions.FuturesPosition.Update(side, order.FilledQuantity, order.AveragePrice)
	return nil
}

func (t *CrossExchange) minStepFor(l leg) float64 {
	info, ok := l.private.SymbolsInfo()[t.ctx.Symbol]
	if !ok {
		return 0
	}
	return info.Step
}

// errorResult translates a domain error into the state transitions spec §7
// mandates: InsufficientBalanceError pushes the active leg into release
// mode so the unhedged spot inventory gets liquidated on the next steps;
// OrderValidationError is unrecoverable by retrying and ends the task in
// ERROR, persisted for an operator to inspect.
func (t *CrossExchange) errorResult(err error) scheduler.StepResult {
	var insufficientBalance *domain.InsufficientBalanceError
	if errors.As(err, &insufficientBalance) {
		if t.ctx.MultiSpotPositions.HasPositions() {
			pos := t.ctx.MultiSpotPositions.ActivePosition()
			pos.Mode = domain.ModeRelease
			t.ctx.MultiSpotPositions.SetActivePosition(pos)
		}
		return scheduler.StepResult{ShouldContinue: true, NextDelay: icebergMinDelay, State: scheduler.StateRunning, Err: err}
	}

	var orderValidation *domain.OrderValidationError
	if errors.As(err, &orderValidation) {
		return scheduler.StepResult{ShouldContinue: false, State: scheduler.StateError, Err: err}
	}

	return scheduler.StepResult{ShouldContinue: true, NextDelay: icebergMinDelay, State: scheduler.StateRunning, Err: err}
}
