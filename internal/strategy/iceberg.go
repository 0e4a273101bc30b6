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

// icebergMinDelay/icebergMaxDelay bound the per-step next_delay window
// (spec §4.6.1 step 5: "0.5-1.0 s").
const (
	icebergMinDelay = 500 * time.Millisecond
	icebergMaxDelay = time.Second
)

// IcebergContext is the persistable state for one Iceberg task (spec
// §4.6.1).
type IcebergContext struct {
	Symbol        domain.Symbol       `json:"symbol"`
	Exchange      domain.ExchangeEnum `json:"exchange_enum"`
	Side          domain.Side         `json:"side"`
	TotalQuantity float64             `json:"total_quantity"`
	OrderQuantity float64             `json:"order_quantity"`
	OffsetTicks   float64             `json:"offset_ticks"`
	TickTolerance float64             `json:"tick_tolerance"`
	FilledTotal   float64             `json:"filled_total"`
	LastOrderID   domain.OrderId      `json:"last_order_id,omitempty"`
}

// IcebergTaskType is the context_type tag this task persists under.
const IcebergTaskType = "iceberg"

// Iceberg slices a large order on one exchange into many small limit
// orders held near the top of book, within a tick tolerance (spec
// §4.6.1), grounded on the teacher's reconcileOrders price/size-tolerance
// diffing shape but reduced to iceberg's single target-price comparison.
// Implements scheduler.Task.
type Iceberg struct {
	id      string
	private *composite.Private
	public  *composite.Public
	ctx     IcebergContext
	state   scheduler.TaskState
}

// NewIceberg constructs an Iceberg task.
func NewIceberg(id string, private *composite.Private, public *composite.Public, ctx IcebergContext) *Iceberg {
	return &Iceberg{id: id, private: private, public: public, ctx: ctx, state: scheduler.StateIdle}
}

func (t *Iceberg) ID() string                { return t.id }
func (t *Iceberg) Symbol() string             { return t.ctx.Symbol.String() }
func (t *Iceberg) ContextType() string        { return IcebergTaskType }
func (t *Iceberg) Context() any               { return t.ctx }
func (t *Iceberg) State() scheduler.TaskState { return t.state }

func (t *Iceberg) Start(ctx context.Context) error {
	t.state = scheduler.StateRunning
	return nil
}

func (t *Iceberg) Stop(ctx context.Context) error {
	t.state = scheduler.StateCancelled
	return nil
}

func (t *Iceberg) Cleanup() error {
	if t.ctx.LastOrderID == "" {
		return nil
	}
	return t.private.CancelOrder(context.Background(), t.ctx.Symbol, t.ctx.LastOrderID)
}

// ExecuteOnce runs one iteration of the per-tick logic (spec §4.6.1's five
// steps: load symbol info, check completion, reconcile the last order,
// compute the target price, and cancel/replace if it's drifted past
// tolerance).
func (t *Iceberg) ExecuteOnce(ctx context.Context) scheduler.StepResult {
	info, ok := t.private.SymbolsInfo()[t.ctx.Symbol]
	if !ok {
		if err := t.private.Initialize(ctx); err != nil {
			return retry(t.state, fmt.Errorf("load symbol info: %w", err))
		}
		info, ok = t.private.SymbolsInfo()[t.ctx.Symbol]
		if !ok {
			return retry(t.state, fmt.Errorf("symbol %s not found on %s", t.ctx.Symbol, t.ctx.Exchange))
		}
	}

	if t.ctx.FilledTotal >= t.ctx.TotalQuantity-info.Step {
		t.state = scheduler.StateCompleted
		return scheduler.StepResult{ShouldContinue: false, State: t.state}
	}

	if t.ctx.LastOrderID != "" {
		order, err := t.private.GetOrder(ctx, t.ctx.Symbol, t.ctx.LastOrderID)
		if err != nil {
			return retry(t.state, fmt.Errorf("fetch last order: %w", err))
		}
		if order.Status.IsTerminal() {
			t.ctx.FilledTotal += order.FilledQuantity
			t.ctx.LastOrderID = ""
		}
	}

	ticker, ok := t.public.BookTicker(t.ctx.Symbol)
	if !ok {
		return retry(t.state, fmt.Errorf("no top-of-book cached for %s", t.ctx.Symbol))
	}
	topPrice := ticker.BidPrice
	if t.ctx.Side == domain.Sell {
		topPrice = ticker.AskPrice
	}

	targetPrice := topPrice + t.ctx.Side.Sign()*t.ctx.OffsetTicks*info.Tick

	if t.ctx.LastOrderID != "" {
		existing, err := t.private.GetOrder(ctx, t.ctx.Symbol, t.ctx.LastOrderID)
		if err != nil {
			return retry(t.state, fmt.Errorf("fetch existing order: %w", err))
		}
		if math.Abs(existing.Price-targetPrice) <= t.ctx.TickTolerance*info.Tick {
			t.state = scheduler.StateRunning
			return scheduler.StepResult{ShouldContinue: true, NextDelay: stepDelay(), State: t.state}
		}
		if err := t.private.CancelOrder(ctx, t.ctx.Symbol, t.ctx.LastOrderID); err != nil {
			return retry(t.state, fmt.Errorf("cancel drifted order: %w", err))
		}
		t.ctx.LastOrderID = ""
	}

	remaining := t.ctx.TotalQuantity - t.ctx.FilledTotal
	size := math.Min(t.ctx.OrderQuantity, remaining)
	if size < info.Step {
		t.state = scheduler.StateCompleted
		return scheduler.StepResult{ShouldContinue: false, State: t.state}
	}

	placed, err := t.private.PlaceLimitOrder(ctx, t.ctx.Symbol, t.ctx.Side, roundToTick(targetPrice, info.Tick, t.ctx.Side), size, domain.GTC)
	if err != nil {
		return retry(t.state, fmt.Errorf("place slice order: %w", err))
	}
	t.ctx.LastOrderID = placed.OrderID

	t.state = scheduler.StateRunning
	return scheduler.StepResult{ShouldContinue: true, NextDelay: stepDelay(), State: t.state}
}

// retry classifies err against the domain error taxonomy (spec §7) before
// falling back to a plain backoff-and-retry. Iceberg has no hedge leg to
// liquidate, so unlike the two-legged arbitrage tasks an
// InsufficientBalanceError has nothing to exit into: it's terminal here
// too, same as OrderValidationError, since the slice can't place at its
// current size/price and an operator needs to look at it.
func retry(state scheduler.TaskState, err error) scheduler.StepResult {
	var insufficientBalance *domain.InsufficientBalanceError
	var orderValidation *domain.OrderValidationError
	if errors.As(err, &insufficientBalance) || errors.As(err, &orderValidation) {
		return scheduler.StepResult{ShouldContinue: false, State: scheduler.StateError, Err: err}
	}
	return scheduler.StepResult{ShouldContinue: true, NextDelay: icebergMinDelay, State: state, Err: err}
}

// roundToTick rounds toward the passive side of the book: down for a buy
// (never bid through the offer), up for a sell.
func roundToTick(price, tick float64, side domain.Side) float64 {
	if tick <= 0 {
		return price
	}
	n := math.Ceil(price / tick)
	if side == domain.Buy {
		n = math.Floor(price / tick)
	}
	// n*tick carries float error for decimal ticks (1001*0.1 is
	// 100.10000000000001); dividing by a whole-number reciprocal is exact.
	if inv := 1 / tick; inv == math.Trunc(inv) {
		return n / inv
	}
	return n * tick
}

func stepDelay() time.Duration {
	return icebergMinDelay + (icebergMaxDelay-icebergMinDelay)/2
}
