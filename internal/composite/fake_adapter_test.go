package composite

import (
	"context"
	"fmt"
	"time"

	"cexarb/internal/exchange"
	"cexarb/internal/transport/ws"
	"cexarb/pkg/domain"
)

// fakeDialect is a minimal ws.Dialect that never actually dials anywhere;
// it exists so NewPublic/NewPrivate can be constructed in-process.
type fakeDialect struct{}

func (fakeDialect) BuildSubscribe(channels []string) ([]interface{}, error)   { return nil, nil }
func (fakeDialect) BuildUnsubscribe(channels []string) ([]interface{}, error) { return nil, nil }
func (fakeDialect) Parse(raw []byte) ws.ParsedMessage                        { return ws.ParsedMessage{} }
func (fakeDialect) AuthFrame() (interface{}, error)                          { return nil, nil }
func (fakeDialect) UsesNativePing() bool                                     { return true }
func (fakeDialect) AppPingMessage() []byte                                   { return nil }

type fakePublicRest struct {
	symbolsInfo domain.SymbolsInfo
	books       map[domain.Symbol]domain.OrderBook
	bookErr     map[domain.Symbol]error
}

func (f *fakePublicRest) GetSymbolsInfo(ctx context.Context) (domain.SymbolsInfo, error) {
	return f.symbolsInfo, nil
}

func (f *fakePublicRest) GetOrderBook(ctx context.Context, symbol domain.Symbol, depth int) (domain.OrderBook, error) {
	if err, ok := f.bookErr[symbol]; ok {
		return domain.OrderBook{}, err
	}
	return f.books[symbol], nil
}

func (f *fakePublicRest) GetRecentTrades(ctx context.Context, symbol domain.Symbol, limit int) ([]domain.Trade, error) {
	return nil, nil
}

func (f *fakePublicRest) GetBookTicker(ctx context.Context, symbol domain.Symbol) (domain.BookTicker, error) {
	return domain.BookTicker{Symbol: symbol}, nil
}

func (f *fakePublicRest) GetKlinesBatch(ctx context.Context, symbol domain.Symbol, interval domain.KlineInterval, start, end time.Time) ([]domain.Kline, error) {
	return nil, nil
}

type fakePrivateRest struct {
	placeFn        func(ctx context.Context, symbol domain.Symbol, side domain.Side, ot domain.OrderType, price, qty float64, tif domain.TimeInForce) (domain.Order, error)
	orders         map[domain.OrderId]domain.Order
	cancelled      []domain.OrderId
	modifySupport  bool
	balances       []domain.AssetBalance
}

func (f *fakePrivateRest) GetBalances(ctx context.Context) ([]domain.AssetBalance, error) {
	return f.balances, nil
}

func (f *fakePrivateRest) GetAssetBalance(ctx context.Context, asset domain.AssetName) (domain.AssetBalance, error) {
	for _, b := range f.balances {
		if b.Asset == asset {
			return b, nil
		}
	}
	return domain.AssetBalance{}, fmt.Errorf("asset %s not found", asset)
}

func (f *fakePrivateRest) GetOpenOrders(ctx context.Context, symbol domain.Symbol) ([]domain.Order, error) {
	return nil, nil
}

func (f *fakePrivateRest) GetOrder(ctx context.Context, symbol domain.Symbol, orderID domain.OrderId) (domain.Order, error) {
	o, ok := f.orders[orderID]
	if !ok {
		return domain.Order{}, fmt.Errorf("order %s not found", orderID)
	}
	return o, nil
}

func (f *fakePrivateRest) PlaceOrder(ctx context.Context, symbol domain.Symbol, side domain.Side, orderType domain.OrderType, price, qty float64, tif domain.TimeInForce) (domain.Order, error) {
	if f.placeFn != nil {
		return f.placeFn(ctx, symbol, side, orderType, price, qty, tif)
	}
	o := domain.Order{OrderID: domain.OrderId(fmt.Sprintf("o-%d", len(f.orders)+1)), Symbol: symbol, Side: side, OrderType: orderType, Price: price, Quantity: qty, Status: domain.StatusNew}
	if f.orders == nil {
		f.orders = map[domain.OrderId]domain.Order{}
	}
	f.orders[o.OrderID] = o
	return o, nil
}

func (f *fakePrivateRest) CancelOrder(ctx context.Context, symbol domain.Symbol, orderID domain.OrderId) error {
	f.cancelled = append(f.cancelled, orderID)
	delete(f.orders, orderID)
	return nil
}

func (f *fakePrivateRest) CancelAllOrders(ctx context.Context, symbol domain.Symbol) error { return nil }

func (f *fakePrivateRest) ModifyOrder(ctx context.Context, symbol domain.Symbol, orderID domain.OrderId, price, qty float64) (domain.Order, error) {
	o := f.orders[orderID]
	o.Price = price
	o.Quantity = qty
	f.orders[orderID] = o
	return o, nil
}

func (f *fakePrivateRest) ModifySupported() bool { return f.modifySupport }

func (f *fakePrivateRest) GetPositions(ctx context.Context) ([]domain.Position, error) { return nil, nil }

type fakeValidator struct{ err error }

func (v *fakeValidator) ValidateOrder(info domain.SymbolInfo, side domain.Side, price, qty float64) error {
	return v.err
}

type fakeAdapter struct {
	tag        domain.ExchangeEnum
	pubRest    *fakePublicRest
	privRest   *fakePrivateRest
	privRestErr error
	validator  *fakeValidator
	privDialectErr error
}

func (a *fakeAdapter) Tag() domain.ExchangeEnum             { return a.tag }
func (a *fakeAdapter) NewPublicRest() exchange.PublicRest   { return a.pubRest }
func (a *fakeAdapter) NewPrivateRest() (exchange.PrivateRest, error) {
	if a.privRestErr != nil {
		return nil, a.privRestErr
	}
	return a.privRest, nil
}
func (a *fakeAdapter) NewPublicWSDialect() ws.Dialect { return fakeDialect{} }
func (a *fakeAdapter) NewPrivateWSDialect() (ws.Dialect, error) {
	if a.privDialectErr != nil {
		return nil, a.privDialectErr
	}
	return fakeDialect{}, nil
}
func (a *fakeAdapter) Validator() exchange.Validator { return a.validator }
func (a *fakeAdapter) SymbolToWire(s domain.Symbol) string { return s.String() }
func (a *fakeAdapter) WireToSymbol(s string) (domain.Symbol, error) { return domain.Symbol{}, nil }
func (a *fakeAdapter) PublicChannels(s domain.Symbol) []string { return []string{"book." + s.String()} }
func (a *fakeAdapter) PrivateChannels() []string { return []string{"orders"} }
