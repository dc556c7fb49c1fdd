package strategy

import (
	"time"

	"pivotbot/model"
	"pivotbot/service"
)

// fakeExchange is a canned spot adapter shared by the strategy tests.
// Candles are keyed by "<pair>|<period>".
type fakeExchange struct {
	account model.Account
	infos   map[string]model.AssetInfo
	tickers map[string]model.TickerInfo
	byQuote map[string][]model.TickerInfo
	candles map[string][]model.Candle
	asks    map[string][]model.BookLevel
	orders  map[int64]model.Order

	marketOrders []model.Order
	limitOrders  []model.Order
	stopOrders   []model.Order
	ocoOrders    []model.OCOOrder
	cancelled    []int64
	cancelLists  []int64

	nextID int64
}

var _ service.Exchange = (*fakeExchange)(nil)

func newFakeExchange() *fakeExchange {
	return &fakeExchange{
		infos:   make(map[string]model.AssetInfo),
		tickers: make(map[string]model.TickerInfo),
		byQuote: make(map[string][]model.TickerInfo),
		candles: make(map[string][]model.Candle),
		asks:    make(map[string][]model.BookLevel),
		orders:  make(map[int64]model.Order),
	}
}

func (f *fakeExchange) Account() (model.Account, error) { return f.account, nil }

func (f *fakeExchange) OpenOrders(pair string) ([]model.Order, error) { return nil, nil }

func (f *fakeExchange) Order(pair string, id int64) (model.Order, error) {
	if o, ok := f.orders[id]; ok {
		return o, nil
	}
	return model.Order{ExchangeID: id, Pair: pair, Status: model.OrderStatusTypeNew}, nil
}

func (f *fakeExchange) CreateOrderLimit(side model.SideType, pair string, quantity, limit float64) (model.Order, error) {
	f.nextID++
	o := model.Order{ExchangeID: f.nextID, Pair: pair, Side: side, Quantity: quantity, Price: limit}
	f.limitOrders = append(f.limitOrders, o)
	return o, nil
}

func (f *fakeExchange) CreateOrderMarket(side model.SideType, pair string, quantity float64) (model.Order, error) {
	f.nextID++
	o := model.Order{
		ExchangeID: f.nextID, Pair: pair, Side: side,
		Quantity: quantity, ExecutedQuantity: quantity, Price: f.tickers[pair].Last,
	}
	f.marketOrders = append(f.marketOrders, o)
	return o, nil
}

func (f *fakeExchange) CreateOrderMarketQuote(side model.SideType, pair string, quantity float64) (model.Order, error) {
	return f.CreateOrderMarket(side, pair, quantity)
}

func (f *fakeExchange) CreateOrderStopLimit(side model.SideType, pair string, quantity, limit, stop float64) (model.Order, error) {
	f.nextID++
	o := model.Order{ExchangeID: f.nextID, Pair: pair, Side: side, Quantity: quantity, Price: limit, Stop: &stop}
	f.stopOrders = append(f.stopOrders, o)
	return o, nil
}

func (f *fakeExchange) CreateOrderOCO(side model.SideType, pair string, quantity, price, stop, stopLimit float64) (model.OCOOrder, error) {
	f.nextID += 3
	oco := model.OCOOrder{
		ListID: f.nextID,
		Pair:   pair,
		Limit:  model.Order{ExchangeID: f.nextID - 2, Pair: pair, Side: side, Quantity: quantity, Price: price},
		Stop:   model.Order{ExchangeID: f.nextID - 1, Pair: pair, Side: side, Quantity: quantity, Price: stopLimit, Stop: &stop},
	}
	f.ocoOrders = append(f.ocoOrders, oco)
	return oco, nil
}

func (f *fakeExchange) Cancel(order model.Order) error {
	f.cancelled = append(f.cancelled, order.ExchangeID)
	return nil
}

func (f *fakeExchange) CancelList(pair string, listID int64) error {
	f.cancelLists = append(f.cancelLists, listID)
	return nil
}

func (f *fakeExchange) AssetsInfo(pair string) model.AssetInfo {
	if info, ok := f.infos[pair]; ok {
		return info
	}
	return model.AssetInfo{StepSize: 0.01}
}

func (f *fakeExchange) LastQuote(pair string) (float64, error) {
	return f.tickers[pair].Last, nil
}

func (f *fakeExchange) Ticker(pair string) (model.TickerInfo, error) {
	return f.tickers[pair], nil
}

func (f *fakeExchange) TickersByQuote(quote string) ([]model.TickerInfo, error) {
	return f.byQuote[quote], nil
}

func (f *fakeExchange) CandlesByLimit(pair, period string, limit int) ([]model.Candle, error) {
	return f.candles[pair+"|"+period], nil
}

func (f *fakeExchange) Depth(pair string, limit int) ([]model.BookLevel, []model.BookLevel, error) {
	return nil, f.asks[pair], nil
}

// fakeFuturesBroker is a canned USD-M adapter for the futures strategy
// tests.
type fakeFuturesBroker struct {
	balance  model.Account
	tickers  map[string]model.TickerInfo
	candles  map[string][]model.Candle
	position model.Position

	leverage     int
	marginType   service.MarginType
	marketOrders []model.Order
	limitOrders  []model.Order
	stopOrders   []model.Order
	cancelled    []int64
	cancelledAll int
	closed       int

	nextID int64
}

var _ service.FuturesBroker = (*fakeFuturesBroker)(nil)

func newFakeFuturesBroker() *fakeFuturesBroker {
	return &fakeFuturesBroker{
		tickers: make(map[string]model.TickerInfo),
		candles: make(map[string][]model.Candle),
	}
}

func (f *fakeFuturesBroker) WalletBalance() (model.Account, error) { return f.balance, nil }

func (f *fakeFuturesBroker) LastPrice(pair string) (float64, error) {
	return f.tickers[pair].Last, nil
}

func (f *fakeFuturesBroker) Ticker(pair string) (model.TickerInfo, error) {
	return f.tickers[pair], nil
}

func (f *fakeFuturesBroker) CandlesByLimit(pair, period string, limit int) ([]model.Candle, error) {
	return f.candles[pair+"|"+period], nil
}

func (f *fakeFuturesBroker) Position(pair string) (model.Position, error) {
	return f.position, nil
}

func (f *fakeFuturesBroker) SetLeverage(pair string, leverage int) error {
	f.leverage = leverage
	return nil
}

func (f *fakeFuturesBroker) SetMarginType(pair string, margin service.MarginType) error {
	f.marginType = margin
	return nil
}

func (f *fakeFuturesBroker) CreateOrderMarket(side model.SideType, pair string, quantity float64, reduceOnly bool) (model.Order, error) {
	f.nextID++
	o := model.Order{
		ExchangeID: f.nextID, Pair: pair, Side: side,
		Quantity: quantity, ExecutedQuantity: quantity,
		Price: f.tickers[pair].Last, ReduceOnly: reduceOnly,
	}
	f.marketOrders = append(f.marketOrders, o)
	f.position = model.Position{Pair: pair, Amount: quantity, EntryPrice: o.Price}
	if side == model.SideTypeSell {
		f.position.Amount = -quantity
	}
	return o, nil
}

func (f *fakeFuturesBroker) CreateOrderLimit(side model.SideType, pair string, quantity, limit float64, reduceOnly bool) (model.Order, error) {
	f.nextID++
	o := model.Order{ExchangeID: f.nextID, Pair: pair, Side: side, Quantity: quantity, Price: limit, ReduceOnly: reduceOnly}
	f.limitOrders = append(f.limitOrders, o)
	return o, nil
}

func (f *fakeFuturesBroker) CreateOrderStopMarket(side model.SideType, pair string, quantity, stop float64, reduceOnly bool) (model.Order, error) {
	f.nextID++
	o := model.Order{ExchangeID: f.nextID, Pair: pair, Side: side, Quantity: quantity, Stop: &stop, ReduceOnly: reduceOnly}
	f.stopOrders = append(f.stopOrders, o)
	return o, nil
}

func (f *fakeFuturesBroker) OpenOrders(pair string) ([]model.Order, error) { return nil, nil }

func (f *fakeFuturesBroker) CancelOrder(pair string, id int64) error {
	f.cancelled = append(f.cancelled, id)
	return nil
}

func (f *fakeFuturesBroker) CancelAllOrders(pair string) error {
	f.cancelledAll++
	return nil
}

func (f *fakeFuturesBroker) ClosePosition(pair string) error {
	f.closed++
	f.position = model.Position{Pair: pair}
	return nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
