package service

import (
	"pivotbot/model"
)

// MarginType is the futures collateral mode for a pair.
type MarginType string

var (
	MarginTypeIsolated MarginType = "ISOLATED"
	MarginTypeCrossed  MarginType = "CROSSED"
)

// Feeder supplies market data.
type Feeder interface {
	AssetsInfo(pair string) model.AssetInfo
	LastQuote(pair string) (float64, error)
	Ticker(pair string) (model.TickerInfo, error)
	TickersByQuote(quote string) ([]model.TickerInfo, error)
	CandlesByLimit(pair, period string, limit int) ([]model.Candle, error)
	Depth(pair string, limit int) (bids, asks []model.BookLevel, err error)
}

// Broker executes and manages spot orders.
type Broker interface {
	Account() (model.Account, error)
	OpenOrders(pair string) ([]model.Order, error)
	Order(pair string, id int64) (model.Order, error)
	CreateOrderLimit(side model.SideType, pair string, quantity, limit float64) (model.Order, error)
	CreateOrderMarket(side model.SideType, pair string, quantity float64) (model.Order, error)
	CreateOrderMarketQuote(side model.SideType, pair string, quantity float64) (model.Order, error)
	CreateOrderStopLimit(side model.SideType, pair string, quantity, limit, stop float64) (model.Order, error)
	CreateOrderOCO(side model.SideType, pair string, quantity, price, stop, stopLimit float64) (model.OCOOrder, error)
	Cancel(order model.Order) error
	CancelList(pair string, listID int64) error
}

// Exchange is the full spot surface.
type Exchange interface {
	Broker
	Feeder
}

// FuturesBroker executes and manages USD-M futures orders.
type FuturesBroker interface {
	WalletBalance() (model.Account, error)
	LastPrice(pair string) (float64, error)
	Ticker(pair string) (model.TickerInfo, error)
	CandlesByLimit(pair, period string, limit int) ([]model.Candle, error)
	Position(pair string) (model.Position, error)
	SetLeverage(pair string, leverage int) error
	SetMarginType(pair string, margin MarginType) error
	CreateOrderMarket(side model.SideType, pair string, quantity float64, reduceOnly bool) (model.Order, error)
	CreateOrderLimit(side model.SideType, pair string, quantity, limit float64, reduceOnly bool) (model.Order, error)
	CreateOrderStopMarket(side model.SideType, pair string, quantity, stop float64, reduceOnly bool) (model.Order, error)
	OpenOrders(pair string) ([]model.Order, error)
	CancelOrder(pair string, id int64) error
	CancelAllOrders(pair string) error
	ClosePosition(pair string) error
}

// Notifier pushes human-readable events to a side channel.
type Notifier interface {
	Notify(text string)
	OnOrder(order model.Order)
	OnError(err error)
}

// Telegram is a notifier with an interactive command loop.
type Telegram interface {
	Notifier
	Start()
}
