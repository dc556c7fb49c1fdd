package model

import (
	"fmt"
	"time"
)

type SideType string
type OrderType string
type OrderStatusType string

var (
	SideTypeBuy  SideType = "BUY"
	SideTypeSell SideType = "SELL"
)

var (
	OrderTypeLimit           OrderType = "LIMIT"
	OrderTypeMarket          OrderType = "MARKET"
	OrderTypeLimitMaker      OrderType = "LIMIT_MAKER"
	OrderTypeStopLoss        OrderType = "STOP_LOSS"
	OrderTypeStopLossLimit   OrderType = "STOP_LOSS_LIMIT"
	OrderTypeStop            OrderType = "STOP"
	OrderTypeStopMarket      OrderType = "STOP_MARKET"
	OrderTypeTakeProfit      OrderType = "TAKE_PROFIT"
	OrderTypeTakeProfitLimit OrderType = "TAKE_PROFIT_LIMIT"
)

var (
	OrderStatusTypeNew             OrderStatusType = "NEW"
	OrderStatusTypePartiallyFilled OrderStatusType = "PARTIALLY_FILLED"
	OrderStatusTypeFilled          OrderStatusType = "FILLED"
	OrderStatusTypeCanceled        OrderStatusType = "CANCELED"
	OrderStatusTypePendingCancel   OrderStatusType = "PENDING_CANCEL"
	OrderStatusTypeRejected        OrderStatusType = "REJECTED"
	OrderStatusTypeExpired         OrderStatusType = "EXPIRED"
)

// Done reports whether the order can no longer fill.
func (s OrderStatusType) Done() bool {
	return s == OrderStatusTypeFilled || s == OrderStatusTypeCanceled ||
		s == OrderStatusTypeRejected || s == OrderStatusTypeExpired
}

// Order is a spot or futures order as observed on the exchange.
type Order struct {
	ExchangeID int64
	Pair       string
	Side       SideType
	Type       OrderType
	Status     OrderStatusType
	Price      float64
	Quantity   float64

	ExecutedQuantity float64

	CreatedAt time.Time
	UpdatedAt time.Time

	// OCO orders carry the stop trigger and the shared list id.
	Stop    *float64
	GroupID *int64

	ReduceOnly bool
}

func (o Order) String() string {
	return fmt.Sprintf("[%s] %s %s | ID: %d, Type: %s, %f x $%f (~$%.f)",
		o.Status, o.Side, o.Pair, o.ExchangeID, o.Type, o.Quantity, o.Price, o.Quantity*o.Price)
}

// OCOOrder is the pair of children created by a one-cancels-other call.
type OCOOrder struct {
	ListID int64
	Pair   string
	Limit  Order
	Stop   Order
}
