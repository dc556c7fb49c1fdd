// Package strategy contains the periodic runtime and the six pivot
// trading state machines.
package strategy

import (
	"time"

	"pivotbot/model"
)

// Task is one periodic job of a strategy. Period uses duration
// notation ("1m", "15m", "1h", "24h").
type Task struct {
	Name   string
	Period string
	Run    func() error
}

// Strategy is a set of periodic tasks plus a shutdown hook that
// cancels outstanding orders.
type Strategy interface {
	Name() string
	Tasks() []Task
	Shutdown() error
	Status() string
}

// OCORef remembers the ids of a one-cancels-other pair.
type OCORef struct {
	ListID  int64
	LimitID int64
	StopID  int64
}

func (r OCORef) Placed() bool {
	return r.ListID != 0
}

// OpenAlt is an in-flight limit buy waiting at the pivot.
type OpenAlt struct {
	OrderID   int64
	Quantity  float64
	CreatedAt time.Time
}

// TradingAlt is an open spot position with its protective orders.
type TradingAlt struct {
	Pivot model.Pivot

	TotalQuantity float64
	S1Quantity    float64
	R2Quantity    float64
	R3Quantity    float64
	R2Filled      bool
	R3Filled      bool

	StopOrderID int64
	R2Order     OCORef
	R3Order     OCORef
}

// Spot bias of the BTC macro machines.
type SpotStatus string

const (
	SpotInit SpotStatus = "init"
	SpotBuy  SpotStatus = "buy"
	SpotSell SpotStatus = "sell"
)

// Direction of the futures machines.
type FutureStatus string

const (
	FutureInit  FutureStatus = "init"
	FutureLong  FutureStatus = "long"
	FutureShort FutureStatus = "short"
)
