package order

import (
	"errors"
	"fmt"
	"math"

	"pivotbot/exchange"
	"pivotbot/model"
	"pivotbot/service"
	"pivotbot/tools/log"
)

// PositionSide distinguishes the direction of a futures position.
type PositionSide string

const (
	PositionLong  PositionSide = "long"
	PositionShort PositionSide = "short"
)

var ErrNotionalTooLarge = errors.New("notional above maintenance brackets")

// Maintenance brackets for the BTC/USDT perpetual: upper notional
// bound, maintenance margin rate, maintenance amount.
var maintenanceBrackets = []struct {
	Notional float64
	MMR      float64
	Amount   float64
}{
	{50_000, 0.004, 0},
	{250_000, 0.005, 50},
	{1_000_000, 0.01, 1_300},
	{5_000_000, 0.025, 16_300},
}

// LiquidationPrice solves the isolated-margin liquidation price for a
// position of quantity qty entered at price entry with wallet balance
// as collateral.
func LiquidationPrice(entry, qty, balance float64, side PositionSide) (float64, error) {
	if qty <= 0 || entry <= 0 {
		return 0, fmt.Errorf("invalid position: entry %f qty %f", entry, qty)
	}

	notional := entry * qty
	var mmr, amount float64
	found := false
	for _, bracket := range maintenanceBrackets {
		if notional <= bracket.Notional {
			mmr = bracket.MMR
			amount = bracket.Amount
			found = true
			break
		}
	}
	if !found {
		return 0, fmt.Errorf("%w: %f", ErrNotionalTooLarge, notional)
	}

	direction := 1.0
	if side == PositionShort {
		direction = -1.0
	}
	return (balance + amount - direction*qty*entry) / (qty * (mmr - direction)), nil
}

// LeverageForStop returns the largest leverage whose implied
// liquidation price stays on the safe side of the protective level:
// at or below it for a long, at or above it for a short. The position
// quantity is the full leveraged balance at the entry price, rounded
// to the contract step. Sizing this way makes the exchange's own
// liquidation act as the logical stop.
func LeverageForStop(entry, stopLevel, balance float64, side PositionSide) (int, float64, error) {
	best := 0
	bestQty := 0.0
	for leverage := 1; leverage <= 125; leverage++ {
		qty := exchange.Round(float64(leverage)*balance/entry, 3)
		if qty <= 0 {
			continue
		}
		liq, err := LiquidationPrice(entry, qty, balance, side)
		if err != nil {
			if errors.Is(err, ErrNotionalTooLarge) {
				break
			}
			return 0, 0, err
		}
		safe := liq <= stopLevel
		if side == PositionShort {
			safe = liq >= stopLevel
		}
		if safe {
			best = leverage
			bestQty = qty
		}
	}
	if best == 0 {
		return 0, 0, fmt.Errorf("no leverage keeps liquidation beyond %f for entry %f balance %f",
			stopLevel, entry, balance)
	}
	return best, bestQty, nil
}

// Futures manages futures orders on top of the futures adapter.
type Futures struct {
	broker service.FuturesBroker
}

func NewFutures(broker service.FuturesBroker) *Futures {
	return &Futures{broker: broker}
}

// Broker exposes the underlying adapter for read-only calls.
func (f *Futures) Broker() service.FuturesBroker {
	return f.broker
}

// Balance returns the free USDT wallet balance.
func (f *Futures) Balance() (float64, error) {
	account, err := f.broker.WalletBalance()
	if err != nil {
		return 0, err
	}
	return account.Equity("USDT"), nil
}

// Setup applies isolated margin and the given leverage to a pair.
func (f *Futures) Setup(pair string, leverage int) error {
	if err := f.broker.SetMarginType(pair, service.MarginTypeIsolated); err != nil {
		return err
	}
	return f.broker.SetLeverage(pair, leverage)
}

// EnterMarket opens a position at market.
func (f *Futures) EnterMarket(side model.SideType, pair string, quantity float64) (model.Order, error) {
	order, err := f.broker.CreateOrderMarket(side, pair, quantity, false)
	if err != nil {
		return model.Order{}, err
	}
	log.Infof("futures market %s %s: %f @ ~%f", side, pair, order.ExecutedQuantity, order.Price)
	return order, nil
}

// PlaceStop places a reduce-only stop-market exit.
func (f *Futures) PlaceStop(side model.SideType, pair string, quantity, stop float64) (model.Order, error) {
	return f.broker.CreateOrderStopMarket(side, pair, quantity, stop, true)
}

// PlaceTakeProfit places a reduce-only limit exit.
func (f *Futures) PlaceTakeProfit(side model.SideType, pair string, quantity, price float64) (model.Order, error) {
	return f.broker.CreateOrderLimit(side, pair, quantity, price, true)
}

// Flatten cancels every open order on the pair and closes the
// position.
func (f *Futures) Flatten(pair string) error {
	if err := f.broker.CancelAllOrders(pair); err != nil {
		return err
	}
	return f.broker.ClosePosition(pair)
}

// PositionAmount returns the signed contract amount held on a pair.
func (f *Futures) PositionAmount(pair string) (float64, error) {
	position, err := f.broker.Position(pair)
	if err != nil {
		return 0, err
	}
	return position.Amount, nil
}

// RoundDownBalance truncates a balance to the largest power of ten
// not exceeding it, the sizing base the hourly strategy uses.
func RoundDownBalance(balance float64) float64 {
	if balance < 1 {
		return 0
	}
	return math.Pow(10, math.Floor(math.Log10(balance)))
}
