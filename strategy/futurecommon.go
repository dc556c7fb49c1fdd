package strategy

import (
	"time"

	"pivotbot/exchange"
	"pivotbot/model"
	"pivotbot/order"
	"pivotbot/telemetry"
	"pivotbot/tools/log"
)

const (
	futureTPRatio  = 0.5
	futureStopBias = 0.0005
)

// futuresEngine holds the state shared by the futures pivot machines:
// the direction, the liquidation watch and the switch-position entry
// sequence.
type futuresEngine struct {
	orders *order.Futures
	pair   string

	status       FutureStatus
	leverage     int
	liquidatedAt int64

	stopOrderID  int64
	stopQuantity float64

	now func() time.Time
}

func newFuturesEngine(orders *order.Futures, pair string) futuresEngine {
	return futuresEngine{
		orders: orders,
		pair:   pair,
		status: FutureInit,
		now:    time.Now,
	}
}

func (e *futuresEngine) shutdown() error {
	return e.orders.Broker().CancelAllOrders(e.pair)
}

// prevCandle returns the last complete candle of the given interval.
func (e *futuresEngine) prevCandle(period string) (model.Candle, error) {
	candles, err := e.orders.Broker().CandlesByLimit(e.pair, period, 5)
	if err != nil {
		return model.Candle{}, err
	}
	if len(candles) == 0 {
		return model.Candle{}, exchange.ErrInvalidAsset
	}
	return candles[len(candles)-1], nil
}

// tickerFresh reports whether the last trade on the pair is recent
// enough to act on.
func (e *futuresEngine) tickerFresh() (bool, error) {
	info, err := e.orders.Broker().Ticker(e.pair)
	if err != nil {
		return false, err
	}
	return e.now().Sub(info.Time) <= staleTickerAge, nil
}

// checkLiquidation records the moment the exchange wiped the position:
// a non-init status with zero contracts means the stop never got to
// fire.
func (e *futuresEngine) checkLiquidation() error {
	amount, err := e.orders.PositionAmount(e.pair)
	if err != nil {
		return err
	}
	if e.status != FutureInit && amount == 0 && e.liquidatedAt == 0 {
		e.liquidatedAt = e.now().Unix()
		log.Warnf("%s: no position held, liquidated", e.pair)
	}
	return nil
}

// resetAfterLiquidation re-arms the machine once the period that saw
// the liquidation has passed.
func (e *futuresEngine) resetAfterLiquidation(periodSeconds int64) {
	if e.liquidatedAt == 0 {
		return
	}
	if e.now().Unix()/periodSeconds != e.liquidatedAt/periodSeconds {
		e.status = FutureInit
		e.liquidatedAt = 0
		log.Infof("%s: liquidation period passed, status reset to init", e.pair)
	}
}

// switchPosition flattens whatever is on the book and opens a fresh
// position: size and leverage come from the SR2 solver on the given
// budget, the protective stop and the half-size take-profit are
// priced by the callbacks against the post-entry last price.
func (e *futuresEngine) switchPosition(long bool, budget, sr2, stopBias float64,
	stopPrice func(last float64) (float64, int),
	takePrice func(last float64) float64) (int, error) {

	broker := e.orders.Broker()
	if err := e.orders.Flatten(e.pair); err != nil {
		return 0, err
	}

	last, err := broker.LastPrice(e.pair)
	if err != nil {
		return 0, err
	}

	side := order.PositionLong
	entrySide, exitSide := model.SideTypeBuy, model.SideTypeSell
	if !long {
		side = order.PositionShort
		entrySide, exitSide = model.SideTypeSell, model.SideTypeBuy
	}

	leverage, quantity, err := order.LeverageForStop(last, sr2, budget, side)
	if err != nil {
		return 0, err
	}
	if err := e.orders.Setup(e.pair, leverage); err != nil {
		return 0, err
	}
	e.leverage = leverage

	if _, err := e.orders.EnterMarket(entrySide, e.pair, quantity); err != nil {
		return 0, err
	}

	last, err = broker.LastPrice(e.pair)
	if err != nil {
		return 0, err
	}

	stop, location := stopPrice(last)
	if long {
		stop *= 1 - stopBias
	} else {
		stop *= 1 + stopBias
	}
	stopOrder, err := e.orders.PlaceStop(exitSide, e.pair, quantity, stop)
	if err != nil {
		return 0, err
	}
	e.stopOrderID = stopOrder.ExchangeID
	e.stopQuantity = quantity

	take := takePrice(last)
	if _, err := e.orders.PlaceTakeProfit(exitSide, e.pair, quantity*futureTPRatio, take); err != nil {
		return 0, err
	}
	log.Infof("%s: %s x%d qty %f stop %f take %f", e.pair, side, leverage, quantity, stop, take)
	return location, nil
}

// replaceStop cancels the live protective stop and rebids it at a new
// level with the entry-side bias applied.
func (e *futuresEngine) replaceStop(long bool, level float64) error {
	broker := e.orders.Broker()
	if e.stopOrderID != 0 {
		err := broker.CancelOrder(e.pair, e.stopOrderID)
		if err != nil && !exchange.IsKind(err, exchange.KindInvalidOrder) {
			return err
		}
	}

	exitSide := model.SideTypeSell
	stop := level * (1 - futureStopBias)
	if !long {
		exitSide = model.SideTypeBuy
		stop = level * (1 + futureStopBias)
	}
	stopOrder, err := e.orders.PlaceStop(exitSide, e.pair, e.stopQuantity, stop)
	if err != nil {
		return err
	}
	e.stopOrderID = stopOrder.ExchangeID
	log.Infof("%s: stop moved to %f", e.pair, stop)
	return nil
}

// nextResistance picks the first R-level above last, falling back to a
// fixed fraction above it when the whole ladder is exceeded or too
// close.
func nextResistance(pivot model.Pivot, last, outerRatio float64) float64 {
	price := 0.0
	switch {
	case last < pivot.R1():
		price = pivot.R1()
	case last < pivot.R2():
		price = pivot.R2()
	case last < pivot.R3():
		price = pivot.R3()
	}
	if price == 0 || price > last*(1+outerRatio) {
		price = last * (1 + outerRatio)
	}
	return price
}

// nextSupport is the short-side mirror of nextResistance.
func nextSupport(pivot model.Pivot, last, outerRatio float64) float64 {
	price := 0.0
	switch {
	case last > pivot.S1():
		price = pivot.S1()
	case last > pivot.S2():
		price = pivot.S2()
	case last > pivot.S3():
		price = pivot.S3()
	}
	if price == 0 || price < last*(1-outerRatio) {
		price = last * (1 - outerRatio)
	}
	return price
}

// recordFutures writes a balance snapshot valuing the futures wallet
// in both currencies.
func recordFutures(e *futuresEngine, recorder *telemetry.Recorder) error {
	info, err := e.orders.Broker().Ticker(e.pair)
	if err != nil {
		return err
	}
	balance, err := e.orders.Balance()
	if err != nil {
		return err
	}
	btcTotal := exchange.Round(balance/info.Last, 3)
	return recorder.Snapshot(btcTotal, balance, e.leverage)
}
