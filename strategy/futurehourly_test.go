package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pivotbot/indicator"
	"pivotbot/model"
	"pivotbot/order"
	"pivotbot/telemetry"
)

func hourlyPivot() model.Pivot {
	// H=110, L=90, C=100: P=100, R1=104.72, R2=112.36, R3=120,
	// S1=95.28, S2=87.64, S3=80.
	return indicator.Calc(110, 90, 100)
}

func newFutureHourlyFixture(t *testing.T) (*FutureHourly, *fakeFuturesBroker) {
	t.Helper()

	broker := newFakeFuturesBroker()
	broker.balance = model.Account{Balances: []model.Balance{{Asset: "USDT", Free: 120}}}

	futures := order.NewFutures(broker)
	strat := NewFutureHourly(futures, indicator.NewPivots(broker),
		telemetry.NewRecorder(t.TempDir(), "Binance", "BtcFutureHourlyTrading", true))
	return strat, broker
}

func TestFutureHourlyStopLadderClimbsLong(t *testing.T) {
	strat, broker := newFutureHourlyFixture(t)
	pivot := hourlyPivot()

	strat.status = FutureLong
	strat.stopLocation = 0
	strat.stopOrderID = 42
	strat.stopQuantity = 0.5

	// Close under R1: nothing moves.
	require.NoError(t, strat.manageStop(pivot, 104))
	assert.Equal(t, 0, strat.stopLocation)
	assert.Empty(t, broker.stopOrders)

	// Close past R1: stop climbs to P with the short bias off it.
	require.NoError(t, strat.manageStop(pivot, 105))
	assert.Equal(t, 1, strat.stopLocation)
	assert.Equal(t, []int64{42}, broker.cancelled)
	require.Len(t, broker.stopOrders, 1)
	assert.InDelta(t, pivot.P*(1-futureStopBias), *broker.stopOrders[0].Stop, 1e-9)
	assert.InDelta(t, 0.5, broker.stopOrders[0].Quantity, 1e-9)

	// Past R2: stop to R1. Past R3: stop to R2 and the ladder ends.
	require.NoError(t, strat.manageStop(pivot, 113))
	assert.Equal(t, 2, strat.stopLocation)
	require.NoError(t, strat.manageStop(pivot, 121))
	assert.Equal(t, -1, strat.stopLocation)
	require.Len(t, broker.stopOrders, 3)
	assert.InDelta(t, pivot.R2()*(1-futureStopBias), *broker.stopOrders[2].Stop, 1e-9)

	// Exhausted: no further moves.
	require.NoError(t, strat.manageStop(pivot, 999))
	assert.Len(t, broker.stopOrders, 3)
}

func TestFutureHourlyStopLadderDescendsShort(t *testing.T) {
	strat, broker := newFutureHourlyFixture(t)
	pivot := hourlyPivot()

	strat.status = FutureShort
	strat.stopLocation = 0
	strat.stopQuantity = 0.5

	// Close above S1: holds.
	require.NoError(t, strat.manageStop(pivot, 96))
	assert.Empty(t, broker.stopOrders)

	// Close through S1: stop falls to P with the long bias off it.
	require.NoError(t, strat.manageStop(pivot, 95))
	assert.Equal(t, 1, strat.stopLocation)
	require.Len(t, broker.stopOrders, 1)
	assert.Equal(t, model.SideTypeBuy, broker.stopOrders[0].Side)
	assert.InDelta(t, pivot.P*(1+futureStopBias), *broker.stopOrders[0].Stop, 1e-9)

	// Through S2: stop to S1.
	require.NoError(t, strat.manageStop(pivot, 87))
	assert.Equal(t, 2, strat.stopLocation)
	assert.InDelta(t, pivot.S1()*(1+futureStopBias), *broker.stopOrders[1].Stop, 1e-9)
}

func TestFutureHourlyStopLadderIdleWhenFlat(t *testing.T) {
	strat, broker := newFutureHourlyFixture(t)

	strat.status = FutureInit
	require.NoError(t, strat.manageStop(hourlyPivot(), 999))
	assert.Empty(t, broker.stopOrders)
}

func TestFutureHourlyEntrySizesOnRoundDownBalance(t *testing.T) {
	strat, broker := newFutureHourlyFixture(t)
	now := time.Now().UTC()
	broker.tickers["BTC/USDT"] = model.TickerInfo{Pair: "BTC/USDT", Last: 101, Time: now}

	// Balance 120 rounds down to 100, budget 50. Entry under R1 puts
	// the sizing stop at S2 and the protective stop at S1.
	require.NoError(t, strat.enter(true, hourlyPivot()))

	require.Len(t, broker.marketOrders, 1)
	entry := broker.marketOrders[0]
	assert.Equal(t, model.SideTypeBuy, entry.Side)

	require.Len(t, broker.stopOrders, 1)
	assert.InDelta(t, hourlyPivot().S1()*(1-futureStopBias), *broker.stopOrders[0].Stop, 1e-9)
	assert.Equal(t, 0, strat.stopLocation)

	require.Len(t, broker.limitOrders, 1)
	assert.InDelta(t, hourlyPivot().R1(), broker.limitOrders[0].Price, 1e-9)
	assert.InDelta(t, entry.Quantity*0.5, broker.limitOrders[0].Quantity, 1e-9)
}

func TestFutureHourlyResetStopState(t *testing.T) {
	strat, _ := newFutureHourlyFixture(t)
	strat.stopLocation = 2
	strat.stopOrderID = 7
	strat.stopQuantity = 0.25

	strat.resetStopState()
	assert.Zero(t, strat.stopLocation)
	assert.Zero(t, strat.stopOrderID)
	assert.Zero(t, strat.stopQuantity)
}
