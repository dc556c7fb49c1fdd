package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pivotbot/indicator"
	"pivotbot/model"
	"pivotbot/order"
	"pivotbot/service"
	"pivotbot/telemetry"
)

// newFutureWeeklyFixture pivots the week at P=38000: S1=28560,
// S2=13280, R1=47440, R2=62720.
func newFutureWeeklyFixture(t *testing.T, last, prevOpen, prevClose float64) (*FutureWeekly, *fakeFuturesBroker) {
	t.Helper()

	now := time.Now().UTC()
	broker := newFakeFuturesBroker()
	broker.balance = model.Account{Balances: []model.Balance{{Asset: "USDT", Free: 100}}}
	broker.tickers["BTC/USDT"] = model.TickerInfo{Pair: "BTC/USDT", Last: last, Time: now}
	broker.candles["BTC/USDT|1w"] = []model.Candle{{High: 60_000, Low: 20_000, Close: 34_000}}
	broker.candles["BTC/USDT|4h"] = []model.Candle{{Open: prevOpen, Close: prevClose}}

	futures := order.NewFutures(broker)
	strat := NewFutureWeekly(futures, indicator.NewPivots(broker),
		telemetry.NewRecorder(t.TempDir(), "Binance", "BtcFutureWeeklyHourTrading", true))
	return strat, broker
}

func TestFutureWeeklyOpensLongOnUpwardCross(t *testing.T) {
	strat, broker := newFutureWeeklyFixture(t, 38_500, 37_900, 38_200)

	require.NoError(t, strat.trade())
	assert.Equal(t, FutureLong, strat.status)

	// The entry flattens first, then sizes off the S2 solver.
	assert.Equal(t, 1, broker.cancelledAll)
	assert.Equal(t, 1, broker.closed)
	assert.Equal(t, service.MarginTypeIsolated, broker.marginType)
	assert.GreaterOrEqual(t, broker.leverage, 1)

	require.Len(t, broker.marketOrders, 1)
	entry := broker.marketOrders[0]
	assert.Equal(t, model.SideTypeBuy, entry.Side)
	assert.False(t, entry.ReduceOnly)

	// Protective stop at weekly S1, no bias on this machine.
	require.Len(t, broker.stopOrders, 1)
	stop := broker.stopOrders[0]
	assert.Equal(t, model.SideTypeSell, stop.Side)
	assert.True(t, stop.ReduceOnly)
	assert.InDelta(t, 28_560, *stop.Stop, 1e-6)
	assert.InDelta(t, entry.Quantity, stop.Quantity, 1e-9)

	// Half the position takes profit at the next level, capped at 14%
	// above the entry print.
	require.Len(t, broker.limitOrders, 1)
	take := broker.limitOrders[0]
	assert.Equal(t, model.SideTypeSell, take.Side)
	assert.True(t, take.ReduceOnly)
	assert.InDelta(t, entry.Quantity*0.5, take.Quantity, 1e-9)
	assert.InDelta(t, 38_500*1.14, take.Price, 1e-6)
}

func TestFutureWeeklyOpensShortOnDownwardCross(t *testing.T) {
	strat, broker := newFutureWeeklyFixture(t, 37_500, 38_100, 37_800)

	require.NoError(t, strat.trade())
	assert.Equal(t, FutureShort, strat.status)

	require.Len(t, broker.marketOrders, 1)
	assert.Equal(t, model.SideTypeSell, broker.marketOrders[0].Side)

	require.Len(t, broker.stopOrders, 1)
	assert.Equal(t, model.SideTypeBuy, broker.stopOrders[0].Side)
	assert.InDelta(t, 47_440, *broker.stopOrders[0].Stop, 1e-6)
}

func TestFutureWeeklyStaysFlatWithoutCross(t *testing.T) {
	// The previous candle opened and closed above P: no signal.
	strat, broker := newFutureWeeklyFixture(t, 39_000, 38_100, 38_600)

	require.NoError(t, strat.trade())
	assert.Equal(t, FutureInit, strat.status)
	assert.Empty(t, broker.marketOrders)
}

func TestFutureWeeklyFlipsOnCloseThroughPivot(t *testing.T) {
	strat, broker := newFutureWeeklyFixture(t, 38_500, 37_900, 38_200)
	require.NoError(t, strat.trade())
	require.Equal(t, FutureLong, strat.status)

	// The next 4h close under P flips the book short.
	broker.candles["BTC/USDT|4h"] = []model.Candle{{Open: 38_200, Close: 37_600}}
	broker.tickers["BTC/USDT"] = model.TickerInfo{Pair: "BTC/USDT", Last: 37_600, Time: time.Now().UTC()}

	require.NoError(t, strat.trade())
	assert.Equal(t, FutureShort, strat.status)
	assert.Equal(t, 2, broker.cancelledAll)
	require.Len(t, broker.marketOrders, 2)
	assert.Equal(t, model.SideTypeSell, broker.marketOrders[1].Side)
}

func TestFutureWeeklyLiquidationReset(t *testing.T) {
	strat, _ := newFutureWeeklyFixture(t, 38_500, 37_900, 38_200)
	engine := &strat.futuresEngine

	base := time.Date(2026, time.August, 24, 10, 0, 0, 0, time.UTC)
	engine.status = FutureLong
	engine.now = fixedClock(base)

	// No contracts held while the machine thinks it is long.
	require.NoError(t, engine.checkLiquidation())
	assert.NotZero(t, engine.liquidatedAt)

	// Same 4h bucket: still parked.
	engine.resetAfterLiquidation(weeklyCandleSecs)
	assert.Equal(t, FutureLong, engine.status)

	engine.now = fixedClock(base.Add(5 * time.Hour))
	engine.resetAfterLiquidation(weeklyCandleSecs)
	assert.Equal(t, FutureInit, engine.status)
	assert.Zero(t, engine.liquidatedAt)
}
