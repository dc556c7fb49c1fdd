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

func newFutureDailyFixture(t *testing.T, last, prevClose float64) (*FutureDaily, *fakeFuturesBroker) {
	t.Helper()

	now := time.Now().UTC()
	broker := newFakeFuturesBroker()
	broker.balance = model.Account{Balances: []model.Balance{{Asset: "USDT", Free: 100}}}
	broker.tickers["BTC/USDT"] = model.TickerInfo{Pair: "BTC/USDT", Last: last, Time: now}
	// Monthly pivot at P=38000.
	broker.candles["BTC/USDT|1M"] = []model.Candle{{High: 60_000, Low: 20_000, Close: 34_000}}
	broker.candles["BTC/USDT|1d"] = []model.Candle{{Open: 38_000, Close: prevClose}}

	futures := order.NewFutures(broker)
	strat := NewFutureDaily(futures, indicator.NewPivots(broker),
		telemetry.NewRecorder(t.TempDir(), "Binance", "BtcFutureDailyTrading", true))
	return strat, broker
}

func TestFutureDailyFirstTickPicksSideFromLast(t *testing.T) {
	strat, broker := newFutureDailyFixture(t, 39_000, 38_500)

	require.NoError(t, strat.trade())
	assert.Equal(t, FutureLong, strat.status)
	require.Len(t, broker.marketOrders, 1)
	assert.Equal(t, model.SideTypeBuy, broker.marketOrders[0].Side)

	require.Len(t, broker.stopOrders, 1)
	assert.InDelta(t, 28_560, *broker.stopOrders[0].Stop, 1e-6)
}

func TestFutureDailyFirstTickShortUnderPivot(t *testing.T) {
	strat, broker := newFutureDailyFixture(t, 37_000, 37_500)

	require.NoError(t, strat.trade())
	assert.Equal(t, FutureShort, strat.status)
	require.Len(t, broker.marketOrders, 1)
	assert.Equal(t, model.SideTypeSell, broker.marketOrders[0].Side)
}

func TestFutureDailyFlipsOnDailyClose(t *testing.T) {
	strat, broker := newFutureDailyFixture(t, 39_000, 38_500)
	require.NoError(t, strat.trade())
	require.Equal(t, FutureLong, strat.status)

	broker.candles["BTC/USDT|1d"] = []model.Candle{{Open: 38_500, Close: 37_200}}
	require.NoError(t, strat.trade())
	assert.Equal(t, FutureShort, strat.status)
	require.Len(t, broker.marketOrders, 2)
	assert.Equal(t, model.SideTypeSell, broker.marketOrders[1].Side)
}

func TestFutureDailyHoldsWithoutCloseThroughPivot(t *testing.T) {
	strat, broker := newFutureDailyFixture(t, 39_000, 38_500)
	require.NoError(t, strat.trade())
	require.Len(t, broker.marketOrders, 1)

	// Another tick in the same regime: no churn.
	require.NoError(t, strat.trade())
	assert.Len(t, broker.marketOrders, 1)
}
