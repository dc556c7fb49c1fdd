package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pivotbot/control"
	"pivotbot/indicator"
	"pivotbot/model"
	"pivotbot/order"
	"pivotbot/telemetry"
)

// newAltDailyFixture sets up one candidate alt, AAA/USDT, whose
// monthly pivot is exactly 10: R1=10.944, R2=12.472, R3=14, S1=9.056.
func newAltDailyFixture(t *testing.T, last, prevClose, penultimateClose float64) (*AltDaily, *fakeExchange) {
	t.Helper()

	now := time.Now().UTC()
	fake := newFakeExchange()
	fake.account = model.Account{Balances: []model.Balance{
		{Asset: "USDT", Free: 1_000},
		{Asset: "AAA", Free: 16.66},
	}}
	fake.tickers["BTC/USDT"] = model.TickerInfo{Pair: "BTC/USDT", Last: 50_000, Time: now}
	fake.tickers["AAA/USDT"] = model.TickerInfo{
		Pair: "AAA/USDT", Last: last, QuoteVolume: 2_000_000, Time: now,
	}
	fake.byQuote["USDT"] = []model.TickerInfo{fake.tickers["AAA/USDT"]}
	fake.candles["AAA/USDT|1M"] = []model.Candle{{High: 12, Low: 8, Close: 10}}
	fake.candles["AAA/USDT|1d"] = []model.Candle{
		{Close: 9.5}, {Close: penultimateClose}, {Close: prevClose},
	}
	fake.asks["AAA/USDT"] = []model.BookLevel{{Price: 10, Quantity: 1_000}}

	spot := order.NewSpot(fake)
	strat := NewAltDaily(spot, indicator.NewPivots(fake), control.DefaultCoinList(),
		telemetry.NewRecorder(t.TempDir(), "Binance", "AltDailyTrading", false), "")
	strat.sleep = func(time.Duration) {}
	strat.prevDay = now.Day()
	return strat, fake
}

func TestAltDailyEntersOnPivotCross(t *testing.T) {
	strat, fake := newAltDailyFixture(t, 10.05, 10.05, 9.9)

	require.NoError(t, strat.trade())

	// The account sizes to int(1000/150) = 6 slots and buys one slice.
	assert.Equal(t, 6, strat.maxTradeLimit)
	require.Len(t, fake.marketOrders, 1)
	buy := fake.marketOrders[0]
	assert.Equal(t, model.SideTypeBuy, buy.Side)
	assert.Equal(t, "AAA/USDT", buy.Pair)
	assert.Contains(t, strat.alts, "AAA/USDT")

	// Protective ladder: R3 OCO on 30%, R2 OCO on 20%, a plain
	// stop-limit for the rest, all triggered at monthly S1.
	require.Len(t, fake.ocoOrders, 2)
	r3 := fake.ocoOrders[0]
	assert.InDelta(t, 14, r3.Limit.Price, 1e-9)
	assert.InDelta(t, 16.66*0.3, r3.Limit.Quantity, 0.01)
	assert.InDelta(t, 9.056, *r3.Stop.Stop, 1e-9)
	assert.InDelta(t, 9.056*0.9, r3.Stop.Price, 1e-9)

	r2 := fake.ocoOrders[1]
	assert.InDelta(t, 12.472, r2.Limit.Price, 1e-9)
	assert.InDelta(t, 16.66*0.2, r2.Limit.Quantity, 0.01)

	require.Len(t, fake.stopOrders, 1)
	stop := fake.stopOrders[0]
	assert.InDelta(t, 9.056, *stop.Stop, 1e-9)
	assert.InDelta(t, 9.056*0.9, stop.Price, 1e-9)
	assert.InDelta(t, 16.66-16.66*0.3-16.66*0.2, stop.Quantity, 0.01)
}

func TestAltDailySkipsWithoutFreshCross(t *testing.T) {
	// Penultimate close already above P: the move is old news.
	strat, fake := newAltDailyFixture(t, 10.5, 10.4, 10.2)

	require.NoError(t, strat.trade())
	assert.Empty(t, fake.marketOrders)
	assert.Empty(t, strat.alts)
}

func TestAltDailyExitsUnderS1(t *testing.T) {
	strat, fake := newAltDailyFixture(t, 9.0, 10.05, 9.9)
	strat.alts["AAA/USDT"] = &TradingAlt{
		TotalQuantity: 16.66,
		StopOrderID:   500,
		R3Order:       OCORef{ListID: 510, LimitID: 511, StopID: 512},
		R2Order:       OCORef{ListID: 520, LimitID: 521, StopID: 522},
	}

	require.NoError(t, strat.trade())

	assert.NotContains(t, strat.alts, "AAA/USDT")
	assert.Contains(t, fake.cancelled, int64(500))
	assert.ElementsMatch(t, []int64{510, 520}, fake.cancelLists)
	require.Len(t, fake.marketOrders, 1)
	assert.Equal(t, model.SideTypeSell, fake.marketOrders[0].Side)
}

func TestAltDailyExitsOnNewDayUnderPivot(t *testing.T) {
	strat, fake := newAltDailyFixture(t, 9.5, 9.8, 9.9)
	strat.alts["AAA/USDT"] = &TradingAlt{TotalQuantity: 16.66}
	strat.prevDay = 0 // force the new-day edge

	require.NoError(t, strat.trade())

	assert.NotContains(t, strat.alts, "AAA/USDT")
	require.Len(t, fake.marketOrders, 1)
	assert.Equal(t, model.SideTypeSell, fake.marketOrders[0].Side)
}

func TestAltDailyHoldsThroughTheDayUnderPivot(t *testing.T) {
	// Same close under P, but the day has not rolled over: hold.
	strat, fake := newAltDailyFixture(t, 9.5, 9.8, 9.9)
	strat.alts["AAA/USDT"] = &TradingAlt{TotalQuantity: 16.66}

	require.NoError(t, strat.trade())

	assert.Contains(t, strat.alts, "AAA/USDT")
	assert.Empty(t, fake.marketOrders)
}

func TestAltDailyBoundsBook(t *testing.T) {
	strat, fake := newAltDailyFixture(t, 10.05, 10.05, 9.9)
	strat.maxTradeLimit = 0
	strat.alts["BBB/USDT"] = &TradingAlt{TotalQuantity: 1}
	fake.account.Balances = append(fake.account.Balances, model.Balance{Asset: "BBB", Free: 1})
	fake.tickers["BBB/USDT"] = model.TickerInfo{Pair: "BBB/USDT", Last: 20, Time: time.Now().UTC()}
	fake.candles["BBB/USDT|1M"] = []model.Candle{{High: 30, Low: 10, Close: 20}}
	fake.candles["BBB/USDT|1d"] = []model.Candle{{Close: 21}, {Close: 21}}

	require.NoError(t, strat.trade())

	// One position with a zero limit: no fresh entries allowed.
	assert.NotContains(t, strat.alts, "AAA/USDT")
	for _, o := range fake.marketOrders {
		assert.NotEqual(t, "AAA/USDT", o.Pair)
	}
}
