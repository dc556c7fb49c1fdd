package order

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pivotbot/exchange"
)

func TestLiquidationPriceSides(t *testing.T) {
	// 1 BTC long at 10000 with 1000 collateral: liquidation sits well
	// below the entry. The short mirror sits above it.
	long, err := LiquidationPrice(10_000, 1, 1_000, PositionLong)
	require.NoError(t, err)
	assert.Less(t, long, 10_000.0)
	assert.Greater(t, long, 0.0)

	short, err := LiquidationPrice(10_000, 1, 1_000, PositionShort)
	require.NoError(t, err)
	assert.Greater(t, short, 10_000.0)
}

func TestLiquidationPriceMoreCollateralIsSafer(t *testing.T) {
	thin, err := LiquidationPrice(10_000, 1, 500, PositionLong)
	require.NoError(t, err)
	fat, err := LiquidationPrice(10_000, 1, 2_000, PositionLong)
	require.NoError(t, err)
	assert.Less(t, fat, thin)
}

func TestLiquidationPriceBrackets(t *testing.T) {
	// 30 BTC at 10000 is a 300k notional, third bracket.
	price, err := LiquidationPrice(10_000, 30, 30_000, PositionLong)
	require.NoError(t, err)
	assert.Greater(t, price, 0.0)

	_, err = LiquidationPrice(10_000, 600, 60_000, PositionLong)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotionalTooLarge))
}

func TestLiquidationPriceRejectsEmptyPosition(t *testing.T) {
	_, err := LiquidationPrice(10_000, 0, 1_000, PositionLong)
	assert.Error(t, err)
	_, err = LiquidationPrice(0, 1, 1_000, PositionLong)
	assert.Error(t, err)
}

func TestLeverageForStopLong(t *testing.T) {
	entry, stop, balance := 9_813.0, 9_130.0, 100.0

	leverage, qty, err := LeverageForStop(entry, stop, balance, PositionLong)
	require.NoError(t, err)
	require.GreaterOrEqual(t, leverage, 1)
	assert.InDelta(t, exchange.Round(float64(leverage)*balance/entry, 3), qty, 1e-9)

	liq, err := LiquidationPrice(entry, qty, balance, PositionLong)
	require.NoError(t, err)
	assert.LessOrEqual(t, liq, stop, "chosen leverage must liquidate at or below the stop")

	// One more turn of leverage would put the liquidation above the
	// protective level.
	nextQty := exchange.Round(float64(leverage+1)*balance/entry, 3)
	nextLiq, err := LiquidationPrice(entry, nextQty, balance, PositionLong)
	require.NoError(t, err)
	assert.Greater(t, nextLiq, stop)
}

func TestLeverageForStopShort(t *testing.T) {
	entry, stop, balance := 9_813.0, 10_400.0, 100.0

	leverage, qty, err := LeverageForStop(entry, stop, balance, PositionShort)
	require.NoError(t, err)
	require.GreaterOrEqual(t, leverage, 1)

	liq, err := LiquidationPrice(entry, qty, balance, PositionShort)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, liq, stop, "chosen leverage must liquidate at or above the stop")
}

func TestLeverageForStopDustBalance(t *testing.T) {
	// A balance too small to buy one contract step can never be sized.
	_, _, err := LeverageForStop(10_000, 9_000.0, 0.001, PositionLong)
	assert.Error(t, err)
}

func TestRoundDownBalance(t *testing.T) {
	tests := []struct {
		balance  float64
		expected float64
	}{
		{0.5, 0},
		{1, 1},
		{9.99, 1},
		{10, 10},
		{147, 100},
		{99_999, 10_000},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.expected, RoundDownBalance(tt.balance), 1e-9)
	}
}
