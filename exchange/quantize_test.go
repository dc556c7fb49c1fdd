package exchange

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnap(t *testing.T) {
	tests := []struct {
		name     string
		x        float64
		step     float64
		expected float64
	}{
		{"rounds down", 1.2345, 0.01, 1.23},
		{"exact multiple", 1.25, 0.05, 1.25},
		{"below step is zero", 0.0004, 0.001, 0},
		{"zero step passes through", 1.2345, 0, 1.2345},
		{"negative step passes through", 1.2345, -1, 1.2345},
		{"coarse step", 123.4, 10, 120},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Snap(tt.x, tt.step), 1e-9)
		})
	}
}

func TestSnapIdempotent(t *testing.T) {
	for _, x := range []float64{0.1234567, 17.5, 0.001, 99999.99} {
		once := Snap(x, 0.001)
		assert.InDelta(t, once, Snap(once, 0.001), 1e-9)
	}
}

func TestRound(t *testing.T) {
	assert.InDelta(t, 1.235, Round(1.23456, 3), 1e-9)
	assert.InDelta(t, 1.0, Round(1.0004, 3), 1e-9)
	assert.InDelta(t, 12.0, Round(12.345, 0), 1e-9)
}

func TestMinNotional(t *testing.T) {
	assert.InDelta(t, 0.0013, MinNotional("BTC"), 1e-9)
	assert.InDelta(t, 13.0, MinNotional("USDT"), 1e-9)
	assert.InDelta(t, 13.0, MinNotional("BUSD"), 1e-9)
}
