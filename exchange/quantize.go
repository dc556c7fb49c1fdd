package exchange

import "math"

// Minimum spot order notionals, already including the 1.3x safety
// factor applied before every submit.
const (
	MinNotionalBTC  = 0.001 * 1.3
	MinNotionalUSDT = 10.0 * 1.3
)

// Snap rounds x down to the nearest multiple of step. A zero step
// returns x unchanged.
func Snap(x, step float64) float64 {
	if step <= 0 {
		return x
	}
	return math.Floor(x/step) * step
}

// Round rounds x to the given number of decimal places.
func Round(x float64, places int) float64 {
	shift := math.Pow(10, float64(places))
	return math.Round(x*shift) / shift
}

// MinNotional returns the minimum quote value an order on the given
// quote asset must carry.
func MinNotional(quote string) float64 {
	if quote == "BTC" {
		return MinNotionalBTC
	}
	return MinNotionalUSDT
}
