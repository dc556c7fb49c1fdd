package model

// Fibonacci spacing factors for the three resistance/support bands.
var PivotFactors = [3]float64{0.236, 0.618, 1.0}

// Pivot holds a floor-trader pivot and its three resistance and
// support levels, derived from a prior period's high, low and close.
type Pivot struct {
	P float64
	R [3]float64
	S [3]float64
}

func (p Pivot) R1() float64 { return p.R[0] }
func (p Pivot) R2() float64 { return p.R[1] }
func (p Pivot) R3() float64 { return p.R[2] }
func (p Pivot) S1() float64 { return p.S[0] }
func (p Pivot) S2() float64 { return p.S[1] }
func (p Pivot) S3() float64 { return p.S[2] }
