// Package indicator computes the floor-trader pivot levels the
// strategies trade against.
package indicator

import (
	"errors"
	"fmt"
	"time"

	"pivotbot/model"
)

var (
	ErrNotEnoughCandles = errors.New("not enough candles for pivot")
	ErrNoPriorYear      = errors.New("no candles for the previous calendar year")
)

// CandleSource feeds complete candles, oldest first. Both the spot and
// the futures adapters satisfy it.
type CandleSource interface {
	CandlesByLimit(pair, period string, limit int) ([]model.Candle, error)
}

// Calc derives the pivot and its Fibonacci-spaced resistance and
// support bands from a period's high, low and close.
func Calc(high, low, close float64) model.Pivot {
	pivot := model.Pivot{P: (high + low + close) / 3}
	span := high - low
	for i, factor := range model.PivotFactors {
		pivot.R[i] = pivot.P + span*factor
		pivot.S[i] = pivot.P - span*factor
	}
	return pivot
}

// Pivots computes anchored pivots from a candle source.
type Pivots struct {
	source CandleSource
	now    func() time.Time
}

func NewPivots(source CandleSource) *Pivots {
	return &Pivots{source: source, now: time.Now}
}

// Yearly returns the pivot of the previous calendar year: highest
// high, lowest low and final close of that year's monthly candles.
func (p *Pivots) Yearly(pair string) (model.Pivot, error) {
	candles, err := p.source.CandlesByLimit(pair, "1M", 25)
	if err != nil {
		return model.Pivot{}, err
	}

	year := p.now().UTC().Year() - 1
	var high, low, close float64
	found := false
	for _, candle := range candles {
		if candle.Time.UTC().Year() != year {
			continue
		}
		if !found || candle.High > high {
			high = candle.High
		}
		if !found || candle.Low < low {
			low = candle.Low
		}
		close = candle.Close
		found = true
	}
	if !found {
		return model.Pivot{}, fmt.Errorf("%w: %s %d", ErrNoPriorYear, pair, year)
	}
	return Calc(high, low, close), nil
}

// Monthly returns the pivot of the previous complete month.
func (p *Pivots) Monthly(pair string) (model.Pivot, error) {
	return p.previous(pair, "1M", 5)
}

// Weekly returns the pivot of the previous complete week.
func (p *Pivots) Weekly(pair string) (model.Pivot, error) {
	return p.previous(pair, "1w", 5)
}

// Daily returns the pivot of the previous complete day.
func (p *Pivots) Daily(pair string) (model.Pivot, error) {
	return p.previous(pair, "1d", 5)
}

func (p *Pivots) previous(pair, period string, limit int) (model.Pivot, error) {
	candles, err := p.source.CandlesByLimit(pair, period, limit)
	if err != nil {
		return model.Pivot{}, err
	}
	if len(candles) == 0 {
		return model.Pivot{}, fmt.Errorf("%w: %s %s", ErrNotEnoughCandles, pair, period)
	}
	last := candles[len(candles)-1]
	return Calc(last.High, last.Low, last.Close), nil
}

// Hourly returns the pivot of the previous complete n-hour bucket,
// aggregated locally from 1h candles on UTC boundaries. The exchange
// has no native 6h-and-friends intervals for every n.
func (p *Pivots) Hourly(pair string, n int) (model.Pivot, error) {
	if n < 1 {
		return model.Pivot{}, fmt.Errorf("invalid hour aggregation %d", n)
	}
	candles, err := p.source.CandlesByLimit(pair, "1h", 3*n)
	if err != nil {
		return model.Pivot{}, err
	}
	if len(candles) == 0 {
		return model.Pivot{}, fmt.Errorf("%w: %s 1h", ErrNotEnoughCandles, pair)
	}

	period := int64(n) * 3600
	prevBucket := p.now().UTC().Unix()/period - 1

	var high, low, close float64
	found := false
	for _, candle := range candles {
		if candle.Time.UTC().Unix()/period != prevBucket {
			continue
		}
		if !found || candle.High > high {
			high = candle.High
		}
		if !found || candle.Low < low {
			low = candle.Low
		}
		close = candle.Close
		found = true
	}
	if !found {
		return model.Pivot{}, fmt.Errorf("%w: %s %dh bucket", ErrNotEnoughCandles, pair, n)
	}
	return Calc(high, low, close), nil
}
