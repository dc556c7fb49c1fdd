package strategy

import (
	"fmt"

	"pivotbot/indicator"
	"pivotbot/model"
	"pivotbot/order"
	"pivotbot/telemetry"
	"pivotbot/tools/log"
)

const (
	weeklyBudgetRatio = 0.7
	weeklyOuterRatio  = 0.14
	weeklyCandle      = "4h"
	weeklyCandleSecs  = 4 * 3600
)

// FutureWeekly trades the BTC perpetual around the weekly pivot on 4h
// candles: enter when the previous candle crosses P, stop at S1/R1,
// take half the position at the next level.
type FutureWeekly struct {
	futuresEngine

	pivots   *indicator.Pivots
	recorder *telemetry.Recorder
}

func NewFutureWeekly(orders *order.Futures, pivots *indicator.Pivots, recorder *telemetry.Recorder) *FutureWeekly {
	return &FutureWeekly{
		futuresEngine: newFuturesEngine(orders, "BTC/USDT"),
		pivots:        pivots,
		recorder:      recorder,
	}
}

func (s *FutureWeekly) Name() string {
	return "bfwht"
}

func (s *FutureWeekly) Status() string {
	return fmt.Sprintf("%s x%d", s.status, s.leverage)
}

func (s *FutureWeekly) Tasks() []Task {
	return []Task{
		{Name: "btc_trade", Period: "1h", Run: s.trade},
		{Name: "record", Period: "24h", Run: s.record},
	}
}

func (s *FutureWeekly) Shutdown() error {
	return s.shutdown()
}

func (s *FutureWeekly) trade() error {
	pivot, err := s.pivots.Weekly(s.pair)
	if err != nil {
		return err
	}
	fresh, err := s.tickerFresh()
	if err != nil {
		return err
	}
	if !fresh {
		log.Warnf("[%s] %s last trade too old, skipping", s.Name(), s.pair)
		return nil
	}
	prev, err := s.prevCandle(weeklyCandle)
	if err != nil {
		return err
	}

	if err := s.checkLiquidation(); err != nil {
		return err
	}
	s.resetAfterLiquidation(weeklyCandleSecs)

	switch s.status {
	case FutureInit:
		if prev.Close >= pivot.P && pivot.P >= prev.Open {
			if err := s.enter(true, pivot); err != nil {
				return err
			}
			s.status = FutureLong
		} else if prev.Close < pivot.P && pivot.P <= prev.Open {
			if err := s.enter(false, pivot); err != nil {
				return err
			}
			s.status = FutureShort
		}
	case FutureLong:
		if prev.Close < pivot.P {
			if err := s.enter(false, pivot); err != nil {
				return err
			}
			s.status = FutureShort
		}
	case FutureShort:
		if prev.Close > pivot.P {
			if err := s.enter(true, pivot); err != nil {
				return err
			}
			s.status = FutureLong
		}
	}
	return nil
}

func (s *FutureWeekly) enter(long bool, pivot model.Pivot) error {
	balance, err := s.orders.Balance()
	if err != nil {
		return err
	}
	budget := balance * weeklyBudgetRatio

	sr2 := pivot.S2()
	stopLevel := pivot.S1()
	if !long {
		sr2 = pivot.R2()
		stopLevel = pivot.R1()
	}
	takePrice := func(last float64) float64 {
		if long {
			return nextResistance(pivot, last, weeklyOuterRatio)
		}
		return nextSupport(pivot, last, weeklyOuterRatio)
	}
	_, err = s.switchPosition(long, budget, sr2, 0,
		func(float64) (float64, int) { return stopLevel, 0 },
		takePrice)
	return err
}

func (s *FutureWeekly) record() error {
	return recordFutures(&s.futuresEngine, s.recorder)
}
