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
	dailyBudgetRatio = 0.7
	dailyOuterRatio  = 0.14
	dailyCandleSecs  = 24 * 3600
)

// FutureDaily trades the BTC perpetual around the monthly pivot on
// daily candles. The first tick picks the side from the last price;
// afterwards the previous daily close flips it.
type FutureDaily struct {
	futuresEngine

	pivots   *indicator.Pivots
	recorder *telemetry.Recorder
}

func NewFutureDaily(orders *order.Futures, pivots *indicator.Pivots, recorder *telemetry.Recorder) *FutureDaily {
	return &FutureDaily{
		futuresEngine: newFuturesEngine(orders, "BTC/USDT"),
		pivots:        pivots,
		recorder:      recorder,
	}
}

func (s *FutureDaily) Name() string {
	return "bfdt"
}

func (s *FutureDaily) Status() string {
	return fmt.Sprintf("%s x%d", s.status, s.leverage)
}

func (s *FutureDaily) Tasks() []Task {
	return []Task{
		{Name: "btc_trade", Period: "1h", Run: s.trade},
		{Name: "record", Period: "24h", Run: s.record},
	}
}

func (s *FutureDaily) Shutdown() error {
	return s.shutdown()
}

func (s *FutureDaily) trade() error {
	pivot, err := s.pivots.Monthly(s.pair)
	if err != nil {
		return err
	}
	info, err := s.orders.Broker().Ticker(s.pair)
	if err != nil {
		return err
	}
	if s.now().Sub(info.Time) > staleTickerAge {
		log.Warnf("[%s] %s last trade too old, skipping", s.Name(), s.pair)
		return nil
	}
	prev, err := s.prevCandle("1d")
	if err != nil {
		return err
	}

	if err := s.checkLiquidation(); err != nil {
		return err
	}
	s.resetAfterLiquidation(dailyCandleSecs)

	switch s.status {
	case FutureInit:
		if info.Last >= pivot.P {
			if err := s.enter(true, pivot); err != nil {
				return err
			}
			s.status = FutureLong
		} else {
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

func (s *FutureDaily) enter(long bool, pivot model.Pivot) error {
	balance, err := s.orders.Balance()
	if err != nil {
		return err
	}
	budget := balance * dailyBudgetRatio

	sr2 := pivot.S2()
	stopLevel := pivot.S1()
	if !long {
		sr2 = pivot.R2()
		stopLevel = pivot.R1()
	}
	takePrice := func(last float64) float64 {
		if long {
			return nextResistance(pivot, last, dailyOuterRatio)
		}
		return nextSupport(pivot, last, dailyOuterRatio)
	}
	_, err = s.switchPosition(long, budget, sr2, 0,
		func(float64) (float64, int) { return stopLevel, 0 },
		takePrice)
	return err
}

func (s *FutureDaily) record() error {
	return recordFutures(&s.futuresEngine, s.recorder)
}
