package strategy

import (
	"fmt"
	"math"

	"pivotbot/indicator"
	"pivotbot/model"
	"pivotbot/order"
	"pivotbot/telemetry"
	"pivotbot/tools"
	"pivotbot/tools/log"
)

const (
	hourlyBudgetRatio       = 0.5
	hourlyOuterRatio        = 0.14
	hourlyStopFallbackRatio = 0.3
	hourlyPivotHours        = 6
	hourlyCandle            = "15m"
	hourlyCandleSecs        = 15 * 60
)

// FutureHourly trades the BTC perpetual around a six-hour pivot on 15
// minute candles. The protective stop starts one level under the
// entry and ratchets up a level every time the previous close
// confirms past the next resistance.
type FutureHourly struct {
	futuresEngine

	pivots   *indicator.Pivots
	recorder *telemetry.Recorder

	stopLocation int
}

func NewFutureHourly(orders *order.Futures, pivots *indicator.Pivots, recorder *telemetry.Recorder) *FutureHourly {
	return &FutureHourly{
		futuresEngine: newFuturesEngine(orders, "BTC/USDT"),
		pivots:        pivots,
		recorder:      recorder,
	}
}

func (s *FutureHourly) Name() string {
	return "bfht"
}

func (s *FutureHourly) Status() string {
	return fmt.Sprintf("%s x%d loc %d", s.status, s.leverage, s.stopLocation)
}

func (s *FutureHourly) Tasks() []Task {
	return []Task{
		{Name: "btc_trade", Period: "15m", Run: s.trade},
		{Name: "record", Period: "1h", Run: s.record},
	}
}

func (s *FutureHourly) Shutdown() error {
	return s.shutdown()
}

func (s *FutureHourly) trade() error {
	pivot, err := s.pivots.Hourly(s.pair, hourlyPivotHours)
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
	prev, err := s.prevCandle(hourlyCandle)
	if err != nil {
		return err
	}

	if err := s.checkLiquidation(); err != nil {
		return err
	}
	s.resetAfterLiquidation(hourlyCandleSecs)

	if err := s.manageStop(pivot, prev.Close); err != nil {
		return err
	}

	switch s.status {
	case FutureInit:
		if prev.Close >= pivot.P && pivot.P >= prev.Open {
			s.resetStopState()
			if err := s.enter(true, pivot); err != nil {
				return err
			}
			s.status = FutureLong
		} else if prev.Close < pivot.P && pivot.P <= prev.Open {
			s.resetStopState()
			if err := s.enter(false, pivot); err != nil {
				return err
			}
			s.status = FutureShort
		} else {
			if err := s.orders.Flatten(s.pair); err != nil {
				return err
			}
		}
	case FutureLong:
		if prev.Close < pivot.P {
			s.resetStopState()
			if err := s.enter(false, pivot); err != nil {
				return err
			}
			s.status = FutureShort
		}
	case FutureShort:
		if prev.Close > pivot.P {
			s.resetStopState()
			if err := s.enter(true, pivot); err != nil {
				return err
			}
			s.status = FutureLong
		}
	}
	return nil
}

func (s *FutureHourly) resetStopState() {
	s.stopLocation = 0
	s.stopOrderID = 0
	s.stopQuantity = 0
}

// manageStop walks the protective stop one pivot level at a time as
// the previous close confirms past the ladder.
func (s *FutureHourly) manageStop(pivot model.Pivot, prevClose float64) error {
	if s.status != FutureLong && s.status != FutureShort {
		return nil
	}
	long := s.status == FutureLong

	var rungs []tools.Rung
	if long {
		rungs = []tools.Rung{
			{Trigger: pivot.R1(), Stop: pivot.P},
			{Trigger: pivot.R2(), Stop: pivot.R1()},
			{Trigger: pivot.R3(), Stop: pivot.R2()},
		}
	} else {
		rungs = []tools.Rung{
			{Trigger: pivot.S1(), Stop: pivot.P},
			{Trigger: pivot.S2(), Stop: pivot.S1()},
			{Trigger: pivot.S3(), Stop: pivot.S2()},
		}
	}
	ratchet := tools.NewRatchetStop(long, rungs)
	ratchet.Start(s.stopLocation)
	stop, moved := ratchet.Update(prevClose)
	if !moved {
		return nil
	}
	if err := s.replaceStop(long, stop); err != nil {
		return err
	}
	s.stopLocation = ratchet.Location()
	return nil
}

// enter opens a position sized by the SR2 solver on half the
// round-down balance. The logical stop used for sizing moves closer
// to the pivot the further the price has already run.
func (s *FutureHourly) enter(long bool, pivot model.Pivot) error {
	balance, err := s.orders.Balance()
	if err != nil {
		return err
	}
	budget := order.RoundDownBalance(balance) * hourlyBudgetRatio

	last, err := s.orders.Broker().LastPrice(s.pair)
	if err != nil {
		return err
	}

	var sr2 float64
	if long {
		switch {
		case last < pivot.R1():
			sr2 = pivot.S2()
		case last < pivot.R2():
			sr2 = pivot.S1()
		default:
			sr2 = pivot.P
		}
	} else {
		switch {
		case last > pivot.S1():
			sr2 = pivot.R2()
		case last > pivot.S2():
			sr2 = pivot.R1()
		default:
			sr2 = pivot.P
		}
	}

	stopPrice := func(last float64) (float64, int) {
		if long {
			switch {
			case last < pivot.R1():
				return pivot.S1(), 0
			case last < pivot.R2():
				return pivot.P, 1
			case last < pivot.R3():
				return pivot.R1(), 2
			default:
				return last - math.Abs(last-pivot.P)*hourlyStopFallbackRatio, -1
			}
		}
		switch {
		case last > pivot.S1():
			return pivot.R1(), 0
		case last > pivot.S2():
			return pivot.P, 1
		case last > pivot.S3():
			return pivot.S1(), 2
		default:
			return last + math.Abs(last-pivot.P)*hourlyStopFallbackRatio, -1
		}
	}
	takePrice := func(last float64) float64 {
		if long {
			return nextResistance(pivot, last, hourlyOuterRatio)
		}
		return nextSupport(pivot, last, hourlyOuterRatio)
	}

	location, err := s.switchPosition(long, budget, sr2, futureStopBias, stopPrice, takePrice)
	if err != nil {
		return err
	}
	s.stopLocation = location
	return nil
}

func (s *FutureHourly) record() error {
	return recordFutures(&s.futuresEngine, s.recorder)
}
