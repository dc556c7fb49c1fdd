package strategy

import (
	"time"

	"pivotbot/exchange"
	"pivotbot/indicator"
	"pivotbot/order"
	"pivotbot/telemetry"
	"pivotbot/tools/log"
)

// staleTickerAge is the maximum age of the last trade before a
// strategy refuses to act on the ticker.
const staleTickerAge = time.Hour

// BTCMonthly rotates the whole account between BTC and USDT around the
// yearly pivot: hold BTC while the previous monthly close stays above
// P, dump on an S1 break or a monthly close below P.
type BTCMonthly struct {
	spot     *order.Spot
	pivots   *indicator.Pivots
	recorder *telemetry.Recorder

	pair   string
	status SpotStatus
	now    func() time.Time
}

func NewBTCMonthly(spot *order.Spot, pivots *indicator.Pivots, recorder *telemetry.Recorder) *BTCMonthly {
	return &BTCMonthly{
		spot:     spot,
		pivots:   pivots,
		recorder: recorder,
		pair:     "BTC/USDT",
		status:   SpotInit,
		now:      time.Now,
	}
}

func (s *BTCMonthly) Name() string {
	return "bmt"
}

func (s *BTCMonthly) Status() string {
	return string(s.status)
}

func (s *BTCMonthly) Tasks() []Task {
	return []Task{
		{Name: "btc_trade", Period: "24h", Run: s.trade},
		{Name: "record", Period: "24h", Run: s.record},
	}
}

func (s *BTCMonthly) Shutdown() error {
	return s.spot.CancelAll(s.pair, order.CancelSpec{Normal: true, OCO: true})
}

func (s *BTCMonthly) trade() error {
	pivot, err := s.pivots.Yearly(s.pair)
	if err != nil {
		return err
	}
	log.Infof("[%s] %s yearly pivot P=%f S1=%f", s.Name(), s.pair, pivot.P, pivot.S1())

	info, err := s.spot.Exchange().Ticker(s.pair)
	if err != nil {
		return err
	}
	if s.now().Sub(info.Time) > staleTickerAge {
		log.Warnf("[%s] %s last trade too old, skipping", s.Name(), s.pair)
		return nil
	}

	candles, err := s.spot.Exchange().CandlesByLimit(s.pair, "1M", 5)
	if err != nil {
		return err
	}
	if len(candles) == 0 {
		return indicator.ErrNotEnoughCandles
	}
	prevMonthClose := candles[len(candles)-1].Close

	switch {
	case info.Last < pivot.S1():
		log.Infof("[%s] %s last %f under yearly S1", s.Name(), s.pair, info.Last)
		if s.status != SpotSell {
			if _, err := s.spot.MarketSell(s.pair, 0); err != nil {
				return err
			}
			s.status = SpotSell
			log.Infof("[%s] status changed to sell", s.Name())
		}
	case prevMonthClose < pivot.P:
		log.Infof("[%s] %s previous monthly close %f under yearly P", s.Name(), s.pair, prevMonthClose)
		if s.status != SpotSell {
			if _, err := s.spot.MarketSell(s.pair, 0); err != nil {
				return err
			}
			s.status = SpotSell
			log.Infof("[%s] status changed to sell", s.Name())
		}
	default:
		if s.status != SpotBuy {
			if _, err := s.spot.MarketBuy(s.pair, 0); err != nil {
				return err
			}
			s.status = SpotBuy
			log.Infof("[%s] status changed to buy", s.Name())
		}
	}
	return nil
}

func (s *BTCMonthly) record() error {
	info, err := s.spot.Exchange().Ticker(s.pair)
	if err != nil {
		return err
	}
	account, err := s.spot.Exchange().Account()
	if err != nil {
		return err
	}
	btc, usdt := account.Balance("BTC", "USDT")
	usdtTotal := usdt.Total() + btc.Total()*info.Last
	btcTotal := exchange.Round(usdtTotal/info.Last, 3)
	return s.recorder.Snapshot(btcTotal, usdtTotal, 0)
}
