package strategy

import (
	"fmt"

	"github.com/samber/lo"

	"pivotbot/control"
	"pivotbot/exchange"
	"pivotbot/indicator"
	"pivotbot/model"
	"pivotbot/order"
	"pivotbot/telemetry"
	"pivotbot/tools/log"
)

// AltDaily hunts USDT-quoted alts that freshly crossed their monthly
// pivot upward, buys a fixed slice of the account per position and
// guards every position with an R2/R3 take-profit ladder over a common
// S1 stop.
type AltDaily struct {
	altBook

	recorder *telemetry.Recorder
	coinPath string
	quote    string
}

func NewAltDaily(spot *order.Spot, pivots *indicator.Pivots, coins control.CoinList,
	recorder *telemetry.Recorder, coinPath string) *AltDaily {
	return &AltDaily{
		altBook:  newAltBook(spot, pivots, coins),
		recorder: recorder,
		coinPath: coinPath,
		quote:    "USDT",
	}
}

func (s *AltDaily) Name() string {
	return "adt"
}

func (s *AltDaily) Status() string {
	return fmt.Sprintf("%d/%d alts", len(s.alts), s.maxTradeLimit)
}

func (s *AltDaily) Tasks() []Task {
	return []Task{
		{Name: "alt_trade", Period: "1h", Run: s.trade},
		{Name: "record", Period: "24h", Run: s.record},
		{Name: "data_update", Period: "24h", Run: s.dataUpdate},
	}
}

func (s *AltDaily) Shutdown() error {
	return s.cancelAllProtective()
}

func (s *AltDaily) trade() error {
	if err := s.reconcile(); err != nil {
		return err
	}

	if len(s.alts) == 0 {
		if err := s.resizeTradeLimit(); err != nil {
			return err
		}
	}

	if len(s.alts) <= s.maxTradeLimit {
		if err := s.makePivotOrder(); err != nil {
			return err
		}
	}

	if err := s.reconcile(); err != nil {
		return err
	}
	if len(s.alts) > 0 {
		return s.manage()
	}
	return nil
}

// resizeTradeLimit re-derives the position count from the account
// value while the book is flat: one slot per altPositionCost USDT,
// capped.
func (s *AltDaily) resizeTradeLimit() error {
	total, err := s.totalBalance()
	if err != nil {
		return err
	}
	account, err := s.spot.Exchange().Account()
	if err != nil {
		return err
	}
	info, err := s.spot.Exchange().Ticker("BTC/USDT")
	if err != nil {
		return err
	}
	btc, _ := account.Balance("BTC", "")
	total += btc.Total() * info.Last

	limit := int(total / altPositionCost)
	if limit > altPositionCap {
		limit = altPositionCap
	}
	if limit != s.maxTradeLimit {
		s.maxTradeLimit = limit
		log.Infof("[%s] max trade limit changed to %d", s.Name(), limit)
	}
	return nil
}

// makePivotOrder scans the valid universe for symbols whose previous
// daily close freshly crossed the monthly pivot upward and market-buys
// one account slice of each.
func (s *AltDaily) makePivotOrder() error {
	tickers, err := s.spot.Exchange().TickersByQuote(s.quote)
	if err != nil {
		return err
	}

	valid := lo.FilterMap(tickers, func(info model.TickerInfo, _ int) (string, bool) {
		return info.Pair, s.validAlt(info)
	})
	log.Infof("[%s] %d of %d %s pairs pass the filters", s.Name(), len(valid), len(tickers), s.quote)

	buyMax := s.maxTradeLimit - len(s.alts)
	var triggered []string
	for _, pair := range valid {
		if len(triggered) >= buyMax {
			break
		}
		pivot, err := s.pivots.Monthly(pair)
		if err != nil {
			continue
		}
		prevClose, penultimate, err := s.prevDayCloses(pair)
		if err != nil {
			continue
		}
		if penultimate < pivot.P && pivot.P <= prevClose {
			triggered = append(triggered, pair)
		}
	}
	log.Infof("[%s] buy triggered ticker count: %d", s.Name(), len(triggered))

	tradeCount := 0
	for _, pair := range triggered {
		account, err := s.spot.Exchange().Account()
		if err != nil {
			return err
		}
		free := account.Equity(s.quote)

		var spend float64
		if buyMax == tradeCount+1 {
			total, err := s.totalBalance()
			if err != nil {
				return err
			}
			maxOrder := total / float64(buyMax) * altLastSlotScale
			if free > maxOrder {
				log.Infof("[%s] %s: remaining balance %f clamped to %f", s.Name(), pair, free, maxOrder)
				free = maxOrder
			}
			spend = free * altSpendRatio
			if spend < altMinSlotQuote {
				s.maxTradeLimit--
				log.Infof("[%s] slot below %f USDT, max trade limit reduced to %d",
					s.Name(), altMinSlotQuote, s.maxTradeLimit)
			}
		} else {
			spend = free / float64(buyMax)
		}
		tradeCount++

		if _, err := s.spot.MarketBuy(pair, spend); err != nil {
			log.Errorf("[%s] entry %s: %v", s.Name(), pair, err)
			continue
		}
		s.alts[pair] = &TradingAlt{}
		log.Infof("[%s] %s added to trading alts", s.Name(), pair)
	}
	return nil
}

func (s *AltDaily) dataUpdate() error {
	if s.coinPath == "" {
		return nil
	}
	coins, err := control.ReadCoinList(s.coinPath)
	if err != nil {
		return err
	}
	s.coins = coins
	log.Infof("[%s] coin list reloaded from %s", s.Name(), s.coinPath)
	return nil
}

func (s *AltDaily) record() error {
	info, err := s.spot.Exchange().Ticker("BTC/USDT")
	if err != nil {
		return err
	}
	total, err := s.totalBalance()
	if err != nil {
		return err
	}
	btcTotal := exchange.Round(total/info.Last, 3)
	return s.recorder.Snapshot(btcTotal, total, 0)
}
