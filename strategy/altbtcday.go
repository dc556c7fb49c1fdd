package strategy

import (
	"fmt"
	"time"

	"github.com/samber/lo"

	"pivotbot/control"
	"pivotbot/exchange"
	"pivotbot/indicator"
	"pivotbot/model"
	"pivotbot/order"
	"pivotbot/telemetry"
	"pivotbot/tools/log"
)

const (
	openAltMaxAge      = time.Hour
	openAltPromoteFill = 0.5
)

// AltBTCDay runs the alt pivot book against a rotating quote currency:
// while BTC trades above its yearly pivot the alts are quoted in BTC,
// below it they are quoted in USDT. On top of the market entries it
// queues limit buys at the monthly pivot for symbols still holding
// above P.
type AltBTCDay struct {
	altBook

	recorder *telemetry.Recorder

	btcPair   string
	btcStatus SpotStatus
	basePair  string
	prevMonth time.Month

	openAlts map[string]*OpenAlt
}

func NewAltBTCDay(spot *order.Spot, pivots *indicator.Pivots, coins control.CoinList,
	recorder *telemetry.Recorder) *AltBTCDay {
	return &AltBTCDay{
		altBook:   newAltBook(spot, pivots, coins),
		recorder:  recorder,
		btcPair:   "BTC/USDT",
		btcStatus: SpotInit,
		basePair:  "USDT",
		openAlts:  make(map[string]*OpenAlt),
	}
}

func (s *AltBTCDay) Name() string {
	return "abd"
}

func (s *AltBTCDay) Status() string {
	return fmt.Sprintf("%s, %d alts, %d open", s.btcStatus, len(s.alts), len(s.openAlts))
}

func (s *AltBTCDay) Tasks() []Task {
	return []Task{
		{Name: "btc_trade", Period: "24h", Run: s.btcTrade},
		{Name: "alt_trade", Period: "1m", Run: s.altTrade},
		{Name: "record", Period: "24h", Run: s.record},
	}
}

func (s *AltBTCDay) Shutdown() error {
	if err := s.deleteOpenAltOrders(); err != nil {
		return err
	}
	return s.cancelAllProtective()
}

// btcTrade sets the macro bias from the yearly pivot of BTC/USDT.
func (s *AltBTCDay) btcTrade() error {
	pivot, err := s.pivots.Yearly(s.btcPair)
	if err != nil {
		return err
	}
	info, err := s.spot.Exchange().Ticker(s.btcPair)
	if err != nil {
		return err
	}
	if s.now().Sub(info.Time) > staleTickerAge {
		log.Warnf("[%s] %s last trade too old, skipping", s.Name(), s.btcPair)
		return nil
	}
	month := s.now().UTC().Month()

	switch {
	case info.Last < pivot.S1():
		log.Infof("[%s] BTC last %f under yearly S1", s.Name(), info.Last)
		if s.btcStatus != SpotSell {
			if err := s.rotateIntoQuote(); err != nil {
				return err
			}
			s.btcStatus = SpotSell
			log.Infof("[%s] btc status changed to sell", s.Name())
		}
	case info.Last < pivot.P:
		log.Infof("[%s] BTC last %f under yearly P", s.Name(), info.Last)
		if s.btcStatus != SpotSell {
			if s.prevMonth != month {
				if err := s.rotateIntoQuote(); err != nil {
					return err
				}
				s.prevMonth = month
				s.btcStatus = SpotSell
				log.Infof("[%s] new month under P, btc status changed to sell", s.Name())
			} else if s.btcStatus != SpotBuy {
				s.btcStatus = SpotBuy
			}
		}
	default:
		if s.btcStatus != SpotBuy {
			if err := s.rotateIntoBase(); err != nil {
				return err
			}
			s.btcStatus = SpotBuy
			log.Infof("[%s] btc status changed to buy", s.Name())
		}
	}
	return nil
}

// rotateIntoQuote liquidates the BTC treasury into USDT ahead of a
// bearish phase.
func (s *AltBTCDay) rotateIntoQuote() error {
	if err := s.deleteOpenAltOrders(); err != nil {
		return err
	}
	_, err := s.spot.MarketSell(s.btcPair, 0)
	return err
}

// rotateIntoBase converts the USDT treasury into BTC so the alt book
// can trade BTC-quoted pairs.
func (s *AltBTCDay) rotateIntoBase() error {
	if err := s.deleteOpenAltOrders(); err != nil {
		return err
	}
	_, err := s.spot.MarketBuy(s.btcPair, 0)
	return err
}

func (s *AltBTCDay) altTrade() error {
	if err := s.reconcile(); err != nil {
		return err
	}

	if s.btcStatus == SpotBuy && s.basePair != "BTC" {
		log.Infof("[%s] btc status is buy, switching alt quote to BTC", s.Name())
		if err := s.reconcile(); err != nil {
			return err
		}
		if err := s.sellInvalidAlts(); err != nil {
			return err
		}
		s.basePair = "BTC"
	} else if s.btcStatus == SpotSell && s.basePair != "USDT" {
		log.Infof("[%s] btc status is sell, switching alt quote to USDT", s.Name())
		if err := s.reconcile(); err != nil {
			return err
		}
		if err := s.sellInvalidAlts(); err != nil {
			return err
		}
		s.basePair = "USDT"
	}

	if err := s.managePivotOrder(); err != nil {
		return err
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

// sellInvalidAlts moves every position to the new quote side: symbols
// whose counterpart pair passes the filters are re-tracked under it,
// the rest are liquidated and the proceeds repositioned.
func (s *AltBTCDay) sellInvalidAlts() error {
	if len(s.alts) == 0 {
		return nil
	}

	// Snapshot the keys: re-tracked positions land in the same map and
	// must not be revisited.
	for _, pair := range lo.Keys(s.alts) {
		alt := s.alts[pair]
		base, quote := model.SplitPair(pair)
		var counterpart string
		if quote == "USDT" {
			counterpart = model.Pair(base, "BTC")
		} else {
			counterpart = model.Pair(base, "USDT")
		}

		info, err := s.spot.Exchange().Ticker(counterpart)
		if err == nil && s.validAlt(info) {
			if err := s.cancelProtective(pair, alt); err != nil {
				return err
			}
			delete(s.alts, pair)
			s.alts[counterpart] = &TradingAlt{}
			log.Infof("[%s] %s re-tracked as %s", s.Name(), pair, counterpart)
			continue
		}

		if err := s.drop(pair, alt, true); err != nil {
			return err
		}
		if quote == "USDT" {
			if _, err := s.spot.MarketBuy(s.btcPair, 0); err != nil {
				return err
			}
		} else {
			if _, err := s.spot.MarketSell(s.btcPair, 0); err != nil {
				return err
			}
		}
	}
	log.Infof("[%s] sold all invalid alts", s.Name())
	return nil
}

// deleteOpenAltOrders cancels every queued pivot limit buy and clears
// the queue.
func (s *AltBTCDay) deleteOpenAltOrders() error {
	ex := s.spot.Exchange()
	for pair, open := range s.openAlts {
		err := ex.Cancel(model.Order{Pair: pair, ExchangeID: open.OrderID})
		if err != nil && !exchange.IsKind(err, exchange.KindInvalidOrder) {
			return err
		}
	}
	s.openAlts = make(map[string]*OpenAlt)
	log.Infof("[%s] open alts cleared", s.Name())
	return nil
}

// managePivotOrder promotes filled pivot buys into the trading book
// and expires the rest: an order older than an hour is cancelled, and
// kept only when at least half of it filled.
func (s *AltBTCDay) managePivotOrder() error {
	for pair, open := range s.openAlts {
		status, executed, err := s.spot.OrderStatus(pair, open.OrderID)
		if err != nil {
			log.Errorf("[%s] open alt %s: %v", s.Name(), pair, err)
			continue
		}
		if status == model.OrderStatusTypeFilled {
			log.Infof("[%s] %s pivot order filled", s.Name(), pair)
			s.alts[pair] = &TradingAlt{}
			delete(s.openAlts, pair)
			continue
		}
		if s.now().Sub(open.CreatedAt) < openAltMaxAge {
			continue
		}

		err = s.spot.Exchange().Cancel(model.Order{Pair: pair, ExchangeID: open.OrderID})
		if err != nil && !exchange.IsKind(err, exchange.KindInvalidOrder) {
			return err
		}
		fillRatio := 0.0
		if open.Quantity > 0 {
			fillRatio = executed / open.Quantity
		}
		if fillRatio >= openAltPromoteFill {
			log.Infof("[%s] %s pivot order %.0f%% filled, promoted", s.Name(), pair, fillRatio*100)
			s.alts[pair] = &TradingAlt{}
		} else if executed > 0 {
			if _, err := s.spot.MarketSell(pair, 0); err != nil {
				log.Errorf("[%s] open alt %s fragment: %v", s.Name(), pair, err)
			}
		}
		delete(s.openAlts, pair)
	}
	return nil
}

// makePivotOrder market-buys symbols that freshly crossed the monthly
// pivot and queues limit buys at P for symbols still holding above it.
func (s *AltBTCDay) makePivotOrder() error {
	tickers, err := s.spot.Exchange().TickersByQuote(s.basePair)
	if err != nil {
		return err
	}

	valid := lo.Filter(tickers, func(info model.TickerInfo, _ int) bool {
		return s.validAlt(info)
	})
	log.Infof("[%s] %d of %d %s pairs pass the filters", s.Name(), len(valid), len(tickers), s.basePair)

	var overPivot []string
	var triggered []string
	for _, info := range valid {
		buyMax := s.maxTradeLimit - len(s.alts)
		if buyMax <= len(overPivot)+len(triggered) {
			break
		}
		pivot, err := s.pivots.Monthly(info.Pair)
		if err != nil {
			continue
		}
		prevClose, _, err := s.prevDayCloses(info.Pair)
		if err != nil {
			continue
		}
		if prevClose < pivot.P {
			continue
		}
		if info.Last > pivot.P {
			overPivot = append(overPivot, info.Pair)
		} else {
			triggered = append(triggered, info.Pair)
		}
	}
	log.Infof("[%s] buy triggered: %d, over pivot P: %d", s.Name(), len(triggered), len(overPivot))

	buyMax := s.maxTradeLimit - len(s.alts)
	for _, pair := range triggered {
		account, err := s.spot.Exchange().Account()
		if err != nil {
			return err
		}
		spend := account.Equity(s.basePair) / float64(buyMax)
		if _, err := s.spot.MarketBuy(pair, spend); err != nil {
			log.Errorf("[%s] entry %s: %v", s.Name(), pair, err)
			continue
		}
		s.alts[pair] = &TradingAlt{}
		log.Infof("[%s] %s added to trading alts", s.Name(), pair)
	}

	if len(overPivot) == 0 {
		return nil
	}
	for pair, open := range s.openAlts {
		if lo.Contains(overPivot, pair) {
			continue
		}
		log.Infof("[%s] %s no longer over pivot, removing queued order", s.Name(), pair)
		err := s.spot.Exchange().Cancel(model.Order{Pair: pair, ExchangeID: open.OrderID})
		if err != nil && !exchange.IsKind(err, exchange.KindInvalidOrder) {
			return err
		}
		balance, err := s.assetBalance(pair)
		if err != nil {
			return err
		}
		last, err := s.spot.Exchange().LastQuote(pair)
		if err == nil && s.spot.CheckOrderQuantity(pair, balance, last) == nil {
			if _, err := s.spot.MarketSell(pair, 0); err != nil {
				log.Errorf("[%s] open alt %s fragment: %v", s.Name(), pair, err)
			}
		}
		delete(s.openAlts, pair)
	}

	for _, pair := range overPivot {
		if _, queued := s.openAlts[pair]; queued {
			continue
		}
		account, err := s.spot.Exchange().Account()
		if err != nil {
			return err
		}
		pivot, err := s.pivots.Monthly(pair)
		if err != nil {
			continue
		}
		quantity := account.Equity(s.basePair) / float64(buyMax) / pivot.P
		limitOrder, err := s.spot.CreateLimit(model.SideTypeBuy, pair, quantity, pivot.P)
		if err != nil {
			log.Errorf("[%s] pivot order %s: %v", s.Name(), pair, err)
			continue
		}
		s.openAlts[pair] = &OpenAlt{
			OrderID:   limitOrder.ExchangeID,
			Quantity:  limitOrder.Quantity,
			CreatedAt: s.now(),
		}
		log.Infof("[%s] %s queued at pivot P %f", s.Name(), pair, pivot.P)
	}
	return nil
}

func (s *AltBTCDay) record() error {
	info, err := s.spot.Exchange().Ticker(s.btcPair)
	if err != nil {
		return err
	}
	total, err := s.totalBalance()
	if err != nil {
		return err
	}
	account, err := s.spot.Exchange().Account()
	if err != nil {
		return err
	}
	btc, _ := account.Balance("BTC", "")
	total += btc.Total() * info.Last
	btcTotal := exchange.Round(total/info.Last, 3)
	return s.recorder.Snapshot(btcTotal, total, 0)
}
