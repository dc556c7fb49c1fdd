package strategy

import (
	"strings"
	"time"

	"pivotbot/control"
	"pivotbot/exchange"
	"pivotbot/indicator"
	"pivotbot/model"
	"pivotbot/order"
	"pivotbot/tools/log"
)

const (
	altPositionCost  = 150.0
	altPositionCap   = 10
	altMinSlotQuote  = 100.0
	altLastSlotScale = 1.2
	altSpendRatio    = 0.99
	altStopLimitGap  = 0.1
	altR2Ratio       = 0.2
	altR3Ratio       = 0.3
	altR2HardProfit  = 0.15
	altR3HardProfit  = 0.3
	altSettlePause   = 300 * time.Millisecond

	btcPairMinVolume  = 100.0
	btcPairMinPrice   = 4e-7
	usdtPairMinVolume = 1e6
)

// altBook is the trading-alt machinery shared by the alt strategies:
// the position map, validity filtering, protective-order reconciling
// and the monthly-pivot order ladder.
type altBook struct {
	spot   *order.Spot
	pivots *indicator.Pivots
	coins  control.CoinList

	alts          map[string]*TradingAlt
	maxTradeLimit int
	prevDay       int

	sleep func(time.Duration)
	now   func() time.Time
}

func newAltBook(spot *order.Spot, pivots *indicator.Pivots, coins control.CoinList) altBook {
	return altBook{
		spot:          spot,
		pivots:        pivots,
		coins:         coins,
		alts:          make(map[string]*TradingAlt),
		maxTradeLimit: altPositionCap,
		sleep:         time.Sleep,
		now:           time.Now,
	}
}

// validAlt applies the universe filters to a 24h ticker snapshot.
func (b *altBook) validAlt(info model.TickerInfo) bool {
	if _, trading := b.alts[info.Pair]; trading {
		return false
	}
	base, quote := model.SplitPair(info.Pair)
	switch quote {
	case "BTC":
		if info.QuoteVolume < btcPairMinVolume {
			return false
		}
		if info.Last < btcPairMinPrice {
			return false
		}
	case "USDT":
		if info.QuoteVolume < usdtPairMinVolume {
			return false
		}
		if b.coins.Stable.InArray(base) {
			return false
		}
		for option := range b.coins.Option.Iter() {
			if strings.Contains(base, option) {
				return false
			}
		}
	default:
		return false
	}
	return true
}

// assetBalance returns free plus locked funds of the pair's base
// asset. Protective orders lock most of the position, so the free
// balance alone undercounts it.
func (b *altBook) assetBalance(pair string) (float64, error) {
	base, _ := model.SplitPair(pair)
	account, err := b.spot.Exchange().Account()
	if err != nil {
		return 0, err
	}
	asset, _ := account.Balance(base, "")
	return asset.Total(), nil
}

// totalBalance values the whole book in USDT: the USDT wallet plus
// every trading alt at its last price.
func (b *altBook) totalBalance() (float64, error) {
	account, err := b.spot.Exchange().Account()
	if err != nil {
		return 0, err
	}
	usdt, _ := account.Balance("USDT", "")
	total := usdt.Total()

	btcPrice := 0.0
	for pair := range b.alts {
		base, quote := model.SplitPair(pair)
		asset, _ := account.Balance(base, "")
		info, err := b.spot.Exchange().Ticker(pair)
		if err != nil {
			return 0, err
		}
		value := asset.Total() * info.Last
		if quote == "BTC" {
			if btcPrice == 0 {
				btcInfo, err := b.spot.Exchange().Ticker("BTC/USDT")
				if err != nil {
					return 0, err
				}
				btcPrice = btcInfo.Last
			}
			value *= btcPrice
		}
		total += value
	}
	return total, nil
}

// cancelProtective cancels the stop-limit and both OCO groups of a
// trading alt. Orders already gone are not an error.
func (b *altBook) cancelProtective(pair string, alt *TradingAlt) error {
	ex := b.spot.Exchange()
	if alt.StopOrderID != 0 {
		err := ex.Cancel(model.Order{Pair: pair, ExchangeID: alt.StopOrderID})
		if err != nil && !exchange.IsKind(err, exchange.KindInvalidOrder) {
			return err
		}
		alt.StopOrderID = 0
	}
	for _, ref := range []*OCORef{&alt.R3Order, &alt.R2Order} {
		if !ref.Placed() {
			continue
		}
		err := ex.CancelList(pair, ref.ListID)
		if err != nil && !exchange.IsKind(err, exchange.KindInvalidOrder) {
			return err
		}
		*ref = OCORef{}
	}
	return nil
}

// reconcile refreshes every trading alt against the exchange: dust
// positions are cancelled and dropped, executed quantities of the
// protective children are pulled in and the fill flags updated.
func (b *altBook) reconcile() error {
	for pair, alt := range b.alts {
		balance, err := b.assetBalance(pair)
		if err != nil {
			return err
		}
		last, err := b.spot.Exchange().LastQuote(pair)
		if err != nil {
			log.Errorf("reconcile %s: %v", pair, err)
			continue
		}
		if err := b.spot.CheckOrderQuantity(pair, balance, last); err != nil {
			if cancelErr := b.cancelProtective(pair, alt); cancelErr != nil {
				return cancelErr
			}
			delete(b.alts, pair)
			log.Infof("%s dropped from trading alts: %v", pair, err)
			continue
		}
		if alt.TotalQuantity == 0 {
			continue
		}

		var stopExecuted float64
		if alt.StopOrderID != 0 {
			_, executed, err := b.spot.OrderStatus(pair, alt.StopOrderID)
			if err != nil {
				log.Errorf("reconcile %s stop order: %v", pair, err)
				continue
			}
			stopExecuted += executed
		}
		if alt.R3Order.Placed() {
			_, executed, err := b.spot.OrderStatus(pair, alt.R3Order.StopID)
			if err != nil {
				log.Errorf("reconcile %s r3 stop: %v", pair, err)
				continue
			}
			stopExecuted += executed
			status, executed, err := b.spot.OrderStatus(pair, alt.R3Order.LimitID)
			if err != nil {
				log.Errorf("reconcile %s r3 limit: %v", pair, err)
				continue
			}
			alt.R3Quantity = executed
			if status == model.OrderStatusTypeFilled {
				alt.R3Filled = true
			}
		}
		if alt.R2Order.Placed() {
			_, executed, err := b.spot.OrderStatus(pair, alt.R2Order.StopID)
			if err != nil {
				log.Errorf("reconcile %s r2 stop: %v", pair, err)
				continue
			}
			stopExecuted += executed
			status, executed, err := b.spot.OrderStatus(pair, alt.R2Order.LimitID)
			if err != nil {
				log.Errorf("reconcile %s r2 limit: %v", pair, err)
				continue
			}
			alt.R2Quantity = executed
			if status == model.OrderStatusTypeFilled {
				alt.R2Filled = true
			}
		}
		alt.S1Quantity = stopExecuted
	}
	return nil
}

// drop cancels the protective orders, liquidates the position and
// removes the alt from the book.
func (b *altBook) drop(pair string, alt *TradingAlt, settle bool) error {
	if err := b.cancelProtective(pair, alt); err != nil {
		return err
	}
	if settle {
		b.sleep(altSettlePause)
	}
	if _, err := b.spot.MarketSell(pair, 0); err != nil {
		return err
	}
	delete(b.alts, pair)
	log.Infof("%s dropped from trading alts", pair)
	return nil
}

// prevDayCloses returns the closes of the previous and the
// second-to-previous complete daily candles.
func (b *altBook) prevDayCloses(pair string) (prev, penultimate float64, err error) {
	candles, err := b.spot.Exchange().CandlesByLimit(pair, "1d", 5)
	if err != nil {
		return 0, 0, err
	}
	if len(candles) < 2 {
		return 0, 0, indicator.ErrNotEnoughCandles
	}
	return candles[len(candles)-1].Close, candles[len(candles)-2].Close, nil
}

// manage walks every trading alt once: exits first, then any missing
// protective orders. Every exit path cancels before selling.
func (b *altBook) manage() error {
	day := b.now().UTC().Day()
	newDay := b.prevDay != day
	b.prevDay = day

	for pair, alt := range b.alts {
		info, err := b.spot.Exchange().Ticker(pair)
		if err != nil {
			log.Errorf("manage %s: %v", pair, err)
			continue
		}
		balance, err := b.assetBalance(pair)
		if err != nil {
			return err
		}
		pivot, err := b.pivots.Monthly(pair)
		if err != nil {
			log.Errorf("manage %s: %v", pair, err)
			continue
		}
		prevClose, _, err := b.prevDayCloses(pair)
		if err != nil {
			log.Errorf("manage %s: %v", pair, err)
			continue
		}

		if alt.TotalQuantity == 0 {
			alt.TotalQuantity = balance
		}

		stopPrice := pivot.S1()
		stopLimit := stopPrice * (1 - altStopLimitGap)

		switch {
		case info.Last <= stopPrice:
			log.Infof("%s: last %f under monthly S1 %f", pair, info.Last, stopPrice)
			if err := b.drop(pair, alt, true); err != nil {
				log.Errorf("manage %s: %v", pair, err)
			}
			continue
		case prevClose < pivot.P && newDay:
			log.Infof("%s: previous daily close %f under monthly P %f", pair, prevClose, pivot.P)
			if err := b.drop(pair, alt, true); err != nil {
				log.Errorf("manage %s: %v", pair, err)
			}
			continue
		case alt.S1Quantity > 0:
			log.Infof("%s: stop order has been triggered", pair)
			if err := b.drop(pair, alt, false); err != nil {
				log.Errorf("manage %s: %v", pair, err)
			}
			continue
		}

		r3Amount := alt.TotalQuantity * altR3Ratio
		r2Amount := alt.TotalQuantity * altR2Ratio
		stopAmount := balance - r3Amount - r2Amount

		if !alt.R3Order.Placed() {
			r3Price := pivot.R3()
			if r3Price < info.Last {
				r3Price = info.Last * (1 + altR3HardProfit)
				log.Infof("%s: last above R3, take profit moved to %f", pair, r3Price)
			}
			oco, err := b.spot.CreateOCO(model.SideTypeSell, pair, r3Amount, r3Price, stopPrice, stopLimit)
			if err != nil {
				log.Errorf("manage %s r3 oco: %v", pair, err)
				continue
			}
			alt.R3Order = ocoRef(oco)
		}
		if !alt.R2Order.Placed() {
			r2Price := pivot.R2()
			if r2Price < info.Last {
				r2Price = info.Last * (1 + altR2HardProfit)
				log.Infof("%s: last above R2, take profit moved to %f", pair, r2Price)
			}
			oco, err := b.spot.CreateOCO(model.SideTypeSell, pair, r2Amount, r2Price, stopPrice, stopLimit)
			if err != nil {
				log.Errorf("manage %s r2 oco: %v", pair, err)
				continue
			}
			alt.R2Order = ocoRef(oco)
		}
		if alt.StopOrderID == 0 {
			stopOrder, err := b.spot.CreateStopLimit(model.SideTypeSell, pair, stopAmount, stopLimit, stopPrice)
			if err != nil {
				log.Errorf("manage %s stop: %v", pair, err)
				continue
			}
			alt.StopOrderID = stopOrder.ExchangeID
		}
	}
	return nil
}

// cancelAllProtective cancels the protective orders of every trading
// alt, the shutdown path of the alt strategies.
func (b *altBook) cancelAllProtective() error {
	var firstErr error
	for pair, alt := range b.alts {
		if err := b.cancelProtective(pair, alt); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func ocoRef(oco model.OCOOrder) OCORef {
	return OCORef{
		ListID:  oco.ListID,
		LimitID: oco.Limit.ExchangeID,
		StopID:  oco.Stop.ExchangeID,
	}
}
