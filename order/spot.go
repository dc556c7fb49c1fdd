// Package order maps strategy intents onto resilient exchange calls.
package order

import (
	"fmt"
	"time"

	"pivotbot/exchange"
	"pivotbot/model"
	"pivotbot/service"
	"pivotbot/tools/log"
)

const (
	slipBudget      = 0.3
	depthStep       = 100
	marketBuyTries  = 10
	fundsRetryPause = 500 * time.Millisecond
)

// Spot manages spot orders on top of the exchange adapter.
type Spot struct {
	exchange service.Exchange
	sleep    func(time.Duration)
}

func NewSpot(ex service.Exchange) *Spot {
	return &Spot{exchange: ex, sleep: time.Sleep}
}

// Exchange exposes the underlying adapter for read-only calls.
func (s *Spot) Exchange() service.Exchange {
	return s.exchange
}

// FreeBalance returns the free balance of the pair's base asset.
func (s *Spot) FreeBalance(pair string) (float64, error) {
	base, _ := model.SplitPair(pair)
	account, err := s.exchange.Account()
	if err != nil {
		return 0, err
	}
	return account.Equity(base), nil
}

// CheckOrderQuantity validates a quantity against the pair's step size
// and the 1.3x minimum-notional floor.
func (s *Spot) CheckOrderQuantity(pair string, quantity, price float64) error {
	info := s.exchange.AssetsInfo(pair)
	if info.StepSize > 0 && quantity < info.StepSize {
		return &exchange.OrderError{
			Err:      fmt.Errorf("%w: %f below step size %f", exchange.ErrInvalidQuantity, quantity, info.StepSize),
			Pair:     pair,
			Quantity: quantity,
		}
	}
	_, quote := model.SplitPair(pair)
	notional := quantity * price
	if minimum := exchange.MinNotional(quote); notional < minimum {
		return &exchange.OrderError{
			Err:      fmt.Errorf("%w: notional %f below minimum %f %s", exchange.ErrInvalidQuantity, notional, minimum, quote),
			Pair:     pair,
			Quantity: quantity,
		}
	}
	return nil
}

// MarketSell sells at market. A zero quantity sells the full free
// balance of the base asset.
func (s *Spot) MarketSell(pair string, quantity float64) (model.Order, error) {
	if quantity <= 0 {
		free, err := s.FreeBalance(pair)
		if err != nil {
			return model.Order{}, err
		}
		quantity = free
	}

	info := s.exchange.AssetsInfo(pair)
	quantity = exchange.Snap(quantity, info.StepSize)

	last, err := s.exchange.LastQuote(pair)
	if err != nil {
		return model.Order{}, err
	}
	if err := s.CheckOrderQuantity(pair, quantity, last); err != nil {
		return model.Order{}, err
	}

	order, err := s.exchange.CreateOrderMarket(model.SideTypeSell, pair, quantity)
	if err != nil {
		return model.Order{}, err
	}
	log.Infof("market sell %s: %f @ ~%f", pair, order.ExecutedQuantity, order.Price)
	return order, nil
}

// MarketBuy spends quoteQuantity of the quote asset at market. The
// order book is walked until it covers the notional plus the slippage
// budget; the volume-weighted ask sizes the base quantity. A thin book
// widens the depth request and retries; an insufficient-funds reject
// pauses and retries. The attempt budget bounds both.
func (s *Spot) MarketBuy(pair string, quoteQuantity float64) (model.Order, error) {
	if quoteQuantity <= 0 {
		_, quote := model.SplitPair(pair)
		account, err := s.exchange.Account()
		if err != nil {
			return model.Order{}, err
		}
		quoteQuantity = account.Equity(quote)
	}

	target := quoteQuantity * (1 + slipBudget)
	depth := depthStep
	info := s.exchange.AssetsInfo(pair)

	var lastErr error
	for attempt := 0; attempt < marketBuyTries; attempt++ {
		_, asks, err := s.exchange.Depth(pair, depth)
		if err != nil {
			return model.Order{}, err
		}

		var sumQuote, sumBase float64
		for _, level := range asks {
			sumQuote += level.Price * level.Quantity
			sumBase += level.Quantity
			if sumQuote >= target {
				break
			}
		}
		if sumQuote < target {
			depth += depthStep
			lastErr = fmt.Errorf("order book too thin for %f %s at depth %d", target, pair, depth)
			log.Warnf("market buy %s: %v", pair, lastErr)
			continue
		}

		vwap := sumQuote / sumBase
		quantity := exchange.Snap(quoteQuantity/vwap, info.StepSize)
		if err := s.CheckOrderQuantity(pair, quantity, vwap); err != nil {
			return model.Order{}, err
		}

		order, err := s.exchange.CreateOrderMarket(model.SideTypeBuy, pair, quantity)
		if err != nil {
			if exchange.IsKind(err, exchange.KindInsufficientFunds) {
				lastErr = err
				log.Warnf("market buy %s: insufficient funds, retrying", pair)
				s.sleep(fundsRetryPause)
				continue
			}
			return model.Order{}, err
		}
		log.Infof("market buy %s: %f @ ~%f", pair, order.ExecutedQuantity, order.Price)
		return order, nil
	}

	return model.Order{}, &exchange.OrderError{
		Err:      fmt.Errorf("market buy failed after %d attempts: %w", marketBuyTries, lastErr),
		Pair:     pair,
		Quantity: quoteQuantity,
	}
}

// CreateLimit places a quantized limit order.
func (s *Spot) CreateLimit(side model.SideType, pair string, quantity, price float64) (model.Order, error) {
	info := s.exchange.AssetsInfo(pair)
	quantity = exchange.Snap(quantity, info.StepSize)
	if err := s.CheckOrderQuantity(pair, quantity, price); err != nil {
		return model.Order{}, err
	}
	return s.exchange.CreateOrderLimit(side, pair, quantity, price)
}

// CreateStopLimit places a quantized stop-loss-limit order.
func (s *Spot) CreateStopLimit(side model.SideType, pair string, quantity, price, stop float64) (model.Order, error) {
	info := s.exchange.AssetsInfo(pair)
	quantity = exchange.Snap(quantity, info.StepSize)
	if err := s.CheckOrderQuantity(pair, quantity, price); err != nil {
		return model.Order{}, err
	}
	return s.exchange.CreateOrderStopLimit(side, pair, quantity, price, stop)
}

// CreateOCO places a quantized one-cancels-other pair.
func (s *Spot) CreateOCO(side model.SideType, pair string, quantity, price, stop, stopLimit float64) (model.OCOOrder, error) {
	info := s.exchange.AssetsInfo(pair)
	quantity = exchange.Snap(quantity, info.StepSize)
	if err := s.CheckOrderQuantity(pair, quantity, price); err != nil {
		return model.OCOOrder{}, err
	}
	return s.exchange.CreateOrderOCO(side, pair, quantity, price, stop, stopLimit)
}

// CancelSpec selects which open orders CancelAll touches.
type CancelSpec struct {
	Normal bool
	OCO    bool
}

// CancelAll cancels the selected open orders on a pair. Cancelling an
// order that is already gone is not an error, so the call is
// idempotent.
func (s *Spot) CancelAll(pair string, spec CancelSpec) error {
	orders, err := s.exchange.OpenOrders(pair)
	if err != nil {
		return err
	}

	cancelledLists := make(map[int64]bool)
	for _, order := range orders {
		if order.GroupID != nil {
			if !spec.OCO || cancelledLists[*order.GroupID] {
				continue
			}
			cancelledLists[*order.GroupID] = true
			if err := s.exchange.CancelList(pair, *order.GroupID); err != nil {
				if exchange.IsKind(err, exchange.KindInvalidOrder) {
					continue
				}
				return err
			}
			continue
		}
		if !spec.Normal {
			continue
		}
		if err := s.exchange.Cancel(order); err != nil {
			if exchange.IsKind(err, exchange.KindInvalidOrder) {
				continue
			}
			return err
		}
	}
	return nil
}

// OrderStatus returns the status and executed quantity of one order.
func (s *Spot) OrderStatus(pair string, id int64) (model.OrderStatusType, float64, error) {
	order, err := s.exchange.Order(pair, id)
	if err != nil {
		return "", 0, err
	}
	return order.Status, order.ExecutedQuantity, nil
}
