package exchange

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"

	"pivotbot/model"
	"pivotbot/tools/log"
)

// Binance is the spot exchange adapter. All calls go through the
// retry kernel and return classified errors.
type Binance struct {
	ctx        context.Context
	client     *binance.Client
	retrier    *Retrier
	apiKey     string
	secretKey  string
	assetsInfo map[string]model.AssetInfo
}

type BinanceOption func(*Binance)

// WithBinanceCredentials sets the API key pair used for signed calls.
func WithBinanceCredentials(key, secret string) BinanceOption {
	return func(b *Binance) {
		b.apiKey = key
		b.secretKey = secret
	}
}

// WithBinanceTestnet routes all calls to the spot testnet.
func WithBinanceTestnet() BinanceOption {
	return func(b *Binance) {
		binance.UseTestnet = true
	}
}

// NewBinance connects to the exchange, validates connectivity and
// loads the symbol filters used for quantization.
func NewBinance(ctx context.Context, options ...BinanceOption) (*Binance, error) {
	b := &Binance{ctx: ctx, retrier: NewRetrier()}
	for _, option := range options {
		option(b)
	}

	b.client = binance.NewClient(b.apiKey, b.secretKey)
	err := b.client.NewPingService().Do(ctx)
	if err != nil {
		return nil, classified("ping", "", err)
	}

	results, err := b.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, classified("exchangeInfo", "", err)
	}

	b.assetsInfo = make(map[string]model.AssetInfo)
	for _, info := range results.Symbols {
		tradeLimits := model.AssetInfo{
			BaseAsset:          info.BaseAsset,
			QuoteAsset:         info.QuoteAsset,
			BaseAssetPrecision: info.BaseAssetPrecision,
			QuotePrecision:     info.QuotePrecision,
		}
		for _, filter := range info.Filters {
			if typ, ok := filter["filterType"]; ok {
				if typ == string(binance.SymbolFilterTypeLotSize) {
					tradeLimits.MinQuantity, _ = strconv.ParseFloat(filter["minQty"].(string), 64)
					tradeLimits.MaxQuantity, _ = strconv.ParseFloat(filter["maxQty"].(string), 64)
					tradeLimits.StepSize, _ = strconv.ParseFloat(filter["stepSize"].(string), 64)
				}
				if typ == string(binance.SymbolFilterTypePriceFilter) {
					tradeLimits.MinPrice, _ = strconv.ParseFloat(filter["minPrice"].(string), 64)
					tradeLimits.MaxPrice, _ = strconv.ParseFloat(filter["maxPrice"].(string), 64)
					tradeLimits.TickSize, _ = strconv.ParseFloat(filter["tickSize"].(string), 64)
				}
				if typ == string(binance.SymbolFilterTypeMinNotional) {
					if v, ok := filter["minNotional"].(string); ok {
						tradeLimits.MinNotional, _ = strconv.ParseFloat(v, 64)
					}
				}
			}
		}
		b.assetsInfo[model.Pair(info.BaseAsset, info.QuoteAsset)] = tradeLimits
	}

	log.Info("[SETUP] Using Binance spot exchange")
	return b, nil
}

// AssetsInfo returns the cached filters for a pair.
func (b *Binance) AssetsInfo(pair string) model.AssetInfo {
	return b.assetsInfo[pair]
}

func (b *Binance) formatPrice(pair string, value float64) string {
	if info, ok := b.assetsInfo[pair]; ok {
		value = common.AmountToLotSize(info.TickSize, info.QuotePrecision, value)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

func (b *Binance) formatQuantity(pair string, value float64) string {
	if info, ok := b.assetsInfo[pair]; ok {
		value = common.AmountToLotSize(info.StepSize, info.BaseAssetPrecision, value)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

func (b *Binance) validate(pair string, quantity float64) error {
	info, ok := b.assetsInfo[pair]
	if !ok {
		return ErrInvalidAsset
	}
	if quantity > info.MaxQuantity || quantity < info.MinQuantity {
		return &OrderError{
			Err:      fmt.Errorf("%w: min: %f max: %f", ErrInvalidQuantity, info.MinQuantity, info.MaxQuantity),
			Pair:     pair,
			Quantity: quantity,
		}
	}
	return nil
}

// LastQuote returns the latest trade price for a pair.
func (b *Binance) LastQuote(pair string) (float64, error) {
	var last float64
	err := b.retrier.Do("lastQuote", pair, func() error {
		prices, err := b.client.NewListPricesService().
			Symbol(model.InternalPair(pair)).Do(b.ctx)
		if err != nil {
			return err
		}
		if len(prices) == 0 {
			return fmt.Errorf("no price returned for %s", pair)
		}
		last, err = strconv.ParseFloat(prices[0].Price, 64)
		return err
	})
	return last, err
}

// Ticker returns the 24h statistics snapshot for a pair.
func (b *Binance) Ticker(pair string) (model.TickerInfo, error) {
	var ticker model.TickerInfo
	err := b.retrier.Do("ticker", pair, func() error {
		stats, err := b.client.NewListPriceChangeStatsService().
			Symbol(model.InternalPair(pair)).Do(b.ctx)
		if err != nil {
			return err
		}
		if len(stats) == 0 {
			return fmt.Errorf("no ticker returned for %s", pair)
		}
		ticker, err = b.tickerInfo(pair, stats[0])
		return err
	})
	return ticker, err
}

// TickersByQuote returns the 24h snapshot of every pair quoted in the
// given asset.
func (b *Binance) TickersByQuote(quote string) ([]model.TickerInfo, error) {
	var tickers []model.TickerInfo
	err := b.retrier.Do("tickersByQuote", quote, func() error {
		stats, err := b.client.NewListPriceChangeStatsService().Do(b.ctx)
		if err != nil {
			return err
		}
		tickers = tickers[:0]
		for _, stat := range stats {
			pair, ok := b.pairFromInternal(stat.Symbol, quote)
			if !ok {
				continue
			}
			ticker, err := b.tickerInfo(pair, stat)
			if err != nil {
				continue
			}
			tickers = append(tickers, ticker)
		}
		return nil
	})
	return tickers, err
}

func (b *Binance) pairFromInternal(internal, quote string) (string, bool) {
	for pair, info := range b.assetsInfo {
		if info.QuoteAsset == quote && model.InternalPair(pair) == internal {
			return pair, true
		}
	}
	return "", false
}

func (b *Binance) tickerInfo(pair string, stat *binance.PriceChangeStats) (model.TickerInfo, error) {
	last, err := strconv.ParseFloat(stat.LastPrice, 64)
	if err != nil {
		return model.TickerInfo{}, err
	}
	bid, _ := strconv.ParseFloat(stat.BidPrice, 64)
	ask, _ := strconv.ParseFloat(stat.AskPrice, 64)
	quoteVolume, _ := strconv.ParseFloat(stat.QuoteVolume, 64)
	info := b.assetsInfo[pair]
	return model.TickerInfo{
		Pair:        pair,
		Internal:    stat.Symbol,
		Last:        last,
		Bid:         bid,
		Ask:         ask,
		QuoteVolume: quoteVolume,
		Time:        time.Unix(0, stat.CloseTime*int64(time.Millisecond)),
		TickSize:    info.TickSize,
		StepSize:    info.StepSize,
	}, nil
}

// CandlesByLimit returns the last limit complete candles for a pair.
// The still-forming candle is fetched and discarded.
func (b *Binance) CandlesByLimit(pair, period string, limit int) ([]model.Candle, error) {
	var candles []model.Candle
	err := b.retrier.Do("candles", pair, func() error {
		klineService := b.client.NewKlinesService()
		data, err := klineService.Symbol(model.InternalPair(pair)).
			Interval(period).
			Limit(limit + 1).
			Do(b.ctx)
		if err != nil {
			return err
		}
		candles = candles[:0]
		for _, d := range data {
			candle := CandleFromKline(pair, *d)
			candle.Complete = true
			candles = append(candles, candle)
		}
		// discard the live candle
		if len(candles) > 0 {
			candles = candles[:len(candles)-1]
		}
		return nil
	})
	return candles, err
}

// Depth returns an order book snapshot, best levels first.
func (b *Binance) Depth(pair string, limit int) ([]model.BookLevel, []model.BookLevel, error) {
	var bids, asks []model.BookLevel
	err := b.retrier.Do("depth", pair, func() error {
		book, err := b.client.NewDepthService().
			Symbol(model.InternalPair(pair)).
			Limit(limit).
			Do(b.ctx)
		if err != nil {
			return err
		}
		bids = bookLevels(book.Bids)
		asks = bookLevels(book.Asks)
		return nil
	})
	return bids, asks, err
}

func bookLevels(entries []common.PriceLevel) []model.BookLevel {
	levels := make([]model.BookLevel, 0, len(entries))
	for _, e := range entries {
		price, err := strconv.ParseFloat(e.Price, 64)
		if err != nil {
			continue
		}
		qty, err := strconv.ParseFloat(e.Quantity, 64)
		if err != nil {
			continue
		}
		levels = append(levels, model.BookLevel{Price: price, Quantity: qty})
	}
	return levels
}

// Account returns all wallet balances.
func (b *Binance) Account() (model.Account, error) {
	var account model.Account
	err := b.retrier.Do("account", "", func() error {
		acc, err := b.client.NewGetAccountService().Do(b.ctx)
		if err != nil {
			return err
		}
		balances := make([]model.Balance, 0, len(acc.Balances))
		for _, balance := range acc.Balances {
			free, _ := strconv.ParseFloat(balance.Free, 64)
			lock, _ := strconv.ParseFloat(balance.Locked, 64)
			balances = append(balances, model.Balance{
				Asset: balance.Asset,
				Free:  free,
				Lock:  lock,
			})
		}
		account = model.Account{Balances: balances}
		return nil
	})
	return account, err
}

// OpenOrders lists the live orders on a pair.
func (b *Binance) OpenOrders(pair string) ([]model.Order, error) {
	var orders []model.Order
	err := b.retrier.Do("openOrders", pair, func() error {
		result, err := b.client.NewListOpenOrdersService().
			Symbol(model.InternalPair(pair)).Do(b.ctx)
		if err != nil {
			return err
		}
		orders = orders[:0]
		for _, order := range result {
			orders = append(orders, newOrder(pair, order))
		}
		return nil
	})
	return orders, err
}

// Order fetches a single order by exchange id.
func (b *Binance) Order(pair string, id int64) (model.Order, error) {
	var order model.Order
	err := b.retrier.Do("order", pair, func() error {
		result, err := b.client.NewGetOrderService().
			Symbol(model.InternalPair(pair)).
			OrderID(id).
			Do(b.ctx)
		if err != nil {
			return err
		}
		order = newOrder(pair, result)
		return nil
	})
	return order, err
}

func newOrder(pair string, order *binance.Order) model.Order {
	price, _ := strconv.ParseFloat(order.Price, 64)
	quantity, _ := strconv.ParseFloat(order.OrigQuantity, 64)
	executed, _ := strconv.ParseFloat(order.ExecutedQuantity, 64)
	if price == 0 && executed > 0 {
		cost, _ := strconv.ParseFloat(order.CummulativeQuoteQuantity, 64)
		price = cost / executed
	}
	o := model.Order{
		ExchangeID:       order.OrderID,
		Pair:             pair,
		CreatedAt:        time.Unix(0, order.Time*int64(time.Millisecond)),
		UpdatedAt:        time.Unix(0, order.UpdateTime*int64(time.Millisecond)),
		Side:             model.SideType(order.Side),
		Type:             model.OrderType(order.Type),
		Status:           model.OrderStatusType(order.Status),
		Price:            price,
		Quantity:         quantity,
		ExecutedQuantity: executed,
	}
	if order.OrderListId >= 0 {
		listID := order.OrderListId
		o.GroupID = &listID
	}
	if stop, err := strconv.ParseFloat(order.StopPrice, 64); err == nil && stop > 0 {
		o.Stop = &stop
	}
	return o
}

// CreateOrderLimit places a GTC limit order.
func (b *Binance) CreateOrderLimit(side model.SideType, pair string,
	quantity, limit float64) (model.Order, error) {

	if err := b.validate(pair, quantity); err != nil {
		return model.Order{}, classified("createLimit", pair, err)
	}

	var out model.Order
	err := b.retrier.Do("createLimit", pair, func() error {
		order, err := b.client.NewCreateOrderService().
			Symbol(model.InternalPair(pair)).
			Type(binance.OrderTypeLimit).
			TimeInForce(binance.TimeInForceTypeGTC).
			Side(binance.SideType(side)).
			Quantity(b.formatQuantity(pair, quantity)).
			Price(b.formatPrice(pair, limit)).
			Do(b.ctx)
		if err != nil {
			return err
		}
		price, err := strconv.ParseFloat(order.Price, 64)
		if err != nil {
			return err
		}
		qty, err := strconv.ParseFloat(order.OrigQuantity, 64)
		if err != nil {
			return err
		}
		out = model.Order{
			ExchangeID: order.OrderID,
			CreatedAt:  time.Unix(0, order.TransactTime*int64(time.Millisecond)),
			UpdatedAt:  time.Unix(0, order.TransactTime*int64(time.Millisecond)),
			Pair:       pair,
			Side:       model.SideType(order.Side),
			Type:       model.OrderType(order.Type),
			Status:     model.OrderStatusType(order.Status),
			Price:      price,
			Quantity:   qty,
		}
		return nil
	})
	return out, err
}

// CreateOrderMarket places a market order sized in base asset.
func (b *Binance) CreateOrderMarket(side model.SideType, pair string,
	quantity float64) (model.Order, error) {

	if err := b.validate(pair, quantity); err != nil {
		return model.Order{}, classified("createMarket", pair, err)
	}

	var out model.Order
	err := b.retrier.Do("createMarket", pair, func() error {
		order, err := b.client.NewCreateOrderService().
			Symbol(model.InternalPair(pair)).
			Type(binance.OrderTypeMarket).
			Side(binance.SideType(side)).
			Quantity(b.formatQuantity(pair, quantity)).
			NewOrderRespType(binance.NewOrderRespTypeFULL).
			Do(b.ctx)
		if err != nil {
			return err
		}
		out, err = marketOrderResult(pair, order)
		return err
	})
	return out, err
}

// CreateOrderMarketQuote places a market order sized in quote asset.
func (b *Binance) CreateOrderMarketQuote(side model.SideType, pair string,
	quantity float64) (model.Order, error) {

	var out model.Order
	err := b.retrier.Do("createMarketQuote", pair, func() error {
		order, err := b.client.NewCreateOrderService().
			Symbol(model.InternalPair(pair)).
			Type(binance.OrderTypeMarket).
			Side(binance.SideType(side)).
			QuoteOrderQty(b.formatPrice(pair, quantity)).
			NewOrderRespType(binance.NewOrderRespTypeFULL).
			Do(b.ctx)
		if err != nil {
			return err
		}
		out, err = marketOrderResult(pair, order)
		return err
	})
	return out, err
}

func marketOrderResult(pair string, order *binance.CreateOrderResponse) (model.Order, error) {
	cost, err := strconv.ParseFloat(order.CummulativeQuoteQuantity, 64)
	if err != nil {
		return model.Order{}, err
	}
	quantity, err := strconv.ParseFloat(order.ExecutedQuantity, 64)
	if err != nil {
		return model.Order{}, err
	}
	price := 0.0
	if quantity > 0 {
		price = cost / quantity
	}
	return model.Order{
		ExchangeID:       order.OrderID,
		CreatedAt:        time.Unix(0, order.TransactTime*int64(time.Millisecond)),
		UpdatedAt:        time.Unix(0, order.TransactTime*int64(time.Millisecond)),
		Pair:             pair,
		Side:             model.SideType(order.Side),
		Type:             model.OrderType(order.Type),
		Status:           model.OrderStatusType(order.Status),
		Price:            price,
		Quantity:         quantity,
		ExecutedQuantity: quantity,
	}, nil
}

// CreateOrderStopLimit places a stop-loss-limit order.
func (b *Binance) CreateOrderStopLimit(side model.SideType, pair string,
	quantity, limit, stop float64) (model.Order, error) {

	if err := b.validate(pair, quantity); err != nil {
		return model.Order{}, classified("createStopLimit", pair, err)
	}

	var out model.Order
	err := b.retrier.Do("createStopLimit", pair, func() error {
		order, err := b.client.NewCreateOrderService().
			Symbol(model.InternalPair(pair)).
			Type(binance.OrderTypeStopLossLimit).
			TimeInForce(binance.TimeInForceTypeGTC).
			Side(binance.SideType(side)).
			Quantity(b.formatQuantity(pair, quantity)).
			Price(b.formatPrice(pair, limit)).
			StopPrice(b.formatPrice(pair, stop)).
			Do(b.ctx)
		if err != nil {
			return err
		}
		price, _ := strconv.ParseFloat(order.Price, 64)
		qty, _ := strconv.ParseFloat(order.OrigQuantity, 64)
		out = model.Order{
			ExchangeID: order.OrderID,
			CreatedAt:  time.Unix(0, order.TransactTime*int64(time.Millisecond)),
			UpdatedAt:  time.Unix(0, order.TransactTime*int64(time.Millisecond)),
			Pair:       pair,
			Side:       model.SideType(order.Side),
			Type:       model.OrderType(order.Type),
			Status:     model.OrderStatusType(order.Status),
			Price:      price,
			Quantity:   qty,
			Stop:       &stop,
		}
		return nil
	})
	return out, err
}

// CreateOrderOCO atomically creates a limit-maker and a stop-loss-limit
// order sharing one order list id.
func (b *Binance) CreateOrderOCO(side model.SideType, pair string,
	quantity, price, stop, stopLimit float64) (model.OCOOrder, error) {

	if err := b.validate(pair, quantity); err != nil {
		return model.OCOOrder{}, classified("createOCO", pair, err)
	}

	var out model.OCOOrder
	err := b.retrier.Do("createOCO", pair, func() error {
		ocoOrder, err := b.client.NewCreateOCOService().
			Side(binance.SideType(side)).
			Quantity(b.formatQuantity(pair, quantity)).
			Price(b.formatPrice(pair, price)).
			StopPrice(b.formatPrice(pair, stop)).
			StopLimitPrice(b.formatPrice(pair, stopLimit)).
			StopLimitTimeInForce(binance.TimeInForceTypeGTC).
			Symbol(model.InternalPair(pair)).
			Do(b.ctx)
		if err != nil {
			return err
		}

		out = model.OCOOrder{ListID: ocoOrder.OrderListID, Pair: pair}
		for _, report := range ocoOrder.OrderReports {
			price, _ := strconv.ParseFloat(report.Price, 64)
			qty, _ := strconv.ParseFloat(report.OrigQuantity, 64)
			listID := ocoOrder.OrderListID
			child := model.Order{
				ExchangeID: report.OrderID,
				CreatedAt:  time.Unix(0, report.TransactionTime*int64(time.Millisecond)),
				UpdatedAt:  time.Unix(0, report.TransactionTime*int64(time.Millisecond)),
				Pair:       pair,
				Side:       model.SideType(report.Side),
				Type:       model.OrderType(report.Type),
				Status:     model.OrderStatusType(report.Status),
				Price:      price,
				Quantity:   qty,
				GroupID:    &listID,
			}
			if stopValue, err := strconv.ParseFloat(report.StopPrice, 64); err == nil && stopValue > 0 {
				child.Stop = &stopValue
			}
			switch child.Type {
			case model.OrderTypeStopLossLimit, model.OrderTypeStopLoss:
				out.Stop = child
			default:
				out.Limit = child
			}
		}
		return nil
	})
	return out, err
}

// Cancel cancels one order by id.
func (b *Binance) Cancel(order model.Order) error {
	return b.retrier.Do("cancel", order.Pair, func() error {
		_, err := b.client.NewCancelOrderService().
			Symbol(model.InternalPair(order.Pair)).
			OrderID(order.ExchangeID).
			Do(b.ctx)
		return err
	})
}

// CancelList cancels a whole OCO order list.
func (b *Binance) CancelList(pair string, listID int64) error {
	return b.retrier.Do("cancelList", pair, func() error {
		_, err := b.client.NewCancelOCOService().
			Symbol(model.InternalPair(pair)).
			OrderListID(listID).
			Do(b.ctx)
		return err
	})
}

// CandleFromKline converts an exchange kline to a candle.
func CandleFromKline(pair string, k binance.Kline) model.Candle {
	t := time.Unix(0, k.OpenTime*int64(time.Millisecond))
	candle := model.Candle{Pair: pair, Time: t}
	candle.Open, _ = strconv.ParseFloat(k.Open, 64)
	candle.Close, _ = strconv.ParseFloat(k.Close, 64)
	candle.High, _ = strconv.ParseFloat(k.High, 64)
	candle.Low, _ = strconv.ParseFloat(k.Low, 64)
	candle.Volume, _ = strconv.ParseFloat(k.Volume, 64)
	return candle
}
