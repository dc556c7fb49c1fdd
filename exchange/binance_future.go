package exchange

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"

	"pivotbot/model"
	"pivotbot/service"
	"pivotbot/tools/log"
)

// Returned by the exchange when the margin type already matches.
const ErrNoNeedChangeMarginType int64 = -4046

// Filters for the BTC/USDT perpetual. The futures exchange-info call
// is avoided on the hot path; these values are stable.
var futureBTCInfo = model.AssetInfo{
	BaseAsset:          "BTC",
	QuoteAsset:         "USDT",
	TickSize:           0.01,
	StepSize:           0.001,
	MinQuantity:        0.001,
	MaxQuantity:        1000,
	QuotePrecision:     2,
	BaseAssetPrecision: 3,
}

// PairOption configures margin and leverage for one futures pair.
type PairOption struct {
	Pair       string
	Leverage   int
	MarginType service.MarginType
}

// BinanceFuture is the USD-M futures adapter.
type BinanceFuture struct {
	ctx        context.Context
	client     *futures.Client
	retrier    *Retrier
	apiKey     string
	secretKey  string
	pairOpts   []PairOption
	assetsInfo map[string]model.AssetInfo
}

type BinanceFutureOption func(*BinanceFuture)

// WithBinanceFutureCredentials sets the API key pair.
func WithBinanceFutureCredentials(key, secret string) BinanceFutureOption {
	return func(b *BinanceFuture) {
		b.apiKey = key
		b.secretKey = secret
	}
}

// WithBinanceFutureTestnet routes all calls to the futures testnet.
func WithBinanceFutureTestnet() BinanceFutureOption {
	return func(b *BinanceFuture) {
		futures.UseTestnet = true
	}
}

// WithPairOption applies margin type and leverage at startup.
func WithPairOption(option PairOption) BinanceFutureOption {
	return func(b *BinanceFuture) {
		b.pairOpts = append(b.pairOpts, option)
	}
}

// NewBinanceFuture connects to the futures exchange and applies the
// configured margin/leverage options.
func NewBinanceFuture(ctx context.Context, options ...BinanceFutureOption) (*BinanceFuture, error) {
	b := &BinanceFuture{
		ctx:     ctx,
		retrier: NewRetrier(),
		assetsInfo: map[string]model.AssetInfo{
			"BTC/USDT": futureBTCInfo,
		},
	}
	for _, option := range options {
		option(b)
	}

	b.client = futures.NewClient(b.apiKey, b.secretKey)
	err := b.client.NewPingService().Do(ctx)
	if err != nil {
		return nil, classified("ping", "", err)
	}

	for _, opt := range b.pairOpts {
		if err := b.SetMarginType(opt.Pair, opt.MarginType); err != nil {
			return nil, err
		}
		if err := b.SetLeverage(opt.Pair, opt.Leverage); err != nil {
			return nil, err
		}
	}

	log.Info("[SETUP] Using Binance futures exchange")
	return b, nil
}

// AssetsInfo returns the filters for a futures pair.
func (b *BinanceFuture) AssetsInfo(pair string) model.AssetInfo {
	return b.assetsInfo[pair]
}

func (b *BinanceFuture) formatPrice(pair string, value float64) string {
	if info, ok := b.assetsInfo[pair]; ok {
		value = common.AmountToLotSize(info.TickSize, info.QuotePrecision, value)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

func (b *BinanceFuture) formatQuantity(pair string, value float64) string {
	if info, ok := b.assetsInfo[pair]; ok {
		value = common.AmountToLotSize(info.StepSize, info.BaseAssetPrecision, value)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

func (b *BinanceFuture) validate(pair string, quantity float64) error {
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

// WalletBalance returns the futures wallet balances.
func (b *BinanceFuture) WalletBalance() (model.Account, error) {
	var account model.Account
	err := b.retrier.Do("walletBalance", "", func() error {
		balances, err := b.client.NewGetBalanceService().Do(b.ctx)
		if err != nil {
			return err
		}
		out := make([]model.Balance, 0, len(balances))
		for _, balance := range balances {
			free, _ := strconv.ParseFloat(balance.AvailableBalance, 64)
			total, _ := strconv.ParseFloat(balance.Balance, 64)
			out = append(out, model.Balance{
				Asset: balance.Asset,
				Free:  free,
				Lock:  total - free,
			})
		}
		account = model.Account{Balances: out}
		return nil
	})
	return account, err
}

// LastPrice returns the latest mark of a futures pair.
func (b *BinanceFuture) LastPrice(pair string) (float64, error) {
	var last float64
	err := b.retrier.Do("lastPrice", pair, func() error {
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

// Ticker returns the 24h statistics for a futures pair.
func (b *BinanceFuture) Ticker(pair string) (model.TickerInfo, error) {
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
		stat := stats[0]
		last, err := strconv.ParseFloat(stat.LastPrice, 64)
		if err != nil {
			return err
		}
		quoteVolume, _ := strconv.ParseFloat(stat.QuoteVolume, 64)
		info := b.assetsInfo[pair]
		ticker = model.TickerInfo{
			Pair:        pair,
			Internal:    stat.Symbol,
			Last:        last,
			QuoteVolume: quoteVolume,
			Time:        time.Unix(0, stat.CloseTime*int64(time.Millisecond)),
			TickSize:    info.TickSize,
			StepSize:    info.StepSize,
		}
		return nil
	})
	return ticker, err
}

// CandlesByLimit returns the last limit complete futures candles.
func (b *BinanceFuture) CandlesByLimit(pair, period string, limit int) ([]model.Candle, error) {
	var candles []model.Candle
	err := b.retrier.Do("candles", pair, func() error {
		data, err := b.client.NewKlinesService().
			Symbol(model.InternalPair(pair)).
			Interval(period).
			Limit(limit + 1).
			Do(b.ctx)
		if err != nil {
			return err
		}
		candles = candles[:0]
		for _, d := range data {
			candle := model.Candle{
				Pair: pair,
				Time: time.Unix(0, d.OpenTime*int64(time.Millisecond)),
			}
			candle.Open, _ = strconv.ParseFloat(d.Open, 64)
			candle.Close, _ = strconv.ParseFloat(d.Close, 64)
			candle.High, _ = strconv.ParseFloat(d.High, 64)
			candle.Low, _ = strconv.ParseFloat(d.Low, 64)
			candle.Volume, _ = strconv.ParseFloat(d.Volume, 64)
			candle.Complete = true
			candles = append(candles, candle)
		}
		if len(candles) > 0 {
			candles = candles[:len(candles)-1]
		}
		return nil
	})
	return candles, err
}

// Position returns the current position on a pair.
func (b *BinanceFuture) Position(pair string) (model.Position, error) {
	var position model.Position
	err := b.retrier.Do("position", pair, func() error {
		risks, err := b.client.NewGetPositionRiskService().
			Symbol(model.InternalPair(pair)).Do(b.ctx)
		if err != nil {
			return err
		}
		if len(risks) == 0 {
			position = model.Position{Pair: pair}
			return nil
		}
		risk := risks[0]
		amount, _ := strconv.ParseFloat(risk.PositionAmt, 64)
		entry, _ := strconv.ParseFloat(risk.EntryPrice, 64)
		leverage, _ := strconv.Atoi(risk.Leverage)
		position = model.Position{
			Pair:       pair,
			Amount:     amount,
			EntryPrice: entry,
			Leverage:   leverage,
			Isolated:   risk.MarginType == "isolated",
		}
		return nil
	})
	return position, err
}

// SetLeverage sets the leverage multiplier on a pair.
func (b *BinanceFuture) SetLeverage(pair string, leverage int) error {
	if leverage < 1 || leverage > 125 {
		return classified("setLeverage", pair,
			fmt.Errorf("%w: leverage %d out of range", ErrInvalidQuantity, leverage))
	}
	return b.retrier.Do("setLeverage", pair, func() error {
		_, err := b.client.NewChangeLeverageService().
			Symbol(model.InternalPair(pair)).
			Leverage(leverage).
			Do(b.ctx)
		return err
	})
}

// SetMarginType sets the margin mode on a pair. Asking for the mode
// already in force is not an error.
func (b *BinanceFuture) SetMarginType(pair string, margin service.MarginType) error {
	return b.retrier.Do("setMarginType", pair, func() error {
		err := b.client.NewChangeMarginTypeService().
			Symbol(model.InternalPair(pair)).
			MarginType(futures.MarginType(margin)).
			Do(b.ctx)
		if err != nil {
			var apiErr *common.APIError
			if errors.As(err, &apiErr) && apiErr.Code == ErrNoNeedChangeMarginType {
				return nil
			}
		}
		return err
	})
}

// CreateOrderMarket places a futures market order.
func (b *BinanceFuture) CreateOrderMarket(side model.SideType, pair string,
	quantity float64, reduceOnly bool) (model.Order, error) {

	if err := b.validate(pair, quantity); err != nil {
		return model.Order{}, classified("createMarket", pair, err)
	}

	var out model.Order
	err := b.retrier.Do("createMarket", pair, func() error {
		svc := b.client.NewCreateOrderService().
			Symbol(model.InternalPair(pair)).
			Type(futures.OrderTypeMarket).
			Side(futures.SideType(side)).
			Quantity(b.formatQuantity(pair, quantity)).
			NewOrderResponseType(futures.NewOrderRespTypeRESULT)
		if reduceOnly {
			svc.ReduceOnly(true)
		}
		order, err := svc.Do(b.ctx)
		if err != nil {
			return err
		}
		cost, _ := strconv.ParseFloat(order.CumQuote, 64)
		executed, _ := strconv.ParseFloat(order.ExecutedQuantity, 64)
		price := 0.0
		if executed > 0 {
			price = cost / executed
		}
		out = model.Order{
			ExchangeID:       order.OrderID,
			CreatedAt:        time.Unix(0, order.UpdateTime*int64(time.Millisecond)),
			UpdatedAt:        time.Unix(0, order.UpdateTime*int64(time.Millisecond)),
			Pair:             pair,
			Side:             model.SideType(order.Side),
			Type:             model.OrderType(order.Type),
			Status:           model.OrderStatusType(order.Status),
			Price:            price,
			Quantity:         executed,
			ExecutedQuantity: executed,
			ReduceOnly:       reduceOnly,
		}
		return nil
	})
	return out, err
}

// CreateOrderLimit places a GTC futures limit order.
func (b *BinanceFuture) CreateOrderLimit(side model.SideType, pair string,
	quantity, limit float64, reduceOnly bool) (model.Order, error) {

	if err := b.validate(pair, quantity); err != nil {
		return model.Order{}, classified("createLimit", pair, err)
	}

	var out model.Order
	err := b.retrier.Do("createLimit", pair, func() error {
		svc := b.client.NewCreateOrderService().
			Symbol(model.InternalPair(pair)).
			Type(futures.OrderTypeLimit).
			TimeInForce(futures.TimeInForceTypeGTC).
			Side(futures.SideType(side)).
			Quantity(b.formatQuantity(pair, quantity)).
			Price(b.formatPrice(pair, limit))
		if reduceOnly {
			svc.ReduceOnly(true)
		}
		order, err := svc.Do(b.ctx)
		if err != nil {
			return err
		}
		price, _ := strconv.ParseFloat(order.Price, 64)
		qty, _ := strconv.ParseFloat(order.OrigQuantity, 64)
		out = model.Order{
			ExchangeID: order.OrderID,
			CreatedAt:  time.Unix(0, order.UpdateTime*int64(time.Millisecond)),
			UpdatedAt:  time.Unix(0, order.UpdateTime*int64(time.Millisecond)),
			Pair:       pair,
			Side:       model.SideType(order.Side),
			Type:       model.OrderType(order.Type),
			Status:     model.OrderStatusType(order.Status),
			Price:      price,
			Quantity:   qty,
			ReduceOnly: reduceOnly,
		}
		return nil
	})
	return out, err
}

// CreateOrderStopMarket places a stop-market trigger order.
func (b *BinanceFuture) CreateOrderStopMarket(side model.SideType, pair string,
	quantity, stop float64, reduceOnly bool) (model.Order, error) {

	if err := b.validate(pair, quantity); err != nil {
		return model.Order{}, classified("createStopMarket", pair, err)
	}

	var out model.Order
	err := b.retrier.Do("createStopMarket", pair, func() error {
		svc := b.client.NewCreateOrderService().
			Symbol(model.InternalPair(pair)).
			Type(futures.OrderTypeStopMarket).
			Side(futures.SideType(side)).
			Quantity(b.formatQuantity(pair, quantity)).
			StopPrice(b.formatPrice(pair, stop))
		if reduceOnly {
			svc.ReduceOnly(true)
		}
		order, err := svc.Do(b.ctx)
		if err != nil {
			return err
		}
		qty, _ := strconv.ParseFloat(order.OrigQuantity, 64)
		out = model.Order{
			ExchangeID: order.OrderID,
			CreatedAt:  time.Unix(0, order.UpdateTime*int64(time.Millisecond)),
			UpdatedAt:  time.Unix(0, order.UpdateTime*int64(time.Millisecond)),
			Pair:       pair,
			Side:       model.SideType(order.Side),
			Type:       model.OrderType(order.Type),
			Status:     model.OrderStatusType(order.Status),
			Quantity:   qty,
			Stop:       &stop,
			ReduceOnly: reduceOnly,
		}
		return nil
	})
	return out, err
}

// OpenOrders lists the live futures orders on a pair.
func (b *BinanceFuture) OpenOrders(pair string) ([]model.Order, error) {
	var orders []model.Order
	err := b.retrier.Do("openOrders", pair, func() error {
		result, err := b.client.NewListOpenOrdersService().
			Symbol(model.InternalPair(pair)).Do(b.ctx)
		if err != nil {
			return err
		}
		orders = orders[:0]
		for _, order := range result {
			orders = append(orders, newFutureOrder(pair, order))
		}
		return nil
	})
	return orders, err
}

func newFutureOrder(pair string, order *futures.Order) model.Order {
	price, _ := strconv.ParseFloat(order.Price, 64)
	quantity, _ := strconv.ParseFloat(order.OrigQuantity, 64)
	executed, _ := strconv.ParseFloat(order.ExecutedQuantity, 64)
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
		ReduceOnly:       order.ReduceOnly,
	}
	if stop, err := strconv.ParseFloat(order.StopPrice, 64); err == nil && stop > 0 {
		o.Stop = &stop
	}
	return o
}

// CancelOrder cancels a single open order by id.
func (b *BinanceFuture) CancelOrder(pair string, id int64) error {
	return b.retrier.Do("cancelOrder", pair, func() error {
		_, err := b.client.NewCancelOrderService().
			Symbol(model.InternalPair(pair)).
			OrderID(id).
			Do(b.ctx)
		return err
	})
}

// CancelAllOrders cancels every open order on a pair.
func (b *BinanceFuture) CancelAllOrders(pair string) error {
	return b.retrier.Do("cancelAll", pair, func() error {
		return b.client.NewCancelAllOpenOrdersService().
			Symbol(model.InternalPair(pair)).
			Do(b.ctx)
	})
}

// ClosePosition flattens the position on a pair with a reduce-only
// market order. A flat position is a no-op.
func (b *BinanceFuture) ClosePosition(pair string) error {
	position, err := b.Position(pair)
	if err != nil {
		return err
	}
	if !position.Open() {
		return nil
	}

	side := model.SideTypeSell
	if position.Amount < 0 {
		side = model.SideTypeBuy
	}
	_, err = b.CreateOrderMarket(side, pair, math.Abs(position.Amount), true)
	return err
}
