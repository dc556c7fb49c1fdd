package model

import (
	"fmt"
	"strings"
	"time"
)

// Balance of a single asset in the account wallet.
type Balance struct {
	Asset    string
	Free     float64
	Lock     float64
	Leverage float64
}

// Total returns free plus locked funds.
func (b Balance) Total() float64 {
	return b.Free + b.Lock
}

// AssetInfo holds the exchange filters for a trading pair.
type AssetInfo struct {
	BaseAsset  string
	QuoteAsset string

	MinPrice    float64
	MaxPrice    float64
	MinQuantity float64
	MaxQuantity float64
	StepSize    float64
	TickSize    float64
	MinNotional float64

	QuotePrecision     int
	BaseAssetPrecision int
}

// TickerInfo is a point-in-time 24h ticker snapshot for a pair.
type TickerInfo struct {
	Pair        string
	Internal    string
	Last        float64
	Bid         float64
	Ask         float64
	QuoteVolume float64
	Time        time.Time
	TickSize    float64
	StepSize    float64
}

// Candle is a single OHLCV bar.
type Candle struct {
	Pair     string
	Time     time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
	Complete bool
}

func (c Candle) Empty() bool {
	return c.Time.IsZero()
}

// Position is an open futures position on a pair.
type Position struct {
	Pair       string
	Amount     float64
	EntryPrice float64
	Leverage   int
	Isolated   bool
}

// Open reports whether any contracts are held.
func (p Position) Open() bool {
	return p.Amount != 0
}

// BookLevel is a single price level of an order book snapshot.
type BookLevel struct {
	Price    float64
	Quantity float64
}

// Account aggregates wallet balances.
type Account struct {
	Balances []Balance
}

// Balance returns the balances for the given asset and quote tickers.
func (a Account) Balance(assetTick, quoteTick string) (Balance, Balance) {
	var asset, quote Balance
	for _, b := range a.Balances {
		switch b.Asset {
		case assetTick:
			asset = b
		case quoteTick:
			quote = b
		}
	}
	return asset, quote
}

// Equity returns the free balance of a single asset.
func (a Account) Equity(asset string) float64 {
	for _, b := range a.Balances {
		if b.Asset == asset {
			return b.Free
		}
	}
	return 0
}

// SplitPair breaks "BTC/USDT" into its base and quote assets.
func SplitPair(pair string) (base, quote string) {
	parts := strings.SplitN(pair, "/", 2)
	if len(parts) != 2 {
		return pair, ""
	}
	return parts[0], parts[1]
}

// InternalPair converts "BTC/USDT" to the exchange flat form "BTCUSDT".
func InternalPair(pair string) string {
	return strings.ReplaceAll(pair, "/", "")
}

// Pair builds the slash form from base and quote assets.
func Pair(base, quote string) string {
	return fmt.Sprintf("%s/%s", base, quote)
}

// TelegramSettings configures the chat notifier.
type TelegramSettings struct {
	Enabled bool
	Token   string
	Users   []int
}

// Settings carries process-level configuration.
type Settings struct {
	Pairs    []string
	Telegram TelegramSettings
}
