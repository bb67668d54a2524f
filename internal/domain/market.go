package domain

import "time"

// Candle represents a single OHLCV candle for an asset at a given interval.
type Candle struct {
	Symbol   string    `json:"symbol"`
	Interval string    `json:"interval"`
	OpenTime time.Time `json:"open_time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// Indicators holds the best-effort technical estimates derived from a short
// candle window. They are not exchange-grade analytics.
type Indicators struct {
	SMA20      float64 `json:"sma_20"`
	EMA12      float64 `json:"ema_12"`
	RSI14      float64 `json:"rsi_14"`
	MACD       float64 `json:"macd"`
	MACDSignal float64 `json:"macd_signal"`
}

// NeutralIndicators is used when candle data for a symbol is unavailable.
func NeutralIndicators() Indicators {
	return Indicators{RSI14: 50}
}

// CoinStat is one row of the market snapshot.
type CoinStat struct {
	Symbol       string     `json:"symbol"`
	Name         string     `json:"name"`
	Price        float64    `json:"price"`
	Change24h    float64    `json:"change_24h"`
	ChangePct24h float64    `json:"change_pct_24h"`
	Volume24h    float64    `json:"volume_24h"`
	MarketCapEst float64    `json:"market_cap_est"`
	Mood         Mood       `json:"mood"`
	Indicators   Indicators `json:"indicators"`
}

// AggregateStats are the derived global figures for one snapshot.
type AggregateStats struct {
	TotalVolume24h   float64  `json:"total_volume_24h"`
	MarketCapEst     float64  `json:"market_cap_est"`
	BTCDominancePct  float64  `json:"btc_dominance_pct"`
	AvgChangePct24h  float64  `json:"avg_change_pct_24h"`
	GlobalMood       Mood     `json:"global_mood"`
	TrendingSymbols  []string `json:"trending_symbols"`
}

// MarketSnapshot is the aggregator's unit of publication. It is built fully
// off to the side and swapped as a whole; readers never see a partial one.
type MarketSnapshot struct {
	Coins   []CoinStat     `json:"coins"`
	Stats   AggregateStats `json:"stats"`
	Origin  Origin         `json:"origin"`
	BuiltAt time.Time      `json:"built_at"`
}

// Age reports how old the snapshot is at the given instant.
func (s *MarketSnapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.BuiltAt)
}

// BinancePair maps internal symbols to Binance USDT trading pairs.
var BinancePair = map[string]string{
	"BTC":   "BTCUSDT",
	"ETH":   "ETHUSDT",
	"SOL":   "SOLUSDT",
	"XRP":   "XRPUSDT",
	"ADA":   "ADAUSDT",
	"DOGE":  "DOGEUSDT",
	"DOT":   "DOTUSDT",
	"AVAX":  "AVAXUSDT",
	"LINK":  "LINKUSDT",
	"MATIC": "MATICUSDT",
}

// BinancePairToSymbol is the reverse mapping.
var BinancePairToSymbol map[string]string

func init() {
	BinancePairToSymbol = make(map[string]string, len(BinancePair))
	for sym, pair := range BinancePair {
		BinancePairToSymbol[pair] = sym
	}
}

// SupportedSymbols lists all tracked crypto symbols.
var SupportedSymbols = []string{
	"BTC", "ETH", "SOL", "XRP", "ADA",
	"DOGE", "DOT", "AVAX", "LINK", "MATIC",
}

var displayNames = map[string]string{
	"BTC":   "Bitcoin",
	"ETH":   "Ethereum",
	"SOL":   "Solana",
	"XRP":   "XRP",
	"ADA":   "Cardano",
	"DOGE":  "Dogecoin",
	"DOT":   "Polkadot",
	"AVAX":  "Avalanche",
	"LINK":  "Chainlink",
	"MATIC": "Polygon",
}

// DisplayName returns the human-readable name for a symbol. Unknown symbols
// pass through unchanged.
func DisplayName(symbol string) string {
	if name, ok := displayNames[symbol]; ok {
		return name
	}
	return symbol
}
