package provider

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"time"

	"crypto-concierge/internal/domain"
	"crypto-concierge/internal/fetch"

	"go.opentelemetry.io/otel/trace"
)

const binanceBaseURL = "https://api.binance.com"

// MarketProvider fetches ticker and kline data from the Binance public API.
// Persistent upstream failure degrades to the static fallback dataset; the
// caller is told via the result origin, never via an error.
type MarketProvider struct {
	fetcher *fetch.Client
	baseURL string
	tracer  trace.Tracer
	limiter *fetch.RateLimiter
}

// NewMarketProvider creates a provider with built-in rate limiting
// (20 requests per minute, one token every 3 seconds).
func NewMarketProvider(tracer trace.Tracer, fetcher *fetch.Client) *MarketProvider {
	return &MarketProvider{
		fetcher: fetcher,
		baseURL: binanceBaseURL,
		tracer:  tracer,
		limiter: fetch.NewRateLimiter(20, 3*time.Second),
	}
}

type tickerRow struct {
	Symbol             string `json:"symbol"`
	LastPrice          string `json:"lastPrice"`
	PriceChange        string `json:"priceChange"`
	PriceChangePercent string `json:"priceChangePercent"`
	QuoteVolume        string `json:"quoteVolume"`
}

// TopCoins returns the n tracked coins with the largest 24h quote volume.
func (p *MarketProvider) TopCoins(ctx context.Context, n int) SourceResult[[]domain.CoinStat] {
	_, span := p.tracer.Start(ctx, "binance.top-coins")
	defer span.End()

	if n <= 0 || n > len(domain.SupportedSymbols) {
		n = len(domain.SupportedSymbols)
	}

	if err := p.limiter.Wait(ctx); err != nil {
		log.Printf("binance ticker rate limit wait: %v", err)
		return Fallback(FallbackCoins(n))
	}

	url := fmt.Sprintf("%s/api/v3/ticker/24hr", p.baseURL)
	var rows []tickerRow
	if err := p.fetcher.GetJSON(ctx, url, &rows); err != nil {
		log.Printf("binance ticker fetch degraded to fallback: %v", err)
		return Fallback(FallbackCoins(n))
	}

	coins := make([]domain.CoinStat, 0, n)
	for _, row := range rows {
		symbol, ok := domain.BinancePairToSymbol[row.Symbol]
		if !ok {
			continue
		}
		coins = append(coins, domain.CoinStat{
			Symbol:       symbol,
			Name:         domain.DisplayName(symbol),
			Price:        parseFloat(row.LastPrice),
			Change24h:    parseFloat(row.PriceChange),
			ChangePct24h: parseFloat(row.PriceChangePercent),
			Volume24h:    parseFloat(row.QuoteVolume),
		})
	}
	if len(coins) == 0 {
		log.Printf("binance ticker payload had no tracked pairs, using fallback")
		return Fallback(FallbackCoins(n))
	}

	sort.Slice(coins, func(i, j int) bool { return coins[i].Volume24h > coins[j].Volume24h })
	if len(coins) > n {
		coins = coins[:n]
	}
	return Live(coins)
}

// Klines returns recent hourly candles for a symbol. On failure the result
// is an empty fallback; the aggregator substitutes neutral indicators.
func (p *MarketProvider) Klines(ctx context.Context, symbol string, limit int) SourceResult[[]domain.Candle] {
	_, span := p.tracer.Start(ctx, "binance.klines")
	defer span.End()

	pair, ok := domain.BinancePair[symbol]
	if !ok {
		return Fallback[[]domain.Candle](nil)
	}
	if limit <= 0 || limit > 500 {
		limit = 48
	}

	if err := p.limiter.Wait(ctx); err != nil {
		log.Printf("binance klines rate limit wait for %s: %v", symbol, err)
		return Fallback[[]domain.Candle](nil)
	}

	url := fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=1h&limit=%d", p.baseURL, pair, limit)

	// Binance klines are positional arrays with numbers encoded as strings.
	var raw [][]any
	if err := p.fetcher.GetJSON(ctx, url, &raw); err != nil {
		log.Printf("binance klines fetch for %s degraded: %v", symbol, err)
		return Fallback[[]domain.Candle](nil)
	}

	candles := make([]domain.Candle, 0, len(raw))
	for _, row := range raw {
		if len(row) < 6 {
			continue
		}
		openTime, ok := row[0].(float64)
		if !ok {
			continue
		}
		candles = append(candles, domain.Candle{
			Symbol:   symbol,
			Interval: "1h",
			OpenTime: time.UnixMilli(int64(openTime)).UTC(),
			Open:     anyToFloat(row[1]),
			High:     anyToFloat(row[2]),
			Low:      anyToFloat(row[3]),
			Close:    anyToFloat(row[4]),
			Volume:   anyToFloat(row[5]),
		})
	}
	if len(candles) == 0 {
		return Fallback[[]domain.Candle](nil)
	}
	return Live(candles)
}

func parseFloat(v string) float64 {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return f
}

func anyToFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		return parseFloat(t)
	default:
		return 0
	}
}
