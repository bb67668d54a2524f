package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"crypto-concierge/internal/domain"
	"crypto-concierge/internal/provider"
	"crypto-concierge/internal/ta"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// MarketSource is the upstream the aggregator builds snapshots from.
type MarketSource interface {
	TopCoins(ctx context.Context, n int) provider.SourceResult[[]domain.CoinStat]
	Klines(ctx context.Context, symbol string, limit int) provider.SourceResult[[]domain.Candle]
}

// SnapshotCache is the slice of the redis client the aggregator uses to
// persist the latest snapshot across restarts.
type SnapshotCache interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

const (
	snapshotCacheKey = "snapshot:latest"

	// A coin tilts bullish or bearish only past a 5 percent daily move.
	moodThresholdPct = 5.0

	trendingCount = 3
	klineWindow   = 48
)

// MarketService maintains an atomically swapped market snapshot. Readers
// always see either the previous complete snapshot or the next complete
// one, never a partially built mix.
type MarketService struct {
	tracer     trace.Tracer
	market     MarketSource
	cache      SnapshotCache
	topN       int
	freshness  time.Duration
	volumeMult float64

	snapshot  atomic.Pointer[domain.MarketSnapshot]
	refreshMu sync.Mutex

	now func() time.Time
}

func NewMarketService(tracer trace.Tracer, market MarketSource, cache SnapshotCache, topN int, freshness time.Duration, volumeMult float64) *MarketService {
	if topN <= 0 {
		topN = len(domain.SupportedSymbols)
	}
	if freshness <= 0 {
		freshness = time.Minute
	}
	if volumeMult <= 0 {
		volumeMult = 40
	}
	return &MarketService{
		tracer:     tracer,
		market:     market,
		cache:      cache,
		topN:       topN,
		freshness:  freshness,
		volumeMult: volumeMult,
		now:        time.Now,
	}
}

// Snapshot returns the current snapshot, refreshing first when the held one
// is missing or older than the freshness window.
func (s *MarketService) Snapshot(ctx context.Context) *domain.MarketSnapshot {
	snap := s.snapshot.Load()
	if snap != nil && snap.Age(s.now()) < s.freshness {
		return snap
	}
	return s.Refresh(ctx)
}

// Current returns whatever snapshot is held without triggering a refresh.
// It may be nil before the first build.
func (s *MarketService) Current() *domain.MarketSnapshot {
	return s.snapshot.Load()
}

// CoinDetail returns the snapshot row for one symbol.
func (s *MarketService) CoinDetail(ctx context.Context, symbol string) (domain.CoinStat, error) {
	snap := s.Snapshot(ctx)
	if snap == nil {
		return domain.CoinStat{}, fmt.Errorf("no market snapshot available")
	}
	for _, coin := range snap.Coins {
		if coin.Symbol == symbol {
			return coin, nil
		}
	}
	return domain.CoinStat{}, fmt.Errorf("symbol %s not in snapshot", symbol)
}

// Refresh builds a complete snapshot off to the side and swaps it in as one
// unit. Concurrent callers coalesce: whoever holds the lock builds, the rest
// wait and reuse the fresh result.
func (s *MarketService) Refresh(ctx context.Context) *domain.MarketSnapshot {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	// Another caller may have finished a build while we waited.
	if snap := s.snapshot.Load(); snap != nil && snap.Age(s.now()) < s.freshness {
		return snap
	}

	ctx, span := s.tracer.Start(ctx, "market.refresh")
	defer span.End()

	next := s.build(ctx)
	span.SetAttributes(
		attribute.String("snapshot.origin", string(next.Origin)),
		attribute.Int("snapshot.coins", len(next.Coins)),
	)

	s.snapshot.Store(next)
	s.persist(ctx, next)
	return next
}

func (s *MarketService) build(ctx context.Context) *domain.MarketSnapshot {
	tickers := s.market.TopCoins(ctx, s.topN)
	coins := tickers.Value

	// Indicator windows fetch concurrently, one goroutine per coin. Candle
	// failures leave that coin on neutral indicators rather than failing
	// the whole snapshot.
	var wg sync.WaitGroup
	for i := range coins {
		wg.Add(1)
		go func(coin *domain.CoinStat) {
			defer wg.Done()
			coin.Indicators = s.indicatorsFor(ctx, coin.Symbol)
			coin.Mood = moodForChange(coin.ChangePct24h)
			coin.MarketCapEst = coin.Volume24h * s.volumeMult
		}(&coins[i])
	}
	wg.Wait()

	return &domain.MarketSnapshot{
		Coins:   coins,
		Stats:   s.aggregate(coins),
		Origin:  tickers.Origin,
		BuiltAt: s.now(),
	}
}

func (s *MarketService) indicatorsFor(ctx context.Context, symbol string) domain.Indicators {
	res := s.market.Klines(ctx, symbol, klineWindow)
	if len(res.Value) == 0 {
		return domain.NeutralIndicators()
	}
	closes := make([]float64, len(res.Value))
	for i, c := range res.Value {
		closes[i] = c.Close
	}
	macd, signal := ta.MACDLast(closes)
	return domain.Indicators{
		SMA20:      ta.SMA(closes, 20),
		EMA12:      ta.EMALast(closes, 12),
		RSI14:      ta.RSILast(closes, 14),
		MACD:       macd,
		MACDSignal: signal,
	}
}

func (s *MarketService) aggregate(coins []domain.CoinStat) domain.AggregateStats {
	if len(coins) == 0 {
		return domain.AggregateStats{GlobalMood: domain.MoodNeutral}
	}

	var totalVolume, totalCap, btcCap, changeSum float64
	for _, c := range coins {
		totalVolume += c.Volume24h
		totalCap += c.MarketCapEst
		changeSum += c.ChangePct24h
		if c.Symbol == "BTC" {
			btcCap = c.MarketCapEst
		}
	}

	var dominance float64
	if totalCap > 0 {
		dominance = btcCap / totalCap * 100
	}
	avgChange := changeSum / float64(len(coins))

	trending := make([]domain.CoinStat, len(coins))
	copy(trending, coins)
	sort.Slice(trending, func(i, j int) bool {
		return math.Abs(trending[i].ChangePct24h) > math.Abs(trending[j].ChangePct24h)
	})
	k := trendingCount
	if k > len(trending) {
		k = len(trending)
	}
	symbols := make([]string, 0, k)
	for _, c := range trending[:k] {
		symbols = append(symbols, c.Symbol)
	}

	return domain.AggregateStats{
		TotalVolume24h:  totalVolume,
		MarketCapEst:    totalCap,
		BTCDominancePct: dominance,
		AvgChangePct24h: avgChange,
		GlobalMood:      moodForChange(avgChange),
		TrendingSymbols: symbols,
	}
}

func moodForChange(changePct float64) domain.Mood {
	switch {
	case changePct >= moodThresholdPct:
		return domain.MoodBullish
	case changePct <= -moodThresholdPct:
		return domain.MoodBearish
	default:
		return domain.MoodNeutral
	}
}

// RestoreCached loads the last persisted snapshot so the service answers
// immediately after a restart while the first live build runs.
func (s *MarketService) RestoreCached(ctx context.Context) {
	if s.cache == nil {
		return
	}
	raw, err := s.cache.Get(ctx, snapshotCacheKey).Result()
	if err != nil {
		if err != redis.Nil {
			log.Printf("snapshot cache read failed: %v", err)
		}
		return
	}
	var snap domain.MarketSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		log.Printf("snapshot cache payload unreadable: %v", err)
		return
	}
	// Only seed when nothing newer was built in the meantime.
	if current := s.snapshot.Load(); current == nil || current.BuiltAt.Before(snap.BuiltAt) {
		s.snapshot.Store(&snap)
	}
}

func (s *MarketService) persist(ctx context.Context, snap *domain.MarketSnapshot) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		log.Printf("snapshot marshal failed: %v", err)
		return
	}
	if err := s.cache.Set(ctx, snapshotCacheKey, payload, s.freshness*4).Err(); err != nil {
		log.Printf("snapshot cache write failed: %v", err)
	}
}
