package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"crypto-concierge/internal/domain"
	"crypto-concierge/internal/provider"

	"go.opentelemetry.io/otel/trace/noop"
)

type stubMarket struct {
	mu          sync.Mutex
	coins       []domain.CoinStat
	coinsOrigin domain.Origin
	klines      map[string][]domain.Candle
	klineDelay  time.Duration
	topCalls    int
}

func (m *stubMarket) TopCoins(ctx context.Context, n int) provider.SourceResult[[]domain.CoinStat] {
	m.mu.Lock()
	m.topCalls++
	m.mu.Unlock()

	out := make([]domain.CoinStat, len(m.coins))
	copy(out, m.coins)
	if m.coinsOrigin == domain.OriginFallback {
		return provider.Fallback(out)
	}
	return provider.Live(out)
}

func (m *stubMarket) Klines(ctx context.Context, symbol string, limit int) provider.SourceResult[[]domain.Candle] {
	if m.klineDelay > 0 {
		time.Sleep(m.klineDelay)
	}
	candles := m.klines[symbol]
	if len(candles) == 0 {
		return provider.Fallback[[]domain.Candle](nil)
	}
	return provider.Live(candles)
}

func risingCandles(symbol string, n int) []domain.Candle {
	candles := make([]domain.Candle, n)
	price := 100.0
	for i := range candles {
		price *= 1.01
		candles[i] = domain.Candle{Symbol: symbol, Close: price}
	}
	return candles
}

func coin(symbol string, price, changePct, volume float64) domain.CoinStat {
	return domain.CoinStat{
		Symbol:       symbol,
		Name:         domain.DisplayName(symbol),
		Price:        price,
		ChangePct24h: changePct,
		Volume24h:    volume,
	}
}

func newTestService(market MarketSource, freshness time.Duration) *MarketService {
	return NewMarketService(noop.NewTracerProvider().Tracer("test"), market, nil, 10, freshness, 40)
}

func TestRefreshBuildsCompleteSnapshot(t *testing.T) {
	market := &stubMarket{
		coins: []domain.CoinStat{
			coin("BTC", 50000, 6.2, 1000),
			coin("ETH", 3000, -1.0, 500),
			coin("SOL", 150, -7.5, 200),
		},
		klines: map[string][]domain.Candle{
			"BTC": risingCandles("BTC", 48),
		},
	}
	svc := newTestService(market, time.Minute)

	snap := svc.Refresh(context.Background())
	if snap == nil || len(snap.Coins) != 3 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.Origin != domain.OriginLive {
		t.Fatalf("expected live origin, got %s", snap.Origin)
	}

	byThe := map[string]domain.CoinStat{}
	for _, c := range snap.Coins {
		byThe[c.Symbol] = c
	}

	if byThe["BTC"].Mood != domain.MoodBullish {
		t.Fatalf("BTC +6.2%% should be bullish, got %s", byThe["BTC"].Mood)
	}
	if byThe["ETH"].Mood != domain.MoodNeutral {
		t.Fatalf("ETH -1%% should be neutral, got %s", byThe["ETH"].Mood)
	}
	if byThe["SOL"].Mood != domain.MoodBearish {
		t.Fatalf("SOL -7.5%% should be bearish, got %s", byThe["SOL"].Mood)
	}

	if byThe["BTC"].MarketCapEst != 1000*40 {
		t.Fatalf("market cap estimate wrong: %f", byThe["BTC"].MarketCapEst)
	}
	if byThe["BTC"].Indicators.RSI14 <= 50 {
		t.Fatalf("rising series should read RSI above 50, got %f", byThe["BTC"].Indicators.RSI14)
	}
}

func TestRefreshSubstitutesNeutralIndicatorsWithoutCandles(t *testing.T) {
	market := &stubMarket{
		coins: []domain.CoinStat{coin("BTC", 50000, 2.0, 1000)},
	}
	svc := newTestService(market, time.Minute)

	snap := svc.Refresh(context.Background())
	ind := snap.Coins[0].Indicators
	if ind.RSI14 != 50 {
		t.Fatalf("expected neutral RSI 50, got %f", ind.RSI14)
	}
	if ind.SMA20 != 0 || ind.MACD != 0 {
		t.Fatalf("expected zeroed indicators, got %+v", ind)
	}
	if snap.Origin != domain.OriginLive {
		t.Fatalf("candle failure must not flip ticker origin, got %s", snap.Origin)
	}
}

func TestAggregateStats(t *testing.T) {
	market := &stubMarket{
		coins: []domain.CoinStat{
			coin("BTC", 50000, 2.0, 600),
			coin("ETH", 3000, 8.0, 300),
			coin("SOL", 150, -9.0, 100),
		},
	}
	svc := newTestService(market, time.Minute)

	snap := svc.Refresh(context.Background())
	stats := snap.Stats

	if stats.TotalVolume24h != 1000 {
		t.Fatalf("total volume wrong: %f", stats.TotalVolume24h)
	}
	// BTC holds 600 of the 1000 total volume, so 60 percent of estimated cap.
	if stats.BTCDominancePct < 59.999 || stats.BTCDominancePct > 60.001 {
		t.Fatalf("dominance wrong: %f", stats.BTCDominancePct)
	}
	if stats.AvgChangePct24h < 0.333 || stats.AvgChangePct24h > 0.334 {
		t.Fatalf("avg change wrong: %f", stats.AvgChangePct24h)
	}
	if stats.GlobalMood != domain.MoodNeutral {
		t.Fatalf("avg +0.33%% should read neutral, got %s", stats.GlobalMood)
	}
	// Trending orders by magnitude of 24h move regardless of sign.
	want := []string{"SOL", "ETH", "BTC"}
	for i, sym := range want {
		if stats.TrendingSymbols[i] != sym {
			t.Fatalf("trending order %v, want %v", stats.TrendingSymbols, want)
		}
	}
}

func TestSnapshotReusesFreshResult(t *testing.T) {
	market := &stubMarket{coins: []domain.CoinStat{coin("BTC", 50000, 1.0, 100)}}
	svc := newTestService(market, time.Minute)

	first := svc.Snapshot(context.Background())
	second := svc.Snapshot(context.Background())
	if first != second {
		t.Fatal("fresh snapshot should be reused")
	}
	if market.topCalls != 1 {
		t.Fatalf("expected 1 upstream call, got %d", market.topCalls)
	}
}

func TestSnapshotRefreshesWhenStale(t *testing.T) {
	market := &stubMarket{coins: []domain.CoinStat{coin("BTC", 50000, 1.0, 100)}}
	svc := newTestService(market, time.Minute)

	base := time.Now()
	svc.now = func() time.Time { return base }
	svc.Snapshot(context.Background())

	svc.now = func() time.Time { return base.Add(2 * time.Minute) }
	svc.Snapshot(context.Background())

	if market.topCalls != 2 {
		t.Fatalf("expected stale snapshot to trigger rebuild, got %d calls", market.topCalls)
	}
}

func TestReadersNeverSeePartialSnapshot(t *testing.T) {
	market := &stubMarket{
		coins: []domain.CoinStat{
			coin("BTC", 50000, 1.0, 100),
			coin("ETH", 3000, 1.0, 50),
		},
		klines: map[string][]domain.Candle{
			"BTC": risingCandles("BTC", 30),
			"ETH": risingCandles("ETH", 30),
		},
		klineDelay: 5 * time.Millisecond,
	}
	svc := newTestService(market, time.Nanosecond)

	seed := svc.Refresh(context.Background())
	if seed == nil {
		t.Fatal("seed snapshot missing")
	}

	stop := make(chan struct{})
	var readerWg sync.WaitGroup
	for r := 0; r < 4; r++ {
		readerWg.Add(1)
		go func() {
			defer readerWg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := svc.Current()
				if snap == nil {
					t.Error("reader observed nil snapshot after seed")
					return
				}
				if len(snap.Coins) != 2 {
					t.Errorf("reader observed partial snapshot: %d coins", len(snap.Coins))
					return
				}
				for _, c := range snap.Coins {
					if c.Mood == "" {
						t.Errorf("reader observed coin without mood: %+v", c)
						return
					}
				}
			}
		}()
	}

	for i := 0; i < 10; i++ {
		svc.Refresh(context.Background())
	}
	close(stop)
	readerWg.Wait()
}

func TestCoinDetail(t *testing.T) {
	market := &stubMarket{coins: []domain.CoinStat{coin("BTC", 50000, 1.0, 100)}}
	svc := newTestService(market, time.Minute)

	c, err := svc.CoinDetail(context.Background(), "BTC")
	if err != nil {
		t.Fatalf("CoinDetail: %v", err)
	}
	if c.Name != "Bitcoin" {
		t.Fatalf("unexpected coin: %+v", c)
	}

	if _, err := svc.CoinDetail(context.Background(), "SHIB"); err == nil {
		t.Fatal("expected error for untracked symbol")
	}
}

func TestFallbackOriginPropagates(t *testing.T) {
	market := &stubMarket{
		coins:       []domain.CoinStat{coin("BTC", 50000, 1.0, 100)},
		coinsOrigin: domain.OriginFallback,
	}
	svc := newTestService(market, time.Minute)

	snap := svc.Refresh(context.Background())
	if snap.Origin != domain.OriginFallback {
		t.Fatalf("expected fallback origin, got %s", snap.Origin)
	}
}
