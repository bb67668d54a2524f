package provider

import (
	"time"

	"crypto-concierge/internal/domain"
)

// Static fallback datasets. Values are deliberately conservative and stable:
// they exist so that callers always have something coherent to show, tagged
// as degraded, when every retry against the live API is spent.

var fallbackCoins = []domain.CoinStat{
	{Symbol: "BTC", Name: "Bitcoin", Price: 65000, Volume24h: 28_000_000_000},
	{Symbol: "ETH", Name: "Ethereum", Price: 3400, Volume24h: 15_000_000_000},
	{Symbol: "SOL", Name: "Solana", Price: 150, Volume24h: 3_500_000_000},
	{Symbol: "XRP", Name: "XRP", Price: 0.52, Volume24h: 1_800_000_000},
	{Symbol: "ADA", Name: "Cardano", Price: 0.45, Volume24h: 900_000_000},
	{Symbol: "DOGE", Name: "Dogecoin", Price: 0.12, Volume24h: 800_000_000},
	{Symbol: "DOT", Name: "Polkadot", Price: 6.5, Volume24h: 400_000_000},
	{Symbol: "AVAX", Name: "Avalanche", Price: 34, Volume24h: 600_000_000},
	{Symbol: "LINK", Name: "Chainlink", Price: 14, Volume24h: 500_000_000},
	{Symbol: "MATIC", Name: "Polygon", Price: 0.70, Volume24h: 350_000_000},
}

// FallbackCoins returns a fresh copy of the static coin dataset so callers
// can annotate rows without mutating the shared table.
func FallbackCoins(n int) []domain.CoinStat {
	if n <= 0 || n > len(fallbackCoins) {
		n = len(fallbackCoins)
	}
	out := make([]domain.CoinStat, n)
	copy(out, fallbackCoins[:n])
	return out
}

var fallbackArticles = []domain.Article{
	{
		Title:       "Crypto markets consolidate as traders await macro data",
		Description: "Major assets traded sideways amid light volume.",
		Source:      "cached",
		PublishedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	},
	{
		Title:       "Bitcoin network activity holds steady",
		Description: "On-chain metrics show unchanged transaction throughput week over week.",
		Source:      "cached",
		PublishedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	},
	{
		Title:       "Ethereum staking participation continues gradual climb",
		Description: "Validator count grows at its long-run average pace.",
		Source:      "cached",
		PublishedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	},
}

func FallbackArticles() []domain.Article {
	out := make([]domain.Article, len(fallbackArticles))
	copy(out, fallbackArticles)
	return out
}

var fallbackTrends = []domain.TrendTopic{
	{Topic: "bitcoin", Mentions: 1200, Engagement: 0.5},
	{Topic: "ethereum", Mentions: 800, Engagement: 0.5},
	{Topic: "defi", Mentions: 300, Engagement: 0.4},
}

func FallbackTrends() []domain.TrendTopic {
	out := make([]domain.TrendTopic, len(fallbackTrends))
	copy(out, fallbackTrends)
	return out
}
