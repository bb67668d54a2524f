package provider

import (
	"context"
	"fmt"
	"log"
	"strings"

	"crypto-concierge/internal/domain"
	"crypto-concierge/internal/fetch"

	"go.opentelemetry.io/otel/trace"
)

const trendsBaseURL = "https://api.social-searcher.example"

// TrendsProvider fetches aggregated social topic/engagement rows for the
// tracked keyword set over a rolling window.
type TrendsProvider struct {
	fetcher  *fetch.Client
	baseURL  string
	apiKey   string
	keywords []string
	tracer   trace.Tracer
}

func NewTrendsProvider(tracer trace.Tracer, fetcher *fetch.Client, apiKey string, keywords []string) *TrendsProvider {
	if len(keywords) == 0 {
		keywords = []string{"bitcoin", "ethereum", "crypto"}
	}
	return &TrendsProvider{
		fetcher:  fetcher,
		baseURL:  trendsBaseURL,
		apiKey:   strings.TrimSpace(apiKey),
		keywords: keywords,
		tracer:   tracer,
	}
}

// Trending returns topic rows ordered as the upstream reports them,
// degrading to the static fallback set when unavailable.
func (p *TrendsProvider) Trending(ctx context.Context, windowHours int) SourceResult[[]domain.TrendTopic] {
	_, span := p.tracer.Start(ctx, "trends.trending")
	defer span.End()

	if p.apiKey == "" {
		return Fallback(FallbackTrends())
	}
	if windowHours <= 0 {
		windowHours = 24
	}

	u := fmt.Sprintf("%s/v1/trends?window_hours=%d&keywords=%s&key=%s",
		p.baseURL, windowHours, strings.Join(p.keywords, ","), p.apiKey)

	var payload struct {
		Topics []struct {
			Topic      string  `json:"topic"`
			Mentions   int     `json:"mentions"`
			Engagement float64 `json:"engagement"`
		} `json:"topics"`
	}
	if err := p.fetcher.GetJSON(ctx, u, &payload); err != nil {
		log.Printf("trends fetch degraded to fallback: %v", err)
		return Fallback(FallbackTrends())
	}
	if len(payload.Topics) == 0 {
		return Fallback(FallbackTrends())
	}

	topics := make([]domain.TrendTopic, 0, len(payload.Topics))
	for _, row := range payload.Topics {
		topic := strings.TrimSpace(row.Topic)
		if topic == "" {
			continue
		}
		topics = append(topics, domain.TrendTopic{
			Topic:      topic,
			Mentions:   row.Mentions,
			Engagement: row.Engagement,
		})
	}
	if len(topics) == 0 {
		return Fallback(FallbackTrends())
	}
	return Live(topics)
}
