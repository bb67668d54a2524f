package provider

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"crypto-concierge/internal/domain"
	"crypto-concierge/internal/fetch"

	"go.opentelemetry.io/otel/trace"
)

const newsBaseURL = "https://newsapi.org"

// NewsProvider fetches crypto headlines from a NewsAPI-compatible endpoint.
type NewsProvider struct {
	fetcher *fetch.Client
	baseURL string
	apiKey  string
	tracer  trace.Tracer
}

func NewNewsProvider(tracer trace.Tracer, fetcher *fetch.Client, apiKey string) *NewsProvider {
	return &NewsProvider{
		fetcher: fetcher,
		baseURL: newsBaseURL,
		apiKey:  strings.TrimSpace(apiKey),
		tracer:  tracer,
	}
}

// Headlines returns recent articles matching the query, newest first.
// Without an API key or after exhausted retries it degrades to the cached
// fallback set.
func (p *NewsProvider) Headlines(ctx context.Context, query string) SourceResult[[]domain.Article] {
	_, span := p.tracer.Start(ctx, "news.headlines")
	defer span.End()

	if p.apiKey == "" {
		return Fallback(FallbackArticles())
	}
	if strings.TrimSpace(query) == "" {
		query = "cryptocurrency OR bitcoin OR ethereum"
	}

	u := fmt.Sprintf("%s/v2/everything?q=%s&language=en&sortBy=publishedAt&pageSize=20&apiKey=%s",
		p.baseURL, url.QueryEscape(query), url.QueryEscape(p.apiKey))

	var payload struct {
		Status   string `json:"status"`
		Articles []struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			URL         string `json:"url"`
			URLToImage  string `json:"urlToImage"`
			PublishedAt string `json:"publishedAt"`
			Source      struct {
				Name string `json:"name"`
			} `json:"source"`
		} `json:"articles"`
	}
	if err := p.fetcher.GetJSON(ctx, u, &payload); err != nil {
		log.Printf("news fetch degraded to fallback: %v", err)
		return Fallback(FallbackArticles())
	}
	if payload.Status != "ok" {
		log.Printf("news API returned status %q, using fallback", payload.Status)
		return Fallback(FallbackArticles())
	}

	articles := make([]domain.Article, 0, len(payload.Articles))
	for _, row := range payload.Articles {
		title := strings.TrimSpace(row.Title)
		if title == "" {
			continue
		}
		publishedAt, err := time.Parse(time.RFC3339, row.PublishedAt)
		if err != nil {
			publishedAt = time.Now().UTC()
		}
		articles = append(articles, domain.Article{
			Title:       title,
			Description: strings.TrimSpace(row.Description),
			Source:      strings.TrimSpace(row.Source.Name),
			URL:         strings.TrimSpace(row.URL),
			ImageURL:    strings.TrimSpace(row.URLToImage),
			PublishedAt: publishedAt.UTC(),
		})
	}
	if len(articles) == 0 {
		return Fallback(FallbackArticles())
	}
	return Live(articles)
}
