package provider

import (
	"time"

	"crypto-concierge/internal/domain"
)

// SourceResult wraps adapter output with its origin so callers can tell
// live data from degraded fallback data. Fallback results are never
// presented as live.
type SourceResult[T any] struct {
	Value     T             `json:"value"`
	Origin    domain.Origin `json:"origin"`
	FetchedAt time.Time     `json:"fetched_at"`
}

func Live[T any](v T) SourceResult[T] {
	return SourceResult[T]{Value: v, Origin: domain.OriginLive, FetchedAt: time.Now().UTC()}
}

func Fallback[T any](v T) SourceResult[T] {
	return SourceResult[T]{Value: v, Origin: domain.OriginFallback, FetchedAt: time.Now().UTC()}
}

// LabelScore is one label+probability pair from a remote classifier.
type LabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}
