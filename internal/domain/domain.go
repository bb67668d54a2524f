package domain

import "time"

// Origin tags whether a result came from a live upstream call or from
// static fallback data after the upstream was exhausted.
type Origin string

const (
	OriginLive     Origin = "live"
	OriginFallback Origin = "fallback"
)

type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNeutral  SentimentLabel = "neutral"
	SentimentNegative SentimentLabel = "negative"
)

type Mood string

const (
	MoodBullish Mood = "bullish"
	MoodBearish Mood = "bearish"
	MoodNeutral Mood = "neutral"
)

// SentimentVerdict is the immutable outcome of classifying one text.
// Method records which rung of the cascade produced it.
type SentimentVerdict struct {
	Label      SentimentLabel             `json:"label"`
	Confidence float64                    `json:"confidence"`
	Method     string                     `json:"method"`
	Breakdown  map[SentimentLabel]float64 `json:"breakdown,omitempty"`
}

// SentimentSummary aggregates a batch of verdicts into an overall mood.
type SentimentSummary struct {
	PositivePct   float64 `json:"positive_pct"`
	NeutralPct    float64 `json:"neutral_pct"`
	NegativePct   float64 `json:"negative_pct"`
	AvgConfidence float64 `json:"avg_confidence"`
	Mood          Mood    `json:"mood"`
}

// ModelContribution is one backend's answer within an ensemble round.
type ModelContribution struct {
	Source           string   `json:"source"`
	Response         string   `json:"response"`
	Confidence       float64  `json:"confidence"`
	ProcessingTimeMs int64    `json:"processing_time_ms"`
	Strengths        []string `json:"strengths,omitempty"`
}

// EnsembleResult is the merged answer for one chat turn.
type EnsembleResult struct {
	FinalResponse         string              `json:"final_response"`
	ConsensusScore        float64             `json:"consensus_score"`
	TotalProcessingTimeMs int64               `json:"total_processing_time_ms"`
	Contributions         []ModelContribution `json:"contributions"`
	Methodology           string              `json:"methodology"`
}

// ChatTurn is one persisted message in a conversation.
type ChatTurn struct {
	ID             int64     `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// ChatReply is the assistant's answer plus the ensemble metadata behind it.
type ChatReply struct {
	Text     string         `json:"text"`
	Ensemble EnsembleResult `json:"ensemble"`
}

// Article is a single normalized news item.
type Article struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Source      string            `json:"source"`
	URL         string            `json:"url"`
	ImageURL    string            `json:"image_url,omitempty"`
	PublishedAt time.Time         `json:"published_at"`
	Sentiment   *SentimentVerdict `json:"sentiment,omitempty"`
}

// TrendTopic is one aggregated social trend row.
type TrendTopic struct {
	Topic      string  `json:"topic"`
	Mentions   int     `json:"mentions"`
	Engagement float64 `json:"engagement"`
}
