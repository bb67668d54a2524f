package handler

import (
	"context"

	"crypto-concierge/internal/domain"
	"crypto-concierge/internal/provider"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

// MarketReader serves snapshot data to the market endpoints. Current
// returns whatever snapshot is already built without triggering a refresh,
// so the health endpoint stays cheap.
type MarketReader interface {
	Snapshot(ctx context.Context) *domain.MarketSnapshot
	Current() *domain.MarketSnapshot
	CoinDetail(ctx context.Context, symbol string) (domain.CoinStat, error)
}

// ChatAdvisor answers chat turns.
type ChatAdvisor interface {
	Ask(ctx context.Context, conversationID, message string) (domain.ChatReply, error)
}

// HistoryStore reads and deletes persisted conversations.
type HistoryStore interface {
	ListTurns(ctx context.Context, conversationID string) ([]domain.ChatTurn, error)
	DeleteConversation(ctx context.Context, conversationID string) (int64, error)
}

// SentimentAnalyzer classifies free text.
type SentimentAnalyzer interface {
	Analyze(ctx context.Context, text string) domain.SentimentVerdict
	AnalyzeMany(ctx context.Context, texts []string) []domain.SentimentVerdict
}

// NewsSource fetches headlines.
type NewsSource interface {
	Headlines(ctx context.Context, query string) provider.SourceResult[[]domain.Article]
}

// TrendsSource fetches social trend topics.
type TrendsSource interface {
	Trending(ctx context.Context, windowHours int) provider.SourceResult[[]domain.TrendTopic]
}

type Handler struct {
	tracer    trace.Tracer
	market    MarketReader
	advisor   ChatAdvisor
	history   HistoryStore
	sentiment SentimentAnalyzer
	news      NewsSource
	trends    TrendsSource
}

func New(
	tracer trace.Tracer,
	market MarketReader,
	advisor ChatAdvisor,
	history HistoryStore,
	sentiment SentimentAnalyzer,
	news NewsSource,
	trends TrendsSource,
) *Handler {
	return &Handler{
		tracer:    tracer,
		market:    market,
		advisor:   advisor,
		history:   history,
		sentiment: sentiment,
		news:      news,
		trends:    trends,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.GET("/api/market/snapshot", h.GetSnapshot)
	r.GET("/api/market/coins/:symbol", h.GetCoin)
	r.POST("/api/chat", h.PostChat)
	r.GET("/api/chat/:conversation_id/history", h.GetChatHistory)
	r.DELETE("/api/chat/:conversation_id/history", h.DeleteChatHistory)
	r.POST("/api/sentiment", h.PostSentiment)
	r.POST("/api/sentiment/batch", h.PostSentimentBatch)
	r.GET("/api/news", h.GetNews)
	r.GET("/api/trends", h.GetTrends)
}
