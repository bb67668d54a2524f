package advisor

import (
	"context"
	"log"

	"crypto-concierge/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Ensembler merges multiple model backends into one reply.
type Ensembler interface {
	Generate(ctx context.Context, prompt, marketContext string) domain.EnsembleResult
}

// ChatStore persists and retrieves conversation turns.
type ChatStore interface {
	AppendTurn(ctx context.Context, conversationID, role, content string) error
	RecentTurns(ctx context.Context, conversationID string, limit int) ([]domain.ChatTurn, error)
}

// SnapshotReader provides the current market snapshot for prompt context.
type SnapshotReader interface {
	Snapshot(ctx context.Context) *domain.MarketSnapshot
}

type AdvisorService struct {
	tracer     trace.Tracer
	ensemble   Ensembler
	market     SnapshotReader
	chatStore  ChatStore
	maxHistory int
}

func NewAdvisorService(
	tracer trace.Tracer,
	ensemble Ensembler,
	market SnapshotReader,
	chatStore ChatStore,
	maxHistory int,
) *AdvisorService {
	if maxHistory <= 0 {
		maxHistory = 20
	}
	return &AdvisorService{
		tracer:     tracer,
		ensemble:   ensemble,
		market:     market,
		chatStore:  chatStore,
		maxHistory: maxHistory,
	}
}

// Ask answers one chat turn. Storage and market-context failures are logged
// and absorbed; the reply itself always comes back.
func (s *AdvisorService) Ask(ctx context.Context, conversationID, userMessage string) (domain.ChatReply, error) {
	ctx, span := s.tracer.Start(ctx, "advisor.ask")
	defer span.End()
	span.SetAttributes(attribute.String("conversation_id", conversationID))

	if s.chatStore != nil {
		if err := s.chatStore.AppendTurn(ctx, conversationID, "user", userMessage); err != nil {
			log.Printf("failed to store user message: %v", err)
		}
	}

	mentioned := ExtractSymbols(userMessage)
	marketContext := s.gatherContext(ctx, mentioned)

	var history []domain.ChatTurn
	if s.chatStore != nil {
		var err error
		history, err = s.chatStore.RecentTurns(ctx, conversationID, s.maxHistory)
		if err != nil {
			log.Printf("failed to load conversation history: %v", err)
			history = nil
		}
	}

	prompt := BuildPrompt(history, userMessage)
	result := s.ensemble.Generate(ctx, prompt, marketContext)
	span.SetAttributes(
		attribute.Float64("ensemble.consensus", result.ConsensusScore),
		attribute.Int("ensemble.contributions", len(result.Contributions)),
	)

	if s.chatStore != nil {
		if err := s.chatStore.AppendTurn(ctx, conversationID, "assistant", result.FinalResponse); err != nil {
			log.Printf("failed to store assistant reply: %v", err)
		}
	}

	return domain.ChatReply{Text: result.FinalResponse, Ensemble: result}, nil
}

func (s *AdvisorService) gatherContext(ctx context.Context, symbols []string) string {
	ctx, span := s.tracer.Start(ctx, "advisor.gather-context")
	defer span.End()

	if s.market == nil {
		return ""
	}
	snap := s.market.Snapshot(ctx)
	if snap == nil {
		return "Market data temporarily unavailable."
	}

	coins := snap.Coins
	if len(symbols) > 0 {
		var filtered []domain.CoinStat
		wanted := make(map[string]bool, len(symbols))
		for _, sym := range symbols {
			wanted[sym] = true
		}
		for _, c := range snap.Coins {
			if wanted[c.Symbol] {
				filtered = append(filtered, c)
			}
		}
		if len(filtered) > 0 {
			coins = filtered
		}
	}

	return FormatMarketContext(coins, snap.Stats, snap.Origin)
}
