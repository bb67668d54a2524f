package advisor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"crypto-concierge/internal/domain"

	"go.opentelemetry.io/otel/trace/noop"
)

type stubEnsemble struct {
	gotPrompt  string
	gotContext string
	result     domain.EnsembleResult
}

func (e *stubEnsemble) Generate(ctx context.Context, prompt, marketContext string) domain.EnsembleResult {
	e.gotPrompt = prompt
	e.gotContext = marketContext
	return e.result
}

type stubStore struct {
	appended  []domain.ChatTurn
	history   []domain.ChatTurn
	appendErr error
	recentErr error
}

func (s *stubStore) AppendTurn(ctx context.Context, conversationID, role, content string) error {
	if s.appendErr != nil {
		return s.appendErr
	}
	s.appended = append(s.appended, domain.ChatTurn{
		ConversationID: conversationID, Role: role, Content: content,
	})
	return nil
}

func (s *stubStore) RecentTurns(ctx context.Context, conversationID string, limit int) ([]domain.ChatTurn, error) {
	if s.recentErr != nil {
		return nil, s.recentErr
	}
	return s.history, nil
}

type stubSnapshots struct {
	snap *domain.MarketSnapshot
}

func (s *stubSnapshots) Snapshot(ctx context.Context) *domain.MarketSnapshot {
	return s.snap
}

func testSnapshot() *domain.MarketSnapshot {
	return &domain.MarketSnapshot{
		Coins: []domain.CoinStat{
			{Symbol: "BTC", Name: "Bitcoin", Price: 50000, ChangePct24h: 2.5, Mood: domain.MoodNeutral, Indicators: domain.NeutralIndicators()},
			{Symbol: "ETH", Name: "Ethereum", Price: 3000, ChangePct24h: -1.0, Mood: domain.MoodNeutral, Indicators: domain.NeutralIndicators()},
		},
		Stats:  domain.AggregateStats{GlobalMood: domain.MoodNeutral, TrendingSymbols: []string{"BTC"}},
		Origin: domain.OriginLive,
	}
}

func newTestAdvisor(ensemble Ensembler, store ChatStore, market SnapshotReader) *AdvisorService {
	return NewAdvisorService(noop.NewTracerProvider().Tracer("test"), ensemble, market, store, 10)
}

func TestAskReturnsEnsembleReply(t *testing.T) {
	ens := &stubEnsemble{result: domain.EnsembleResult{FinalResponse: "markets look calm", ConsensusScore: 0.8}}
	store := &stubStore{}
	svc := newTestAdvisor(ens, store, &stubSnapshots{snap: testSnapshot()})

	reply, err := svc.Ask(context.Background(), "conv-1", "how is bitcoin doing?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if reply.Text != "markets look calm" {
		t.Fatalf("unexpected reply text %q", reply.Text)
	}
	if reply.Ensemble.ConsensusScore != 0.8 {
		t.Fatalf("ensemble metadata dropped: %+v", reply.Ensemble)
	}
}

func TestAskPersistsBothTurns(t *testing.T) {
	ens := &stubEnsemble{result: domain.EnsembleResult{FinalResponse: "an answer"}}
	store := &stubStore{}
	svc := newTestAdvisor(ens, store, &stubSnapshots{snap: testSnapshot()})

	if _, err := svc.Ask(context.Background(), "conv-1", "hello"); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if len(store.appended) != 2 {
		t.Fatalf("expected 2 stored turns, got %d", len(store.appended))
	}
	if store.appended[0].Role != "user" || store.appended[1].Role != "assistant" {
		t.Fatalf("turn roles wrong: %+v", store.appended)
	}
	if store.appended[1].Content != "an answer" {
		t.Fatalf("assistant turn content wrong: %q", store.appended[1].Content)
	}
}

func TestAskSurvivesStoreFailures(t *testing.T) {
	ens := &stubEnsemble{result: domain.EnsembleResult{FinalResponse: "still answering"}}
	store := &stubStore{appendErr: errors.New("db down"), recentErr: errors.New("db down")}
	svc := newTestAdvisor(ens, store, &stubSnapshots{snap: testSnapshot()})

	reply, err := svc.Ask(context.Background(), "conv-1", "hello")
	if err != nil {
		t.Fatalf("store failure must not fail Ask: %v", err)
	}
	if reply.Text != "still answering" {
		t.Fatalf("unexpected reply %q", reply.Text)
	}
}

func TestAskWorksWithoutStore(t *testing.T) {
	ens := &stubEnsemble{result: domain.EnsembleResult{FinalResponse: "ok"}}
	svc := newTestAdvisor(ens, nil, &stubSnapshots{snap: testSnapshot()})

	if _, err := svc.Ask(context.Background(), "conv-1", "hello"); err != nil {
		t.Fatalf("Ask without store: %v", err)
	}
}

func TestAskFiltersContextToMentionedSymbols(t *testing.T) {
	ens := &stubEnsemble{result: domain.EnsembleResult{FinalResponse: "ok"}}
	svc := newTestAdvisor(ens, &stubStore{}, &stubSnapshots{snap: testSnapshot()})

	if _, err := svc.Ask(context.Background(), "conv-1", "what about ETH?"); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if !strings.Contains(ens.gotContext, "ETH") {
		t.Fatalf("context missing mentioned symbol: %q", ens.gotContext)
	}
	if strings.Contains(ens.gotContext, "BTC (Bitcoin)") {
		t.Fatalf("context should be filtered to ETH: %q", ens.gotContext)
	}
}

func TestAskReportsMissingMarketData(t *testing.T) {
	ens := &stubEnsemble{result: domain.EnsembleResult{FinalResponse: "ok"}}
	svc := newTestAdvisor(ens, &stubStore{}, &stubSnapshots{snap: nil})

	if _, err := svc.Ask(context.Background(), "conv-1", "hello"); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if !strings.Contains(ens.gotContext, "unavailable") {
		t.Fatalf("expected unavailable note, got %q", ens.gotContext)
	}
}

func TestAskIncludesHistoryInPrompt(t *testing.T) {
	ens := &stubEnsemble{result: domain.EnsembleResult{FinalResponse: "ok"}}
	store := &stubStore{history: []domain.ChatTurn{
		{Role: "user", Content: "earlier question"},
		{Role: "assistant", Content: "earlier answer"},
	}}
	svc := newTestAdvisor(ens, store, &stubSnapshots{snap: testSnapshot()})

	if _, err := svc.Ask(context.Background(), "conv-1", "follow up"); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if !strings.Contains(ens.gotPrompt, "earlier question") || !strings.Contains(ens.gotPrompt, "earlier answer") {
		t.Fatalf("history missing from prompt: %q", ens.gotPrompt)
	}
	if !strings.Contains(ens.gotPrompt, "follow up") {
		t.Fatalf("new message missing from prompt: %q", ens.gotPrompt)
	}
}
