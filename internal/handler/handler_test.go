package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"crypto-concierge/internal/domain"
	"crypto-concierge/internal/provider"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace/noop"
)

type stubMarket struct {
	snap *domain.MarketSnapshot
}

func (m *stubMarket) Snapshot(ctx context.Context) *domain.MarketSnapshot { return m.snap }

func (m *stubMarket) Current() *domain.MarketSnapshot { return m.snap }

func (m *stubMarket) CoinDetail(ctx context.Context, symbol string) (domain.CoinStat, error) {
	if m.snap == nil {
		return domain.CoinStat{}, errors.New("no snapshot")
	}
	for _, c := range m.snap.Coins {
		if c.Symbol == symbol {
			return c, nil
		}
	}
	return domain.CoinStat{}, errors.New("not in snapshot")
}

type stubAdvisor struct {
	reply domain.ChatReply
	err   error
}

func (a *stubAdvisor) Ask(ctx context.Context, conversationID, message string) (domain.ChatReply, error) {
	return a.reply, a.err
}

type stubHistory struct {
	turns   []domain.ChatTurn
	deleted int64
	err     error
}

func (s *stubHistory) ListTurns(ctx context.Context, conversationID string) ([]domain.ChatTurn, error) {
	return s.turns, s.err
}

func (s *stubHistory) DeleteConversation(ctx context.Context, conversationID string) (int64, error) {
	return s.deleted, s.err
}

type stubSentiment struct{}

func (stubSentiment) Analyze(ctx context.Context, text string) domain.SentimentVerdict {
	return domain.SentimentVerdict{Label: domain.SentimentPositive, Confidence: 0.8, Method: "keyword"}
}

func (s stubSentiment) AnalyzeMany(ctx context.Context, texts []string) []domain.SentimentVerdict {
	out := make([]domain.SentimentVerdict, len(texts))
	for i := range texts {
		out[i] = s.Analyze(ctx, texts[i])
	}
	return out
}

type stubNews struct {
	res provider.SourceResult[[]domain.Article]
}

func (n *stubNews) Headlines(ctx context.Context, query string) provider.SourceResult[[]domain.Article] {
	return n.res
}

type stubTrends struct {
	res provider.SourceResult[[]domain.TrendTopic]
}

func (s *stubTrends) Trending(ctx context.Context, windowHours int) provider.SourceResult[[]domain.TrendTopic] {
	return s.res
}

func testSnapshot() *domain.MarketSnapshot {
	return &domain.MarketSnapshot{
		Coins: []domain.CoinStat{
			{Symbol: "BTC", Name: "Bitcoin", Price: 50000, Mood: domain.MoodNeutral},
		},
		Stats:   domain.AggregateStats{GlobalMood: domain.MoodNeutral},
		Origin:  domain.OriginLive,
		BuiltAt: time.Now().Add(-2 * time.Second),
	}
}

func newTestRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h.RegisterRoutes(r)
	return r
}

func newTestHandler() *Handler {
	return &Handler{
		tracer:    noop.NewTracerProvider().Tracer("test"),
		market:    &stubMarket{snap: testSnapshot()},
		advisor:   &stubAdvisor{reply: domain.ChatReply{Text: "hello"}},
		history:   &stubHistory{turns: []domain.ChatTurn{{Role: "user", Content: "hi"}}, deleted: 2},
		sentiment: stubSentiment{},
		news: &stubNews{res: provider.Live([]domain.Article{
			{Title: "Bitcoin rallies", Description: "big move"},
		})},
		trends: &stubTrends{res: provider.Fallback([]domain.TrendTopic{
			{Topic: "bitcoin", Mentions: 100},
		})},
	}
}

func doRequest(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r := newTestRouter(newTestHandler())
	w := doRequest(r, "GET", "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body struct {
		Status      string `json:"status"`
		ChatHistory bool   `json:"chat_history"`
		Snapshot    struct {
			Ready  bool   `json:"ready"`
			Origin string `json:"origin"`
			AgeMs  int64  `json:"age_ms"`
		} `json:"snapshot"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "healthy" || !body.ChatHistory {
		t.Fatalf("unexpected body: %+v", body)
	}
	if !body.Snapshot.Ready || body.Snapshot.Origin != string(domain.OriginLive) {
		t.Fatalf("unexpected snapshot report: %+v", body.Snapshot)
	}
	if body.Snapshot.AgeMs < 1000 {
		t.Fatalf("snapshot age should reflect BuiltAt, got %dms", body.Snapshot.AgeMs)
	}
}

func TestHealthDegradedBeforeFirstSnapshot(t *testing.T) {
	h := newTestHandler()
	h.market = &stubMarket{snap: nil}
	h.history = nil
	r := newTestRouter(h)

	w := doRequest(r, "GET", "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body struct {
		Status      string `json:"status"`
		ChatHistory bool   `json:"chat_history"`
		Snapshot    struct {
			Ready bool `json:"ready"`
		} `json:"snapshot"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "degraded" || body.ChatHistory || body.Snapshot.Ready {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestGetSnapshot(t *testing.T) {
	r := newTestRouter(newTestHandler())
	w := doRequest(r, "GET", "/api/market/snapshot", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var snap domain.MarketSnapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Origin != domain.OriginLive || len(snap.Coins) != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestGetSnapshotNotReady(t *testing.T) {
	h := newTestHandler()
	h.market = &stubMarket{snap: nil}
	r := newTestRouter(h)

	w := doRequest(r, "GET", "/api/market/snapshot", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestGetCoin(t *testing.T) {
	r := newTestRouter(newTestHandler())

	w := doRequest(r, "GET", "/api/market/coins/btc", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var coin domain.CoinStat
	if err := json.Unmarshal(w.Body.Bytes(), &coin); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if coin.Symbol != "BTC" {
		t.Fatalf("unexpected coin %+v", coin)
	}
}

func TestGetCoinUnsupportedSymbol(t *testing.T) {
	r := newTestRouter(newTestHandler())
	w := doRequest(r, "GET", "/api/market/coins/SHIB", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestPostChat(t *testing.T) {
	r := newTestRouter(newTestHandler())
	w := doRequest(r, "POST", "/api/chat", gin.H{
		"conversation_id": "conv-1",
		"message":         "how are markets?",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var reply domain.ChatReply
	if err := json.Unmarshal(w.Body.Bytes(), &reply); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if reply.Text != "hello" {
		t.Fatalf("unexpected reply %+v", reply)
	}
}

func TestPostChatValidation(t *testing.T) {
	r := newTestRouter(newTestHandler())

	w := doRequest(r, "POST", "/api/chat", gin.H{"message": "hi"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing conversation_id should 400, got %d", w.Code)
	}

	w = doRequest(r, "POST", "/api/chat", gin.H{"conversation_id": "c", "message": "   "})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("blank message should 400, got %d", w.Code)
	}
}

func TestChatHistoryEndpoints(t *testing.T) {
	r := newTestRouter(newTestHandler())

	w := doRequest(r, "GET", "/api/chat/conv-1/history", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	w = doRequest(r, "DELETE", "/api/chat/conv-1/history", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["deleted_turns"].(float64) != 2 {
		t.Fatalf("unexpected delete payload: %v", out)
	}
}

func TestChatHistoryDisabledWithoutStore(t *testing.T) {
	h := newTestHandler()
	h.history = nil
	r := newTestRouter(h)

	for _, method := range []string{"GET", "DELETE"} {
		w := doRequest(r, method, "/api/chat/conv-1/history", nil)
		if w.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s: expected 503, got %d", method, w.Code)
		}
	}
}

func TestPostSentiment(t *testing.T) {
	r := newTestRouter(newTestHandler())

	w := doRequest(r, "POST", "/api/sentiment", gin.H{"text": "btc rallies"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var v domain.SentimentVerdict
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v.Label != domain.SentimentPositive {
		t.Fatalf("unexpected verdict %+v", v)
	}

	w = doRequest(r, "POST", "/api/sentiment", gin.H{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing text should 400, got %d", w.Code)
	}
}

func TestPostSentimentBatch(t *testing.T) {
	r := newTestRouter(newTestHandler())

	w := doRequest(r, "POST", "/api/sentiment/batch", gin.H{"texts": []string{"a", "b"}})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var out struct {
		Verdicts []domain.SentimentVerdict `json:"verdicts"`
		Summary  domain.SentimentSummary   `json:"summary"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Verdicts) != 2 {
		t.Fatalf("expected 2 verdicts, got %d", len(out.Verdicts))
	}
	if out.Summary.PositivePct != 100 {
		t.Fatalf("unexpected summary %+v", out.Summary)
	}

	w = doRequest(r, "POST", "/api/sentiment/batch", gin.H{"texts": []string{}})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty batch should 400, got %d", w.Code)
	}
}

func TestGetNewsAttachesSentiment(t *testing.T) {
	r := newTestRouter(newTestHandler())

	w := doRequest(r, "GET", "/api/news?query=bitcoin", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var out struct {
		Articles []domain.Article `json:"articles"`
		Origin   domain.Origin    `json:"origin"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Origin != domain.OriginLive {
		t.Fatalf("expected live origin, got %s", out.Origin)
	}
	if len(out.Articles) != 1 || out.Articles[0].Sentiment == nil {
		t.Fatalf("article missing sentiment: %+v", out.Articles)
	}
}

func TestGetTrendsReportsOrigin(t *testing.T) {
	r := newTestRouter(newTestHandler())

	w := doRequest(r, "GET", "/api/trends?window_hours=12", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var out struct {
		Topics []domain.TrendTopic `json:"topics"`
		Origin domain.Origin       `json:"origin"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Origin != domain.OriginFallback {
		t.Fatalf("expected fallback origin, got %s", out.Origin)
	}
	if len(out.Topics) != 1 {
		t.Fatalf("unexpected topics %+v", out.Topics)
	}
}
