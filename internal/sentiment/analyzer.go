package sentiment

import (
	"context"
	"log"
	"strings"
	"time"

	"crypto-concierge/internal/domain"
	"crypto-concierge/internal/provider"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RemoteClassifier is the ML rung of the cascade.
type RemoteClassifier interface {
	Classify(ctx context.Context, text string) ([]provider.LabelScore, error)
}

const (
	methodModel   = "model"
	methodKeyword = "keyword"

	// Keyword heuristic thresholds: ratio of positive hits among all hits.
	positiveRatioFloor   = 0.65
	negativeRatioCeiling = 0.35

	defaultConcurrency = 2
	defaultBatchDelay  = 150 * time.Millisecond
)

// Analyzer classifies text through a cascade: remote ML model first, local
// keyword heuristic second. It never fails outright.
type Analyzer struct {
	tracer      trace.Tracer
	remote      RemoteClassifier
	concurrency int
	batchDelay  time.Duration

	sleep func(ctx context.Context, d time.Duration)
}

func NewAnalyzer(tracer trace.Tracer, remote RemoteClassifier, concurrency int, batchDelay time.Duration) *Analyzer {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	if batchDelay <= 0 {
		batchDelay = defaultBatchDelay
	}
	return &Analyzer{
		tracer:      tracer,
		remote:      remote,
		concurrency: concurrency,
		batchDelay:  batchDelay,
		sleep: func(ctx context.Context, d time.Duration) {
			select {
			case <-ctx.Done():
			case <-time.After(d):
			}
		},
	}
}

// Analyze returns a verdict for the text. Empty or whitespace input short
// circuits to neutral with confidence 0.5.
func (a *Analyzer) Analyze(ctx context.Context, text string) domain.SentimentVerdict {
	_, span := a.tracer.Start(ctx, "sentiment.analyze")
	defer span.End()

	if strings.TrimSpace(text) == "" {
		return domain.SentimentVerdict{
			Label:      domain.SentimentNeutral,
			Confidence: 0.5,
			Method:     methodKeyword,
		}
	}

	if a.remote != nil {
		if verdict, ok := a.classifyRemote(ctx, text); ok {
			span.SetAttributes(attribute.String("sentiment.method", methodModel))
			return verdict
		}
	}

	span.SetAttributes(attribute.String("sentiment.method", methodKeyword))
	return KeywordVerdict(text)
}

// AnalyzeMany processes texts in small concurrent groups with a short delay
// between groups so rate-limited classifier endpoints are not overwhelmed.
// Individual failures degrade to the keyword heuristic for that item only.
func (a *Analyzer) AnalyzeMany(ctx context.Context, texts []string) []domain.SentimentVerdict {
	ctx, span := a.tracer.Start(ctx, "sentiment.analyze-many")
	defer span.End()
	span.SetAttributes(attribute.Int("sentiment.batch_size", len(texts)))

	verdicts := make([]domain.SentimentVerdict, len(texts))
	for start := 0; start < len(texts); start += a.concurrency {
		end := start + a.concurrency
		if end > len(texts) {
			end = len(texts)
		}

		done := make(chan struct{})
		for i := start; i < end; i++ {
			go func(i int) {
				verdicts[i] = a.Analyze(ctx, texts[i])
				done <- struct{}{}
			}(i)
		}
		for i := start; i < end; i++ {
			<-done
		}

		if end < len(texts) {
			a.sleep(ctx, a.batchDelay)
		}
	}
	return verdicts
}

func (a *Analyzer) classifyRemote(ctx context.Context, text string) (domain.SentimentVerdict, bool) {
	scores, err := a.remote.Classify(ctx, text)
	if err != nil {
		log.Printf("remote classifier unavailable, using keyword heuristic: %v", err)
		return domain.SentimentVerdict{}, false
	}

	breakdown := make(map[domain.SentimentLabel]float64, len(scores))
	best := provider.LabelScore{}
	recognized := false
	for _, row := range scores {
		label, ok := normalizeLabel(row.Label)
		if !ok {
			continue
		}
		recognized = true
		breakdown[label] += row.Score
		if row.Score > best.Score {
			best = provider.LabelScore{Label: string(label), Score: row.Score}
		}
	}
	if !recognized {
		log.Printf("remote classifier returned unrecognized labels, using keyword heuristic")
		return domain.SentimentVerdict{}, false
	}

	return domain.SentimentVerdict{
		Label:      domain.SentimentLabel(best.Label),
		Confidence: clamp(best.Score, 0, 1),
		Method:     methodModel,
		Breakdown:  breakdown,
	}, true
}

func normalizeLabel(label string) (domain.SentimentLabel, bool) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "positive", "bullish", "label_2":
		return domain.SentimentPositive, true
	case "negative", "bearish", "label_0":
		return domain.SentimentNegative, true
	case "neutral", "label_1":
		return domain.SentimentNeutral, true
	default:
		return "", false
	}
}

var positiveTerms = []string{
	"bull", "bullish", "surge", "rally", "breakout", "adoption", "growth",
	"gain", "gains", "soar", "moon", "pump", "uptrend", "recover", "recovery",
	"buy", "accumulate", "upgrade", "approval", "institutional",
}

var negativeTerms = []string{
	"bear", "bearish", "crash", "dump", "plunge", "selloff", "liquidation",
	"hack", "exploit", "lawsuit", "ban", "fraud", "scam", "downtrend",
	"decline", "loss", "losses", "fear", "fud", "bankruptcy",
}

// KeywordVerdict is the deterministic local rung of the cascade. Whole-word
// matches only; the same text always yields the same verdict.
func KeywordVerdict(text string) domain.SentimentVerdict {
	words := tokenize(text)

	var pos, neg int
	for _, w := range words {
		if positiveSet[w] {
			pos++
		}
		if negativeSet[w] {
			neg++
		}
	}

	total := pos + neg
	if total == 0 {
		return domain.SentimentVerdict{
			Label:      domain.SentimentNeutral,
			Confidence: 0.5,
			Method:     methodKeyword,
			Breakdown: map[domain.SentimentLabel]float64{
				domain.SentimentNeutral: 1,
			},
		}
	}

	ratio := float64(pos) / float64(total)
	label := domain.SentimentNeutral
	switch {
	case ratio > positiveRatioFloor:
		label = domain.SentimentPositive
	case ratio < negativeRatioCeiling:
		label = domain.SentimentNegative
	}

	// Confidence grows with distance from the 0.5 midpoint, capped below
	// certainty since this is a heuristic.
	confidence := clamp(0.5+absFloat(ratio-0.5)*0.8, 0.5, 0.9)

	return domain.SentimentVerdict{
		Label:      label,
		Confidence: confidence,
		Method:     methodKeyword,
		Breakdown: map[domain.SentimentLabel]float64{
			domain.SentimentPositive: ratio,
			domain.SentimentNegative: 1 - ratio,
		},
	}
}

var positiveSet map[string]bool
var negativeSet map[string]bool

func init() {
	positiveSet = make(map[string]bool, len(positiveTerms))
	for _, w := range positiveTerms {
		positiveSet[w] = true
	}
	negativeSet = make(map[string]bool, len(negativeTerms))
	for _, w := range negativeTerms {
		negativeSet[w] = true
	}
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'))
	})
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
