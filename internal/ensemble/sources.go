package ensemble

import (
	"context"
	"fmt"
	"strings"
	"time"

	"crypto-concierge/internal/domain"
	"crypto-concierge/internal/provider"
)

// TextGenerator matches the LLM providers' single-prompt surface.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// LLMSource adapts a text-generation provider into an ensemble source.
// Confidence is a fixed per-backend weight tuned by observed answer quality
// rather than something the models self-report.
type LLMSource struct {
	name       string
	generator  TextGenerator
	confidence float64
	strengths  []string

	now func() time.Time
}

func NewLLMSource(name string, generator TextGenerator, confidence float64, strengths ...string) *LLMSource {
	return &LLMSource{
		name:       name,
		generator:  generator,
		confidence: confidence,
		strengths:  strengths,
		now:        time.Now,
	}
}

func (s *LLMSource) Name() string { return s.name }

func (s *LLMSource) Generate(ctx context.Context, prompt, marketContext string) (domain.ModelContribution, error) {
	full := prompt
	if strings.TrimSpace(marketContext) != "" {
		full = "Current market data:\n" + marketContext + "\n\n" + prompt
	}

	started := s.now()
	text, err := s.generator.GenerateText(ctx, full)
	if err != nil {
		return domain.ModelContribution{}, fmt.Errorf("%s: %w", s.name, err)
	}
	if strings.TrimSpace(text) == "" {
		return domain.ModelContribution{}, fmt.Errorf("%s: empty completion", s.name)
	}

	return domain.ModelContribution{
		Source:           s.name,
		Response:         text,
		Confidence:       s.confidence,
		ProcessingTimeMs: s.now().Sub(started).Milliseconds(),
		Strengths:        s.strengths,
	}, nil
}

// SentimentSource contributes a short sentiment read on the user's message
// from the finbert classifier. It is the cheapest member of the ensemble and
// carries confidence proportional to the classifier's top score.
type SentimentSource struct {
	classifier *provider.HFClassifier

	now func() time.Time
}

func NewSentimentSource(classifier *provider.HFClassifier) *SentimentSource {
	return &SentimentSource{classifier: classifier, now: time.Now}
}

func (s *SentimentSource) Name() string { return "huggingface" }

func (s *SentimentSource) Generate(ctx context.Context, prompt, _ string) (domain.ModelContribution, error) {
	started := s.now()
	scores, err := s.classifier.Classify(ctx, prompt)
	if err != nil {
		return domain.ModelContribution{}, fmt.Errorf("huggingface: %w", err)
	}

	top := scores[0]
	for _, row := range scores[1:] {
		if row.Score > top.Score {
			top = row
		}
	}

	response := fmt.Sprintf(
		"Financial sentiment model %s reads this as %s (score %.2f).",
		s.classifier.Model(), strings.ToLower(top.Label), top.Score,
	)

	return domain.ModelContribution{
		Source:           "huggingface",
		Response:         response,
		Confidence:       top.Score * 0.8,
		ProcessingTimeMs: s.now().Sub(started).Milliseconds(),
		Strengths:        []string{"financial sentiment"},
	}, nil
}
