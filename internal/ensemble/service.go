package ensemble

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"crypto-concierge/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Source is one model backend participating in an ensemble round.
type Source interface {
	Name() string
	Generate(ctx context.Context, prompt, marketContext string) (domain.ModelContribution, error)
}

const (
	StrategyConfidence         = "confidence"
	StrategyPrimaryWithSupport = "primary-with-support"
	StrategyEqual              = "equal"

	fallbackConfidence = 0.30
	fallbackResponse   = "I couldn't reach my market analysis models just now. " +
		"Based on general principles: crypto markets are volatile, so size positions " +
		"carefully and avoid decisions driven by short-term noise. Please try again shortly."

	disclaimer = "This is not financial advice."
)

// Service fans a prompt out to every configured source concurrently and
// merges the answers into one reply. It never returns an error to callers;
// source failures degrade the result instead.
type Service struct {
	tracer   trace.Tracer
	sources  []Source
	strategy string
	primary  string

	now func() time.Time
}

func NewService(tracer trace.Tracer, sources []Source, strategy, primary string) (*Service, error) {
	switch strategy {
	case StrategyConfidence, StrategyPrimaryWithSupport, StrategyEqual:
	default:
		return nil, fmt.Errorf("unknown ensemble strategy %q", strategy)
	}
	return &Service{
		tracer:   tracer,
		sources:  sources,
		strategy: strategy,
		primary:  primary,
		now:      time.Now,
	}, nil
}

// Generate runs one ensemble round. Each source runs in its own goroutine;
// a panic or error in one source is captured without touching the others.
func (s *Service) Generate(ctx context.Context, prompt, marketContext string) domain.EnsembleResult {
	ctx, span := s.tracer.Start(ctx, "ensemble.generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("ensemble.strategy", s.strategy),
		attribute.Int("ensemble.sources", len(s.sources)),
	)

	started := s.now()

	type outcome struct {
		contribution domain.ModelContribution
		err          error
	}
	results := make(chan outcome, len(s.sources))

	for _, src := range s.sources {
		go func(src Source) {
			defer func() {
				if r := recover(); r != nil {
					results <- outcome{err: fmt.Errorf("source %s panicked: %v", src.Name(), r)}
				}
			}()
			c, err := src.Generate(ctx, prompt, marketContext)
			results <- outcome{contribution: c, err: err}
		}(src)
	}

	var contributions []domain.ModelContribution
	for range s.sources {
		out := <-results
		if out.err != nil {
			log.Printf("ensemble source failed: %v", out.err)
			continue
		}
		contributions = append(contributions, out.contribution)
	}

	// Arrival order depends on goroutine scheduling; sort so the same set
	// of contributions always merges the same way.
	sort.Slice(contributions, func(i, j int) bool {
		if contributions[i].Confidence != contributions[j].Confidence {
			return contributions[i].Confidence > contributions[j].Confidence
		}
		return contributions[i].Source < contributions[j].Source
	})

	if len(contributions) == 0 {
		return domain.EnsembleResult{
			FinalResponse:         fallbackResponse,
			ConsensusScore:        fallbackConfidence,
			TotalProcessingTimeMs: s.now().Sub(started).Milliseconds(),
			Contributions: []domain.ModelContribution{{
				Source:     "fallback",
				Response:   fallbackResponse,
				Confidence: fallbackConfidence,
			}},
			Methodology: "confidence-weighted",
		}
	}

	final, methodology := s.merge(contributions)
	if len(contributions) >= 2 && !strings.Contains(final, disclaimer) {
		final = final + "\n\n" + disclaimer
	}

	return domain.EnsembleResult{
		FinalResponse:         final,
		ConsensusScore:        consensusScore(contributions),
		TotalProcessingTimeMs: s.now().Sub(started).Milliseconds(),
		Contributions:         contributions,
		Methodology:           methodology,
	}
}

func (s *Service) merge(contributions []domain.ModelContribution) (string, string) {
	switch s.strategy {
	case StrategyPrimaryWithSupport:
		if primary, ok := findSource(contributions, s.primary); ok {
			return leadWithSupport(primary, contributions), "primary-with-support"
		}
		// Primary missing from this round; lead with the highest confidence.
		return leadWithSupport(contributions[0], contributions), "confidence-weighted"
	case StrategyEqual:
		var parts []string
		for _, c := range contributions {
			parts = append(parts, fmt.Sprintf("[%s] %s", c.Source, c.Response))
		}
		return strings.Join(parts, "\n\n"), "equal"
	default:
		return leadWithSupport(contributions[0], contributions), "confidence-weighted"
	}
}

// leadWithSupport puts the lead contribution first and concatenates every
// other backend's text after it, labeled by source. No backend's answer is
// silently discarded.
func leadWithSupport(lead domain.ModelContribution, contributions []domain.ModelContribution) string {
	var supporting []string
	for _, c := range contributions {
		if c.Source == lead.Source {
			continue
		}
		supporting = append(supporting, fmt.Sprintf("%s adds: %s", c.Source, c.Response))
	}
	if len(supporting) == 0 {
		return lead.Response
	}
	return lead.Response + "\n\n" + strings.Join(supporting, "\n\n")
}

// consensusScore is the mean confidence across contributions.
func consensusScore(contributions []domain.ModelContribution) float64 {
	var sum float64
	for _, c := range contributions {
		sum += c.Confidence
	}
	return sum / float64(len(contributions))
}

func findSource(contributions []domain.ModelContribution, name string) (domain.ModelContribution, bool) {
	for _, c := range contributions {
		if c.Source == name {
			return c, true
		}
	}
	return domain.ModelContribution{}, false
}
