package provider

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"crypto-concierge/internal/fetch"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	geminiBaseURL      = "https://generativelanguage.googleapis.com"
	defaultGeminiModel = "gemini-1.5-flash"
)

// GeminiProvider calls the Gemini generateContent REST API. It surfaces
// errors to the ensembler, which owns degradation across backends.
type GeminiProvider struct {
	fetcher *fetch.Client
	baseURL string
	apiKey  string
	model   string
	tracer  trace.Tracer
}

func NewGeminiProvider(tracer trace.Tracer, fetcher *fetch.Client, apiKey, model string) *GeminiProvider {
	if strings.TrimSpace(model) == "" {
		model = defaultGeminiModel
	}
	return &GeminiProvider{
		fetcher: fetcher,
		baseURL: geminiBaseURL,
		apiKey:  strings.TrimSpace(apiKey),
		model:   model,
		tracer:  tracer,
	}
}

// GenerateText returns the first candidate's text for the prompt.
func (p *GeminiProvider) GenerateText(ctx context.Context, prompt string) (string, error) {
	_, span := p.tracer.Start(ctx, "gemini.generate-text")
	defer span.End()
	span.SetAttributes(attribute.String("gemini.model", p.model))

	if p.apiKey == "" {
		return "", fmt.Errorf("gemini api key is not configured")
	}

	u := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		p.baseURL, url.PathEscape(p.model), url.QueryEscape(p.apiKey))

	payload := map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]string{{"text": prompt}}},
		},
	}

	var resp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := p.fetcher.PostJSON(ctx, u, payload, &resp); err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini response has no candidates")
	}

	text := strings.TrimSpace(resp.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return "", fmt.Errorf("gemini response text is empty")
	}
	return text, nil
}
