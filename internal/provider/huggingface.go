package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"crypto-concierge/internal/fetch"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	huggingFaceBaseURL    = "https://api-inference.huggingface.co"
	defaultSentimentModel = "ProsusAI/finbert"
)

// HFClassifier calls a HuggingFace inference endpoint hosting a financial
// sentiment model. Unlike the market/news adapters it does surface errors:
// the sentiment analyzer owns the fallback cascade and needs to know when
// the remote rung failed.
type HFClassifier struct {
	fetcher *fetch.Client
	baseURL string
	model   string
	tracer  trace.Tracer
}

func NewHFClassifier(tracer trace.Tracer, fetcher *fetch.Client, model string) *HFClassifier {
	if strings.TrimSpace(model) == "" {
		model = defaultSentimentModel
	}
	return &HFClassifier{
		fetcher: fetcher,
		baseURL: huggingFaceBaseURL,
		model:   model,
		tracer:  tracer,
	}
}

// Model reports the configured model identifier.
func (c *HFClassifier) Model() string { return c.model }

// Classify returns label+score pairs for the text, highest score first as
// returned by the endpoint. The response shape is [[{label,score},...]] for
// single inputs; some models omit the outer array.
func (c *HFClassifier) Classify(ctx context.Context, text string) ([]LabelScore, error) {
	_, span := c.tracer.Start(ctx, "huggingface.classify")
	defer span.End()
	span.SetAttributes(attribute.String("hf.model", c.model))

	url := fmt.Sprintf("%s/models/%s", c.baseURL, c.model)
	body, err := json.Marshal(map[string]string{"inputs": text})
	if err != nil {
		return nil, err
	}
	resp, err := c.fetcher.Post(ctx, url, body)
	if err != nil {
		return nil, err
	}

	var nested [][]LabelScore
	if err := json.Unmarshal(resp, &nested); err == nil && len(nested) > 0 && len(nested[0]) > 0 {
		return nested[0], nil
	}
	var flat []LabelScore
	if err := json.Unmarshal(resp, &flat); err == nil && len(flat) > 0 {
		return flat, nil
	}
	return nil, fmt.Errorf("unrecognized classifier payload: %s", truncateForLog(resp))
}

func truncateForLog(b []byte) string {
	s := string(b)
	if len(s) > 200 {
		return s[:200]
	}
	return s
}
