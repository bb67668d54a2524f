package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ChatCompleter abstracts the OpenAI chat completions API for testability.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

// OpenAIProvider generates text through the official OpenAI SDK.
type OpenAIProvider struct {
	client ChatCompleter
	model  string
	tracer trace.Tracer
}

func NewOpenAIProvider(tracer trace.Tracer, apiKey, model string) *OpenAIProvider {
	if strings.TrimSpace(model) == "" {
		model = "gpt-4o-mini"
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIProvider{
		client: &openaiClient{client: client},
		model:  model,
		tracer: tracer,
	}
}

// NewOpenAIProviderWithClient wires an explicit client, used by tests.
func NewOpenAIProviderWithClient(tracer trace.Tracer, client ChatCompleter, model string) *OpenAIProvider {
	return &OpenAIProvider{client: client, model: model, tracer: tracer}
}

// GenerateText runs one chat completion and returns the reply content.
func (p *OpenAIProvider) GenerateText(ctx context.Context, prompt string) (string, error) {
	ctx, span := p.tracer.Start(ctx, "openai.generate-text")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", p.model))

	completion, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionNewParams{
		Model: p.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", err
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("no choices in completion")
	}

	reply := strings.TrimSpace(completion.Choices[0].Message.Content)
	if reply == "" {
		return "", fmt.Errorf("completion content is empty")
	}
	span.SetAttributes(attribute.Int("llm.reply_length", len(reply)))
	return reply, nil
}

type openaiClient struct {
	client openai.Client
}

func (c *openaiClient) CreateChatCompletion(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
) (*openai.ChatCompletion, error) {
	return c.client.Chat.Completions.New(ctx, params)
}
