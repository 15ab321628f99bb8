package openaicompat

import (
	"context"
	"fmt"
	"math"

	"rag-assistant-be/pkg/llm"

	openai "github.com/sashabaranov/go-openai"
)

// Provider talks to any OpenAI-compatible chat endpoint (OpenAI itself,
// DashScope compatible mode, vLLM, ...).
type Provider struct {
	client    *openai.Client
	modelName string
}

var _ llm.LLMProvider = &Provider{}

func New(apiKey, baseURL, modelName string) *Provider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Provider{
		client:    openai.NewClientWithConfig(cfg),
		modelName: modelName,
	}
}

// Client exposes the underlying SDK client for callers that need
// streaming or tool calling beyond the plain LLMProvider contract.
func (p *Provider) Client() *openai.Client {
	return p.client
}

func (p *Provider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	options := &llm.Options{
		Temperature: 0.7,
	}
	for _, opt := range opts {
		opt(options)
	}

	messages := make([]openai.ChatCompletionMessage, len(history))
	for i, msg := range history {
		role := msg.Role
		if role == "model" {
			role = openai.ChatMessageRoleAssistant
		}
		messages[i] = openai.ChatCompletionMessage{
			Role:    role,
			Content: msg.Content,
		}
	}

	model := p.modelName
	if options.Model != "" {
		model = options.Model
	}

	// The SDK drops a zero temperature from the wire request, so the
	// server default would apply. The smallest positive float survives
	// serialization and is indistinguishable from zero in sampling.
	temperature := float32(options.Temperature)
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}

	req := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
	}
	if options.MaxTokens > 0 {
		req.MaxTokens = options.MaxTokens
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}

func (p *Provider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return p.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, opts...)
}
