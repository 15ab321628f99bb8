package factory

import (
	"fmt"

	"rag-assistant-be/pkg/llm"
	"rag-assistant-be/pkg/llm/ollama"
	"rag-assistant-be/pkg/llm/openaicompat"
)

func NewLLMProvider(providerType, modelName, baseURL, apiKey string) (llm.LLMProvider, error) {
	switch providerType {
	case "ollama":
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, modelName), nil
	case "openai":
		return openaicompat.New(apiKey, baseURL, modelName), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", providerType)
	}
}
