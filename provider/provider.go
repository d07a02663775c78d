package provider

import (
	"context"
	"errors"

	"github.com/museworks/museflow/config"
	openai_provider "github.com/museworks/museflow/provider/openai"
)

// Client represents different LLM providers
type Client string

const (
	OpenAI    Client = "openai"
	Anthropic Client = "anthropic"
	Gemini    Client = "gemini"
)

// Message represents a message in a conversation
type Message = openai_provider.Message

// ToolCall is a model-requested invocation of a declared tool
type ToolCall = openai_provider.ToolCall

// ToolSpec declares a callable tool surfaced to the model for one request
type ToolSpec = openai_provider.ToolSpec

// GenerateRequest carries everything one generation call needs
type GenerateRequest = openai_provider.GenerateRequest

// Reply is a single non-streaming generation result
type Reply = openai_provider.Reply

// Provider is the interface that all LLM implementations must satisfy
type Provider interface {
	Generate(ctx context.Context, req GenerateRequest) (Reply, error)
	GenerateStream(ctx context.Context, req GenerateRequest) (<-chan string, error)
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// NewProvider creates a new LLM client based on the provided configuration
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	switch Client(cfg.Type) {
	case OpenAI:
		if cfg.APIKey == "" {
			return nil, errors.New("llm.api_key not set")
		}
		return openai_provider.NewOpenAIClient(
			cfg.APIKey,
			cfg.BaseURL,
			cfg.CompletionModel,
			cfg.EmbeddingModel,
			cfg.Temperature,
			cfg.MaxTokens,
			cfg.Timeout,
		), nil
	case Anthropic:
		return nil, errors.New("anthropic client not implemented yet")
	case Gemini:
		return nil, errors.New("gemini client not implemented yet")
	default:
		return nil, errors.New("unsupported LLM provider")
	}
}
