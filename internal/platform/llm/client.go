// Package llm holds the language-model collaborator: a provider-neutral chat
// interface, the Ollama and OpenAI implementations behind it, and the
// extraction of JSON objects from free-text model output.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Role tags a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged chat message.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatOptions controls a single completion.
type ChatOptions struct {
	Temperature float64
	MaxTokens   int
	// JSON asks the provider to constrain output to a JSON object when it
	// supports doing so.
	JSON bool
}

// Client is the language-model collaborator used by the note generator.
type Client interface {
	// Chat sends messages and returns the raw assistant text. Transport
	// failures are returned as *UpstreamError.
	Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, error)
	// Ping checks that the provider is reachable.
	Ping(ctx context.Context) error
	// Name returns "provider/model" for logs and health output.
	Name() string
}

// Provider names accepted in configuration.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Config carries everything needed to construct any supported provider.
type Config struct {
	Provider  string
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
	// Timeout bounds the HTTP client. Per-attempt deadlines are applied by
	// the caller through the context.
	Timeout time.Duration
}

// New builds the configured provider.
func New(cfg Config) (Client, error) {
	httpClient := &http.Client{Timeout: cfg.Timeout}
	switch cfg.Provider {
	case ProviderOllama, "":
		return NewOllamaClient(cfg.BaseURL, cfg.Model, cfg.MaxTokens, httpClient), nil
	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai api key is required")
		}
		return NewOpenAIClient(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.MaxTokens, httpClient), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
