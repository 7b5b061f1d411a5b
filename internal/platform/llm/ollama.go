package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultOllamaBaseURL = "http://localhost:11434"
	defaultOllamaModel   = "llama3.2"
	defaultMaxTokens     = 4000
)

// OllamaClient talks to a local Ollama server through /api/chat.
type OllamaClient struct {
	baseURL    string
	model      string
	maxTokens  int
	httpClient *http.Client
}

// NewOllamaClient creates an Ollama client. Empty values fall back to the
// local defaults.
func NewOllamaClient(baseURL, model string, maxTokens int, httpClient *http.Client) *OllamaClient {
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	if model == "" {
		model = defaultOllamaModel
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	return &OllamaClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		maxTokens:  maxTokens,
		httpClient: httpClient,
	}
}

func (c *OllamaClient) Name() string { return ProviderOllama + "/" + c.model }

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type ollamaChatRequest struct {
	Model    string        `json:"model"`
	Messages []Message     `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  ollamaOptions `json:"options"`
	Format   string        `json:"format,omitempty"`
}

type ollamaChatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
}

// Chat posts a non-streaming chat request.
func (c *OllamaClient) Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, error) {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "ollama.chat")
	defer span.End()
	span.SetAttributes(attribute.String("ai.model", c.model), attribute.Float64("ai.temperature", opts.Temperature))

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	payload := ollamaChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   false,
		Options:  ollamaOptions{Temperature: opts.Temperature, NumPredict: maxTokens},
	}
	if opts.JSON {
		payload.Format = "json"
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		recordChatMetric(ctx, ProviderOllama, c.model, 0, time.Since(start), err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return "", newUpstreamError(ProviderOllama, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("status %d", resp.StatusCode)
		recordChatMetric(ctx, ProviderOllama, c.model, resp.StatusCode, time.Since(start), err)
		span.SetStatus(codes.Error, err.Error())
		return "", &UpstreamError{Provider: ProviderOllama, StatusCode: resp.StatusCode, Err: err}
	}

	var out ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		recordChatMetric(ctx, ProviderOllama, c.model, resp.StatusCode, time.Since(start), err)
		span.RecordError(err)
		return "", newUpstreamError(ProviderOllama, fmt.Errorf("decode response: %w", err))
	}

	recordChatMetric(ctx, ProviderOllama, c.model, resp.StatusCode, time.Since(start), nil)
	return out.Message.Content, nil
}

// Ping lists local models via /api/tags.
func (c *OllamaClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return newUpstreamError(ProviderOllama, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &UpstreamError{Provider: ProviderOllama, StatusCode: resp.StatusCode}
	}
	return nil
}
