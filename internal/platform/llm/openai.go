package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAIModel   = "gpt-4o-mini"
)

// OpenAIClient calls an OpenAI-compatible /chat/completions endpoint.
type OpenAIClient struct {
	apiKey     string
	model      string
	baseURL    string
	maxTokens  int
	httpClient *http.Client
}

func NewOpenAIClient(baseURL, apiKey, model string, maxTokens int, httpClient *http.Client) *OpenAIClient {
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	if model == "" {
		model = defaultOpenAIModel
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	return &OpenAIClient{
		apiKey:     apiKey,
		model:      model,
		baseURL:    strings.TrimRight(baseURL, "/"),
		maxTokens:  maxTokens,
		httpClient: httpClient,
	}
}

func (c *OpenAIClient) Name() string { return ProviderOpenAI + "/" + c.model }

type openAIResponseFormat struct {
	Type string `json:"type"`
}

type openAIChatRequest struct {
	Model          string                `json:"model"`
	Messages       []Message             `json:"messages"`
	Temperature    float64               `json:"temperature"`
	MaxTokens      int                   `json:"max_tokens"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *OpenAIClient) Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, error) {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "openai.chat")
	defer span.End()
	span.SetAttributes(attribute.String("ai.model", c.model), attribute.Float64("ai.temperature", opts.Temperature))

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	payload := openAIChatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: opts.Temperature,
		MaxTokens:   maxTokens,
	}
	if opts.JSON {
		payload.ResponseFormat = &openAIResponseFormat{Type: "json_object"}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		recordChatMetric(ctx, ProviderOpenAI, c.model, 0, time.Since(start), err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return "", newUpstreamError(ProviderOpenAI, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("status %d", resp.StatusCode)
		recordChatMetric(ctx, ProviderOpenAI, c.model, resp.StatusCode, time.Since(start), err)
		span.SetStatus(codes.Error, err.Error())
		return "", &UpstreamError{Provider: ProviderOpenAI, StatusCode: resp.StatusCode, Err: err}
	}

	var out openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		recordChatMetric(ctx, ProviderOpenAI, c.model, resp.StatusCode, time.Since(start), err)
		return "", newUpstreamError(ProviderOpenAI, fmt.Errorf("decode response: %w", err))
	}
	if len(out.Choices) == 0 {
		err := errors.New("response has no choices")
		recordChatMetric(ctx, ProviderOpenAI, c.model, resp.StatusCode, time.Since(start), err)
		return "", newUpstreamError(ProviderOpenAI, err)
	}

	recordChatMetric(ctx, ProviderOpenAI, c.model, resp.StatusCode, time.Since(start), nil)
	return out.Choices[0].Message.Content, nil
}

// Ping lists models to confirm credentials and reachability.
func (c *OpenAIClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return newUpstreamError(ProviderOpenAI, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &UpstreamError{Provider: ProviderOpenAI, StatusCode: resp.StatusCode}
	}
	return nil
}
