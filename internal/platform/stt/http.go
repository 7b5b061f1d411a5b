package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/siddharth270/ConvergenceSSNZB/internal/platform/llm"
)

// HTTPTranscriber calls an OpenAI-compatible /v1/audio/transcriptions
// endpoint. Both the hosted API and self-hosted Whisper servers speak it.
type HTTPTranscriber struct {
	provider   string
	baseURL    string
	apiKey     string
	model      string
	language   string
	httpClient *http.Client
}

func NewHTTPTranscriber(provider, baseURL, apiKey, model, language string, httpClient *http.Client) *HTTPTranscriber {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	return &HTTPTranscriber{
		provider:   provider,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		language:   language,
		httpClient: httpClient,
	}
}

type verboseTranscription struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Segments []struct {
		End float64 `json:"end"`
	} `json:"segments"`
}

func (t *HTTPTranscriber) Transcribe(ctx context.Context, audio Audio) (*Result, error) {
	ctx, span := otel.Tracer("github.com/siddharth270/ConvergenceSSNZB/stt").Start(ctx, "stt.transcribe")
	defer span.End()
	span.SetAttributes(
		attribute.String("stt.provider", t.provider),
		attribute.Int("stt.audio_bytes", len(audio.Data)),
	)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	filename := audio.Filename
	if filename == "" {
		filename = "audio.webm"
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(audio.Data); err != nil {
		return nil, err
	}
	_ = mw.WriteField("model", t.model)
	_ = mw.WriteField("response_format", "verbose_json")
	if t.language != "" {
		_ = mw.WriteField("language", t.language)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/v1/audio/transcriptions", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return nil, upstream(t.provider, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		span.SetStatus(codes.Error, fmt.Sprintf("status %d", resp.StatusCode))
		return nil, upstream(t.provider, resp.StatusCode, fmt.Errorf("status %d", resp.StatusCode))
	}

	var out verboseTranscription
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, upstream(t.provider, resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}

	seconds := out.Duration
	if seconds == 0 && len(out.Segments) > 0 {
		seconds = out.Segments[len(out.Segments)-1].End
	}
	return &Result{
		Text:     strings.TrimSpace(out.Text),
		Duration: time.Duration(seconds * float64(time.Second)),
		Language: out.Language,
	}, nil
}

func (t *HTTPTranscriber) Close() error {
	t.httpClient.CloseIdleConnections()
	return nil
}

// upstream reuses the language-model transport error so both collaborators
// map to the same status codes.
func upstream(provider string, status int, err error) error {
	ue := &llm.UpstreamError{Provider: "stt/" + provider, StatusCode: status, Err: err}
	var timeout interface{ Timeout() bool }
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &timeout) && timeout.Timeout()) {
		ue.Timeout = true
	}
	return ue
}
