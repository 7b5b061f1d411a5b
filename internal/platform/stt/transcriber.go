// Package stt provides the speech-to-text collaborator used by the
// transcription endpoint.
package stt

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// MaxAudioBytes is the largest upload accepted for transcription.
const MaxAudioBytes = 25 << 20

// Audio is an uploaded recording.
type Audio struct {
	Data        []byte
	ContentType string
	Filename    string
}

// Result is the transcription of one recording.
type Result struct {
	Text     string
	Duration time.Duration
	Language string
}

// Transcriber converts audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio Audio) (*Result, error)
	Close() error
}

var allowedContentTypes = map[string]bool{
	"audio/webm":  true,
	"audio/mp4":   true,
	"audio/mpeg":  true,
	"audio/wav":   true,
	"audio/x-wav": true,
	"audio/ogg":   true,
	"video/webm":  true,
}

// AllowedContentType reports whether ct is an accepted audio media type.
// Parameters such as "; codecs=opus" are ignored.
func AllowedContentType(ct string) bool {
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = ct[:i]
	}
	return allowedContentTypes[strings.ToLower(strings.TrimSpace(ct))]
}

// Provider names accepted in configuration.
const (
	ProviderWhisper = "whisper"
	ProviderOpenAI  = "openai"
)

// Config selects and configures the speech-to-text provider.
type Config struct {
	Provider string
	BaseURL  string
	APIKey   string
	Model    string
	Language string
	Timeout  time.Duration
}

// NewFromConfig builds the configured provider.
func NewFromConfig(cfg Config) (Transcriber, error) {
	httpClient := &http.Client{Timeout: cfg.Timeout}
	switch cfg.Provider {
	case ProviderWhisper, "":
		base := cfg.BaseURL
		if base == "" {
			base = "http://localhost:9000"
		}
		model := cfg.Model
		if model == "" {
			model = "base"
		}
		return NewHTTPTranscriber(ProviderWhisper, base, "", model, cfg.Language, httpClient), nil
	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai api key is required for speech-to-text")
		}
		base := cfg.BaseURL
		if base == "" {
			base = "https://api.openai.com"
		}
		model := cfg.Model
		if model == "" {
			model = "whisper-1"
		}
		return NewHTTPTranscriber(ProviderOpenAI, base, cfg.APIKey, model, cfg.Language, httpClient), nil
	default:
		return nil, fmt.Errorf("unknown stt provider %q", cfg.Provider)
	}
}
