package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port           string        `mapstructure:"PORT"`
	Env            string        `mapstructure:"ENV"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32         `mapstructure:"DB_MIN_CONNS"`
	RedisURL       string        `mapstructure:"REDIS_URL"`
	CORSOrigins    []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`

	LLMProvider   string        `mapstructure:"LLM_PROVIDER"`
	OllamaBaseURL string        `mapstructure:"OLLAMA_BASE_URL"`
	OllamaModel   string        `mapstructure:"OLLAMA_MODEL"`
	OpenAIAPIKey  string        `mapstructure:"OPENAI_API_KEY"`
	OpenAIBaseURL string        `mapstructure:"OPENAI_BASE_URL"`
	OpenAIModel   string        `mapstructure:"OPENAI_MODEL"`
	LLMTimeout    time.Duration `mapstructure:"LLM_TIMEOUT"`
	LLMMaxTokens  int           `mapstructure:"LLM_MAX_TOKENS"`

	STTProvider    string        `mapstructure:"STT_PROVIDER"`
	WhisperURL     string        `mapstructure:"WHISPER_URL"`
	WhisperModel   string        `mapstructure:"WHISPER_MODEL"`
	OpenAISTTModel string        `mapstructure:"OPENAI_STT_MODEL"`
	STTLanguage    string        `mapstructure:"STT_LANGUAGE"`
	STTTimeout     time.Duration `mapstructure:"STT_TIMEOUT"`
	MaxAudioBytes  int64         `mapstructure:"MAX_AUDIO_BYTES"`

	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "REDIS_URL",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "REQUEST_TIMEOUT",
	"LLM_PROVIDER", "OLLAMA_BASE_URL", "OLLAMA_MODEL",
	"OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_MODEL", "LLM_TIMEOUT", "LLM_MAX_TOKENS",
	"STT_PROVIDER", "WHISPER_URL", "WHISPER_MODEL", "OPENAI_STT_MODEL", "STT_LANGUAGE",
	"STT_TIMEOUT", "MAX_AUDIO_BYTES",
	"OTEL_EXPORTER_OTLP_ENDPOINT",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 1)
	v.SetDefault("RATE_LIMIT_BURST", 10)
	v.SetDefault("REQUEST_TIMEOUT", "5m")
	v.SetDefault("LLM_PROVIDER", "ollama")
	v.SetDefault("OLLAMA_BASE_URL", "http://localhost:11434")
	v.SetDefault("OLLAMA_MODEL", "llama3.2")
	v.SetDefault("OPENAI_BASE_URL", "https://api.openai.com/v1")
	v.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
	v.SetDefault("LLM_TIMEOUT", "120s")
	v.SetDefault("LLM_MAX_TOKENS", 4000)
	v.SetDefault("STT_PROVIDER", "whisper")
	v.SetDefault("WHISPER_URL", "http://localhost:9000")
	v.SetDefault("WHISPER_MODEL", "base")
	v.SetDefault("OPENAI_STT_MODEL", "whisper-1")
	v.SetDefault("STT_LANGUAGE", "en")
	v.SetDefault("STT_TIMEOUT", "5m")
	v.SetDefault("MAX_AUDIO_BYTES", 25<<20)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// LLMModel returns the model name used by the configured provider.
func (c *Config) LLMModel() string {
	if c.LLMProvider == "openai" {
		return c.OpenAIModel
	}
	return c.OllamaModel
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	switch c.LLMProvider {
	case "ollama":
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when LLM_PROVIDER is \"openai\"")
		}
	default:
		return fmt.Errorf("LLM_PROVIDER must be \"ollama\" or \"openai\", got %q", c.LLMProvider)
	}

	switch c.STTProvider {
	case "whisper":
		if c.WhisperURL == "" {
			return fmt.Errorf("WHISPER_URL is required when STT_PROVIDER is \"whisper\"")
		}
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when STT_PROVIDER is \"openai\"")
		}
	default:
		return fmt.Errorf("STT_PROVIDER must be \"whisper\" or \"openai\", got %q", c.STTProvider)
	}

	if c.LLMTimeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT must be positive")
	}
	// Two generation attempts must fit in one request.
	if c.RequestTimeout < 2*c.LLMTimeout {
		return fmt.Errorf("REQUEST_TIMEOUT (%s) must be at least twice LLM_TIMEOUT (%s)", c.RequestTimeout, c.LLMTimeout)
	}
	if c.MaxAudioBytes <= 0 {
		return fmt.Errorf("MAX_AUDIO_BYTES must be positive")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	return nil
}
