package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/siddharth270/ConvergenceSSNZB/internal/config"
	"github.com/siddharth270/ConvergenceSSNZB/internal/domain/conversation"
	"github.com/siddharth270/ConvergenceSSNZB/internal/domain/identity"
	"github.com/siddharth270/ConvergenceSSNZB/internal/domain/notes"
	"github.com/siddharth270/ConvergenceSSNZB/internal/domain/transcription"
	"github.com/siddharth270/ConvergenceSSNZB/internal/platform/db"
	"github.com/siddharth270/ConvergenceSSNZB/internal/platform/llm"
	"github.com/siddharth270/ConvergenceSSNZB/internal/platform/middleware"
	"github.com/siddharth270/ConvergenceSSNZB/internal/platform/render"
	"github.com/siddharth270/ConvergenceSSNZB/internal/platform/stt"
	"github.com/siddharth270/ConvergenceSSNZB/internal/platform/telemetry"
)

const serviceName = "scribe-server"

var version = "1.0.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   serviceName,
		Short: "Clinical scribe API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the server version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", serviceName, version)
		},
	}
}

func generateCmd() *cobra.Command {
	var in notes.SummarizeInput
	var file string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a note from a transcript file and print it as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			transcript, err := readTranscript(file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			in.Transcript = transcript

			client, err := newLLMClient(cfg)
			if err != nil {
				return err
			}
			logger := newLogger(cfg.Env).Level(zerolog.WarnLevel)
			gen := notes.NewGenerator(client, cfg.LLMTimeout, cfg.LLMMaxTokens, logger)
			return runGenerate(cmd.Context(), gen, in, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "-", "Transcript file, or - for stdin")
	cmd.Flags().StringVar(&in.NoteType, "note-type", string(notes.NoteTypeSOAP), "soap or prescription")
	cmd.Flags().StringVar(&in.VisitType, "visit-type", string(notes.VisitNew), "new, followup or repeat")
	cmd.Flags().StringVar(&in.PatientName, "patient-name", "", "Patient name")
	cmd.Flags().StringVar(&in.PatientID, "patient-id", "", "Patient id")
	cmd.Flags().StringVar(&in.DoctorID, "doctor-id", "", "Doctor id")
	cmd.MarkFlagRequired("patient-name")
	cmd.MarkFlagRequired("patient-id")
	cmd.MarkFlagRequired("doctor-id")
	return cmd
}

// noteGenerator is satisfied by *notes.Generator.
type noteGenerator interface {
	Generate(ctx context.Context, req notes.GenerateRequest) (*notes.Generation, error)
}

func runGenerate(ctx context.Context, gen noteGenerator, in notes.SummarizeInput, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	result, err := gen.Generate(ctx, notes.GenerateRequest{
		Transcript: in.Transcript,
		NoteType:   notes.NoteType(in.NoteType),
		Context: notes.RequestContext{
			PatientID:   in.PatientID,
			DoctorID:    in.DoctorID,
			PatientName: in.PatientName,
			VisitType:   notes.VisitType(in.VisitType),
		},
	})
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result.Note.Body())
}

func readTranscript(file string, stdin io.Reader) (string, error) {
	var data []byte
	var err error
	if file == "" || file == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return "", fmt.Errorf("read transcript: %w", err)
	}
	return string(data), nil
}

func newLLMClient(cfg *config.Config) (llm.Client, error) {
	lc := llm.Config{
		Provider:  cfg.LLMProvider,
		Model:     cfg.LLMModel(),
		MaxTokens: cfg.LLMMaxTokens,
		Timeout:   cfg.LLMTimeout,
	}
	switch cfg.LLMProvider {
	case llm.ProviderOpenAI:
		lc.BaseURL = cfg.OpenAIBaseURL
		lc.APIKey = cfg.OpenAIAPIKey
	default:
		lc.BaseURL = cfg.OllamaBaseURL
	}
	return llm.New(lc)
}

func newTranscriber(cfg *config.Config) *stt.Handle {
	sc := stt.Config{
		Provider: cfg.STTProvider,
		Language: cfg.STTLanguage,
		Timeout:  cfg.STTTimeout,
	}
	switch cfg.STTProvider {
	case stt.ProviderOpenAI:
		sc.BaseURL = cfg.OpenAIBaseURL
		sc.APIKey = cfg.OpenAIAPIKey
		sc.Model = cfg.OpenAISTTModel
	default:
		sc.BaseURL = cfg.WhisperURL
		sc.Model = cfg.WhisperModel
	}
	return stt.NewHandle(func() (stt.Transcriber, error) {
		return stt.NewFromConfig(sc)
	})
}

func newRateLimiter(cfg *config.Config, logger zerolog.Logger) (middleware.Limiter, func() error, error) {
	rlc := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rlc.RequestsPerSecond <= 0 {
		rlc = middleware.DefaultRateLimitConfig()
	}
	if cfg.RedisURL == "" {
		return middleware.NewMemoryLimiter(rlc), func() error { return nil }, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	logger.Info().Str("addr", opts.Addr).Msg("using redis rate limiter")
	return middleware.NewRedisLimiter(client, rlc), client.Close, nil
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger := newLogger(cfg.Env)

	ctx := context.Background()

	// Telemetry
	shutdownTelemetry, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.OTLPEndpoint,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to set up telemetry")
	}

	// Database
	pool, err := db.NewPool(ctx, db.PoolConfig{
		URL:             cfg.DatabaseURL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		ApplicationName: serviceName,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Collaborators
	llmClient, err := newLLMClient(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create llm client")
	}
	transcriber := newTranscriber(cfg)
	renderer, err := render.New()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse note templates")
	}
	limiter, closeLimiter, err := newRateLimiter(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create rate limiter")
	}

	// Domain
	soapRepo := notes.NewSOAPNoteRepo(pool)
	rxRepo := notes.NewPrescriptionRepo(pool)
	generator := notes.NewGenerator(llmClient, cfg.LLMTimeout, cfg.LLMMaxTokens, logger)
	notesSvc := notes.NewService(generator, soapRepo, rxRepo, logger)
	notesHandler := notes.NewHandler(notesSvc, renderer)

	identitySvc := identity.NewService(identity.NewDoctorRepo(pool), identity.NewPatientRepo(pool), notesSvc, logger)
	identityHandler := identity.NewHandler(identitySvc)

	conversationSvc := conversation.NewService(conversation.NewRepo(pool), logger)
	conversationHandler := conversation.NewHandler(conversationSvc)

	transcriptionHandler := transcription.NewHandler(transcriber, conversationSvc, cfg.MaxAudioBytes, logger)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(telemetry.Middleware())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "X-Request-ID"},
		AllowCredentials: true,
	}))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("1M", map[string]string{
		"/api/transcribe": fmt.Sprintf("%dB", cfg.MaxAudioBytes+(1<<20)),
	}))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	// Service info
	e.GET("/", rootHandler())
	e.GET("/health", healthHandler(llmClient, pool, cfg.LLMModel()))
	e.GET("/health/db", db.HealthHandler(pool))

	// API routes
	api := e.Group("/api")
	rateLimit := middleware.RateLimit(limiter, logger)
	api.POST("/summarize", notesHandler.Summarize, rateLimit)
	api.POST("/transcribe", transcriptionHandler.Transcribe, rateLimit)

	notesHandler.RegisterRoutes(api)
	identityHandler.RegisterRoutes(api)
	conversationHandler.RegisterRoutes(api)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("llm", llmClient.Name()).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	if err := transcriber.Close(); err != nil {
		logger.Warn().Err(err).Msg("failed to close transcriber")
	}
	if err := closeLimiter(); err != nil {
		logger.Warn().Err(err).Msg("failed to close redis client")
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("failed to flush telemetry")
	}
	logger.Info().Msg("server stopped")
	return nil
}
