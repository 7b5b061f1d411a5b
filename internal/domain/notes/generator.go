package notes

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/siddharth270/ConvergenceSSNZB/internal/platform/apperr"
	"github.com/siddharth270/ConvergenceSSNZB/internal/platform/llm"
)

// State is a step of the generation state machine.
type State int

const (
	StateDrafting State = iota
	StateExtracting
	StateValidating
	StateRetryDrafting
	StateRetryExtracting
	StateRetryValidating
	StateDone
	StateFailed
)

var stateNames = [...]string{
	"drafting",
	"extracting",
	"validating",
	"retry_drafting",
	"retry_extracting",
	"retry_validating",
	"done",
	"failed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) retrying() bool {
	return s == StateRetryDrafting || s == StateRetryExtracting || s == StateRetryValidating
}

const (
	draftTemperature = 0.1
	retryTemperature = 0.05
	// MaxAttempts is the number of upstream calls allowed per generation.
	MaxAttempts = 2

	DefaultAttemptTimeout = 120 * time.Second
)

// Generation is a successful run of the state machine.
type Generation struct {
	Note     *Note
	States   []State
	Attempts int
}

// GenerationFailedError is returned when both attempts produced output that
// could not be extracted or validated.
type GenerationFailedError struct {
	Attempts int
	Cause    error
}

func (e *GenerationFailedError) Error() string {
	return "AI failed to generate valid note. Please try again."
}

func (e *GenerationFailedError) Unwrap() error { return e.Cause }

func (e *GenerationFailedError) Kind() apperr.Kind { return apperr.KindGenerationFailed }

// Generator turns a transcript into a validated note using the language
// model, with one retry on malformed output.
type Generator struct {
	client         llm.Client
	attemptTimeout time.Duration
	maxTokens      int
	logger         zerolog.Logger
}

func NewGenerator(client llm.Client, attemptTimeout time.Duration, maxTokens int, logger zerolog.Logger) *Generator {
	if attemptTimeout <= 0 {
		attemptTimeout = DefaultAttemptTimeout
	}
	return &Generator{
		client:         client,
		attemptTimeout: attemptTimeout,
		maxTokens:      maxTokens,
		logger:         logger.With().Str("component", "note_generator").Logger(),
	}
}

// ValidateRequest checks a request before any upstream call is made.
func ValidateRequest(req GenerateRequest) error {
	if strings.TrimSpace(req.Transcript) == "" {
		return apperr.InvalidInput("Transcript cannot be empty")
	}
	if !req.NoteType.Valid() {
		return apperr.InvalidInput("Note type must be 'soap' or 'prescription'")
	}
	if !req.Context.VisitType.Valid() {
		return apperr.InvalidInput("Visit type must be 'new', 'followup', or 'repeat'")
	}
	if strings.TrimSpace(req.Context.PatientID) == "" {
		return apperr.InvalidInput("patient_id is required")
	}
	if strings.TrimSpace(req.Context.DoctorID) == "" {
		return apperr.InvalidInput("doctor_id is required")
	}
	if strings.TrimSpace(req.Context.PatientName) == "" {
		return apperr.InvalidInput("patient_name is required")
	}
	return nil
}

// Generate runs Drafting -> Extracting -> Validating, falling back to a
// single stricter retry when extraction or validation fails. Transport
// errors end the run immediately with *llm.UpstreamError.
func (g *Generator) Generate(ctx context.Context, req GenerateRequest) (*Generation, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	ctx, span := otel.Tracer("github.com/siddharth270/ConvergenceSSNZB/notes").Start(ctx, "notes.generate")
	defer span.End()
	span.SetAttributes(attribute.String("note.type", string(req.NoteType)))

	log := g.logger.With().
		Str("note_type", string(req.NoteType)).
		Str("patient_id", req.Context.PatientID).
		Logger()

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: guardrailPrompt},
		{Role: llm.RoleUser, Content: buildUserPrompt(req)},
	}

	gen := &Generation{}
	state := StateDrafting
	var (
		raw     string
		obj     map[string]interface{}
		lastErr error
	)

	for {
		gen.States = append(gen.States, state)

		switch state {
		case StateDrafting, StateRetryDrafting:
			msgs, temp := messages, draftTemperature
			if state == StateRetryDrafting {
				msgs = []llm.Message{
					messages[0],
					{Role: llm.RoleUser, Content: messages[1].Content + retryInstruction},
				}
				temp = retryTemperature
			}
			gen.Attempts++
			out, err := g.draft(ctx, msgs, temp)
			if err != nil {
				log.Error().Err(err).Int("attempt", gen.Attempts).Msg("language model call failed")
				span.RecordError(err)
				span.SetStatus(codes.Error, "upstream")
				return nil, err
			}
			log.Debug().Int("attempt", gen.Attempts).Int("chars", len(out)).Msg("draft received")
			raw = out
			if state == StateDrafting {
				state = StateExtracting
			} else {
				state = StateRetryExtracting
			}

		case StateExtracting, StateRetryExtracting:
			o, err := llm.ExtractJSON(raw)
			if err != nil {
				log.Warn().Err(err).Int("attempt", gen.Attempts).Msg("no JSON in model output")
				lastErr = err
				state = g.afterFailure(state)
				continue
			}
			obj = o
			if state == StateExtracting {
				state = StateValidating
			} else {
				state = StateRetryValidating
			}

		case StateValidating, StateRetryValidating:
			note, err := Validate(req.NoteType, Coerce(req.NoteType, obj, req.Context))
			if err != nil {
				log.Warn().Err(err).Int("attempt", gen.Attempts).Msg("model output failed schema validation")
				lastErr = err
				state = g.afterFailure(state)
				continue
			}
			gen.Note = note
			state = StateDone

		case StateDone:
			span.SetAttributes(attribute.Int("note.attempts", gen.Attempts))
			log.Info().Int("attempts", gen.Attempts).Msg("note generated")
			return gen, nil

		case StateFailed:
			span.SetAttributes(attribute.Int("note.attempts", gen.Attempts))
			span.SetStatus(codes.Error, "generation failed")
			log.Error().Err(lastErr).Int("attempts", gen.Attempts).Msg("note generation failed")
			return nil, &GenerationFailedError{Attempts: gen.Attempts, Cause: lastErr}
		}
	}
}

func (g *Generator) afterFailure(s State) State {
	if s.retrying() {
		return StateFailed
	}
	return StateRetryDrafting
}

func (g *Generator) draft(ctx context.Context, msgs []llm.Message, temperature float64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.attemptTimeout)
	defer cancel()
	return g.client.Chat(ctx, msgs, llm.ChatOptions{
		Temperature: temperature,
		MaxTokens:   g.maxTokens,
		JSON:        true,
	})
}
