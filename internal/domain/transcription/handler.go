// Package transcription serves the audio upload endpoint. Recordings are
// checked for size and media type before they reach the speech-to-text
// provider, and the transcript is saved as a conversation when the caller
// identifies the patient and doctor.
package transcription

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/siddharth270/ConvergenceSSNZB/internal/domain/conversation"
	"github.com/siddharth270/ConvergenceSSNZB/internal/platform/apperr"
	"github.com/siddharth270/ConvergenceSSNZB/internal/platform/stt"
)

// Recorder saves a transcript for later review.
type Recorder interface {
	Record(ctx context.Context, patientID, doctorID uuid.UUID, transcript string, durationSeconds float64) (*conversation.Conversation, error)
}

// Response is the body returned for a successful transcription.
type Response struct {
	Transcript     string  `json:"transcript"`
	Status         string  `json:"status"`
	AudioDuration  string  `json:"audio_duration"`
	ConversationID *string `json:"conversation_id"`
}

type Handler struct {
	stt      stt.Transcriber
	recorder Recorder
	maxBytes int64
	logger   zerolog.Logger
}

// NewHandler creates the handler. A non-positive maxBytes uses
// stt.MaxAudioBytes.
func NewHandler(t stt.Transcriber, recorder Recorder, maxBytes int64, logger zerolog.Logger) *Handler {
	if maxBytes <= 0 {
		maxBytes = stt.MaxAudioBytes
	}
	return &Handler{stt: t, recorder: recorder, maxBytes: maxBytes, logger: logger}
}

func (h *Handler) tooLarge() error {
	return echo.NewHTTPError(http.StatusRequestEntityTooLarge,
		fmt.Sprintf("Audio file too large. Maximum size is %dMB.", h.maxBytes>>20))
}

func (h *Handler) Transcribe(c echo.Context) error {
	fh, err := c.FormFile("audio")
	if err != nil {
		// The body limit aborts streamed uploads mid-read.
		var he *echo.HTTPError
		if errors.As(err, &he) && he.Code == http.StatusRequestEntityTooLarge {
			return h.tooLarge()
		}
		return echo.NewHTTPError(http.StatusBadRequest, "audio file is required")
	}
	if fh.Size > h.maxBytes {
		return h.tooLarge()
	}
	contentType := fh.Header.Get(echo.HeaderContentType)
	if !stt.AllowedContentType(contentType) {
		return echo.NewHTTPError(http.StatusBadRequest, "Unsupported audio format: "+contentType)
	}

	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "could not read audio file")
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, h.maxBytes+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "could not read audio file")
	}
	if int64(len(data)) > h.maxBytes {
		return h.tooLarge()
	}

	ctx := c.Request().Context()
	h.logger.Info().Int("bytes", len(data)).Str("content_type", contentType).Msg("transcribing audio")
	res, err := h.stt.Transcribe(ctx, stt.Audio{Data: data, ContentType: contentType, Filename: fh.Filename})
	if err != nil {
		h.logger.Error().Err(err).Msg("transcription failed")
		if apperr.Is(err, apperr.KindUpstreamTimeout) {
			return echo.NewHTTPError(http.StatusGatewayTimeout, "Transcription service timed out. Please try again.")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Transcription error: "+err.Error())
	}
	text := strings.TrimSpace(res.Text)
	if text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "No speech detected in audio file.")
	}

	seconds := res.Duration.Seconds()
	return c.JSON(http.StatusOK, Response{
		Transcript:     text,
		Status:         "success",
		AudioDuration:  fmt.Sprintf("%.1f seconds", seconds),
		ConversationID: h.save(ctx, c.FormValue("patient_id"), c.FormValue("doctor_id"), text, seconds),
	})
}

// save stores the transcript when both ids are supplied. Failures are logged
// and never fail the request.
func (h *Handler) save(ctx context.Context, patient, doctor, text string, seconds float64) *string {
	if patient == "" || doctor == "" || h.recorder == nil {
		return nil
	}
	patientID, err := uuid.Parse(patient)
	if err != nil {
		h.logger.Warn().Str("patient_id", patient).Msg("failed to save conversation: invalid patient_id")
		return nil
	}
	doctorID, err := uuid.Parse(doctor)
	if err != nil {
		h.logger.Warn().Str("doctor_id", doctor).Msg("failed to save conversation: invalid doctor_id")
		return nil
	}
	conv, err := h.recorder.Record(ctx, patientID, doctorID, text, seconds)
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to save conversation")
		return nil
	}
	id := conv.ID.String()
	return &id
}
