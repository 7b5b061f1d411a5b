package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/siddharth270/ConvergenceSSNZB/internal/platform/apperr"
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Record stores a transcript for the patient and doctor.
func (s *Service) Record(ctx context.Context, patientID, doctorID uuid.UUID, transcript string, durationSeconds float64) (*Conversation, error) {
	if patientID == uuid.Nil || doctorID == uuid.Nil {
		return nil, apperr.InvalidInput("patient_id and doctor_id are required")
	}
	if strings.TrimSpace(transcript) == "" {
		return nil, apperr.InvalidInput("transcript is required")
	}
	c := &Conversation{
		PatientID:     patientID,
		DoctorID:      doctorID,
		Transcript:    transcript,
		AudioDuration: durationSeconds,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	s.logger.Info().Str("conversation_id", c.ID.String()).Msg("saved conversation")
	return c, nil
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]*Conversation, error) {
	out, err := s.repo.List(ctx, f.Normalize())
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	if out == nil {
		out = []*Conversation{}
	}
	return out, nil
}
