package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/siddharth270/ConvergenceSSNZB/internal/domain/notes"
	"github.com/siddharth270/ConvergenceSSNZB/internal/platform/apperr"
	"github.com/siddharth270/ConvergenceSSNZB/internal/platform/db"
)

// NoteHistory supplies a patient's most recent notes.
type NoteHistory interface {
	RecentForPatient(ctx context.Context, patientID uuid.UUID, n int) ([]*notes.SOAPNoteRecord, []*notes.PrescriptionRecord, error)
}

// PatientDetail is a patient together with their recent notes.
type PatientDetail struct {
	*Patient
	RecentSOAPNotes     []*notes.SOAPNoteRecord     `json:"recent_soap_notes"`
	RecentPrescriptions []*notes.PrescriptionRecord `json:"recent_prescriptions"`
}

type Service struct {
	doctors  DoctorRepository
	patients PatientRepository
	history  NoteHistory
	logger   zerolog.Logger
}

func NewService(doctors DoctorRepository, patients PatientRepository, history NoteHistory, logger zerolog.Logger) *Service {
	return &Service{doctors: doctors, patients: patients, history: history, logger: logger}
}

// -- Doctor --

func (s *Service) CreateDoctor(ctx context.Context, d *Doctor) error {
	d.Name = strings.TrimSpace(d.Name)
	d.Email = strings.TrimSpace(d.Email)
	if d.Name == "" {
		return apperr.InvalidInput("name is required")
	}
	if d.Email == "" {
		return apperr.InvalidInput("email is required")
	}
	if err := s.doctors.Create(ctx, d); err != nil {
		if db.IsUniqueViolation(err) {
			return apperr.New(apperr.KindConflict, "Doctor with this email already exists")
		}
		return fmt.Errorf("create doctor: %w", err)
	}
	s.logger.Info().Str("doctor_id", d.ID.String()).Msg("created doctor")
	return nil
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	d, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "Doctor")
	}
	return d, nil
}

func (s *Service) ListDoctors(ctx context.Context) ([]*Doctor, error) {
	out, err := s.doctors.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	if out == nil {
		out = []*Doctor{}
	}
	return out, nil
}

// -- Patient --

func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return apperr.InvalidInput("name is required")
	}
	if p.DoctorID == uuid.Nil {
		return apperr.InvalidInput("doctor_id is required")
	}
	if err := s.patients.Create(ctx, p); err != nil {
		return fmt.Errorf("create patient: %w", err)
	}
	s.logger.Info().Str("patient_id", p.ID.String()).Msg("created patient")
	return nil
}

// GetPatient returns the patient with their most recent SOAP notes and
// prescriptions, newest first.
func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*PatientDetail, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "Patient")
	}
	soaps, rxs, err := s.history.RecentForPatient(ctx, id, RecentNotesLimit)
	if err != nil {
		return nil, fmt.Errorf("patient history: %w", err)
	}
	return &PatientDetail{Patient: p, RecentSOAPNotes: soaps, RecentPrescriptions: rxs}, nil
}

func (s *Service) ListPatients(ctx context.Context, doctorID uuid.UUID) ([]*Patient, error) {
	out, err := s.patients.ListByDoctor(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	if out == nil {
		out = []*Patient{}
	}
	return out, nil
}

func notFoundOr(err error, what string) error {
	if db.IsNotFound(err) {
		return apperr.NotFound(what)
	}
	return fmt.Errorf("get %s: %w", strings.ToLower(what), err)
}
