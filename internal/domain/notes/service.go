package notes

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/siddharth270/ConvergenceSSNZB/internal/platform/apperr"
	"github.com/siddharth270/ConvergenceSSNZB/internal/platform/db"
)

// SummarizeInput is the body of a note generation request.
type SummarizeInput struct {
	Transcript     string                 `json:"transcript"`
	NoteType       string                 `json:"note_type"`
	VisitType      string                 `json:"visit_type"`
	PatientName    string                 `json:"patient_name"`
	PatientID      string                 `json:"patient_id"`
	DoctorID       string                 `json:"doctor_id"`
	ConversationID *string                `json:"conversation_id,omitempty"`
	SOAPContext    map[string]interface{} `json:"soap_context,omitempty"`
}

func (in SummarizeInput) request() GenerateRequest {
	return GenerateRequest{
		Transcript: in.Transcript,
		NoteType:   NoteType(in.NoteType),
		Context: RequestContext{
			PatientID:   in.PatientID,
			DoctorID:    in.DoctorID,
			PatientName: in.PatientName,
			VisitType:   VisitType(in.VisitType),
		},
		SOAPContext: in.SOAPContext,
	}
}

type Service struct {
	gen    *Generator
	mapper *Mapper
	soap   SOAPNoteRepository
	rx     PrescriptionRepository
	logger zerolog.Logger
}

func NewService(gen *Generator, soap SOAPNoteRepository, rx PrescriptionRepository, logger zerolog.Logger) *Service {
	return &Service{
		gen:    gen,
		mapper: NewMapper(soap, rx, logger),
		soap:   soap,
		rx:     rx,
		logger: logger,
	}
}

// Summarize generates a note from a transcript and stores it.
func (s *Service) Summarize(ctx context.Context, in SummarizeInput) (*StoredNote, error) {
	req := in.request()
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	pc, err := persistContext(in)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("note_type", in.NoteType).Str("patient_id", in.PatientID).Msg("generating note")
	gen, err := s.gen.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.mapper.Persist(ctx, gen.Note, pc)
}

func persistContext(in SummarizeInput) (PersistContext, error) {
	pc := PersistContext{VisitType: VisitType(in.VisitType)}
	var err error
	if pc.PatientID, err = parseID("patient_id", in.PatientID); err != nil {
		return pc, apperr.InvalidInput("%s", err.Error())
	}
	if pc.DoctorID, err = parseID("doctor_id", in.DoctorID); err != nil {
		return pc, apperr.InvalidInput("%s", err.Error())
	}
	if in.ConversationID != nil && strings.TrimSpace(*in.ConversationID) != "" {
		cid, err := parseID("conversation_id", *in.ConversationID)
		if err != nil {
			return pc, apperr.InvalidInput("%s", err.Error())
		}
		pc.ConversationID = &cid
	}
	return pc, nil
}

// Generate runs the generator without persisting.
func (s *Service) Generate(ctx context.Context, in SummarizeInput) (*Generation, error) {
	return s.gen.Generate(ctx, in.request())
}

func (s *Service) GetSOAPNote(ctx context.Context, id uuid.UUID) (*SOAPNoteRecord, error) {
	n, err := s.soap.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "SOAP note")
	}
	return n, nil
}

func (s *Service) ListSOAPNotes(ctx context.Context, f ListFilter) ([]*SOAPNoteRecord, error) {
	out, err := s.soap.List(ctx, f.Normalize())
	if err != nil {
		return nil, fmt.Errorf("list soap notes: %w", err)
	}
	if out == nil {
		out = []*SOAPNoteRecord{}
	}
	return out, nil
}

// GetPrescription returns the prescription with its medications.
func (s *Service) GetPrescription(ctx context.Context, id uuid.UUID) (*PrescriptionRecord, error) {
	p, err := s.rx.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "Prescription")
	}
	meds, err := s.rx.GetMedications(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get medications: %w", err)
	}
	p.Medications = make([]MedicationRecord, 0, len(meds))
	for _, m := range meds {
		p.Medications = append(p.Medications, *m)
	}
	return p, nil
}

func (s *Service) ListPrescriptions(ctx context.Context, f ListFilter) ([]*PrescriptionRecord, error) {
	out, err := s.rx.List(ctx, f.Normalize())
	if err != nil {
		return nil, fmt.Errorf("list prescriptions: %w", err)
	}
	if out == nil {
		out = []*PrescriptionRecord{}
	}
	return out, nil
}

// RecentForPatient returns the n most recent SOAP notes and prescriptions.
func (s *Service) RecentForPatient(ctx context.Context, patientID uuid.UUID, n int) ([]*SOAPNoteRecord, []*PrescriptionRecord, error) {
	f := ListFilter{PatientID: patientID, Limit: n}
	soaps, err := s.ListSOAPNotes(ctx, f)
	if err != nil {
		return nil, nil, err
	}
	rxs, err := s.ListPrescriptions(ctx, f)
	if err != nil {
		return nil, nil, err
	}
	return soaps, rxs, nil
}

func notFoundOr(err error, what string) error {
	if db.IsNotFound(err) {
		return apperr.NotFound(what)
	}
	return fmt.Errorf("get %s: %w", strings.ToLower(what), err)
}
