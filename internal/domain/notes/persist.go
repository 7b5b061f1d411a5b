package notes

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/siddharth270/ConvergenceSSNZB/internal/platform/apperr"
)

// PersistContext carries the identifiers stored alongside a note.
type PersistContext struct {
	PatientID      uuid.UUID
	DoctorID       uuid.UUID
	ConversationID *uuid.UUID
	VisitType      VisitType
}

// StoredNote is a persisted note as returned to clients: the note fields
// plus id and note_type.
type StoredNote struct {
	Note *Note
	ID   uuid.UUID
}

func (s *StoredNote) MarshalJSON() ([]byte, error) {
	body, err := json.Marshal(s.Note.Body())
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, err
	}
	m["id"] = s.ID
	m["note_type"] = s.Note.Type
	return json.Marshal(m)
}

// FailedWrite identifies a medication insert that did not succeed.
type FailedWrite struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Error string `json:"error"`
}

// StorageError reports a failed persist. When Partial is set the parent row
// exists and only some children were written.
type StorageError struct {
	Partial  bool
	ParentID uuid.UUID
	Stored   int
	Failed   []FailedWrite
	Err      error
}

func (e *StorageError) Error() string {
	if e.Partial {
		return fmt.Sprintf("prescription %s saved with %d of %d medications", e.ParentID, e.Stored, e.Stored+len(e.Failed))
	}
	return fmt.Sprintf("failed to save note: %v", e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Kind() apperr.Kind { return apperr.KindStorage }

func (e *StorageError) Details() interface{} {
	d := map[string]interface{}{"partial": e.Partial}
	if e.Partial {
		d["prescription_id"] = e.ParentID
		d["medications_stored"] = e.Stored
		d["medications_failed"] = e.Failed
	}
	return d
}

// Mapper writes validated notes to the relational store.
type Mapper struct {
	soap   SOAPNoteRepository
	rx     PrescriptionRepository
	logger zerolog.Logger
}

func NewMapper(soap SOAPNoteRepository, rx PrescriptionRepository, logger zerolog.Logger) *Mapper {
	return &Mapper{soap: soap, rx: rx, logger: logger}
}

// Persist stores n. Prescriptions are written parent first; every
// medication is attempted even after a failure.
func (m *Mapper) Persist(ctx context.Context, n *Note, pc PersistContext) (*StoredNote, error) {
	switch n.Type {
	case NoteTypeSOAP:
		return m.persistSOAP(ctx, n, pc)
	case NoteTypePrescription:
		return m.persistPrescription(ctx, n, pc)
	default:
		return nil, apperr.InvalidInput("unknown note type %q", n.Type)
	}
}

func (m *Mapper) persistSOAP(ctx context.Context, n *Note, pc PersistContext) (*StoredNote, error) {
	s := n.SOAP
	rec := &SOAPNoteRecord{
		PatientID:           pc.PatientID,
		DoctorID:            pc.DoctorID,
		ConversationID:      pc.ConversationID,
		VisitType:           string(pc.VisitType),
		ConversationSummary: s.ConversationSummary,
		Subjective:          s.Subjective,
		Objective:           s.Objective,
		Assessment:          s.Assessment,
		Plan:                s.Plan,
		KeyInsights:         s.KeyInsights,
		AdminTasks:          s.AdminTasks,
	}
	if err := m.soap.Create(ctx, rec); err != nil {
		return nil, &StorageError{Err: err}
	}
	m.logger.Info().Str("soap_note_id", rec.ID.String()).Msg("saved SOAP note")
	return &StoredNote{Note: n, ID: rec.ID}, nil
}

func (m *Mapper) persistPrescription(ctx context.Context, n *Note, pc PersistContext) (*StoredNote, error) {
	p := n.Prescription
	rec := &PrescriptionRecord{
		PatientID:      pc.PatientID,
		DoctorID:       pc.DoctorID,
		ConversationID: pc.ConversationID,
		ChiefComplaint: p.ChiefComplaint,
		Symptoms:       p.Symptoms,
		Diagnosis:      p.Diagnosis,
		VitalSigns:     p.VitalSigns,
		Instructions:   p.Instructions,
		Warnings:       p.Warnings,
		FollowUp:       p.FollowUp,
	}
	if err := m.rx.Create(ctx, rec); err != nil {
		return nil, &StorageError{Err: err}
	}
	if rec.ID == uuid.Nil {
		return nil, &StorageError{Err: fmt.Errorf("prescription insert returned no id")}
	}

	var failed []FailedWrite
	stored := 0
	for i, med := range p.Medications {
		mr := &MedicationRecord{
			PrescriptionID: rec.ID,
			Name:           med.Name,
			Dose:           med.Dose,
			Route:          med.Route,
			Frequency:      med.Frequency,
			Duration:       med.Duration,
			Instructions:   med.Instructions,
		}
		if err := m.rx.AddMedication(ctx, mr); err != nil {
			m.logger.Error().Err(err).Int("index", i).Str("medication", med.Name).Msg("failed to save medication")
			failed = append(failed, FailedWrite{Index: i, Name: med.Name, Error: err.Error()})
			continue
		}
		stored++
	}

	log := m.logger.With().Str("prescription_id", rec.ID.String()).Logger()
	if len(failed) > 0 {
		log.Warn().Int("stored", stored).Int("failed", len(failed)).Msg("prescription saved partially")
		return nil, &StorageError{Partial: true, ParentID: rec.ID, Stored: stored, Failed: failed}
	}
	log.Info().Int("medications", stored).Msg("saved prescription")
	return &StoredNote{Note: n, ID: rec.ID}, nil
}
