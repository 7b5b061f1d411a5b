package notes

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NoteType selects which clinical document is generated.
type NoteType string

const (
	NoteTypeSOAP         NoteType = "soap"
	NoteTypePrescription NoteType = "prescription"
)

func (t NoteType) Valid() bool {
	return t == NoteTypeSOAP || t == NoteTypePrescription
}

// VisitType describes the encounter.
type VisitType string

const (
	VisitNew      VisitType = "new"
	VisitFollowup VisitType = "followup"
	VisitRepeat   VisitType = "repeat"
)

func (v VisitType) Valid() bool {
	switch v {
	case VisitNew, VisitFollowup, VisitRepeat:
		return true
	}
	return false
}

// SOAPNote is the validated Subjective/Objective/Assessment/Plan document.
type SOAPNote struct {
	ConversationSummary string   `json:"conversation_summary"`
	Subjective          string   `json:"subjective"`
	Objective           string   `json:"objective"`
	Assessment          string   `json:"assessment"`
	Plan                string   `json:"plan"`
	KeyInsights         string   `json:"key_insights"`
	AdminTasks          []string `json:"admin_tasks"`
}

// Medication is one prescribed drug. Dose is free text ("500mg", "10ml").
type Medication struct {
	Name         string `json:"name"`
	Dose         string `json:"dose"`
	Route        string `json:"route"`
	Frequency    string `json:"frequency"`
	Duration     string `json:"duration"`
	Instructions string `json:"instructions"`
}

// Recognised vital sign keys. Other keys are kept as-is.
var VitalSignKeys = []string{
	"blood_pressure",
	"heart_rate",
	"temperature",
	"respiratory_rate",
	"oxygen_saturation",
	"weight",
}

// PrescriptionNote is the validated prescription document.
type PrescriptionNote struct {
	PatientName    string            `json:"patient_name"`
	PatientID      string            `json:"patient_id"`
	ChiefComplaint string            `json:"chief_complaint"`
	Symptoms       []string          `json:"symptoms"`
	Diagnosis      string            `json:"diagnosis"`
	VitalSigns     map[string]string `json:"vital_signs"`
	Medications    []Medication      `json:"medications"`
	Instructions   string            `json:"instructions"`
	Warnings       []string          `json:"warnings"`
	FollowUp       string            `json:"follow_up"`
}

// Note holds exactly one of SOAP or Prescription, selected by Type.
type Note struct {
	Type         NoteType
	SOAP         *SOAPNote
	Prescription *PrescriptionNote
}

// Body returns the populated variant.
func (n *Note) Body() interface{} {
	if n.Type == NoteTypePrescription {
		return n.Prescription
	}
	return n.SOAP
}

// RequestContext is the caller-supplied identity of a generation request.
type RequestContext struct {
	PatientID   string
	DoctorID    string
	PatientName string
	VisitType   VisitType
}

// GenerateRequest is the input to the note generator.
type GenerateRequest struct {
	Transcript  string
	NoteType    NoteType
	Context     RequestContext
	SOAPContext map[string]interface{}
}

// -- Stored rows --

// SOAPNoteRecord maps to the soap_notes table.
type SOAPNoteRecord struct {
	ID                  uuid.UUID  `db:"id" json:"id"`
	PatientID           uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID            uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	ConversationID      *uuid.UUID `db:"conversation_id" json:"conversation_id,omitempty"`
	VisitType           string     `db:"visit_type" json:"visit_type"`
	ConversationSummary string     `db:"conversation_summary" json:"conversation_summary"`
	Subjective          string     `db:"subjective" json:"subjective"`
	Objective           string     `db:"objective" json:"objective"`
	Assessment          string     `db:"assessment" json:"assessment"`
	Plan                string     `db:"plan" json:"plan"`
	KeyInsights         string     `db:"key_insights" json:"key_insights"`
	AdminTasks          []string   `db:"admin_tasks" json:"admin_tasks"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
}

// PrescriptionRecord maps to the prescriptions table.
type PrescriptionRecord struct {
	ID             uuid.UUID          `db:"id" json:"id"`
	PatientID      uuid.UUID          `db:"patient_id" json:"patient_id"`
	DoctorID       uuid.UUID          `db:"doctor_id" json:"doctor_id"`
	ConversationID *uuid.UUID         `db:"conversation_id" json:"conversation_id,omitempty"`
	ChiefComplaint string             `db:"chief_complaint" json:"chief_complaint"`
	Symptoms       []string           `db:"symptoms" json:"symptoms"`
	Diagnosis      string             `db:"diagnosis" json:"diagnosis"`
	VitalSigns     map[string]string  `db:"vital_signs" json:"vital_signs"`
	Instructions   string             `db:"instructions" json:"instructions"`
	Warnings       []string           `db:"warnings" json:"warnings"`
	FollowUp       string             `db:"follow_up" json:"follow_up"`
	CreatedAt      time.Time          `db:"created_at" json:"created_at"`
	Medications    []MedicationRecord `db:"-" json:"medications,omitempty"`
}

// MedicationRecord maps to the medications table.
type MedicationRecord struct {
	ID             uuid.UUID `db:"id" json:"id"`
	PrescriptionID uuid.UUID `db:"prescription_id" json:"prescription_id"`
	Name           string    `db:"name" json:"name"`
	Dose           string    `db:"dose" json:"dose"`
	Route          string    `db:"route" json:"route"`
	Frequency      string    `db:"frequency" json:"frequency"`
	Duration       string    `db:"duration" json:"duration"`
	Instructions   string    `db:"instructions" json:"instructions"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// ListFilter narrows note listings. Zero-valued IDs are ignored.
type ListFilter struct {
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	Limit     int
}

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Normalize clamps the limit into [1, MaxListLimit].
func (f ListFilter) Normalize() ListFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	return f
}

func parseID(field, v string) (uuid.UUID, error) {
	id, err := uuid.Parse(v)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s: %q", field, v)
	}
	return id, nil
}
