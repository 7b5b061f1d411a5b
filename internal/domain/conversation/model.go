package conversation

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is a stored transcript of one visit.
type Conversation struct {
	ID            uuid.UUID `db:"id" json:"id"`
	PatientID     uuid.UUID `db:"patient_id" json:"patient_id"`
	DoctorID      uuid.UUID `db:"doctor_id" json:"doctor_id"`
	Transcript    string    `db:"transcript" json:"transcript"`
	AudioDuration float64   `db:"audio_duration" json:"audio_duration"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// ListFilter narrows a conversation listing. Zero ids are not applied.
type ListFilter struct {
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	Limit     int
}

func (f ListFilter) Normalize() ListFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	return f
}
