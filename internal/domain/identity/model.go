package identity

import (
	"time"

	"github.com/google/uuid"
)

// Doctor is a clinician who owns patients and signs notes.
type Doctor struct {
	ID            uuid.UUID `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	Email         string    `db:"email" json:"email"`
	Specialty     *string   `db:"specialty" json:"specialty,omitempty"`
	LicenseNumber *string   `db:"license_number" json:"license_number,omitempty"`
	Phone         *string   `db:"phone" json:"phone,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

type Patient struct {
	ID                 uuid.UUID `db:"id" json:"id"`
	DoctorID           uuid.UUID `db:"doctor_id" json:"doctor_id"`
	Name               string    `db:"name" json:"name"`
	DateOfBirth        *string   `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Gender             *string   `db:"gender" json:"gender,omitempty"`
	Phone              *string   `db:"phone" json:"phone,omitempty"`
	Email              *string   `db:"email" json:"email,omitempty"`
	Address            *string   `db:"address" json:"address,omitempty"`
	MedicalHistory     *string   `db:"medical_history" json:"medical_history,omitempty"`
	Allergies          *string   `db:"allergies" json:"allergies,omitempty"`
	CurrentMedications *string   `db:"current_medications" json:"current_medications,omitempty"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}

// RecentNotesLimit is how many notes of each type a patient lookup includes.
const RecentNotesLimit = 10
