package notes

import (
	"context"

	"github.com/google/uuid"
)

type SOAPNoteRepository interface {
	Create(ctx context.Context, n *SOAPNoteRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*SOAPNoteRecord, error)
	List(ctx context.Context, f ListFilter) ([]*SOAPNoteRecord, error)
}

type PrescriptionRepository interface {
	Create(ctx context.Context, p *PrescriptionRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*PrescriptionRecord, error)
	List(ctx context.Context, f ListFilter) ([]*PrescriptionRecord, error)

	// Medications
	AddMedication(ctx context.Context, m *MedicationRecord) error
	GetMedications(ctx context.Context, prescriptionID uuid.UUID) ([]*MedicationRecord, error)
}
