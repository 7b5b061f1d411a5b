package notes

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/siddharth270/ConvergenceSSNZB/internal/platform/db"
)

// -- SOAP Note Repository --

type soapRepoPG struct {
	pool *pgxpool.Pool
}

func NewSOAPNoteRepo(pool *pgxpool.Pool) SOAPNoteRepository {
	return &soapRepoPG{pool: pool}
}

func (r *soapRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

var soapCols = []interface{}{
	"id", "patient_id", "doctor_id", "conversation_id", "visit_type",
	"conversation_summary", "subjective", "objective", "assessment", "plan",
	"key_insights", "admin_tasks", "created_at",
}

func (r *soapRepoPG) Create(ctx context.Context, n *SOAPNoteRecord) error {
	n.ID = uuid.New()
	if n.AdminTasks == nil {
		n.AdminTasks = []string{}
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO soap_notes (
			id, patient_id, doctor_id, conversation_id, visit_type,
			conversation_summary, subjective, objective, assessment, plan,
			key_insights, admin_tasks
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING created_at`,
		n.ID, n.PatientID, n.DoctorID, n.ConversationID, n.VisitType,
		n.ConversationSummary, n.Subjective, n.Objective, n.Assessment, n.Plan,
		n.KeyInsights, n.AdminTasks,
	).Scan(&n.CreatedAt)
}

func (r *soapRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*SOAPNoteRecord, error) {
	query, args, err := db.ToSQL(db.Dialect.From("soap_notes").Select(soapCols...).Where(goqu.Ex{"id": id}))
	if err != nil {
		return nil, err
	}
	return scanSOAPNote(r.conn(ctx).QueryRow(ctx, query, args...))
}

func (r *soapRepoPG) List(ctx context.Context, f ListFilter) ([]*SOAPNoteRecord, error) {
	query, args, err := db.ToSQL(listDataset("soap_notes", soapCols, f))
	if err != nil {
		return nil, err
	}
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*SOAPNoteRecord
	for rows.Next() {
		n, err := scanSOAPNote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func scanSOAPNote(row pgx.Row) (*SOAPNoteRecord, error) {
	var n SOAPNoteRecord
	err := row.Scan(
		&n.ID, &n.PatientID, &n.DoctorID, &n.ConversationID, &n.VisitType,
		&n.ConversationSummary, &n.Subjective, &n.Objective, &n.Assessment, &n.Plan,
		&n.KeyInsights, &n.AdminTasks, &n.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// -- Prescription Repository --

type prescriptionRepoPG struct {
	pool *pgxpool.Pool
}

func NewPrescriptionRepo(pool *pgxpool.Pool) PrescriptionRepository {
	return &prescriptionRepoPG{pool: pool}
}

func (r *prescriptionRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

var prescriptionCols = []interface{}{
	"id", "patient_id", "doctor_id", "conversation_id",
	"chief_complaint", "symptoms", "diagnosis", "vital_signs",
	"instructions", "warnings", "follow_up", "created_at",
}

func (r *prescriptionRepoPG) Create(ctx context.Context, p *PrescriptionRecord) error {
	p.ID = uuid.New()
	if p.Symptoms == nil {
		p.Symptoms = []string{}
	}
	if p.Warnings == nil {
		p.Warnings = []string{}
	}
	if p.VitalSigns == nil {
		p.VitalSigns = map[string]string{}
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO prescriptions (
			id, patient_id, doctor_id, conversation_id,
			chief_complaint, symptoms, diagnosis, vital_signs,
			instructions, warnings, follow_up
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at`,
		p.ID, p.PatientID, p.DoctorID, p.ConversationID,
		p.ChiefComplaint, p.Symptoms, p.Diagnosis, p.VitalSigns,
		p.Instructions, p.Warnings, p.FollowUp,
	).Scan(&p.CreatedAt)
}

func (r *prescriptionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*PrescriptionRecord, error) {
	query, args, err := db.ToSQL(db.Dialect.From("prescriptions").Select(prescriptionCols...).Where(goqu.Ex{"id": id}))
	if err != nil {
		return nil, err
	}
	return scanPrescription(r.conn(ctx).QueryRow(ctx, query, args...))
}

func (r *prescriptionRepoPG) List(ctx context.Context, f ListFilter) ([]*PrescriptionRecord, error) {
	query, args, err := db.ToSQL(listDataset("prescriptions", prescriptionCols, f))
	if err != nil {
		return nil, err
	}
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*PrescriptionRecord
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *prescriptionRepoPG) AddMedication(ctx context.Context, m *MedicationRecord) error {
	m.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medications (id, prescription_id, name, dose, route, frequency, duration, instructions)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at`,
		m.ID, m.PrescriptionID, m.Name, m.Dose, m.Route, m.Frequency, m.Duration, m.Instructions,
	).Scan(&m.CreatedAt)
}

func (r *prescriptionRepoPG) GetMedications(ctx context.Context, prescriptionID uuid.UUID) ([]*MedicationRecord, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, prescription_id, name, dose, route, frequency, duration, instructions, created_at
		FROM medications WHERE prescription_id = $1 ORDER BY created_at, id`, prescriptionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*MedicationRecord
	for rows.Next() {
		var m MedicationRecord
		if err := rows.Scan(&m.ID, &m.PrescriptionID, &m.Name, &m.Dose, &m.Route,
			&m.Frequency, &m.Duration, &m.Instructions, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func scanPrescription(row pgx.Row) (*PrescriptionRecord, error) {
	var p PrescriptionRecord
	err := row.Scan(
		&p.ID, &p.PatientID, &p.DoctorID, &p.ConversationID,
		&p.ChiefComplaint, &p.Symptoms, &p.Diagnosis, &p.VitalSigns,
		&p.Instructions, &p.Warnings, &p.FollowUp, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// listDataset selects cols from table filtered by the non-zero ids in f,
// newest first.
func listDataset(table string, cols []interface{}, f ListFilter) *goqu.SelectDataset {
	f = f.Normalize()
	ds := db.Dialect.From(table).Select(cols...)
	if f.PatientID != uuid.Nil {
		ds = ds.Where(goqu.Ex{"patient_id": f.PatientID})
	}
	if f.DoctorID != uuid.Nil {
		ds = ds.Where(goqu.Ex{"doctor_id": f.DoctorID})
	}
	return ds.Order(goqu.I("created_at").Desc()).Limit(uint(f.Limit))
}
