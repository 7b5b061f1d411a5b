package identity

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/siddharth270/ConvergenceSSNZB/internal/platform/db"
)

// -- Doctor Repository --

type doctorRepoPG struct {
	pool *pgxpool.Pool
}

func NewDoctorRepo(pool *pgxpool.Pool) DoctorRepository {
	return &doctorRepoPG{pool: pool}
}

func (r *doctorRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

var doctorCols = []interface{}{"id", "name", "email", "specialty", "license_number", "phone", "created_at"}

func (r *doctorRepoPG) Create(ctx context.Context, d *Doctor) error {
	d.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO doctors (id, name, email, specialty, license_number, phone)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at`,
		d.ID, d.Name, d.Email, d.Specialty, d.LicenseNumber, d.Phone,
	).Scan(&d.CreatedAt)
}

func (r *doctorRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	query, args, err := db.ToSQL(db.Dialect.From("doctors").Select(doctorCols...).Where(goqu.Ex{"id": id}))
	if err != nil {
		return nil, err
	}
	return scanDoctor(r.conn(ctx).QueryRow(ctx, query, args...))
}

func (r *doctorRepoPG) List(ctx context.Context) ([]*Doctor, error) {
	query, args, err := db.ToSQL(db.Dialect.From("doctors").Select(doctorCols...).Order(goqu.I("name").Asc()))
	if err != nil {
		return nil, err
	}
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	if err := row.Scan(&d.ID, &d.Name, &d.Email, &d.Specialty, &d.LicenseNumber, &d.Phone, &d.CreatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}

// -- Patient Repository --

type patientRepoPG struct {
	pool *pgxpool.Pool
}

func NewPatientRepo(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

func (r *patientRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

var patientCols = []interface{}{
	"id", "doctor_id", "name", "date_of_birth", "gender", "phone", "email",
	"address", "medical_history", "allergies", "current_medications", "created_at",
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patients (
			id, doctor_id, name, date_of_birth, gender, phone, email,
			address, medical_history, allergies, current_medications
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at`,
		p.ID, p.DoctorID, p.Name, p.DateOfBirth, p.Gender, p.Phone, p.Email,
		p.Address, p.MedicalHistory, p.Allergies, p.CurrentMedications,
	).Scan(&p.CreatedAt)
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	query, args, err := db.ToSQL(db.Dialect.From("patients").Select(patientCols...).Where(goqu.Ex{"id": id}))
	if err != nil {
		return nil, err
	}
	return scanPatient(r.conn(ctx).QueryRow(ctx, query, args...))
}

func (r *patientRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*Patient, error) {
	ds := db.Dialect.From("patients").Select(patientCols...).
		Where(goqu.Ex{"doctor_id": doctorID}).
		Order(goqu.I("name").Asc())
	query, args, err := db.ToSQL(ds)
	if err != nil {
		return nil, err
	}
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID, &p.DoctorID, &p.Name, &p.DateOfBirth, &p.Gender, &p.Phone, &p.Email,
		&p.Address, &p.MedicalHistory, &p.Allergies, &p.CurrentMedications, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
