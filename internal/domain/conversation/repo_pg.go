package conversation

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/siddharth270/ConvergenceSSNZB/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

var cols = []interface{}{"id", "patient_id", "doctor_id", "transcript", "audio_duration", "created_at"}

func (r *repoPG) Create(ctx context.Context, c *Conversation) error {
	c.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO conversations (id, patient_id, doctor_id, transcript, audio_duration)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at`,
		c.ID, c.PatientID, c.DoctorID, c.Transcript, c.AudioDuration,
	).Scan(&c.CreatedAt)
}

func (r *repoPG) List(ctx context.Context, f ListFilter) ([]*Conversation, error) {
	f = f.Normalize()
	ds := db.Dialect.From("conversations").Select(cols...)
	if f.PatientID != uuid.Nil {
		ds = ds.Where(goqu.Ex{"patient_id": f.PatientID})
	}
	if f.DoctorID != uuid.Nil {
		ds = ds.Where(goqu.Ex{"doctor_id": f.DoctorID})
	}
	query, args, err := db.ToSQL(ds.Order(goqu.I("created_at").Desc()).Limit(uint(f.Limit)))
	if err != nil {
		return nil, err
	}
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanConversation(row pgx.Row) (*Conversation, error) {
	var c Conversation
	if err := row.Scan(&c.ID, &c.PatientID, &c.DoctorID, &c.Transcript, &c.AudioDuration, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}
