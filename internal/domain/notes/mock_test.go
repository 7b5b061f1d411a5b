package notes

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/siddharth270/ConvergenceSSNZB/internal/platform/llm"
)

// -- Scripted language model --

type scriptedReply struct {
	text string
	err  error
}

type chatCall struct {
	messages []llm.Message
	opts     llm.ChatOptions
	deadline time.Time
}

type scriptedClient struct {
	mu      sync.Mutex
	replies []scriptedReply
	calls   []chatCall
}

func newScriptedClient(replies ...scriptedReply) *scriptedClient {
	return &scriptedClient{replies: replies}
}

func reply(text string) scriptedReply { return scriptedReply{text: text} }

func (c *scriptedClient) Chat(ctx context.Context, messages []llm.Message, opts llm.ChatOptions) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	dl, _ := ctx.Deadline()
	c.calls = append(c.calls, chatCall{messages: messages, opts: opts, deadline: dl})
	if len(c.replies) == 0 {
		return "", errors.New("scripted client exhausted")
	}
	r := c.replies[0]
	c.replies = c.replies[1:]
	return r.text, r.err
}

func (c *scriptedClient) Ping(context.Context) error { return nil }

func (c *scriptedClient) Name() string { return "scripted/test" }

func (c *scriptedClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

// -- In-memory repositories --

type mockSOAPRepo struct {
	store   map[uuid.UUID]*SOAPNoteRecord
	inserts int
	failErr error
}

func newMockSOAPRepo() *mockSOAPRepo {
	return &mockSOAPRepo{store: make(map[uuid.UUID]*SOAPNoteRecord)}
}

func (m *mockSOAPRepo) Create(_ context.Context, n *SOAPNoteRecord) error {
	m.inserts++
	if m.failErr != nil {
		return m.failErr
	}
	n.ID = uuid.New()
	n.CreatedAt = time.Now().Add(time.Duration(m.inserts) * time.Millisecond)
	m.store[n.ID] = n
	return nil
}

func (m *mockSOAPRepo) GetByID(_ context.Context, id uuid.UUID) (*SOAPNoteRecord, error) {
	n, ok := m.store[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return n, nil
}

func (m *mockSOAPRepo) List(_ context.Context, f ListFilter) ([]*SOAPNoteRecord, error) {
	var out []*SOAPNoteRecord
	for _, n := range m.store {
		if f.PatientID != uuid.Nil && n.PatientID != f.PatientID {
			continue
		}
		if f.DoctorID != uuid.Nil && n.DoctorID != f.DoctorID {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

type mockPrescriptionRepo struct {
	store       map[uuid.UUID]*PrescriptionRecord
	meds        []*MedicationRecord
	inserts     int
	createErr   error
	failMedName map[string]bool
}

func newMockPrescriptionRepo() *mockPrescriptionRepo {
	return &mockPrescriptionRepo{
		store:       make(map[uuid.UUID]*PrescriptionRecord),
		failMedName: make(map[string]bool),
	}
}

func (m *mockPrescriptionRepo) Create(_ context.Context, p *PrescriptionRecord) error {
	m.inserts++
	if m.createErr != nil {
		return m.createErr
	}
	p.ID = uuid.New()
	p.CreatedAt = time.Now().Add(time.Duration(m.inserts) * time.Millisecond)
	m.store[p.ID] = p
	return nil
}

func (m *mockPrescriptionRepo) GetByID(_ context.Context, id uuid.UUID) (*PrescriptionRecord, error) {
	p, ok := m.store[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *p
	return &cp, nil
}

func (m *mockPrescriptionRepo) List(_ context.Context, f ListFilter) ([]*PrescriptionRecord, error) {
	var out []*PrescriptionRecord
	for _, p := range m.store {
		if f.PatientID != uuid.Nil && p.PatientID != f.PatientID {
			continue
		}
		if f.DoctorID != uuid.Nil && p.DoctorID != f.DoctorID {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *mockPrescriptionRepo) AddMedication(_ context.Context, med *MedicationRecord) error {
	m.inserts++
	if m.failMedName[med.Name] {
		return errors.New("insert medication: connection reset")
	}
	if _, ok := m.store[med.PrescriptionID]; !ok {
		return errors.New("foreign key violation")
	}
	med.ID = uuid.New()
	m.meds = append(m.meds, med)
	return nil
}

func (m *mockPrescriptionRepo) GetMedications(_ context.Context, prescriptionID uuid.UUID) ([]*MedicationRecord, error) {
	var out []*MedicationRecord
	for _, med := range m.meds {
		if med.PrescriptionID == prescriptionID {
			out = append(out, med)
		}
	}
	return out, nil
}
