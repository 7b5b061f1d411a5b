package notes

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/siddharth270/ConvergenceSSNZB/internal/platform/apperr"
)

type testDeps struct {
	llm  *scriptedClient
	soap *mockSOAPRepo
	rx   *mockPrescriptionRepo
}

func newTestService(replies ...scriptedReply) (*Service, *testDeps) {
	d := &testDeps{
		llm:  newScriptedClient(replies...),
		soap: newMockSOAPRepo(),
		rx:   newMockPrescriptionRepo(),
	}
	gen := NewGenerator(d.llm, time.Second, 0, zerolog.Nop())
	return NewService(gen, d.soap, d.rx, zerolog.Nop()), d
}

const amoxicillinReply = `Here is the prescription:
` + "```json" + `
{
  "chief_complaint": "Sore throat",
  "symptoms": ["sore throat", "fever"],
  "diagnosis": "Streptococcal pharyngitis",
  "vital_signs": {"temperature": "38.5C"},
  "medications": [
    {"name": "Amoxicillin", "dose": "500mg", "route": "Oral", "frequency": "Three times daily", "duration": "10 days", "instructions": "Take with food"}
  ],
  "instructions": "Rest and hydrate",
  "warnings": ["Stop if rash develops"],
  "follow_up": "Return in 2 weeks",
  "patient_name": "Someone Else"
}
` + "```"

func summarizeInput(noteType string) SummarizeInput {
	return SummarizeInput{
		Transcript:  "Doctor: I'm prescribing amoxicillin 500mg three times a day for ten days.",
		NoteType:    noteType,
		VisitType:   "new",
		PatientName: "Jane Doe",
		PatientID:   uuid.New().String(),
		DoctorID:    uuid.New().String(),
	}
}

func TestService_Summarize_Amoxicillin(t *testing.T) {
	svc, d := newTestService(reply(amoxicillinReply))
	in := summarizeInput("prescription")

	stored, err := svc.Summarize(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.Note.Type != NoteTypePrescription {
		t.Errorf("expected prescription, got %s", stored.Note.Type)
	}
	p := stored.Note.Prescription
	if p.PatientName != "Jane Doe" {
		t.Errorf("expected caller-supplied patient name, got %s", p.PatientName)
	}
	if p.PatientID != in.PatientID {
		t.Errorf("expected patient id %s, got %s", in.PatientID, p.PatientID)
	}
	if len(p.Medications) != 1 || p.Medications[0].Dose != "500mg" {
		t.Fatalf("unexpected medications: %+v", p.Medications)
	}
	if d.llm.callCount() != 1 {
		t.Errorf("expected 1 llm call, got %d", d.llm.callCount())
	}
	if d.rx.inserts != 2 {
		t.Errorf("expected 2 inserts, got %d", d.rx.inserts)
	}

	got, err := svc.GetPrescription(context.Background(), stored.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Diagnosis != "Streptococcal pharyngitis" {
		t.Errorf("expected diagnosis, got %s", got.Diagnosis)
	}
	if len(got.Medications) != 1 || got.Medications[0].Name != "Amoxicillin" {
		t.Errorf("expected amoxicillin row, got %+v", got.Medications)
	}
	if got.PatientID.String() != in.PatientID {
		t.Errorf("expected stored patient id %s, got %s", in.PatientID, got.PatientID)
	}
}

func TestService_Summarize_EmptyTranscript(t *testing.T) {
	svc, d := newTestService(reply(soapJSON))
	in := summarizeInput("soap")
	in.Transcript = "  "

	_, err := svc.Summarize(context.Background(), in)
	if !apperr.Is(err, apperr.KindInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if d.llm.callCount() != 0 {
		t.Errorf("expected no llm call, got %d", d.llm.callCount())
	}
}

func TestService_Summarize_InvalidPatientID(t *testing.T) {
	svc, d := newTestService(reply(soapJSON))
	in := summarizeInput("soap")
	in.PatientID = "not-a-uuid"

	_, err := svc.Summarize(context.Background(), in)
	if !apperr.Is(err, apperr.KindInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if d.llm.callCount() != 0 {
		t.Errorf("expected no llm call, got %d", d.llm.callCount())
	}
}

func TestService_Summarize_RetrySuccessPersists(t *testing.T) {
	svc, d := newTestService(reply("no json at all"), reply(soapJSON))
	cid := uuid.New().String()
	in := summarizeInput("soap")
	in.ConversationID = &cid

	stored, err := svc.Summarize(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.soap.inserts != 1 {
		t.Errorf("expected retry result to be stored, got %d inserts", d.soap.inserts)
	}
	rec := d.soap.store[stored.ID]
	if rec.ConversationID == nil || rec.ConversationID.String() != cid {
		t.Errorf("expected conversation id %s", cid)
	}
}

func TestService_Summarize_FailureStoresNothing(t *testing.T) {
	svc, d := newTestService(reply("nope"), reply("still nope"))
	_, err := svc.Summarize(context.Background(), summarizeInput("soap"))
	if !apperr.Is(err, apperr.KindGenerationFailed) {
		t.Fatalf("expected generation failure, got %v", err)
	}
	if d.soap.inserts != 0 {
		t.Errorf("expected no inserts, got %d", d.soap.inserts)
	}
}

func TestService_GetSOAPNote_NotFound(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.GetSOAPNote(context.Background(), uuid.New())
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestService_ListSOAPNotes_FilterAndOrder(t *testing.T) {
	svc, d := newTestService()
	patient := uuid.New()
	for i := 0; i < 3; i++ {
		d.soap.Create(context.Background(), &SOAPNoteRecord{PatientID: patient, DoctorID: uuid.New()})
	}
	d.soap.Create(context.Background(), &SOAPNoteRecord{PatientID: uuid.New()})

	out, err := svc.ListSOAPNotes(context.Background(), ListFilter{PatientID: patient})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 notes, got %d", len(out))
	}
	for i := 1; i < len(out); i++ {
		if out[i].CreatedAt.After(out[i-1].CreatedAt) {
			t.Error("expected newest first")
		}
	}

	limited, _ := svc.ListSOAPNotes(context.Background(), ListFilter{PatientID: patient, Limit: 2})
	if len(limited) != 2 {
		t.Errorf("expected 2 notes, got %d", len(limited))
	}
}

func TestService_RecentForPatient(t *testing.T) {
	svc, d := newTestService()
	patient := uuid.New()
	for i := 0; i < 12; i++ {
		d.soap.Create(context.Background(), &SOAPNoteRecord{PatientID: patient})
	}
	d.rx.Create(context.Background(), &PrescriptionRecord{PatientID: patient})

	soaps, rxs, err := svc.RecentForPatient(context.Background(), patient, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(soaps) != 10 {
		t.Errorf("expected 10 notes, got %d", len(soaps))
	}
	if len(rxs) != 1 {
		t.Errorf("expected 1 prescription, got %d", len(rxs))
	}
}

func TestListFilter_Normalize(t *testing.T) {
	if got := (ListFilter{}).Normalize().Limit; got != DefaultListLimit {
		t.Errorf("expected %d, got %d", DefaultListLimit, got)
	}
	if got := (ListFilter{Limit: 500}).Normalize().Limit; got != MaxListLimit {
		t.Errorf("expected %d, got %d", MaxListLimit, got)
	}
}
