package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/siddharth270/ConvergenceSSNZB/internal/domain/notes"
)

func newTestHandler() (*Handler, *Service, *mockHistory, *echo.Echo) {
	svc, _, _, h := newTestService()
	return NewHandler(svc), svc, h, echo.New()
}

func TestHandler_CreateDoctor(t *testing.T) {
	h, _, _, e := newTestHandler()

	body := `{"name":"Dr. Ada Grey","email":"ada@example.com","specialty":"Family Medicine"}`
	req := httptest.NewRequest(http.MethodPost, "/api/doctors", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.CreateDoctor(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var out Doctor
	json.Unmarshal(rec.Body.Bytes(), &out)
	if out.Specialty == nil || *out.Specialty != "Family Medicine" {
		t.Errorf("expected specialty, got %v", out.Specialty)
	}
}

func TestHandler_CreateDoctor_Duplicate(t *testing.T) {
	h, _, _, e := newTestHandler()
	body := `{"name":"Dr. Ada Grey","email":"ada@example.com"}`

	for i, want := range []int{http.StatusCreated, http.StatusBadRequest} {
		req := httptest.NewRequest(http.MethodPost, "/api/doctors", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := h.CreateDoctor(c)
		if i == 0 {
			if err != nil || rec.Code != want {
				t.Fatalf("expected %d, got %d (%v)", want, rec.Code, err)
			}
			continue
		}
		he, ok := err.(*echo.HTTPError)
		if !ok || he.Code != want {
			t.Fatalf("expected %d, got %v", want, err)
		}
		if he.Message != "Doctor with this email already exists" {
			t.Errorf("unexpected message %v", he.Message)
		}
	}
}

func TestHandler_GetDoctor_NotFound(t *testing.T) {
	h, _, _, e := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	err := h.GetDoctor(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestHandler_CreatePatient_RequiresDoctorID(t *testing.T) {
	h, _, _, e := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/patients", strings.NewReader(`{"name":"Jane Doe"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.CreatePatient(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_CreatePatient(t *testing.T) {
	h, _, _, e := newTestHandler()
	doctor := uuid.New()

	body := `{"name":"Jane Doe","allergies":"Penicillin"}`
	req := httptest.NewRequest(http.MethodPost, "/api/patients?doctor_id="+doctor.String(), strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.CreatePatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var out Patient
	json.Unmarshal(rec.Body.Bytes(), &out)
	if out.DoctorID != doctor {
		t.Errorf("expected doctor %s, got %s", doctor, out.DoctorID)
	}
}

func TestHandler_GetPatient_IncludesRecentNotes(t *testing.T) {
	h, svc, hist, e := newTestHandler()
	p := &Patient{Name: "Jane Doe", DoctorID: uuid.New()}
	svc.CreatePatient(context.Background(), p)
	hist.soaps = []*notes.SOAPNoteRecord{{ID: uuid.New(), PatientID: p.ID, Assessment: "Bronchitis"}}
	hist.rxs = []*notes.PrescriptionRecord{}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())

	if err := h.GetPatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var out map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &out)
	if out["name"] != "Jane Doe" {
		t.Errorf("expected patient fields at top level, got %v", out)
	}
	recent, ok := out["recent_soap_notes"].([]interface{})
	if !ok || len(recent) != 1 {
		t.Errorf("expected 1 recent soap note, got %v", out["recent_soap_notes"])
	}
	if _, ok := out["recent_prescriptions"].([]interface{}); !ok {
		t.Errorf("expected recent_prescriptions array, got %v", out["recent_prescriptions"])
	}
}

func TestHandler_GetPatient_NotFound(t *testing.T) {
	h, _, _, e := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	err := h.GetPatient(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
	if he.Message != "Patient not found" {
		t.Errorf("unexpected message %v", he.Message)
	}
}

func TestHandler_ListPatients_InvalidDoctorID(t *testing.T) {
	h, _, _, e := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/patients?doctor_id=abc", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.ListPatients(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}
