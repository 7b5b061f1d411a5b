package notes

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/siddharth270/ConvergenceSSNZB/internal/platform/llm"
	"github.com/siddharth270/ConvergenceSSNZB/internal/platform/render"
)

func newTestHandler(replies ...scriptedReply) (*Handler, *testDeps, *echo.Echo) {
	svc, d := newTestService(replies...)
	r, err := render.New()
	if err != nil {
		panic(err)
	}
	return NewHandler(svc, r), d, echo.New()
}

func summarizeBody(noteType string) string {
	b, _ := json.Marshal(summarizeInput(noteType))
	return string(b)
}

func TestHandler_Summarize(t *testing.T) {
	h, _, e := newTestHandler(reply(soapJSON))

	req := httptest.NewRequest(http.MethodPost, "/api/summarize", strings.NewReader(summarizeBody("soap")))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Summarize(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	var out map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &out)
	if out["note_type"] != "soap" {
		t.Errorf("expected note_type soap, got %v", out["note_type"])
	}
	if out["id"] == nil || out["id"] == "" {
		t.Error("expected id in response")
	}
	if out["assessment"] != "Bronchitis" {
		t.Errorf("expected assessment, got %v", out["assessment"])
	}
}

func TestHandler_Summarize_BadNoteType(t *testing.T) {
	h, d, e := newTestHandler(reply(soapJSON))

	req := httptest.NewRequest(http.MethodPost, "/api/summarize", strings.NewReader(summarizeBody("letter")))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Summarize(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
	if d.llm.callCount() != 0 {
		t.Error("expected no upstream call")
	}
}

func TestHandler_Summarize_UpstreamTimeout(t *testing.T) {
	h, _, e := newTestHandler(scriptedReply{err: &llm.UpstreamError{Provider: "ollama", Timeout: true}})

	req := httptest.NewRequest(http.MethodPost, "/api/summarize", strings.NewReader(summarizeBody("soap")))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Summarize(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %v", err)
	}
	if he.Message != "AI service timed out. Please try again." {
		t.Errorf("unexpected message %v", he.Message)
	}
}

func TestHandler_Summarize_GenerationFailed(t *testing.T) {
	h, _, e := newTestHandler(reply("x"), reply("y"))

	req := httptest.NewRequest(http.MethodPost, "/api/summarize", strings.NewReader(summarizeBody("soap")))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Summarize(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %v", err)
	}
}

func TestHandler_Summarize_PartialStorage(t *testing.T) {
	h, d, e := newTestHandler(reply(amoxicillinReply))
	d.rx.failMedName["Amoxicillin"] = true

	req := httptest.NewRequest(http.MethodPost, "/api/summarize", strings.NewReader(summarizeBody("prescription")))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Summarize(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %v", err)
	}
	body, ok := he.Message.(map[string]interface{})
	if !ok {
		t.Fatalf("expected structured body, got %T", he.Message)
	}
	details := body["details"].(map[string]interface{})
	if details["partial"] != true {
		t.Errorf("expected partial details, got %v", details)
	}
}

func TestHandler_GetSOAPNote_NotFound(t *testing.T) {
	h, _, e := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	err := h.GetSOAPNote(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestHandler_GetSOAPNote_InvalidID(t *testing.T) {
	h, _, e := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("abc")

	err := h.GetSOAPNote(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_ListSOAPNotes_LimitTooLarge(t *testing.T) {
	h, _, e := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/soap-notes?limit=101", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.ListSOAPNotes(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_ListPrescriptions_Empty(t *testing.T) {
	h, _, e := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/prescriptions?patient_id="+uuid.New().String(), nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListPrescriptions(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("expected empty array, got %s", rec.Body.String())
	}
}

func TestHandler_Render(t *testing.T) {
	h, _, e := newTestHandler()

	body := `{"note_type":"soap","note_data":{"subjective":"Cough"},"patient_name":"Jane Doe","patient_id":"P-1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/render", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Render(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-cache, no-store, must-revalidate" {
		t.Errorf("unexpected Cache-Control %q", got)
	}
	if rec.Header().Get("Pragma") != "no-cache" || rec.Header().Get("Expires") != "0" {
		t.Error("expected no-cache headers")
	}
	if !strings.Contains(rec.Body.String(), "Cough") || !strings.Contains(rec.Body.String(), "followup") {
		t.Error("expected note content and default visit type")
	}
}

func TestHandler_Render_EmptyNoteData(t *testing.T) {
	h, _, e := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/render", strings.NewReader(`{"note_type":"soap","note_data":{}}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Render(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
	if he.Message != "Note data cannot be empty" {
		t.Errorf("unexpected message %v", he.Message)
	}
}

func TestHandler_Render_UnknownType(t *testing.T) {
	h, _, e := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/render", strings.NewReader(`{"note_type":"referral","note_data":{}}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Render(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}
