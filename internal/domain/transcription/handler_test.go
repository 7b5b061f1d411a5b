package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/siddharth270/ConvergenceSSNZB/internal/domain/conversation"
	"github.com/siddharth270/ConvergenceSSNZB/internal/platform/llm"
	"github.com/siddharth270/ConvergenceSSNZB/internal/platform/middleware"
	"github.com/siddharth270/ConvergenceSSNZB/internal/platform/stt"
)

type mockTranscriber struct {
	mu     sync.Mutex
	calls  int
	result *stt.Result
	err    error
	last   stt.Audio
}

func (m *mockTranscriber) Transcribe(_ context.Context, a stt.Audio) (*stt.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.last = a
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func (m *mockTranscriber) Close() error { return nil }

type mockRecorder struct {
	calls int
	err   error
}

func (m *mockRecorder) Record(_ context.Context, patientID, doctorID uuid.UUID, transcript string, seconds float64) (*conversation.Conversation, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &conversation.Conversation{ID: uuid.New(), PatientID: patientID, DoctorID: doctorID, Transcript: transcript, AudioDuration: seconds}, nil
}

func uploadRequest(t *testing.T, size int, contentType string, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="audio"; filename="visit.webm"`)
	hdr.Set("Content-Type", contentType)
	part, err := w.CreatePart(hdr)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	part.Write(bytes.Repeat([]byte{0x1a}, size))
	for k, v := range fields {
		w.WriteField(k, v)
	}
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/transcribe", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

func newTestHandler(tr *mockTranscriber, rec *mockRecorder) *Handler {
	return NewHandler(tr, rec, 0, zerolog.Nop())
}

func TestTranscribe_Success(t *testing.T) {
	tr := &mockTranscriber{result: &stt.Result{Text: "  Doctor: How are you feeling today?  ", Duration: 12340 * time.Millisecond}}
	recorder := &mockRecorder{}
	h := newTestHandler(tr, recorder)
	e := echo.New()

	fields := map[string]string{"patient_id": uuid.New().String(), "doctor_id": uuid.New().String()}
	rec := httptest.NewRecorder()
	c := e.NewContext(uploadRequest(t, 1024, "audio/webm", fields), rec)

	if err := h.Transcribe(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var out Response
	json.Unmarshal(rec.Body.Bytes(), &out)
	if out.Transcript != "Doctor: How are you feeling today?" {
		t.Errorf("unexpected transcript %q", out.Transcript)
	}
	if out.Status != "success" {
		t.Errorf("expected success, got %s", out.Status)
	}
	if out.AudioDuration != "12.3 seconds" {
		t.Errorf("expected 12.3 seconds, got %s", out.AudioDuration)
	}
	if out.ConversationID == nil {
		t.Error("expected conversation id")
	}
	if tr.last.ContentType != "audio/webm" || len(tr.last.Data) != 1024 {
		t.Errorf("unexpected audio passed to transcriber: %s, %d bytes", tr.last.ContentType, len(tr.last.Data))
	}
}

func TestTranscribe_TooLarge(t *testing.T) {
	tr := &mockTranscriber{result: &stt.Result{Text: "hello"}}
	h := newTestHandler(tr, &mockRecorder{})
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(uploadRequest(t, 26<<20, "audio/webm", nil), rec)

	err := h.Transcribe(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %v", err)
	}
	if he.Message != "Audio file too large. Maximum size is 25MB." {
		t.Errorf("unexpected message %v", he.Message)
	}
	if tr.calls != 0 {
		t.Errorf("expected no transcription call, got %d", tr.calls)
	}
}

func TestTranscribe_ChunkedUploadOverBodyLimit(t *testing.T) {
	tr := &mockTranscriber{result: &stt.Result{Text: "hello"}}
	h := NewHandler(tr, &mockRecorder{}, 1<<20, zerolog.Nop())
	e := echo.New()

	req := uploadRequest(t, 3<<20, "audio/webm", nil)
	req.ContentLength = -1
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	limited := middleware.BodyLimit("1M", map[string]string{"/api/transcribe": "2M"})(h.Transcribe)
	err := limited(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %v", err)
	}
	if he.Message != "Audio file too large. Maximum size is 1MB." {
		t.Errorf("unexpected message %v", he.Message)
	}
	if tr.calls != 0 {
		t.Errorf("expected no transcription call, got %d", tr.calls)
	}
}

func TestTranscribe_UnsupportedFormat(t *testing.T) {
	tr := &mockTranscriber{result: &stt.Result{Text: "hello"}}
	h := newTestHandler(tr, &mockRecorder{})
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(uploadRequest(t, 10, "image/png", nil), rec)

	err := h.Transcribe(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
	if he.Message != "Unsupported audio format: image/png" {
		t.Errorf("unexpected message %v", he.Message)
	}
	if tr.calls != 0 {
		t.Errorf("expected no transcription call, got %d", tr.calls)
	}
}

func TestTranscribe_NoSpeech(t *testing.T) {
	tr := &mockTranscriber{result: &stt.Result{Text: "   "}}
	recorder := &mockRecorder{}
	h := newTestHandler(tr, recorder)
	e := echo.New()

	fields := map[string]string{"patient_id": uuid.New().String(), "doctor_id": uuid.New().String()}
	rec := httptest.NewRecorder()
	c := e.NewContext(uploadRequest(t, 10, "audio/wav", fields), rec)

	err := h.Transcribe(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
	if recorder.calls != 0 {
		t.Error("expected no conversation to be saved")
	}
}

func TestTranscribe_SaveFailureIsBestEffort(t *testing.T) {
	tr := &mockTranscriber{result: &stt.Result{Text: "hello", Duration: time.Second}}
	recorder := &mockRecorder{err: errors.New("connection refused")}
	h := newTestHandler(tr, recorder)
	e := echo.New()

	fields := map[string]string{"patient_id": uuid.New().String(), "doctor_id": uuid.New().String()}
	rec := httptest.NewRecorder()
	c := e.NewContext(uploadRequest(t, 10, "audio/ogg", fields), rec)

	if err := h.Transcribe(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if recorder.calls != 1 {
		t.Errorf("expected a save attempt, got %d", recorder.calls)
	}
	var out map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &out)
	if v, ok := out["conversation_id"]; !ok || v != nil {
		t.Errorf("expected null conversation_id, got %v", v)
	}
}

func TestTranscribe_WithoutIDsSkipsSave(t *testing.T) {
	tr := &mockTranscriber{result: &stt.Result{Text: "hello"}}
	recorder := &mockRecorder{}
	h := newTestHandler(tr, recorder)
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(uploadRequest(t, 10, "audio/mpeg", map[string]string{"patient_id": uuid.New().String()}), rec)

	if err := h.Transcribe(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if recorder.calls != 0 {
		t.Errorf("expected no save, got %d", recorder.calls)
	}
}

func TestTranscribe_UpstreamErrors(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{&llm.UpstreamError{Provider: "stt/whisper", Timeout: true}, http.StatusGatewayTimeout},
		{&llm.UpstreamError{Provider: "stt/whisper", StatusCode: 500}, http.StatusInternalServerError},
		{fmt.Errorf("decode: %w", errors.New("bad json")), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		h := newTestHandler(&mockTranscriber{err: tc.err}, &mockRecorder{})
		e := echo.New()
		rec := httptest.NewRecorder()
		c := e.NewContext(uploadRequest(t, 10, "audio/webm", nil), rec)

		err := h.Transcribe(c)
		he, ok := err.(*echo.HTTPError)
		if !ok || he.Code != tc.want {
			t.Errorf("expected %d for %v, got %v", tc.want, tc.err, err)
		}
	}
}

func TestTranscribe_MissingFile(t *testing.T) {
	h := newTestHandler(&mockTranscriber{}, &mockRecorder{})
	e := echo.New()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	w.WriteField("patient_id", uuid.New().String())
	w.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/transcribe", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	c := e.NewContext(req, httptest.NewRecorder())

	err := h.Transcribe(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}
