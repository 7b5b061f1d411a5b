package notes

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/siddharth270/ConvergenceSSNZB/internal/platform/apperr"
	"github.com/siddharth270/ConvergenceSSNZB/internal/platform/render"
	"github.com/siddharth270/ConvergenceSSNZB/pkg/pagination"
)

type Handler struct {
	svc      *Service
	renderer *render.Renderer
}

func NewHandler(svc *Service, renderer *render.Renderer) *Handler {
	return &Handler{svc: svc, renderer: renderer}
}

// RegisterRoutes mounts the read and render routes. The summarize route is
// registered separately so callers can wrap it with rate limiting.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/soap-notes", h.ListSOAPNotes)
	api.GET("/soap-notes/:id", h.GetSOAPNote)
	api.GET("/prescriptions", h.ListPrescriptions)
	api.GET("/prescriptions/:id", h.GetPrescription)
	api.POST("/render", h.Render)
}

func (h *Handler) Summarize(c echo.Context) error {
	var in SummarizeInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	stored, err := h.svc.Summarize(c.Request().Context(), in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, stored)
}

func (h *Handler) GetSOAPNote(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	n, err := h.svc.GetSOAPNote(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) ListSOAPNotes(c echo.Context) error {
	f, err := listFilter(c)
	if err != nil {
		return err
	}
	out, err := h.svc.ListSOAPNotes(c.Request().Context(), f)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) GetPrescription(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.GetPrescription(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListPrescriptions(c echo.Context) error {
	f, err := listFilter(c)
	if err != nil {
		return err
	}
	out, err := h.svc.ListPrescriptions(c.Request().Context(), f)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, out)
}

// RenderInput is the body of a render request.
type RenderInput struct {
	NoteType    string                 `json:"note_type"`
	NoteData    map[string]interface{} `json:"note_data"`
	PatientName string                 `json:"patient_name"`
	PatientID   string                 `json:"patient_id"`
	VisitType   string                 `json:"visit_type"`
	DoctorName  string                 `json:"doctor_name"`
}

func (h *Handler) Render(c echo.Context) error {
	var in RenderInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if !NoteType(in.NoteType).Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "Note type must be 'soap' or 'prescription'")
	}
	if len(in.NoteData) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "Note data cannot be empty")
	}
	if in.VisitType == "" {
		in.VisitType = string(VisitFollowup)
	}
	out, err := h.renderer.Render(in.NoteType, in.NoteData, render.Context{
		PatientName: in.PatientName,
		PatientID:   in.PatientID,
		VisitType:   in.VisitType,
		DoctorName:  in.DoctorName,
	})
	if err != nil {
		var ute *render.UnknownTypeError
		if errors.As(err, &ute) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to render note")
	}

	hdr := c.Response().Header()
	hdr.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	hdr.Set("Pragma", "no-cache")
	hdr.Set("Expires", "0")
	return c.HTMLBlob(http.StatusOK, out)
}

func listFilter(c echo.Context) (ListFilter, error) {
	pg, err := pagination.FromContext(c)
	if err != nil {
		return ListFilter{}, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	f := ListFilter{Limit: pg.Limit}
	if v := c.QueryParam("patient_id"); v != "" {
		if f.PatientID, err = uuid.Parse(v); err != nil {
			return ListFilter{}, echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
	}
	if v := c.QueryParam("doctor_id"); v != "" {
		if f.DoctorID, err = uuid.Parse(v); err != nil {
			return ListFilter{}, echo.NewHTTPError(http.StatusBadRequest, "invalid doctor_id")
		}
	}
	return f, nil
}

// httpError maps pipeline errors to client-facing messages.
func httpError(err error) error {
	switch apperr.KindOf(err) {
	case apperr.KindUpstreamTimeout:
		return echo.NewHTTPError(http.StatusGatewayTimeout, "AI service timed out. Please try again.")
	case apperr.KindUpstream:
		return echo.NewHTTPError(http.StatusInternalServerError, "AI service error: "+err.Error())
	}
	return apperr.HTTP(err)
}
