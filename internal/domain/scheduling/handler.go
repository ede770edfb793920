package scheduling

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/domain/person"
	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/httpx"
	"github.com/clinic/clinic/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/citas", h.ListAppointments)
	api.GET("/citas/disponibilidad", h.Availability)
	api.GET("/citas/:id", h.GetAppointment)
	api.POST("/citas", h.BookAppointment)
	api.PUT("/citas/:id", h.RescheduleAppointment)
	api.DELETE("/citas/:id", h.DeleteAppointment)
	api.POST("/citas/:id/cancelar", h.CancelAppointment)
	api.POST("/citas/:id/estado", h.SetStatus)
}

func (h *Handler) BookAppointment(c echo.Context) error {
	var in Input
	if err := httpx.Bind(c, &in); err != nil {
		return err
	}
	a, err := h.svc.Book(c.Request().Context(), &in)
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusCreated, a)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		return err
	}
	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, a)
}

// ListAppointments filters by ?paciente_id=, ?especialista_id=, ?estado= and
// a time range given either as ?fecha=YYYY-MM-DD (whole UTC day) or as
// ?desde=&hasta= in RFC 3339.
func (h *Handler) ListAppointments(c echo.Context) error {
	patient, err := httpx.QueryID(c, "paciente_id")
	if err != nil {
		return err
	}
	specialist, err := httpx.QueryID(c, "especialista_id")
	if err != nil {
		return err
	}
	from, to, err := queryRange(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), ListFilter{
		PatientID:    patient,
		SpecialistID: specialist,
		From:         from,
		To:           to,
		Status:       c.QueryParam("estado"),
		Limit:        pg.Limit,
		Offset:       pg.Offset,
	})
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Appointment{}
	}
	return httpx.OK(c, http.StatusOK, pagination.NewResponse(items, total, pg))
}

// Availability lists free slots of ?especialista_id= over ?fecha= or
// ?desde=&hasta=, in steps of ?duracion= minutes (default 30).
func (h *Handler) Availability(c echo.Context) error {
	specialist, err := httpx.QueryID(c, "especialista_id")
	if err != nil {
		return err
	}
	if specialist == nil {
		return apperr.New(apperr.KindValidation, "especialista_id is required")
	}
	from, to, err := queryRange(c)
	if err != nil {
		return err
	}
	if from == nil || to == nil {
		return apperr.New(apperr.KindValidation, "fecha or desde and hasta are required")
	}
	minutes := 30
	if raw := c.QueryParam("duracion"); raw != "" {
		if minutes, err = strconv.Atoi(raw); err != nil {
			return apperr.New(apperr.KindValidation, "invalid duracion")
		}
	}
	slots, err := h.svc.Availability(c.Request().Context(), *specialist, *from, *to, time.Duration(minutes)*time.Minute)
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, slots)
}

func (h *Handler) RescheduleAppointment(c echo.Context) error {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		return err
	}
	var in Input
	if err := httpx.Bind(c, &in); err != nil {
		return err
	}
	a, err := h.svc.Reschedule(c.Request().Context(), id, &in)
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, a)
}

func (h *Handler) CancelAppointment(c echo.Context) error {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		return err
	}
	a, err := h.svc.Cancel(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, a)
}

func (h *Handler) SetStatus(c echo.Context) error {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		return err
	}
	var body struct {
		Status string `json:"estado"`
	}
	if err := httpx.Bind(c, &body); err != nil {
		return err
	}
	a, err := h.svc.SetStatus(c.Request().Context(), id, body.Status)
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, a)
}

func (h *Handler) DeleteAppointment(c echo.Context) error {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, map[string]string{"id": id.String()})
}

func queryRange(c echo.Context) (*time.Time, *time.Time, error) {
	if raw := c.QueryParam("fecha"); raw != "" {
		day, err := time.Parse(person.DateLayout, raw)
		if err != nil {
			return nil, nil, apperr.New(apperr.KindValidation, "invalid fecha, expected YYYY-MM-DD")
		}
		end := day.AddDate(0, 0, 1)
		return &day, &end, nil
	}
	from, err := queryTime(c, "desde")
	if err != nil {
		return nil, nil, err
	}
	to, err := queryTime(c, "hasta")
	if err != nil {
		return nil, nil, err
	}
	return from, to, nil
}

func queryTime(c echo.Context, name string) (*time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, apperr.New(apperr.KindValidation, "invalid %s, expected RFC 3339", name)
	}
	return &t, nil
}
