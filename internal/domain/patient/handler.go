package patient

import (
	"net/http"

	"github.com/labstack/echo/v4"

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
	api.GET("/pacientes", h.ListPatients)
	api.GET("/pacientes/codigo/:codigo", h.GetPatientByCode)
	api.GET("/pacientes/:id", h.GetPatient)
	api.GET("/pacientes/:id/menor", h.GetGuardian)
	api.POST("/pacientes", h.CreatePatient)
	api.PUT("/pacientes/:id", h.UpdatePatient)
	api.DELETE("/pacientes/:id", h.DeletePatient)
}

func (h *Handler) CreatePatient(c echo.Context) error {
	var in Registration
	if err := httpx.Bind(c, &in); err != nil {
		return err
	}
	p, err := h.svc.Register(c.Request().Context(), &in)
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusCreated, p)
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		return err
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, p)
}

func (h *Handler) GetPatientByCode(c echo.Context) error {
	p, err := h.svc.GetByCode(c.Request().Context(), c.Param("codigo"))
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, p)
}

func (h *Handler) GetGuardian(c echo.Context) error {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		return err
	}
	g, err := h.svc.GetGuardian(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, g)
}

// ListPatients supports ?q= (name, surname, cedula or code), ?activo= and
// limit/offset pagination.
func (h *Handler) ListPatients(c echo.Context) error {
	active, err := httpx.QueryBool(c, "activo")
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), ListFilter{
		Query:  c.QueryParam("q"),
		Active: active,
		Limit:  pg.Limit,
		Offset: pg.Offset,
	})
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Patient{}
	}
	return httpx.OK(c, http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		return err
	}
	var in Registration
	if err := httpx.Bind(c, &in); err != nil {
		return err
	}
	p, err := h.svc.Update(c.Request().Context(), id, &in)
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, p)
}

func (h *Handler) DeletePatient(c echo.Context) error {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, map[string]string{"id": id.String()})
}
