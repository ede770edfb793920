package staff

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
	api.GET("/funcionarios", h.ListStaff)
	api.GET("/funcionarios/:id", h.GetStaff)
	api.GET("/funcionarios/:id/especialista", h.GetSpecialist)
	api.POST("/funcionarios", h.CreateStaff)
	api.PUT("/funcionarios/:id", h.UpdateStaff)
	api.DELETE("/funcionarios/:id", h.DeleteStaff)
}

func (h *Handler) CreateStaff(c echo.Context) error {
	var in Registration
	if err := httpx.Bind(c, &in); err != nil {
		return err
	}
	st, err := h.svc.Register(c.Request().Context(), &in)
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusCreated, st)
}

func (h *Handler) GetStaff(c echo.Context) error {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		return err
	}
	st, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, st)
}

func (h *Handler) GetSpecialist(c echo.Context) error {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		return err
	}
	sp, err := h.svc.GetSpecialist(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, sp)
}

// ListStaff supports ?q=, ?especialistas=true, ?especialidad_id= and ?activo=.
func (h *Handler) ListStaff(c echo.Context) error {
	specialists, err := httpx.QueryBool(c, "especialistas")
	if err != nil {
		return err
	}
	specialty, err := httpx.QueryID(c, "especialidad_id")
	if err != nil {
		return err
	}
	active, err := httpx.QueryBool(c, "activo")
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), ListFilter{
		Query:           c.QueryParam("q"),
		SpecialistsOnly: specialists != nil && *specialists,
		SpecialtyID:     specialty,
		Active:          active,
		Limit:           pg.Limit,
		Offset:          pg.Offset,
	})
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Staff{}
	}
	return httpx.OK(c, http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) UpdateStaff(c echo.Context) error {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		return err
	}
	var in Registration
	if err := httpx.Bind(c, &in); err != nil {
		return err
	}
	st, err := h.svc.Update(c.Request().Context(), id, &in)
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, st)
}

func (h *Handler) DeleteStaff(c echo.Context) error {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, map[string]string{"id": id.String()})
}
