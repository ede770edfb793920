package person

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/httpx"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/personas", h.FindPersons)
	api.GET("/personas/:id", h.GetPerson)
}

func (h *Handler) GetPerson(c echo.Context) error {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		return err
	}
	p, err := h.svc.GetPerson(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, p)
}

// FindPersons looks persons up by national ID (?cedula=).
func (h *Handler) FindPersons(c echo.Context) error {
	items, err := h.svc.FindByNationalID(c.Request().Context(), c.QueryParam("cedula"))
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Person{}
	}
	return httpx.OK(c, http.StatusOK, items)
}
