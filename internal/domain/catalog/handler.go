package catalog

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/httpx"
	"github.com/clinic/clinic/pkg/pagination"
)

type Handler struct {
	reg *Registry
}

func NewHandler(reg *Registry) *Handler {
	return &Handler{reg: reg}
}

// RegisterRoutes mounts /<catalog> CRUD routes for every registered table and
// the /catalogos index.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/catalogos", h.Index)
	for _, svc := range h.reg.Services() {
		base := "/" + svc.Table().Name
		api.GET(base, h.list(svc))
		api.GET(base+"/:id", h.get(svc))
		api.POST(base, h.create(svc))
		api.PUT(base+"/:id", h.update(svc))
		api.DELETE(base+"/:id", h.delete(svc))
	}
}

func (h *Handler) Index(c echo.Context) error {
	tables := make([]Table, 0, len(h.reg.Services()))
	for _, svc := range h.reg.Services() {
		tables = append(tables, svc.Table())
	}
	return httpx.OK(c, http.StatusOK, tables)
}

func (h *Handler) list(svc *Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		active, err := httpx.QueryBool(c, "activo")
		if err != nil {
			return err
		}
		pg := pagination.FromContext(c)
		items, total, err := svc.List(c.Request().Context(), ListFilter{
			Query:  c.QueryParam("q"),
			Active: active,
			Limit:  pg.Limit,
			Offset: pg.Offset,
		})
		if err != nil {
			return err
		}
		if items == nil {
			items = []*Entry{}
		}
		return httpx.OK(c, http.StatusOK, pagination.NewResponse(items, total, pg))
	}
}

func (h *Handler) get(svc *Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		e, err := svc.Get(c.Request().Context(), id)
		if err != nil {
			return err
		}
		return httpx.OK(c, http.StatusOK, e)
	}
}

func (h *Handler) create(svc *Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var in Input
		if err := httpx.Bind(c, &in); err != nil {
			return err
		}
		e, err := svc.Save(c.Request().Context(), in)
		if err != nil {
			return err
		}
		return httpx.OK(c, http.StatusCreated, e)
	}
}

func (h *Handler) update(svc *Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var in Input
		if err := httpx.Bind(c, &in); err != nil {
			return err
		}
		e, err := svc.Update(c.Request().Context(), id, in)
		if err != nil {
			return err
		}
		return httpx.OK(c, http.StatusOK, e)
	}
}

func (h *Handler) delete(svc *Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		if err := svc.Delete(c.Request().Context(), id); err != nil {
			return err
		}
		return httpx.OK(c, http.StatusOK, map[string]string{"id": id.String()})
	}
}
