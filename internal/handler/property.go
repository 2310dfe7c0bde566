package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/farm-records/internal/service"
)

// PropertyAPI is implemented by *service.PropertyService.
type PropertyAPI interface {
	Create(ctx context.Context, ownerID string, in service.PropertyInput) (*service.PropertyView, error)
	Get(ctx context.Context, ownerID, id string) (*service.PropertyView, error)
	List(ctx context.Context, ownerID string, q service.ListQuery) (service.Page[service.PropertyView], error)
	Update(ctx context.Context, ownerID, id string, patch service.PropertyPatch) (*service.PropertyView, error)
	Delete(ctx context.Context, ownerID, id string) error
}

// PropertyHandler exposes /v1/properties.
type PropertyHandler struct {
	Svc PropertyAPI
	Log *zap.Logger
}

func NewPropertyHandler(svc PropertyAPI, log *zap.Logger) *PropertyHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &PropertyHandler{Svc: svc, Log: log}
}

func (h *PropertyHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	var in service.PropertyInput
	if err := c.Bind(&in); err != nil {
		return badBody(c)
	}
	v, err := h.Svc.Create(c.Request().Context(), uid, in)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, v)
}

func (h *PropertyHandler) List(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	q, err := parseListQuery(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	page, err := h.Svc.List(c.Request().Context(), uid, q)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, page)
}

func (h *PropertyHandler) Get(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	v, err := h.Svc.Get(c.Request().Context(), uid, c.Param("id"))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, v)
}

// Replace handles PUT: every field is required, as on create.
func (h *PropertyHandler) Replace(c echo.Context) error {
	var in service.PropertyInput
	if err := c.Bind(&in); err != nil {
		return badBody(c)
	}
	return h.update(c, service.PropertyPatch{
		Name:           &in.Name,
		Address:        &in.Address,
		TotalArea:      &in.TotalArea,
		ProductionArea: &in.ProductionArea,
		MainCrop:       &in.MainCrop,
	})
}

// Patch handles PATCH: absent fields keep their stored value.
func (h *PropertyHandler) Patch(c echo.Context) error {
	var p service.PropertyPatch
	if err := c.Bind(&p); err != nil {
		return badBody(c)
	}
	return h.update(c, p)
}

func (h *PropertyHandler) update(c echo.Context, p service.PropertyPatch) error {
	uid, err := getUserID(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	v, err := h.Svc.Update(c.Request().Context(), uid, c.Param("id"), p)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *PropertyHandler) Delete(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if err := h.Svc.Delete(c.Request().Context(), uid, c.Param("id")); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}
