package handler

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/farm-records/internal/report"
	"github.com/iliyamo/farm-records/internal/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// CultureAPI is implemented by *service.CultureService.
type CultureAPI interface {
	Create(ctx context.Context, ownerID string, in service.CultureInput) (*service.CultureView, error)
	Get(ctx context.Context, ownerID, id string) (*service.CultureView, error)
	List(ctx context.Context, ownerID string, q service.ListQuery) (service.Page[service.CultureView], error)
	Export(ctx context.Context, ownerID string, q service.ListQuery) ([]service.CultureView, error)
	Update(ctx context.Context, ownerID, id string, patch service.CulturePatch) (*service.CultureView, error)
	Delete(ctx context.Context, ownerID, id string) error
}

// CultureHandler exposes /v1/cultures.  Reads go through the service,
// which reconciles expired cycles before anything is returned.
type CultureHandler struct {
	Svc CultureAPI
	Log *zap.Logger
	Now func() time.Time
	Loc *time.Location // farm calendar; names the export file
}

func NewCultureHandler(svc CultureAPI, loc *time.Location, log *zap.Logger) *CultureHandler {
	if log == nil {
		log = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &CultureHandler{Svc: svc, Log: log, Now: time.Now, Loc: loc}
}

func (h *CultureHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	var in service.CultureInput
	if err := c.Bind(&in); err != nil {
		return badBody(c)
	}
	v, err := h.Svc.Create(c.Request().Context(), uid, in)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, v)
}

func (h *CultureHandler) List(c echo.Context) error {
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

// Export streams the caller's cultures as an XLSX workbook.  search and
// sort apply; pagination does not.
func (h *CultureHandler) Export(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	q, err := parseListQuery(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	views, err := h.Svc.Export(c.Request().Context(), uid, q)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	var buf bytes.Buffer
	if err := report.WriteCultures(&buf, views); err != nil {
		return writeError(c, h.Log, err)
	}
	name := fmt.Sprintf("cultures-%s.xlsx", h.Now().In(h.Loc).Format("2006-01-02"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Blob(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (h *CultureHandler) Get(c echo.Context) error {
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

// Replace handles PUT with a full create-shaped body.
func (h *CultureHandler) Replace(c echo.Context) error {
	var in service.CultureInput
	if err := c.Bind(&in); err != nil {
		return badBody(c)
	}
	return h.update(c, service.CulturePatch{
		PropertyID:   &in.PropertyID,
		Name:         &in.Name,
		Cultivar:     &in.Cultivar,
		Supplier:     &in.Supplier,
		Origin:       &in.Origin,
		Observations: service.Some(in.Observations),
		PlantingDate: &in.PlantingDate,
		Cycle:        &in.Cycle,
		PlantingArea: &in.PlantingArea,
	})
}

func (h *CultureHandler) Patch(c echo.Context) error {
	var p service.CulturePatch
	if err := c.Bind(&p); err != nil {
		return badBody(c)
	}
	return h.update(c, p)
}

func (h *CultureHandler) update(c echo.Context, p service.CulturePatch) error {
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

func (h *CultureHandler) Delete(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if err := h.Svc.Delete(c.Request().Context(), uid, c.Param("id")); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}
