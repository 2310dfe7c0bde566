package handler

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/farm-records/internal/service"
)

// ActivityAPI is implemented by *service.ActivityService.
type ActivityAPI interface {
	Create(ctx context.Context, ownerID string, in service.ActivityInput) (*service.ActivityView, error)
	Get(ctx context.Context, ownerID, id string) (*service.ActivityView, error)
	List(ctx context.Context, ownerID string, q service.ActivityFilterQuery) (service.Page[service.ActivityView], error)
	Update(ctx context.Context, ownerID, id string, patch service.ActivityPatch) (*service.ActivityView, error)
	Delete(ctx context.Context, ownerID, id string) error
	AddAttachments(ctx context.Context, ownerID, id string, uploads []service.Upload) (*service.ActivityView, error)
	RemoveAttachment(ctx context.Context, ownerID, id, name string) (*service.ActivityView, error)
}

// ActivityHandler exposes /v1/activities and the attachment routes.
type ActivityHandler struct {
	Svc         ActivityAPI
	Log         *zap.Logger
	MaxUploadMB int
}

func NewActivityHandler(svc ActivityAPI, maxUploadMB int, log *zap.Logger) *ActivityHandler {
	if log == nil {
		log = zap.NewNop()
	}
	if maxUploadMB <= 0 {
		maxUploadMB = 10
	}
	return &ActivityHandler{Svc: svc, Log: log, MaxUploadMB: maxUploadMB}
}

func (h *ActivityHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	var in service.ActivityInput
	if err := c.Bind(&in); err != nil {
		return badBody(c)
	}
	v, err := h.Svc.Create(c.Request().Context(), uid, in)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, v)
}

// List accepts cultureId and type filters plus page and limit.
func (h *ActivityHandler) List(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	q := service.ActivityFilterQuery{
		CultureID: strings.TrimSpace(c.QueryParam("cultureId")),
		Type:      strings.TrimSpace(c.QueryParam("type")),
		Page:      queryInt(c, "page"),
		Limit:     queryInt(c, "limit"),
	}
	page, err := h.Svc.List(c.Request().Context(), uid, q)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, page)
}

func (h *ActivityHandler) Get(c echo.Context) error {
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

// Replace handles PUT.  A missing cultureId detaches the activity.
func (h *ActivityHandler) Replace(c echo.Context) error {
	var in service.ActivityInput
	if err := c.Bind(&in); err != nil {
		return badBody(c)
	}
	return h.update(c, service.ActivityPatch{
		CultureID:    service.Some(in.CultureID),
		Type:         &in.Type,
		Title:        &in.Title,
		Description:  service.Some(in.Description),
		ActivityDate: &in.ActivityDate,
	})
}

func (h *ActivityHandler) Patch(c echo.Context) error {
	var p service.ActivityPatch
	if err := c.Bind(&p); err != nil {
		return badBody(c)
	}
	return h.update(c, p)
}

func (h *ActivityHandler) update(c echo.Context, p service.ActivityPatch) error {
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

func (h *ActivityHandler) Delete(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if err := h.Svc.Delete(c.Request().Context(), uid, c.Param("id")); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// UploadAttachments accepts a multipart form with one or more "files"
// (or a single "file") parts.
func (h *ActivityHandler) UploadAttachments(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	limit := int64(h.MaxUploadMB) << 20
	req := c.Request()
	req.Body = http.MaxBytesReader(c.Response(), req.Body, limit)

	form, err := c.MultipartForm()
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": "upload too large"})
		}
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "multipart form required"})
	}
	defer form.RemoveAll()

	headers := append(append([]*multipart.FileHeader{}, form.File["files"]...), form.File["file"]...)
	uploads := make([]service.Upload, 0, len(headers))
	var opened []io.Closer
	defer func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}()
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			h.Log.Warn("attachment open failed", zap.String("file", fh.Filename), zap.Error(err))
			continue
		}
		opened = append(opened, f)
		ct := fh.Header.Get(echo.HeaderContentType)
		if ct == "" {
			ct = echo.MIMEOctetStream
		}
		uploads = append(uploads, service.Upload{Name: fh.Filename, ContentType: ct, Body: f})
	}

	v, err := h.Svc.AddAttachments(req.Context(), uid, c.Param("id"), uploads)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, v)
}

func (h *ActivityHandler) DeleteAttachment(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	v, err := h.Svc.RemoveAttachment(c.Request().Context(), uid, c.Param("id"), c.Param("name"))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, v)
}
