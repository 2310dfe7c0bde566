package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/farm-records/internal/handler"
	"github.com/iliyamo/farm-records/internal/middleware"
)

// FarmHandlers groups the resource handlers mounted by RegisterFarm.
type FarmHandlers struct {
	Properties *handler.PropertyHandler
	Cultures   *handler.CultureHandler
	Activities *handler.ActivityHandler
}

// RegisterFarm mounts properties, cultures and activities behind guard
// (see Authenticated).  Every route only ever sees the caller's records.
// Property reads go through the response cache; culture reads never do,
// since each one has to reconcile expired cycles.
func RegisterFarm(e *echo.Echo, h FarmHandlers, guard []echo.MiddlewareFunc, cache *middleware.ResponseCache) {
	withCache := append(append([]echo.MiddlewareFunc{}, guard...), cache.Middleware(), cache.InvalidateOnWrite())

	p := e.Group("/v1/properties", withCache...)
	p.POST("", h.Properties.Create)
	p.GET("", h.Properties.List)
	p.GET("/:id", h.Properties.Get)
	p.PUT("/:id", h.Properties.Replace)
	p.PATCH("/:id", h.Properties.Patch)
	p.DELETE("/:id", h.Properties.Delete)

	c := e.Group("/v1/cultures", guard...)
	c.POST("", h.Cultures.Create)
	c.GET("", h.Cultures.List)
	c.GET("/export", h.Cultures.Export)
	c.GET("/:id", h.Cultures.Get)
	c.PUT("/:id", h.Cultures.Replace)
	c.PATCH("/:id", h.Cultures.Patch)
	c.DELETE("/:id", h.Cultures.Delete)

	a := e.Group("/v1/activities", guard...)
	a.POST("", h.Activities.Create)
	a.GET("", h.Activities.List)
	a.GET("/:id", h.Activities.Get)
	a.PUT("/:id", h.Activities.Replace)
	a.PATCH("/:id", h.Activities.Patch)
	a.DELETE("/:id", h.Activities.Delete)
	a.POST("/:id/attachments", h.Activities.UploadAttachments)
	a.DELETE("/:id/attachments/:name", h.Activities.DeleteAttachment)
}
