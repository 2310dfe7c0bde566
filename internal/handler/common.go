package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/farm-records/internal/middleware"
	"github.com/iliyamo/farm-records/internal/repository"
	"github.com/iliyamo/farm-records/internal/service"
)

var errNoUser = errors.New("missing user_id in context")

// getUserID returns the id JWTAuth stored on the context.
func getUserID(c echo.Context) (string, error) {
	uid, ok := middleware.UserID(c)
	if !ok {
		return "", errNoUser
	}
	return uid, nil
}

// writeError maps service and repository errors onto HTTP responses.
// Anything unrecognised is logged and reported as a generic 500.
func writeError(c echo.Context, log *zap.Logger, err error) error {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		body := echo.Map{"error": ve.Msg}
		if ve.Field != "" {
			body["field"] = ve.Field
		}
		return c.JSON(http.StatusBadRequest, body)
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrPropertyNotFound),
		errors.Is(err, repository.ErrCultureNotFound),
		errors.Is(err, repository.ErrActivityNotFound),
		errors.Is(err, service.ErrAttachmentNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrEmailExists):
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "conflict"})
	case errors.Is(err, errNoUser):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if log != nil {
		log.Error("request failed",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Request().URL.Path),
			zap.Error(err))
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// queryInt parses a numeric query parameter.  Missing or malformed values
// yield 0, which the services treat as "use the default".
func queryInt(c echo.Context, name string) int {
	n, err := strconv.Atoi(strings.TrimSpace(c.QueryParam(name)))
	if err != nil {
		return 0
	}
	return n
}

// parseListQuery reads search, sortBy, order, page and limit.
func parseListQuery(c echo.Context) (service.ListQuery, error) {
	q := service.ListQuery{
		Search: strings.TrimSpace(c.QueryParam("search")),
		SortBy: strings.TrimSpace(c.QueryParam("sortBy")),
		Page:   queryInt(c, "page"),
		Limit:  queryInt(c, "limit"),
	}
	switch strings.ToLower(strings.TrimSpace(c.QueryParam("order"))) {
	case "", "asc":
	case "desc":
		q.Desc = true
	default:
		return q, &service.ValidationError{Field: "order", Msg: "must be one of: asc, desc"}
	}
	return q, nil
}

func badBody(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
}
