package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/farm-records/internal/model"
	"github.com/iliyamo/farm-records/internal/repository"
)

// UserLookup returns active users only; closed accounts yield
// repository.ErrUserNotFound.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// RequireActiveUser runs after JWTAuth and refuses tokens whose account
// has been closed since they were issued.
func RequireActiveUser(users UserLookup, log *zap.Logger) echo.MiddlewareFunc {
	if users == nil {
		return passThrough
	}
	if log == nil {
		log = zap.NewNop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			uid, ok := UserID(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
			}
			if _, err := users.GetByID(c.Request().Context(), uid); err != nil {
				if errors.Is(err, repository.ErrUserNotFound) {
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "account is closed"})
				}
				log.Error("active user check failed", zap.String("user_id", uid), zap.Error(err))
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
			}
			return next(c)
		}
	}
}
