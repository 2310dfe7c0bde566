package middleware

// identity.go holds the helpers that read the authenticated user from the
// Echo context.  JWTAuth is the only writer.

import "github.com/labstack/echo/v4"

const userIDKey = "user_id"

// UserID returns the authenticated user's id and whether one is present.
func UserID(c echo.Context) (string, bool) {
	s, ok := c.Get(userIDKey).(string)
	return s, ok && s != ""
}

// currentUserID is UserID with "anon" standing in for unauthenticated
// requests.  Used to build rate limit and cache keys.
func currentUserID(c echo.Context) string {
	if s, ok := UserID(c); ok {
		return s
	}
	return "anon"
}
