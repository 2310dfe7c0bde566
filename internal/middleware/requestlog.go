package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RequestLogger writes one structured line per request.  Server errors
// log at error level, client errors at warn.
func RequestLogger(log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// let echo's error handler settle the status before we read it
				c.Error(err)
			}
			res := c.Response()
			req := c.Request()

			level := zapcore.InfoLevel
			switch {
			case res.Status >= 500:
				level = zapcore.ErrorLevel
			case res.Status >= 400:
				level = zapcore.WarnLevel
			}
			if ce := log.Check(level, "request"); ce != nil {
				fields := []zap.Field{
					zap.String("method", req.Method),
					zap.String("path", req.URL.Path),
					zap.String("route", c.Path()),
					zap.Int("status", res.Status),
					zap.Int64("bytes", res.Size),
					zap.Duration("latency", time.Since(start)),
					zap.String("ip", c.RealIP()),
					zap.String("request_id", res.Header().Get(echo.HeaderXRequestID)),
				}
				if uid, ok := UserID(c); ok {
					fields = append(fields, zap.String("user_id", uid))
				}
				if err != nil {
					fields = append(fields, zap.Error(err))
				}
				ce.Write(fields...)
			}
			return nil
		}
	}
}
