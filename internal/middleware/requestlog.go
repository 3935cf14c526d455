package middleware

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticketing/internal/logger"
)

// HeaderRequestID carries the request id in both directions.
const HeaderRequestID = "X-Request-ID"

// RequestLogger tags every request with an id, attaches a logger carrying
// it to the request context and logs one line per completed request.
func RequestLogger(base *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			rid := req.Header.Get(HeaderRequestID)
			if rid == "" {
				rid = logger.NewRequestID()
			}
			c.Response().Header().Set(HeaderRequestID, rid)

			l := base.With("request_id", rid)
			c.SetRequest(req.WithContext(logger.WithContext(req.Context(), l)))

			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			attrs := []any{
				"method", req.Method,
				"path", c.Path(),
				"status", c.Response().Status,
				"duration_ms", time.Since(start).Milliseconds(),
			}
			if uid, ok := CurrentUserID(c); ok {
				attrs = append(attrs, "user_id", uid)
			}
			if c.Response().Status >= 500 {
				l.Error("request failed", attrs...)
			} else {
				l.Info("request", attrs...)
			}
			return nil
		}
	}
}
