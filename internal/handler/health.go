package handler

import (
	"database/sql"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticketing/internal/database"
)

// HealthHandler reports whether the service can reach its database.
type HealthHandler struct {
	DB *sql.DB
}

// Health handles GET /healthz. It returns 200 with the connection pool
// statistics when the database answers a ping and 503 otherwise, so load
// balancers stop routing to an instance that lost its database.
func (h *HealthHandler) Health(c echo.Context) error {
	stats, err := database.HealthCheck(c.Request().Context(), h.DB)
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable", "db": stats})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "db": stats})
}
