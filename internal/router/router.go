package router // router wires handlers and middleware onto the Echo instance

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/cinema-ticketing/internal/config"
	"github.com/iliyamo/cinema-ticketing/internal/handler"
	"github.com/iliyamo/cinema-ticketing/internal/middleware"
)

// Handlers bundles everything RegisterRoutes mounts.
type Handlers struct {
	Health       *handler.HealthHandler
	Reservations *handler.ReservationHandler
	Checkout     *handler.CheckoutHandler
	Webhooks     *handler.WebhookHandler
	Tickets      *handler.TicketHandler
	Inventory    *handler.InventoryHandler
	Metrics      http.Handler
}

// Options carries the secrets and Redis backed middleware settings.
type Options struct {
	JWTSecret string
	Redis     *redis.Client // nil disables rate limiting and caching
	RateLimit config.RateLimitConfig
	Cache     config.CacheConfig
}

// RegisterRoutes mounts every endpoint. Public reads and the webhook need
// no token; customer routes need CUSTOMER, scanning needs STAFF or ADMIN
// and inventory management needs ADMIN.
func RegisterRoutes(e *echo.Echo, h Handlers, opts Options) {
	limit := middleware.NewTokenBucket(opts.RateLimit, opts.Redis)
	auth := middleware.JWTAuth(opts.JWTSecret)

	e.GET("/healthz", h.Health.Health)
	if h.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(h.Metrics))
	}

	v1 := e.Group("/v1")
	v1.GET("/showtimes/:id/seats", h.Inventory.ShowtimeSeats)
	v1.GET("/auditoriums/:id/seats", h.Inventory.AuditoriumSeats, middleware.NewRedisCache(opts.Cache, opts.Redis))
	v1.POST("/webhooks/payments", h.Webhooks.Payments)

	customer := v1.Group("", auth, middleware.RequireRole(middleware.RoleCustomer))
	customer.POST("/reservations", h.Reservations.Create, limit)
	customer.GET("/reservations/active", h.Reservations.Active)
	customer.GET("/reservations/:id", h.Reservations.Get)
	customer.DELETE("/reservations/:id", h.Reservations.Release)
	customer.POST("/checkout/session", h.Checkout.CreateSession, limit)
	customer.POST("/checkout/confirm", h.Checkout.Confirm)
	customer.GET("/me/tickets", h.Tickets.List)
	customer.GET("/me/tickets/:id/qr.png", h.Tickets.QRCode)

	staff := v1.Group("/tickets", auth, middleware.RequireRole(middleware.RoleStaff, middleware.RoleAdmin))
	staff.POST("/scan", h.Tickets.Scan, limit)

	admin := v1.Group("/admin", auth, middleware.RequireRole(middleware.RoleAdmin))
	admin.POST("/auditoriums/:id/seats", h.Inventory.ProvisionAuditorium)
	admin.POST("/showtimes/:id/seats/sync", h.Inventory.SyncShowtime)
	admin.PATCH("/showtimes/:id", h.Inventory.UpdateShowtime)
}
