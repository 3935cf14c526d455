package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/iliyamo/cinema-ticketing/internal/cache"
	"github.com/iliyamo/cinema-ticketing/internal/config"
	"github.com/iliyamo/cinema-ticketing/internal/database"
	"github.com/iliyamo/cinema-ticketing/internal/handler"
	"github.com/iliyamo/cinema-ticketing/internal/jobs"
	"github.com/iliyamo/cinema-ticketing/internal/logger"
	"github.com/iliyamo/cinema-ticketing/internal/metrics"
	"github.com/iliyamo/cinema-ticketing/internal/middleware"
	"github.com/iliyamo/cinema-ticketing/internal/queue"
	"github.com/iliyamo/cinema-ticketing/internal/router"
	"github.com/iliyamo/cinema-ticketing/internal/service"
)

func main() {
	_ = godotenv.Load() // a missing .env is fine; real env wins anyway
	cfg := config.Load()
	lg := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, dialect, err := database.Open(ctx, database.Options{
		Driver:          cfg.DBDriver,
		User:            cfg.DBUser,
		Pass:            cfg.DBPass,
		Host:            cfg.DBHost,
		Port:            cfg.DBPort,
		Name:            cfg.DBName,
		Path:            cfg.DBPath,
		LockWaitTimeout: cfg.DBLockWaitTimeout,
		AutoMigrate:     cfg.DBAutoMigrate,
	})
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb == nil {
		lg.Warn("redis unavailable; webhook dedup follows fail-open policy, rate limit and cache disabled",
			"fail_open", cfg.WebhookDedupFailOpen)
	} else {
		defer rdb.Close()
	}

	var publisher service.TicketsPublisher
	if cfg.AMQPEnabled {
		publisher = queue.NewPublisher(cfg.RabbitMQURL)
		consumer := queue.NewConsumer(cfg.RabbitMQURL, "", lg)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				lg.Error("tickets consumer exited", "error", err)
			}
		}()
	}

	deps := service.Deps{DB: db, Dialect: dialect, Logger: lg, Metrics: m, Now: time.Now}
	settings := service.Settings{
		HoldMinutes:      cfg.HoldMinutes,
		SeatRows:         cfg.SeatGridRows,
		SeatsPerRow:      cfg.SeatGridSeatsPerRow,
		Currency:         cfg.Currency,
		DefaultProvider:  cfg.DefaultProvider,
		CheckoutURLBase:  cfg.CheckoutURLBase,
		EntryOpenMinutes: cfg.TicketEntryOpenMinutes,
		ScanGraceMinutes: cfg.TicketScanGraceMinutes,
		WebhookTTL:       cfg.WebhookIdempotencyTTL,
		DedupFailOpen:    cfg.WebhookDedupFailOpen,
	}
	inventory := service.NewInventoryService(deps, settings)
	reservations := service.NewReservationService(deps, settings)
	checkout := service.NewCheckoutService(deps, settings, publisher)
	var store service.DedupStore
	if rdb != nil {
		store = cache.NewDedup(rdb)
	}
	webhooks := service.NewWebhookService(deps, settings, checkout, store)
	tickets := service.NewTicketService(deps, settings)

	sweeper := jobs.NewHoldExpirationJob(reservations, cfg.ExpirySweepInterval, lg)
	sweeper.Start(ctx)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestLogger(lg))
	router.RegisterRoutes(e, router.Handlers{
		Health:       &handler.HealthHandler{DB: db},
		Reservations: handler.NewReservationHandler(reservations),
		Checkout:     handler.NewCheckoutHandler(checkout),
		Webhooks:     handler.NewWebhookHandler(webhooks, cfg.WebhookSecret, cfg.StripeWebhookSigningSecret),
		Tickets:      handler.NewTicketHandler(tickets, cfg.StaffScanToken),
		Inventory:    handler.NewInventoryHandler(inventory),
		Metrics:      metrics.Handler(reg),
	}, router.Options{
		JWTSecret: cfg.JWTSecret,
		Redis:     rdb,
		RateLimit: config.LoadRateLimitConfig(),
		Cache:     config.LoadCacheConfig(),
	})

	addr := ":" + cfg.Port
	go func() {
		lg.Info("listening", "addr", addr, "env", cfg.Env, "db", string(dialect))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	lg.Info("shutting down")
	sweeper.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		lg.Error("server shutdown", "error", err)
	}
}
