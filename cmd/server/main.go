package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/schoolroute/backend/internal/config"
	"github.com/schoolroute/backend/internal/delivery/http"
	"github.com/schoolroute/backend/internal/logging"
	"github.com/schoolroute/backend/internal/metrics"
	"github.com/schoolroute/backend/internal/publisher"
	"github.com/schoolroute/backend/internal/repository/file"
	"github.com/schoolroute/backend/internal/repository/postgres"
	"github.com/schoolroute/backend/internal/service"
)

func main() {
	// Configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logging.NewStructuredLogger(os.Stdout, logging.ParseLevel(cfg.LogLevel))
	slog.SetDefault(log)

	collector := metrics.NewCollector()

	// Dependency Injection: Repositories
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	schoolRepo, closeRepo := openSchoolRepository(ctx, cfg, log)
	defer closeRepo()

	catalog := service.NewSchoolCatalog(schoolRepo)
	if err := catalog.Load(ctx); err != nil {
		logging.LogError(log, "failed to load schools", err)
		os.Exit(1)
	}
	collector.SchoolsSet(catalog.Len())
	log.Info("schools loaded", slog.Int("count", catalog.Len()))

	// Dependency Injection: Services
	provider, err := service.NewRouteProvider(cfg.RoutingProvider, service.ProviderConfig{
		BaseURL:       cfg.ProviderBaseURL(),
		APIKey:        cfg.ProviderAPIKey(),
		Timeout:       cfg.ProviderTimeout,
		RatePerMinute: cfg.ProviderRateLimit,
		Logger:        log,
	})
	if err != nil {
		logging.LogError(log, "failed to create routing provider", err)
		os.Exit(1)
	}

	events := openPublisher(cfg, log)
	defer events.Close()

	routeSvc := service.NewRouteService(catalog, provider,
		service.WithLogger(log),
		service.WithMetrics(collector),
		service.WithPublisher(events),
		service.WithDefaultAvoid(cfg.Avoid...),
	)

	// Fiber App
	app := fiber.New(fiber.Config{
		AppName:      "SchoolRoute API v1.0",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.ProviderTimeout + 5*time.Second,
		ErrorHandler: http.ErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	// Routes
	http.SetupRoutes(app, http.NewHandler(routeSvc, catalog, log), collector.Handler())

	// Graceful shutdown
	go func() {
		log.Info("server starting",
			slog.String("port", cfg.Port),
			slog.String("provider", provider.Name()),
			slog.String("env", cfg.Env))
		if err := app.Listen(":" + cfg.Port); err != nil {
			logging.LogError(log, "server error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		logging.LogError(log, "server forced to shutdown", err)
	}
	routeSvc.WaitBackground()
	log.Info("server exited gracefully")
}

// eventPublisher is satisfied by both the NATS and the no-op publisher
type eventPublisher interface {
	service.EventPublisher
	Close()
}

func openPublisher(cfg *config.Config, log *slog.Logger) eventPublisher {
	if cfg.NATSURL == "" {
		return publisher.NoopPublisher{}
	}

	p, err := publisher.NewNATSPublisher(cfg.NATSURL, log)
	if err != nil {
		logging.LogError(log, "could not connect to nats, route events disabled", err)
		return publisher.NoopPublisher{}
	}
	log.Info("connected to nats", slog.String("subject", publisher.SubjectRouteCalculated))
	return p
}

// openSchoolRepository prefers PostgreSQL, then the dataset file, then the
// built-in demo schools
func openSchoolRepository(ctx context.Context, cfg *config.Config, log *slog.Logger) (service.SchoolRepository, func()) {
	noop := func() {}

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err == nil {
			err = pool.Ping(ctx)
			if err != nil {
				pool.Close()
			}
		}
		if err == nil {
			log.Info("connected to postgresql")
			return postgres.NewPostgresRepository(pool), pool.Close
		}
		logging.LogError(log, "could not connect to database", err)
	}

	if cfg.SchoolsFile != "" {
		repo, err := file.Load(cfg.SchoolsFile)
		if err == nil {
			log.Info("loaded schools file", slog.String("path", cfg.SchoolsFile))
			return repo, noop
		}
		logging.LogError(log, "could not load schools file", err)
	}

	log.Warn("running with mock school data only")
	return postgres.NewMockRepository(), noop
}
