package main

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/complaint-service/internal/api/http"
	"github.com/spec-kit/complaint-service/internal/api/http/handlers"
	"github.com/spec-kit/complaint-service/internal/auth"
	"github.com/spec-kit/complaint-service/internal/classifier"
	"github.com/spec-kit/complaint-service/internal/config"
	"github.com/spec-kit/complaint-service/internal/delivery"
	"github.com/spec-kit/complaint-service/internal/events"
	"github.com/spec-kit/complaint-service/internal/lifecycle"
	"github.com/spec-kit/complaint-service/internal/observability"
	"github.com/spec-kit/complaint-service/internal/persistence"
	"github.com/spec-kit/complaint-service/internal/repository"
	"github.com/spec-kit/complaint-service/internal/service"
	"github.com/spec-kit/complaint-service/internal/sla"
	"github.com/spec-kit/complaint-service/internal/worker"
)

// application holds the wired service graph shared by the CLI commands.
type application struct {
	cfg           *config.Config
	logger        *zap.Logger
	metrics       *observability.Metrics
	registry      *prometheus.Registry
	postgres      *persistence.Postgres
	redis         *persistence.Redis
	dispatcher    *events.AsyncDispatcher
	complaints    *service.ComplaintService
	roster        *service.RosterService
	notifications *service.NotificationService
	tokens        *auth.TokenManager
}

func buildApplication(ctx context.Context, cfg *config.Config, logger *zap.Logger, migrate bool) (*application, error) {
	app := &application{cfg: cfg, logger: logger}

	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	app.metrics = observability.NewMetrics(app.registry)

	var (
		tickets     repository.TicketRepository
		handlerRepo repository.HandlerRepository
	)
	switch cfg.Store.Driver {
	case "postgres":
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		app.postgres = pg
		if migrate {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
				app.Close()
				return nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		tickets = repository.NewTicketRepository(pg.PoolHandle())
		handlerRepo = repository.NewHandlerRepository(pg.PoolHandle())
	default:
		memTickets := repository.NewMemoryTicketRepository()
		tickets = memTickets
		handlerRepo = repository.NewMemoryHandlerRepository(memTickets)
		logger.Warn("using in-memory store; data is lost on restart")
	}

	var transport delivery.Transport
	switch cfg.Notification.Transport {
	case "redis":
		app.redis = persistence.NewRedis(ctx, cfg.Redis, logger)
		transport = delivery.NewRedisTransport(app.redis.Client, cfg.Notification)
	default:
		transport = delivery.NewLogTransport(logger)
	}

	app.dispatcher = events.NewAsyncDispatcher(logger)
	app.notifications = service.NewNotificationService(app.dispatcher, transport, logger, app.metrics, cfg.Notification)
	worker.StartNotificationWorker(app.notifications)

	calc := sla.NewCalculator(cfg.SLA)
	app.complaints = service.NewComplaintService(service.ComplaintDependencies{
		TicketRepo: tickets,
		Assignment: service.NewAssignmentService(handlerRepo),
		Classifier: classifier.NewKeywordClassifier(),
		Machine:    lifecycle.NewMachine(calc),
		SLA:        calc,
		Dispatcher: app.dispatcher,
		Metrics:    app.metrics,
		Logger:     logger,
	})
	app.roster = service.NewRosterService(cfg.Assignment, handlerRepo)
	app.tokens = auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	return app, nil
}

func (a *application) httpServer() *fiber.App {
	server := fiber.New(fiber.Config{
		AppName:               a.cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(server, a.logger, a.metrics, a.cfg.App.RequestTimeout())

	checks := map[string]handlers.Pinger{}
	if a.postgres != nil {
		checks["postgres"] = a.postgres
	}
	if a.redis != nil {
		checks["redis"] = a.redis
	}

	httptransport.RegisterRoutes(server, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(a.cfg.App.Name, a.cfg.App.Version, checks),
		Complaints:     handlers.NewComplaintsHandler(a.complaints),
		Roster:         handlers.NewRosterHandler(a.roster),
		Notifications:  handlers.NewNotificationsHandler(a.notifications, a.complaints),
		AuthMiddleware: auth.NewAuthMiddleware(a.tokens),
		Gatherer:       a.registry,
	})
	return server
}

// Close drains pending events before releasing connections.
func (a *application) Close() {
	if a.dispatcher != nil {
		a.dispatcher.Close()
	}
	a.redis.Close()
	a.postgres.Close()
}
