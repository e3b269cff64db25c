package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	httptransport "github.com/deskops/helpdesk-engine/internal/api/http"
	"github.com/deskops/helpdesk-engine/internal/api/http/handlers"
	"github.com/deskops/helpdesk-engine/internal/auth"
	"github.com/deskops/helpdesk-engine/internal/compliance"
	"github.com/deskops/helpdesk-engine/internal/config"
	"github.com/deskops/helpdesk-engine/internal/events"
	"github.com/deskops/helpdesk-engine/internal/notify"
	"github.com/deskops/helpdesk-engine/internal/observability"
	"github.com/deskops/helpdesk-engine/internal/persistence"
	"github.com/deskops/helpdesk-engine/internal/recipients"
	"github.com/deskops/helpdesk-engine/internal/report"
	"github.com/deskops/helpdesk-engine/internal/repository"
	"github.com/deskops/helpdesk-engine/internal/schedule"
	"github.com/deskops/helpdesk-engine/internal/service"
	"github.com/deskops/helpdesk-engine/internal/sla"
	"github.com/deskops/helpdesk-engine/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	policyRepo := repository.NewSLAPolicyRepository(pool)
	automationRepo := repository.NewAutomationRepository(pool)
	directory := repository.NewDirectory(pool)

	if policies, err := policyRepo.ListActive(ctx); err != nil {
		logger.Warn("unable to list sla policies", zap.Error(err))
	} else {
		logger.Info("sla policies loaded", zap.Int("active", len(policies)))
	}

	sink := buildSink(cfg.Notification, redis, logger, metrics)
	dispatcher := events.NewInMemoryDispatcher()
	resolver := recipients.NewResolver(directory, logger)

	notificationService := service.NewNotificationService(dispatcher, sink, resolver, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService)

	engine := compliance.NewEngine(ticketRepo, directory.Departments, dispatcher, logger, compliance.Config{
		WarningThresholdPercent: cfg.Compliance.WarningThresholdPercent,
		Concurrency:             cfg.Compliance.Concurrency,
		PageSize:                cfg.Compliance.PageSize,
	}, compliance.WithMetrics(metrics))

	runner := report.NewRunner(
		report.Generators(ticketRepo, directory, cfg.Notification.FrontendURL, cfg.Compliance.PageSize),
		resolver, sink, logger, report.WithRunnerMetrics(metrics),
	)
	scheduler := schedule.NewScheduler(automationRepo, runner, logger)

	workers := worker.NewManager(logger)
	workers.Start(ctx,
		worker.NewComplianceWorker(engine, cfg.Compliance.Interval, cfg.Compliance.RunOnStart, logger),
		worker.NewSchedulerWorker(scheduler, cfg.Scheduler.TickInterval, cfg.Scheduler.ReloadInterval, logger),
	)

	slaService := service.NewSLAService(service.SLADependencies{
		TicketRepo: ticketRepo,
		Policies:   sla.NewPolicyResolver(policyRepo, logger),
		Scanner:    engine,
		Logger:     logger,
	})
	automationService := service.NewAutomationService(scheduler)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL())
	authMiddleware := auth.NewAuthMiddleware(tokens, directory.Staff)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}),
		SLA:            handlers.NewSLAHandler(slaService),
		Automations:    handlers.NewAutomationsHandler(automationService),
		Metrics:        metrics,
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	cancel()
	workers.Stop()
}

// buildSink assembles every configured transport behind one throttled sink.
// With nothing configured, messages are only logged.
func buildSink(cfg config.NotificationConfig, redis *persistence.Redis, logger *zap.Logger, metrics *observability.Metrics) notify.Sink {
	var sinks []notify.Named
	if cfg.SMTPHost != "" {
		sinks = append(sinks, notify.Named{Name: "smtp", Sink: notify.NewSMTPSink(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.EmailFrom,
		})})
	}
	if cfg.WebhookURL != "" {
		sinks = append(sinks, notify.Named{Name: "webhook", Sink: notify.NewWebhookSink(cfg.WebhookURL, &http.Client{Timeout: 10 * time.Second})})
	}
	if cfg.RedisQueue != "" {
		sinks = append(sinks, notify.Named{Name: "redis", Sink: notify.NewRedisQueueSink(redis.Client, cfg.RedisQueue)})
	}
	if len(sinks) == 0 {
		logger.Warn("no notification transport configured, messages are logged only")
		sinks = append(sinks, notify.Named{Name: "log", Sink: notify.NewLogSink(logger)})
	}

	for i := range sinks {
		sinks[i].Sink = notify.Instrument(sinks[i].Name, sinks[i].Sink, metrics)
	}
	// A rate of 0 disables throttling.
	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), max(1, int(cfg.RatePerSecond)))
	}
	return notify.Throttle(notify.NewMultiSink(sinks...), limiter, cfg.RateMaxWait)
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
