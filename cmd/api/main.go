package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/kursadbilgin/bloodbank-workflow/internal/config"
	"github.com/kursadbilgin/bloodbank-workflow/internal/handler"
	"github.com/kursadbilgin/bloodbank-workflow/internal/infra/postgresql"
	"github.com/kursadbilgin/bloodbank-workflow/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/bloodbank-workflow/internal/infra/redis"
	"github.com/kursadbilgin/bloodbank-workflow/internal/observability"
	"github.com/kursadbilgin/bloodbank-workflow/internal/provider"
	"github.com/kursadbilgin/bloodbank-workflow/internal/queue"
	"github.com/kursadbilgin/bloodbank-workflow/internal/repository"
	"github.com/kursadbilgin/bloodbank-workflow/internal/service"
	"github.com/kursadbilgin/bloodbank-workflow/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("bloodbank-workflow api stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN, postgresql.PoolOptions{})
	if err != nil {
		return fmt.Errorf("postgres initialization failed: %w", err)
	}
	if err := migrations.Migrate(db); err != nil {
		return fmt.Errorf("database migrations failed: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("postgres underlying db init failed: %w", err)
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis initialization failed: %w", err)
	}
	defer rdb.Close()

	var broker *queue.RabbitMQ
	if cfg.EventSink == config.SinkRabbitMQ || cfg.NotifierEnabled {
		broker, err = queue.NewRabbitMQ(cfg.RabbitMQURL)
		if err != nil {
			return fmt.Errorf("rabbitmq initialization failed: %w", err)
		}
		defer broker.Close()
	}

	metrics := observability.NewMetrics()
	store := repository.NewGormStore(db)

	locker, err := infraredis.NewRedisLocker(rdb, cfg.LockTTL())
	if err != nil {
		return err
	}
	sinkLimiter, err := infraredis.NewRedisRateLimiter(rdb, "outbox-sink", cfg.SinkRateLimit)
	if err != nil {
		return err
	}
	validateLimiter, err := infraredis.NewRedisRateLimiter(rdb, "voucher-validate", cfg.ValidateRateLimit)
	if err != nil {
		return err
	}

	inventory, err := service.NewInventoryLedger(store, logger)
	if err != nil {
		return err
	}
	points, err := service.NewPointsLedger(store, logger)
	if err != nil {
		return err
	}
	appointments, err := service.NewAppointmentWorkflow(store, points, service.AppointmentOptions{
		PointsPerDonation: cfg.PointsPerDonation,
		GraceWindow:       cfg.GraceWindow(),
		SweepLimit:        cfg.SweepBatchSize,
	}, logger)
	if err != nil {
		return err
	}
	requests, err := service.NewRequestWorkflow(store, inventory, logger)
	if err != nil {
		return err
	}
	vouchers, err := service.NewVoucherWorkflow(store, inventory, points, logger)
	if err != nil {
		return err
	}
	inventory.SetMetrics(metrics)
	appointments.SetMetrics(metrics)
	requests.SetMetrics(metrics)
	vouchers.SetMetrics(metrics)

	sink, err := newEventSink(cfg, broker, logger)
	if err != nil {
		return err
	}
	relay, err := service.NewOutboxRelay(store, sink, sinkLimiter, locker, service.RelayOptions{
		Interval:    cfg.OutboxInterval(),
		BatchSize:   cfg.OutboxBatchSize,
		MaxAttempts: cfg.OutboxMaxAttempts,
	}, logger)
	if err != nil {
		return err
	}
	relay.SetMetrics(metrics)

	sweeper, err := service.NewSweeper(appointments, inventory, locker, cfg.SweepInterval(), logger)
	if err != nil {
		return err
	}

	var notifier *service.Notifier
	if cfg.NotifierEnabled {
		webhook, err := provider.NewWebhookProvider(cfg.WebhookURL)
		if err != nil {
			return err
		}
		consumer := queue.NewRabbitMQConsumer(broker, cfg.NotifierConcurrency, logger)
		defer consumer.Close()

		notifier, err = service.NewNotifier(consumer, webhook, sinkLimiter, cfg.NotifierConcurrency, logger)
		if err != nil {
			return err
		}
		notifier.SetMetrics(metrics)
	}

	app := fiber.New(fiber.Config{
		AppName:      "bloodbank-workflow",
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(requestid.New())
	app.Use(observability.RequestContextMiddleware())
	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(metrics.HTTPMiddleware())

	var brokerStatus handler.BrokerStatus
	if broker != nil {
		brokerStatus = broker
	}
	handler.RegisterHealthRoutes(app, sqlDB, rdb, brokerStatus)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	if err := handler.RegisterAppointmentRoutes(app, appointments); err != nil {
		return err
	}
	if err := handler.RegisterRequestRoutes(app, requests); err != nil {
		return err
	}
	if err := handler.RegisterInventoryRoutes(app, inventory); err != nil {
		return err
	}
	if err := handler.RegisterVoucherRoutes(app, vouchers, handler.RateLimitByIP(validateLimiter, logger)); err != nil {
		return err
	}
	if err := handler.RegisterPointsRoutes(app, points); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("bloodbank-workflow api started", zap.Int("port", cfg.APIPort))
		if err := app.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return app.ShutdownWithTimeout(shutdownTimeout)
	})
	g.Go(func() error { return relay.Start(gctx) })
	g.Go(func() error { return sweeper.Start(gctx) })

	if notifier != nil {
		g.Go(func() error { return notifier.Start(gctx) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("bloodbank-workflow api stopped")
	return nil
}

func newEventSink(cfg *config.Config, broker *queue.RabbitMQ, logger *zap.Logger) (provider.Provider, error) {
	switch cfg.EventSink {
	case config.SinkWebhook:
		return provider.NewWebhookProvider(cfg.WebhookURL)
	case config.SinkRabbitMQ:
		return provider.NewBrokerProvider(queue.NewRabbitMQPublisher(broker))
	default:
		return provider.NewLogProvider(logger), nil
	}
}
