// Package main - точка входа воркера синхронизации записей выпускников.
//
// Воркер держит актуальные записи студентов в согласии с легаси-системой TRAX:
// - Принимает вебхуки TRAX и журналирует события реконсиляции
// - Диспетчеризует события по обработчикам (создание, обновления, статусы)
// - Переигрывает застрявшие события и чистит журнал по расписанию
// - Синхронизирует реестр дополнительных программ из TRAX
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/grad-hub/grad-record-hub/config"
	"github.com/grad-hub/grad-record-hub/internal/application/eventhandler"
	"github.com/grad-hub/grad-record-hub/internal/application/query"
	"github.com/grad-hub/grad-record-hub/internal/application/reconcile"
	"github.com/grad-hub/grad-record-hub/internal/domain/shared"
	"github.com/grad-hub/grad-record-hub/internal/domain/student"
	"github.com/grad-hub/grad-record-hub/internal/infrastructure/external/grad"
	"github.com/grad-hub/grad-record-hub/internal/infrastructure/external/trax"
	"github.com/grad-hub/grad-record-hub/internal/infrastructure/messaging"
	"github.com/grad-hub/grad-record-hub/internal/infrastructure/persistence/postgres"
	"github.com/grad-hub/grad-record-hub/internal/infrastructure/persistence/redis"
	"github.com/grad-hub/grad-record-hub/internal/infrastructure/scheduler"
	"github.com/grad-hub/grad-record-hub/internal/infrastructure/scheduler/jobs"
	httpiface "github.com/grad-hub/grad-record-hub/internal/interface/http"
	"github.com/grad-hub/grad-record-hub/internal/interface/http/handlers"
	"github.com/grad-hub/grad-record-hub/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. КОНФИГУРАЦИЯ И ЛОГГЕР
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.Setup(cfg.Observability.LogLevel, cfg.Observability.LogFormat == "text")
	log.Info("starting grad record hub worker",
		"version", cfg.App.Version,
		"environment", string(cfg.App.Environment),
		"instance_id", cfg.App.InstanceID,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ─────────────────────────────────────────────────────────────────────────
	// 2. POSTGRESQL И МИГРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	conn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer conn.Close()

	if err := conn.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}

	migrator := postgres.NewMigrator(conn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	log.Info("database schema is up to date")

	snapshotRepo := postgres.NewSnapshotRepository(conn)
	programRepo := postgres.NewProgramRepository(conn)
	registryRepo := postgres.NewRegistryRepository(conn)
	eventRepo := postgres.NewEventRepository(conn)
	convErrRepo := postgres.NewConversionErrorRepository(conn)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. REDIS: КЕШ СНАПШОТОВ И МЕЖЭКЗЕМПЛЯРНАЯ ШИНА (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	var redisCache *redis.Cache
	var snapshotCache student.Cache

	if !cfg.Redis.Disabled {
		redisCache, err = redis.NewCache(redis.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer redisCache.Close()

		if cfg.Features.IsEnabled(config.FeatureCacheSnapshots, nil) {
			snapshotCache = redis.NewSnapshotCache(redisCache)
		}
		log.Info("redis connection established")
	} else {
		log.Warn("redis disabled, running without snapshot cache and cross-instance bus")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ШИНА СОБЫТИЙ И ДИСПЕТЧЕР
	// ─────────────────────────────────────────────────────────────────────────
	var bus shared.EventBus

	if redisCache != nil {
		redisBus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:     redis.NewBusClient(redisCache),
			InstanceID: cfg.App.InstanceID,
			LocalBusConfig: messaging.InMemoryEventBusConfig{
				Logger: log,
			},
			Logger: log,
		})
		if err != nil {
			return fmt.Errorf("create redis event bus: %w", err)
		}
		defer redisBus.Close()
		bus = redisBus
	} else {
		memBus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{
			Logger: log,
		})
		defer memBus.Close()
		bus = memBus
	}

	dispatcherCfg := messaging.DefaultDispatcherConfig(bus)
	dispatcherCfg.Logger = log
	dispatcher := messaging.NewDispatcher(dispatcherCfg)

	dispatcher.Use(messaging.RecoveryMiddleware(log))
	dispatcher.Use(messaging.LoggingMiddleware(log))
	dispatcher.Use(messaging.MetricsMiddleware(dispatcher.Metrics()))
	defer func() {
		_ = dispatcher.Stop()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ВНЕШНИЕ API: TRAX И АЛГОРИТМ ВЫПУСКА
	// ─────────────────────────────────────────────────────────────────────────
	traxClient := trax.NewClient(trax.ClientConfig{
		BaseURL: cfg.Trax.BaseURL,
		APIKey:  cfg.Trax.APIKey,
		Timeout: cfg.Trax.RequestTimeout,
		Logger:  log,
	})

	gradClient := grad.NewClient(grad.ClientConfig{
		BaseURL: cfg.Grad.BaseURL,
		APIKey:  cfg.Grad.APIKey,
		Timeout: cfg.Grad.RequestTimeout,
		Logger:  log,
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ПРИКЛАДНОЙ СЛОЙ: РЕКОНСИЛЯТОР И ОБРАБОТЧИКИ СОБЫТИЙ
	// ─────────────────────────────────────────────────────────────────────────
	reconciler := reconcile.NewReconciler(registryRepo, programRepo, log)

	service := eventhandler.NewService(
		snapshotRepo,
		snapshotCache,
		programRepo,
		registryRepo,
		reconciler,
		convErrRepo,
		traxClient,
		traxClient,
		gradClient,
		eventRepo,
		log,
		eventhandler.DefaultConfig(),
	)

	if err := service.RegisterAll(dispatcher); err != nil {
		return fmt.Errorf("register event handlers: %w", err)
	}

	if err := dispatcher.Start(); err != nil {
		return fmt.Errorf("start dispatcher: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ПЛАНИРОВЩИК ФОНОВЫХ ЗАДАЧ
	// ─────────────────────────────────────────────────────────────────────────
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched, err = setupScheduler(cfg, eventRepo, bus, traxClient, registryRepo, log)
		if err != nil {
			return fmt.Errorf("setup scheduler: %w", err)
		}
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. HTTP: ПРИЁМ ВЕБХУКОВ TRAX И ЧТЕНИЕ ЗАПИСЕЙ
	// ─────────────────────────────────────────────────────────────────────────
	var server *httpiface.Server
	var serverErr <-chan error
	if cfg.HTTP.Enabled {
		server = setupHTTPServer(cfg, conn, redisCache, snapshotRepo, snapshotCache, convErrRepo, eventRepo, bus, log)
		serverErr = server.StartAsync()
	}

	log.Info("grad record hub worker is running")

	// ─────────────────────────────────────────────────────────────────────────
	// 9. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			log.Error("http server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("http server shutdown failed", "error", err)
		}
	}
	if sched != nil {
		if err := sched.Stop(); err != nil {
			log.Error("scheduler stop failed", "error", err)
		}
	}

	log.Info("worker stopped")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// WIRING HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupScheduler регистрирует фоновые задачи с интервалами из конфигурации.
func setupScheduler(
	cfg *config.Config,
	events shared.EventStore,
	bus shared.EventPublisher,
	traxClient *trax.Client,
	registryRepo *postgres.RegistryRepository,
	log *slog.Logger,
) (*scheduler.Scheduler, error) {
	sched := scheduler.NewScheduler(scheduler.SchedulerConfig{
		Logger: log,
	})

	replayJob := jobs.NewReplayPendingEventsJob(events, bus, log, jobs.ReplayPendingEventsConfig{
		BatchSize: cfg.Scheduler.ReplayBatchSize,
		MinAge:    cfg.Scheduler.ReplayMinAge,
	})
	if err := sched.Register(replayJob, scheduler.NewIntervalSchedule(cfg.Scheduler.ReplayPendingInterval)); err != nil {
		return nil, err
	}

	purgeJob := jobs.NewPurgeProcessedEventsJob(events, log, jobs.PurgeProcessedEventsConfig{
		Retention: cfg.Scheduler.ProcessedRetention,
	})
	if err := sched.Register(purgeJob, scheduler.NewIntervalSchedule(cfg.Scheduler.PurgeProcessedInterval)); err != nil {
		return nil, err
	}

	refreshJob := jobs.NewRefreshRegistryJob(traxClient, registryRepo, log)
	if err := sched.Register(refreshJob, scheduler.NewIntervalSchedule(cfg.Scheduler.RefreshRegistryInterval)); err != nil {
		return nil, err
	}

	return sched, nil
}

// setupHTTPServer собирает HTTP-сервер с его зависимостями.
func setupHTTPServer(
	cfg *config.Config,
	conn *postgres.Connection,
	redisCache *redis.Cache,
	snapshotRepo student.Repository,
	snapshotCache student.Cache,
	convErrRepo student.ConversionErrorRecorder,
	events shared.EventStore,
	bus shared.EventPublisher,
	log *slog.Logger,
) *httpiface.Server {
	health := handlers.NewCompositeHealthChecker(cfg.App.Version)
	health.AddCheck("postgres", handlers.NewPingCheck(conn))
	if redisCache != nil {
		health.AddCheck("redis", handlers.NewPingCheck(redisCache))
	}

	serverCfg := httpiface.DefaultConfig()
	serverCfg.Host = cfg.HTTP.Host
	serverCfg.Port = cfg.HTTP.Port
	serverCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	serverCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	serverCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	serverCfg.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	serverCfg.WebhookSecretHash = cfg.HTTP.WebhookSecretHash

	return httpiface.NewServer(serverCfg, httpiface.Dependencies{
		GetStudentRecordHandler: query.NewGetStudentRecordHandler(snapshotRepo, snapshotCache, convErrRepo),
		Intake:                  handlers.NewTraxEventIntake(events, bus),
		HealthChecker:           health,
		Logger:                  log,
	})
}
