package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/agentos-labs/agentos-backend/internal/assignments"
	"github.com/agentos-labs/agentos-backend/internal/cron"
	"github.com/agentos-labs/agentos-backend/internal/transcripts"
	"github.com/agentos-labs/agentos-backend/internal/usage"
	"github.com/agentos-labs/agentos-backend/pkg/config"
	"github.com/agentos-labs/agentos-backend/pkg/db"
	"github.com/agentos-labs/agentos-backend/pkg/logger"
	"github.com/agentos-labs/agentos-backend/pkg/metrics"
	"github.com/agentos-labs/agentos-backend/pkg/migrate"
	"github.com/agentos-labs/agentos-backend/pkg/redis"
)

const lockKeyFormat = "aos:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	usageService, err := usage.NewService(usage.ServiceParams{
		Repo:   usage.NewRepository(dbClient.DB()),
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create usage service", err)
		os.Exit(1)
	}

	assignmentService, err := assignments.NewService(assignments.ServiceParams{
		Repo:              assignments.NewRepository(dbClient.DB()),
		Usage:             usageService,
		TransactionRunner: dbClient,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create assignment service", err)
		os.Exit(1)
	}

	transcriptService, err := transcripts.NewService(transcripts.ServiceParams{
		Repo:   transcripts.NewRepository(dbClient.DB()),
		Usage:  usageService,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create transcript service", err)
		os.Exit(1)
	}

	expiryJob, err := cron.NewAssignmentExpiryJob(cron.AssignmentExpiryJobParams{
		Logger:      logg,
		Assignments: assignmentService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create assignment expiry job", err)
		os.Exit(1)
	}

	stalePendingJob, err := cron.NewStalePendingJob(cron.StalePendingJobParams{
		Logger:         logg,
		Usage:          usageService,
		RetentionHours: cfg.Usage.PendingRetentionHours,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stale pending job", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry(expiryJob, stalePendingJob)

	if cfg.Usage.LedgerRetentionHours > 0 {
		retentionJob, err := cron.NewLedgerRetentionJob(cron.LedgerRetentionJobParams{
			Logger:         logg,
			Usage:          usageService,
			Transcripts:    transcriptService,
			RetentionHours: cfg.Usage.LedgerRetentionHours,
		})
		if err != nil {
			logg.Error(context.Background(), "failed to create ledger retention job", err)
			os.Exit(1)
		}
		registry.Register(retentionJob)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Usage.CronInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
