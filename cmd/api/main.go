package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/agentos-labs/agentos-backend/api/routes"
	"github.com/agentos-labs/agentos-backend/internal/agents"
	"github.com/agentos-labs/agentos-backend/internal/assignments"
	"github.com/agentos-labs/agentos-backend/internal/limiter"
	"github.com/agentos-labs/agentos-backend/internal/plans"
	"github.com/agentos-labs/agentos-backend/internal/sessions"
	"github.com/agentos-labs/agentos-backend/internal/transcripts"
	"github.com/agentos-labs/agentos-backend/internal/usage"
	"github.com/agentos-labs/agentos-backend/pkg/config"
	"github.com/agentos-labs/agentos-backend/pkg/db"
	"github.com/agentos-labs/agentos-backend/pkg/logger"
	"github.com/agentos-labs/agentos-backend/pkg/metrics"
	"github.com/agentos-labs/agentos-backend/pkg/migrate"
	"github.com/agentos-labs/agentos-backend/pkg/openai"
	"github.com/agentos-labs/agentos-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	registry := prometheus.NewRegistry()
	sessionMetrics := metrics.NewSessionMetrics(registry)

	agentService, err := agents.NewService(agents.ServiceParams{
		Repo:   agents.NewRepository(dbClient.DB()),
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create agent service", err)
		os.Exit(1)
	}

	planService, err := plans.NewService(plans.ServiceParams{
		Repo:   plans.NewRepository(dbClient.DB()),
		Agents: agentService,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create plan service", err)
		os.Exit(1)
	}

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

	limiterService, err := limiter.NewService(limiter.ServiceParams{
		Assignments: assignmentService,
		Plans:       planService,
		Usage:       usageService,
		Logger:      logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create limiter service", err)
		os.Exit(1)
	}

	upstreamClient, err := openai.NewClient(cfg.OpenAI, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create openai client", err)
		os.Exit(1)
	}

	sessionService, err := sessions.NewService(sessions.ServiceParams{
		Agents:   agentService,
		Limiter:  limiterService,
		Usage:    usageService,
		Profiles: assignmentService,
		Upstream: upstreamClient,
		Metrics:  sessionMetrics,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create session service", err)
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

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:      cfg,
			Logger:      logg,
			DB:          dbClient,
			Redis:       redisClient,
			Registry:    registry,
			Sessions:    sessionService,
			Transcripts: transcriptService,
			Agents:      agentService,
			Plans:       planService,
			Assignments: assignmentService,
			Usage:       usageService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
