package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agentos-labs/agentos-backend/api/controllers"
	"github.com/agentos-labs/agentos-backend/api/middleware"
	"github.com/agentos-labs/agentos-backend/internal/agents"
	"github.com/agentos-labs/agentos-backend/internal/assignments"
	"github.com/agentos-labs/agentos-backend/internal/plans"
	"github.com/agentos-labs/agentos-backend/internal/sessions"
	"github.com/agentos-labs/agentos-backend/internal/transcripts"
	"github.com/agentos-labs/agentos-backend/internal/usage"
	"github.com/agentos-labs/agentos-backend/pkg/config"
	"github.com/agentos-labs/agentos-backend/pkg/logger"
	"github.com/agentos-labs/agentos-backend/pkg/redis"
)

// RouterParams holds everything the HTTP surface depends on.
type RouterParams struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          controllers.Pinger
	Redis       *redis.Client
	Registry    *prometheus.Registry
	Sessions    sessions.Service
	Transcripts transcripts.Service
	Agents      agents.Service
	Plans       plans.Service
	Assignments assignments.Service
	Usage       usage.Service
}

// NewRouter wires the public embed surface and the admin surface.
func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS),
	)

	var cache controllers.Pinger
	if p.Redis != nil {
		cache = p.Redis
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, p.DB, cache, logg))
	})

	if p.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.Registry, promhttp.HandlerOpts{}))
	}

	var limiterStore middleware.RateLimiterStore
	if p.Redis != nil {
		limiterStore = p.Redis
	}
	r.Route("/api/v1", func(r chi.Router) {
		r.With(middleware.SessionRateLimit(cfg.SessionRateLimit, limiterStore, logg)).
			Post("/sessions", controllers.StartSession(p.Sessions, logg))
		r.Post("/sessions/usage", controllers.SessionUsage(p.Sessions, logg))
		r.Post("/transcripts", controllers.SaveTranscript(p.Transcripts, logg))
		r.Get("/transcripts", controllers.ListTranscripts(p.Transcripts, logg))
	})

	adminUsers := controllers.AdminUsers{
		Assignments: p.Assignments,
		Plans:       p.Plans,
		Usage:       p.Usage,
		Logger:      logg,
	}

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.AdminAuth(cfg.JWT, logg))

		r.Get("/plans", controllers.ListPlans(p.Plans, logg))
		r.Post("/plans", controllers.UpsertPlan(p.Plans, logg))
		r.Get("/plans/{slug}", controllers.GetPlan(p.Plans, logg))
		r.Delete("/plans/{slug}", controllers.DeletePlan(p.Plans, logg))

		r.Get("/agents", controllers.ListAgents(p.Agents, logg))
		r.Post("/agents", controllers.UpsertAgent(p.Agents, logg))
		r.Get("/agents/{slug}", controllers.GetAgent(p.Agents, logg))
		r.Delete("/agents/{slug}", controllers.DeleteAgent(p.Agents, logg))

		r.Get("/users", adminUsers.ListActiveUsers)
		r.Get("/users/{userKey}", adminUsers.GetUser)
		r.Post("/users/{userKey}/subscriptions", adminUsers.SetSubscriptions)
		r.Delete("/users/{userKey}/subscriptions/{slug}", adminUsers.RemoveSubscription)
		r.Post("/users/{userKey}/move", adminUsers.MoveUser)

		r.Get("/usage/summary", controllers.UsageSummary(p.Usage, logg))
	})

	return r
}
