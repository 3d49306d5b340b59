package plans

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/agentos-labs/agentos-backend/pkg/db/models"
	pkgerrors "github.com/agentos-labs/agentos-backend/pkg/errors"
	"github.com/agentos-labs/agentos-backend/pkg/logger"
	"github.com/agentos-labs/agentos-backend/pkg/slug"
)

// agentCatalog is the read surface the plan store needs from the agent
// catalog: just the known slugs, so allowed_agents can be validated.
type agentCatalog interface {
	KnownSlugs(ctx context.Context) ([]string, error)
}

// Service defines the subscription plan store surface.
type Service interface {
	List(ctx context.Context) ([]models.Plan, error)
	Get(ctx context.Context, planSlug string) (*models.Plan, error)
	Upsert(ctx context.Context, input UpsertInput, originalSlug string) (string, error)
	Delete(ctx context.Context, planSlug string) error
}

// ServiceParams groups dependencies for the plan service.
type ServiceParams struct {
	Repo   Repository
	Agents agentCatalog
	Logger *logger.Logger
}

type service struct {
	repo   Repository
	agents agentCatalog
	logg   *logger.Logger
}

// NewService builds a plan service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("plan repo required")
	}
	if params.Agents == nil {
		return nil, fmt.Errorf("agent catalog required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: params.Repo, agents: params.Agents, logg: params.Logger}, nil
}

func (s *service) List(ctx context.Context) ([]models.Plan, error) {
	return s.repo.List(ctx)
}

func (s *service) Get(ctx context.Context, planSlug string) (*models.Plan, error) {
	planSlug = strings.TrimSpace(planSlug)
	if planSlug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan slug is required")
	}
	return s.repo.FindBySlug(ctx, planSlug)
}

// Upsert sanitizes and writes a plan. Numeric fields are clamped to their
// floors and allowed_agents is intersected against the known agent catalog.
// Pass originalSlug to rename an existing plan in place; otherwise slug
// collisions get a numeric suffix so a save never overwrites a different plan.
func (s *service) Upsert(ctx context.Context, input UpsertInput, originalSlug string) (string, error) {
	label := strings.TrimSpace(input.Label)
	if label == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "plan label is required")
	}

	requested := strings.TrimSpace(input.Slug)
	if requested == "" {
		requested = label
	}
	originalSlug = strings.TrimSpace(originalSlug)
	finalSlug, err := s.resolveSlug(ctx, slug.Make(requested), originalSlug)
	if err != nil {
		return "", err
	}

	allowed, err := s.intersectKnownAgents(ctx, input.AllowedAgents)
	if err != nil {
		return "", err
	}

	blockOnOverage := true
	if input.BlockOnOverage != nil {
		blockOnOverage = *input.BlockOnOverage
	}

	plan := &models.Plan{
		Slug:                finalSlug,
		Label:               label,
		Notes:               strings.TrimSpace(input.Notes),
		AllowedAgents:       pq.StringArray(allowed),
		PeriodHours:         clampInt(input.PeriodHours, 1),
		LimitRealtimeTokens: clampInt64(input.Limits.RealtimeTokens, 0),
		LimitTextTokens:     clampInt64(input.Limits.TextTokens, 0),
		LimitSessions:       clampInt64(input.Limits.Sessions, 0),
		SessionTokenCap:     clampInt64(input.SessionTokenCap, 0),
		BlockOnOverage:      blockOnOverage,
	}

	if err := s.repo.Upsert(ctx, plan); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "saving plan")
	}

	if originalSlug != "" && originalSlug != finalSlug {
		if err := s.repo.Delete(ctx, originalSlug); err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "removing renamed plan")
		}
	}

	s.logg.Info(s.logg.WithField(ctx, "plan", finalSlug), "plan saved")
	return finalSlug, nil
}

// Delete removes a plan. Assignments referencing the slug are untouched; the
// limiter treats a dangling reference as contributing nothing.
func (s *service) Delete(ctx context.Context, planSlug string) error {
	planSlug = strings.TrimSpace(planSlug)
	if planSlug == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "plan slug is required")
	}
	if err := s.repo.Delete(ctx, planSlug); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deleting plan")
	}
	return nil
}

func (s *service) resolveSlug(ctx context.Context, base, originalSlug string) (string, error) {
	candidate := base
	for i := 1; ; i++ {
		existing, err := s.repo.FindBySlug(ctx, candidate)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "checking plan slug")
		}
		if existing == nil || candidate == originalSlug {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}

func (s *service) intersectKnownAgents(ctx context.Context, requested []string) ([]string, error) {
	if len(requested) == 0 {
		return []string{}, nil
	}
	known, err := s.agents.KnownSlugs(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading agent catalog")
	}
	knownSet := make(map[string]bool, len(known))
	for _, k := range known {
		knownSet[k] = true
	}
	out := make([]string, 0, len(requested))
	seen := map[string]bool{}
	for _, raw := range requested {
		candidate := strings.TrimSpace(raw)
		if candidate == "" || seen[candidate] || !knownSet[candidate] {
			continue
		}
		seen[candidate] = true
		out = append(out, candidate)
	}
	return out, nil
}

func clampInt(value, floor int) int {
	if value < floor {
		return floor
	}
	return value
}

func clampInt64(value, floor int64) int64 {
	if value < floor {
		return floor
	}
	return value
}
