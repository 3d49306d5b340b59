package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/agentos-labs/agentos-backend/pkg/db/models"
	"github.com/agentos-labs/agentos-backend/pkg/enums"
	pkgerrors "github.com/agentos-labs/agentos-backend/pkg/errors"
	"github.com/agentos-labs/agentos-backend/pkg/logger"
	"github.com/agentos-labs/agentos-backend/pkg/slug"
)

// Service defines the agent catalog surface.
type Service interface {
	List(ctx context.Context) ([]models.Agent, error)
	Get(ctx context.Context, agentSlug string) (*models.Agent, error)
	Upsert(ctx context.Context, input UpsertInput, originalSlug string) (string, error)
	Delete(ctx context.Context, agentSlug string) error
	KnownSlugs(ctx context.Context) ([]string, error)
}

// ServiceParams groups dependencies for the agent service.
type ServiceParams struct {
	Repo   Repository
	Logger *logger.Logger
}

type service struct {
	repo Repository
	logg *logger.Logger
}

// NewService builds an agent service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("agent repo required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: params.Repo, logg: params.Logger}, nil
}

func (s *service) List(ctx context.Context) ([]models.Agent, error) {
	return s.repo.List(ctx)
}

func (s *service) Get(ctx context.Context, agentSlug string) (*models.Agent, error) {
	agentSlug = strings.TrimSpace(agentSlug)
	if agentSlug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "agent slug is required")
	}
	return s.repo.FindBySlug(ctx, agentSlug)
}

// Upsert sanitizes the input and writes the agent. Pass originalSlug to allow
// renaming an existing agent in place; otherwise slug collisions get a numeric
// suffix so a write never silently overwrites a different agent.
func (s *service) Upsert(ctx context.Context, input UpsertInput, originalSlug string) (string, error) {
	label := strings.TrimSpace(input.Label)
	if label == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "agent label is required")
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

	mode, err := enums.ParseAgentMode(strings.TrimSpace(input.Mode))
	if err != nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, err.Error())
	}

	tokenCap := input.SessionTokenCap
	if tokenCap < 0 {
		tokenCap = 0
	}
	showTranscript := true
	if input.ShowTranscript != nil {
		showTranscript = *input.ShowTranscript
	}

	agent := &models.Agent{
		Slug:                finalSlug,
		Label:               label,
		Mode:                mode,
		Model:               strings.TrimSpace(input.Model),
		Voice:               strings.TrimSpace(input.Voice),
		BasePrompt:          strings.TrimSpace(input.BasePrompt),
		PostTypes:           pq.StringArray(normalizePostTypes(input.PostTypes)),
		ShowTranscript:      showTranscript,
		RequireSubscription: input.RequireSubscription,
		SessionTokenCap:     tokenCap,
	}

	if err := s.repo.Upsert(ctx, agent); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "saving agent")
	}

	// A rename leaves the old row behind; remove it once the new row exists.
	if originalSlug != "" && originalSlug != finalSlug {
		if err := s.repo.Delete(ctx, originalSlug); err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "removing renamed agent")
		}
	}

	s.logg.Info(s.logg.WithAgentID(ctx, finalSlug), "agent saved")
	return finalSlug, nil
}

func (s *service) Delete(ctx context.Context, agentSlug string) error {
	agentSlug = strings.TrimSpace(agentSlug)
	if agentSlug == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "agent slug is required")
	}
	if err := s.repo.Delete(ctx, agentSlug); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deleting agent")
	}
	return nil
}

func (s *service) KnownSlugs(ctx context.Context) ([]string, error) {
	return s.repo.Slugs(ctx)
}

// resolveSlug appends -1, -2, ... until the candidate is free, unless the
// occupied slug is the row being renamed.
func (s *service) resolveSlug(ctx context.Context, base, originalSlug string) (string, error) {
	candidate := base
	for i := 1; ; i++ {
		existing, err := s.repo.FindBySlug(ctx, candidate)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "checking agent slug")
		}
		if existing == nil || candidate == originalSlug {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}

func normalizePostTypes(values []string) []string {
	out := make([]string, 0, len(values))
	seen := map[string]bool{}
	for _, v := range values {
		v = strings.TrimSpace(strings.ToLower(v))
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
