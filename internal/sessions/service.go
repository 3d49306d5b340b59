package sessions

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/agentos-labs/agentos-backend/internal/assignments"
	"github.com/agentos-labs/agentos-backend/internal/limiter"
	"github.com/agentos-labs/agentos-backend/internal/usage"
	"github.com/agentos-labs/agentos-backend/pkg/db/models"
	"github.com/agentos-labs/agentos-backend/pkg/enums"
	pkgerrors "github.com/agentos-labs/agentos-backend/pkg/errors"
	"github.com/agentos-labs/agentos-backend/pkg/logger"
	"github.com/agentos-labs/agentos-backend/pkg/metrics"
	"github.com/agentos-labs/agentos-backend/pkg/openai"
)

type agentSource interface {
	Get(ctx context.Context, agentSlug string) (*models.Agent, error)
}

type upstream interface {
	CreateRealtimeSession(ctx context.Context, params openai.SessionParams) (*openai.Session, error)
}

type profileSource interface {
	EnsureUser(ctx context.Context, userKey string, meta assignments.UserMeta) error
}

// Service coordinates the session lifecycle from approval to final report.
type Service interface {
	Start(ctx context.Context, input StartInput) (*StartResult, error)
	Heartbeat(ctx context.Context, input usage.UpdateInput) (*HeartbeatResult, error)
}

// ServiceParams groups dependencies for the session coordinator.
type ServiceParams struct {
	Agents   agentSource
	Limiter  limiter.Service
	Usage    usage.Service
	Profiles profileSource
	Upstream upstream
	Metrics  *metrics.SessionMetrics
	Logger   *logger.Logger
}

type service struct {
	agents   agentSource
	limiter  limiter.Service
	usage    usage.Service
	profiles profileSource
	upstream upstream
	metrics  *metrics.SessionMetrics
	logg     *logger.Logger
}

// NewService builds a session coordinator with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Agents == nil {
		return nil, fmt.Errorf("agent source required")
	}
	if params.Limiter == nil {
		return nil, fmt.Errorf("limiter required")
	}
	if params.Usage == nil {
		return nil, fmt.Errorf("usage service required")
	}
	if params.Profiles == nil {
		return nil, fmt.Errorf("profile source required")
	}
	if params.Upstream == nil {
		return nil, fmt.Errorf("upstream client required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		agents:   params.Agents,
		limiter:  params.Limiter,
		usage:    params.Usage,
		profiles: params.Profiles,
		upstream: params.Upstream,
		metrics:  params.Metrics,
		logg:     params.Logger,
	}, nil
}

// Start evaluates quota, opens the pending ledger row, and only then asks the
// upstream for an ephemeral credential. If the upstream call fails the row
// stays pending for the retention sweep; the core never retries on its own.
func (s *service) Start(ctx context.Context, input StartInput) (*StartResult, error) {
	agentSlug := strings.TrimSpace(input.AgentID)
	if agentSlug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "agent id is required")
	}

	agent, err := s.agents.Get(ctx, agentSlug)
	if err != nil {
		return nil, err
	}
	if agent == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("unknown agent %q", agentSlug))
	}

	userKey := strings.TrimSpace(input.UserKey)
	decision, err := s.limiter.Evaluate(ctx, userKey, agent)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		s.metrics.IncDenied(agent.Slug, decision.DenyCode)
		return nil, pkgerrors.New(pkgerrors.CodeSubscriptionRequired, decision.DenyMessage).
			WithDetails(map[string]any{
				"code":     decision.DenyCode,
				"warnings": decision.Warnings,
			})
	}

	sessionID := strings.TrimSpace(input.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	ctx = s.logg.WithSessionID(s.logg.WithAgentID(ctx, agent.Slug), sessionID)

	// known callers always get a profile row so the admin surface can see
	// them; failure here must not block the session
	if userKey != "" {
		if err := s.profiles.EnsureUser(ctx, userKey, assignments.UserMeta{}); err != nil {
			s.logg.Error(ctx, "ensuring user profile failed", err)
		}
	}

	if err := s.usage.LogStart(ctx, usage.StartInput{
		SessionID:        sessionID,
		UserKey:          userKey,
		SubscriptionSlug: decision.SubscriptionSlug,
		AgentID:          agent.Slug,
		PostID:           input.PostID,
		Status:           enums.SessionStatusPending,
	}); err != nil {
		return nil, err
	}

	session, err := s.upstream.CreateRealtimeSession(ctx, openai.SessionParams{
		Model:        agent.Model,
		Voice:        agent.Voice,
		Instructions: agent.BasePrompt,
	})
	if err != nil {
		s.logg.Error(ctx, "upstream session creation failed", err)
		return nil, err
	}

	s.metrics.IncStarted(agent.Slug)
	s.logg.Info(ctx, "session approved")

	return &StartResult{
		SessionID:        sessionID,
		ClientSecret:     session.ClientSecret,
		ExpiresAt:        session.ExpiresAt,
		Model:            session.Model,
		Voice:            session.Voice,
		SubscriptionSlug: decision.SubscriptionSlug,
		SessionTokenCap:  decision.SessionTokenCap,
		Usage:            decision.Usage,
		Warnings:         decision.Warnings,
	}, nil
}

// Heartbeat applies a usage report and echoes the accepted totals. Duplicate
// and out-of-order reports are safe to replay.
func (s *service) Heartbeat(ctx context.Context, input usage.UpdateInput) (*HeartbeatResult, error) {
	record, err := s.usage.UpdateBySession(ctx, input)
	if err != nil {
		return nil, err
	}

	if record.Status.IsTerminal() {
		s.metrics.ObserveTokens(record.AgentID, record.TokensTotal)
	}

	return &HeartbeatResult{
		SessionID:       record.SessionID,
		TokensRealtime:  record.TokensRealtime,
		TokensText:      record.TokensText,
		TokensTotal:     record.TokensTotal,
		DurationSeconds: record.DurationSeconds,
		Status:          record.Status.String(),
	}, nil
}
