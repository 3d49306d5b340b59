package limiter

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/agentos-labs/agentos-backend/internal/plans"
	"github.com/agentos-labs/agentos-backend/internal/usage"
	"github.com/agentos-labs/agentos-backend/pkg/db/models"
	"github.com/agentos-labs/agentos-backend/pkg/enums"
	pkgerrors "github.com/agentos-labs/agentos-backend/pkg/errors"
	"github.com/agentos-labs/agentos-backend/pkg/logger"
)

// DenyCodeSubscriptionRequired is the machine-readable reason for a denial
// caused by an agent that demands a subscription the user does not hold.
const DenyCodeSubscriptionRequired = "subscription_required"

type assignmentSource interface {
	Get(ctx context.Context, userKey string, includeExpired bool) ([]models.Assignment, error)
}

type planSource interface {
	Get(ctx context.Context, planSlug string) (*models.Plan, error)
}

type usageSource interface {
	Summarize(ctx context.Context, subscriptionSlug, userKey string, periodHours int) (usage.Summary, error)
}

// Warning records a limit breach on a plan that stayed eligible because its
// overage policy downgrades breaches to warnings.
type Warning struct {
	Slug   string               `json:"slug"`
	Reason enums.LimitDimension `json:"reason"`
	Usage  usage.Summary        `json:"usage"`
	Limits plans.Limits         `json:"limits"`
}

// Decision is the limiter's verdict for one session-start request.
type Decision struct {
	Allowed          bool          `json:"allowed"`
	SubscriptionSlug string        `json:"subscription_slug"`
	SessionTokenCap  int64         `json:"session_token_cap"`
	Usage            usage.Summary `json:"usage"`
	Warnings         []Warning     `json:"warnings"`
	DenyCode         string        `json:"deny_code,omitempty"`
	DenyStatus       int           `json:"deny_status,omitempty"`
	DenyMessage      string        `json:"deny_message,omitempty"`
}

// Service evaluates whether a user may open a session against an agent.
type Service interface {
	Evaluate(ctx context.Context, userKey string, agent *models.Agent) (Decision, error)
}

// ServiceParams groups dependencies for the limiter.
type ServiceParams struct {
	Assignments assignmentSource
	Plans       planSource
	Usage       usageSource
	Logger      *logger.Logger
}

type service struct {
	assignments assignmentSource
	plans       planSource
	usage       usageSource
	logg        *logger.Logger
}

// NewService builds a limiter with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Assignments == nil {
		return nil, fmt.Errorf("assignment source required")
	}
	if params.Plans == nil {
		return nil, fmt.Errorf("plan source required")
	}
	if params.Usage == nil {
		return nil, fmt.Errorf("usage source required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		assignments: params.Assignments,
		plans:       params.Plans,
		usage:       params.Usage,
		logg:        params.Logger,
	}, nil
}

// candidate is one eligible plan with its usage snapshot and slack score.
type candidate struct {
	slug  string
	plan  models.Plan
	used  usage.Summary
	score int64
}

// Evaluate is a pure read of current store state: it reserves nothing, so two
// concurrent calls near a limit edge may both be approved. Enforcement
// tightens on the next evaluation once the ledger catches up.
func (s *service) Evaluate(ctx context.Context, userKey string, agent *models.Agent) (Decision, error) {
	if agent == nil {
		return Decision{}, pkgerrors.New(pkgerrors.CodeValidation, "agent is required")
	}
	userKey = strings.TrimSpace(userKey)

	// anonymous callers skip plan evaluation entirely
	if userKey == "" && !agent.RequireSubscription {
		return Decision{
			Allowed:         true,
			SessionTokenCap: agent.SessionTokenCap,
			Warnings:        []Warning{},
		}, nil
	}

	var (
		warnings = []Warning{}
		blocked  []Warning
		best     *candidate
	)

	if userKey != "" {
		rows, err := s.assignments.Get(ctx, userKey, false)
		if err != nil {
			return Decision{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading assignments")
		}

		for _, row := range rows {
			base, err := s.plans.Get(ctx, row.SubscriptionSlug)
			if err != nil {
				return Decision{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading plan")
			}
			if base == nil {
				// deleted plan; the dangling assignment contributes nothing
				continue
			}

			overrides, err := plans.ParseOverrides(row.Overrides)
			if err != nil {
				lctx := s.logg.WithFields(ctx, map[string]any{"plan": row.SubscriptionSlug, "user_key": userKey})
				s.logg.Warn(lctx, "ignoring malformed assignment overrides")
				overrides = plans.Overrides{}
			}
			effective := overrides.Apply(*base)

			if !agentAllowed(effective, agent.Slug) {
				continue
			}

			used, err := s.usage.Summarize(ctx, row.SubscriptionSlug, userKey, effective.PeriodHours)
			if err != nil {
				return Decision{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "summarizing usage")
			}

			if reason, breached := firstBreach(effective, used); breached {
				warning := Warning{
					Slug:   row.SubscriptionSlug,
					Reason: reason,
					Usage:  used,
					Limits: effectiveLimits(effective),
				}
				if effective.BlockOnOverage {
					blocked = append(blocked, warning)
					continue
				}
				warnings = append(warnings, warning)
			}

			score := remainingScore(effective, used)
			if best == nil || score > best.score {
				best = &candidate{
					slug:  row.SubscriptionSlug,
					plan:  effective,
					used:  used,
					score: score,
				}
			}
		}
	}

	if best != nil {
		return Decision{
			Allowed:          true,
			SubscriptionSlug: best.slug,
			SessionTokenCap:  mergeCaps(agent.SessionTokenCap, best.plan.SessionTokenCap),
			Usage:            best.used,
			Warnings:         warnings,
		}, nil
	}

	if agent.RequireSubscription {
		return Decision{
			Allowed:     false,
			DenyCode:    DenyCodeSubscriptionRequired,
			DenyStatus:  http.StatusPaymentRequired,
			DenyMessage: "an active subscription is required to use this agent",
			Warnings:    append(warnings, blocked...),
		}, nil
	}

	return Decision{
		Allowed:         true,
		SessionTokenCap: agent.SessionTokenCap,
		Warnings:        warnings,
	}, nil
}

// agentAllowed checks the plan's agent allowlist; an empty list allows all.
func agentAllowed(plan models.Plan, agentSlug string) bool {
	if len(plan.AllowedAgents) == 0 {
		return true
	}
	for _, allowed := range plan.AllowedAgents {
		if allowed == agentSlug {
			return true
		}
	}
	return false
}

// firstBreach reports the highest-priority exhausted dimension. The check
// order fixes which reason gets reported; any breach disqualifies or warns.
func firstBreach(plan models.Plan, used usage.Summary) (enums.LimitDimension, bool) {
	if plan.LimitSessions > 0 && used.Sessions >= plan.LimitSessions {
		return enums.LimitDimensionSessions, true
	}
	if plan.LimitRealtimeTokens > 0 && used.TokensRealtime >= plan.LimitRealtimeTokens {
		return enums.LimitDimensionRealtimeTokens, true
	}
	if plan.LimitTextTokens > 0 && used.TokensText >= plan.LimitTextTokens {
		return enums.LimitDimensionTextTokens, true
	}
	return "", false
}

// remainingScore is the plan's bottleneck slack: the minimum remaining value
// across dimensions with a positive limit. A plan with no limits at all is
// effectively infinite and always preferred.
func remainingScore(plan models.Plan, used usage.Summary) int64 {
	score := int64(math.MaxInt64)
	if plan.LimitSessions > 0 {
		score = minInt64(score, plan.LimitSessions-used.Sessions)
	}
	if plan.LimitRealtimeTokens > 0 {
		score = minInt64(score, plan.LimitRealtimeTokens-used.TokensRealtime)
	}
	if plan.LimitTextTokens > 0 {
		score = minInt64(score, plan.LimitTextTokens-used.TokensText)
	}
	return score
}

// mergeCaps combines the agent and plan per-session caps: the smaller of the
// two when both are set, otherwise whichever is set, otherwise uncapped.
func mergeCaps(agentCap, planCap int64) int64 {
	switch {
	case agentCap > 0 && planCap > 0:
		return minInt64(agentCap, planCap)
	case agentCap > 0:
		return agentCap
	case planCap > 0:
		return planCap
	default:
		return 0
	}
}

func effectiveLimits(plan models.Plan) plans.Limits {
	return plans.Limits{
		RealtimeTokens: plan.LimitRealtimeTokens,
		TextTokens:     plan.LimitTextTokens,
		Sessions:       plan.LimitSessions,
	}
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
