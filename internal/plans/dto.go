package plans

import (
	"github.com/agentos-labs/agentos-backend/pkg/db/models"
)

// Limits groups the three quota dimensions. Zero means unlimited.
type Limits struct {
	RealtimeTokens int64 `json:"realtime_tokens"`
	TextTokens     int64 `json:"text_tokens"`
	Sessions       int64 `json:"sessions"`
}

// UpsertInput carries admin-provided plan fields before sanitation.
type UpsertInput struct {
	Slug            string   `json:"slug"`
	Label           string   `json:"label" validate:"required"`
	Notes           string   `json:"notes"`
	AllowedAgents   []string `json:"allowed_agents"`
	PeriodHours     int      `json:"period_hours"`
	Limits          Limits   `json:"limits"`
	SessionTokenCap int64    `json:"session_token_cap"`
	BlockOnOverage  *bool    `json:"block_on_overage"`
}

// View is the admin-facing plan shape.
type View struct {
	Slug            string   `json:"slug"`
	Label           string   `json:"label"`
	Notes           string   `json:"notes"`
	AllowedAgents   []string `json:"allowed_agents"`
	PeriodHours     int      `json:"period_hours"`
	Limits          Limits   `json:"limits"`
	SessionTokenCap int64    `json:"session_token_cap"`
	BlockOnOverage  bool     `json:"block_on_overage"`
}

// ToView converts a model row to its API shape.
func ToView(plan models.Plan) View {
	allowed := make([]string, 0, len(plan.AllowedAgents))
	allowed = append(allowed, plan.AllowedAgents...)
	return View{
		Slug:          plan.Slug,
		Label:         plan.Label,
		Notes:         plan.Notes,
		AllowedAgents: allowed,
		PeriodHours:   plan.PeriodHours,
		Limits: Limits{
			RealtimeTokens: plan.LimitRealtimeTokens,
			TextTokens:     plan.LimitTextTokens,
			Sessions:       plan.LimitSessions,
		},
		SessionTokenCap: plan.SessionTokenCap,
		BlockOnOverage:  plan.BlockOnOverage,
	}
}
