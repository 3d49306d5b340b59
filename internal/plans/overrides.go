package plans

import (
	"encoding/json"

	"github.com/agentos-labs/agentos-backend/pkg/db/models"
)

// Overrides is a partial plan carried on an assignment. Nil fields leave the
// base plan value untouched.
type Overrides struct {
	AllowedAgents       *[]string `json:"allowed_agents,omitempty"`
	PeriodHours         *int      `json:"period_hours,omitempty"`
	LimitRealtimeTokens *int64    `json:"limit_realtime_tokens,omitempty"`
	LimitTextTokens     *int64    `json:"limit_text_tokens,omitempty"`
	LimitSessions       *int64    `json:"limit_sessions,omitempty"`
	SessionTokenCap     *int64    `json:"session_token_cap,omitempty"`
	BlockOnOverage      *bool     `json:"block_on_overage,omitempty"`
}

// ParseOverrides decodes the raw jsonb payload stored on an assignment.
// Empty payloads yield a zero Overrides that changes nothing.
func ParseOverrides(raw json.RawMessage) (Overrides, error) {
	var out Overrides
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return Overrides{}, err
	}
	return out, nil
}

// Apply layers the overrides on top of a base plan and returns the effective
// plan used for quota evaluation. Numeric fields keep their floors.
func (o Overrides) Apply(base models.Plan) models.Plan {
	effective := base
	if o.AllowedAgents != nil {
		effective.AllowedAgents = append(effective.AllowedAgents[:0:0], *o.AllowedAgents...)
	}
	if o.PeriodHours != nil && *o.PeriodHours >= 1 {
		effective.PeriodHours = *o.PeriodHours
	}
	if o.LimitRealtimeTokens != nil && *o.LimitRealtimeTokens >= 0 {
		effective.LimitRealtimeTokens = *o.LimitRealtimeTokens
	}
	if o.LimitTextTokens != nil && *o.LimitTextTokens >= 0 {
		effective.LimitTextTokens = *o.LimitTextTokens
	}
	if o.LimitSessions != nil && *o.LimitSessions >= 0 {
		effective.LimitSessions = *o.LimitSessions
	}
	if o.SessionTokenCap != nil && *o.SessionTokenCap >= 0 {
		effective.SessionTokenCap = *o.SessionTokenCap
	}
	if o.BlockOnOverage != nil {
		effective.BlockOnOverage = *o.BlockOnOverage
	}
	return effective
}

// IsZero reports whether the overrides change nothing.
func (o Overrides) IsZero() bool {
	return o.AllowedAgents == nil &&
		o.PeriodHours == nil &&
		o.LimitRealtimeTokens == nil &&
		o.LimitTextTokens == nil &&
		o.LimitSessions == nil &&
		o.SessionTokenCap == nil &&
		o.BlockOnOverage == nil
}
