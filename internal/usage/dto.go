package usage

import (
	"encoding/json"
	"time"

	"github.com/agentos-labs/agentos-backend/pkg/enums"
)

// StartInput opens (or tops up) a ledger row for a session attempt.
type StartInput struct {
	SessionID        string              `json:"session_id" validate:"required"`
	UserKey          string              `json:"user_key"`
	SubscriptionSlug string              `json:"subscription_slug"`
	AgentID          string              `json:"agent_id"`
	PostID           int64               `json:"post_id"`
	Status           enums.SessionStatus `json:"status"`
	Metadata         json.RawMessage     `json:"metadata"`
}

// UpdateInput carries a client usage report. Counters are applied with
// monotonic-max semantics; identity fields only fill gaps.
type UpdateInput struct {
	SessionID        string              `json:"session_id" validate:"required"`
	UserKey          string              `json:"user_key"`
	SubscriptionSlug string              `json:"subscription_slug"`
	AgentID          string              `json:"agent_id"`
	PostID           int64               `json:"post_id"`
	TokensRealtime   int64               `json:"tokens_realtime"`
	TokensText       int64               `json:"tokens_text"`
	TokensTotal      int64               `json:"tokens_total"`
	DurationSeconds  int64               `json:"duration_seconds"`
	Status           enums.SessionStatus `json:"status"`
	Metadata         json.RawMessage     `json:"metadata"`
}

// Summary aggregates a user's consumption under one plan over a window.
type Summary struct {
	TokensRealtime int64 `json:"tokens_realtime"`
	TokensText     int64 `json:"tokens_text"`
	TokensTotal    int64 `json:"tokens_total"`
	Sessions       int64 `json:"sessions"`
}

// UserActivity is one row of the admin "recently active users" listing.
type UserActivity struct {
	UserKey        string    `json:"user_key"`
	Sessions       int64     `json:"sessions"`
	TokensTotal    int64     `json:"tokens_total"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// ListUsersFilters narrows the admin usage listing.
type ListUsersFilters struct {
	AgentID          string     `json:"agent_id"`
	SubscriptionSlug string     `json:"subscription_slug"`
	ActiveSince      *time.Time `json:"active_since"`
}
