package sessions

import (
	"github.com/agentos-labs/agentos-backend/internal/limiter"
	"github.com/agentos-labs/agentos-backend/internal/usage"
)

// StartInput identifies the target agent and caller for a new session.
type StartInput struct {
	AgentID   string `json:"agent_id" validate:"required"`
	PostID    int64  `json:"post_id"`
	UserKey   string `json:"user_key"`
	SessionID string `json:"session_id"`
}

// StartResult is the approval envelope handed back to the client.
type StartResult struct {
	SessionID        string            `json:"session_id"`
	ClientSecret     string            `json:"client_secret"`
	ExpiresAt        int64             `json:"expires_at"`
	Model            string            `json:"model"`
	Voice            string            `json:"voice"`
	SubscriptionSlug string            `json:"subscription_slug"`
	SessionTokenCap  int64             `json:"session_token_cap"`
	Usage            usage.Summary     `json:"usage"`
	Warnings         []limiter.Warning `json:"warnings"`
}

// HeartbeatResult echoes the accepted (post-monotonic-merge) totals.
type HeartbeatResult struct {
	SessionID       string `json:"session_id"`
	TokensRealtime  int64  `json:"tokens_realtime"`
	TokensText      int64  `json:"tokens_text"`
	TokensTotal     int64  `json:"tokens_total"`
	DurationSeconds int64  `json:"duration_seconds"`
	Status          string `json:"status"`
}
