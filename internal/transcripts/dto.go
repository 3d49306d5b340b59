package transcripts

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/agentos-labs/agentos-backend/pkg/db/models"
	"github.com/agentos-labs/agentos-backend/pkg/pricing"
)

// SaveInput is a finished conversation reported by the embed client.
type SaveInput struct {
	SessionID       string          `json:"session_id" validate:"required"`
	PostID          int64           `json:"post_id"`
	AgentID         string          `json:"agent_id"`
	UserKey         string          `json:"user_key"`
	Model           string          `json:"model"`
	Voice           string          `json:"voice"`
	UserEmail       string          `json:"user_email"`
	UserAgent       string          `json:"user_agent"`
	Body            json.RawMessage `json:"body"`
	TokensRealtime  int64           `json:"tokens_realtime"`
	TokensText      int64           `json:"tokens_text"`
	TokensTotal     int64           `json:"tokens_total"`
	DurationSeconds int64           `json:"duration_seconds"`
}

// ListFilters narrows the admin transcript listing.
type ListFilters struct {
	PostID           int64  `json:"post_id"`
	AgentID          string `json:"agent_id"`
	UserKey          string `json:"user_key"`
	SubscriptionSlug string `json:"subscription_slug"`
}

// View is the API shape of a stored transcript. EstimatedCost is a
// human-facing approximation derived from the model's published rates.
type View struct {
	ID               uuid.UUID       `json:"id"`
	SessionID        string          `json:"session_id"`
	PostID           int64           `json:"post_id"`
	AgentID          string          `json:"agent_id"`
	UserKey          string          `json:"user_key"`
	SubscriptionSlug string          `json:"subscription_slug"`
	Model            string          `json:"model"`
	Voice            string          `json:"voice"`
	UserEmail        string          `json:"user_email"`
	Body             json.RawMessage `json:"body,omitempty"`
	TokensRealtime   int64           `json:"tokens_realtime"`
	TokensText       int64           `json:"tokens_text"`
	TokensTotal      int64           `json:"tokens_total"`
	DurationSeconds  int64           `json:"duration_seconds"`
	EstimatedCost    string          `json:"estimated_cost"`
	CreatedAt        time.Time       `json:"created_at"`
}

// ListResult pairs a transcript page with the cursor for the next one.
type ListResult struct {
	Items      []View `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}

// ToView converts a stored transcript. Pass includeBody=false for list
// endpoints where shipping full conversation bodies would be wasteful.
func ToView(transcript models.Transcript, includeBody bool) View {
	view := View{
		ID:               transcript.ID,
		SessionID:        transcript.SessionID,
		PostID:           transcript.PostID,
		AgentID:          transcript.AgentID,
		UserKey:          transcript.UserKey,
		SubscriptionSlug: transcript.SubscriptionSlug,
		Model:            transcript.Model,
		Voice:            transcript.Voice,
		UserEmail:        transcript.UserEmail,
		TokensRealtime:   transcript.TokensRealtime,
		TokensText:       transcript.TokensText,
		TokensTotal:      transcript.TokensTotal,
		DurationSeconds:  transcript.DurationSeconds,
		EstimatedCost:    pricing.EstimateCost(transcript.Model, transcript.TokensRealtime, transcript.TokensText).String(),
		CreatedAt:        transcript.CreatedAt,
	}
	if includeBody {
		view.Body = transcript.Body
	}
	return view
}
