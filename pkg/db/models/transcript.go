package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Transcript stores a saved conversation together with the final token and
// duration totals, tagged with the subscription slug that was active so
// per-plan audits can cross-reference the usage ledger.
type Transcript struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey"`
	PostID           int64           `gorm:"column:post_id;not null;index"`
	AgentID          string          `gorm:"column:agent_id;not null;default:'';index"`
	SessionID        string          `gorm:"column:session_id;not null;index"`
	UserKey          string          `gorm:"column:user_key;default:'';index"`
	SubscriptionSlug string          `gorm:"column:subscription_slug;default:''"`
	Model            string          `gorm:"column:model;default:''"`
	Voice            string          `gorm:"column:voice;default:''"`
	UserEmail        string          `gorm:"column:user_email;default:''"`
	UserAgent        string          `gorm:"column:user_agent;default:''"`
	Body             json.RawMessage `gorm:"column:body;type:jsonb"`
	TokensRealtime   int64           `gorm:"column:tokens_realtime;not null;default:0"`
	TokensText       int64           `gorm:"column:tokens_text;not null;default:0"`
	TokensTotal      int64           `gorm:"column:tokens_total;not null;default:0"`
	DurationSeconds  int64           `gorm:"column:duration_seconds;not null;default:0"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
}
