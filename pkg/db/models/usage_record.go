package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/agentos-labs/agentos-backend/pkg/enums"
)

// UsageRecord is one usage ledger row per session attempt. Counters only
// move forward: concurrent or out-of-order reports never regress them.
type UsageRecord struct {
	ID               uuid.UUID           `gorm:"type:uuid;primaryKey"`
	SessionID        string              `gorm:"column:session_id;not null;unique"`
	UserKey          string              `gorm:"column:user_key;not null;default:'';index"`
	SubscriptionSlug string              `gorm:"column:subscription_slug;default:'';index"`
	AgentID          string              `gorm:"column:agent_id;not null;default:'';index"`
	PostID           int64               `gorm:"column:post_id;not null;default:0"`
	TokensRealtime   int64               `gorm:"column:tokens_realtime;not null;default:0"`
	TokensText       int64               `gorm:"column:tokens_text;not null;default:0"`
	TokensTotal      int64               `gorm:"column:tokens_total;not null;default:0"`
	DurationSeconds  int64               `gorm:"column:duration_seconds;not null;default:0"`
	Status           enums.SessionStatus `gorm:"column:status;not null;default:'pending'"`
	Metadata         json.RawMessage     `gorm:"column:metadata;type:jsonb"`
	RecordedAt       time.Time           `gorm:"column:recorded_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime;index"`
}
