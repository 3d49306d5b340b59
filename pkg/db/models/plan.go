package models

import (
	"time"

	"github.com/lib/pq"
)

// Plan is a named quota policy that assignments reference by slug.
// Zero limits mean unlimited for that dimension.
type Plan struct {
	Slug                string         `gorm:"column:slug;primaryKey"`
	Label               string         `gorm:"column:label;not null"`
	Notes               string         `gorm:"column:notes;default:''"`
	AllowedAgents       pq.StringArray `gorm:"column:allowed_agents;type:text[];default:ARRAY[]::text[]"`
	PeriodHours         int            `gorm:"column:period_hours;not null;default:24"`
	LimitRealtimeTokens int64          `gorm:"column:limit_realtime_tokens;not null;default:0"`
	LimitTextTokens     int64          `gorm:"column:limit_text_tokens;not null;default:0"`
	LimitSessions       int64          `gorm:"column:limit_sessions;not null;default:0"`
	SessionTokenCap     int64          `gorm:"column:session_token_cap;not null;default:0"`
	BlockOnOverage      bool           `gorm:"column:block_on_overage;not null;default:true"`
	CreatedAt           time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
