package models

import (
	"time"

	"github.com/lib/pq"

	"github.com/agentos-labs/agentos-backend/pkg/enums"
)

// Agent is a configured assistant persona bound to a set of post types.
// The limiter only reads Slug, RequireSubscription and SessionTokenCap;
// the remaining fields drive the upstream session request.
type Agent struct {
	Slug                string          `gorm:"column:slug;primaryKey"`
	Label               string          `gorm:"column:label;not null"`
	Mode                enums.AgentMode `gorm:"column:mode;not null;default:'voice'"`
	Model               string          `gorm:"column:model;not null"`
	Voice               string          `gorm:"column:voice;not null"`
	BasePrompt          string          `gorm:"column:base_prompt;default:''"`
	PostTypes           pq.StringArray  `gorm:"column:post_types;type:text[];default:ARRAY[]::text[]"`
	ShowTranscript      bool            `gorm:"column:show_transcript;not null;default:true"`
	RequireSubscription bool            `gorm:"column:require_subscription;not null;default:false"`
	SessionTokenCap     int64           `gorm:"column:session_token_cap;not null;default:0"`
	CreatedAt           time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
