package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Assignment binds a user key to a subscription plan. At most one row
// exists per (user_key, subscription_slug); re-assigning updates in place.
type Assignment struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey"`
	UserKey          string          `gorm:"column:user_key;not null;index;uniqueIndex:idx_assignments_user_plan"`
	SubscriptionSlug string          `gorm:"column:subscription_slug;not null;uniqueIndex:idx_assignments_user_plan"`
	AssignedAt       time.Time       `gorm:"column:assigned_at;not null"`
	ExpiresAt        *time.Time      `gorm:"column:expires_at"`
	Overrides        json.RawMessage `gorm:"column:overrides;type:jsonb"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
