package assignments

import (
	"time"

	"github.com/agentos-labs/agentos-backend/internal/plans"
	"github.com/agentos-labs/agentos-backend/pkg/db/models"
)

// UserMeta carries optional profile fields for ensureUser. Empty fields leave
// the stored profile untouched.
type UserMeta struct {
	Name         string `json:"name"`
	Email        string `json:"email" validate:"omitempty,email"`
	Notes        string `json:"notes"`
	NativeUserID int64  `json:"native_user_id"`
}

// AssignInput captures one plan grant for a user.
type AssignInput struct {
	SubscriptionSlug string          `json:"subscription_slug" validate:"required"`
	Overrides        plans.Overrides `json:"overrides"`
	ExpiresAt        *time.Time      `json:"expires_at"`
}

// View is the admin-facing assignment shape.
type View struct {
	SubscriptionSlug string          `json:"subscription_slug"`
	AssignedAt       time.Time       `json:"assigned_at"`
	ExpiresAt        *time.Time      `json:"expires_at,omitempty"`
	Overrides        plans.Overrides `json:"overrides"`
	Expired          bool            `json:"expired"`
}

// ViewProfile is the admin-facing profile shape.
type ViewProfile struct {
	UserKey      string    `json:"user_key"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Notes        string    `json:"notes"`
	NativeUserID int64     `json:"native_user_id"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ToProfileView converts a stored profile to its API shape.
func ToProfileView(profile models.UserProfile) ViewProfile {
	return ViewProfile{
		UserKey:      profile.UserKey,
		Name:         profile.Name,
		Email:        profile.Email,
		Notes:        profile.Notes,
		NativeUserID: profile.NativeUserID,
		UpdatedAt:    profile.UpdatedAt,
	}
}

// ToView converts a model row to its API shape.
func ToView(assignment models.Assignment, now time.Time) View {
	overrides, err := plans.ParseOverrides(assignment.Overrides)
	if err != nil {
		overrides = plans.Overrides{}
	}
	expired := assignment.ExpiresAt != nil && !assignment.ExpiresAt.After(now)
	return View{
		SubscriptionSlug: assignment.SubscriptionSlug,
		AssignedAt:       assignment.AssignedAt,
		ExpiresAt:        assignment.ExpiresAt,
		Overrides:        overrides,
		Expired:          expired,
	}
}
