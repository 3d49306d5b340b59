package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/agentos-labs/agentos-backend/api/responses"
	"github.com/agentos-labs/agentos-backend/api/validators"
	"github.com/agentos-labs/agentos-backend/internal/assignments"
	"github.com/agentos-labs/agentos-backend/internal/plans"
	"github.com/agentos-labs/agentos-backend/internal/usage"
	"github.com/agentos-labs/agentos-backend/pkg/db/models"
	pkgerrors "github.com/agentos-labs/agentos-backend/pkg/errors"
	"github.com/agentos-labs/agentos-backend/pkg/logger"
	"github.com/agentos-labs/agentos-backend/pkg/pagination"
)

// AdminUsers bundles the services behind the admin user surface.
type AdminUsers struct {
	Assignments assignments.Service
	Plans       plans.Service
	Usage       usage.Service
	Logger      *logger.Logger
}

type userDetailResponse struct {
	UserKey     string                   `json:"user_key"`
	Profile     *assignments.ViewProfile `json:"profile,omitempty"`
	Assignments []assignmentDetail       `json:"assignments"`
	Sessions    []sessionHistoryRow      `json:"sessions"`
}

type assignmentDetail struct {
	assignments.View
	Usage usage.Summary `json:"usage"`
}

type sessionHistoryRow struct {
	SessionID       string    `json:"session_id"`
	AgentID         string    `json:"agent_id"`
	PostID          int64     `json:"post_id"`
	TokensTotal     int64     `json:"tokens_total"`
	DurationSeconds int64     `json:"duration_seconds"`
	Status          string    `json:"status"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type setSubscriptionsRequest struct {
	Assignments []assignments.AssignInput `json:"assignments" validate:"required,dive"`
	Replace     bool                      `json:"replace"`
	Meta        *assignments.UserMeta     `json:"meta"`
}

type moveUserRequest struct {
	NewUserKey string `json:"new_user_key" validate:"required"`
}

// ListActiveUsers returns recently active user keys with aggregate usage.
func (c AdminUsers) ListActiveUsers(w http.ResponseWriter, r *http.Request) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		responses.WriteError(r.Context(), c.Logger, w, err)
		return
	}

	filters := usage.ListUsersFilters{
		AgentID:          strings.TrimSpace(r.URL.Query().Get("agent_id")),
		SubscriptionSlug: strings.TrimSpace(r.URL.Query().Get("subscription_slug")),
	}
	if hours, err := validators.ParseQueryInt(r, "active_hours", 0, 0, 24*365); err != nil {
		responses.WriteError(r.Context(), c.Logger, w, err)
		return
	} else if hours > 0 {
		since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
		filters.ActiveSince = &since
	}

	rows, err := c.Usage.ListUsers(r.Context(), limit, filters)
	if err != nil {
		responses.WriteError(r.Context(), c.Logger, w, err)
		return
	}
	responses.WriteSuccess(w, rows)
}

// GetUser returns the profile, assignments with live usage, and recent
// session history for one user key.
func (c AdminUsers) GetUser(w http.ResponseWriter, r *http.Request) {
	userKey := strings.TrimSpace(chi.URLParam(r, "userKey"))
	if userKey == "" {
		responses.WriteError(r.Context(), c.Logger, w, pkgerrors.New(pkgerrors.CodeValidation, "user key is required"))
		return
	}

	profile, err := c.Assignments.GetProfile(r.Context(), userKey)
	if err != nil {
		responses.WriteError(r.Context(), c.Logger, w, err)
		return
	}

	rows, err := c.Assignments.Get(r.Context(), userKey, true)
	if err != nil {
		responses.WriteError(r.Context(), c.Logger, w, err)
		return
	}

	now := time.Now().UTC()
	detail := userDetailResponse{
		UserKey:     userKey,
		Assignments: make([]assignmentDetail, 0, len(rows)),
	}
	if profile != nil {
		pv := assignments.ToProfileView(*profile)
		detail.Profile = &pv
	}

	for _, row := range rows {
		view := assignments.ToView(row, now)
		summary, err := c.summarize(r, row, view)
		if err != nil {
			responses.WriteError(r.Context(), c.Logger, w, err)
			return
		}
		detail.Assignments = append(detail.Assignments, assignmentDetail{View: view, Usage: summary})
	}

	history, err := c.Usage.ListForUser(r.Context(), userKey, pagination.DefaultLimit)
	if err != nil {
		responses.WriteError(r.Context(), c.Logger, w, err)
		return
	}
	detail.Sessions = make([]sessionHistoryRow, 0, len(history))
	for _, record := range history {
		detail.Sessions = append(detail.Sessions, sessionHistoryRow{
			SessionID:       record.SessionID,
			AgentID:         record.AgentID,
			PostID:          record.PostID,
			TokensTotal:     record.TokensTotal,
			DurationSeconds: record.DurationSeconds,
			Status:          record.Status.String(),
			UpdatedAt:       record.UpdatedAt,
		})
	}

	responses.WriteSuccess(w, detail)
}

// summarize computes live usage for one assignment over the plan's window,
// with overrides applied to the period.
func (c AdminUsers) summarize(r *http.Request, row models.Assignment, view assignments.View) (usage.Summary, error) {
	plan, err := c.Plans.Get(r.Context(), row.SubscriptionSlug)
	if err != nil {
		return usage.Summary{}, err
	}
	periodHours := 0
	if plan != nil {
		effective := view.Overrides.Apply(*plan)
		periodHours = effective.PeriodHours
	}
	return c.Usage.Summarize(r.Context(), row.SubscriptionSlug, row.UserKey, periodHours)
}

// SetSubscriptions assigns a set of plans, optionally replacing the user's
// current set wholesale.
func (c AdminUsers) SetSubscriptions(w http.ResponseWriter, r *http.Request) {
	userKey := strings.TrimSpace(chi.URLParam(r, "userKey"))
	if userKey == "" {
		responses.WriteError(r.Context(), c.Logger, w, pkgerrors.New(pkgerrors.CodeValidation, "user key is required"))
		return
	}

	var req setSubscriptionsRequest
	if err := validators.DecodeJSONBody(r, &req); err != nil {
		responses.WriteError(r.Context(), c.Logger, w, err)
		return
	}

	if req.Meta != nil {
		if err := c.Assignments.EnsureUser(r.Context(), userKey, *req.Meta); err != nil {
			responses.WriteError(r.Context(), c.Logger, w, err)
			return
		}
	}

	if req.Replace {
		if err := c.Assignments.SetPlans(r.Context(), userKey, req.Assignments); err != nil {
			responses.WriteError(r.Context(), c.Logger, w, err)
			return
		}
	} else {
		for _, input := range req.Assignments {
			if err := c.Assignments.Assign(r.Context(), userKey, input); err != nil {
				responses.WriteError(r.Context(), c.Logger, w, err)
				return
			}
		}
	}
	responses.WriteSuccess(w, map[string]any{"user_key": userKey, "assigned": len(req.Assignments)})
}

// RemoveSubscription unassigns one plan from the user.
func (c AdminUsers) RemoveSubscription(w http.ResponseWriter, r *http.Request) {
	userKey := strings.TrimSpace(chi.URLParam(r, "userKey"))
	slug := strings.TrimSpace(chi.URLParam(r, "slug"))
	if userKey == "" || slug == "" {
		responses.WriteError(r.Context(), c.Logger, w, pkgerrors.New(pkgerrors.CodeValidation, "user key and slug are required"))
		return
	}

	if err := c.Assignments.Remove(r.Context(), userKey, slug); err != nil {
		responses.WriteError(r.Context(), c.Logger, w, err)
		return
	}
	responses.WriteSuccess(w, map[string]string{"user_key": userKey, "slug": slug, "status": "removed"})
}

// MoveUser re-keys assignments, profile, and usage history onto a new key.
func (c AdminUsers) MoveUser(w http.ResponseWriter, r *http.Request) {
	userKey := strings.TrimSpace(chi.URLParam(r, "userKey"))
	if userKey == "" {
		responses.WriteError(r.Context(), c.Logger, w, pkgerrors.New(pkgerrors.CodeValidation, "user key is required"))
		return
	}

	var req moveUserRequest
	if err := validators.DecodeJSONBody(r, &req); err != nil {
		responses.WriteError(r.Context(), c.Logger, w, err)
		return
	}

	if err := c.Assignments.MoveUser(r.Context(), userKey, req.NewUserKey); err != nil {
		responses.WriteError(r.Context(), c.Logger, w, err)
		return
	}
	responses.WriteSuccess(w, map[string]string{"old_user_key": userKey, "new_user_key": req.NewUserKey})
}
