package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/agentos-labs/agentos-backend/pkg/db/models"
	"github.com/agentos-labs/agentos-backend/pkg/enums"
	pkgerrors "github.com/agentos-labs/agentos-backend/pkg/errors"
	"github.com/agentos-labs/agentos-backend/pkg/logger"
)

// Service defines the usage ledger surface.
type Service interface {
	LogStart(ctx context.Context, input StartInput) error
	UpdateBySession(ctx context.Context, input UpdateInput) (*models.UsageRecord, error)
	Summarize(ctx context.Context, subscriptionSlug, userKey string, periodHours int) (Summary, error)
	GetBySession(ctx context.Context, sessionID string) (*models.UsageRecord, error)
	ListUsers(ctx context.Context, limit int, filters ListUsersFilters) ([]UserActivity, error)
	ListForUser(ctx context.Context, userKey string, limit int) ([]models.UsageRecord, error)
	ReassignUser(ctx context.Context, oldKey, newKey string) error
	ReassignUserInTx(ctx context.Context, tx *gorm.DB, oldKey, newKey string) error
	PruneStalePending(ctx context.Context, retention time.Duration) (int64, error)
	PruneOlderThan(ctx context.Context, retention time.Duration) (int64, error)
}

// ServiceParams groups dependencies for the usage service.
type ServiceParams struct {
	Repo   Repository
	Logger *logger.Logger
}

type service struct {
	repo Repository
	logg *logger.Logger
}

// NewService builds a usage service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("usage repo required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: params.Repo, logg: params.Logger}, nil
}

// LogStart opens a ledger row for the session. Safe to call repeatedly with
// the same session id.
func (s *service) LogStart(ctx context.Context, input StartInput) error {
	sessionID := strings.TrimSpace(input.SessionID)
	if sessionID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	status := input.Status
	if status == "" {
		status = enums.SessionStatusPending
	}
	if !status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid session status %q", status))
	}

	record := &models.UsageRecord{
		ID:               newRecordID(),
		SessionID:        sessionID,
		UserKey:          strings.TrimSpace(input.UserKey),
		SubscriptionSlug: strings.TrimSpace(input.SubscriptionSlug),
		AgentID:          strings.TrimSpace(input.AgentID),
		PostID:           input.PostID,
		Status:           status,
		Metadata:         input.Metadata,
	}
	if err := s.repo.UpsertStart(ctx, record); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "opening usage record")
	}
	return nil
}

// UpdateBySession applies a usage report with monotonic-max semantics and
// returns the accepted totals. A report for an unknown session implicitly
// creates a minimal row first: heartbeats can legitimately race session-start.
func (s *service) UpdateBySession(ctx context.Context, input UpdateInput) (*models.UsageRecord, error) {
	input.SessionID = strings.TrimSpace(input.SessionID)
	if input.SessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	if input.Status != "" && !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid session status %q", input.Status))
	}
	if len(input.Metadata) > 0 && !json.Valid(input.Metadata) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "metadata must be valid JSON")
	}
	input = clampCounters(input)

	affected, err := s.repo.ApplyMonotonic(ctx, input)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating usage record")
	}
	if affected == 0 {
		if err := s.LogStart(ctx, StartInput{
			SessionID:        input.SessionID,
			UserKey:          input.UserKey,
			SubscriptionSlug: input.SubscriptionSlug,
			AgentID:          input.AgentID,
			PostID:           input.PostID,
			Metadata:         input.Metadata,
		}); err != nil {
			return nil, err
		}
		if _, err := s.repo.ApplyMonotonic(ctx, input); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating usage record")
		}
	}

	record, err := s.repo.FindBySession(ctx, input.SessionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reloading usage record")
	}
	if record == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "usage record vanished after update")
	}
	return record, nil
}

// Summarize sums usage for (plan, user) over the trailing window. An empty
// plan slug means no quota is being tracked and always yields zeros.
func (s *service) Summarize(ctx context.Context, subscriptionSlug, userKey string, periodHours int) (Summary, error) {
	subscriptionSlug = strings.TrimSpace(subscriptionSlug)
	if subscriptionSlug == "" {
		return Summary{}, nil
	}
	if periodHours < 1 {
		periodHours = 1
	}
	since := time.Now().Add(-time.Duration(periodHours) * time.Hour)
	summary, err := s.repo.Summarize(ctx, subscriptionSlug, userKey, since)
	if err != nil {
		return Summary{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "summarizing usage")
	}
	return summary, nil
}

func (s *service) GetBySession(ctx context.Context, sessionID string) (*models.UsageRecord, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	return s.repo.FindBySession(ctx, sessionID)
}

func (s *service) ListUsers(ctx context.Context, limit int, filters ListUsersFilters) ([]UserActivity, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.ListUsers(ctx, limit, filters)
}

func (s *service) ListForUser(ctx context.Context, userKey string, limit int) ([]models.UsageRecord, error) {
	userKey = strings.TrimSpace(userKey)
	if userKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user key is required")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.ListForUser(ctx, userKey, limit)
}

func (s *service) ReassignUser(ctx context.Context, oldKey, newKey string) error {
	return s.ReassignUserInTx(ctx, nil, oldKey, newKey)
}

// ReassignUserInTx re-keys the ledger inside the caller's transaction so an
// assignment merge and its usage history move atomically. A nil tx runs on
// the service's own connection.
func (s *service) ReassignUserInTx(ctx context.Context, tx *gorm.DB, oldKey, newKey string) error {
	oldKey = strings.TrimSpace(oldKey)
	newKey = strings.TrimSpace(newKey)
	if oldKey == "" || newKey == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "both user keys are required")
	}
	if err := s.repo.WithTx(tx).ReassignUser(ctx, oldKey, newKey); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reassigning usage records")
	}
	return nil
}

// PruneStalePending removes abandoned attempts. A pending row keeps counting
// against the sessions dimension until this sweep deletes it.
func (s *service) PruneStalePending(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	removed, err := s.repo.DeleteStalePending(ctx, time.Now().Add(-retention))
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "pruning stale pending records")
	}
	return removed, nil
}

// PruneOlderThan enforces full ledger retention when configured.
func (s *service) PruneOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	removed, err := s.repo.DeleteOlderThan(ctx, time.Now().Add(-retention))
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "pruning aged usage records")
	}
	return removed, nil
}

// clampCounters floors negatives to zero and raises the total to at least the
// sum of the per-channel counters so a client cannot under-report the total.
func clampCounters(input UpdateInput) UpdateInput {
	if input.TokensRealtime < 0 {
		input.TokensRealtime = 0
	}
	if input.TokensText < 0 {
		input.TokensText = 0
	}
	if input.TokensTotal < 0 {
		input.TokensTotal = 0
	}
	if input.DurationSeconds < 0 {
		input.DurationSeconds = 0
	}
	if sum := input.TokensRealtime + input.TokensText; input.TokensTotal < sum {
		input.TokensTotal = sum
	}
	return input
}
