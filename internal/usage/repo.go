package usage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/agentos-labs/agentos-backend/pkg/db/models"
	"github.com/agentos-labs/agentos-backend/pkg/enums"
)

// Repository manages persistence for usage ledger rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	UpsertStart(ctx context.Context, record *models.UsageRecord) error
	ApplyMonotonic(ctx context.Context, input UpdateInput) (int64, error)
	FindBySession(ctx context.Context, sessionID string) (*models.UsageRecord, error)
	Summarize(ctx context.Context, subscriptionSlug, userKey string, since time.Time) (Summary, error)
	ListUsers(ctx context.Context, limit int, filters ListUsersFilters) ([]UserActivity, error)
	ListForUser(ctx context.Context, userKey string, limit int) ([]models.UsageRecord, error)
	ReassignUser(ctx context.Context, oldKey, newKey string) error
	DeleteStalePending(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a usage repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// UpsertStart inserts the row for a new session, or tops up identity fields
// on an existing one. A duplicate start never erases counters and never
// regresses status: only blank fields get filled from the new report.
func (r *repository) UpsertStart(ctx context.Context, record *models.UsageRecord) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "session_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"user_key":          gorm.Expr("CASE WHEN usage_records.user_key = '' THEN excluded.user_key ELSE usage_records.user_key END"),
				"subscription_slug": gorm.Expr("CASE WHEN usage_records.subscription_slug = '' THEN excluded.subscription_slug ELSE usage_records.subscription_slug END"),
				"agent_id":          gorm.Expr("CASE WHEN usage_records.agent_id = '' THEN excluded.agent_id ELSE usage_records.agent_id END"),
				"post_id":           gorm.Expr("CASE WHEN usage_records.post_id = 0 THEN excluded.post_id ELSE usage_records.post_id END"),
				"metadata":          gorm.Expr("CASE WHEN usage_records.metadata IS NULL THEN excluded.metadata ELSE usage_records.metadata END"),
			}),
		}).
		Create(record).Error
}

// ApplyMonotonic runs the atomic read-modify-write for a usage report: each
// counter becomes max(stored, incoming) inside a single UPDATE so racing
// heartbeats cannot regress progress. Terminal rows keep their status.
// Returns the number of rows touched; zero means the session is unknown.
func (r *repository) ApplyMonotonic(ctx context.Context, input UpdateInput) (int64, error) {
	updates := map[string]interface{}{
		"tokens_realtime":  monotonicMax("tokens_realtime", input.TokensRealtime),
		"tokens_text":      monotonicMax("tokens_text", input.TokensText),
		"tokens_total":     monotonicMax("tokens_total", input.TokensTotal),
		"duration_seconds": monotonicMax("duration_seconds", input.DurationSeconds),
		"updated_at":       time.Now(),
	}
	if input.Status != "" {
		updates["status"] = gorm.Expr(
			"CASE WHEN status IN ('final','aborted') THEN status ELSE ? END", string(input.Status))
	}
	if input.UserKey != "" {
		updates["user_key"] = gorm.Expr(
			"CASE WHEN user_key = '' THEN ? ELSE user_key END", input.UserKey)
	}
	if input.SubscriptionSlug != "" {
		updates["subscription_slug"] = gorm.Expr(
			"CASE WHEN subscription_slug = '' THEN ? ELSE subscription_slug END", input.SubscriptionSlug)
	}
	if input.AgentID != "" {
		updates["agent_id"] = gorm.Expr(
			"CASE WHEN agent_id = '' THEN ? ELSE agent_id END", input.AgentID)
	}
	if input.PostID != 0 {
		updates["post_id"] = gorm.Expr(
			"CASE WHEN post_id = 0 THEN ? ELSE post_id END", input.PostID)
	}
	if len(input.Metadata) > 0 {
		updates["metadata"] = gorm.Expr(
			"CASE WHEN metadata IS NULL THEN ? ELSE metadata END", string(input.Metadata))
	}

	result := r.db.WithContext(ctx).
		Model(&models.UsageRecord{}).
		Where("session_id = ?", input.SessionID).
		Updates(updates)
	return result.RowsAffected, result.Error
}

func monotonicMax(column string, incoming int64) clause.Expr {
	return gorm.Expr(
		"CASE WHEN "+column+" > ? THEN "+column+" ELSE ? END", incoming, incoming)
}

func (r *repository) FindBySession(ctx context.Context, sessionID string) (*models.UsageRecord, error) {
	var record models.UsageRecord
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&record).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) Summarize(ctx context.Context, subscriptionSlug, userKey string, since time.Time) (Summary, error) {
	var summary Summary
	err := r.db.WithContext(ctx).
		Model(&models.UsageRecord{}).
		Select(
			"COALESCE(SUM(tokens_realtime), 0) AS tokens_realtime, "+
				"COALESCE(SUM(tokens_text), 0) AS tokens_text, "+
				"COALESCE(SUM(tokens_total), 0) AS tokens_total, "+
				"COUNT(*) AS sessions").
		Where("subscription_slug = ? AND user_key = ? AND updated_at >= ?", subscriptionSlug, userKey, since).
		Scan(&summary).Error
	return summary, err
}

// ListUsers aggregates per-user activity. Rows are folded in application code
// so timestamp handling stays identical across database drivers.
func (r *repository) ListUsers(ctx context.Context, limit int, filters ListUsersFilters) ([]UserActivity, error) {
	query := r.db.WithContext(ctx).
		Model(&models.UsageRecord{}).
		Select("user_key", "tokens_total", "updated_at").
		Where("user_key <> ''").
		Order("updated_at DESC")

	if filters.AgentID != "" {
		query = query.Where("agent_id = ?", filters.AgentID)
	}
	if filters.SubscriptionSlug != "" {
		query = query.Where("subscription_slug = ?", filters.SubscriptionSlug)
	}
	if filters.ActiveSince != nil {
		query = query.Where("updated_at >= ?", *filters.ActiveSince)
	}

	var records []models.UsageRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}

	byUser := map[string]*UserActivity{}
	ordered := make([]*UserActivity, 0)
	for _, record := range records {
		entry, ok := byUser[record.UserKey]
		if !ok {
			if len(ordered) >= limit {
				continue
			}
			entry = &UserActivity{
				UserKey:        record.UserKey,
				LastActivityAt: record.UpdatedAt,
			}
			byUser[record.UserKey] = entry
			ordered = append(ordered, entry)
		}
		entry.Sessions++
		entry.TokensTotal += record.TokensTotal
	}

	out := make([]UserActivity, 0, len(ordered))
	for _, entry := range ordered {
		out = append(out, *entry)
	}
	return out, nil
}

func (r *repository) ListForUser(ctx context.Context, userKey string, limit int) ([]models.UsageRecord, error) {
	var rows []models.UsageRecord
	if err := r.db.WithContext(ctx).
		Where("user_key = ?", userKey).
		Order("updated_at DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ReassignUser(ctx context.Context, oldKey, newKey string) error {
	return r.db.WithContext(ctx).
		Model(&models.UsageRecord{}).
		Where("user_key = ?", oldKey).
		Update("user_key", newKey).Error
}

// DeleteStalePending prunes abandoned session attempts that never progressed.
func (r *repository) DeleteStalePending(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", enums.SessionStatusPending, cutoff).
		Delete(&models.UsageRecord{})
	return result.RowsAffected, result.Error
}

// DeleteOlderThan prunes any ledger row last touched before the cutoff.
func (r *repository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("updated_at < ?", cutoff).
		Delete(&models.UsageRecord{})
	return result.RowsAffected, result.Error
}

func newRecordID() uuid.UUID {
	return uuid.New()
}
