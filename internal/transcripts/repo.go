package transcripts

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agentos-labs/agentos-backend/pkg/db/models"
	"github.com/agentos-labs/agentos-backend/pkg/pagination"
)

// Repository manages persistence for saved transcripts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, transcript *models.Transcript) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Transcript, error)
	FindBySession(ctx context.Context, sessionID string) (*models.Transcript, error)
	List(ctx context.Context, filters ListFilters, params pagination.Params) ([]models.Transcript, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a transcript repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, transcript *models.Transcript) error {
	return r.db.WithContext(ctx).Create(transcript).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Transcript, error) {
	var transcript models.Transcript
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&transcript).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &transcript, nil
}

func (r *repository) FindBySession(ctx context.Context, sessionID string) (*models.Transcript, error) {
	var transcript models.Transcript
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		First(&transcript).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &transcript, nil
}

// List pages newest-first. The extra buffered row tells the service whether
// another page exists.
func (r *repository) List(ctx context.Context, filters ListFilters, params pagination.Params) ([]models.Transcript, error) {
	query := r.db.WithContext(ctx).Model(&models.Transcript{})

	if filters.PostID != 0 {
		query = query.Where("post_id = ?", filters.PostID)
	}
	if filters.AgentID != "" {
		query = query.Where("agent_id = ?", filters.AgentID)
	}
	if filters.UserKey != "" {
		query = query.Where("user_key = ?", filters.UserKey)
	}
	if filters.SubscriptionSlug != "" {
		query = query.Where("subscription_slug = ?", filters.SubscriptionSlug)
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var rows []models.Transcript
	if err := query.
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.Transcript{})
	return result.RowsAffected, result.Error
}
