package assignments

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/agentos-labs/agentos-backend/pkg/db/models"
)

// Repository manages persistence for plan assignments and user profiles.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListByUser(ctx context.Context, userKey string, includeExpired bool, now time.Time) ([]models.Assignment, error)
	Upsert(ctx context.Context, assignment *models.Assignment) error
	Delete(ctx context.Context, userKey, subscriptionSlug string) error
	DeleteByUser(ctx context.Context, userKey string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	ReassignUser(ctx context.Context, oldKey, newKey string) error
	FindProfile(ctx context.Context, userKey string) (*models.UserProfile, error)
	SaveProfile(ctx context.Context, profile *models.UserProfile) error
	DeleteProfile(ctx context.Context, userKey string) error
	ListProfiles(ctx context.Context, limit int) ([]models.UserProfile, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an assignment repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ListByUser(ctx context.Context, userKey string, includeExpired bool, now time.Time) ([]models.Assignment, error) {
	query := r.db.WithContext(ctx).
		Where("user_key = ?", userKey).
		Order("assigned_at ASC, created_at ASC")
	if !includeExpired {
		query = query.Where("expires_at IS NULL OR expires_at > ?", now)
	}
	var rows []models.Assignment
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Upsert(ctx context.Context, assignment *models.Assignment) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_key"}, {Name: "subscription_slug"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"assigned_at", "expires_at", "overrides", "updated_at",
			}),
		}).
		Create(assignment).Error
}

func (r *repository) Delete(ctx context.Context, userKey, subscriptionSlug string) error {
	return r.db.WithContext(ctx).
		Where("user_key = ? AND subscription_slug = ?", userKey, subscriptionSlug).
		Delete(&models.Assignment{}).Error
}

func (r *repository) DeleteByUser(ctx context.Context, userKey string) error {
	return r.db.WithContext(ctx).
		Where("user_key = ?", userKey).
		Delete(&models.Assignment{}).Error
}

func (r *repository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", now).
		Delete(&models.Assignment{})
	return result.RowsAffected, result.Error
}

// ReassignUser re-keys assignment rows from oldKey to newKey. Rows whose plan
// already exists under newKey are dropped instead of duplicated.
func (r *repository) ReassignUser(ctx context.Context, oldKey, newKey string) error {
	db := r.db.WithContext(ctx)

	var taken []string
	if err := db.Model(&models.Assignment{}).
		Where("user_key = ?", newKey).
		Pluck("subscription_slug", &taken).Error; err != nil {
		return err
	}

	if len(taken) > 0 {
		if err := db.
			Where("user_key = ? AND subscription_slug IN ?", oldKey, taken).
			Delete(&models.Assignment{}).Error; err != nil {
			return err
		}
	}

	return db.Model(&models.Assignment{}).
		Where("user_key = ?", oldKey).
		Update("user_key", newKey).Error
}

func (r *repository) FindProfile(ctx context.Context, userKey string) (*models.UserProfile, error) {
	var profile models.UserProfile
	err := r.db.WithContext(ctx).
		Where("user_key = ?", userKey).
		First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *repository) SaveProfile(ctx context.Context, profile *models.UserProfile) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_key"}},
			UpdateAll: true,
		}).
		Create(profile).Error
}

func (r *repository) DeleteProfile(ctx context.Context, userKey string) error {
	return r.db.WithContext(ctx).
		Where("user_key = ?", userKey).
		Delete(&models.UserProfile{}).Error
}

func (r *repository) ListProfiles(ctx context.Context, limit int) ([]models.UserProfile, error) {
	var profiles []models.UserProfile
	if err := r.db.WithContext(ctx).
		Order("updated_at DESC").
		Limit(limit).
		Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}
