package plans

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/agentos-labs/agentos-backend/pkg/db/models"
)

// Repository manages persistence for subscription plans.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	List(ctx context.Context) ([]models.Plan, error)
	FindBySlug(ctx context.Context, slug string) (*models.Plan, error)
	FindBySlugs(ctx context.Context, slugs []string) ([]models.Plan, error)
	Upsert(ctx context.Context, plan *models.Plan) error
	Delete(ctx context.Context, slug string) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a plan repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) List(ctx context.Context) ([]models.Plan, error) {
	var plans []models.Plan
	if err := r.db.WithContext(ctx).
		Order("slug ASC").
		Find(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}

func (r *repository) FindBySlug(ctx context.Context, slug string) (*models.Plan, error) {
	var plan models.Plan
	err := r.db.WithContext(ctx).
		Where("slug = ?", slug).
		First(&plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *repository) FindBySlugs(ctx context.Context, slugs []string) ([]models.Plan, error) {
	if len(slugs) == 0 {
		return nil, nil
	}
	var plans []models.Plan
	if err := r.db.WithContext(ctx).
		Where("slug IN ?", slugs).
		Find(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}

func (r *repository) Upsert(ctx context.Context, plan *models.Plan) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "slug"}},
			UpdateAll: true,
		}).
		Create(plan).Error
}

func (r *repository) Delete(ctx context.Context, slug string) error {
	return r.db.WithContext(ctx).
		Where("slug = ?", slug).
		Delete(&models.Plan{}).Error
}
