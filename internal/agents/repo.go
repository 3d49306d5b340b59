package agents

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/agentos-labs/agentos-backend/pkg/db/models"
)

// Repository manages persistence for agent definitions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	List(ctx context.Context) ([]models.Agent, error)
	FindBySlug(ctx context.Context, slug string) (*models.Agent, error)
	Upsert(ctx context.Context, agent *models.Agent) error
	Delete(ctx context.Context, slug string) error
	Slugs(ctx context.Context) ([]string, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an agent repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) List(ctx context.Context) ([]models.Agent, error) {
	var agents []models.Agent
	if err := r.db.WithContext(ctx).
		Order("slug ASC").
		Find(&agents).Error; err != nil {
		return nil, err
	}
	return agents, nil
}

func (r *repository) FindBySlug(ctx context.Context, slug string) (*models.Agent, error) {
	var agent models.Agent
	err := r.db.WithContext(ctx).
		Where("slug = ?", slug).
		First(&agent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &agent, nil
}

func (r *repository) Upsert(ctx context.Context, agent *models.Agent) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "slug"}},
			UpdateAll: true,
		}).
		Create(agent).Error
}

func (r *repository) Delete(ctx context.Context, slug string) error {
	return r.db.WithContext(ctx).
		Where("slug = ?", slug).
		Delete(&models.Agent{}).Error
}

func (r *repository) Slugs(ctx context.Context) ([]string, error) {
	var slugs []string
	if err := r.db.WithContext(ctx).
		Model(&models.Agent{}).
		Order("slug ASC").
		Pluck("slug", &slugs).Error; err != nil {
		return nil, err
	}
	return slugs, nil
}
