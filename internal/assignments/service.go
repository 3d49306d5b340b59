package assignments

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agentos-labs/agentos-backend/pkg/db/models"
	pkgerrors "github.com/agentos-labs/agentos-backend/pkg/errors"
	"github.com/agentos-labs/agentos-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// usageReassigner lets MoveUser carry the usage ledger along with the
// assignments when an anonymous key merges into an account key.
type usageReassigner interface {
	ReassignUserInTx(ctx context.Context, tx *gorm.DB, oldKey, newKey string) error
}

// Service defines the user-subscription assignment surface.
type Service interface {
	Get(ctx context.Context, userKey string, includeExpired bool) ([]models.Assignment, error)
	Assign(ctx context.Context, userKey string, input AssignInput) error
	SetPlans(ctx context.Context, userKey string, inputs []AssignInput) error
	Remove(ctx context.Context, userKey, subscriptionSlug string) error
	EnsureUser(ctx context.Context, userKey string, meta UserMeta) error
	GetProfile(ctx context.Context, userKey string) (*models.UserProfile, error)
	ListProfiles(ctx context.Context, limit int) ([]models.UserProfile, error)
	MoveUser(ctx context.Context, oldKey, newKey string) error
	ClearExpired(ctx context.Context) (int64, error)
}

// ServiceParams groups dependencies for the assignment service.
type ServiceParams struct {
	Repo              Repository
	Usage             usageReassigner
	TransactionRunner txRunner
	Logger            *logger.Logger
}

type service struct {
	repo     Repository
	usage    usageReassigner
	txRunner txRunner
	logg     *logger.Logger
}

// NewService builds an assignment service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("assignment repo required")
	}
	if params.Usage == nil {
		return nil, fmt.Errorf("usage reassigner required")
	}
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     params.Repo,
		usage:    params.Usage,
		txRunner: params.TransactionRunner,
		logg:     params.Logger,
	}, nil
}

func (s *service) Get(ctx context.Context, userKey string, includeExpired bool) ([]models.Assignment, error) {
	userKey = strings.TrimSpace(userKey)
	if userKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user key is required")
	}
	return s.repo.ListByUser(ctx, userKey, includeExpired, time.Now())
}

// Assign grants a plan to a user. Re-assigning an already-held plan updates
// the existing row in place: overrides are replaced wholesale and the expiry
// is replaced, never merged.
func (s *service) Assign(ctx context.Context, userKey string, input AssignInput) error {
	userKey = strings.TrimSpace(userKey)
	if userKey == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "user key is required")
	}
	planSlug := strings.TrimSpace(input.SubscriptionSlug)
	if planSlug == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription slug is required")
	}

	row, err := buildAssignment(userKey, planSlug, input)
	if err != nil {
		return err
	}
	if err := s.repo.Upsert(ctx, row); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "saving assignment")
	}
	return nil
}

// SetPlans replaces the user's full plan set in one transaction: plans not in
// the new list are removed, the rest are upserted.
func (s *service) SetPlans(ctx context.Context, userKey string, inputs []AssignInput) error {
	userKey = strings.TrimSpace(userKey)
	if userKey == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "user key is required")
	}

	rows := make([]*models.Assignment, 0, len(inputs))
	for _, input := range inputs {
		planSlug := strings.TrimSpace(input.SubscriptionSlug)
		if planSlug == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "subscription slug is required")
		}
		row, err := buildAssignment(userKey, planSlug, input)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.DeleteByUser(ctx, userKey); err != nil {
			return err
		}
		for _, row := range rows {
			if err := repo.Upsert(ctx, row); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "replacing assignments")
	}
	return nil
}

func (s *service) Remove(ctx context.Context, userKey, subscriptionSlug string) error {
	userKey = strings.TrimSpace(userKey)
	subscriptionSlug = strings.TrimSpace(subscriptionSlug)
	if userKey == "" || subscriptionSlug == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "user key and subscription slug are required")
	}
	if err := s.repo.Delete(ctx, userKey, subscriptionSlug); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "removing assignment")
	}
	return nil
}

// EnsureUser creates the profile row if missing and fills in any provided
// fields. Empty meta fields never erase stored values.
func (s *service) EnsureUser(ctx context.Context, userKey string, meta UserMeta) error {
	userKey = strings.TrimSpace(userKey)
	if userKey == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "user key is required")
	}

	existing, err := s.repo.FindProfile(ctx, userKey)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading user profile")
	}

	profile := &models.UserProfile{UserKey: userKey}
	if existing != nil {
		profile = existing
	}
	if name := strings.TrimSpace(meta.Name); name != "" {
		profile.Name = name
	}
	if email := strings.TrimSpace(meta.Email); email != "" {
		profile.Email = email
	}
	if notes := strings.TrimSpace(meta.Notes); notes != "" {
		profile.Notes = notes
	}
	if meta.NativeUserID > 0 {
		profile.NativeUserID = meta.NativeUserID
	}

	if err := s.repo.SaveProfile(ctx, profile); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "saving user profile")
	}
	return nil
}

func (s *service) GetProfile(ctx context.Context, userKey string) (*models.UserProfile, error) {
	userKey = strings.TrimSpace(userKey)
	if userKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user key is required")
	}
	return s.repo.FindProfile(ctx, userKey)
}

func (s *service) ListProfiles(ctx context.Context, limit int) ([]models.UserProfile, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.ListProfiles(ctx, limit)
}

// MoveUser re-keys assignments, profile, and usage history from oldKey to
// newKey. Used when an anonymous visitor authenticates and their device key
// must merge into the account's stable key.
func (s *service) MoveUser(ctx context.Context, oldKey, newKey string) error {
	oldKey = strings.TrimSpace(oldKey)
	newKey = strings.TrimSpace(newKey)
	if oldKey == "" || newKey == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "both user keys are required")
	}
	if oldKey == newKey {
		return nil
	}

	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if err := repo.ReassignUser(ctx, oldKey, newKey); err != nil {
			return err
		}
		if err := s.moveProfile(ctx, repo, oldKey, newKey); err != nil {
			return err
		}
		return s.usage.ReassignUserInTx(ctx, tx, oldKey, newKey)
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "moving user")
	}

	ctx = s.logg.WithFields(ctx, map[string]any{"old_key": oldKey, "new_key": newKey})
	s.logg.Info(ctx, "user re-keyed")
	return nil
}

// ClearExpired prunes assignments whose expiry has passed. Idempotent.
func (s *service) ClearExpired(ctx context.Context) (int64, error) {
	removed, err := s.repo.DeleteExpired(ctx, time.Now())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clearing expired assignments")
	}
	return removed, nil
}

func (s *service) moveProfile(ctx context.Context, repo Repository, oldKey, newKey string) error {
	oldProfile, err := repo.FindProfile(ctx, oldKey)
	if err != nil {
		return err
	}
	if oldProfile == nil {
		return nil
	}

	target, err := repo.FindProfile(ctx, newKey)
	if err != nil {
		return err
	}
	if target == nil {
		target = &models.UserProfile{UserKey: newKey}
	}
	// fill gaps only; the account's own profile wins
	if target.Name == "" {
		target.Name = oldProfile.Name
	}
	if target.Email == "" {
		target.Email = oldProfile.Email
	}
	if target.Notes == "" {
		target.Notes = oldProfile.Notes
	}
	if target.NativeUserID == 0 {
		target.NativeUserID = oldProfile.NativeUserID
	}

	if err := repo.SaveProfile(ctx, target); err != nil {
		return err
	}
	return repo.DeleteProfile(ctx, oldKey)
}

func buildAssignment(userKey, planSlug string, input AssignInput) (*models.Assignment, error) {
	var overrides json.RawMessage
	if !input.Overrides.IsZero() {
		encoded, err := json.Marshal(input.Overrides)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "encoding overrides")
		}
		overrides = encoded
	}
	return &models.Assignment{
		ID:               uuid.New(),
		UserKey:          userKey,
		SubscriptionSlug: planSlug,
		AssignedAt:       time.Now(),
		ExpiresAt:        input.ExpiresAt,
		Overrides:        overrides,
	}, nil
}
