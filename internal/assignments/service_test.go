package assignments

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/agentos-labs/agentos-backend/internal/plans"
	"github.com/agentos-labs/agentos-backend/pkg/db/models"
	"github.com/agentos-labs/agentos-backend/pkg/logger"
)

func setupAssignmentsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	assignments := `
CREATE TABLE IF NOT EXISTS assignments (
  id TEXT PRIMARY KEY,
  user_key TEXT NOT NULL,
  subscription_slug TEXT NOT NULL,
  assigned_at DATETIME NOT NULL,
  expires_at DATETIME,
  overrides TEXT,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (user_key, subscription_slug)
);`
	profiles := `
CREATE TABLE IF NOT EXISTS user_profiles (
  user_key TEXT PRIMARY KEY,
  name TEXT NOT NULL DEFAULT '',
  email TEXT NOT NULL DEFAULT '',
  notes TEXT NOT NULL DEFAULT '',
  native_user_id INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(assignments).Error)
	require.NoError(t, db.Exec(profiles).Error)
	return db
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type usageReassignStub struct {
	calls [][2]string
	txs   []*gorm.DB
}

func (u *usageReassignStub) ReassignUserInTx(_ context.Context, tx *gorm.DB, oldKey, newKey string) error {
	u.calls = append(u.calls, [2]string{oldKey, newKey})
	u.txs = append(u.txs, tx)
	return nil
}

func newAssignmentsService(t *testing.T, db *gorm.DB) (Service, *usageReassignStub) {
	t.Helper()
	stub := &usageReassignStub{}
	svc, err := NewService(ServiceParams{
		Repo:              NewRepository(db),
		Usage:             stub,
		TransactionRunner: gormTxRunner{db: db},
		Logger:            logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled}),
	})
	require.NoError(t, err)
	return svc, stub
}

func TestAssignUpsertsWithoutDuplicating(t *testing.T) {
	db := setupAssignmentsTestDB(t)
	svc, _ := newAssignmentsService(t, db)
	ctx := context.Background()

	sessions := int64(5)
	require.NoError(t, svc.Assign(ctx, "user-upsert", AssignInput{
		SubscriptionSlug: "starter",
		Overrides:        plans.Overrides{LimitSessions: &sessions},
	}))

	// re-assign replaces overrides wholesale and sets an expiry
	expires := time.Now().Add(48 * time.Hour)
	require.NoError(t, svc.Assign(ctx, "user-upsert", AssignInput{
		SubscriptionSlug: "starter",
		ExpiresAt:        &expires,
	}))

	rows, err := svc.Get(ctx, "user-upsert", true)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.NotNil(t, rows[0].ExpiresAt)

	overrides, err := plans.ParseOverrides(rows[0].Overrides)
	require.NoError(t, err)
	assert.True(t, overrides.IsZero())
}

func TestGetExcludesExpiredByDefault(t *testing.T) {
	db := setupAssignmentsTestDB(t)
	svc, _ := newAssignmentsService(t, db)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	require.NoError(t, svc.Assign(ctx, "user-expiry", AssignInput{SubscriptionSlug: "lapsed", ExpiresAt: &past}))
	require.NoError(t, svc.Assign(ctx, "user-expiry", AssignInput{SubscriptionSlug: "active"}))

	active, err := svc.Get(ctx, "user-expiry", false)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "active", active[0].SubscriptionSlug)

	all, err := svc.Get(ctx, "user-expiry", true)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSetPlansReplacesWholesale(t *testing.T) {
	db := setupAssignmentsTestDB(t)
	svc, _ := newAssignmentsService(t, db)
	ctx := context.Background()

	require.NoError(t, svc.Assign(ctx, "user-replace", AssignInput{SubscriptionSlug: "old-a"}))
	require.NoError(t, svc.Assign(ctx, "user-replace", AssignInput{SubscriptionSlug: "old-b"}))

	require.NoError(t, svc.SetPlans(ctx, "user-replace", []AssignInput{
		{SubscriptionSlug: "new-a"},
		{SubscriptionSlug: "old-b"},
	}))

	rows, err := svc.Get(ctx, "user-replace", true)
	require.NoError(t, err)
	slugs := make([]string, 0, len(rows))
	for _, row := range rows {
		slugs = append(slugs, row.SubscriptionSlug)
	}
	assert.ElementsMatch(t, []string{"new-a", "old-b"}, slugs)
}

func TestEnsureUserMergesWithoutErasing(t *testing.T) {
	db := setupAssignmentsTestDB(t)
	svc, _ := newAssignmentsService(t, db)
	ctx := context.Background()

	require.NoError(t, svc.EnsureUser(ctx, "user-meta", UserMeta{Name: "Ada", Email: "ada@example.com"}))
	require.NoError(t, svc.EnsureUser(ctx, "user-meta", UserMeta{Notes: "vip"}))

	profile, err := svc.GetProfile(ctx, "user-meta")
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, "Ada", profile.Name)
	assert.Equal(t, "ada@example.com", profile.Email)
	assert.Equal(t, "vip", profile.Notes)
}

func TestMoveUserMergesAssignmentsAndProfile(t *testing.T) {
	db := setupAssignmentsTestDB(t)
	svc, stub := newAssignmentsService(t, db)
	ctx := context.Background()

	require.NoError(t, svc.Assign(ctx, "anon-123", AssignInput{SubscriptionSlug: "trial"}))
	require.NoError(t, svc.Assign(ctx, "anon-123", AssignInput{SubscriptionSlug: "shared-plan"}))
	require.NoError(t, svc.EnsureUser(ctx, "anon-123", UserMeta{Name: "Anon Ada", Notes: "from device"}))

	require.NoError(t, svc.Assign(ctx, "acct-9", AssignInput{SubscriptionSlug: "shared-plan"}))
	require.NoError(t, svc.EnsureUser(ctx, "acct-9", UserMeta{Name: "Ada Real"}))

	require.NoError(t, svc.MoveUser(ctx, "anon-123", "acct-9"))

	oldRows, err := svc.Get(ctx, "anon-123", true)
	require.NoError(t, err)
	assert.Empty(t, oldRows)

	newRows, err := svc.Get(ctx, "acct-9", true)
	require.NoError(t, err)
	slugs := make([]string, 0, len(newRows))
	for _, row := range newRows {
		slugs = append(slugs, row.SubscriptionSlug)
	}
	assert.ElementsMatch(t, []string{"trial", "shared-plan"}, slugs)

	profile, err := svc.GetProfile(ctx, "acct-9")
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, "Ada Real", profile.Name)
	assert.Equal(t, "from device", profile.Notes)

	oldProfile, err := svc.GetProfile(ctx, "anon-123")
	require.NoError(t, err)
	assert.Nil(t, oldProfile)

	require.Len(t, stub.calls, 1)
	assert.Equal(t, [2]string{"anon-123", "acct-9"}, stub.calls[0])
	// the ledger re-key must run inside the same transaction as the merge
	require.NotNil(t, stub.txs[0])
}

func TestClearExpiredIsIdempotent(t *testing.T) {
	db := setupAssignmentsTestDB(t)
	svc, _ := newAssignmentsService(t, db)
	ctx := context.Background()

	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, svc.Assign(ctx, "user-sweep", AssignInput{SubscriptionSlug: "stale-1", ExpiresAt: &past}))
	require.NoError(t, svc.Assign(ctx, "user-sweep", AssignInput{SubscriptionSlug: "stale-2", ExpiresAt: &past}))
	require.NoError(t, svc.Assign(ctx, "user-sweep", AssignInput{SubscriptionSlug: "keeper"}))

	removed, err := svc.ClearExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	removed, err = svc.ClearExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), removed)

	var count int64
	require.NoError(t, db.Model(&models.Assignment{}).Where("user_key = ?", "user-sweep").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
