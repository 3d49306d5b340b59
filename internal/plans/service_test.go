package plans

import (
	"context"
	"testing"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/agentos-labs/agentos-backend/pkg/db/models"
	"github.com/agentos-labs/agentos-backend/pkg/logger"
)

func setupPlansTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	plansTable := `
CREATE TABLE IF NOT EXISTS plans (
  slug TEXT PRIMARY KEY,
  label TEXT NOT NULL,
  notes TEXT NOT NULL DEFAULT '',
  allowed_agents TEXT NOT NULL DEFAULT '{}',
  period_hours INTEGER NOT NULL DEFAULT 24,
  limit_realtime_tokens INTEGER NOT NULL DEFAULT 0,
  limit_text_tokens INTEGER NOT NULL DEFAULT 0,
  limit_sessions INTEGER NOT NULL DEFAULT 0,
  session_token_cap INTEGER NOT NULL DEFAULT 0,
  block_on_overage INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(plansTable).Error)
	return db
}

type staticCatalog struct {
	slugs []string
}

func (c staticCatalog) KnownSlugs(context.Context) ([]string, error) {
	return c.slugs, nil
}

func newPlansService(t *testing.T, db *gorm.DB, knownAgents ...string) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:   NewRepository(db),
		Agents: staticCatalog{slugs: knownAgents},
		Logger: logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled}),
	})
	require.NoError(t, err)
	return svc
}

func TestPlanUpsertClampsAndIntersectsAgents(t *testing.T) {
	db := setupPlansTestDB(t)
	svc := newPlansService(t, db, "docs-agent", "sales-agent")
	ctx := context.Background()

	gotSlug, err := svc.Upsert(ctx, UpsertInput{
		Label:       "Starter Tier",
		PeriodHours: 0,
		Limits: Limits{
			RealtimeTokens: -5,
			TextTokens:     2000,
			Sessions:       3,
		},
		SessionTokenCap: -1,
		AllowedAgents:   []string{"docs-agent", "ghost-agent", "docs-agent"},
	}, "")
	require.NoError(t, err)
	assert.Equal(t, "starter-tier", gotSlug)

	plan, err := svc.Get(ctx, gotSlug)
	require.NoError(t, err)
	require.NotNil(t, plan)
	assert.Equal(t, 1, plan.PeriodHours)
	assert.Equal(t, int64(0), plan.LimitRealtimeTokens)
	assert.Equal(t, int64(2000), plan.LimitTextTokens)
	assert.Equal(t, int64(3), plan.LimitSessions)
	assert.Equal(t, int64(0), plan.SessionTokenCap)
	assert.True(t, plan.BlockOnOverage)
	assert.Equal(t, pq.StringArray{"docs-agent"}, plan.AllowedAgents)
}

func TestPlanUpsertSlugCollisionAndRename(t *testing.T) {
	db := setupPlansTestDB(t)
	svc := newPlansService(t, db)
	ctx := context.Background()

	first, err := svc.Upsert(ctx, UpsertInput{Label: "Collide Plan"}, "")
	require.NoError(t, err)
	second, err := svc.Upsert(ctx, UpsertInput{Label: "Collide Plan"}, "")
	require.NoError(t, err)
	assert.Equal(t, "collide-plan", first)
	assert.Equal(t, "collide-plan-1", second)

	renamed, err := svc.Upsert(ctx, UpsertInput{Slug: "collide-renamed", Label: "Collide Plan"}, first)
	require.NoError(t, err)
	assert.Equal(t, "collide-renamed", renamed)

	old, err := svc.Get(ctx, first)
	require.NoError(t, err)
	assert.Nil(t, old)

	var count int64
	require.NoError(t, db.Model(&models.Plan{}).Where("slug LIKE ?", "collide%").Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestPlanDeleteLeavesNothingBehind(t *testing.T) {
	db := setupPlansTestDB(t)
	svc := newPlansService(t, db)
	ctx := context.Background()

	blockOff := false
	slugName, err := svc.Upsert(ctx, UpsertInput{
		Label:          "Ephemeral",
		BlockOnOverage: &blockOff,
	}, "")
	require.NoError(t, err)

	plan, err := svc.Get(ctx, slugName)
	require.NoError(t, err)
	require.NotNil(t, plan)
	assert.False(t, plan.BlockOnOverage)

	require.NoError(t, svc.Delete(ctx, slugName))
	gone, err := svc.Get(ctx, slugName)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestOverridesApply(t *testing.T) {
	base := models.Plan{
		Slug:                "base",
		PeriodHours:         24,
		LimitRealtimeTokens: 1000,
		LimitTextTokens:     500,
		LimitSessions:       10,
		SessionTokenCap:     2000,
		BlockOnOverage:      true,
	}

	hours := 12
	realtime := int64(4000)
	block := false
	agents := []string{"special-agent"}
	effective := Overrides{
		PeriodHours:         &hours,
		LimitRealtimeTokens: &realtime,
		BlockOnOverage:      &block,
		AllowedAgents:       &agents,
	}.Apply(base)

	assert.Equal(t, 12, effective.PeriodHours)
	assert.Equal(t, int64(4000), effective.LimitRealtimeTokens)
	assert.Equal(t, int64(500), effective.LimitTextTokens)
	assert.False(t, effective.BlockOnOverage)
	assert.Equal(t, pq.StringArray{"special-agent"}, effective.AllowedAgents)

	// negative override values keep the base
	bad := int64(-1)
	unchanged := Overrides{LimitSessions: &bad}.Apply(base)
	assert.Equal(t, int64(10), unchanged.LimitSessions)
}

func TestParseOverrides(t *testing.T) {
	parsed, err := ParseOverrides([]byte(`{"limit_sessions":5,"block_on_overage":false}`))
	require.NoError(t, err)
	require.NotNil(t, parsed.LimitSessions)
	assert.Equal(t, int64(5), *parsed.LimitSessions)
	require.NotNil(t, parsed.BlockOnOverage)
	assert.False(t, *parsed.BlockOnOverage)

	empty, err := ParseOverrides(nil)
	require.NoError(t, err)
	assert.True(t, empty.IsZero())

	_, err = ParseOverrides([]byte(`{oops`))
	require.Error(t, err)
}
