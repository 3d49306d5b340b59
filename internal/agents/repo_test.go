package agents

import (
	"context"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/agentos-labs/agentos-backend/pkg/db/models"
	"github.com/agentos-labs/agentos-backend/pkg/enums"
	"github.com/agentos-labs/agentos-backend/pkg/logger"
	"github.com/rs/zerolog"
)

func setupAgentsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	agents := `
CREATE TABLE IF NOT EXISTS agents (
  slug TEXT PRIMARY KEY,
  label TEXT NOT NULL,
  mode TEXT NOT NULL DEFAULT 'voice',
  model TEXT NOT NULL DEFAULT '',
  voice TEXT NOT NULL DEFAULT '',
  base_prompt TEXT NOT NULL DEFAULT '',
  post_types TEXT NOT NULL DEFAULT '{}',
  show_transcript INTEGER NOT NULL DEFAULT 1,
  require_subscription INTEGER NOT NULL DEFAULT 0,
  session_token_cap INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(agents).Error)
	return db
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled})
}

func newAgentsService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:   NewRepository(db),
		Logger: testLogger(),
	})
	require.NoError(t, err)
	return svc
}

func TestUpsertDerivesSlugAndClamps(t *testing.T) {
	db := setupAgentsTestDB(t)
	svc := newAgentsService(t, db)
	ctx := context.Background()

	gotSlug, err := svc.Upsert(ctx, UpsertInput{
		Label:           "Docs Helper Alpha",
		Mode:            "text",
		Model:           "gpt-4o-mini",
		SessionTokenCap: -10,
		PostTypes:       []string{"Page", "page", " post "},
	}, "")
	require.NoError(t, err)
	assert.Equal(t, "docs-helper-alpha", gotSlug)

	agent, err := svc.Get(ctx, gotSlug)
	require.NoError(t, err)
	require.NotNil(t, agent)
	assert.Equal(t, enums.AgentModeText, agent.Mode)
	assert.Equal(t, int64(0), agent.SessionTokenCap)
	assert.Equal(t, pq.StringArray{"page", "post"}, agent.PostTypes)
	assert.True(t, agent.ShowTranscript)
}

func TestUpsertResolvesSlugCollisions(t *testing.T) {
	db := setupAgentsTestDB(t)
	svc := newAgentsService(t, db)
	ctx := context.Background()

	first, err := svc.Upsert(ctx, UpsertInput{Label: "Collide Agent"}, "")
	require.NoError(t, err)
	second, err := svc.Upsert(ctx, UpsertInput{Label: "Collide Agent"}, "")
	require.NoError(t, err)
	third, err := svc.Upsert(ctx, UpsertInput{Label: "Collide Agent"}, "")
	require.NoError(t, err)

	assert.Equal(t, "collide-agent", first)
	assert.Equal(t, "collide-agent-1", second)
	assert.Equal(t, "collide-agent-2", third)
}

func TestUpsertRenameInPlace(t *testing.T) {
	db := setupAgentsTestDB(t)
	svc := newAgentsService(t, db)
	ctx := context.Background()

	original, err := svc.Upsert(ctx, UpsertInput{Label: "Rename Source"}, "")
	require.NoError(t, err)

	renamed, err := svc.Upsert(ctx, UpsertInput{Slug: "rename-target", Label: "Rename Source"}, original)
	require.NoError(t, err)
	assert.Equal(t, "rename-target", renamed)

	old, err := svc.Get(ctx, original)
	require.NoError(t, err)
	assert.Nil(t, old)

	moved, err := svc.Get(ctx, renamed)
	require.NoError(t, err)
	require.NotNil(t, moved)
}

func TestUpsertUpdatesExistingWithoutDuplicate(t *testing.T) {
	db := setupAgentsTestDB(t)
	svc := newAgentsService(t, db)
	ctx := context.Background()

	slugName, err := svc.Upsert(ctx, UpsertInput{Slug: "stable-agent", Label: "Stable"}, "")
	require.NoError(t, err)

	updated, err := svc.Upsert(ctx, UpsertInput{Slug: "stable-agent", Label: "Stable v2", Voice: "verse"}, slugName)
	require.NoError(t, err)
	assert.Equal(t, slugName, updated)

	agent, err := svc.Get(ctx, slugName)
	require.NoError(t, err)
	require.NotNil(t, agent)
	assert.Equal(t, "Stable v2", agent.Label)
	assert.Equal(t, "verse", agent.Voice)

	var count int64
	require.NoError(t, db.Model(&models.Agent{}).Where("slug LIKE ?", "stable-agent%").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestKnownSlugsAndDelete(t *testing.T) {
	db := setupAgentsTestDB(t)
	svc := newAgentsService(t, db)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, UpsertInput{Slug: "known-a", Label: "Known A"}, "")
	require.NoError(t, err)
	_, err = svc.Upsert(ctx, UpsertInput{Slug: "known-b", Label: "Known B"}, "")
	require.NoError(t, err)

	slugs, err := svc.KnownSlugs(ctx)
	require.NoError(t, err)
	assert.Contains(t, slugs, "known-a")
	assert.Contains(t, slugs, "known-b")

	require.NoError(t, svc.Delete(ctx, "known-a"))
	remaining, err := svc.Get(ctx, "known-a")
	require.NoError(t, err)
	assert.Nil(t, remaining)
}
