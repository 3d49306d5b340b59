package usage

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/agentos-labs/agentos-backend/pkg/db/models"
	"github.com/agentos-labs/agentos-backend/pkg/enums"
	"github.com/agentos-labs/agentos-backend/pkg/logger"
)

func setupUsageTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	usageRecords := `
CREATE TABLE IF NOT EXISTS usage_records (
  id TEXT PRIMARY KEY,
  session_id TEXT NOT NULL UNIQUE,
  user_key TEXT NOT NULL DEFAULT '',
  subscription_slug TEXT NOT NULL DEFAULT '',
  agent_id TEXT NOT NULL DEFAULT '',
  post_id INTEGER NOT NULL DEFAULT 0,
  tokens_realtime INTEGER NOT NULL DEFAULT 0,
  tokens_text INTEGER NOT NULL DEFAULT 0,
  tokens_total INTEGER NOT NULL DEFAULT 0,
  duration_seconds INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL DEFAULT 'pending',
  metadata TEXT,
  recorded_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(usageRecords).Error)
	return db
}

func newUsageService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:   NewRepository(db),
		Logger: logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled}),
	})
	require.NoError(t, err)
	return svc
}

func TestUpdateBySessionMonotonicAnyOrder(t *testing.T) {
	db := setupUsageTestDB(t)
	svc := newUsageService(t, db)
	ctx := context.Background()

	require.NoError(t, svc.LogStart(ctx, StartInput{
		SessionID: "mono-1",
		UserKey:   "user-mono",
		AgentID:   "agent-a",
	}))

	// reports arrive out of order; final state must be the elementwise max
	reports := []UpdateInput{
		{SessionID: "mono-1", TokensRealtime: 500, TokensText: 20, DurationSeconds: 60, Status: enums.SessionStatusRunning},
		{SessionID: "mono-1", TokensRealtime: 200, TokensText: 80, DurationSeconds: 30, Status: enums.SessionStatusRunning},
		{SessionID: "mono-1", TokensRealtime: 450, TokensText: 50, DurationSeconds: 90, Status: enums.SessionStatusFinal},
		{SessionID: "mono-1", TokensRealtime: 100, TokensText: 10, DurationSeconds: 10, Status: enums.SessionStatusRunning},
	}
	for _, report := range reports {
		_, err := svc.UpdateBySession(ctx, report)
		require.NoError(t, err)
	}

	record, err := svc.GetBySession(ctx, "mono-1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, int64(500), record.TokensRealtime)
	assert.Equal(t, int64(80), record.TokensText)
	assert.Equal(t, int64(90), record.DurationSeconds)
	// total was floored to realtime+text per report, so max is 500+20=520
	assert.Equal(t, int64(520), record.TokensTotal)
	// a late running report cannot reopen a finalized session
	assert.Equal(t, enums.SessionStatusFinal, record.Status)
}

func TestUpdateBySessionTotalFlooredToChannelSum(t *testing.T) {
	db := setupUsageTestDB(t)
	svc := newUsageService(t, db)
	ctx := context.Background()

	record, err := svc.UpdateBySession(ctx, UpdateInput{
		SessionID:      "floor-1",
		TokensRealtime: 300,
		TokensText:     100,
		TokensTotal:    50,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(400), record.TokensTotal)
}

func TestLogStartIsIdempotentAndOnlyFillsGaps(t *testing.T) {
	db := setupUsageTestDB(t)
	svc := newUsageService(t, db)
	ctx := context.Background()

	require.NoError(t, svc.LogStart(ctx, StartInput{
		SessionID: "start-1",
		UserKey:   "user-start",
		AgentID:   "agent-a",
		PostID:    7,
	}))

	_, err := svc.UpdateBySession(ctx, UpdateInput{
		SessionID:      "start-1",
		TokensRealtime: 250,
		Status:         enums.SessionStatusRunning,
	})
	require.NoError(t, err)

	// duplicate start must not reset counters, status, or identity
	require.NoError(t, svc.LogStart(ctx, StartInput{
		SessionID: "start-1",
		UserKey:   "someone-else",
		AgentID:   "agent-b",
	}))

	record, err := svc.GetBySession(ctx, "start-1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "user-start", record.UserKey)
	assert.Equal(t, "agent-a", record.AgentID)
	assert.Equal(t, int64(7), record.PostID)
	assert.Equal(t, int64(250), record.TokensRealtime)
	assert.Equal(t, enums.SessionStatusRunning, record.Status)

	var count int64
	require.NoError(t, db.Model(&models.UsageRecord{}).Where("session_id = ?", "start-1").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestHeartbeatBeforeStartCreatesMinimalRow(t *testing.T) {
	db := setupUsageTestDB(t)
	svc := newUsageService(t, db)
	ctx := context.Background()

	record, err := svc.UpdateBySession(ctx, UpdateInput{
		SessionID:      "race-1",
		UserKey:        "user-race",
		TokensRealtime: 120,
		Status:         enums.SessionStatusRunning,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(120), record.TokensRealtime)
	assert.Equal(t, "user-race", record.UserKey)

	// the late-arriving start fills in what the heartbeat did not know
	require.NoError(t, svc.LogStart(ctx, StartInput{
		SessionID:        "race-1",
		UserKey:          "user-race",
		SubscriptionSlug: "starter",
		AgentID:          "agent-a",
	}))

	record, err = svc.GetBySession(ctx, "race-1")
	require.NoError(t, err)
	assert.Equal(t, "starter", record.SubscriptionSlug)
	assert.Equal(t, "agent-a", record.AgentID)
	assert.Equal(t, int64(120), record.TokensRealtime)
}

func TestHeartbeatMetadataStoredOnLedgerRow(t *testing.T) {
	db := setupUsageTestDB(t)
	svc := newUsageService(t, db)
	ctx := context.Background()

	require.NoError(t, svc.LogStart(ctx, StartInput{
		SessionID: "meta-1",
		UserKey:   "user-meta",
	}))

	record, err := svc.UpdateBySession(ctx, UpdateInput{
		SessionID:      "meta-1",
		TokensRealtime: 50,
		Status:         enums.SessionStatusRunning,
		Metadata:       json.RawMessage(`{"mode":"voice","reason":"heartbeat"}`),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"mode":"voice","reason":"heartbeat"}`, string(record.Metadata))

	// metadata fills once; a later report cannot rewrite it
	record, err = svc.UpdateBySession(ctx, UpdateInput{
		SessionID: "meta-1",
		Metadata:  json.RawMessage(`{"mode":"text"}`),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"mode":"voice","reason":"heartbeat"}`, string(record.Metadata))

	// a heartbeat that races the start carries its metadata onto the implicit row
	record, err = svc.UpdateBySession(ctx, UpdateInput{
		SessionID: "meta-2",
		Metadata:  json.RawMessage(`{"origin":"widget"}`),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"origin":"widget"}`, string(record.Metadata))

	_, err = svc.UpdateBySession(ctx, UpdateInput{
		SessionID: "meta-1",
		Metadata:  json.RawMessage(`{not json`),
	})
	require.Error(t, err)
}

func TestSummarizeWindowRollover(t *testing.T) {
	db := setupUsageTestDB(t)
	svc := newUsageService(t, db)
	ctx := context.Background()

	seed := func(sessionID string, updatedAt time.Time, tokens int64) {
		_, err := svc.UpdateBySession(ctx, UpdateInput{
			SessionID:        sessionID,
			UserKey:          "user-window",
			SubscriptionSlug: "daily",
			TokensRealtime:   tokens,
			Status:           enums.SessionStatusFinal,
		})
		require.NoError(t, err)
		require.NoError(t, db.Model(&models.UsageRecord{}).
			Where("session_id = ?", sessionID).
			Update("updated_at", updatedAt).Error)
	}

	now := time.Now()
	seed("window-old", now.Add(-25*time.Hour), 1000)
	seed("window-in", now.Add(-23*time.Hour), 700)

	summary, err := svc.Summarize(ctx, "daily", "user-window", 24)
	require.NoError(t, err)
	assert.Equal(t, int64(700), summary.TokensRealtime)
	assert.Equal(t, int64(1), summary.Sessions)
}

func TestSummarizeEmptySlugAlwaysZero(t *testing.T) {
	db := setupUsageTestDB(t)
	svc := newUsageService(t, db)
	ctx := context.Background()

	_, err := svc.UpdateBySession(ctx, UpdateInput{
		SessionID:      "anon-usage",
		TokensRealtime: 999,
		Status:         enums.SessionStatusFinal,
	})
	require.NoError(t, err)

	summary, err := svc.Summarize(ctx, "", "", 24)
	require.NoError(t, err)
	assert.Equal(t, Summary{}, summary)
}

func TestPendingRowsCountSessionsButNoTokens(t *testing.T) {
	db := setupUsageTestDB(t)
	svc := newUsageService(t, db)
	ctx := context.Background()

	require.NoError(t, svc.LogStart(ctx, StartInput{
		SessionID:        "stuck-1",
		UserKey:          "user-stuck",
		SubscriptionSlug: "metered",
	}))

	summary, err := svc.Summarize(ctx, "metered", "user-stuck", 24)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.Sessions)
	assert.Equal(t, int64(0), summary.TokensTotal)
}

func TestReassignUserMovesLedger(t *testing.T) {
	db := setupUsageTestDB(t)
	svc := newUsageService(t, db)
	ctx := context.Background()

	_, err := svc.UpdateBySession(ctx, UpdateInput{
		SessionID:        "rekey-1",
		UserKey:          "anon-device",
		SubscriptionSlug: "starter",
		TokensRealtime:   100,
		Status:           enums.SessionStatusFinal,
	})
	require.NoError(t, err)

	require.NoError(t, svc.ReassignUser(ctx, "anon-device", "acct-1"))

	moved, err := svc.ListForUser(ctx, "acct-1", 10)
	require.NoError(t, err)
	require.Len(t, moved, 1)
	assert.Equal(t, "rekey-1", moved[0].SessionID)

	orphaned, err := svc.ListForUser(ctx, "anon-device", 10)
	require.NoError(t, err)
	assert.Empty(t, orphaned)
}

func TestPruneStalePending(t *testing.T) {
	db := setupUsageTestDB(t)
	svc := newUsageService(t, db)
	ctx := context.Background()

	require.NoError(t, svc.LogStart(ctx, StartInput{SessionID: "prune-old", UserKey: "user-prune"}))
	require.NoError(t, svc.LogStart(ctx, StartInput{SessionID: "prune-new", UserKey: "user-prune"}))
	_, err := svc.UpdateBySession(ctx, UpdateInput{
		SessionID: "prune-done",
		UserKey:   "user-prune",
		Status:    enums.SessionStatusFinal,
	})
	require.NoError(t, err)

	stale := time.Now().Add(-80 * time.Hour)
	require.NoError(t, db.Model(&models.UsageRecord{}).
		Where("session_id IN ?", []string{"prune-old", "prune-done"}).
		Update("updated_at", stale).Error)

	removed, err := svc.PruneStalePending(ctx, 72*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	gone, err := svc.GetBySession(ctx, "prune-old")
	require.NoError(t, err)
	assert.Nil(t, gone)

	kept, err := svc.GetBySession(ctx, "prune-done")
	require.NoError(t, err)
	require.NotNil(t, kept)
}

func TestListUsersAggregates(t *testing.T) {
	db := setupUsageTestDB(t)
	svc := newUsageService(t, db)
	ctx := context.Background()

	for _, input := range []UpdateInput{
		{SessionID: "agg-1", UserKey: "user-agg-a", AgentID: "agent-x", SubscriptionSlug: "pro", TokensRealtime: 100, Status: enums.SessionStatusFinal},
		{SessionID: "agg-2", UserKey: "user-agg-a", AgentID: "agent-x", SubscriptionSlug: "pro", TokensRealtime: 200, Status: enums.SessionStatusFinal},
		{SessionID: "agg-3", UserKey: "user-agg-b", AgentID: "agent-y", SubscriptionSlug: "pro", TokensText: 50, Status: enums.SessionStatusFinal},
	} {
		_, err := svc.UpdateBySession(ctx, input)
		require.NoError(t, err)
	}

	rows, err := svc.ListUsers(ctx, 10, ListUsersFilters{AgentID: "agent-x"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "user-agg-a", rows[0].UserKey)
	assert.Equal(t, int64(2), rows[0].Sessions)
	assert.Equal(t, int64(300), rows[0].TokensTotal)
}
