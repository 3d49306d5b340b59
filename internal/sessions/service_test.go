package sessions

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentos-labs/agentos-backend/internal/assignments"
	"github.com/agentos-labs/agentos-backend/internal/limiter"
	"github.com/agentos-labs/agentos-backend/internal/usage"
	"github.com/agentos-labs/agentos-backend/pkg/db/models"
	"github.com/agentos-labs/agentos-backend/pkg/enums"
	pkgerrors "github.com/agentos-labs/agentos-backend/pkg/errors"
	"github.com/agentos-labs/agentos-backend/pkg/logger"
	"github.com/agentos-labs/agentos-backend/pkg/openai"
)

type stubAgents struct {
	agents map[string]*models.Agent
}

func (s stubAgents) Get(_ context.Context, agentSlug string) (*models.Agent, error) {
	return s.agents[agentSlug], nil
}

type stubLimiter struct {
	decision limiter.Decision
}

func (s stubLimiter) Evaluate(context.Context, string, *models.Agent) (limiter.Decision, error) {
	return s.decision, nil
}

type stubUsageService struct {
	usage.Service
	started []usage.StartInput
	updated []usage.UpdateInput
	record  *models.UsageRecord
}

func (s *stubUsageService) LogStart(_ context.Context, input usage.StartInput) error {
	s.started = append(s.started, input)
	return nil
}

func (s *stubUsageService) UpdateBySession(_ context.Context, input usage.UpdateInput) (*models.UsageRecord, error) {
	s.updated = append(s.updated, input)
	return s.record, nil
}

type stubUpstream struct {
	session *openai.Session
	err     error
	calls   int
}

func (s *stubUpstream) CreateRealtimeSession(context.Context, openai.SessionParams) (*openai.Session, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.session, nil
}

type stubProfiles struct {
	ensured []string
	err     error
}

func (s *stubProfiles) EnsureUser(_ context.Context, userKey string, _ assignments.UserMeta) error {
	s.ensured = append(s.ensured, userKey)
	return s.err
}

type coordinatorFixture struct {
	agents   stubAgents
	limiter  stubLimiter
	usage    *stubUsageService
	profiles *stubProfiles
	upstream *stubUpstream
}

func newCoordinatorFixture() *coordinatorFixture {
	return &coordinatorFixture{
		agents: stubAgents{agents: map[string]*models.Agent{
			"helper": {
				Slug:            "helper",
				Model:           "gpt-4o-realtime-preview",
				Voice:           "alloy",
				SessionTokenCap: 2000,
			},
		}},
		limiter: stubLimiter{decision: limiter.Decision{
			Allowed:          true,
			SubscriptionSlug: "pro",
			SessionTokenCap:  1500,
		}},
		usage:    &stubUsageService{},
		profiles: &stubProfiles{},
		upstream: &stubUpstream{session: &openai.Session{
			ID:           "sess_up",
			Model:        "gpt-4o-realtime-preview",
			Voice:        "alloy",
			ClientSecret: "ek_abc",
			ExpiresAt:    1750000000,
		}},
	}
}

func (f *coordinatorFixture) service(t *testing.T) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Agents:   f.agents,
		Limiter:  f.limiter,
		Usage:    f.usage,
		Profiles: f.profiles,
		Upstream: f.upstream,
		Metrics:  nil,
		Logger:   logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled}),
	})
	require.NoError(t, err)
	return svc
}

func TestStartOpensLedgerThenCallsUpstream(t *testing.T) {
	f := newCoordinatorFixture()
	svc := f.service(t)

	result, err := svc.Start(context.Background(), StartInput{
		AgentID:   "helper",
		PostID:    42,
		UserKey:   "user-1",
		SessionID: "client-chosen",
	})
	require.NoError(t, err)

	assert.Equal(t, "client-chosen", result.SessionID)
	assert.Equal(t, "ek_abc", result.ClientSecret)
	assert.Equal(t, "pro", result.SubscriptionSlug)
	assert.Equal(t, int64(1500), result.SessionTokenCap)

	require.Len(t, f.usage.started, 1)
	started := f.usage.started[0]
	assert.Equal(t, "client-chosen", started.SessionID)
	assert.Equal(t, "pro", started.SubscriptionSlug)
	assert.Equal(t, enums.SessionStatusPending, started.Status)
	assert.Equal(t, int64(42), started.PostID)
	assert.Equal(t, 1, f.upstream.calls)
}

func TestStartEnsuresProfileForKnownUser(t *testing.T) {
	f := newCoordinatorFixture()
	svc := f.service(t)

	_, err := svc.Start(context.Background(), StartInput{AgentID: "helper", UserKey: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"user-1"}, f.profiles.ensured)

	// anonymous callers get no profile row
	_, err = svc.Start(context.Background(), StartInput{AgentID: "helper"})
	require.NoError(t, err)
	assert.Len(t, f.profiles.ensured, 1)
}

func TestStartSurvivesProfileEnsureFailure(t *testing.T) {
	f := newCoordinatorFixture()
	f.profiles = &stubProfiles{err: pkgerrors.New(pkgerrors.CodeInternal, "profile store down")}
	svc := f.service(t)

	result, err := svc.Start(context.Background(), StartInput{AgentID: "helper", UserKey: "user-1"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.ClientSecret)
	require.Len(t, f.usage.started, 1)
}

func TestStartGeneratesSessionIDWhenAbsent(t *testing.T) {
	f := newCoordinatorFixture()
	svc := f.service(t)

	result, err := svc.Start(context.Background(), StartInput{AgentID: "helper"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.SessionID)
}

func TestStartDenialSkipsLedgerAndUpstream(t *testing.T) {
	f := newCoordinatorFixture()
	f.limiter = stubLimiter{decision: limiter.Decision{
		Allowed:     false,
		DenyCode:    limiter.DenyCodeSubscriptionRequired,
		DenyStatus:  402,
		DenyMessage: "subscription needed",
	}}
	svc := f.service(t)

	_, err := svc.Start(context.Background(), StartInput{AgentID: "helper", UserKey: "user-1"})
	require.Error(t, err)

	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeSubscriptionRequired, appErr.Code())
	assert.Empty(t, f.usage.started)
	assert.Zero(t, f.upstream.calls)
}

func TestStartUpstreamFailureLeavesPendingRow(t *testing.T) {
	f := newCoordinatorFixture()
	f.upstream = &stubUpstream{err: pkgerrors.New(pkgerrors.CodeUpstream, "upstream unavailable")}
	svc := f.service(t)

	_, err := svc.Start(context.Background(), StartInput{AgentID: "helper", UserKey: "user-1"})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeUpstream, pkgerrors.As(err).Code())

	// the pending row was already opened and is left for the retention sweep
	require.Len(t, f.usage.started, 1)
	assert.Equal(t, 1, f.upstream.calls)
}

func TestStartUnknownAgent(t *testing.T) {
	f := newCoordinatorFixture()
	svc := f.service(t)

	_, err := svc.Start(context.Background(), StartInput{AgentID: "ghost"})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestHeartbeatEchoesAcceptedTotals(t *testing.T) {
	f := newCoordinatorFixture()
	f.usage.record = &models.UsageRecord{
		SessionID:       "hb-1",
		AgentID:         "helper",
		TokensRealtime:  900,
		TokensText:      100,
		TokensTotal:     1000,
		DurationSeconds: 120,
		Status:          enums.SessionStatusFinal,
	}
	svc := f.service(t)

	result, err := svc.Heartbeat(context.Background(), usage.UpdateInput{
		SessionID:      "hb-1",
		TokensRealtime: 400,
		Status:         enums.SessionStatusFinal,
	})
	require.NoError(t, err)

	// the echo reflects the stored monotonic maximum, not the raw report
	assert.Equal(t, int64(900), result.TokensRealtime)
	assert.Equal(t, int64(1000), result.TokensTotal)
	assert.Equal(t, "final", result.Status)
	require.Len(t, f.usage.updated, 1)
}
