package transcripts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agentos-labs/agentos-backend/internal/usage"
	"github.com/agentos-labs/agentos-backend/pkg/db/models"
	"github.com/agentos-labs/agentos-backend/pkg/enums"
	pkgerrors "github.com/agentos-labs/agentos-backend/pkg/errors"
	"github.com/agentos-labs/agentos-backend/pkg/logger"
	"github.com/agentos-labs/agentos-backend/pkg/pagination"
)

type ledger interface {
	UpdateBySession(ctx context.Context, input usage.UpdateInput) (*models.UsageRecord, error)
}

// Service persists transcripts and drives the ledger finalize path.
type Service interface {
	Save(ctx context.Context, input SaveInput) (*View, error)
	Get(ctx context.Context, id uuid.UUID) (*View, error)
	List(ctx context.Context, filters ListFilters, params pagination.Params) (*ListResult, error)
	PruneOlderThan(ctx context.Context, retention time.Duration) (int64, error)
}

// ServiceParams groups dependencies for the transcript service.
type ServiceParams struct {
	Repo   Repository
	Usage  ledger
	Logger *logger.Logger
}

type service struct {
	repo  Repository
	usage ledger
	logg  *logger.Logger
}

// NewService builds a transcript service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("transcript repository required")
	}
	if params.Usage == nil {
		return nil, fmt.Errorf("usage service required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:  params.Repo,
		usage: params.Usage,
		logg:  params.Logger,
	}, nil
}

// Save stores the transcript and performs one reconciling ledger write that
// forces the session into final status. The stored transcript carries the
// subscription slug the ledger holds for the session so per-plan audits can
// cross-reference the two.
func (s *service) Save(ctx context.Context, input SaveInput) (*View, error) {
	sessionID := strings.TrimSpace(input.SessionID)
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}

	record, err := s.usage.UpdateBySession(ctx, usage.UpdateInput{
		SessionID:       sessionID,
		UserKey:         input.UserKey,
		AgentID:         input.AgentID,
		PostID:          input.PostID,
		TokensRealtime:  input.TokensRealtime,
		TokensText:      input.TokensText,
		TokensTotal:     input.TokensTotal,
		DurationSeconds: input.DurationSeconds,
		Status:          enums.SessionStatusFinal,
	})
	if err != nil {
		return nil, err
	}

	transcript := &models.Transcript{
		ID:               uuid.New(),
		PostID:           input.PostID,
		AgentID:          strings.TrimSpace(input.AgentID),
		SessionID:        sessionID,
		UserKey:          strings.TrimSpace(input.UserKey),
		SubscriptionSlug: record.SubscriptionSlug,
		Model:            strings.TrimSpace(input.Model),
		Voice:            strings.TrimSpace(input.Voice),
		UserEmail:        strings.TrimSpace(input.UserEmail),
		UserAgent:        input.UserAgent,
		Body:             input.Body,
		TokensRealtime:   record.TokensRealtime,
		TokensText:       record.TokensText,
		TokensTotal:      record.TokensTotal,
		DurationSeconds:  record.DurationSeconds,
	}
	if transcript.AgentID == "" {
		transcript.AgentID = record.AgentID
	}
	if transcript.UserKey == "" {
		transcript.UserKey = record.UserKey
	}

	if err := s.repo.Create(ctx, transcript); err != nil {
		return nil, err
	}

	lctx := s.logg.WithSessionID(ctx, sessionID)
	s.logg.Info(lctx, "transcript saved")

	view := ToView(*transcript, true)
	return &view, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*View, error) {
	transcript, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if transcript == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transcript not found")
	}
	view := ToView(*transcript, true)
	return &view, nil
}

func (s *service) List(ctx context.Context, filters ListFilters, params pagination.Params) (*ListResult, error) {
	rows, err := s.repo.List(ctx, filters, params)
	if err != nil {
		return nil, err
	}

	limit := pagination.NormalizeLimit(params.Limit)
	result := &ListResult{Items: make([]View, 0, len(rows))}
	for i, row := range rows {
		if i >= limit {
			last := rows[limit-1]
			result.NextCursor = pagination.EncodeCursor(pagination.Cursor{
				CreatedAt: last.CreatedAt,
				ID:        last.ID,
			})
			break
		}
		result.Items = append(result.Items, ToView(row, false))
	}
	return result, nil
}

func (s *service) PruneOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	return s.repo.DeleteOlderThan(ctx, time.Now().UTC().Add(-retention))
}
