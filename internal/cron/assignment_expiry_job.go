package cron

import (
	"context"
	"fmt"

	"github.com/agentos-labs/agentos-backend/pkg/logger"
)

type assignmentSweeper interface {
	ClearExpired(ctx context.Context) (int64, error)
}

// AssignmentExpiryJobParams configure the expired-assignment sweep.
type AssignmentExpiryJobParams struct {
	Logger      *logger.Logger
	Assignments assignmentSweeper
}

// NewAssignmentExpiryJob removes assignments whose expiry has passed so the
// limiter stops considering them without doing the filtering forever at read
// time.
func NewAssignmentExpiryJob(params AssignmentExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Assignments == nil {
		return nil, fmt.Errorf("assignments service required")
	}
	return &assignmentExpiryJob{
		logg:        params.Logger,
		assignments: params.Assignments,
	}, nil
}

type assignmentExpiryJob struct {
	logg        *logger.Logger
	assignments assignmentSweeper
}

func (j *assignmentExpiryJob) Name() string { return "assignment-expiry" }

func (j *assignmentExpiryJob) Run(ctx context.Context) error {
	deleted, err := j.assignments.ClearExpired(ctx)
	if err != nil {
		return fmt.Errorf("assignment expiry: %w", err)
	}
	logCtx := j.logg.WithField(ctx, "rows_deleted", deleted)
	j.logg.Info(logCtx, "expired assignments cleared")
	return nil
}
