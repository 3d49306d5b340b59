package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/agentos-labs/agentos-backend/pkg/logger"
)

const defaultPendingRetentionHours = 72

type pendingSweeper interface {
	PruneStalePending(ctx context.Context, retention time.Duration) (int64, error)
}

// StalePendingJobParams configure the abandoned-session sweep.
type StalePendingJobParams struct {
	Logger         *logger.Logger
	Usage          pendingSweeper
	RetentionHours int
}

// NewStalePendingJob deletes ledger rows stuck in pending past the retention
// window. Until the sweep runs, such rows still count one session of quota.
func NewStalePendingJob(params StalePendingJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Usage == nil {
		return nil, fmt.Errorf("usage service required")
	}
	retention := params.RetentionHours
	if retention <= 0 {
		retention = defaultPendingRetentionHours
	}
	return &stalePendingJob{
		logg:      params.Logger,
		usage:     params.Usage,
		retention: retention,
	}, nil
}

type stalePendingJob struct {
	logg      *logger.Logger
	usage     pendingSweeper
	retention int
}

func (j *stalePendingJob) Name() string { return "stale-pending-sweep" }

func (j *stalePendingJob) Run(ctx context.Context) error {
	retention := time.Duration(j.retention) * time.Hour
	deleted, err := j.usage.PruneStalePending(ctx, retention)
	if err != nil {
		return fmt.Errorf("stale pending sweep: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"retention_hours": j.retention,
		"rows_deleted":    deleted,
	})
	j.logg.Info(logCtx, "stale pending sessions pruned")
	return nil
}
