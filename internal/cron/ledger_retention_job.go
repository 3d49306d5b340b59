package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/agentos-labs/agentos-backend/pkg/logger"
)

type ledgerSweeper interface {
	PruneOlderThan(ctx context.Context, retention time.Duration) (int64, error)
}

type transcriptSweeper interface {
	PruneOlderThan(ctx context.Context, retention time.Duration) (int64, error)
}

// LedgerRetentionJobParams configure the completed-row retention sweep.
type LedgerRetentionJobParams struct {
	Logger         *logger.Logger
	Usage          ledgerSweeper
	Transcripts    transcriptSweeper
	RetentionHours int
}

// NewLedgerRetentionJob prunes old ledger rows and, when a transcript store
// is provided, the transcripts saved alongside them. A retention of zero
// disables the job entirely; operators who keep history forever simply never
// register it.
func NewLedgerRetentionJob(params LedgerRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Usage == nil {
		return nil, fmt.Errorf("usage service required")
	}
	if params.RetentionHours <= 0 {
		return nil, fmt.Errorf("retention hours must be positive")
	}
	return &ledgerRetentionJob{
		logg:        params.Logger,
		usage:       params.Usage,
		transcripts: params.Transcripts,
		retention:   params.RetentionHours,
	}, nil
}

type ledgerRetentionJob struct {
	logg        *logger.Logger
	usage       ledgerSweeper
	transcripts transcriptSweeper
	retention   int
}

func (j *ledgerRetentionJob) Name() string { return "ledger-retention" }

func (j *ledgerRetentionJob) Run(ctx context.Context) error {
	retention := time.Duration(j.retention) * time.Hour

	var errs error
	ledgerDeleted, err := j.usage.PruneOlderThan(ctx, retention)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("ledger retention: %w", err))
	}

	var transcriptsDeleted int64
	if j.transcripts != nil {
		transcriptsDeleted, err = j.transcripts.PruneOlderThan(ctx, retention)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("transcript retention: %w", err))
		}
	}
	if errs != nil {
		return errs
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"retention_hours":     j.retention,
		"ledger_deleted":      ledgerDeleted,
		"transcripts_deleted": transcriptsDeleted,
	})
	j.logg.Info(logCtx, "retention sweep complete")
	return nil
}
