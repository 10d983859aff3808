package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/fieldops-backend/internal/worklog"
	"github.com/angelmondragon/fieldops-backend/pkg/logger"
)

// TotalsJobName labels the totals reconciliation in logs and metrics.
const TotalsJobName = "totals-reconcile"

type totalsResetter interface {
	ResetAllTotals(ctx context.Context) (worklog.ResetSummary, error)
}

type totalsJob struct {
	logg   *logger.Logger
	ledger totalsResetter
}

// NewTotalsJob rebuilds every user's cached total from finalized assignments so
// drift from failed recomputations heals within one cycle.
func NewTotalsJob(logg *logger.Logger, ledger totalsResetter) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("work-log service required")
	}
	return &totalsJob{logg: logg, ledger: ledger}, nil
}

func (j *totalsJob) Name() string { return TotalsJobName }

func (j *totalsJob) Run(ctx context.Context) error {
	summary, err := j.ledger.ResetAllTotals(ctx)
	ctx = j.logg.WithFields(ctx, map[string]any{
		"users":  summary.Users,
		"failed": summary.Failed,
	})
	if err != nil {
		return fmt.Errorf("reset totals (%d of %d failed): %w", summary.Failed, summary.Users, err)
	}
	j.logg.Info(ctx, "user totals reconciled")
	return nil
}
