package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/atlas-erp/atlas-erp/internal/jobs"
	"github.com/atlas-erp/atlas-erp/internal/reports"
)

// TrialBalanceSnapshotJob persists a scheduled trial balance snapshot, the
// month-end archival run.
type TrialBalanceSnapshotJob struct {
	reports      *reports.Service
	baseCurrency string
	metrics      *jobmetrics.Metrics
	logger       *slog.Logger
}

// NewTrialBalanceSnapshotJob constructs the job.
func NewTrialBalanceSnapshotJob(svc *reports.Service, baseCurrency string, metrics *jobmetrics.Metrics, logger *slog.Logger) *TrialBalanceSnapshotJob {
	return &TrialBalanceSnapshotJob{reports: svc, baseCurrency: baseCurrency, metrics: metrics, logger: logger}
}

// Handle processes TaskTypeTrialBalanceSnapshot tasks.
func (j *TrialBalanceSnapshotJob) Handle(ctx context.Context, t *asynq.Task) error {
	return j.metrics.Track("tb_snapshot").End(j.handle(ctx, t))
}

func (j *TrialBalanceSnapshotJob) handle(ctx context.Context, t *asynq.Task) error {
	var payload SnapshotPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("snapshot payload: %w: %w", err, asynq.SkipRetry)
	}
	asOf := parseDateOr(payload.AsOfDate, time.Now().UTC())
	currency := payload.Currency
	if currency == "" {
		currency = j.baseCurrency
	}
	name := payload.Name
	if name == "" {
		name = "Scheduled Trial Balance " + asOf.Format("2006-01")
	}

	snapshot, err := j.reports.PersistSnapshot(ctx, reports.BalanceQuery{
		AsOfDate: asOf,
		Currency: currency,
	}, name)
	if err != nil {
		var cerr *reports.ConsistencyError
		if errors.As(err, &cerr) {
			// Snapshot persisted for the audit trail; the broken closure has
			// already been logged and flagged by the reports service.
			j.logger.Error("scheduled snapshot captured out-of-balance ledger",
				slog.String("snapshot_id", snapshot.ID.String()),
				slog.Any("error", cerr),
			)
			return nil
		}
		return err
	}
	j.logger.Info("trial balance snapshot persisted",
		slog.String("snapshot_id", snapshot.ID.String()),
		slog.String("period", snapshot.Period),
	)
	return nil
}
