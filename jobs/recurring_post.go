package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	jobmetrics "github.com/atlas-erp/atlas-erp/internal/jobs"
	"github.com/atlas-erp/atlas-erp/internal/ledger"
)

// RecurringPostJob posts recurring journal template occurrences. Re-delivery
// is safe: the template id is recorded as the entry source, and a second
// posting for the same source is rejected by the ledger and treated as done.
type RecurringPostJob struct {
	ledger  *ledger.Service
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewRecurringPostJob constructs the job.
func NewRecurringPostJob(svc *ledger.Service, metrics *jobmetrics.Metrics, logger *slog.Logger) *RecurringPostJob {
	return &RecurringPostJob{ledger: svc, metrics: metrics, logger: logger}
}

// Handle processes TaskTypeRecurringPost tasks.
func (j *RecurringPostJob) Handle(ctx context.Context, t *asynq.Task) error {
	return j.metrics.Track("recurring_post").End(j.handle(ctx, t))
}

func (j *RecurringPostJob) handle(ctx context.Context, t *asynq.Task) error {
	var payload RecurringPostPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("recurring post payload: %w: %w", err, asynq.SkipRetry)
	}
	input, err := j.buildInput(payload)
	if err != nil {
		j.logger.Error("recurring post rejected", slog.String("template_id", payload.TemplateID), slog.Any("error", err))
		return fmt.Errorf("recurring post input: %w: %w", err, asynq.SkipRetry)
	}

	entry, err := j.ledger.Post(ctx, input)
	switch {
	case err == nil:
		j.logger.Info("recurring entry posted",
			slog.String("template_id", payload.TemplateID),
			slog.String("journal_no", entry.JournalNo),
		)
		return nil
	case errors.Is(err, ledger.ErrSourceAlreadyLinked):
		// A previous delivery already posted this occurrence.
		j.logger.Info("recurring entry already posted", slog.String("template_id", payload.TemplateID))
		return nil
	case ledger.IsTransient(err):
		return err
	default:
		var verr *ledger.ValidationError
		var rerr *ledger.ReferenceError
		if errors.As(err, &verr) || errors.As(err, &rerr) {
			j.logger.Error("recurring post rejected", slog.String("template_id", payload.TemplateID), slog.Any("error", err))
			return fmt.Errorf("recurring post: %w: %w", err, asynq.SkipRetry)
		}
		return err
	}
}

func (j *RecurringPostJob) buildInput(payload RecurringPostPayload) (ledger.PostingInput, error) {
	templateID, err := uuid.Parse(payload.TemplateID)
	if err != nil {
		return ledger.PostingInput{}, fmt.Errorf("templateId must be a UUID: %w", err)
	}
	date := parseDateOr(payload.Date, time.Now().UTC())

	lines := make([]ledger.PostingLineInput, 0, len(payload.Lines))
	for i, line := range payload.Lines {
		debit, err := parseAmount(line.Debit)
		if err != nil {
			return ledger.PostingInput{}, fmt.Errorf("line %d debit: %w", i, err)
		}
		credit, err := parseAmount(line.Credit)
		if err != nil {
			return ledger.PostingInput{}, fmt.Errorf("line %d credit: %w", i, err)
		}
		in := ledger.PostingLineInput{
			AccountID:   line.AccountID,
			Description: line.Description,
			Debit:       debit,
			Credit:      credit,
		}
		if line.CostCenter != "" {
			cc := line.CostCenter
			in.CostCenter = &cc
		}
		lines = append(lines, in)
	}

	return ledger.PostingInput{
		Reference:    payload.Reference,
		Description:  payload.Description,
		Date:         date,
		Currency:     payload.Currency,
		ExchangeRate: decimal.NewFromInt(1),
		Source:       ledger.SourceRecurring,
		SourceID:     templateID,
		CreatedBy:    payload.CreatedBy,
		Lines:        lines,
	}, nil
}

func parseAmount(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}
