// Package jobs hosts the background worker: scheduled recurring journal
// posting, the nightly ledger integrity scan, and trial balance snapshots.
package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeRecurringPost posts one recurring journal template occurrence.
	TaskTypeRecurringPost = "ledger:recurring_post"
	// TaskTypeLedgerIntegrity re-verifies posted entry balance invariants.
	TaskTypeLedgerIntegrity = "ledger:integrity"
	// TaskTypeTrialBalanceSnapshot persists a period-end trial balance.
	TaskTypeTrialBalanceSnapshot = "reports:tb_snapshot"
)

// RecurringLine is one template line of a recurring journal.
type RecurringLine struct {
	AccountID   int64  `json:"accountId"`
	Debit       string `json:"debit"`
	Credit      string `json:"credit"`
	Description string `json:"description"`
	CostCenter  string `json:"costCenter,omitempty"`
}

// RecurringPostPayload carries everything needed to post one occurrence of a
// recurring template. TemplateID doubles as the idempotency key per period.
type RecurringPostPayload struct {
	TemplateID  string          `json:"templateId"`
	Reference   string          `json:"reference"`
	Description string          `json:"description"`
	Date        string          `json:"date"`
	Currency    string          `json:"currency"`
	CreatedBy   int64           `json:"createdBy"`
	Lines       []RecurringLine `json:"lines"`
}

// NewRecurringPostTask constructs an Asynq task for one occurrence.
func NewRecurringPostTask(payload RecurringPostPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeRecurringPost, data), nil
}

// IntegrityScanPayload bounds the scan window.
type IntegrityScanPayload struct {
	LookbackDays int `json:"lookbackDays"`
}

// NewIntegrityScanTask constructs the nightly integrity scan task.
func NewIntegrityScanTask(lookbackDays int) (*asynq.Task, error) {
	data, err := json.Marshal(IntegrityScanPayload{LookbackDays: lookbackDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeLedgerIntegrity, data), nil
}

// SnapshotPayload names the snapshot and pins the as-of date; an empty
// AsOfDate snapshots up to the run date.
type SnapshotPayload struct {
	Name     string `json:"name"`
	AsOfDate string `json:"asOfDate,omitempty"`
	Currency string `json:"currency,omitempty"`
}

// NewSnapshotTask constructs the trial balance snapshot task.
func NewSnapshotTask(payload SnapshotPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeTrialBalanceSnapshot, data), nil
}

func parseDateOr(raw string, fallback time.Time) time.Time {
	if raw == "" {
		return fallback
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return fallback
	}
	return parsed
}
