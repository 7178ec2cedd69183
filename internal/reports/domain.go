// Package reports computes account balances and trial balance reports over
// completed ledger transactions.
package reports

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/atlas-erp/atlas-erp/internal/ledger"
)

// BalanceQuery bounds a balance computation.
type BalanceQuery struct {
	AsOfDate            time.Time
	Currency            string
	IncludeZeroBalances bool
	AccountType         ledger.AccountType
}

// PeriodStart returns the reporting period start: the first day of the
// fiscal year that contains AsOfDate. Opening balances cover everything
// strictly before it; movements cover [PeriodStart, AsOfDate].
func (q BalanceQuery) PeriodStart() time.Time {
	return time.Date(q.AsOfDate.Year(), time.January, 1, 0, 0, 0, 0, q.AsOfDate.Location())
}

// AccountBalance holds the raw per-account aggregates fetched from storage.
type AccountBalance struct {
	AccountID       int64
	Code            string
	Name            string
	Type            ledger.AccountType
	OpeningDebit    decimal.Decimal
	OpeningCredit   decimal.Decimal
	DebitMovements  decimal.Decimal
	CreditMovements decimal.Decimal
}

// Opening nets the pre-period debits and credits onto the account's normal
// side, so a positive value means a normal-side balance.
func (b AccountBalance) Opening() decimal.Decimal {
	if b.Type.DebitNormal() {
		return b.OpeningDebit.Sub(b.OpeningCredit)
	}
	return b.OpeningCredit.Sub(b.OpeningDebit)
}

// Closing combines opening and period movements, normal-balance aware.
func (b AccountBalance) Closing() decimal.Decimal {
	if b.Type.DebitNormal() {
		return b.Opening().Add(b.DebitMovements).Sub(b.CreditMovements)
	}
	return b.Opening().Add(b.CreditMovements).Sub(b.DebitMovements)
}

// DebitBalance is the presentation-side debit column: the closing balance
// when it sits on the debit side, zero otherwise.
func (b AccountBalance) DebitBalance() decimal.Decimal {
	closing := b.Closing()
	if b.Type.DebitNormal() {
		return maxZero(closing)
	}
	return maxZero(closing.Neg())
}

// CreditBalance mirrors DebitBalance for the credit column.
func (b AccountBalance) CreditBalance() decimal.Decimal {
	closing := b.Closing()
	if b.Type.DebitNormal() {
		return maxZero(closing.Neg())
	}
	return maxZero(closing)
}

func maxZero(d decimal.Decimal) decimal.Decimal {
	if d.Sign() < 0 {
		return decimal.Zero
	}
	return d
}

// TrialBalanceRow is one account line of the report.
type TrialBalanceRow struct {
	AccountCode     string             `json:"accountCode"`
	AccountName     string             `json:"accountName"`
	AccountType     ledger.AccountType `json:"accountType"`
	OpeningBalance  decimal.Decimal    `json:"openingBalance"`
	DebitMovements  decimal.Decimal    `json:"debitMovements"`
	CreditMovements decimal.Decimal    `json:"creditMovements"`
	ClosingBalance  decimal.Decimal    `json:"closingBalance"`
	DebitBalance    decimal.Decimal    `json:"debitBalance"`
	CreditBalance   decimal.Decimal    `json:"creditBalance"`
}

// TypeTotals aggregates one account type section.
type TypeTotals struct {
	DebitBalance  decimal.Decimal `json:"debitBalance"`
	CreditBalance decimal.Decimal `json:"creditBalance"`
	Closing       decimal.Decimal `json:"closingBalance"`
}

// Summary carries report-level totals and the balance assertion.
type Summary struct {
	TotalDebits  decimal.Decimal                   `json:"totalDebits"`
	TotalCredits decimal.Decimal                   `json:"totalCredits"`
	Difference   decimal.Decimal                   `json:"difference"`
	IsBalanced   bool                              `json:"isBalanced"`
	TotalsByType map[ledger.AccountType]TypeTotals `json:"totalsByType"`
}

// TrialBalance is the full-ledger report.
type TrialBalance struct {
	AsOfDate    time.Time         `json:"asOfDate"`
	PeriodStart time.Time         `json:"periodStart"`
	Currency    string            `json:"currency"`
	GeneratedAt time.Time         `json:"generatedAt"`
	Rows        []TrialBalanceRow `json:"rows"`
	Summary     Summary           `json:"summary"`
}

// Snapshot is the immutable persisted form of a trial balance.
type Snapshot struct {
	ID           uuid.UUID
	Name         string
	Period       string
	AsOfDate     time.Time
	Currency     string
	TotalDebits  decimal.Decimal
	TotalCredits decimal.Decimal
	IsBalanced   bool
	CreatedAt    time.Time
	Items        []SnapshotItem
}

// SnapshotItem is one persisted account line.
type SnapshotItem struct {
	AccountCode     string
	AccountName     string
	AccountType     ledger.AccountType
	OpeningBalance  decimal.Decimal
	DebitMovements  decimal.Decimal
	CreditMovements decimal.Decimal
	ClosingBalance  decimal.Decimal
}

// ErrSnapshotNotFound indicates a missing persisted trial balance.
var ErrSnapshotNotFound = errors.New("reports: snapshot not found")

// ConsistencyError reports a trial balance that failed its closure
// assertion. It should never occur when all writes go through the ledger
// writer; it means a corrupted read path or a bypassed writer and is never
// auto-corrected.
type ConsistencyError struct {
	AsOfDate   time.Time
	Currency   string
	Difference decimal.Decimal
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("reports: trial balance as of %s (%s) is out of balance by %s",
		e.AsOfDate.Format("2006-01-02"), e.Currency, e.Difference.String())
}
