package ledger

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountType enumerates chart of accounts categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// DebitNormal reports whether the account type carries its normal balance on
// the debit side.
func (t AccountType) DebitNormal() bool {
	return t == AccountTypeAsset || t == AccountTypeExpense
}

// Valid reports whether the value is a known account type.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// EntryStatus enumerates journal entry lifecycle values.
type EntryStatus string

const (
	EntryStatusDraft  EntryStatus = "DRAFT"
	EntryStatusPosted EntryStatus = "POSTED"
	EntryStatusVoid   EntryStatus = "VOID"
)

// EntrySource identifies which flow produced a journal entry.
type EntrySource string

const (
	SourceManual    EntrySource = "manual"
	SourceRecurring EntrySource = "recurring"
	SourceSystem    EntrySource = "system"
)

// TransactionType marks a ledger movement as debit or credit.
type TransactionType string

const (
	TransactionDebit  TransactionType = "DEBIT"
	TransactionCredit TransactionType = "CREDIT"
)

// TransactionStatus enumerates transaction states. Only completed
// transactions participate in balance computation.
type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "PENDING"
	TransactionCompleted TransactionStatus = "COMPLETED"
)

// Account models a chart of accounts node.
type Account struct {
	ID           int64       `json:"id"`
	Code         string      `json:"code"`
	Name         string      `json:"name"`
	NameArabic   string      `json:"nameArabic,omitempty"`
	Type         AccountType `json:"type"`
	ParentID     *int64      `json:"parentId,omitempty"`
	IsActive     bool        `json:"isActive"`
	AllowPosting bool        `json:"allowPosting"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

// JournalEntry captures posting metadata and totals.
type JournalEntry struct {
	ID           int64              `json:"id"`
	JournalNo    string             `json:"journalNo"`
	Reference    string             `json:"reference"`
	Description  string             `json:"description"`
	Date         time.Time          `json:"transactionDate"`
	Currency     string             `json:"currency"`
	ExchangeRate decimal.Decimal    `json:"exchangeRate"`
	TotalDebit   decimal.Decimal    `json:"totalDebit"`
	TotalCredit  decimal.Decimal    `json:"totalCredit"`
	Status       EntryStatus        `json:"status"`
	Source       EntrySource        `json:"source"`
	SourceID     uuid.UUID          `json:"sourceId"`
	CreatedBy    int64              `json:"createdBy"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`
	Lines        []JournalEntryLine `json:"lineItems,omitempty"`
}

// JournalEntryLine stores a debit or credit amount for an account, with the
// base currency equivalents resolved at posting time.
type JournalEntryLine struct {
	ID          int64           `json:"id"`
	EntryID     int64           `json:"entryId"`
	AccountID   int64           `json:"accountId"`
	Description string          `json:"description"`
	Debit       decimal.Decimal `json:"debitAmount"`
	Credit      decimal.Decimal `json:"creditAmount"`
	BaseDebit   decimal.Decimal `json:"baseDebitAmount"`
	BaseCredit  decimal.Decimal `json:"baseCreditAmount"`
	CostCenter  *string         `json:"costCenter,omitempty"`
	Project     *string         `json:"project,omitempty"`
	Dimension1  *string         `json:"dimension1,omitempty"`
	Dimension2  *string         `json:"dimension2,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Transaction is the atomic ledger movement created per entry line.
type Transaction struct {
	ID            int64             `json:"id"`
	TransactionNo string            `json:"transactionNo"`
	Type          TransactionType   `json:"type"`
	AccountID     int64             `json:"accountId"`
	Amount        decimal.Decimal   `json:"amount"`
	Currency      string            `json:"currency"`
	Date          time.Time         `json:"transactionDate"`
	Status        TransactionStatus `json:"status"`
	ReferenceType string            `json:"referenceType"`
	ReferenceID   int64             `json:"referenceId"`
	CreatedAt     time.Time         `json:"createdAt"`
}

// balanceTolerance is the rounding allowance for entry level debit/credit
// equality. Stored sums are exact.
var balanceTolerance = decimal.New(1, -2)

var (
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = errors.New("ledger: journal entry requires at least two lines")
	// ErrEntryNotFound indicates a missing journal entry.
	ErrEntryNotFound = errors.New("ledger: journal entry not found")
	// ErrAccountNotFound indicates a missing account.
	ErrAccountNotFound = errors.New("ledger: account not found")
	// ErrSourceAlreadyLinked indicates the source document was already posted.
	ErrSourceAlreadyLinked = errors.New("ledger: source document already posted")
	// ErrInvalidStatus indicates the requested transition is not allowed.
	ErrInvalidStatus = errors.New("ledger: invalid status transition")
)

// LineError describes one failed invariant on one proposed line.
type LineError struct {
	Line   int    `json:"line"`
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError aggregates every failing line and field of a proposed
// entry. Nothing is written when it is returned.
type ValidationError struct {
	Reasons []LineError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Reasons))
	for _, r := range e.Reasons {
		if r.Line >= 0 {
			parts = append(parts, fmt.Sprintf("line %d: %s %s", r.Line, r.Field, r.Reason))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s %s", r.Field, r.Reason))
	}
	return "ledger: validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(line int, field, reason string) {
	e.Reasons = append(e.Reasons, LineError{Line: line, Field: field, Reason: reason})
}

// ReferenceError reports an unknown, inactive, or non-postable account.
type ReferenceError struct {
	AccountID int64
	Reason    string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("ledger: account %d %s", e.AccountID, e.Reason)
}

// FiscalYear returns the fiscal year that owns a transaction date. Periods
// follow the calendar year.
func FiscalYear(date time.Time) int {
	return date.Year()
}

// FormatDocumentNo renders sequential document numbers such as
// JE-2026-000123 and TXN-2026-000456.
func FormatDocumentNo(prefix string, year int, seq int64) string {
	return fmt.Sprintf("%s-%d-%06d", prefix, year, seq)
}
