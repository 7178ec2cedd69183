package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PostingLineInput describes one proposed journal line.
type PostingLineInput struct {
	AccountID   int64
	Description string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	CostCenter  *string
	Project     *string
	Dimension1  *string
	Dimension2  *string
}

// PostingInput groups fields required to create a journal entry.
type PostingInput struct {
	Reference    string
	Description  string
	Date         time.Time
	Currency     string
	ExchangeRate decimal.Decimal
	Source       EntrySource
	SourceID     uuid.UUID
	CreatedBy    int64
	Lines        []PostingLineInput
}

// Validate checks every line-level invariant and the entry balance. All
// failures are collected so callers can fix and resubmit in one pass.
func (in PostingInput) Validate() error {
	verr := &ValidationError{}
	if in.Date.IsZero() {
		verr.add(-1, "transactionDate", "is required")
	}
	if in.Currency == "" {
		verr.add(-1, "currency", "is required")
	}
	if in.ExchangeRate.Sign() <= 0 {
		verr.add(-1, "exchangeRate", "must be positive")
	}
	switch in.Source {
	case SourceManual, SourceRecurring, SourceSystem:
	default:
		verr.add(-1, "source", "must be manual, recurring, or system")
	}
	if len(in.Lines) < 2 {
		verr.add(-1, "lineItems", "at least two lines required")
		return verr
	}

	var debit, credit decimal.Decimal
	for idx, line := range in.Lines {
		if line.AccountID == 0 {
			verr.add(idx, "accountId", "is required")
		}
		if line.Debit.Sign() < 0 || line.Credit.Sign() < 0 {
			verr.add(idx, "amount", "must not be negative")
		}
		hasDebit := line.Debit.Sign() > 0
		hasCredit := line.Credit.Sign() > 0
		if hasDebit && hasCredit {
			verr.add(idx, "amount", "cannot carry both debit and credit")
		}
		if !hasDebit && !hasCredit {
			verr.add(idx, "amount", "must carry a debit or a credit")
		}
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	if debit.Sub(credit).Abs().Cmp(balanceTolerance) > 0 {
		verr.add(-1, "total", "debits "+debit.String()+" do not equal credits "+credit.String())
	}
	if len(verr.Reasons) > 0 {
		return verr
	}
	return nil
}

// Totals returns the summed debit and credit across all lines.
func (in PostingInput) Totals() (debit, credit decimal.Decimal) {
	for _, line := range in.Lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	return debit, credit
}

// ReverseInput wraps parameters for posting an offsetting entry. Posted
// entries are never edited; corrections happen through reversals.
type ReverseInput struct {
	EntryID     int64
	ActorID     int64
	Description string
}

// postLineRequest is the wire shape of one line on the write API.
type postLineRequest struct {
	AccountID    int64           `json:"accountId" validate:"required"`
	Description  string          `json:"description"`
	DebitAmount  decimal.Decimal `json:"debitAmount"`
	CreditAmount decimal.Decimal `json:"creditAmount"`
	CostCenter   *string         `json:"costCenter,omitempty"`
	Project      *string         `json:"project,omitempty"`
	Dimension1   *string         `json:"dimension1,omitempty"`
	Dimension2   *string         `json:"dimension2,omitempty"`
}

// postEntryRequest is the wire shape of the ledger write API.
type postEntryRequest struct {
	Reference       string            `json:"reference"`
	Description     string            `json:"description"`
	TransactionDate string            `json:"transactionDate" validate:"required"`
	Currency        string            `json:"currency" validate:"required,len=3"`
	ExchangeRate    decimal.Decimal   `json:"exchangeRate"`
	Source          string            `json:"source" validate:"omitempty,oneof=manual recurring system"`
	SourceID        string            `json:"sourceId"`
	LineItems       []postLineRequest `json:"lineItems" validate:"required,min=2,dive"`
}

// postEntryResponse is returned after a successful post.
type postEntryResponse struct {
	JournalNo   string          `json:"journalNo"`
	TotalDebit  decimal.Decimal `json:"totalDebit"`
	TotalCredit decimal.Decimal `json:"totalCredit"`
	Status      EntryStatus     `json:"status"`
}

func (req postEntryRequest) toPostingInput() (PostingInput, error) {
	date, err := time.Parse("2006-01-02", req.TransactionDate)
	if err != nil {
		return PostingInput{}, &ValidationError{Reasons: []LineError{{Line: -1, Field: "transactionDate", Reason: "must be YYYY-MM-DD"}}}
	}
	source := EntrySource(req.Source)
	if req.Source == "" {
		source = SourceManual
	}
	sourceID := uuid.Nil
	if req.SourceID != "" {
		sourceID, err = uuid.Parse(req.SourceID)
		if err != nil {
			return PostingInput{}, &ValidationError{Reasons: []LineError{{Line: -1, Field: "sourceId", Reason: "must be a UUID"}}}
		}
	}
	rate := req.ExchangeRate
	if rate.IsZero() {
		rate = decimal.NewFromInt(1)
	}
	in := PostingInput{
		Reference:    req.Reference,
		Description:  req.Description,
		Date:         date,
		Currency:     req.Currency,
		ExchangeRate: rate,
		Source:       source,
		SourceID:     sourceID,
		Lines:        make([]PostingLineInput, 0, len(req.LineItems)),
	}
	for _, line := range req.LineItems {
		in.Lines = append(in.Lines, PostingLineInput{
			AccountID:   line.AccountID,
			Description: line.Description,
			Debit:       line.DebitAmount,
			Credit:      line.CreditAmount,
			CostCenter:  line.CostCenter,
			Project:     line.Project,
			Dimension1:  line.Dimension1,
			Dimension2:  line.Dimension2,
		})
	}
	return in, nil
}
