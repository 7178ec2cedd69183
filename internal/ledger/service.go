package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/atlas-erp/atlas-erp/internal/shared"
)

// AuditPort records ledger activity in the audit trail.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ReportInvalidator drops cached reports after the ledger changes.
type ReportInvalidator interface {
	Bump(ctx context.Context) error
}

// PostingObserver counts posting attempts for observability.
type PostingObserver interface {
	ObservePosting(source, outcome string)
}

// Service is the ledger writer. It validates proposed entries and persists
// the entry, its lines, and one transaction per line as a single atomic unit.
type Service struct {
	repo       Repository
	audit      AuditPort
	invalidate ReportInvalidator
	observer   PostingObserver
	logger     *slog.Logger
	now        func() time.Time
}

// NewService constructs the ledger writer.
func NewService(repo Repository, audit AuditPort, invalidate ReportInvalidator, observer PostingObserver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, invalidate: invalidate, observer: observer, logger: logger, now: time.Now}
}

// WithNow overrides the clock, used in tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// List returns recent journal entries.
func (s *Service) List(ctx context.Context, limit, offset int) ([]JournalEntry, error) {
	return s.repo.ListEntries(ctx, limit, offset)
}

// Get returns one journal entry with its lines.
func (s *Service) Get(ctx context.Context, id int64) (JournalEntry, error) {
	return s.repo.GetEntry(ctx, id)
}

// Post validates and persists a proposed journal entry. The entry lands in
// DRAFT status with PENDING transactions; Approve completes them. Validation
// and reference failures reject before any write.
func (s *Service) Post(ctx context.Context, input PostingInput) (JournalEntry, error) {
	if err := input.Validate(); err != nil {
		s.observe(input.Source, "validation_error")
		return JournalEntry{}, err
	}
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inserted, err := s.postTx(ctx, tx, input, EntryStatusDraft, TransactionPending)
		if err != nil {
			return err
		}
		entry = inserted
		return nil
	})
	if err != nil {
		s.observe(input.Source, outcomeFor(err))
		return JournalEntry{}, err
	}
	s.observe(input.Source, "posted")
	s.afterWrite(ctx, input.CreatedBy, "journal.post", entry)
	return entry, nil
}

// postTx runs the posting steps inside an open transaction. Reversals reuse
// it with POSTED/COMPLETED statuses so the offset takes effect immediately.
func (s *Service) postTx(ctx context.Context, tx TxRepository, input PostingInput, entryStatus EntryStatus, txnStatus TransactionStatus) (JournalEntry, error) {
	ids := make([]int64, 0, len(input.Lines))
	seen := make(map[int64]struct{}, len(input.Lines))
	for _, line := range input.Lines {
		if _, ok := seen[line.AccountID]; ok {
			continue
		}
		seen[line.AccountID] = struct{}{}
		ids = append(ids, line.AccountID)
	}
	accounts, err := tx.GetPostingAccounts(ctx, ids)
	if err != nil {
		return JournalEntry{}, err
	}
	for _, id := range ids {
		account, ok := accounts[id]
		if !ok {
			return JournalEntry{}, &ReferenceError{AccountID: id, Reason: "not found"}
		}
		if !account.IsActive {
			return JournalEntry{}, &ReferenceError{AccountID: id, Reason: "is inactive"}
		}
		if !account.AllowPosting {
			return JournalEntry{}, &ReferenceError{AccountID: id, Reason: "does not allow posting"}
		}
	}

	year := FiscalYear(input.Date)
	seq, err := tx.NextSequence(ctx, "JE", year)
	if err != nil {
		return JournalEntry{}, err
	}
	totalDebit, totalCredit := input.Totals()
	entry := JournalEntry{
		JournalNo:    FormatDocumentNo("JE", year, seq),
		Reference:    input.Reference,
		Description:  input.Description,
		Date:         input.Date,
		Currency:     input.Currency,
		ExchangeRate: input.ExchangeRate,
		TotalDebit:   totalDebit,
		TotalCredit:  totalCredit,
		Status:       entryStatus,
		Source:       input.Source,
		SourceID:     input.SourceID,
		CreatedBy:    input.CreatedBy,
	}
	entry, err = tx.InsertEntry(ctx, entry)
	if err != nil {
		return JournalEntry{}, err
	}

	lines := make([]JournalEntryLine, 0, len(input.Lines))
	for _, line := range input.Lines {
		lines = append(lines, JournalEntryLine{
			AccountID:   line.AccountID,
			Description: line.Description,
			Debit:       line.Debit,
			Credit:      line.Credit,
			BaseDebit:   line.Debit.Mul(input.ExchangeRate).Round(2),
			BaseCredit:  line.Credit.Mul(input.ExchangeRate).Round(2),
			CostCenter:  line.CostCenter,
			Project:     line.Project,
			Dimension1:  line.Dimension1,
			Dimension2:  line.Dimension2,
		})
	}
	entry.Lines, err = tx.InsertLines(ctx, entry.ID, lines)
	if err != nil {
		return JournalEntry{}, err
	}

	for _, line := range entry.Lines {
		txnSeq, err := tx.NextSequence(ctx, "TXN", year)
		if err != nil {
			return JournalEntry{}, err
		}
		txnType := TransactionDebit
		amount := line.Debit
		if line.Credit.Sign() > 0 {
			txnType = TransactionCredit
			amount = line.Credit
		}
		if _, err := tx.InsertTransaction(ctx, Transaction{
			TransactionNo: FormatDocumentNo("TXN", year, txnSeq),
			Type:          txnType,
			AccountID:     line.AccountID,
			Amount:        amount,
			Currency:      input.Currency,
			Date:          input.Date,
			Status:        txnStatus,
			ReferenceType: "journal_entry",
			ReferenceID:   entry.ID,
		}); err != nil {
			return JournalEntry{}, err
		}
	}

	if input.SourceID != uuid.Nil {
		if err := tx.LinkSource(ctx, input.Source, input.SourceID, entry.ID); err != nil {
			return JournalEntry{}, err
		}
	}
	return entry, nil
}

// Approve transitions a draft entry to POSTED and completes its
// transactions so they participate in balance computation.
func (s *Service) Approve(ctx context.Context, entryID, actorID int64) (JournalEntry, error) {
	if entryID == 0 {
		return JournalEntry{}, ErrEntryNotFound
	}
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEntryWithLines(ctx, entryID)
		if err != nil {
			return err
		}
		if current.Status != EntryStatusDraft {
			return ErrInvalidStatus
		}
		if err := tx.UpdateEntryStatus(ctx, current.ID, EntryStatusPosted); err != nil {
			return err
		}
		if err := tx.CompleteEntryTransactions(ctx, current.ID); err != nil {
			return err
		}
		current.Status = EntryStatusPosted
		entry = current
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.afterWrite(ctx, actorID, "journal.approve", entry)
	return entry, nil
}

// Reverse posts an offsetting entry for a posted one. Posted entries are
// never mutated; this is the only correction path.
func (s *Service) Reverse(ctx context.Context, input ReverseInput) (JournalEntry, error) {
	if input.EntryID == 0 {
		return JournalEntry{}, ErrEntryNotFound
	}
	var reversal JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		original, err := tx.GetEntryWithLines(ctx, input.EntryID)
		if err != nil {
			return err
		}
		if original.Status != EntryStatusPosted {
			return ErrInvalidStatus
		}
		posting := PostingInput{
			Reference:    original.JournalNo,
			Description:  reversalDescription(input.Description, original.JournalNo),
			Date:         original.Date,
			Currency:     original.Currency,
			ExchangeRate: original.ExchangeRate,
			Source:       SourceSystem,
			SourceID:     uuid.New(),
			CreatedBy:    input.ActorID,
			Lines:        reverseLines(original.Lines),
		}
		inserted, err := s.postTx(ctx, tx, posting, EntryStatusPosted, TransactionCompleted)
		if err != nil {
			return err
		}
		reversal = inserted
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.afterWrite(ctx, input.ActorID, "journal.reverse", reversal)
	return reversal, nil
}

func (s *Service) afterWrite(ctx context.Context, actorID int64, action string, entry JournalEntry) {
	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   action,
			Entity:   "journal_entry",
			EntityID: fmt.Sprintf("%d", entry.ID),
			Meta: map[string]any{
				"journal_no": entry.JournalNo,
				"source":     string(entry.Source),
			},
			At: s.now(),
		}); err != nil {
			s.logger.Warn("audit record", slog.Any("error", err))
		}
	}
	if s.invalidate != nil {
		if err := s.invalidate.Bump(ctx); err != nil {
			s.logger.Warn("report cache bump", slog.Any("error", err))
		}
	}
}

func (s *Service) observe(source EntrySource, outcome string) {
	if s.observer != nil {
		s.observer.ObservePosting(string(source), outcome)
	}
}

func outcomeFor(err error) string {
	var verr *ValidationError
	var rerr *ReferenceError
	switch {
	case errors.As(err, &verr):
		return "validation_error"
	case errors.As(err, &rerr):
		return "reference_error"
	case errors.Is(err, ErrSourceAlreadyLinked):
		return "conflict"
	case IsTransient(err):
		return "storage_transient"
	}
	return "error"
}

func reverseLines(lines []JournalEntryLine) []PostingLineInput {
	out := make([]PostingLineInput, 0, len(lines))
	for _, line := range lines {
		out = append(out, PostingLineInput{
			AccountID:   line.AccountID,
			Description: line.Description,
			Debit:       line.Credit,
			Credit:      line.Debit,
			CostCenter:  line.CostCenter,
			Project:     line.Project,
			Dimension1:  line.Dimension1,
			Dimension2:  line.Dimension2,
		})
	}
	return out
}

func reversalDescription(desc, journalNo string) string {
	if desc != "" {
		return desc
	}
	return "Reversal of " + journalNo
}
