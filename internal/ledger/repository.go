package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlas-erp/atlas-erp/internal/platform/db"
)

// Repository encapsulates DB operations for the ledger.
type Repository interface {
	ListEntries(ctx context.Context, limit, offset int) ([]JournalEntry, error)
	GetEntry(ctx context.Context, id int64) (JournalEntry, error)
	// WithTx runs fn inside a serializable transaction. Sequence allocation
	// and entry persistence must share one transaction so a failed post
	// leaves no rows behind.
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a posting transaction.
type TxRepository interface {
	GetPostingAccounts(ctx context.Context, ids []int64) (map[int64]Account, error)
	NextSequence(ctx context.Context, kind string, fiscalYear int) (int64, error)
	InsertEntry(ctx context.Context, entry JournalEntry) (JournalEntry, error)
	InsertLines(ctx context.Context, entryID int64, lines []JournalEntryLine) ([]JournalEntryLine, error)
	InsertTransaction(ctx context.Context, txn Transaction) (Transaction, error)
	LinkSource(ctx context.Context, source EntrySource, sourceID uuid.UUID, entryID int64) error
	GetEntryWithLines(ctx context.Context, id int64) (JournalEntry, error)
	UpdateEntryStatus(ctx context.Context, id int64, status EntryStatus) error
	CompleteEntryTransactions(ctx context.Context, entryID int64) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns the pgx-backed ledger repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const entryColumns = `id, journal_no, reference, description, transaction_date, currency, exchange_rate, total_debit, total_credit, status, source, source_id, created_by, created_at, updated_at`

func scanEntry(row pgx.Row) (JournalEntry, error) {
	var e JournalEntry
	err := row.Scan(&e.ID, &e.JournalNo, &e.Reference, &e.Description, &e.Date, &e.Currency, &e.ExchangeRate,
		&e.TotalDebit, &e.TotalCredit, &e.Status, &e.Source, &e.SourceID, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

func (r *repository) ListEntries(ctx context.Context, limit, offset int) ([]JournalEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.Query(ctx, `SELECT `+entryColumns+` FROM journal_entries ORDER BY id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *repository) GetEntry(ctx context.Context, id int64) (JournalEntry, error) {
	entry, err := scanEntry(r.db.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, ErrEntryNotFound
		}
		return JournalEntry{}, err
	}
	lines, err := r.queryLines(ctx, r.db, id)
	if err != nil {
		return JournalEntry{}, err
	}
	entry.Lines = lines
	return entry, nil
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *repository) queryLines(ctx context.Context, q queryer, entryID int64) ([]JournalEntryLine, error) {
	rows, err := q.Query(ctx, `SELECT id, entry_id, account_id, description, debit_amount, credit_amount, base_debit_amount, base_credit_amount, cost_center, project, dimension1, dimension2, created_at
FROM journal_entry_lines WHERE entry_id=$1 ORDER BY id ASC`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []JournalEntryLine
	for rows.Next() {
		var l JournalEntryLine
		if err := rows.Scan(&l.ID, &l.EntryID, &l.AccountID, &l.Description, &l.Debit, &l.Credit, &l.BaseDebit, &l.BaseCredit,
			&l.CostCenter, &l.Project, &l.Dimension1, &l.Dimension2, &l.CreatedAt); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, pgx.Serializable, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx, parent: r})
	})
}

type txRepository struct {
	tx     pgx.Tx
	parent *repository
}

func (r *txRepository) GetPostingAccounts(ctx context.Context, ids []int64) (map[int64]Account, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, code, name, name_arabic, type, parent_id, is_active, allow_posting, created_at, updated_at
FROM accounts WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	accounts := make(map[int64]Account, len(ids))
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.Code, &a.Name, &a.NameArabic, &a.Type, &a.ParentID, &a.IsActive, &a.AllowPosting, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		accounts[a.ID] = a
	}
	return accounts, rows.Err()
}

// NextSequence increments the per-kind, per-fiscal-year counter row and
// returns the allocated value. The upsert is atomic; concurrent posts block
// on the row instead of computing duplicate numbers.
func (r *txRepository) NextSequence(ctx context.Context, kind string, fiscalYear int) (int64, error) {
	var next int64
	err := r.tx.QueryRow(ctx, `INSERT INTO document_sequences (kind, fiscal_year, next_value)
VALUES ($1, $2, 1)
ON CONFLICT (kind, fiscal_year)
DO UPDATE SET next_value = document_sequences.next_value + 1
RETURNING next_value`, kind, fiscalYear).Scan(&next)
	if err != nil {
		return 0, err
	}
	return next, nil
}

func (r *txRepository) InsertEntry(ctx context.Context, entry JournalEntry) (JournalEntry, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO journal_entries (journal_no, reference, description, transaction_date, currency, exchange_rate, total_debit, total_credit, status, source, source_id, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
RETURNING id, created_at, updated_at`,
		entry.JournalNo, entry.Reference, entry.Description, entry.Date, entry.Currency, entry.ExchangeRate,
		entry.TotalDebit, entry.TotalCredit, entry.Status, entry.Source, entry.SourceID, entry.CreatedBy)
	if err := row.Scan(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

func (r *txRepository) InsertLines(ctx context.Context, entryID int64, lines []JournalEntryLine) ([]JournalEntryLine, error) {
	out := make([]JournalEntryLine, 0, len(lines))
	for _, line := range lines {
		line.EntryID = entryID
		err := r.tx.QueryRow(ctx, `INSERT INTO journal_entry_lines (entry_id, account_id, description, debit_amount, credit_amount, base_debit_amount, base_credit_amount, cost_center, project, dimension1, dimension2)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
RETURNING id, created_at`,
			line.EntryID, line.AccountID, line.Description, line.Debit, line.Credit, line.BaseDebit, line.BaseCredit,
			line.CostCenter, line.Project, line.Dimension1, line.Dimension2).Scan(&line.ID, &line.CreatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, nil
}

func (r *txRepository) InsertTransaction(ctx context.Context, txn Transaction) (Transaction, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO transactions (transaction_no, type, account_id, amount, currency, transaction_date, status, reference_type, reference_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
RETURNING id, created_at`,
		txn.TransactionNo, txn.Type, txn.AccountID, txn.Amount, txn.Currency, txn.Date, txn.Status, txn.ReferenceType, txn.ReferenceID).
		Scan(&txn.ID, &txn.CreatedAt)
	if err != nil {
		return Transaction{}, err
	}
	return txn, nil
}

func (r *txRepository) LinkSource(ctx context.Context, source EntrySource, sourceID uuid.UUID, entryID int64) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO source_links (source, source_id, entry_id) VALUES ($1,$2,$3)`, source, sourceID, entryID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrSourceAlreadyLinked
		}
		return err
	}
	return nil
}

func (r *txRepository) GetEntryWithLines(ctx context.Context, id int64) (JournalEntry, error) {
	entry, err := scanEntry(r.tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, ErrEntryNotFound
		}
		return JournalEntry{}, err
	}
	lines, err := r.parent.queryLines(ctx, r.tx, id)
	if err != nil {
		return JournalEntry{}, err
	}
	entry.Lines = lines
	return entry, nil
}

func (r *txRepository) UpdateEntryStatus(ctx context.Context, id int64, status EntryStatus) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET status=$2, updated_at=NOW() WHERE id=$1`, id, status)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (r *txRepository) CompleteEntryTransactions(ctx context.Context, entryID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE transactions SET status=$1 WHERE reference_type='journal_entry' AND reference_id=$2`, TransactionCompleted, entryID)
	return err
}

// IsTransient reports whether a storage error is safe to retry with backoff.
// Serialization failures and connection problems qualify; constraint
// violations and validation errors never do.
func IsTransient(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01": // serialization failure, deadlock detected
			return true
		}
		return len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08"
	}
	return false
}
