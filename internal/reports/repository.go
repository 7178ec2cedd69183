package reports

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlas-erp/atlas-erp/internal/platform/db"
)

// Repository reads aggregated balances and persists snapshots.
type Repository interface {
	FetchAccountBalances(ctx context.Context, query BalanceQuery) ([]AccountBalance, error)
	SaveSnapshot(ctx context.Context, snapshot Snapshot) (Snapshot, error)
	GetSnapshot(ctx context.Context, id uuid.UUID) (Snapshot, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

// FetchAccountBalances aggregates completed transactions per account in one
// grouped query. Date windows are bound as parameters; no SQL is built from
// request fields.
func (r *repository) FetchAccountBalances(ctx context.Context, query BalanceQuery) ([]AccountBalance, error) {
	rows, err := r.db.Query(ctx, `SELECT a.id, a.code, a.name, a.type,
	COALESCE(SUM(CASE WHEN t.transaction_date < $2 AND t.type = 'DEBIT' THEN t.amount END), 0) AS opening_debit,
	COALESCE(SUM(CASE WHEN t.transaction_date < $2 AND t.type = 'CREDIT' THEN t.amount END), 0) AS opening_credit,
	COALESCE(SUM(CASE WHEN t.transaction_date >= $2 AND t.type = 'DEBIT' THEN t.amount END), 0) AS period_debit,
	COALESCE(SUM(CASE WHEN t.transaction_date >= $2 AND t.type = 'CREDIT' THEN t.amount END), 0) AS period_credit
FROM accounts a
LEFT JOIN transactions t
	ON t.account_id = a.id
	AND t.status = 'COMPLETED'
	AND t.currency = $1
	AND t.transaction_date <= $3
WHERE a.is_active
GROUP BY a.id, a.code, a.name, a.type
ORDER BY a.code`, query.Currency, query.PeriodStart(), query.AsOfDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var balances []AccountBalance
	for rows.Next() {
		var b AccountBalance
		if err := rows.Scan(&b.AccountID, &b.Code, &b.Name, &b.Type,
			&b.OpeningDebit, &b.OpeningCredit, &b.DebitMovements, &b.CreditMovements); err != nil {
			return nil, err
		}
		balances = append(balances, b)
	}
	return balances, rows.Err()
}

// SaveSnapshot persists the header and items inside one transaction so a
// cancelled request cannot leave a partial snapshot.
func (r *repository) SaveSnapshot(ctx context.Context, snapshot Snapshot) (Snapshot, error) {
	if snapshot.ID == uuid.Nil {
		snapshot.ID = uuid.New()
	}
	err := db.WithTx(ctx, r.db, pgx.RepeatableRead, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `INSERT INTO trial_balances (id, name, period, as_of_date, currency, total_debits, total_credits, is_balanced)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING created_at`,
			snapshot.ID, snapshot.Name, snapshot.Period, snapshot.AsOfDate, snapshot.Currency,
			snapshot.TotalDebits, snapshot.TotalCredits, snapshot.IsBalanced).Scan(&snapshot.CreatedAt)
		if err != nil {
			return err
		}
		for _, item := range snapshot.Items {
			if _, err := tx.Exec(ctx, `INSERT INTO trial_balance_items (trial_balance_id, account_code, account_name, account_type, opening_balance, debit_movements, credit_movements, closing_balance)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
				snapshot.ID, item.AccountCode, item.AccountName, item.AccountType,
				item.OpeningBalance, item.DebitMovements, item.CreditMovements, item.ClosingBalance); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	return snapshot, nil
}

func (r *repository) GetSnapshot(ctx context.Context, id uuid.UUID) (Snapshot, error) {
	var snapshot Snapshot
	err := r.db.QueryRow(ctx, `SELECT id, name, period, as_of_date, currency, total_debits, total_credits, is_balanced, created_at
FROM trial_balances WHERE id=$1`, id).
		Scan(&snapshot.ID, &snapshot.Name, &snapshot.Period, &snapshot.AsOfDate, &snapshot.Currency,
			&snapshot.TotalDebits, &snapshot.TotalCredits, &snapshot.IsBalanced, &snapshot.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Snapshot{}, ErrSnapshotNotFound
		}
		return Snapshot{}, err
	}
	rows, err := r.db.Query(ctx, `SELECT account_code, account_name, account_type, opening_balance, debit_movements, credit_movements, closing_balance
FROM trial_balance_items WHERE trial_balance_id=$1 ORDER BY account_code`, id)
	if err != nil {
		return Snapshot{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var item SnapshotItem
		if err := rows.Scan(&item.AccountCode, &item.AccountName, &item.AccountType,
			&item.OpeningBalance, &item.DebitMovements, &item.CreditMovements, &item.ClosingBalance); err != nil {
			return Snapshot{}, err
		}
		snapshot.Items = append(snapshot.Items, item)
	}
	return snapshot, rows.Err()
}
