package accounts

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlas-erp/atlas-erp/internal/ledger"
)

// Repository reads chart of accounts reference data.
type Repository interface {
	List(ctx context.Context, activeOnly bool) ([]ledger.Account, error)
	GetByCode(ctx context.Context, code string) (ledger.Account, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const accountColumns = `id, code, name, name_arabic, type, parent_id, is_active, allow_posting, created_at, updated_at`

func scanAccount(row pgx.Row) (ledger.Account, error) {
	var a ledger.Account
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.NameArabic, &a.Type, &a.ParentID, &a.IsActive, &a.AllowPosting, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *repository) List(ctx context.Context, activeOnly bool) ([]ledger.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY code`
	if activeOnly {
		query = `SELECT ` + accountColumns + ` FROM accounts WHERE is_active ORDER BY code`
	}
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []ledger.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *repository) GetByCode(ctx context.Context, code string) (ledger.Account, error) {
	a, err := scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE code=$1`, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.Account{}, ledger.ErrAccountNotFound
		}
		return ledger.Account{}, err
	}
	return a, nil
}
