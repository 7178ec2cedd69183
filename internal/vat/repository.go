package vat

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads tax records for reporting.
type Repository interface {
	ListRecords(ctx context.Context, from, to time.Time) ([]Record, error)
}

type pgRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

const recordColumns = `id, type, amount, vat_amount, vat_rate, period, date, description, status, created_at`

func (r *pgRepository) ListRecords(ctx context.Context, from, to time.Time) ([]Record, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s
		FROM vat_records
		WHERE status = 'ACTIVE' AND date >= $1 AND date <= $2
		ORDER BY date, id`, recordColumns), from, to)
	if err != nil {
		return nil, fmt.Errorf("vat: list records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(
			&rec.ID, &rec.Type, &rec.Amount, &rec.VATAmount, &rec.VATRate,
			&rec.Period, &rec.Date, &rec.Description, &rec.Status, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("vat: scan record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
