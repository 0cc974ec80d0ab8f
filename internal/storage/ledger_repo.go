package storage

import (
	"context"
	"fmt"
	"time"

	"paperlens/internal/models"
)

type LedgerRepo struct {
	db *DB
}

func NewLedgerRepo(db *DB) *LedgerRepo {
	return &LedgerRepo{db: db}
}

func (r *LedgerRepo) InsertEntry(ctx context.Context, e models.LedgerEntry) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO cost_ledger (document_id, phase, model, tokens_in, tokens_out, cost_usd)
VALUES ($1, $2, $3, $4, $5, $6)`,
		e.DocumentID, e.Phase, e.Model, e.TokensIn, e.TokensOut, e.CostUSD,
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// SumRange totals spend in [from, to). The ledger is the source of truth
// for budget admission; the figure is always derived, never cached.
func (r *LedgerRepo) SumRange(ctx context.Context, from, to time.Time) (float64, error) {
	var total float64
	err := r.db.Pool.QueryRow(ctx, `
SELECT COALESCE(SUM(cost_usd), 0)
FROM cost_ledger
WHERE created_at >= $1 AND created_at < $2`, from, to).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum ledger range: %w", err)
	}
	return total, nil
}

// SumMonth totals spend for the calendar month containing now.
func (r *LedgerRepo) SumMonth(ctx context.Context, now time.Time) (float64, error) {
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return r.SumRange(ctx, from, from.AddDate(0, 1, 0))
}

func (r *LedgerRepo) ListEntries(ctx context.Context, documentID string) ([]models.LedgerEntry, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT id, document_id::text, phase, model, tokens_in, tokens_out, cost_usd, created_at
FROM cost_ledger
WHERE document_id=$1
ORDER BY id`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	out := make([]models.LedgerEntry, 0)
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(&e.ID, &e.DocumentID, &e.Phase, &e.Model, &e.TokensIn, &e.TokensOut, &e.CostUSD, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
