package storage

import (
	"context"
	"fmt"

	"paperlens/internal/models"
)

type PhaseRepo struct {
	db *DB
}

func NewPhaseRepo(db *DB) *PhaseRepo {
	return &PhaseRepo{db: db}
}

// InsertResult appends one phase result row. Rows are never updated;
// a re-run inserts again and readers take the latest per phase.
func (r *PhaseRepo) InsertResult(ctx context.Context, p models.PhaseResult) (int64, error) {
	var id int64
	err := r.db.Pool.QueryRow(ctx, `
INSERT INTO phase_results (document_id, phase, status, payload, model, tokens_in, tokens_out, cost_usd, error_message, started_at, completed_at)
VALUES ($1, $2, $3, $4, NULLIF($5,''), $6, $7, $8, NULLIF($9,''), $10, $11)
RETURNING id`,
		p.DocumentID, p.Phase, p.Status, []byte(p.Payload), p.Model,
		p.TokensIn, p.TokensOut, p.CostUSD, p.ErrorMsg, p.StartedAt, p.CompletedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert phase result: %w", err)
	}
	return id, nil
}

const phaseCols = `id, document_id::text, phase, status, COALESCE(payload, 'null'::jsonb),
       COALESCE(model,''), tokens_in, tokens_out, cost_usd, COALESCE(error_message,''),
       started_at, completed_at`

// LatestPerPhase returns the most recent result row for each phase of a
// document, in pipeline order.
func (r *PhaseRepo) LatestPerPhase(ctx context.Context, documentID string) ([]models.PhaseResult, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT DISTINCT ON (phase) `+phaseCols+`
FROM phase_results
WHERE document_id=$1
ORDER BY phase, completed_at DESC, id DESC`, documentID)
	if err != nil {
		return nil, fmt.Errorf("latest phase results: %w", err)
	}
	defer rows.Close()

	byPhase := make(map[string]models.PhaseResult)
	for rows.Next() {
		var p models.PhaseResult
		var payload []byte
		if err := rows.Scan(&p.ID, &p.DocumentID, &p.Phase, &p.Status, &payload, &p.Model,
			&p.TokensIn, &p.TokensOut, &p.CostUSD, &p.ErrorMsg, &p.StartedAt, &p.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan phase result: %w", err)
		}
		p.Payload = payload
		byPhase[p.Phase] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate phase results: %w", err)
	}

	order := []string{models.PhaseScreening, models.PhaseVisual, models.PhaseRecipe, models.PhaseDeepDive, models.PhaseVisualization}
	out := make([]models.PhaseResult, 0, len(byPhase))
	for _, phase := range order {
		if p, ok := byPhase[phase]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// ListResults returns the full append-only history for a document.
func (r *PhaseRepo) ListResults(ctx context.Context, documentID string) ([]models.PhaseResult, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT `+phaseCols+`
FROM phase_results
WHERE document_id=$1
ORDER BY id`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list phase results: %w", err)
	}
	defer rows.Close()

	out := make([]models.PhaseResult, 0)
	for rows.Next() {
		var p models.PhaseResult
		var payload []byte
		if err := rows.Scan(&p.ID, &p.DocumentID, &p.Phase, &p.Status, &payload, &p.Model,
			&p.TokensIn, &p.TokensOut, &p.CostUSD, &p.ErrorMsg, &p.StartedAt, &p.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan phase result: %w", err)
		}
		p.Payload = payload
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate phase results: %w", err)
	}
	return out, nil
}

// CountResults reports how many phase rows exist for a document. Used by
// tests and the budget-rejection guarantee (no rows created on rejection).
func (r *PhaseRepo) CountResults(ctx context.Context, documentID string) (int, error) {
	var n int
	if err := r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM phase_results WHERE document_id=$1`, documentID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count phase results: %w", err)
	}
	return n, nil
}
