package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"paperlens/internal/models"
)

type VizRepo struct {
	db *DB
}

func NewVizRepo(db *DB) *VizRepo {
	return &VizRepo{db: db}
}

// SavePlan stores the combined plan (targets plus per-target render
// outcomes) as a single row. New runs append; readers take the latest.
func (r *VizRepo) SavePlan(ctx context.Context, plan models.VisualizationPlan) error {
	targets, err := json.Marshal(plan.Targets)
	if err != nil {
		return fmt.Errorf("marshal visualization targets: %w", err)
	}
	_, err = r.db.Pool.Exec(ctx, `
INSERT INTO visualization_plans (document_id, model, targets, planned_at)
VALUES ($1, NULLIF($2,''), $3, $4)`,
		plan.DocumentID, plan.Model, targets, plan.PlannedAt,
	)
	if err != nil {
		return fmt.Errorf("save visualization plan: %w", err)
	}
	return nil
}

func (r *VizRepo) LatestPlan(ctx context.Context, documentID string) (models.VisualizationPlan, error) {
	var plan models.VisualizationPlan
	var targets []byte
	err := r.db.Pool.QueryRow(ctx, `
SELECT document_id::text, COALESCE(model,''), targets, planned_at
FROM visualization_plans
WHERE document_id=$1
ORDER BY planned_at DESC, id DESC
LIMIT 1`, documentID).Scan(&plan.DocumentID, &plan.Model, &targets, &plan.PlannedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.VisualizationPlan{}, ErrNotFound
	}
	if err != nil {
		return models.VisualizationPlan{}, fmt.Errorf("latest visualization plan: %w", err)
	}
	if err := json.Unmarshal(targets, &plan.Targets); err != nil {
		return models.VisualizationPlan{}, fmt.Errorf("decode visualization targets: %w", err)
	}
	return plan, nil
}
