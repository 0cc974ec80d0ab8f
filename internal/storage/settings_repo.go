package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
)

// SettingMonthlyBudget holds the monthly spend limit in USD as a string.
const SettingMonthlyBudget = "monthly_budget_usd"

type SettingsRepo struct {
	db *DB
}

func NewSettingsRepo(db *DB) *SettingsRepo {
	return &SettingsRepo{db: db}
}

func (r *SettingsRepo) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.Pool.QueryRow(ctx,
		`SELECT value FROM settings WHERE key=$1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get setting: %w", err)
	}
	return value, nil
}

func (r *SettingsRepo) Set(ctx context.Context, key, value string) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO settings (key, value)
VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		key, value)
	if err != nil {
		return fmt.Errorf("set setting: %w", err)
	}
	return nil
}

// MonthlyBudget returns the stored budget, or fallback when unset.
func (r *SettingsRepo) MonthlyBudget(ctx context.Context, fallback float64) (float64, error) {
	raw, err := r.Get(ctx, SettingMonthlyBudget)
	if errors.Is(err, ErrNotFound) {
		return fallback, nil
	}
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse monthly budget %q: %w", raw, err)
	}
	return v, nil
}

func (r *SettingsRepo) SetMonthlyBudget(ctx context.Context, limit float64) error {
	return r.Set(ctx, SettingMonthlyBudget, strconv.FormatFloat(limit, 'f', -1, 64))
}
