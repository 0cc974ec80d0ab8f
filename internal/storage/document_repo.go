package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"paperlens/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

type DocumentRepo struct {
	db *DB
}

func NewDocumentRepo(db *DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

func (r *DocumentRepo) CreateDocument(ctx context.Context, d models.Document) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO documents (document_id, filename, title, abstract, content_hash, page_count, status)
VALUES ($1, $2, NULLIF($3,''), NULLIF($4,''), $5, $6, $7)`,
		d.DocumentID, d.Filename, d.Title, d.Abstract, d.ContentHash, d.PageCount, d.Status,
	)
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

const documentCols = `document_id::text, filename, COALESCE(title,''), COALESCE(abstract,''),
       content_hash, page_count, status, COALESCE(domain,''), total_cost_usd,
       created_at, updated_at, analyzed_at`

func scanDocument(row pgx.Row) (models.Document, error) {
	var d models.Document
	err := row.Scan(&d.DocumentID, &d.Filename, &d.Title, &d.Abstract, &d.ContentHash,
		&d.PageCount, &d.Status, &d.Domain, &d.TotalCost, &d.CreatedAt, &d.UpdatedAt, &d.AnalyzedAt)
	return d, err
}

func (r *DocumentRepo) GetDocument(ctx context.Context, documentID string) (models.Document, error) {
	d, err := scanDocument(r.db.Pool.QueryRow(ctx,
		`SELECT `+documentCols+` FROM documents WHERE document_id=$1`, documentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Document{}, ErrNotFound
	}
	if err != nil {
		return models.Document{}, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}

// GetByContentHash finds an existing document with the same source bytes so
// re-uploads reuse the cached text instead of creating a duplicate.
func (r *DocumentRepo) GetByContentHash(ctx context.Context, hash string) (models.Document, error) {
	d, err := scanDocument(r.db.Pool.QueryRow(ctx,
		`SELECT `+documentCols+` FROM documents WHERE content_hash=$1 ORDER BY created_at DESC LIMIT 1`, hash))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Document{}, ErrNotFound
	}
	if err != nil {
		return models.Document{}, fmt.Errorf("get document by hash: %w", err)
	}
	return d, nil
}

func (r *DocumentRepo) ListDocuments(ctx context.Context) ([]models.Document, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+documentCols+` FROM documents ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	out := make([]models.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

func (r *DocumentRepo) UpdateDocumentStatus(ctx context.Context, documentID, status string) error {
	var analyzedAt any
	if status == models.DocCompleted || status == models.DocError || status == models.DocCancelled {
		analyzedAt = time.Now().UTC()
	}
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE documents SET status=$2, analyzed_at=COALESCE($3, analyzed_at), updated_at=NOW() WHERE document_id=$1`,
		documentID, status, analyzedAt)
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	return nil
}

// SetParsed records the metadata produced by ingestion.
func (r *DocumentRepo) SetParsed(ctx context.Context, documentID, title, abstract string, pageCount int, figures []models.Figure) error {
	figJSON, err := json.Marshal(figures)
	if err != nil {
		return fmt.Errorf("marshal figures: %w", err)
	}
	_, err = r.db.Pool.Exec(ctx, `
UPDATE documents
SET title=COALESCE(NULLIF($2,''), title),
    abstract=COALESCE(NULLIF($3,''), abstract),
    page_count=$4,
    figures=$5,
    updated_at=NOW()
WHERE document_id=$1`,
		documentID, title, abstract, pageCount, figJSON)
	if err != nil {
		return fmt.Errorf("set parsed metadata: %w", err)
	}
	return nil
}

func (r *DocumentRepo) GetFigures(ctx context.Context, documentID string) ([]models.Figure, error) {
	var raw []byte
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COALESCE(figures, '[]'::jsonb) FROM documents WHERE document_id=$1`, documentID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get figures: %w", err)
	}
	var figures []models.Figure
	if err := json.Unmarshal(raw, &figures); err != nil {
		return nil, fmt.Errorf("decode figures: %w", err)
	}
	return figures, nil
}

// SetDomain stores the classification result and the domain key column used
// for listing and filtering.
func (r *DocumentRepo) SetDomain(ctx context.Context, documentID string, dc models.DomainClassification) error {
	dcJSON, err := json.Marshal(dc)
	if err != nil {
		return fmt.Errorf("marshal classification: %w", err)
	}
	_, err = r.db.Pool.Exec(ctx,
		`UPDATE documents SET domain=$2, classification=$3, updated_at=NOW() WHERE document_id=$1`,
		documentID, dc.Domain, dcJSON)
	if err != nil {
		return fmt.Errorf("set document domain: %w", err)
	}
	return nil
}

func (r *DocumentRepo) GetClassification(ctx context.Context, documentID string) (models.DomainClassification, error) {
	var raw []byte
	err := r.db.Pool.QueryRow(ctx,
		`SELECT classification FROM documents WHERE document_id=$1`, documentID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.DomainClassification{}, ErrNotFound
	}
	if err != nil {
		return models.DomainClassification{}, fmt.Errorf("get classification: %w", err)
	}
	if len(raw) == 0 {
		return models.DomainClassification{}, ErrNotFound
	}
	var dc models.DomainClassification
	if err := json.Unmarshal(raw, &dc); err != nil {
		return models.DomainClassification{}, fmt.Errorf("decode classification: %w", err)
	}
	return dc, nil
}

// AddCost accumulates run spend onto the document row.
func (r *DocumentRepo) AddCost(ctx context.Context, documentID string, delta float64) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE documents SET total_cost_usd = total_cost_usd + $2, updated_at=NOW() WHERE document_id=$1`,
		documentID, delta)
	if err != nil {
		return fmt.Errorf("add document cost: %w", err)
	}
	return nil
}
