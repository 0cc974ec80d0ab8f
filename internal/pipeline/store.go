package pipeline

import (
	"context"
	"time"

	"paperlens/internal/models"
	"paperlens/internal/providers"
)

// Invoker is the gateway surface the executors need. Satisfied by
// *providers.Gateway.
type Invoker interface {
	Invoke(ctx context.Context, req providers.ModelRequest) (providers.Invocation, error)
}

// The orchestrator depends on narrow store interfaces rather than the
// concrete pgx repositories so tests can run against in-memory fakes.

type DocumentStore interface {
	GetDocument(ctx context.Context, documentID string) (models.Document, error)
	UpdateDocumentStatus(ctx context.Context, documentID, status string) error
	GetClassification(ctx context.Context, documentID string) (models.DomainClassification, error)
	SetDomain(ctx context.Context, documentID string, dc models.DomainClassification) error
	GetFigures(ctx context.Context, documentID string) ([]models.Figure, error)
	AddCost(ctx context.Context, documentID string, delta float64) error
}

type PhaseStore interface {
	InsertResult(ctx context.Context, p models.PhaseResult) (int64, error)
	LatestPerPhase(ctx context.Context, documentID string) ([]models.PhaseResult, error)
}

type LedgerStore interface {
	InsertEntry(ctx context.Context, e models.LedgerEntry) error
	SumMonth(ctx context.Context, now time.Time) (float64, error)
}

type PlanStore interface {
	SavePlan(ctx context.Context, plan models.VisualizationPlan) error
}

type BudgetStore interface {
	MonthlyBudget(ctx context.Context, fallback float64) (float64, error)
}

// TextSource resolves a document's extracted full text by content hash.
// Satisfied by ingest.TextCache.
type TextSource interface {
	Get(hash string) (string, bool, error)
}
