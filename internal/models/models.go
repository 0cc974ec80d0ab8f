package models

import (
	"encoding/json"
	"time"
)

// Phase names for the five analysis stages, in pipeline order.
const (
	PhaseScreening     = "screening"
	PhaseVisual        = "visual"
	PhaseRecipe        = "recipe"
	PhaseDeepDive      = "deep_dive"
	PhaseVisualization = "visualization"
)

// Phase and run statuses.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusError     = "error"
	StatusCancelled = "cancelled"
)

// Document lifecycle statuses.
const (
	DocPending   = "pending"
	DocAnalyzing = "analyzing"
	DocCompleted = "completed"
	DocError     = "error"
	DocCancelled = "cancelled"
)

type Document struct {
	DocumentID  string     `json:"document_id"`
	Filename    string     `json:"filename"`
	Title       string     `json:"title,omitempty"`
	Abstract    string     `json:"abstract,omitempty"`
	ContentHash string     `json:"content_hash"`
	PageCount   int        `json:"page_count"`
	Status      string     `json:"status"`
	Domain      string     `json:"domain,omitempty"`
	TotalCost   float64    `json:"total_cost_usd"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	AnalyzedAt  *time.Time `json:"analyzed_at,omitempty"`
}

// Figure is a caption-level reference extracted at ingest time. The pipeline
// feeds these to the visual phase; it never re-renders page images itself.
type Figure struct {
	FigureID string `json:"figure_id"`
	Page     int    `json:"page"`
	Caption  string `json:"caption,omitempty"`
}

// DomainClassification selection methods.
const (
	MethodKeyword  = "keyword"
	MethodSemantic = "semantic"
	MethodManual   = "manual"
)

type DomainClassification struct {
	Domain            string             `json:"domain"`
	DisplayName       string             `json:"display_name"`
	Profile           string             `json:"profile"`
	Confidence        float64            `json:"confidence"`
	Method            string             `json:"method"`
	NeedsConfirmation bool               `json:"needs_confirmation"`
	KeywordMatches    []string           `json:"keyword_matches,omitempty"`
	AllScores         map[string]float64 `json:"all_scores,omitempty"`
	Reasoning         string             `json:"reasoning,omitempty"`
}

// PhaseResult is one persisted row per phase invocation. Rows are append
// only: a re-run inserts a fresh row, it never rewrites a completed one.
type PhaseResult struct {
	ID          int64           `json:"id"`
	DocumentID  string          `json:"document_id"`
	Phase       string          `json:"phase"`
	Status      string          `json:"status"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Model       string          `json:"model,omitempty"`
	TokensIn    int             `json:"tokens_in"`
	TokensOut   int             `json:"tokens_out"`
	CostUSD     float64         `json:"cost_usd"`
	ErrorMsg    string          `json:"error_message,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt time.Time       `json:"completed_at"`
}

// LedgerEntry is one append-only provider usage record. Monthly spend is
// always derived by summing entries over a date range.
type LedgerEntry struct {
	ID         int64     `json:"id"`
	DocumentID string    `json:"document_id"`
	Phase      string    `json:"phase"`
	Model      string    `json:"model"`
	TokensIn   int       `json:"tokens_in"`
	TokensOut  int       `json:"tokens_out"`
	CostUSD    float64   `json:"cost_usd"`
	CreatedAt  time.Time `json:"created_at"`
}

// Render target kinds.
const (
	KindDiagram      = "structural-diagram"
	KindIllustration = "illustrative-image"
)

type DiagramNode struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Detail string `json:"detail,omitempty"`
}

type DiagramEdge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label,omitempty"`
}

type SourceRef struct {
	Page    *int   `json:"page,omitempty"`
	Section string `json:"section,omitempty"`
}

// VisualizationTarget is one planned diagram or illustration. Render results
// are appended onto the target before the combined plan is persisted.
type VisualizationTarget struct {
	Kind        string        `json:"kind"`
	Category    string        `json:"category"`
	DiagramType string        `json:"diagram_type,omitempty"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Nodes       []DiagramNode `json:"nodes,omitempty"`
	Edges       []DiagramEdge `json:"edges,omitempty"`
	Source      SourceRef     `json:"source"`

	// Filled in by the render adapters.
	Status      string `json:"status,omitempty"`
	DiagramCode string `json:"diagram_code,omitempty"`
	ImagePath   string `json:"image_path,omitempty"`
	ErrorMsg    string `json:"error_message,omitempty"`
}

// VisualizationPlan is the combined result stored once per run.
type VisualizationPlan struct {
	DocumentID string                `json:"document_id"`
	Model      string                `json:"model"`
	Targets    []VisualizationTarget `json:"targets"`
	PlannedAt  time.Time             `json:"planned_at"`
}
