package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"paperlens/internal/domains"
	"paperlens/internal/models"
	"paperlens/internal/render"
	"paperlens/internal/sections"
	"paperlens/internal/storage"
	"paperlens/internal/viz"
)

// Start outcomes.
const (
	StartAccepted       = "accepted"
	StartConflict       = "conflict"
	StartBudgetExceeded = "budget_exceeded"
	StartNotFound       = "not_found"
)

// StartOutcome reports the admission decision. Spend and limit are filled
// on every outcome so budget rejections can show both figures.
type StartOutcome struct {
	Code     string  `json:"code"`
	SpendUSD float64 `json:"spend_usd"`
	LimitUSD float64 `json:"limit_usd"`
}

// Models names the model used per phase.
type Models struct {
	Screening string
	Recipe    string
	DeepDive  string
}

// Deps wires the orchestrator to its collaborators.
type Deps struct {
	Registry  *Registry
	Gateway   Invoker
	Domains   *domains.Router
	Viz       *viz.Router
	Renderers []render.Renderer

	Docs   DocumentStore
	Phases PhaseStore
	Ledger LedgerStore
	Plans  PlanStore
	Budget BudgetStore
	Texts  TextSource

	Models            Models
	BudgetFallbackUSD float64
	DataRoot          string
	Log               *logrus.Logger
}

// Pipeline is the orchestrator root: run registration, budget admission,
// phase sequencing, cooperative cancellation and terminal-state persistence.
type Pipeline struct {
	registry  *Registry
	gateway   Invoker
	domains   *domains.Router
	viz       *viz.Router
	renderers []render.Renderer

	docs   DocumentStore
	phases PhaseStore
	ledger LedgerStore
	plans  PlanStore
	budget BudgetStore
	texts  TextSource

	models         Models
	budgetFallback float64
	dataRoot       string
	log            *logrus.Logger
}

func New(d Deps) *Pipeline {
	if d.Registry == nil {
		d.Registry = NewRegistry(time.Hour)
	}
	if d.Log == nil {
		d.Log = logrus.New()
	}
	return &Pipeline{
		registry:       d.Registry,
		gateway:        d.Gateway,
		domains:        d.Domains,
		viz:            d.Viz,
		renderers:      d.Renderers,
		docs:           d.Docs,
		phases:         d.Phases,
		ledger:         d.Ledger,
		plans:          d.Plans,
		budget:         d.Budget,
		texts:          d.Texts,
		models:         d.Models,
		budgetFallback: d.BudgetFallbackUSD,
		dataRoot:       d.DataRoot,
		log:            d.Log,
	}
}

// Start admits and launches a run for the document. The pipeline itself
// executes on a background goroutine; callers observe it through Status.
func (p *Pipeline) Start(ctx context.Context, documentID string) (StartOutcome, error) {
	doc, err := p.docs.GetDocument(ctx, documentID)
	if errors.Is(err, storage.ErrNotFound) {
		return StartOutcome{Code: StartNotFound}, nil
	}
	if err != nil {
		return StartOutcome{}, err
	}

	limit, err := p.budget.MonthlyBudget(ctx, p.budgetFallback)
	if err != nil {
		return StartOutcome{}, err
	}
	spend, err := p.ledger.SumMonth(ctx, time.Now().UTC())
	if err != nil {
		return StartOutcome{}, err
	}
	if limit > 0 && spend >= limit {
		p.log.WithFields(logrus.Fields{
			"spend_usd": spend,
			"limit_usd": limit,
		}).Warn("monthly budget exhausted, run rejected")
		return StartOutcome{Code: StartBudgetExceeded, SpendUSD: spend, LimitUSD: limit}, nil
	}

	run, err := p.registry.Begin(documentID)
	if errors.Is(err, ErrConflict) {
		return StartOutcome{Code: StartConflict, SpendUSD: spend, LimitUSD: limit}, nil
	}
	if err != nil {
		return StartOutcome{}, err
	}

	go p.execute(run, doc)
	return StartOutcome{Code: StartAccepted, SpendUSD: spend, LimitUSD: limit}, nil
}

// Cancel flags the document's run. It reports whether a run existed.
func (p *Pipeline) Cancel(documentID string) bool {
	return p.registry.Cancel(documentID)
}

// Status returns the in-memory snapshot for a recent or active run.
func (p *Pipeline) Status(documentID string) (Snapshot, bool) {
	run, ok := p.registry.Get(documentID)
	if !ok {
		return Snapshot{}, false
	}
	return run.Snapshot(), true
}

func (p *Pipeline) execute(run *Run, doc models.Document) {
	ctx := context.Background()
	defer func() {
		if rec := recover(); rec != nil {
			p.log.WithField("document", doc.DocumentID).
				WithField("panic", rec).Error("pipeline aborted unexpectedly")
			p.terminate(ctx, run, doc, models.StatusError, models.DocError)
		}
	}()

	if err := p.docs.UpdateDocumentStatus(ctx, doc.DocumentID, models.DocAnalyzing); err != nil {
		p.log.WithError(err).Error("mark document analyzing")
	}

	text, ok, err := p.texts.Get(doc.ContentHash)
	if err != nil || !ok {
		p.log.WithError(err).WithField("document", doc.DocumentID).
			Error("extracted text unavailable")
		p.terminate(ctx, run, doc, models.StatusError, models.DocError)
		return
	}
	secs := sections.Split(text)
	profile := p.resolveProfile(ctx, doc)

	if p.checkCancel(ctx, run, doc) {
		return
	}

	// Screening and Visual are independent of each other; run them
	// concurrently and merge their disjoint results after the gather.
	var screening, visual models.PhaseResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		screening = p.runScreening(gctx, run, doc, secs, profile)
		return nil
	})
	g.Go(func() error {
		visual = p.runVisual(gctx, run, doc, secs, profile)
		return nil
	})
	_ = g.Wait()

	if p.checkCancel(ctx, run, doc) {
		return
	}
	recipe := p.runRecipe(ctx, run, doc, secs, profile)

	if p.checkCancel(ctx, run, doc) {
		return
	}
	deepDive := p.runDeepDive(ctx, run, doc, secs, profile,
		[]models.PhaseResult{screening, visual, recipe})

	if p.checkCancel(ctx, run, doc) {
		return
	}
	vizResult := p.runVisualization(ctx, run, doc, recipe, deepDive)

	// A run errors only when every phase failed; one surviving phase is
	// enough to keep the result reportable.
	anyCompleted := false
	for _, pr := range []models.PhaseResult{screening, visual, recipe, deepDive, vizResult} {
		if pr.Status == models.StatusCompleted {
			anyCompleted = true
			break
		}
	}
	if anyCompleted {
		p.terminate(ctx, run, doc, models.StatusCompleted, models.DocCompleted)
	} else {
		p.terminate(ctx, run, doc, models.StatusError, models.DocError)
	}
}

// checkCancel is the phase boundary: once the flag is observed, remaining
// phases never execute and the run goes terminal as cancelled.
func (p *Pipeline) checkCancel(ctx context.Context, run *Run, doc models.Document) bool {
	if !run.Cancelled() {
		return false
	}
	p.log.WithField("document", doc.DocumentID).Info("run cancelled at phase boundary")
	p.terminate(ctx, run, doc, models.StatusCancelled, models.DocCancelled)
	return true
}

func (p *Pipeline) terminate(ctx context.Context, run *Run, doc models.Document, runStatus, docStatus string) {
	run.finish(runStatus)
	if err := p.docs.UpdateDocumentStatus(ctx, doc.DocumentID, docStatus); err != nil {
		p.log.WithError(err).Error("persist terminal document status")
	}
	p.registry.ScheduleEviction(doc.DocumentID, run)
	p.log.WithFields(logrus.Fields{
		"document": doc.DocumentID,
		"status":   runStatus,
		"cost_usd": run.Snapshot().CostUSD,
	}).Info("run finished")
}

// resolveProfile reuses a stored classification when one exists and
// classifies (and persists) otherwise. Classification failures fall back
// to the generalist profile rather than blocking the run.
func (p *Pipeline) resolveProfile(ctx context.Context, doc models.Document) *domains.Profile {
	dc, err := p.docs.GetClassification(ctx, doc.DocumentID)
	if err == nil && dc.Domain != "" {
		return domains.NewProfile(dc.Domain, nil)
	}
	if p.domains == nil {
		return domains.NewProfile(domains.Unknown, nil)
	}
	dc, err = p.domains.Classify(ctx, doc.Title, doc.Abstract)
	if err != nil {
		p.log.WithError(err).Warn("domain classification failed, using generalist profile")
		return domains.NewProfile(domains.Unknown, nil)
	}
	if err := p.docs.SetDomain(ctx, doc.DocumentID, dc); err != nil {
		p.log.WithError(err).Warn("persist domain classification")
	}
	return domains.NewProfile(dc.Domain, nil)
}
