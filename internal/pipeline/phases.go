package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"paperlens/internal/domains"
	"paperlens/internal/models"
	"paperlens/internal/providers"
	"paperlens/internal/render"
	"paperlens/internal/sections"
)

const maxPhaseInputChars = 24000

func (p *Pipeline) runScreening(ctx context.Context, run *Run, doc models.Document, secs map[string]string, profile *domains.Profile) models.PhaseResult {
	input := sections.ScreeningInput(secs)
	prompt := "Screen the following paper excerpts and respond with the requested JSON.\n\n" + truncate(input, maxPhaseInputChars)
	return p.executePhase(ctx, run, doc, models.PhaseScreening, p.models.Screening, profile.Prompt(models.PhaseScreening), prompt)
}

func (p *Pipeline) runVisual(ctx context.Context, run *Run, doc models.Document, secs map[string]string, profile *domains.Profile) models.PhaseResult {
	var b strings.Builder
	figures, err := p.docs.GetFigures(ctx, doc.DocumentID)
	if err != nil {
		p.log.WithError(err).Warn("load figures for visual phase")
	}
	if len(figures) > 0 {
		b.WriteString("Figure captions extracted from the paper:\n")
		for _, f := range figures {
			fmt.Fprintf(&b, "- %s (page %d): %s\n", f.FigureID, f.Page, f.Caption)
		}
		b.WriteString("\n")
	}
	b.WriteString("Relevant sections:\n\n")
	b.WriteString(sections.VisualInput(secs))

	prompt := "Assess the figures and visual evidence in this paper and respond with the requested JSON.\n\n" + truncate(b.String(), maxPhaseInputChars)
	return p.executePhase(ctx, run, doc, models.PhaseVisual, p.models.Screening, profile.Prompt(models.PhaseVisual), prompt)
}

func (p *Pipeline) runRecipe(ctx context.Context, run *Run, doc models.Document, secs map[string]string, profile *domains.Profile) models.PhaseResult {
	var b strings.Builder
	b.WriteString("Extract the complete experimental recipe from the method text below and respond with the requested JSON.\n")
	if params := profile.RecipeParameters(); len(params) > 0 {
		b.WriteString("Capture these parameters when present: " + strings.Join(params, ", ") + "\n")
	}
	b.WriteString("\n")
	b.WriteString(truncate(sections.RecipeInput(secs), maxPhaseInputChars))
	return p.executePhase(ctx, run, doc, models.PhaseRecipe, p.models.Recipe, profile.Prompt(models.PhaseRecipe), b.String())
}

// runDeepDive feeds the critical-review model the outputs of every prior
// phase that both completed and produced parseable JSON. Failed or
// fallback payloads are excluded from the context, not retried into it.
func (p *Pipeline) runDeepDive(ctx context.Context, run *Run, doc models.Document, secs map[string]string, profile *domains.Profile, prior []models.PhaseResult) models.PhaseResult {
	var b strings.Builder
	for _, pr := range prior {
		if pr.Status != models.StatusCompleted || len(pr.Payload) == 0 || providers.IsFallbackPayload(pr.Payload) {
			continue
		}
		fmt.Fprintf(&b, "=== %s RESULT ===\n%s\n\n", strings.ToUpper(pr.Phase), string(pr.Payload))
	}
	b.WriteString("=== PAPER TEXT ===\n")
	b.WriteString(truncate(sections.DeepDiveInput(secs), maxPhaseInputChars))

	prompt := "Write a critical deep-dive review of this paper using the prior analysis results and the text below. Respond with the requested JSON.\n\n" + b.String()
	return p.executePhase(ctx, run, doc, models.PhaseDeepDive, p.models.DeepDive, profile.Prompt(models.PhaseDeepDive), prompt)
}

// executePhase is the shared model-phase path: one gateway call, fence
// stripping with a fallback payload on unparseable JSON, one appended
// PhaseResult row, ledger and run accounting.
func (p *Pipeline) executePhase(ctx context.Context, run *Run, doc models.Document, phase, model, system, prompt string) models.PhaseResult {
	run.setPhase(phase, models.StatusRunning, "", 0)
	res := models.PhaseResult{
		DocumentID: doc.DocumentID,
		Phase:      phase,
		Model:      model,
		StartedAt:  time.Now().UTC(),
	}

	inv, err := p.gateway.Invoke(ctx, providers.ModelRequest{
		Model:        model,
		SystemPrompt: system,
		Prompt:       prompt,
		Temperature:  0.2,
		MaxTokens:    8192,
		JSONResponse: true,
	})
	res.CompletedAt = time.Now().UTC()
	if err != nil {
		res.Status = models.StatusError
		res.ErrorMsg = err.Error()
	} else {
		// Unparseable output degrades to a fallback payload, never an
		// errored phase.
		payload, _ := providers.DecodePayload(inv.Text)
		res.Status = models.StatusCompleted
		res.Payload = payload
		res.Model = inv.Model
		res.TokensIn = inv.TokensIn
		res.TokensOut = inv.TokensOut
		res.CostUSD = inv.CostUSD
	}
	p.persistPhase(ctx, run, &res)
	return res
}

func (p *Pipeline) runVisualization(ctx context.Context, run *Run, doc models.Document, recipe, deepDive models.PhaseResult) models.PhaseResult {
	run.setPhase(models.PhaseVisualization, models.StatusRunning, "", 0)
	res := models.PhaseResult{
		DocumentID: doc.DocumentID,
		Phase:      models.PhaseVisualization,
		StartedAt:  time.Now().UTC(),
	}

	recipePayload := usablePayload(recipe)
	deepDivePayload := usablePayload(deepDive)
	if recipePayload == nil && deepDivePayload == nil {
		res.Status = models.StatusError
		res.ErrorMsg = "no successful recipe or deep-dive output to visualize"
		res.CompletedAt = time.Now().UTC()
		p.persistPhase(ctx, run, &res)
		return res
	}

	route := p.viz.Route(ctx, recipePayload, deepDivePayload)
	dir := filepath.Join(p.dataRoot, "documents", doc.DocumentID)
	targets, usage := render.Fanout(ctx, p.renderers, dir, route.Targets, p.log)

	plan := models.VisualizationPlan{
		DocumentID: doc.DocumentID,
		Model:      route.Model,
		Targets:    targets,
		PlannedAt:  time.Now().UTC(),
	}
	if err := p.plans.SavePlan(ctx, plan); err != nil {
		p.log.WithError(err).Error("save visualization plan")
	}

	payload, err := json.Marshal(plan)
	if err != nil {
		payload = json.RawMessage(`{}`)
	}
	res.Status = models.StatusCompleted
	res.Payload = payload
	res.Model = route.Model
	res.TokensIn = route.TokensIn + usage.TokensIn
	res.TokensOut = route.TokensOut + usage.TokensOut
	res.CostUSD = route.CostUSD + usage.CostUSD
	res.CompletedAt = time.Now().UTC()
	p.persistPhase(ctx, run, &res)
	return res
}

func usablePayload(res models.PhaseResult) json.RawMessage {
	if res.Status != models.StatusCompleted || len(res.Payload) == 0 || providers.IsFallbackPayload(res.Payload) {
		return nil
	}
	return res.Payload
}

// persistPhase appends the row, records ledger usage and folds the outcome
// into the run's aggregates and progress floor.
func (p *Pipeline) persistPhase(ctx context.Context, run *Run, res *models.PhaseResult) {
	id, err := p.phases.InsertResult(ctx, *res)
	if err != nil {
		p.log.WithError(err).WithField("phase", res.Phase).Error("persist phase result")
	} else {
		res.ID = id
	}
	if res.TokensIn+res.TokensOut > 0 || res.CostUSD > 0 {
		entry := models.LedgerEntry{
			DocumentID: res.DocumentID,
			Phase:      res.Phase,
			Model:      res.Model,
			TokensIn:   res.TokensIn,
			TokensOut:  res.TokensOut,
			CostUSD:    res.CostUSD,
			CreatedAt:  res.CompletedAt,
		}
		if err := p.ledger.InsertEntry(ctx, entry); err != nil {
			p.log.WithError(err).Error("record ledger entry")
		}
		if err := p.docs.AddCost(ctx, res.DocumentID, res.CostUSD); err != nil {
			p.log.WithError(err).Error("accumulate document cost")
		}
	}

	run.addUsage(res.TokensIn, res.TokensOut, res.CostUSD)
	run.setPhase(res.Phase, res.Status, res.ErrorMsg, res.CostUSD)
	run.raiseProgress(res.Phase)

	p.log.WithFields(logrus.Fields{
		"document": res.DocumentID,
		"phase":    res.Phase,
		"status":   res.Status,
		"cost_usd": res.CostUSD,
	}).Info("phase finished")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	// Back off to a rune boundary so the cut never leaves a partial
	// UTF-8 sequence at the end of a prompt.
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
