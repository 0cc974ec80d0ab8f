package viz

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"paperlens/internal/models"
	"paperlens/internal/providers"
)

// MaxTargets caps how many visualizations one run may plan.
const MaxTargets = 5

// Content categories and where each one renders. Procedural and
// structural content becomes a diagram; physical and visual content
// becomes an illustration.
const (
	CategoryExperimentalProtocol   = "experimental_protocol"
	CategoryAlgorithmFlow          = "algorithm_flow"
	CategorySignalFlow             = "signal_flow"
	CategorySystemArchitecture     = "system_architecture"
	CategoryComponentRelationships = "component_relationships"
	CategoryTimeline               = "timeline"
	CategoryComparison             = "comparison"

	CategoryEquipmentAppearance   = "equipment_appearance"
	CategoryOpticalTableLayout    = "optical_table_layout"
	CategoryCellMoleculeSchematic = "cell_molecule_schematic"
	CategoryPhysicalSetup         = "physical_setup"
	CategoryConceptual            = "conceptual_illustration"
)

var routingTable = map[string]string{
	CategoryExperimentalProtocol:   models.KindDiagram,
	CategoryAlgorithmFlow:          models.KindDiagram,
	CategorySignalFlow:             models.KindDiagram,
	CategorySystemArchitecture:     models.KindDiagram,
	CategoryComponentRelationships: models.KindDiagram,
	CategoryTimeline:               models.KindDiagram,
	CategoryComparison:             models.KindDiagram,

	CategoryEquipmentAppearance:   models.KindIllustration,
	CategoryOpticalTableLayout:    models.KindIllustration,
	CategoryCellMoleculeSchematic: models.KindIllustration,
	CategoryPhysicalSetup:         models.KindIllustration,
	CategoryConceptual:            models.KindIllustration,
}

// Keyword fallback when the category label is unrecognized.
var diagramKeywords = []string{
	"protocol", "procedure", "step", "workflow", "algorithm", "pipeline",
	"data flow", "signal flow", "sequence", "architecture", "component",
	"relationship", "connection", "dependency", "hierarchy", "timeline",
	"phase", "stage", "process", "flowchart", "decision", "branch",
}

var illustrationKeywords = []string{
	"appearance", "photo", "3d", "layout", "setup", "bench",
	"optical table", "equipment", "cell", "molecule", "schematic",
	"illustration", "physical", "structure", "morphology",
	"device", "fabrication", "cross-section", "top view", "side view",
}

// RouteResult is the planned target list plus the usage of the planning
// call (zero when the heuristic path produced the plan).
type RouteResult struct {
	Targets   []models.VisualizationTarget
	Model     string
	TokensIn  int
	TokensOut int
	CostUSD   float64
}

// Router turns recipe and deep-dive payloads into a capped list of
// typed render targets. A model plans the list when a gateway is
// configured; structural heuristics cover the rest.
type Router struct {
	gateway *providers.Gateway
	model   string
	log     *logrus.Logger
}

func NewRouter(gateway *providers.Gateway, model string, log *logrus.Logger) *Router {
	return &Router{gateway: gateway, model: model, log: log}
}

func (r *Router) Route(ctx context.Context, recipe, deepDive json.RawMessage) RouteResult {
	if r.gateway != nil {
		res, err := r.routeWithModel(ctx, recipe, deepDive)
		if err != nil {
			r.log.WithError(err).Warn("model-assisted routing failed, using heuristics")
		} else if len(res.Targets) > 0 {
			res.Targets = capTargets(res.Targets)
			return res
		}
	}
	return RouteResult{Targets: capTargets(routeHeuristic(recipe, deepDive))}
}

func capTargets(targets []models.VisualizationTarget) []models.VisualizationTarget {
	if len(targets) > MaxTargets {
		targets = targets[:MaxTargets]
	}
	for i := range targets {
		if targets[i].Kind != models.KindDiagram && targets[i].Kind != models.KindIllustration {
			targets[i].Kind = classifyKind(targets[i].Category, targets[i].Description)
		}
	}
	return targets
}

func (r *Router) routeWithModel(ctx context.Context, recipe, deepDive json.RawMessage) (RouteResult, error) {
	var contextParts []string
	if len(recipe) > 0 {
		contextParts = append(contextParts, "=== Recipe Extraction ===\n"+string(recipe))
	}
	if len(deepDive) > 0 {
		contextParts = append(contextParts, "=== Deep Dive Analysis ===\n"+string(deepDive))
	}
	if len(contextParts) == 0 {
		return RouteResult{}, nil
	}

	prompt := fmt.Sprintf(`You are a visualization router for a research paper analysis system.

Given the analysis results below, identify up to %d elements that would benefit
from a diagram or illustration. Classify each into one of two rendering kinds:

"structural-diagram" (flowcharts, sequences, architectures):
- Experimental protocol / procedure steps
- Algorithm or data flow
- Signal flow diagrams
- System architecture
- Component relationships / dependencies
- Timelines and comparisons

"illustrative-image" (physical/visual illustrations):
- Equipment appearance or internal structure
- Optical table / lab bench layout
- Cell / molecule schematic
- Physical setup that needs a realistic illustration
- Conceptual illustrations requiring artistic rendering

For each target output a JSON object with:
- "kind": "structural-diagram" or "illustrative-image"
- "category": one of [%s]
- "diagram_type": flowchart, sequence, state, conceptual, illustration
- "title": short descriptive title
- "description": 2-3 sentence description of what to visualize
- "nodes": list of {"id": "...", "label": "...", "detail": "..."} (structural only)
- "edges": list of {"from": "...", "to": "...", "label": "..."} (structural only)
- "source": {"page": <int or null>, "section": "<section name>"}

Return a JSON object: {"targets": [<list of target objects>]}
Return ONLY valid JSON. No markdown fences, no explanation.

--- Analysis Results ---
%s`, MaxTargets, strings.Join(categoryList(), ", "), strings.Join(contextParts, "\n\n"))

	inv, err := r.gateway.Invoke(ctx, providers.ModelRequest{
		Prompt:       prompt,
		Model:        r.model,
		Temperature:  0.3,
		MaxTokens:    4096,
		JSONResponse: true,
	})
	if err != nil {
		return RouteResult{}, err
	}

	var parsed struct {
		Targets []models.VisualizationTarget `json:"targets"`
	}
	if err := json.Unmarshal([]byte(providers.CleanJSON(inv.Text)), &parsed); err != nil {
		return RouteResult{}, fmt.Errorf("decode routing response: %w", err)
	}
	return RouteResult{
		Targets:   parsed.Targets,
		Model:     inv.Model,
		TokensIn:  inv.TokensIn,
		TokensOut: inv.TokensOut,
		CostUSD:   inv.CostUSD,
	}, nil
}

func categoryList() []string {
	return []string{
		CategoryExperimentalProtocol, CategoryAlgorithmFlow, CategorySignalFlow,
		CategorySystemArchitecture, CategoryComponentRelationships, CategoryTimeline,
		CategoryComparison, CategoryEquipmentAppearance, CategoryOpticalTableLayout,
		CategoryCellMoleculeSchematic, CategoryPhysicalSetup, CategoryConceptual,
	}
}

// classifyKind resolves a render kind from the category label, falling
// back to keyword scoring over two disjoint sets.
func classifyKind(category, description string) string {
	if kind, ok := routingTable[category]; ok {
		return kind
	}
	combined := strings.ToLower(category + " " + description)
	var diagramScore, illustrationScore int
	for _, kw := range diagramKeywords {
		if strings.Contains(combined, kw) {
			diagramScore++
		}
	}
	for _, kw := range illustrationKeywords {
		if strings.Contains(combined, kw) {
			illustrationScore++
		}
	}
	if illustrationScore > diagramScore {
		return models.KindIllustration
	}
	return models.KindDiagram
}
