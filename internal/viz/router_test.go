package viz

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"paperlens/internal/logger"
	"paperlens/internal/models"
	"paperlens/internal/providers"
)

const recipeJSON = `{
  "recipe": {
    "steps": ["Prepare the substrate", "Align the laser cavity", "Measure output power"],
    "equipment": ["Ti:Sapphire laser", "power meter", "beam profiler"],
    "materials": ["BK7 substrate"],
    "parameters": [
      {"name": "wavelength", "value": "800", "unit": "nm"},
      {"name": "power", "value": "450", "unit": "mW"},
      {"name": "pulse_width", "value": "50", "unit": "fs"},
      {"name": "rep_rate", "value": "80", "unit": "MHz"}
    ]
  }
}`

const deepDiveJSON = `{
  "detailed_analysis": "The paper motivates a compact femtosecond source, builds a fiber-based cavity, and demonstrates stable mode locking over 24 hours with strong supporting data.",
  "strengths": ["long-term stability", "compact footprint"],
  "weaknesses": ["no environmental testing"],
  "comparison_to_prior_work": "Compared against three earlier fiber oscillators, this design halves the cavity length at similar pulse energy."
}`

func TestRouteHeuristicFromRecipe(t *testing.T) {
	targets := routeHeuristic(json.RawMessage(recipeJSON), nil)
	require.Len(t, targets, 3)

	protocol := targets[0]
	require.Equal(t, models.KindDiagram, protocol.Kind)
	require.Equal(t, CategoryExperimentalProtocol, protocol.Category)
	require.Len(t, protocol.Nodes, 3)
	require.Len(t, protocol.Edges, 2)
	require.Equal(t, "A", protocol.Nodes[0].ID)
	require.Equal(t, "sequential", protocol.Edges[0].Label)

	setup := targets[1]
	require.Equal(t, models.KindIllustration, setup.Kind)
	require.Contains(t, setup.Description, "Ti:Sapphire laser")

	params := targets[2]
	require.Equal(t, CategoryComponentRelationships, params.Category)
	require.Len(t, params.Nodes, 4)
	require.Equal(t, "wavelength", params.Nodes[0].Label)
	require.Equal(t, "800 nm", params.Nodes[0].Detail)
}

func TestRouteHeuristicFromDeepDive(t *testing.T) {
	targets := routeHeuristic(nil, json.RawMessage(deepDiveJSON))
	require.Len(t, targets, 2)

	logic := targets[0]
	require.Equal(t, "Research Logic Flow", logic.Title)
	// M, A, R, C plus strengths and weaknesses branches.
	require.Len(t, logic.Nodes, 6)
	require.Len(t, logic.Edges, 5)

	comparison := targets[1]
	require.Equal(t, CategoryComparison, comparison.Category)
	require.Equal(t, models.KindDiagram, comparison.Kind)
}

func TestRouteCapsTargets(t *testing.T) {
	r := NewRouter(nil, "", logger.New())
	res := r.Route(context.Background(), json.RawMessage(recipeJSON), json.RawMessage(deepDiveJSON))
	require.LessOrEqual(t, len(res.Targets), MaxTargets)
	require.NotEmpty(t, res.Targets)
}

func TestRouteWithModel(t *testing.T) {
	mock := providers.NewMockClient()
	mock.Enqueue(providers.ModelResponse{
		Text: `{"targets":[{"kind":"structural-diagram","category":"algorithm_flow","diagram_type":"flowchart","title":"Pipeline","nodes":[{"id":"A","label":"Input"}],"edges":[]}]}`,
		Model: "gemini-3-pro-preview", TokensIn: 100, TokensOut: 50,
	})
	gw := providers.NewGateway(mock, 1, 0, logger.New())

	r := NewRouter(gw, "gemini-3-pro-preview", logger.New())
	res := r.Route(context.Background(), json.RawMessage(recipeJSON), nil)
	require.Len(t, res.Targets, 1)
	require.Equal(t, "Pipeline", res.Targets[0].Title)
	require.Equal(t, models.KindDiagram, res.Targets[0].Kind)
	require.Equal(t, 100, res.TokensIn)
	require.Greater(t, res.CostUSD, 0.0)
}

func TestRouteModelFailureFallsBack(t *testing.T) {
	mock := providers.NewMockClient()
	mock.Enqueue(providers.ModelResponse{Text: "not json", Model: "gemini-3-pro-preview"})
	gw := providers.NewGateway(mock, 1, 0, logger.New())

	r := NewRouter(gw, "gemini-3-pro-preview", logger.New())
	res := r.Route(context.Background(), json.RawMessage(recipeJSON), nil)
	require.NotEmpty(t, res.Targets)
	require.Zero(t, res.CostUSD)
}

func TestClassifyKindFallback(t *testing.T) {
	require.Equal(t, models.KindDiagram, classifyKind(CategoryTimeline, ""))
	require.Equal(t, models.KindIllustration, classifyKind(CategoryPhysicalSetup, ""))
	require.Equal(t, models.KindIllustration, classifyKind("", "a 3d photo of the optical table bench setup"))
	require.Equal(t, models.KindDiagram, classifyKind("", "flowchart of the algorithm steps in sequence"))
}
