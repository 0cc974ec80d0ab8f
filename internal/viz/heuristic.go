package viz

import (
	"encoding/json"
	"fmt"
	"strings"

	"paperlens/internal/models"
)

// routeHeuristic extracts render targets from the structured phase
// payloads without a model call.
func routeHeuristic(recipe, deepDive json.RawMessage) []models.VisualizationTarget {
	var targets []models.VisualizationTarget
	if len(recipe) > 0 {
		targets = append(targets, recipeTargets(recipe)...)
	}
	if len(deepDive) > 0 {
		targets = append(targets, deepDiveTargets(deepDive)...)
	}
	return targets
}

type recipePayload struct {
	Recipe     *recipeCard       `json:"recipe"`
	Steps      []json.RawMessage `json:"steps"`
	Equipment  []string          `json:"equipment"`
	Materials  []string          `json:"materials"`
	Parameters []json.RawMessage `json:"parameters"`
}

type recipeCard struct {
	Steps      []json.RawMessage `json:"steps"`
	Equipment  []string          `json:"equipment"`
	Materials  []string          `json:"materials"`
	Parameters []json.RawMessage `json:"parameters"`
}

func recipeTargets(raw json.RawMessage) []models.VisualizationTarget {
	var payload recipePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil
	}
	card := recipeCard{
		Steps:      payload.Steps,
		Equipment:  payload.Equipment,
		Materials:  payload.Materials,
		Parameters: payload.Parameters,
	}
	if payload.Recipe != nil {
		card = *payload.Recipe
	}

	var targets []models.VisualizationTarget

	// Protocol flowchart whenever steps exist.
	if len(card.Steps) > 0 {
		var nodes []models.DiagramNode
		var edges []models.DiagramEdge
		for i, rawStep := range card.Steps {
			label := stepLabel(rawStep)
			if len(label) > 60 {
				label = label[:57] + "..."
			}
			id := nodeID(i)
			nodes = append(nodes, models.DiagramNode{ID: id, Label: label})
			if i > 0 {
				edges = append(edges, models.DiagramEdge{From: nodeID(i - 1), To: id, Label: "sequential"})
			}
		}
		targets = append(targets, models.VisualizationTarget{
			Kind:        models.KindDiagram,
			Category:    CategoryExperimentalProtocol,
			DiagramType: "flowchart",
			Title:       "Experimental Protocol",
			Description: "Step-by-step experimental protocol extracted from the Methods section.",
			Nodes:       nodes,
			Edges:       edges,
			Source:      models.SourceRef{Section: "Method"},
		})
	}

	// Physical setup illustration from equipment lists.
	if len(card.Equipment) > 0 {
		desc := "Equipment and setup: " + strings.Join(head(card.Equipment, 10), ", ")
		if len(card.Materials) > 0 {
			desc += " Materials: " + strings.Join(head(card.Materials, 10), ", ")
		}
		targets = append(targets, models.VisualizationTarget{
			Kind:        models.KindIllustration,
			Category:    CategoryPhysicalSetup,
			DiagramType: "conceptual",
			Title:       "Experimental Setup",
			Description: desc,
			Source:      models.SourceRef{Section: "Method"},
		})
	}

	// Parameter overview when there are enough parameters to matter.
	if len(card.Parameters) >= 4 {
		var nodes []models.DiagramNode
		for i, rawParam := range head(card.Parameters, 12) {
			name, detail := paramParts(rawParam, i)
			nodes = append(nodes, models.DiagramNode{ID: fmt.Sprintf("P%d", i), Label: name, Detail: detail})
		}
		targets = append(targets, models.VisualizationTarget{
			Kind:        models.KindDiagram,
			Category:    CategoryComponentRelationships,
			DiagramType: "flowchart",
			Title:       "Key Parameters Overview",
			Description: "Overview of key experimental parameters and their values.",
			Nodes:       nodes,
			Source:      models.SourceRef{Section: "Method"},
		})
	}
	return targets
}

type deepDivePayload struct {
	DetailedAnalysis      string   `json:"detailed_analysis"`
	Strengths             []string `json:"strengths"`
	Weaknesses            []string `json:"weaknesses"`
	ComparisonToPriorWork string   `json:"comparison_to_prior_work"`
}

func deepDiveTargets(raw json.RawMessage) []models.VisualizationTarget {
	var payload deepDivePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil
	}

	var targets []models.VisualizationTarget

	if len(payload.DetailedAnalysis) > 100 {
		nodes := []models.DiagramNode{
			{ID: "M", Label: "Research Motivation"},
			{ID: "A", Label: "Approach / Method"},
			{ID: "R", Label: "Key Results"},
			{ID: "C", Label: "Conclusions"},
		}
		edges := []models.DiagramEdge{
			{From: "M", To: "A", Label: "leads to"},
			{From: "A", To: "R", Label: "produces"},
			{From: "R", To: "C", Label: "supports"},
		}
		if len(payload.Strengths) > 0 {
			nodes = append(nodes, models.DiagramNode{ID: "S", Label: "Strengths", Detail: strings.Join(head(payload.Strengths, 3), "; ")})
			edges = append(edges, models.DiagramEdge{From: "R", To: "S"})
		}
		if len(payload.Weaknesses) > 0 {
			nodes = append(nodes, models.DiagramNode{ID: "W", Label: "Weaknesses", Detail: strings.Join(head(payload.Weaknesses, 3), "; ")})
			edges = append(edges, models.DiagramEdge{From: "R", To: "W"})
		}
		targets = append(targets, models.VisualizationTarget{
			Kind:        models.KindDiagram,
			Category:    CategoryAlgorithmFlow,
			DiagramType: "flowchart",
			Title:       "Research Logic Flow",
			Description: "High-level flow of the research: motivation, approach, results, conclusions.",
			Nodes:       nodes,
			Edges:       edges,
			Source:      models.SourceRef{Section: "Introduction + Results"},
		})
	}

	if len(payload.ComparisonToPriorWork) > 50 {
		desc := payload.ComparisonToPriorWork
		if len(desc) > 200 {
			desc = desc[:200]
		}
		targets = append(targets, models.VisualizationTarget{
			Kind:        models.KindDiagram,
			Category:    CategoryComparison,
			DiagramType: "conceptual",
			Title:       "Prior Work Comparison",
			Description: "Comparison with prior work: " + desc,
			Source:      models.SourceRef{Section: "Introduction"},
		})
	}
	return targets
}

func nodeID(i int) string {
	if i < 26 {
		return string(rune('A' + i))
	}
	return fmt.Sprintf("N%d", i)
}

func stepLabel(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err == nil {
		for _, key := range []string{"description", "step", "action", "name"} {
			if v, ok := obj[key].(string); ok && v != "" {
				return v
			}
		}
	}
	return strings.Trim(string(raw), `"`)
}

func paramParts(raw json.RawMessage, i int) (name, detail string) {
	var obj struct {
		Name  string `json:"name"`
		Value string `json:"value"`
		Unit  string `json:"unit"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Name != "" {
		detail = obj.Value
		if obj.Unit != "" {
			detail += " " + obj.Unit
		}
		return obj.Name, detail
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		return s, ""
	}
	return fmt.Sprintf("Param%d", i), ""
}

func head[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}
