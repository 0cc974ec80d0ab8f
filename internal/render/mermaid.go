package render

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"paperlens/internal/models"
	"paperlens/internal/providers"
)

const diagramSystemPrompt = `You convert structured diagram specifications into Mermaid 10.x code.
Rules:
- Output ONLY raw Mermaid code. No markdown fences, no explanations.
- No YAML frontmatter (--- blocks), no accTitle or accDescr lines.
- Node IDs must be alphanumeric with underscores, starting with a letter.
- Wrap labels containing parentheses, colons or other special characters in double quotes.
- Keep every node and edge from the specification.`

// DiagramRenderer produces Mermaid code for structural-diagram targets.
// It asks the configured model first and falls back to local template
// generation from the target's nodes and edges when the model call fails.
type DiagramRenderer struct {
	gateway *providers.Gateway
	model   string
	log     *logrus.Logger
}

func NewDiagramRenderer(gateway *providers.Gateway, model string, log *logrus.Logger) *DiagramRenderer {
	return &DiagramRenderer{gateway: gateway, model: model, log: log}
}

func (r *DiagramRenderer) Kind() string { return models.KindDiagram }

func (r *DiagramRenderer) Render(ctx context.Context, dir string, target *models.VisualizationTarget) (Usage, error) {
	var usage Usage
	code := ""

	if r.gateway != nil && r.model != "" {
		generated, u, err := r.generateWithModel(ctx, target)
		usage = u
		if err != nil {
			if r.log != nil {
				r.log.WithField("title", target.Title).WithError(err).
					Warn("model diagram generation failed, using template")
			}
		} else {
			code = generated
		}
	}
	if code == "" {
		code = buildTemplate(target)
	}

	code = CleanMermaid(code)
	if code == "" {
		return usage, fmt.Errorf("empty diagram for %q", target.Title)
	}
	target.DiagramCode = code
	return usage, nil
}

func (r *DiagramRenderer) generateWithModel(ctx context.Context, target *models.VisualizationTarget) (string, Usage, error) {
	spec := map[string]any{
		"diagram_type": diagramType(target),
		"title":        target.Title,
		"description":  target.Description,
		"nodes":        target.Nodes,
		"edges":        target.Edges,
		"category":     target.Category,
	}
	raw, err := json.Marshal(spec)
	if err != nil {
		return "", Usage{}, fmt.Errorf("marshal diagram spec: %w", err)
	}

	inv, err := r.gateway.Invoke(ctx, providers.ModelRequest{
		Model:        r.model,
		SystemPrompt: diagramSystemPrompt,
		Prompt:       "Generate Mermaid code for this diagram specification:\n\n" + string(raw),
		Temperature:  0.2,
		MaxTokens:    2048,
	})
	if err != nil {
		return "", Usage{}, err
	}
	usage := Usage{
		Model:     inv.Model,
		TokensIn:  inv.TokensIn,
		TokensOut: inv.TokensOut,
		CostUSD:   inv.CostUSD,
	}
	if strings.TrimSpace(inv.Text) == "" {
		return "", usage, fmt.Errorf("model returned empty diagram")
	}
	return inv.Text, usage, nil
}

func diagramType(target *models.VisualizationTarget) string {
	if target.DiagramType != "" {
		return target.DiagramType
	}
	return "flowchart"
}

// buildTemplate assembles Mermaid code locally from the target's nodes and
// edges. It is the no-model fallback and must always produce valid syntax.
func buildTemplate(target *models.VisualizationTarget) string {
	switch diagramType(target) {
	case "sequence":
		return buildSequence(target.Nodes, target.Edges)
	case "state":
		return buildStateDiagram(target.Nodes, target.Edges)
	case "class":
		return buildClassDiagram(target.Nodes, target.Edges)
	default:
		return buildFlowchart(target.Nodes, target.Edges)
	}
}

func buildFlowchart(nodes []models.DiagramNode, edges []models.DiagramEdge) string {
	direction := "LR"
	if len(nodes) > 6 {
		direction = "TD"
	}
	lines := []string{"graph " + direction}
	var styles []string

	for _, n := range nodes {
		id := sanitizeID(n.ID)
		label := escapeLabel(n.Label)
		if label == "" {
			label = id
		}
		if n.Detail != "" {
			label += "<br/>" + escapeLabel(n.Detail)
		}
		lines = append(lines, fmt.Sprintf("    %s[%s]", id, label))
		styles = append(styles, fmt.Sprintf("    style %s fill:%s", id, nodeColor(n)))
	}
	for _, e := range edges {
		from, to := sanitizeID(e.From), sanitizeID(e.To)
		if e.Label != "" && e.Label != "sequential" {
			lines = append(lines, fmt.Sprintf("    %s -->|%s| %s", from, escapeLabel(e.Label), to))
		} else {
			lines = append(lines, fmt.Sprintf("    %s --> %s", from, to))
		}
	}
	// No edges given: chain the nodes in order.
	if len(edges) == 0 && len(nodes) > 1 {
		for i := 0; i < len(nodes)-1; i++ {
			lines = append(lines, fmt.Sprintf("    %s --> %s", sanitizeID(nodes[i].ID), sanitizeID(nodes[i+1].ID)))
		}
	}
	if len(styles) > 0 {
		lines = append(lines, "")
		lines = append(lines, styles...)
	}
	return strings.Join(lines, "\n")
}

func buildSequence(nodes []models.DiagramNode, edges []models.DiagramEdge) string {
	lines := []string{"sequenceDiagram"}
	for _, n := range nodes {
		id := sanitizeID(n.ID)
		label := n.Label
		if label == "" {
			label = id
		}
		lines = append(lines, fmt.Sprintf("    participant %s as %s", id, label))
	}
	for _, e := range edges {
		lines = append(lines, fmt.Sprintf("    %s->>+%s: %s", sanitizeID(e.From), sanitizeID(e.To), e.Label))
	}
	if len(edges) == 0 && len(nodes) > 1 {
		for i := 0; i < len(nodes)-1; i++ {
			lines = append(lines, fmt.Sprintf("    %s->>+%s: %s",
				sanitizeID(nodes[i].ID), sanitizeID(nodes[i+1].ID), nodes[i].Label))
		}
	}
	return strings.Join(lines, "\n")
}

func buildStateDiagram(nodes []models.DiagramNode, edges []models.DiagramEdge) string {
	lines := []string{"stateDiagram-v2"}
	for _, n := range nodes {
		id := sanitizeID(n.ID)
		label := n.Label
		if label == "" {
			label = id
		}
		lines = append(lines, fmt.Sprintf("    %s : %s", id, label))
	}
	switch {
	case len(edges) > 0:
		for _, e := range edges {
			from, to := sanitizeID(e.From), sanitizeID(e.To)
			if e.Label != "" {
				lines = append(lines, fmt.Sprintf("    %s --> %s : %s", from, to, e.Label))
			} else {
				lines = append(lines, fmt.Sprintf("    %s --> %s", from, to))
			}
		}
	case len(nodes) > 1:
		lines = append(lines, "    [*] --> "+sanitizeID(nodes[0].ID))
		for i := 0; i < len(nodes)-1; i++ {
			lines = append(lines, fmt.Sprintf("    %s --> %s", sanitizeID(nodes[i].ID), sanitizeID(nodes[i+1].ID)))
		}
		lines = append(lines, "    "+sanitizeID(nodes[len(nodes)-1].ID)+" --> [*]")
	}
	return strings.Join(lines, "\n")
}

func buildClassDiagram(nodes []models.DiagramNode, edges []models.DiagramEdge) string {
	lines := []string{"classDiagram"}
	for _, n := range nodes {
		id := sanitizeID(n.ID)
		label := n.Label
		if label == "" {
			label = id
		}
		lines = append(lines, fmt.Sprintf("    class %s {", id))
		lines = append(lines, "        +"+label)
		if n.Detail != "" {
			lines = append(lines, "        +"+n.Detail)
		}
		lines = append(lines, "    }")
	}
	for _, e := range edges {
		from, to := sanitizeID(e.From), sanitizeID(e.To)
		if e.Label != "" {
			lines = append(lines, fmt.Sprintf("    %s --> %s : %s", from, to, e.Label))
		} else {
			lines = append(lines, fmt.Sprintf("    %s --> %s", from, to))
		}
	}
	return strings.Join(lines, "\n")
}

// Component keyword to fill color for flowchart style directives.
var stylePalette = []struct {
	keyword string
	color   string
}{
	{"laser", "#e1f5fe"},
	{"source", "#e1f5fe"},
	{"detector", "#e8f5e9"},
	{"sensor", "#e8f5e9"},
	{"filter", "#fff3e0"},
	{"lens", "#f3e5f5"},
	{"mirror", "#f3e5f5"},
	{"beam splitter", "#fce4ec"},
	{"start", "#e8eaf6"},
	{"end", "#efebe9"},
	{"process", "#e0f2f1"},
	{"decision", "#fff9c4"},
	{"input", "#e1f5fe"},
	{"output", "#e8f5e9"},
	{"chamber", "#fff3e0"},
	{"furnace", "#fff3e0"},
	{"substrate", "#f1f8e9"},
	{"precursor", "#e8eaf6"},
}

const defaultNodeColor = "#f5f5f5"

func nodeColor(n models.DiagramNode) string {
	text := strings.ToLower(n.Label + " " + n.Detail)
	for _, entry := range stylePalette {
		if strings.Contains(text, entry.keyword) {
			return entry.color
		}
	}
	return defaultNodeColor
}
