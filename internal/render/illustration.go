package render

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"paperlens/internal/models"
	"paperlens/internal/providers"
	"paperlens/internal/util"
)

// IllustrationRenderer generates publication-style images for
// illustrative-image targets via an image-capable model. Image generation is
// slow, so every call runs under its own generous timeout rather than the
// caller's deadline alone.
type IllustrationRenderer struct {
	gateway *providers.Gateway
	model   string
	timeout time.Duration
	log     *logrus.Logger
}

func NewIllustrationRenderer(gateway *providers.Gateway, model string, timeout time.Duration, log *logrus.Logger) *IllustrationRenderer {
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	return &IllustrationRenderer{gateway: gateway, model: model, timeout: timeout, log: log}
}

func (r *IllustrationRenderer) Kind() string { return models.KindIllustration }

func (r *IllustrationRenderer) Render(ctx context.Context, dir string, target *models.VisualizationTarget) (Usage, error) {
	if r.gateway == nil || r.model == "" {
		return Usage{}, fmt.Errorf("illustration model not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	inv, err := r.gateway.Invoke(ctx, providers.ModelRequest{
		Model:       r.model,
		Prompt:      illustrationPrompt(target),
		Temperature: 0.7,
	})
	usage := Usage{
		Model:     inv.Model,
		TokensIn:  inv.TokensIn,
		TokensOut: inv.TokensOut,
		CostUSD:   inv.CostUSD,
	}
	if err != nil {
		return usage, fmt.Errorf("generate illustration %q: %w", target.Title, err)
	}

	data := inv.ImageData
	if len(data) == 0 {
		data = decodeInlineImage(inv.Text)
	}
	if len(data) == 0 {
		return usage, fmt.Errorf("model returned no image for %q", target.Title)
	}

	path := nextFreePath(filepath.Join(dir, "illustrations"), slug(target.Title), ".png")
	if err := util.WriteBytesAtomic(path, data); err != nil {
		return usage, fmt.Errorf("save illustration: %w", err)
	}
	target.ImagePath = path

	if r.log != nil {
		r.log.WithFields(logrus.Fields{
			"title": target.Title,
			"path":  path,
			"bytes": len(data),
		}).Info("illustration rendered")
	}
	return usage, nil
}

// illustrationPrompt flattens the target into a single visual brief. Node and
// edge hints from the planner become component and connection lists.
func illustrationPrompt(target *models.VisualizationTarget) string {
	var parts []string
	if target.Description != "" {
		parts = append(parts, target.Description)
	}
	if len(target.Nodes) > 0 {
		names := make([]string, 0, len(target.Nodes))
		for _, n := range target.Nodes {
			name := n.Label
			if n.Detail != "" {
				name += " (" + n.Detail + ")"
			}
			names = append(names, name)
		}
		parts = append(parts, "Components: "+strings.Join(names, ", "))
	}
	if len(target.Edges) > 0 {
		conns := make([]string, 0, len(target.Edges))
		for _, e := range target.Edges {
			label := e.Label
			if label == "" {
				label = "connects to"
			}
			conns = append(conns, fmt.Sprintf("%s %s %s", e.From, label, e.To))
		}
		parts = append(parts, "Connections: "+strings.Join(conns, "; "))
	}
	brief := strings.Join(parts, " | ")
	if brief == "" {
		brief = "Scientific experimental setup"
	}

	intent := fmt.Sprintf("Publication-quality scientific illustration of %s.", target.Title)
	if target.Category != "" {
		intent += " Category: " + strings.ReplaceAll(target.Category, "_", " ") + "."
	}
	if target.Source.Section != "" {
		intent += " Based on the " + target.Source.Section + " section of the paper."
	}
	return intent + "\n\n" + brief +
		"\n\nClean white background, labeled components, flat technical style suitable for a methods figure."
}

func decodeInlineImage(text string) []byte {
	text = strings.TrimSpace(text)
	if idx := strings.Index(text, "base64,"); idx >= 0 {
		text = text[idx+len("base64,"):]
	}
	text = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' {
			return -1
		}
		return r
	}, text)
	if len(text) < 64 {
		return nil
	}
	data, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil
	}
	return data
}

var (
	slugDropRe     = regexp.MustCompile(`[^\w\s-]`)
	slugCollapseRe = regexp.MustCompile(`[-\s]+`)
)

func slug(title string) string {
	s := slugDropRe.ReplaceAllString(title, "")
	s = slugCollapseRe.ReplaceAllString(strings.TrimSpace(s), "_")
	s = strings.ToLower(s)
	if s == "" {
		return "illustration"
	}
	return s
}

// nextFreePath appends a counter rather than overwriting an earlier render.
func nextFreePath(dir, base, ext string) string {
	path := filepath.Join(dir, base+ext)
	for counter := 1; ; counter++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path
		}
		path = filepath.Join(dir, fmt.Sprintf("%s_%d%s", base, counter, ext))
	}
}
