package domains

import (
	"context"
	"encoding/json"
	"fmt"

	"paperlens/internal/providers"
)

const classifierSystemPrompt = `You are a scientific paper domain classifier. Classify the paper into exactly ONE domain.
Available domains:
  - optics: optics, photonics, lasers, fiber optics, imaging systems
  - bio: biology, biochemistry, molecular biology, genetics, biomedical
  - ai_ml: artificial intelligence, machine learning, deep learning, NLP, CV
  - ee: electrical engineering, circuits, semiconductors, power systems
  - unknown: cannot determine with confidence
Respond ONLY with valid JSON.`

// GatewayClassifier implements SemanticClassifier with a cheap model
// call through the gateway.
type GatewayClassifier struct {
	gateway *providers.Gateway
	model   string
}

func NewGatewayClassifier(gateway *providers.Gateway, model string) *GatewayClassifier {
	return &GatewayClassifier{gateway: gateway, model: model}
}

func (c *GatewayClassifier) ClassifyDomain(ctx context.Context, title, abstract string) (SemanticVerdict, error) {
	prompt := fmt.Sprintf(`Title: %s

Abstract: %s

Classify this paper. Return JSON:
  "domain": one of (optics | bio | ai_ml | ee | unknown),
  "confidence": float 0.0-1.0,
  "reasoning": brief explanation`, title, abstract)

	inv, err := c.gateway.Invoke(ctx, providers.ModelRequest{
		Prompt:       prompt,
		Model:        c.model,
		SystemPrompt: classifierSystemPrompt,
		Temperature:  0.1,
		MaxTokens:    512,
		JSONResponse: true,
	})
	if err != nil {
		return SemanticVerdict{}, fmt.Errorf("semantic classification call: %w", err)
	}

	var parsed struct {
		Domain     string  `json:"domain"`
		Confidence float64 `json:"confidence"`
		Reasoning  string  `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(providers.CleanJSON(inv.Text)), &parsed); err != nil {
		return SemanticVerdict{}, fmt.Errorf("decode classifier response: %w", err)
	}
	if parsed.Domain == "" {
		parsed.Domain = Unknown
	}
	return SemanticVerdict{
		Domain:     parsed.Domain,
		Confidence: parsed.Confidence,
		Reasoning:  parsed.Reasoning,
	}, nil
}
