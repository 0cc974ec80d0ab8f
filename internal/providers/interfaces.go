package providers

import "context"

// ModelRequest is the uniform call shape for every LLM invocation in the
// system. Phase executors and renderers never talk to a provider SDK shape
// directly.
type ModelRequest struct {
	Prompt       string  `json:"prompt"`
	Model        string  `json:"model"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
	Temperature  float64 `json:"temperature,omitempty"`
	MaxTokens    int     `json:"max_tokens,omitempty"`
	JSONResponse bool    `json:"json_response,omitempty"`
}

// ModelResponse is the one fixed response shape. Provider-specific usage
// metadata is normalized here at the gateway boundary.
type ModelResponse struct {
	Text      string `json:"text"`
	Model     string `json:"model"`
	TokensIn  int    `json:"tokens_in"`
	TokensOut int    `json:"tokens_out"`

	// ImageData holds decoded inline image bytes when an image-capable
	// model returns one. Empty for text-only responses.
	ImageData []byte `json:"-"`
}

type ModelClient interface {
	Complete(ctx context.Context, req ModelRequest) (ModelResponse, error)
}
