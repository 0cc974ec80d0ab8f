package providers

import (
	"encoding/json"
	"strings"
)

// CleanJSON strips markdown code fences from an LLM response. Models often
// wrap JSON in ```json ... ``` despite instructions not to.
func CleanJSON(text string) string {
	cleaned := strings.TrimSpace(text)
	if !strings.HasPrefix(cleaned, "```") {
		return cleaned
	}
	lines := strings.Split(cleaned, "\n")
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[0]), "```") {
		lines = lines[1:]
	}
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// DecodePayload parses an LLM response into a JSON payload. A response that
// is not valid JSON never fails the call: the raw text and the parse error
// are captured in a fallback object instead.
func DecodePayload(text string) (json.RawMessage, bool) {
	cleaned := CleanJSON(text)
	if json.Valid([]byte(cleaned)) && cleaned != "" {
		return json.RawMessage(cleaned), true
	}
	var parseErr string
	if err := json.Unmarshal([]byte(cleaned), &struct{}{}); err != nil {
		parseErr = err.Error()
	} else {
		parseErr = "response is not a JSON document"
	}
	fallback, _ := json.Marshal(map[string]string{
		"raw":         cleaned,
		"parse_error": parseErr,
	})
	return fallback, false
}

// IsFallbackPayload reports whether a stored payload is the parse-failure
// fallback shape rather than real model output.
func IsFallbackPayload(payload json.RawMessage) bool {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(payload, &probe); err != nil {
		return false
	}
	_, hasRaw := probe["raw"]
	_, hasErr := probe["parse_error"]
	return hasRaw && hasErr
}
