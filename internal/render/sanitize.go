package render

import (
	"regexp"
	"strings"
)

var (
	frontmatterRe = regexp.MustCompile(`(?s)^\s*---\s*\n.*?\n\s*---\s*\n?`)
	accTitleRe    = regexp.MustCompile(`(?m)^\s*accTitle\s*:.*$`)
	accDescrRe    = regexp.MustCompile(`(?m)^\s*accDescr\s*:.*$`)
	accBlockRe    = regexp.MustCompile(`(?ms)^\s*accDescr\s*\{[^}]*\}`)
	nodeIDRe      = regexp.MustCompile(`[^a-zA-Z0-9_]`)

	squareLabelRe = regexp.MustCompile(`(\b\w+\[)([^\[\]]*?)(\])`)
	roundLabelRe  = regexp.MustCompile(`(\b\w+\()([^()]*?)(\))`)
	curlyLabelRe  = regexp.MustCompile(`(\b\w+\{)([^{}]*?)(\})`)
)

// CleanMermaid strips markdown fences, YAML frontmatter and accessibility
// directives from model output, and quotes node labels that would otherwise
// break Mermaid 10.x parsing.
func CleanMermaid(code string) string {
	code = strings.TrimSpace(code)

	if strings.HasPrefix(code, "```mermaid") {
		code = strings.TrimSpace(code[len("```mermaid"):])
	} else if strings.HasPrefix(code, "```") {
		code = strings.TrimSpace(code[3:])
	}
	if strings.HasSuffix(code, "```") {
		code = strings.TrimSpace(code[:len(code)-3])
	}

	code = frontmatterRe.ReplaceAllString(code, "")
	code = accBlockRe.ReplaceAllString(code, "")
	code = accTitleRe.ReplaceAllString(code, "")
	code = accDescrRe.ReplaceAllString(code, "")
	code = fixUnquotedLabels(code)

	return strings.TrimSpace(code)
}

// sanitizeID makes a node ID safe for Mermaid: alphanumerics and
// underscores only, starting with a letter.
func sanitizeID(id string) string {
	if id == "" {
		return "X"
	}
	s := nodeIDRe.ReplaceAllString(id, "_")
	if s == "" {
		return "X"
	}
	first := s[0]
	if !(first >= 'a' && first <= 'z' || first >= 'A' && first <= 'Z') {
		s = "N" + s
	}
	return s
}

func escapeLabel(label string) string {
	label = strings.ReplaceAll(label, `"`, "'")
	label = strings.ReplaceAll(label, "#", "")
	label = strings.ReplaceAll(label, ";", ",")
	return label
}

const quoteTriggers = "():<>;{}|&"

// fixUnquotedLabels wraps node labels containing Mermaid-breaking characters
// in double quotes, e.g. A[Laser (1064nm)] becomes A["Laser (1064nm)"].
func fixUnquotedLabels(code string) string {
	quote := func(m []string) string {
		prefix, label, suffix := m[1], m[2], m[3]
		if strings.HasPrefix(label, `"`) && strings.HasSuffix(label, `"`) {
			return m[0]
		}
		if !strings.ContainsAny(label, quoteTriggers) {
			return m[0]
		}
		label = strings.ReplaceAll(label, `"`, "'")
		return prefix + `"` + label + `"` + suffix
	}
	for _, re := range []*regexp.Regexp{squareLabelRe, roundLabelRe, curlyLabelRe} {
		code = re.ReplaceAllStringFunc(code, func(match string) string {
			return quote(re.FindStringSubmatch(match))
		})
	}
	return code
}
