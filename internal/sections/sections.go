package sections

import (
	"regexp"
	"sort"
	"strings"
)

// Standard section names. Split maps whatever headings a paper uses
// onto these; anything unrecognized keeps a snake_cased form of its
// own heading.
const (
	Abstract           = "abstract"
	Introduction       = "introduction"
	Background         = "background"
	Method             = "method"
	Experimental       = "experimental"
	MaterialsMethods   = "materials_methods"
	Results            = "results"
	Discussion         = "discussion"
	ResultsDiscussion  = "results_discussion"
	Conclusion         = "conclusion"
	References         = "references"
	Acknowledgments    = "acknowledgments"

	// FullText is the single-entry fallback key when no section
	// boundaries could be detected.
	FullText = "full_text"
)

type namedPattern struct {
	name    string
	match   []*regexp.Regexp // case-insensitive, for heading normalization
	headers []*regexp.Regexp // whole-line variants, for boundary scanning
}

func pattern(name string, exprs ...string) namedPattern {
	np := namedPattern{name: name}
	for _, e := range exprs {
		np.match = append(np.match, regexp.MustCompile(`(?i)`+e))
		np.headers = append(np.headers, regexp.MustCompile(`(?im)^.*`+e+`.*$`))
	}
	return np
}

// Combined sections are listed before their parts so that a
// "Results and Discussion" heading normalizes to the combined name.
var namePatterns = []namedPattern{
	pattern(ResultsDiscussion,
		`\bRESULTS?\s+AND\s+DISCUSSION\b`,
		`\bDISCUSSION\s+OF\s+RESULTS?\b`,
	),
	pattern(Abstract, `\bABSTRACT\b`, `\bSUMMARY\b`),
	pattern(Introduction, `\bINTRODUCTION\b`, `\bBACKGROUND\s+AND\s+INTRODUCTION\b`),
	pattern(Background, `\bBACKGROUND\b`, `\bRELATED\s+WORK\b`, `\bLITERATURE\s+REVIEW\b`),
	pattern(Method,
		`\bMETHOD(S)?\b`,
		`\bMETHODOLOGY\b`,
		`\bEXPERIMENTAL\s+SECTION\b`,
		`\bEXPERIMENTAL\s+PROCEDURE(S)?\b`,
		`\bMATERIALS?\s+AND\s+METHODS?\b`,
		`\bEXPERIMENTAL\s+METHODS?\b`,
		`\bPROCEDURE(S)?\b`,
	),
	pattern(Results, `\bRESULTS?\b`, `\bFINDINGS?\b`, `\bOBSERVATIONS?\b`),
	pattern(Discussion, `\bDISCUSSION\b`, `\bANALYSIS\b`),
	pattern(Conclusion,
		`\bCONCLUSION(S)?\b`,
		`\bSUMMARY\s+AND\s+CONCLUSION(S)?\b`,
		`\bFINAL\s+REMARKS?\b`,
	),
	pattern(References, `\bREFERENCES?\b`, `\bBIBLIOGRAPHY\b`, `\bCITATIONS?\b`),
	pattern(Acknowledgments, `\bACKNOWLEDGMENTS?\b`, `\bACKNOWLEDGEMENTS?\b`),
}

var headingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(\d+(?:\.\d+)*)\.\s+(.+)$`),
	regexp.MustCompile(`^([IVX]+)\.\s+(.+)$`),
	regexp.MustCompile(`^([A-Z])\.\s+(.+)$`),
	regexp.MustCompile(`^\((\d+)\)\s+(.+)$`),
}

var (
	leadingNumbering = regexp.MustCompile(`^[\dIVX]+\.?\s*`)
	leadingParen     = regexp.MustCompile(`^\([^)]+\)\s*`)
	nonWord          = regexp.MustCompile(`[^\w\s-]`)
	spaceRun         = regexp.MustCompile(`[-\s]+`)
)

// Split divides raw paper text into named sections. Name-based
// detection runs first; if it finds fewer than two sections, a
// heading-based pass (numbered, lettered, ALL CAPS) runs; when both
// fail the whole text is returned under FullText.
func Split(text string) map[string]string {
	if s := splitByNames(text); len(s) > 1 {
		return s
	}
	if s := splitByHeadings(text); len(s) > 1 {
		return s
	}
	return map[string]string{FullText: text}
}

type headerHit struct {
	name  string
	start int
}

func splitByNames(text string) map[string]string {
	var hits []headerHit
	for _, np := range namePatterns {
		for _, lineRe := range np.headers {
			for _, loc := range lineRe.FindAllStringIndex(text, -1) {
				line := strings.TrimSpace(text[loc[0]:loc[1]])
				// A long line is part of a sentence, not a header.
				if len(line) > 100 {
					continue
				}
				hits = append(hits, headerHit{name: np.name, start: loc[0]})
			}
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].start < hits[j].start })

	// A combined heading like "Results and Discussion" matches several
	// patterns at the same offset; keep only the first registered name.
	deduped := hits[:0]
	for _, h := range hits {
		if len(deduped) > 0 && deduped[len(deduped)-1].start == h.start {
			continue
		}
		deduped = append(deduped, h)
	}
	hits = deduped

	sections := make(map[string]string)
	for i, h := range hits {
		end := len(text)
		if i+1 < len(hits) {
			end = hits[i+1].start
		}
		body := strings.TrimSpace(text[h.start:end])
		if idx := strings.Index(body, "\n"); idx >= 0 {
			body = strings.TrimSpace(body[idx+1:])
		}
		if prev, ok := sections[h.name]; ok {
			sections[h.name] = prev + "\n\n" + body
		} else {
			sections[h.name] = body
		}
	}
	return sections
}

func splitByHeadings(text string) map[string]string {
	sections := make(map[string]string)
	var current string
	var content []string

	flush := func() {
		if current != "" {
			body := strings.TrimSpace(strings.Join(content, "\n"))
			if body != "" {
				sections[current] = body
			}
		}
	}

	for _, line := range strings.Split(text, "\n") {
		stripped := strings.TrimSpace(line)
		heading := ""
		for _, pat := range headingPatterns {
			if m := pat.FindStringSubmatch(stripped); m != nil {
				heading = m[len(m)-1]
				break
			}
		}
		if heading == "" && len(stripped) > 3 && len(stripped) < 60 && isAllUpper(stripped) {
			heading = stripped
		}
		if heading != "" {
			flush()
			current = normalizeName(heading)
			content = content[:0]
			continue
		}
		if current != "" {
			content = append(content, line)
		}
	}
	flush()
	return sections
}

func isAllUpper(s string) bool {
	hasLetter := false
	for _, r := range s {
		if r >= 'a' && r <= 'z' {
			return false
		}
		if r >= 'A' && r <= 'Z' {
			hasLetter = true
		}
	}
	return hasLetter
}

func normalizeName(heading string) string {
	upper := strings.ToUpper(strings.TrimSpace(heading))
	for _, np := range namePatterns {
		for _, pat := range np.match {
			if pat.MatchString(upper) {
				return np.name
			}
		}
	}
	cleaned := leadingNumbering.ReplaceAllString(heading, "")
	cleaned = leadingParen.ReplaceAllString(cleaned, "")
	cleaned = strings.ToLower(strings.TrimSpace(cleaned))
	cleaned = nonWord.ReplaceAllString(cleaned, "")
	cleaned = spaceRun.ReplaceAllString(cleaned, "_")
	return cleaned
}
