package sections

import "strings"

// ScreeningInput returns abstract + conclusion. When neither was
// detected, a long paper falls back to its first and last 500 words.
func ScreeningInput(secs map[string]string) string {
	var parts []string
	if abstract := first(secs, Abstract); abstract != "" {
		parts = append(parts, "=== ABSTRACT ===\n"+abstract)
	}
	if conclusion := first(secs, Conclusion); conclusion != "" {
		parts = append(parts, "=== CONCLUSION ===\n"+conclusion)
	}
	if len(parts) > 0 {
		return strings.Join(parts, "\n\n")
	}

	full := secs[FullText]
	words := strings.Fields(full)
	if len(words) > 1000 {
		head := strings.Join(words[:500], " ")
		tail := strings.Join(words[len(words)-500:], " ")
		return "=== BEGINNING ===\n" + head + "\n\n=== END ===\n" + tail
	}
	return full
}

// VisualInput returns the text of the sections most likely to reference
// figures and tables, each under a header. When none of the usual
// suspects exist, the full text is returned so the whole paper gets
// scanned.
func VisualInput(secs map[string]string) string {
	candidates := []string{
		Results, ResultsDiscussion, Method, Experimental, MaterialsMethods, Discussion,
	}
	var parts []string
	for _, name := range candidates {
		text := strings.TrimSpace(secs[name])
		if text == "" {
			continue
		}
		header := strings.ToUpper(strings.ReplaceAll(name, "_", " "))
		parts = append(parts, "=== "+header+" ===\n"+text)
	}
	if len(parts) > 0 {
		return strings.Join(parts, "\n\n")
	}
	return secs[FullText]
}

// RecipeInput returns the methodology text: a known method section,
// then any section whose name hints at methodology, then full text.
func RecipeInput(secs map[string]string) string {
	if text := first(secs, Method, Experimental, MaterialsMethods, Background); text != "" {
		return text
	}
	for name, text := range secs {
		lower := strings.ToLower(name)
		for _, kw := range []string{"method", "experimental", "procedure", "material"} {
			if strings.Contains(lower, kw) && strings.TrimSpace(text) != "" {
				return text
			}
		}
	}
	return secs[FullText]
}

// DeepDiveInput returns introduction + results/discussion, falling
// back to the full text when neither was detected.
func DeepDiveInput(secs map[string]string) string {
	var parts []string
	if intro := first(secs, Introduction, Background); intro != "" {
		parts = append(parts, "=== INTRODUCTION ===\n"+intro)
	}
	if results := first(secs, ResultsDiscussion, Results, Discussion); results != "" {
		parts = append(parts, "=== RESULTS & DISCUSSION ===\n"+results)
	}
	if len(parts) == 0 {
		return secs[FullText]
	}
	return strings.Join(parts, "\n\n")
}

func first(secs map[string]string, names ...string) string {
	for _, name := range names {
		if text := strings.TrimSpace(secs[name]); text != "" {
			return secs[name]
		}
	}
	return ""
}
