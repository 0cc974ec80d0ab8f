package sections

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const samplePaper = `Ultrafast Fiber Laser Characterization

ABSTRACT
We demonstrate a mode-locked fiber laser with 50 fs pulses.

1. INTRODUCTION
Fiber lasers have become essential tools in spectroscopy.

2. METHODS
The cavity uses a semiconductor saturable absorber mirror.
Pump power was set to 450 mW.

3. RESULTS AND DISCUSSION
Autocorrelation traces confirm 50 fs pulse duration.

4. CONCLUSION
A compact source of ultrashort pulses was demonstrated.

REFERENCES
[1] A. Author, J. Opt. 12, 345 (2020).`

func TestSplitDetectsNamedSections(t *testing.T) {
	secs := Split(samplePaper)
	require.Contains(t, secs, Abstract)
	require.Contains(t, secs, Introduction)
	require.Contains(t, secs, Method)
	require.Contains(t, secs, ResultsDiscussion)
	require.Contains(t, secs, Conclusion)
	require.Contains(t, secs[Method], "saturable absorber")
}

func TestSplitFallsBackToFullText(t *testing.T) {
	text := "just a paragraph of prose with no structure at all"
	secs := Split(text)
	require.Equal(t, map[string]string{FullText: text}, secs)
}

func TestScreeningInputUsesAbstractAndConclusion(t *testing.T) {
	secs := Split(samplePaper)
	in := ScreeningInput(secs)
	require.Contains(t, in, "=== ABSTRACT ===")
	require.Contains(t, in, "=== CONCLUSION ===")
	require.Contains(t, in, "mode-locked fiber laser")
	require.NotContains(t, in, "saturable absorber")
}

func TestScreeningInputFallbackTruncatesLongText(t *testing.T) {
	words := make([]string, 2000)
	for i := range words {
		words[i] = "w"
	}
	secs := map[string]string{FullText: strings.Join(words, " ")}
	in := ScreeningInput(secs)
	require.Contains(t, in, "=== BEGINNING ===")
	require.Contains(t, in, "=== END ===")
	require.Less(t, len(strings.Fields(in)), 1100)
}

func TestRecipeInputPrefersMethodSection(t *testing.T) {
	secs := Split(samplePaper)
	in := RecipeInput(secs)
	require.Contains(t, in, "Pump power was set to 450 mW.")
	require.NotContains(t, in, "ABSTRACT")
}

func TestRecipeInputKeywordFallback(t *testing.T) {
	secs := map[string]string{
		"sample_preparation_procedure": "spin coat at 3000 rpm",
		"other":                        "unrelated",
	}
	require.Equal(t, "spin coat at 3000 rpm", RecipeInput(secs))
}

func TestDeepDiveInputCombinesIntroAndResults(t *testing.T) {
	secs := Split(samplePaper)
	in := DeepDiveInput(secs)
	require.Contains(t, in, "=== INTRODUCTION ===")
	require.Contains(t, in, "=== RESULTS & DISCUSSION ===")
	require.Contains(t, in, "Autocorrelation traces")
}

func TestVisualInputCarriesFigureBearingSectionText(t *testing.T) {
	secs := Split(samplePaper)
	in := VisualInput(secs)
	require.Contains(t, in, "=== METHOD ===")
	require.Contains(t, in, "Pump power was set to 450 mW.")
	require.Contains(t, in, "=== RESULTS DISCUSSION ===")
	require.Contains(t, in, "Autocorrelation traces confirm 50 fs pulse duration.")
	require.NotContains(t, in, "Fiber lasers have become essential tools")
}

func TestVisualInputFallsBackToFullText(t *testing.T) {
	secs := map[string]string{FullText: "no recognizable headings here"}
	require.Equal(t, "no recognizable headings here", VisualInput(secs))
}

func TestNormalizeHeadingVariants(t *testing.T) {
	require.Equal(t, Method, normalizeName("Materials and Methods"))
	require.Equal(t, Conclusion, normalizeName("5. Conclusions"))
	require.Equal(t, "device_fabrication", normalizeName("3. Device Fabrication"))
}
