package domains

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"paperlens/internal/models"
)

const (
	// Minimum keyword confidence to skip the semantic fallback.
	confidenceThreshold = 0.7
	// Minimum gap between the top two scores to count as unambiguous.
	ambiguityGap = 0.15
)

// SemanticVerdict is the result of a model-based classification.
type SemanticVerdict struct {
	Domain     string
	Confidence float64
	Reasoning  string
}

// SemanticClassifier resolves papers that keyword scoring cannot. A nil
// classifier is allowed; the router then returns the keyword result
// flagged for confirmation.
type SemanticClassifier interface {
	ClassifyDomain(ctx context.Context, title, abstract string) (SemanticVerdict, error)
}

// Router classifies papers into domains: keyword scoring first, then a
// semantic fallback for low-confidence or ambiguous results.
type Router struct {
	semantic SemanticClassifier
	log      *logrus.Logger
	patterns map[string][]*regexp.Regexp
	weighted map[string][]*regexp.Regexp
}

func NewRouter(semantic SemanticClassifier, log *logrus.Logger) *Router {
	r := &Router{
		semantic: semantic,
		log:      log,
		patterns: make(map[string][]*regexp.Regexp),
		weighted: make(map[string][]*regexp.Regexp),
	}
	for key, spec := range Specs {
		for _, kw := range spec.Keywords {
			r.patterns[key] = append(r.patterns[key], keywordPattern(kw))
		}
		for _, kw := range spec.WeightedKeywords {
			r.weighted[key] = append(r.weighted[key], keywordPattern(kw))
		}
	}
	return r
}

func keywordPattern(kw string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(kw) + `\b`)
}

// Classify runs keyword scoring and, when the result is weak or
// ambiguous, falls through to the semantic classifier.
func (r *Router) Classify(ctx context.Context, title, abstract string) (models.DomainClassification, error) {
	kw := r.keywordClassify(title, abstract)
	r.log.WithFields(logrus.Fields{
		"domain":     kw.Domain,
		"confidence": kw.Confidence,
		"matches":    len(kw.KeywordMatches),
	}).Info("keyword classification")

	if kw.Confidence >= confidenceThreshold {
		if gap, ok := topTwoGap(kw.AllScores); ok && gap < ambiguityGap {
			r.log.WithField("gap", gap).Info("keyword result ambiguous, trying semantic")
			return r.semanticClassify(ctx, title, abstract, kw), nil
		}
		return kw, nil
	}
	return r.semanticClassify(ctx, title, abstract, kw), nil
}

// Override records a user-chosen domain with full confidence.
func (r *Router) Override(domain string) (models.DomainClassification, error) {
	spec, ok := Specs[domain]
	if !ok {
		keys := make([]string, 0, len(Specs))
		for k := range Specs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return models.DomainClassification{}, fmt.Errorf("unknown domain %q, valid domains: %s", domain, strings.Join(keys, ", "))
	}
	return models.DomainClassification{
		Domain:            domain,
		DisplayName:       spec.DisplayName,
		Profile:           spec.AgentName,
		Confidence:        1.0,
		Method:            models.MethodManual,
		NeedsConfirmation: false,
		Reasoning:         "User manual override.",
	}, nil
}

func (r *Router) keywordClassify(title, abstract string) models.DomainClassification {
	combined := title + "\n" + abstract
	titleLower := strings.ToLower(title)

	scores := make(map[string]float64, len(Specs))
	matches := make(map[string][]string, len(Specs))

	for key, spec := range Specs {
		var score float64
		var matched []string
		for i, pat := range r.patterns[key] {
			bodyHits := len(pat.FindAllStringIndex(combined, -1))
			titleHits := len(pat.FindAllStringIndex(titleLower, -1))
			if bodyHits > 0 {
				score += float64(bodyHits)
				matched = append(matched, spec.Keywords[i])
			}
			// Title hits add 2 extra on top of the body count (3x total).
			score += float64(titleHits * 2)
		}
		for i, pat := range r.weighted[key] {
			bodyHits := len(pat.FindAllStringIndex(combined, -1))
			titleHits := len(pat.FindAllStringIndex(titleLower, -1))
			if bodyHits > 0 {
				score += float64(bodyHits * 2)
				matched = append(matched, spec.WeightedKeywords[i])
			}
			// 2x weight and 3x title compound to 6x total.
			score += float64(titleHits * 4)
		}
		scores[key] = score
		matches[key] = matched
	}

	var maxScore float64
	for _, s := range scores {
		if s > maxScore {
			maxScore = s
		}
	}

	normalized := make(map[string]float64, len(scores))
	for k, s := range scores {
		if maxScore > 0 {
			normalized[k] = round3(s / maxScore)
		} else {
			normalized[k] = 0
		}
	}

	if maxScore == 0 {
		return models.DomainClassification{
			Domain:            Unknown,
			DisplayName:       "Unknown",
			Confidence:        0,
			Method:            models.MethodKeyword,
			NeedsConfirmation: true,
			AllScores:         normalized,
			Reasoning:         "No domain keywords matched.",
		}
	}

	best := Unknown
	bestScore := -1.0
	keys := make([]string, 0, len(normalized))
	for k := range normalized {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if normalized[k] > bestScore {
			best = k
			bestScore = normalized[k]
		}
	}

	confidence := bestScore
	// Diminishing returns: few matches never yield high confidence.
	switch n := len(matches[best]); {
	case n <= 1:
		confidence = math.Min(confidence, 0.4)
	case n <= 2:
		confidence = math.Min(confidence, 0.6)
	}

	spec := Specs[best]
	return models.DomainClassification{
		Domain:            best,
		DisplayName:       spec.DisplayName,
		Profile:           spec.AgentName,
		Confidence:        round3(confidence),
		Method:            models.MethodKeyword,
		NeedsConfirmation: false,
		KeywordMatches:    matches[best],
		AllScores:         normalized,
		Reasoning:         fmt.Sprintf("Matched %d keywords in domain %q.", len(matches[best]), best),
	}
}

func (r *Router) semanticClassify(ctx context.Context, title, abstract string, kw models.DomainClassification) models.DomainClassification {
	if r.semantic == nil {
		kw.NeedsConfirmation = true
		kw.Reasoning += " (Semantic fallback unavailable.)"
		return kw
	}

	verdict, err := r.semantic.ClassifyDomain(ctx, title, abstract)
	if err != nil {
		r.log.WithError(err).Error("semantic classification failed")
		kw.NeedsConfirmation = true
		kw.Reasoning += fmt.Sprintf(" (Semantic fallback failed: %v)", err)
		return kw
	}
	r.log.WithFields(logrus.Fields{
		"domain":     verdict.Domain,
		"confidence": verdict.Confidence,
	}).Info("semantic classification")

	if verdict.Domain == kw.Domain {
		spec, ok := Specs[verdict.Domain]
		if !ok {
			return r.unknownResult(kw, verdict.Reasoning)
		}
		combined := math.Min(1.0, (kw.Confidence+verdict.Confidence)/2+0.15)
		return models.DomainClassification{
			Domain:            verdict.Domain,
			DisplayName:       spec.DisplayName,
			Profile:           spec.AgentName,
			Confidence:        round3(combined),
			Method:            models.MethodSemantic,
			NeedsConfirmation: false,
			KeywordMatches:    kw.KeywordMatches,
			AllScores:         kw.AllScores,
			Reasoning:         fmt.Sprintf("Keyword and semantic agree on %q. %s", verdict.Domain, verdict.Reasoning),
		}
	}

	if verdict.Confidence > kw.Confidence && Known(verdict.Domain) {
		spec := Specs[verdict.Domain]
		adjusted := verdict.Confidence * 0.85
		return models.DomainClassification{
			Domain:            verdict.Domain,
			DisplayName:       spec.DisplayName,
			Profile:           spec.AgentName,
			Confidence:        round3(adjusted),
			Method:            models.MethodSemantic,
			NeedsConfirmation: adjusted < confidenceThreshold,
			KeywordMatches:    kw.KeywordMatches,
			AllScores:         kw.AllScores,
			Reasoning: fmt.Sprintf("Semantic (%s, %.2f) overrides keyword (%s, %.2f). %s",
				verdict.Domain, verdict.Confidence, kw.Domain, kw.Confidence, verdict.Reasoning),
		}
	}

	if kw.Domain != Unknown && kw.Confidence > 0 {
		kw.NeedsConfirmation = true
		kw.Reasoning = fmt.Sprintf("Methods disagree: keyword=%s (%.2f), semantic=%s (%.2f). %s",
			kw.Domain, kw.Confidence, verdict.Domain, verdict.Confidence, verdict.Reasoning)
		return kw
	}
	return r.unknownResult(kw, verdict.Reasoning)
}

func (r *Router) unknownResult(kw models.DomainClassification, reasoning string) models.DomainClassification {
	return models.DomainClassification{
		Domain:            Unknown,
		DisplayName:       "Unknown",
		Confidence:        0,
		Method:            models.MethodSemantic,
		NeedsConfirmation: true,
		KeywordMatches:    kw.KeywordMatches,
		AllScores:         kw.AllScores,
		Reasoning:         "Could not determine domain. " + reasoning,
	}
}

func topTwoGap(scores map[string]float64) (float64, bool) {
	if len(scores) < 2 {
		return 0, false
	}
	vals := make([]float64, 0, len(scores))
	for _, v := range scores {
		vals = append(vals, v)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(vals)))
	return vals[0] - vals[1], true
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
