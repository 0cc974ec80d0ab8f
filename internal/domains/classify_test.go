package domains

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"paperlens/internal/logger"
	"paperlens/internal/models"
)

type fakeSemantic struct {
	verdict SemanticVerdict
	err     error
	calls   int
}

func (f *fakeSemantic) ClassifyDomain(ctx context.Context, title, abstract string) (SemanticVerdict, error) {
	f.calls++
	if f.err != nil {
		return SemanticVerdict{}, f.err
	}
	return f.verdict, nil
}

const opticsAbstract = `We study beam propagation through atmospheric turbulence
using an adaptive optics system. The laser operates at a wavelength of 1550 nm
and the receiver aperture is 10 cm. Scintillation statistics are measured over
a 1 km free-space optical link.`

func TestClassifyConfidentKeywordSkipsSemantic(t *testing.T) {
	sem := &fakeSemantic{}
	r := NewRouter(sem, logger.New())

	got, err := r.Classify(context.Background(), "Laser beam wavelength drift in optical fiber links", opticsAbstract)
	require.NoError(t, err)
	require.Equal(t, "optics", got.Domain)
	require.Equal(t, models.MethodKeyword, got.Method)
	require.GreaterOrEqual(t, got.Confidence, 0.7)
	require.False(t, got.NeedsConfirmation)
	require.Zero(t, sem.calls)
}

func TestClassifyNoMatchesFallsToSemantic(t *testing.T) {
	sem := &fakeSemantic{verdict: SemanticVerdict{Domain: "bio", Confidence: 0.9, Reasoning: "clearly biology"}}
	r := NewRouter(sem, logger.New())

	got, err := r.Classify(context.Background(), "A study of things", "nothing that hints at any field")
	require.NoError(t, err)
	require.Equal(t, "bio", got.Domain)
	require.Equal(t, models.MethodSemantic, got.Method)
	require.Equal(t, 1, sem.calls)
	// 0.9 * 0.85 = 0.765, above the confirmation threshold
	require.InDelta(t, 0.765, got.Confidence, 1e-9)
	require.False(t, got.NeedsConfirmation)
}

func TestClassifyAgreementBlendsConfidence(t *testing.T) {
	sem := &fakeSemantic{verdict: SemanticVerdict{Domain: "optics", Confidence: 0.8}}
	r := NewRouter(sem, logger.New())

	// One keyword match: confidence capped at 0.4, forcing the semantic step.
	got, err := r.Classify(context.Background(), "Untitled", "the beam was aligned carefully")
	require.NoError(t, err)
	require.Equal(t, "optics", got.Domain)
	require.Equal(t, models.MethodSemantic, got.Method)
	// (0.4 + 0.8)/2 + 0.15 = 0.75
	require.InDelta(t, 0.75, got.Confidence, 1e-9)
	require.False(t, got.NeedsConfirmation)
	require.Equal(t, 1, sem.calls)
}

func TestClassifySemanticUnavailableFlagsConfirmation(t *testing.T) {
	r := NewRouter(nil, logger.New())

	got, err := r.Classify(context.Background(), "Untitled", "the beam was aligned carefully")
	require.NoError(t, err)
	require.Equal(t, "optics", got.Domain)
	require.True(t, got.NeedsConfirmation)
}

func TestClassifySemanticErrorKeepsKeywordResult(t *testing.T) {
	sem := &fakeSemantic{err: errors.New("model down")}
	r := NewRouter(sem, logger.New())

	got, err := r.Classify(context.Background(), "Untitled", "the beam was aligned carefully")
	require.NoError(t, err)
	require.Equal(t, "optics", got.Domain)
	require.True(t, got.NeedsConfirmation)
	require.Contains(t, got.Reasoning, "model down")
}

func TestClassifyFewMatchesCapsConfidence(t *testing.T) {
	r := NewRouter(nil, logger.New())

	got := r.keywordClassify("Untitled", "the beam was aligned carefully")
	require.Equal(t, "optics", got.Domain)
	require.LessOrEqual(t, got.Confidence, 0.4)

	got = r.keywordClassify("Untitled", "the laser beam was aligned carefully")
	require.Equal(t, "optics", got.Domain)
	require.LessOrEqual(t, got.Confidence, 0.6)
}

func TestClassifyZeroMatchesIsUnknown(t *testing.T) {
	r := NewRouter(nil, logger.New())

	got := r.keywordClassify("A study of things", "nothing relevant here")
	require.Equal(t, Unknown, got.Domain)
	require.Zero(t, got.Confidence)
	require.True(t, got.NeedsConfirmation)
}

func TestOverride(t *testing.T) {
	r := NewRouter(nil, logger.New())

	got, err := r.Override("bio")
	require.NoError(t, err)
	require.Equal(t, "bio", got.Domain)
	require.Equal(t, models.MethodManual, got.Method)
	require.Equal(t, 1.0, got.Confidence)
	require.False(t, got.NeedsConfirmation)

	_, err = r.Override("astrology")
	require.Error(t, err)
}
