package domains

import (
	"testing"

	"github.com/stretchr/testify/require"

	"paperlens/internal/models"
)

func TestNewProfileDefaults(t *testing.T) {
	p := NewProfile("optics", nil)
	require.Equal(t, "photon", p.Agent)
	require.Contains(t, p.Prompt(models.PhaseScreening), "Optics/Photonics")
	require.Contains(t, p.Prompt(models.PhaseDeepDive), "Error Propagation")
	require.Contains(t, p.RecipeParameters(), "wavelength")
}

func TestNewProfileUnknownDomainIsGeneralist(t *testing.T) {
	p := NewProfile("astrology", nil)
	require.Equal(t, "generalist", p.Agent)
	require.NotEmpty(t, p.Prompt(models.PhaseScreening))
	require.NotEmpty(t, p.RecipeParameters())
}

func TestNewProfileAppliesOverrides(t *testing.T) {
	p := NewProfile("bio", &Overrides{
		Prompts:          map[string]string{"screening": "custom screening"},
		RecipeParameters: []string{"buffer_ph"},
	})
	require.Equal(t, "custom screening", p.Prompt(models.PhaseScreening))
	// Other phases keep their defaults.
	require.Contains(t, p.Prompt(models.PhaseRecipe), "cell_line")
	require.Equal(t, []string{"buffer_ph"}, p.RecipeParameters())
}

func TestProfilePhaseNameNormalization(t *testing.T) {
	p := NewProfile("ee", nil)
	require.Equal(t, p.Prompt("deep_dive"), p.Prompt("deepdive"))
	require.NotEmpty(t, p.Prompt("deepdive"))
}
