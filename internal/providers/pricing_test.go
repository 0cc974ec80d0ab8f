package providers

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCalcCostKnownModels(t *testing.T) {
	cases := []struct {
		model     string
		tokensIn  int
		tokensOut int
		want      float64
	}{
		{"gemini-3-flash-preview", 1_000_000, 1_000_000, 0.50},
		{"gemini-3-pro-preview", 1_000_000, 1_000_000, 6.25},
		{"claude-sonnet-4-5-20250929", 1_000_000, 1_000_000, 18.00},
		{"gemini-2.0-flash", 100_000, 50_000, 0.03},
	}
	for _, tc := range cases {
		got := CalcCost(tc.model, tc.tokensIn, tc.tokensOut)
		require.InDelta(t, tc.want, got, 1e-9, "model %s", tc.model)
	}
}

func TestCalcCostUnknownModelUsesCheapestRate(t *testing.T) {
	known := CalcCost("gemini-3-flash-preview", 1000, 1000)
	unknown := CalcCost("some-future-model", 1000, 1000)
	require.Equal(t, known, unknown)
}

func TestCalcCostRounding(t *testing.T) {
	// 1 in + 1 out at the flash rate is below a cent but must not
	// round to zero at 8 decimal places.
	got := CalcCost("gemini-3-flash-preview", 1, 1)
	require.Equal(t, 0.0000005, got)
}

func TestCalcCostZeroTokens(t *testing.T) {
	require.Equal(t, 0.0, CalcCost("gemini-3-pro-preview", 0, 0))
}
