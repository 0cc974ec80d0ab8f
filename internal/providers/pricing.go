package providers

import "math"

type modelRate struct {
	Input  float64
	Output float64
}

// Pricing table in USD per 1M tokens. Unknown models fall back to the
// cheapest known tier rather than erroring.
var pricing = map[string]modelRate{
	"gemini-3-flash-preview":     {Input: 0.10, Output: 0.40},
	"gemini-3-pro-preview":       {Input: 1.25, Output: 5.00},
	"gemini-3-pro-image-preview": {Input: 1.25, Output: 5.00},
	"gemini-2.0-flash":           {Input: 0.10, Output: 0.40},
	"claude-sonnet-4-20250514":   {Input: 3.00, Output: 15.00},
	"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00},
}

func cheapestRate() modelRate {
	best := modelRate{Input: math.MaxFloat64, Output: math.MaxFloat64}
	for _, r := range pricing {
		if r.Input+r.Output < best.Input+best.Output {
			best = r
		}
	}
	return best
}

// CalcCost computes the USD cost of a single call, rounded to 8 decimals.
func CalcCost(model string, tokensIn, tokensOut int) float64 {
	r, ok := pricing[model]
	if !ok {
		r = cheapestRate()
	}
	cost := float64(tokensIn)/1_000_000*r.Input + float64(tokensOut)/1_000_000*r.Output
	return math.Round(cost*1e8) / 1e8
}

// KnownModel reports whether the model has an exact pricing entry.
func KnownModel(model string) bool {
	_, ok := pricing[model]
	return ok
}
