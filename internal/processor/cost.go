package processor

import (
	"fmt"
	"math"

	"contentpipeline/internal/domain"
)

// ModelPricing is one model's per-1000-token rate, in USD.
type ModelPricing struct {
	InputPer1K  float64
	OutputPer1K float64
}

// defaultFallbackModel is the pricing row used when a model has no exact
// entry in the table; kept distinct from the table lookup key so a future
// rename of the default model doesn't silently change the fallback target.
const defaultFallbackModel = "gpt-35-turbo"

// DefaultPricing is the built-in pricing table, keyed by model name. Callers
// needing a different table (e.g. from config) pass their own to CostOf.
var DefaultPricing = map[string]ModelPricing{
	"gpt-35-turbo": {InputPer1K: 0.0005, OutputPer1K: 0.0015},
	"gpt-4":        {InputPer1K: 0.01, OutputPer1K: 0.03},
	"gpt-4o":       {InputPer1K: 0.0025, OutputPer1K: 0.01},
	"claude-3-5-sonnet-20241022": {InputPer1K: 0.003, OutputPer1K: 0.015},
	"claude-3-haiku-20240307":    {InputPer1K: 0.00025, OutputPer1K: 0.00125},
	"text-embedding-ada-002":     {InputPer1K: 0.0001, OutputPer1K: 0},
}

// PricingFor returns the table's pricing row for model, falling back to
// defaultFallbackModel when model has no exact entry.
func PricingFor(table map[string]ModelPricing, model string) ModelPricing {
	if p, ok := table[model]; ok {
		return p
	}
	if p, ok := table[defaultFallbackModel]; ok {
		return p
	}
	return ModelPricing{InputPer1K: 0.0005, OutputPer1K: 0.0015}
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// CostOf implements §4.F.4: cost = input_tokens/1000*input_price +
// output_tokens/1000*output_price, rounded to 6 decimals. Negative token
// counts are a caller bug, not a runtime condition, so they return
// domain.ErrValidation rather than silently clamping.
func CostOf(table map[string]ModelPricing, model string, inputTokens, outputTokens int) (domain.CostBreakdown, error) {
	if inputTokens < 0 || outputTokens < 0 {
		return domain.CostBreakdown{}, fmt.Errorf("%w: token counts must be non-negative", domain.ErrValidation)
	}

	pricing := PricingFor(table, model)
	inputCost := round6(float64(inputTokens) / 1000 * pricing.InputPer1K)
	outputCost := round6(float64(outputTokens) / 1000 * pricing.OutputPer1K)

	return domain.CostBreakdown{
		InputCost:  inputCost,
		OutputCost: outputCost,
		TotalCost:  round6(inputCost + outputCost),
	}, nil
}
