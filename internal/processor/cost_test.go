package processor

import (
	"errors"
	"testing"

	"contentpipeline/internal/domain"
)

func TestCostOf_KnownModel(t *testing.T) {
	cost, err := CostOf(DefaultPricing, "gpt-35-turbo", 1000, 500)
	if err != nil {
		t.Fatalf("CostOf: %v", err)
	}
	if cost.InputCost != 0.0005 || cost.OutputCost != 0.00075 {
		t.Fatalf("unexpected breakdown: %+v", cost)
	}
	if cost.TotalCost != 0.00125 {
		t.Fatalf("unexpected total: %v", cost.TotalCost)
	}
}

func TestCostOf_UnknownModelFallsBack(t *testing.T) {
	known, _ := CostOf(DefaultPricing, "gpt-35-turbo", 1000, 500)
	unknown, err := CostOf(DefaultPricing, "some-future-model", 1000, 500)
	if err != nil {
		t.Fatalf("CostOf: %v", err)
	}
	if unknown != known {
		t.Fatalf("expected fallback pricing to match gpt-35-turbo: got %+v want %+v", unknown, known)
	}
}

func TestCostOf_ZeroTokensIsZeroCost(t *testing.T) {
	cost, err := CostOf(DefaultPricing, "gpt-4", 0, 0)
	if err != nil {
		t.Fatalf("CostOf: %v", err)
	}
	if cost.TotalCost != 0 {
		t.Fatalf("expected zero cost, got %v", cost.TotalCost)
	}
}

func TestCostOf_NegativeTokensIsValidationError(t *testing.T) {
	_, err := CostOf(DefaultPricing, "gpt-4", -1, 0)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestCostOf_Additive(t *testing.T) {
	ab, err := CostOf(DefaultPricing, "gpt-4o", 300, 700)
	if err != nil {
		t.Fatalf("CostOf: %v", err)
	}
	a, _ := CostOf(DefaultPricing, "gpt-4o", 100, 200)
	b, _ := CostOf(DefaultPricing, "gpt-4o", 200, 500)
	if ab.TotalCost != round6(a.TotalCost+b.TotalCost) {
		t.Fatalf("cost not additive up to rounding: %v vs %v+%v", ab.TotalCost, a.TotalCost, b.TotalCost)
	}
}
