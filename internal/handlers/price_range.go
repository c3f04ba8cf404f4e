package handlers

import "fmt"

type priceRangeInput struct {
	Min *float64
	Max *float64
}

// validatePriceRange treats a zero max as "no upper bound".
func validatePriceRange(min, max float64) error {
	if min < 0 {
		return fmt.Errorf("priceMin must be zero or greater")
	}
	if max < 0 {
		return fmt.Errorf("priceMax must be zero or greater")
	}
	if max > 0 && max < min {
		return fmt.Errorf("priceMax must be greater than or equal to priceMin")
	}
	return nil
}

func resolvePriceRange(existingMin, existingMax float64, input priceRangeInput) (float64, float64, error) {
	min, max := existingMin, existingMax
	if input.Min != nil {
		min = *input.Min
	}
	if input.Max != nil {
		max = *input.Max
	}
	if err := validatePriceRange(min, max); err != nil {
		return 0, 0, err
	}
	return min, max, nil
}

func priceLabel(min, max float64) string {
	switch {
	case min <= 0 && max <= 0:
		return "Price on request"
	case max <= 0 || max == min:
		return fmt.Sprintf("₹%.2f", min)
	case min <= 0:
		return fmt.Sprintf("Up to ₹%.2f", max)
	}
	return fmt.Sprintf("₹%.2f - ₹%.2f", min, max)
}
