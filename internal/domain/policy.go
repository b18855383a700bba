package domain

import "fmt"

// PreparationPolicy turns a coffee count into preparation minutes:
// base for the first cup, PerAdditionalMinutes for every further cup.
type PreparationPolicy struct {
	BaseMinutes          int
	PerAdditionalMinutes int
}

func (p PreparationPolicy) Validate() error {
	if p.BaseMinutes <= 0 {
		return fmt.Errorf("preparation base minutes must be positive, got %d: %w", p.BaseMinutes, ErrConfig)
	}
	if p.PerAdditionalMinutes < 0 {
		return fmt.Errorf("preparation per-additional minutes must not be negative, got %d: %w", p.PerAdditionalMinutes, ErrConfig)
	}
	return nil
}

func (p PreparationPolicy) Minutes(coffeeCount int) int {
	if coffeeCount <= 0 {
		return 0
	}
	return p.BaseMinutes + (coffeeCount-1)*p.PerAdditionalMinutes
}
