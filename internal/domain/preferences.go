package domain

import (
	"fmt"
	"strings"
)

// MaxCuisines caps how many cuisines one request may spread its candidate
// budget across. Beyond this, per-cuisine quotas starve.
const MaxCuisines = 5

// TotalCandidateBudget is the global number of template candidates a single
// request plans for across all cuisines and meal slots.
const TotalCandidateBudget = 70

// DietType is the caller-declared dietary pattern.
type DietType string

const (
	DietOmnivore   DietType = "omnivore"
	DietVegetarian DietType = "vegetarian"
	DietVegan      DietType = "vegan"
	DietPescatari  DietType = "pescatarian"
)

// PlanPreferences is the inbound request: the loosely-specified constraints
// the pipeline turns into a candidate set.
type PlanPreferences struct {
	Cuisines      []string
	DietType      DietType
	Allergens     []string
	Symptoms      []string
	LabMarkers    []string
	BudgetCeiling float64
	MaxPrepTime   int // minutes, 0 = unlimited
	LowCarbMode   bool
	MealsPerDay   int
	DurationDays  int
}

// Normalize validates and canonicalizes a request in place: trims and
// lower-cases cuisines and allergens, deduplicates allergens, and truncates
// cuisine lists beyond MaxCuisines. Returns the number of cuisines cut so
// the caller can log the truncation.
func (p *PlanPreferences) Normalize() (truncatedCuisines int, err error) {
	if p.MealsPerDay < 0 || p.DurationDays < 0 {
		return 0, fmt.Errorf("meals_per_day and duration_days must be non-negative")
	}
	if p.BudgetCeiling < 0 {
		return 0, fmt.Errorf("budget_ceiling must be non-negative")
	}

	cuisines := make([]string, 0, len(p.Cuisines))
	seenCuisine := make(map[string]bool)
	for _, c := range p.Cuisines {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" || seenCuisine[c] {
			continue
		}
		seenCuisine[c] = true
		cuisines = append(cuisines, c)
	}
	if len(cuisines) > MaxCuisines {
		truncatedCuisines = len(cuisines) - MaxCuisines
		cuisines = cuisines[:MaxCuisines]
	}
	p.Cuisines = cuisines

	p.Allergens = DedupeAllergens(p.Allergens)
	return truncatedCuisines, nil
}

// DedupeAllergens returns the unique, canonicalized restriction set,
// preserving first-seen order.
func DedupeAllergens(allergens []string) []string {
	out := make([]string, 0, len(allergens))
	seen := make(map[string]bool)
	for _, a := range allergens {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	return out
}
