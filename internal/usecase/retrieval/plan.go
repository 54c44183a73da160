package retrieval

import (
	"fmt"
	"log/slog"

	"mealplan-orchestrator/internal/domain"
)

// Meal-slot shares of each cuisine's quota. The general bucket absorbs
// rounding leftover so the per-cuisine sum stays exact.
const (
	breakfastShare   = 0.25
	lunchDinnerShare = 0.60
	snackShare       = 0.10
)

// unspecifiedCuisine is the fallback bucket when the caller names no cuisine.
const unspecifiedCuisine = "unspecified"

// AllocateQuotas distributes totalBudget across cuisines with fair remainder
// handling: the last `remainder` cuisines (by input order) get one extra, so
// counts differ by at most one and always sum to totalBudget.
func AllocateQuotas(cuisines []string, totalBudget int) QuotaAllocation {
	if len(cuisines) == 0 {
		return QuotaAllocation{unspecifiedCuisine: totalBudget}
	}

	base := totalBudget / len(cuisines)
	remainder := totalBudget % len(cuisines)

	quotas := make(QuotaAllocation, len(cuisines))
	for i, cuisine := range cuisines {
		quota := base
		if i >= len(cuisines)-remainder {
			quota++
		}
		quotas[cuisine] = quota
	}
	return quotas
}

// Plan turns normalized preferences into the query set to issue: one entry
// per cuisine and meal slot, with TopK values that sum exactly to
// totalBudget. Cuisine order is preserved so the downstream merge is
// deterministic.
func Plan(prefs domain.PlanPreferences, totalBudget int, logger *slog.Logger) ([]QueryPlanEntry, QuotaAllocation) {
	cuisines := prefs.Cuisines
	if len(cuisines) == 0 {
		cuisines = []string{unspecifiedCuisine}
		logger.Info("plan_fallback_bucket",
			slog.String("cuisine", unspecifiedCuisine),
			slog.Int("budget", totalBudget))
	}

	quotas := AllocateQuotas(cuisines, totalBudget)

	entries := make([]QueryPlanEntry, 0, len(cuisines)*4)
	for _, cuisine := range cuisines {
		quota := quotas[cuisine]

		breakfast := int(float64(quota) * breakfastShare)
		lunchDinner := int(float64(quota) * lunchDinnerShare)
		snack := int(float64(quota) * snackShare)
		general := quota - breakfast - lunchDinner - snack

		buckets := []struct {
			mealType domain.MealType
			topK     int
		}{
			{domain.MealTypeBreakfast, breakfast},
			{domain.MealTypeLunchDinner, lunchDinner},
			{domain.MealTypeSnack, snack},
			{domain.MealTypeUnclassified, general},
		}

		for _, b := range buckets {
			if b.topK <= 0 {
				continue
			}
			entries = append(entries, QueryPlanEntry{
				Cuisine:  cuisine,
				MealType: b.mealType,
				Query:    buildQueryText(cuisine, b.mealType, prefs),
				TopK:     b.topK,
				Filter: &domain.SearchFilter{
					Cuisine: planFilterCuisine(cuisine),
				},
			})
		}

		logger.Info("quota_allocated",
			slog.String("cuisine", cuisine),
			slog.Int("quota", quota),
			slog.Int("breakfast", breakfast),
			slog.Int("lunch_dinner", lunchDinner),
			slog.Int("snack", snack),
			slog.Int("general", general))
	}

	return entries, quotas
}

func planFilterCuisine(cuisine string) string {
	if cuisine == unspecifiedCuisine {
		return ""
	}
	return cuisine
}

func buildQueryText(cuisine string, mealType domain.MealType, prefs domain.PlanPreferences) string {
	slot := "meal"
	switch mealType {
	case domain.MealTypeBreakfast:
		slot = "breakfast"
	case domain.MealTypeLunchDinner:
		slot = "lunch or dinner meal"
	case domain.MealTypeSnack:
		slot = "snack"
	}

	query := slot
	if cuisine != unspecifiedCuisine {
		query = fmt.Sprintf("%s %s", cuisine, slot)
	}
	if prefs.DietType != "" && prefs.DietType != domain.DietOmnivore {
		query = fmt.Sprintf("%s %s", string(prefs.DietType), query)
	}
	if prefs.LowCarbMode {
		query = "low carb " + query
	}
	return query
}
