package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"mealplan-orchestrator/internal/domain"
)

func TestNormalize_CanonicalizesCuisines(t *testing.T) {
	prefs := domain.PlanPreferences{
		Cuisines: []string{" Japanese ", "THAI", "japanese", "", "thai"},
	}

	truncated, err := prefs.Normalize()

	assert.NoError(t, err)
	assert.Equal(t, 0, truncated)
	assert.Equal(t, []string{"japanese", "thai"}, prefs.Cuisines)
}

func TestNormalize_TruncatesBeyondMaxCuisines(t *testing.T) {
	prefs := domain.PlanPreferences{
		Cuisines: []string{"a", "b", "c", "d", "e", "f", "g"},
	}

	truncated, err := prefs.Normalize()

	assert.NoError(t, err)
	assert.Equal(t, 2, truncated)
	assert.Len(t, prefs.Cuisines, domain.MaxCuisines)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, prefs.Cuisines)
}

func TestNormalize_RejectsNegativeValues(t *testing.T) {
	prefs := domain.PlanPreferences{MealsPerDay: -1}
	_, err := prefs.Normalize()
	assert.Error(t, err)

	prefs = domain.PlanPreferences{BudgetCeiling: -0.5}
	_, err = prefs.Normalize()
	assert.Error(t, err)
}

func TestNormalize_DedupesAllergens(t *testing.T) {
	prefs := domain.PlanPreferences{
		Allergens: []string{"Gluten", "dairy", "gluten", " DAIRY ", ""},
	}

	_, err := prefs.Normalize()

	assert.NoError(t, err)
	assert.Equal(t, []string{"gluten", "dairy"}, prefs.Allergens)
}

func TestDedupeAllergens_Idempotent(t *testing.T) {
	once := domain.DedupeAllergens([]string{"soy", "Fish", "soy"})
	twice := domain.DedupeAllergens(once)
	assert.Equal(t, once, twice)
}

func TestHasTemplateShape(t *testing.T) {
	withShape := domain.Candidate{Name: "Miso Soup", Ingredients: []string{"miso", "tofu"}}
	assert.True(t, withShape.HasTemplateShape())

	noIngredients := domain.Candidate{Name: "General advice"}
	assert.False(t, noIngredients.HasTemplateShape())

	noName := domain.Candidate{Ingredients: []string{"rice"}}
	assert.False(t, noName.HasTemplateShape())
}
