package retrieval_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"mealplan-orchestrator/internal/domain"
	"mealplan-orchestrator/internal/usecase/retrieval"
)

func TestClassifyMealText(t *testing.T) {
	cases := []struct {
		name string
		text string
		want domain.MealType
	}{
		{"breakfast vocabulary", "Masala oats porridge with toast", domain.MealTypeBreakfast},
		{"lunch dinner vocabulary", "Slow-cooked dal with rice and sabzi", domain.MealTypeLunchDinner},
		{"snack vocabulary", "Crispy vegetable pakora bites", domain.MealTypeSnack},
		{"no vocabulary", "Something entirely unrelated", domain.MealTypeUnclassified},
		{"tie stays unclassified", "breakfast lunch", domain.MealTypeUnclassified},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, retrieval.ClassifyMealText(tc.text))
		})
	}
}

func TestInferMealType_UsesNameAndBody(t *testing.T) {
	c := domain.Candidate{
		Name: "Idli",
		Body: "Steamed dosa-style batter, classic breakfast staple.",
	}
	assert.Equal(t, domain.MealTypeBreakfast, retrieval.InferMealType(&c))
}

func TestMatchesSlot(t *testing.T) {
	assert.True(t, retrieval.MatchesSlot(domain.MealTypeBreakfast, domain.MealTypeBreakfast))
	assert.False(t, retrieval.MatchesSlot(domain.MealTypeBreakfast, domain.MealTypeSnack))

	// Unclassified on either side is permissive.
	assert.True(t, retrieval.MatchesSlot(domain.MealTypeUnclassified, domain.MealTypeSnack))
	assert.True(t, retrieval.MatchesSlot(domain.MealTypeLunchDinner, domain.MealTypeUnclassified))
}
