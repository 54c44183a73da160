package usecase_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mealplan-orchestrator/internal/domain"
	"mealplan-orchestrator/internal/usecase"
)

func TestXMLPromptBuilder_SeparatesSections(t *testing.T) {
	templateID := uuid.New()
	set := &usecase.CandidateSet{
		TemplateCandidates: []domain.Candidate{
			{
				ID:           templateID,
				Name:         "Pad Thai",
				Cuisine:      "thai",
				MealType:     domain.MealTypeLunchDinner,
				Ingredients:  []string{"rice noodles", "tamarind"},
				AllergenTags: []string{"peanuts"},
			},
		},
		GuidanceCandidates: []domain.Candidate{
			{ID: uuid.New(), Body: "Prefer steamed over fried."},
		},
		SubstitutionCandidates: []domain.Candidate{
			{ID: uuid.New(), Body: "Sunflower seed butter replaces peanut butter."},
		},
	}
	prefs := domain.PlanPreferences{
		DurationDays: 7,
		MealsPerDay:  3,
		DietType:     domain.DietVegetarian,
		Allergens:    []string{"peanuts"},
	}

	b := usecase.NewXMLPromptBuilder()
	prompt, err := b.Build(prefs, set)

	require.NoError(t, err)
	assert.Contains(t, prompt, "<constraints>")
	assert.Contains(t, prompt, "<duration_days>7</duration_days>")
	assert.Contains(t, prompt, "<avoid_allergen>peanuts</avoid_allergen>")
	assert.Contains(t, prompt, "<id>"+templateID.String()+"</id>")
	assert.Contains(t, prompt, "<substitute_for_allergen>peanuts</substitute_for_allergen>")
	// Reference material is marked so the generator cannot mistake it for
	// selectable meals.
	assert.Contains(t, prompt, `<guidance reference_only="true">`)
	assert.Contains(t, prompt, `<substitutions reference_only="true">`)
}

func TestXMLPromptBuilder_EscapesMarkup(t *testing.T) {
	set := &usecase.CandidateSet{
		TemplateCandidates: []domain.Candidate{
			{ID: uuid.New(), Name: "Sweet & Sour <Tofu>", Ingredients: []string{"tofu"}},
		},
	}

	b := usecase.NewXMLPromptBuilder()
	prompt, err := b.Build(domain.PlanPreferences{}, set)

	require.NoError(t, err)
	assert.Contains(t, prompt, "Sweet &amp; Sour &lt;Tofu&gt;")
	assert.NotContains(t, prompt, "<Tofu>")
}

func TestXMLPromptBuilder_RequiresTemplates(t *testing.T) {
	b := usecase.NewXMLPromptBuilder()

	_, err := b.Build(domain.PlanPreferences{}, &usecase.CandidateSet{})
	assert.Error(t, err)

	_, err = b.Build(domain.PlanPreferences{}, nil)
	assert.Error(t, err)
}
