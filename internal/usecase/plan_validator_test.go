package usecase_test

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mealplan-orchestrator/internal/domain"
	"mealplan-orchestrator/internal/usecase"
)

func TestPlanValidator_AcceptsGroundedPlan(t *testing.T) {
	templates := []domain.Candidate{
		{ID: uuid.New(), Name: "Miso Soup"},
		{ID: uuid.New(), Name: "Pad Thai"},
	}
	raw := fmt.Sprintf(`{
		"days": [
			{"day": 1, "meals": [
				{"template_id": %q, "slot": "breakfast", "name": "Miso Soup"},
				{"template_id": %q, "slot": "lunch-dinner", "name": "Pad Thai"}
			]}
		]
	}`, templates[0].ID, templates[1].ID)

	v := usecase.NewPlanValidator()
	plan, err := v.Validate(raw, templates)

	require.NoError(t, err)
	assert.Len(t, plan.Days, 1)
	assert.Len(t, plan.Days[0].Meals, 2)
}

func TestPlanValidator_RejectsUnknownTemplateReference(t *testing.T) {
	templates := []domain.Candidate{{ID: uuid.New(), Name: "Miso Soup"}}
	raw := fmt.Sprintf(`{"days": [{"day": 1, "meals": [{"template_id": %q}]}]}`, uuid.New())

	v := usecase.NewPlanValidator()
	_, err := v.Validate(raw, templates)

	assert.ErrorContains(t, err, "unknown template")
}

func TestPlanValidator_RejectsMealWithoutTemplateID(t *testing.T) {
	raw := `{"days": [{"day": 1, "meals": [{"slot": "snack", "name": "Chips"}]}]}`

	v := usecase.NewPlanValidator()
	_, err := v.Validate(raw, nil)

	assert.ErrorContains(t, err, "missing template_id")
}

func TestPlanValidator_RejectsEmptyAndMalformedResponses(t *testing.T) {
	v := usecase.NewPlanValidator()

	_, err := v.Validate("", nil)
	assert.Error(t, err)

	_, err = v.Validate("not json at all", nil)
	assert.Error(t, err)

	_, err = v.Validate(`{"days": []}`, nil)
	assert.Error(t, err)
}

func TestPlanValidator_AcceptsExplicitFallback(t *testing.T) {
	v := usecase.NewPlanValidator()

	plan, err := v.Validate(`{"days": [], "fallback": true, "reason": "insufficient variety"}`, nil)

	require.NoError(t, err)
	assert.True(t, plan.Fallback)
	assert.Equal(t, "insufficient variety", plan.Reason)
}
