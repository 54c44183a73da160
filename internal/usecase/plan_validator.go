package usecase

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"mealplan-orchestrator/internal/domain"
)

// PlanValidator ensures the generator's output references only forwarded
// template candidates. A meal pointing at an unknown ID (typically a dish
// example the model picked up from reference text) invalidates the plan.
type PlanValidator struct{}

// NewPlanValidator creates a validator instance (stateless).
func NewPlanValidator() PlanValidator {
	return PlanValidator{}
}

// Validate parses and checks the JSON plan emitted by the generator.
func (v PlanValidator) Validate(raw string, templates []domain.Candidate) (*GeneratedPlan, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, errors.New("generator response is empty")
	}

	var plan GeneratedPlan
	if err := json.Unmarshal([]byte(trimmed), &plan); err != nil {
		return nil, fmt.Errorf("failed to parse generator response: %w", err)
	}

	if len(plan.Days) == 0 && !plan.Fallback {
		return nil, errors.New("missing days in response")
	}

	allowed := make(map[string]struct{}, len(templates))
	for _, t := range templates {
		allowed[t.ID.String()] = struct{}{}
	}

	for _, day := range plan.Days {
		for _, meal := range day.Meals {
			if meal.TemplateID == "" {
				return nil, errors.New("meal missing template_id")
			}
			if _, ok := allowed[meal.TemplateID]; !ok {
				return nil, fmt.Errorf("meal references unknown template %s", meal.TemplateID)
			}
		}
	}

	return &plan, nil
}

// GeneratedPlan models the JSON the generator is instructed to produce.
type GeneratedPlan struct {
	Days     []PlanDay `json:"days"`
	Fallback bool      `json:"fallback"`
	Reason   string    `json:"reason"`
}

// PlanDay is one day of the generated plan.
type PlanDay struct {
	Day   int        `json:"day"`
	Meals []PlanMeal `json:"meals"`
}

// PlanMeal anchors one generated meal to a forwarded template.
type PlanMeal struct {
	TemplateID string `json:"template_id"`
	Slot       string `json:"slot"`
	Name       string `json:"name"` // the generator may rename the dish
	Notes      string `json:"notes"`
}
