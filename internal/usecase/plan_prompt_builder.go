package usecase

import (
	"fmt"
	"strings"

	"mealplan-orchestrator/internal/domain"
)

// PromptBuilder renders the grounding payload handed to the generator.
type PromptBuilder interface {
	Build(prefs domain.PlanPreferences, set *CandidateSet) (string, error)
}

// XMLPromptBuilder separates templates, reference material, and constraints
// into tagged sections so the generator cannot confuse them.
type XMLPromptBuilder struct {
	additionalInstructions []string
}

// NewXMLPromptBuilder creates a prompt builder with optional extra
// instructions appended.
func NewXMLPromptBuilder(additionalInstructions ...string) PromptBuilder {
	return &XMLPromptBuilder{additionalInstructions: additionalInstructions}
}

// Build renders the grounding payload. Template candidates are the only
// records presented as selectable meals; guidance and substitution text is
// clearly marked as reference-only.
func (b *XMLPromptBuilder) Build(prefs domain.PlanPreferences, set *CandidateSet) (string, error) {
	if set == nil || len(set.TemplateCandidates) == 0 {
		return "", fmt.Errorf("no template candidates to ground generation")
	}

	var sb strings.Builder

	sb.WriteString("<constraints>\n")
	sb.WriteString(fmt.Sprintf("  <duration_days>%d</duration_days>\n", prefs.DurationDays))
	sb.WriteString(fmt.Sprintf("  <meals_per_day>%d</meals_per_day>\n", prefs.MealsPerDay))
	if prefs.DietType != "" {
		sb.WriteString("  <diet_type>" + escapeXML(string(prefs.DietType)) + "</diet_type>\n")
	}
	for _, a := range prefs.Allergens {
		sb.WriteString("  <avoid_allergen>" + escapeXML(a) + "</avoid_allergen>\n")
	}
	sb.WriteString("</constraints>\n\n")

	sb.WriteString("<meal_templates>\n")
	for _, c := range set.TemplateCandidates {
		sb.WriteString("  <meal>\n")
		sb.WriteString("    <id>" + c.ID.String() + "</id>\n")
		sb.WriteString("    <name>" + escapeXML(c.Name) + "</name>\n")
		sb.WriteString("    <cuisine>" + escapeXML(c.Cuisine) + "</cuisine>\n")
		sb.WriteString("    <meal_type>" + string(c.MealType) + "</meal_type>\n")
		if len(c.Ingredients) > 0 {
			sb.WriteString("    <ingredients>" + escapeXML(strings.Join(c.Ingredients, ", ")) + "</ingredients>\n")
		}
		for _, tag := range c.AllergenTags {
			sb.WriteString("    <substitute_for_allergen>" + escapeXML(tag) + "</substitute_for_allergen>\n")
		}
		sb.WriteString("  </meal>\n")
	}
	sb.WriteString("</meal_templates>\n\n")

	writeReferenceSection(&sb, "guidance", set.GuidanceCandidates)
	writeReferenceSection(&sb, "substitutions", set.SubstitutionCandidates)

	for _, inst := range b.additionalInstructions {
		sb.WriteString("<instruction>" + escapeXML(inst) + "</instruction>\n")
	}

	return sb.String(), nil
}

func writeReferenceSection(sb *strings.Builder, tag string, refs []domain.Candidate) {
	if len(refs) == 0 {
		return
	}
	sb.WriteString("<" + tag + " reference_only=\"true\">\n")
	for _, r := range refs {
		sb.WriteString("  <text>" + escapeXML(r.Body) + "</text>\n")
	}
	sb.WriteString("</" + tag + ">\n\n")
}

func escapeXML(value string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"\"", "&quot;",
		"'", "&#39;",
	)
	return replacer.Replace(strings.TrimSpace(value))
}
