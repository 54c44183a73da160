package domain

import (
	"github.com/google/uuid"
)

// DocumentType classifies what a retrieved record can be used for.
// Only templates are valid generation anchors; everything else is
// contextual reference material.
type DocumentType string

const (
	DocumentTypeTemplate     DocumentType = "template"
	DocumentTypeGuidance     DocumentType = "guidance"
	DocumentTypeSubstitution DocumentType = "substitution-reference"
)

// MealType is the meal slot a record belongs to.
type MealType string

const (
	MealTypeBreakfast    MealType = "breakfast"
	MealTypeLunchDinner  MealType = "lunch-dinner"
	MealTypeSnack        MealType = "snack"
	MealTypeUnclassified MealType = "unclassified"
)

// GlycemicCategory buckets a meal's glycemic index.
type GlycemicCategory string

const (
	GlycemicLow     GlycemicCategory = "low"
	GlycemicMedium  GlycemicCategory = "medium"
	GlycemicHigh    GlycemicCategory = "high"
	GlycemicUnknown GlycemicCategory = "unknown"
)

// Macros holds per-serving nutritional values in grams (calories in kcal).
// Nil pointer fields mean the source document did not declare the value.
type Macros struct {
	Protein  *float64
	Carbs    *float64
	Fat      *float64
	Fiber    *float64
	Calories *float64
}

// BudgetRange is the estimated cost band of a meal in currency units.
type BudgetRange struct {
	Min float64
	Max float64
}

// Candidate is one retrieved knowledge-base record, annotated as it moves
// through the pipeline. All fields besides RerankScore and the classifier
// outputs are set at the retrieval boundary.
type Candidate struct {
	ID            uuid.UUID
	Name          string
	Cuisine       string
	DocumentType  DocumentType
	Ingredients   []string
	Body          string
	Macros        Macros
	Glycemic      GlycemicCategory
	Budget        *BudgetRange
	PrepTimeMin   *int
	MealType      MealType
	AllergenTags  []string
	SemanticScore float64 // normalized similarity, higher is closer
	RerankScore   float64
}

// HasAllergen reports whether the candidate carries the given allergen tag.
func (c *Candidate) HasAllergen(tag string) bool {
	for _, t := range c.AllergenTags {
		if t == tag {
			return true
		}
	}
	return false
}

// HasTemplateShape reports whether the record looks like a meal template:
// it must carry a name and at least one ingredient.
func (c *Candidate) HasTemplateShape() bool {
	return c.Name != "" && len(c.Ingredients) > 0
}

// FilterDecision is the outcome of one pipeline stage for one candidate.
type FilterDecision string

const (
	DecisionKept    FilterDecision = "kept"
	DecisionDropped FilterDecision = "dropped"
)

// FilterOutcome records one stage decision for the audit trail. Dropped
// records carry the reason; kept records may carry annotation notes.
type FilterOutcome struct {
	CandidateID uuid.UUID
	Stage       string
	Decision    FilterDecision
	Reason      string
}

// AuditTrail accumulates stage decisions across the pipeline.
type AuditTrail struct {
	Outcomes []FilterOutcome
}

// Keep records a kept candidate with an optional note.
func (a *AuditTrail) Keep(id uuid.UUID, stage, note string) {
	a.Outcomes = append(a.Outcomes, FilterOutcome{
		CandidateID: id,
		Stage:       stage,
		Decision:    DecisionKept,
		Reason:      note,
	})
}

// Drop records a dropped candidate with the mandatory reason.
func (a *AuditTrail) Drop(id uuid.UUID, stage, reason string) {
	a.Outcomes = append(a.Outcomes, FilterOutcome{
		CandidateID: id,
		Stage:       stage,
		Decision:    DecisionDropped,
		Reason:      reason,
	})
}

// DroppedBy returns the dropped outcomes recorded for a stage.
func (a *AuditTrail) DroppedBy(stage string) []FilterOutcome {
	var out []FilterOutcome
	for _, o := range a.Outcomes {
		if o.Stage == stage && o.Decision == DecisionDropped {
			out = append(out, o)
		}
	}
	return out
}
