package retrieval

import (
	"mealplan-orchestrator/internal/domain"
)

// QueryPlanEntry is one retrieval task: a cuisine/meal-slot bucket with its
// share of the candidate budget.
type QueryPlanEntry struct {
	Cuisine  string
	MealType domain.MealType
	Query    string
	TopK     int
	Filter   *domain.SearchFilter
}

// QuotaAllocation maps each cuisine to its target candidate count.
// The values always sum to the total budget handed to Plan.
type QuotaAllocation map[string]int

// QuotaReport compares per-cuisine targets against what survived the
// pipeline, and flags meal-slot buckets that dedup emptied out.
type QuotaReport struct {
	Target       QuotaAllocation
	Achieved     QuotaAllocation
	EmptyBuckets []string // "cuisine/meal-type" buckets with zero survivors
}

// TokenBudgetReport summarizes what the context budgeter cut.
type TokenBudgetReport struct {
	OriginalCount int
	FinalCount    int
	BytesSaved    int
}

// StageContext carries data between pipeline stages for one request.
type StageContext struct {
	RequestID string
	Prefs     domain.PlanPreferences

	// Stage outputs, in pipeline order.
	Plan       []QueryPlanEntry
	Quotas     QuotaAllocation
	Retrieved  []domain.Candidate
	Templates  []domain.Candidate
	Guidance   []domain.Candidate
	Substitute []domain.Candidate

	Audit domain.AuditTrail
}
