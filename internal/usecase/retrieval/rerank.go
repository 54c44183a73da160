package retrieval

import (
	"log/slog"
	"regexp"
	"sort"

	"mealplan-orchestrator/internal/domain"
)

// Feature names index the weight vectors.
const (
	FeatureSemantic = "semantic"
	FeatureProtein  = "protein"
	FeatureCarbs    = "carbs"
	FeatureGlycemic = "glycemic"
	FeatureBudget   = "budget"
	FeaturePrepTime = "prep_time"
)

// QueryIntent selects which weight vector re-ranking uses.
type QueryIntent string

const (
	IntentDefault     QueryIntent = "default"
	IntentHighProtein QueryIntent = "high-protein"
	IntentQuickMeal   QueryIntent = "quick-meal"
	IntentBudget      QueryIntent = "budget-constrained"
	IntentLowGlycemic QueryIntent = "low-glycemic"
)

// Weights is one weight vector over the scoring features.
type Weights map[string]float64

// Normalized returns a copy scaled so the weights sum to 1. A zero vector
// comes back unchanged.
func (w Weights) Normalized() Weights {
	var sum float64
	for _, v := range w {
		sum += v
	}
	if sum == 0 {
		return w
	}
	out := make(Weights, len(w))
	for k, v := range w {
		out[k] = v / sum
	}
	return out
}

// RerankConfig holds the re-ranking parameters. Weight tables are heuristic
// constants surfaced through configuration; DefaultRerankConfig provides the
// shipped values.
type RerankConfig struct {
	ProteinTarget   float64 // grams; meeting it earns the protein bonus
	ProteinCeiling  float64 // grams; normalization ceiling
	CarbTarget      float64 // grams; normal-mode distance target
	CarbCeiling     float64 // grams; low-carb-mode scale
	IntentWeights   map[QueryIntent]Weights
	LowCarbOverride Weights // composes over the detected intent's vector
}

// DefaultRerankConfig returns the shipped weight tables, normalized.
func DefaultRerankConfig() RerankConfig {
	base := map[QueryIntent]Weights{
		IntentDefault: {
			FeatureSemantic: 0.40, FeatureProtein: 0.15, FeatureCarbs: 0.15,
			FeatureGlycemic: 0.10, FeatureBudget: 0.10, FeaturePrepTime: 0.10,
		},
		IntentHighProtein: {
			FeatureSemantic: 0.30, FeatureProtein: 0.35, FeatureCarbs: 0.10,
			FeatureGlycemic: 0.05, FeatureBudget: 0.10, FeaturePrepTime: 0.10,
		},
		IntentQuickMeal: {
			FeatureSemantic: 0.30, FeatureProtein: 0.10, FeatureCarbs: 0.10,
			FeatureGlycemic: 0.05, FeatureBudget: 0.10, FeaturePrepTime: 0.35,
		},
		IntentBudget: {
			FeatureSemantic: 0.30, FeatureProtein: 0.10, FeatureCarbs: 0.10,
			FeatureGlycemic: 0.05, FeatureBudget: 0.35, FeaturePrepTime: 0.10,
		},
		IntentLowGlycemic: {
			FeatureSemantic: 0.30, FeatureProtein: 0.10, FeatureCarbs: 0.15,
			FeatureGlycemic: 0.30, FeatureBudget: 0.05, FeaturePrepTime: 0.10,
		},
	}
	for intent, w := range base {
		base[intent] = w.Normalized()
	}
	return RerankConfig{
		ProteinTarget:  25,
		ProteinCeiling: 40,
		CarbTarget:     45,
		CarbCeiling:    30,
		IntentWeights:  base,
		LowCarbOverride: Weights{
			FeatureCarbs: 0.25, FeatureGlycemic: 0.15,
		},
	}
}

// RerankContext carries the request constraints feature scoring needs.
type RerankContext struct {
	LowCarbMode   bool
	BudgetCeiling float64
	MaxPrepTime   int
}

var intentMatchers = map[QueryIntent]*regexp.Regexp{
	// Whole-word matching: "breakfast" must not trigger the quick-meal
	// intent via its "-fast" suffix.
	IntentHighProtein: regexp.MustCompile(`(?i)\b(protein|muscle|strength)\b`),
	IntentQuickMeal:   regexp.MustCompile(`(?i)\b(quick|fast|easy|minutes|instant)\b`),
	IntentBudget:      regexp.MustCompile(`(?i)\b(cheap|budget|affordable|economical)\b`),
	IntentLowGlycemic: regexp.MustCompile(`(?i)\b(glycemic|diabetic|diabetes|sugar)\b`),
}

// DetectIntent inspects the query text for intent keywords. First match in
// a fixed priority order wins; no match means the default vector.
func DetectIntent(query string) QueryIntent {
	for _, intent := range []QueryIntent{
		IntentHighProtein, IntentQuickMeal, IntentBudget, IntentLowGlycemic,
	} {
		if intentMatchers[intent].MatchString(query) {
			return intent
		}
	}
	return IntentDefault
}

// SelectWeights picks the weight vector for the detected intent. Low-carb
// mode composes with the intent rather than replacing it: the override
// weights are added on top and the result re-normalized.
func (cfg RerankConfig) SelectWeights(intent QueryIntent, lowCarb bool) Weights {
	w, ok := cfg.IntentWeights[intent]
	if !ok {
		w = cfg.IntentWeights[IntentDefault]
	}
	if !lowCarb {
		return w
	}
	composed := make(Weights, len(w))
	for k, v := range w {
		composed[k] = v
	}
	for k, v := range cfg.LowCarbOverride {
		composed[k] += v
	}
	return composed.Normalized()
}

// Rerank scores every candidate with the weighted feature sum and orders the
// slice descending. The sort is stable: ties preserve retrieval order, so
// identical inputs always produce identical output.
func Rerank(candidates []domain.Candidate, queryIntent string, rc RerankContext, cfg RerankConfig, logger *slog.Logger) []domain.Candidate {
	intent := DetectIntent(queryIntent)
	weights := cfg.SelectWeights(intent, rc.LowCarbMode)

	for i := range candidates {
		candidates[i].RerankScore = cfg.score(&candidates[i], rc, weights)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].RerankScore > candidates[j].RerankScore
	})

	logger.Info("rerank_completed",
		slog.String("intent", string(intent)),
		slog.Bool("low_carb_mode", rc.LowCarbMode),
		slog.Int("candidate_count", len(candidates)))

	return candidates
}

func (cfg RerankConfig) score(c *domain.Candidate, rc RerankContext, weights Weights) float64 {
	features := map[string]float64{
		FeatureSemantic: clamp01(c.SemanticScore),
		FeatureProtein:  cfg.ProteinScore(c.Macros.Protein),
		FeatureCarbs:    cfg.CarbScore(c.Macros.Carbs, rc.LowCarbMode),
		FeatureGlycemic: GlycemicScore(c.Glycemic),
		FeatureBudget:   BudgetScore(c.Budget, rc.BudgetCeiling),
		FeaturePrepTime: PrepTimeScore(c.PrepTimeMin, rc.MaxPrepTime),
	}

	var total float64
	for name, weight := range weights {
		total += weight * features[name]
	}
	return total
}

// ProteinScore normalizes protein grams to [0,1] with a bonus for meeting
// the target. Missing values score zero, never discard.
func (cfg RerankConfig) ProteinScore(protein *float64) float64 {
	if protein == nil {
		return 0
	}
	var bonus float64
	if *protein >= cfg.ProteinTarget {
		bonus = 0.2
	}
	return min1(*protein/cfg.ProteinCeiling + bonus)
}

// CarbScore has two modes: low-carb scores lower-is-better on a stretched
// scale; normal mode scores distance from the target.
func (cfg RerankConfig) CarbScore(carbs *float64, lowCarb bool) float64 {
	if carbs == nil {
		return 0
	}
	if lowCarb {
		return max0(1 - *carbs/(3*cfg.CarbCeiling))
	}
	diff := *carbs - cfg.CarbTarget
	if diff < 0 {
		diff = -diff
	}
	return max0(1 - diff/cfg.CarbTarget)
}

// GlycemicScore maps the category to a fixed score; unknown scores minimum.
func GlycemicScore(cat domain.GlycemicCategory) float64 {
	switch cat {
	case domain.GlycemicLow:
		return 1.0
	case domain.GlycemicMedium:
		return 0.7
	case domain.GlycemicHigh:
		return 0.3
	default:
		return 0
	}
}

// BudgetScore is 1.0 within the ceiling, then a linear overage penalty.
// No declared budget or no ceiling means no signal either way.
func BudgetScore(budget *domain.BudgetRange, ceiling float64) float64 {
	if budget == nil || ceiling <= 0 {
		return 0
	}
	if budget.Max <= ceiling {
		return 1.0
	}
	overage := budget.Max - ceiling
	return max0(1 - overage/ceiling)
}

// PrepTimeScore rewards faster prep within the limit and penalizes overage.
func PrepTimeScore(prepMin *int, limit int) float64 {
	if prepMin == nil || limit <= 0 {
		return 0
	}
	t := float64(*prepMin)
	l := float64(limit)
	if t <= l {
		return 1 - (t/l)*0.3
	}
	return max0(0.7 - (t-l)/l)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func min1(v float64) float64 {
	if v > 1 {
		return 1
	}
	return v
}

func max0(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
