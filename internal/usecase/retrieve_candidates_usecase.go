package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"mealplan-orchestrator/internal/domain"
	"mealplan-orchestrator/internal/infra/logger"
	"mealplan-orchestrator/internal/usecase/retrieval"
)

// RetrieveCandidatesInput wraps the caller's preferences.
type RetrieveCandidatesInput struct {
	Prefs domain.PlanPreferences
}

// CandidateSet is what the pipeline hands to the generation collaborator:
// the safety-filtered template anchors, truncated reference material, and
// the provenance reports.
type CandidateSet struct {
	RequestID             string
	TemplateCandidates    []domain.Candidate
	GuidanceCandidates    []domain.Candidate
	SubstitutionCandidates []domain.Candidate
	QuotaReport           retrieval.QuotaReport
	TokenBudgetReport     retrieval.TokenBudgetReport
	Audit                 domain.AuditTrail
}

// RetrieveCandidatesUsecase runs the full candidate retrieval pipeline.
type RetrieveCandidatesUsecase interface {
	Execute(ctx context.Context, input RetrieveCandidatesInput) (*CandidateSet, error)
}

// PipelineConfig bundles the per-stage parameters.
type PipelineConfig struct {
	TotalBudget int
	Fanout      retrieval.FanoutConfig
	Rerank      retrieval.RerankConfig
	Budget      retrieval.BudgetConfig
}

// DefaultPipelineConfig returns the shipped pipeline parameters.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		TotalBudget: domain.TotalCandidateBudget,
		Fanout:      retrieval.DefaultFanoutConfig(),
		Rerank:      retrieval.DefaultRerankConfig(),
		Budget:      retrieval.DefaultBudgetConfig(),
	}
}

type retrieveCandidatesUsecase struct {
	searcher domain.VectorSearcher
	cfg      PipelineConfig
	logger   *slog.Logger
}

// NewRetrieveCandidatesUsecase wires the pipeline stages over the injected
// vector searcher.
func NewRetrieveCandidatesUsecase(searcher domain.VectorSearcher, cfg PipelineConfig, logger *slog.Logger) RetrieveCandidatesUsecase {
	return &retrieveCandidatesUsecase{
		searcher: searcher,
		cfg:      cfg,
		logger:   logger,
	}
}

func (u *retrieveCandidatesUsecase) Execute(ctx context.Context, input RetrieveCandidatesInput) (*CandidateSet, error) {
	prefs := input.Prefs
	truncated, err := prefs.Normalize()
	if err != nil {
		return nil, fmt.Errorf("invalid preferences: %w", err)
	}

	sc := &retrieval.StageContext{
		RequestID: uuid.NewString(),
		Prefs:     prefs,
	}
	ctx = logger.WithRequestID(ctx, sc.RequestID)

	if truncated > 0 {
		u.logger.Warn("cuisine_cap_enforced",
			slog.String("request_id", sc.RequestID),
			slog.Int("truncated", truncated),
			slog.Int("max_cuisines", domain.MaxCuisines))
	}

	// Stage 1: query planning and quota allocation.
	sc.Plan, sc.Quotas = retrieval.Plan(prefs, u.cfg.TotalBudget, u.logger)

	// Stage 2: concurrent retrieval fan-out, deterministic merge.
	sc.Retrieved = retrieval.Fanout(ctx, sc.Plan, u.searcher, u.cfg.Fanout, u.logger)
	u.logger.InfoContext(ctx, "retrieval_completed",
		slog.Int("query_count", len(sc.Plan)),
		slog.Int("retrieved", len(sc.Retrieved)))

	// Stage 3: meal-slot inference, then document-type and allergen
	// classification. Non-templates are routed to reference channels.
	for i := range sc.Retrieved {
		if sc.Retrieved[i].MealType == "" || sc.Retrieved[i].MealType == domain.MealTypeUnclassified {
			sc.Retrieved[i].MealType = retrieval.InferMealType(&sc.Retrieved[i])
		}
	}
	retrieval.Classify(sc, u.logger)

	// Stage 4: per-cuisine quota enforcement with shortfall redistribution.
	sc.Templates = u.enforceQuotas(sc)

	// Stage 5: hybrid re-ranking over surviving templates.
	sc.Templates = retrieval.Rerank(sc.Templates, u.intentText(prefs), retrieval.RerankContext{
		LowCarbMode:   prefs.LowCarbMode,
		BudgetCeiling: prefs.BudgetCeiling,
		MaxPrepTime:   prefs.MaxPrepTime,
	}, u.cfg.Rerank, u.logger)

	// Stage 6: near-duplicate elimination, best-ranked copy survives.
	sc.Templates = retrieval.Dedupe(sc.Templates, &sc.Audit, u.logger)
	sc.Guidance = retrieval.Dedupe(sc.Guidance, &sc.Audit, u.logger)
	sc.Substitute = retrieval.Dedupe(sc.Substitute, &sc.Audit, u.logger)

	// Stage 7: context budget enforcement.
	budgetReport := retrieval.EnforceBudget(sc, u.cfg.Budget, u.logger)

	// Final safety sweep: no non-template and no untagged allergen content
	// may leak into the template list.
	sc.Templates = u.safetySweep(sc)

	if len(sc.Templates) == 0 {
		return nil, domain.ErrNoUsableTemplates
	}

	quotaReport := u.buildQuotaReport(sc)

	return &CandidateSet{
		RequestID:             sc.RequestID,
		TemplateCandidates:    sc.Templates,
		GuidanceCandidates:    sc.Guidance,
		SubstitutionCandidates: sc.Substitute,
		QuotaReport:           quotaReport,
		TokenBudgetReport:     budgetReport,
		Audit:                 sc.Audit,
	}, nil
}

// intentText is what intent detection inspects: the caller's symptoms and
// markers, which carry words like "quick" or "protein" when present.
func (u *retrieveCandidatesUsecase) intentText(prefs domain.PlanPreferences) string {
	text := ""
	for _, s := range prefs.Symptoms {
		text += s + " "
	}
	for _, m := range prefs.LabMarkers {
		text += m + " "
	}
	return text
}

// enforceQuotas caps each cuisine at its target and redistributes unmet
// quota to cuisines that still have headroom. Shortfalls are logged, never
// fatal; under-fulfillment shows up in the quota report.
func (u *retrieveCandidatesUsecase) enforceQuotas(sc *retrieval.StageContext) []domain.Candidate {
	byCuisine := make(map[string][]domain.Candidate)
	var order []string
	for _, c := range sc.Templates {
		if _, seen := byCuisine[c.Cuisine]; !seen {
			order = append(order, c.Cuisine)
		}
		byCuisine[c.Cuisine] = append(byCuisine[c.Cuisine], c)
	}

	taken := make(map[string]int, len(sc.Quotas))
	leftover := 0
	for cuisine, target := range sc.Quotas {
		available := len(byCuisine[cuisine])
		if available >= target {
			taken[cuisine] = target
			continue
		}
		taken[cuisine] = available
		leftover += target - available
		u.logger.Warn("quota_unsatisfiable",
			slog.String("request_id", sc.RequestID),
			slog.String("cuisine", cuisine),
			slog.Int("target", target),
			slog.Int("available", available))
	}

	// Round-robin the leftover across cuisines with headroom so the extra
	// stays roughly proportional.
	for leftover > 0 {
		progressed := false
		for _, cuisine := range order {
			if leftover == 0 {
				break
			}
			if taken[cuisine] < len(byCuisine[cuisine]) {
				taken[cuisine]++
				leftover--
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}

	var out []domain.Candidate
	for _, cuisine := range order {
		out = append(out, byCuisine[cuisine][:taken[cuisine]]...)
	}
	return out
}

// safetySweep is the fallback hard-removal pass immediately before output.
// A non-template here is a critical invariant violation: it is removed and
// logged for audit. Allergen tags are re-derived so tagging inconsistencies
// cannot leak either.
func (u *retrieveCandidatesUsecase) safetySweep(sc *retrieval.StageContext) []domain.Candidate {
	kept := sc.Templates[:0]
	for i := range sc.Templates {
		c := sc.Templates[i]
		if c.DocumentType != domain.DocumentTypeTemplate {
			sc.Audit.Drop(c.ID, "safety_sweep", "non-template leaked to output stage")
			u.logger.Error("unsafe_document_removed",
				slog.String("request_id", sc.RequestID),
				slog.String("candidate_id", c.ID.String()),
				slog.String("document_type", string(c.DocumentType)))
			continue
		}
		retagged := retrieval.DetectAllergens(&c, sc.Prefs.Allergens)
		if len(retagged) != len(c.AllergenTags) {
			u.logger.Error("allergen_tags_reconciled",
				slog.String("request_id", sc.RequestID),
				slog.String("candidate_id", c.ID.String()),
				slog.Any("was", c.AllergenTags),
				slog.Any("now", retagged))
			c.AllergenTags = retagged
		}
		kept = append(kept, c)
	}
	return kept
}

func (u *retrieveCandidatesUsecase) buildQuotaReport(sc *retrieval.StageContext) retrieval.QuotaReport {
	achieved := make(retrieval.QuotaAllocation, len(sc.Quotas))
	bucketCounts := make(map[string]int)
	for _, c := range sc.Templates {
		achieved[c.Cuisine]++
		bucketCounts[c.Cuisine+"/"+string(c.MealType)]++
	}

	// A planned bucket with zero survivors means dedup or filtering
	// saturated it; surface it for the caller to decide on fallback.
	var empty []string
	for _, entry := range sc.Plan {
		key := entry.Cuisine + "/" + string(entry.MealType)
		if bucketCounts[key] == 0 {
			empty = append(empty, key)
		}
	}
	sort.Strings(empty)

	if len(empty) > 0 {
		u.logger.Warn("empty_meal_buckets",
			slog.String("request_id", sc.RequestID),
			slog.Any("buckets", empty))
	}

	return retrieval.QuotaReport{
		Target:       sc.Quotas,
		Achieved:     achieved,
		EmptyBuckets: empty,
	}
}
