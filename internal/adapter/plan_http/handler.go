package plan_http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"mealplan-orchestrator/internal/domain"
	"mealplan-orchestrator/internal/usecase"
)

type Handler struct {
	retrieveUsecase usecase.RetrieveCandidatesUsecase
	generateUsecase usecase.GeneratePlanUsecase
}

func NewHandler(
	retrieveUsecase usecase.RetrieveCandidatesUsecase,
	generateUsecase usecase.GeneratePlanUsecase,
) *Handler {
	return &Handler{
		retrieveUsecase: retrieveUsecase,
		generateUsecase: generateUsecase,
	}
}

// PreferencesRequest is the inbound JSON body shared by both endpoints.
type PreferencesRequest struct {
	Cuisines      []string `json:"cuisines"`
	DietType      string   `json:"diet_type"`
	Allergens     []string `json:"allergens"`
	Symptoms      []string `json:"symptoms"`
	LabMarkers    []string `json:"lab_markers"`
	BudgetCeiling float64  `json:"budget_ceiling"`
	MaxPrepTime   int      `json:"max_prep_time"`
	LowCarbMode   bool     `json:"low_carb_mode"`
	MealsPerDay   int      `json:"meals_per_day"`
	DurationDays  int      `json:"duration_days"`
	MaxTokens     int      `json:"max_tokens,omitempty"`
}

func (r *PreferencesRequest) toPrefs() domain.PlanPreferences {
	return domain.PlanPreferences{
		Cuisines:      r.Cuisines,
		DietType:      domain.DietType(r.DietType),
		Allergens:     r.Allergens,
		Symptoms:      r.Symptoms,
		LabMarkers:    r.LabMarkers,
		BudgetCeiling: r.BudgetCeiling,
		MaxPrepTime:   r.MaxPrepTime,
		LowCarbMode:   r.LowCarbMode,
		MealsPerDay:   r.MealsPerDay,
		DurationDays:  r.DurationDays,
	}
}

// CandidateResponse is the wire shape of one candidate.
type CandidateResponse struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Cuisine       string   `json:"cuisine"`
	DocumentType  string   `json:"document_type"`
	MealType      string   `json:"meal_type"`
	Ingredients   []string `json:"ingredients,omitempty"`
	Body          string   `json:"body,omitempty"`
	AllergenTags  []string `json:"allergen_tags,omitempty"`
	SemanticScore float64  `json:"semantic_score"`
	RerankScore   float64  `json:"rerank_score"`
}

// CandidatesResponse is the full retrieval response.
type CandidatesResponse struct {
	RequestID              string              `json:"request_id"`
	TemplateCandidates     []CandidateResponse `json:"template_candidates"`
	GuidanceCandidates     []CandidateResponse `json:"guidance_candidates,omitempty"`
	SubstitutionCandidates []CandidateResponse `json:"substitution_candidates,omitempty"`
	QuotaTarget            map[string]int      `json:"quota_target"`
	QuotaAchieved          map[string]int      `json:"quota_achieved"`
	EmptyBuckets           []string            `json:"empty_buckets,omitempty"`
	OriginalCount          int                 `json:"original_count"`
	FinalCount             int                 `json:"final_count"`
	BytesSaved             int                 `json:"bytes_saved"`
}

// RetrieveCandidates runs the retrieval pipeline without generation.
// (POST /v1/plan/candidates)
func (h *Handler) RetrieveCandidates(ctx echo.Context) error {
	var req PreferencesRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	set, err := h.retrieveUsecase.Execute(ctx.Request().Context(), usecase.RetrieveCandidatesInput{
		Prefs: req.toPrefs(),
	})
	if err != nil {
		if errors.Is(err, domain.ErrNoUsableTemplates) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
		}
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return ctx.JSON(http.StatusOK, toCandidatesResponse(set))
}

// GeneratePlan runs retrieval plus the generation collaborator.
// (POST /v1/plan/generate)
func (h *Handler) GeneratePlan(ctx echo.Context) error {
	var req PreferencesRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	output, err := h.generateUsecase.Execute(ctx.Request().Context(), usecase.GeneratePlanInput{
		Prefs:     req.toPrefs(),
		MaxTokens: req.MaxTokens,
	})
	if err != nil {
		if errors.Is(err, domain.ErrNoUsableTemplates) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
		}
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	resp := map[string]interface{}{
		"fallback":       output.Fallback,
		"prompt_version": output.PromptVersion,
	}
	if output.Reason != "" {
		resp["reason"] = output.Reason
	}
	if output.Plan != nil {
		resp["plan"] = output.Plan
	}
	if output.Candidates != nil {
		resp["candidates"] = toCandidatesResponse(output.Candidates)
	}
	return ctx.JSON(http.StatusOK, resp)
}

func toCandidatesResponse(set *usecase.CandidateSet) CandidatesResponse {
	return CandidatesResponse{
		RequestID:              set.RequestID,
		TemplateCandidates:     toCandidateResponses(set.TemplateCandidates),
		GuidanceCandidates:     toCandidateResponses(set.GuidanceCandidates),
		SubstitutionCandidates: toCandidateResponses(set.SubstitutionCandidates),
		QuotaTarget:            set.QuotaReport.Target,
		QuotaAchieved:          set.QuotaReport.Achieved,
		EmptyBuckets:           set.QuotaReport.EmptyBuckets,
		OriginalCount:          set.TokenBudgetReport.OriginalCount,
		FinalCount:             set.TokenBudgetReport.FinalCount,
		BytesSaved:             set.TokenBudgetReport.BytesSaved,
	}
}

func toCandidateResponses(candidates []domain.Candidate) []CandidateResponse {
	out := make([]CandidateResponse, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, CandidateResponse{
			ID:            c.ID.String(),
			Name:          c.Name,
			Cuisine:       c.Cuisine,
			DocumentType:  string(c.DocumentType),
			MealType:      string(c.MealType),
			Ingredients:   c.Ingredients,
			Body:          c.Body,
			AllergenTags:  c.AllergenTags,
			SemanticScore: c.SemanticScore,
			RerankScore:   c.RerankScore,
		})
	}
	return out
}
