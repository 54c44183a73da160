package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mealplan-orchestrator/internal/domain"
	"mealplan-orchestrator/internal/usecase"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// stubSearcher fabricates per-cuisine result sets so pipeline behavior can be
// asserted without an index. Calls are serialized: the fan-out runs queries
// concurrently and the stub closures keep counters.
type stubSearcher struct {
	mu       sync.Mutex
	searchFn func(query string, topK int, filter *domain.SearchFilter) ([]domain.Candidate, error)
}

func (s *stubSearcher) Search(ctx context.Context, query string, topK int, filter *domain.SearchFilter) ([]domain.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searchFn(query, topK, filter)
}

func (s *stubSearcher) VerifyScoreContract(ctx context.Context) error { return nil }

// templateFactory hands out unique, template-shaped candidates for a cuisine.
type templateFactory struct {
	counter int
}

func (f *templateFactory) make(cuisine string, extraIngredient string) domain.Candidate {
	f.counter++
	ingredients := []string{"rice", fmt.Sprintf("vegetable-%d", f.counter)}
	if extraIngredient != "" {
		ingredients = append(ingredients, extraIngredient)
	}
	return domain.Candidate{
		ID:            uuid.New(),
		Name:          fmt.Sprintf("%s dish %d", cuisine, f.counter),
		Cuisine:       cuisine,
		Ingredients:   ingredients,
		Body:          fmt.Sprintf("Preparation steps for dish number %d.", f.counter),
		SemanticScore: 0.8,
	}
}

func fastPipelineConfig() usecase.PipelineConfig {
	cfg := usecase.DefaultPipelineConfig()
	cfg.Fanout.MaxAttempts = 1
	cfg.Fanout.QueriesPerSec = 0
	return cfg
}

func TestRetrieveCandidates_TwoCuisinesFillTheirQuotas(t *testing.T) {
	factory := &templateFactory{}
	wheatIssued := 0
	searcher := &stubSearcher{
		searchFn: func(query string, topK int, filter *domain.SearchFilter) ([]domain.Candidate, error) {
			out := make([]domain.Candidate, 0, topK)
			for i := 0; i < topK; i++ {
				// Five thai records carry wheat so allergen tagging is
				// observable downstream.
				extra := ""
				if filter.Cuisine == "thai" && wheatIssued < 5 {
					extra = "wheat noodles"
					wheatIssued++
				}
				out = append(out, factory.make(filter.Cuisine, extra))
			}
			return out, nil
		},
	}

	uc := usecase.NewRetrieveCandidatesUsecase(searcher, fastPipelineConfig(), discardLogger())

	set, err := uc.Execute(context.Background(), usecase.RetrieveCandidatesInput{
		Prefs: domain.PlanPreferences{
			Cuisines:  []string{"thai", "japanese"},
			Allergens: []string{"gluten"},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, 35, set.QuotaReport.Target["thai"])
	assert.Equal(t, 35, set.QuotaReport.Target["japanese"])
	assert.Len(t, set.TemplateCandidates, 70)

	perCuisine := make(map[string]int)
	tagged := 0
	for _, c := range set.TemplateCandidates {
		perCuisine[c.Cuisine]++
		assert.Equal(t, domain.DocumentTypeTemplate, c.DocumentType)
		if c.HasAllergen("gluten") {
			tagged++
		}
	}
	assert.Equal(t, 35, perCuisine["thai"])
	assert.Equal(t, 35, perCuisine["japanese"])

	// Allergen matches are tagged for substitution, never dropped.
	assert.Equal(t, 5, tagged)
	assert.Equal(t, 35, set.QuotaReport.Achieved["thai"])
	assert.Equal(t, 35, set.QuotaReport.Achieved["japanese"])
}

func TestRetrieveCandidates_NonTemplatesNeverReachTemplateList(t *testing.T) {
	factory := &templateFactory{}
	searcher := &stubSearcher{
		searchFn: func(query string, topK int, filter *domain.SearchFilter) ([]domain.Candidate, error) {
			out := []domain.Candidate{
				{
					ID:   uuid.New(),
					Name: "Hydration advice",
					Body: fmt.Sprintf("Drink water with every plate. Note %s %d.", query, topK),
				},
				{
					ID:   uuid.New(),
					Name: "Dairy swaps",
					Body: fmt.Sprintf("Use oat cream instead of dairy cream. Note %s %d.", query, topK),
				},
			}
			for i := 0; i < topK; i++ {
				out = append(out, factory.make(filter.Cuisine, ""))
			}
			return out, nil
		},
	}

	uc := usecase.NewRetrieveCandidatesUsecase(searcher, fastPipelineConfig(), discardLogger())

	set, err := uc.Execute(context.Background(), usecase.RetrieveCandidatesInput{
		Prefs: domain.PlanPreferences{Cuisines: []string{"thai"}},
	})

	require.NoError(t, err)
	for _, c := range set.TemplateCandidates {
		assert.Equal(t, domain.DocumentTypeTemplate, c.DocumentType)
	}
	assert.NotEmpty(t, set.GuidanceCandidates)
	assert.NotEmpty(t, set.SubstitutionCandidates)
}

func TestRetrieveCandidates_EmptyIndexIsTheOneHardError(t *testing.T) {
	searcher := &stubSearcher{
		searchFn: func(query string, topK int, filter *domain.SearchFilter) ([]domain.Candidate, error) {
			return nil, nil
		},
	}

	uc := usecase.NewRetrieveCandidatesUsecase(searcher, fastPipelineConfig(), discardLogger())

	_, err := uc.Execute(context.Background(), usecase.RetrieveCandidatesInput{
		Prefs: domain.PlanPreferences{Cuisines: []string{"thai"}},
	})

	assert.ErrorIs(t, err, domain.ErrNoUsableTemplates)
}

func TestRetrieveCandidates_IndexFailureDegradesToEmptyBuckets(t *testing.T) {
	factory := &templateFactory{}
	searcher := &stubSearcher{
		searchFn: func(query string, topK int, filter *domain.SearchFilter) ([]domain.Candidate, error) {
			if filter.Cuisine == "japanese" {
				return nil, errors.New("index unavailable")
			}
			out := make([]domain.Candidate, 0, topK)
			for i := 0; i < topK; i++ {
				out = append(out, factory.make(filter.Cuisine, ""))
			}
			return out, nil
		},
	}

	uc := usecase.NewRetrieveCandidatesUsecase(searcher, fastPipelineConfig(), discardLogger())

	set, err := uc.Execute(context.Background(), usecase.RetrieveCandidatesInput{
		Prefs: domain.PlanPreferences{Cuisines: []string{"thai", "japanese"}},
	})

	require.NoError(t, err)
	assert.Equal(t, 0, set.QuotaReport.Achieved["japanese"])
	assert.NotEmpty(t, set.QuotaReport.EmptyBuckets)
	for _, c := range set.TemplateCandidates {
		assert.Equal(t, "thai", c.Cuisine)
	}
}

func TestRetrieveCandidates_DuplicatesCollapseToBestRanked(t *testing.T) {
	sharedBody := "One pot lentil stew, simmered with seasonal vegetables."
	searcher := &stubSearcher{
		searchFn: func(query string, topK int, filter *domain.SearchFilter) ([]domain.Candidate, error) {
			// Every query returns the same document; only one copy may
			// survive the whole pipeline.
			return []domain.Candidate{{
				ID:            uuid.New(),
				Name:          "Lentil Stew",
				Cuisine:       filter.Cuisine,
				Ingredients:   []string{"lentils", "vegetables"},
				Body:          sharedBody,
				SemanticScore: 0.9,
			}}, nil
		},
	}

	uc := usecase.NewRetrieveCandidatesUsecase(searcher, fastPipelineConfig(), discardLogger())

	set, err := uc.Execute(context.Background(), usecase.RetrieveCandidatesInput{
		Prefs: domain.PlanPreferences{Cuisines: []string{"thai"}},
	})

	require.NoError(t, err)
	assert.Len(t, set.TemplateCandidates, 1)
	assert.NotEmpty(t, set.Audit.DroppedBy("dedupe"))
	assert.NotEmpty(t, set.QuotaReport.EmptyBuckets)
}

func TestRetrieveCandidates_RejectsInvalidPreferences(t *testing.T) {
	searcher := &stubSearcher{
		searchFn: func(query string, topK int, filter *domain.SearchFilter) ([]domain.Candidate, error) {
			t.Fatal("search must not be called for invalid preferences")
			return nil, nil
		},
	}

	uc := usecase.NewRetrieveCandidatesUsecase(searcher, fastPipelineConfig(), discardLogger())

	_, err := uc.Execute(context.Background(), usecase.RetrieveCandidatesInput{
		Prefs: domain.PlanPreferences{BudgetCeiling: -1},
	})

	assert.Error(t, err)
}
