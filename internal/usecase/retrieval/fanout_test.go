package retrieval_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"mealplan-orchestrator/internal/domain"
	"mealplan-orchestrator/internal/usecase/retrieval"
)

// fakeSearcher routes Search calls to a configurable function and counts
// attempts per query.
type fakeSearcher struct {
	mu       sync.Mutex
	attempts map[string]int
	searchFn func(query string, attempt int) ([]domain.Candidate, error)
}

func newFakeSearcher(fn func(query string, attempt int) ([]domain.Candidate, error)) *fakeSearcher {
	return &fakeSearcher{attempts: make(map[string]int), searchFn: fn}
}

func (f *fakeSearcher) Search(ctx context.Context, query string, topK int, filter *domain.SearchFilter) ([]domain.Candidate, error) {
	f.mu.Lock()
	f.attempts[query]++
	attempt := f.attempts[query]
	f.mu.Unlock()
	return f.searchFn(query, attempt)
}

func (f *fakeSearcher) VerifyScoreContract(ctx context.Context) error { return nil }

func (f *fakeSearcher) attemptCount(query string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts[query]
}

func fastFanoutConfig() retrieval.FanoutConfig {
	return retrieval.FanoutConfig{
		PerQueryTimeout: time.Second,
		MaxAttempts:     3,
		InitialBackoff:  time.Millisecond,
	}
}

func TestFanout_MergesInPlanOrder(t *testing.T) {
	entries := []retrieval.QueryPlanEntry{
		{Cuisine: "thai", Query: "q-thai", TopK: 2},
		{Cuisine: "japanese", Query: "q-japanese", TopK: 2},
	}

	searcher := newFakeSearcher(func(query string, attempt int) ([]domain.Candidate, error) {
		if query == "q-thai" {
			// Slow responder: completion order must not leak into the merge.
			time.Sleep(20 * time.Millisecond)
			return []domain.Candidate{{ID: uuid.New(), Name: "thai-1"}}, nil
		}
		return []domain.Candidate{{ID: uuid.New(), Name: "japanese-1"}}, nil
	})

	merged := retrieval.Fanout(context.Background(), entries, searcher, fastFanoutConfig(), discardLogger())

	assert.Len(t, merged, 2)
	assert.Equal(t, "thai-1", merged[0].Name)
	assert.Equal(t, "thai", merged[0].Cuisine)
	assert.Equal(t, "japanese-1", merged[1].Name)
}

func TestFanout_RetriesWithBackoffThenSucceeds(t *testing.T) {
	entries := []retrieval.QueryPlanEntry{{Cuisine: "thai", Query: "flaky", TopK: 1}}

	searcher := newFakeSearcher(func(query string, attempt int) ([]domain.Candidate, error) {
		if attempt < 3 {
			return nil, errors.New("index hiccup")
		}
		return []domain.Candidate{{ID: uuid.New(), Name: "recovered"}}, nil
	})

	merged := retrieval.Fanout(context.Background(), entries, searcher, fastFanoutConfig(), discardLogger())

	assert.Len(t, merged, 1)
	assert.Equal(t, "recovered", merged[0].Name)
	assert.Equal(t, 3, searcher.attemptCount("flaky"))
}

func TestFanout_ExhaustedEntryDegradesWithoutFailingOthers(t *testing.T) {
	entries := []retrieval.QueryPlanEntry{
		{Cuisine: "thai", Query: "broken", TopK: 1},
		{Cuisine: "japanese", Query: "healthy", TopK: 1},
	}

	searcher := newFakeSearcher(func(query string, attempt int) ([]domain.Candidate, error) {
		if query == "broken" {
			return nil, errors.New("persistent failure")
		}
		return []domain.Candidate{{ID: uuid.New(), Name: "ok"}}, nil
	})

	merged := retrieval.Fanout(context.Background(), entries, searcher, fastFanoutConfig(), discardLogger())

	assert.Len(t, merged, 1)
	assert.Equal(t, "ok", merged[0].Name)
	assert.Equal(t, 3, searcher.attemptCount("broken"))
}

func TestFanout_RejectsCrossSlotHits(t *testing.T) {
	entries := []retrieval.QueryPlanEntry{
		{Cuisine: "indian", MealType: domain.MealTypeLunchDinner, Query: "lunch", TopK: 5},
	}

	searcher := newFakeSearcher(func(query string, attempt int) ([]domain.Candidate, error) {
		return []domain.Candidate{
			{ID: uuid.New(), Name: "Dal Curry", Body: "hearty dinner stew"},
			{ID: uuid.New(), Name: "Idli", Body: "steamed breakfast staple with dosa batter"},
		}, nil
	})

	merged := retrieval.Fanout(context.Background(), entries, searcher, fastFanoutConfig(), discardLogger())

	assert.Len(t, merged, 1)
	assert.Equal(t, "Dal Curry", merged[0].Name)
	assert.Equal(t, domain.MealTypeLunchDinner, merged[0].MealType)
}

func TestFanout_PreservesAdapterCuisine(t *testing.T) {
	entries := []retrieval.QueryPlanEntry{{Cuisine: "unspecified", Query: "any", TopK: 1}}

	searcher := newFakeSearcher(func(query string, attempt int) ([]domain.Candidate, error) {
		return []domain.Candidate{{ID: uuid.New(), Name: "dish", Cuisine: "thai"}}, nil
	})

	merged := retrieval.Fanout(context.Background(), entries, searcher, fastFanoutConfig(), discardLogger())

	assert.Equal(t, "thai", merged[0].Cuisine)
}
