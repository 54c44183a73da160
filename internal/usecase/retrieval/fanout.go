package retrieval

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"mealplan-orchestrator/internal/domain"
	"mealplan-orchestrator/internal/infra/logger"
)

// FanoutConfig bounds the concurrent retrieval phase.
type FanoutConfig struct {
	PerQueryTimeout time.Duration
	MaxAttempts     int
	InitialBackoff  time.Duration
	QueriesPerSec   float64 // index call rate limit, 0 = unlimited
}

// DefaultFanoutConfig returns the shipped fan-out parameters.
func DefaultFanoutConfig() FanoutConfig {
	return FanoutConfig{
		PerQueryTimeout: 5 * time.Second,
		MaxAttempts:     3,
		InitialBackoff:  200 * time.Millisecond,
		QueriesPerSec:   20,
	}
}

// Fanout executes every query-plan entry concurrently against the index and
// merges the per-entry result lists in plan order, so the pre-rerank
// candidate ordering is reproducible regardless of task completion order.
//
// No shared state is written during the fan-out phase: each task fills only
// its own slot. A task that exhausts its retries contributes zero records;
// retrieval never fails the whole request.
func Fanout(ctx context.Context, entries []QueryPlanEntry, searcher domain.VectorSearcher, cfg FanoutConfig, logger *slog.Logger) []domain.Candidate {
	results := make([][]domain.Candidate, len(entries))

	var limiter *rate.Limiter
	if cfg.QueriesPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.QueriesPerSec), 1)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range entries {
		g.Go(func() error {
			results[i] = retrieveEntry(gctx, entries[i], searcher, limiter, cfg, logger)
			return nil // degradation is per-entry, never group-fatal
		})
	}
	_ = g.Wait()

	var merged []domain.Candidate
	for i, entry := range entries {
		for _, c := range results[i] {
			if c.Cuisine == "" {
				c.Cuisine = entry.Cuisine
			}
			merged = append(merged, c)
		}
	}
	return merged
}

func retrieveEntry(ctx context.Context, entry QueryPlanEntry, searcher domain.VectorSearcher, limiter *rate.Limiter, cfg FanoutConfig, log *slog.Logger) []domain.Candidate {
	ctx = logger.WithCuisine(ctx, entry.Cuisine)

	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	backoff := cfg.InitialBackoff

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return nil
			}
		}

		callCtx := ctx
		var cancel context.CancelFunc
		if cfg.PerQueryTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, cfg.PerQueryTimeout)
		}
		hits, err := searcher.Search(callCtx, entry.Query, entry.TopK, entry.Filter)
		if cancel != nil {
			cancel()
		}

		if err == nil {
			return filterBySlot(entry, hits, log)
		}
		lastErr = err

		if attempt < attempts {
			log.WarnContext(ctx, "retrieval_retry",
				slog.String("meal_type", string(entry.MealType)),
				slog.Int("attempt", attempt),
				slog.Duration("backoff", backoff),
				slog.String("error", err.Error()))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}

	log.WarnContext(ctx, "retrieval_exhausted",
		slog.String("meal_type", string(entry.MealType)),
		slog.Int("attempts", attempts),
		slog.String("error", lastErr.Error()))
	return nil
}

// filterBySlot rejects hits whose inferred meal slot contradicts the slot
// the query asked for.
func filterBySlot(entry QueryPlanEntry, hits []domain.Candidate, logger *slog.Logger) []domain.Candidate {
	if entry.MealType == domain.MealTypeUnclassified {
		return hits
	}

	kept := hits[:0]
	rejected := 0
	for i := range hits {
		slot := InferMealType(&hits[i])
		if !MatchesSlot(entry.MealType, slot) {
			rejected++
			continue
		}
		hits[i].MealType = slot
		kept = append(kept, hits[i])
	}

	if rejected > 0 {
		logger.Info("cross_slot_hits_rejected",
			slog.String("cuisine", entry.Cuisine),
			slog.String("meal_type", string(entry.MealType)),
			slog.Int("rejected", rejected))
	}
	return kept
}
