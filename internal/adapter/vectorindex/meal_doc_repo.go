package vectorindex

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"mealplan-orchestrator/internal/domain"
)

type mealDocumentRepository struct {
	pool    *pgxpool.Pool
	encoder domain.VectorEncoder
}

// NewMealDocumentRepository creates the pgvector-backed searcher. This is
// the only place that knows the index reports cosine distance; everything
// downstream sees normalized similarity.
func NewMealDocumentRepository(pool *pgxpool.Pool, encoder domain.VectorEncoder) domain.VectorSearcher {
	return &mealDocumentRepository{pool: pool, encoder: encoder}
}

func (r *mealDocumentRepository) Search(ctx context.Context, query string, topK int, filter *domain.SearchFilter) ([]domain.Candidate, error) {
	embeddings, err := r.encoder.Encode(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embedding returned for query")
	}

	sql := `
		SELECT id, name, cuisine, document_type, ingredients, body,
		       protein_g, carbs_g, fat_g, fiber_g, calories,
		       glycemic_category, budget_min, budget_max, prep_time_text,
		       embedding <=> $1 AS distance
		FROM meal_documents
	`
	args := []interface{}{pgvector.NewVector(embeddings[0])}

	var where []string
	if filter != nil && filter.Cuisine != "" {
		args = append(args, filter.Cuisine)
		where = append(where, fmt.Sprintf("cuisine = $%d", len(args)))
	}
	if filter != nil && filter.DocumentType != "" {
		args = append(args, string(filter.DocumentType))
		where = append(where, fmt.Sprintf("document_type = $%d", len(args)))
	}
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, topK)
	sql += fmt.Sprintf(" ORDER BY distance ASC LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query meal documents: %w", err)
	}
	defer rows.Close()

	var candidates []domain.Candidate
	for rows.Next() {
		var (
			c            domain.Candidate
			docType      *string
			glycemic     *string
			budgetMin    *float64
			budgetMax    *float64
			prepTimeText *string
			distance     float64
		)
		if err := rows.Scan(
			&c.ID, &c.Name, &c.Cuisine, &docType, &c.Ingredients, &c.Body,
			&c.Macros.Protein, &c.Macros.Carbs, &c.Macros.Fat, &c.Macros.Fiber, &c.Macros.Calories,
			&glycemic, &budgetMin, &budgetMax, &prepTimeText,
			&distance,
		); err != nil {
			return nil, fmt.Errorf("failed to scan meal document: %w", err)
		}

		if docType != nil {
			c.DocumentType = domain.DocumentType(*docType)
		}
		c.Glycemic = parseGlycemic(glycemic)
		if budgetMin != nil && budgetMax != nil {
			c.Budget = &domain.BudgetRange{Min: *budgetMin, Max: *budgetMax}
		}
		if prepTimeText != nil {
			c.PrepTimeMin = ParsePrepTime(*prepTimeText)
		}
		c.MealType = domain.MealTypeUnclassified
		c.SemanticScore = normalizeDistance(distance)

		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return candidates, nil
}

// normalizeDistance converts cosine distance (0 = identical, 2 = opposite)
// into similarity in [0,1], higher is closer. This conversion happens once,
// here; no call site re-derives score polarity.
func normalizeDistance(distance float64) float64 {
	sim := 1 - distance/2
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}

// Probe texts for the score-direction contract check. The similar pair
// shares vocabulary; the dissimilar text is from an unrelated domain.
const (
	probeQuery      = "vegetable lentil curry with rice"
	probeSimilar    = "spiced lentil and vegetable curry served over steamed rice"
	probeDissimilar = "quarterly financial audit procedures for manufacturing firms"
)

// VerifyScoreContract encodes a fixed probe triple and checks that the
// normalized similarity orders the known-similar text above the
// known-dissimilar one. Score polarity bugs fail boot here instead of
// silently inverting retrieval.
func (r *mealDocumentRepository) VerifyScoreContract(ctx context.Context) error {
	embeddings, err := r.encoder.Encode(ctx, []string{probeQuery, probeSimilar, probeDissimilar})
	if err != nil {
		return fmt.Errorf("failed to encode probe texts: %w", err)
	}
	if len(embeddings) != 3 {
		return fmt.Errorf("expected 3 probe embeddings, got %d", len(embeddings))
	}

	simClose := normalizeDistance(cosineDistance(embeddings[0], embeddings[1]))
	simFar := normalizeDistance(cosineDistance(embeddings[0], embeddings[2]))
	if simClose <= simFar {
		return fmt.Errorf("%w: similar=%.4f dissimilar=%.4f",
			domain.ErrScoreContractViolated, simClose, simFar)
	}
	return nil
}

func cosineDistance(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		if i >= len(b) {
			break
		}
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}

func parseGlycemic(s *string) domain.GlycemicCategory {
	if s == nil {
		return domain.GlycemicUnknown
	}
	switch strings.ToLower(strings.TrimSpace(*s)) {
	case "low":
		return domain.GlycemicLow
	case "medium", "moderate":
		return domain.GlycemicMedium
	case "high":
		return domain.GlycemicHigh
	default:
		return domain.GlycemicUnknown
	}
}

var prepTimePattern = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(hours?|hrs?|h|minutes?|mins?|m)\b`)

// ParsePrepTime extracts total minutes from free-text time expressions like
// "30 minutes", "1 hr 15 min", or "1.5 hours". Returns nil when no time
// expression is present.
func ParsePrepTime(text string) *int {
	matches := prepTimePattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	total := 0.0
	for _, m := range matches {
		value, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		unit := strings.ToLower(m[2])
		if strings.HasPrefix(unit, "h") {
			total += value * 60
		} else {
			total += value
		}
	}
	if total <= 0 {
		return nil
	}
	minutes := int(math.Round(total))
	return &minutes
}

var _ domain.VectorSearcher = (*mealDocumentRepository)(nil)
