package retrieval

import (
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"mealplan-orchestrator/internal/domain"
)

// allergenKeywords maps each allergen tag to the ingredient vocabulary that
// implies it. Matching is whole-word only: "wheat" must not fire inside
// "buckwheat".
var allergenKeywords = map[string][]string{
	"gluten":    {"wheat", "barley", "rye", "semolina", "seitan", "couscous", "farina"},
	"dairy":     {"milk", "butter", "cheese", "cream", "yogurt", "curd", "ghee", "paneer", "whey"},
	"eggs":      {"egg", "eggs", "mayonnaise"},
	"peanuts":   {"peanut", "peanuts", "groundnut", "groundnuts"},
	"tree-nuts": {"almond", "almonds", "cashew", "cashews", "walnut", "walnuts", "pistachio", "pistachios", "hazelnut", "hazelnuts", "pecan", "pecans"},
	"soy":       {"soy", "soya", "tofu", "tempeh", "edamame"},
	"shellfish": {"shrimp", "prawn", "prawns", "crab", "lobster", "clam", "clams", "mussel", "mussels", "oyster", "oysters"},
	"fish":      {"fish", "salmon", "tuna", "cod", "anchovy", "anchovies", "sardine", "sardines", "mackerel"},
	"sesame":    {"sesame", "tahini"},
	"honey":     {"honey"},
}

var (
	allergenPatterns     map[string]*regexp.Regexp
	allergenPatternsOnce sync.Once
)

// compiledAllergenPatterns builds one case-insensitive word-boundary pattern
// per allergen. Compiled once; the table is static.
func compiledAllergenPatterns() map[string]*regexp.Regexp {
	allergenPatternsOnce.Do(func() {
		allergenPatterns = make(map[string]*regexp.Regexp, len(allergenKeywords))
		for tag, words := range allergenKeywords {
			escaped := make([]string, len(words))
			for i, w := range words {
				escaped[i] = regexp.QuoteMeta(w)
			}
			allergenPatterns[tag] = regexp.MustCompile(`(?i)\b(` + strings.Join(escaped, "|") + `)\b`)
		}
	})
	return allergenPatterns
}

// ClassifyDocument assigns the record's document type. Explicit metadata
// wins; records without a meal-template shape are reference material. The
// body text decides between substitution references and general guidance.
func ClassifyDocument(c *domain.Candidate) domain.DocumentType {
	if c.DocumentType != "" {
		return c.DocumentType
	}
	if !c.HasTemplateShape() {
		if looksLikeSubstitution(c.Body) {
			return domain.DocumentTypeSubstitution
		}
		return domain.DocumentTypeGuidance
	}
	return domain.DocumentTypeTemplate
}

func looksLikeSubstitution(body string) bool {
	lower := strings.ToLower(body)
	return strings.Contains(lower, "substitute") ||
		strings.Contains(lower, "replacement") ||
		strings.Contains(lower, "instead of")
}

// DetectAllergens scans name, ingredients and body for whole-word matches
// against the restricted allergen set and returns the detected tags in the
// restriction set's order.
func DetectAllergens(c *domain.Candidate, restricted []string) []string {
	patterns := compiledAllergenPatterns()

	var haystack strings.Builder
	haystack.WriteString(c.Name)
	haystack.WriteByte('\n')
	for _, ing := range c.Ingredients {
		haystack.WriteString(ing)
		haystack.WriteByte('\n')
	}
	haystack.WriteString(c.Body)
	text := haystack.String()

	var tags []string
	for _, allergen := range restricted {
		pattern, ok := patterns[allergen]
		if !ok {
			// Unknown allergen names still get a literal whole-word check.
			pattern = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(allergen) + `\b`)
		}
		if pattern.MatchString(text) {
			tags = append(tags, allergen)
		}
	}
	return tags
}

// Classify annotates every retrieved record with its document type and
// allergen tags, routing non-templates to their side channels. Allergen
// presence tags the record for downstream substitution; it never drops it.
// Non-template records never enter the template list.
func Classify(sc *StageContext, logger *slog.Logger) {
	for i := range sc.Retrieved {
		c := &sc.Retrieved[i]
		c.DocumentType = ClassifyDocument(c)
		c.AllergenTags = DetectAllergens(c, sc.Prefs.Allergens)

		if len(c.AllergenTags) > 0 {
			logger.Info("candidate_allergen_tagged",
				slog.String("request_id", sc.RequestID),
				slog.String("candidate_id", c.ID.String()),
				slog.String("name", c.Name),
				slog.Any("allergens", c.AllergenTags))
		}

		switch c.DocumentType {
		case domain.DocumentTypeTemplate:
			sc.Audit.Keep(c.ID, "classify", "")
			sc.Templates = append(sc.Templates, *c)
		case domain.DocumentTypeSubstitution:
			sc.Audit.Drop(c.ID, "classify", "substitution-reference is not a generation anchor")
			sc.Substitute = append(sc.Substitute, *c)
			logger.Info("candidate_routed_reference",
				slog.String("request_id", sc.RequestID),
				slog.String("candidate_id", c.ID.String()),
				slog.String("document_type", string(c.DocumentType)))
		default:
			sc.Audit.Drop(c.ID, "classify", "guidance is not a generation anchor")
			sc.Guidance = append(sc.Guidance, *c)
			logger.Info("candidate_routed_reference",
				slog.String("request_id", sc.RequestID),
				slog.String("candidate_id", c.ID.String()),
				slog.String("document_type", string(c.DocumentType)))
		}
	}
}
