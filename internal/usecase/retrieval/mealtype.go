package retrieval

import (
	"regexp"
	"strings"

	"mealplan-orchestrator/internal/domain"
)

// Meal-slot vocabularies. A record's slot is the one whose vocabulary scores
// the most whole-word hits over name + body; ties stay unclassified.
var mealTypeVocabulary = map[domain.MealType][]string{
	domain.MealTypeBreakfast: {
		"breakfast", "porridge", "oats", "oatmeal", "pancake", "pancakes",
		"idli", "dosa", "upma", "poha", "paratha", "toast", "cereal",
		"smoothie", "omelette", "granola", "congee",
	},
	domain.MealTypeLunchDinner: {
		"lunch", "dinner", "curry", "gravy", "rice", "biryani", "pilaf",
		"soup", "stew", "casserole", "roast", "dal", "pasta", "noodles",
		"sabzi", "thali", "bowl",
	},
	domain.MealTypeSnack: {
		"snack", "fried", "fritter", "fritters", "pakora", "samosa",
		"chaat", "bites", "chips", "crackers", "bar", "bhel", "vada",
		"cutlet", "tikki",
	},
}

var mealTypeMatchers = buildMealTypeMatchers()

func buildMealTypeMatchers() map[domain.MealType]*regexp.Regexp {
	matchers := make(map[domain.MealType]*regexp.Regexp, len(mealTypeVocabulary))
	for mt, words := range mealTypeVocabulary {
		escaped := make([]string, len(words))
		for i, w := range words {
			escaped[i] = regexp.QuoteMeta(w)
		}
		matchers[mt] = regexp.MustCompile(`(?i)\b(` + strings.Join(escaped, "|") + `)\b`)
	}
	return matchers
}

// InferMealType classifies a record into a meal slot from its name and body.
func InferMealType(c *domain.Candidate) domain.MealType {
	return ClassifyMealText(c.Name + "\n" + c.Body)
}

// ClassifyMealText runs the slot vocabularies over free text. It is applied
// to records and to query text alike, so retrieval can reject cross-slot
// matches (a lunch query must not admit a breakfast-classified record).
func ClassifyMealText(text string) domain.MealType {
	best := domain.MealTypeUnclassified
	bestCount := 0
	tied := false

	// Fixed iteration order keeps ties deterministic.
	for _, mt := range []domain.MealType{
		domain.MealTypeBreakfast,
		domain.MealTypeLunchDinner,
		domain.MealTypeSnack,
	} {
		count := len(mealTypeMatchers[mt].FindAllStringIndex(text, -1))
		if count > bestCount {
			best = mt
			bestCount = count
			tied = false
		} else if count == bestCount && count > 0 {
			tied = true
		}
	}

	if tied || bestCount == 0 {
		return domain.MealTypeUnclassified
	}
	return best
}

// MatchesSlot reports whether a record classified as `got` may satisfy a
// query for slot `want`. Unclassified on either side is permissive.
func MatchesSlot(want, got domain.MealType) bool {
	if want == domain.MealTypeUnclassified || got == domain.MealTypeUnclassified {
		return true
	}
	return want == got
}
