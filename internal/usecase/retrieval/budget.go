package retrieval

import (
	"log/slog"
	"regexp"
	"strings"

	"mealplan-orchestrator/internal/domain"
)

// BudgetConfig bounds the volume of text forwarded downstream.
type BudgetConfig struct {
	MaxTemplates     int // hard cap on template records
	ReferenceBodyMax int // char ceiling for guidance/substitution bodies
}

// DefaultBudgetConfig matches the global candidate budget.
func DefaultBudgetConfig() BudgetConfig {
	return BudgetConfig{
		MaxTemplates:     domain.TotalCandidateBudget,
		ReferenceBodyMax: 600,
	}
}

// Named-dish examples embedded in reference text contaminate downstream
// generation: the model mistakes a substitution example for a menu item.
// Matches "e.g. Masala Dosa", "such as Greek Salad", "like Pad Thai," up to
// the next delimiter, and parenthesized Title Case runs.
var (
	dishExamplePattern  = regexp.MustCompile(`\b(?i:e\.g\.|for example,?|such as|like)\s+[A-Z][\w'-]*(?:\s+[A-Z][\w'-]*){0,4}`)
	parenExamplePattern = regexp.MustCompile(`\(\s*[A-Z][\w'-]*(?:\s+[A-Z][\w'-]*){0,4}\s*\)`)
)

// StripDishExamples removes substrings resembling named dish examples from
// reference text. Applied before truncation so the ceiling is spent on
// guidance, not on contaminating examples.
func StripDishExamples(body string) string {
	body = dishExamplePattern.ReplaceAllString(body, "")
	body = parenExamplePattern.ReplaceAllString(body, "")
	return strings.Join(strings.Fields(body), " ")
}

// TruncateTemplates enforces the hard count cap on template records,
// trimming lowest-ranked first. Must run after re-ranking.
func TruncateTemplates(candidates []domain.Candidate, maxCount int, audit *domain.AuditTrail) []domain.Candidate {
	if maxCount <= 0 || len(candidates) <= maxCount {
		return candidates
	}
	for i := maxCount; i < len(candidates); i++ {
		if audit != nil {
			audit.Drop(candidates[i].ID, "budget", "over template count cap")
		}
	}
	return candidates[:maxCount]
}

// EnforceBudget trims the candidate set to the configured context budget:
// the template list is capped by count, reference bodies are example-stripped
// and truncated by length. Returns the savings report; budget pressure is
// always resolved by truncation, never by failing the request.
func EnforceBudget(sc *StageContext, cfg BudgetConfig, logger *slog.Logger) TokenBudgetReport {
	report := TokenBudgetReport{
		OriginalCount: len(sc.Templates) + len(sc.Guidance) + len(sc.Substitute),
	}

	before := len(sc.Templates)
	sc.Templates = TruncateTemplates(sc.Templates, cfg.MaxTemplates, &sc.Audit)
	if cut := before - len(sc.Templates); cut > 0 {
		logger.Info("template_budget_enforced",
			slog.String("request_id", sc.RequestID),
			slog.Int("cut", cut),
			slog.Int("cap", cfg.MaxTemplates))
	}

	report.BytesSaved += trimReferenceBodies(sc.Guidance, cfg.ReferenceBodyMax)
	report.BytesSaved += trimReferenceBodies(sc.Substitute, cfg.ReferenceBodyMax)

	report.FinalCount = len(sc.Templates) + len(sc.Guidance) + len(sc.Substitute)

	logger.Info("context_budget_enforced",
		slog.String("request_id", sc.RequestID),
		slog.Int("original_count", report.OriginalCount),
		slog.Int("final_count", report.FinalCount),
		slog.Int("bytes_saved", report.BytesSaved))

	return report
}

func trimReferenceBodies(refs []domain.Candidate, maxChars int) int {
	saved := 0
	for i := range refs {
		original := len(refs[i].Body)
		body := StripDishExamples(refs[i].Body)
		if maxChars > 0 && len(body) > maxChars {
			body = truncateOnRune(body, maxChars)
		}
		refs[i].Body = body
		saved += original - len(body)
	}
	return saved
}

// truncateOnRune cuts at maxBytes without splitting a UTF-8 sequence.
func truncateOnRune(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	cut := maxBytes
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
