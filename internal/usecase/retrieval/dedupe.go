package retrieval

import (
	"hash/fnv"
	"log/slog"
	"strings"
	"unicode"

	"mealplan-orchestrator/internal/domain"
)

// fingerprintPrefixLen bounds how much normalized body text feeds the
// fingerprint. Near-duplicates differ in trailing boilerplate, not openings.
const fingerprintPrefixLen = 512

// Fingerprint derives a stable content hash from the record's normalized
// body (lower-cased, whitespace collapsed, punctuation stripped). Records
// with an empty body fall back to the normalized name so two unrelated
// empty-bodied records never collide.
func Fingerprint(c *domain.Candidate) uint64 {
	text := c.Body
	if strings.TrimSpace(text) == "" {
		text = c.Name
	}
	normalized := normalizeForFingerprint(text)
	if len(normalized) > fingerprintPrefixLen {
		normalized = normalized[:fingerprintPrefixLen]
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(normalized))
	return h.Sum64()
}

func normalizeForFingerprint(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	lastSpace := false
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsSpace(r):
			if !lastSpace && b.Len() > 0 {
				b.WriteByte(' ')
				lastSpace = true
			}
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// Dedupe collapses records sharing a content fingerprint, keeping the
// first-seen copy. It must run after re-ranking so the surviving copy is the
// best-ranked one. Running it on an already-deduplicated list is a no-op.
func Dedupe(candidates []domain.Candidate, audit *domain.AuditTrail, logger *slog.Logger) []domain.Candidate {
	seen := make(map[uint64]bool, len(candidates))
	out := candidates[:0]
	dropped := 0

	for i := range candidates {
		fp := Fingerprint(&candidates[i])
		if seen[fp] {
			dropped++
			if audit != nil {
				audit.Drop(candidates[i].ID, "dedupe", "duplicate content fingerprint")
			}
			continue
		}
		seen[fp] = true
		out = append(out, candidates[i])
	}

	if dropped > 0 {
		logger.Info("dedupe_completed",
			slog.Int("input_count", len(candidates)),
			slog.Int("dropped", dropped))
	}
	return out
}
