package retrieval_test

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"mealplan-orchestrator/internal/domain"
	"mealplan-orchestrator/internal/usecase/retrieval"
)

func TestStripDishExamples(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			"e.g. example",
			"Prefer whole grains, e.g. Masala Dosa works well.",
			"Prefer whole grains, works well.",
		},
		{
			"such as example",
			"Try lighter dinners such as Greek Salad with dressing.",
			"Try lighter dinners with dressing.",
		},
		{
			"parenthesized dish",
			"Swap fried snacks (Pad Thai Rolls) for baked ones.",
			"Swap fried snacks for baked ones.",
		},
		{
			"lowercase prose untouched",
			"like to eat slowly and chew well",
			"like to eat slowly and chew well",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, retrieval.StripDishExamples(tc.in))
		})
	}
}

func TestTruncateTemplates_CutsLowestRankedFirst(t *testing.T) {
	candidates := []domain.Candidate{
		{ID: uuid.New(), Name: "rank-1", RerankScore: 0.9},
		{ID: uuid.New(), Name: "rank-2", RerankScore: 0.8},
		{ID: uuid.New(), Name: "rank-3", RerankScore: 0.7},
	}
	cutID := candidates[2].ID

	var audit domain.AuditTrail
	out := retrieval.TruncateTemplates(candidates, 2, &audit)

	assert.Len(t, out, 2)
	assert.Equal(t, "rank-1", out[0].Name)
	assert.Equal(t, "rank-2", out[1].Name)

	dropped := audit.DroppedBy("budget")
	assert.Len(t, dropped, 1)
	assert.Equal(t, cutID, dropped[0].CandidateID)
}

func TestTruncateTemplates_NoOpWithinCap(t *testing.T) {
	candidates := []domain.Candidate{{ID: uuid.New()}}
	out := retrieval.TruncateTemplates(candidates, 5, nil)
	assert.Len(t, out, 1)
}

func TestEnforceBudget_TrimsReferenceBodies(t *testing.T) {
	longBody := strings.Repeat("guidance text ", 100)
	sc := &retrieval.StageContext{
		RequestID: "req-1",
		Templates: []domain.Candidate{{ID: uuid.New(), Name: "Pad Thai"}},
		Guidance:  []domain.Candidate{{ID: uuid.New(), Body: longBody}},
	}

	cfg := retrieval.BudgetConfig{MaxTemplates: 70, ReferenceBodyMax: 100}
	report := retrieval.EnforceBudget(sc, cfg, discardLogger())

	assert.LessOrEqual(t, len(sc.Guidance[0].Body), 100)
	assert.Equal(t, 2, report.OriginalCount)
	assert.Equal(t, 2, report.FinalCount)
	assert.Equal(t, len(longBody)-len(sc.Guidance[0].Body), report.BytesSaved)
}

func TestEnforceBudget_TruncationRespectsUTF8(t *testing.T) {
	body := strings.Repeat("é", 100)
	sc := &retrieval.StageContext{
		RequestID:  "req-2",
		Templates:  []domain.Candidate{{ID: uuid.New()}},
		Substitute: []domain.Candidate{{ID: uuid.New(), Body: body}},
	}

	cfg := retrieval.BudgetConfig{MaxTemplates: 70, ReferenceBodyMax: 33}
	retrieval.EnforceBudget(sc, cfg, discardLogger())

	got := sc.Substitute[0].Body
	assert.LessOrEqual(t, len(got), 33)
	assert.True(t, strings.HasPrefix(body, got))
	// No split multi-byte sequence at the cut point.
	for _, r := range got {
		assert.NotEqual(t, '�', r)
	}
}

func TestEnforceBudget_CapsTemplateCount(t *testing.T) {
	sc := &retrieval.StageContext{RequestID: "req-3"}
	for i := 0; i < 10; i++ {
		sc.Templates = append(sc.Templates, domain.Candidate{ID: uuid.New()})
	}

	cfg := retrieval.BudgetConfig{MaxTemplates: 4, ReferenceBodyMax: 600}
	report := retrieval.EnforceBudget(sc, cfg, discardLogger())

	assert.Len(t, sc.Templates, 4)
	assert.Equal(t, 10, report.OriginalCount)
	assert.Equal(t, 4, report.FinalCount)
}
