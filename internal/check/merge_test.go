package check

import (
	"testing"

	"github.com/zoudejun0319/novelkeeper/internal/model"
)

func TestMergeCollapsesNearDuplicates(t *testing.T) {
	rule := []model.ConsistencyIssue{
		{Chapter: 7, Category: model.CategoryCharacter, Severity: model.SeverityWarning,
			Description: "lin fan moves from the capital to the village with no transition",
			Suggestion:  "add a travel beat", Origin: model.OriginRule},
	}
	semantic := []model.ConsistencyIssue{
		{Chapter: 7, Category: model.CategoryCharacter, Severity: model.SeverityCritical,
			Description: "lin fan is suddenly in the village, the capital transition is missing",
			Suggestion:  "explain the journey", Origin: model.OriginSemantic},
	}

	merged := mergeIssues(rule, semantic, 0.3)
	if len(merged) != 1 {
		t.Fatalf("expected 1 merged issue, got %d: %+v", len(merged), merged)
	}
	if merged[0].Severity != model.SeverityCritical {
		t.Errorf("expected the higher severity to win, got %s", merged[0].Severity)
	}
	if merged[0].Suggestion != "add a travel beat; explain the journey" {
		t.Errorf("expected concatenated suggestions, got %q", merged[0].Suggestion)
	}
	if merged[0].Origin != model.OriginRule {
		t.Errorf("the rule finding is the base, got origin %s", merged[0].Origin)
	}
}

func TestMergeKeepsDistinctFindings(t *testing.T) {
	rule := []model.ConsistencyIssue{
		{Chapter: 7, Category: model.CategoryCharacter, Severity: model.SeverityWarning, Description: "a location jump", Origin: model.OriginRule},
	}
	semantic := []model.ConsistencyIssue{
		// same chapter, different category
		{Chapter: 7, Category: model.CategoryLogic, Severity: model.SeverityWarning, Description: "a location jump", Origin: model.OriginSemantic},
		// same category, different chapter
		{Chapter: 8, Category: model.CategoryCharacter, Severity: model.SeverityWarning, Description: "a location jump", Origin: model.OriginSemantic},
		// same chapter and category, unrelated wording
		{Chapter: 7, Category: model.CategoryCharacter, Severity: model.SeverityCritical, Description: "the sword was broken two arcs ago", Origin: model.OriginSemantic},
	}

	merged := mergeIssues(rule, semantic, 0.6)
	if len(merged) != 4 {
		t.Fatalf("expected 4 distinct issues, got %d", len(merged))
	}
	// sorted severity desc then chapter asc
	if merged[0].Severity != model.SeverityCritical {
		t.Errorf("expected the critical first, got %s", merged[0].Severity)
	}
}

func TestSimilarity(t *testing.T) {
	if got := similarity("the red door opens", "the red door opens"); got != 1 {
		t.Errorf("identical strings: got %f", got)
	}
	if got := similarity("alpha beta", "gamma delta"); got != 0 {
		t.Errorf("disjoint strings: got %f", got)
	}
	if got := similarity("", "anything"); got != 0 {
		t.Errorf("empty string: got %f", got)
	}
	// case and punctuation do not matter
	if got := similarity("The Red-Door", "the red door"); got != 1 {
		t.Errorf("normalization: got %f", got)
	}
}
