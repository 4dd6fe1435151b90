package check

import (
	"strings"
	"unicode"

	"github.com/zoudejun0319/novelkeeper/internal/model"
)

// mergeIssues folds the semantic findings into the rule findings. A
// semantic issue that matches a rule issue on chapter, category, and
// description similarity collapses into it, keeping the higher severity and
// both suggestions. The merged list comes back sorted severity desc then
// chapter asc.
func mergeIssues(rule, semantic []model.ConsistencyIssue, threshold float64) []model.ConsistencyIssue {
	merged := append([]model.ConsistencyIssue(nil), rule...)
	for _, s := range semantic {
		idx := -1
		for i, m := range merged {
			if m.Chapter != s.Chapter || m.Category != s.Category {
				continue
			}
			if similarity(m.Description, s.Description) >= threshold {
				idx = i
				break
			}
		}
		if idx < 0 {
			merged = append(merged, s)
			continue
		}
		merged[idx] = combine(merged[idx], s)
	}
	sortIssues(merged)
	return merged
}

// combine keeps the base issue, upgrading severity and concatenating the
// suggestion when the duplicate adds one.
func combine(base, dup model.ConsistencyIssue) model.ConsistencyIssue {
	if dup.Severity.Rank() > base.Severity.Rank() {
		base.Severity = dup.Severity
	}
	if dup.Suggestion != "" && !strings.Contains(base.Suggestion, dup.Suggestion) {
		if base.Suggestion == "" {
			base.Suggestion = dup.Suggestion
		} else {
			base.Suggestion += "; " + dup.Suggestion
		}
	}
	if base.Span == "" {
		base.Span = dup.Span
	}
	return base
}

// similarity is the Jaccard index over lowercased token sets. Punctuation
// splits tokens, so rephrasings that share vocabulary still score high.
func similarity(a, b string) float64 {
	ta, tb := tokens(a), tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	inter := 0
	for tok := range ta {
		if tb[tok] {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	return float64(inter) / float64(union)
}

func tokens(s string) map[string]bool {
	set := map[string]bool{}
	for _, tok := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		set[tok] = true
	}
	return set
}
