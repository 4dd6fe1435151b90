// Package revise turns a failed consistency report into a bounded list of
// concrete revision directives and enforces the revision-attempt cap.
package revise

import (
	"sort"

	"github.com/zoudejun0319/novelkeeper/internal/errs"
	"github.com/zoudejun0319/novelkeeper/internal/model"
)

// Directive is one actionable edit for the drafting collaborator.
type Directive struct {
	IssueID   string         `json:"issue_id,omitempty"`
	Chapter   int            `json:"chapter"`
	Category  model.Category `json:"category"`
	Severity  model.Severity `json:"severity"`
	Span      string         `json:"span,omitempty"`
	Diagnosis string         `json:"diagnosis"`
	Rewrite   string         `json:"rewrite"`
}

// Options bound the size of a directive list.
type Options struct {
	MaxAttempts int // revision cycles allowed per chapter
	MaxWarnings int // warning directives kept after the criticals
}

// Build ranks a report's issues and returns the directives worth acting on:
// every critical finding, then at most MaxWarnings warnings. Suggestions
// ride along only when nothing more severe exists. When attempts have
// already reached MaxAttempts, Build returns no directives and a
// REVISION_CAP_EXCEEDED error so the caller can park the chapter for human
// review.
func Build(report *model.ConsistencyReport, attempts int, opts Options) ([]Directive, error) {
	if attempts >= opts.MaxAttempts {
		return nil, errs.New(errs.CodeRevisionCapExceeded,
			"chapter range %d-%d failed %d revision cycles", report.Range.From, report.Range.To, attempts).
			WithMeta("scope", string(report.Scope))
	}

	issues := append([]model.ConsistencyIssue(nil), report.Issues...)
	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].Severity.Rank() != issues[j].Severity.Rank() {
			return issues[i].Severity.Rank() > issues[j].Severity.Rank()
		}
		return issues[i].Category.Priority() < issues[j].Category.Priority()
	})

	var directives []Directive
	warnings := 0
	hasActionable := false
	for _, is := range issues {
		switch is.Severity {
		case model.SeverityCritical:
			directives = append(directives, fromIssue(is))
			hasActionable = true
		case model.SeverityWarning:
			if warnings < opts.MaxWarnings {
				directives = append(directives, fromIssue(is))
				warnings++
			}
			hasActionable = true
		}
	}
	if !hasActionable {
		for _, is := range issues {
			directives = append(directives, fromIssue(is))
		}
	}
	return directives, nil
}

func fromIssue(is model.ConsistencyIssue) Directive {
	rewrite := is.Suggestion
	if rewrite == "" {
		rewrite = "rewrite the flagged passage so the finding no longer holds"
	}
	return Directive{
		IssueID:   is.ID,
		Chapter:   is.Chapter,
		Category:  is.Category,
		Severity:  is.Severity,
		Span:      is.Span,
		Diagnosis: is.Description,
		Rewrite:   rewrite,
	}
}
