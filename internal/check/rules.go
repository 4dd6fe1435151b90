package check

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/zoudejun0319/novelkeeper/internal/errs"
	"github.com/zoudejun0319/novelkeeper/internal/model"
	"github.com/zoudejun0319/novelkeeper/internal/text"
)

// Rule check ids, referenced by the per-scope required lists in config.
const (
	CheckWordCount        = "word_count"
	CheckPOV              = "pov"
	CheckTerminology      = "terminology"
	CheckContradiction    = "contradiction"
	CheckForeshadowingDue = "foreshadowing_due"
)

var povMarker = regexp.MustCompile(`(?m)^\[POV:\s*(.+?)\]\s*$`)

// checkWordCount flags chapters outside the configured word band. Falling
// short by more than 30% of the floor is critical, any other miss is a
// warning.
func (c *Checker) checkWordCount(chapters []ChapterText) ruleResult {
	r := ruleResult{id: CheckWordCount}
	for _, ch := range chapters {
		n := text.CountWords(ch.Text)
		switch {
		case n < c.cfg.MinWords*7/10:
			r.issues = append(r.issues, model.ConsistencyIssue{
				Chapter:     ch.Chapter.Number,
				Category:    model.CategoryLiterary,
				Severity:    model.SeverityCritical,
				Description: fmt.Sprintf("chapter %d has %d words, far below the %d minimum", ch.Chapter.Number, n, c.cfg.MinWords),
				Suggestion:  "expand scenes or merge the chapter with an adjacent one",
				Origin:      model.OriginRule,
			})
		case n < c.cfg.MinWords:
			r.issues = append(r.issues, model.ConsistencyIssue{
				Chapter:     ch.Chapter.Number,
				Category:    model.CategoryLiterary,
				Severity:    model.SeverityWarning,
				Description: fmt.Sprintf("chapter %d has %d words, below the %d minimum", ch.Chapter.Number, n, c.cfg.MinWords),
				Suggestion:  "expand the thinnest scene",
				Origin:      model.OriginRule,
			})
		case c.cfg.MaxWords > 0 && n > c.cfg.MaxWords:
			r.issues = append(r.issues, model.ConsistencyIssue{
				Chapter:     ch.Chapter.Number,
				Category:    model.CategoryLiterary,
				Severity:    model.SeverityWarning,
				Description: fmt.Sprintf("chapter %d has %d words, above the %d maximum", ch.Chapter.Number, n, c.cfg.MaxWords),
				Suggestion:  "trim or split the chapter",
				Origin:      model.OriginRule,
			})
		}
	}
	return r
}

// checkPOV verifies each chapter opens with exactly one POV marker and that
// it names the viewpoint the roster declares.
func (c *Checker) checkPOV(chapters []ChapterText) ruleResult {
	r := ruleResult{id: CheckPOV}
	for _, ch := range chapters {
		marks := povMarker.FindAllStringSubmatch(ch.Text, -1)
		switch {
		case len(marks) == 0:
			r.issues = append(r.issues, model.ConsistencyIssue{
				Chapter:     ch.Chapter.Number,
				Category:    model.CategoryPOV,
				Severity:    model.SeverityCritical,
				Description: fmt.Sprintf("chapter %d carries no [POV: ...] marker", ch.Chapter.Number),
				Suggestion:  "open the chapter with a [POV: name] line",
				Origin:      model.OriginRule,
			})
			continue
		case distinctMarks(marks) > 1:
			r.issues = append(r.issues, model.ConsistencyIssue{
				Chapter:     ch.Chapter.Number,
				Category:    model.CategoryPOV,
				Severity:    model.SeverityCritical,
				Description: fmt.Sprintf("chapter %d switches viewpoint mid-chapter (%d distinct POV markers)", ch.Chapter.Number, distinctMarks(marks)),
				Suggestion:  "split the chapter or rewrite the intruding scene from the declared viewpoint",
				Origin:      model.OriginRule,
			})
			continue
		}
		got := strings.TrimSpace(marks[0][1])
		if ch.Chapter.POV != "" && got != ch.Chapter.POV {
			r.issues = append(r.issues, model.ConsistencyIssue{
				Chapter:     ch.Chapter.Number,
				Category:    model.CategoryPOV,
				Severity:    model.SeverityCritical,
				Description: fmt.Sprintf("chapter %d is told from %q but the outline declares %q", ch.Chapter.Number, got, ch.Chapter.POV),
				Suggestion:  fmt.Sprintf("rewrite from %s's viewpoint or update the outline", ch.Chapter.POV),
				Origin:      model.OriginRule,
			})
		}
	}
	return r
}

func distinctMarks(marks [][]string) int {
	seen := map[string]bool{}
	for _, m := range marks {
		seen[strings.TrimSpace(m[1])] = true
	}
	return len(seen)
}

// checkTerminology flags vocabulary used before its declared first chapter.
func (c *Checker) checkTerminology(chapters []ChapterText) ruleResult {
	r := ruleResult{id: CheckTerminology}
	for _, ch := range chapters {
		for _, t := range c.cfg.Vocabulary {
			if t.FirstChapter <= ch.Chapter.Number || !strings.Contains(ch.Text, t.Term) {
				continue
			}
			issue := model.ConsistencyIssue{
				Chapter:     ch.Chapter.Number,
				Category:    model.CategoryWorldRule,
				Severity:    model.SeverityWarning,
				Description: fmt.Sprintf("term %q appears in chapter %d but is not introduced until chapter %d", t.Term, ch.Chapter.Number, t.FirstChapter),
				Suggestion:  "remove the term or move its introduction earlier",
				Origin:      model.OriginRule,
			}
			if p, ok := text.PassageContaining(ch.Text, t.Term); ok {
				issue.Span = fmt.Sprintf("L%d-%d: %s", p.StartLine, p.EndLine, text.Excerpt(p.Text, 120))
			}
			r.issues = append(r.issues, issue)
		}
	}
	return r
}

// checkContradictions compares the states a draft asserts against the
// ledger as of the previous chapter. A lost ability is critical; an
// unexplained location jump is a warning. Characters the ledger has never
// seen are skipped, they are being introduced. Any other store failure
// propagates: a required check must not pass vacuously because the ledger
// could not be read.
func (c *Checker) checkContradictions(ctx context.Context, chapters []ChapterText) (ruleResult, error) {
	r := ruleResult{id: CheckContradiction}
	for _, ch := range chapters {
		for charID, asserted := range ch.Facts {
			prev, err := c.store.CharacterState(ctx, charID, ch.Chapter.Number-1)
			if errs.IsCode(err, errs.CodeNotFound) {
				continue
			}
			if err != nil {
				return r, err
			}
			r.issues = append(r.issues, compareStates(ch.Chapter.Number, charID, prev, asserted)...)
		}
	}
	return r, nil
}

func compareStates(chapter int, charID string, prev, asserted model.CharacterState) []model.ConsistencyIssue {
	var issues []model.ConsistencyIssue
	if pl, al := prev["location"], asserted["location"]; pl != "" && al != "" && pl != al {
		issues = append(issues, model.ConsistencyIssue{
			Chapter:     chapter,
			Category:    model.CategoryCharacter,
			Severity:    model.SeverityWarning,
			Description: fmt.Sprintf("%s moves from %q to %q with no transition on record", charID, pl, al),
			Suggestion:  "add a travel beat or record the move in an earlier chapter",
			Origin:      model.OriginRule,
		})
	}
	for key, was := range prev {
		if !strings.HasPrefix(key, "ability:") {
			continue
		}
		if now, ok := asserted[key]; ok && was == "true" && now == "false" {
			issues = append(issues, model.ConsistencyIssue{
				Chapter:     chapter,
				Category:    model.CategoryCharacter,
				Severity:    model.SeverityCritical,
				Description: fmt.Sprintf("%s loses %s without an on-page cause", charID, strings.TrimPrefix(key, "ability:")),
				Suggestion:  "show the loss on the page or drop the change",
				Origin:      model.OriginRule,
			})
		}
	}
	return issues
}

// checkForeshadowingDue surfaces planted threads past the overdue
// threshold. A thread past its declared target chapter is critical, merely
// overdue is a warning.
func (c *Checker) checkForeshadowingDue(ctx context.Context, rng model.ChapterRange) (ruleResult, error) {
	r := ruleResult{id: CheckForeshadowingDue}
	items, err := c.store.OverdueForeshadowing(ctx, rng.To, c.cfg.OverdueThreshold)
	if err != nil {
		return r, err
	}
	for _, it := range items {
		sev := model.SeverityWarning
		if it.TargetChapter > 0 && rng.To >= it.TargetChapter {
			sev = model.SeverityCritical
		}
		r.issues = append(r.issues, model.ConsistencyIssue{
			Chapter:     rng.To,
			Category:    model.CategoryForeshadowing,
			Severity:    sev,
			Description: fmt.Sprintf("thread %s (%q) planted in chapter %d is still unresolved after %d chapters", it.ID, text.Excerpt(it.Description, 60), it.PlantChapter, rng.To-it.PlantChapter),
			Suggestion:  fmt.Sprintf("resolve thread %s or push its payoff into the coming arc", it.ID),
			Origin:      model.OriginRule,
		})
	}
	return r, nil
}
