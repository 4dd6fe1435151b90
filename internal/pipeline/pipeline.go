// Package pipeline drives the write loop: draft a chapter, record its
// declared facts, run every checkpoint the chapter triggers, and revise
// until the required checks pass or the revision cap parks the chapter.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"

	"github.com/zoudejun0319/novelkeeper/internal/check"
	"github.com/zoudejun0319/novelkeeper/internal/config"
	"github.com/zoudejun0319/novelkeeper/internal/errs"
	"github.com/zoudejun0319/novelkeeper/internal/memory"
	"github.com/zoudejun0319/novelkeeper/internal/model"
	"github.com/zoudejun0319/novelkeeper/internal/revise"
	"github.com/zoudejun0319/novelkeeper/internal/schedule"
	"github.com/zoudejun0319/novelkeeper/internal/text"
)

// Generator is the drafting collaborator capability.
type Generator interface {
	Draft(ctx context.Context, ch model.Chapter, digest *model.Digest) (*model.Draft, error)
	Revise(ctx context.Context, draft *model.Draft, directives []revise.Directive) (*model.Draft, error)
}

// Result is the outcome of advancing one chapter.
type Result struct {
	RunID     string
	Chapter   int
	Draft     *model.Draft
	Reports   []*model.ConsistencyReport
	Revisions int
	Degraded  bool
	Accepted  bool
}

// Pipeline owns one project's write loop.
type Pipeline struct {
	store    memory.Store
	gen      Generator
	checker  *check.Checker
	cfg      config.Config
	policy   schedule.Policy
	progress io.Writer
}

// New wires a pipeline. Progress lines go to stderr.
func New(store memory.Store, gen Generator, checker *check.Checker, cfg config.Config) *Pipeline {
	return &Pipeline{
		store:    store,
		gen:      gen,
		checker:  checker,
		cfg:      cfg,
		policy:   schedule.FromConfig(cfg.Schedule),
		progress: os.Stderr,
	}
}

// Advance drafts chapter number, runs its checkpoints widest-last, and
// revises on required failures. On success the roster entry is marked
// passed and its summary indexed. A REVISION_CAP_EXCEEDED error still
// carries the partial Result so callers can persist and report it.
func (p *Pipeline) Advance(ctx context.Context, number int) (*Result, error) {
	res := &Result{RunID: uuid.NewString(), Chapter: number}

	ch, err := p.store.Chapter(ctx, number)
	if err != nil {
		return res, err
	}

	digest, err := p.contextDigest(ctx, number)
	if err != nil {
		return res, err
	}

	p.logf("[draft] chapter %d %q run %s", number, ch.Title, res.RunID)
	draft, err := p.gen.Draft(ctx, *ch, digest)
	if err != nil {
		return res, err
	}
	res.Draft = draft
	if err := p.recordFacts(ctx, draft); err != nil {
		return res, err
	}

	for _, scope := range schedule.ScopesFor(number, p.cfg.Schedule.Volumes, p.policy) {
		rng := schedule.RangeFor(scope, number, p.cfg.Schedule.Volumes, p.policy)
		for {
			p.logf("[check] scope %s over chapters %d-%d", scope, rng.From, rng.To)
			report, err := p.checker.Run(ctx, scope, rng, []check.ChapterText{p.chapterText(*ch, draft)})
			if err != nil {
				return res, err
			}
			res.Reports = append(res.Reports, report)
			res.Degraded = res.Degraded || report.Degraded
			if err := p.persistReport(ctx, scope, number, rng, report); err != nil {
				return res, err
			}
			if report.Pass {
				break
			}

			directives, err := revise.Build(report, res.Revisions, revise.Options{
				MaxAttempts: p.cfg.Revision.MaxAttempts,
				MaxWarnings: p.cfg.Revision.MaxWarnings,
			})
			if err != nil {
				if errs.IsCode(err, errs.CodeRevisionCapExceeded) {
					if serr := p.store.SetChapterResult(ctx, number, text.CountWords(draft.Text), res.Revisions, false); serr != nil {
						p.logf("[revise] persisting parked chapter %d: %v", number, serr)
					}
				}
				return res, err
			}

			p.logf("[revise] chapter %d attempt %d, %d directives", number, res.Revisions+1, len(directives))
			draft, err = p.gen.Revise(ctx, draft, directives)
			if err != nil {
				return res, err
			}
			res.Draft = draft
			res.Revisions++
			if err := p.recordFacts(ctx, draft); err != nil {
				return res, err
			}
		}
	}

	if err := p.accept(ctx, ch, draft, res.Revisions); err != nil {
		return res, err
	}
	res.Accepted = true
	p.logf("[done] chapter %d accepted after %d revisions", number, res.Revisions)
	return res, nil
}

// contextDigest summarizes everything before the chapter for the
// collaborator prompt. Chapter one starts cold.
func (p *Pipeline) contextDigest(ctx context.Context, number int) (*model.Digest, error) {
	if number <= 1 {
		return nil, nil
	}
	return p.store.Summarize(ctx, model.ChapterRange{From: 1, To: number - 1}, memory.DigestCaps{
		MaxCharacters:    p.cfg.Digest.MaxCharacters,
		MaxForeshadowing: p.cfg.Digest.MaxForeshadowing,
		MaxTimeline:      p.cfg.Digest.MaxTimeline,
		MaxSummaries:     p.cfg.Digest.MaxSummaries,
	})
}

// recordFacts writes the facts a draft declares into the ledger before any
// checkpoint runs. Re-recording on a revision pass is legal: same-chapter
// writes satisfy the ordering rule, already-planted threads are skipped,
// and a resolve repeated after success is ignored. Timeline events carry
// draft-assigned ids so a repeated declaration is skipped, not duplicated.
func (p *Pipeline) recordFacts(ctx context.Context, draft *model.Draft) error {
	for charID, update := range draft.StateUpdates {
		if _, err := p.store.RecordCharacterState(ctx, charID, draft.Chapter, update); err != nil {
			return err
		}
	}
	for _, plant := range draft.Plants {
		ok, err := p.store.HasForeshadowing(ctx, plant.ID)
		if err != nil {
			return err
		}
		if ok {
			continue
		}
		_, err = p.store.PlantForeshadowing(ctx, memory.PlantParams{
			ID:            plant.ID,
			Chapter:       draft.Chapter,
			Description:   plant.Description,
			Kind:          plant.Kind,
			TargetChapter: plant.TargetChapter,
		})
		if err != nil {
			return err
		}
	}
	for _, id := range draft.Resolves {
		if _, err := p.store.ResolveForeshadowing(ctx, draft.Chapter, id); err != nil {
			if errs.IsCode(err, errs.CodeState) {
				continue
			}
			return err
		}
	}
	for _, ev := range draft.Timeline {
		ev.Chapter = draft.Chapter
		if _, err := p.store.RecordTimelineEvent(ctx, ev); err != nil {
			if errs.IsCode(err, errs.CodeDuplicate) {
				continue
			}
			return err
		}
	}
	return nil
}

// persistReport stores the checkpoint row and appends the merged issues to
// the issue log.
func (p *Pipeline) persistReport(ctx context.Context, scope model.Scope, trigger int, rng model.ChapterRange, report *model.ConsistencyReport) error {
	cp := model.Checkpoint{
		Scope:    scope,
		Trigger:  trigger,
		Range:    rng,
		ReportID: report.ID,
		Degraded: report.Degraded,
	}
	if err := p.store.RecordCheckpoint(ctx, cp, report); err != nil {
		return err
	}
	for _, is := range report.Issues {
		if _, err := p.store.RecordIssue(ctx, is); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) accept(ctx context.Context, ch *model.Chapter, draft *model.Draft, revisions int) error {
	if err := p.store.SetChapterResult(ctx, ch.Number, text.CountWords(draft.Text), revisions, true); err != nil {
		return err
	}
	if draft.Summary == "" {
		return nil
	}
	return p.store.SaveChapterSummary(ctx, ch.Number, draft.Summary)
}

func (p *Pipeline) chapterText(ch model.Chapter, draft *model.Draft) check.ChapterText {
	facts := make(map[string]model.CharacterState, len(draft.StateUpdates))
	for id, st := range draft.StateUpdates {
		facts[id] = st
	}
	return check.ChapterText{Chapter: ch, Text: draft.Text, Facts: facts}
}

func (p *Pipeline) logf(format string, args ...any) {
	fmt.Fprintf(p.progress, format+"\n", args...)
}
