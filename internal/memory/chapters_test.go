package memory

import (
	"context"
	"testing"

	"github.com/zoudejun0319/novelkeeper/internal/errs"
	"github.com/zoudejun0319/novelkeeper/internal/model"
)

func TestChapterRoster(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	err := s.UpsertChapter(ctx, model.Chapter{Number: 1, Title: "The Village", TargetWords: 3000, POV: "lin_fan", Plants: []string{"f001"}})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	s.UpsertChapter(ctx, model.Chapter{Number: 2, Title: "The Road", TargetWords: 3000, POV: "lin_fan"})

	ch, err := s.Chapter(ctx, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ch.Title != "The Village" || len(ch.Plants) != 1 || ch.Plants[0] != "f001" {
		t.Errorf("unexpected chapter: %+v", ch)
	}

	if _, err := s.Chapter(ctx, 99); !errs.IsCode(err, errs.CodeNotFound) {
		t.Errorf("expected NOT_FOUND for unknown chapter, got %v", err)
	}

	// next is the lowest unpassed chapter
	next, err := s.NextChapter(ctx)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if next.Number != 1 {
		t.Errorf("expected next chapter 1, got %d", next.Number)
	}

	if err := s.SetChapterResult(ctx, 1, 3120, 1, true); err != nil {
		t.Fatalf("set result: %v", err)
	}
	next, _ = s.NextChapter(ctx)
	if next.Number != 2 {
		t.Errorf("expected next chapter 2 after pass, got %d", next.Number)
	}

	s.SetChapterResult(ctx, 2, 2800, 0, true)
	if _, err := s.NextChapter(ctx); !errs.IsCode(err, errs.CodeNotFound) {
		t.Errorf("expected NOT_FOUND when roster is complete, got %v", err)
	}

	ch, _ = s.Chapter(ctx, 1)
	if ch.ActualWords != 3120 || ch.Revisions != 1 || !ch.Passes {
		t.Errorf("result fields not persisted: %+v", ch)
	}
}

func TestChapterSummaries(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for i := 1; i <= 4; i++ {
		s.UpsertChapter(ctx, model.Chapter{Number: i, Title: "ch"})
	}
	s.SaveChapterSummary(ctx, 1, "one")
	s.SaveChapterSummary(ctx, 2, "two")
	s.SaveChapterSummary(ctx, 4, "four")

	got, err := s.RecentSummaries(ctx, 3, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 || got[0].Chapter != 2 || got[1].Chapter != 1 {
		t.Fatalf("expected chapters [2 1], got %+v", got)
	}

	if err := s.SaveChapterSummary(ctx, 99, "nope"); !errs.IsCode(err, errs.CodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestCheckpointRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	report := &model.ConsistencyReport{
		ID:    "r1",
		Scope: model.ScopeMinor,
		Range: model.ChapterRange{From: 1, To: 10},
		Pass:  false,
		Issues: []model.ConsistencyIssue{
			{Chapter: 7, Category: model.CategoryPOV, Severity: model.SeverityCritical, Description: "slip", Origin: model.OriginRule},
		},
	}
	err := s.RecordCheckpoint(ctx, model.Checkpoint{
		Scope: model.ScopeMinor, Trigger: 10,
		Range: model.ChapterRange{From: 1, To: 10}, ReportID: "r1",
	}, report)
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	cps, reports, err := s.Checkpoints(ctx, 10)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cps) != 1 || len(reports) != 1 {
		t.Fatalf("expected 1 checkpoint, got %d", len(cps))
	}
	if cps[0].ReportID != "r1" || reports[0].Pass || len(reports[0].Issues) != 1 {
		t.Errorf("round trip lost data: cp=%+v report=%+v", cps[0], reports[0])
	}
}

func TestSummarizeDigest(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.RecordCharacterState(ctx, "a", 1, model.CharacterState{"location": "village"})
	s.RecordCharacterState(ctx, "b", 2, model.CharacterState{"location": "sect"})
	s.RecordCharacterState(ctx, "c", 3, model.CharacterState{"location": "city"})
	s.PlantForeshadowing(ctx, PlantParams{ID: "f1", Chapter: 1, Description: "minor early", Kind: model.ForeshadowMinor})
	s.PlantForeshadowing(ctx, PlantParams{ID: "f2", Chapter: 2, Description: "major", Kind: model.ForeshadowMajor})
	s.PlantForeshadowing(ctx, PlantParams{ID: "f3", Chapter: 3, Description: "minor late", Kind: model.ForeshadowMinor})
	s.UpsertChapter(ctx, model.Chapter{Number: 3, Title: "ch"})
	s.SaveChapterSummary(ctx, 3, "three")
	s.RecordIssue(ctx, model.ConsistencyIssue{Chapter: 2, Category: model.CategoryLogic, Severity: model.SeverityWarning, Description: "w", Origin: model.OriginRule})
	s.RecordTimelineEvent(ctx, model.TimelineEvent{Chapter: 1, StoryTime: "day 1", Description: "departure"})
	s.RecordTimelineEvent(ctx, model.TimelineEvent{Chapter: 2, StoryTime: "day 4", Description: "ambush"})
	s.RecordTimelineEvent(ctx, model.TimelineEvent{Chapter: 3, StoryTime: "day 7", Description: "arrival"})

	d, err := s.Summarize(ctx, model.ChapterRange{From: 1, To: 3}, DigestCaps{MaxCharacters: 2, MaxForeshadowing: 2, MaxTimeline: 2, MaxSummaries: 5})
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}

	// most recently active characters kept
	if len(d.Characters) != 2 {
		t.Fatalf("expected 2 characters, got %d", len(d.Characters))
	}
	if _, ok := d.Characters["a"]; ok {
		t.Error("expected the least recently active character to be dropped")
	}

	// major survives the cap, then the oldest minor
	if len(d.Unresolved) != 2 {
		t.Fatalf("expected 2 unresolved, got %d", len(d.Unresolved))
	}
	ids := map[string]bool{d.Unresolved[0].ID: true, d.Unresolved[1].ID: true}
	if !ids["f2"] || !ids["f1"] {
		t.Errorf("expected f1 and f2 to survive, got %+v", d.Unresolved)
	}

	// most recent story beats kept under the timeline cap
	if len(d.Timeline) != 2 {
		t.Fatalf("expected 2 timeline events, got %d", len(d.Timeline))
	}
	if d.Timeline[0].Chapter != 2 || d.Timeline[1].Chapter != 3 {
		t.Errorf("expected the oldest event dropped, got %+v", d.Timeline)
	}

	if d.IssueCounts[model.CategoryLogic] != 1 {
		t.Errorf("expected 1 logic issue in counts, got %+v", d.IssueCounts)
	}
	if len(d.Summaries) != 1 || d.Summaries[0].Chapter != 3 {
		t.Errorf("unexpected summaries: %+v", d.Summaries)
	}

	// bad range
	if _, err := s.Summarize(ctx, model.ChapterRange{From: 5, To: 2}, DigestCaps{}); !errs.IsCode(err, errs.CodeValidation) {
		t.Errorf("expected VALIDATION for inverted range, got %v", err)
	}
}
