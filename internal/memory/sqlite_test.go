package memory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/zoudejun0319/novelkeeper/internal/errs"
	"github.com/zoudejun0319/novelkeeper/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndFoldCharacterState(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	ev, err := s.RecordCharacterState(ctx, "lin_fan", 1, model.CharacterState{"location": "village", "ability:sword": "true"})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if ev.ID == "" {
		t.Error("expected non-empty event ID")
	}

	s.RecordCharacterState(ctx, "lin_fan", 5, model.CharacterState{"location": "capital"})
	s.RecordCharacterState(ctx, "lin_fan", 9, model.CharacterState{"rank": "disciple"})

	state, err := s.CharacterState(ctx, "lin_fan", 9)
	if err != nil {
		t.Fatalf("fold: %v", err)
	}
	if state["location"] != "capital" {
		t.Errorf("expected latest location 'capital', got %q", state["location"])
	}
	if state["ability:sword"] != "true" {
		t.Errorf("expected older field to survive fold, got %q", state["ability:sword"])
	}

	// As-of a mid chapter the later update is invisible
	mid, _ := s.CharacterState(ctx, "lin_fan", 4)
	if mid["location"] != "village" {
		t.Errorf("expected as-of-4 location 'village', got %q", mid["location"])
	}
	if _, ok := mid["rank"]; ok {
		t.Error("expected chapter-9 field to be invisible as of chapter 4")
	}
}

func TestCharacterOrderingRejected(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.RecordCharacterState(ctx, "mei", 10, model.CharacterState{"location": "sect"})

	// same chapter is fine
	if _, err := s.RecordCharacterState(ctx, "mei", 10, model.CharacterState{"mood": "calm"}); err != nil {
		t.Fatalf("same-chapter record: %v", err)
	}

	// earlier chapter is not
	_, err := s.RecordCharacterState(ctx, "mei", 9, model.CharacterState{"location": "city"})
	if !errs.IsCode(err, errs.CodeOrdering) {
		t.Fatalf("expected ORDERING error, got %v", err)
	}

	// the rejected write must not have landed
	state, _ := s.CharacterState(ctx, "mei", 10)
	if state["location"] != "sect" {
		t.Errorf("rejected write leaked into the ledger: %q", state["location"])
	}

	// ordering is per character, another character at chapter 3 is fine
	if _, err := s.RecordCharacterState(ctx, "zhao", 3, model.CharacterState{"location": "city"}); err != nil {
		t.Fatalf("independent character: %v", err)
	}
}

func TestCharacterStateNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CharacterState(context.Background(), "nobody", 100)
	if !errs.IsCode(err, errs.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestPlantAndResolveForeshadowing(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	item, err := s.PlantForeshadowing(ctx, PlantParams{ID: "f001", Chapter: 5, Description: "the rusted key", Kind: model.ForeshadowMajor, TargetChapter: 50})
	if err != nil {
		t.Fatalf("plant: %v", err)
	}
	if item.Status != model.ForeshadowPlanted {
		t.Errorf("expected planted, got %s", item.Status)
	}

	// duplicate id rejected
	_, err = s.PlantForeshadowing(ctx, PlantParams{ID: "f001", Chapter: 6, Description: "again"})
	if !errs.IsCode(err, errs.CodeDuplicate) {
		t.Fatalf("expected DUPLICATE, got %v", err)
	}

	resolved, err := s.ResolveForeshadowing(ctx, 42, "f001")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Status != model.ForeshadowResolved || resolved.ResolveChapter != 42 {
		t.Errorf("unexpected resolved item: %+v", resolved)
	}

	// resolving twice is an illegal transition
	_, err = s.ResolveForeshadowing(ctx, 43, "f001")
	if !errs.IsCode(err, errs.CodeState) {
		t.Fatalf("expected STATE, got %v", err)
	}

	// unknown id
	_, err = s.ResolveForeshadowing(ctx, 43, "f999")
	if !errs.IsCode(err, errs.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestOverdueForeshadowing(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.PlantForeshadowing(ctx, PlantParams{ID: "f001", Chapter: 5, Description: "the rusted key", TargetChapter: 50})
	s.PlantForeshadowing(ctx, PlantParams{ID: "f002", Chapter: 20, Description: "a stranger's debt"})

	// threshold 30: at chapter 35 nothing is overdue (35-5 = 30, not greater)
	items, err := s.OverdueForeshadowing(ctx, 35, 30)
	if err != nil {
		t.Fatalf("overdue: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected none overdue at chapter 35, got %d", len(items))
	}

	// at chapter 36 the chapter-5 plant crosses the threshold
	items, _ = s.OverdueForeshadowing(ctx, 36, 30)
	if len(items) != 1 || items[0].ID != "f001" {
		t.Fatalf("expected only f001 overdue, got %+v", items)
	}

	// resolving clears the overdue view
	s.ResolveForeshadowing(ctx, 36, "f001")
	items, _ = s.OverdueForeshadowing(ctx, 60, 30)
	if len(items) != 1 || items[0].ID != "f002" {
		t.Fatalf("expected only f002 overdue after resolve, got %+v", items)
	}
}

func TestOverdueOrdering(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.PlantForeshadowing(ctx, PlantParams{ID: "late", Chapter: 10, Description: "b"})
	s.PlantForeshadowing(ctx, PlantParams{ID: "early", Chapter: 2, Description: "a"})

	items, _ := s.OverdueForeshadowing(ctx, 100, 30)
	if len(items) != 2 {
		t.Fatalf("expected 2 overdue, got %d", len(items))
	}
	if items[0].ID != "early" || items[1].ID != "late" {
		t.Errorf("expected most-overdue first, got %s then %s", items[0].ID, items[1].ID)
	}
}

func TestTimelineLedger(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.RecordTimelineEvent(ctx, model.TimelineEvent{
		Chapter: 2, StoryTime: "day 3, dusk", Description: "the caravan leaves the village",
		Location: "qingshan village", Characters: []string{"lin_fan"},
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	s.RecordTimelineEvent(ctx, model.TimelineEvent{Chapter: 5, StoryTime: "day 9", Description: "arrival at the river crossing"})
	s.RecordTimelineEvent(ctx, model.TimelineEvent{Chapter: 9, StoryTime: "day 20", Description: "the sect trials open"})

	events, err := s.Timeline(ctx, model.ChapterRange{From: 1, To: 5})
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events in range, got %d", len(events))
	}
	if events[0].Chapter != 2 || events[1].Chapter != 5 {
		t.Errorf("expected chapter order 2,5, got %d,%d", events[0].Chapter, events[1].Chapter)
	}
	if events[0].Location != "qingshan village" || len(events[0].Characters) != 1 {
		t.Errorf("event fields not persisted: %+v", events[0])
	}
	if events[0].ID == "" {
		t.Error("expected a generated event id")
	}

	// a declared id is recorded once
	ev := model.TimelineEvent{ID: "t001", Chapter: 6, StoryTime: "day 10", Description: "storm"}
	if _, err := s.RecordTimelineEvent(ctx, ev); err != nil {
		t.Fatalf("record declared id: %v", err)
	}
	if _, err := s.RecordTimelineEvent(ctx, ev); !errs.IsCode(err, errs.CodeDuplicate) {
		t.Errorf("expected DUPLICATE for repeated id, got %v", err)
	}

	if _, err := s.Timeline(ctx, model.ChapterRange{From: 5, To: 1}); !errs.IsCode(err, errs.CodeValidation) {
		t.Errorf("expected VALIDATION for inverted range, got %v", err)
	}
}

func TestPendingForeshadowing(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.UpsertChapter(ctx, model.Chapter{Number: 3, Title: "t", Plants: []string{"f001", "f002"}})
	s.PlantForeshadowing(ctx, PlantParams{ID: "f001", Chapter: 3, Description: "the sealed sword"})

	items, err := s.PendingForeshadowing(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(items) != 1 || items[0].ID != "f002" {
		t.Fatalf("expected only the unplanted thread, got %+v", items)
	}
	if items[0].Status != model.ForeshadowPending || items[0].PlantChapter != 3 {
		t.Errorf("unexpected pending item: %+v", items[0])
	}

	s.PlantForeshadowing(ctx, PlantParams{ID: "f002", Chapter: 3, Description: "the map fragment"})
	items, _ = s.PendingForeshadowing(ctx)
	if len(items) != 0 {
		t.Errorf("expected no pending threads after planting, got %+v", items)
	}
}

func TestIssueLogOrdering(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.RecordIssue(ctx, model.ConsistencyIssue{Chapter: 3, Category: model.CategoryLogic, Severity: model.SeverityWarning, Description: "w3", Origin: model.OriginRule})
	s.RecordIssue(ctx, model.ConsistencyIssue{Chapter: 1, Category: model.CategoryPOV, Severity: model.SeverityCritical, Description: "c1", Origin: model.OriginRule})
	s.RecordIssue(ctx, model.ConsistencyIssue{Chapter: 2, Category: model.CategoryCharacter, Severity: model.SeverityCritical, Description: "c2", Origin: model.OriginSemantic})
	s.RecordIssue(ctx, model.ConsistencyIssue{Chapter: 1, Category: model.CategoryLiterary, Severity: model.SeveritySuggestion, Description: "s1", Origin: model.OriginRule})

	issues, err := s.ListIssues(ctx, IssueQuery{Range: model.ChapterRange{From: 1, To: 10}})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"c1", "c2", "w3", "s1"}
	if len(issues) != len(want) {
		t.Fatalf("expected %d issues, got %d", len(want), len(issues))
	}
	for i, d := range want {
		if issues[i].Description != d {
			t.Errorf("position %d: expected %q, got %q", i, d, issues[i].Description)
		}
	}

	// filters
	criticals, _ := s.ListIssues(ctx, IssueQuery{Range: model.ChapterRange{From: 1, To: 10}, Severity: model.SeverityCritical})
	if len(criticals) != 2 {
		t.Errorf("expected 2 criticals, got %d", len(criticals))
	}
	pov, _ := s.ListIssues(ctx, IssueQuery{Range: model.ChapterRange{From: 1, To: 10}, Category: model.CategoryPOV})
	if len(pov) != 1 {
		t.Errorf("expected 1 pov issue, got %d", len(pov))
	}
}

func TestInvalidRecordsRejected(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.RecordCharacterState(ctx, "", 1, model.CharacterState{"k": "v"}); !errs.IsCode(err, errs.CodeValidation) {
		t.Errorf("empty char id: expected VALIDATION, got %v", err)
	}
	if _, err := s.RecordCharacterState(ctx, "x", 0, model.CharacterState{"k": "v"}); !errs.IsCode(err, errs.CodeValidation) {
		t.Errorf("chapter 0: expected VALIDATION, got %v", err)
	}
	if _, err := s.PlantForeshadowing(ctx, PlantParams{ID: "f1", Chapter: 10, Description: "d", TargetChapter: 10}); !errs.IsCode(err, errs.CodeValidation) {
		t.Errorf("target <= plant: expected VALIDATION, got %v", err)
	}
	if _, err := s.RecordIssue(ctx, model.ConsistencyIssue{Chapter: 1, Category: "nonsense", Severity: model.SeverityWarning, Description: "d", Origin: model.OriginRule}); !errs.IsCode(err, errs.CodeValidation) {
		t.Errorf("bad category: expected VALIDATION, got %v", err)
	}
}
