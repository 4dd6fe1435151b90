// Package model defines the core narrative-tracking data types.
package model

import "time"

// Scope identifies a checkpoint level. Wider scopes cover more chapters.
type Scope string

const (
	ScopePerChapter Scope = "per_chapter"
	ScopeMinor      Scope = "minor"
	ScopeMajor      Scope = "major"
	ScopeVolumeEnd  Scope = "volume_end"
)

// Width returns the coverage rank of a scope. Scopes triggered at the same
// chapter run in ascending width order.
func (s Scope) Width() int {
	switch s {
	case ScopePerChapter:
		return 0
	case ScopeMinor:
		return 1
	case ScopeMajor:
		return 2
	case ScopeVolumeEnd:
		return 3
	}
	return -1
}

// Valid reports whether s is a known scope.
func (s Scope) Valid() bool { return s.Width() >= 0 }

// Severity of a consistency issue.
type Severity string

const (
	SeverityCritical   Severity = "critical"
	SeverityWarning    Severity = "warning"
	SeveritySuggestion Severity = "suggestion"
)

// Rank returns a numeric severity; higher is more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityWarning:
		return 2
	case SeveritySuggestion:
		return 1
	}
	return 0
}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool { return s.Rank() > 0 }

// Category of a consistency issue.
type Category string

const (
	CategoryLogic         Category = "logic"
	CategoryCharacter     Category = "character"
	CategoryWorldRule     Category = "world_rule"
	CategoryPOV           Category = "pov"
	CategoryForeshadowing Category = "foreshadowing"
	CategoryContinuity    Category = "continuity"
	CategoryLiterary      Category = "literary"
)

// Categories lists every issue category, in revision-priority order.
func Categories() []Category {
	return []Category{
		CategoryWorldRule,
		CategoryCharacter,
		CategoryPOV,
		CategoryContinuity,
		CategoryForeshadowing,
		CategoryLogic,
		CategoryLiterary,
	}
}

// Priority returns the revision-priority rank of a category; lower sorts first.
func (c Category) Priority() int {
	for i, cat := range Categories() {
		if cat == c {
			return i
		}
	}
	return len(Categories())
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool { return c.Priority() < len(Categories()) }

// Origin marks which check family produced an issue.
type Origin string

const (
	OriginRule     Origin = "rule"
	OriginSemantic Origin = "semantic"
)

// ForeshadowKind classifies a foreshadowing item.
type ForeshadowKind string

const (
	ForeshadowMajor ForeshadowKind = "major"
	ForeshadowMinor ForeshadowKind = "minor"
)

// ForeshadowStatus is the stored lifecycle state of a foreshadowing item.
// Transitions only go pending -> planted -> resolved. Overdue is a derived
// view and is never persisted.
type ForeshadowStatus string

const (
	ForeshadowPending  ForeshadowStatus = "pending"
	ForeshadowPlanted  ForeshadowStatus = "planted"
	ForeshadowResolved ForeshadowStatus = "resolved"
	ForeshadowOverdue  ForeshadowStatus = "overdue"
)

// Chapter is one entry of the chapter roster. Created when the outline is
// laid down, mutated on each write or revision attempt.
type Chapter struct {
	Number      int       `json:"number"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary,omitempty"`
	TargetWords int       `json:"target_words"`
	ActualWords int       `json:"actual_words"`
	POV         string    `json:"pov,omitempty"`
	Characters  []string  `json:"characters,omitempty"`
	Plants      []string  `json:"plants,omitempty"`
	Resolves    []string  `json:"resolves,omitempty"`
	Passes      bool      `json:"passes"`
	Revisions   int       `json:"revisions"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CharacterState is a character's effective state: one value per attribute.
type CharacterState map[string]string

// CharacterStateEvent is one append-only field-level update for a character.
// Ordering key is chapter; insertion order breaks ties.
type CharacterStateEvent struct {
	ID        string         `json:"id"`
	CharID    string         `json:"char_id"`
	Chapter   int            `json:"chapter"`
	Update    CharacterState `json:"update"`
	CreatedAt time.Time      `json:"created_at"`
}

// ForeshadowingItem tracks a planted-and-eventually-resolved narrative hook.
type ForeshadowingItem struct {
	ID             string           `json:"id"`
	Description    string           `json:"description"`
	Kind           ForeshadowKind   `json:"kind"`
	PlantChapter   int              `json:"plant_chapter"`
	TargetChapter  int              `json:"target_chapter"`
	Status         ForeshadowStatus `json:"status"`
	ResolveChapter int              `json:"resolve_chapter,omitempty"`
	Notes          string           `json:"notes,omitempty"`
}

// Overdue reports whether the item is planted and older than threshold
// chapters as of the given chapter.
func (f ForeshadowingItem) Overdue(current, threshold int) bool {
	return f.Status == ForeshadowPlanted && current-f.PlantChapter > threshold
}

// EffectiveStatus returns the status with the derived overdue view applied.
func (f ForeshadowingItem) EffectiveStatus(current, threshold int) ForeshadowStatus {
	if f.Overdue(current, threshold) {
		return ForeshadowOverdue
	}
	return f.Status
}

// ConsistencyIssue is one recorded defect. Immutable once recorded;
// re-checks append new issues rather than mutating old ones.
type ConsistencyIssue struct {
	ID          string    `json:"id"`
	Chapter     int       `json:"chapter"`
	Category    Category  `json:"category"`
	Severity    Severity  `json:"severity"`
	Description string    `json:"description"`
	Span        string    `json:"span,omitempty"`
	Suggestion  string    `json:"suggestion,omitempty"`
	Origin      Origin    `json:"origin"`
	CreatedAt   time.Time `json:"created_at"`
}

// ChapterRange is an inclusive chapter interval.
type ChapterRange struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Contains reports whether n falls inside the range.
func (r ChapterRange) Contains(n int) bool { return n >= r.From && n <= r.To }

// ConsistencyReport is the outcome of running one scope.
type ConsistencyReport struct {
	ID        string             `json:"id"`
	Scope     Scope              `json:"scope"`
	Range     ChapterRange       `json:"range"`
	Pass      bool               `json:"pass"`
	Issues    []ConsistencyIssue `json:"issues"`
	Degraded  bool               `json:"degraded"`
	CreatedAt time.Time          `json:"created_at"`
}

// Checkpoint records one scheduled verification event.
type Checkpoint struct {
	ID        string       `json:"id"`
	Scope     Scope        `json:"scope"`
	Trigger   int          `json:"trigger"`
	Range     ChapterRange `json:"range"`
	ReportID  string       `json:"report_id"`
	Degraded  bool         `json:"degraded"`
	CreatedAt time.Time    `json:"created_at"`
}

// Digest is the bounded summary of a chapter range that downstream scopes
// and collaborators consume instead of full chapter text.
type Digest struct {
	Range       ChapterRange              `json:"range"`
	Characters  map[string]CharacterState `json:"characters,omitempty"`
	Unresolved  []ForeshadowingItem       `json:"unresolved,omitempty"`
	Timeline    []TimelineEvent           `json:"timeline,omitempty"`
	IssueCounts map[Category]int          `json:"issue_counts,omitempty"`
	Summaries   []ChapterSummary          `json:"summaries,omitempty"`
}

// TimelineEvent is one entry of the story-time ledger: what happened,
// when in the narrative's own calendar, where, and who was present.
// StoryTime is free-form text ("day 3, dusk"); the ledger orders by
// chapter, not by parsing it.
type TimelineEvent struct {
	ID          string    `json:"id"`
	Chapter     int       `json:"chapter"`
	StoryTime   string    `json:"story_time"`
	Description string    `json:"description"`
	Location    string    `json:"location,omitempty"`
	Characters  []string  `json:"characters,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ChapterSummary is one entry of the chapter-summary index.
type ChapterSummary struct {
	Chapter int    `json:"chapter"`
	Summary string `json:"summary"`
}

// Draft is a drafting collaborator's output for one chapter: the prose plus
// the facts the prose asserts, declared so the ledger can record them before
// any checkpoint runs.
type Draft struct {
	Chapter      int                       `json:"chapter"`
	Text         string                    `json:"text"`
	Summary      string                    `json:"summary"`
	StateUpdates map[string]CharacterState `json:"state_updates,omitempty"`
	Plants       []DraftPlant              `json:"plants,omitempty"`
	Resolves     []string                  `json:"resolves,omitempty"`
	Timeline     []TimelineEvent           `json:"timeline,omitempty"`
}

// DraftPlant declares a foreshadowing thread a draft plants.
type DraftPlant struct {
	ID            string         `json:"id"`
	Description   string         `json:"description"`
	Kind          ForeshadowKind `json:"kind,omitempty"`
	TargetChapter int            `json:"target_chapter,omitempty"`
}
