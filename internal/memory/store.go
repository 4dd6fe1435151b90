// Package memory provides the durable per-project narrative memory: the
// append-only character-state ledger, the foreshadowing registry, the issue
// log, the chapter roster, and bounded digests over all of them.
package memory

import (
	"context"

	"github.com/zoudejun0319/novelkeeper/internal/model"
)

// PlantParams holds parameters for planting a foreshadowing item.
type PlantParams struct {
	ID            string
	Chapter       int
	Description   string
	Kind          model.ForeshadowKind
	TargetChapter int
	Notes         string
}

// IssueQuery filters the issue log. Zero Category/Severity match everything.
type IssueQuery struct {
	Range    model.ChapterRange
	Category model.Category
	Severity model.Severity
}

// DigestCaps bounds the size of a digest by entity count, not byte length.
type DigestCaps struct {
	MaxCharacters    int
	MaxForeshadowing int
	MaxTimeline      int
	MaxSummaries     int
}

// Store is the narrative memory contract consumed by the checker and the
// pipeline. All mutating operations are durable before they return.
type Store interface {
	// RecordCharacterState appends a field-level update for a character.
	// Chapters must be non-decreasing per character.
	RecordCharacterState(ctx context.Context, charID string, chapter int, update model.CharacterState) (*model.CharacterStateEvent, error)

	// CharacterState returns the folded projection as of a chapter.
	CharacterState(ctx context.Context, charID string, asOf int) (model.CharacterState, error)

	// PlantForeshadowing registers a new planted item.
	PlantForeshadowing(ctx context.Context, p PlantParams) (*model.ForeshadowingItem, error)

	// ResolveForeshadowing transitions a planted item to resolved.
	ResolveForeshadowing(ctx context.Context, chapter int, id string) (*model.ForeshadowingItem, error)

	// OverdueForeshadowing lists planted items older than threshold chapters,
	// most overdue first.
	OverdueForeshadowing(ctx context.Context, current, threshold int) ([]model.ForeshadowingItem, error)

	// UnresolvedForeshadowing lists planted items with plant chapter <= upTo.
	UnresolvedForeshadowing(ctx context.Context, upTo int) ([]model.ForeshadowingItem, error)

	// HasForeshadowing reports whether an id exists.
	HasForeshadowing(ctx context.Context, id string) (bool, error)

	// PendingForeshadowing lists outline-declared threads not yet planted.
	PendingForeshadowing(ctx context.Context) ([]model.ForeshadowingItem, error)

	// RecordTimelineEvent appends an entry to the story-time ledger.
	RecordTimelineEvent(ctx context.Context, ev model.TimelineEvent) (*model.TimelineEvent, error)

	// Timeline lists events inside the range in chapter order.
	Timeline(ctx context.Context, rng model.ChapterRange) ([]model.TimelineEvent, error)

	// RecordIssue appends an immutable issue to the log.
	RecordIssue(ctx context.Context, issue model.ConsistencyIssue) (*model.ConsistencyIssue, error)

	// ListIssues queries the log ordered severity desc, chapter asc,
	// insertion order.
	ListIssues(ctx context.Context, q IssueQuery) ([]model.ConsistencyIssue, error)

	// Summarize builds the bounded digest of a chapter range.
	Summarize(ctx context.Context, rng model.ChapterRange, caps DigestCaps) (*model.Digest, error)

	// Chapter roster.
	UpsertChapter(ctx context.Context, ch model.Chapter) error
	Chapter(ctx context.Context, number int) (*model.Chapter, error)
	Chapters(ctx context.Context) ([]model.Chapter, error)
	NextChapter(ctx context.Context) (*model.Chapter, error)
	SetChapterResult(ctx context.Context, number, actualWords, revisions int, passes bool) error
	SaveChapterSummary(ctx context.Context, chapter int, summary string) error
	RecentSummaries(ctx context.Context, upTo, count int) ([]model.ChapterSummary, error)

	// RecordCheckpoint persists a checkpoint with its full report.
	RecordCheckpoint(ctx context.Context, cp model.Checkpoint, report *model.ConsistencyReport) error

	// Close closes the store.
	Close() error
}
