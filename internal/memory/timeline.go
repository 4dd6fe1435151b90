package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/zoudejun0319/novelkeeper/internal/errs"
	"github.com/zoudejun0319/novelkeeper/internal/model"
)

// RecordTimelineEvent appends an entry to the story-time ledger. The ledger
// is append-only like the character ledger; an empty ID gets a fresh one.
func (s *SQLiteStore) RecordTimelineEvent(ctx context.Context, ev model.TimelineEvent) (*model.TimelineEvent, error) {
	if ev.Chapter <= 0 {
		return nil, errs.New(errs.CodeValidation, "timeline chapter must be positive, got %d", ev.Chapter)
	}
	if ev.Description == "" {
		return nil, errs.New(errs.CodeValidation, "timeline event needs a description")
	}
	if ev.ID == "" {
		ev.ID = s.newID()
	} else {
		var one int
		err := s.db.QueryRowContext(ctx, `SELECT 1 FROM timeline_events WHERE id = ?`, ev.ID).Scan(&one)
		if err == nil {
			return nil, errs.New(errs.CodeDuplicate, "timeline event %s already recorded", ev.ID)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
	}
	ev.CreatedAt = time.Now().UTC()

	chars, _ := json.Marshal(ev.Characters)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO timeline_events (id, chapter, story_time, description, location, characters_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.Chapter, ev.StoryTime, ev.Description, ev.Location,
		string(chars), ev.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// Timeline returns the events whose chapter falls inside the range, in
// chapter order then insertion order.
func (s *SQLiteStore) Timeline(ctx context.Context, rng model.ChapterRange) ([]model.TimelineEvent, error) {
	if rng.From <= 0 || rng.To < rng.From {
		return nil, errs.New(errs.CodeValidation, "invalid chapter range %d-%d", rng.From, rng.To)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chapter, story_time, description, location, characters_json, created_at
		 FROM timeline_events WHERE chapter BETWEEN ? AND ?
		 ORDER BY chapter ASC, rowid ASC`,
		rng.From, rng.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.TimelineEvent
	for rows.Next() {
		var ev model.TimelineEvent
		var location, chars, createdAt string
		if err := rows.Scan(&ev.ID, &ev.Chapter, &ev.StoryTime, &ev.Description, &location, &chars, &createdAt); err != nil {
			return nil, err
		}
		ev.Location = location
		if chars != "" {
			json.Unmarshal([]byte(chars), &ev.Characters)
		}
		ev.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		events = append(events, ev)
	}
	return events, rows.Err()
}
