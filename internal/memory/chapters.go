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

// UpsertChapter inserts or replaces a chapter roster entry.
func (s *SQLiteStore) UpsertChapter(ctx context.Context, ch model.Chapter) error {
	if ch.Number <= 0 {
		return errs.New(errs.CodeValidation, "chapter number must be positive, got %d", ch.Number)
	}
	if ch.Title == "" {
		return errs.New(errs.CodeValidation, "chapter %d has no title", ch.Number)
	}

	characters, _ := json.Marshal(ch.Characters)
	plants, _ := json.Marshal(ch.Plants)
	resolves, _ := json.Marshal(ch.Resolves)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chapters (number, title, summary, target_words, actual_words, pov, characters, plants, resolves, passes, revisions, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(number) DO UPDATE SET
		   title = excluded.title, summary = excluded.summary,
		   target_words = excluded.target_words, actual_words = excluded.actual_words,
		   pov = excluded.pov, characters = excluded.characters,
		   plants = excluded.plants, resolves = excluded.resolves,
		   passes = excluded.passes, revisions = excluded.revisions,
		   updated_at = excluded.updated_at`,
		ch.Number, ch.Title, ch.Summary, ch.TargetWords, ch.ActualWords, ch.POV,
		string(characters), string(plants), string(resolves),
		boolToInt(ch.Passes), ch.Revisions, time.Now().UTC().Format(time.RFC3339))
	return err
}

// Chapter returns one roster entry by number.
func (s *SQLiteStore) Chapter(ctx context.Context, number int) (*model.Chapter, error) {
	ch, err := scanChapter(s.db.QueryRowContext(ctx, chapterSelect+` WHERE number = ?`, number))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.New(errs.CodeNotFound, "chapter %d not outlined", number)
	}
	return ch, err
}

// Chapters returns the full roster in chapter order.
func (s *SQLiteStore) Chapters(ctx context.Context) ([]model.Chapter, error) {
	rows, err := s.db.QueryContext(ctx, chapterSelect+` ORDER BY number ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chapters []model.Chapter
	for rows.Next() {
		ch, err := scanChapter(rows)
		if err != nil {
			return nil, err
		}
		chapters = append(chapters, *ch)
	}
	return chapters, rows.Err()
}

// NextChapter returns the lowest-numbered chapter that has not passed yet,
// or a not-found error when the roster is complete.
func (s *SQLiteStore) NextChapter(ctx context.Context) (*model.Chapter, error) {
	ch, err := scanChapter(s.db.QueryRowContext(ctx,
		chapterSelect+` WHERE passes = 0 ORDER BY number ASC LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.New(errs.CodeNotFound, "all outlined chapters have passed")
	}
	return ch, err
}

// SetChapterResult updates the mutable outcome fields of a chapter.
func (s *SQLiteStore) SetChapterResult(ctx context.Context, number, actualWords, revisions int, passes bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chapters SET actual_words = ?, revisions = ?, passes = ?, updated_at = ?
		 WHERE number = ?`,
		actualWords, revisions, boolToInt(passes),
		time.Now().UTC().Format(time.RFC3339), number)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.New(errs.CodeNotFound, "chapter %d not outlined", number)
	}
	return nil
}

// SaveChapterSummary stores the summary used as compact context for later
// chapters.
func (s *SQLiteStore) SaveChapterSummary(ctx context.Context, chapter int, summary string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chapters SET summary = ?, updated_at = ? WHERE number = ?`,
		summary, time.Now().UTC().Format(time.RFC3339), chapter)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.New(errs.CodeNotFound, "chapter %d not outlined", chapter)
	}
	return nil
}

// RecentSummaries returns up to count non-empty summaries at or before
// upTo, newest first.
func (s *SQLiteStore) RecentSummaries(ctx context.Context, upTo, count int) ([]model.ChapterSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT number, summary FROM chapters
		 WHERE number <= ? AND summary IS NOT NULL AND summary != ''
		 ORDER BY number DESC LIMIT ?`, upTo, count)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []model.ChapterSummary
	for rows.Next() {
		var cs model.ChapterSummary
		if err := rows.Scan(&cs.Chapter, &cs.Summary); err != nil {
			return nil, err
		}
		summaries = append(summaries, cs)
	}
	return summaries, rows.Err()
}

// RecordCheckpoint persists a checkpoint row with its serialized report.
func (s *SQLiteStore) RecordCheckpoint(ctx context.Context, cp model.Checkpoint, report *model.ConsistencyReport) error {
	if !cp.Scope.Valid() {
		return errs.New(errs.CodeValidation, "unknown scope %q", cp.Scope)
	}
	b, err := json.Marshal(report)
	if err != nil {
		return err
	}
	if cp.ID == "" {
		cp.ID = s.newID()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO checkpoints (id, scope, trigger_chapter, from_chapter, to_chapter, report_json, degraded, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		cp.ID, string(cp.Scope), cp.Trigger, cp.Range.From, cp.Range.To,
		string(b), boolToInt(cp.Degraded), time.Now().UTC().Format(time.RFC3339))
	return err
}

// Checkpoints returns the checkpoints triggered at a chapter with their
// reports, in recording order.
func (s *SQLiteStore) Checkpoints(ctx context.Context, trigger int) ([]model.Checkpoint, []*model.ConsistencyReport, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, scope, trigger_chapter, from_chapter, to_chapter, report_json, degraded, created_at
		 FROM checkpoints WHERE trigger_chapter = ? ORDER BY rowid ASC`, trigger)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var cps []model.Checkpoint
	var reports []*model.ConsistencyReport
	for rows.Next() {
		var cp model.Checkpoint
		var scope, raw, createdAt string
		var degraded int
		err := rows.Scan(&cp.ID, &scope, &cp.Trigger, &cp.Range.From, &cp.Range.To, &raw, &degraded, &createdAt)
		if err != nil {
			return nil, nil, err
		}
		cp.Scope = model.Scope(scope)
		cp.Degraded = degraded != 0
		cp.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

		var report model.ConsistencyReport
		if err := json.Unmarshal([]byte(raw), &report); err != nil {
			return nil, nil, err
		}
		cp.ReportID = report.ID
		cps = append(cps, cp)
		reports = append(reports, &report)
	}
	return cps, reports, rows.Err()
}

const chapterSelect = `SELECT number, title, summary, target_words, actual_words, pov, characters, plants, resolves, passes, revisions, updated_at FROM chapters`

func scanChapter(row rowScanner) (*model.Chapter, error) {
	var ch model.Chapter
	var summary, pov, characters, plants, resolves sql.NullString
	var passes int
	var updatedAt string

	err := row.Scan(&ch.Number, &ch.Title, &summary, &ch.TargetWords, &ch.ActualWords,
		&pov, &characters, &plants, &resolves, &passes, &ch.Revisions, &updatedAt)
	if err != nil {
		return nil, err
	}

	ch.Summary = summary.String
	ch.POV = pov.String
	ch.Passes = passes != 0
	ch.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	if characters.Valid {
		json.Unmarshal([]byte(characters.String), &ch.Characters)
	}
	if plants.Valid {
		json.Unmarshal([]byte(plants.String), &ch.Plants)
	}
	if resolves.Valid {
		json.Unmarshal([]byte(resolves.String), &ch.Resolves)
	}
	return &ch, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
