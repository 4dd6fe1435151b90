package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/zoudejun0319/novelkeeper/internal/errs"
	"github.com/zoudejun0319/novelkeeper/internal/model"
)

// SQLiteStore implements Store using SQLite. One store per project; the
// single-writer discipline is the caller's (chapters are processed
// sequentially), reads are safe against a stable snapshot under WAL.
type SQLiteStore struct {
	db      *sql.DB
	entropy *rand.Rand
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS character_events (
		id          TEXT PRIMARY KEY,
		char_id     TEXT NOT NULL,
		chapter     INTEGER NOT NULL,
		update_json TEXT NOT NULL,
		created_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_char ON character_events(char_id, chapter);

	CREATE TABLE IF NOT EXISTS foreshadowing (
		id              TEXT PRIMARY KEY,
		description     TEXT NOT NULL,
		kind            TEXT NOT NULL DEFAULT 'minor',
		plant_chapter   INTEGER NOT NULL,
		target_chapter  INTEGER NOT NULL,
		status          TEXT NOT NULL DEFAULT 'planted',
		resolve_chapter INTEGER,
		notes           TEXT,
		created_at      TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_foreshadow_status ON foreshadowing(status, plant_chapter);

	CREATE TABLE IF NOT EXISTS issues (
		id            TEXT PRIMARY KEY,
		chapter       INTEGER NOT NULL,
		category      TEXT NOT NULL,
		severity      TEXT NOT NULL,
		severity_rank INTEGER NOT NULL,
		description   TEXT NOT NULL,
		span          TEXT,
		suggestion    TEXT,
		origin        TEXT NOT NULL,
		created_at    TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_issues_chapter ON issues(chapter);
	CREATE INDEX IF NOT EXISTS idx_issues_rank ON issues(severity_rank DESC, chapter);

	CREATE TABLE IF NOT EXISTS chapters (
		number       INTEGER PRIMARY KEY,
		title        TEXT NOT NULL,
		summary      TEXT,
		target_words INTEGER NOT NULL DEFAULT 0,
		actual_words INTEGER NOT NULL DEFAULT 0,
		pov          TEXT,
		characters   TEXT,
		plants       TEXT,
		resolves     TEXT,
		passes       INTEGER NOT NULL DEFAULT 0,
		revisions    INTEGER NOT NULL DEFAULT 0,
		updated_at   TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS checkpoints (
		id              TEXT PRIMARY KEY,
		scope           TEXT NOT NULL,
		trigger_chapter INTEGER NOT NULL,
		from_chapter    INTEGER NOT NULL,
		to_chapter      INTEGER NOT NULL,
		report_json     TEXT NOT NULL,
		degraded        INTEGER NOT NULL DEFAULT 0,
		created_at      TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_checkpoints_trigger ON checkpoints(trigger_chapter);

	CREATE TABLE IF NOT EXISTS timeline_events (
		id              TEXT PRIMARY KEY,
		chapter         INTEGER NOT NULL,
		story_time      TEXT NOT NULL,
		description     TEXT NOT NULL,
		location        TEXT,
		characters_json TEXT,
		created_at      TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_timeline_chapter ON timeline_events(chapter);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordCharacterState appends a field-level update for a character. The
// event chapter must be >= the character's latest recorded chapter; writes
// that would reorder the ledger fail atomically with an ordering error.
func (s *SQLiteStore) RecordCharacterState(ctx context.Context, charID string, chapter int, update model.CharacterState) (*model.CharacterStateEvent, error) {
	if charID == "" {
		return nil, errs.New(errs.CodeValidation, "character id is required")
	}
	if chapter <= 0 {
		return nil, errs.New(errs.CodeValidation, "chapter must be positive, got %d", chapter)
	}
	if len(update) == 0 {
		return nil, errs.New(errs.CodeValidation, "empty state update for %s", charID)
	}
	for field := range update {
		if field == "" {
			return nil, errs.New(errs.CodeValidation, "empty attribute name in update for %s", charID)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var last sql.NullInt64
	err = tx.QueryRowContext(ctx,
		`SELECT MAX(chapter) FROM character_events WHERE char_id = ?`, charID).Scan(&last)
	if err != nil {
		return nil, err
	}
	if last.Valid && chapter < int(last.Int64) {
		return nil, errs.New(errs.CodeOrdering,
			"event for %s at chapter %d precedes latest recorded chapter %d", charID, chapter, last.Int64).
			WithMeta("char_id", charID).WithMeta("latest", int(last.Int64))
	}

	now := time.Now().UTC()
	b, err := json.Marshal(update)
	if err != nil {
		return nil, errs.Wrap(errs.CodeValidation, err, "encode update for %s", charID)
	}

	ev := &model.CharacterStateEvent{
		ID:        s.newID(),
		CharID:    charID,
		Chapter:   chapter,
		Update:    update,
		CreatedAt: now,
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO character_events (id, char_id, chapter, update_json, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		ev.ID, charID, chapter, string(b), now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ev, nil
}

// CharacterState folds all events for a character with chapter <= asOf,
// later events overriding earlier ones per field.
func (s *SQLiteStore) CharacterState(ctx context.Context, charID string, asOf int) (model.CharacterState, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT update_json FROM character_events
		 WHERE char_id = ? AND chapter <= ?
		 ORDER BY chapter ASC, rowid ASC`, charID, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	state := model.CharacterState{}
	found := false
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var update model.CharacterState
		if err := json.Unmarshal([]byte(raw), &update); err != nil {
			return nil, fmt.Errorf("decode event for %s: %w", charID, err)
		}
		for field, value := range update {
			state[field] = value
		}
		found = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if !found {
		return nil, errs.New(errs.CodeNotFound, "character %s has no events at or before chapter %d", charID, asOf)
	}
	return state, nil
}

// CharacterIDs lists characters with at least one event inside the range,
// most recently active first.
func (s *SQLiteStore) CharacterIDs(ctx context.Context, rng model.ChapterRange) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT char_id, MAX(chapter) AS latest FROM character_events
		 WHERE chapter BETWEEN ? AND ?
		 GROUP BY char_id
		 ORDER BY latest DESC, char_id ASC`, rng.From, rng.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		var latest int
		if err := rows.Scan(&id, &latest); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
