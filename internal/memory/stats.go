package memory

import (
	"context"
	"os"
)

// Stats holds store statistics.
type Stats struct {
	DBPath              string `json:"db_path"`
	DBSizeBytes         int64  `json:"db_size_bytes"`
	Chapters            int    `json:"chapters"`
	PassedChapters      int    `json:"passed_chapters"`
	CharacterEvents     int    `json:"character_events"`
	CharactersTracked   int    `json:"characters_tracked"`
	ForeshadowPlanted   int    `json:"foreshadow_planted"`
	ForeshadowResolved  int    `json:"foreshadow_resolved"`
	TimelineEvents      int    `json:"timeline_events"`
	IssuesRecorded      int    `json:"issues_recorded"`
	CheckpointsRecorded int    `json:"checkpoints_recorded"`
}

// Stats returns store statistics.
func (s *SQLiteStore) Stats(ctx context.Context, dbPath string) (*Stats, error) {
	st := &Stats{DBPath: dbPath}

	if info, err := os.Stat(dbPath); err == nil {
		st.DBSizeBytes = info.Size()
	}

	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chapters`).Scan(&st.Chapters)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chapters WHERE passes = 1`).Scan(&st.PassedChapters)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM character_events`).Scan(&st.CharacterEvents)
	s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT char_id) FROM character_events`).Scan(&st.CharactersTracked)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM foreshadowing WHERE status = 'planted'`).Scan(&st.ForeshadowPlanted)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM foreshadowing WHERE status = 'resolved'`).Scan(&st.ForeshadowResolved)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM timeline_events`).Scan(&st.TimelineEvents)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM issues`).Scan(&st.IssuesRecorded)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM checkpoints`).Scan(&st.CheckpointsRecorded)

	return st, nil
}
