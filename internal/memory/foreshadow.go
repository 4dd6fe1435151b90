package memory

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/zoudejun0319/novelkeeper/internal/errs"
	"github.com/zoudejun0319/novelkeeper/internal/model"
)

// PlantForeshadowing registers a new planted item. A declared target
// chapter must lie strictly after the plant chapter; zero means no target.
func (s *SQLiteStore) PlantForeshadowing(ctx context.Context, p PlantParams) (*model.ForeshadowingItem, error) {
	if p.ID == "" {
		return nil, errs.New(errs.CodeValidation, "foreshadowing id is required")
	}
	if p.Chapter <= 0 {
		return nil, errs.New(errs.CodeValidation, "plant chapter must be positive, got %d", p.Chapter)
	}
	if p.TargetChapter != 0 && p.TargetChapter <= p.Chapter {
		return nil, errs.New(errs.CodeValidation,
			"target chapter %d must be after plant chapter %d", p.TargetChapter, p.Chapter)
	}
	kind := p.Kind
	if kind == "" {
		kind = model.ForeshadowMinor
	}
	if kind != model.ForeshadowMajor && kind != model.ForeshadowMinor {
		return nil, errs.New(errs.CodeValidation, "unknown foreshadowing kind %q", kind)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM foreshadowing WHERE id = ?`, p.ID).Scan(&exists)
	if err == nil {
		return nil, errs.New(errs.CodeDuplicate, "foreshadowing %s already planted", p.ID)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	now := time.Now().UTC()
	item := &model.ForeshadowingItem{
		ID:            p.ID,
		Description:   p.Description,
		Kind:          kind,
		PlantChapter:  p.Chapter,
		TargetChapter: p.TargetChapter,
		Status:        model.ForeshadowPlanted,
		Notes:         p.Notes,
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO foreshadowing (id, description, kind, plant_chapter, target_chapter, status, notes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.Description, string(item.Kind), item.PlantChapter,
		item.TargetChapter, string(item.Status), item.Notes, now.Format(time.RFC3339))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return item, nil
}

// ResolveForeshadowing transitions a planted item to resolved, recording
// the resolution chapter.
func (s *SQLiteStore) ResolveForeshadowing(ctx context.Context, chapter int, id string) (*model.ForeshadowingItem, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	item, err := scanForeshadow(tx.QueryRowContext(ctx, foreshadowSelect+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.New(errs.CodeNotFound, "foreshadowing %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	if item.Status != model.ForeshadowPlanted {
		return nil, errs.New(errs.CodeState,
			"foreshadowing %s is %s, only planted items can be resolved", id, item.Status)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE foreshadowing SET status = ?, resolve_chapter = ? WHERE id = ?`,
		string(model.ForeshadowResolved), chapter, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	item.Status = model.ForeshadowResolved
	item.ResolveChapter = chapter
	return item, nil
}

// OverdueForeshadowing returns planted items with current - plant >
// threshold, ordered by descending overdue amount then id.
func (s *SQLiteStore) OverdueForeshadowing(ctx context.Context, current, threshold int) ([]model.ForeshadowingItem, error) {
	rows, err := s.db.QueryContext(ctx,
		foreshadowSelect+` WHERE status = ? AND ? - plant_chapter > ?
		 ORDER BY plant_chapter ASC, id ASC`,
		string(model.ForeshadowPlanted), current, threshold)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectForeshadow(rows)
}

// UnresolvedForeshadowing returns planted items with plant chapter <= upTo,
// oldest plant first.
func (s *SQLiteStore) UnresolvedForeshadowing(ctx context.Context, upTo int) ([]model.ForeshadowingItem, error) {
	rows, err := s.db.QueryContext(ctx,
		foreshadowSelect+` WHERE status = ? AND plant_chapter <= ?
		 ORDER BY plant_chapter ASC, id ASC`,
		string(model.ForeshadowPlanted), upTo)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectForeshadow(rows)
}

// PendingForeshadowing lists threads the outline declares for a chapter
// but which have not been planted in the registry yet. They surface with
// the pending status so a roster review shows what the drafts still owe.
func (s *SQLiteStore) PendingForeshadowing(ctx context.Context) ([]model.ForeshadowingItem, error) {
	chapters, err := s.Chapters(ctx)
	if err != nil {
		return nil, err
	}
	var items []model.ForeshadowingItem
	for _, ch := range chapters {
		for _, id := range ch.Plants {
			exists, err := s.HasForeshadowing(ctx, id)
			if err != nil {
				return nil, err
			}
			if exists {
				continue
			}
			items = append(items, model.ForeshadowingItem{
				ID:           id,
				Description:  "declared in the outline, not planted yet",
				PlantChapter: ch.Number,
				Status:       model.ForeshadowPending,
			})
		}
	}
	return items, nil
}

// HasForeshadowing reports whether an id exists in the registry.
func (s *SQLiteStore) HasForeshadowing(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM foreshadowing WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

const foreshadowSelect = `SELECT id, description, kind, plant_chapter, target_chapter, status, resolve_chapter, notes FROM foreshadowing`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanForeshadow(row rowScanner) (*model.ForeshadowingItem, error) {
	var f model.ForeshadowingItem
	var kind, status string
	var resolve sql.NullInt64
	var notes sql.NullString
	err := row.Scan(&f.ID, &f.Description, &kind, &f.PlantChapter, &f.TargetChapter, &status, &resolve, &notes)
	if err != nil {
		return nil, err
	}
	f.Kind = model.ForeshadowKind(kind)
	f.Status = model.ForeshadowStatus(status)
	if resolve.Valid {
		f.ResolveChapter = int(resolve.Int64)
	}
	if notes.Valid {
		f.Notes = notes.String
	}
	return &f, nil
}

func collectForeshadow(rows *sql.Rows) ([]model.ForeshadowingItem, error) {
	var items []model.ForeshadowingItem
	for rows.Next() {
		f, err := scanForeshadow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *f)
	}
	return items, rows.Err()
}
