package memory

import (
	"context"
	"database/sql"
	"time"

	"github.com/zoudejun0319/novelkeeper/internal/errs"
	"github.com/zoudejun0319/novelkeeper/internal/model"
)

// RecordIssue appends an issue to the log. Issues are immutable; re-checks
// that supersede earlier findings append new rows.
func (s *SQLiteStore) RecordIssue(ctx context.Context, issue model.ConsistencyIssue) (*model.ConsistencyIssue, error) {
	if issue.Chapter <= 0 {
		return nil, errs.New(errs.CodeValidation, "issue chapter must be positive, got %d", issue.Chapter)
	}
	if !issue.Category.Valid() {
		return nil, errs.New(errs.CodeValidation, "unknown issue category %q", issue.Category)
	}
	if !issue.Severity.Valid() {
		return nil, errs.New(errs.CodeValidation, "unknown issue severity %q", issue.Severity)
	}
	if issue.Origin != model.OriginRule && issue.Origin != model.OriginSemantic {
		return nil, errs.New(errs.CodeValidation, "unknown issue origin %q", issue.Origin)
	}
	if issue.Description == "" {
		return nil, errs.New(errs.CodeValidation, "issue description is required")
	}

	issue.ID = s.newID()
	issue.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO issues (id, chapter, category, severity, severity_rank, description, span, suggestion, origin, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		issue.ID, issue.Chapter, string(issue.Category), string(issue.Severity),
		issue.Severity.Rank(), issue.Description, issue.Span, issue.Suggestion,
		string(issue.Origin), issue.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	return &issue, nil
}

// ListIssues queries the log. Results are ordered severity desc, chapter
// asc, then insertion order.
func (s *SQLiteStore) ListIssues(ctx context.Context, q IssueQuery) ([]model.ConsistencyIssue, error) {
	query := `SELECT id, chapter, category, severity, description, span, suggestion, origin, created_at
	          FROM issues WHERE chapter BETWEEN ? AND ?`
	args := []any{q.Range.From, q.Range.To}

	if q.Category != "" {
		query += ` AND category = ?`
		args = append(args, string(q.Category))
	}
	if q.Severity != "" {
		query += ` AND severity = ?`
		args = append(args, string(q.Severity))
	}
	query += ` ORDER BY severity_rank DESC, chapter ASC, rowid ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var issues []model.ConsistencyIssue
	for rows.Next() {
		var is model.ConsistencyIssue
		var category, severity, origin, createdAt string
		var span, suggestion sql.NullString
		err := rows.Scan(&is.ID, &is.Chapter, &category, &severity,
			&is.Description, &span, &suggestion, &origin, &createdAt)
		if err != nil {
			return nil, err
		}
		is.Category = model.Category(category)
		is.Severity = model.Severity(severity)
		is.Origin = model.Origin(origin)
		is.Span = span.String
		is.Suggestion = suggestion.String
		is.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		issues = append(issues, is)
	}
	return issues, rows.Err()
}

// issueCounts tallies issues by category inside a range.
func (s *SQLiteStore) issueCounts(ctx context.Context, rng model.ChapterRange) (map[model.Category]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, COUNT(*) FROM issues
		 WHERE chapter BETWEEN ? AND ? GROUP BY category`, rng.From, rng.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[model.Category]int{}
	for rows.Next() {
		var category string
		var n int
		if err := rows.Scan(&category, &n); err != nil {
			return nil, err
		}
		counts[model.Category(category)] = n
	}
	return counts, rows.Err()
}
