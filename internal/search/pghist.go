package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgHistory implements Searcher against the task_history table as a fallback
// when Meilisearch is not available.
type PgHistory struct {
	db *sql.DB
}

// NewPgHistory creates a Postgres-backed history searcher.
func NewPgHistory(db *sql.DB) *PgHistory {
	return &PgHistory{db: db}
}

// Healthy always returns true — if Postgres is down, the whole engine is down.
func (p *PgHistory) Healthy() bool {
	return true
}

// Search matches the query text against the title snapshot and actor fields
// with ILIKE, newest first.
func (p *PgHistory) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	where := `(title ILIKE '%' || $1 || '%' OR actor_display ILIKE '%' || $1 || '%' OR created_by ILIKE '%' || $1 || '%')
		AND ($2='' OR task_id=$2)
		AND ($3='' OR action=$3)`
	args := []any{q.Text, q.FilterTaskID, q.FilterAction}

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx,
		`SELECT count(*) FROM task_history WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("history search count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, task_id, action, title, actor_display
		FROM task_history
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT %d OFFSET %d
	`, where, limit, offset), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("history search query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.TaskID, &r.Action, &r.Title, &r.ActorDisplay); err != nil {
			return nil, 0, fmt.Errorf("history search scan: %w", err)
		}
		r.Snippet = r.ActorDisplay
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns every history event for full reindexing.
func (p *PgHistory) LoadAllRecords(ctx context.Context) ([]EventRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, task_id, action, title, actor_display, created_by
		FROM task_history
	`)
	if err != nil {
		return nil, fmt.Errorf("load history records: %w", err)
	}
	defer rows.Close()

	records := make([]EventRecord, 0)
	for rows.Next() {
		var r EventRecord
		if err := rows.Scan(&r.ID, &r.TaskID, &r.Action, &r.Title, &r.ActorDisplay, &r.CreatedBy); err != nil {
			return nil, fmt.Errorf("scan history record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history records: %w", err)
	}
	return records, nil
}
