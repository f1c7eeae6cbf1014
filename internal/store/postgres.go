package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"trackline/api/internal/track"
)

// PostgresStore is the entity-store adapter. Enum values cross this boundary
// as raw strings; everything above it works with track types.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

const taskColumns = `id, project_id, title, description, status, priority,
	start_date, due_date, completed_at, tags, assignee, is_subtask,
	sub_tasks, dependencies, metadata,
	created_by, created_at, updated_by, updated_at`

func scanTask(row interface{ Scan(...any) error }) (track.Task, error) {
	var item track.Task
	var status, priority string
	var tags, subTasks, dependencies, metadata []byte
	err := row.Scan(
		&item.ID,
		&item.ProjectID,
		&item.Title,
		&item.Description,
		&status,
		&priority,
		&item.StartDate,
		&item.DueDate,
		&item.CompletedAt,
		&tags,
		&item.Assignee,
		&item.IsSubtask,
		&subTasks,
		&dependencies,
		&metadata,
		&item.CreatedBy,
		&item.CreatedAt,
		&item.UpdatedBy,
		&item.UpdatedAt,
	)
	if err != nil {
		return track.Task{}, err
	}
	item.Status = track.Status(status)
	item.Priority = track.Priority(priority)
	item.Tags = decodeStringList(tags)
	item.SubTasks = decodeStringList(subTasks)
	item.Dependencies = decodeStringList(dependencies)
	_ = json.Unmarshal(metadata, &item.Metadata)
	return item, nil
}

// GetTask returns sql.ErrNoRows untranslated when the task is absent; the
// orchestrator owns the mapping to the caller-facing error taxonomy.
func (s *PostgresStore) GetTask(ctx context.Context, taskID string) (track.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=$1`, taskID)
	return scanTask(row)
}

func (s *PostgresStore) PutTask(ctx context.Context, item track.Task) error {
	tags, err := encodeStringList(item.Tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}
	subTasks, err := encodeStringList(item.SubTasks)
	if err != nil {
		return fmt.Errorf("encode sub_tasks: %w", err)
	}
	dependencies, err := encodeStringList(item.Dependencies)
	if err != nil {
		return fmt.Errorf("encode dependencies: %w", err)
	}
	metadata := item.Metadata
	if metadata == nil {
		metadata = []track.MetadataEntry{}
	}
	encodedMetadata, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, project_id, title, description, status, priority,
			start_date, due_date, completed_at, tags, assignee, is_subtask,
			sub_tasks, dependencies, metadata, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::jsonb, $11, $12, $13::jsonb, $14::jsonb, $15::jsonb, $16, $17)
		ON CONFLICT (id) DO UPDATE SET
			project_id=EXCLUDED.project_id,
			title=EXCLUDED.title,
			description=EXCLUDED.description,
			status=EXCLUDED.status,
			priority=EXCLUDED.priority,
			start_date=EXCLUDED.start_date,
			due_date=EXCLUDED.due_date,
			completed_at=EXCLUDED.completed_at,
			tags=EXCLUDED.tags,
			assignee=EXCLUDED.assignee,
			is_subtask=EXCLUDED.is_subtask,
			sub_tasks=EXCLUDED.sub_tasks,
			dependencies=EXCLUDED.dependencies,
			metadata=EXCLUDED.metadata,
			updated_by=EXCLUDED.updated_by,
			updated_at=NOW()
	`,
		item.ID, item.ProjectID, item.Title, item.Description,
		string(item.Status), string(item.Priority),
		item.StartDate, item.DueDate, item.CompletedAt,
		string(tags), item.Assignee, item.IsSubtask,
		string(subTasks), string(dependencies), string(encodedMetadata),
		item.CreatedBy, item.UpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("put task: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteTask(ctx context.Context, taskID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id=$1`, taskID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// BatchGetTaskStatuses reads {id, status} for the given IDs in one query.
// Absent IDs are simply missing from the result map.
func (s *PostgresStore) BatchGetTaskStatuses(ctx context.Context, taskIDs []string) (map[string]track.Status, error) {
	statuses := make(map[string]track.Status, len(taskIDs))
	if len(taskIDs) == 0 {
		return statuses, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, status FROM tasks WHERE id = ANY($1)`, taskIDs)
	if err != nil {
		return nil, fmt.Errorf("batch get task statuses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, status string
		if err := rows.Scan(&id, &status); err != nil {
			return nil, fmt.Errorf("scan task status: %w", err)
		}
		statuses[id] = track.Status(status)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task statuses: %w", err)
	}
	return statuses, nil
}

func (s *PostgresStore) ListTasksByProject(ctx context.Context, projectID string) ([]track.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE project_id=$1
		ORDER BY created_at ASC, id ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list tasks by project: %w", err)
	}
	defer rows.Close()

	items := make([]track.Task, 0)
	for rows.Next() {
		item, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return items, nil
}

// IdentifierExists reports whether an ID is already taken by a task or a
// history row. One read, no write: the allocator's collision check.
func (s *PostgresStore) IdentifierExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM tasks WHERE id=$1)
			OR EXISTS(SELECT 1 FROM task_history WHERE id=$1)
	`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check identifier: %w", err)
	}
	return exists, nil
}

// UpsertHistoryEvent inserts the event with its hash as the conflict key. A
// retried tuple hits the conflict arm and the pre-existing row is returned
// unchanged, so at-least-once callers never double-record.
func (s *PostgresStore) UpsertHistoryEvent(ctx context.Context, event track.HistoryEvent) (track.HistoryEvent, error) {
	changes := event.Changes
	if changes == nil {
		changes = []track.ChangeEntry{}
	}
	encodedChanges, err := json.Marshal(changes)
	if err != nil {
		return track.HistoryEvent{}, fmt.Errorf("marshal history changes: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO task_history (id, task_id, action, title, changes, created_by, actor_display, hash)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8)
		ON CONFLICT (hash) DO UPDATE SET hash=EXCLUDED.hash
		RETURNING id, task_id, action, title, changes, created_by, actor_display, hash, created_at, updated_at
	`, event.ID, event.TaskID, string(event.Action), event.Title, string(encodedChanges),
		event.CreatedBy, event.ActorDisplay, event.Hash)

	stored, err := scanHistoryEvent(row)
	if err != nil {
		return track.HistoryEvent{}, fmt.Errorf("upsert history event: %w", err)
	}
	return stored, nil
}

// ListHistoryForTask returns the feed newest-first; id descending breaks
// same-second timestamp ties. titleFilter is a case-insensitive substring
// match when non-empty.
func (s *PostgresStore) ListHistoryForTask(ctx context.Context, taskID, titleFilter string) ([]track.HistoryEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, action, title, changes, created_by, actor_display, hash, created_at, updated_at
		FROM task_history
		WHERE task_id=$1
		  AND ($2='' OR title ILIKE '%' || $2 || '%')
		ORDER BY created_at DESC, id DESC
	`, taskID, titleFilter)
	if err != nil {
		return nil, fmt.Errorf("list task history: %w", err)
	}
	defer rows.Close()

	items := make([]track.HistoryEvent, 0)
	for rows.Next() {
		item, err := scanHistoryEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history event: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task history: %w", err)
	}
	return items, nil
}

func scanHistoryEvent(row interface{ Scan(...any) error }) (track.HistoryEvent, error) {
	var item track.HistoryEvent
	var action string
	var changesRaw []byte
	err := row.Scan(
		&item.ID,
		&item.TaskID,
		&action,
		&item.Title,
		&changesRaw,
		&item.CreatedBy,
		&item.ActorDisplay,
		&item.Hash,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return track.HistoryEvent{}, err
	}
	item.Action = track.Action(action)
	item.Changes = DecodeChanges(changesRaw)
	return item, nil
}

// DecodeChanges always yields a list. A string-encoded list decodes through,
// a bare object becomes a one-element list, malformed content degrades to
// empty instead of failing the read.
func DecodeChanges(raw []byte) []track.ChangeEntry {
	if len(raw) == 0 {
		return []track.ChangeEntry{}
	}

	var entries []track.ChangeEntry
	if err := json.Unmarshal(raw, &entries); err == nil {
		if entries == nil {
			entries = []track.ChangeEntry{}
		}
		return entries
	}

	var nested string
	if err := json.Unmarshal(raw, &nested); err == nil {
		return DecodeChanges([]byte(nested))
	}

	var single track.ChangeEntry
	if err := json.Unmarshal(raw, &single); err == nil && single.Field != "" {
		return []track.ChangeEntry{single}
	}

	return []track.ChangeEntry{}
}

func encodeStringList(values []string) ([]byte, error) {
	if values == nil {
		values = []string{}
	}
	return json.Marshal(values)
}

func decodeStringList(raw []byte) []string {
	values := []string{}
	_ = json.Unmarshal(raw, &values)
	return values
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
