// Package app is the task mutation orchestrator: it ties the entity store,
// diff engine, dependency gate, identifier allocator, and history store
// together so that every mutation produces exactly one coherent audit event.
package app

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"trackline/api/internal/diff"
	"trackline/api/internal/gate"
	"trackline/api/internal/history"
	"trackline/api/internal/ident"
	"trackline/api/internal/search"
	"trackline/api/internal/track"
)

const (
	taskIDPrefix = "task"
	taskIDDigits = 6
)

type dataStore interface {
	GetTask(ctx context.Context, taskID string) (track.Task, error)
	PutTask(ctx context.Context, item track.Task) error
	DeleteTask(ctx context.Context, taskID string) error
	BatchGetTaskStatuses(ctx context.Context, taskIDs []string) (map[string]track.Status, error)
	IdentifierExists(ctx context.Context, id string) (bool, error)
	ListTasksByProject(ctx context.Context, projectID string) ([]track.Task, error)
}

type historyStore interface {
	Append(ctx context.Context, in history.AppendInput) (track.HistoryEvent, error)
	ListForTask(ctx context.Context, taskID, titleFilter string) ([]track.HistoryEvent, error)
}

type Service struct {
	store   dataStore
	history historyStore
	gate    *gate.DependencyGate
	ids     *ident.Allocator
	search  *search.Service
}

// New creates the orchestrator. searchService may be nil.
func New(store dataStore, hist historyStore, searchService *search.Service) *Service {
	return &Service{
		store:   store,
		history: hist,
		gate:    gate.New(store),
		ids:     ident.New(store),
		search:  searchService,
	}
}

// CreateTaskInput carries the initial state of a new task. Zero-valued enums
// fall back to not_started / medium.
type CreateTaskInput struct {
	ProjectID   string
	Title       string
	Description string
	Status      track.Status
	Priority    track.Priority
	StartDate   *time.Time
	DueDate     *time.Time
	Tags        []string
	Assignee    string
	Metadata    []track.MetadataEntry
}

// CreateTask allocates an ID, persists the task, and records one "created"
// event with an empty change list — the full snapshot is not embedded in
// history to keep event size bounded.
func (s *Service) CreateTask(ctx context.Context, in CreateTaskInput, actor string) (track.Task, error) {
	id, err := s.ids.Allocate(ctx, taskIDPrefix, taskIDDigits)
	if err != nil {
		return track.Task{}, &track.TransientStoreError{Op: "allocate task id", Err: err}
	}

	status := in.Status
	if status == "" {
		status = track.StatusNotStarted
	}
	priority := in.Priority
	if priority == "" {
		priority = track.PriorityMedium
	}

	now := time.Now().UTC()
	task := track.Task{
		ID:          id,
		ProjectID:   in.ProjectID,
		Title:       in.Title,
		Description: in.Description,
		Status:      status,
		Priority:    priority,
		StartDate:   in.StartDate,
		DueDate:     in.DueDate,
		Tags:        in.Tags,
		Assignee:    in.Assignee,
		Metadata:    in.Metadata,
		CreatedBy:   actor,
		CreatedAt:   now,
		UpdatedBy:   actor,
		UpdatedAt:   now,
	}

	if err := s.store.PutTask(ctx, task); err != nil {
		return track.Task{}, &track.TransientStoreError{Op: "create task", Err: err}
	}

	event, err := s.history.Append(ctx, history.AppendInput{
		TaskID: task.ID,
		Action: track.ActionCreated,
		Actor:  actor,
		Title:  task.Title,
	})
	if err != nil {
		return track.Task{}, &track.TransientStoreError{Op: "record task creation", Err: err}
	}
	s.indexEvent(event)

	return task, nil
}

// UpdateTask merges the patch into the current state, runs the dependency
// gate when the effective status becomes completed, persists, and records one
// "updated" event carrying the field diff. suppressHistory skips the event;
// compound operations use it so their internal field writes do not shadow the
// dedicated event they record themselves.
func (s *Service) UpdateTask(ctx context.Context, taskID string, patch Patch, actor string, suppressHistory bool) (track.Task, error) {
	current, err := s.loadTask(ctx, taskID)
	if err != nil {
		return track.Task{}, err
	}

	effective := patch.apply(current)

	if patch.Status != nil && *patch.Status == track.StatusCompleted {
		if err := s.gate.CanComplete(ctx, taskID, effective.Dependencies); err != nil {
			var incomplete *track.IncompleteDependencyError
			if errors.As(err, &incomplete) {
				return track.Task{}, incomplete
			}
			return track.Task{}, &track.TransientStoreError{Op: "check dependencies", Err: err}
		}
	}
	stampCompletion(&current, &effective, patch)

	effective.UpdatedBy = actor
	effective.UpdatedAt = time.Now().UTC()

	if err := s.store.PutTask(ctx, effective); err != nil {
		return track.Task{}, &track.TransientStoreError{Op: "update task", Err: err}
	}

	changes := diff.Diff(current, effective)
	if !suppressHistory && len(changes) > 0 {
		event, err := s.history.Append(ctx, history.AppendInput{
			TaskID:  taskID,
			Action:  track.ActionUpdated,
			Actor:   actor,
			Title:   effective.Title,
			Changes: changes,
		})
		if err != nil {
			return track.Task{}, &track.TransientStoreError{Op: "record task update", Err: err}
		}
		s.indexEvent(event)
	}

	return effective, nil
}

// stampCompletion keeps completed_at coherent with status transitions: it is
// set on entry to completed when the patch did not supply one, and cleared
// when the task leaves completed.
func stampCompletion(current, effective *track.Task, patch Patch) {
	if patch.Status == nil {
		return
	}
	switch {
	case *patch.Status == track.StatusCompleted && current.Status != track.StatusCompleted:
		if patch.CompletedAt == nil {
			now := time.Now().UTC()
			effective.CompletedAt = &now
		}
	case *patch.Status != track.StatusCompleted && current.Status == track.StatusCompleted:
		if patch.CompletedAt == nil {
			effective.CompletedAt = nil
		}
	}
}

// DeleteTask records the "deleted" event before removing the row, so the
// audit trail survives even when the deletion is the only write that lands.
func (s *Service) DeleteTask(ctx context.Context, taskID string, actor string) error {
	current, err := s.loadTask(ctx, taskID)
	if err != nil {
		return err
	}

	event, err := s.history.Append(ctx, history.AppendInput{
		TaskID: taskID,
		Action: track.ActionDeleted,
		Actor:  actor,
		Title:  current.Title,
	})
	if err != nil {
		return &track.TransientStoreError{Op: "record task deletion", Err: err}
	}
	s.indexEvent(event)

	if err := s.store.DeleteTask(ctx, taskID); err != nil {
		return &track.TransientStoreError{Op: "delete task", Err: err}
	}
	return nil
}

// GetTask reads a single task.
func (s *Service) GetTask(ctx context.Context, taskID string) (track.Task, error) {
	return s.loadTask(ctx, taskID)
}

// ProjectTasks lists a project's tasks in creation order.
func (s *Service) ProjectTasks(ctx context.Context, projectID string) ([]track.Task, error) {
	tasks, err := s.store.ListTasksByProject(ctx, projectID)
	if err != nil {
		return nil, &track.TransientStoreError{Op: "list project tasks", Err: err}
	}
	return tasks, nil
}

// TaskHistory returns the audit feed for a task, newest first. It works for
// deleted tasks too: history rows outlive their task.
func (s *Service) TaskHistory(ctx context.Context, taskID, titleFilter string) ([]track.HistoryEvent, error) {
	events, err := s.history.ListForTask(ctx, taskID, titleFilter)
	if err != nil {
		return nil, &track.TransientStoreError{Op: "list task history", Err: err}
	}
	return events, nil
}

// SearchHistory runs a cross-task audit search. Without a configured search
// service it returns an empty response.
func (s *Service) SearchHistory(q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(q)
}

func (s *Service) loadTask(ctx context.Context, taskID string) (track.Task, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if errors.Is(err, sql.ErrNoRows) {
		return track.Task{}, track.NewNotFound("task", taskID)
	}
	if err != nil {
		return track.Task{}, &track.TransientStoreError{Op: "load task", Err: err}
	}
	return task, nil
}

func (s *Service) indexEvent(event track.HistoryEvent) {
	if s.search == nil {
		return
	}
	s.search.IndexEvent(search.EventRecord{
		ID:           event.ID,
		TaskID:       event.TaskID,
		Action:       string(event.Action),
		Title:        event.Title,
		ActorDisplay: event.ActorDisplay,
		CreatedBy:    event.CreatedBy,
	})
}
