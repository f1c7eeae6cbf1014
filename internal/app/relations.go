package app

import (
	"context"
	"errors"

	"trackline/api/internal/history"
	"trackline/api/internal/track"
)

// AddSubtask links child under parent and marks the child as a subtask. Both
// tasks must exist. Linking a task to itself, or a child already linked, is a
// no-op and records nothing.
func (s *Service) AddSubtask(ctx context.Context, parentID, childID, actor string) error {
	if parentID == childID {
		return nil
	}
	parent, err := s.loadTask(ctx, parentID)
	if err != nil {
		return err
	}
	child, err := s.loadTask(ctx, childID)
	if err != nil {
		return err
	}
	if contains(parent.SubTasks, childID) {
		return nil
	}

	event, err := s.history.Append(ctx, history.AppendInput{
		TaskID: parentID,
		Action: track.ActionSubtaskAdded,
		Actor:  actor,
		Title:  parent.Title,
		Changes: []track.ChangeEntry{
			{Field: "subtask_id", Old: nil, New: childID},
		},
	})
	if err != nil {
		return &track.TransientStoreError{Op: "record subtask link", Err: err}
	}
	s.indexEvent(event)

	linked := append(append([]string(nil), parent.SubTasks...), childID)
	if _, err := s.UpdateTask(ctx, parentID, Patch{subTasks: &linked}, actor, true); err != nil {
		return err
	}

	if !child.IsSubtask {
		marked := true
		if _, err := s.UpdateTask(ctx, childID, Patch{isSubtask: &marked}, actor, true); err != nil {
			return err
		}
	}
	return nil
}

// RemoveSubtask unlinks child from parent and clears the child's subtask flag.
// Removing a link that does not exist is a no-op.
func (s *Service) RemoveSubtask(ctx context.Context, parentID, childID, actor string) error {
	if parentID == childID {
		return nil
	}
	parent, err := s.loadTask(ctx, parentID)
	if err != nil {
		return err
	}
	if !contains(parent.SubTasks, childID) {
		return nil
	}

	event, err := s.history.Append(ctx, history.AppendInput{
		TaskID: parentID,
		Action: track.ActionSubtaskRemoved,
		Actor:  actor,
		Title:  parent.Title,
		Changes: []track.ChangeEntry{
			{Field: "subtask_id", Old: childID, New: nil},
		},
	})
	if err != nil {
		return &track.TransientStoreError{Op: "record subtask unlink", Err: err}
	}
	s.indexEvent(event)

	unlinked := remove(parent.SubTasks, childID)
	if _, err := s.UpdateTask(ctx, parentID, Patch{subTasks: &unlinked}, actor, true); err != nil {
		return err
	}

	// The child may already be gone; unlinking still succeeds.
	cleared := false
	if _, err := s.UpdateTask(ctx, childID, Patch{isSubtask: &cleared}, actor, true); err != nil {
		var notFound *track.NotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	return nil
}

// AddDependency records that taskID depends on dependsOnID. Both tasks must
// exist. Self-references and duplicates are no-ops.
func (s *Service) AddDependency(ctx context.Context, taskID, dependsOnID, actor string) error {
	if taskID == dependsOnID {
		return nil
	}
	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return err
	}
	if _, err := s.loadTask(ctx, dependsOnID); err != nil {
		return err
	}
	if contains(task.Dependencies, dependsOnID) {
		return nil
	}

	event, err := s.history.Append(ctx, history.AppendInput{
		TaskID: taskID,
		Action: track.ActionDependencyAdded,
		Actor:  actor,
		Title:  task.Title,
		Changes: []track.ChangeEntry{
			{Field: "dependency_id", Old: nil, New: dependsOnID},
		},
	})
	if err != nil {
		return &track.TransientStoreError{Op: "record dependency link", Err: err}
	}
	s.indexEvent(event)

	linked := append(append([]string(nil), task.Dependencies...), dependsOnID)
	if _, err := s.UpdateTask(ctx, taskID, Patch{dependencies: &linked}, actor, true); err != nil {
		return err
	}
	return nil
}

// RemoveDependency drops a dependency edge. It never re-evaluates completion:
// a task completed under a stricter dependency set stays completed.
func (s *Service) RemoveDependency(ctx context.Context, taskID, dependsOnID, actor string) error {
	if taskID == dependsOnID {
		return nil
	}
	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return err
	}
	if !contains(task.Dependencies, dependsOnID) {
		return nil
	}

	event, err := s.history.Append(ctx, history.AppendInput{
		TaskID: taskID,
		Action: track.ActionDependencyRemoved,
		Actor:  actor,
		Title:  task.Title,
		Changes: []track.ChangeEntry{
			{Field: "dependency_id", Old: dependsOnID, New: nil},
		},
	})
	if err != nil {
		return &track.TransientStoreError{Op: "record dependency unlink", Err: err}
	}
	s.indexEvent(event)

	unlinked := remove(task.Dependencies, dependsOnID)
	if _, err := s.UpdateTask(ctx, taskID, Patch{dependencies: &unlinked}, actor, true); err != nil {
		return err
	}
	return nil
}

func contains(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func remove(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, candidate := range ids {
		if candidate != id {
			out = append(out, candidate)
		}
	}
	return out
}
