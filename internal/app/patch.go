package app

import (
	"fmt"
	"sort"
	"time"

	"trackline/api/internal/diff"
	"trackline/api/internal/track"
)

// Patch is a partial update to a task's whitelisted fields. Nil pointers (and
// a nil Tags slice) mean "leave unchanged". Subtask and dependency lists are
// not patchable; they mutate through their dedicated operations.
type Patch struct {
	Title       *string
	Description *string
	Status      *track.Status
	Priority    *track.Priority
	StartDate   *time.Time
	DueDate     *time.Time
	CompletedAt *time.Time
	Tags        []string
	ProjectID   *string
	Assignee    *string

	// Relation fields are settable only by the compound operations, which
	// record their own dedicated events and update with history suppressed.
	subTasks     *[]string
	dependencies *[]string
	isSubtask    *bool
}

// PatchFromFields builds a Patch from loosely-typed field values, rejecting
// anything outside the mutation whitelist before any write happens. Enum
// values arrive as raw strings and are narrowed here.
func PatchFromFields(fields map[string]any) (Patch, error) {
	var patch Patch
	var invalid []string

	for key, value := range fields {
		if !diff.IsWhitelisted(key) {
			invalid = append(invalid, key)
			continue
		}
		if err := patch.setField(key, value); err != nil {
			invalid = append(invalid, key)
		}
	}
	if len(invalid) > 0 {
		sort.Strings(invalid)
		return Patch{}, &track.InvalidPatchError{Fields: invalid}
	}
	return patch, nil
}

func (p *Patch) setField(key string, value any) error {
	switch key {
	case "title":
		return assignString(&p.Title, value)
	case "description":
		return assignString(&p.Description, value)
	case "status":
		raw, ok := value.(string)
		if !ok {
			return fmt.Errorf("status must be a string")
		}
		status, ok := track.ParseStatus(raw)
		if !ok {
			return fmt.Errorf("unknown status %q", raw)
		}
		p.Status = &status
	case "priority":
		raw, ok := value.(string)
		if !ok {
			return fmt.Errorf("priority must be a string")
		}
		priority, ok := track.ParsePriority(raw)
		if !ok {
			return fmt.Errorf("unknown priority %q", raw)
		}
		p.Priority = &priority
	case "start_date":
		return assignTime(&p.StartDate, value)
	case "due_date":
		return assignTime(&p.DueDate, value)
	case "completed_at":
		return assignTime(&p.CompletedAt, value)
	case "tags":
		tags, err := stringSlice(value)
		if err != nil {
			return err
		}
		p.Tags = tags
	case "project_id":
		return assignString(&p.ProjectID, value)
	case "assignee":
		return assignString(&p.Assignee, value)
	}
	return nil
}

func assignString(target **string, value any) error {
	raw, ok := value.(string)
	if !ok {
		return fmt.Errorf("expected string")
	}
	*target = &raw
	return nil
}

func assignTime(target **time.Time, value any) error {
	switch v := value.(type) {
	case time.Time:
		*target = &v
		return nil
	case string:
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return fmt.Errorf("parse time: %w", err)
		}
		*target = &parsed
		return nil
	}
	return fmt.Errorf("expected time.Time or RFC3339 string")
}

func stringSlice(value any) ([]string, error) {
	switch v := value.(type) {
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected string list")
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected string list")
}

// apply merges the patch into a copy of current and returns it. The original
// is left untouched so the diff can run against the pre-patch state.
func (p Patch) apply(current track.Task) track.Task {
	next := current
	next.Tags = append([]string(nil), current.Tags...)
	next.SubTasks = append([]string(nil), current.SubTasks...)
	next.Dependencies = append([]string(nil), current.Dependencies...)

	if p.Title != nil {
		next.Title = *p.Title
	}
	if p.Description != nil {
		next.Description = *p.Description
	}
	if p.Status != nil {
		next.Status = *p.Status
	}
	if p.Priority != nil {
		next.Priority = *p.Priority
	}
	if p.StartDate != nil {
		startDate := *p.StartDate
		next.StartDate = &startDate
	}
	if p.DueDate != nil {
		dueDate := *p.DueDate
		next.DueDate = &dueDate
	}
	if p.CompletedAt != nil {
		completedAt := *p.CompletedAt
		next.CompletedAt = &completedAt
	}
	if p.Tags != nil {
		next.Tags = append([]string(nil), p.Tags...)
	}
	if p.ProjectID != nil {
		next.ProjectID = *p.ProjectID
	}
	if p.Assignee != nil {
		next.Assignee = *p.Assignee
	}
	if p.subTasks != nil {
		next.SubTasks = append([]string(nil), (*p.subTasks)...)
	}
	if p.dependencies != nil {
		next.Dependencies = append([]string(nil), (*p.dependencies)...)
	}
	if p.isSubtask != nil {
		next.IsSubtask = *p.isSubtask
	}
	return next
}
