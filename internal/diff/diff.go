// Package diff computes the whitelisted field-level delta between two task
// states. Output order follows the fixed whitelist, never insertion order, so
// equal diffs always serialize identically — the history idempotency hash
// depends on that.
package diff

import (
	"reflect"
	"sort"
	"time"

	"trackline/api/internal/track"
)

// Fields is the mutation whitelist in output order. Subtask and dependency
// list changes are not diffable fields; they are recorded through dedicated
// history actions instead.
var Fields = []string{
	"title",
	"description",
	"status",
	"priority",
	"start_date",
	"due_date",
	"completed_at",
	"tags",
	"project_id",
	"assignee",
}

var fieldSet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(Fields))
	for _, field := range Fields {
		set[field] = struct{}{}
	}
	return set
}()

// IsWhitelisted reports whether field is part of the mutation whitelist.
func IsWhitelisted(field string) bool {
	_, ok := fieldSet[field]
	return ok
}

// Diff emits one ChangeEntry per whitelisted field whose normalized values
// differ. A field present on one side only is reported with nil on the
// missing side. Diff(x, x) is always empty.
func Diff(before, after track.Task) []track.ChangeEntry {
	changes := make([]track.ChangeEntry, 0)
	for _, field := range Fields {
		oldValue := normalizedValue(before, field)
		newValue := normalizedValue(after, field)
		if !reflect.DeepEqual(oldValue, newValue) {
			changes = append(changes, track.ChangeEntry{Field: field, Old: oldValue, New: newValue})
		}
	}
	return changes
}

func normalizedValue(task track.Task, field string) any {
	switch field {
	case "title":
		return normalizedString(task.Title)
	case "description":
		return normalizedString(task.Description)
	case "status":
		return normalizedString(string(task.Status))
	case "priority":
		return normalizedString(string(task.Priority))
	case "start_date":
		return normalizedTime(task.StartDate)
	case "due_date":
		return normalizedTime(task.DueDate)
	case "completed_at":
		return normalizedTime(task.CompletedAt)
	case "tags":
		return normalizedList(task.Tags)
	case "project_id":
		return normalizedString(task.ProjectID)
	case "assignee":
		return normalizedString(task.Assignee)
	}
	return nil
}

func normalizedString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// normalizedTime renders timestamps in a stable RFC3339 UTC form at seconds
// precision; sub-second components never influence a diff.
func normalizedTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Truncate(time.Second).Format(time.RFC3339)
}

// normalizedList sorts list-valued fields before comparison so a reorder is
// not reported as a change.
func normalizedList(values []string) any {
	if len(values) == 0 {
		return nil
	}
	sorted := make([]string, len(values))
	copy(sorted, values)
	sort.Strings(sorted)
	return sorted
}
