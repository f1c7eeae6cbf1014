package track

import (
	"fmt"
	"strings"
)

// offenderPreview is how many IDs a gate rejection names before collapsing
// the remainder into a "+N more" suffix.
const offenderPreview = 5

// NotFoundError reports a referenced task (or related entity) that does not
// exist. Callers should not retry.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// NewNotFound builds a NotFoundError for the given entity kind and ID.
func NewNotFound(kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

// IncompleteDependencyError rejects a transition to completed while declared
// dependencies are missing or not themselves completed.
type IncompleteDependencyError struct {
	Missing      []string
	NotCompleted []string
}

// Offenders returns every blocking dependency ID, missing first.
func (e *IncompleteDependencyError) Offenders() []string {
	offenders := make([]string, 0, len(e.Missing)+len(e.NotCompleted))
	offenders = append(offenders, e.Missing...)
	offenders = append(offenders, e.NotCompleted...)
	return offenders
}

func (e *IncompleteDependencyError) Error() string {
	offenders := e.Offenders()
	preview := offenders
	suffix := ""
	if len(offenders) > offenderPreview {
		preview = offenders[:offenderPreview]
		suffix = fmt.Sprintf(" +%d more", len(offenders)-offenderPreview)
	}
	return fmt.Sprintf("cannot complete task: %d incomplete dependencies: %s%s",
		len(offenders), strings.Join(preview, ", "), suffix)
}

// TransientStoreError wraps an entity-store I/O failure. The whole operation
// is safe for the caller to retry: history writes are idempotent by hash.
type TransientStoreError struct {
	Op  string
	Err error
}

func (e *TransientStoreError) Error() string {
	return fmt.Sprintf("store unavailable during %s: %v", e.Op, e.Err)
}

func (e *TransientStoreError) Unwrap() error {
	return e.Err
}

// InvalidPatchError reports patch fields outside the mutation whitelist.
// Rejected before any write.
type InvalidPatchError struct {
	Fields []string
}

func (e *InvalidPatchError) Error() string {
	return fmt.Sprintf("patch contains unsupported fields: %s", strings.Join(e.Fields, ", "))
}
