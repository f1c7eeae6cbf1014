// Package gate enforces the dependency-completion invariant: a task may not
// transition to completed while any declared dependency is missing or not
// itself completed.
package gate

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"trackline/api/internal/track"
)

// StatusReader batch-reads {id, status} pairs; absent IDs are simply missing
// from the returned map.
type StatusReader interface {
	BatchGetTaskStatuses(ctx context.Context, taskIDs []string) (map[string]track.Status, error)
}

type DependencyGate struct {
	store StatusReader
}

func New(store StatusReader) *DependencyGate {
	return &DependencyGate{store: store}
}

// CanComplete validates the post-update dependency list of taskID. An empty
// list passes trivially. Otherwise the list is deduplicated and trimmed, the
// statuses are fetched in one batch read, and any dependency that is missing
// or not exactly completed fails the gate. Only exact equality to the
// completed status qualifies; no partial states do.
func (g *DependencyGate) CanComplete(ctx context.Context, taskID string, dependencies []string) error {
	wanted := dedupe(dependencies)
	if len(wanted) == 0 {
		return nil
	}

	statuses, err := g.store.BatchGetTaskStatuses(ctx, wanted)
	if err != nil {
		return fmt.Errorf("read dependency statuses: %w", err)
	}

	var missing, notCompleted []string
	for _, id := range wanted {
		status, found := statuses[id]
		switch {
		case !found:
			missing = append(missing, id)
		case status != track.StatusCompleted:
			notCompleted = append(notCompleted, id)
		}
	}
	if len(missing) == 0 && len(notCompleted) == 0 {
		return nil
	}
	return &track.IncompleteDependencyError{Missing: missing, NotCompleted: notCompleted}
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
