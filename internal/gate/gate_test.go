package gate

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"trackline/api/internal/track"
)

type fakeStatusReader struct {
	statuses map[string]track.Status
	err      error
	calls    int
	lastIDs  []string
}

func (f *fakeStatusReader) BatchGetTaskStatuses(ctx context.Context, taskIDs []string) (map[string]track.Status, error) {
	f.calls++
	f.lastIDs = taskIDs
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]track.Status, len(taskIDs))
	for _, id := range taskIDs {
		if status, ok := f.statuses[id]; ok {
			out[id] = status
		}
	}
	return out, nil
}

func TestCanCompleteEmptyDependencies(t *testing.T) {
	reader := &fakeStatusReader{}
	g := New(reader)

	if err := g.CanComplete(context.Background(), "task000001", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reader.calls != 0 {
		t.Fatalf("expected no store reads for empty list, got %d", reader.calls)
	}
}

func TestCanCompleteAllCompleted(t *testing.T) {
	reader := &fakeStatusReader{statuses: map[string]track.Status{
		"task000002": track.StatusCompleted,
		"task000003": track.StatusCompleted,
	}}
	g := New(reader)

	err := g.CanComplete(context.Background(), "task000001", []string{"task000003", "task000002"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reader.calls != 1 {
		t.Fatalf("expected a single batch read, got %d", reader.calls)
	}
}

func TestCanCompleteDeduplicatesAndTrims(t *testing.T) {
	reader := &fakeStatusReader{statuses: map[string]track.Status{
		"task000002": track.StatusCompleted,
	}}
	g := New(reader)

	err := g.CanComplete(context.Background(), "task000001",
		[]string{" task000002 ", "task000002", "", "task000002"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(reader.lastIDs, []string{"task000002"}) {
		t.Fatalf("batch read ids = %v, want [task000002]", reader.lastIDs)
	}
}

func TestCanCompleteMissingAndNotCompleted(t *testing.T) {
	reader := &fakeStatusReader{statuses: map[string]track.Status{
		"task000002": track.StatusInProgress,
		"task000004": track.StatusCompleted,
	}}
	g := New(reader)

	err := g.CanComplete(context.Background(), "task000001",
		[]string{"task000002", "task000003", "task000004"})
	var incomplete *track.IncompleteDependencyError
	if !errors.As(err, &incomplete) {
		t.Fatalf("expected IncompleteDependencyError, got %v", err)
	}
	if !reflect.DeepEqual(incomplete.Missing, []string{"task000003"}) {
		t.Errorf("missing = %v", incomplete.Missing)
	}
	if !reflect.DeepEqual(incomplete.NotCompleted, []string{"task000002"}) {
		t.Errorf("notCompleted = %v", incomplete.NotCompleted)
	}
	if got := incomplete.Offenders(); !reflect.DeepEqual(got, []string{"task000003", "task000002"}) {
		t.Errorf("offenders = %v, want missing first", got)
	}
}

func TestCanCompleteOnlyExactCompletedPasses(t *testing.T) {
	for _, status := range []track.Status{
		track.StatusNotStarted, track.StatusInProgress, track.StatusBlocked,
		track.StatusArchived, track.StatusOnHold,
	} {
		reader := &fakeStatusReader{statuses: map[string]track.Status{"task000002": status}}
		g := New(reader)
		err := g.CanComplete(context.Background(), "task000001", []string{"task000002"})
		if err == nil {
			t.Errorf("status %s should fail the gate", status)
		}
	}
}

func TestIncompleteDependencyErrorPreview(t *testing.T) {
	err := &track.IncompleteDependencyError{
		NotCompleted: []string{"task000001", "task000002", "task000003", "task000004", "task000005", "task000006", "task000007"},
	}
	msg := err.Error()
	if !strings.Contains(msg, "7 incomplete dependencies") {
		t.Errorf("message %q missing count", msg)
	}
	if !strings.Contains(msg, "+2 more") {
		t.Errorf("message %q missing +2 more suffix", msg)
	}
	if strings.Contains(msg, "task000006") {
		t.Errorf("message %q names an ID beyond the preview", msg)
	}
}

func TestCanCompletePropagatesStoreError(t *testing.T) {
	storeErr := errors.New("connection reset")
	g := New(&fakeStatusReader{err: storeErr})

	err := g.CanComplete(context.Background(), "task000001", []string{"task000002"})
	if !errors.Is(err, storeErr) {
		t.Fatalf("error %v does not wrap store error", err)
	}
	var incomplete *track.IncompleteDependencyError
	if errors.As(err, &incomplete) {
		t.Fatal("store error must not surface as a gate rejection")
	}
}
