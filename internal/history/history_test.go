package history

import (
	"context"
	"testing"

	"trackline/api/internal/track"
)

type fakeEntityStore struct {
	byHash map[string]track.HistoryEvent
	events []track.HistoryEvent
}

func newFakeEntityStore() *fakeEntityStore {
	return &fakeEntityStore{byHash: make(map[string]track.HistoryEvent)}
}

func (f *fakeEntityStore) UpsertHistoryEvent(ctx context.Context, event track.HistoryEvent) (track.HistoryEvent, error) {
	if existing, ok := f.byHash[event.Hash]; ok {
		return existing, nil
	}
	f.byHash[event.Hash] = event
	f.events = append(f.events, event)
	return event, nil
}

func (f *fakeEntityStore) ListHistoryForTask(ctx context.Context, taskID, titleFilter string) ([]track.HistoryEvent, error) {
	var out []track.HistoryEvent
	for i := len(f.events) - 1; i >= 0; i-- {
		if f.events[i].TaskID == taskID {
			out = append(out, f.events[i])
		}
	}
	return out, nil
}

type seqAllocator struct {
	next int
}

func (s *seqAllocator) Allocate(ctx context.Context, prefix string, digitWidth int) (string, error) {
	s.next++
	return prefix + string(rune('0'+s.next)), nil
}

type mapCache struct {
	entries map[string]string
	gets    int
	sets    int
}

func (m *mapCache) Get(ctx context.Context, actor string) (string, bool) {
	m.gets++
	display, ok := m.entries[actor]
	return display, ok
}

func (m *mapCache) Set(ctx context.Context, actor, display string) {
	m.sets++
	m.entries[actor] = display
}

func TestAppendRecordsEvent(t *testing.T) {
	entities := newFakeEntityStore()
	s := New(entities, &seqAllocator{}, nil)

	event, err := s.Append(context.Background(), AppendInput{
		TaskID: "task000001",
		Action: track.ActionUpdated,
		Actor:  "dana.reyes@example.com",
		Title:  "Wire up billing export",
		Changes: []track.ChangeEntry{
			{Field: "status", Old: "in_progress", New: "completed"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.ID == "" || event.Hash == "" {
		t.Fatalf("event missing id or hash: %+v", event)
	}
	if event.ActorDisplay != "Dana Reyes" {
		t.Errorf("actor display = %q", event.ActorDisplay)
	}
	if len(entities.events) != 1 {
		t.Fatalf("expected 1 stored event, got %d", len(entities.events))
	}
}

func TestAppendIsIdempotent(t *testing.T) {
	entities := newFakeEntityStore()
	s := New(entities, &seqAllocator{}, nil)

	in := AppendInput{
		TaskID: "task000001",
		Action: track.ActionUpdated,
		Actor:  "dana.reyes",
		Title:  "Wire up billing export",
		Changes: []track.ChangeEntry{
			{Field: "priority", Old: "medium", New: "high"},
		},
	}

	first, err := s.Append(context.Background(), in)
	if err != nil {
		t.Fatalf("first append: %v", err)
	}
	second, err := s.Append(context.Background(), in)
	if err != nil {
		t.Fatalf("second append: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("retry returned a different event: %s vs %s", first.ID, second.ID)
	}
	if len(entities.events) != 1 {
		t.Fatalf("retry recorded a second event")
	}
}

func TestAppendNilChangesBecomeEmptyList(t *testing.T) {
	entities := newFakeEntityStore()
	s := New(entities, &seqAllocator{}, nil)

	event, err := s.Append(context.Background(), AppendInput{
		TaskID: "task000001",
		Action: track.ActionCreated,
		Actor:  "system",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Changes == nil {
		t.Fatal("changes should be an empty list, not nil")
	}
	if len(event.Changes) != 0 {
		t.Fatalf("changes = %+v", event.Changes)
	}
}

func TestHashStability(t *testing.T) {
	changes := []track.ChangeEntry{
		{Field: "title", Old: "old", New: "new"},
	}
	a := Hash("task000001", track.ActionUpdated, changes, "dana")
	b := Hash("task000001", track.ActionUpdated, changes, "dana")
	if a != b {
		t.Fatal("equal inputs hashed differently")
	}
	if len(a) != 64 {
		t.Fatalf("hash length = %d, want 64 hex chars", len(a))
	}
}

func TestHashDistinguishesTuples(t *testing.T) {
	base := Hash("task000001", track.ActionUpdated, nil, "dana")
	variants := []string{
		Hash("task000002", track.ActionUpdated, nil, "dana"),
		Hash("task000001", track.ActionDeleted, nil, "dana"),
		Hash("task000001", track.ActionUpdated, nil, "kim"),
		Hash("task000001", track.ActionUpdated, []track.ChangeEntry{{Field: "title", Old: "a", New: "b"}}, "dana"),
	}
	for i, variant := range variants {
		if variant == base {
			t.Errorf("variant %d collided with base hash", i)
		}
	}
}

func TestHashNilAndEmptyChangesAgree(t *testing.T) {
	if Hash("t", track.ActionCreated, nil, "a") != Hash("t", track.ActionCreated, []track.ChangeEntry{}, "a") {
		t.Fatal("nil and empty change lists must hash identically")
	}
}

func TestResolveDisplayUsesCache(t *testing.T) {
	entities := newFakeEntityStore()
	cache := &mapCache{entries: map[string]string{}}
	s := New(entities, &seqAllocator{}, cache)

	in := AppendInput{TaskID: "task000001", Action: track.ActionCreated, Actor: "dana.reyes"}
	if _, err := s.Append(context.Background(), in); err != nil {
		t.Fatalf("append: %v", err)
	}
	if cache.sets != 1 {
		t.Fatalf("expected one cache fill, got %d", cache.sets)
	}

	in.Action = track.ActionDeleted
	if _, err := s.Append(context.Background(), in); err != nil {
		t.Fatalf("append: %v", err)
	}
	if cache.sets != 1 {
		t.Fatalf("cache hit still wrote: sets = %d", cache.sets)
	}
	if cache.gets != 2 {
		t.Fatalf("gets = %d, want 2", cache.gets)
	}
}

func TestResolveDisplayHonorsCachedValue(t *testing.T) {
	entities := newFakeEntityStore()
	cache := &mapCache{entries: map[string]string{"dana.reyes": "Dana R."}}
	s := New(entities, &seqAllocator{}, cache)

	event, err := s.Append(context.Background(), AppendInput{
		TaskID: "task000001", Action: track.ActionCreated, Actor: "dana.reyes",
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if event.ActorDisplay != "Dana R." {
		t.Fatalf("actor display = %q, want cached value", event.ActorDisplay)
	}
}
