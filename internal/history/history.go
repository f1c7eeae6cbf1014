// Package history appends and reads the audit trail. Appends are idempotent:
// the event's content hash is the upsert conflict key, so retrying the same
// logical mutation never records it twice.
package history

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"

	"trackline/api/internal/track"
)

const (
	idPrefix = "hist"
	idDigits = 8
)

type entityStore interface {
	UpsertHistoryEvent(ctx context.Context, event track.HistoryEvent) (track.HistoryEvent, error)
	ListHistoryForTask(ctx context.Context, taskID, titleFilter string) ([]track.HistoryEvent, error)
}

type idAllocator interface {
	Allocate(ctx context.Context, prefix string, digitWidth int) (string, error)
}

// DisplayCache caches resolved actor display names. Implementations must
// treat misses and their own failures identically (return false).
type DisplayCache interface {
	Get(ctx context.Context, actor string) (string, bool)
	Set(ctx context.Context, actor, display string)
}

type Store struct {
	store entityStore
	ids   idAllocator
	cache DisplayCache
}

// New creates a history store. cache may be nil.
func New(store entityStore, ids idAllocator, cache DisplayCache) *Store {
	return &Store{store: store, ids: ids, cache: cache}
}

// AppendInput describes one mutation to record.
type AppendInput struct {
	TaskID  string
	Action  track.Action
	Actor   string
	Title   string
	Changes []track.ChangeEntry
}

// Append records exactly one event for the mutation. If a row with the same
// content hash already exists, that row is returned and nothing is written.
func (s *Store) Append(ctx context.Context, in AppendInput) (track.HistoryEvent, error) {
	changes := in.Changes
	if changes == nil {
		changes = []track.ChangeEntry{}
	}

	id, err := s.ids.Allocate(ctx, idPrefix, idDigits)
	if err != nil {
		return track.HistoryEvent{}, fmt.Errorf("allocate history id: %w", err)
	}

	event := track.HistoryEvent{
		ID:           id,
		TaskID:       in.TaskID,
		Action:       in.Action,
		Title:        in.Title,
		Changes:      changes,
		CreatedBy:    in.Actor,
		ActorDisplay: s.resolveDisplay(ctx, in.Actor),
		Hash:         Hash(in.TaskID, in.Action, changes, in.Actor),
	}

	stored, err := s.store.UpsertHistoryEvent(ctx, event)
	if err != nil {
		return track.HistoryEvent{}, fmt.Errorf("append history event: %w", err)
	}
	return stored, nil
}

// ListForTask returns the task's feed newest-first; titleFilter narrows it to
// events whose title snapshot contains the substring.
func (s *Store) ListForTask(ctx context.Context, taskID, titleFilter string) ([]track.HistoryEvent, error) {
	return s.store.ListHistoryForTask(ctx, taskID, titleFilter)
}

// Hash digests the canonical (task_id, action, changes, actor) tuple with
// BLAKE2b-256. Changes serialize in whitelist order, so equal logical
// mutations always hash identically.
func Hash(taskID string, action track.Action, changes []track.ChangeEntry, actor string) string {
	if changes == nil {
		changes = []track.ChangeEntry{}
	}
	encoded, err := json.Marshal(changes)
	if err != nil {
		encoded = []byte("[]")
	}
	var canonical strings.Builder
	canonical.WriteString(taskID)
	canonical.WriteByte(0x1f)
	canonical.WriteString(string(action))
	canonical.WriteByte(0x1f)
	canonical.Write(encoded)
	canonical.WriteByte(0x1f)
	canonical.WriteString(actor)

	digest := blake2b.Sum256([]byte(canonical.String()))
	return hex.EncodeToString(digest[:])
}

func (s *Store) resolveDisplay(ctx context.Context, actor string) string {
	if s.cache != nil {
		if display, hit := s.cache.Get(ctx, actor); hit {
			return display
		}
	}
	display := DisplayName(actor)
	if s.cache != nil {
		s.cache.Set(ctx, actor, display)
	}
	return display
}
