package ident

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"
)

type stubChecker struct {
	calls    int
	takenFor int
	err      error
}

func (s *stubChecker) IdentifierExists(ctx context.Context, id string) (bool, error) {
	s.calls++
	if s.err != nil {
		return false, s.err
	}
	return s.calls <= s.takenFor, nil
}

func TestAllocateFirstFree(t *testing.T) {
	checker := &stubChecker{}
	a := New(checker)

	id, err := a.Allocate(context.Background(), "task", 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !regexp.MustCompile(`^task\d{6}$`).MatchString(id) {
		t.Fatalf("id %q does not match task + 6 digits", id)
	}
	if checker.calls != 1 {
		t.Fatalf("expected 1 existence check, got %d", checker.calls)
	}
}

func TestAllocateRetriesUntilFree(t *testing.T) {
	checker := &stubChecker{takenFor: 9}
	a := New(checker)

	id, err := a.Allocate(context.Background(), "hist", 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if checker.calls != 10 {
		t.Fatalf("expected 10 existence checks, got %d", checker.calls)
	}
	if !regexp.MustCompile(`^hist\d{8}$`).MatchString(id) {
		t.Fatalf("id %q does not match hist + 8 digits", id)
	}
}

func TestAllocateFallsBackToTimeSuffix(t *testing.T) {
	checker := &stubChecker{takenFor: 1000}
	a := New(checker)
	a.now = func() time.Time { return time.Unix(1757000123, 0) }

	id, err := a.Allocate(context.Background(), "task", 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if checker.calls != maxAttempts {
		t.Fatalf("expected %d existence checks before fallback, got %d", maxAttempts, checker.calls)
	}
	if id != "task000123" {
		t.Fatalf("fallback id = %q, want task000123", id)
	}
}

func TestAllocatePropagatesStoreError(t *testing.T) {
	storeErr := errors.New("connection refused")
	checker := &stubChecker{err: storeErr}
	a := New(checker)

	_, err := a.Allocate(context.Background(), "task", 6)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, storeErr) {
		t.Fatalf("error %v does not wrap store error", err)
	}
	if !strings.Contains(err.Error(), "check candidate id") {
		t.Fatalf("error %v missing context", err)
	}
	if checker.calls != 1 {
		t.Fatalf("expected allocation to stop on first error, got %d checks", checker.calls)
	}
}
