// Package ident allocates short human-readable identifiers of the form
// {prefix}{digits}. Uniqueness is checked against the entity store, never
// assumed: there is no global counter.
package ident

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"
)

const maxAttempts = 10

// ExistenceChecker is the single store read the allocator needs.
type ExistenceChecker interface {
	IdentifierExists(ctx context.Context, id string) (bool, error)
}

type Allocator struct {
	store ExistenceChecker
	now   func() time.Time
}

func New(store ExistenceChecker) *Allocator {
	return &Allocator{store: store, now: time.Now}
}

// Allocate returns a collision-checked candidate, retrying up to maxAttempts
// times. If every attempt collides it falls back to a time-derived suffix so
// the caller always makes progress; the residual collision risk of that
// suffix is accepted. Store errors propagate untouched.
func (a *Allocator) Allocate(ctx context.Context, prefix string, digitWidth int) (string, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		candidate := prefix + randomDigits(digitWidth)
		taken, err := a.store.IdentifierExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check candidate id: %w", err)
		}
		if !taken {
			return candidate, nil
		}
	}
	return prefix + a.timeSuffix(digitWidth), nil
}

func randomDigits(width int) string {
	bytes := make([]byte, width)
	_, _ = rand.Read(bytes)
	digits := make([]byte, width)
	for i, b := range bytes {
		digits[i] = '0' + b%10
	}
	return string(digits)
}

func (a *Allocator) timeSuffix(width int) string {
	mod := int64(1)
	for i := 0; i < width; i++ {
		mod *= 10
	}
	return fmt.Sprintf("%0*d", width, a.now().Unix()%mod)
}
