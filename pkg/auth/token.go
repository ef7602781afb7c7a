package auth

import (
	"context"
	"sync"
	"time"
)

// Token is a bearer token and the moment it stops being usable.
// A zero ExpiresAt means the expiry is unknown.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// ValidAt reports whether the token may be used at now, keeping margin
// in reserve before the expiry.
func (t Token) ValidAt(now time.Time, margin time.Duration) bool {
	if t.Value == "" || t.ExpiresAt.IsZero() {
		return false
	}
	return now.Before(t.ExpiresAt.Add(-margin))
}

// TokenStore persists tokens between runs.
type TokenStore interface {
	// Load returns the stored token. ok is false when nothing is stored.
	Load(ctx context.Context) (tok Token, ok bool, err error)
	Save(ctx context.Context, tok Token) error
}

// MemoryStore keeps the token for the lifetime of the process only.
type MemoryStore struct {
	mu  sync.Mutex
	tok Token
	set bool
}

// NewMemoryStore returns a store, optionally seeded with a token.
func NewMemoryStore(seed ...Token) *MemoryStore {
	s := &MemoryStore{}
	if len(seed) > 0 {
		s.tok, s.set = seed[0], true
	}
	return s
}

func (s *MemoryStore) Load(context.Context) (Token, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tok, s.set, nil
}

func (s *MemoryStore) Save(_ context.Context, tok Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tok, s.set = tok, true
	return nil
}
