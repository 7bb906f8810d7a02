package oauthstate

import (
	"context"
	"sync"
	"time"

	"github.com/bryanwahyu/analytics-workspace/internal/domain/auth"
)

type memEntry struct {
	state   auth.State
	expires time.Time
}

// MemoryStore is the single-process fallback when redis is not configured
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memEntry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memEntry), now: time.Now}
}

func (s *MemoryStore) Put(ctx context.Context, st auth.State, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	// drop expired entries on write
	for k, e := range s.entries {
		if now.After(e.expires) {
			delete(s.entries, k)
		}
	}
	s.entries[st.Value] = memEntry{state: st, expires: now.Add(ttl)}
	return nil
}

func (s *MemoryStore) Consume(ctx context.Context, value string) (*auth.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[value]
	delete(s.entries, value)
	if !ok || s.now().After(e.expires) {
		return nil, auth.ErrStateNotFound
	}
	st := e.state
	return &st, nil
}
