package httpserver

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bryanwahyu/analytics-workspace/internal/application/workspace"
	"github.com/bryanwahyu/analytics-workspace/internal/middleware"
)

// Session is one browser's workspace
type Session struct {
	ID        string               `json:"id"`
	CreatedAt time.Time            `json:"created_at"`
	Workspace *workspace.Workspace `json:"-"`

	lastSeen time.Time
}

// Sessions keeps the live sessions and evicts idle ones
type Sessions struct {
	mu    sync.Mutex
	items map[string]*Session
	ttl   time.Duration
	build func(id string) *workspace.Workspace
	now   func() time.Time
	onEnd func(id string)
}

// NewSessions builds a registry. build creates the workspace of a new session.
func NewSessions(ttl time.Duration, build func(id string) *workspace.Workspace) *Sessions {
	return &Sessions{
		items: make(map[string]*Session),
		ttl:   ttl,
		build: build,
		now:   time.Now,
	}
}

// OnEnd registers a callback run after a session is evicted
func (s *Sessions) OnEnd(fn func(id string)) {
	s.mu.Lock()
	s.onEnd = fn
	s.mu.Unlock()
}

func (s *Sessions) Create() *Session {
	id := uuid.NewString()
	now := s.now()
	sess := &Session{ID: id, CreatedAt: now, Workspace: s.build(id), lastSeen: now}

	s.mu.Lock()
	s.items[id] = sess
	n := len(s.items)
	s.mu.Unlock()

	middleware.SessionsActive.Set(float64(n))
	return sess
}

// Get returns a live session and marks it as used
func (s *Sessions) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.items[id]
	if !ok {
		return nil, false
	}
	if s.expiredLocked(sess, s.now()) {
		return nil, false
	}
	sess.lastSeen = s.now()
	return sess, true
}

// Live reports whether id names a live session
func (s *Sessions) Live(id string) bool {
	_, ok := s.Get(id)
	return ok
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Sessions) expiredLocked(sess *Session, now time.Time) bool {
	return s.ttl > 0 && now.Sub(sess.lastSeen) > s.ttl
}

// Evict drops the sessions idle for longer than the TTL
func (s *Sessions) Evict() int {
	now := s.now()
	var gone []string

	s.mu.Lock()
	for id, sess := range s.items {
		if s.expiredLocked(sess, now) {
			delete(s.items, id)
			gone = append(gone, id)
		}
	}
	n := len(s.items)
	onEnd := s.onEnd
	s.mu.Unlock()

	middleware.SessionsActive.Set(float64(n))
	if onEnd != nil {
		for _, id := range gone {
			onEnd(id)
		}
	}
	return len(gone)
}

// Run evicts idle sessions every interval until ctx is done
func (s *Sessions) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Evict()
		}
	}
}
