package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/analytics-workspace/internal/application/workspace"
)

func TestSessions_EvictsIdle(t *testing.T) {
	now := testNow
	s := NewSessions(10*time.Minute, func(string) *workspace.Workspace {
		return workspace.New(newFakeRemote(), nil, workspace.Hooks{})
	})
	s.now = func() time.Time { return now }

	var ended []string
	s.OnEnd(func(id string) { ended = append(ended, id) })

	a := s.Create()
	b := s.Create()
	require.Equal(t, 2, s.Len())

	now = now.Add(6 * time.Minute)
	require.True(t, s.Live(a.ID))

	now = now.Add(6 * time.Minute)
	require.Equal(t, 1, s.Evict())
	require.Equal(t, []string{b.ID}, ended)
	require.True(t, s.Live(a.ID))
	require.False(t, s.Live(b.ID))
}

func TestSessions_ExpiredIsNotLive(t *testing.T) {
	now := testNow
	s := NewSessions(time.Minute, func(string) *workspace.Workspace { return nil })
	s.now = func() time.Time { return now }

	sess := s.Create()
	now = now.Add(2 * time.Minute)
	_, ok := s.Get(sess.ID)
	require.False(t, ok)
}

func TestServer_CheckOrigin(t *testing.T) {
	s := New(Deps{Backend: newFakeRemote(), AllowedOrigins: []string{"http://localhost:5173"}})

	req := httptest.NewRequest(http.MethodGet, "/v1/events", nil)
	require.True(t, s.checkOrigin(req))

	req.Header.Set("Origin", "http://localhost:5173")
	require.True(t, s.checkOrigin(req))

	req.Header.Set("Origin", "http://evil.test")
	require.False(t, s.checkOrigin(req))
}
