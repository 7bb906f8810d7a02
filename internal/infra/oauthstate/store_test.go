package oauthstate

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/analytics-workspace/internal/domain/auth"
)

type stateStore interface {
	Put(ctx context.Context, st auth.State, ttl time.Duration) error
	Consume(ctx context.Context, value string) (*auth.State, error)
}

func exerciseReadOnce(t *testing.T, s stateStore) {
	ctx := context.Background()
	st := auth.State{Value: uuid.NewString(), Provider: "google", RedirectURI: "http://localhost/cb"}
	require.NoError(t, s.Put(ctx, st, time.Minute))

	got, err := s.Consume(ctx, st.Value)
	require.NoError(t, err)
	require.Equal(t, "google", got.Provider)

	_, err = s.Consume(ctx, st.Value)
	require.ErrorIs(t, err, auth.ErrStateNotFound)

	_, err = s.Consume(ctx, "never-issued")
	require.ErrorIs(t, err, auth.ErrStateNotFound)
}

func TestMemoryStore_ReadOnce(t *testing.T) {
	exerciseReadOnce(t, NewMemoryStore())
}

func TestMemoryStore_Expired(t *testing.T) {
	s := NewMemoryStore()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Put(context.Background(), auth.State{Value: "v"}, time.Minute))
	now = now.Add(2 * time.Minute)

	_, err := s.Consume(context.Background(), "v")
	require.ErrorIs(t, err, auth.ErrStateNotFound)
}

// needs a live redis: WORKSPACE_TEST_REDIS_ADDR=localhost:6379
func TestRedisStore_ReadOnce(t *testing.T) {
	addr := os.Getenv("WORKSPACE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("WORKSPACE_TEST_REDIS_ADDR not set")
	}
	rdb, err := Dial(context.Background(), addr, "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { rdb.Close() })

	exerciseReadOnce(t, NewRedisStore(rdb))
}
