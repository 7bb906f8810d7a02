package journal

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/analytics-workspace/internal/application"
	"github.com/bryanwahyu/analytics-workspace/internal/application/workspace"
	"github.com/bryanwahyu/analytics-workspace/internal/domain/oplog"
	"github.com/bryanwahyu/analytics-workspace/internal/infra/remote"
)

type memRepo struct {
	entries []*oplog.Entry
	err     error
}

func (m *memRepo) Save(ctx context.Context, e *oplog.Entry) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *memRepo) ListBySession(ctx context.Context, sessionID string, limit int) ([]*oplog.Entry, error) {
	return m.entries, nil
}

func TestRecorder_SavesRemoteFailure(t *testing.T) {
	repo := &memRepo{}
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	r := &Recorder{Repo: repo, SessionID: "s-1", Clock: application.FixedClock{T: now}}

	err := &workspace.StageError{
		Stage: workspace.StageAnalyze,
		Err:   &remote.Error{Op: "analyze relationship", Status: 422, Kind: remote.KindValidation, Message: "key mismatch", Detail: json.RawMessage(`{"column":"id"}`)},
	}
	r.Record(context.Background(), workspace.Operation{Controller: workspace.ControllerMerge, Name: "analyze", ProjectID: 7}, err)

	require.Len(t, repo.entries, 1)
	e := repo.entries[0]
	require.Equal(t, "s-1", e.SessionID)
	require.Equal(t, "merge", e.Controller)
	require.Equal(t, "validation", e.Kind)
	require.Equal(t, 422, e.Status)
	require.Equal(t, "key mismatch", e.Message)
	require.Equal(t, now, e.CreatedAt)
	require.JSONEq(t, `{"project_id":7,"detail":{"column":"id"},"stage":"analyze"}`, e.DetailsJSON)
}

func TestRecorder_IgnoresSuccessAndLocalErrors(t *testing.T) {
	repo := &memRepo{}
	r := &Recorder{Repo: repo, SessionID: "s-1"}

	r.Record(context.Background(), workspace.Operation{Name: "compare"}, nil)
	r.Record(context.Background(), workspace.Operation{Name: "compare"}, workspace.ErrCannotCompare)
	require.Empty(t, repo.entries)
}

func TestRecorder_WriteFailureIsSwallowed(t *testing.T) {
	r := &Recorder{Repo: &memRepo{err: errors.New("db down")}, SessionID: "s-1"}
	require.NotPanics(t, func() {
		r.Record(context.Background(), workspace.Operation{Name: "query"}, errors.New("dial tcp: refused"))
	})
}

func TestEntry_TransportFailure(t *testing.T) {
	e := Entry("s-2", workspace.Operation{Controller: "chat", Name: "query"}, errors.New("dial tcp: refused"))
	require.Equal(t, "transport", e.Kind)
	require.Equal(t, "dial tcp: refused", e.Message)
	require.Equal(t, "{}", e.DetailsJSON)
}
