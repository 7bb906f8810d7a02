package journal

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/bryanwahyu/analytics-workspace/internal/application"
	"github.com/bryanwahyu/analytics-workspace/internal/application/workspace"
	"github.com/bryanwahyu/analytics-workspace/internal/domain/oplog"
	"github.com/bryanwahyu/analytics-workspace/internal/infra/remote"
)

// Recorder appends every failed workspace operation of one session to the
// operation journal. Writes are best-effort.
type Recorder struct {
	Repo      oplog.Repository
	SessionID string
	Clock     application.Clock
	Log       zerolog.Logger
}

func (r *Recorder) Record(ctx context.Context, op workspace.Operation, err error) {
	if err == nil || r.Repo == nil || workspace.IsLocal(err) {
		return
	}
	e := Entry(r.SessionID, op, err)
	if r.Clock != nil {
		e.CreatedAt = r.Clock.Now()
	}
	// the request context may already be done when a slow call returns
	if saveErr := r.Repo.Save(context.WithoutCancel(ctx), e); saveErr != nil {
		r.Log.Warn().Err(saveErr).Str("operation", op.Name).Msg("journal write failed")
	}
}

// Entry converts a failed operation to a journal entry
func Entry(sessionID string, op workspace.Operation, err error) *oplog.Entry {
	e := &oplog.Entry{
		SessionID:  sessionID,
		Controller: op.Controller,
		Operation:  op.Name,
		Kind:       string(remote.KindOf(err)),
		Status:     remote.StatusOf(err),
		Message:    err.Error(),
	}
	details := map[string]any{}
	if op.ProjectID != 0 {
		details["project_id"] = op.ProjectID
	}
	var re *remote.Error
	if errors.As(err, &re) {
		e.Message = re.Message
		if len(re.Detail) > 0 {
			details["detail"] = re.Detail
		}
	}
	var se *workspace.StageError
	if errors.As(err, &se) {
		details["stage"] = se.Stage
	}
	if b, mErr := json.Marshal(details); mErr == nil {
		e.DetailsJSON = string(b)
	}
	return e
}
