package workspace

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/bryanwahyu/analytics-workspace/internal/application"
	"github.com/bryanwahyu/analytics-workspace/internal/domain/projects"
)

// Controller names used in events and recorded operations
const (
	ControllerSelection  = "selection"
	ControllerVersions   = "versions"
	ControllerChat       = "chat"
	ControllerComparison = "comparison"
	ControllerMerge      = "merge"
	ControllerDashboards = "dashboards"
)

// Operation identifies one remote-backed controller command
type Operation struct {
	Controller string
	Name       string
	ProjectID  projects.ProjectID
}

// Recorder observes the outcome of every remote-backed command
type Recorder interface {
	Record(ctx context.Context, op Operation, err error)
}

// RecorderFunc adapts a function to Recorder
type RecorderFunc func(ctx context.Context, op Operation, err error)

func (f RecorderFunc) Record(ctx context.Context, op Operation, err error) { f(ctx, op, err) }

// Recorders fans out to several recorders
type Recorders []Recorder

func (rs Recorders) Record(ctx context.Context, op Operation, err error) {
	for _, r := range rs {
		if r != nil {
			r.Record(ctx, op, err)
		}
	}
}

// Event carries a controller state snapshot after it changed
type Event struct {
	Controller string             `json:"controller"`
	ProjectID  projects.ProjectID `json:"project_id,omitempty"`
	Seq        uint64             `json:"seq"`
	State      any                `json:"state"`
}

// Hooks are the optional collaborators shared by every controller
type Hooks struct {
	Log      zerolog.Logger
	Recorder Recorder
	Clock    application.Clock
	OnChange func(Event)
}

func (h Hooks) withDefaults() Hooks {
	if h.Clock == nil {
		h.Clock = application.SystemClock{}
	}
	return h
}

func (h Hooks) emit(controller string, project projects.ProjectID, seq uint64, state any) {
	if h.OnChange != nil {
		h.OnChange(Event{Controller: controller, ProjectID: project, Seq: seq, State: state})
	}
}

// changes orders the events of one controller. A snapshot is stamped while
// the controller lock is held, so stamps follow mutation order; publish then
// drops any snapshot older than the last one delivered.
type changes struct {
	seq uint64 // guarded by the owning controller's mutex

	mu   sync.Mutex
	sent uint64
}

// stamp must be called with the controller lock held
func (c *changes) stamp() uint64 {
	c.seq++
	return c.seq
}

func (c *changes) publish(h Hooks, controller string, project projects.ProjectID, seq uint64, state any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq <= c.sent {
		h.dropped(controller, "publish state")
		return
	}
	c.sent = seq
	h.emit(controller, project, seq, state)
}

func (h Hooks) record(ctx context.Context, op Operation, err error) {
	if h.Recorder != nil {
		h.Recorder.Record(ctx, op, err)
	}
	if err != nil {
		h.Log.Warn().Err(err).
			Str("controller", op.Controller).
			Str("operation", op.Name).
			Int64("project_id", int64(op.ProjectID)).
			Msg("workspace operation failed")
	}
}

func (h Hooks) dropped(controller, op string) {
	h.Log.Debug().Str("controller", controller).Str("operation", op).Msg("dropping stale response")
}
