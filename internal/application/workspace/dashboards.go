package workspace

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/bryanwahyu/analytics-workspace/internal/domain/analysis"
	"github.com/bryanwahyu/analytics-workspace/internal/domain/comparison"
	"github.com/bryanwahyu/analytics-workspace/internal/domain/dashboards"
	"github.com/bryanwahyu/analytics-workspace/internal/domain/merge"
	"github.com/bryanwahyu/analytics-workspace/internal/domain/projects"
)

// DialogState of the save-as-dashboard dialog
type DialogState string

const (
	DialogClosed DialogState = "closed"
	DialogOpen   DialogState = "open"
	DialogSaving DialogState = "saving"
)

// DashboardsState snapshot
type DashboardsState struct {
	Dialog     DialogState            `json:"dialog"`
	Last       *dashboards.Dashboard  `json:"last,omitempty"`
	Dashboards []dashboards.Dashboard `json:"dashboards"`
	Error      *ErrorView             `json:"error,omitempty"`
}

// ComparisonConfig is the serialized configuration of a comparison dashboard
type ComparisonConfig struct {
	FileAID     projects.FileID `json:"file_a_id"`
	FileBID     projects.FileID `json:"file_b_id"`
	Type        comparison.Type `json:"comparison_type"`
	Summary     string          `json:"summary,omitempty"`
	SnapshotURL string          `json:"snapshot_url,omitempty"`
}

// MergeConfig is the serialized configuration of a merged dashboard
type MergeConfig struct {
	Relationship merge.Relationship `json:"relationship"`
	RowCount     int                `json:"row_count"`
	Schema       projects.Schema    `json:"schema"`
	Summary      string             `json:"summary,omitempty"`
	SnapshotURL  string             `json:"snapshot_url,omitempty"`
}

// DashboardBridge turns comparison and merge results into persisted
// dashboards and tracks the save dialog.
type DashboardBridge struct {
	mu        sync.Mutex
	api       dashboards.Service
	snapshots dashboards.SnapshotStore
	hooks     Hooks

	dialog DialogState
	last   *dashboards.Dashboard
	list   []dashboards.Dashboard
	err    error

	events changes
}

// NewDashboardBridge builds a bridge. snapshots may be nil.
func NewDashboardBridge(api dashboards.Service, snapshots dashboards.SnapshotStore, hooks Hooks) *DashboardBridge {
	return &DashboardBridge{
		api:       api,
		snapshots: snapshots,
		hooks:     hooks.withDefaults(),
		dialog:    DialogClosed,
	}
}

func (b *DashboardBridge) State() DashboardsState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked()
}

func (b *DashboardBridge) stateLocked() DashboardsState {
	return DashboardsState{
		Dialog:     b.dialog,
		Last:       b.last,
		Dashboards: append([]dashboards.Dashboard(nil), b.list...),
		Error:      viewOf(b.err),
	}
}

func (b *DashboardBridge) changed() {
	b.mu.Lock()
	seq, st := b.events.stamp(), b.stateLocked()
	b.mu.Unlock()
	b.events.publish(b.hooks, ControllerDashboards, 0, seq, st)
}

// Open shows the save dialog
func (b *DashboardBridge) Open() {
	b.mu.Lock()
	if b.dialog == DialogClosed {
		b.dialog = DialogOpen
		b.err = nil
	}
	b.mu.Unlock()
	b.changed()
}

// Close hides the dialog. It cannot be closed while saving.
func (b *DashboardBridge) Close() error {
	b.mu.Lock()
	if b.dialog == DialogSaving {
		b.mu.Unlock()
		return ErrBusy
	}
	b.dialog = DialogClosed
	b.err = nil
	b.mu.Unlock()
	b.changed()
	return nil
}

// SaveComparison persists a comparison result under name
func (b *DashboardBridge) SaveComparison(ctx context.Context, name string, res comparison.Result) (*dashboards.Dashboard, error) {
	cfg := ComparisonConfig{FileAID: res.FileAID, FileBID: res.FileBID, Type: res.Type, Summary: res.Summary}
	return b.save(ctx, name, dashboards.TypeComparison, res.Charts, func(url string) any {
		cfg.SnapshotURL = url
		return cfg
	})
}

// SaveMerge persists a merge result and the relationship it came from
func (b *DashboardBridge) SaveMerge(ctx context.Context, name string, rel merge.Relationship, res merge.Result) (*dashboards.Dashboard, error) {
	cfg := MergeConfig{Relationship: rel, RowCount: res.RowCount, Schema: res.Schema, Summary: res.Summary}
	return b.save(ctx, name, dashboards.TypeMerged, res.Charts, func(url string) any {
		cfg.SnapshotURL = url
		return cfg
	})
}

func (b *DashboardBridge) save(ctx context.Context, name string, typ dashboards.Type, charts []analysis.Chart, config func(snapshotURL string) any) (*dashboards.Dashboard, error) {
	name = strings.TrimSpace(name)
	b.mu.Lock()
	if b.dialog == DialogSaving {
		b.mu.Unlock()
		return nil, ErrBusy
	}
	if name == "" {
		b.dialog = DialogOpen
		b.err = ErrNameRequired
		b.mu.Unlock()
		b.changed()
		return nil, ErrNameRequired
	}
	b.dialog = DialogSaving
	b.err = nil
	b.mu.Unlock()
	b.changed()

	url := b.snapshot(ctx, typ, charts)
	raw, err := json.Marshal(config(url))
	if err != nil {
		err = errors.Wrap(err, "encode dashboard config")
		b.fail(err)
		return nil, err
	}

	d, err := b.api.CreateDashboard(ctx, dashboards.CreateRequest{
		Name:         name,
		Type:         typ,
		Config:       raw,
		CachedCharts: charts,
	})
	b.hooks.record(ctx, Operation{Controller: ControllerDashboards, Name: "create"}, err)
	if err != nil {
		b.fail(err)
		return nil, err
	}

	b.mu.Lock()
	b.dialog = DialogClosed
	b.last = d
	b.list = append([]dashboards.Dashboard{*d}, b.list...)
	b.mu.Unlock()
	b.changed()
	return d, nil
}

func (b *DashboardBridge) fail(err error) {
	b.mu.Lock()
	b.dialog = DialogOpen
	b.err = err
	b.mu.Unlock()
	b.changed()
}

// snapshot uploads the charts when a store is configured. Failures only
// lose the snapshot link; the dashboard still carries the charts inline.
func (b *DashboardBridge) snapshot(ctx context.Context, typ dashboards.Type, charts []analysis.Chart) string {
	if b.snapshots == nil || len(charts) == 0 {
		return ""
	}
	payload, err := json.Marshal(charts)
	if err != nil {
		b.hooks.Log.Warn().Err(err).Msg("encode dashboard snapshot")
		return ""
	}
	key := fmt.Sprintf("dashboards/%s/%s.json", typ, uuid.NewString())
	url, err := b.snapshots.PutSnapshot(ctx, key, payload)
	if err != nil {
		b.hooks.Log.Warn().Err(err).Str("key", key).Msg("upload dashboard snapshot")
		return ""
	}
	return url
}

// List loads the persisted dashboards
func (b *DashboardBridge) List(ctx context.Context) ([]dashboards.Dashboard, error) {
	list, err := b.api.ListDashboards(ctx)
	b.hooks.record(ctx, Operation{Controller: ControllerDashboards, Name: "list"}, err)

	b.mu.Lock()
	if err != nil {
		b.err = err
	} else {
		b.list = list
	}
	b.mu.Unlock()
	b.changed()
	return list, err
}

// Delete removes a persisted dashboard
func (b *DashboardBridge) Delete(ctx context.Context, id dashboards.ID) error {
	err := b.api.DeleteDashboard(ctx, id)
	b.hooks.record(ctx, Operation{Controller: ControllerDashboards, Name: "delete"}, err)

	b.mu.Lock()
	if err != nil {
		b.err = err
	} else {
		kept := b.list[:0:0]
		for _, d := range b.list {
			if d.ID != id {
				kept = append(kept, d)
			}
		}
		b.list = kept
		if b.last != nil && b.last.ID == id {
			b.last = nil
		}
	}
	b.mu.Unlock()
	b.changed()
	return err
}

func (b *DashboardBridge) DismissError() {
	b.mu.Lock()
	b.err = nil
	b.mu.Unlock()
	b.changed()
}
