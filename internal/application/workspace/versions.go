package workspace

import (
	"context"
	"strings"
	"sync"

	"github.com/bryanwahyu/analytics-workspace/internal/domain/analysis"
	"github.com/bryanwahyu/analytics-workspace/internal/domain/projects"
)

// VersionsState snapshot
type VersionsState struct {
	FileID            projects.FileID      `json:"file_id,omitempty"`
	Mode              analysis.Mode        `json:"mode"`
	Saved             []analysis.Record    `json:"saved"`
	Temporary         []analysis.Temporary `json:"temporary"`
	TempIndex         int                  `json:"temp_index"`
	Viewing           *analysis.Record     `json:"viewing,omitempty"`
	Analyzing         bool                 `json:"analyzing"`
	Deleting          bool                 `json:"deleting"`
	LoadingSaved      bool                 `json:"loading_saved"`
	NavigationWarning bool                 `json:"navigation_warning"`
	Error             *ErrorView           `json:"error,omitempty"`
}

// Current returns the temporary analysis shown in temp mode
func (s VersionsState) Current() (analysis.Temporary, bool) {
	if s.Mode != analysis.ModeTemp || s.TempIndex < 0 || s.TempIndex >= len(s.Temporary) {
		return analysis.Temporary{}, false
	}
	return s.Temporary[s.TempIndex], true
}

// AnalysisVersions manages the saved analyses of the bound file and the
// temporary ones generated during this session.
//
// The temporary list only grows, except on Save, BackToList and Bind to a
// different file. It is never written to the remote service implicitly.
type AnalysisVersions struct {
	mu        sync.Mutex
	api       analysis.Service
	hooks     Hooks
	projectID projects.ProjectID

	fileID  projects.FileID
	gen     uint64 // bumped on Bind
	listSeq uint64
	viewSeq uint64

	mode      analysis.Mode
	saved     []analysis.Record
	temp      []analysis.Temporary
	tempIdx   int
	viewing   *analysis.Record
	analyzing bool
	deleting  bool
	loading   bool
	err       error

	onSaved func(fileID projects.FileID, rec analysis.Record)

	events changes
}

func NewAnalysisVersions(projectID projects.ProjectID, api analysis.Service, hooks Hooks) *AnalysisVersions {
	return &AnalysisVersions{
		api:       api,
		hooks:     hooks.withDefaults(),
		projectID: projectID,
		mode:      analysis.ModeList,
		tempIdx:   -1,
	}
}

// OnSaved registers a callback run after an analysis was persisted
func (v *AnalysisVersions) OnSaved(fn func(fileID projects.FileID, rec analysis.Record)) {
	v.mu.Lock()
	v.onSaved = fn
	v.mu.Unlock()
}

func (v *AnalysisVersions) State() VersionsState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stateLocked()
}

func (v *AnalysisVersions) stateLocked() VersionsState {
	return VersionsState{
		FileID:            v.fileID,
		Mode:              v.mode,
		Saved:             append([]analysis.Record(nil), v.saved...),
		Temporary:         append([]analysis.Temporary(nil), v.temp...),
		TempIndex:         v.tempIdx,
		Viewing:           v.viewing,
		Analyzing:         v.analyzing,
		Deleting:          v.deleting,
		LoadingSaved:      v.loading,
		NavigationWarning: v.navigationWarningLocked(),
		Error:             viewOf(v.err),
	}
}

func (v *AnalysisVersions) changed() {
	v.mu.Lock()
	seq, st := v.events.stamp(), v.stateLocked()
	v.mu.Unlock()
	v.events.publish(v.hooks, ControllerVersions, v.projectID, seq, st)
}

// NavigationWarning reports unsaved temporary work that leaving would lose
func (v *AnalysisVersions) NavigationWarning() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.navigationWarningLocked()
}

func (v *AnalysisVersions) navigationWarningLocked() bool {
	return len(v.temp) > 0 && v.mode == analysis.ModeTemp
}

// Bind switches the manager to fileID (0 unbinds). Switching files is a
// navigation away: temporary work is discarded and in-flight responses for
// the previous file are dropped.
func (v *AnalysisVersions) Bind(fileID projects.FileID) {
	v.mu.Lock()
	if v.fileID == fileID {
		v.mu.Unlock()
		return
	}
	v.fileID = fileID
	v.gen++
	v.mode = analysis.ModeList
	v.saved = nil
	v.temp = nil
	v.tempIdx = -1
	v.viewing = nil
	v.analyzing = false
	v.deleting = false
	v.loading = false
	v.err = nil
	v.mu.Unlock()
	v.changed()
}

// LoadSaved fetches the saved analyses of the bound file
func (v *AnalysisVersions) LoadSaved(ctx context.Context) error {
	v.mu.Lock()
	if v.fileID == 0 {
		v.mu.Unlock()
		return ErrNoSelection
	}
	fileID, gen := v.fileID, v.gen
	v.listSeq++
	seq := v.listSeq
	v.loading = true
	v.mu.Unlock()
	v.changed()

	list, err := v.api.ListSaved(ctx, fileID)

	v.mu.Lock()
	if v.gen != gen || v.listSeq != seq {
		v.mu.Unlock()
		v.hooks.dropped(ControllerVersions, "list saved")
		return nil
	}
	v.loading = false
	if err != nil {
		v.err = err
	} else {
		v.saved = list
	}
	v.mu.Unlock()

	v.hooks.record(ctx, Operation{Controller: ControllerVersions, Name: "list saved", ProjectID: v.projectID}, err)
	v.changed()
	return err
}

// Generate requests a new analysis without persisting it, appends it to the
// temporary list and shows it.
func (v *AnalysisVersions) Generate(ctx context.Context, intent string) (*analysis.Temporary, error) {
	v.mu.Lock()
	if v.fileID == 0 {
		v.mu.Unlock()
		return nil, ErrNoSelection
	}
	if v.analyzing {
		v.mu.Unlock()
		return nil, ErrBusy
	}
	intent = strings.TrimSpace(intent)
	fileID, gen := v.fileID, v.gen
	v.analyzing = true
	v.mu.Unlock()
	v.changed()

	rec, err := v.api.Create(ctx, fileID, analysis.Request{Intent: intent, Save: false})

	v.mu.Lock()
	if v.gen != gen {
		v.mu.Unlock()
		v.hooks.dropped(ControllerVersions, "generate")
		return nil, nil
	}
	v.analyzing = false
	var out *analysis.Temporary
	if err != nil {
		v.err = err
	} else {
		t := rec.AsTemporary()
		if t.Intent == "" {
			t.Intent = intent
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = v.hooks.Clock.Now()
		}
		v.temp = append(v.temp, t)
		v.tempIdx = len(v.temp) - 1
		v.mode = analysis.ModeTemp
		v.viewing = nil
		v.err = nil
		out = &t
	}
	v.mu.Unlock()

	v.hooks.record(ctx, Operation{Controller: ControllerVersions, Name: "generate", ProjectID: v.projectID}, err)
	v.changed()
	return out, err
}

// Save requests a new analysis with persistence. On success the temporary
// list is discarded, the saved list reloaded and the view returns to list.
func (v *AnalysisVersions) Save(ctx context.Context, intent string) (*analysis.Record, error) {
	v.mu.Lock()
	if v.fileID == 0 {
		v.mu.Unlock()
		return nil, ErrNoSelection
	}
	if v.analyzing {
		v.mu.Unlock()
		return nil, ErrBusy
	}
	intent = strings.TrimSpace(intent)
	fileID, gen := v.fileID, v.gen
	v.analyzing = true
	v.mu.Unlock()
	v.changed()

	rec, err := v.api.Create(ctx, fileID, analysis.Request{Intent: intent, Save: true})

	v.mu.Lock()
	if v.gen != gen {
		v.mu.Unlock()
		v.hooks.dropped(ControllerVersions, "save")
		return nil, nil
	}
	if err != nil {
		v.analyzing = false
		v.err = err
		v.mu.Unlock()
		v.hooks.record(ctx, Operation{Controller: ControllerVersions, Name: "save", ProjectID: v.projectID}, err)
		v.changed()
		return nil, err
	}
	if rec.Intent == "" {
		rec.Intent = intent
	}
	v.temp = nil
	v.tempIdx = -1
	v.viewing = nil
	v.mode = analysis.ModeList
	v.err = nil
	onSaved := v.onSaved
	v.mu.Unlock()

	v.hooks.record(ctx, Operation{Controller: ControllerVersions, Name: "save", ProjectID: v.projectID}, nil)
	if onSaved != nil {
		onSaved(fileID, *rec)
	}

	list, lerr := v.api.ListSaved(ctx, fileID)

	v.mu.Lock()
	if v.gen == gen {
		v.analyzing = false
		if lerr != nil {
			// keep the new record visible even though the reload failed
			v.saved = upsertRecord(v.saved, *rec)
			v.err = lerr
		} else {
			v.saved = list
		}
	}
	v.mu.Unlock()

	v.hooks.record(ctx, Operation{Controller: ControllerVersions, Name: "list saved", ProjectID: v.projectID}, lerr)
	v.changed()
	return rec, nil
}

// View fetches one persisted analysis and shows it
func (v *AnalysisVersions) View(ctx context.Context, id analysis.ID) (*analysis.Record, error) {
	v.mu.Lock()
	if v.fileID == 0 {
		v.mu.Unlock()
		return nil, ErrNoSelection
	}
	gen := v.gen
	v.viewSeq++
	seq := v.viewSeq
	v.mu.Unlock()

	rec, err := v.api.GetSaved(ctx, id)

	v.mu.Lock()
	if v.gen != gen || v.viewSeq != seq {
		v.mu.Unlock()
		v.hooks.dropped(ControllerVersions, "view")
		return nil, nil
	}
	if err != nil {
		v.err = err
	} else {
		v.viewing = rec
		v.mode = analysis.ModeView
		v.err = nil
	}
	v.mu.Unlock()

	v.hooks.record(ctx, Operation{Controller: ControllerVersions, Name: "view", ProjectID: v.projectID}, err)
	v.changed()
	return rec, err
}

// Delete removes a persisted analysis. If it is the one shown the view
// falls back to list.
func (v *AnalysisVersions) Delete(ctx context.Context, id analysis.ID) error {
	v.mu.Lock()
	if v.fileID == 0 {
		v.mu.Unlock()
		return ErrNoSelection
	}
	if v.deleting {
		v.mu.Unlock()
		return ErrBusy
	}
	gen := v.gen
	v.deleting = true
	v.mu.Unlock()
	v.changed()

	err := v.api.DeleteSaved(ctx, id)

	v.mu.Lock()
	if v.gen != gen {
		v.mu.Unlock()
		v.hooks.dropped(ControllerVersions, "delete")
		return nil
	}
	v.deleting = false
	if err != nil {
		v.err = err
	} else {
		v.err = nil
		kept := v.saved[:0:0]
		for _, r := range v.saved {
			if r.ID != id {
				kept = append(kept, r)
			}
		}
		v.saved = kept
		if v.mode == analysis.ModeView && v.viewing != nil && v.viewing.ID == id {
			v.viewing = nil
			v.mode = analysis.ModeList
		}
	}
	v.mu.Unlock()

	v.hooks.record(ctx, Operation{Controller: ControllerVersions, Name: "delete", ProjectID: v.projectID}, err)
	v.changed()
	return err
}

// SelectTemp shows the i-th temporary analysis
func (v *AnalysisVersions) SelectTemp(i int) error {
	v.mu.Lock()
	if i < 0 || i >= len(v.temp) {
		v.mu.Unlock()
		return ErrUnknownTemporary
	}
	v.tempIdx = i
	v.mode = analysis.ModeTemp
	v.viewing = nil
	v.mu.Unlock()
	v.changed()
	return nil
}

// BackToList clears temporary state and returns to list unconditionally
func (v *AnalysisVersions) BackToList() {
	v.mu.Lock()
	v.temp = nil
	v.tempIdx = -1
	v.viewing = nil
	v.mode = analysis.ModeList
	v.mu.Unlock()
	v.changed()
}

func (v *AnalysisVersions) DismissError() {
	v.mu.Lock()
	v.err = nil
	v.mu.Unlock()
	v.changed()
}

func upsertRecord(list []analysis.Record, rec analysis.Record) []analysis.Record {
	for i := range list {
		if list[i].ID == rec.ID {
			list[i] = rec
			return list
		}
	}
	return append([]analysis.Record{rec}, list...)
}
