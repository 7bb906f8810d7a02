package workspace

import (
	"context"
	"strings"
	"sync"

	"github.com/bryanwahyu/analytics-workspace/internal/domain/dashboards"
	"github.com/bryanwahyu/analytics-workspace/internal/domain/merge"
	"github.com/bryanwahyu/analytics-workspace/internal/domain/projects"
)

// MergeStep of the wizard
type MergeStep int

const (
	StepSelect MergeStep = iota + 1
	StepMapKeys
	StepReview
)

func (s MergeStep) String() string {
	switch s {
	case StepSelect:
		return "select"
	case StepMapKeys:
		return "map_keys"
	case StepReview:
		return "review"
	}
	return "unknown"
}

// MergeStage names the remote call of Execute that failed
type MergeStage string

const (
	StageCreateRelationship MergeStage = "create_relationship"
	StageAnalyze            MergeStage = "analyze"
)

// StageError is a failed Execute. A StageAnalyze failure means a
// relationship was created server-side and left in place.
type StageError struct {
	Stage MergeStage
	Err   error
}

func (e *StageError) Error() string { return string(e.Stage) + ": " + e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }

// MergeState snapshot
type MergeState struct {
	Step         MergeStep           `json:"step"`
	StepName     string              `json:"step_name"`
	FileAID      projects.FileID     `json:"file_a_id,omitempty"`
	FileBID      projects.FileID     `json:"file_b_id,omitempty"`
	JoinType     merge.JoinType      `json:"join_type"`
	LeftKey      string              `json:"left_key"`
	RightKey     string              `json:"right_key"`
	Suffixes     *merge.Suffixes     `json:"suffixes,omitempty"`
	CanGoNext    bool                `json:"can_go_next"`
	Executing    bool                `json:"executing"`
	Relationship *merge.Relationship `json:"relationship,omitempty"`
	Result       *merge.Result       `json:"result,omitempty"`
	FailedStage  MergeStage          `json:"failed_stage,omitempty"`
	Error        *ErrorView          `json:"error,omitempty"`
}

// MergeFlow is the three-step join wizard of one project.
//
// Execute chains relationship creation and analysis. The analysis call is
// never issued when creation fails, and a retry runs both calls again.
type MergeFlow struct {
	mu     sync.Mutex
	api    merge.Service
	bridge *DashboardBridge
	hooks  Hooks

	project   projects.Project
	step      MergeStep
	fileA     projects.FileID
	fileB     projects.FileID
	join      merge.JoinType
	leftKey   string
	rightKey  string
	suffixes  *merge.Suffixes
	executing bool
	rel       *merge.Relationship
	result    *merge.Result
	gen       uint64
	err       error

	events changes
}

// NewMergeFlow refuses projects with fewer than two files
func NewMergeFlow(project projects.Project, api merge.Service, bridge *DashboardBridge, hooks Hooks) (*MergeFlow, error) {
	if !project.SupportsPairs() {
		return nil, ErrNotEnoughFiles
	}
	return &MergeFlow{
		api:     api,
		bridge:  bridge,
		hooks:   hooks.withDefaults(),
		project: project,
		step:    StepSelect,
		join:    merge.JoinInner,
	}, nil
}

func (f *MergeFlow) State() MergeState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stateLocked()
}

func (f *MergeFlow) stateLocked() MergeState {
	st := MergeState{
		Step:         f.step,
		StepName:     f.step.String(),
		FileAID:      f.fileA,
		FileBID:      f.fileB,
		JoinType:     f.join,
		LeftKey:      f.leftKey,
		RightKey:     f.rightKey,
		Suffixes:     f.suffixes,
		CanGoNext:    f.canGoNextLocked(),
		Executing:    f.executing,
		Relationship: f.rel,
		Result:       f.result,
		Error:        viewOf(f.err),
	}
	if se, ok := f.err.(*StageError); ok {
		st.FailedStage = se.Stage
	}
	return st
}

func (f *MergeFlow) changed() {
	f.mu.Lock()
	seq, st := f.events.stamp(), f.stateLocked()
	f.mu.Unlock()
	f.events.publish(f.hooks, ControllerMerge, f.project.ID, seq, st)
}

// mutate runs fn under the lock when the wizard is on step; fn reports
// whether state changed
func (f *MergeFlow) mutate(step MergeStep, fn func() (bool, error)) error {
	f.mu.Lock()
	if f.step != step {
		f.mu.Unlock()
		return ErrWrongStep
	}
	ok, err := fn()
	f.mu.Unlock()
	if err != nil {
		return err
	}
	if ok {
		f.changed()
	}
	return nil
}

// SetFileA picks the left file; its join key is cleared
func (f *MergeFlow) SetFileA(id projects.FileID) error {
	return f.mutate(StepSelect, func() (bool, error) {
		return f.setFileLocked(&f.fileA, f.fileB, &f.leftKey, id)
	})
}

// SetFileB picks the right file; its join key is cleared
func (f *MergeFlow) SetFileB(id projects.FileID) error {
	return f.mutate(StepSelect, func() (bool, error) {
		return f.setFileLocked(&f.fileB, f.fileA, &f.rightKey, id)
	})
}

// SetFiles picks both files in one step; a slot whose file changes loses
// its join key
func (f *MergeFlow) SetFiles(a, b projects.FileID) error {
	return f.mutate(StepSelect, func() (bool, error) {
		if err := checkPair(f.project, a, b); err != nil {
			return false, err
		}
		changed := false
		if f.fileA != a {
			f.fileA, f.leftKey = a, ""
			changed = true
		}
		if f.fileB != b {
			f.fileB, f.rightKey = b, ""
			changed = true
		}
		return changed, nil
	})
}

func (f *MergeFlow) setFileLocked(slot *projects.FileID, other projects.FileID, key *string, id projects.FileID) (bool, error) {
	if id != 0 {
		if _, ok := f.project.File(id); !ok {
			return false, ErrUnknownFile
		}
		if other == id {
			return false, ErrSameFile
		}
	}
	if *slot == id {
		return false, nil
	}
	*slot = id
	*key = ""
	return true, nil
}

// FileBOptions lists the files the right slot may take
func (f *MergeFlow) FileBOptions() []projects.File {
	f.mu.Lock()
	defer f.mu.Unlock()
	return filesExcept(f.project.Files, f.fileA)
}

// FileAOptions lists the files the left slot may take
func (f *MergeFlow) FileAOptions() []projects.File {
	f.mu.Lock()
	defer f.mu.Unlock()
	return filesExcept(f.project.Files, f.fileB)
}

func (f *MergeFlow) SetJoinType(j merge.JoinType) error {
	if !j.Valid() {
		return ErrInvalidJoinType
	}
	return f.mutate(StepSelect, func() (bool, error) {
		changed := f.join != j
		f.join = j
		return changed, nil
	})
}

func (f *MergeFlow) SetLeftKey(col string) error {
	return f.mutate(StepMapKeys, func() (bool, error) {
		changed := f.leftKey != col
		f.leftKey = col
		return changed, nil
	})
}

func (f *MergeFlow) SetRightKey(col string) error {
	return f.mutate(StepMapKeys, func() (bool, error) {
		changed := f.rightKey != col
		f.rightKey = col
		return changed, nil
	})
}

// SetSuffixes sets the collision suffixes; nil leaves them to the service
func (f *MergeFlow) SetSuffixes(s *merge.Suffixes) error {
	return f.mutate(StepMapKeys, func() (bool, error) {
		if s != nil && strings.TrimSpace(s.Left) == "" && strings.TrimSpace(s.Right) == "" {
			s = nil
		}
		f.suffixes = s
		return true, nil
	})
}

// Columns returns the key candidates from each file's cached schema
func (f *MergeFlow) Columns() (left, right []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.project.File(f.fileA); ok {
		left = a.Schema.ColumnNames()
	}
	if b, ok := f.project.File(f.fileB); ok {
		right = b.Schema.ColumnNames()
	}
	return left, right
}

func (f *MergeFlow) CanGoNext() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.canGoNextLocked()
}

func (f *MergeFlow) canGoNextLocked() bool {
	switch f.step {
	case StepSelect:
		return f.fileA != 0 && f.fileB != 0 && f.fileA != f.fileB
	case StepMapKeys:
		return f.leftKey != "" && f.rightKey != ""
	}
	return false
}

func (f *MergeFlow) NextStep() error {
	f.mu.Lock()
	if !f.canGoNextLocked() {
		f.mu.Unlock()
		return ErrStepIncomplete
	}
	f.step++
	f.mu.Unlock()
	f.changed()
	return nil
}

// PrevStep goes back one step, abandoning any in-flight execution
func (f *MergeFlow) PrevStep() error {
	f.mu.Lock()
	if f.step == StepSelect {
		f.mu.Unlock()
		return ErrWrongStep
	}
	if f.step == StepReview {
		f.gen++
		f.executing = false
		f.rel = nil
		f.result = nil
		f.err = nil
	}
	f.step--
	f.mu.Unlock()
	f.changed()
	return nil
}

// Execute creates the relationship and then analyzes it
func (f *MergeFlow) Execute(ctx context.Context) (*merge.Result, error) {
	f.mu.Lock()
	if f.step != StepReview {
		f.mu.Unlock()
		return nil, ErrWrongStep
	}
	if f.executing {
		f.mu.Unlock()
		return nil, ErrBusy
	}
	req := merge.RelationshipRequest{
		FileAID:  f.fileA,
		FileBID:  f.fileB,
		JoinType: f.join,
		LeftKey:  f.leftKey,
		RightKey: f.rightKey,
		Suffixes: f.suffixes,
	}
	f.gen++
	gen := f.gen
	f.executing = true
	f.rel = nil
	f.result = nil
	f.err = nil
	f.mu.Unlock()
	f.changed()

	rel, err := f.api.CreateRelationship(ctx, req)
	f.hooks.record(ctx, Operation{Controller: ControllerMerge, Name: string(StageCreateRelationship), ProjectID: f.project.ID}, err)
	if err != nil {
		return nil, f.finish(gen, nil, nil, &StageError{Stage: StageCreateRelationship, Err: err})
	}

	f.mu.Lock()
	if f.gen != gen {
		f.mu.Unlock()
		f.hooks.dropped(ControllerMerge, string(StageCreateRelationship))
		return nil, nil
	}
	f.rel = rel
	f.mu.Unlock()
	f.changed()

	res, err := f.api.AnalyzeRelationship(ctx, rel.ID)
	f.hooks.record(ctx, Operation{Controller: ControllerMerge, Name: string(StageAnalyze), ProjectID: f.project.ID}, err)
	if err != nil {
		return nil, f.finish(gen, rel, nil, &StageError{Stage: StageAnalyze, Err: err})
	}
	if err := f.finish(gen, rel, res, nil); err != nil {
		return nil, err
	}
	return res, nil
}

// Retry re-runs both calls from scratch; a relationship created by a
// failed attempt is not reused
func (f *MergeFlow) Retry(ctx context.Context) (*merge.Result, error) {
	return f.Execute(ctx)
}

// finish applies the outcome unless the execution went stale. It returns
// the error to hand back to the caller.
func (f *MergeFlow) finish(gen uint64, rel *merge.Relationship, res *merge.Result, err error) error {
	f.mu.Lock()
	if f.gen != gen {
		f.mu.Unlock()
		f.hooks.dropped(ControllerMerge, "execute")
		return nil
	}
	f.executing = false
	f.rel = rel
	f.result = res
	f.err = nil
	if err != nil {
		f.err = err
	}
	f.mu.Unlock()
	f.changed()
	return err
}

// Reset returns to step 1 and clears every selection and the result
func (f *MergeFlow) Reset() {
	f.mu.Lock()
	f.gen++
	f.step = StepSelect
	f.fileA, f.fileB = 0, 0
	f.join = merge.JoinInner
	f.leftKey, f.rightKey = "", ""
	f.suffixes = nil
	f.executing = false
	f.rel = nil
	f.result = nil
	f.err = nil
	f.mu.Unlock()
	f.changed()
}

// SaveAsDashboard persists the merge result with its relationship
func (f *MergeFlow) SaveAsDashboard(ctx context.Context, name string) (*dashboards.Dashboard, error) {
	f.mu.Lock()
	rel, res := f.rel, f.result
	f.mu.Unlock()
	if res == nil || rel == nil {
		return nil, ErrNoResult
	}
	return f.bridge.SaveMerge(ctx, name, *rel, *res)
}

func (f *MergeFlow) DismissError() {
	f.mu.Lock()
	f.err = nil
	f.mu.Unlock()
	f.changed()
}
