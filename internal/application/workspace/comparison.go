package workspace

import (
	"context"
	"sync"

	"github.com/bryanwahyu/analytics-workspace/internal/domain/comparison"
	"github.com/bryanwahyu/analytics-workspace/internal/domain/dashboards"
	"github.com/bryanwahyu/analytics-workspace/internal/domain/projects"
)

// ComparisonState snapshot
type ComparisonState struct {
	FileAID    projects.FileID    `json:"file_a_id,omitempty"`
	FileBID    projects.FileID    `json:"file_b_id,omitempty"`
	Type       comparison.Type    `json:"comparison_type"`
	CanCompare bool               `json:"can_compare"`
	Comparing  bool               `json:"comparing"`
	Result     *comparison.Result `json:"result,omitempty"`
	Error      *ErrorView         `json:"error,omitempty"`
}

// ComparisonFlow drives the two-file comparison workflow of one project
type ComparisonFlow struct {
	mu     sync.Mutex
	api    comparison.Service
	bridge *DashboardBridge
	hooks  Hooks

	project   projects.Project
	fileA     projects.FileID
	fileB     projects.FileID
	typ       comparison.Type
	result    *comparison.Result
	comparing bool
	gen       uint64
	err       error

	events changes
}

// NewComparisonFlow refuses projects with fewer than two files
func NewComparisonFlow(project projects.Project, api comparison.Service, bridge *DashboardBridge, hooks Hooks) (*ComparisonFlow, error) {
	if !project.SupportsPairs() {
		return nil, ErrNotEnoughFiles
	}
	return &ComparisonFlow{
		api:     api,
		bridge:  bridge,
		hooks:   hooks.withDefaults(),
		project: project,
		typ:     comparison.DefaultType,
	}, nil
}

func (f *ComparisonFlow) State() ComparisonState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stateLocked()
}

func (f *ComparisonFlow) stateLocked() ComparisonState {
	return ComparisonState{
		FileAID:    f.fileA,
		FileBID:    f.fileB,
		Type:       f.typ,
		CanCompare: f.canCompareLocked(),
		Comparing:  f.comparing,
		Result:     f.result,
		Error:      viewOf(f.err),
	}
}

func (f *ComparisonFlow) changed() {
	f.mu.Lock()
	seq, st := f.events.stamp(), f.stateLocked()
	f.mu.Unlock()
	f.events.publish(f.hooks, ControllerComparison, f.project.ID, seq, st)
}

// SetFileA fills slot A. 0 clears it.
func (f *ComparisonFlow) SetFileA(id projects.FileID) error {
	return f.setFile(&f.fileA, &f.fileB, id)
}

// SetFileB fills slot B. 0 clears it.
func (f *ComparisonFlow) SetFileB(id projects.FileID) error {
	return f.setFile(&f.fileB, &f.fileA, id)
}

func (f *ComparisonFlow) setFile(slot, other *projects.FileID, id projects.FileID) error {
	f.mu.Lock()
	if id != 0 {
		if _, ok := f.project.File(id); !ok {
			f.mu.Unlock()
			return ErrUnknownFile
		}
		if *other == id {
			f.mu.Unlock()
			return ErrSameFile
		}
	}
	if *slot == id {
		f.mu.Unlock()
		return nil
	}
	*slot = id
	f.invalidateLocked()
	f.mu.Unlock()
	f.changed()
	return nil
}

// SetFiles fills both slots in one step, so swapping them is a single call.
// 0 clears a slot.
func (f *ComparisonFlow) SetFiles(a, b projects.FileID) error {
	f.mu.Lock()
	if err := checkPair(f.project, a, b); err != nil {
		f.mu.Unlock()
		return err
	}
	if f.fileA == a && f.fileB == b {
		f.mu.Unlock()
		return nil
	}
	f.fileA, f.fileB = a, b
	f.invalidateLocked()
	f.mu.Unlock()
	f.changed()
	return nil
}

// checkPair validates a pair of slot values taken together
func checkPair(p projects.Project, a, b projects.FileID) error {
	for _, id := range [2]projects.FileID{a, b} {
		if id == 0 {
			continue
		}
		if _, ok := p.File(id); !ok {
			return ErrUnknownFile
		}
	}
	if a != 0 && a == b {
		return ErrSameFile
	}
	return nil
}

// FileAOptions lists the files slot A may take
func (f *ComparisonFlow) FileAOptions() []projects.File {
	f.mu.Lock()
	defer f.mu.Unlock()
	return filesExcept(f.project.Files, f.fileB)
}

// FileBOptions lists the files slot B may take
func (f *ComparisonFlow) FileBOptions() []projects.File {
	f.mu.Lock()
	defer f.mu.Unlock()
	return filesExcept(f.project.Files, f.fileA)
}

func (f *ComparisonFlow) SetType(t comparison.Type) error {
	if !t.Valid() {
		return ErrInvalidComparisonType
	}
	f.mu.Lock()
	if f.typ == t {
		f.mu.Unlock()
		return nil
	}
	f.typ = t
	f.invalidateLocked()
	f.mu.Unlock()
	f.changed()
	return nil
}

// invalidateLocked drops the result and any in-flight compare for the
// previous configuration
func (f *ComparisonFlow) invalidateLocked() {
	f.gen++
	f.result = nil
	f.comparing = false
	f.err = nil
}

// CanCompare is true iff both files are chosen and distinct
func (f *ComparisonFlow) CanCompare() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.canCompareLocked()
}

func (f *ComparisonFlow) canCompareLocked() bool {
	return f.fileA != 0 && f.fileB != 0 && f.fileA != f.fileB
}

// Compare issues one comparison for the current configuration
func (f *ComparisonFlow) Compare(ctx context.Context) (*comparison.Result, error) {
	f.mu.Lock()
	if !f.canCompareLocked() {
		f.mu.Unlock()
		return nil, ErrCannotCompare
	}
	if f.comparing {
		f.mu.Unlock()
		return nil, ErrBusy
	}
	req := comparison.Request{FileAID: f.fileA, FileBID: f.fileB, Type: f.typ}
	gen := f.gen
	f.comparing = true
	f.err = nil
	f.mu.Unlock()
	f.changed()

	res, err := f.api.Compare(ctx, req)

	f.mu.Lock()
	if f.gen != gen {
		f.mu.Unlock()
		f.hooks.dropped(ControllerComparison, "compare")
		return nil, nil
	}
	f.comparing = false
	if err != nil {
		f.err = err
	} else {
		f.result = res
	}
	f.mu.Unlock()

	f.hooks.record(ctx, Operation{Controller: ControllerComparison, Name: "compare", ProjectID: f.project.ID}, err)
	f.changed()
	return res, err
}

// Reset returns to the selection form keeping both files
func (f *ComparisonFlow) Reset() {
	f.mu.Lock()
	f.invalidateLocked()
	f.mu.Unlock()
	f.changed()
}

// SaveAsDashboard persists the current result
func (f *ComparisonFlow) SaveAsDashboard(ctx context.Context, name string) (*dashboards.Dashboard, error) {
	f.mu.Lock()
	res := f.result
	f.mu.Unlock()
	if res == nil {
		return nil, ErrNoResult
	}
	return f.bridge.SaveComparison(ctx, name, *res)
}

func (f *ComparisonFlow) DismissError() {
	f.mu.Lock()
	f.err = nil
	f.mu.Unlock()
	f.changed()
}

func filesExcept(files []projects.File, id projects.FileID) []projects.File {
	out := make([]projects.File, 0, len(files))
	for _, file := range files {
		if file.ID != id {
			out = append(out, file)
		}
	}
	return out
}
