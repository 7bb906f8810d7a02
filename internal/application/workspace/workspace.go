package workspace

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/bryanwahyu/analytics-workspace/internal/domain/analysis"
	"github.com/bryanwahyu/analytics-workspace/internal/domain/chat"
	"github.com/bryanwahyu/analytics-workspace/internal/domain/comparison"
	"github.com/bryanwahyu/analytics-workspace/internal/domain/dashboards"
	"github.com/bryanwahyu/analytics-workspace/internal/domain/merge"
	"github.com/bryanwahyu/analytics-workspace/internal/domain/projects"
)

// Backend is every remote operation the workspace drives
type Backend interface {
	projects.Source
	analysis.Service
	comparison.Service
	merge.Service
	chat.Service
	dashboards.Service
}

// ProjectView is the combined state of one open project
type ProjectView struct {
	Project   projects.Project `json:"project"`
	Selection SelectionState   `json:"selection"`
	Versions  VersionsState    `json:"versions"`
	Chat      ChatState        `json:"chat"`
}

type projectSlot struct {
	// switching serializes file switches so the selection, version manager
	// and chat always end up bound to the same file
	switching sync.Mutex

	selection *FileSelection
	versions  *AnalysisVersions
	chat      *ChatSession
}

// Workspace composes the controllers of the open projects. Controllers never
// share state; cross-controller effects such as clearing chat on a file
// switch are explicit calls made here.
type Workspace struct {
	mu      sync.Mutex
	backend Backend
	hooks   Hooks
	bridge  *DashboardBridge

	open        map[projects.ProjectID]*projectSlot
	comparisons map[projects.ProjectID]*ComparisonFlow
	merges      map[projects.ProjectID]*MergeFlow
}

// New builds an empty workspace. snapshots may be nil.
func New(backend Backend, snapshots dashboards.SnapshotStore, hooks Hooks) *Workspace {
	hooks = hooks.withDefaults()
	return &Workspace{
		backend:     backend,
		hooks:       hooks,
		bridge:      NewDashboardBridge(backend, snapshots, hooks),
		open:        make(map[projects.ProjectID]*projectSlot),
		comparisons: make(map[projects.ProjectID]*ComparisonFlow),
		merges:      make(map[projects.ProjectID]*MergeFlow),
	}
}

// Projects lists the projects available to open
func (w *Workspace) Projects(ctx context.Context) ([]projects.Project, error) {
	list, err := w.backend.ListProjects(ctx)
	w.hooks.record(ctx, Operation{Controller: ControllerSelection, Name: "list projects"}, err)
	return list, err
}

// Open loads the given projects concurrently and builds their controllers.
// Projects already open are refreshed only if they have no file selected.
func (w *Workspace) Open(ctx context.Context, ids ...projects.ProjectID) error {
	loaded := make([]*projects.Project, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, id := range ids {
		g.Go(func() error {
			p, err := w.backend.GetProject(gctx, id)
			w.hooks.record(gctx, Operation{Controller: ControllerSelection, Name: "get project", ProjectID: id}, err)
			if err != nil {
				return err
			}
			loaded[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, p := range loaded {
		if slot, ok := w.open[p.ID]; ok {
			if _, selected := slot.selection.Current(); selected {
				continue
			}
		}
		w.open[p.ID] = w.newSlot(*p)
	}
	return nil
}

func (w *Workspace) newSlot(p projects.Project) *projectSlot {
	hooks := w.hooks
	hooks.Log = w.hooks.Log.With().Int64("project_id", int64(p.ID)).Logger()

	slot := &projectSlot{
		selection: NewFileSelection(p, w.backend, hooks),
		versions:  NewAnalysisVersions(p.ID, w.backend, hooks),
		chat:      NewChatSession(p.ID, w.backend, hooks),
	}
	slot.versions.OnSaved(func(fileID projects.FileID, rec analysis.Record) {
		slot.selection.MarkAnalyzed(fileID, &rec)
	})
	return slot
}

// Close forgets a project and its workflows
func (w *Workspace) Close(id projects.ProjectID) {
	w.mu.Lock()
	delete(w.open, id)
	delete(w.comparisons, id)
	delete(w.merges, id)
	w.mu.Unlock()
}

func (w *Workspace) slot(id projects.ProjectID) (*projectSlot, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.open[id]
	if !ok {
		return nil, ErrProjectNotOpen
	}
	return s, nil
}

// OpenProjects returns the ids of the open projects in ascending order
func (w *Workspace) OpenProjects() []projects.ProjectID {
	w.mu.Lock()
	defer w.mu.Unlock()
	ids := make([]projects.ProjectID, 0, len(w.open))
	for id := range w.open {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// View returns the combined state of one open project
func (w *Workspace) View(id projects.ProjectID) (ProjectView, error) {
	s, err := w.slot(id)
	if err != nil {
		return ProjectView{}, err
	}
	return ProjectView{
		Project:   s.selection.Project(),
		Selection: s.selection.State(),
		Versions:  s.versions.State(),
		Chat:      s.chat.State(),
	}, nil
}

// SelectFile makes fileID current in its project, rebinds the version
// manager and chat to it, then loads the persisted analysis and the saved list.
// Concurrent switches on one project are applied one after another; only the
// network loads overlap.
func (w *Workspace) SelectFile(ctx context.Context, projectID projects.ProjectID, fileID projects.FileID) error {
	s, err := w.slot(projectID)
	if err != nil {
		return err
	}
	file, ok := s.selection.Project().File(fileID)
	if !ok {
		return ErrUnknownFile
	}

	s.switching.Lock()
	if cur, ok := s.selection.Current(); ok && cur.ID == fileID {
		s.switching.Unlock()
		return nil
	}
	gen, load, err := s.selection.begin(fileID)
	if err != nil {
		s.switching.Unlock()
		return err
	}
	s.versions.Bind(fileID)
	s.chat.Bind(file.UploadID)
	s.switching.Unlock()

	var g errgroup.Group
	if load {
		g.Go(func() error { return s.selection.fetch(ctx, fileID, gen) })
	}
	g.Go(func() error {
		// a deselect issued meanwhile wins
		if err := s.versions.LoadSaved(ctx); !errors.Is(err, ErrNoSelection) {
			return err
		}
		return nil
	})
	return g.Wait()
}

// DeselectFile clears the current file of a project
func (w *Workspace) DeselectFile(projectID projects.ProjectID) error {
	s, err := w.slot(projectID)
	if err != nil {
		return err
	}
	s.switching.Lock()
	defer s.switching.Unlock()
	s.selection.Deselect()
	s.versions.Bind(0)
	s.chat.Bind("")
	return nil
}

func (w *Workspace) Selection(projectID projects.ProjectID) (*FileSelection, error) {
	s, err := w.slot(projectID)
	if err != nil {
		return nil, err
	}
	return s.selection, nil
}

func (w *Workspace) Versions(projectID projects.ProjectID) (*AnalysisVersions, error) {
	s, err := w.slot(projectID)
	if err != nil {
		return nil, err
	}
	return s.versions, nil
}

func (w *Workspace) Chat(projectID projects.ProjectID) (*ChatSession, error) {
	s, err := w.slot(projectID)
	if err != nil {
		return nil, err
	}
	return s.chat, nil
}

// OpenComparison starts a fresh comparison workflow for a project
func (w *Workspace) OpenComparison(projectID projects.ProjectID) (*ComparisonFlow, error) {
	s, err := w.slot(projectID)
	if err != nil {
		return nil, err
	}
	f, err := NewComparisonFlow(s.selection.Project(), w.backend, w.bridge, w.hooks)
	if err != nil {
		return nil, err
	}
	w.mu.Lock()
	w.comparisons[projectID] = f
	w.mu.Unlock()
	return f, nil
}

func (w *Workspace) Comparison(projectID projects.ProjectID) (*ComparisonFlow, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	f, ok := w.comparisons[projectID]
	if !ok {
		return nil, ErrFlowNotOpen
	}
	return f, nil
}

func (w *Workspace) CloseComparison(projectID projects.ProjectID) {
	w.mu.Lock()
	delete(w.comparisons, projectID)
	w.mu.Unlock()
}

// OpenMerge starts a fresh merge wizard for a project
func (w *Workspace) OpenMerge(projectID projects.ProjectID) (*MergeFlow, error) {
	s, err := w.slot(projectID)
	if err != nil {
		return nil, err
	}
	f, err := NewMergeFlow(s.selection.Project(), w.backend, w.bridge, w.hooks)
	if err != nil {
		return nil, err
	}
	w.mu.Lock()
	w.merges[projectID] = f
	w.mu.Unlock()
	return f, nil
}

func (w *Workspace) Merge(projectID projects.ProjectID) (*MergeFlow, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	f, ok := w.merges[projectID]
	if !ok {
		return nil, ErrFlowNotOpen
	}
	return f, nil
}

func (w *Workspace) CloseMerge(projectID projects.ProjectID) {
	w.mu.Lock()
	delete(w.merges, projectID)
	w.mu.Unlock()
}

func (w *Workspace) Dashboards() *DashboardBridge { return w.bridge }

// NavigationWarnings lists the projects holding unsaved temporary analyses
// on screen
func (w *Workspace) NavigationWarnings() []projects.ProjectID {
	var out []projects.ProjectID
	for _, id := range w.OpenProjects() {
		s, err := w.slot(id)
		if err != nil {
			continue
		}
		if s.versions.NavigationWarning() {
			out = append(out, id)
		}
	}
	return out
}
