package workspace

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bryanwahyu/analytics-workspace/internal/application"
	"github.com/bryanwahyu/analytics-workspace/internal/domain/analysis"
	"github.com/bryanwahyu/analytics-workspace/internal/domain/chat"
	"github.com/bryanwahyu/analytics-workspace/internal/domain/comparison"
	"github.com/bryanwahyu/analytics-workspace/internal/domain/dashboards"
	"github.com/bryanwahyu/analytics-workspace/internal/domain/merge"
	"github.com/bryanwahyu/analytics-workspace/internal/domain/projects"
	"github.com/bryanwahyu/analytics-workspace/internal/infra/remote"
)

var testNow = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func testHooks() Hooks {
	return Hooks{Clock: application.FixedClock{T: testNow}}
}

// gate parks the next call of one operation until released
type gate struct {
	entered chan struct{}
	release chan struct{}
}

func (g *gate) waitEntered() { <-g.entered }

func (g *gate) open() { close(g.release) }

type fakeBackend struct {
	mu    sync.Mutex
	calls []string
	gates map[string]*gate

	projects map[projects.ProjectID]projects.Project

	current  map[projects.FileID]*analysis.Record
	getErr   map[projects.FileID]error
	saved    map[projects.FileID][]analysis.Record
	nextID   analysis.ID
	createFn func(fileID projects.FileID, req analysis.Request) (*analysis.Record, error)
	listErr  error
	viewErr  error
	delErr   error

	compareErr error
	compareReq []comparison.Request

	relErr     error
	analyzeErr error
	relReq     []merge.RelationshipRequest
	nextRelID  merge.RelationshipID

	chatErr     error
	chatQueries []chat.Query

	dashErr    error
	dashReq    []dashboards.CreateRequest
	dashboards []dashboards.Dashboard
}

func newFakeBackend(ps ...projects.Project) *fakeBackend {
	f := &fakeBackend{
		gates:    make(map[string]*gate),
		projects: make(map[projects.ProjectID]projects.Project),
		current:  make(map[projects.FileID]*analysis.Record),
		getErr:   make(map[projects.FileID]error),
		saved:    make(map[projects.FileID][]analysis.Record),
		nextID:   100,
	}
	for _, p := range ps {
		f.projects[p.ID] = p
	}
	return f
}

// hold installs a gate for the next call of op
func (f *fakeBackend) hold(op string) *gate {
	g := &gate{entered: make(chan struct{}), release: make(chan struct{})}
	f.mu.Lock()
	f.gates[op] = g
	f.mu.Unlock()
	return g
}

func (f *fakeBackend) enter(op string) {
	f.mu.Lock()
	f.calls = append(f.calls, op)
	g := f.gates[op]
	delete(f.gates, op)
	f.mu.Unlock()
	if g != nil {
		close(g.entered)
		<-g.release
	}
}

func (f *fakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeBackend) count(op string) int {
	n := 0
	for _, c := range f.Calls() {
		if c == op {
			n++
		}
	}
	return n
}

func (f *fakeBackend) ListProjects(ctx context.Context) ([]projects.Project, error) {
	f.enter("list_projects")
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]projects.Project, 0, len(f.projects))
	for _, p := range f.projects {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeBackend) GetProject(ctx context.Context, id projects.ProjectID) (*projects.Project, error) {
	f.enter("get_project")
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[id]
	if !ok {
		return nil, &remote.Error{Op: "get project", Status: 404, Kind: remote.KindNotFound, Message: "Project not found"}
	}
	return &p, nil
}

func (f *fakeBackend) GetForFile(ctx context.Context, fileID projects.FileID) (*analysis.Record, error) {
	f.enter("get_analysis")
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.getErr[fileID]; err != nil {
		return nil, err
	}
	rec, ok := f.current[fileID]
	if !ok {
		return nil, noAnalysis()
	}
	return rec, nil
}

func (f *fakeBackend) Create(ctx context.Context, fileID projects.FileID, req analysis.Request) (*analysis.Record, error) {
	f.enter("create_analysis")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createFn != nil {
		return f.createFn(fileID, req)
	}
	rec := analysis.Record{
		FileID:    fileID,
		Charts:    []analysis.Chart{{Type: "bar", Title: "chart for " + req.Intent}},
		Summary:   "summary",
		Intent:    req.Intent,
		CreatedAt: testNow,
	}
	if req.Save {
		f.nextID++
		rec.ID = f.nextID
		f.saved[fileID] = append(f.saved[fileID], rec)
		f.current[fileID] = &rec
	}
	return &rec, nil
}

func (f *fakeBackend) ListSaved(ctx context.Context, fileID projects.FileID) ([]analysis.Record, error) {
	f.enter("list_saved")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]analysis.Record(nil), f.saved[fileID]...), nil
}

func (f *fakeBackend) GetSaved(ctx context.Context, id analysis.ID) (*analysis.Record, error) {
	f.enter("get_saved")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.viewErr != nil {
		return nil, f.viewErr
	}
	for _, list := range f.saved {
		for _, r := range list {
			if r.ID == id {
				r := r
				return &r, nil
			}
		}
	}
	return nil, &remote.Error{Op: "get saved analysis", Status: 404, Kind: remote.KindNotFound, Message: "Analysis not found"}
}

func (f *fakeBackend) DeleteSaved(ctx context.Context, id analysis.ID) error {
	f.enter("delete_saved")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.delErr != nil {
		return f.delErr
	}
	for fileID, list := range f.saved {
		kept := list[:0:0]
		for _, r := range list {
			if r.ID != id {
				kept = append(kept, r)
			}
		}
		f.saved[fileID] = kept
	}
	return nil
}

func (f *fakeBackend) Compare(ctx context.Context, req comparison.Request) (*comparison.Result, error) {
	f.enter("compare")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.compareReq = append(f.compareReq, req)
	if f.compareErr != nil {
		return nil, f.compareErr
	}
	return &comparison.Result{
		FileAID: req.FileAID,
		FileBID: req.FileBID,
		Type:    req.Type,
		Charts:  []analysis.Chart{{Type: "line", Title: string(req.Type)}},
		Summary: fmt.Sprintf("%d vs %d", req.FileAID, req.FileBID),
	}, nil
}

func (f *fakeBackend) CreateRelationship(ctx context.Context, req merge.RelationshipRequest) (*merge.Relationship, error) {
	f.enter("create_relationship")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.relReq = append(f.relReq, req)
	if f.relErr != nil {
		return nil, f.relErr
	}
	f.nextRelID++
	return &merge.Relationship{ID: f.nextRelID, RelationshipRequest: req}, nil
}

func (f *fakeBackend) AnalyzeRelationship(ctx context.Context, id merge.RelationshipID) (*merge.Result, error) {
	f.enter("analyze")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.analyzeErr != nil {
		return nil, f.analyzeErr
	}
	return &merge.Result{
		RelationshipID: id,
		RowCount:       42,
		Schema:         projects.Schema{Rows: 42, Columns: []projects.Column{{Name: "id"}, {Name: "total"}}},
		Charts:         []analysis.Chart{{Type: "bar", Title: "merged"}},
		Summary:        "merged summary",
	}, nil
}

func (f *fakeBackend) Query(ctx context.Context, q chat.Query) (*chat.Answer, error) {
	f.enter("chat")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chatQueries = append(f.chatQueries, q)
	if f.chatErr != nil {
		return nil, f.chatErr
	}
	conv := q.ConversationID
	if conv == "" {
		conv = "conv-" + q.UploadID
	}
	return &chat.Answer{Answer: "answer to " + q.Question, ConversationID: conv, Timestamp: testNow}, nil
}

func (f *fakeBackend) CreateDashboard(ctx context.Context, req dashboards.CreateRequest) (*dashboards.Dashboard, error) {
	f.enter("create_dashboard")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dashReq = append(f.dashReq, req)
	if f.dashErr != nil {
		return nil, f.dashErr
	}
	d := dashboards.Dashboard{
		ID:           dashboards.ID(len(f.dashboards) + 1),
		Name:         req.Name,
		Type:         req.Type,
		Config:       req.Config,
		CachedCharts: req.CachedCharts,
		CreatedAt:    testNow,
	}
	f.dashboards = append(f.dashboards, d)
	return &d, nil
}

func (f *fakeBackend) ListDashboards(ctx context.Context) ([]dashboards.Dashboard, error) {
	f.enter("list_dashboards")
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]dashboards.Dashboard(nil), f.dashboards...), nil
}

func (f *fakeBackend) DeleteDashboard(ctx context.Context, id dashboards.ID) error {
	f.enter("delete_dashboard")
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.dashboards[:0:0]
	for _, d := range f.dashboards {
		if d.ID != id {
			kept = append(kept, d)
		}
	}
	f.dashboards = kept
	return nil
}

func noAnalysis() error {
	return &remote.Error{Op: "get analysis", Status: 404, Kind: remote.KindNoAnalysis, Message: "No analysis found for this file"}
}

func serverError(op string) error {
	return &remote.Error{Op: op, Status: 500, Kind: remote.KindRemote, Message: "internal error"}
}

func columns(prefix string, n int) projects.Schema {
	s := projects.Schema{Rows: 100}
	for i := 0; i < n; i++ {
		s.Columns = append(s.Columns, projects.Column{Name: fmt.Sprintf("%s%d", prefix, i)})
	}
	return s
}

// sampleProject has three files: 1 analyzed, 2 analyzed, 3 fresh
func sampleProject() projects.Project {
	return projects.Project{
		ID:   7,
		Name: "sales",
		Files: []projects.File{
			{ID: 1, ProjectID: 7, Filename: "q1.csv", UploadID: "up-1", HasAnalysis: true, Schema: columns("a", 10)},
			{ID: 2, ProjectID: 7, Filename: "q2.csv", UploadID: "up-2", HasAnalysis: true, Schema: columns("b", 8)},
			{ID: 3, ProjectID: 7, Filename: "q3.csv", UploadID: "up-3"},
		},
	}
}

func singleFileProject() projects.Project {
	return projects.Project{
		ID:    9,
		Name:  "lonely",
		Files: []projects.File{{ID: 11, ProjectID: 9, Filename: "only.csv", UploadID: "up-11"}},
	}
}

type fakeSnapshots struct {
	keys []string
	err  error
}

func (s *fakeSnapshots) PutSnapshot(ctx context.Context, key string, payload []byte) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.keys = append(s.keys, key)
	return "http://minio.local/workspace/" + key, nil
}
