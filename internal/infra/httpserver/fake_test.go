package httpserver

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/bryanwahyu/analytics-workspace/internal/domain/analysis"
	"github.com/bryanwahyu/analytics-workspace/internal/domain/auth"
	"github.com/bryanwahyu/analytics-workspace/internal/domain/chat"
	"github.com/bryanwahyu/analytics-workspace/internal/domain/comparison"
	"github.com/bryanwahyu/analytics-workspace/internal/domain/dashboards"
	"github.com/bryanwahyu/analytics-workspace/internal/domain/merge"
	"github.com/bryanwahyu/analytics-workspace/internal/domain/oplog"
	"github.com/bryanwahyu/analytics-workspace/internal/domain/projects"
	"github.com/bryanwahyu/analytics-workspace/internal/infra/remote"
)

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func cols(names ...string) projects.Schema {
	s := projects.Schema{Rows: 100}
	for _, n := range names {
		s.Columns = append(s.Columns, projects.Column{Name: n})
	}
	return s
}

// fakeRemote answers every workspace call from memory
type fakeRemote struct {
	mu        sync.Mutex
	projects  map[projects.ProjectID]projects.Project
	nextID    int64
	dashboard []dashboards.Dashboard
	failChat  error
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		nextID: 100,
		projects: map[projects.ProjectID]projects.Project{
			7: {ID: 7, Name: "sales", Files: []projects.File{
				{ID: 1, ProjectID: 7, Filename: "orders.csv", UploadID: "up-1", HasAnalysis: true, Schema: cols("id", "customer_id", "total")},
				{ID: 2, ProjectID: 7, Filename: "customers.csv", UploadID: "up-2", Schema: cols("id", "name")},
			}},
			9: {ID: 9, Name: "solo", Files: []projects.File{
				{ID: 5, ProjectID: 9, Filename: "only.csv", UploadID: "up-5"},
			}},
		},
	}
}

func (f *fakeRemote) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeRemote) ListProjects(context.Context) ([]projects.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return []projects.Project{f.projects[7], f.projects[9]}, nil
}

func (f *fakeRemote) GetProject(_ context.Context, id projects.ProjectID) (*projects.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[id]
	if !ok {
		return nil, &remote.Error{Op: "get project", Status: http.StatusNotFound, Kind: remote.KindNotFound, Message: "Project not found"}
	}
	return &p, nil
}

func (f *fakeRemote) GetForFile(_ context.Context, fileID projects.FileID) (*analysis.Record, error) {
	if fileID != 1 {
		return nil, &remote.Error{Op: "get analysis", Status: http.StatusNotFound, Kind: remote.KindNoAnalysis, Message: "No analysis found"}
	}
	return &analysis.Record{ID: 11, FileID: 1, Summary: "orders overview", CreatedAt: testNow}, nil
}

func (f *fakeRemote) Create(_ context.Context, fileID projects.FileID, req analysis.Request) (*analysis.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &analysis.Record{ID: analysis.ID(f.id()), FileID: fileID, Intent: req.Intent, Summary: "generated", CreatedAt: testNow}, nil
}

func (f *fakeRemote) ListSaved(context.Context, projects.FileID) ([]analysis.Record, error) {
	return nil, nil
}

func (f *fakeRemote) GetSaved(_ context.Context, id analysis.ID) (*analysis.Record, error) {
	return &analysis.Record{ID: id, FileID: 1, CreatedAt: testNow}, nil
}

func (f *fakeRemote) DeleteSaved(context.Context, analysis.ID) error { return nil }

func (f *fakeRemote) Compare(_ context.Context, req comparison.Request) (*comparison.Result, error) {
	return &comparison.Result{
		FileAID: req.FileAID,
		FileBID: req.FileBID,
		Type:    req.Type,
		Charts:  []analysis.Chart{{Type: "line", Title: "totals"}},
		Summary: "b grows faster",
	}, nil
}

func (f *fakeRemote) CreateRelationship(_ context.Context, req merge.RelationshipRequest) (*merge.Relationship, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &merge.Relationship{ID: merge.RelationshipID(f.id()), RelationshipRequest: req}, nil
}

func (f *fakeRemote) AnalyzeRelationship(_ context.Context, id merge.RelationshipID) (*merge.Result, error) {
	return &merge.Result{RelationshipID: id, RowCount: 42, Schema: cols("id", "total", "name")}, nil
}

func (f *fakeRemote) Query(_ context.Context, q chat.Query) (*chat.Answer, error) {
	if f.failChat != nil {
		return nil, f.failChat
	}
	return &chat.Answer{Answer: "echo: " + q.Question, ConversationID: "conv-1", Timestamp: testNow}, nil
}

func (f *fakeRemote) CreateDashboard(_ context.Context, req dashboards.CreateRequest) (*dashboards.Dashboard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := dashboards.Dashboard{ID: dashboards.ID(f.id()), Name: req.Name, Type: req.Type, Config: req.Config, CreatedAt: testNow}
	f.dashboard = append(f.dashboard, d)
	return &d, nil
}

func (f *fakeRemote) ListDashboards(context.Context) ([]dashboards.Dashboard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]dashboards.Dashboard(nil), f.dashboard...), nil
}

func (f *fakeRemote) DeleteDashboard(_ context.Context, id dashboards.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, d := range f.dashboard {
		if d.ID == id {
			f.dashboard = append(f.dashboard[:i], f.dashboard[i+1:]...)
			return nil
		}
	}
	return &remote.Error{Op: "delete dashboard", Status: http.StatusNotFound, Kind: remote.KindNotFound, Message: "Dashboard not found"}
}

// memJournal is an in-memory oplog.Repository
type memJournal struct {
	mu      sync.Mutex
	entries []*oplog.Entry
}

func (j *memJournal) Save(_ context.Context, e *oplog.Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	e.ID = int64(len(j.entries) + 1)
	j.entries = append(j.entries, e)
	return nil
}

func (j *memJournal) ListBySession(_ context.Context, sessionID string, limit int) ([]*oplog.Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []*oplog.Entry
	for _, e := range j.entries {
		if e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeProvider struct{}

func (fakeProvider) AuthorizeURL(_ context.Context, provider, state, redirectURI string) (string, error) {
	return "https://idp.test/" + provider + "?state=" + state, nil
}

func (fakeProvider) ExchangeCode(_ context.Context, _, code, _ string) (*auth.Token, error) {
	return &auth.Token{AccessToken: "tok-" + code, TokenType: "bearer", ExpiresIn: 3600}, nil
}

type savedToken struct {
	mu    sync.Mutex
	token string
}

func (s *savedToken) Save(token string) error {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return nil
}

func (s *savedToken) Clear() error {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
	return nil
}

func (s *savedToken) get() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}
