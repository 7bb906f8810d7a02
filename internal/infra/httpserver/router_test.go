package httpserver

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/bryanwahyu/analytics-workspace/internal/application"
	"github.com/bryanwahyu/analytics-workspace/internal/application/oauth"
	"github.com/bryanwahyu/analytics-workspace/internal/application/workspace"
	"github.com/bryanwahyu/analytics-workspace/internal/domain/auth"
	"github.com/bryanwahyu/analytics-workspace/internal/domain/oplog"
	"github.com/bryanwahyu/analytics-workspace/internal/infra/oauthstate"
	"github.com/bryanwahyu/analytics-workspace/internal/infra/remote"
	"github.com/bryanwahyu/analytics-workspace/internal/middleware"
)

type testEnv struct {
	t       *testing.T
	srv     *httptest.Server
	server  *Server
	remote  *fakeRemote
	journal *memJournal
	tokens  *savedToken
	session string
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{t: t, remote: newFakeRemote(), journal: &memJournal{}, tokens: &savedToken{}}
	env.server = New(Deps{
		Backend: env.remote,
		Journal: env.journal,
		OAuth: &oauth.Service{
			States:      oauthstate.NewMemoryStore(),
			Provider:    fakeProvider{},
			Credentials: env.tokens,
			RedirectURI: "http://localhost:8080/v1/auth/github/callback",
			StateTTL:    time.Minute,
		},
		SessionTTL: time.Hour,
		Clock:      application.FixedClock{T: testNow},
		Log:        zerolog.Nop(),
	})
	env.srv = httptest.NewServer(env.server.Handler())
	t.Cleanup(env.srv.Close)
	return env
}

func (e *testEnv) do(method, path string, body any) (int, []byte) {
	e.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(e.t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	require.NoError(e.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if e.session != "" {
		req.Header.Set(middleware.SessionHeader, e.session)
	}
	resp, err := e.srv.Client().Do(req)
	require.NoError(e.t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(e.t, err)
	return resp.StatusCode, out
}

func (e *testEnv) decode(status, want int, raw []byte, dst any) {
	e.t.Helper()
	require.Equal(e.t, want, status, string(raw))
	if dst != nil {
		require.NoError(e.t, json.Unmarshal(raw, dst))
	}
}

// login creates a session and opens project 7
func (e *testEnv) login() {
	e.t.Helper()
	var sess Session
	status, raw := e.do(http.MethodPost, "/v1/sessions", nil)
	e.decode(status, http.StatusCreated, raw, &sess)
	require.NotEmpty(e.t, sess.ID)
	e.session = sess.ID

	var open openProjectsView
	status, raw = e.do(http.MethodPost, "/v1/projects/open", map[string]any{"ids": []int{7, 9}})
	e.decode(status, http.StatusOK, raw, &open)
	require.Len(e.t, open.Open, 2)
}

func TestRouter_RequiresSession(t *testing.T) {
	env := newEnv(t)

	status, _ := env.do(http.MethodGet, "/v1/projects", nil)
	require.Equal(t, http.StatusUnauthorized, status)

	env.session = "not-a-uuid"
	status, _ = env.do(http.MethodGet, "/v1/projects", nil)
	require.Equal(t, http.StatusBadRequest, status)

	env.session = "0b7b1c5e-3c1a-4c7e-9a55-1f1e7e0f9a11"
	status, _ = env.do(http.MethodGet, "/v1/projects", nil)
	require.Equal(t, http.StatusUnauthorized, status)
}

func TestRouter_Health(t *testing.T) {
	env := newEnv(t)
	for _, path := range []string{"/livez", "/healthz", "/readyz"} {
		status, _ := env.do(http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, status, path)
	}
}

func TestRouter_SelectFileLoadsAnalysis(t *testing.T) {
	env := newEnv(t)
	env.login()

	var view workspace.ProjectView
	status, raw := env.do(http.MethodPost, "/v1/projects/7/files/1/select", nil)
	env.decode(status, http.StatusOK, raw, &view)
	require.Equal(t, workspace.SelectionLoaded, view.Selection.Status)
	require.Equal(t, "orders overview", view.Selection.Analysis.Summary)
	require.Equal(t, "up-1", view.Chat.UploadID)

	status, raw = env.do(http.MethodPost, "/v1/projects/7/files/2/select", nil)
	env.decode(status, http.StatusOK, raw, &view)
	require.Equal(t, workspace.SelectionNoAnalysis, view.Selection.Status)
	require.Nil(t, view.Selection.Error)
}

func TestRouter_SelectUnknownFileIsRejected(t *testing.T) {
	env := newEnv(t)
	env.login()

	var body errorBody
	status, raw := env.do(http.MethodPost, "/v1/projects/7/files/5/select", nil)
	env.decode(status, http.StatusUnprocessableEntity, raw, &body)
	require.Equal(t, remote.KindValidation, body.Kind)

	status, _ = env.do(http.MethodPost, "/v1/projects/8/files/1/select", nil)
	require.Equal(t, http.StatusNotFound, status)
}

func TestRouter_GenerateThenSave(t *testing.T) {
	env := newEnv(t)
	env.login()
	env.do(http.MethodPost, "/v1/projects/7/files/1/select", nil)

	var view workspace.ProjectView
	status, raw := env.do(http.MethodPost, "/v1/projects/7/versions/generate", map[string]string{"intent": "by region"})
	env.decode(status, http.StatusOK, raw, &view)
	require.Len(t, view.Versions.Temporary, 1)
	require.Equal(t, "by region", view.Versions.Temporary[0].Intent)

	var open openProjectsView
	status, raw = env.do(http.MethodGet, "/v1/projects/open", nil)
	env.decode(status, http.StatusOK, raw, &open)
	require.Contains(t, open.NavigationWarning, open.Open[0])

	status, raw = env.do(http.MethodPost, "/v1/projects/7/versions/save", nil)
	env.decode(status, http.StatusOK, raw, &view)
	require.Empty(t, view.Versions.Temporary)
	require.Equal(t, workspace.SelectionLoaded, view.Selection.Status)
}

func TestRouter_ChatFailureIsJournaled(t *testing.T) {
	env := newEnv(t)
	env.login()
	env.do(http.MethodPost, "/v1/projects/7/files/1/select", nil)

	var st workspace.ChatState
	status, raw := env.do(http.MethodPost, "/v1/projects/7/chat/messages", map[string]string{"text": "total revenue?"})
	env.decode(status, http.StatusOK, raw, &st)
	require.Len(t, st.Messages, 2)
	require.Equal(t, "conv-1", st.ConversationID)

	env.remote.mu.Lock()
	env.remote.failChat = &remote.Error{Op: "chat", Status: 500, Kind: remote.KindRemote, Message: "model offline"}
	env.remote.mu.Unlock()

	status, raw = env.do(http.MethodPost, "/v1/projects/7/chat/messages", map[string]string{"text": "and by month?"})
	env.decode(status, http.StatusOK, raw, &st)
	require.Len(t, st.Messages, 2)
	require.NotNil(t, st.Error)
	require.Equal(t, "model offline", st.Error.Message)

	var entries []*oplog.Entry
	status, raw = env.do(http.MethodGet, "/v1/sessions/"+env.session+"/errors", nil)
	env.decode(status, http.StatusOK, raw, &entries)
	require.Len(t, entries, 1)
	require.Equal(t, workspace.ControllerChat, entries[0].Controller)
	require.Equal(t, "remote", entries[0].Kind)

	status, _ = env.do(http.MethodPost, "/v1/projects/7/chat/messages", map[string]string{"text": "   "})
	require.Equal(t, http.StatusUnprocessableEntity, status)
}

func TestRouter_SessionErrorsOfAnotherSession(t *testing.T) {
	env := newEnv(t)
	env.login()
	status, _ := env.do(http.MethodGet, "/v1/sessions/0b7b1c5e-3c1a-4c7e-9a55-1f1e7e0f9a11/errors", nil)
	require.Equal(t, http.StatusForbidden, status)
}

func TestRouter_ComparisonToDashboard(t *testing.T) {
	env := newEnv(t)
	env.login()

	var view comparisonView
	status, raw := env.do(http.MethodPost, "/v1/projects/7/comparison", nil)
	env.decode(status, http.StatusCreated, raw, &view)
	require.False(t, view.CanCompare)
	require.Len(t, view.FileAOptions, 2)

	status, raw = env.do(http.MethodPut, "/v1/projects/7/comparison", map[string]any{"file_a_id": 1})
	env.decode(status, http.StatusOK, raw, &view)
	require.Len(t, view.FileBOptions, 1)

	status, _ = env.do(http.MethodPut, "/v1/projects/7/comparison", map[string]any{"file_b_id": 1})
	require.Equal(t, http.StatusUnprocessableEntity, status)

	status, raw = env.do(http.MethodPut, "/v1/projects/7/comparison", map[string]any{"file_b_id": 2, "comparison_type": "trend"})
	env.decode(status, http.StatusOK, raw, &view)
	require.True(t, view.CanCompare)

	status, raw = env.do(http.MethodPost, "/v1/projects/7/comparison/run", nil)
	env.decode(status, http.StatusOK, raw, &view)
	require.NotNil(t, view.Result)
	require.Equal(t, "b grows faster", view.Result.Summary)

	status, _ = env.do(http.MethodPost, "/v1/projects/7/comparison/dashboard", map[string]string{"name": " "})
	require.Equal(t, http.StatusUnprocessableEntity, status)

	status, _ = env.do(http.MethodPost, "/v1/projects/7/comparison/dashboard", map[string]string{"name": "Orders vs customers"})
	require.Equal(t, http.StatusCreated, status)

	var list []map[string]any
	status, raw = env.do(http.MethodGet, "/v1/dashboards", nil)
	env.decode(status, http.StatusOK, raw, &list)
	require.Len(t, list, 1)
	require.Equal(t, "comparison", list[0]["type"])
}

func TestRouter_SwapSlotsInOneRequest(t *testing.T) {
	env := newEnv(t)
	env.login()

	var cmp comparisonView
	env.do(http.MethodPost, "/v1/projects/7/comparison", nil)
	env.do(http.MethodPut, "/v1/projects/7/comparison", map[string]any{"file_a_id": 1, "file_b_id": 2})
	status, raw := env.do(http.MethodPut, "/v1/projects/7/comparison", map[string]any{"file_a_id": 2, "file_b_id": 1})
	env.decode(status, http.StatusOK, raw, &cmp)
	require.EqualValues(t, 2, cmp.FileAID)
	require.EqualValues(t, 1, cmp.FileBID)

	status, _ = env.do(http.MethodPut, "/v1/projects/7/comparison", map[string]any{"file_a_id": 1, "file_b_id": 1})
	require.Equal(t, http.StatusUnprocessableEntity, status)

	var mv mergeView
	env.do(http.MethodPost, "/v1/projects/7/merge", nil)
	env.do(http.MethodPut, "/v1/projects/7/merge/files", map[string]any{"file_a_id": 1, "file_b_id": 2})
	status, raw = env.do(http.MethodPut, "/v1/projects/7/merge/files", map[string]any{"file_a_id": 2, "file_b_id": 1})
	env.decode(status, http.StatusOK, raw, &mv)
	require.EqualValues(t, 2, mv.FileAID)
	require.EqualValues(t, 1, mv.FileBID)
	require.Equal(t, []string{"id", "name"}, mv.LeftColumns)
}

func TestRouter_ConcurrentSelectsStayBound(t *testing.T) {
	env := newEnv(t)
	env.login()
	uploads := map[int64]string{0: "", 1: "up-1", 2: "up-2"}

	for i := 0; i < 50; i++ {
		var g errgroup.Group
		for _, path := range []string{"/v1/projects/7/files/1/select", "/v1/projects/7/files/2/select"} {
			g.Go(func() error {
				req, err := http.NewRequest(http.MethodPost, env.srv.URL+path, nil)
				if err != nil {
					return err
				}
				req.Header.Set(middleware.SessionHeader, env.session)
				resp, err := env.srv.Client().Do(req)
				if err != nil {
					return err
				}
				resp.Body.Close()
				if resp.StatusCode != http.StatusOK {
					return errors.Errorf("select: status %d", resp.StatusCode)
				}
				return nil
			})
		}
		require.NoError(t, g.Wait())

		var view workspace.ProjectView
		status, raw := env.do(http.MethodGet, "/v1/projects/7", nil)
		env.decode(status, http.StatusOK, raw, &view)
		require.Equal(t, view.Selection.FileID, view.Versions.FileID)
		require.Equal(t, uploads[int64(view.Selection.FileID)], view.Chat.UploadID)
	}
}

func TestRouter_ComparisonNeedsTwoFiles(t *testing.T) {
	env := newEnv(t)
	env.login()

	status, _ := env.do(http.MethodPost, "/v1/projects/9/comparison", nil)
	require.Equal(t, http.StatusUnprocessableEntity, status)

	status, _ = env.do(http.MethodGet, "/v1/projects/9/comparison", nil)
	require.Equal(t, http.StatusNotFound, status)
}

func TestRouter_MergeWizard(t *testing.T) {
	env := newEnv(t)
	env.login()

	var view mergeView
	status, raw := env.do(http.MethodPost, "/v1/projects/7/merge", nil)
	env.decode(status, http.StatusCreated, raw, &view)
	require.Equal(t, workspace.StepSelect, view.Step)

	status, _ = env.do(http.MethodPut, "/v1/projects/7/merge/keys", map[string]any{"left_key": "id"})
	require.Equal(t, http.StatusUnprocessableEntity, status)

	status, _ = env.do(http.MethodPost, "/v1/projects/7/merge/next", nil)
	require.Equal(t, http.StatusUnprocessableEntity, status)

	status, raw = env.do(http.MethodPut, "/v1/projects/7/merge/files", map[string]any{"file_a_id": 1, "file_b_id": 2, "join_type": "left"})
	env.decode(status, http.StatusOK, raw, &view)
	require.True(t, view.CanGoNext)
	require.Equal(t, []string{"id", "customer_id", "total"}, view.LeftColumns)

	status, raw = env.do(http.MethodPost, "/v1/projects/7/merge/next", nil)
	env.decode(status, http.StatusOK, raw, &view)
	require.Equal(t, workspace.StepMapKeys, view.Step)

	status, raw = env.do(http.MethodPut, "/v1/projects/7/merge/keys", map[string]any{"left_key": "customer_id", "right_key": "id"})
	env.decode(status, http.StatusOK, raw, &view)
	require.True(t, view.CanGoNext)

	env.do(http.MethodPost, "/v1/projects/7/merge/next", nil)
	status, raw = env.do(http.MethodPost, "/v1/projects/7/merge/execute", nil)
	env.decode(status, http.StatusOK, raw, &view)
	require.NotNil(t, view.Result)
	require.Equal(t, 42, view.Result.RowCount)
	require.Equal(t, view.Relationship.ID, view.Result.RelationshipID)

	status, _ = env.do(http.MethodPost, "/v1/projects/7/merge/dashboard", map[string]string{"name": "Joined"})
	require.Equal(t, http.StatusCreated, status)

	status, _ = env.do(http.MethodDelete, "/v1/projects/7/merge", nil)
	require.Equal(t, http.StatusNoContent, status)
	status, _ = env.do(http.MethodGet, "/v1/projects/7/merge", nil)
	require.Equal(t, http.StatusNotFound, status)
}

func TestRouter_DeleteUnknownDashboard(t *testing.T) {
	env := newEnv(t)
	env.login()

	var body errorBody
	status, raw := env.do(http.MethodDelete, "/v1/dashboards/999", nil)
	env.decode(status, http.StatusNotFound, raw, &body)
	require.Equal(t, "Dashboard not found", body.Error)

	status, _ = env.do(http.MethodDelete, "/v1/dashboards/abc", nil)
	require.Equal(t, http.StatusBadRequest, status)
}

func TestRouter_MalformedBody(t *testing.T) {
	env := newEnv(t)
	env.login()

	status, _ := env.do(http.MethodPost, "/v1/projects/open", map[string]any{"ids": []int{}})
	require.Equal(t, http.StatusBadRequest, status)

	status, _ = env.do(http.MethodPost, "/v1/projects/open", map[string]any{"project": 7})
	require.Equal(t, http.StatusBadRequest, status)
}

func TestRouter_OAuthRoundTrip(t *testing.T) {
	env := newEnv(t)
	client := env.srv.Client()
	client.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

	resp, err := client.Get(env.srv.URL + "/v1/auth/github/login")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)

	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "idp.test", loc.Host)
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)

	callback := "/v1/auth/github/callback?state=" + state + "&code=abc"
	status, _ := env.do(http.MethodGet, callback, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "tok-abc", env.tokens.get())

	// state is read once
	status, _ = env.do(http.MethodGet, callback, nil)
	require.Equal(t, http.StatusBadRequest, status)

	status, _ = env.do(http.MethodDelete, "/v1/auth/credential", nil)
	require.Equal(t, http.StatusUnauthorized, status)

	env.login()
	status, _ = env.do(http.MethodDelete, "/v1/auth/credential", nil)
	require.Equal(t, http.StatusNoContent, status)
	require.Empty(t, env.tokens.get())
}

func TestRouter_EventsStream(t *testing.T) {
	env := newEnv(t)
	env.login()

	wsURL := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/v1/events?session=" + env.session
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return env.server.Hub().Count(env.session) == 1 }, time.Second, 10*time.Millisecond)

	env.do(http.MethodPost, "/v1/projects/7/files/1/select", nil)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev struct {
		Controller string `json:"controller"`
		ProjectID  int64  `json:"project_id"`
	}
	require.NoError(t, conn.ReadJSON(&ev))
	require.Equal(t, int64(7), ev.ProjectID)
	require.Contains(t, []string{workspace.ControllerSelection, workspace.ControllerVersions, workspace.ControllerChat}, ev.Controller)
}

func TestStatusOf(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{badRequest(errors.New("bad json")), http.StatusBadRequest},
		{workspace.ErrBusy, http.StatusConflict},
		{workspace.ErrProjectNotOpen, http.StatusNotFound},
		{workspace.ErrSameFile, http.StatusUnprocessableEntity},
		{&workspace.StageError{Stage: workspace.StageAnalyze, Err: &remote.Error{Kind: remote.KindRemote, Status: 500}}, http.StatusBadGateway},
		{auth.ErrStateNotFound, http.StatusBadRequest},
		{&remote.Error{Kind: remote.KindUnauthorized, Status: 401}, http.StatusUnauthorized},
		{&remote.Error{Kind: remote.KindNoAnalysis, Status: 404}, http.StatusNotFound},
		{errors.New("dial tcp: connection refused"), http.StatusBadGateway},
		{errOAuthDisabled, http.StatusNotImplemented},
	}
	for _, tc := range cases {
		got, _ := statusOf(tc.err)
		require.Equal(t, tc.want, got, tc.err.Error())
	}
}
