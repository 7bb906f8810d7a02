package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/bryanwahyu/analytics-workspace/internal/application"
	"github.com/bryanwahyu/analytics-workspace/internal/application/journal"
	"github.com/bryanwahyu/analytics-workspace/internal/application/oauth"
	"github.com/bryanwahyu/analytics-workspace/internal/application/workspace"
	"github.com/bryanwahyu/analytics-workspace/internal/domain/auth"
	"github.com/bryanwahyu/analytics-workspace/internal/domain/dashboards"
	"github.com/bryanwahyu/analytics-workspace/internal/domain/oplog"
	"github.com/bryanwahyu/analytics-workspace/internal/infra/remote"
	"github.com/bryanwahyu/analytics-workspace/internal/middleware"
)

// Deps are the collaborators of the BFF. Snapshots, Journal, OAuth and
// RateLimiter are optional.
type Deps struct {
	Backend        workspace.Backend
	Snapshots      dashboards.SnapshotStore
	Journal        oplog.Repository
	OAuth          *oauth.Service
	RateLimiter    *middleware.RateLimiter
	Health         []middleware.Dependency
	AllowedOrigins []string
	SessionTTL     time.Duration
	Clock          application.Clock
	Log            zerolog.Logger
}

// Server exposes one Workspace per browser session over HTTP
type Server struct {
	deps     Deps
	sessions *Sessions
	hub      *Hub
	log      zerolog.Logger
}

func New(deps Deps) *Server {
	if deps.Clock == nil {
		deps.Clock = application.SystemClock{}
	}
	s := &Server{
		deps: deps,
		log:  deps.Log.With().Str("component", "http").Logger(),
	}
	s.hub = NewHub(deps.Log, s.checkOrigin)
	s.sessions = NewSessions(deps.SessionTTL, s.buildWorkspace)
	s.sessions.OnEnd(s.hub.CloseSession)
	return s
}

func (s *Server) Sessions() *Sessions { return s.sessions }

func (s *Server) Hub() *Hub { return s.hub }

// buildWorkspace wires the controllers of a new session to the journal,
// the metrics and the event stream
func (s *Server) buildWorkspace(id string) *workspace.Workspace {
	log := s.deps.Log.With().Str("session", id).Logger()
	recorders := workspace.Recorders{workspace.RecorderFunc(observeOperation)}
	if s.deps.Journal != nil {
		recorders = append(recorders, &journal.Recorder{
			Repo:      s.deps.Journal,
			SessionID: id,
			Clock:     s.deps.Clock,
			Log:       log,
		})
	}
	return workspace.New(s.deps.Backend, s.deps.Snapshots, workspace.Hooks{
		Log:      log,
		Recorder: recorders,
		Clock:    s.deps.Clock,
		OnChange: func(ev workspace.Event) { s.hub.Publish(id, ev) },
	})
}

func observeOperation(_ context.Context, op workspace.Operation, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case workspace.IsLocal(err):
		outcome = string(remote.KindValidation)
	default:
		outcome = string(remote.KindOf(err))
	}
	middleware.ObserveOperation(op.Controller, op.Name, outcome)
}

// Handler builds the chi router
func (s *Server) Handler() http.Handler {
	mux := chi.NewRouter()
	mux.Use(middleware.Logging(s.deps.Log))
	mux.Use(middleware.Metrics)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.allowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", middleware.SessionHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	mux.Get("/livez", middleware.LivenessHandler)
	mux.Get("/healthz", middleware.LivenessHandler)
	mux.Get("/readyz", middleware.HealthHandler(s.deps.Health))
	mux.Handle("/metrics", middleware.MetricsHandler())

	mux.Route("/v1", func(rt chi.Router) {
		if s.deps.RateLimiter != nil {
			rt.Use(middleware.RateLimit(s.deps.RateLimiter))
		}

		rt.Post("/sessions", s.wrap(s.handleCreateSession))
		rt.Get("/auth/{provider}/login", s.wrap(s.handleLogin))
		rt.Get("/auth/{provider}/callback", s.wrap(s.handleCallback))

		rt.Group(func(rt chi.Router) {
			rt.Use(middleware.RequireSession(s.sessions.Live))

			rt.Get("/events", s.handleEvents)
			rt.Delete("/auth/credential", s.wrap(s.handleSignOut))
			rt.Get("/sessions/{sessionID}/errors", s.wrap(s.handleSessionErrors))

			rt.Get("/projects", s.wrap(s.handleListProjects))
			rt.Post("/projects/open", s.wrap(s.handleOpenProjects))
			rt.Get("/projects/open", s.wrap(s.handleOpenProjectList))

			rt.Route("/projects/{projectID}", func(rt chi.Router) {
				rt.Get("/", s.wrap(s.handleProjectView))
				rt.Delete("/", s.wrap(s.handleCloseProject))

				rt.Post("/files/{fileID}/select", s.wrap(s.handleSelectFile))
				rt.Post("/selection/clear", s.wrap(s.handleDeselect))
				rt.Post("/selection/retry", s.wrap(s.handleSelectionRetry))
				rt.Post("/selection/dismiss", s.wrap(s.handleSelectionDismiss))

				rt.Post("/versions/reload", s.wrap(s.handleVersionsReload))
				rt.Post("/versions/generate", s.wrap(s.handleGenerate))
				rt.Post("/versions/save", s.wrap(s.handleSave))
				rt.Get("/versions/{analysisID}", s.wrap(s.handleViewSaved))
				rt.Delete("/versions/{analysisID}", s.wrap(s.handleDeleteSaved))
				rt.Post("/versions/temp/{index}", s.wrap(s.handleSelectTemp))
				rt.Post("/versions/back", s.wrap(s.handleBackToList))
				rt.Post("/versions/dismiss", s.wrap(s.handleVersionsDismiss))

				rt.Post("/chat/messages", s.wrap(s.handleSendMessage))
				rt.Post("/chat/dismiss", s.wrap(s.handleChatDismiss))

				rt.Post("/comparison", s.wrap(s.handleOpenComparison))
				rt.Get("/comparison", s.wrap(s.handleComparisonState))
				rt.Put("/comparison", s.wrap(s.handleConfigureComparison))
				rt.Delete("/comparison", s.wrap(s.handleCloseComparison))
				rt.Post("/comparison/run", s.wrap(s.handleCompare))
				rt.Post("/comparison/reset", s.wrap(s.handleComparisonReset))
				rt.Post("/comparison/dismiss", s.wrap(s.handleComparisonDismiss))
				rt.Post("/comparison/dashboard", s.wrap(s.handleComparisonDashboard))

				rt.Post("/merge", s.wrap(s.handleOpenMerge))
				rt.Get("/merge", s.wrap(s.handleMergeState))
				rt.Delete("/merge", s.wrap(s.handleCloseMerge))
				rt.Put("/merge/files", s.wrap(s.handleMergeFiles))
				rt.Put("/merge/keys", s.wrap(s.handleMergeKeys))
				rt.Post("/merge/next", s.wrap(s.handleMergeNext))
				rt.Post("/merge/prev", s.wrap(s.handleMergePrev))
				rt.Post("/merge/execute", s.wrap(s.handleMergeExecute))
				rt.Post("/merge/retry", s.wrap(s.handleMergeRetry))
				rt.Post("/merge/reset", s.wrap(s.handleMergeReset))
				rt.Post("/merge/dismiss", s.wrap(s.handleMergeDismiss))
				rt.Post("/merge/dashboard", s.wrap(s.handleMergeDashboard))
			})

			rt.Get("/dashboards", s.wrap(s.handleListDashboards))
			rt.Get("/dashboards/state", s.wrap(s.handleDashboardsState))
			rt.Delete("/dashboards/{dashboardID}", s.wrap(s.handleDeleteDashboard))
			rt.Post("/dashboards/dialog/open", s.wrap(s.handleDialogOpen))
			rt.Post("/dashboards/dialog/close", s.wrap(s.handleDialogClose))
			rt.Post("/dashboards/dismiss", s.wrap(s.handleDashboardsDismiss))
		})
	})

	return mux
}

func (s *Server) allowedOrigins() []string {
	if len(s.deps.AllowedOrigins) == 0 {
		return []string{"*"}
	}
	return s.deps.AllowedOrigins
}

// checkOrigin applies the CORS allow list to websocket upgrades
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.allowedOrigins() {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// requestError is a malformed request rejected before any controller runs
type requestError struct{ err error }

func (e requestError) Error() string { return e.err.Error() }

func badRequest(err error) error { return requestError{err: err} }

var (
	errSessionExpired  = errors.New("unknown or expired session")
	errSessionMismatch = errors.New("session does not match the request")
	errOAuthDisabled   = errors.New("oauth is not configured")
	errJournalDisabled = errors.New("operation journal is not configured")
)

type errorBody struct {
	Error string      `json:"error"`
	Kind  remote.Kind `json:"kind,omitempty"`
}

func (s *Server) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		status, kind := statusOf(err)
		if status >= http.StatusInternalServerError {
			s.log.Warn().Err(err).Str("path", req.URL.Path).Int("status", status).Msg("request failed")
		}
		writeJSON(w, status, errorBody{Error: messageOf(err), Kind: kind})
	}
}

func statusOf(err error) (int, remote.Kind) {
	var reqErr requestError
	switch {
	case errors.As(err, &reqErr):
		return http.StatusBadRequest, remote.KindValidation
	case errors.Is(err, errSessionExpired):
		return http.StatusUnauthorized, ""
	case errors.Is(err, errSessionMismatch):
		return http.StatusForbidden, ""
	case errors.Is(err, errOAuthDisabled), errors.Is(err, errJournalDisabled):
		return http.StatusNotImplemented, ""
	case errors.Is(err, workspace.ErrBusy):
		return http.StatusConflict, remote.KindValidation
	case errors.Is(err, workspace.ErrProjectNotOpen), errors.Is(err, workspace.ErrFlowNotOpen):
		return http.StatusNotFound, remote.KindValidation
	case workspace.IsLocal(err):
		return http.StatusUnprocessableEntity, remote.KindValidation
	case errors.Is(err, auth.ErrStateNotFound), errors.Is(err, auth.ErrStateMismatch),
		errors.Is(err, oauth.ErrProviderRequired):
		return http.StatusBadRequest, remote.KindValidation
	}

	kind := remote.KindOf(err)
	switch kind {
	case remote.KindNotFound, remote.KindNoAnalysis:
		return http.StatusNotFound, kind
	case remote.KindUnauthorized:
		return http.StatusUnauthorized, kind
	case remote.KindValidation:
		return http.StatusUnprocessableEntity, kind
	}
	return http.StatusBadGateway, kind
}

func messageOf(err error) string {
	var re *remote.Error
	if errors.As(err, &re) && re.Message != "" {
		return re.Message
	}
	return err.Error()
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}
