package httpserver

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"github.com/bryanwahyu/analytics-workspace/internal/middleware"
)

func (s *Server) session(req *http.Request) (*Session, error) {
	sess, ok := s.sessions.Get(middleware.SessionFromContext(req.Context()))
	if !ok {
		return nil, errSessionExpired
	}
	return sess, nil
}

// POST /v1/sessions
func (s *Server) handleCreateSession(w http.ResponseWriter, req *http.Request) error {
	sess := s.sessions.Create()
	s.log.Info().Str("session", sess.ID).Msg("session created")
	return writeJSON(w, http.StatusCreated, sess)
}

// GET /v1/events?session=<id>
func (s *Server) handleEvents(w http.ResponseWriter, req *http.Request) {
	s.hub.Serve(w, req, middleware.SessionFromContext(req.Context()))
}

// GET /v1/sessions/{sessionID}/errors?limit=20
func (s *Server) handleSessionErrors(w http.ResponseWriter, req *http.Request) error {
	sess, err := s.session(req)
	if err != nil {
		return err
	}
	if chi.URLParam(req, "sessionID") != sess.ID {
		return errSessionMismatch
	}
	if s.deps.Journal == nil {
		return errJournalDisabled
	}
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	list, err := s.deps.Journal.ListBySession(req.Context(), sess.ID, middleware.ValidateLimit(limit))
	if err != nil {
		return errors.Wrap(err, "list journal")
	}
	return writeJSON(w, http.StatusOK, list)
}

// GET /v1/auth/{provider}/login
func (s *Server) handleLogin(w http.ResponseWriter, req *http.Request) error {
	if s.deps.OAuth == nil {
		return errOAuthDisabled
	}
	target, err := s.deps.OAuth.Begin(req.Context(), chi.URLParam(req, "provider"))
	if err != nil {
		return err
	}
	http.Redirect(w, req, target, http.StatusFound)
	return nil
}

// DELETE /v1/auth/credential
func (s *Server) handleSignOut(w http.ResponseWriter, req *http.Request) error {
	if s.deps.OAuth == nil {
		return errOAuthDisabled
	}
	if err := s.deps.OAuth.SignOut(req.Context()); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// GET /v1/auth/{provider}/callback?state=&code=
func (s *Server) handleCallback(w http.ResponseWriter, req *http.Request) error {
	if s.deps.OAuth == nil {
		return errOAuthDisabled
	}
	q := req.URL.Query()
	if e := q.Get("error"); e != "" {
		return badRequest(errors.Errorf("provider denied login: %s", middleware.SanitizeString(e)))
	}
	state, code := strings.TrimSpace(q.Get("state")), strings.TrimSpace(q.Get("code"))
	if state == "" || code == "" {
		return badRequest(errors.New("state and code are required"))
	}
	tok, err := s.deps.OAuth.Complete(req.Context(), chi.URLParam(req, "provider"), state, code)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{
		"status":     "authenticated",
		"token_type": tok.TokenType,
		"expires_in": tok.ExpiresIn,
	})
}
