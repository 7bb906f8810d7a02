package httpserver

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"github.com/bryanwahyu/analytics-workspace/internal/application/workspace"
	"github.com/bryanwahyu/analytics-workspace/internal/domain/analysis"
	"github.com/bryanwahyu/analytics-workspace/internal/domain/projects"
	"github.com/bryanwahyu/analytics-workspace/internal/middleware"
)

type openProjectsBody struct {
	IDs []int64 `json:"ids" validate:"required,min=1,max=20,dive,gt=0"`
}

type intentBody struct {
	Intent string `json:"intent" validate:"max=2000"`
}

type messageBody struct {
	Text string `json:"text" validate:"max=8000"`
}

// openProjectsView lists the open projects and those holding unsaved work
type openProjectsView struct {
	Open              []projects.ProjectID `json:"open"`
	NavigationWarning []projects.ProjectID `json:"navigation_warning"`
}

func decodeBody(req *http.Request, dst any, optional bool) error {
	if optional && (req.Body == nil || req.ContentLength == 0) {
		return nil
	}
	if err := middleware.DecodeJSON(req, dst); err != nil {
		return badRequest(err)
	}
	return nil
}

func idParam(req *http.Request, name string) (int64, error) {
	n, err := middleware.PositiveID(chi.URLParam(req, name))
	if err != nil {
		return 0, badRequest(err)
	}
	return n, nil
}

func (s *Server) workspace(req *http.Request) (*workspace.Workspace, error) {
	sess, err := s.session(req)
	if err != nil {
		return nil, err
	}
	return sess.Workspace, nil
}

// project resolves the session workspace and the {projectID} param
func (s *Server) project(req *http.Request) (*workspace.Workspace, projects.ProjectID, error) {
	ws, err := s.workspace(req)
	if err != nil {
		return nil, 0, err
	}
	id, err := idParam(req, "projectID")
	if err != nil {
		return nil, 0, err
	}
	return ws, projects.ProjectID(id), nil
}

func writeView(w http.ResponseWriter, ws *workspace.Workspace, id projects.ProjectID) error {
	view, err := ws.View(id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, view)
}

// GET /v1/projects
func (s *Server) handleListProjects(w http.ResponseWriter, req *http.Request) error {
	ws, err := s.workspace(req)
	if err != nil {
		return err
	}
	list, err := ws.Projects(req.Context())
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, list)
}

// POST /v1/projects/open
// Body: {"ids": [1, 2]}
func (s *Server) handleOpenProjects(w http.ResponseWriter, req *http.Request) error {
	ws, err := s.workspace(req)
	if err != nil {
		return err
	}
	var body openProjectsBody
	if err := decodeBody(req, &body, false); err != nil {
		return err
	}
	ids := make([]projects.ProjectID, 0, len(body.IDs))
	for _, id := range body.IDs {
		ids = append(ids, projects.ProjectID(id))
	}
	if err := ws.Open(req.Context(), ids...); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, openProjectsView{Open: ws.OpenProjects(), NavigationWarning: ws.NavigationWarnings()})
}

// GET /v1/projects/open
func (s *Server) handleOpenProjectList(w http.ResponseWriter, req *http.Request) error {
	ws, err := s.workspace(req)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, openProjectsView{Open: ws.OpenProjects(), NavigationWarning: ws.NavigationWarnings()})
}

// GET /v1/projects/{projectID}
func (s *Server) handleProjectView(w http.ResponseWriter, req *http.Request) error {
	ws, id, err := s.project(req)
	if err != nil {
		return err
	}
	return writeView(w, ws, id)
}

// DELETE /v1/projects/{projectID}
func (s *Server) handleCloseProject(w http.ResponseWriter, req *http.Request) error {
	ws, id, err := s.project(req)
	if err != nil {
		return err
	}
	ws.Close(id)
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// POST /v1/projects/{projectID}/files/{fileID}/select
func (s *Server) handleSelectFile(w http.ResponseWriter, req *http.Request) error {
	ws, id, err := s.project(req)
	if err != nil {
		return err
	}
	fileID, err := idParam(req, "fileID")
	if err != nil {
		return err
	}
	// the failure stays in the selection state; the view carries it
	if err := ws.SelectFile(req.Context(), id, projects.FileID(fileID)); err != nil && workspace.IsLocal(err) {
		return err
	}
	return writeView(w, ws, id)
}

// POST /v1/projects/{projectID}/selection/clear
func (s *Server) handleDeselect(w http.ResponseWriter, req *http.Request) error {
	ws, id, err := s.project(req)
	if err != nil {
		return err
	}
	if err := ws.DeselectFile(id); err != nil {
		return err
	}
	return writeView(w, ws, id)
}

// POST /v1/projects/{projectID}/selection/retry
func (s *Server) handleSelectionRetry(w http.ResponseWriter, req *http.Request) error {
	ws, id, err := s.project(req)
	if err != nil {
		return err
	}
	sel, err := ws.Selection(id)
	if err != nil {
		return err
	}
	if err := sel.Retry(req.Context()); err != nil && workspace.IsLocal(err) {
		return err
	}
	return writeView(w, ws, id)
}

// POST /v1/projects/{projectID}/selection/dismiss
func (s *Server) handleSelectionDismiss(w http.ResponseWriter, req *http.Request) error {
	ws, id, err := s.project(req)
	if err != nil {
		return err
	}
	sel, err := ws.Selection(id)
	if err != nil {
		return err
	}
	sel.DismissError()
	return writeView(w, ws, id)
}

// versions runs fn against the version manager of {projectID} and answers
// with the project view. Remote failures are part of the view.
func (s *Server) versions(w http.ResponseWriter, req *http.Request, fn func(v *workspace.AnalysisVersions) error) error {
	ws, id, err := s.project(req)
	if err != nil {
		return err
	}
	v, err := ws.Versions(id)
	if err != nil {
		return err
	}
	if err := fn(v); err != nil && workspace.IsLocal(err) {
		return err
	}
	return writeView(w, ws, id)
}

// POST /v1/projects/{projectID}/versions/reload
func (s *Server) handleVersionsReload(w http.ResponseWriter, req *http.Request) error {
	return s.versions(w, req, func(v *workspace.AnalysisVersions) error {
		return v.LoadSaved(req.Context())
	})
}

// POST /v1/projects/{projectID}/versions/generate
// Body (optional): {"intent": "..."}
func (s *Server) handleGenerate(w http.ResponseWriter, req *http.Request) error {
	var body intentBody
	if err := decodeBody(req, &body, true); err != nil {
		return err
	}
	return s.versions(w, req, func(v *workspace.AnalysisVersions) error {
		_, err := v.Generate(req.Context(), middleware.SanitizeString(body.Intent))
		return err
	})
}

// POST /v1/projects/{projectID}/versions/save
// Body (optional): {"intent": "..."}
func (s *Server) handleSave(w http.ResponseWriter, req *http.Request) error {
	var body intentBody
	if err := decodeBody(req, &body, true); err != nil {
		return err
	}
	return s.versions(w, req, func(v *workspace.AnalysisVersions) error {
		_, err := v.Save(req.Context(), middleware.SanitizeString(body.Intent))
		return err
	})
}

// GET /v1/projects/{projectID}/versions/{analysisID}
func (s *Server) handleViewSaved(w http.ResponseWriter, req *http.Request) error {
	aid, err := idParam(req, "analysisID")
	if err != nil {
		return err
	}
	return s.versions(w, req, func(v *workspace.AnalysisVersions) error {
		_, err := v.View(req.Context(), analysis.ID(aid))
		return err
	})
}

// DELETE /v1/projects/{projectID}/versions/{analysisID}
func (s *Server) handleDeleteSaved(w http.ResponseWriter, req *http.Request) error {
	aid, err := idParam(req, "analysisID")
	if err != nil {
		return err
	}
	return s.versions(w, req, func(v *workspace.AnalysisVersions) error {
		return v.Delete(req.Context(), analysis.ID(aid))
	})
}

// POST /v1/projects/{projectID}/versions/temp/{index}
func (s *Server) handleSelectTemp(w http.ResponseWriter, req *http.Request) error {
	i, err := strconv.Atoi(chi.URLParam(req, "index"))
	if err != nil {
		return badRequest(errors.Wrap(err, "index"))
	}
	return s.versions(w, req, func(v *workspace.AnalysisVersions) error {
		return v.SelectTemp(i)
	})
}

// POST /v1/projects/{projectID}/versions/back
func (s *Server) handleBackToList(w http.ResponseWriter, req *http.Request) error {
	return s.versions(w, req, func(v *workspace.AnalysisVersions) error {
		v.BackToList()
		return nil
	})
}

// POST /v1/projects/{projectID}/versions/dismiss
func (s *Server) handleVersionsDismiss(w http.ResponseWriter, req *http.Request) error {
	return s.versions(w, req, func(v *workspace.AnalysisVersions) error {
		v.DismissError()
		return nil
	})
}

// POST /v1/projects/{projectID}/chat/messages
// Body: {"text": "..."}
func (s *Server) handleSendMessage(w http.ResponseWriter, req *http.Request) error {
	ws, id, err := s.project(req)
	if err != nil {
		return err
	}
	var body messageBody
	if err := decodeBody(req, &body, false); err != nil {
		return err
	}
	c, err := ws.Chat(id)
	if err != nil {
		return err
	}
	if _, err := c.SendMessage(req.Context(), middleware.SanitizeString(body.Text)); err != nil && workspace.IsLocal(err) {
		return err
	}
	return writeJSON(w, http.StatusOK, c.State())
}

// POST /v1/projects/{projectID}/chat/dismiss
func (s *Server) handleChatDismiss(w http.ResponseWriter, req *http.Request) error {
	ws, id, err := s.project(req)
	if err != nil {
		return err
	}
	c, err := ws.Chat(id)
	if err != nil {
		return err
	}
	c.DismissError()
	return writeJSON(w, http.StatusOK, c.State())
}
