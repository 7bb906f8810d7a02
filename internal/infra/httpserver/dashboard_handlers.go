package httpserver

import (
	"net/http"

	"github.com/bryanwahyu/analytics-workspace/internal/domain/dashboards"
)

// GET /v1/dashboards
func (s *Server) handleListDashboards(w http.ResponseWriter, req *http.Request) error {
	ws, err := s.workspace(req)
	if err != nil {
		return err
	}
	list, err := ws.Dashboards().List(req.Context())
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, list)
}

// GET /v1/dashboards/state
func (s *Server) handleDashboardsState(w http.ResponseWriter, req *http.Request) error {
	ws, err := s.workspace(req)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, ws.Dashboards().State())
}

// DELETE /v1/dashboards/{dashboardID}
func (s *Server) handleDeleteDashboard(w http.ResponseWriter, req *http.Request) error {
	ws, err := s.workspace(req)
	if err != nil {
		return err
	}
	id, err := idParam(req, "dashboardID")
	if err != nil {
		return err
	}
	if err := ws.Dashboards().Delete(req.Context(), dashboards.ID(id)); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// POST /v1/dashboards/dialog/open
func (s *Server) handleDialogOpen(w http.ResponseWriter, req *http.Request) error {
	ws, err := s.workspace(req)
	if err != nil {
		return err
	}
	ws.Dashboards().Open()
	return writeJSON(w, http.StatusOK, ws.Dashboards().State())
}

// POST /v1/dashboards/dialog/close
func (s *Server) handleDialogClose(w http.ResponseWriter, req *http.Request) error {
	ws, err := s.workspace(req)
	if err != nil {
		return err
	}
	if err := ws.Dashboards().Close(); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, ws.Dashboards().State())
}

// POST /v1/dashboards/dismiss
func (s *Server) handleDashboardsDismiss(w http.ResponseWriter, req *http.Request) error {
	ws, err := s.workspace(req)
	if err != nil {
		return err
	}
	ws.Dashboards().DismissError()
	return writeJSON(w, http.StatusOK, ws.Dashboards().State())
}
