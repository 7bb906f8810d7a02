package httpserver

import (
	"net/http"

	"github.com/bryanwahyu/analytics-workspace/internal/application/workspace"
	"github.com/bryanwahyu/analytics-workspace/internal/domain/comparison"
	"github.com/bryanwahyu/analytics-workspace/internal/domain/merge"
	"github.com/bryanwahyu/analytics-workspace/internal/domain/projects"
	"github.com/bryanwahyu/analytics-workspace/internal/middleware"
)

type comparisonBody struct {
	FileAID *int64  `json:"file_a_id" validate:"omitempty,gte=0"`
	FileBID *int64  `json:"file_b_id" validate:"omitempty,gte=0"`
	Type    *string `json:"comparison_type"`
}

type mergeFilesBody struct {
	FileAID  *int64  `json:"file_a_id" validate:"omitempty,gte=0"`
	FileBID  *int64  `json:"file_b_id" validate:"omitempty,gte=0"`
	JoinType *string `json:"join_type"`
}

type mergeKeysBody struct {
	LeftKey  *string         `json:"left_key"`
	RightKey *string         `json:"right_key"`
	Suffixes *merge.Suffixes `json:"suffixes"`
}

type nameBody struct {
	Name string `json:"name" validate:"max=200"`
}

// comparisonView adds the slot options to the flow state
type comparisonView struct {
	workspace.ComparisonState
	FileAOptions []projects.File `json:"file_a_options"`
	FileBOptions []projects.File `json:"file_b_options"`
}

type mergeView struct {
	workspace.MergeState
	FileAOptions []projects.File `json:"file_a_options"`
	FileBOptions []projects.File `json:"file_b_options"`
	LeftColumns  []string        `json:"left_columns"`
	RightColumns []string        `json:"right_columns"`
}

func writeComparison(w http.ResponseWriter, status int, f *workspace.ComparisonFlow) error {
	return writeJSON(w, status, comparisonView{
		ComparisonState: f.State(),
		FileAOptions:    f.FileAOptions(),
		FileBOptions:    f.FileBOptions(),
	})
}

func writeMerge(w http.ResponseWriter, status int, f *workspace.MergeFlow) error {
	left, right := f.Columns()
	return writeJSON(w, status, mergeView{
		MergeState:   f.State(),
		FileAOptions: f.FileAOptions(),
		FileBOptions: f.FileBOptions(),
		LeftColumns:  left,
		RightColumns: right,
	})
}

// pairSetter is the slot API shared by the comparison and merge flows
type pairSetter interface {
	SetFileA(id projects.FileID) error
	SetFileB(id projects.FileID) error
	SetFiles(a, b projects.FileID) error
}

// setPair applies the slots present in a request body. When both are sent
// they are validated together so {"file_a_id":2,"file_b_id":1} swaps them.
func setPair(f pairSetter, a, b *int64) error {
	switch {
	case a != nil && b != nil:
		return f.SetFiles(projects.FileID(*a), projects.FileID(*b))
	case a != nil:
		return f.SetFileA(projects.FileID(*a))
	case b != nil:
		return f.SetFileB(projects.FileID(*b))
	}
	return nil
}

func (s *Server) comparison(req *http.Request) (*workspace.ComparisonFlow, error) {
	ws, id, err := s.project(req)
	if err != nil {
		return nil, err
	}
	return ws.Comparison(id)
}

func (s *Server) merge(req *http.Request) (*workspace.MergeFlow, error) {
	ws, id, err := s.project(req)
	if err != nil {
		return nil, err
	}
	return ws.Merge(id)
}

// POST /v1/projects/{projectID}/comparison
func (s *Server) handleOpenComparison(w http.ResponseWriter, req *http.Request) error {
	ws, id, err := s.project(req)
	if err != nil {
		return err
	}
	f, err := ws.OpenComparison(id)
	if err != nil {
		return err
	}
	return writeComparison(w, http.StatusCreated, f)
}

// GET /v1/projects/{projectID}/comparison
func (s *Server) handleComparisonState(w http.ResponseWriter, req *http.Request) error {
	f, err := s.comparison(req)
	if err != nil {
		return err
	}
	return writeComparison(w, http.StatusOK, f)
}

// PUT /v1/projects/{projectID}/comparison
// Body: {"file_a_id": 1, "file_b_id": 2, "comparison_type": "trend"}; every field optional
func (s *Server) handleConfigureComparison(w http.ResponseWriter, req *http.Request) error {
	f, err := s.comparison(req)
	if err != nil {
		return err
	}
	var body comparisonBody
	if err := decodeBody(req, &body, false); err != nil {
		return err
	}
	if err := setPair(f, body.FileAID, body.FileBID); err != nil {
		return err
	}
	if body.Type != nil {
		if err := f.SetType(comparison.Type(*body.Type)); err != nil {
			return err
		}
	}
	return writeComparison(w, http.StatusOK, f)
}

// DELETE /v1/projects/{projectID}/comparison
func (s *Server) handleCloseComparison(w http.ResponseWriter, req *http.Request) error {
	ws, id, err := s.project(req)
	if err != nil {
		return err
	}
	ws.CloseComparison(id)
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// POST /v1/projects/{projectID}/comparison/run
func (s *Server) handleCompare(w http.ResponseWriter, req *http.Request) error {
	f, err := s.comparison(req)
	if err != nil {
		return err
	}
	if _, err := f.Compare(req.Context()); err != nil && workspace.IsLocal(err) {
		return err
	}
	return writeComparison(w, http.StatusOK, f)
}

// POST /v1/projects/{projectID}/comparison/reset
func (s *Server) handleComparisonReset(w http.ResponseWriter, req *http.Request) error {
	f, err := s.comparison(req)
	if err != nil {
		return err
	}
	f.Reset()
	return writeComparison(w, http.StatusOK, f)
}

// POST /v1/projects/{projectID}/comparison/dismiss
func (s *Server) handleComparisonDismiss(w http.ResponseWriter, req *http.Request) error {
	f, err := s.comparison(req)
	if err != nil {
		return err
	}
	f.DismissError()
	return writeComparison(w, http.StatusOK, f)
}

// POST /v1/projects/{projectID}/comparison/dashboard
// Body: {"name": "..."}
func (s *Server) handleComparisonDashboard(w http.ResponseWriter, req *http.Request) error {
	f, err := s.comparison(req)
	if err != nil {
		return err
	}
	var body nameBody
	if err := decodeBody(req, &body, false); err != nil {
		return err
	}
	d, err := f.SaveAsDashboard(req.Context(), middleware.SanitizeString(body.Name))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, d)
}

// POST /v1/projects/{projectID}/merge
func (s *Server) handleOpenMerge(w http.ResponseWriter, req *http.Request) error {
	ws, id, err := s.project(req)
	if err != nil {
		return err
	}
	f, err := ws.OpenMerge(id)
	if err != nil {
		return err
	}
	return writeMerge(w, http.StatusCreated, f)
}

// GET /v1/projects/{projectID}/merge
func (s *Server) handleMergeState(w http.ResponseWriter, req *http.Request) error {
	f, err := s.merge(req)
	if err != nil {
		return err
	}
	return writeMerge(w, http.StatusOK, f)
}

// DELETE /v1/projects/{projectID}/merge
func (s *Server) handleCloseMerge(w http.ResponseWriter, req *http.Request) error {
	ws, id, err := s.project(req)
	if err != nil {
		return err
	}
	ws.CloseMerge(id)
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// PUT /v1/projects/{projectID}/merge/files
// Body: {"file_a_id": 1, "file_b_id": 2, "join_type": "left"}; step 1 only
func (s *Server) handleMergeFiles(w http.ResponseWriter, req *http.Request) error {
	f, err := s.merge(req)
	if err != nil {
		return err
	}
	var body mergeFilesBody
	if err := decodeBody(req, &body, false); err != nil {
		return err
	}
	if err := setPair(f, body.FileAID, body.FileBID); err != nil {
		return err
	}
	if body.JoinType != nil {
		if err := f.SetJoinType(merge.JoinType(*body.JoinType)); err != nil {
			return err
		}
	}
	return writeMerge(w, http.StatusOK, f)
}

// PUT /v1/projects/{projectID}/merge/keys
// Body: {"left_key": "id", "right_key": "customer_id", "suffixes": {...}}; step 2 only
func (s *Server) handleMergeKeys(w http.ResponseWriter, req *http.Request) error {
	f, err := s.merge(req)
	if err != nil {
		return err
	}
	var body mergeKeysBody
	if err := decodeBody(req, &body, false); err != nil {
		return err
	}
	if body.LeftKey != nil {
		if err := f.SetLeftKey(*body.LeftKey); err != nil {
			return err
		}
	}
	if body.RightKey != nil {
		if err := f.SetRightKey(*body.RightKey); err != nil {
			return err
		}
	}
	if body.Suffixes != nil {
		if err := f.SetSuffixes(body.Suffixes); err != nil {
			return err
		}
	}
	return writeMerge(w, http.StatusOK, f)
}

// mergeStep runs a wizard command and answers with the wizard state
func (s *Server) mergeStep(w http.ResponseWriter, req *http.Request, fn func(f *workspace.MergeFlow) error) error {
	f, err := s.merge(req)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil && workspace.IsLocal(err) {
		return err
	}
	return writeMerge(w, http.StatusOK, f)
}

// POST /v1/projects/{projectID}/merge/next
func (s *Server) handleMergeNext(w http.ResponseWriter, req *http.Request) error {
	return s.mergeStep(w, req, func(f *workspace.MergeFlow) error { return f.NextStep() })
}

// POST /v1/projects/{projectID}/merge/prev
func (s *Server) handleMergePrev(w http.ResponseWriter, req *http.Request) error {
	return s.mergeStep(w, req, func(f *workspace.MergeFlow) error { return f.PrevStep() })
}

// POST /v1/projects/{projectID}/merge/execute
func (s *Server) handleMergeExecute(w http.ResponseWriter, req *http.Request) error {
	return s.mergeStep(w, req, func(f *workspace.MergeFlow) error {
		_, err := f.Execute(req.Context())
		return err
	})
}

// POST /v1/projects/{projectID}/merge/retry
func (s *Server) handleMergeRetry(w http.ResponseWriter, req *http.Request) error {
	return s.mergeStep(w, req, func(f *workspace.MergeFlow) error {
		_, err := f.Retry(req.Context())
		return err
	})
}

// POST /v1/projects/{projectID}/merge/reset
func (s *Server) handleMergeReset(w http.ResponseWriter, req *http.Request) error {
	return s.mergeStep(w, req, func(f *workspace.MergeFlow) error {
		f.Reset()
		return nil
	})
}

// POST /v1/projects/{projectID}/merge/dismiss
func (s *Server) handleMergeDismiss(w http.ResponseWriter, req *http.Request) error {
	return s.mergeStep(w, req, func(f *workspace.MergeFlow) error {
		f.DismissError()
		return nil
	})
}

// POST /v1/projects/{projectID}/merge/dashboard
// Body: {"name": "..."}
func (s *Server) handleMergeDashboard(w http.ResponseWriter, req *http.Request) error {
	f, err := s.merge(req)
	if err != nil {
		return err
	}
	var body nameBody
	if err := decodeBody(req, &body, false); err != nil {
		return err
	}
	d, err := f.SaveAsDashboard(req.Context(), middleware.SanitizeString(body.Name))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, d)
}
