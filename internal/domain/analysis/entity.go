package analysis

import (
	"encoding/json"
	"time"

	"github.com/bryanwahyu/analytics-workspace/internal/domain/projects"
)

// ID identifier type for persisted analyses
type ID int64

// Chart is one generated chart. Data and Config are passed through to the
// renderer untouched.
type Chart struct {
	ID     string          `json:"id,omitempty"`
	Type   string          `json:"type"`
	Title  string          `json:"title,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
	Config json.RawMessage `json:"config,omitempty"`
}

// Record is a persisted analysis. Immutable once created.
type Record struct {
	ID        ID              `json:"id"`
	FileID    projects.FileID `json:"file_id"`
	Charts    []Chart         `json:"charts"`
	Summary   string          `json:"summary,omitempty"`
	Intent    string          `json:"intent,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Temporary is an analysis generated in the current session and not persisted
type Temporary struct {
	FileID    projects.FileID `json:"file_id"`
	Charts    []Chart         `json:"charts"`
	Summary   string          `json:"summary,omitempty"`
	Intent    string          `json:"intent,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// AsTemporary drops the id of a record returned by a non-persisting request
func (r Record) AsTemporary() Temporary {
	return Temporary{
		FileID:    r.FileID,
		Charts:    r.Charts,
		Summary:   r.Summary,
		Intent:    r.Intent,
		CreatedAt: r.CreatedAt,
	}
}

// Request asks the remote service to generate an analysis
type Request struct {
	Intent string `json:"intent,omitempty"`
	Save   bool   `json:"save"`
}

// Mode of a file's analysis view
type Mode string

const (
	ModeList Mode = "list"
	ModeView Mode = "view"
	ModeTemp Mode = "temp"
)
