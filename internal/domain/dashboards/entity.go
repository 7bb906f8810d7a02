package dashboards

import (
	"encoding/json"
	"time"

	"github.com/bryanwahyu/analytics-workspace/internal/domain/analysis"
)

// ID identifier type
type ID int64

// Type enum
type Type string

const (
	TypeSingleFile Type = "single_file"
	TypeComparison Type = "comparison"
	TypeMerged     Type = "merged"
)

// Dashboard is a persisted named snapshot of a result
type Dashboard struct {
	ID           ID               `json:"id"`
	Name         string           `json:"name"`
	Type         Type             `json:"type"`
	Config       json.RawMessage  `json:"config"`
	CachedCharts []analysis.Chart `json:"cached_charts,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

// CreateRequest body for the create-dashboard call
type CreateRequest struct {
	Name         string           `json:"name"`
	Type         Type             `json:"type"`
	Config       json.RawMessage  `json:"config"`
	CachedCharts []analysis.Chart `json:"cached_charts,omitempty"`
}
