package comparison

import (
	"github.com/bryanwahyu/analytics-workspace/internal/domain/analysis"
	"github.com/bryanwahyu/analytics-workspace/internal/domain/projects"
)

// Type enum
type Type string

const (
	TypeTrend      Type = "trend"
	TypeYoY        Type = "yoy"
	TypeSideBySide Type = "side_by_side"
)

// DefaultType is used until the user picks another one
const DefaultType = TypeSideBySide

func (t Type) Valid() bool {
	switch t {
	case TypeTrend, TypeYoY, TypeSideBySide:
		return true
	}
	return false
}

// Request to compare two distinct files
type Request struct {
	FileAID projects.FileID `json:"file_a_id"`
	FileBID projects.FileID `json:"file_b_id"`
	Type    Type            `json:"comparison_type"`
}

// Result overlay charts for the two files
type Result struct {
	FileAID projects.FileID  `json:"file_a_id"`
	FileBID projects.FileID  `json:"file_b_id"`
	Type    Type             `json:"comparison_type"`
	Charts  []analysis.Chart `json:"charts"`
	Summary string           `json:"summary"`
}
