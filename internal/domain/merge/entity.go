package merge

import (
	"github.com/bryanwahyu/analytics-workspace/internal/domain/analysis"
	"github.com/bryanwahyu/analytics-workspace/internal/domain/projects"
)

// JoinType enum
type JoinType string

const (
	JoinInner JoinType = "inner"
	JoinLeft  JoinType = "left"
	JoinRight JoinType = "right"
	JoinOuter JoinType = "outer"
)

func (j JoinType) Valid() bool {
	switch j {
	case JoinInner, JoinLeft, JoinRight, JoinOuter:
		return true
	}
	return false
}

// Suffixes appended to colliding column names
type Suffixes struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

// RelationshipRequest describes a join between two files
type RelationshipRequest struct {
	FileAID  projects.FileID `json:"file_a_id"`
	FileBID  projects.FileID `json:"file_b_id"`
	JoinType JoinType        `json:"join_type"`
	LeftKey  string          `json:"left_key"`
	RightKey string          `json:"right_key"`
	Suffixes *Suffixes       `json:"suffixes,omitempty"`
}

// RelationshipID identifier type
type RelationshipID int64

// Relationship is a join created server-side
type Relationship struct {
	ID RelationshipID `json:"id"`
	RelationshipRequest
}

// Result of analyzing a joined dataset. Always derived from one Relationship.
type Result struct {
	RelationshipID RelationshipID   `json:"relationship_id"`
	RowCount       int              `json:"row_count"`
	Schema         projects.Schema  `json:"schema"`
	Charts         []analysis.Chart `json:"charts"`
	Summary        string           `json:"summary,omitempty"`
}
