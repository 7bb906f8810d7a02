package projects

import "time"

// ProjectID identifier type
type ProjectID int64

// FileID identifier type
type FileID int64

// Column is one inferred column of an uploaded file
type Column struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// Schema row/column summary inferred by the remote service
type Schema struct {
	Rows    int      `json:"rows"`
	Columns []Column `json:"columns"`
}

// ColumnNames returns column names in schema order
func (s Schema) ColumnNames() []string {
	out := make([]string, 0, len(s.Columns))
	for _, c := range s.Columns {
		out = append(out, c.Name)
	}
	return out
}

// File is an uploaded tabular dataset
type File struct {
	ID          FileID    `json:"id"`
	ProjectID   ProjectID `json:"project_id"`
	Filename    string    `json:"filename"`
	Size        int64     `json:"size"`
	Schema      Schema    `json:"schema"`
	UploadID    string    `json:"upload_id"` // scopes chat conversations
	HasAnalysis bool      `json:"has_analysis"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// Project is a named workspace holding zero or more files
type Project struct {
	ID          ProjectID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Files       []File    `json:"files"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// File looks up a file of the project by id
func (p Project) File(id FileID) (File, bool) {
	for _, f := range p.Files {
		if f.ID == id {
			return f, true
		}
	}
	return File{}, false
}

// SupportsPairs reports whether comparison and merge can be offered.
func (p Project) SupportsPairs() bool {
	return len(p.Files) >= 2
}
