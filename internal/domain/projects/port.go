package projects

import "context"

// Source port for reading projects and their files
type Source interface {
	ListProjects(ctx context.Context) ([]Project, error)
	GetProject(ctx context.Context, id ProjectID) (*Project, error)
}
