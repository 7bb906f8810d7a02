package analysis

import (
	"context"

	"github.com/bryanwahyu/analytics-workspace/internal/domain/projects"
)

// Fetcher retrieves the current analysis of a file
type Fetcher interface {
	GetForFile(ctx context.Context, fileID projects.FileID) (*Record, error)
}

// Service port for the remote analysis endpoints
type Service interface {
	Fetcher
	Create(ctx context.Context, fileID projects.FileID, req Request) (*Record, error)
	ListSaved(ctx context.Context, fileID projects.FileID) ([]Record, error)
	GetSaved(ctx context.Context, id ID) (*Record, error)
	DeleteSaved(ctx context.Context, id ID) error
}
