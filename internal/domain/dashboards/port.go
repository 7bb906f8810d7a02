package dashboards

import "context"

// Service port for the remote dashboard endpoints
type Service interface {
	CreateDashboard(ctx context.Context, req CreateRequest) (*Dashboard, error)
	ListDashboards(ctx context.Context) ([]Dashboard, error)
	DeleteDashboard(ctx context.Context, id ID) error
}

// SnapshotStore keeps a copy of a dashboard's chart payload
type SnapshotStore interface {
	PutSnapshot(ctx context.Context, key string, payload []byte) (string, error)
}
