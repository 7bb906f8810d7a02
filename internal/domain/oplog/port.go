package oplog

import "context"

// Repository defines persistence for operation failures
type Repository interface {
	Save(ctx context.Context, e *Entry) error
	ListBySession(ctx context.Context, sessionID string, limit int) ([]*Entry, error)
}
