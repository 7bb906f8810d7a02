package chat

import "context"

// Service port for the remote chat endpoint
type Service interface {
	Query(ctx context.Context, q Query) (*Answer, error)
}
