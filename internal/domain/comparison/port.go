package comparison

import "context"

// Service port for the remote comparison endpoint
type Service interface {
	Compare(ctx context.Context, req Request) (*Result, error)
}
