package merge

import "context"

// Service port for the remote merge endpoints
type Service interface {
	CreateRelationship(ctx context.Context, req RelationshipRequest) (*Relationship, error)
	AnalyzeRelationship(ctx context.Context, id RelationshipID) (*Result, error)
}
