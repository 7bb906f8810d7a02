package auth

import (
	"context"
	"time"
)

// StateStore holds OAuth state for a single redirect round trip.
// Consume returns the state at most once.
type StateStore interface {
	Put(ctx context.Context, s State, ttl time.Duration) error
	Consume(ctx context.Context, value string) (*State, error)
}

// Provider port for the remote OAuth endpoints
type Provider interface {
	AuthorizeURL(ctx context.Context, provider, state, redirectURI string) (string, error)
	ExchangeCode(ctx context.Context, provider, code, redirectURI string) (*Token, error)
}

// CredentialStore persists the bearer credential locally
type CredentialStore interface {
	Save(token string) error
	Clear() error
}
