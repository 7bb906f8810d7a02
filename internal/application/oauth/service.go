package oauth

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/bryanwahyu/analytics-workspace/internal/application"
	"github.com/bryanwahyu/analytics-workspace/internal/domain/auth"
)

var ErrProviderRequired = errors.New("oauth provider is required")

// Service implements the OAuth round trip. State is written before the
// redirect and consumed exactly once on the callback.
type Service struct {
	States      auth.StateStore
	Provider    auth.Provider
	Credentials auth.CredentialStore
	RedirectURI string
	StateTTL    time.Duration
	Clock       application.Clock
}

//
// ==== USE CASES ====
//

// Begin issues a fresh state and returns the provider URL to redirect to
func (s *Service) Begin(ctx context.Context, provider string) (string, error) {
	provider = strings.TrimSpace(provider)
	if provider == "" {
		return "", ErrProviderRequired
	}
	st := auth.State{
		Value:       uuid.NewString(),
		Provider:    provider,
		RedirectURI: s.RedirectURI,
		CreatedAt:   s.now(),
	}
	ttl := s.StateTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if err := s.States.Put(ctx, st, ttl); err != nil {
		return "", err
	}
	return s.Provider.AuthorizeURL(ctx, provider, st.Value, st.RedirectURI)
}

// Complete consumes the state, exchanges the code and stores the bearer
// credential locally
func (s *Service) Complete(ctx context.Context, provider, state, code string) (*auth.Token, error) {
	st, err := s.States.Consume(ctx, state)
	if err != nil {
		return nil, err
	}
	if st.Provider != provider {
		return nil, auth.ErrStateMismatch
	}
	tok, err := s.Provider.ExchangeCode(ctx, provider, code, st.RedirectURI)
	if err != nil {
		return nil, err
	}
	if err := s.Credentials.Save(tok.AccessToken); err != nil {
		return nil, errors.Wrap(err, "save credential")
	}
	return tok, nil
}

// SignOut forgets the stored bearer credential
func (s *Service) SignOut(ctx context.Context) error {
	return errors.Wrap(s.Credentials.Clear(), "clear credential")
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock.Now()
}
