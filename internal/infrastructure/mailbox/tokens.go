package mailbox

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/oauth2"
)

// TokenSourceFactory builds an impersonating token source for one domain
// user. How impersonation happens (service account with domain-wide
// delegation in production) is the caller's concern.
type TokenSourceFactory func(userEmail string) oauth2.TokenSource

// OAuthTokenProvider hands out per-user access tokens, reusing the
// underlying token sources so refresh tokens are not burned on every
// mailbox dial.
type OAuthTokenProvider struct {
	factory TokenSourceFactory

	mu      sync.Mutex
	sources map[string]oauth2.TokenSource
}

func NewOAuthTokenProvider(factory TokenSourceFactory) *OAuthTokenProvider {
	return &OAuthTokenProvider{
		factory: factory,
		sources: make(map[string]oauth2.TokenSource),
	}
}

func (p *OAuthTokenProvider) AccessToken(ctx context.Context, userEmail string, forceRefresh bool) (string, error) {
	p.mu.Lock()
	source, ok := p.sources[userEmail]
	if !ok || forceRefresh {
		source = p.factory(userEmail)
		p.sources[userEmail] = source
	}
	p.mu.Unlock()

	token, err := source.Token()
	if err != nil {
		return "", fmt.Errorf("mint token for %s: %w", userEmail, err)
	}
	return token.AccessToken, nil
}
