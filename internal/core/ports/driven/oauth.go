package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/sourcestack/internal/core/domain"
)

// OAuthClient talks to the OAuth provider's endpoints.
//
// ExchangeCode and RefreshToken return *domain.Error values: reauth_required
// when the response marks the grant as invalid, provider_error for any other
// non-success response and transport_error when no response was received.
type OAuthClient interface {
	// AuthCodeURL builds the authorization URL carrying state and a S256
	// PKCE code challenge.
	AuthCodeURL(creds domain.ClientCredentials, redirectURI, state, codeChallenge string) string

	// ExchangeCode trades an authorization code for tokens.
	// The returned envelope has no email set.
	ExchangeCode(ctx context.Context, creds domain.ClientCredentials, code, codeVerifier, redirectURI string) (*domain.TokenEnvelope, error)

	// RefreshToken obtains a new access token. The returned envelope's
	// RefreshToken is empty when the provider did not rotate it.
	RefreshToken(ctx context.Context, creds domain.ClientCredentials, refreshToken string) (*domain.TokenEnvelope, error)

	// UserEmail returns the email of the account the token belongs to.
	UserEmail(ctx context.Context, accessToken string) (string, error)
}

// LoopbackListener is a local HTTP listener that receives one OAuth redirect.
type LoopbackListener interface {
	// RedirectURI is the callback URL to register with the authorization request.
	RedirectURI() string

	// WaitForCallback blocks until one callback arrives, the timeout elapses
	// (domain loopback_timeout) or ctx is done.
	WaitForCallback(ctx context.Context, timeout time.Duration) (*domain.OAuthCallback, error)

	// Close stops the listener.
	Close() error
}

// ListenFunc binds a new LoopbackListener on an ephemeral local port.
type ListenFunc func() (LoopbackListener, error)

// BrowserLauncher opens a URL in the user's browser.
type BrowserLauncher interface {
	Open(url string) error
}
