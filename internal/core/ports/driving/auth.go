package driving

import (
	"context"

	"github.com/custodia-labs/sourcestack/internal/core/domain"
)

// AuthService manages the Google credential the job pipeline depends on.
type AuthService interface {
	// SignIn runs the interactive loopback flow. When the flow cannot
	// complete on this machine the result asks for the manual flow instead
	// of returning an error.
	SignIn(ctx context.Context) (*domain.SignInResult, error)

	// BeginManualSignIn issues a copy-paste challenge valid for ten minutes.
	BeginManualSignIn(ctx context.Context) (*domain.ManualAuthChallenge, error)

	// CompleteManualSignIn finishes a manual sign-in from a pasted redirect
	// URL or bare authorization code.
	CompleteManualSignIn(ctx context.Context, sessionID, callbackURLOrCode string) (*domain.AuthStatus, error)

	// AccessToken returns a valid access token, refreshing it if it expires
	// within five minutes. It never starts an interactive flow.
	AccessToken(ctx context.Context) (string, error)

	// SignOut deletes the stored token and all pending manual sessions.
	SignOut(ctx context.Context) error

	// Status reports the stored credential without any network I/O.
	Status(ctx context.Context) (*domain.AuthStatus, error)
}
