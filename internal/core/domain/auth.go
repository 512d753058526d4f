package domain

import "time"

// TokenEnvelope is the persisted Google credential. It is the only record in
// the token store and is replaced wholesale on refresh or re-auth.
type TokenEnvelope struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	Email        string    `json:"email,omitempty"`
}

// ExpiresWithin reports whether the access token expires before now+window.
func (t *TokenEnvelope) ExpiresWithin(now time.Time, window time.Duration) bool {
	return !t.ExpiresAt.After(now.Add(window))
}

// ClientCredentials identifies the OAuth client used for Google sign-in.
type ClientCredentials struct {
	ClientID     string
	ClientSecret string
}

// AuthStatus is a point-in-time view of the stored credential.
type AuthStatus struct {
	SignedIn  bool       `json:"signed_in"`
	Email     string     `json:"email,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// SignInState is the outcome of an interactive sign-in attempt.
type SignInState string

// Sign-in outcomes.
const (
	SignInStateSignedIn       SignInState = "signed_in"
	SignInStateManualRequired SignInState = "manual_required"
)

// SignInResult is returned by the interactive sign-in. When the loopback
// flow cannot complete, State is SignInStateManualRequired and Reason holds
// the fallback reason code.
type SignInResult struct {
	State   SignInState `json:"state"`
	Status  *AuthStatus `json:"status,omitempty"`
	Reason  string      `json:"reason,omitempty"`
	Message string      `json:"message,omitempty"`
}

// ManualAuthChallenge is what the user needs to run the manual flow.
type ManualAuthChallenge struct {
	SessionID    string    `json:"session_id"`
	AuthorizeURL string    `json:"authorize_url"`
	RedirectURI  string    `json:"redirect_uri"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// ManualAuthSession holds the PKCE material for one manual sign-in.
// Sessions live in memory only.
type ManualAuthSession struct {
	SessionID    string
	State        string
	CodeVerifier string
	RedirectURI  string
	AuthorizeURL string
	ExpiresAt    time.Time
}

// Expired reports whether the session TTL has elapsed at now.
func (s *ManualAuthSession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Challenge returns the user-facing part of the session.
func (s *ManualAuthSession) Challenge() *ManualAuthChallenge {
	return &ManualAuthChallenge{
		SessionID:    s.SessionID,
		AuthorizeURL: s.AuthorizeURL,
		RedirectURI:  s.RedirectURI,
		ExpiresAt:    s.ExpiresAt,
	}
}

// OAuthCallback carries the query parameters of a provider redirect.
type OAuthCallback struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}
