package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/custodia-labs/sourcestack/internal/core/domain"
	"github.com/custodia-labs/sourcestack/internal/core/ports/driven"
	"github.com/custodia-labs/sourcestack/internal/core/ports/driving"
	"github.com/custodia-labs/sourcestack/internal/logger"
)

// Ensure AuthService implements the interface.
var _ driving.AuthService = (*AuthService)(nil)

const (
	// defaultLoopbackTimeout bounds the wait for the browser redirect.
	defaultLoopbackTimeout = 90 * time.Second

	// tokenRefreshWindow is how close to expiry a token is refreshed.
	tokenRefreshWindow = 5 * time.Minute

	// Manual redirect ports are drawn from the dynamic range and never bound.
	manualPortMin = 49152
	manualPortMax = 65000
)

// AuthService drives the Google OAuth2 + PKCE flows and owns the stored
// token. The interactive flow listens on a loopback port; the manual flow
// has the user paste the redirect URL back.
type AuthService struct {
	settings driving.SettingsService
	oauth    driven.OAuthClient
	tokens   driven.SecretStore
	listen   driven.ListenFunc
	browser  driven.BrowserLauncher

	sessions *manualSessions
	refresh  singleflight.Group

	// mu orders token store reads and writes; never held across network I/O.
	mu sync.RWMutex

	now             func() time.Time
	loopbackTimeout time.Duration
}

// AuthServiceOption configures an AuthService.
type AuthServiceOption func(*AuthService)

// WithClock overrides the time source.
func WithClock(now func() time.Time) AuthServiceOption {
	return func(s *AuthService) { s.now = now }
}

// WithLoopbackTimeout overrides how long SignIn waits for the redirect.
func WithLoopbackTimeout(d time.Duration) AuthServiceOption {
	return func(s *AuthService) { s.loopbackTimeout = d }
}

// NewAuthService creates a new auth service.
func NewAuthService(
	settings driving.SettingsService,
	oauth driven.OAuthClient,
	tokens driven.SecretStore,
	listen driven.ListenFunc,
	browser driven.BrowserLauncher,
	opts ...AuthServiceOption,
) *AuthService {
	s := &AuthService{
		settings:        settings,
		oauth:           oauth,
		tokens:          tokens,
		listen:          listen,
		browser:         browser,
		sessions:        newManualSessions(),
		now:             time.Now,
		loopbackTimeout: defaultLoopbackTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SignIn runs the interactive flow. Failures that depend on the local
// browser or network come back as a manual-required result, not an error.
func (s *AuthService) SignIn(ctx context.Context) (*domain.SignInResult, error) {
	creds, err := s.credentials(ctx)
	if err != nil {
		return nil, err
	}

	env, err := s.authorizeInteractive(ctx, creds)
	if err != nil {
		if reason := domain.FallbackReason(err); reason != "" {
			logger.Info("Interactive sign-in unavailable (%s), manual sign-in required", reason)
			return &domain.SignInResult{
				State:   domain.SignInStateManualRequired,
				Reason:  reason,
				Message: err.Error(),
			}, nil
		}
		return nil, err
	}

	if err := s.saveToken(ctx, env); err != nil {
		return nil, err
	}
	logger.Info("Signed in to Google as %s", displayEmail(env.Email))
	return &domain.SignInResult{State: domain.SignInStateSignedIn, Status: statusOf(env)}, nil
}

func (s *AuthService) authorizeInteractive(ctx context.Context, creds domain.ClientCredentials) (*domain.TokenEnvelope, error) {
	listener, err := s.listen()
	if err != nil {
		return nil, domain.WrapAuthError(domain.CodeLoopbackUnavailable,
			"Could not start the local sign-in listener.", err)
	}
	defer func() { _ = listener.Close() }()

	params, err := newPKCEParams()
	if err != nil {
		return nil, err
	}
	redirectURI := listener.RedirectURI()
	authURL := s.oauth.AuthCodeURL(creds, redirectURI, params.State, params.Challenge)

	logger.Debug("Opening browser for Google sign-in, redirect %s", redirectURI)
	if err := s.browser.Open(authURL); err != nil {
		return nil, domain.WrapAuthError(domain.CodeLoopbackUnavailable,
			"Could not open a browser for sign-in.", err)
	}

	cb, err := listener.WaitForCallback(ctx, s.loopbackTimeout)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if domain.CodeOf(err) != "" {
			return nil, err
		}
		return nil, domain.WrapAuthError(domain.CodeLoopbackUnavailable,
			"The local sign-in listener failed.", err)
	}

	code, err := validateCallback(cb, params.State, true)
	if err != nil {
		return nil, err
	}
	return s.exchange(ctx, creds, code, params.Verifier, redirectURI)
}

// BeginManualSignIn creates a manual session on a random, unbound redirect
// port. Expired sessions are swept first.
func (s *AuthService) BeginManualSignIn(ctx context.Context) (*domain.ManualAuthChallenge, error) {
	creds, err := s.credentials(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if n := s.sessions.sweep(now); n > 0 {
		logger.Debug("Swept %d expired manual sign-in sessions", n)
	}

	params, err := newPKCEParams()
	if err != nil {
		return nil, err
	}
	redirectURI := fmt.Sprintf("http://127.0.0.1:%d/callback", manualPortMin+rand.IntN(manualPortMax-manualPortMin))

	session := &domain.ManualAuthSession{
		SessionID:    uuid.NewString(),
		State:        params.State,
		CodeVerifier: params.Verifier,
		RedirectURI:  redirectURI,
		AuthorizeURL: s.oauth.AuthCodeURL(creds, redirectURI, params.State, params.Challenge),
		ExpiresAt:    now.Add(manualSessionTTL),
	}
	s.sessions.put(session)

	return session.Challenge(), nil
}

// CompleteManualSignIn exchanges the pasted redirect URL or code. The
// session is consumed whatever the outcome.
func (s *AuthService) CompleteManualSignIn(ctx context.Context, sessionID, callbackURLOrCode string) (*domain.AuthStatus, error) {
	session, ok := s.sessions.take(sessionID)
	if !ok {
		return nil, domain.NewAuthError(domain.CodeSessionNotFound,
			"Manual sign-in session not found. Start the manual sign-in again.")
	}

	creds, err := s.credentials(ctx)
	if err != nil {
		return nil, err
	}
	if session.Expired(s.now()) {
		return nil, domain.NewAuthError(domain.CodeChallengeExpired,
			"Manual sign-in expired. Start the manual sign-in again.")
	}

	code, err := ParseCallbackInput(callbackURLOrCode, session.State)
	if err != nil {
		return nil, err
	}

	env, err := s.exchange(ctx, creds, code, session.CodeVerifier, session.RedirectURI)
	if err != nil {
		return nil, err
	}
	if err := s.saveToken(ctx, env); err != nil {
		return nil, err
	}
	logger.Info("Signed in to Google as %s", displayEmail(env.Email))
	return statusOf(env), nil
}

// exchange trades a code for tokens and looks up the account email.
func (s *AuthService) exchange(ctx context.Context, creds domain.ClientCredentials, code, verifier, redirectURI string) (*domain.TokenEnvelope, error) {
	env, err := s.oauth.ExchangeCode(ctx, creds, code, verifier, redirectURI)
	if err != nil {
		return nil, err
	}
	env.Email = s.lookupEmail(ctx, env.AccessToken)
	return env, nil
}

// lookupEmail is best-effort; the email is only shown to the user.
func (s *AuthService) lookupEmail(ctx context.Context, accessToken string) string {
	email, err := s.oauth.UserEmail(ctx, accessToken)
	if err != nil {
		logger.Debug("Google email lookup failed: %v", err)
		return ""
	}
	return email
}

// AccessToken returns the cached access token, refreshing it when it
// expires within five minutes.
func (s *AuthService) AccessToken(ctx context.Context) (string, error) {
	creds, err := s.credentials(ctx)
	if err != nil {
		return "", err
	}

	env, err := s.loadToken(ctx)
	if err != nil {
		return "", err
	}
	if env == nil {
		return "", domain.NewAuthError(domain.CodeSignInRequired,
			"Google sign-in required. Run 'sourcestack auth signin'.")
	}
	if !env.ExpiresWithin(s.now(), tokenRefreshWindow) {
		return env.AccessToken, nil
	}
	if env.RefreshToken == "" {
		return "", domain.NewAuthError(domain.CodeReauthRequired,
			"Google session expired and cannot be refreshed. Sign in again.")
	}

	v, err, _ := s.refresh.Do(env.RefreshToken, func() (any, error) {
		return s.refreshToken(ctx, creds, env)
	})
	if err != nil {
		return "", err
	}
	return v.(*domain.TokenEnvelope).AccessToken, nil
}

func (s *AuthService) refreshToken(ctx context.Context, creds domain.ClientCredentials, current *domain.TokenEnvelope) (*domain.TokenEnvelope, error) {
	logger.Debug("Refreshing Google access token")

	refreshed, err := s.oauth.RefreshToken(ctx, creds, current.RefreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrReauthRequired) {
			logger.Warn("Google refresh token was rejected, clearing stored credential")
			if clearErr := s.clearToken(ctx); clearErr != nil {
				return nil, clearErr
			}
		}
		return nil, err
	}

	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = current.RefreshToken
	}
	refreshed.Email = s.lookupEmail(ctx, refreshed.AccessToken)
	if refreshed.Email == "" {
		refreshed.Email = current.Email
	}

	if err := s.saveToken(ctx, refreshed); err != nil {
		return nil, err
	}
	return refreshed, nil
}

// SignOut deletes the stored token and forgets pending manual sessions.
func (s *AuthService) SignOut(ctx context.Context) error {
	s.sessions.removeAll()
	if err := s.clearToken(ctx); err != nil {
		return err
	}
	logger.Info("Signed out of Google")
	return nil
}

// Status reads the stored token without refreshing it.
func (s *AuthService) Status(ctx context.Context) (*domain.AuthStatus, error) {
	env, err := s.loadToken(ctx)
	if err != nil {
		return nil, err
	}
	if env == nil {
		return &domain.AuthStatus{}, nil
	}
	return statusOf(env), nil
}

func (s *AuthService) credentials(ctx context.Context) (domain.ClientCredentials, error) {
	settings, err := s.settings.Settings(ctx)
	if err != nil {
		return domain.ClientCredentials{}, fmt.Errorf("load settings: %w", err)
	}
	creds := settings.Credentials()
	if creds.ClientID == "" {
		return domain.ClientCredentials{}, domain.NewMissingClientIDError()
	}
	return creds, nil
}

func (s *AuthService) loadToken(ctx context.Context) (*domain.TokenEnvelope, error) {
	s.mu.RLock()
	blob, err := s.tokens.Get(ctx)
	s.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("load google token: %w", err)
	}
	if blob == nil {
		return nil, nil
	}

	var env domain.TokenEnvelope
	if err := json.Unmarshal(blob, &env); err != nil {
		return nil, fmt.Errorf("decode google token: %w", err)
	}
	return &env, nil
}

func (s *AuthService) saveToken(ctx context.Context, env *domain.TokenEnvelope) error {
	blob, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode google token: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.tokens.Set(ctx, blob); err != nil {
		return fmt.Errorf("save google token: %w", err)
	}
	return nil
}

func (s *AuthService) clearToken(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.tokens.Clear(ctx); err != nil {
		return fmt.Errorf("clear google token: %w", err)
	}
	return nil
}

func statusOf(env *domain.TokenEnvelope) *domain.AuthStatus {
	expires := env.ExpiresAt
	return &domain.AuthStatus{SignedIn: true, Email: env.Email, ExpiresAt: &expires}
}

func displayEmail(email string) string {
	if email == "" {
		return "unknown account"
	}
	return email
}
