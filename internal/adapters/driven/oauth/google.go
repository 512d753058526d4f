// Package oauth implements the OAuth client port for Google using
// golang.org/x/oauth2.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/sourcestack/internal/core/domain"
	"github.com/custodia-labs/sourcestack/internal/core/ports/driven"
)

// Ensure GoogleClient implements the interface.
var _ driven.OAuthClient = (*GoogleClient)(nil)

// Google OAuth endpoints.
const (
	GoogleAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	GoogleTokenURL    = "https://oauth2.googleapis.com/token"
	GoogleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
)

// GoogleScopes are requested on every sign-in.
var GoogleScopes = []string{
	"openid",
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
	"https://www.googleapis.com/auth/drive.readonly",
	"https://www.googleapis.com/auth/spreadsheets",
}

// defaultTokenLifetime applies when the token response has no expiry.
const defaultTokenLifetime = time.Hour

// GoogleClient talks to Google's authorization, token and userinfo endpoints.
type GoogleClient struct {
	authURL     string
	tokenURL    string
	userInfoURL string
	httpClient  *http.Client
	now         func() time.Time
}

// Option configures a GoogleClient.
type Option func(*GoogleClient)

// WithEndpoints overrides the Google endpoint URLs.
func WithEndpoints(authURL, tokenURL, userInfoURL string) Option {
	return func(c *GoogleClient) {
		c.authURL = authURL
		c.tokenURL = tokenURL
		c.userInfoURL = userInfoURL
	}
}

// WithHTTPClient sets the client used for token and userinfo requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *GoogleClient) { c.httpClient = hc }
}

// NewGoogleClient creates a client for Google's production endpoints.
func NewGoogleClient(opts ...Option) *GoogleClient {
	c := &GoogleClient{
		authURL:     GoogleAuthURL,
		tokenURL:    GoogleTokenURL,
		userInfoURL: GoogleUserInfoURL,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *GoogleClient) config(creds domain.ClientCredentials, redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.authURL,
			TokenURL:  c.tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		RedirectURL: redirectURI,
		Scopes:      GoogleScopes,
	}
}

// AuthCodeURL builds the consent URL. Offline access and forced consent
// make Google return a refresh token every time.
func (c *GoogleClient) AuthCodeURL(creds domain.ClientCredentials, redirectURI, state, codeChallenge string) string {
	return c.config(creds, redirectURI).AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
}

// ExchangeCode trades an authorization code and its PKCE verifier for tokens.
// A rejected grant is reported as ErrReauthRequired.
func (c *GoogleClient) ExchangeCode(ctx context.Context, creds domain.ClientCredentials, code, codeVerifier, redirectURI string) (*domain.TokenEnvelope, error) {
	tok, err := c.config(creds, redirectURI).Exchange(c.withClient(ctx), code, oauth2.VerifierOption(codeVerifier))
	if err != nil {
		return nil, classifyTokenError(err)
	}
	return c.envelope(tok), nil
}

// RefreshToken redeems a refresh token. A revoked or expired grant is
// reported as ErrReauthRequired.
func (c *GoogleClient) RefreshToken(ctx context.Context, creds domain.ClientCredentials, refreshToken string) (*domain.TokenEnvelope, error) {
	ts := c.config(creds, "").TokenSource(c.withClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := ts.Token()
	if err != nil {
		return nil, classifyTokenError(err)
	}
	return c.envelope(tok), nil
}

type userInfo struct {
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
}

// UserEmail returns the email of the account that owns accessToken.
func (c *GoogleClient) UserEmail(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userInfoURL, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", domain.NewTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", domain.NewTransportError(err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", domain.NewProviderError(resp.StatusCode, string(body))
	}

	var info userInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return "", fmt.Errorf("decode user info: %w", err)
	}
	return info.Email, nil
}

func (c *GoogleClient) withClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

func (c *GoogleClient) envelope(tok *oauth2.Token) *domain.TokenEnvelope {
	expires := tok.Expiry
	if expires.IsZero() {
		expires = c.now().Add(defaultTokenLifetime)
	}
	return &domain.TokenEnvelope{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    expires.UTC(),
	}
}

// classifyTokenError maps x/oauth2 failures of the token endpoint onto
// domain errors. Exchange and refresh share the same rule.
func classifyTokenError(err error) error {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		status := 0
		if rerr.Response != nil {
			status = rerr.Response.StatusCode
		}
		body := string(rerr.Body)
		if domain.IsInvalidGrant(status, body) {
			return domain.WrapAuthError(domain.CodeReauthRequired,
				"Google session expired or was revoked. Sign in again.", err)
		}
		return domain.NewTokenEndpointError(status, body)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return domain.NewTransportError(err)
}
