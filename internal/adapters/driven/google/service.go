package google

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
)

// Option configures the Drive and Sheets clients.
type Option func(*config)

type config struct {
	httpClient *http.Client
	endpoint   string
	limiter    *RateLimiter
}

// WithHTTPClient sets the base HTTP client. The bearer token is layered on
// top of its transport.
func WithHTTPClient(c *http.Client) Option {
	return func(cfg *config) { cfg.httpClient = c }
}

// WithEndpoint overrides the API base URL.
func WithEndpoint(url string) Option {
	return func(cfg *config) { cfg.endpoint = url }
}

// WithRateLimiter sets the limiter applied before each request.
func WithRateLimiter(l *RateLimiter) Option {
	return func(cfg *config) { cfg.limiter = l }
}

func newConfig(service ServiceType, opts []Option) config {
	cfg := config{httpClient: http.DefaultClient}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.limiter == nil {
		cfg.limiter = NewRateLimiter(service)
	}
	return cfg
}

// clientOptions builds the options for one call made with accessToken.
func (cfg config) clientOptions(accessToken string) []option.ClientOption {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	hc := &http.Client{
		Transport: &oauth2.Transport{Source: ts, Base: cfg.httpClient.Transport},
		Timeout:   cfg.httpClient.Timeout,
	}

	opts := []option.ClientOption{option.WithHTTPClient(hc)}
	if cfg.endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.endpoint))
	}
	return opts
}

// call waits for the limiter, runs fn and translates its error.
func (cfg config) call(ctx context.Context, fn func() error) error {
	if err := cfg.limiter.Wait(ctx); err != nil {
		return wrapError(err, cfg.limiter)
	}
	return wrapError(fn(), cfg.limiter)
}
