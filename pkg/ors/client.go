// Package ors is a thin openrouteservice client covering geocoding and
// multi-stop directions.
package ors

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/fieldops-backend/pkg/errors"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://api.openrouteservice.org"
	defaultProfile = "driving-car"
	defaultTimeout = 10 * time.Second
)

// Client talks to the openrouteservice HTTP API.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	profile    string
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
}

// Option customizes Client construction.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for requests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the API base URL (useful for tests).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithProfile selects the routing profile, e.g. driving-car or driving-hgv.
func WithProfile(profile string) Option {
	return func(c *Client) {
		if profile != "" {
			c.profile = profile
		}
	}
}

// WithRateLimit caps outgoing requests per second. Zero disables limiting.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		burst := int(perSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithRetry tunes the retry budget for transient failures.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.maxRetries = attempts
		}
		if backoff > 0 {
			c.backoff = backoff
		}
	}
}

// NewClient builds an openrouteservice client.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "openrouteservice api key is required")
	}

	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		profile:    defaultProfile,
		maxRetries: 4,
		backoff:    200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// classify maps transport failures onto the external-service error codes.
func classify(ctx context.Context, err error, message string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return pkgerrors.Wrap(pkgerrors.CodeExternalTimeout, err, message)
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return pkgerrors.Wrap(pkgerrors.CodeExternalTimeout, err, message)
	}
	return pkgerrors.Wrap(pkgerrors.CodeExternalFailure, err, message)
}
