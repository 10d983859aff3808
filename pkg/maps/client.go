package maps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/fieldops-backend/pkg/errors"
	"github.com/angelmondragon/fieldops-backend/pkg/geo"
)

const (
	defaultBaseURL             = "https://maps.googleapis.com/maps/api"
	requestBodyReadLimit int64 = 1024
)

var (
	errAPIKeyRequired = errors.New("google maps api key is required")
)

// Client wraps the Google Geocoding API used to position stores and the depot.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	region     string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured Maps base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithRegion biases results towards a ccTLD region code such as "ro".
func WithRegion(region string) Option {
	return func(c *Client) {
		c.region = strings.ToLower(strings.TrimSpace(region))
	}
}

// NewClient builds the Google Maps client given an API key.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	trimmedKey := strings.TrimSpace(apiKey)
	if trimmedKey == "" {
		return nil, errAPIKeyRequired
	}

	client := &Client{
		apiKey:     trimmedKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if client.baseURL == "" {
		client.baseURL = defaultBaseURL
	}

	return client, nil
}

// GeocodeResult is the best match for an address.
type GeocodeResult struct {
	FormattedAddress string
	PlaceID          string
	Location         geo.Coordinates
}

type geocodeResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		FormattedAddress string `json:"formatted_address"`
		PlaceID          string `json:"place_id"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// GeocodeAddress resolves a free-text address to its first Google match.
func (c *Client) GeocodeAddress(ctx context.Context, address string) (*GeocodeResult, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeExternalFailure, "google maps client not configured")
	}
	trimmed := strings.TrimSpace(address)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address is required")
	}

	q := url.Values{}
	q.Set("address", trimmed)
	q.Set("key", c.apiKey)
	if c.region != "" {
		q.Set("region", c.region)
	}
	endpoint := c.buildURL("geocode/json") + "?" + q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeExternalFailure, err, "build geocode request")
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeExternalTimeout, err, "geocode request timed out")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeExternalFailure, err, "execute geocode request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, requestBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeExternalFailure, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "geocode request failed")
	}

	var apiResp geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeExternalFailure, err, "decode geocode response")
	}

	switch apiResp.Status {
	case "OK":
	case "ZERO_RESULTS":
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no geocode results").WithDetails(map[string]any{"address": trimmed})
	default:
		return nil, pkgerrors.New(pkgerrors.CodeExternalFailure, "geocode request rejected").
			WithDetails(map[string]any{"status": apiResp.Status, "message": apiResp.ErrorMessage})
	}
	if len(apiResp.Results) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no geocode results").WithDetails(map[string]any{"address": trimmed})
	}

	first := apiResp.Results[0]
	return &GeocodeResult{
		FormattedAddress: first.FormattedAddress,
		PlaceID:          first.PlaceID,
		Location:         geo.Coordinates{Lat: first.Geometry.Location.Lat, Lng: first.Geometry.Location.Lng},
	}, nil
}

func (c *Client) buildURL(path string) string {
	trimmed := strings.TrimRight(c.baseURL, "/")
	path = strings.TrimLeft(path, "/")
	return fmt.Sprintf("%s/%s", trimmed, path)
}
