package ors

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	pkgerrors "github.com/angelmondragon/fieldops-backend/pkg/errors"
	"github.com/angelmondragon/fieldops-backend/pkg/geo"
)

type geocodeResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"features"`
}

// Geocode resolves a free-text address with /geocode/search, keeping the best match.
func (c *Client) Geocode(ctx context.Context, address string) (geo.Coordinates, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return geo.Coordinates{}, pkgerrors.New(pkgerrors.CodeValidation, "address is required")
	}

	endpoint := c.baseURL + "/geocode/search"
	resp, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		q := url.Values{}
		q.Set("text", address)
		q.Set("size", "1")
		req.URL.RawQuery = q.Encode()
		return req, nil
	})
	if err != nil {
		return geo.Coordinates{}, classify(ctx, err, "openrouteservice geocode failed")
	}
	defer resp.Body.Close()

	var decoded geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return geo.Coordinates{}, pkgerrors.Wrap(pkgerrors.CodeExternalFailure, err, "decode openrouteservice geocode response")
	}
	if len(decoded.Features) == 0 {
		return geo.Coordinates{}, pkgerrors.New(pkgerrors.CodeNotFound, "no geocode results").
			WithDetails(map[string]any{"address": address})
	}

	coords := decoded.Features[0].Geometry.Coordinates
	if len(coords) != 2 {
		return geo.Coordinates{}, pkgerrors.New(pkgerrors.CodeExternalFailure, "invalid coordinate format")
	}
	out := geo.Coordinates{Lng: coords[0], Lat: coords[1]}
	if !out.Valid() {
		return geo.Coordinates{}, pkgerrors.New(pkgerrors.CodeExternalFailure, "coordinates out of range")
	}
	return out, nil
}
