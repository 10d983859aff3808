package ors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	pkgerrors "github.com/angelmondragon/fieldops-backend/pkg/errors"
	"github.com/angelmondragon/fieldops-backend/pkg/geo"
)

// Leg is the provider's raw measurement between two consecutive waypoints.
type Leg struct {
	DistanceMeters  float64
	DurationSeconds float64
}

type directionsRequest struct {
	Coordinates [][]float64 `json:"coordinates"`
	Units       string      `json:"units"`
}

type directionsResponse struct {
	Routes []struct {
		Summary struct {
			Distance float64 `json:"distance"`
			Duration float64 `json:"duration"`
		} `json:"summary"`
		Segments []struct {
			Distance float64 `json:"distance"`
			Duration float64 `json:"duration"`
		} `json:"segments"`
	} `json:"routes"`
}

// Directions requests one multi-stop route through the ordered waypoints and
// returns one leg per consecutive pair.
func (c *Client) Directions(ctx context.Context, waypoints []geo.Coordinates) ([]Leg, error) {
	if len(waypoints) < 2 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least two waypoints are required")
	}

	payload := directionsRequest{Units: "m", Coordinates: make([][]float64, 0, len(waypoints))}
	for _, wp := range waypoints {
		payload.Coordinates = append(payload.Coordinates, wp.LngLat())
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode directions request")
	}

	endpoint := fmt.Sprintf("%s/v2/directions/%s", c.baseURL, c.profile)
	resp, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		return c.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	})
	if err != nil {
		return nil, classify(ctx, err, "openrouteservice directions failed")
	}
	defer resp.Body.Close()

	var decoded directionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeExternalFailure, err, "decode openrouteservice directions response")
	}
	if len(decoded.Routes) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeExternalFailure, "openrouteservice returned no routes")
	}

	segments := decoded.Routes[0].Segments
	if len(segments) != len(waypoints)-1 {
		return nil, pkgerrors.New(pkgerrors.CodeExternalFailure, "openrouteservice segment count mismatch").
			WithDetails(map[string]any{"expected": len(waypoints) - 1, "got": len(segments)})
	}

	legs := make([]Leg, 0, len(segments))
	for _, seg := range segments {
		if seg.Distance < 0 || seg.Duration < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeExternalFailure, "openrouteservice returned a negative segment")
		}
		legs = append(legs, Leg{DistanceMeters: seg.Distance, DurationSeconds: seg.Duration})
	}
	return legs, nil
}
