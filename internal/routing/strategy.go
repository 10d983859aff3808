package routing

import (
	"context"
	"time"

	"github.com/angelmondragon/fieldops-backend/pkg/enums"
	"github.com/angelmondragon/fieldops-backend/pkg/geo"
	"github.com/angelmondragon/fieldops-backend/pkg/ors"
)

// Attempt is the tagged result of one strategy: Available with a route, or
// unavailable with the reason.
type Attempt struct {
	Route     *Route
	Available bool
	Reason    error
}

// Strategy computes a route over fully positioned waypoints.
type Strategy interface {
	Name() string
	Plan(ctx context.Context, waypoints []Waypoint) Attempt
}

// DirectionsProvider is an external multi-stop routing service.
type DirectionsProvider interface {
	Directions(ctx context.Context, waypoints []geo.Coordinates) ([]ors.Leg, error)
}

type providerStrategy struct {
	provider DirectionsProvider
	timeout  time.Duration
}

func (s providerStrategy) Name() string { return string(enums.RouteMethodProvider) }

func (s providerStrategy) Plan(ctx context.Context, waypoints []Waypoint) Attempt {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	coords := make([]geo.Coordinates, 0, len(waypoints))
	for _, wp := range waypoints {
		coords = append(coords, wp.Coordinates)
	}

	legs, err := s.provider.Directions(ctx, coords)
	if err != nil {
		return Attempt{Reason: err}
	}
	if len(legs) != len(waypoints)-1 {
		return Attempt{Reason: errLegMismatch}
	}

	values := make([]legValue, 0, len(legs))
	for _, leg := range legs {
		values = append(values, legValue{
			km:      geo.MetersToKm(leg.DistanceMeters),
			minutes: geo.SecondsToMinutes(leg.DurationSeconds),
		})
	}
	return Attempt{Route: buildRoute(waypoints, values, enums.RouteMethodProvider), Available: true}
}

// directStrategy always succeeds. method tells whether it was chosen or fallen back to.
type directStrategy struct {
	estimator geo.Estimator
	method    enums.RouteMethod
}

func (s directStrategy) Name() string { return string(s.method) }

func (s directStrategy) Plan(_ context.Context, waypoints []Waypoint) Attempt {
	values := make([]legValue, 0, len(waypoints))
	for i := 0; i+1 < len(waypoints); i++ {
		leg := s.estimator.Estimate(waypoints[i].Coordinates, waypoints[i+1].Coordinates)
		values = append(values, legValue{km: leg.DistanceKm, minutes: leg.DurationMin})
	}
	return Attempt{Route: buildRoute(waypoints, values, s.method), Available: true}
}
