package routing

import (
	"errors"

	"github.com/angelmondragon/fieldops-backend/pkg/enums"
	"github.com/angelmondragon/fieldops-backend/pkg/geo"
	"github.com/google/uuid"
)

// ErrInsufficientStops is wrapped in a validation error when fewer than two
// waypoints can be positioned.
var ErrInsufficientStops = errors.New("insufficient stops")

// Stop is one requested waypoint. Coordinates win over Address when both are set.
// The depot carries uuid.Nil.
type Stop struct {
	ID          uuid.UUID
	Label       string
	Address     string
	Coordinates *geo.Coordinates
}

// Waypoint is a Stop with resolved coordinates.
type Waypoint struct {
	Stop        Stop
	Coordinates geo.Coordinates
}

// Segment is one leg between consecutive waypoints.
type Segment struct {
	FromID      uuid.UUID `json:"from_id"`
	FromLabel   string    `json:"from_label"`
	ToID        uuid.UUID `json:"to_id"`
	ToLabel     string    `json:"to_label"`
	DistanceKm  float64   `json:"distance_km"`
	DurationMin int       `json:"duration_min"`
}

// Route is the computed itinerary.
type Route struct {
	Segments         []Segment         `json:"segments"`
	TotalDistanceKm  float64           `json:"total_distance_km"`
	TotalDurationMin int               `json:"total_duration_min"`
	Method           enums.RouteMethod `json:"calculation_method"`
	// Unresolved lists stops dropped because no geocoder could position them.
	Unresolved []uuid.UUID `json:"unresolved_stop_ids,omitempty"`
}

// Options tune a single computation.
type Options struct {
	IncludeDepot bool
	Direct       bool
}

func buildRoute(waypoints []Waypoint, legs []legValue, method enums.RouteMethod) *Route {
	route := &Route{Segments: make([]Segment, 0, len(legs)), Method: method}
	var km float64
	for i, leg := range legs {
		from, to := waypoints[i], waypoints[i+1]
		route.Segments = append(route.Segments, Segment{
			FromID:      from.Stop.ID,
			FromLabel:   from.Stop.Label,
			ToID:        to.Stop.ID,
			ToLabel:     to.Stop.Label,
			DistanceKm:  leg.km,
			DurationMin: leg.minutes,
		})
		km += leg.km
		route.TotalDurationMin += leg.minutes
	}
	route.TotalDistanceKm = geo.RoundKm(km)
	return route
}

// legValue is an already rounded leg.
type legValue struct {
	km      float64
	minutes int
}

func distinctLocations(waypoints []Waypoint) int {
	var seen []geo.Coordinates
outer:
	for _, wp := range waypoints {
		for _, s := range seen {
			if s.Equal(wp.Coordinates) {
				continue outer
			}
		}
		seen = append(seen, wp.Coordinates)
	}
	return len(seen)
}
