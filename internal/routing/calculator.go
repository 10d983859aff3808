// Package routing computes multi-stop routes, preferring an external provider
// and falling back to great-circle estimates.
package routing

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/fieldops-backend/internal/geocoding"
	"github.com/angelmondragon/fieldops-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fieldops-backend/pkg/errors"
	"github.com/angelmondragon/fieldops-backend/pkg/geo"
	"github.com/angelmondragon/fieldops-backend/pkg/logger"
	"github.com/angelmondragon/fieldops-backend/pkg/metrics"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultProviderTimeout    = 5 * time.Second
	DefaultGeocodeTimeout     = 10 * time.Second
	defaultGeocodeConcurrency = 4
)

var errLegMismatch = errors.New("provider leg count does not match waypoints")

// Calculator is the route calculator used by the assignment state machine.
type Calculator interface {
	ComputeRoute(ctx context.Context, stops []Stop, opts Options) (*Route, error)
}

// Params wires a calculator.
type Params struct {
	Geocoder           geocoding.Geocoder
	Provider           DirectionsProvider
	Depot              Stop
	AssumedSpeedKmh    float64
	ProviderTimeout    time.Duration
	GeocodeTimeout     time.Duration
	GeocodeConcurrency int
	Logger             *logger.Logger
	Metrics            *metrics.RoutingMetrics
}

type calculator struct {
	geocoder    geocoding.Geocoder
	provider    DirectionsProvider
	depot       Stop
	estimator   geo.Estimator
	timeout     time.Duration
	geoTimeout  time.Duration
	concurrency int
	logg        *logger.Logger
	metrics     *metrics.RoutingMetrics
}

// NewCalculator validates params. A nil Provider leaves only the direct strategy.
func NewCalculator(p Params) (Calculator, error) {
	if p.Geocoder == nil {
		return nil, errors.New("geocoder required")
	}
	if p.Logger == nil {
		return nil, errors.New("logger required")
	}
	if p.Depot.Coordinates == nil && p.Depot.Address == "" {
		return nil, errors.New("depot coordinates or address required")
	}
	timeout := p.ProviderTimeout
	if timeout <= 0 {
		timeout = DefaultProviderTimeout
	}
	geoTimeout := p.GeocodeTimeout
	if geoTimeout <= 0 {
		geoTimeout = DefaultGeocodeTimeout
	}
	concurrency := p.GeocodeConcurrency
	if concurrency <= 0 {
		concurrency = defaultGeocodeConcurrency
	}
	depot := p.Depot
	depot.ID = uuid.Nil
	if depot.Label == "" {
		depot.Label = "depot"
	}
	return &calculator{
		geocoder:    p.Geocoder,
		provider:    p.Provider,
		depot:       depot,
		estimator:   geo.NewEstimator(p.AssumedSpeedKmh),
		timeout:     timeout,
		geoTimeout:  geoTimeout,
		concurrency: concurrency,
		logg:        p.Logger,
		metrics:     p.Metrics,
	}, nil
}

func (c *calculator) ComputeRoute(ctx context.Context, stops []Stop, opts Options) (*Route, error) {
	// geocoding shares one deadline; stops still pending when it passes count as unresolved
	geoCtx, cancel := context.WithTimeout(ctx, c.geoTimeout)
	defer cancel()

	waypoints, unresolved := c.resolve(geoCtx, stops)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// the depot counts once even though it opens and closes the route
	usable := len(waypoints)
	if opts.IncludeDepot {
		depot, ok := c.resolveDepot(geoCtx)
		if ok {
			waypoints = append([]Waypoint{depot}, append(waypoints, depot)...)
			usable++
		} else {
			c.logg.Warn(ctx, "depot could not be positioned, routing between stores only")
		}
	}

	if usable < 2 {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, ErrInsufficientStops, "at least two resolvable stops are required").
			WithDetails(map[string]any{"requested": len(stops), "unresolved": len(unresolved)})
	}

	var route *Route
	if opts.Direct || c.provider == nil || distinctLocations(waypoints) <= 2 {
		route = c.run(ctx, waypoints, directStrategy{estimator: c.estimator, method: enums.RouteMethodDirect})
	} else {
		route = c.run(ctx, waypoints,
			providerStrategy{provider: c.provider, timeout: c.timeout},
			directStrategy{estimator: c.estimator, method: enums.RouteMethodDirectFallback},
		)
	}
	route.Unresolved = unresolved
	return route, nil
}

// run walks the strategies in order. The last strategy must always be available.
func (c *calculator) run(ctx context.Context, waypoints []Waypoint, strategies ...Strategy) *Route {
	for _, s := range strategies {
		attempt := s.Plan(ctx, waypoints)
		c.metrics.ObserveStrategy(s.Name(), attempt.Available)
		if attempt.Available {
			return attempt.Route
		}
		warnCtx := c.logg.WithField(ctx, "strategy", s.Name())
		if attempt.Reason != nil {
			warnCtx = c.logg.WithField(warnCtx, "reason", attempt.Reason.Error())
		}
		c.logg.Warn(warnCtx, "route strategy unavailable, trying next")
	}
	// unreachable while the chain ends with directStrategy
	return directStrategy{estimator: c.estimator, method: enums.RouteMethodDirectFallback}.Plan(ctx, waypoints).Route
}

func (c *calculator) resolve(ctx context.Context, stops []Stop) ([]Waypoint, []uuid.UUID) {
	type slot struct {
		wp Waypoint
		ok bool
	}
	slots := make([]slot, len(stops))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, stop := range stops {
		if stop.Coordinates != nil && stop.Coordinates.Valid() {
			slots[i] = slot{wp: Waypoint{Stop: stop, Coordinates: *stop.Coordinates}, ok: true}
			continue
		}
		i, stop := i, stop
		g.Go(func() error {
			out := c.geocoder.Geocode(gctx, stop.Address)
			if out.Found {
				slots[i] = slot{wp: Waypoint{Stop: stop, Coordinates: out.Coordinates}, ok: true}
			}
			return nil
		})
	}
	_ = g.Wait()

	waypoints := make([]Waypoint, 0, len(stops))
	var unresolved []uuid.UUID
	for i, s := range slots {
		if s.ok {
			waypoints = append(waypoints, s.wp)
			continue
		}
		unresolved = append(unresolved, stops[i].ID)
		c.logg.Warn(c.logg.WithField(ctx, "stop_id", stops[i].ID.String()), "stop could not be geocoded, skipping")
	}
	return waypoints, unresolved
}

func (c *calculator) resolveDepot(ctx context.Context) (Waypoint, bool) {
	if c.depot.Coordinates != nil && c.depot.Coordinates.Valid() {
		return Waypoint{Stop: c.depot, Coordinates: *c.depot.Coordinates}, true
	}
	out := c.geocoder.Geocode(ctx, c.depot.Address)
	if !out.Found {
		return Waypoint{}, false
	}
	return Waypoint{Stop: c.depot, Coordinates: out.Coordinates}, true
}
