// Package geocoding resolves addresses through an ordered list of providers.
package geocoding

import (
	"context"
	"strings"

	"github.com/angelmondragon/fieldops-backend/pkg/geo"
	"github.com/angelmondragon/fieldops-backend/pkg/logger"
	"github.com/angelmondragon/fieldops-backend/pkg/metrics"
)

// Provider is one geocoding backend.
type Provider interface {
	Name() string
	Geocode(ctx context.Context, address string) (geo.Coordinates, error)
}

// Outcome is the tagged result of a chain lookup: Found with coordinates, or unavailable.
type Outcome struct {
	Coordinates geo.Coordinates
	Provider    string
	Found       bool
}

// Geocoder resolves one address. Failures are reported as an unavailable Outcome, never an error.
type Geocoder interface {
	Geocode(ctx context.Context, address string) Outcome
}

// Chain tries providers in order until one resolves the address. It caches nothing.
type Chain struct {
	providers []Provider
	logg      *logger.Logger
	metrics   *metrics.RoutingMetrics
}

// NewChain drops nil providers so callers can pass optional ones unconditionally.
func NewChain(logg *logger.Logger, m *metrics.RoutingMetrics, providers ...Provider) *Chain {
	kept := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if p != nil {
			kept = append(kept, p)
		}
	}
	return &Chain{providers: kept, logg: logg, metrics: m}
}

// Len reports how many providers are configured.
func (c *Chain) Len() int {
	return len(c.providers)
}

func (c *Chain) Geocode(ctx context.Context, address string) Outcome {
	address = strings.TrimSpace(address)
	if address == "" {
		return Outcome{}
	}

	for _, p := range c.providers {
		if err := ctx.Err(); err != nil {
			return Outcome{}
		}
		coords, err := p.Geocode(ctx, address)
		if err == nil && coords.Valid() {
			c.metrics.ObserveGeocode(p.Name(), true)
			return Outcome{Coordinates: coords, Provider: p.Name(), Found: true}
		}
		c.metrics.ObserveGeocode(p.Name(), false)
		if c.logg != nil {
			warnCtx := c.logg.WithFields(ctx, map[string]any{"provider": p.Name(), "address": address})
			if err != nil {
				warnCtx = c.logg.WithField(warnCtx, "error", err.Error())
			}
			c.logg.Warn(warnCtx, "geocoding provider unavailable")
		}
	}
	return Outcome{}
}
