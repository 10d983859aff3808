package geocoding

import (
	"context"

	"github.com/angelmondragon/fieldops-backend/pkg/geo"
	"github.com/angelmondragon/fieldops-backend/pkg/maps"
	"github.com/angelmondragon/fieldops-backend/pkg/ors"
)

// GoogleProvider adapts the Google Geocoding client.
type GoogleProvider struct {
	client *maps.Client
}

// NewGoogleProvider returns nil when no client is configured.
func NewGoogleProvider(client *maps.Client) Provider {
	if client == nil {
		return nil
	}
	return &GoogleProvider{client: client}
}

func (p *GoogleProvider) Name() string { return "google" }

func (p *GoogleProvider) Geocode(ctx context.Context, address string) (geo.Coordinates, error) {
	res, err := p.client.GeocodeAddress(ctx, address)
	if err != nil {
		return geo.Coordinates{}, err
	}
	return res.Location, nil
}

// ORSProvider adapts the openrouteservice geocoder.
type ORSProvider struct {
	client *ors.Client
}

// NewORSProvider returns nil when no client is configured.
func NewORSProvider(client *ors.Client) Provider {
	if client == nil {
		return nil
	}
	return &ORSProvider{client: client}
}

func (p *ORSProvider) Name() string { return "openrouteservice" }

func (p *ORSProvider) Geocode(ctx context.Context, address string) (geo.Coordinates, error) {
	return p.client.Geocode(ctx, address)
}
