package geocoding

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/angelmondragon/fieldops-backend/pkg/geo"
	"github.com/angelmondragon/fieldops-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	name   string
	coords geo.Coordinates
	err    error
	calls  int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Geocode(context.Context, string) (geo.Coordinates, error) {
	s.calls++
	return s.coords, s.err
}

func newTestLogger(buf *bytes.Buffer) *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: buf})
}

func TestChainFirstProviderWins(t *testing.T) {
	first := &stubProvider{name: "google", coords: geo.Coordinates{Lat: 44.4, Lng: 26.1}}
	second := &stubProvider{name: "openrouteservice", coords: geo.Coordinates{Lat: 1, Lng: 1}}
	chain := NewChain(nil, nil, first, second)

	out := chain.Geocode(context.Background(), "Strada Lipscani 10")
	require.True(t, out.Found)
	assert.Equal(t, "google", out.Provider)
	assert.Equal(t, first.coords, out.Coordinates)
	assert.Equal(t, 0, second.calls)
}

func TestChainFallsThroughFailures(t *testing.T) {
	buf := &bytes.Buffer{}
	first := &stubProvider{name: "google", err: errors.New("quota exceeded")}
	second := &stubProvider{name: "openrouteservice", coords: geo.Coordinates{Lat: 45.7, Lng: 21.2}}
	chain := NewChain(newTestLogger(buf), nil, nil, first, second)

	out := chain.Geocode(context.Background(), "Timisoara")
	require.True(t, out.Found)
	assert.Equal(t, "openrouteservice", out.Provider)
	assert.Contains(t, buf.String(), "geocoding provider unavailable")
	assert.Equal(t, 2, chain.Len())
}

func TestChainRejectsInvalidCoordinates(t *testing.T) {
	bad := &stubProvider{name: "google", coords: geo.Coordinates{Lat: 200, Lng: 0}}
	chain := NewChain(nil, nil, bad)

	out := chain.Geocode(context.Background(), "somewhere")
	assert.False(t, out.Found)
}

func TestChainEmptyAddress(t *testing.T) {
	p := &stubProvider{name: "google", coords: geo.Coordinates{Lat: 1, Lng: 1}}
	out := NewChain(nil, nil, p).Geocode(context.Background(), "   ")
	assert.False(t, out.Found)
	assert.Equal(t, 0, p.calls)
}

func TestNilClientsYieldNoProvider(t *testing.T) {
	assert.Nil(t, NewGoogleProvider(nil))
	assert.Nil(t, NewORSProvider(nil))
	assert.Equal(t, 0, NewChain(nil, nil, NewGoogleProvider(nil), NewORSProvider(nil)).Len())
}
