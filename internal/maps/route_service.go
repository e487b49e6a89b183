package maps

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"googlemaps.github.io/maps"
)

// ErrNoRoute is returned when the Directions API answers with a non-OK
// status or with zero routes.
var ErrNoRoute = errors.New("no route found")

// Route is the first leg of the best driving route between two addresses.
type Route struct {
	DistanceMeters int
	Duration       time.Duration
	DistanceText   string
}

func (r Route) DistanceKm() float64 { return float64(r.DistanceMeters) / 1000.0 }

func (r Route) DurationMin() float64 { return r.Duration.Minutes() }

// RouteService handles interactions with Google Maps API.
type RouteService struct {
	client *maps.Client
	region string
}

// NewRouteService creates a new RouteService with the given API Key. Extra
// client options (e.g. maps.WithBaseURL in tests) are passed through.
func NewRouteService(apiKey, region string, opts ...maps.ClientOption) (*RouteService, error) {
	opts = append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, opts...)
	client, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &RouteService{client: client, region: region}, nil
}

// Route returns distance and duration for a driving trip from origin to
// destination. Transport failures are returned wrapped as-is; API-level
// failures wrap ErrNoRoute.
func (s *RouteService) Route(ctx context.Context, origin, destination string) (Route, error) {
	r := &maps.DirectionsRequest{
		Origin:      origin,
		Destination: destination,
		Mode:        maps.TravelModeDriving,
		Region:      s.region,
	}

	routes, _, err := s.client.Directions(ctx, r)
	if err != nil {
		var uerr *url.Error
		if errors.As(err, &uerr) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return Route{}, fmt.Errorf("maps api error: %w", err)
		}
		return Route{}, fmt.Errorf("%w: %v", ErrNoRoute, err)
	}

	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return Route{}, ErrNoRoute
	}

	leg := routes[0].Legs[0]
	return Route{
		DistanceMeters: leg.Distance.Meters,
		Duration:       leg.Duration,
		DistanceText:   leg.Distance.HumanReadable,
	}, nil
}
