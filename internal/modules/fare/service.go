// README: Fare service turns a routed pickup/drop pair into a priced estimate.
package fare

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"drivebook/internal/config"
	"drivebook/internal/maps"
	"drivebook/internal/modules/catalog"
)

// Router resolves driving distance and duration between two addresses.
type Router interface {
	Route(ctx context.Context, origin, destination string) (maps.Route, error)
}

// PackageFinder resolves the outstation package for a tier length.
type PackageFinder interface {
	OutstationPackage(ctx context.Context, hours int) (*catalog.Package, error)
}

type Service struct {
	router       Router
	packages     PackageFinder
	surge        SurgePolicy
	rates        map[string]Rate
	defaultClass string
	currency     string
}

func NewService(router Router, packages PackageFinder, cfg config.FareConfig, surge SurgePolicy) *Service {
	rates := make(map[string]Rate, len(cfg.Rates))
	for class, r := range cfg.Rates {
		rates[strings.ToLower(class)] = Rate{BaseFare: r.BaseFare, PerKm: r.PerKm, PerMin: r.PerMin, BookingFee: r.BookingFee}
	}
	if surge == nil {
		surge = NoSurge{}
	}
	return &Service{
		router:       router,
		packages:     packages,
		surge:        surge,
		rates:        rates,
		defaultClass: cfg.DefaultClass,
		currency:     cfg.Currency,
	}
}

// ValidLocation reports whether addr looks like a full address.
func ValidLocation(addr string) bool {
	addr = strings.TrimSpace(addr)
	return len(addr) >= minLocationLen && strings.Contains(addr, ",")
}

func (s *Service) Estimate(ctx context.Context, req EstimateRequest) (*Estimate, error) {
	if !ValidLocation(req.Pickup) || !ValidLocation(req.Drop) {
		return nil, ErrInvalidLocation
	}
	route, err := s.router.Route(ctx, strings.TrimSpace(req.Pickup), strings.TrimSpace(req.Drop))
	if err != nil {
		if errors.Is(err, maps.ErrNoRoute) {
			return nil, fmt.Errorf("%w: %v", ErrRouteUnavailable, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	est := s.Quote(route, req.VehicleType)
	if strings.EqualFold(req.BookingType, "outstation") {
		est.TierHours = OutstationHours(est.DistanceKm)
		if s.packages != nil {
			pkg, err := s.packages.OutstationPackage(ctx, est.TierHours)
			if err != nil {
				return nil, err
			}
			est.Package = pkg
		}
	}
	return &est, nil
}

// Quote prices an already resolved route. Unknown vehicle classes fall back
// to the default class.
func (s *Service) Quote(route maps.Route, vehicleType string) Estimate {
	class, rate := s.rateFor(vehicleType)
	km := route.DistanceKm()
	mins := route.DurationMin()

	distanceFare := km * rate.PerKm
	timeFare := mins * rate.PerMin
	subtotal := rate.BaseFare + distanceFare + timeFare + rate.BookingFee

	bd := Breakdown{
		BaseFare:     roundMoney(rate.BaseFare),
		DistanceFare: roundMoney(distanceFare),
		TimeFare:     roundMoney(timeFare),
		BookingFee:   roundMoney(rate.BookingFee),
		Distance:     distanceText(route),
		Duration:     durationText(route.Duration),
	}
	if factor, applied := s.surge.Multiplier(); applied {
		subtotal *= factor
		bd.SurgeFactor = &factor
	}

	return Estimate{
		Total:       roundMoney(subtotal),
		Currency:    s.currency,
		VehicleType: class,
		DistanceKm:  km,
		DurationMin: mins,
		Breakdown:   bd,
	}
}

func (s *Service) rateFor(vehicleType string) (string, Rate) {
	if r, ok := s.rates[strings.ToLower(strings.TrimSpace(vehicleType))]; ok && vehicleType != "" {
		return strings.TrimSpace(vehicleType), r
	}
	return s.defaultClass, s.rates[strings.ToLower(s.defaultClass)]
}

func roundMoney(v float64) int64 {
	return int64(math.Round(v))
}

func distanceText(r maps.Route) string {
	if r.DistanceText != "" {
		return r.DistanceText
	}
	return fmt.Sprintf("%.1f km", r.DistanceKm())
}

func durationText(d time.Duration) string {
	mins := int(math.Round(d.Minutes()))
	h, m := mins/60, mins%60
	switch {
	case h == 0:
		return plural(m, "min")
	case m == 0:
		return plural(h, "hour")
	default:
		return plural(h, "hour") + " " + plural(m, "min")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
