// README: Rate card, estimate request and fare breakdown definitions.
package fare

import (
	"drivebook/internal/apperr"
	"drivebook/internal/modules/catalog"
)

var (
	ErrInvalidLocation  = apperr.New(apperr.InvalidInput, "pickup and drop must be full addresses")
	ErrRouteUnavailable = apperr.New(apperr.InvalidInput, "no route between pickup and drop")
	ErrUpstream         = apperr.New(apperr.UpstreamUnavailable, "routing service unavailable")
)

// minLocationLen is the shortest address accepted; addresses must also carry
// a comma separating at least two components.
const minLocationLen = 5

type Rate struct {
	BaseFare   float64
	PerKm      float64
	PerMin     float64
	BookingFee float64
}

type EstimateRequest struct {
	Pickup      string
	Drop        string
	VehicleType string
	// BookingType "outstation" also resolves the distance-tier package.
	BookingType string
}

type Breakdown struct {
	BaseFare     int64    `json:"baseFare"`
	DistanceFare int64    `json:"distanceFare"`
	TimeFare     int64    `json:"timeFare"`
	BookingFee   int64    `json:"bookingFee"`
	SurgeFactor  *float64 `json:"surgeFactor"`
	Distance     string   `json:"distance"`
	Duration     string   `json:"duration"`
}

type Estimate struct {
	Total       int64            `json:"estimate"`
	Currency    string           `json:"currency"`
	VehicleType string           `json:"vehicleType"`
	DistanceKm  float64          `json:"distanceKm"`
	DurationMin float64          `json:"durationMin"`
	Breakdown   Breakdown        `json:"breakdown"`
	TierHours   int              `json:"tierHours,omitempty"`
	Package     *catalog.Package `json:"package,omitempty"`
}
