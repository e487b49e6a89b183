// README: Matching candidates (drivers and leads) and dispatch bookkeeping records.
package matching

import (
	"time"

	"drivebook/internal/apperr"
	"drivebook/internal/types"
)

var (
	ErrInvalidPool        = apperr.New(apperr.InvalidInput, "pool must be driver or lead")
	ErrInvalidPackageType = apperr.New(apperr.InvalidInput, "unknown package type")
	ErrBadRequest         = apperr.New(apperr.InvalidInput, "bad request")
	ErrCandidateNotFound  = apperr.New(apperr.NotFound, "candidate not found")
	ErrCandidateExists    = apperr.New(apperr.Conflict, "candidate already registered")
)

type Candidate struct {
	ID        types.ID   `json:"id"`
	Pool      types.Pool `json:"pool"`
	Name      string     `json:"name"`
	Phone     string     `json:"phone"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Dispatch describes what has been sent out for a booking in one pool.
type Dispatch struct {
	BookingID    types.ID   `json:"bookingId"`
	Pool         types.Pool `json:"pool"`
	Dispatched   bool       `json:"dispatched"`
	DispatchedAt time.Time  `json:"dispatchedAt"`
	Notified     []types.ID `json:"notified"`
}

const (
	// dispatchKeyFmt holds the first dispatch time for (pool, booking).
	dispatchKeyFmt = "matching:%s:booking:%s:dispatched_at"
	// notifiedKeyFmt is the set of candidates offered a booking.
	notifiedKeyFmt = "matching:%s:booking:%s:notified"
	// keyTTL bounds both keys; bookings resolve well within 30 days.
	keyTTL = 30 * 24 * time.Hour
)
