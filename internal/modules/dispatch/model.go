// README: Candidate responses, offers and the errors of fan-out and allocation.
package dispatch

import (
	"strings"
	"time"

	"drivebook/internal/apperr"
	"drivebook/internal/modules/booking"
	"drivebook/internal/types"
)

type ResponseStatus string

const (
	ResponsePending  ResponseStatus = "PENDING"
	ResponseAccepted ResponseStatus = "ACCEPTED"
	ResponseRejected ResponseStatus = "REJECTED"
)

// ParseAction accepts ACCEPTED/REJECTED and the verbs accept/reject.
func ParseAction(s string) (ResponseStatus, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ACCEPTED", "ACCEPT":
		return ResponseAccepted, true
	case "REJECTED", "REJECT":
		return ResponseRejected, true
	}
	return "", false
}

func (s ResponseStatus) Valid() bool {
	return s == ResponsePending || s == ResponseAccepted || s == ResponseRejected
}

var (
	ErrInvalidPool          = apperr.New(apperr.InvalidInput, "pool must be driver or lead")
	ErrInvalidAction        = apperr.New(apperr.InvalidInput, "action must be ACCEPTED or REJECTED")
	ErrInvalidStatus        = apperr.New(apperr.InvalidInput, "status must be PENDING, ACCEPTED or REJECTED")
	ErrBadRequest           = apperr.New(apperr.InvalidInput, "bad request")
	ErrNoCandidates         = apperr.New(apperr.InvalidInput, "no eligible drivers or leads available")
	ErrNotReviewed          = apperr.New(apperr.Conflict, "booking must be reviewed with a package type before dispatch")
	ErrResponseNotFound     = apperr.New(apperr.NotFound, "response not found")
	ErrNotResponseOwner     = apperr.New(apperr.Unauthorized, "response belongs to another candidate")
	ErrResponsesFrozen      = apperr.New(apperr.Conflict, "booking is no longer open for responses")
	ErrCandidateNotAccepted = apperr.New(apperr.Conflict, "candidate has not accepted this booking")
	ErrAlreadyAllocated     = apperr.New(apperr.Conflict, "booking already allocated")
)

type Response struct {
	ID          types.ID       `json:"id"`
	BookingID   types.ID       `json:"bookingId"`
	Pool        types.Pool     `json:"pool"`
	CandidateID types.ID       `json:"candidateId"`
	Status      ResponseStatus `json:"status"`
	CreatedAt   time.Time      `json:"createdAt"`
	RespondedAt *time.Time     `json:"respondedAt"`
}

// Offer is a response row joined with the booking it refers to, as shown to
// the candidate.
type Offer struct {
	Response
	PickupLocation string             `json:"pickupLocation"`
	DropLocation   string             `json:"dropLocation"`
	BookingType    booking.Type       `json:"bookingType"`
	StartAt        time.Time          `json:"startAt"`
	DurationHours  int                `json:"durationHours"`
	PackageType    *types.PackageType `json:"packageType"`
	BookingStatus  booking.Status     `json:"bookingStatus"`
}

// FanOutResult reports the candidates offered the booking. DriversCount or
// LeadsCount, whichever matches Pool, equals Eligible.
type FanOutResult struct {
	BookingID    types.ID   `json:"bookingId"`
	Pool         types.Pool `json:"pool"`
	DriversCount *int       `json:"driversCount,omitempty"`
	LeadsCount   *int       `json:"leadsCount,omitempty"`
	Eligible     int        `json:"eligible"`
	Created      int        `json:"created"`
	Responses    []Response `json:"responses"`
}

func responseTable(pool types.Pool) string {
	if pool == types.PoolLead {
		return "lead_booking_responses"
	}
	return "booking_responses"
}
