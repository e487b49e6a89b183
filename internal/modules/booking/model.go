// README: Booking aggregate, status definitions and the status state machine.
package booking

import (
	"time"

	"drivebook/internal/apperr"
	"drivebook/internal/types"
)

type Status string

const (
	StatusNone      Status = "NONE"
	StatusPending   Status = "PENDING"
	StatusReviewed  Status = "REVIEWED"
	StatusConfirmed Status = "CONFIRMED"
	StatusOngoing   Status = "ONGOING"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusReviewed, StatusConfirmed, StatusOngoing, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

type Type string

const (
	TypeHourly       Type = "hourly"
	TypeOutstation   Type = "outstation"
	TypeSubscription Type = "subscription"
)

func (t Type) Valid() bool {
	return t == TypeHourly || t == TypeOutstation || t == TypeSubscription
}

// Actor types recorded on state events.
const (
	ActorCustomer = "customer"
	ActorAdmin    = "admin"
	ActorDriver   = "driver"
	ActorLead     = "lead"
	ActorSystem   = "system"
)

var (
	ErrNotFound        = apperr.New(apperr.NotFound, "booking not found")
	ErrInvalidState    = apperr.New(apperr.Conflict, "invalid booking state transition")
	ErrConflict        = apperr.New(apperr.Conflict, "booking state conflict")
	ErrBadRequest      = apperr.New(apperr.InvalidInput, "bad request")
	ErrInvalidLocation = apperr.New(apperr.InvalidInput, "pickup and drop must be full addresses")
	ErrPackageMismatch = apperr.New(apperr.InvalidInput, "package does not match the selected package type")
	ErrNotOwner        = apperr.New(apperr.Unauthorized, "booking belongs to another user")
	ErrNotAssigned     = apperr.New(apperr.Unauthorized, "booking is not assigned to caller")
)

type Booking struct {
	ID                  types.ID           `json:"id"`
	CustomerID          types.ID           `json:"customerId"`
	PickupLocation      string             `json:"pickupLocation"`
	DropLocation        string             `json:"dropLocation"`
	BookingType         Type               `json:"bookingType"`
	ServiceType         string             `json:"serviceType"`
	StartAt             time.Time          `json:"startAt"`
	DurationHours       int                `json:"durationHours"`
	VehicleType         string             `json:"vehicleType"`
	CarType             string             `json:"carType"`
	EstimateAmount      int64              `json:"estimateAmount"`
	Status              Status             `json:"status"`
	StatusVersion       int                `json:"statusVersion"`
	SelectedPackageType *types.PackageType `json:"selectedPackageType"`
	SelectedPackageID   *types.ID          `json:"selectedPackageId"`
	DriverID            *types.ID          `json:"driverId"`
	LeadID              *types.ID          `json:"leadId"`
	AllocatedDriverID   *types.ID          `json:"allocatedDriverId"`
	AllocatedLeadID     *types.ID          `json:"allocatedLeadId"`
	CreatedAt           time.Time          `json:"createdAt"`
	ReviewedAt          *time.Time         `json:"reviewedAt"`
	AllocatedAt         *time.Time         `json:"allocatedAt"`
	StartedAt           *time.Time         `json:"startedAt"`
	CompletedAt         *time.Time         `json:"completedAt"`
	CancelledAt         *time.Time         `json:"cancelledAt"`
	CancelReason        *string            `json:"cancelReason"`
}

// Allocated reports whether a driver or lead has been chosen.
func (b *Booking) Allocated() bool {
	return b.AllocatedDriverID != nil || b.AllocatedLeadID != nil
}

// AssignedTo reports whether candidateID is the allocated party of pool.
func (b *Booking) AssignedTo(pool types.Pool, candidateID types.ID) bool {
	var assigned *types.ID
	if pool == types.PoolLead {
		assigned = b.AllocatedLeadID
	} else {
		assigned = b.AllocatedDriverID
	}
	return assigned != nil && *assigned == candidateID
}

type Event struct {
	ID         int64     `json:"id"`
	BookingID  types.ID  `json:"bookingId"`
	FromStatus Status    `json:"fromStatus"`
	ToStatus   Status    `json:"toStatus"`
	ActorType  string    `json:"actorType"`
	ActorID    *types.ID `json:"actorId"`
	CreatedAt  time.Time `json:"createdAt"`
}

// AllowedTransitions represents the booking state flow as code.
var AllowedTransitions = map[Status][]Status{
	StatusPending:   {StatusReviewed, StatusCancelled},
	StatusReviewed:  {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusOngoing, StatusCancelled},
	StatusOngoing:   {StatusCompleted, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s.
func Terminal(s Status) bool {
	_, ok := AllowedTransitions[s]
	return !ok
}
