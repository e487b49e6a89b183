// README: Pricing catalog rows: hourly/outstation packages, monthly pricing, subscription plans.
package catalog

import (
	"time"

	"drivebook/internal/apperr"
	"drivebook/internal/types"
)

var (
	ErrPackageNotFound      = apperr.New(apperr.NotFound, "package not found")
	ErrPlanNotFound         = apperr.New(apperr.NotFound, "plan not found")
	ErrSubscriptionNotFound = apperr.New(apperr.NotFound, "subscription not found")
	ErrCandidateNotFound    = apperr.New(apperr.NotFound, "candidate not found")
	ErrInvalidPool          = apperr.New(apperr.InvalidInput, "pool must be driver or lead")
	ErrInvalidPackageType   = apperr.New(apperr.InvalidInput, "package type must be LOCAL, OUTSTATION or ALL_PREMIUM")
	ErrBadRequest           = apperr.New(apperr.InvalidInput, "bad request")
	ErrSubscriptionClosed   = apperr.New(apperr.Conflict, "subscription is not active")
)

type Package struct {
	ID           types.ID          `json:"id"`
	Name         string            `json:"name"`
	PackageType  types.PackageType `json:"packageType"`
	Hours        int               `json:"hours"`
	KmLimit      int               `json:"kmLimit"`
	Price        int64             `json:"price"`
	ExtraPerHour int64             `json:"extraPerHour"`
	ExtraPerKm   int64             `json:"extraPerKm"`
	CreatedAt    time.Time         `json:"createdAt"`
}

type MonthlyPricing struct {
	ID          types.ID  `json:"id"`
	Name        string    `json:"name"`
	HoursPerDay int       `json:"hoursPerDay"`
	Days        int       `json:"days"`
	Price       int64     `json:"price"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Plan is a subscription plan. Driver and lead plans live in separate tables
// but share this shape.
type Plan struct {
	ID           types.ID          `json:"id"`
	Pool         types.Pool        `json:"pool"`
	Name         string            `json:"name"`
	PlanType     types.PackageType `json:"planType"`
	Price        int64             `json:"price"`
	DurationDays int               `json:"durationDays"`
	CreatedAt    time.Time         `json:"createdAt"`
}

type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "ACTIVE"
	SubscriptionCancelled SubscriptionStatus = "CANCELLED"
	SubscriptionRejected  SubscriptionStatus = "REJECTED"
)

type Subscription struct {
	ID          types.ID           `json:"id"`
	Pool        types.Pool         `json:"pool"`
	CandidateID types.ID           `json:"candidateId"`
	PlanID      types.ID           `json:"planId"`
	Status      SubscriptionStatus `json:"status"`
	StartDate   time.Time          `json:"startDate"`
	EndDate     time.Time          `json:"endDate"`
	CreatedAt   time.Time          `json:"createdAt"`
}

// PlanTable returns the plan table for a pool.
func PlanTable(pool types.Pool) string {
	if pool == types.PoolLead {
		return "lead_subscription_plans"
	}
	return "subscription_plans"
}

// SubscriptionTable returns the subscription table for a pool.
func SubscriptionTable(pool types.Pool) string {
	if pool == types.PoolLead {
		return "lead_subscriptions"
	}
	return "driver_subscriptions"
}
