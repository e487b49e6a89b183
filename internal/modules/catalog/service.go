// README: Catalog service serves packages and plans and manages candidate subscriptions.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jinzhu/now"

	"drivebook/internal/types"
)

type Repository interface {
	ListPackages(ctx context.Context, pt types.PackageType) ([]Package, error)
	GetPackage(ctx context.Context, id types.ID) (*Package, error)
	FindPackage(ctx context.Context, pt types.PackageType, hours int) (*Package, error)
	CreatePackage(ctx context.Context, p *Package) error
	ListMonthly(ctx context.Context) ([]MonthlyPricing, error)
	GetPlan(ctx context.Context, pool types.Pool, id types.ID) (*Plan, error)
	ListPlans(ctx context.Context, pool types.Pool) ([]Plan, error)
	CreatePlan(ctx context.Context, p *Plan) error
	CreateSubscription(ctx context.Context, sub *Subscription) error
	GetSubscription(ctx context.Context, pool types.Pool, id types.ID) (*Subscription, error)
	UpdateSubscriptionStatus(ctx context.Context, pool types.Pool, id types.ID, from, to SubscriptionStatus) (bool, error)
}

type Service struct {
	store Repository
	clock func() time.Time
}

func NewService(store Repository) *Service {
	return &Service{store: store, clock: time.Now}
}

type SubscribeCommand struct {
	Pool        types.Pool
	CandidateID types.ID
	PlanID      types.ID
	// Start defaults to the current time.
	Start time.Time
}

func (s *Service) ListPackages(ctx context.Context, pt types.PackageType) ([]Package, error) {
	pt = types.PackageType(strings.ToUpper(string(pt)))
	if pt != "" && !pt.Valid() {
		return nil, ErrInvalidPackageType
	}
	return s.store.ListPackages(ctx, pt)
}

func (s *Service) Package(ctx context.Context, id types.ID) (*Package, error) {
	if id == "" {
		return nil, ErrBadRequest
	}
	return s.store.GetPackage(ctx, id)
}

// OutstationPackage returns the outstation package whose length matches a
// distance tier.
func (s *Service) OutstationPackage(ctx context.Context, hours int) (*Package, error) {
	if hours <= 0 {
		return nil, ErrBadRequest
	}
	return s.store.FindPackage(ctx, types.PackageOutstation, hours)
}

func (s *Service) CreatePackage(ctx context.Context, p Package) (*Package, error) {
	if p.Name == "" || p.Hours <= 0 || p.Price < 0 {
		return nil, ErrBadRequest
	}
	if !p.PackageType.Valid() {
		return nil, ErrInvalidPackageType
	}
	if p.ID == "" {
		p.ID = types.NewID()
	}
	p.CreatedAt = s.clock()
	if err := s.store.CreatePackage(ctx, &p); err != nil {
		return nil, fmt.Errorf("create package: %w", err)
	}
	return &p, nil
}

func (s *Service) ListMonthly(ctx context.Context) ([]MonthlyPricing, error) {
	return s.store.ListMonthly(ctx)
}

func (s *Service) Plan(ctx context.Context, pool types.Pool, id types.ID) (*Plan, error) {
	if !pool.Valid() {
		return nil, ErrInvalidPool
	}
	return s.store.GetPlan(ctx, pool, id)
}

func (s *Service) ListPlans(ctx context.Context, pool types.Pool) ([]Plan, error) {
	if !pool.Valid() {
		return nil, ErrInvalidPool
	}
	return s.store.ListPlans(ctx, pool)
}

func (s *Service) CreatePlan(ctx context.Context, p Plan) (*Plan, error) {
	if !p.Pool.Valid() {
		return nil, ErrInvalidPool
	}
	if !p.PlanType.Valid() {
		return nil, ErrInvalidPackageType
	}
	if p.Name == "" || p.DurationDays <= 0 || p.Price < 0 {
		return nil, ErrBadRequest
	}
	if p.ID == "" {
		p.ID = types.NewID()
	}
	p.CreatedAt = s.clock()
	if err := s.store.CreatePlan(ctx, &p); err != nil {
		return nil, fmt.Errorf("create plan: %w", err)
	}
	return &p, nil
}

// Subscribe activates a plan for a candidate. The subscription runs until the
// end of the day plan.DurationDays after Start.
func (s *Service) Subscribe(ctx context.Context, cmd SubscribeCommand) (*Subscription, error) {
	if cmd.CandidateID == "" || cmd.PlanID == "" {
		return nil, ErrBadRequest
	}
	// Plan rejects an unknown pool.
	plan, err := s.Plan(ctx, cmd.Pool, cmd.PlanID)
	if err != nil {
		return nil, err
	}

	created := s.clock()
	start := cmd.Start
	if start.IsZero() {
		start = created
	}
	sub := &Subscription{
		ID:          types.NewID(),
		Pool:        cmd.Pool,
		CandidateID: cmd.CandidateID,
		PlanID:      plan.ID,
		Status:      SubscriptionActive,
		StartDate:   start,
		EndDate:     SubscriptionEnd(start, plan.DurationDays),
		CreatedAt:   created,
	}
	if err := s.store.CreateSubscription(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// SubscriptionEnd is the last instant a subscription starting at start stays
// active.
func SubscriptionEnd(start time.Time, durationDays int) time.Time {
	return now.With(start.AddDate(0, 0, durationDays)).EndOfDay()
}

func (s *Service) CancelSubscription(ctx context.Context, pool types.Pool, id types.ID) (*Subscription, error) {
	return s.closeSubscription(ctx, pool, id, SubscriptionCancelled)
}

func (s *Service) RejectSubscription(ctx context.Context, pool types.Pool, id types.ID) (*Subscription, error) {
	return s.closeSubscription(ctx, pool, id, SubscriptionRejected)
}

func (s *Service) closeSubscription(ctx context.Context, pool types.Pool, id types.ID, to SubscriptionStatus) (*Subscription, error) {
	if !pool.Valid() {
		return nil, ErrInvalidPool
	}
	sub, err := s.store.GetSubscription(ctx, pool, id)
	if err != nil {
		return nil, err
	}
	if sub.Status != SubscriptionActive {
		return nil, ErrSubscriptionClosed
	}
	ok, err := s.store.UpdateSubscriptionStatus(ctx, pool, id, SubscriptionActive, to)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSubscriptionClosed
	}
	sub.Status = to
	return sub, nil
}
