// README: Booking service implements creation, admin review and the trip lifecycle.
package booking

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"drivebook/internal/logger"
	"drivebook/internal/modules/catalog"
	"drivebook/internal/modules/fare"
	"drivebook/internal/types"
)

// Repository is the persistence surface the service needs; *Store implements it.
type Repository interface {
	Create(ctx context.Context, b *Booking) error
	Get(ctx context.Context, id types.ID) (*Booking, error)
	ListByCustomer(ctx context.Context, customerID types.ID, limit int) ([]Booking, error)
	List(ctx context.Context, status Status, limit int) ([]Booking, error)
	UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, reason *string) (bool, error)
	Review(ctx context.Context, id types.ID, version int, pt types.PackageType, packageID *types.ID) (bool, error)
	AppendEvent(ctx context.Context, e *Event) error
	Events(ctx context.Context, bookingID types.ID) ([]Event, error)
}

// Pricer prices a trip at creation time. Failures leave the estimate at zero.
type Pricer interface {
	Estimate(ctx context.Context, req fare.EstimateRequest) (*fare.Estimate, error)
}

type PackageLookup interface {
	Package(ctx context.Context, id types.ID) (*catalog.Package, error)
}

type Service struct {
	store    Repository
	pricing  Pricer
	packages PackageLookup
}

func NewService(store Repository, pricing Pricer, packages PackageLookup) *Service {
	return &Service{store: store, pricing: pricing, packages: packages}
}

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type CreateCommand struct {
	CustomerID     types.ID
	PickupLocation string
	DropLocation   string
	BookingType    Type
	ServiceType    string
	StartAt        time.Time
	DurationHours  int
	VehicleType    string
	CarType        string
	// EstimateAmount is the client's quote, kept only when the server
	// estimate cannot be computed.
	EstimateAmount int64
}

type ReviewCommand struct {
	BookingID   types.ID
	AdminID     types.ID
	PackageType types.PackageType
	PackageID   *types.ID
}

type StartCommand struct {
	BookingID types.ID
	Pool      types.Pool
	ActorID   types.ID
}

type CompleteCommand struct {
	BookingID types.ID
	Pool      types.Pool
	ActorID   types.ID
}

type CancelCommand struct {
	BookingID types.ID
	ActorType string
	ActorID   types.ID
	Reason    string
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Booking, error) {
	cmd.PickupLocation = strings.TrimSpace(cmd.PickupLocation)
	cmd.DropLocation = strings.TrimSpace(cmd.DropLocation)
	if cmd.CustomerID == "" || !cmd.BookingType.Valid() || cmd.StartAt.IsZero() || cmd.DurationHours < 0 {
		return nil, ErrBadRequest
	}
	if cmd.BookingType == TypeHourly && cmd.DurationHours == 0 {
		return nil, ErrBadRequest
	}
	if !fare.ValidLocation(cmd.PickupLocation) || !fare.ValidLocation(cmd.DropLocation) {
		return nil, ErrInvalidLocation
	}

	now := time.Now()
	b := &Booking{
		ID:             types.NewID(),
		CustomerID:     cmd.CustomerID,
		PickupLocation: cmd.PickupLocation,
		DropLocation:   cmd.DropLocation,
		BookingType:    cmd.BookingType,
		ServiceType:    cmd.ServiceType,
		StartAt:        cmd.StartAt,
		DurationHours:  cmd.DurationHours,
		VehicleType:    cmd.VehicleType,
		CarType:        cmd.CarType,
		EstimateAmount: cmd.EstimateAmount,
		Status:         StatusPending,
		StatusVersion:  0,
		CreatedAt:      now,
	}
	if s.pricing != nil {
		est, err := s.pricing.Estimate(ctx, fare.EstimateRequest{
			Pickup:      cmd.PickupLocation,
			Drop:        cmd.DropLocation,
			VehicleType: cmd.VehicleType,
		})
		if err == nil {
			b.EstimateAmount = est.Total
		} else {
			logger.FromContext(ctx).Warn("booking estimate failed", slog.String("action", "booking.create"), slog.Any("error", err))
		}
	}

	if err := s.store.Create(ctx, b); err != nil {
		return nil, err
	}
	s.appendEvent(ctx, b.ID, StatusNone, StatusPending, ActorCustomer, &cmd.CustomerID)
	return b, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Booking, error) {
	return s.store.Get(ctx, id)
}

// GetForCustomer returns a booking only to the customer who owns it.
func (s *Service) GetForCustomer(ctx context.Context, id, customerID types.ID) (*Booking, error) {
	b, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.CustomerID != customerID {
		return nil, ErrNotOwner
	}
	return b, nil
}

func (s *Service) ListByCustomer(ctx context.Context, customerID types.ID, limit int) ([]Booking, error) {
	if customerID == "" {
		return nil, ErrBadRequest
	}
	return s.store.ListByCustomer(ctx, customerID, clampLimit(limit))
}

func (s *Service) List(ctx context.Context, status Status, limit int) ([]Booking, error) {
	status = Status(strings.ToUpper(string(status)))
	if status != "" && !status.Valid() {
		return nil, ErrBadRequest
	}
	return s.store.List(ctx, status, clampLimit(limit))
}

func (s *Service) History(ctx context.Context, id types.ID) ([]Event, error) {
	if _, err := s.store.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.store.Events(ctx, id)
}

// Review records the package type chosen by the admin. A package id, when
// given, must exist and belong to that package type.
func (s *Service) Review(ctx context.Context, cmd ReviewCommand) (*Booking, error) {
	cmd.PackageType = types.PackageType(strings.ToUpper(string(cmd.PackageType)))
	if !cmd.PackageType.Valid() {
		return nil, catalog.ErrInvalidPackageType
	}
	if cmd.PackageID != nil && *cmd.PackageID == "" {
		cmd.PackageID = nil
	}
	if cmd.PackageID != nil && s.packages != nil {
		pkg, err := s.packages.Package(ctx, *cmd.PackageID)
		if err != nil {
			return nil, err
		}
		if pkg.PackageType != cmd.PackageType {
			return nil, ErrPackageMismatch
		}
	}

	b, err := s.store.Get(ctx, cmd.BookingID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(b.Status, StatusReviewed) {
		return nil, ErrInvalidState
	}
	ok, err := s.store.Review(ctx, b.ID, b.StatusVersion, cmd.PackageType, cmd.PackageID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	s.appendEvent(ctx, b.ID, b.Status, StatusReviewed, ActorAdmin, actorPtr(cmd.AdminID))
	return s.store.Get(ctx, b.ID)
}

func (s *Service) Start(ctx context.Context, cmd StartCommand) (*Booking, error) {
	return s.partyTransition(ctx, cmd.BookingID, cmd.Pool, cmd.ActorID, StatusOngoing)
}

func (s *Service) Complete(ctx context.Context, cmd CompleteCommand) (*Booking, error) {
	return s.partyTransition(ctx, cmd.BookingID, cmd.Pool, cmd.ActorID, StatusCompleted)
}

// partyTransition moves a booking forward on behalf of its allocated driver
// or lead.
func (s *Service) partyTransition(ctx context.Context, id types.ID, pool types.Pool, actorID types.ID, to Status) (*Booking, error) {
	if !pool.Valid() || actorID == "" {
		return nil, ErrBadRequest
	}
	b, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !b.AssignedTo(pool, actorID) {
		return nil, ErrNotAssigned
	}
	if !CanTransition(b.Status, to) {
		return nil, ErrInvalidState
	}
	ok, err := s.store.UpdateStatus(ctx, b.ID, b.Status, to, b.StatusVersion, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	s.appendEvent(ctx, b.ID, b.Status, to, string(pool), &actorID)
	return s.store.Get(ctx, b.ID)
}

// Cancel is allowed for the owning customer and for admins, from any
// non-terminal status.
func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) (*Booking, error) {
	b, err := s.store.Get(ctx, cmd.BookingID)
	if err != nil {
		return nil, err
	}
	switch cmd.ActorType {
	case ActorCustomer:
		if b.CustomerID != cmd.ActorID {
			return nil, ErrNotOwner
		}
	case ActorAdmin:
	default:
		return nil, ErrBadRequest
	}
	if !CanTransition(b.Status, StatusCancelled) {
		return nil, ErrInvalidState
	}
	var reason *string
	if r := strings.TrimSpace(cmd.Reason); r != "" {
		reason = &r
	}
	ok, err := s.store.UpdateStatus(ctx, b.ID, b.Status, StatusCancelled, b.StatusVersion, reason)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	s.appendEvent(ctx, b.ID, b.Status, StatusCancelled, cmd.ActorType, actorPtr(cmd.ActorID))
	return s.store.Get(ctx, b.ID)
}

// appendEvent writes the audit row. The transition already happened, so a
// failure here is logged and not returned.
func (s *Service) appendEvent(ctx context.Context, id types.ID, from, to Status, actorType string, actorID *types.ID) {
	err := s.store.AppendEvent(ctx, &Event{
		BookingID:  id,
		FromStatus: from,
		ToStatus:   to,
		ActorType:  actorType,
		ActorID:    actorID,
		CreatedAt:  time.Now(),
	})
	if err != nil {
		logger.FromContext(ctx).Error("append booking event failed",
			slog.String("action", "booking.event"),
			slog.String("booking_id", string(id)),
			slog.String("to_status", string(to)),
			slog.Any("error", err))
	}
}

func actorPtr(id types.ID) *types.ID {
	if id == "" {
		return nil
	}
	return &id
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
