// README: Dispatch service fans bookings out to eligible candidates, collects responses and allocates.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"drivebook/internal/logger"
	"drivebook/internal/modules/booking"
	"drivebook/internal/modules/notify"
	"drivebook/internal/types"
)

type Repository interface {
	FanOut(ctx context.Context, pool types.Pool, bookingID types.ID, pt types.PackageType, candidateIDs []types.ID) ([]Response, error)
	Respond(ctx context.Context, pool types.Pool, responseID, candidateID types.ID, status ResponseStatus) (*Response, error)
	Allocate(ctx context.Context, pool types.Pool, bookingID, candidateID, adminID types.ID) (*booking.Booking, error)
	ListResponses(ctx context.Context, pool types.Pool, bookingID types.ID, status ResponseStatus) ([]Response, error)
	ListOffers(ctx context.Context, pool types.Pool, candidateID types.ID, status ResponseStatus) ([]Offer, error)
}

type BookingReader interface {
	Get(ctx context.Context, id types.ID) (*booking.Booking, error)
}

// Matcher is the part of the matching service dispatch depends on.
type Matcher interface {
	FindEligible(ctx context.Context, pool types.Pool, pt types.PackageType) ([]types.ID, error)
	RecordDispatch(ctx context.Context, pool types.Pool, bookingID types.ID, candidateIDs []types.ID) error
}

type Service struct {
	store     Repository
	bookings  BookingReader
	matcher   Matcher
	publisher notify.Publisher
}

func NewService(store Repository, bookings BookingReader, matcher Matcher, publisher notify.Publisher) *Service {
	if publisher == nil {
		publisher = notify.Nop{}
	}
	return &Service{store: store, bookings: bookings, matcher: matcher, publisher: publisher}
}

type RespondCommand struct {
	Pool        types.Pool
	ResponseID  types.ID
	CandidateID types.ID
	Action      string
}

type AllocateCommand struct {
	Pool        types.Pool
	BookingID   types.ID
	CandidateID types.ID
	AdminID     types.ID
}

// FanOut creates a PENDING response for every eligible candidate of pool.
// Running it again only adds rows for candidates that became eligible since.
func (s *Service) FanOut(ctx context.Context, pool types.Pool, bookingID types.ID) (*FanOutResult, error) {
	if !pool.Valid() {
		return nil, ErrInvalidPool
	}
	b, err := s.bookings.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.SelectedPackageType == nil || !dispatchable(b, *b.SelectedPackageType) {
		return nil, ErrNotReviewed
	}
	pt := *b.SelectedPackageType

	eligible, err := s.matcher.FindEligible(ctx, pool, pt)
	if err != nil {
		return nil, fmt.Errorf("find eligible %s: %w", pool, err)
	}
	if len(eligible) == 0 {
		return nil, fmt.Errorf("%w: pool %s, package %s", ErrNoCandidates, pool, pt)
	}

	created, err := s.store.FanOut(ctx, pool, bookingID, pt, eligible)
	if err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx).With(
		slog.String("action", "dispatch.fan_out"),
		slog.String("booking_id", string(bookingID)),
		slog.String("pool", string(pool)),
	)
	log.Info("booking fanned out", slog.Int("eligible", len(eligible)), slog.Int("created", len(created)))

	if len(created) > 0 {
		ids := make([]types.ID, len(created))
		for i, r := range created {
			ids[i] = r.CandidateID
		}
		if err := s.matcher.RecordDispatch(ctx, pool, bookingID, ids); err != nil {
			log.Warn("record dispatch failed", slog.Any("error", err))
		}
		sentAt := time.Now()
		for _, r := range created {
			err := s.publisher.PublishOffer(ctx, notify.OfferMessage{
				BookingID:      bookingID,
				ResponseID:     r.ID,
				Pool:           pool,
				CandidateID:    r.CandidateID,
				PackageType:    pt,
				PickupLocation: b.PickupLocation,
				DropLocation:   b.DropLocation,
				StartAt:        b.StartAt,
				SentAt:         sentAt,
			})
			if err != nil {
				log.Warn("publish offer failed", slog.String("candidate_id", string(r.CandidateID)), slog.Any("error", err))
			}
		}
	}

	if created == nil {
		created = []Response{}
	}
	res := &FanOutResult{
		BookingID: bookingID,
		Pool:      pool,
		Eligible:  len(eligible),
		Created:   len(created),
		Responses: created,
	}
	count := len(eligible)
	if pool == types.PoolLead {
		res.LeadsCount = &count
	} else {
		res.DriversCount = &count
	}
	return res, nil
}

// Respond lets the candidate owning a response accept or reject it. The last
// decision wins until the booking is allocated.
func (s *Service) Respond(ctx context.Context, cmd RespondCommand) (*Response, error) {
	if !cmd.Pool.Valid() {
		return nil, ErrInvalidPool
	}
	status, ok := ParseAction(cmd.Action)
	if !ok {
		return nil, ErrInvalidAction
	}
	if cmd.ResponseID == "" || cmd.CandidateID == "" {
		return nil, ErrBadRequest
	}
	r, err := s.store.Respond(ctx, cmd.Pool, cmd.ResponseID, cmd.CandidateID, status)
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("booking response recorded",
		slog.String("action", "dispatch.respond"),
		slog.String("booking_id", string(r.BookingID)),
		slog.String("pool", string(cmd.Pool)),
		slog.String("candidate_id", string(r.CandidateID)),
		slog.String("status", string(r.Status)))
	return r, nil
}

func (s *Service) ListResponses(ctx context.Context, pool types.Pool, bookingID types.ID, status string) ([]Response, error) {
	if !pool.Valid() {
		return nil, ErrInvalidPool
	}
	st, err := parseStatusFilter(status)
	if err != nil {
		return nil, err
	}
	if _, err := s.bookings.Get(ctx, bookingID); err != nil {
		return nil, err
	}
	return s.store.ListResponses(ctx, pool, bookingID, st)
}

func (s *Service) ListOffers(ctx context.Context, pool types.Pool, candidateID types.ID, status string) ([]Offer, error) {
	if !pool.Valid() {
		return nil, ErrInvalidPool
	}
	if candidateID == "" {
		return nil, ErrBadRequest
	}
	st, err := parseStatusFilter(status)
	if err != nil {
		return nil, err
	}
	return s.store.ListOffers(ctx, pool, candidateID, st)
}

// Allocate confirms the booking with one candidate who accepted it.
func (s *Service) Allocate(ctx context.Context, cmd AllocateCommand) (*booking.Booking, error) {
	if !cmd.Pool.Valid() {
		return nil, ErrInvalidPool
	}
	if cmd.BookingID == "" || cmd.CandidateID == "" {
		return nil, ErrBadRequest
	}
	b, err := s.store.Allocate(ctx, cmd.Pool, cmd.BookingID, cmd.CandidateID, cmd.AdminID)
	if err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx).With(
		slog.String("action", "dispatch.allocate"),
		slog.String("booking_id", string(cmd.BookingID)),
		slog.String("pool", string(cmd.Pool)),
		slog.String("candidate_id", string(cmd.CandidateID)),
	)
	log.Info("booking allocated")

	allocatedAt := time.Now()
	if b.AllocatedAt != nil {
		allocatedAt = *b.AllocatedAt
	}
	err = s.publisher.PublishAllocation(ctx, notify.AllocationMessage{
		BookingID:   cmd.BookingID,
		Pool:        cmd.Pool,
		CandidateID: cmd.CandidateID,
		AllocatedAt: allocatedAt,
	})
	if err != nil {
		log.Warn("publish allocation failed", slog.Any("error", err))
	}
	return b, nil
}

func parseStatusFilter(s string) (ResponseStatus, error) {
	if s == "" {
		return "", nil
	}
	st := ResponseStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", ErrInvalidStatus
	}
	return st, nil
}
