// README: Matching service resolves eligible candidates and tracks dispatches.
package matching

import (
	"context"
	"strings"
	"time"

	"drivebook/internal/types"
)

type CandidateRepository interface {
	FindEligible(ctx context.Context, pool types.Pool, pt types.PackageType, at time.Time) ([]types.ID, error)
	CreateCandidate(ctx context.Context, c *Candidate) error
	GetCandidate(ctx context.Context, pool types.Pool, id types.ID) (*Candidate, error)
}

type DispatchRepository interface {
	RecordDispatch(ctx context.Context, pool types.Pool, bookingID types.ID, candidateIDs []types.ID, at time.Time) error
	GetDispatch(ctx context.Context, pool types.Pool, bookingID types.ID) (*Dispatch, error)
}

type Service struct {
	candidates CandidateRepository
	dispatches DispatchRepository
	clock      func() time.Time
}

// NewService wires the eligibility store. dispatches may be nil when Redis is
// not configured; dispatch records are then not kept.
func NewService(candidates CandidateRepository, dispatches DispatchRepository) *Service {
	return &Service{candidates: candidates, dispatches: dispatches, clock: time.Now}
}

type RegisterCommand struct {
	ID    types.ID
	Pool  types.Pool
	Name  string
	Phone string
}

// FindEligible lists candidates that may receive an offer for a booking of
// package type pt. An empty result is not an error.
func (s *Service) FindEligible(ctx context.Context, pool types.Pool, pt types.PackageType) ([]types.ID, error) {
	if !pool.Valid() {
		return nil, ErrInvalidPool
	}
	if !pt.Valid() {
		return nil, ErrInvalidPackageType
	}
	return s.candidates.FindEligible(ctx, pool, pt, s.clock())
}

func (s *Service) Register(ctx context.Context, cmd RegisterCommand) (*Candidate, error) {
	if !cmd.Pool.Valid() {
		return nil, ErrInvalidPool
	}
	cmd.Name = strings.TrimSpace(cmd.Name)
	if cmd.Name == "" {
		return nil, ErrBadRequest
	}
	if cmd.ID == "" {
		cmd.ID = types.NewID()
	}
	c := &Candidate{
		ID:        cmd.ID,
		Pool:      cmd.Pool,
		Name:      cmd.Name,
		Phone:     strings.TrimSpace(cmd.Phone),
		Status:    "ACTIVE",
		CreatedAt: s.clock(),
	}
	if err := s.candidates.CreateCandidate(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) Candidate(ctx context.Context, pool types.Pool, id types.ID) (*Candidate, error) {
	if !pool.Valid() {
		return nil, ErrInvalidPool
	}
	return s.candidates.GetCandidate(ctx, pool, id)
}

func (s *Service) RecordDispatch(ctx context.Context, pool types.Pool, bookingID types.ID, candidateIDs []types.ID) error {
	if s.dispatches == nil {
		return nil
	}
	return s.dispatches.RecordDispatch(ctx, pool, bookingID, candidateIDs, s.clock())
}

// DispatchInfo returns the recorded dispatch, or an undispatched record when
// nothing was sent or bookkeeping is disabled.
func (s *Service) DispatchInfo(ctx context.Context, pool types.Pool, bookingID types.ID) (*Dispatch, error) {
	if !pool.Valid() {
		return nil, ErrInvalidPool
	}
	if s.dispatches == nil {
		return &Dispatch{BookingID: bookingID, Pool: pool, Notified: []types.ID{}}, nil
	}
	return s.dispatches.GetDispatch(ctx, pool, bookingID)
}
