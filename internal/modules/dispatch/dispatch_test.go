// README: Dispatch tests: fan-out idempotency, response ownership, allocation races.
package dispatch

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"drivebook/internal/apperr"
	"drivebook/internal/modules/booking"
	"drivebook/internal/modules/notify"
	"drivebook/internal/types"
)

// ---------------------------------------------------------------------------
// In-memory doubles
// ---------------------------------------------------------------------------

type memRepo struct {
	mu        sync.Mutex
	bookings  map[types.ID]*booking.Booking
	responses map[types.ID]*Response
}

func newMemRepo() *memRepo {
	return &memRepo{bookings: map[types.ID]*booking.Booking{}, responses: map[types.ID]*Response{}}
}

func (m *memRepo) addReviewed(id types.ID, pt types.PackageType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[id] = &booking.Booking{
		ID:                  id,
		CustomerID:          "c1",
		PickupLocation:      "MG Road, Bengaluru",
		DropLocation:        "Whitefield, Bengaluru",
		Status:              booking.StatusReviewed,
		SelectedPackageType: &pt,
	}
}

func (m *memRepo) Get(ctx context.Context, id types.ID) (*booking.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, booking.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *memRepo) FanOut(ctx context.Context, pool types.Pool, bookingID types.ID, pt types.PackageType, ids []types.ID) ([]Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[bookingID]
	if !ok {
		return nil, booking.ErrNotFound
	}
	if !dispatchable(b, pt) {
		return nil, ErrNotReviewed
	}
	var created []Response
	for _, cid := range ids {
		if m.findLocked(pool, bookingID, cid) != nil {
			continue
		}
		r := &Response{ID: types.NewID(), BookingID: bookingID, Pool: pool, CandidateID: cid, Status: ResponsePending, CreatedAt: time.Now()}
		m.responses[r.ID] = r
		created = append(created, *r)
	}
	return created, nil
}

func (m *memRepo) findLocked(pool types.Pool, bookingID, cid types.ID) *Response {
	for _, r := range m.responses {
		if r.Pool == pool && r.BookingID == bookingID && r.CandidateID == cid {
			return r
		}
	}
	return nil
}

func (m *memRepo) Respond(ctx context.Context, pool types.Pool, responseID, candidateID types.ID, status ResponseStatus) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.responses[responseID]
	if !ok || r.Pool != pool {
		return nil, ErrResponseNotFound
	}
	if r.CandidateID != candidateID {
		return nil, ErrNotResponseOwner
	}
	b := m.bookings[r.BookingID]
	if b.Allocated() || booking.Terminal(b.Status) {
		return nil, ErrResponsesFrozen
	}
	now := time.Now()
	r.Status = status
	r.RespondedAt = &now
	cp := *r
	return &cp, nil
}

func (m *memRepo) Allocate(ctx context.Context, pool types.Pool, bookingID, candidateID, adminID types.ID) (*booking.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[bookingID]
	if !ok {
		return nil, booking.ErrNotFound
	}
	if b.Allocated() {
		return nil, ErrAlreadyAllocated
	}
	if b.Status != booking.StatusReviewed {
		return nil, ErrNotReviewed
	}
	r := m.findLocked(pool, bookingID, candidateID)
	if r == nil || r.Status != ResponseAccepted {
		return nil, ErrCandidateNotAccepted
	}
	now := time.Now()
	if pool == types.PoolLead {
		b.LeadID, b.AllocatedLeadID = &candidateID, &candidateID
	} else {
		b.DriverID, b.AllocatedDriverID = &candidateID, &candidateID
	}
	b.Status = booking.StatusConfirmed
	b.AllocatedAt = &now
	cp := *b
	return &cp, nil
}

func (m *memRepo) ListResponses(ctx context.Context, pool types.Pool, bookingID types.ID, status ResponseStatus) ([]Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Response{}
	for _, r := range m.responses {
		if r.Pool == pool && r.BookingID == bookingID && (status == "" || r.Status == status) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CandidateID < out[j].CandidateID })
	return out, nil
}

func (m *memRepo) ListOffers(ctx context.Context, pool types.Pool, candidateID types.ID, status ResponseStatus) ([]Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Offer{}
	for _, r := range m.responses {
		if r.Pool == pool && r.CandidateID == candidateID && (status == "" || r.Status == status) {
			b := m.bookings[r.BookingID]
			out = append(out, Offer{Response: *r, PickupLocation: b.PickupLocation, BookingStatus: b.Status})
		}
	}
	return out, nil
}

type stubMatcher struct {
	eligible []types.ID
	recorded [][]types.ID
}

func (s *stubMatcher) FindEligible(ctx context.Context, pool types.Pool, pt types.PackageType) ([]types.ID, error) {
	return s.eligible, nil
}

func (s *stubMatcher) RecordDispatch(ctx context.Context, pool types.Pool, bookingID types.ID, ids []types.ID) error {
	s.recorded = append(s.recorded, ids)
	return nil
}

type recordingPublisher struct {
	mu          sync.Mutex
	offers      []notify.OfferMessage
	allocations []notify.AllocationMessage
}

func (p *recordingPublisher) PublishOffer(ctx context.Context, msg notify.OfferMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.offers = append(p.offers, msg)
	return nil
}

func (p *recordingPublisher) PublishAllocation(ctx context.Context, msg notify.AllocationMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.allocations = append(p.allocations, msg)
	return nil
}

func newTestService(eligible ...types.ID) (*Service, *memRepo, *stubMatcher, *recordingPublisher) {
	repo := newMemRepo()
	matcher := &stubMatcher{eligible: eligible}
	pub := &recordingPublisher{}
	return NewService(repo, repo, matcher, pub), repo, matcher, pub
}

// ---------------------------------------------------------------------------
// Unit tests
// ---------------------------------------------------------------------------

func TestFanOutCreatesOnePendingRowPerCandidate(t *testing.T) {
	ctx := context.Background()
	svc, repo, matcher, pub := newTestService("d1", "d2", "d3")
	repo.addReviewed("b1", types.PackageLocal)

	res, err := svc.FanOut(ctx, types.PoolDriver, "b1")
	if err != nil {
		t.Fatalf("fan out: %v", err)
	}
	if res.Eligible != 3 || res.Created != 3 {
		t.Fatalf("result = %+v, want 3 eligible / 3 created", res)
	}
	if res.DriversCount == nil || *res.DriversCount != 3 || res.LeadsCount != nil {
		t.Fatalf("driversCount = %v, leadsCount = %v, want 3 / nil", res.DriversCount, res.LeadsCount)
	}
	for _, r := range res.Responses {
		if r.Status != ResponsePending {
			t.Fatalf("response %s status %s, want PENDING", r.ID, r.Status)
		}
	}
	if len(pub.offers) != 3 || len(matcher.recorded) != 1 {
		t.Fatalf("offers=%d recorded=%d", len(pub.offers), len(matcher.recorded))
	}

	again, err := svc.FanOut(ctx, types.PoolDriver, "b1")
	if err != nil {
		t.Fatalf("second fan out: %v", err)
	}
	if again.Created != 0 || len(again.Responses) != 0 {
		t.Fatalf("second fan out created %d rows, want 0", again.Created)
	}
	if len(pub.offers) != 3 {
		t.Fatalf("second fan out published %d extra offers", len(pub.offers)-3)
	}

	all, _ := svc.ListResponses(ctx, types.PoolDriver, "b1", "")
	if len(all) != 3 {
		t.Fatalf("responses = %d, want 3", len(all))
	}

	leads, err := svc.FanOut(ctx, types.PoolLead, "b1")
	if err != nil {
		t.Fatalf("lead fan out: %v", err)
	}
	if leads.LeadsCount == nil || *leads.LeadsCount != 3 || leads.DriversCount != nil {
		t.Fatalf("leadsCount = %v, driversCount = %v, want 3 / nil", leads.LeadsCount, leads.DriversCount)
	}
}

func TestFanOutPreconditions(t *testing.T) {
	ctx := context.Background()

	svc, repo, _, _ := newTestService()
	repo.addReviewed("b1", types.PackageOutstation)
	_, err := svc.FanOut(ctx, types.PoolLead, "b1")
	if !errors.Is(err, ErrNoCandidates) {
		t.Fatalf("no candidates: %v", err)
	}
	if apperr.KindOf(err) != apperr.InvalidInput {
		t.Fatalf("kind = %s, want invalid_input", apperr.KindOf(err))
	}

	svc, repo, _, _ = newTestService("d1")
	repo.bookings["pending"] = &booking.Booking{ID: "pending", Status: booking.StatusPending}
	if _, err := svc.FanOut(ctx, types.PoolDriver, "pending"); !errors.Is(err, ErrNotReviewed) {
		t.Fatalf("pending booking: %v, want ErrNotReviewed", err)
	}
	if _, err := svc.FanOut(ctx, types.PoolDriver, "missing"); !errors.Is(err, booking.ErrNotFound) {
		t.Fatalf("missing booking: %v, want ErrNotFound", err)
	}
	if _, err := svc.FanOut(ctx, "passenger", "pending"); !errors.Is(err, ErrInvalidPool) {
		t.Fatalf("bad pool: %v, want ErrInvalidPool", err)
	}
}

func TestRespondOwnershipAndLastWriteWins(t *testing.T) {
	ctx := context.Background()
	svc, repo, _, _ := newTestService("d1", "d2")
	repo.addReviewed("b1", types.PackageLocal)
	res, err := svc.FanOut(ctx, types.PoolDriver, "b1")
	if err != nil {
		t.Fatalf("fan out: %v", err)
	}
	var d1Resp types.ID
	for _, r := range res.Responses {
		if r.CandidateID == "d1" {
			d1Resp = r.ID
		}
	}

	_, err = svc.Respond(ctx, RespondCommand{Pool: types.PoolDriver, ResponseID: d1Resp, CandidateID: "d2", Action: "ACCEPTED"})
	if !errors.Is(err, ErrNotResponseOwner) || apperr.KindOf(err) != apperr.Unauthorized {
		t.Fatalf("non-owner respond: %v", err)
	}
	if _, err := svc.Respond(ctx, RespondCommand{Pool: types.PoolDriver, ResponseID: d1Resp, CandidateID: "d1", Action: "MAYBE"}); !errors.Is(err, ErrInvalidAction) {
		t.Fatalf("bad action: %v", err)
	}
	if _, err := svc.Respond(ctx, RespondCommand{Pool: types.PoolDriver, ResponseID: "nope", CandidateID: "d1", Action: "accept"}); !errors.Is(err, ErrResponseNotFound) {
		t.Fatalf("missing response: %v", err)
	}

	for _, action := range []string{"ACCEPTED", "REJECTED", "accept"} {
		if _, err := svc.Respond(ctx, RespondCommand{Pool: types.PoolDriver, ResponseID: d1Resp, CandidateID: "d1", Action: action}); err != nil {
			t.Fatalf("respond %s: %v", action, err)
		}
	}
	accepted, _ := svc.ListResponses(ctx, types.PoolDriver, "b1", "accepted")
	if len(accepted) != 1 || accepted[0].CandidateID != "d1" {
		t.Fatalf("accepted = %+v", accepted)
	}

	offers, err := svc.ListOffers(ctx, types.PoolDriver, "d1", "")
	if err != nil || len(offers) != 1 || offers[0].PickupLocation == "" {
		t.Fatalf("offers = %+v, %v", offers, err)
	}
}

func TestAllocateRequiresAcceptanceAndFreezesResponses(t *testing.T) {
	ctx := context.Background()
	svc, repo, _, pub := newTestService("d1", "d2")
	repo.addReviewed("b1", types.PackageLocal)
	res, _ := svc.FanOut(ctx, types.PoolDriver, "b1")
	byCandidate := map[types.ID]types.ID{}
	for _, r := range res.Responses {
		byCandidate[r.CandidateID] = r.ID
	}

	_, err := svc.Allocate(ctx, AllocateCommand{Pool: types.PoolDriver, BookingID: "b1", CandidateID: "d1"})
	if !errors.Is(err, ErrCandidateNotAccepted) || apperr.KindOf(err) != apperr.Conflict {
		t.Fatalf("allocate pending candidate: %v", err)
	}

	for _, cid := range []types.ID{"d1", "d2"} {
		if _, err := svc.Respond(ctx, RespondCommand{Pool: types.PoolDriver, ResponseID: byCandidate[cid], CandidateID: cid, Action: "ACCEPTED"}); err != nil {
			t.Fatalf("accept %s: %v", cid, err)
		}
	}

	b, err := svc.Allocate(ctx, AllocateCommand{Pool: types.PoolDriver, BookingID: "b1", CandidateID: "d1", AdminID: "a1"})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if b.Status != booking.StatusConfirmed || b.AllocatedDriverID == nil || *b.AllocatedDriverID != "d1" || b.AllocatedLeadID != nil {
		t.Fatalf("allocated booking = %+v", b)
	}
	if len(pub.allocations) != 1 || pub.allocations[0].CandidateID != "d1" {
		t.Fatalf("allocation messages = %+v", pub.allocations)
	}

	if _, err := svc.Allocate(ctx, AllocateCommand{Pool: types.PoolDriver, BookingID: "b1", CandidateID: "d2"}); !errors.Is(err, ErrAlreadyAllocated) {
		t.Fatalf("second allocate: %v, want ErrAlreadyAllocated", err)
	}
	if _, err := svc.Allocate(ctx, AllocateCommand{Pool: types.PoolLead, BookingID: "b1", CandidateID: "l1"}); !errors.Is(err, ErrAlreadyAllocated) {
		t.Fatalf("lead allocate after driver: %v, want ErrAlreadyAllocated", err)
	}
	if _, err := svc.Respond(ctx, RespondCommand{Pool: types.PoolDriver, ResponseID: byCandidate["d1"], CandidateID: "d1", Action: "REJECTED"}); !errors.Is(err, ErrResponsesFrozen) {
		t.Fatalf("respond after allocation: %v, want ErrResponsesFrozen", err)
	}
}

func TestParseAction(t *testing.T) {
	cases := map[string]ResponseStatus{
		"ACCEPTED": ResponseAccepted,
		"accept":   ResponseAccepted,
		" Reject ": ResponseRejected,
		"REJECTED": ResponseRejected,
	}
	for in, want := range cases {
		got, ok := ParseAction(in)
		if !ok || got != want {
			t.Errorf("ParseAction(%q) = %s/%v, want %s", in, got, ok, want)
		}
	}
	if _, ok := ParseAction("PENDING"); ok {
		t.Error("PENDING must not be a valid action")
	}
}
