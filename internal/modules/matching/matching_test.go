// README: Matching tests covering eligibility rules and dispatch bookkeeping.
package matching

import (
	"context"
	"errors"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"drivebook/internal/modules/catalog"
	"drivebook/internal/testutil"
	"drivebook/internal/types"
)

// ---------------------------------------------------------------------------
// Unit tests with in-memory stores
// ---------------------------------------------------------------------------

type mockCandidateStore struct {
	eligible map[types.PackageType][]types.ID
	gotAt    time.Time
}

func (m *mockCandidateStore) FindEligible(_ context.Context, _ types.Pool, pt types.PackageType, at time.Time) ([]types.ID, error) {
	m.gotAt = at
	return m.eligible[pt], nil
}

func (m *mockCandidateStore) CreateCandidate(_ context.Context, _ *Candidate) error { return nil }

func (m *mockCandidateStore) GetCandidate(_ context.Context, _ types.Pool, _ types.ID) (*Candidate, error) {
	return nil, ErrCandidateNotFound
}

type mockDispatchStore struct {
	records map[string]*Dispatch
}

func newMockDispatchStore() *mockDispatchStore {
	return &mockDispatchStore{records: make(map[string]*Dispatch)}
}

func (m *mockDispatchStore) RecordDispatch(_ context.Context, pool types.Pool, bookingID types.ID, ids []types.ID, at time.Time) error {
	key := dispatchKey(pool, bookingID)
	d, ok := m.records[key]
	if !ok {
		d = &Dispatch{BookingID: bookingID, Pool: pool, Dispatched: true, DispatchedAt: at}
		m.records[key] = d
	}
	d.Notified = append(d.Notified, ids...)
	return nil
}

func (m *mockDispatchStore) GetDispatch(_ context.Context, pool types.Pool, bookingID types.ID) (*Dispatch, error) {
	if d, ok := m.records[dispatchKey(pool, bookingID)]; ok {
		return d, nil
	}
	return &Dispatch{BookingID: bookingID, Pool: pool}, nil
}

func TestFindEligibleValidatesInput(t *testing.T) {
	svc := NewService(&mockCandidateStore{}, nil)
	ctx := context.Background()

	if _, err := svc.FindEligible(ctx, "passenger", types.PackageLocal); !errors.Is(err, ErrInvalidPool) {
		t.Fatalf("bad pool: %v", err)
	}
	if _, err := svc.FindEligible(ctx, types.PoolDriver, "WEEKEND"); !errors.Is(err, ErrInvalidPackageType) {
		t.Fatalf("bad package type: %v", err)
	}
}

func TestFindEligibleEmptyIsNotError(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	store := &mockCandidateStore{eligible: map[types.PackageType][]types.ID{types.PackageLocal: {"d1", "d2"}}}
	svc := NewService(store, nil)
	svc.clock = func() time.Time { return fixed }

	ids, err := svc.FindEligible(context.Background(), types.PoolDriver, types.PackageOutstation)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected no candidates, got %v", ids)
	}
	if !store.gotAt.Equal(fixed) {
		t.Fatalf("eligibility evaluated at %v, want %v", store.gotAt, fixed)
	}
}

func TestDispatchInfoWithoutRedis(t *testing.T) {
	svc := NewService(&mockCandidateStore{}, nil)
	if err := svc.RecordDispatch(context.Background(), types.PoolDriver, "b1", []types.ID{"d1"}); err != nil {
		t.Fatalf("record without redis: %v", err)
	}
	d, err := svc.DispatchInfo(context.Background(), types.PoolDriver, "b1")
	if err != nil {
		t.Fatalf("dispatch info: %v", err)
	}
	if d.Dispatched || len(d.Notified) != 0 {
		t.Fatalf("expected empty dispatch, got %+v", d)
	}
}

func TestDispatchInfoTracksPoolsSeparately(t *testing.T) {
	svc := NewService(&mockCandidateStore{}, newMockDispatchStore())
	ctx := context.Background()

	if err := svc.RecordDispatch(ctx, types.PoolDriver, "b1", []types.ID{"d1", "d2"}); err != nil {
		t.Fatal(err)
	}
	driver, _ := svc.DispatchInfo(ctx, types.PoolDriver, "b1")
	lead, _ := svc.DispatchInfo(ctx, types.PoolLead, "b1")
	if !driver.Dispatched || len(driver.Notified) != 2 {
		t.Fatalf("driver dispatch = %+v", driver)
	}
	if lead.Dispatched {
		t.Fatalf("lead pool should be untouched, got %+v", lead)
	}
}

func TestCandidateValidatesPool(t *testing.T) {
	svc := NewService(&mockCandidateStore{}, nil)
	if _, err := svc.Candidate(context.Background(), "passenger", "d1"); !errors.Is(err, ErrInvalidPool) {
		t.Fatalf("err = %v, want ErrInvalidPool", err)
	}
	if _, err := svc.Candidate(context.Background(), types.PoolDriver, "d1"); !errors.Is(err, ErrCandidateNotFound) {
		t.Fatalf("err = %v, want ErrCandidateNotFound", err)
	}
}

func TestRegisterValidates(t *testing.T) {
	svc := NewService(&mockCandidateStore{}, nil)
	if _, err := svc.Register(context.Background(), RegisterCommand{Pool: types.PoolLead, Name: "  "}); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("blank name: %v", err)
	}
	c, err := svc.Register(context.Background(), RegisterCommand{Pool: types.PoolLead, Name: "Ravi"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if c.ID == "" || c.Status != "ACTIVE" {
		t.Fatalf("registered = %+v", c)
	}
}

// ---------------------------------------------------------------------------
// DB-backed eligibility
// ---------------------------------------------------------------------------

func TestFindEligibleDB(t *testing.T) {
	db := testutil.OpenDB(t)
	ctx := context.Background()
	svc := NewService(NewStore(db), nil)
	subs := catalog.NewService(catalog.NewStore(db))

	for _, id := range []types.ID{"d_active", "d_expired", "d_cancelled", "d_outstation", "d_two"} {
		if _, err := svc.Register(ctx, RegisterCommand{ID: id, Pool: types.PoolDriver, Name: string(id)}); err != nil {
			t.Fatalf("register %s: %v", id, err)
		}
	}
	if _, err := svc.Register(ctx, RegisterCommand{ID: "d_active", Pool: types.PoolDriver, Name: "dup"}); !errors.Is(err, ErrCandidateExists) {
		t.Fatalf("duplicate register: %v, want ErrCandidateExists", err)
	}
	if c, err := svc.Candidate(ctx, types.PoolDriver, "d_two"); err != nil || c.Name != "d_two" {
		t.Fatalf("candidate d_two = %+v, %v", c, err)
	}
	if _, err := svc.Candidate(ctx, types.PoolLead, "d_two"); !errors.Is(err, ErrCandidateNotFound) {
		t.Fatalf("driver via lead pool: %v, want ErrCandidateNotFound", err)
	}

	subscribe := func(id, plan types.ID, start time.Time) *catalog.Subscription {
		t.Helper()
		sub, err := subs.Subscribe(ctx, catalog.SubscribeCommand{Pool: types.PoolDriver, CandidateID: id, PlanID: plan, Start: start})
		if err != nil {
			t.Fatalf("subscribe %s: %v", id, err)
		}
		return sub
	}

	now := time.Now()
	subscribe("d_active", "plan_local_30", now)
	subscribe("d_expired", "plan_local_30", now.AddDate(0, -3, 0))
	cancelled := subscribe("d_cancelled", "plan_local_30", now)
	if _, err := subs.CancelSubscription(ctx, types.PoolDriver, cancelled.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	subscribe("d_outstation", "plan_out_30", now)
	// two active local subscriptions still yield one candidate
	subscribe("d_two", "plan_local_30", now)
	subscribe("d_two", "plan_local_30", now.AddDate(0, 0, -1))

	got, err := svc.FindEligible(ctx, types.PoolDriver, types.PackageLocal)
	if err != nil {
		t.Fatalf("find eligible: %v", err)
	}
	want := []types.ID{"d_active", "d_two"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("eligible = %v, want %v", got, want)
	}

	leads, err := svc.FindEligible(ctx, types.PoolLead, types.PackageLocal)
	if err != nil {
		t.Fatalf("find eligible leads: %v", err)
	}
	if len(leads) != 0 {
		t.Fatalf("expected no leads, got %v", leads)
	}
}

// ---------------------------------------------------------------------------
// Redis-backed dispatch records
// ---------------------------------------------------------------------------

func TestDispatchStoreRedis(t *testing.T) {
	addr := os.Getenv("DRIVEBOOK_TEST_REDIS")
	if addr == "" {
		t.Skip("DRIVEBOOK_TEST_REDIS not set; skipping Redis-backed tests")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	bookingID := types.NewID()
	t.Cleanup(func() {
		client.Del(ctx, dispatchKey(types.PoolDriver, bookingID), notifiedKey(types.PoolDriver, bookingID))
	})

	store := NewDispatchStore(client)
	first := time.Now().Truncate(time.Second)
	if err := store.RecordDispatch(ctx, types.PoolDriver, bookingID, []types.ID{"d2", "d1"}, first); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := store.RecordDispatch(ctx, types.PoolDriver, bookingID, []types.ID{"d3"}, first.Add(time.Minute)); err != nil {
		t.Fatalf("record again: %v", err)
	}

	d, err := store.GetDispatch(ctx, types.PoolDriver, bookingID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !d.Dispatched || !d.DispatchedAt.Equal(first) {
		t.Fatalf("dispatched_at = %v, want first dispatch %v", d.DispatchedAt, first)
	}
	if want := []types.ID{"d1", "d2", "d3"}; !reflect.DeepEqual(d.Notified, want) {
		t.Fatalf("notified = %v, want %v", d.Notified, want)
	}

	empty, err := store.GetDispatch(ctx, types.PoolLead, bookingID)
	if err != nil || empty.Dispatched {
		t.Fatalf("lead dispatch = %+v, %v", empty, err)
	}
}
