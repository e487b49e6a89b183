// README: Catalog tests (subscription dates and lifecycle, seeded lookups).
package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"drivebook/internal/testutil"
	"drivebook/internal/types"
)

type memStore struct {
	plans map[types.ID]*Plan
	subs  map[types.ID]*Subscription
	pkgs  []Package
}

func newMemStore() *memStore {
	return &memStore{plans: map[types.ID]*Plan{}, subs: map[types.ID]*Subscription{}}
}

func (m *memStore) ListPackages(ctx context.Context, pt types.PackageType) ([]Package, error) {
	var out []Package
	for _, p := range m.pkgs {
		if pt == "" || p.PackageType == pt {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) GetPackage(ctx context.Context, id types.ID) (*Package, error) {
	for _, p := range m.pkgs {
		if p.ID == id {
			cp := p
			return &cp, nil
		}
	}
	return nil, ErrPackageNotFound
}

func (m *memStore) FindPackage(ctx context.Context, pt types.PackageType, hours int) (*Package, error) {
	for _, p := range m.pkgs {
		if p.PackageType == pt && p.Hours == hours {
			cp := p
			return &cp, nil
		}
	}
	return nil, ErrPackageNotFound
}

func (m *memStore) CreatePackage(ctx context.Context, p *Package) error {
	m.pkgs = append(m.pkgs, *p)
	return nil
}

func (m *memStore) ListMonthly(ctx context.Context) ([]MonthlyPricing, error) { return nil, nil }

func (m *memStore) GetPlan(ctx context.Context, pool types.Pool, id types.ID) (*Plan, error) {
	p, ok := m.plans[id]
	if !ok || p.Pool != pool {
		return nil, ErrPlanNotFound
	}
	return p, nil
}

func (m *memStore) ListPlans(ctx context.Context, pool types.Pool) ([]Plan, error) {
	var out []Plan
	for _, p := range m.plans {
		if p.Pool == pool {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memStore) CreatePlan(ctx context.Context, p *Plan) error {
	m.plans[p.ID] = p
	return nil
}

func (m *memStore) CreateSubscription(ctx context.Context, sub *Subscription) error {
	cp := *sub
	m.subs[sub.ID] = &cp
	return nil
}

func (m *memStore) GetSubscription(ctx context.Context, pool types.Pool, id types.ID) (*Subscription, error) {
	sub, ok := m.subs[id]
	if !ok || sub.Pool != pool {
		return nil, ErrSubscriptionNotFound
	}
	cp := *sub
	return &cp, nil
}

func (m *memStore) UpdateSubscriptionStatus(ctx context.Context, pool types.Pool, id types.ID, from, to SubscriptionStatus) (bool, error) {
	sub, ok := m.subs[id]
	if !ok || sub.Status != from {
		return false, nil
	}
	sub.Status = to
	return true, nil
}

func TestSubscriptionEnd(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	start := time.Date(2026, 1, 31, 10, 15, 0, 0, loc)

	got := SubscriptionEnd(start, 30)
	want := time.Date(2026, 3, 2, 23, 59, 59, int(time.Second-time.Nanosecond), loc)
	if !got.Equal(want) {
		t.Fatalf("SubscriptionEnd = %v, want %v", got, want)
	}
}

func TestSubscribeLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := NewService(store)

	plan, err := svc.CreatePlan(ctx, Plan{Pool: types.PoolDriver, Name: "Local 30", PlanType: types.PackageLocal, Price: 999, DurationDays: 30})
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}

	start := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	sub, err := svc.Subscribe(ctx, SubscribeCommand{Pool: types.PoolDriver, CandidateID: "d1", PlanID: plan.ID, Start: start})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if sub.Status != SubscriptionActive {
		t.Fatalf("status = %s, want ACTIVE", sub.Status)
	}
	if want := SubscriptionEnd(start, 30); !sub.EndDate.Equal(want) {
		t.Fatalf("end = %v, want %v", sub.EndDate, want)
	}

	cancelled, err := svc.CancelSubscription(ctx, types.PoolDriver, sub.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != SubscriptionCancelled {
		t.Fatalf("status = %s, want CANCELLED", cancelled.Status)
	}
	if _, err := svc.RejectSubscription(ctx, types.PoolDriver, sub.ID); !errors.Is(err, ErrSubscriptionClosed) {
		t.Fatalf("reject after cancel: %v, want ErrSubscriptionClosed", err)
	}
}

func TestSubscribeInvalidRequests(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.plans["drv_30"] = &Plan{ID: "drv_30", Pool: types.PoolDriver, Name: "Driver 30", PlanType: types.PackageLocal, DurationDays: 30}
	svc := NewService(store)

	cases := []struct {
		name string
		cmd  SubscribeCommand
		want error
	}{
		{"bad pool", SubscribeCommand{Pool: "passenger", CandidateID: "d1", PlanID: "p1"}, ErrInvalidPool},
		{"plan from other pool", SubscribeCommand{Pool: types.PoolLead, CandidateID: "l1", PlanID: "drv_30"}, ErrPlanNotFound},
		{"missing candidate", SubscribeCommand{Pool: types.PoolDriver, PlanID: "p1"}, ErrBadRequest},
		{"unknown plan", SubscribeCommand{Pool: types.PoolLead, CandidateID: "l1", PlanID: "nope"}, ErrPlanNotFound},
	}
	for _, tc := range cases {
		if _, err := svc.Subscribe(ctx, tc.cmd); !errors.Is(err, tc.want) {
			t.Errorf("%s: err = %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestPlanLookup(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.plans["drv_30"] = &Plan{ID: "drv_30", Pool: types.PoolDriver, Name: "Driver 30", PlanType: types.PackageLocal, DurationDays: 30}
	svc := NewService(store)

	if p, err := svc.Plan(ctx, types.PoolDriver, "drv_30"); err != nil || p.Name != "Driver 30" {
		t.Fatalf("plan = %+v, %v", p, err)
	}
	if _, err := svc.Plan(ctx, types.PoolLead, "drv_30"); !errors.Is(err, ErrPlanNotFound) {
		t.Fatalf("wrong pool: err = %v, want ErrPlanNotFound", err)
	}
	if _, err := svc.Plan(ctx, "passenger", "drv_30"); !errors.Is(err, ErrInvalidPool) {
		t.Fatalf("bad pool: err = %v, want ErrInvalidPool", err)
	}
}

func TestCreatePackage(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemStore())

	p, err := svc.CreatePackage(ctx, Package{Name: "Outstation 8h", PackageType: types.PackageOutstation, Hours: 8, KmLimit: 300, Price: 2499})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.ID == "" || p.CreatedAt.IsZero() {
		t.Fatalf("expected generated id and timestamp, got %+v", p)
	}
	got, err := svc.OutstationPackage(ctx, 8)
	if err != nil || got.ID != p.ID {
		t.Fatalf("outstation 8h = %+v, %v", got, err)
	}

	if _, err := svc.CreatePackage(ctx, Package{Name: "x", PackageType: types.PackageLocal}); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("zero hours: err = %v, want ErrBadRequest", err)
	}
	if _, err := svc.CreatePackage(ctx, Package{Name: "x", PackageType: "WEEKEND", Hours: 4}); !errors.Is(err, ErrInvalidPackageType) {
		t.Fatalf("bad type: err = %v, want ErrInvalidPackageType", err)
	}
}

func TestListPackagesRejectsUnknownType(t *testing.T) {
	svc := NewService(newMemStore())
	if _, err := svc.ListPackages(context.Background(), "WEEKEND"); !errors.Is(err, ErrInvalidPackageType) {
		t.Fatalf("err = %v, want ErrInvalidPackageType", err)
	}
}

func TestSeededCatalog(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewService(NewStore(db))
	ctx := context.Background()

	for _, hours := range []int{8, 10, 12} {
		p, err := svc.OutstationPackage(ctx, hours)
		if err != nil {
			t.Fatalf("outstation %dh: %v", hours, err)
		}
		if p.PackageType != types.PackageOutstation || p.Hours != hours {
			t.Fatalf("got %+v for %dh", p, hours)
		}
	}
	if _, err := svc.OutstationPackage(ctx, 9); !errors.Is(err, ErrPackageNotFound) {
		t.Fatalf("9h: err = %v, want ErrPackageNotFound", err)
	}

	plans, err := svc.ListPlans(ctx, types.PoolLead)
	if err != nil {
		t.Fatalf("list lead plans: %v", err)
	}
	if len(plans) < 3 {
		t.Fatalf("expected seeded lead plans, got %d", len(plans))
	}
}

func TestSubscribeDB(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewService(NewStore(db))
	ctx := context.Background()

	if _, err := svc.Subscribe(ctx, SubscribeCommand{Pool: types.PoolDriver, CandidateID: "ghost", PlanID: "plan_local_30"}); !errors.Is(err, ErrCandidateNotFound) {
		t.Fatalf("unknown candidate: err = %v, want ErrCandidateNotFound", err)
	}

	testutil.InsertCandidate(t, db, types.PoolDriver, "d_sub")
	sub, err := svc.Subscribe(ctx, SubscribeCommand{Pool: types.PoolDriver, CandidateID: "d_sub", PlanID: "plan_local_30"})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	got, err := NewStore(db).GetSubscription(ctx, types.PoolDriver, sub.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != SubscriptionActive || got.PlanID != "plan_local_30" {
		t.Fatalf("unexpected subscription %+v", got)
	}
}
