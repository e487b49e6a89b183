// README: Smoke cases; env checks, then one booking driven from creation through allocation to completion.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"drivebook/internal/infra"
	"drivebook/internal/types"
)

const (
	statusPass = "PASS"
	statusFail = "FAIL"
	statusSkip = "SKIP"
)

type Runner struct {
	cfg    Config
	httpc  *http.Client
	db     *pgxpool.Pool
	redis  *redis.Client
	tokens map[string]string
	flow   flowState
}

// flowState carries IDs between cases; a case whose input is missing skips.
type flowState struct {
	customerID types.ID
	driverID   types.ID
	leadID     types.ID
	bookingID  types.ID
	responseID types.ID
	allocated  bool
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) (*Runner, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt secret is required to issue smoke tokens (-jwt-secret or DRIVEBOOK_JWT_SECRET)")
	}
	issuer, err := infra.NewJWTVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		return nil, err
	}
	suffix := uuid.NewString()[:8]
	flow := flowState{
		customerID: types.ID("smoke-customer-" + suffix),
		driverID:   types.ID("smoke-driver-" + suffix),
		leadID:     types.ID("smoke-lead-" + suffix),
	}
	tokens := map[string]string{}
	for role, uid := range map[string]types.ID{
		"customer": flow.customerID,
		"admin":    types.ID("smoke-admin-" + suffix),
		"driver":   flow.driverID,
		"lead":     flow.leadID,
	} {
		tok, err := issuer.Issue(string(uid), role, cfg.Timeout+time.Minute)
		if err != nil {
			return nil, fmt.Errorf("issue %s token: %w", role, err)
		}
		tokens[role] = tok
	}
	return &Runner{
		cfg:    cfg,
		httpc:  &http.Client{Timeout: 10 * time.Second},
		tokens: tokens,
		flow:   flow,
	}, nil
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))

	for _, tc := range tests {
		res := tc.Run(ctx, r)
		res.Name = tc.Name
		results = append(results, res)
		fmt.Printf("%-5s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}
	return results
}

func (r *Runner) cases() []TestCase {
	return []TestCase{
		{Name: "Env: Postgres connect", Run: func(ctx context.Context, r *Runner) Result {
			if r.db == nil {
				return fail("db not configured")
			}
			ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			defer cancel()
			if err := r.db.Ping(ctx); err != nil {
				return fail(err.Error())
			}
			return pass("")
		}},
		{Name: "Env: Redis connect", Run: func(ctx context.Context, r *Runner) Result {
			if r.redis == nil {
				return fail("redis not configured")
			}
			ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			defer cancel()
			if err := r.redis.Ping(ctx).Err(); err != nil {
				return fail(err.Error())
			}
			return pass("")
		}},
		{Name: "Migration: apply (optional)", Run: func(ctx context.Context, r *Runner) Result {
			if !r.cfg.ApplyMigration {
				return skip("apply-migration=false")
			}
			if r.db == nil {
				return fail("db not configured")
			}
			applied, err := infra.Migrate(ctx, r.db, r.cfg.MigrationsDir)
			if err != nil {
				return fail(err.Error())
			}
			return pass(fmt.Sprintf("applied=%d", len(applied)))
		}},
		{Name: "Migration: tables exist", Run: func(ctx context.Context, r *Runner) Result {
			if r.db == nil {
				return fail("db not configured")
			}
			tables, err := extractTables(r.cfg.MigrationsDir)
			if err != nil {
				return fail(err.Error())
			}
			for _, t := range tables {
				var exists bool
				err := r.db.QueryRow(ctx,
					"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)", t,
				).Scan(&exists)
				if err != nil {
					return fail(err.Error())
				}
				if !exists {
					return fail("missing table: " + t)
				}
			}
			return pass(fmt.Sprintf("tables=%d", len(tables)))
		}},
		{Name: "API: health", Run: func(ctx context.Context, r *Runner) Result {
			code, lat, err := r.call(ctx, http.MethodGet, "/health", "", nil, nil)
			return expect(code, lat, err, http.StatusOK)
		}},
		{Name: "Catalog: packages listed", Run: func(ctx context.Context, r *Runner) Result {
			var out struct {
				Packages []json.RawMessage `json:"packages"`
			}
			code, lat, err := r.call(ctx, http.MethodGet, "/api/packages", "", nil, &out)
			res := expect(code, lat, err, http.StatusOK)
			if res.Status == statusPass && len(out.Packages) == 0 {
				return fail("no packages seeded")
			}
			return res
		}},
		{Name: "Admin: register driver and lead", Run: func(ctx context.Context, r *Runner) Result {
			for pool, id := range map[types.Pool]types.ID{types.PoolDriver: r.flow.driverID, types.PoolLead: r.flow.leadID} {
				code, _, err := r.call(ctx, http.MethodPost, "/api/admin/candidates", "admin", map[string]any{
					"id": id, "pool": pool, "name": "Smoke " + string(pool), "phone": "+910000000000",
				}, nil)
				if res := expect(code, 0, err, http.StatusCreated); res.Status != statusPass {
					res.Note = string(pool) + ": " + res.Note
					return res
				}
			}
			return pass("")
		}},
		{Name: "Admin: subscribe driver and lead to LOCAL plans", Run: func(ctx context.Context, r *Runner) Result {
			subs := []map[string]any{
				{"pool": types.PoolDriver, "candidateId": r.flow.driverID, "planId": "plan_local_30"},
				{"pool": types.PoolLead, "candidateId": r.flow.leadID, "planId": "lplan_local_30"},
			}
			for _, s := range subs {
				code, _, err := r.call(ctx, http.MethodPost, "/api/admin/subscriptions", "admin", s, nil)
				if res := expect(code, 0, err, http.StatusCreated); res.Status != statusPass {
					return res
				}
			}
			return pass("")
		}},
		{Name: "Booking: invalid location -> 400", Run: func(ctx context.Context, r *Runner) Result {
			code, lat, err := r.call(ctx, http.MethodPost, "/api/bookings", "customer", map[string]any{
				"pickupLocation": "home",
				"dropLocation":   "work",
				"bookingType":    "hourly",
				"startDateTime":  time.Now().Add(24 * time.Hour),
				"duration":       4,
			}, nil)
			return expect(code, lat, err, http.StatusBadRequest)
		}},
		{Name: "Booking: customer creates hourly booking", Run: func(ctx context.Context, r *Runner) Result {
			var out struct {
				ID     types.ID `json:"id"`
				Status string   `json:"status"`
			}
			code, lat, err := r.call(ctx, http.MethodPost, "/api/bookings", "customer", map[string]any{
				"pickupLocation": "12 MG Road, Bengaluru",
				"dropLocation":   "Kempegowda Airport, Bengaluru",
				"bookingType":    "hourly",
				"serviceType":    "driver",
				"startDateTime":  time.Now().Add(24 * time.Hour),
				"duration":       4,
				"vehicleType":    "Hatchback",
			}, &out)
			res := expect(code, lat, err, http.StatusCreated)
			if res.Status == statusPass {
				if out.Status != "PENDING" {
					return fail("status=" + out.Status)
				}
				r.flow.bookingID = out.ID
			}
			return res
		}},
		{Name: "Dispatch: fan-out before review -> 409", Run: func(ctx context.Context, r *Runner) Result {
			if r.flow.bookingID == "" {
				return skip("no booking")
			}
			code, lat, err := r.call(ctx, http.MethodPost, "/api/admin/"+string(r.flow.bookingID)+"/send-to-drivers", "admin", nil, nil)
			return expect(code, lat, err, http.StatusConflict)
		}},
		{Name: "Admin: review booking as LOCAL", Run: func(ctx context.Context, r *Runner) Result {
			if r.flow.bookingID == "" {
				return skip("no booking")
			}
			code, lat, err := r.call(ctx, http.MethodPut, "/api/admin/"+string(r.flow.bookingID)+"/review", "admin",
				map[string]any{"selectedPackageType": types.PackageLocal, "selectedPackageId": "pkg_loc_4h"}, nil)
			return expect(code, lat, err, http.StatusOK)
		}},
		{Name: "Dispatch: fan-out to drivers and leads", Run: func(ctx context.Context, r *Runner) Result {
			if r.flow.bookingID == "" {
				return skip("no booking")
			}
			for _, path := range []string{"send-to-drivers", "send-to-leads"} {
				var out struct {
					DriversCount *int `json:"driversCount"`
					LeadsCount   *int `json:"leadsCount"`
					Created      int  `json:"created"`
				}
				code, _, err := r.call(ctx, http.MethodPost, "/api/admin/"+string(r.flow.bookingID)+"/"+path, "admin", nil, &out)
				if res := expect(code, 0, err, http.StatusOK); res.Status != statusPass {
					return res
				}
				count := out.DriversCount
				if path == "send-to-leads" {
					count = out.LeadsCount
				}
				if count == nil || *count < 1 {
					return fail(path + ": no eligible candidates counted")
				}
				if out.Created < 1 {
					return fail(path + ": no responses created")
				}
			}
			return pass("")
		}},
		{Name: "Dispatch: repeated fan-out creates nothing", Run: func(ctx context.Context, r *Runner) Result {
			if r.flow.bookingID == "" {
				return skip("no booking")
			}
			var out struct {
				Created int `json:"created"`
			}
			code, lat, err := r.call(ctx, http.MethodPost, "/api/admin/"+string(r.flow.bookingID)+"/send-to-drivers", "admin", nil, &out)
			res := expect(code, lat, err, http.StatusOK)
			if res.Status == statusPass && out.Created != 0 {
				return fail(fmt.Sprintf("created=%d", out.Created))
			}
			return res
		}},
		{Name: "Driver: offer visible", Run: func(ctx context.Context, r *Runner) Result {
			if r.flow.bookingID == "" {
				return skip("no booking")
			}
			var out struct {
				Offers []struct {
					ID        types.ID `json:"id"`
					BookingID types.ID `json:"bookingId"`
				} `json:"offers"`
			}
			code, lat, err := r.call(ctx, http.MethodGet, "/api/driver/offers?status=PENDING", "driver", nil, &out)
			if res := expect(code, lat, err, http.StatusOK); res.Status != statusPass {
				return res
			}
			for _, o := range out.Offers {
				if o.BookingID == r.flow.bookingID {
					r.flow.responseID = o.ID
					return Result{Status: statusPass, Latency: lat}
				}
			}
			return fail("booking not among offers")
		}},
		{Name: "Lead: cannot answer a driver offer -> 403", Run: func(ctx context.Context, r *Runner) Result {
			if r.flow.responseID == "" {
				return skip("no offer")
			}
			code, lat, err := r.call(ctx, http.MethodPut, "/api/driver/respond/"+string(r.flow.responseID), "lead",
				map[string]string{"action": "ACCEPTED"}, nil)
			return expect(code, lat, err, http.StatusForbidden)
		}},
		{Name: "Admin: allocate before acceptance -> 409", Run: func(ctx context.Context, r *Runner) Result {
			if r.flow.responseID == "" {
				return skip("no offer")
			}
			code, lat, err := r.call(ctx, http.MethodPost, "/api/admin/"+string(r.flow.bookingID)+"/allocate-driver", "admin",
				map[string]any{"driverId": r.flow.driverID}, nil)
			return expect(code, lat, err, http.StatusConflict)
		}},
		{Name: "Driver: accept offer", Run: func(ctx context.Context, r *Runner) Result {
			if r.flow.responseID == "" {
				return skip("no offer")
			}
			code, lat, err := r.call(ctx, http.MethodPut, "/api/driver/respond/"+string(r.flow.responseID), "driver",
				map[string]string{"action": "ACCEPTED"}, nil)
			return expect(code, lat, err, http.StatusOK)
		}},
		{Name: "Admin: concurrent allocate -> exactly one success", Run: func(ctx context.Context, r *Runner) Result {
			if r.flow.responseID == "" {
				return skip("no offer")
			}
			return concurrentAllocate(ctx, r)
		}},
		{Name: "Driver: respond after allocation -> 409", Run: func(ctx context.Context, r *Runner) Result {
			if !r.flow.allocated {
				return skip("not allocated")
			}
			code, lat, err := r.call(ctx, http.MethodPut, "/api/driver/respond/"+string(r.flow.responseID), "driver",
				map[string]string{"action": "REJECTED"}, nil)
			return expect(code, lat, err, http.StatusConflict)
		}},
		{Name: "Admin: dispatch record", Run: func(ctx context.Context, r *Runner) Result {
			if r.flow.bookingID == "" {
				return skip("no booking")
			}
			var out struct {
				Dispatched bool       `json:"dispatched"`
				Notified   []types.ID `json:"notified"`
			}
			code, lat, err := r.call(ctx, http.MethodGet, "/api/admin/"+string(r.flow.bookingID)+"/dispatch?pool=driver", "admin", nil, &out)
			res := expect(code, lat, err, http.StatusOK)
			if res.Status == statusPass && !out.Dispatched {
				return fail("dispatch not recorded")
			}
			return res
		}},
		{Name: "Driver: start and complete trip", Run: func(ctx context.Context, r *Runner) Result {
			if !r.flow.allocated {
				return skip("not allocated")
			}
			for _, step := range []string{"start", "complete"} {
				code, _, err := r.call(ctx, http.MethodPost, "/api/driver/bookings/"+string(r.flow.bookingID)+"/"+step, "driver", nil, nil)
				if res := expect(code, 0, err, http.StatusOK); res.Status != statusPass {
					res.Note = step + ": " + res.Note
					return res
				}
			}
			return pass("")
		}},
		{Name: "Booking: customer sees COMPLETED", Run: func(ctx context.Context, r *Runner) Result {
			if !r.flow.allocated {
				return skip("not allocated")
			}
			var out struct {
				Status string `json:"status"`
			}
			code, lat, err := r.call(ctx, http.MethodGet, "/api/bookings/"+string(r.flow.bookingID), "customer", nil, &out)
			res := expect(code, lat, err, http.StatusOK)
			if res.Status == statusPass && out.Status != "COMPLETED" {
				return fail("status=" + out.Status)
			}
			return res
		}},
		{Name: "Booking: completed cannot be cancelled -> 409", Run: func(ctx context.Context, r *Runner) Result {
			if !r.flow.allocated {
				return skip("not allocated")
			}
			code, lat, err := r.call(ctx, http.MethodPost, "/api/bookings/"+string(r.flow.bookingID)+"/cancel", "customer", nil, nil)
			return expect(code, lat, err, http.StatusConflict)
		}},
		{Name: "Perf: catalog load", Run: func(ctx context.Context, r *Runner) Result {
			return perfLoad(ctx, r, "/api/packages")
		}},
	}
}

// call sends body as JSON with role's token (none when role is empty) and
// decodes a 2xx response into out.
func (r *Runner) call(ctx context.Context, method, path, role string, body, out any) (int, time.Duration, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, 0, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, r.cfg.BaseURL+path, &buf)
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set("Authorization", "Bearer "+r.tokens[role])
	}
	start := time.Now()
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()
	lat := time.Since(start)
	if out != nil && resp.StatusCode/100 == 2 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, lat, fmt.Errorf("decode: %w", err)
		}
	}
	return resp.StatusCode, lat, nil
}

func concurrentAllocate(ctx context.Context, r *Runner) Result {
	var (
		mu       sync.Mutex
		succ     int
		conflict int
		other    []int
	)
	start := make(chan struct{})
	wg := sync.WaitGroup{}
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			code, _, err := r.call(ctx, http.MethodPost, "/api/admin/"+string(r.flow.bookingID)+"/allocate-driver", "admin",
				map[string]any{"driverId": r.flow.driverID}, nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				other = append(other, 0)
			case code == http.StatusOK:
				succ++
			case code == http.StatusConflict:
				conflict++
			default:
				other = append(other, code)
			}
		}()
	}
	close(start)
	wg.Wait()

	note := fmt.Sprintf("success=%d conflict=%d other=%v", succ, conflict, other)
	if succ != 1 || len(other) > 0 {
		return fail(note)
	}
	r.flow.allocated = true
	return pass(note)
}

func perfLoad(ctx context.Context, r *Runner, path string) Result {
	end := time.Now().Add(r.cfg.Duration)
	var (
		mu       sync.Mutex
		count    int64
		errCount int64
	)
	wg := sync.WaitGroup{}
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				req, _ := http.NewRequestWithContext(ctx, http.MethodGet, r.cfg.BaseURL+path, nil)
				resp, err := r.httpc.Do(req)
				mu.Lock()
				if err != nil || resp.StatusCode != http.StatusOK {
					errCount++
				} else {
					count++
				}
				mu.Unlock()
				if err == nil {
					_, _ = io.Copy(io.Discard, resp.Body)
					_ = resp.Body.Close()
				}
			}
		}()
	}
	wg.Wait()
	if count == 0 {
		return fail("no requests completed")
	}
	rps := float64(count) / r.cfg.Duration.Seconds()
	return pass(fmt.Sprintf("rps=%.1f errors=%d", rps, errCount))
}

func expect(code int, lat time.Duration, err error, want int) Result {
	if err != nil {
		return fail(err.Error())
	}
	if code != want {
		return Result{Status: statusFail, Latency: lat, Note: fmt.Sprintf("status=%d want=%d", code, want)}
	}
	return Result{Status: statusPass, Latency: lat}
}

func pass(note string) Result { return Result{Status: statusPass, Note: note} }

func fail(note string) Result { return Result{Status: statusFail, Note: note} }

func skip(note string) Result { return Result{Status: statusSkip, Note: note} }

// extractTables lists every table created by the migrations in dir.
func extractTables(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return nil, err
	}
	re := regexp.MustCompile(`(?i)create\s+table\s+if\s+not\s+exists\s+([a-zA-Z0-9_]+)`)
	var tables []string
	for _, f := range files {
		b, err := os.ReadFile(f)
		if err != nil {
			return nil, err
		}
		for _, m := range re.FindAllStringSubmatch(string(b), -1) {
			tables = append(tables, m[1])
		}
	}
	return tables, nil
}
