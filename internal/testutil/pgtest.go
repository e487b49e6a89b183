// README: Shared helpers for DB-backed tests (skip unless DRIVEBOOK_TEST_DSN is set).
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"drivebook/internal/infra"
	"drivebook/internal/types"
)

// OpenDB connects to DRIVEBOOK_TEST_DSN, applies the repo migrations and
// clears booking and candidate data. Catalog seed rows are kept.
// DB-backed packages share one database, so run them with `go test -p 1`.
func OpenDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("DRIVEBOOK_TEST_DSN")
	if dsn == "" {
		t.Skip("DRIVEBOOK_TEST_DSN not set; skipping DB-backed tests")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	root, err := infra.RepoRoot()
	if err != nil {
		t.Fatalf("repo root: %v", err)
	}
	if _, err := infra.Migrate(ctx, db, filepath.Join(root, "migrations")); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	if _, err := db.Exec(ctx, `
        TRUNCATE TABLE booking_responses, lead_booking_responses, booking_state_events, bookings,
                       driver_subscriptions, lead_subscriptions, drivers, leads`); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
	return db
}

// InsertCandidate adds a driver or lead row.
func InsertCandidate(t *testing.T, db *pgxpool.Pool, pool types.Pool, id types.ID) {
	t.Helper()
	table := "drivers"
	if pool == types.PoolLead {
		table = "leads"
	}
	if _, err := db.Exec(context.Background(),
		`INSERT INTO `+table+` (id, name, phone) VALUES ($1, $2, '')`, string(id), "test "+string(id),
	); err != nil {
		t.Fatalf("insert %s %s: %v", pool, id, err)
	}
}
