// README: Catalog store backed by PostgreSQL.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"drivebook/internal/types"
)

// pgForeignKeyViolation is the SQLSTATE raised when a referenced row is missing.
const pgForeignKeyViolation = "23503"

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const packageColumns = `id, name, package_type, hours, km_limit, price, extra_per_hour, extra_per_km, created_at`

func scanPackage(row pgx.Row) (*Package, error) {
	var p Package
	err := row.Scan(&p.ID, &p.Name, &p.PackageType, &p.Hours, &p.KmLimit, &p.Price, &p.ExtraPerHour, &p.ExtraPerKm, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListPackages(ctx context.Context, pt types.PackageType) ([]Package, error) {
	rows, err := s.db.Query(ctx, `
        SELECT `+packageColumns+`
        FROM pricing_packages
        WHERE ($1::text = '' OR package_type = $1::text)
        ORDER BY package_type, hours`, string(pt),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Package
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *Store) GetPackage(ctx context.Context, id types.ID) (*Package, error) {
	p, err := scanPackage(s.db.QueryRow(ctx, `SELECT `+packageColumns+` FROM pricing_packages WHERE id = $1`, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPackageNotFound
	}
	return p, err
}

// FindPackage returns the cheapest package of a type with the given hours.
func (s *Store) FindPackage(ctx context.Context, pt types.PackageType, hours int) (*Package, error) {
	p, err := scanPackage(s.db.QueryRow(ctx, `
        SELECT `+packageColumns+`
        FROM pricing_packages
        WHERE package_type = $1 AND hours = $2
        ORDER BY price
        LIMIT 1`, string(pt), hours,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPackageNotFound
	}
	return p, err
}

func (s *Store) CreatePackage(ctx context.Context, p *Package) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO pricing_packages (id, name, package_type, hours, km_limit, price, extra_per_hour, extra_per_km, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		string(p.ID), p.Name, string(p.PackageType), p.Hours, p.KmLimit, p.Price, p.ExtraPerHour, p.ExtraPerKm, p.CreatedAt,
	)
	return err
}

func (s *Store) ListMonthly(ctx context.Context) ([]MonthlyPricing, error) {
	rows, err := s.db.Query(ctx, `
        SELECT id, name, hours_per_day, days, price, created_at
        FROM monthly_pricing
        ORDER BY price`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MonthlyPricing
	for rows.Next() {
		var m MonthlyPricing
		if err := rows.Scan(&m.ID, &m.Name, &m.HoursPerDay, &m.Days, &m.Price, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) GetPlan(ctx context.Context, pool types.Pool, id types.ID) (*Plan, error) {
	p := Plan{Pool: pool}
	err := s.db.QueryRow(ctx, fmt.Sprintf(`
        SELECT id, name, plan_type, price, duration_days, created_at
        FROM %s WHERE id = $1`, PlanTable(pool)), string(id),
	).Scan(&p.ID, &p.Name, &p.PlanType, &p.Price, &p.DurationDays, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListPlans(ctx context.Context, pool types.Pool) ([]Plan, error) {
	rows, err := s.db.Query(ctx, fmt.Sprintf(`
        SELECT id, name, plan_type, price, duration_days, created_at
        FROM %s ORDER BY plan_type, price`, PlanTable(pool)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Plan
	for rows.Next() {
		p := Plan{Pool: pool}
		if err := rows.Scan(&p.ID, &p.Name, &p.PlanType, &p.Price, &p.DurationDays, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) CreatePlan(ctx context.Context, p *Plan) error {
	_, err := s.db.Exec(ctx, fmt.Sprintf(`
        INSERT INTO %s (id, name, plan_type, price, duration_days, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`, PlanTable(p.Pool)),
		string(p.ID), p.Name, string(p.PlanType), p.Price, p.DurationDays, p.CreatedAt,
	)
	return err
}

func (s *Store) CreateSubscription(ctx context.Context, sub *Subscription) error {
	_, err := s.db.Exec(ctx, fmt.Sprintf(`
        INSERT INTO %s (id, candidate_id, plan_id, status, start_date, end_date, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`, SubscriptionTable(sub.Pool)),
		string(sub.ID), string(sub.CandidateID), string(sub.PlanID), string(sub.Status),
		sub.StartDate, sub.EndDate, sub.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
		return ErrCandidateNotFound
	}
	return err
}

func (s *Store) GetSubscription(ctx context.Context, pool types.Pool, id types.ID) (*Subscription, error) {
	sub := Subscription{Pool: pool}
	err := s.db.QueryRow(ctx, fmt.Sprintf(`
        SELECT id, candidate_id, plan_id, status, start_date, end_date, created_at
        FROM %s WHERE id = $1`, SubscriptionTable(pool)), string(id),
	).Scan(&sub.ID, &sub.CandidateID, &sub.PlanID, &sub.Status, &sub.StartDate, &sub.EndDate, &sub.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *Store) UpdateSubscriptionStatus(ctx context.Context, pool types.Pool, id types.ID, from, to SubscriptionStatus) (bool, error) {
	tag, err := s.db.Exec(ctx, fmt.Sprintf(`
        UPDATE %s SET status = $1
        WHERE id = $2 AND status = $3`, SubscriptionTable(pool)),
		string(to), string(id), string(from),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
