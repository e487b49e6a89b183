// README: Candidate eligibility store backed by PostgreSQL subscriptions.
package matching

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"drivebook/internal/modules/catalog"
	"drivebook/internal/types"
)

const pgUniqueViolation = "23505"

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func candidateTable(pool types.Pool) string {
	if pool == types.PoolLead {
		return "leads"
	}
	return "drivers"
}

// FindEligible returns every candidate of pool holding an ACTIVE
// subscription that has not ended at `at` and whose plan type equals pt.
func (s *Store) FindEligible(ctx context.Context, pool types.Pool, pt types.PackageType, at time.Time) ([]types.ID, error) {
	rows, err := s.db.Query(ctx, fmt.Sprintf(`
        SELECT DISTINCT sub.candidate_id
        FROM %s sub
        JOIN %s plan ON plan.id = sub.plan_id
        WHERE sub.status = 'ACTIVE'
          AND sub.end_date >= $1
          AND plan.plan_type = $2
        ORDER BY sub.candidate_id`, catalog.SubscriptionTable(pool), catalog.PlanTable(pool)),
		at, string(pt),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []types.ID
	for rows.Next() {
		var id types.ID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) CreateCandidate(ctx context.Context, c *Candidate) error {
	_, err := s.db.Exec(ctx, fmt.Sprintf(`
        INSERT INTO %s (id, name, phone, status, created_at)
        VALUES ($1, $2, $3, $4, $5)`, candidateTable(c.Pool)),
		string(c.ID), c.Name, c.Phone, c.Status, c.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrCandidateExists
	}
	return err
}

func (s *Store) GetCandidate(ctx context.Context, pool types.Pool, id types.ID) (*Candidate, error) {
	c := Candidate{Pool: pool}
	err := s.db.QueryRow(ctx, fmt.Sprintf(`
        SELECT id, name, phone, status, created_at
        FROM %s WHERE id = $1`, candidateTable(pool)), string(id),
	).Scan(&c.ID, &c.Name, &c.Phone, &c.Status, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCandidateNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
