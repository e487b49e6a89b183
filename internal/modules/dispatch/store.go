// README: Dispatch store: transactional fan-out, response updates and allocation on PostgreSQL.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"drivebook/internal/modules/booking"
	"drivebook/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// FanOut locks the booking, checks it is still REVIEWED for package type pt
// and unallocated, then inserts one PENDING response per candidate. Pairs
// that already exist are skipped; only the new rows are returned.
func (s *Store) FanOut(ctx context.Context, pool types.Pool, bookingID types.ID, pt types.PackageType, candidateIDs []types.ID) ([]Response, error) {
	var created []Response
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		b, err := booking.NewStore(tx).GetForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if !dispatchable(b, pt) {
			return ErrNotReviewed
		}

		query := fmt.Sprintf(`
            INSERT INTO %s (id, booking_id, candidate_id, status, created_at)
            VALUES ($1, $2, $3, 'PENDING', $4)
            ON CONFLICT (booking_id, candidate_id) DO NOTHING
            RETURNING id, created_at`, responseTable(pool))
		now := time.Now()
		for _, cid := range candidateIDs {
			r := Response{BookingID: bookingID, Pool: pool, CandidateID: cid, Status: ResponsePending}
			err := tx.QueryRow(ctx, query, string(types.NewID()), string(bookingID), string(cid), now).Scan(&r.ID, &r.CreatedAt)
			if errors.Is(err, pgx.ErrNoRows) {
				continue
			}
			if err != nil {
				return fmt.Errorf("insert response for %s: %w", cid, err)
			}
			created = append(created, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func dispatchable(b *booking.Booking, pt types.PackageType) bool {
	return b.Status == booking.StatusReviewed &&
		!b.Allocated() &&
		b.SelectedPackageType != nil &&
		*b.SelectedPackageType == pt
}

// Respond records the candidate's decision. The booking row is share-locked
// so a concurrent allocation either sees this decision or freezes it.
func (s *Store) Respond(ctx context.Context, pool types.Pool, responseID, candidateID types.ID, status ResponseStatus) (*Response, error) {
	var out *Response
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		r, err := getResponse(ctx, tx, pool, responseID)
		if err != nil {
			return err
		}
		if r.CandidateID != candidateID {
			return ErrNotResponseOwner
		}

		var allocDriver, allocLead *string
		var bstatus booking.Status
		err = tx.QueryRow(ctx, `
            SELECT allocated_driver_id, allocated_lead_id, status
            FROM bookings WHERE id = $1
            FOR SHARE`, string(r.BookingID),
		).Scan(&allocDriver, &allocLead, &bstatus)
		if err != nil {
			return err
		}
		if allocDriver != nil || allocLead != nil || booking.Terminal(bstatus) {
			return ErrResponsesFrozen
		}

		err = tx.QueryRow(ctx, fmt.Sprintf(`
            UPDATE %s SET status = $1, responded_at = NOW()
            WHERE id = $2
            RETURNING responded_at`, responseTable(pool)),
			string(status), string(responseID),
		).Scan(&r.RespondedAt)
		if err != nil {
			return err
		}
		r.Status = status
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Allocate assigns one accepted candidate inside a single transaction. Of
// several concurrent calls for one booking exactly one succeeds.
func (s *Store) Allocate(ctx context.Context, pool types.Pool, bookingID, candidateID, adminID types.ID) (*booking.Booking, error) {
	var out *booking.Booking
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		bs := booking.NewStore(tx)
		b, err := bs.GetForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.Allocated() {
			return ErrAlreadyAllocated
		}
		if b.Status != booking.StatusReviewed {
			return ErrNotReviewed
		}

		var accepted bool
		err = tx.QueryRow(ctx, fmt.Sprintf(`
            SELECT EXISTS (
                SELECT 1 FROM %s
                WHERE booking_id = $1 AND candidate_id = $2 AND status = 'ACCEPTED'
            )`, responseTable(pool)),
			string(bookingID), string(candidateID),
		).Scan(&accepted)
		if err != nil {
			return err
		}
		if !accepted {
			return ErrCandidateNotAccepted
		}

		ok, err := bs.Allocate(ctx, bookingID, pool, candidateID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAlreadyAllocated
		}

		e := &booking.Event{
			BookingID:  bookingID,
			FromStatus: b.Status,
			ToStatus:   booking.StatusConfirmed,
			ActorType:  booking.ActorAdmin,
			CreatedAt:  time.Now(),
		}
		if adminID != "" {
			e.ActorID = &adminID
		}
		if err := bs.AppendEvent(ctx, e); err != nil {
			return err
		}

		out, err = bs.Get(ctx, bookingID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ListResponses(ctx context.Context, pool types.Pool, bookingID types.ID, status ResponseStatus) ([]Response, error) {
	rows, err := s.db.Query(ctx, fmt.Sprintf(`
        SELECT id, booking_id, candidate_id, status, created_at, responded_at
        FROM %s
        WHERE booking_id = $1 AND ($2::text = '' OR status = $2::text)
        ORDER BY created_at, candidate_id`, responseTable(pool)),
		string(bookingID), string(status),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Response{}
	for rows.Next() {
		r := Response{Pool: pool}
		if err := rows.Scan(&r.ID, &r.BookingID, &r.CandidateID, &r.Status, &r.CreatedAt, &r.RespondedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) ListOffers(ctx context.Context, pool types.Pool, candidateID types.ID, status ResponseStatus) ([]Offer, error) {
	rows, err := s.db.Query(ctx, fmt.Sprintf(`
        SELECT r.id, r.booking_id, r.candidate_id, r.status, r.created_at, r.responded_at,
               b.pickup_location, b.drop_location, b.booking_type, b.start_at, b.duration_hours,
               b.selected_package_type, b.status
        FROM %s r
        JOIN bookings b ON b.id = r.booking_id
        WHERE r.candidate_id = $1 AND ($2::text = '' OR r.status = $2::text)
        ORDER BY r.created_at DESC`, responseTable(pool)),
		string(candidateID), string(status),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Offer{}
	for rows.Next() {
		o := Offer{Response: Response{Pool: pool}}
		var pt *string
		if err := rows.Scan(
			&o.ID, &o.BookingID, &o.CandidateID, &o.Status, &o.CreatedAt, &o.RespondedAt,
			&o.PickupLocation, &o.DropLocation, &o.BookingType, &o.StartAt, &o.DurationHours,
			&pt, &o.BookingStatus,
		); err != nil {
			return nil, err
		}
		if pt != nil {
			v := types.PackageType(*pt)
			o.PackageType = &v
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func getResponse(ctx context.Context, tx pgx.Tx, pool types.Pool, id types.ID) (*Response, error) {
	r := Response{Pool: pool}
	err := tx.QueryRow(ctx, fmt.Sprintf(`
        SELECT id, booking_id, candidate_id, status, created_at, responded_at
        FROM %s WHERE id = $1`, responseTable(pool)), string(id),
	).Scan(&r.ID, &r.BookingID, &r.CandidateID, &r.Status, &r.CreatedAt, &r.RespondedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrResponseNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}
