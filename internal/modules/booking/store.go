// README: Booking store backed by PostgreSQL. Works over a pool or a transaction.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"drivebook/internal/types"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	db DBTX
}

func NewStore(db DBTX) *Store {
	return &Store{db: db}
}

const bookingColumns = `
        id, customer_id, pickup_location, drop_location, booking_type, service_type,
        start_at, duration_hours, vehicle_type, car_type, estimate_amount,
        status, status_version, selected_package_type, selected_package_id,
        driver_id, lead_id, allocated_driver_id, allocated_lead_id,
        created_at, reviewed_at, allocated_at, started_at, completed_at, cancelled_at, cancel_reason`

func (s *Store) Create(ctx context.Context, b *Booking) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO bookings (
            id, customer_id, pickup_location, drop_location, booking_type, service_type,
            start_at, duration_hours, vehicle_type, car_type, estimate_amount,
            status, status_version, created_at
        ) VALUES (
            $1, $2, $3, $4, $5, $6,
            $7, $8, $9, $10, $11,
            $12, $13, $14
        )`,
		string(b.ID),
		string(b.CustomerID),
		b.PickupLocation,
		b.DropLocation,
		string(b.BookingType),
		b.ServiceType,
		b.StartAt,
		b.DurationHours,
		b.VehicleType,
		b.CarType,
		b.EstimateAmount,
		string(b.Status),
		b.StatusVersion,
		b.CreatedAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Booking, error) {
	return s.getOne(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
}

// GetForUpdate reads a booking and row-locks it until the surrounding
// transaction ends. Only meaningful when the store wraps a pgx.Tx.
func (s *Store) GetForUpdate(ctx context.Context, id types.ID) (*Booking, error) {
	return s.getOne(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id)
}

func (s *Store) getOne(ctx context.Context, query string, id types.ID) (*Booking, error) {
	b, err := scanBooking(s.db.QueryRow(ctx, query, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Store) ListByCustomer(ctx context.Context, customerID types.ID, limit int) ([]Booking, error) {
	return s.list(ctx, `
        SELECT `+bookingColumns+`
        FROM bookings
        WHERE customer_id = $1
        ORDER BY created_at DESC
        LIMIT $2`, string(customerID), limit)
}

// List returns bookings newest first, optionally filtered by status.
func (s *Store) List(ctx context.Context, status Status, limit int) ([]Booking, error) {
	return s.list(ctx, `
        SELECT `+bookingColumns+`
        FROM bookings
        WHERE ($1::text = '' OR status = $1::text)
        ORDER BY created_at DESC
        LIMIT $2`, string(status), limit)
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]Booking, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// UpdateStatus moves a booking from one status to another if nobody else
// changed it since version was read.
func (s *Store) UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, reason *string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
        UPDATE bookings
        SET status = $1,
            status_version = status_version + 1,
            started_at = CASE WHEN $1 = 'ONGOING' THEN NOW() ELSE started_at END,
            completed_at = CASE WHEN $1 = 'COMPLETED' THEN NOW() ELSE completed_at END,
            cancelled_at = CASE WHEN $1 = 'CANCELLED' THEN NOW() ELSE cancelled_at END,
            cancel_reason = COALESCE($2, cancel_reason)
        WHERE id = $3 AND status = $4 AND status_version = $5`,
		string(to),
		reason,
		string(id),
		string(from),
		version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Review records the admin's package choice and moves PENDING to REVIEWED.
func (s *Store) Review(ctx context.Context, id types.ID, version int, pt types.PackageType, packageID *types.ID) (bool, error) {
	var pkg *string
	if packageID != nil {
		pkg = packageID.Ptr()
	}
	tag, err := s.db.Exec(ctx, `
        UPDATE bookings
        SET status = 'REVIEWED',
            status_version = status_version + 1,
            selected_package_type = $1,
            selected_package_id = $2,
            reviewed_at = NOW()
        WHERE id = $3 AND status = 'PENDING' AND status_version = $4`,
		string(pt), pkg, string(id), version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Allocate assigns the booking to one candidate. It succeeds only while no
// party is allocated and the booking is still REVIEWED.
func (s *Store) Allocate(ctx context.Context, id types.ID, pool types.Pool, candidateID types.ID) (bool, error) {
	column := "driver_id"
	marker := "allocated_driver_id"
	if pool == types.PoolLead {
		column, marker = "lead_id", "allocated_lead_id"
	}
	tag, err := s.db.Exec(ctx, fmt.Sprintf(`
        UPDATE bookings
        SET %s = $1,
            %s = $1,
            status = 'CONFIRMED',
            status_version = status_version + 1,
            allocated_at = NOW()
        WHERE id = $2
          AND allocated_driver_id IS NULL
          AND allocated_lead_id IS NULL
          AND status = 'REVIEWED'`, column, marker),
		string(candidateID), string(id),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) AppendEvent(ctx context.Context, e *Event) error {
	var actor *string
	if e.ActorID != nil {
		actor = e.ActorID.Ptr()
	}
	_, err := s.db.Exec(ctx, `
        INSERT INTO booking_state_events (
            booking_id, from_status, to_status, actor_type, actor_id, created_at
        ) VALUES ($1, $2, $3, $4, $5, $6)`,
		string(e.BookingID),
		string(e.FromStatus),
		string(e.ToStatus),
		e.ActorType,
		actor,
		e.CreatedAt,
	)
	return err
}

func (s *Store) Events(ctx context.Context, bookingID types.ID) ([]Event, error) {
	rows, err := s.db.Query(ctx, `
        SELECT id, booking_id, from_status, to_status, actor_type, actor_id, created_at
        FROM booking_state_events
        WHERE booking_id = $1
        ORDER BY id`, string(bookingID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var actor *string
		if err := rows.Scan(&e.ID, &e.BookingID, &e.FromStatus, &e.ToStatus, &e.ActorType, &actor, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.ActorID = types.FromPtr(actor)
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	var pkgType, pkgID, driverID, leadID, allocDriver, allocLead *string
	var reviewedAt, allocatedAt, startedAt, completedAt, cancelledAt *time.Time

	err := row.Scan(
		&b.ID, &b.CustomerID, &b.PickupLocation, &b.DropLocation, &b.BookingType, &b.ServiceType,
		&b.StartAt, &b.DurationHours, &b.VehicleType, &b.CarType, &b.EstimateAmount,
		&b.Status, &b.StatusVersion, &pkgType, &pkgID,
		&driverID, &leadID, &allocDriver, &allocLead,
		&b.CreatedAt, &reviewedAt, &allocatedAt, &startedAt, &completedAt, &cancelledAt, &b.CancelReason,
	)
	if err != nil {
		return nil, err
	}
	if pkgType != nil {
		pt := types.PackageType(*pkgType)
		b.SelectedPackageType = &pt
	}
	b.SelectedPackageID = types.FromPtr(pkgID)
	b.DriverID = types.FromPtr(driverID)
	b.LeadID = types.FromPtr(leadID)
	b.AllocatedDriverID = types.FromPtr(allocDriver)
	b.AllocatedLeadID = types.FromPtr(allocLead)
	b.ReviewedAt = reviewedAt
	b.AllocatedAt = allocatedAt
	b.StartedAt = startedAt
	b.CompletedAt = completedAt
	b.CancelledAt = cancelledAt
	return &b, nil
}
