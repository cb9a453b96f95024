package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/slotbook/libs/db"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/storage"
)

const bookingColumns = `id::text, provider_id::text, slot_start, client_name, client_email, status, created_at, cancelled_at`

type BookingRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewBookingRepository(pool *db.Pool, ob *outbox.Repository) *BookingRepository {
	return &BookingRepository{pool: pool, outbox: ob}
}

// InsertIfAbsent creates a scheduled booking unless one already holds the
// slot. The partial unique index decides; a skipped insert returns
// storage.ErrConflict.
func (r *BookingRepository) InsertIfAbsent(ctx context.Context, req model.BookingRequest) (model.Booking, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Booking{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	b, err := scanBooking(tx.QueryRow(ctx, `
		INSERT INTO bookings (id, provider_id, slot_start, client_name, client_email, status)
		VALUES ($1, $2, $3, $4, $5, 'scheduled')
		ON CONFLICT (provider_id, slot_start) WHERE status = 'scheduled' DO NOTHING
		RETURNING `+bookingColumns,
		uuid.NewString(), req.ProviderID, req.SlotStart.UTC(), req.ClientName, req.ClientEmail))
	if err != nil {
		if IsNotFound(err) || IsConflict(err) {
			return model.Booking{}, storage.ErrConflict
		}
		return model.Booking{}, err
	}

	evt, err := outbox.BookingEvent(outbox.EventBookingScheduled, b)
	if err != nil {
		return model.Booking{}, err
	}
	if err := r.outbox.Insert(ctx, tx, evt); err != nil {
		return model.Booking{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Booking{}, normalize(err)
	}
	return b, nil
}

func (r *BookingRepository) GetBooking(ctx context.Context, id string) (model.Booking, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Booking{}, storage.ErrNotFound
	}
	b, err := scanBooking(r.pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
	return b, normalize(err)
}

// UpdateStatus moves a booking to cancelled. Cancelling an already cancelled
// booking returns it unchanged.
func (r *BookingRepository) UpdateStatus(ctx context.Context, id string, status model.BookingStatus) (model.Booking, error) {
	if status != model.StatusCancelled {
		current, err := r.GetBooking(ctx, id)
		if err != nil {
			return model.Booking{}, err
		}
		if current.Status == status {
			return current, nil
		}
		return model.Booking{}, storage.ErrInvalidTransition
	}
	if _, err := uuid.Parse(id); err != nil {
		return model.Booking{}, storage.ErrNotFound
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Booking{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	b, err := scanBooking(tx.QueryRow(ctx, `
		UPDATE bookings
		SET status = 'cancelled',
			cancelled_at = now()
		WHERE id = $1 AND status = 'scheduled'
		RETURNING `+bookingColumns, id))
	if err != nil {
		if IsNotFound(err) {
			// Either missing or already cancelled.
			return r.GetBooking(ctx, id)
		}
		return model.Booking{}, err
	}

	evt, err := outbox.BookingEvent(outbox.EventBookingCancelled, b)
	if err != nil {
		return model.Booking{}, err
	}
	if err := r.outbox.Insert(ctx, tx, evt); err != nil {
		return model.Booking{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Booking{}, err
	}
	return b, nil
}

// ListBookings returns bookings with slot_start in [from, to). An empty
// status matches every status.
func (r *BookingRepository) ListBookings(ctx context.Context, providerID string, from, to time.Time, status model.BookingStatus) ([]model.Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE provider_id = $1
			AND slot_start >= $2
			AND slot_start < $3
			AND ($4 = '' OR status = $4)
		ORDER BY slot_start ASC
	`, providerID, from.UTC(), to.UTC(), string(status))
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

// ListByProvider returns the most recent bookings by slot time, newest first.
func (r *BookingRepository) ListByProvider(ctx context.Context, providerID string, limit int) ([]model.Booking, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE provider_id = $1
		ORDER BY slot_start DESC
		LIMIT $2
	`, providerID, limit)
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

func (r *BookingRepository) CountByProvider(ctx context.Context, providerID string, now time.Time) (model.BookingCounts, error) {
	var counts model.BookingCounts
	err := r.pool.QueryRow(ctx, `
		SELECT count(*),
			count(*) FILTER (WHERE status = 'scheduled' AND slot_start > $2)
		FROM bookings
		WHERE provider_id = $1
	`, providerID, now.UTC()).Scan(&counts.Total, &counts.Upcoming)
	return counts, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBooking(row scanner) (model.Booking, error) {
	var b model.Booking
	var status string
	var cancelledAt *time.Time
	if err := row.Scan(
		&b.ID,
		&b.ProviderID,
		&b.SlotStart,
		&b.ClientName,
		&b.ClientEmail,
		&status,
		&b.CreatedAt,
		&cancelledAt,
	); err != nil {
		return model.Booking{}, err
	}
	b.Status = model.BookingStatus(status)
	b.CancelledAt = cancelledAt
	return b, nil
}

func collectBookings(rows pgx.Rows) ([]model.Booking, error) {
	defer rows.Close()

	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

