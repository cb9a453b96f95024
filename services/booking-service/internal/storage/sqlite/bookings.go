package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/storage"
)

const bookingColumns = `id, provider_id, slot_start, client_name, client_email, status, created_at, cancelled_at`

// InsertIfAbsent inserts a scheduled booking unless the partial unique index
// already holds one for the slot, in which case nothing is written and
// storage.ErrConflict is returned.
func (s *Store) InsertIfAbsent(ctx context.Context, req model.BookingRequest) (model.Booking, error) {
	b := model.Booking{
		ID:          uuid.NewString(),
		ProviderID:  req.ProviderID,
		SlotStart:   req.SlotStart.UTC(),
		ClientName:  req.ClientName,
		ClientEmail: req.ClientEmail,
		Status:      model.StatusScheduled,
		CreatedAt:   s.now().UTC(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Booking{}, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO bookings (id, provider_id, slot_start, client_name, client_email, status, created_at)
		VALUES (?, ?, ?, ?, ?, 'scheduled', ?)
		ON CONFLICT (provider_id, slot_start) WHERE status = 'scheduled' DO NOTHING`,
		b.ID, b.ProviderID, toUnix(b.SlotStart), b.ClientName, b.ClientEmail, toUnix(b.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return model.Booking{}, storage.ErrConflict
		}
		return model.Booking{}, fmt.Errorf("failed to insert booking: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return model.Booking{}, err
	}
	if affected == 0 {
		return model.Booking{}, storage.ErrConflict
	}

	evt, err := outbox.BookingEvent(outbox.EventBookingScheduled, b)
	if err != nil {
		return model.Booking{}, err
	}
	if err := s.insertEvent(ctx, tx, evt); err != nil {
		return model.Booking{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Booking{}, err
	}
	return b, nil
}

func (s *Store) GetBooking(ctx context.Context, id string) (model.Booking, error) {
	b, err := scanBooking(s.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id))
	return b, normalize(err)
}

// UpdateStatus moves a booking to cancelled. Cancelling an already cancelled
// booking returns it unchanged.
func (s *Store) UpdateStatus(ctx context.Context, id string, status model.BookingStatus) (model.Booking, error) {
	if status != model.StatusCancelled {
		current, err := s.GetBooking(ctx, id)
		if err != nil {
			return model.Booking{}, err
		}
		if current.Status == status {
			return current, nil
		}
		return model.Booking{}, storage.ErrInvalidTransition
	}

	b, changed, err := s.cancel(ctx, id)
	if err != nil {
		return model.Booking{}, err
	}
	if !changed {
		return s.GetBooking(ctx, id)
	}
	return b, nil
}

func (s *Store) cancel(ctx context.Context, id string) (model.Booking, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Booking{}, false, err
	}
	defer func() { _ = tx.Rollback() }()

	now := s.now().UTC()
	res, err := tx.ExecContext(ctx, `
		UPDATE bookings
		SET status = 'cancelled', cancelled_at = ?
		WHERE id = ? AND status = 'scheduled'`, toUnix(now), id)
	if err != nil {
		return model.Booking{}, false, fmt.Errorf("failed to cancel booking: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return model.Booking{}, false, err
	}
	if affected == 0 {
		return model.Booking{}, false, nil
	}

	b, err := scanBooking(tx.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id))
	if err != nil {
		return model.Booking{}, false, err
	}
	evt, err := outbox.BookingEvent(outbox.EventBookingCancelled, b)
	if err != nil {
		return model.Booking{}, false, err
	}
	if err := s.insertEvent(ctx, tx, evt); err != nil {
		return model.Booking{}, false, err
	}
	if err := tx.Commit(); err != nil {
		return model.Booking{}, false, err
	}
	return b, true, nil
}

func (s *Store) ListBookings(ctx context.Context, providerID string, from, to time.Time, status model.BookingStatus) ([]model.Booking, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE provider_id = ?
			AND slot_start >= ?
			AND slot_start < ?
			AND (? = '' OR status = ?)
		ORDER BY slot_start ASC`,
		providerID, toUnix(from), toUnix(to), string(status), string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return collectBookings(rows)
}

func (s *Store) ListByProvider(ctx context.Context, providerID string, limit int) ([]model.Booking, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE provider_id = ?
		ORDER BY slot_start DESC
		LIMIT ?`, providerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return collectBookings(rows)
}

func (s *Store) CountByProvider(ctx context.Context, providerID string, now time.Time) (model.BookingCounts, error) {
	var counts model.BookingCounts
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'scheduled' AND slot_start > ? THEN 1 ELSE 0 END), 0)
		FROM bookings
		WHERE provider_id = ?`, toUnix(now), providerID).Scan(&counts.Total, &counts.Upcoming)
	return counts, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBooking(row scanner) (model.Booking, error) {
	var b model.Booking
	var slot, created int64
	var status string
	var cancelled sql.NullInt64
	if err := row.Scan(&b.ID, &b.ProviderID, &slot, &b.ClientName, &b.ClientEmail, &status, &created, &cancelled); err != nil {
		return model.Booking{}, err
	}
	b.SlotStart = fromUnix(slot)
	b.Status = model.BookingStatus(status)
	b.CreatedAt = fromUnix(created)
	if cancelled.Valid {
		t := fromUnix(cancelled.Int64)
		b.CancelledAt = &t
	}
	return b, nil
}

func collectBookings(rows *sql.Rows) ([]model.Booking, error) {
	defer rows.Close()

	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
