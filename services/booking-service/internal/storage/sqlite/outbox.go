package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	otelx "github.com/md-rashed-zaman/slotbook/libs/otel"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/outbox"
)

func (s *Store) insertEvent(ctx context.Context, tx *sql.Tx, evt outbox.Event) error {
	tc := otelx.CaptureTraceContext(ctx)
	_, err := tx.ExecContext(ctx, `
		INSERT INTO outbox_events (event_id, aggregate_type, aggregate_id, event_type, payload, traceparent, tracestate, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		evt.ID, evt.AggregateType, evt.AggregateID, evt.EventType, evt.Payload, tc.Traceparent, tc.Tracestate, toUnix(s.now()))
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}
	return nil
}

// PublishBatch implements outbox.Store. The single connection serialises
// publishers, so no row locking is needed.
func (s *Store) PublishBatch(ctx context.Context, limit int, publish func(context.Context, []outbox.Record) error) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, event_id, aggregate_type, aggregate_id, event_type, payload, traceparent, tracestate, created_at
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT ?`, limit)
	if err != nil {
		return 0, err
	}
	var records []outbox.Record
	for rows.Next() {
		var r outbox.Record
		var created int64
		if err := rows.Scan(&r.ID, &r.EventID, &r.AggregateType, &r.AggregateID, &r.EventType, &r.Payload, &r.Traceparent, &r.Tracestate, &created); err != nil {
			rows.Close()
			return 0, err
		}
		r.CreatedAt = fromUnix(created)
		records = append(records, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, tx.Commit()
	}

	if err := publish(ctx, records); err != nil {
		return 0, err
	}

	placeholders := make([]string, len(records))
	args := make([]any, 0, len(records)+1)
	args = append(args, toUnix(s.now()))
	for i, r := range records {
		placeholders[i] = "?"
		args = append(args, r.ID)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE outbox_events SET published_at = ? WHERE id IN (`+strings.Join(placeholders, ",")+`)`, args...); err != nil {
		return 0, err
	}
	return len(records), tx.Commit()
}
