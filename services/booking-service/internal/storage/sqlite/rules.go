package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/outbox"
)

func (s *Store) ListRules(ctx context.Context, providerID string) ([]model.AvailabilityRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT provider_id, weekday, start_minute, end_minute
		FROM availability_rules
		WHERE provider_id = ?
		ORDER BY weekday, start_minute, end_minute`, providerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	var rules []model.AvailabilityRule
	for rows.Next() {
		var r model.AvailabilityRule
		var weekday int
		if err := rows.Scan(&r.ProviderID, &weekday, &r.StartMinute, &r.EndMinute); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		r.Weekday = time.Weekday(weekday)
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// SetRules replaces the provider's rules in one transaction.
func (s *Store) SetRules(ctx context.Context, providerID string, rules []model.AvailabilityRule) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM availability_rules WHERE provider_id = ?`, providerID); err != nil {
		return fmt.Errorf("failed to clear rules: %w", err)
	}
	for _, r := range rules {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO availability_rules (provider_id, weekday, start_minute, end_minute)
			VALUES (?, ?, ?, ?)`, providerID, int(r.Weekday), r.StartMinute, r.EndMinute); err != nil {
			return fmt.Errorf("failed to insert rule: %w", err)
		}
	}

	evt, err := outbox.RulesReplacedEvent(providerID, rules)
	if err != nil {
		return err
	}
	if err := s.insertEvent(ctx, tx, evt); err != nil {
		return err
	}
	return tx.Commit()
}
