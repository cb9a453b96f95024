package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/slotbook/libs/db"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/outbox"
)

type RuleRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewRuleRepository(pool *db.Pool, ob *outbox.Repository) *RuleRepository {
	return &RuleRepository{pool: pool, outbox: ob}
}

func (r *RuleRepository) ListRules(ctx context.Context, providerID string) ([]model.AvailabilityRule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT provider_id::text, weekday, start_minute, end_minute
		FROM availability_rules
		WHERE provider_id = $1
		ORDER BY weekday, start_minute, end_minute
	`, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []model.AvailabilityRule
	for rows.Next() {
		var rule model.AvailabilityRule
		var weekday int16
		if err := rows.Scan(&rule.ProviderID, &weekday, &rule.StartMinute, &rule.EndMinute); err != nil {
			return nil, err
		}
		rule.Weekday = time.Weekday(weekday)
		rules = append(rules, rule)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return rules, nil
}

// SetRules replaces the provider's whole rule set in one transaction.
func (r *RuleRepository) SetRules(ctx context.Context, providerID string, rules []model.AvailabilityRule) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM availability_rules WHERE provider_id = $1`, providerID); err != nil {
		return err
	}

	if len(rules) > 0 {
		batch := &pgx.Batch{}
		for _, rule := range rules {
			batch.Queue(`
				INSERT INTO availability_rules (provider_id, weekday, start_minute, end_minute)
				VALUES ($1, $2, $3, $4)
			`, providerID, int16(rule.Weekday), rule.StartMinute, rule.EndMinute)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}
	}

	evt, err := outbox.RulesReplacedEvent(providerID, rules)
	if err != nil {
		return err
	}
	if err := r.outbox.Insert(ctx, tx, evt); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
