package sqlite

import (
	"context"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

func (s *Store) ResolveProvider(ctx context.Context, username string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM providers WHERE username = ?`, username).Scan(&id)
	return id, normalize(err)
}

func (s *Store) ProviderExists(ctx context.Context, id string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM providers WHERE id = ?`, id).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) CreateProvider(ctx context.Context, p model.Provider) (model.Provider, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt = s.now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO providers (id, username, email, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?)`, p.ID, p.Username, p.Email, p.PasswordHash, toUnix(p.CreatedAt))
	if err != nil {
		return model.Provider{}, normalize(err)
	}
	return p, nil
}

func (s *Store) GetProviderByEmail(ctx context.Context, email string) (model.Provider, error) {
	return s.getProvider(ctx, `WHERE email = ?`, email)
}

func (s *Store) GetProvider(ctx context.Context, id string) (model.Provider, error) {
	return s.getProvider(ctx, `WHERE id = ?`, id)
}

func (s *Store) getProvider(ctx context.Context, where, arg string) (model.Provider, error) {
	var p model.Provider
	var created int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, created_at
		FROM providers `+where, arg).Scan(&p.ID, &p.Username, &p.Email, &p.PasswordHash, &created)
	if err != nil {
		return model.Provider{}, normalize(err)
	}
	p.CreatedAt = fromUnix(created)
	return p, nil
}
