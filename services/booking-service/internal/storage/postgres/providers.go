package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/slotbook/libs/db"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/storage"
)

type ProviderRepository struct {
	pool *db.Pool
}

func NewProviderRepository(pool *db.Pool) *ProviderRepository {
	return &ProviderRepository{pool: pool}
}

func (r *ProviderRepository) ResolveProvider(ctx context.Context, username string) (string, error) {
	var id string
	err := r.pool.QueryRow(ctx, `SELECT id::text FROM providers WHERE username = $1`, username).Scan(&id)
	return id, normalize(err)
}

func (r *ProviderRepository) ProviderExists(ctx context.Context, id string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, nil
	}
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM providers WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

// CreateProvider returns storage.ErrConflict if the username or email is taken.
func (r *ProviderRepository) CreateProvider(ctx context.Context, p model.Provider) (model.Provider, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO providers (id, username, email, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, p.ID, p.Username, p.Email, p.PasswordHash).Scan(&p.CreatedAt)
	if err != nil {
		return model.Provider{}, normalize(err)
	}
	return p, nil
}

func (r *ProviderRepository) GetProviderByEmail(ctx context.Context, email string) (model.Provider, error) {
	return r.getProvider(ctx, `WHERE email = $1`, email)
}

func (r *ProviderRepository) GetProvider(ctx context.Context, id string) (model.Provider, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Provider{}, storage.ErrNotFound
	}
	return r.getProvider(ctx, `WHERE id = $1`, id)
}

func (r *ProviderRepository) getProvider(ctx context.Context, where string, arg string) (model.Provider, error) {
	var p model.Provider
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, username, email, password_hash, created_at
		FROM providers `+where, arg).Scan(&p.ID, &p.Username, &p.Email, &p.PasswordHash, &p.CreatedAt)
	if err != nil {
		return model.Provider{}, normalize(err)
	}
	return p, nil
}
