// Package accounts registers providers and issues their access tokens.
package accounts

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/md-rashed-zaman/slotbook/libs/auth"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/storage"
)

var (
	ErrTaken              = errors.New("username or email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

type Store interface {
	CreateProvider(ctx context.Context, p model.Provider) (model.Provider, error)
	GetProviderByEmail(ctx context.Context, email string) (model.Provider, error)
	GetProvider(ctx context.Context, id string) (model.Provider, error)
}

type Service struct {
	store      Store
	signer     *auth.Signer
	logger     *slog.Logger
	bcryptCost int
}

func NewService(store Store, signer *auth.Signer, logger *slog.Logger) *Service {
	return &Service{store: store, signer: signer, logger: logger, bcryptCost: bcrypt.DefaultCost}
}

// Session is what a successful register or login returns.
type Session struct {
	Provider    model.Provider
	AccessToken string
	ExpiresAt   time.Time
}

func (s *Service) Register(ctx context.Context, username, email, password string) (Session, error) {
	reg, err := model.NewRegistration(username, email, password)
	if err != nil {
		return Session{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.bcryptCost)
	if err != nil {
		return Session{}, err
	}
	p, err := s.store.CreateProvider(ctx, model.Provider{
		Username:     reg.Username,
		Email:        reg.Email,
		PasswordHash: string(hash),
	})
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return Session{}, ErrTaken
		}
		return Session{}, err
	}
	s.logger.Info("provider registered", "provider_id", p.ID, "username", p.Username)
	return s.issue(p)
}

func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	p, err := s.store.GetProviderByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(password)); err != nil {
		return Session{}, ErrInvalidCredentials
	}
	return s.issue(p)
}

func (s *Service) Provider(ctx context.Context, id string) (model.Provider, error) {
	return s.store.GetProvider(ctx, id)
}

func (s *Service) issue(p model.Provider) (Session, error) {
	token, exp, err := s.signer.SignHS256(p.ID, p.Username)
	if err != nil {
		return Session{}, err
	}
	p.PasswordHash = ""
	return Session{Provider: p, AccessToken: token, ExpiresAt: exp}, nil
}
