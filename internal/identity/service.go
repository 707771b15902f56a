package identity

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/farmconnect/marketplace/internal/domain"
)

const minPasswordLength = 8

type Store interface {
	Create(ctx context.Context, user *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

type Session struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

type Service struct {
	store  Store
	tokens *TokenManager
	clock  clock.Clock
	cost   int
}

func NewService(store Store, tokens *TokenManager, clk clock.Clock) *Service {
	return &Service{store: store, tokens: tokens, clock: clk, cost: bcrypt.DefaultCost}
}

func (s *Service) Signup(ctx context.Context, name, email, password string) (*Session, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))

	if name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: a valid email is required", domain.ErrValidation)
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", domain.ErrValidation, minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.clock.Now().UTC(),
	}

	if err := s.store.Create(ctx, user); err != nil {
		return nil, err
	}

	return s.session(user)
}

func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.store.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: invalid email or password", domain.ErrUnauthorized)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("%w: invalid email or password", domain.ErrUnauthorized)
	}

	return s.session(user)
}

// Lookup resolves a user id to its profile; unknown ids yield nil.
func (s *Service) Lookup(ctx context.Context, id string) (*domain.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	return s.store.GetByID(ctx, id)
}

func (s *Service) session(user *domain.User) (*Session, error) {
	token, err := s.tokens.Generate(user)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &Session{Token: token, User: user}, nil
}
