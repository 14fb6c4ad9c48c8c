package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chepyr/calendar-planner/shared"
	"github.com/chepyr/calendar-planner/shared/models"
	"github.com/google/uuid"
)

type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)
}

type RegisterInput struct {
	Username    string
	DisplayName string
	Password    string
	Email       string
}

// Session is handed back after a successful register or login.
type Session struct {
	Token       string    `json:"token"`
	Username    string    `json:"userName"`
	DisplayName string    `json:"displayName"`
	Email       string    `json:"email"`
	Expires     time.Time `json:"expires"`
}

type Service struct {
	users  UserStore
	hasher PasswordHasher
	tokens *TokenManager
}

func NewService(users UserStore, hasher PasswordHasher, tokens *TokenManager) *Service {
	return &Service{users: users, hasher: hasher, tokens: tokens}
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)

	taken, err := s.users.UsernameExists(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("%w: username is already taken", shared.ErrConflict)
	}
	taken, err = s.users.EmailExists(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("%w: email is already registered", shared.ErrConflict)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		ID:           uuid.NewString(),
		Username:     in.Username,
		Email:        in.Email,
		DisplayName:  in.DisplayName,
		PasswordHash: hash,
		CreatedAt:    s.tokens.now(),
	}
	// a concurrent register can still win the race; the store reports it as a conflict
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return s.session(user)
}

func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid username or password", shared.ErrUnauthorized)
		}
		return nil, err
	}
	if !s.hasher.Matches(user.PasswordHash, password) {
		return nil, fmt.Errorf("%w: invalid username or password", shared.ErrUnauthorized)
	}
	return s.session(user)
}

// Verify only inspects the token; it does not hit the store.
func (s *Service) Verify(_ context.Context, token string) (*Claims, error) {
	return s.tokens.Parse(token)
}

func (s *Service) session(user *models.User) (*Session, error) {
	token, expires, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &Session{
		Token:       token,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		Email:       user.Email,
		Expires:     expires.UTC(),
	}, nil
}
