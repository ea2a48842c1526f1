package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/auth"
	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/events"
	"github.com/spec-kit/account-service/internal/repository"
	apperrors "github.com/spec-kit/account-service/pkg/util"
)

// Messages returned to clients by the account flows.
const (
	DuplicateAccountMessage  = "Username or email already exists"
	InvalidCredentialMessage = "Incorrect username or password"
)

// RegisterInput carries a validated registration request.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	FullName *string
}

// AuthService coordinates registration and login flows.
type AuthService struct {
	users      repository.UserRepository
	hasher     *auth.PasswordHasher
	tokens     *auth.TokenManager
	dispatcher events.Dispatcher
	logger     *zap.Logger

	dummyOnce sync.Once
	dummyHash string
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	UserRepo   repository.UserRepository
	Hasher     *auth.PasswordHasher
	Tokens     *auth.TokenManager
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:      deps.UserRepo,
		hasher:     deps.Hasher,
		tokens:     deps.Tokens,
		dispatcher: deps.Dispatcher,
		logger:     logger,
	}
}

// Register creates a new active, non-privileged account.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	exists, err := s.users.Exists(ctx, in.Username, in.Email)
	if err != nil {
		return nil, fmt.Errorf("check existing account: %w", err)
	}
	if exists {
		return nil, apperrors.NewBadRequest(DuplicateAccountMessage)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return nil, apperrors.NewValidationError(err.Error(), nil)
		}
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Username:     in.Username,
		Email:        in.Email,
		FullName:     in.FullName,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewBadRequest(DuplicateAccountMessage)
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	s.logger.Info("new user registered", zap.Int64("user_id", user.ID), zap.String("username", user.Username))
	s.publish(ctx, events.NewEvent(events.EventUserRegistered, user.ID, events.Actor{}, events.UserRegisteredPayload{
		Username: user.Username,
		Email:    user.Email,
		FullName: user.FullName,
	}))
	return user, nil
}

// Login verifies credentials and issues an access token. Unknown users, wrong
// passwords and inactive accounts all fail the same way.
func (s *AuthService) Login(ctx context.Context, username, password string) (*domain.User, string, time.Time, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, "", time.Time{}, fmt.Errorf("load account: %w", err)
		}
		// Spend the same bcrypt work as a real comparison.
		s.hasher.Verify(password, s.dummy())
		return nil, "", time.Time{}, apperrors.NewUnauthorized(InvalidCredentialMessage)
	}
	if !s.hasher.Verify(password, user.PasswordHash) || !user.IsActive {
		return nil, "", time.Time{}, apperrors.NewUnauthorized(InvalidCredentialMessage)
	}

	token, exp, err := s.tokens.Issue(user.Username, user.ID, s.tokens.TTL())
	if err != nil {
		return nil, "", time.Time{}, fmt.Errorf("issue token: %w", err)
	}
	s.logger.Info("user logged in", zap.Int64("user_id", user.ID), zap.String("username", user.Username))
	return user, token, exp, nil
}

func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash("account-service-timing-guard")
		if err != nil {
			s.logger.Warn("dummy hash unavailable", zap.Error(err))
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

func (s *AuthService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handlers failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}
