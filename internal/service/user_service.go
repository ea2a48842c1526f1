package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/auth"
	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/events"
	"github.com/spec-kit/account-service/internal/repository"
	apperrors "github.com/spec-kit/account-service/pkg/util"
)

// Pagination bounds for List.
const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// NotEnoughPermissionsMessage is returned when a caller may not touch an account.
const NotEnoughPermissionsMessage = "Not enough permissions"

// UpdateInput is a partial account update. Nil fields are left unchanged.
type UpdateInput struct {
	Username    *string
	Email       *string
	FullName    *string
	Password    *string
	IsActive    *bool
	IsSuperuser *bool
}

// UserService implements profile reads and mutations.
type UserService struct {
	users      repository.UserRepository
	hasher     *auth.PasswordHasher
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewUserService builds the service.
func NewUserService(users repository.UserRepository, hasher *auth.PasswordHasher, dispatcher events.Dispatcher, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{users: users, hasher: hasher, dispatcher: dispatcher, logger: logger}
}

// Get returns one account.
func (s *UserService) Get(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, mapLookupError(err)
	}
	return user, nil
}

// List returns a page of accounts ordered by id.
func (s *UserService) List(ctx context.Context, limit, offset int) ([]*domain.User, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	users, err := s.users.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return users, nil
}

// Update applies in to account id on behalf of actor. Only superusers may
// change the active and superuser flags.
func (s *UserService) Update(ctx context.Context, actor *domain.User, id int64, in UpdateInput) (*domain.User, error) {
	if (in.IsActive != nil || in.IsSuperuser != nil) && !actor.IsSuperuser {
		return nil, apperrors.NewForbidden(NotEnoughPermissionsMessage)
	}

	update := domain.UserUpdate{
		Username:    in.Username,
		Email:       in.Email,
		FullName:    in.FullName,
		IsActive:    in.IsActive,
		IsSuperuser: in.IsSuperuser,
	}
	if in.Password != nil {
		hash, err := s.hasher.Hash(*in.Password)
		if err != nil {
			if errors.Is(err, auth.ErrPasswordTooLong) {
				return nil, apperrors.NewValidationError(err.Error(), nil)
			}
			return nil, fmt.Errorf("hash password: %w", err)
		}
		update.PasswordHash = &hash
	}

	if update.Empty() {
		return s.Get(ctx, id)
	}

	user, err := s.users.Update(ctx, id, update)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewBadRequest(DuplicateAccountMessage)
		}
		return nil, mapLookupError(err)
	}

	s.logger.Info("user updated", zap.Int64("user_id", user.ID), zap.String("actor", actor.Username))
	s.publish(ctx, events.NewEvent(events.EventUserUpdated, user.ID, actorOf(actor), events.UserUpdatedPayload{
		Username: user.Username,
		Fields:   changedFields(in),
	}))
	return user, nil
}

// Delete removes account id. Outstanding tokens for it stop working because
// every request resolves its subject again.
func (s *UserService) Delete(ctx context.Context, actor *domain.User, id int64) error {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return mapLookupError(err)
	}
	deleted, err := s.users.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if !deleted {
		return apperrors.NewNotFound("User")
	}

	s.logger.Info("user deleted", zap.Int64("user_id", id), zap.String("actor", actor.Username))
	s.publish(ctx, events.NewEvent(events.EventUserDeleted, id, actorOf(actor), events.UserDeletedPayload{
		Username: user.Username,
	}))
	return nil
}

func (s *UserService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handlers failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

func mapLookupError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound("User")
	}
	return fmt.Errorf("load account: %w", err)
}

func actorOf(user *domain.User) events.Actor {
	if user == nil {
		return events.Actor{}
	}
	return events.Actor{Username: user.Username, IsAdmin: user.IsSuperuser}
}

func changedFields(in UpdateInput) []string {
	var fields []string
	if in.Username != nil {
		fields = append(fields, "username")
	}
	if in.Email != nil {
		fields = append(fields, "email")
	}
	if in.FullName != nil {
		fields = append(fields, "full_name")
	}
	if in.Password != nil {
		fields = append(fields, "password")
	}
	if in.IsActive != nil {
		fields = append(fields, "is_active")
	}
	if in.IsSuperuser != nil {
		fields = append(fields, "is_superuser")
	}
	return fields
}
