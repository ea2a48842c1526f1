package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/domain"
)

const (
	userIDKeyPrefix       = "user:id:"
	userUsernameKeyPrefix = "user:username:"

	// invalidated marks a key whose account changed recently. Readers go to the
	// store and do not repopulate until the marker expires, so a reader that
	// raced with a write cannot resurrect stale data.
	invalidated = "-"
)

// CachedUserRepository caches account lookups in Redis in front of another
// repository. Read failures are logged and fall through to the store. Writes
// are refused when the cache entries cannot be invalidated first, otherwise a
// deleted or renamed account could stay resolvable until its entry expires.
type CachedUserRepository struct {
	UserRepository
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedUserRepository wraps inner with a Redis read-through cache.
func NewCachedUserRepository(inner UserRepository, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedUserRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedUserRepository{UserRepository: inner, rdb: rdb, ttl: ttl, logger: logger}
}

type cachedUser struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FullName     *string   `json:"full_name,omitempty"`
	PasswordHash string    `json:"hashed_password"`
	IsActive     bool      `json:"is_active"`
	IsSuperuser  bool      `json:"is_superuser"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func encodeUser(user *domain.User) ([]byte, error) {
	return json.Marshal(cachedUser(*user))
}

func decodeUser(data []byte) (*domain.User, error) {
	var entry cachedUser
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, err
	}
	user := domain.User(entry)
	return &user, nil
}

func (r *CachedUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.readThrough(ctx, idKey(id), func() (*domain.User, error) {
		return r.UserRepository.GetByID(ctx, id)
	})
}

func (r *CachedUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.readThrough(ctx, usernameKey(username), func() (*domain.User, error) {
		return r.UserRepository.GetByUsername(ctx, username)
	})
}

func (r *CachedUserRepository) Update(ctx context.Context, id int64, update domain.UserUpdate) (*domain.User, error) {
	before, err := r.UserRepository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.invalidate(ctx, before); err != nil {
		return nil, err
	}

	user, err := r.UserRepository.Update(ctx, id, update)
	if err != nil {
		return nil, err
	}
	if err := r.invalidate(ctx, before, user); err != nil {
		r.logger.Warn("user cache invalidation after update failed", zap.Int64("user_id", id), zap.Error(err))
	}
	return user, nil
}

func (r *CachedUserRepository) Delete(ctx context.Context, id int64) (bool, error) {
	before, err := r.UserRepository.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := r.invalidate(ctx, before); err != nil {
		return false, err
	}

	deleted, err := r.UserRepository.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	if err := r.invalidate(ctx, before); err != nil {
		r.logger.Warn("user cache invalidation after delete failed", zap.Int64("user_id", id), zap.Error(err))
	}
	return deleted, nil
}

func (r *CachedUserRepository) readThrough(ctx context.Context, key string, load func() (*domain.User, error)) (*domain.User, error) {
	data, err := r.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil && string(data) != invalidated:
		user, decodeErr := decodeUser(data)
		if decodeErr == nil {
			return user, nil
		}
		r.logger.Warn("discarding undecodable cache entry", zap.String("key", key), zap.Error(decodeErr))
	case err != nil && !errors.Is(err, redis.Nil):
		r.logger.Warn("user cache read failed", zap.String("key", key), zap.Error(err))
	}
	marked := err == nil && string(data) == invalidated

	user, err := load()
	if err != nil {
		return nil, err
	}
	if !marked {
		r.store(ctx, user)
	}
	return user, nil
}

func (r *CachedUserRepository) store(ctx context.Context, user *domain.User) {
	payload, err := encodeUser(user)
	if err != nil {
		r.logger.Warn("user cache encode failed", zap.Int64("user_id", user.ID), zap.Error(err))
		return
	}
	pipe := r.rdb.Pipeline()
	pipe.SetNX(ctx, idKey(user.ID), payload, r.ttl)
	pipe.SetNX(ctx, usernameKey(user.Username), payload, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Warn("user cache write failed", zap.Int64("user_id", user.ID), zap.Error(err))
	}
}

// invalidate replaces the cache entries of users with the marker. Every SET
// must succeed.
func (r *CachedUserRepository) invalidate(ctx context.Context, users ...*domain.User) error {
	pipe := r.rdb.Pipeline()
	for _, user := range users {
		pipe.Set(ctx, idKey(user.ID), invalidated, r.ttl)
		pipe.Set(ctx, usernameKey(user.Username), invalidated, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("invalidate user cache: %w", err)
	}
	return nil
}

func idKey(id int64) string {
	return userIDKeyPrefix + strconv.FormatInt(id, 10)
}

func usernameKey(username string) string {
	return userUsernameKeyPrefix + username
}
