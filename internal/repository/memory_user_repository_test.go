package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/account-service/internal/domain"
)

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func seedUser(t *testing.T, repo UserRepository, username string) *domain.User {
	t.Helper()
	user := &domain.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "hash-" + username,
		IsActive:     true,
	}
	require.NoError(t, repo.Create(context.Background(), user))
	return user
}

func TestMemoryUserRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()

	alice := seedUser(t, repo, "alice")
	assert.Equal(t, int64(1), alice.ID)
	assert.False(t, alice.CreatedAt.IsZero())

	byID, err := repo.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)

	byName, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, byName.ID)

	_, err = repo.GetByUsername(ctx, "bob")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.GetByID(ctx, 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryUserRepository_Duplicates(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()
	seedUser(t, repo, "alice")

	err := repo.Create(ctx, &domain.User{Username: "alice", Email: "other@example.com"})
	assert.ErrorIs(t, err, ErrDuplicate)
	err = repo.Create(ctx, &domain.User{Username: "other", Email: "alice@example.com"})
	assert.ErrorIs(t, err, ErrDuplicate)

	exists, err := repo.Exists(ctx, "alice", "")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = repo.Exists(ctx, "", "alice@example.com")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = repo.Exists(ctx, "", "")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMemoryUserRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()
	alice := seedUser(t, repo, "alice")

	got, err := repo.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	got.IsSuperuser = true

	again, err := repo.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.False(t, again.IsSuperuser)
}

func TestMemoryUserRepository_Update(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()
	alice := seedUser(t, repo, "alice")
	seedUser(t, repo, "bob")

	updated, err := repo.Update(ctx, alice.ID, domain.UserUpdate{
		FullName: strPtr("Alice Liddell"),
		IsActive: boolPtr(false),
	})
	require.NoError(t, err)
	require.NotNil(t, updated.FullName)
	assert.Equal(t, "Alice Liddell", *updated.FullName)
	assert.False(t, updated.IsActive)
	assert.Equal(t, "alice@example.com", updated.Email)

	_, err = repo.Update(ctx, alice.ID, domain.UserUpdate{Email: strPtr("bob@example.com")})
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = repo.Update(ctx, 99, domain.UserUpdate{FullName: strPtr("x")})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryUserRepository_DeleteAndList(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()
	for i := 0; i < 5; i++ {
		seedUser(t, repo, fmt.Sprintf("user%d", i))
	}

	page, err := repo.List(ctx, 2, 1)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "user1", page[0].Username)
	assert.Equal(t, "user2", page[1].Username)

	deleted, err := repo.Delete(ctx, page[0].ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repo.Delete(ctx, page[0].ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	all, err := repo.List(ctx, 100, 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	empty, err := repo.List(ctx, 10, 50)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
