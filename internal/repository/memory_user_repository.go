package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/account-service/internal/domain"
)

// MemoryUserRepository keeps accounts in process memory. It is used when no
// database is configured and in tests.
type MemoryUserRepository struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]*domain.User
	now    func() time.Time
}

// NewMemoryUserRepository returns an empty in-memory repository.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID: make(map[int64]*domain.User),
		now:  time.Now,
	}
}

func (r *MemoryUserRepository) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.takenLocked(user.Username, user.Email, 0) {
		return ErrDuplicate
	}

	r.nextID++
	now := r.now().UTC()
	user.ID = r.nextID
	user.CreatedAt = now
	user.UpdatedAt = now
	r.byID[user.ID] = cloneUser(user)
	return nil
}

func (r *MemoryUserRepository) Update(_ context.Context, id int64, update domain.UserUpdate) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}

	next := cloneUser(current)
	update.Apply(next)
	if r.takenLocked(next.Username, next.Email, id) {
		return nil, ErrDuplicate
	}
	if !update.Empty() {
		next.UpdatedAt = r.now().UTC()
	}
	r.byID[id] = next
	return cloneUser(next), nil
}

func (r *MemoryUserRepository) Delete(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return false, nil
	}
	delete(r.byID, id)
	return true, nil
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id int64) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(user), nil
}

func (r *MemoryUserRepository) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, user := range r.byID {
		if user.Username == username {
			return cloneUser(user), nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryUserRepository) Exists(_ context.Context, username, email string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.takenLocked(username, email, 0), nil
}

func (r *MemoryUserRepository) List(_ context.Context, limit, offset int) ([]*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]int64, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	users := make([]*domain.User, 0)
	if offset < 0 {
		offset = 0
	}
	for i := offset; i < len(ids) && len(users) < limit; i++ {
		users = append(users, cloneUser(r.byID[ids[i]]))
	}
	return users, nil
}

// takenLocked reports whether another account than exceptID uses username or email.
func (r *MemoryUserRepository) takenLocked(username, email string, exceptID int64) bool {
	for id, user := range r.byID {
		if id == exceptID {
			continue
		}
		if (username != "" && user.Username == username) || (email != "" && user.Email == email) {
			return true
		}
	}
	return false
}

func cloneUser(user *domain.User) *domain.User {
	out := *user
	if user.FullName != nil {
		name := *user.FullName
		out.FullName = &name
	}
	return &out
}
