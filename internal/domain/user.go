package domain

import "time"

// User is the account record owned by the user repository.
type User struct {
	ID           int64
	Username     string
	Email        string
	FullName     *string
	PasswordHash string
	IsActive     bool
	IsSuperuser  bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserUpdate carries the fields of a partial update; nil fields are left unchanged.
type UserUpdate struct {
	Username     *string
	Email        *string
	FullName     *string
	PasswordHash *string
	IsActive     *bool
	IsSuperuser  *bool
}

// Empty reports whether the update changes nothing.
func (u UserUpdate) Empty() bool {
	return u.Username == nil && u.Email == nil && u.FullName == nil &&
		u.PasswordHash == nil && u.IsActive == nil && u.IsSuperuser == nil
}

// Apply copies the set fields onto user.
func (u UserUpdate) Apply(user *User) {
	if u.Username != nil {
		user.Username = *u.Username
	}
	if u.Email != nil {
		user.Email = *u.Email
	}
	if u.FullName != nil {
		name := *u.FullName
		user.FullName = &name
	}
	if u.PasswordHash != nil {
		user.PasswordHash = *u.PasswordHash
	}
	if u.IsActive != nil {
		user.IsActive = *u.IsActive
	}
	if u.IsSuperuser != nil {
		user.IsSuperuser = *u.IsSuperuser
	}
}
