package dto

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/service"
)

// Password limits are in bytes; bcrypt ignores everything past 72.
const (
	PasswordMinLen = 6
	PasswordMaxLen = 72
)

// UserRegisterRequest payload for new users.
type UserRegisterRequest struct {
	Username string  `json:"username" validate:"required,min=3,max=50,username"`
	Email    string  `json:"email" validate:"required,max=254,email"`
	Password string  `json:"password" validate:"required,password"`
	FullName *string `json:"full_name" validate:"omitnil,max=100"`
}

// Normalize trims and canonicalises free-text fields in place.
func (r *UserRegisterRequest) Normalize() {
	r.Username = normalizeText(r.Username)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.FullName = normalizeOptional(r.FullName)
}

// Validate reports every invalid field at once.
func (r UserRegisterRequest) Validate() error {
	return validateStruct(r)
}

// Input converts the payload for the auth service.
func (r UserRegisterRequest) Input() service.RegisterInput {
	return service.RegisterInput{
		Username: r.Username,
		Email:    r.Email,
		Password: r.Password,
		FullName: r.FullName,
	}
}

// UserLoginRequest payload for login.
type UserLoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Normalize folds the username the same way registration does.
func (r *UserLoginRequest) Normalize() {
	r.Username = normalizeText(r.Username)
}

// Validate requires both fields.
func (r UserLoginRequest) Validate() error {
	return validateStruct(r)
}

// UserUpdateRequest is a partial update; absent fields stay unchanged.
type UserUpdateRequest struct {
	Username    *string `json:"username" validate:"omitnil,min=3,max=50,username"`
	Email       *string `json:"email" validate:"omitnil,max=254,email"`
	FullName    *string `json:"full_name" validate:"omitnil,max=100"`
	Password    *string `json:"password" validate:"omitnil,password"`
	IsActive    *bool   `json:"is_active"`
	IsSuperuser *bool   `json:"is_superuser"`
}

// Normalize trims and canonicalises free-text fields in place.
func (r *UserUpdateRequest) Normalize() {
	if r.Username != nil {
		username := normalizeText(*r.Username)
		r.Username = &username
	}
	if r.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*r.Email))
		r.Email = &email
	}
	r.FullName = normalizeOptional(r.FullName)
}

// Validate checks only the fields that are present.
func (r UserUpdateRequest) Validate() error {
	return validateStruct(r)
}

// Input converts the payload for the user service.
func (r UserUpdateRequest) Input() service.UpdateInput {
	return service.UpdateInput{
		Username:    r.Username,
		Email:       r.Email,
		FullName:    r.FullName,
		Password:    r.Password,
		IsActive:    r.IsActive,
		IsSuperuser: r.IsSuperuser,
	}
}

// UserResponse is the public view of an account. It never carries the hash.
type UserResponse struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	FullName    *string   `json:"full_name"`
	IsActive    bool      `json:"is_active"`
	IsSuperuser bool      `json:"is_superuser"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewUserResponse maps a domain user.
func NewUserResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		FullName:    user.FullName,
		IsActive:    user.IsActive,
		IsSuperuser: user.IsSuperuser,
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
	}
}

// NewUserResponses maps a page of users.
func NewUserResponses(users []*domain.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for _, user := range users {
		out = append(out, NewUserResponse(user))
	}
	return out
}

// TokenResponse is returned by login.
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// normalizeText folds compatibility characters (full-width letters,
// ligatures) so visually identical names compare equal.
func normalizeText(s string) string {
	return norm.NFKC.String(strings.TrimSpace(s))
}

func normalizeOptional(s *string) *string {
	if s == nil {
		return nil
	}
	out := normalizeText(*s)
	return &out
}
