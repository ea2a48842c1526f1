package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainError_PassesThroughWrapped(t *testing.T) {
	err := fmt.Errorf("lookup: %w", NewForbidden("Admin access required"))

	de := ToDomainError(err)
	require.NotNil(t, de)
	assert.Equal(t, CodeForbidden, de.Code)
	assert.Equal(t, http.StatusForbidden, de.HTTPStatus)
	assert.Equal(t, "Admin access required", de.Message)
}

func TestToDomainError_FiberError(t *testing.T) {
	de := ToDomainError(fiber.NewError(http.StatusNotFound, "Cannot GET /nope"))
	assert.Equal(t, CodeNotFound, de.Code)
	assert.Equal(t, http.StatusNotFound, de.HTTPStatus)
	assert.Equal(t, "Cannot GET /nope", de.Message)

	de = ToDomainError(fiber.ErrMethodNotAllowed)
	assert.Equal(t, CodeBadRequest, de.Code)
	assert.Equal(t, http.StatusMethodNotAllowed, de.HTTPStatus)
}

func TestToDomainError_UnknownBecomesInternal(t *testing.T) {
	cause := errors.New("connection reset by peer")

	de := ToDomainError(cause)
	assert.Equal(t, CodeInternal, de.Code)
	assert.Equal(t, http.StatusInternalServerError, de.HTTPStatus)
	assert.Equal(t, "internal server error", de.Message)
	assert.ErrorIs(t, de, cause)
}

func TestToDomainError_Nil(t *testing.T) {
	assert.Nil(t, ToDomainError(nil))
}

func TestConstructorsStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{NewUnauthorized("Authentication required"), http.StatusUnauthorized, CodeUnauthenticated},
		{NewForbidden("no"), http.StatusForbidden, CodeForbidden},
		{NewRateLimited("slow down"), http.StatusTooManyRequests, CodeRateLimited},
		{NewNotFound("User"), http.StatusNotFound, CodeNotFound},
		{NewBadRequest("bad"), http.StatusBadRequest, CodeBadRequest},
		{NewValidationError("invalid", map[string]any{"email": "required"}), http.StatusBadRequest, CodeValidation},
		{fiber.NewError(http.StatusConflict, "dup"), http.StatusConflict, CodeConflict},
		{NewInternalError(nil), http.StatusInternalServerError, CodeInternal},
	}
	for _, tc := range cases {
		de := ToDomainError(tc.err)
		assert.Equal(t, tc.status, de.HTTPStatus, tc.err.Error())
		assert.Equal(t, tc.code, de.Code, tc.err.Error())
	}
	assert.Equal(t, "User not found", NewNotFound("User").Error())
}
