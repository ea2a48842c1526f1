package auth

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/repository"
	apperrors "github.com/spec-kit/account-service/pkg/util"
)

type stubFinder struct {
	users map[string]*domain.User
	err   error
	calls int
}

func (f *stubFinder) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	user, ok := f.users[username]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return user, nil
}

type authFixture struct {
	app    *fiber.App
	tokens *TokenManager
	finder *stubFinder
	clock  *fakeClock
	logs   *observer.ObservedLogs
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	finder := &stubFinder{users: map[string]*domain.User{
		"alice": {ID: 1, Username: "alice", IsActive: true},
		"root":  {ID: 2, Username: "root", IsActive: true, IsSuperuser: true},
	}}
	core, logs := observer.New(zapcore.DebugLevel)
	tokens := newTestTokens(t, clock)
	mw := NewAuthMiddleware(tokens, finder, []string{"/health", "/api/v1/users/login"}, zap.New(core))

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			domainErr := apperrors.ToDomainError(err)
			return c.Status(domainErr.HTTPStatus).SendString(domainErr.Message)
		},
	})
	app.Use(mw.Handle)
	app.Get("/health", func(c *fiber.Ctx) error {
		_, ok := IdentityFromContext(c)
		assert.False(t, ok)
		return c.SendString("ok")
	})
	app.Get("/whoami", func(c *fiber.Ctx) error {
		identity, ok := IdentityFromContext(c)
		if !ok {
			return errors.New("identity missing")
		}
		return c.SendString(identity.Username)
	})
	app.Get("/admin", RequireAdmin(), func(c *fiber.Ctx) error {
		return c.SendString("admin")
	})
	app.Put("/users/:id", func(c *fiber.Ctx) error {
		id, _ := c.ParamsInt("id")
		if err := RequireSelfOrAdmin(c, int64(id)); err != nil {
			return err
		}
		return c.SendString("updated")
	})
	return &authFixture{app: app, tokens: tokens, finder: finder, clock: clock, logs: logs}
}

func (f *authFixture) get(t *testing.T, method, path, authorization string) (int, string, string) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if authorization != "" {
		req.Header.Set(fiber.HeaderAuthorization, authorization)
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	buf := make([]byte, 256)
	n, _ := resp.Body.Read(buf)
	return resp.StatusCode, string(buf[:n]), resp.Header.Get(fiber.HeaderWWWAuthenticate)
}

func (f *authFixture) bearer(t *testing.T, subject string) string {
	t.Helper()
	var id int64 = 99
	if user, ok := f.finder.users[subject]; ok {
		id = user.ID
	}
	tok, _, err := f.tokens.Issue(subject, id, time.Hour)
	require.NoError(t, err)
	return "Bearer " + tok
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	f := newAuthFixture(t)

	status, body, _ := f.get(t, fiber.MethodGet, "/whoami", f.bearer(t, "alice"))
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "alice", body)

	status, _, _ = f.get(t, fiber.MethodGet, "/whoami", "bearer "+f.bearer(t, "alice")[len("Bearer "):])
	assert.Equal(t, fiber.StatusOK, status, "scheme is case-insensitive")
}

func TestAuthMiddleware_Rejections(t *testing.T) {
	f := newAuthFixture(t)
	valid := f.bearer(t, "alice")

	cases := map[string]string{
		"missing header": "",
		"wrong scheme":   "Basic " + valid[len("Bearer "):],
		"empty token":    "Bearer ",
		"garbage token":  "Bearer not.a.token",
		"unknown user":   f.bearer(t, "mallory"),
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			status, body, challenge := f.get(t, fiber.MethodGet, "/whoami", header)
			assert.Equal(t, fiber.StatusUnauthorized, status)
			assert.Equal(t, UnauthenticatedMessage, body)
			assert.Equal(t, "Bearer", challenge)
		})
	}
}

func TestAuthMiddleware_ExpiredToken(t *testing.T) {
	f := newAuthFixture(t)
	header := f.bearer(t, "alice")

	f.clock.Advance(time.Hour)
	status, body, _ := f.get(t, fiber.MethodGet, "/whoami", header)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, UnauthenticatedMessage, body)
}

func TestAuthMiddleware_ExcludedPathsSkipEverything(t *testing.T) {
	f := newAuthFixture(t)

	for _, header := range []string{"", "Bearer garbage", f.bearer(t, "alice")} {
		status, body, _ := f.get(t, fiber.MethodGet, "/health", header)
		assert.Equal(t, fiber.StatusOK, status)
		assert.Equal(t, "ok", body)
	}
	assert.Zero(t, f.finder.calls)
}

func TestAuthMiddleware_DeletedAccount(t *testing.T) {
	f := newAuthFixture(t)
	header := f.bearer(t, "alice")

	delete(f.finder.users, "alice")
	status, body, _ := f.get(t, fiber.MethodGet, "/whoami", header)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, UnauthenticatedMessage, body)
	assert.Zero(t, f.logs.FilterMessage("identity lookup failed").Len(), "not-found is not logged as a failure")
}

func TestAuthMiddleware_UsernameTakenByAnotherAccount(t *testing.T) {
	f := newAuthFixture(t)
	header := f.bearer(t, "alice")

	f.finder.users["alice"] = &domain.User{ID: 3, Username: "alice", IsActive: true}
	status, body, _ := f.get(t, fiber.MethodGet, "/whoami", header)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, UnauthenticatedMessage, body)
}

func TestAuthMiddleware_RepositoryErrorIsLoggedAndRejected(t *testing.T) {
	f := newAuthFixture(t)
	f.finder.err = errors.New("connection refused")

	status, body, _ := f.get(t, fiber.MethodGet, "/whoami", f.bearer(t, "alice"))
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, UnauthenticatedMessage, body)
	assert.Equal(t, 1, f.logs.FilterMessage("identity lookup failed").Len())
}

func TestRequireAdmin(t *testing.T) {
	f := newAuthFixture(t)

	status, body, _ := f.get(t, fiber.MethodGet, "/admin", f.bearer(t, "alice"))
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, AdminRequiredMessage, body)

	status, body, _ = f.get(t, fiber.MethodGet, "/admin", f.bearer(t, "root"))
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "admin", body)
}

func TestRequireAdmin_WithoutIdentity(t *testing.T) {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.SendStatus(apperrors.ToDomainError(err).HTTPStatus)
		},
	})
	app.Get("/admin", RequireAdmin(), func(c *fiber.Ctx) error { return c.SendString("admin") })

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/admin", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRequireSelfOrAdmin(t *testing.T) {
	f := newAuthFixture(t)

	status, _, _ := f.get(t, fiber.MethodPut, "/users/1", f.bearer(t, "alice"))
	assert.Equal(t, fiber.StatusOK, status)

	status, body, _ := f.get(t, fiber.MethodPut, "/users/2", f.bearer(t, "alice"))
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "Not enough permissions", body)

	status, _, _ = f.get(t, fiber.MethodPut, "/users/1", f.bearer(t, "root"))
	assert.Equal(t, fiber.StatusOK, status)
}
