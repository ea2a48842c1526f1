package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/repository"
	apperrors "github.com/spec-kit/account-service/pkg/util"
)

const identityKey = "auth_identity"

// UnauthenticatedMessage is returned for every authentication failure.
const UnauthenticatedMessage = "Authentication required"

// Identity represents the authenticated caller. It is set once per request
// and must not be modified afterwards.
type Identity struct {
	Username string
	User     *domain.User
}

// AccountFinder resolves a token subject to an account.
type AccountFinder interface {
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}

// AuthMiddleware validates bearer tokens and loads identities.
type AuthMiddleware struct {
	tokens       *TokenManager
	users        AccountFinder
	excludePaths []string
	logger       *zap.Logger
}

// NewAuthMiddleware constructs middleware. Requests whose path starts with one
// of excludePaths skip authentication.
func NewAuthMiddleware(tokens *TokenManager, users AccountFinder, excludePaths []string, logger *zap.Logger) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{
		tokens:       tokens,
		users:        users,
		excludePaths: append([]string(nil), excludePaths...),
		logger:       logger,
	}
}

// Handle enforces authentication for every non-excluded route.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	if m.excluded(c.Path()) {
		return c.Next()
	}

	identity, err := m.authenticate(c)
	if err != nil {
		c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
		return apperrors.NewUnauthorized(UnauthenticatedMessage)
	}

	c.Locals(identityKey, identity)
	return c.Next()
}

func (m *AuthMiddleware) excluded(path string) bool {
	for _, prefix := range m.excludePaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func (m *AuthMiddleware) authenticate(c *fiber.Ctx) (*Identity, error) {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return nil, errors.New("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return nil, errors.New("invalid authorization header")
	}

	claims, err := m.tokens.Validate(strings.TrimSpace(parts[1]))
	if err != nil {
		return nil, err
	}

	user, err := m.users.GetByUsername(c.UserContext(), claims.Subject)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			m.logger.Error("identity lookup failed", zap.String("subject", claims.Subject), zap.Error(err))
		}
		return nil, err
	}
	if user.ID != claims.UserID {
		return nil, errors.New("token subject now belongs to another account")
	}

	return &Identity{Username: user.Username, User: user}, nil
}

// IdentityFromContext retrieves the authenticated caller.
func IdentityFromContext(c *fiber.Ctx) (*Identity, bool) {
	val := c.Locals(identityKey)
	if val == nil {
		return nil, false
	}
	identity, ok := val.(*Identity)
	return identity, ok && identity != nil && identity.User != nil
}
