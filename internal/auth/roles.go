package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/account-service/pkg/util"
)

// AdminRequiredMessage is returned when an authenticated caller lacks privilege.
const AdminRequiredMessage = "Admin access required"

// RequireAdmin ensures the caller is an authenticated superuser. It must run
// after AuthMiddleware.Handle; a missing identity is an authentication failure.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, ok := IdentityFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized(UnauthenticatedMessage)
		}
		if !identity.User.IsSuperuser {
			return apperrors.NewForbidden(AdminRequiredMessage)
		}
		return c.Next()
	}
}

// RequireSelfOrAdmin returns nil when the caller owns account id or is a superuser.
func RequireSelfOrAdmin(c *fiber.Ctx, id int64) error {
	identity, ok := IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized(UnauthenticatedMessage)
	}
	if identity.User.ID != id && !identity.User.IsSuperuser {
		return apperrors.NewForbidden("Not enough permissions")
	}
	return nil
}
