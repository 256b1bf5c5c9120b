package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/evc-wallet/evc_wallet/internal/auth"
)

const (
	localActorID = "actor_id"
	localRole    = "role"

	RoleUser  = auth.RoleUser
	RoleAdmin = auth.RoleAdmin
)

// JWTAuth verifies HS256 bearer tokens signed with secret and exposes the
// subject and role to later handlers.
func JWTAuth(secret []byte) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if len(authz) < len("Bearer ") || !strings.EqualFold(authz[:len("Bearer ")], "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		claims, err := auth.Verify(strings.TrimSpace(authz[len("Bearer "):]), secret)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}
		c.Locals(localActorID, claims.Subject)
		c.Locals(localRole, claims.Role)
		return c.Next()
	}
}

// RequireRole rejects actors whose role is not one of roles.
func RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		have := Role(c)
		for _, r := range roles {
			if r == have {
				return c.Next()
			}
		}
		return fiber.NewError(http.StatusForbidden, "insufficient permissions")
	}
}

// ActorID returns the authenticated user id, or "".
func ActorID(c *fiber.Ctx) string {
	id, _ := c.Locals(localActorID).(string)
	return id
}

// Role returns the authenticated role, or "".
func Role(c *fiber.Ctx) string {
	role, _ := c.Locals(localRole).(string)
	return role
}

// IsAdmin reports whether the actor holds the admin role.
func IsAdmin(c *fiber.Ctx) bool {
	return Role(c) == RoleAdmin
}
