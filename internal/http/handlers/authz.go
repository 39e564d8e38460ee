package handlers

import (
	"errors"
	"strings"

	"tradepost/internal/domain"
	applog "tradepost/internal/log"
	"tradepost/internal/services"

	"github.com/gofiber/fiber/v2"
)

const tokenCookie = "token"

// bearerToken pulls the credential from the Authorization header, falling
// back to the HttpOnly cookie browser clients use.
func bearerToken(c *fiber.Ctx) string {
	h := c.Get(fiber.HeaderAuthorization)
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(h[len("Bearer "):])
	}
	return c.Cookies(tokenCookie)
}

func currentUser(c *fiber.Ctx) *domain.User {
	u, _ := c.Locals("user").(*domain.User)
	return u
}

// OptionalAuth attaches the account when a valid token rides along, and
// stays silent otherwise. Public catalog routes use it so sellers can see
// their own inactive listings.
func OptionalAuth(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if raw := bearerToken(c); raw != "" {
			if u, err := auth.UserFromToken(raw); err == nil {
				c.Locals("user", u)
			}
		}
		return c.Next()
	}
}

// RequireAuth loads the account behind the request's token. Missing or bad
// tokens are 401; a valid token for a suspended account is 403 so clients
// can tell the two apart.
func RequireAuth(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := bearerToken(c)
		if raw == "" {
			return fail(c, fiber.StatusUnauthorized, "authentication required")
		}
		u, err := auth.UserFromToken(raw)
		if errors.Is(err, services.ErrSuspended) {
			applog.Security(c, "access.denied.suspended", nil)
			return fail(c, fiber.StatusForbidden, "account suspended")
		}
		if err != nil {
			applog.Security(c, "auth.token.invalid", nil)
			return fail(c, fiber.StatusUnauthorized, "invalid or expired token")
		}
		c.Locals("user", u)
		return c.Next()
	}
}

// RequireRole gates a route group to the given roles. Mount after
// RequireAuth.
func RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		u := currentUser(c)
		if u == nil {
			return fail(c, fiber.StatusUnauthorized, "authentication required")
		}
		for _, r := range roles {
			if u.Role == r {
				return c.Next()
			}
		}
		applog.Security(c, "access.denied.role", map[string]any{"need": strings.Join(roles, ",")})
		return fail(c, fiber.StatusForbidden, "insufficient privileges")
	}
}
