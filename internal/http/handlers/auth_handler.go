package handlers

import (
	"errors"
	"time"

	"tradepost/internal/domain"
	applog "tradepost/internal/log"
	"tradepost/internal/services"
	"tradepost/internal/validate"

	"github.com/gofiber/fiber/v2"
)

type AuthHandler struct {
	Auth     *services.AuthService
	TokenTTL time.Duration
}

type registerBody struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var in registerBody
	if err := c.BodyParser(&in); err != nil {
		return fail(c, fiber.StatusBadRequest, "malformed JSON body")
	}

	fields := map[string]string{}
	email, ok := validate.Email(in.Email)
	if !ok {
		fields["email"] = "invalid email address"
	}
	name, ok := validate.Name(in.Name)
	if !ok {
		fields["name"] = "name is required (max 120 chars)"
	}
	phone, ok := validate.Phone(in.Phone)
	if !ok {
		fields["phone"] = "invalid phone number"
	}
	if !validate.Password(in.Password) {
		fields["password"] = "8-72 chars with upper, lower and digit"
	}
	if in.Role == "" {
		in.Role = domain.RoleBuyer
	}
	if !domain.ValidRole(in.Role) {
		fields["role"] = "role must be buyer or seller"
	}
	if len(fields) > 0 {
		applog.Security(c, "auth.register.fail", map[string]any{"reason": "validation"})
		return failFields(c, fields)
	}

	u, err := h.Auth.Register(email, name, phone, in.Password, in.Role)
	if err != nil {
		if errors.Is(err, services.ErrEmailTaken) {
			applog.Security(c, "auth.register.fail", map[string]any{"reason": "email_taken"})
			return fail(c, fiber.StatusConflict, "email already registered")
		}
		applog.Error(c, "auth.register", err, nil)
		return fail(c, fiber.StatusInternalServerError, "could not create account")
	}

	applog.Audit(c, "auth.register", map[string]any{"user_id": u.ID, "role": u.Role})
	return okJSON(c, fiber.StatusCreated, u)
}

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var in loginBody
	if err := c.BodyParser(&in); err != nil {
		return fail(c, fiber.StatusBadRequest, "malformed JSON body")
	}
	email, okEmail := validate.Email(in.Email)
	if !okEmail || in.Password == "" {
		applog.Security(c, "auth.login.fail", map[string]any{"reason": "bad_format"})
		return fail(c, fiber.StatusUnauthorized, "invalid email or password")
	}

	u, token, err := h.Auth.Login(email, in.Password)
	if err != nil {
		if errors.Is(err, services.ErrSuspended) {
			applog.Security(c, "auth.login.suspended", map[string]any{"email": email})
			return fail(c, fiber.StatusForbidden, "account suspended")
		}
		applog.Security(c, "auth.login.fail", map[string]any{"email": email})
		return fail(c, fiber.StatusUnauthorized, "invalid email or password")
	}

	c.Cookie(&fiber.Cookie{
		Name:     tokenCookie,
		Value:    token,
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Secure:   false, // enable true behind TLS
		Expires:  time.Now().Add(h.TokenTTL),
	})
	applog.Audit(c, "auth.login.success", map[string]any{"user_id": u.ID})
	return okJSON(c, fiber.StatusOK, fiber.Map{"token": token, "user": u})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     tokenCookie,
		Value:    "",
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Secure:   false,
		Expires:  time.Now().Add(-1 * time.Hour),
	})
	applog.Audit(c, "auth.logout", nil)
	return okJSON(c, fiber.StatusOK, fiber.Map{"logged_out": true})
}

// Verify consumes the emailed verification token.
func (h *AuthHandler) Verify(c *fiber.Ctx) error {
	token, okTok := validate.ID(c.Query("token"))
	if !okTok {
		return fail(c, fiber.StatusBadRequest, "missing verification token")
	}
	u, err := h.Auth.VerifyEmail(token)
	if err != nil {
		applog.Security(c, "auth.verify.fail", nil)
		return fail(c, fiber.StatusBadRequest, "invalid or expired verification token")
	}
	applog.Audit(c, "auth.verify", map[string]any{"user_id": u.ID})
	return okJSON(c, fiber.StatusOK, u)
}

// Me returns the authenticated account.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	return okJSON(c, fiber.StatusOK, currentUser(c))
}
