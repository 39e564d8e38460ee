package handlers

import (
	"errors"

	applog "tradepost/internal/log"
	"tradepost/internal/services"
	"tradepost/internal/validate"

	"github.com/gofiber/fiber/v2"
)

type UserHandler struct {
	Auth *services.AuthService
}

type profileBody struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// UpdateMe changes the caller's display name and phone. Email and role are
// immutable through this endpoint.
func (h *UserHandler) UpdateMe(c *fiber.Ctx) error {
	u := currentUser(c)

	var in profileBody
	if err := c.BodyParser(&in); err != nil {
		return fail(c, fiber.StatusBadRequest, "malformed JSON body")
	}
	if in.Name == "" {
		in.Name = u.Name
	}
	if in.Phone == "" {
		in.Phone = u.Phone
	}

	fields := map[string]string{}
	name, ok := validate.Name(in.Name)
	if !ok {
		fields["name"] = "name is required (max 120 chars)"
	}
	phone, ok := validate.Phone(in.Phone)
	if !ok {
		fields["phone"] = "invalid phone number"
	}
	if len(fields) > 0 {
		return failFields(c, fields)
	}

	out, err := h.Auth.UpdateProfile(u.ID, name, phone)
	if err != nil {
		applog.Error(c, "user.update", err, nil)
		return fail(c, fiber.StatusInternalServerError, "could not update profile")
	}
	applog.Audit(c, "user.update", map[string]any{"user_id": u.ID})
	return okJSON(c, fiber.StatusOK, out)
}

type passwordBody struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ChangePassword re-checks the current credential before accepting a new one.
func (h *UserHandler) ChangePassword(c *fiber.Ctx) error {
	u := currentUser(c)

	var in passwordBody
	if err := c.BodyParser(&in); err != nil {
		return fail(c, fiber.StatusBadRequest, "malformed JSON body")
	}
	if !validate.Password(in.NewPassword) {
		return failFields(c, map[string]string{
			"new_password": "8-72 chars with upper, lower and digit",
		})
	}

	if err := h.Auth.ChangePassword(u.ID, in.CurrentPassword, in.NewPassword); err != nil {
		if errors.Is(err, services.ErrBadCreds) {
			applog.Security(c, "user.password.fail", nil)
			return fail(c, fiber.StatusUnauthorized, "current password is incorrect")
		}
		applog.Error(c, "user.password", err, nil)
		return fail(c, fiber.StatusInternalServerError, "could not change password")
	}
	applog.Audit(c, "user.password.change", nil)
	return okJSON(c, fiber.StatusOK, fiber.Map{"changed": true})
}
