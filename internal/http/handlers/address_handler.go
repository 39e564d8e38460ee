package handlers

import (
	"errors"

	applog "tradepost/internal/log"
	"tradepost/internal/services"
	"tradepost/internal/validate"

	"github.com/gofiber/fiber/v2"
)

type AddressHandler struct {
	Addrs *services.AddressService
}

func (h *AddressHandler) List(c *fiber.Ctx) error {
	out, err := h.Addrs.List(currentUser(c).ID)
	if err != nil {
		applog.Error(c, "address.list", err, nil)
		return fail(c, fiber.StatusInternalServerError, "could not load addresses")
	}
	return okJSON(c, fiber.StatusOK, out)
}

func (h *AddressHandler) Get(c *fiber.Ctx) error {
	id, okID := validate.ID(c.Params("id"))
	if !okID {
		return fail(c, fiber.StatusNotFound, "address not found")
	}
	a, err := h.Addrs.Get(currentUser(c).ID, id)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return fail(c, fiber.StatusNotFound, "address not found")
		}
		applog.Error(c, "address.get", err, nil)
		return fail(c, fiber.StatusInternalServerError, "could not load address")
	}
	return okJSON(c, fiber.StatusOK, a)
}

func parseAddress(c *fiber.Ctx) (services.AddressInput, map[string]string, error) {
	var in services.AddressInput
	if err := c.BodyParser(&in); err != nil {
		return in, nil, err
	}

	fields := map[string]string{}
	if rec, okV := validate.Name(in.Recipient); okV {
		in.Recipient = rec
	} else {
		fields["recipient"] = "recipient is required (max 120 chars)"
	}
	if in.Line1 == "" {
		fields["line1"] = "street line is required"
	}
	if in.City == "" {
		fields["city"] = "city is required"
	}
	if pc, okV := validate.PostalCode(in.PostalCode); okV {
		in.PostalCode = pc
	} else {
		fields["postal_code"] = "invalid postal code"
	}
	if cc, okV := validate.Country(in.Country); okV {
		in.Country = cc
	} else {
		fields["country"] = "two-letter country code required"
	}
	return in, fields, nil
}

func (h *AddressHandler) Create(c *fiber.Ctx) error {
	in, fields, err := parseAddress(c)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "malformed JSON body")
	}
	if len(fields) > 0 {
		return failFields(c, fields)
	}

	a, err := h.Addrs.Create(currentUser(c).ID, in)
	if err != nil {
		applog.Error(c, "address.create", err, nil)
		return fail(c, fiber.StatusInternalServerError, "could not save address")
	}
	applog.Audit(c, "address.create", map[string]any{"address_id": a.ID})
	return okJSON(c, fiber.StatusCreated, a)
}

func (h *AddressHandler) Update(c *fiber.Ctx) error {
	id, okID := validate.ID(c.Params("id"))
	if !okID {
		return fail(c, fiber.StatusNotFound, "address not found")
	}
	in, fields, err := parseAddress(c)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "malformed JSON body")
	}
	if len(fields) > 0 {
		return failFields(c, fields)
	}

	a, err := h.Addrs.Update(currentUser(c).ID, id, in)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return fail(c, fiber.StatusNotFound, "address not found")
		}
		applog.Error(c, "address.update", err, nil)
		return fail(c, fiber.StatusInternalServerError, "could not save address")
	}
	applog.Audit(c, "address.update", map[string]any{"address_id": id})
	return okJSON(c, fiber.StatusOK, a)
}

func (h *AddressHandler) SetDefault(c *fiber.Ctx) error {
	id, okID := validate.ID(c.Params("id"))
	if !okID {
		return fail(c, fiber.StatusNotFound, "address not found")
	}
	if err := h.Addrs.SetDefault(currentUser(c).ID, id); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return fail(c, fiber.StatusNotFound, "address not found")
		}
		applog.Error(c, "address.default", err, nil)
		return fail(c, fiber.StatusInternalServerError, "could not update default")
	}
	applog.Audit(c, "address.default", map[string]any{"address_id": id})
	return okJSON(c, fiber.StatusOK, fiber.Map{"default": id})
}

func (h *AddressHandler) Delete(c *fiber.Ctx) error {
	id, okID := validate.ID(c.Params("id"))
	if !okID {
		return fail(c, fiber.StatusNotFound, "address not found")
	}
	if err := h.Addrs.Delete(currentUser(c).ID, id); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return fail(c, fiber.StatusNotFound, "address not found")
		}
		applog.Error(c, "address.delete", err, nil)
		return fail(c, fiber.StatusInternalServerError, "could not delete address")
	}
	applog.Audit(c, "address.delete", map[string]any{"address_id": id})
	return okJSON(c, fiber.StatusOK, fiber.Map{"deleted": id})
}
