package handlers

import (
	"errors"

	applog "tradepost/internal/log"
	"tradepost/internal/services"
	"tradepost/internal/validate"

	"github.com/gofiber/fiber/v2"
)

type PaymentHandler struct {
	Payments *services.PaymentService
}

type initPaymentBody struct {
	OrderID  string `json:"order_id"`
	Provider string `json:"provider"`
}

// Initialize opens a checkout session for a pending order and returns the
// provider URL the buyer completes payment on.
func (h *PaymentHandler) Initialize(c *fiber.Ctx) error {
	var in initPaymentBody
	if err := c.BodyParser(&in); err != nil {
		return fail(c, fiber.StatusBadRequest, "malformed JSON body")
	}
	orderID, okID := validate.ID(in.OrderID)
	if !okID {
		return failFields(c, map[string]string{"order_id": "order is required"})
	}

	p, checkoutURL, err := h.Payments.Initialize(c.UserContext(), currentUser(c), orderID, in.Provider)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNotFound):
			return fail(c, fiber.StatusNotFound, "order not found")
		case errors.Is(err, services.ErrForbidden):
			applog.Security(c, "access.denied.payment", map[string]any{"order_id": orderID})
			return fail(c, fiber.StatusNotFound, "order not found")
		case errors.Is(err, services.ErrOrderNotPayable):
			return fail(c, fiber.StatusConflict, "order is not awaiting payment")
		case errors.Is(err, services.ErrPaymentActive):
			return fail(c, fiber.StatusConflict, "order already has an active payment")
		case errors.Is(err, services.ErrGatewayDown):
			return fail(c, fiber.StatusBadGateway, "payment provider unavailable, try again")
		}
		applog.Error(c, "payment.init", err, nil)
		return fail(c, fiber.StatusInternalServerError, "could not start payment")
	}

	applog.Audit(c, "payment.init", map[string]any{"payment_id": p.ID, "order_id": orderID})
	return okJSON(c, fiber.StatusCreated, fiber.Map{"payment": p, "checkout_url": checkoutURL})
}

func (h *PaymentHandler) Get(c *fiber.Ctx) error {
	id, okID := validate.ID(c.Params("id"))
	if !okID {
		return fail(c, fiber.StatusNotFound, "payment not found")
	}
	p, err := h.Payments.Get(currentUser(c), id)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNotFound), errors.Is(err, services.ErrForbidden):
			return fail(c, fiber.StatusNotFound, "payment not found")
		}
		applog.Error(c, "payment.get", err, nil)
		return fail(c, fiber.StatusInternalServerError, "could not load payment")
	}
	return okJSON(c, fiber.StatusOK, p)
}

// List returns the caller's payments, optionally narrowed to one order.
func (h *PaymentHandler) List(c *fiber.Ctx) error {
	if oid := c.Query("order_id"); oid != "" {
		orderID, okID := validate.ID(oid)
		if !okID {
			return fail(c, fiber.StatusNotFound, "order not found")
		}
		out, err := h.Payments.ListForOrder(currentUser(c), orderID)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrNotFound), errors.Is(err, services.ErrForbidden):
				return fail(c, fiber.StatusNotFound, "order not found")
			}
			applog.Error(c, "payment.list", err, nil)
			return fail(c, fiber.StatusInternalServerError, "could not load payments")
		}
		return okJSON(c, fiber.StatusOK, out)
	}

	out, err := h.Payments.ListMine(currentUser(c).ID, c.QueryInt("limit", 20), c.QueryInt("offset"))
	if err != nil {
		applog.Error(c, "payment.list", err, nil)
		return fail(c, fiber.StatusInternalServerError, "could not load payments")
	}
	return okJSON(c, fiber.StatusOK, out)
}

// Cancel voids a payment still in pending or processing.
func (h *PaymentHandler) Cancel(c *fiber.Ctx) error {
	id, okID := validate.ID(c.Params("id"))
	if !okID {
		return fail(c, fiber.StatusNotFound, "payment not found")
	}
	p, err := h.Payments.Cancel(c.UserContext(), currentUser(c), id)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNotFound):
			return fail(c, fiber.StatusNotFound, "payment not found")
		case errors.Is(err, services.ErrForbidden):
			applog.Security(c, "access.denied.payment", map[string]any{"payment_id": id})
			return fail(c, fiber.StatusNotFound, "payment not found")
		case errors.Is(err, services.ErrPaymentSettled):
			return fail(c, fiber.StatusConflict, "payment already settled")
		}
		applog.Error(c, "payment.cancel", err, nil)
		return fail(c, fiber.StatusInternalServerError, "could not cancel payment")
	}
	applog.Audit(c, "payment.cancel", map[string]any{"payment_id": id})
	return okJSON(c, fiber.StatusOK, p)
}
