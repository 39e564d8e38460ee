package handlers

import (
	"errors"

	"tradepost/internal/cache"
	"tradepost/internal/domain"
	applog "tradepost/internal/log"
	"tradepost/internal/repos"
	"tradepost/internal/services"
	"tradepost/internal/validate"

	"github.com/gofiber/fiber/v2"
)

type OrderHandler struct {
	Orders *services.OrderService
	Cache  *cache.Store
}

type placeBody struct {
	AddressID string          `json:"address_id"`
	Items     []services.Line `json:"items"`
}

func (h *OrderHandler) Place(c *fiber.Ctx) error {
	var in placeBody
	if err := c.BodyParser(&in); err != nil {
		return fail(c, fiber.StatusBadRequest, "malformed JSON body")
	}

	fields := map[string]string{}
	addressID, okID := validate.ID(in.AddressID)
	if !okID {
		fields["address_id"] = "address is required"
	}
	if len(in.Items) == 0 {
		fields["items"] = "at least one item is required"
	}
	for _, l := range in.Items {
		if _, okP := validate.ID(l.ProductID); !okP {
			fields["items"] = "every item needs a product_id"
			break
		}
		if l.Qty < 1 || l.Qty > 100 {
			fields["items"] = "item qty must be between 1 and 100"
			break
		}
	}
	if len(fields) > 0 {
		applog.Security(c, "order.place.fail", map[string]any{"reason": "validation"})
		return failFields(c, fields)
	}

	o, err := h.Orders.Place(currentUser(c), addressID, in.Items)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrBadAddress):
			return fail(c, fiber.StatusBadRequest, "address does not belong to you")
		case errors.Is(err, services.ErrNotFound):
			return fail(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, repos.ErrNoStock):
			applog.Security(c, "order.place.fail", map[string]any{"reason": "stock", "error": err.Error()})
			return fail(c, fiber.StatusConflict, err.Error())
		}
		applog.Error(c, "order.place", err, nil)
		return fail(c, fiber.StatusInternalServerError, "could not place order")
	}

	// stock levels changed; drop cached storefront pages
	h.Cache.InvalidatePrefix("products")
	applog.Audit(c, "order.place", map[string]any{"order_id": o.ID, "total_cents": o.TotalCents})
	return okJSON(c, fiber.StatusCreated, o)
}

func (h *OrderHandler) ListMine(c *fiber.Ctx) error {
	out, err := h.Orders.ListMine(currentUser(c).ID, c.QueryInt("limit", 20), c.QueryInt("offset"))
	if err != nil {
		applog.Error(c, "order.list", err, nil)
		return fail(c, fiber.StatusInternalServerError, "could not load orders")
	}
	return okJSON(c, fiber.StatusOK, out)
}

// ListSold shows orders containing the calling seller's items.
func (h *OrderHandler) ListSold(c *fiber.Ctx) error {
	u := currentUser(c)
	if u.Role != domain.RoleSeller && u.Role != domain.RoleAdmin {
		return fail(c, fiber.StatusForbidden, "seller account required")
	}
	out, err := h.Orders.ListSold(u.ID, c.QueryInt("limit", 20), c.QueryInt("offset"))
	if err != nil {
		applog.Error(c, "order.sold", err, nil)
		return fail(c, fiber.StatusInternalServerError, "could not load orders")
	}
	return okJSON(c, fiber.StatusOK, out)
}

func (h *OrderHandler) Get(c *fiber.Ctx) error {
	id, okID := validate.ID(c.Params("id"))
	if !okID {
		return fail(c, fiber.StatusNotFound, "order not found")
	}
	o, err := h.Orders.Get(currentUser(c), id)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNotFound):
			return fail(c, fiber.StatusNotFound, "order not found")
		case errors.Is(err, services.ErrForbidden):
			applog.Security(c, "access.denied.order", map[string]any{"order_id": id})
			return fail(c, fiber.StatusNotFound, "order not found")
		}
		applog.Error(c, "order.get", err, nil)
		return fail(c, fiber.StatusInternalServerError, "could not load order")
	}
	return okJSON(c, fiber.StatusOK, o)
}

// Cancel stops an order before fulfilment and returns its stock.
func (h *OrderHandler) Cancel(c *fiber.Ctx) error {
	id, okID := validate.ID(c.Params("id"))
	if !okID {
		return fail(c, fiber.StatusNotFound, "order not found")
	}
	o, err := h.Orders.Cancel(c.UserContext(), currentUser(c), id)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNotFound):
			return fail(c, fiber.StatusNotFound, "order not found")
		case errors.Is(err, services.ErrForbidden):
			applog.Security(c, "access.denied.order", map[string]any{"order_id": id})
			return fail(c, fiber.StatusNotFound, "order not found")
		case errors.Is(err, services.ErrNotCancellable):
			return fail(c, fiber.StatusConflict, "order can no longer be cancelled")
		}
		applog.Error(c, "order.cancel", err, nil)
		return fail(c, fiber.StatusInternalServerError, "could not cancel order")
	}

	h.Cache.InvalidatePrefix("products")
	applog.Audit(c, "order.cancel", map[string]any{"order_id": id})
	return okJSON(c, fiber.StatusOK, o)
}
