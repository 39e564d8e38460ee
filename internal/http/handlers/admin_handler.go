package handlers

import (
	"errors"

	"tradepost/internal/cache"
	"tradepost/internal/domain"
	applog "tradepost/internal/log"
	"tradepost/internal/reports"
	"tradepost/internal/repos"
	"tradepost/internal/services"
	"tradepost/internal/validate"

	"github.com/gofiber/fiber/v2"
)

// AdminHandler backs the /admin API: account moderation, category
// management, order oversight and reporting. All routes are mounted behind
// RequireAuth + RequireRole(admin).
type AdminHandler struct {
	Users   *repos.UserRepo
	Orders  *services.OrderService
	Catalog *services.CatalogService
	Cache   *cache.Store
}

// ---------- accounts ----------

func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	role := c.Query("role")
	if role != "" && role != domain.RoleBuyer && role != domain.RoleSeller && role != domain.RoleAdmin {
		return fail(c, fiber.StatusBadRequest, "unknown role filter")
	}
	out, err := h.Users.List(role, c.QueryInt("limit", 50), c.QueryInt("offset"))
	if err != nil {
		applog.Error(c, "admin.users.list", err, nil)
		return fail(c, fiber.StatusInternalServerError, "could not load users")
	}
	return okJSON(c, fiber.StatusOK, out)
}

func (h *AdminHandler) loadUser(c *fiber.Ctx) (*domain.User, error) {
	id, okID := validate.ID(c.Params("id"))
	if !okID {
		return nil, fail(c, fiber.StatusNotFound, "user not found")
	}
	u, err := h.Users.ByID(id)
	if err != nil {
		return nil, fail(c, fiber.StatusNotFound, "user not found")
	}
	return u, nil
}

// Suspend locks an account out. Admin accounts cannot suspend each other
// through the API.
func (h *AdminHandler) Suspend(c *fiber.Ctx) error {
	u, ferr := h.loadUser(c)
	if u == nil {
		return ferr
	}
	if u.Role == domain.RoleAdmin {
		applog.Security(c, "admin.suspend.denied", map[string]any{"target": u.ID})
		return fail(c, fiber.StatusForbidden, "admin accounts cannot be suspended")
	}
	if err := h.Users.SetStatus(u.ID, domain.StatusSuspended); err != nil {
		applog.Error(c, "admin.suspend", err, nil)
		return fail(c, fiber.StatusInternalServerError, "could not suspend user")
	}
	applog.Audit(c, "admin.suspend", map[string]any{"target": u.ID})
	return okJSON(c, fiber.StatusOK, fiber.Map{"suspended": u.ID})
}

func (h *AdminHandler) Restore(c *fiber.Ctx) error {
	u, ferr := h.loadUser(c)
	if u == nil {
		return ferr
	}
	if err := h.Users.SetStatus(u.ID, domain.StatusActive); err != nil {
		applog.Error(c, "admin.restore", err, nil)
		return fail(c, fiber.StatusInternalServerError, "could not restore user")
	}
	applog.Audit(c, "admin.restore", map[string]any{"target": u.ID})
	return okJSON(c, fiber.StatusOK, fiber.Map{"restored": u.ID})
}

// ApproveSeller clears a seller to create listings.
func (h *AdminHandler) ApproveSeller(c *fiber.Ctx) error {
	u, ferr := h.loadUser(c)
	if u == nil {
		return ferr
	}
	if u.Role != domain.RoleSeller {
		return fail(c, fiber.StatusBadRequest, "user is not a seller")
	}
	if err := h.Users.ApproveSeller(u.ID); err != nil {
		applog.Error(c, "admin.approve", err, nil)
		return fail(c, fiber.StatusInternalServerError, "could not approve seller")
	}
	applog.Audit(c, "admin.approve", map[string]any{"target": u.ID})
	return okJSON(c, fiber.StatusOK, fiber.Map{"approved": u.ID})
}

// ---------- orders ----------

func (h *AdminHandler) ListOrders(c *fiber.Ctx) error {
	out, err := h.Orders.ListAll(c.Query("status"), c.QueryInt("limit", 50), c.QueryInt("offset"))
	if err != nil {
		applog.Error(c, "admin.orders.list", err, nil)
		return fail(c, fiber.StatusInternalServerError, "could not load orders")
	}
	return okJSON(c, fiber.StatusOK, out)
}

type statusBody struct {
	Status string `json:"status"`
}

// UpdateOrderStatus drives fulfilment (confirmed -> processing -> shipped ->
// delivered). Cancellation goes through the buyer-facing cancel endpoint so
// stock and payments are settled.
func (h *AdminHandler) UpdateOrderStatus(c *fiber.Ctx) error {
	id, okID := validate.ID(c.Params("id"))
	if !okID {
		return fail(c, fiber.StatusNotFound, "order not found")
	}
	var in statusBody
	if err := c.BodyParser(&in); err != nil {
		return fail(c, fiber.StatusBadRequest, "malformed JSON body")
	}

	o, err := h.Orders.UpdateStatus(id, in.Status)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNotFound):
			return fail(c, fiber.StatusNotFound, "order not found")
		case errors.Is(err, services.ErrBadTransition):
			return fail(c, fiber.StatusConflict, err.Error())
		}
		applog.Error(c, "admin.orders.status", err, nil)
		return fail(c, fiber.StatusInternalServerError, "could not update order")
	}
	applog.Audit(c, "admin.orders.status", map[string]any{"order_id": id, "status": in.Status})
	return okJSON(c, fiber.StatusOK, o)
}

// ---------- categories ----------

type categoryBody struct {
	Slug     string `json:"slug"`
	Name     string `json:"name"`
	ParentID string `json:"parent_id"`
}

func (h *AdminHandler) parseCategory(c *fiber.Ctx) (categoryBody, map[string]string, error) {
	var in categoryBody
	if err := c.BodyParser(&in); err != nil {
		return in, nil, err
	}
	fields := map[string]string{}
	if slug, okV := validate.Slug(in.Slug); okV {
		in.Slug = slug
	} else {
		fields["slug"] = "lowercase letters, digits and dashes only"
	}
	if name, okV := validate.Name(in.Name); okV {
		in.Name = name
	} else {
		fields["name"] = "name is required (max 120 chars)"
	}
	return in, fields, nil
}

func (h *AdminHandler) CreateCategory(c *fiber.Ctx) error {
	in, fields, err := h.parseCategory(c)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "malformed JSON body")
	}
	if len(fields) > 0 {
		return failFields(c, fields)
	}

	cat, err := h.Catalog.CreateCategory(in.Slug, in.Name, in.ParentID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSlugTaken):
			return fail(c, fiber.StatusConflict, "slug already in use")
		case errors.Is(err, services.ErrBadParent):
			return fail(c, fiber.StatusBadRequest, "parent category does not exist")
		}
		applog.Error(c, "admin.category.create", err, nil)
		return fail(c, fiber.StatusInternalServerError, "could not create category")
	}

	h.Cache.InvalidatePrefix("categories")
	applog.Audit(c, "admin.category.create", map[string]any{"category_id": cat.ID})
	return okJSON(c, fiber.StatusCreated, cat)
}

func (h *AdminHandler) UpdateCategory(c *fiber.Ctx) error {
	id, okID := validate.ID(c.Params("id"))
	if !okID {
		return fail(c, fiber.StatusNotFound, "category not found")
	}
	in, fields, err := h.parseCategory(c)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "malformed JSON body")
	}
	if len(fields) > 0 {
		return failFields(c, fields)
	}

	cat, err := h.Catalog.UpdateCategory(id, in.Slug, in.Name, in.ParentID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNotFound):
			return fail(c, fiber.StatusNotFound, "category not found")
		case errors.Is(err, services.ErrSlugTaken):
			return fail(c, fiber.StatusConflict, "slug already in use")
		case errors.Is(err, services.ErrBadParent):
			return fail(c, fiber.StatusBadRequest, "parent category does not exist")
		}
		applog.Error(c, "admin.category.update", err, nil)
		return fail(c, fiber.StatusInternalServerError, "could not update category")
	}

	h.Cache.InvalidatePrefix("categories")
	applog.Audit(c, "admin.category.update", map[string]any{"category_id": id})
	return okJSON(c, fiber.StatusOK, cat)
}

func (h *AdminHandler) DeleteCategory(c *fiber.Ctx) error {
	id, okID := validate.ID(c.Params("id"))
	if !okID {
		return fail(c, fiber.StatusNotFound, "category not found")
	}
	if err := h.Catalog.DeleteCategory(id); err != nil {
		switch {
		case errors.Is(err, services.ErrNotFound):
			return fail(c, fiber.StatusNotFound, "category not found")
		case errors.Is(err, services.ErrCategoryInUse):
			return fail(c, fiber.StatusConflict, "category still has products")
		}
		applog.Error(c, "admin.category.delete", err, nil)
		return fail(c, fiber.StatusInternalServerError, "could not delete category")
	}

	h.Cache.InvalidatePrefix("categories")
	applog.Audit(c, "admin.category.delete", map[string]any{"category_id": id})
	return okJSON(c, fiber.StatusOK, fiber.Map{"deleted": id})
}

// ---------- reports ----------

// OrdersReport streams the order book as a spreadsheet download.
func (h *AdminHandler) OrdersReport(c *fiber.Ctx) error {
	orders, err := h.Orders.ListAll(c.Query("status"), c.QueryInt("limit", 1000), 0)
	if err != nil {
		applog.Error(c, "admin.report.orders", err, nil)
		return fail(c, fiber.StatusInternalServerError, "could not load orders")
	}

	file, err := reports.OrdersSheet(orders)
	if err != nil {
		applog.Error(c, "admin.report.orders", err, nil)
		return fail(c, fiber.StatusInternalServerError, "could not build report")
	}

	c.Set(fiber.HeaderContentDisposition, `attachment; filename=orders.xlsx`)
	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := file.Write(c.Response().BodyWriter()); err != nil {
		applog.Error(c, "admin.report.orders", err, nil)
		return fail(c, fiber.StatusInternalServerError, "could not write report")
	}
	applog.Audit(c, "admin.report.orders", map[string]any{"rows": len(orders)})
	return nil
}
