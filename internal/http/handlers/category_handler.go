package handlers

import (
	"errors"

	applog "tradepost/internal/log"
	"tradepost/internal/services"
	"tradepost/internal/validate"

	"github.com/gofiber/fiber/v2"
)

type CategoryHandler struct {
	Catalog *services.CatalogService
}

func (h *CategoryHandler) List(c *fiber.Ctx) error {
	cats, err := h.Catalog.ListCategories()
	if err != nil {
		applog.Error(c, "category.list", err, nil)
		return fail(c, fiber.StatusInternalServerError, "could not load categories")
	}
	return okJSON(c, fiber.StatusOK, cats)
}

func (h *CategoryHandler) Get(c *fiber.Ctx) error {
	id, okID := validate.ID(c.Params("id"))
	if !okID {
		return fail(c, fiber.StatusNotFound, "category not found")
	}
	cat, err := h.Catalog.GetCategory(id)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return fail(c, fiber.StatusNotFound, "category not found")
		}
		applog.Error(c, "category.get", err, nil)
		return fail(c, fiber.StatusInternalServerError, "could not load category")
	}
	return okJSON(c, fiber.StatusOK, cat)
}
