package handlers

import (
	"errors"

	"tradepost/internal/cache"
	applog "tradepost/internal/log"
	"tradepost/internal/repos"
	"tradepost/internal/services"
	"tradepost/internal/uploads"
	"tradepost/internal/validate"

	"github.com/gofiber/fiber/v2"
)

type ProductHandler struct {
	Catalog  *services.CatalogService
	Products *services.ProductService
	Cache    *cache.Store
}

// List serves the public storefront with search, filters and pagination.
func (h *ProductHandler) List(c *fiber.Ctx) error {
	var q string
	if raw := c.Query("q"); raw != "" {
		var okQ bool
		q, okQ = validate.Q(raw)
		if !okQ {
			return fail(c, fiber.StatusBadRequest, "invalid search term")
		}
	}
	f := repos.Filter{
		Q:        q,
		Sort:     c.Query("sort"),
		MinCents: int64(c.QueryInt("min_cents")),
		MaxCents: int64(c.QueryInt("max_cents")),
		Limit:    c.QueryInt("limit", 20),
		Offset:   c.QueryInt("offset"),
	}
	if cat := c.Query("category_id"); cat != "" {
		id, okID := validate.ID(cat)
		if !okID {
			return fail(c, fiber.StatusBadRequest, "invalid category id")
		}
		f.CategoryID = id
	}
	if seller := c.Query("seller_id"); seller != "" {
		id, okID := validate.ID(seller)
		if !okID {
			return fail(c, fiber.StatusBadRequest, "invalid seller id")
		}
		f.SellerID = id
	}

	out, err := h.Catalog.ListProducts(f)
	if err != nil {
		applog.Error(c, "product.list", err, nil)
		return fail(c, fiber.StatusInternalServerError, "could not load products")
	}
	return okJSON(c, fiber.StatusOK, out)
}

func (h *ProductHandler) Get(c *fiber.Ctx) error {
	id, okID := validate.ID(c.Params("id"))
	if !okID {
		return fail(c, fiber.StatusNotFound, "product not found")
	}
	p, err := h.Catalog.GetProduct(id, currentUser(c))
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return fail(c, fiber.StatusNotFound, "product not found")
		}
		applog.Error(c, "product.get", err, nil)
		return fail(c, fiber.StatusInternalServerError, "could not load product")
	}
	return okJSON(c, fiber.StatusOK, p)
}

// ListMine shows the caller's own catalog, inactive listings included.
func (h *ProductHandler) ListMine(c *fiber.Ctx) error {
	out, err := h.Products.ListMine(currentUser(c).ID, c.QueryInt("limit", 20), c.QueryInt("offset"))
	if err != nil {
		applog.Error(c, "product.mine", err, nil)
		return fail(c, fiber.StatusInternalServerError, "could not load products")
	}
	return okJSON(c, fiber.StatusOK, out)
}

func validListing(in *services.ListingInput, creating bool) map[string]string {
	fields := map[string]string{}
	if creating || in.Title != "" {
		title, okV := validate.Name(in.Title)
		if !okV {
			fields["title"] = "title is required (max 120 chars)"
		} else {
			in.Title = title
		}
	}
	if creating && in.CategoryID == "" {
		fields["category_id"] = "category is required"
	}
	if creating && in.PriceCents <= 0 {
		fields["price_cents"] = "price must be a positive amount in minor units"
	}
	if in.PriceCents < 0 {
		fields["price_cents"] = "price must not be negative"
	}
	if in.Stock < 0 {
		fields["stock"] = "stock must not be negative"
	}
	return fields
}

func (h *ProductHandler) Create(c *fiber.Ctx) error {
	var in services.ListingInput
	if err := c.BodyParser(&in); err != nil {
		return fail(c, fiber.StatusBadRequest, "malformed JSON body")
	}
	if fields := validListing(&in, true); len(fields) > 0 {
		return failFields(c, fields)
	}

	p, err := h.Products.CreateListing(currentUser(c), in)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSellerOnly):
			applog.Security(c, "product.create.denied", nil)
			return fail(c, fiber.StatusForbidden, "approved seller account required")
		case errors.Is(err, services.ErrBadCategory):
			return fail(c, fiber.StatusBadRequest, "category does not exist")
		}
		applog.Error(c, "product.create", err, nil)
		return fail(c, fiber.StatusInternalServerError, "could not create product")
	}
	h.Cache.InvalidatePrefix("products")
	applog.Audit(c, "product.create", map[string]any{"product_id": p.ID})
	return okJSON(c, fiber.StatusCreated, p)
}

func (h *ProductHandler) Update(c *fiber.Ctx) error {
	id, okID := validate.ID(c.Params("id"))
	if !okID {
		return fail(c, fiber.StatusNotFound, "product not found")
	}
	var in services.ListingInput
	if err := c.BodyParser(&in); err != nil {
		return fail(c, fiber.StatusBadRequest, "malformed JSON body")
	}
	if fields := validListing(&in, false); len(fields) > 0 {
		return failFields(c, fields)
	}

	p, err := h.Products.UpdateListing(currentUser(c), id, in)
	if err != nil {
		return h.writeErr(c, "product.update", err)
	}
	h.Cache.InvalidatePrefix("products")
	applog.Audit(c, "product.update", map[string]any{"product_id": id})
	return okJSON(c, fiber.StatusOK, p)
}

type stockBody struct {
	Stock int `json:"stock"`
}

func (h *ProductHandler) SetStock(c *fiber.Ctx) error {
	id, okID := validate.ID(c.Params("id"))
	if !okID {
		return fail(c, fiber.StatusNotFound, "product not found")
	}
	var in stockBody
	if err := c.BodyParser(&in); err != nil {
		return fail(c, fiber.StatusBadRequest, "malformed JSON body")
	}
	if in.Stock < 0 {
		return failFields(c, map[string]string{"stock": "stock must not be negative"})
	}

	p, err := h.Products.SetStock(currentUser(c), id, in.Stock)
	if err != nil {
		return h.writeErr(c, "product.stock", err)
	}
	h.Cache.InvalidatePrefix("products")
	applog.Audit(c, "product.stock", map[string]any{"product_id": id, "stock": in.Stock})
	return okJSON(c, fiber.StatusOK, p)
}

// Delete takes a listing off the storefront; order history keeps its
// snapshot rows.
func (h *ProductHandler) Delete(c *fiber.Ctx) error {
	id, okID := validate.ID(c.Params("id"))
	if !okID {
		return fail(c, fiber.StatusNotFound, "product not found")
	}
	if err := h.Products.Deactivate(currentUser(c), id); err != nil {
		return h.writeErr(c, "product.delete", err)
	}
	h.Cache.InvalidatePrefix("products")
	applog.Audit(c, "product.delete", map[string]any{"product_id": id})
	return okJSON(c, fiber.StatusOK, fiber.Map{"deactivated": id})
}

// UploadImages accepts multipart files under the "images" field.
func (h *ProductHandler) UploadImages(c *fiber.Ctx) error {
	id, okID := validate.ID(c.Params("id"))
	if !okID {
		return fail(c, fiber.StatusNotFound, "product not found")
	}
	form, err := c.MultipartForm()
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "multipart form required")
	}
	files := form.File["images"]
	if len(files) == 0 {
		return failFields(c, map[string]string{"images": "at least one image file is required"})
	}

	p, err := h.Products.AttachImages(currentUser(c), id, files)
	if err != nil {
		switch {
		case errors.Is(err, uploads.ErrTooLarge), errors.Is(err, uploads.ErrBadType),
			errors.Is(err, services.ErrTooManyImgs):
			return fail(c, fiber.StatusBadRequest, err.Error())
		}
		return h.writeErr(c, "product.images", err)
	}
	h.Cache.InvalidatePrefix("products")
	applog.Audit(c, "product.images", map[string]any{"product_id": id, "count": len(files)})
	return okJSON(c, fiber.StatusOK, p)
}

func (h *ProductHandler) writeErr(c *fiber.Ctx, action string, err error) error {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return fail(c, fiber.StatusNotFound, "product not found")
	case errors.Is(err, services.ErrForbidden):
		applog.Security(c, action+".denied", nil)
		return fail(c, fiber.StatusForbidden, "you do not manage this listing")
	case errors.Is(err, services.ErrBadCategory):
		return fail(c, fiber.StatusBadRequest, "category does not exist")
	}
	applog.Error(c, action, err, nil)
	return fail(c, fiber.StatusInternalServerError, "could not update product")
}
