package main

import (
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"tradepost/internal/cache"
	"tradepost/internal/config"
	"tradepost/internal/domain"
	"tradepost/internal/http/handlers"
	applog "tradepost/internal/log"
	"tradepost/internal/repos"
)

func main() {
	cfg := config.Load()

	// Optional file logging
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			log.Printf("[warn] could not open log file %s: %v", cfg.LogFile, err)
		} else {
			mw := io.MultiWriter(os.Stdout, f)
			log.SetOutput(mw)
		}
	}

	db, err := repos.OpenDB(cfg.DBDSN)
	if err != nil {
		log.Fatal(err)
	}
	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		if err := repos.EnsureAdmin(db, cfg.AdminEmail, "Admin", cfg.AdminPassword); err != nil {
			log.Fatal(err)
		}
	}

	store := cache.New(cfg.CacheTTL)
	deps := handlers.NewDeps(db, cfg, store)

	app := fiber.New(fiber.Config{
		BodyLimit: 32 << 20, // multipart image batches
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) && fe.Code != fiber.StatusInternalServerError {
				return c.Status(fe.Code).JSON(fiber.Map{"success": false, "message": fe.Message})
			}
			applog.Error(c, "server.error", err, nil)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": "something went wrong, please try again",
			})
		},
	})

	// ---------- Middlewares ----------
	app.Use(requestid.New())
	app.Use(logger.New())
	app.Use(helmet.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigin,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Request-ID",
		AllowCredentials: cfg.CORSOrigin != "*",
	}))
	app.Use(handlers.OptionalAuth(deps.Auth))
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			p := string(c.Request().URI().Path())
			// media is static, webhooks burst on provider retries
			return strings.HasPrefix(p, "/media/") || strings.HasPrefix(p, "/api/v1/webhooks/") || p == "/healthz"
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.global.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"success": false, "message": "rate limit exceeded, retry soon"})
		},
	}))

	// ---------- Media ----------
	mediaDir := cfg.MediaDir
	if !filepath.IsAbs(mediaDir) {
		if abs, err := filepath.Abs(mediaDir); err == nil {
			mediaDir = abs
		}
	}
	log.Printf("[static] /media -> %s", mediaDir)
	app.Get("/media/*", handlers.Media(mediaDir))

	// ---------- API ----------
	api := app.Group("/api/v1")
	requireAuth := handlers.RequireAuth(deps.Auth)

	// Auth
	loginLimiter := limiter.New(limiter.Config{
		Max:        5,
		Expiration: 10 * time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.login.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"success": false, "message": "too many attempts, try again later"})
		},
	})
	api.Post("/auth/register", deps.AuthHandler.Register)
	api.Post("/auth/login", loginLimiter, deps.AuthHandler.Login)
	api.Post("/auth/logout", deps.AuthHandler.Logout)
	api.Get("/auth/verify", deps.AuthHandler.Verify)
	api.Get("/auth/me", requireAuth, deps.AuthHandler.Me)

	// Profile & addresses
	api.Patch("/users/me", requireAuth, deps.UserHandler.UpdateMe)
	api.Put("/users/me/password", requireAuth, deps.UserHandler.ChangePassword)
	addrs := api.Group("/addresses", requireAuth)
	addrs.Get("/", deps.AddressHandler.List)
	addrs.Post("/", deps.AddressHandler.Create)
	addrs.Get("/:id", deps.AddressHandler.Get)
	addrs.Put("/:id", deps.AddressHandler.Update)
	addrs.Delete("/:id", deps.AddressHandler.Delete)
	addrs.Post("/:id/default", deps.AddressHandler.SetDefault)

	// Catalog (public reads cached for anonymous traffic)
	api.Get("/categories", cache.Middleware(store, "categories"), deps.CategoryHandler.List)
	api.Get("/categories/:id", cache.Middleware(store, "categories"), deps.CategoryHandler.Get)

	searchLimiter := limiter.New(limiter.Config{
		Max:        30,
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() + "|search"
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.search.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"success": false, "message": "rate limit exceeded, retry soon"})
		},
	})
	api.Get("/products", searchLimiter, cache.Middleware(store, "products"), deps.ProductHandler.List)
	api.Get("/products/mine", requireAuth, deps.ProductHandler.ListMine)
	api.Get("/products/:id", cache.Middleware(store, "products"), deps.ProductHandler.Get)

	// Seller listing management
	uploadLimiter := limiter.New(limiter.Config{
		Max:        10,
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() + "|upload"
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.upload.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"success": false, "message": "rate limit exceeded, retry soon"})
		},
	})
	api.Post("/products", requireAuth, deps.ProductHandler.Create)
	api.Put("/products/:id", requireAuth, deps.ProductHandler.Update)
	api.Put("/products/:id/stock", requireAuth, deps.ProductHandler.SetStock)
	api.Delete("/products/:id", requireAuth, deps.ProductHandler.Delete)
	api.Post("/products/:id/images", requireAuth, uploadLimiter, deps.ProductHandler.UploadImages)

	// Orders
	orders := api.Group("/orders", requireAuth)
	orders.Post("/", deps.OrderHandler.Place)
	orders.Get("/", deps.OrderHandler.ListMine)
	orders.Get("/sold", deps.OrderHandler.ListSold)
	orders.Get("/:id", deps.OrderHandler.Get)
	orders.Post("/:id/cancel", deps.OrderHandler.Cancel)

	// Payments
	payLimiter := limiter.New(limiter.Config{
		Max:        15,
		Expiration: 30 * time.Second,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() + "|pay"
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.payments.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"success": false, "message": "rate limit exceeded, retry soon"})
		},
	})
	payments := api.Group("/payments", requireAuth, payLimiter)
	payments.Post("/", deps.PaymentHandler.Initialize)
	payments.Get("/", deps.PaymentHandler.List)
	payments.Get("/:id", deps.PaymentHandler.Get)
	payments.Post("/:id/cancel", deps.PaymentHandler.Cancel)

	// Provider webhooks (signature auth, no session)
	api.Post("/webhooks/payments", deps.WebhookHandler.PaymentEvent)

	// Admin
	admin := api.Group("/admin", requireAuth, handlers.RequireRole(domain.RoleAdmin))
	admin.Get("/users", deps.AdminHandler.ListUsers)
	admin.Post("/users/:id/suspend", deps.AdminHandler.Suspend)
	admin.Post("/users/:id/restore", deps.AdminHandler.Restore)
	admin.Post("/users/:id/approve-seller", deps.AdminHandler.ApproveSeller)
	admin.Get("/orders", deps.AdminHandler.ListOrders)
	admin.Post("/orders/:id/status", deps.AdminHandler.UpdateOrderStatus)
	admin.Post("/categories", deps.AdminHandler.CreateCategory)
	admin.Put("/categories/:id", deps.AdminHandler.UpdateCategory)
	admin.Delete("/categories/:id", deps.AdminHandler.DeleteCategory)
	admin.Get("/reports/orders.xlsx", deps.AdminHandler.OrdersReport)

	// Health & 404
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "message": "route not found"})
	})

	log.Fatal(app.Listen(":" + cfg.Port))
}
