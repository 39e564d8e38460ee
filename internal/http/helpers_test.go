package handlers_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"tradepost/internal/cache"
	"tradepost/internal/config"
	"tradepost/internal/domain"
	"tradepost/internal/gateway"
	"tradepost/internal/http/handlers"
	applog "tradepost/internal/log"
	"tradepost/internal/repos"
)

// testPassword is the known password of every account the helpers seed.
const testPassword = "Passw0rd!"

type env struct {
	app   *fiber.App
	db    *sqlx.DB
	deps  *handlers.Deps
	store *cache.Store
	gw    *gateway.Client
}

// newEnv wires the full API against an in-memory database, mirroring the
// server wiring minus rate limiters (those get dedicated tests with their
// own apps).
func newEnv(t *testing.T) *env {
	t.Helper()

	db, err := repos.OpenDB(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	// a second pooled connection would see its own empty :memory: database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	cfg := config.Config{
		MediaDir:             t.TempDir(),
		TokenSecret:          "unit-test-secret",
		TokenTTL:             time.Hour,
		Currency:             "USD",
		GatewayURL:           "http://127.0.0.1:1", // unreachable unless a test stubs it
		GatewaySecret:        "sk-test",
		GatewayWebhookSecret: "whsec-test",
	}
	store := cache.New(time.Minute)
	t.Cleanup(store.Stop)

	deps := handlers.NewDeps(db, cfg, store)

	app := fiber.New(fiber.Config{
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
	app.Use(handlers.OptionalAuth(deps.Auth))
	app.Get("/media/*", handlers.Media(cfg.MediaDir))

	api := app.Group("/api/v1")
	requireAuth := handlers.RequireAuth(deps.Auth)

	api.Post("/auth/register", deps.AuthHandler.Register)
	api.Post("/auth/login", deps.AuthHandler.Login)
	api.Post("/auth/logout", deps.AuthHandler.Logout)
	api.Get("/auth/verify", deps.AuthHandler.Verify)
	api.Get("/auth/me", requireAuth, deps.AuthHandler.Me)

	api.Patch("/users/me", requireAuth, deps.UserHandler.UpdateMe)
	api.Put("/users/me/password", requireAuth, deps.UserHandler.ChangePassword)
	addrs := api.Group("/addresses", requireAuth)
	addrs.Get("/", deps.AddressHandler.List)
	addrs.Post("/", deps.AddressHandler.Create)
	addrs.Get("/:id", deps.AddressHandler.Get)
	addrs.Put("/:id", deps.AddressHandler.Update)
	addrs.Delete("/:id", deps.AddressHandler.Delete)
	addrs.Post("/:id/default", deps.AddressHandler.SetDefault)

	api.Get("/categories", cache.Middleware(store, "categories"), deps.CategoryHandler.List)
	api.Get("/categories/:id", cache.Middleware(store, "categories"), deps.CategoryHandler.Get)

	api.Get("/products", cache.Middleware(store, "products"), deps.ProductHandler.List)
	api.Get("/products/mine", requireAuth, deps.ProductHandler.ListMine)
	api.Get("/products/:id", cache.Middleware(store, "products"), deps.ProductHandler.Get)
	api.Post("/products", requireAuth, deps.ProductHandler.Create)
	api.Put("/products/:id", requireAuth, deps.ProductHandler.Update)
	api.Put("/products/:id/stock", requireAuth, deps.ProductHandler.SetStock)
	api.Delete("/products/:id", requireAuth, deps.ProductHandler.Delete)
	api.Post("/products/:id/images", requireAuth, deps.ProductHandler.UploadImages)

	orders := api.Group("/orders", requireAuth)
	orders.Post("/", deps.OrderHandler.Place)
	orders.Get("/", deps.OrderHandler.ListMine)
	orders.Get("/sold", deps.OrderHandler.ListSold)
	orders.Get("/:id", deps.OrderHandler.Get)
	orders.Post("/:id/cancel", deps.OrderHandler.Cancel)

	payments := api.Group("/payments", requireAuth)
	payments.Post("/", deps.PaymentHandler.Initialize)
	payments.Get("/", deps.PaymentHandler.List)
	payments.Get("/:id", deps.PaymentHandler.Get)
	payments.Post("/:id/cancel", deps.PaymentHandler.Cancel)

	api.Post("/webhooks/payments", deps.WebhookHandler.PaymentEvent)

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

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "message": "route not found"})
	})

	return &env{app: app, db: db, deps: deps, store: store, gw: deps.WebhookHandler.Gateway}
}

// ---------- seeding ----------

func seedUser(t *testing.T, e *env, email, role string) *domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	u := &domain.User{
		ID:             "u-" + strings.SplitN(email, "@", 2)[0],
		Email:          email,
		Name:           "Test " + role,
		Hash:           string(hash),
		Role:           role,
		Status:         domain.StatusActive,
		EmailVerified:  true,
		SellerApproved: role == domain.RoleSeller,
	}
	if err := repos.NewUserRepo(e.db).Create(u); err != nil {
		t.Fatalf("seed user %s: %v", email, err)
	}
	return u
}

func seedAddress(t *testing.T, e *env, userID string) domain.Address {
	t.Helper()
	a := domain.Address{
		ID:         "addr-" + userID,
		UserID:     userID,
		Recipient:  "Test Recipient",
		Line1:      "1 Main St",
		City:       "College Park",
		PostalCode: "20742",
		Country:    "US",
	}
	if err := repos.NewAddressRepo(e.db).Create(&a); err != nil {
		t.Fatalf("seed address: %v", err)
	}
	return a
}

var productSeq atomic.Int64

func seedProduct(t *testing.T, e *env, sellerID, title string, priceCents int64, stock int) domain.Product {
	t.Helper()
	p := domain.Product{
		ID:         fmt.Sprintf("prod-%d", productSeq.Add(1)),
		SellerID:   sellerID,
		CategoryID: "cat-electronics",
		Title:      title,
		PriceCents: priceCents,
		Currency:   "USD",
		Stock:      stock,
		Active:     true,
	}
	if err := repos.NewProductRepo(e.db).Create(&p); err != nil {
		t.Fatalf("seed product %s: %v", title, err)
	}
	return p
}

// ---------- requests ----------

func jsonReq(method, target, body, token string) *http.Request {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func do(t *testing.T, e *env, req *http.Request) *http.Response {
	t.Helper()
	resp, err := e.app.Test(req, 5000)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	return resp
}

type envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields"`
	Data    json.RawMessage   `json:"data"`
}

func decode(t *testing.T, resp *http.Response) envelope {
	t.Helper()
	defer resp.Body.Close()
	var ev envelope
	if err := json.NewDecoder(resp.Body).Decode(&ev); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return ev
}

func dataInto(t *testing.T, ev envelope, out any) {
	t.Helper()
	if err := json.Unmarshal(ev.Data, out); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

// login authenticates a seeded account and returns its bearer token.
func login(t *testing.T, e *env, email string) string {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":%q}`, email, testPassword)
	resp := do(t, e, jsonReq("POST", "/api/v1/auth/login", body, ""))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s: status %d", email, resp.StatusCode)
	}
	var out struct {
		Token string `json:"token"`
	}
	dataInto(t, decode(t, resp), &out)
	if out.Token == "" {
		t.Fatalf("login %s: empty token", email)
	}
	return out.Token
}

func extractCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// stubGateway points the shared provider client at a local fake that accepts
// every checkout and cancel call. Returned references are unique.
func stubGateway(t *testing.T, e *env) *httptest.Server {
	t.Helper()
	var seq atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/checkout/init":
			ref := fmt.Sprintf("ch_%d", seq.Add(1))
			fmt.Fprintf(w, `{"reference":%q,"checkout_url":"https://pay.test/%s"}`, ref, ref)
		case "/checkout/cancel":
			fmt.Fprint(w, `{}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	e.gw.BaseURL = srv.URL
	t.Cleanup(srv.Close)
	return srv
}

// ---------- log capture ----------

type logEntry struct {
	Level  string         `json:"level"`
	Action string         `json:"action"`
	Fields map[string]any `json:"fields"`
}

type lockedWriter struct {
	w  *bytes.Buffer
	mu *sync.Mutex
}

func (lw *lockedWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.w.Write(p)
}

// captureLogs runs fn with the standard logger redirected and returns the
// structured entries it produced.
func captureLogs(t *testing.T, fn func()) []logEntry {
	t.Helper()
	var buf bytes.Buffer
	var mu sync.Mutex
	oldW := log.Writer()
	oldFlags := log.Flags()
	log.SetOutput(&lockedWriter{w: &buf, mu: &mu})
	log.SetFlags(0) // remove timestamps to make JSON parseable
	defer func() {
		log.SetOutput(oldW)
		log.SetFlags(oldFlags)
	}()

	fn()

	var entries []logEntry
	mu.Lock()
	lines := buf.String()
	mu.Unlock()
	for _, line := range strings.Split(strings.TrimSpace(lines), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var e logEntry
		if err := json.Unmarshal([]byte(line), &e); err == nil {
			entries = append(entries, e)
		}
	}
	return entries
}

func hasAction(entries []logEntry, action string) bool {
	for _, e := range entries {
		if e.Action == action {
			return true
		}
	}
	return false
}
