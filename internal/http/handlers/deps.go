package handlers

import (
	"tradepost/internal/cache"
	"tradepost/internal/config"
	"tradepost/internal/gateway"
	"tradepost/internal/mail"
	"tradepost/internal/repos"
	"tradepost/internal/services"
	"tradepost/internal/uploads"

	"github.com/jmoiron/sqlx"
)

type Deps struct {
	Auth *services.AuthService

	AuthHandler     *AuthHandler
	UserHandler     *UserHandler
	AddressHandler  *AddressHandler
	CategoryHandler *CategoryHandler
	ProductHandler  *ProductHandler
	OrderHandler    *OrderHandler
	PaymentHandler  *PaymentHandler
	WebhookHandler  *WebhookHandler
	AdminHandler    *AdminHandler
}

func NewDeps(db *sqlx.DB, cfg config.Config, store *cache.Store) *Deps {
	userRepo := repos.NewUserRepo(db)
	addrRepo := repos.NewAddressRepo(db)
	catRepo := repos.NewCategoryRepo(db)
	prodRepo := repos.NewProductRepo(db)
	orderRepo := repos.NewOrderRepo(db)
	payRepo := repos.NewPaymentRepo(db)

	gw := gateway.New(cfg.GatewayURL, cfg.GatewaySecret, cfg.GatewayWebhookSecret)
	mailer := mail.New(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom, cfg.PublicBaseURL)
	saver := uploads.New(cfg.MediaDir)

	authSvc := &services.AuthService{Users: userRepo, Mail: mailer, Secret: cfg.TokenSecret, TokenTTL: cfg.TokenTTL}
	addrSvc := services.NewAddressService(addrRepo)
	catalogSvc := services.NewCatalogService(catRepo, prodRepo)
	prodSvc := &services.ProductService{Prods: prodRepo, Cats: catRepo, Media: saver, Currency: cfg.Currency}
	orderSvc := &services.OrderService{
		Orders: orderRepo, Prods: prodRepo, Addrs: addrRepo,
		Payments: payRepo, Gateway: gw, Mail: mailer,
	}
	paySvc := &services.PaymentService{Payments: payRepo, Orders: orderRepo, Users: userRepo, Gateway: gw, Mail: mailer}

	return &Deps{
		Auth:            authSvc,
		AuthHandler:     &AuthHandler{Auth: authSvc, TokenTTL: cfg.TokenTTL},
		UserHandler:     &UserHandler{Auth: authSvc},
		AddressHandler:  &AddressHandler{Addrs: addrSvc},
		CategoryHandler: &CategoryHandler{Catalog: catalogSvc},
		ProductHandler:  &ProductHandler{Catalog: catalogSvc, Products: prodSvc, Cache: store},
		OrderHandler:    &OrderHandler{Orders: orderSvc, Cache: store},
		PaymentHandler:  &PaymentHandler{Payments: paySvc},
		WebhookHandler:  &WebhookHandler{Payments: paySvc, Gateway: gw},
		AdminHandler:    &AdminHandler{Users: userRepo, Orders: orderSvc, Catalog: catalogSvc, Cache: store},
	}
}
