package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          string
	DBDSN         string
	MediaDir      string
	LogFile       string
	PublicBaseURL string
	CORSOrigin    string

	TokenSecret string
	TokenTTL    time.Duration

	CacheTTL time.Duration

	Currency string

	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string
	MailFrom string

	GatewayURL           string
	GatewaySecret        string
	GatewayWebhookSecret string

	AdminEmail    string
	AdminPassword string
}

func Load() Config {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := Config{
		Port:          getenv("PORT", "8080"),
		DBDSN:         getenv("DB_DSN", "tradepost.db"),
		MediaDir:      getenv("MEDIA_DIR", "./media"),
		LogFile:       os.Getenv("LOG_FILE"),
		PublicBaseURL: getenv("PUBLIC_BASE_URL", "http://localhost:8080"),
		CORSOrigin:    getenv("CORS_ORIGIN", "*"),

		TokenSecret: getenv("TOKEN_SECRET", "dev-only-secret-change-me"),
		TokenTTL:    getdur("TOKEN_TTL", 24*time.Hour),

		CacheTTL: getdur("CACHE_TTL", 60*time.Second),

		Currency: getenv("CURRENCY", "USD"),

		SMTPHost: os.Getenv("SMTP_HOST"),
		SMTPPort: getenv("SMTP_PORT", "587"),
		SMTPUser: os.Getenv("SMTP_USER"),
		SMTPPass: os.Getenv("SMTP_PASS"),
		MailFrom: getenv("MAIL_FROM", "noreply@tradepost.local"),

		GatewayURL:           getenv("GATEWAY_BASE_URL", "https://gateway.example.com/v1"),
		GatewaySecret:        os.Getenv("GATEWAY_SECRET"),
		GatewayWebhookSecret: os.Getenv("GATEWAY_WEBHOOK_SECRET"),

		AdminEmail:    os.Getenv("ADMIN_EMAIL"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
	}

	log.Printf("[config] PORT=%s DB_DSN=%s MEDIA_DIR=%s CACHE_TTL=%s CORS_ORIGIN=%s",
		cfg.Port, cfg.DBDSN, cfg.MediaDir, cfg.CacheTTL, cfg.CORSOrigin)
	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getdur(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("[config] bad duration %s=%q, using %s", key, v, def)
		return def
	}
	return d
}
