package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	defaultFallbackOrigin = "https://le-bar-a-boeuf.github.io"
	defaultCurrency       = "EUR"
	defaultOrderTopic     = "order.paid"
)

var ErrMissingConfig = errors.New("missing configuration")

type Config struct {
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	AppPort    string
	AppEnv     string

	StripeSecretKey     string
	StripeWebhookSecret string

	// SiteURL is the public site origin used when the request carries no usable Referer.
	SiteURL        string
	FallbackOrigin string
	Currency       string
	AllowedOrigin  string

	// TrustProxyHeaders takes the client address from X-Forwarded-For and
	// X-Real-IP. Only set it behind a proxy that overwrites those headers.
	TrustProxyHeaders bool

	KafkaBrokers []string
	KafkaTopic   string
	OTLPEndpoint string
}

func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		DBHost:              os.Getenv("DB_HOST"),
		DBUser:              os.Getenv("DB_USER"),
		DBPassword:          os.Getenv("DB_PASSWORD"),
		DBName:              os.Getenv("DB_NAME"),
		DBPort:              os.Getenv("DB_PORT"),
		AppPort:             getEnv("APP_PORT", "8080"),
		AppEnv:              os.Getenv("APP_ENV"),
		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		SiteURL:             strings.TrimRight(os.Getenv("SITE_URL"), "/"),
		FallbackOrigin:      strings.TrimRight(getEnv("FALLBACK_SITE_ORIGIN", defaultFallbackOrigin), "/"),
		Currency:            strings.ToUpper(getEnv("CURRENCY", defaultCurrency)),
		AllowedOrigin:       getEnv("CORS_ALLOWED_ORIGIN", "*"),
		TrustProxyHeaders:   getBool("TRUST_PROXY_HEADERS"),
		KafkaBrokers:        splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:          getEnv("KAFKA_ORDER_TOPIC", defaultOrderTopic),
		OTLPEndpoint:        os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if cfg.DBHost == "" {
		log.Fatal("Environment variables not loaded properly")
	}

	return cfg
}

// CheckoutReady reports which secrets the checkout flow is missing, if any.
func (c *Config) CheckoutReady() error {
	return missing(map[string]string{
		"STRIPE_SECRET_KEY": c.StripeSecretKey,
		"DB_HOST":           c.DBHost,
	})
}

// WebhookReady reports which secrets the webhook flow is missing, if any.
func (c *Config) WebhookReady() error {
	return missing(map[string]string{
		"STRIPE_SECRET_KEY":     c.StripeSecretKey,
		"STRIPE_WEBHOOK_SECRET": c.StripeWebhookSecret,
		"DB_HOST":               c.DBHost,
	})
}

func missing(values map[string]string) error {
	var names []string
	for _, key := range []string{"STRIPE_SECRET_KEY", "STRIPE_WEBHOOK_SECRET", "DB_HOST"} {
		if v, ok := values[key]; ok && v == "" {
			names = append(names, key)
		}
	}
	if len(names) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrMissingConfig, strings.Join(names, ", "))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
