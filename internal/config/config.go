package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Module provides the application configuration.
var Module = fx.Provide(Load)

// Config holds application configuration.
//
// Provider credentials are allowed to be empty at startup; requests that
// need a missing credential fail individually instead of blocking boot.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	BaseURL     string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Stripe      StripeConfig
	MercadoPago MercadoPagoConfig

	Batches []BatchConfig
	Splits  []SplitConfig

	Email EmailConfig

	RateLimit RateLimitConfig
}

type StripeConfig struct {
	APIKey        string
	PriceID       string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
}

type MercadoPagoConfig struct {
	AccessToken     string
	WebhookSecret   string
	NotificationURL string
}

// BatchConfig describes one limited-quantity sales batch.
type BatchConfig struct {
	ID       string
	Capacity int64
	Price    int64
	Currency string
}

// SplitConfig is one revenue-sharing party and its percentage share.
type SplitConfig struct {
	Party   string
	Percent int
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
}

type RateLimitConfig struct {
	Enabled       bool
	CheckoutRate  float64
	CheckoutBurst int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "funnel"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		BaseURL:     strings.TrimRight(getenv("BASE_URL", "http://localhost:8080"), "/"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "funnel"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 2),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 10),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),

		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       getenvInt("REDIS_DB", 0),

		Stripe: StripeConfig{
			APIKey:        strings.TrimSpace(getenv("STRIPE_API_KEY", "")),
			PriceID:       strings.TrimSpace(getenv("STRIPE_PRICE_ID", "")),
			WebhookSecret: strings.TrimSpace(getenv("STRIPE_WEBHOOK_SECRET", "")),
			SuccessURL:    getenv("STRIPE_SUCCESS_URL", ""),
			CancelURL:     getenv("STRIPE_CANCEL_URL", ""),
		},
		MercadoPago: MercadoPagoConfig{
			AccessToken:     strings.TrimSpace(getenv("MP_ACCESS_TOKEN", "")),
			WebhookSecret:   strings.TrimSpace(getenv("MP_WEBHOOK_SECRET", "")),
			NotificationURL: getenv("MP_NOTIFICATION_URL", ""),
		},

		Batches: parseBatches(getenv("SALES_BATCHES", "turma-1:30:49700:BRL")),
		Splits:  parseSplits(getenv("REVENUE_SPLITS", "")),

		Email: EmailConfig{
			SMTPHost:     getenv("SMTP_HOST", ""),
			SMTPPort:     getenvInt("SMTP_PORT", 587),
			SMTPUsername: getenv("SMTP_USERNAME", ""),
			SMTPPassword: getenv("SMTP_PASSWORD", ""),
			SMTPFrom:     getenv("SMTP_FROM", ""),
		},

		RateLimit: RateLimitConfig{
			Enabled:       getenvBool("RATE_LIMIT_ENABLED", false),
			CheckoutRate:  getenvFloat("RATE_LIMIT_CHECKOUT_RATE", 1),
			CheckoutBurst: getenvInt("RATE_LIMIT_CHECKOUT_BURST", 5),
		},
	}
}

// parseBatches parses "id:capacity:price_cents:currency" entries separated by commas.
func parseBatches(raw string) []BatchConfig {
	var batches []BatchConfig
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) < 3 || strings.TrimSpace(parts[0]) == "" {
			continue
		}
		capacity, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
		if err != nil || capacity < 0 {
			continue
		}
		price, err := strconv.ParseInt(strings.TrimSpace(parts[2]), 10, 64)
		if err != nil || price <= 0 {
			continue
		}
		currency := "BRL"
		if len(parts) > 3 && strings.TrimSpace(parts[3]) != "" {
			currency = strings.ToUpper(strings.TrimSpace(parts[3]))
		}
		batches = append(batches, BatchConfig{
			ID:       strings.TrimSpace(parts[0]),
			Capacity: capacity,
			Price:    price,
			Currency: currency,
		})
	}
	return batches
}

// parseSplits parses "party:percent" entries separated by commas.
func parseSplits(raw string) []SplitConfig {
	var splits []SplitConfig
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 2)
		if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" {
			continue
		}
		percent, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil || percent <= 0 {
			continue
		}
		splits = append(splits, SplitConfig{
			Party:   strings.TrimSpace(parts[0]),
			Percent: percent,
		})
	}
	return splits
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}
