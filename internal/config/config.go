package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	App      AppConfig
	JWT      JWTConfig
	Stripe   StripeConfig
	Billing  BillingConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// AppConfig holds application configuration
type AppConfig struct {
	Port     int
	Env      string
	LogLevel string
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret           string
	AccessExpiration string
}

// StripeConfig holds billing provider credentials
type StripeConfig struct {
	APIKey        string
	WebhookSecret string
	Currency      string
}

// BillingConfig holds the billing policy knobs. The grace window and billing
// interval are deployment configuration, not constants.
type BillingConfig struct {
	GracePeriodDays     int
	BillingIntervalDays int
	TrialExpirySoonDays int
}

func Load() (*Config, error) {
	// A missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	config := &Config{}

	// Database configuration
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	config.Database = DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     dbPort,
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "salonlabs_billing"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
	}

	// Application configuration
	appPort, err := strconv.Atoi(getEnv("APP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}

	config.App = AppConfig{
		Port:     appPort,
		Env:      getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	// JWT configuration
	config.JWT = JWTConfig{
		Secret:           getEnv("JWT_SECRET_KEY", ""),
		AccessExpiration: getEnv("JWT_ACCESS_EXPIRATION_TIME", "1h"),
	}

	// Stripe configuration
	config.Stripe = StripeConfig{
		APIKey:        getEnv("STRIPE_API_KEY", ""),
		WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		Currency:      getEnv("STRIPE_CURRENCY", "usd"),
	}

	// Billing policy
	graceDays, err := strconv.Atoi(getEnv("GRACE_PERIOD_DAYS", "3"))
	if err != nil {
		return nil, fmt.Errorf("invalid GRACE_PERIOD_DAYS: %w", err)
	}
	intervalDays, err := strconv.Atoi(getEnv("BILLING_INTERVAL_DAYS", "28"))
	if err != nil {
		return nil, fmt.Errorf("invalid BILLING_INTERVAL_DAYS: %w", err)
	}
	soonDays, err := strconv.Atoi(getEnv("TRIAL_EXPIRY_SOON_DAYS", "2"))
	if err != nil {
		return nil, fmt.Errorf("invalid TRIAL_EXPIRY_SOON_DAYS: %w", err)
	}

	config.Billing = BillingConfig{
		GracePeriodDays:     graceDays,
		BillingIntervalDays: intervalDays,
		TrialExpirySoonDays: soonDays,
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if c.Stripe.APIKey == "" {
		return fmt.Errorf("STRIPE_API_KEY is required")
	}
	if c.Stripe.WebhookSecret == "" {
		return fmt.Errorf("STRIPE_WEBHOOK_SECRET is required")
	}
	if c.Billing.GracePeriodDays < 1 {
		return fmt.Errorf("GRACE_PERIOD_DAYS must be at least 1")
	}
	if c.Billing.BillingIntervalDays < 1 {
		return fmt.Errorf("BILLING_INTERVAL_DAYS must be at least 1")
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
