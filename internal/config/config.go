package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

type Config struct {
	Environment string `env:"APP_ENV" envDefault:"development" validate:"oneof=development test staging production"`
	Port        string `env:"PORT" envDefault:"8080" validate:"required"`
	PostgresURL string `env:"POSTGRES_URL" validate:"required"`
	JWTSecret   string `env:"JWT_SECRET" validate:"required,min=16"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`

	Stripe  StripeConfig  `envPrefix:"STRIPE_"`
	Billing BillingConfig `envPrefix:"BILLING_"`
	Mail    MailConfig    `envPrefix:"MAIL_"`
}

type StripeConfig struct {
	SecretKey     string      `env:"SECRET_KEY"`
	WebhookSecret string      `env:"WEBHOOK_SECRET"`
	Prices        PriceConfig `envPrefix:"PRICE_"`
}

// PriceConfig holds the Stripe price id of every catalog plan. An empty value
// leaves the plan unpurchasable.
type PriceConfig struct {
	PremiumMonthly     string `env:"PREMIUM_MONTHLY"`
	PremiumYearly      string `env:"PREMIUM_YEARLY"`
	PremiumPlusMonthly string `env:"PREMIUM_PLUS_MONTHLY"`
	PremiumPlusYearly  string `env:"PREMIUM_PLUS_YEARLY"`
}

type BillingConfig struct {
	SuccessURL      string `env:"SUCCESS_URL" envDefault:"http://localhost:3000/billing/success?session_id={CHECKOUT_SESSION_ID}" validate:"required"`
	CancelURL       string `env:"CANCEL_URL" envDefault:"http://localhost:3000/billing/canceled" validate:"required"`
	PortalReturnURL string `env:"PORTAL_RETURN_URL" envDefault:"http://localhost:3000/settings/billing" validate:"required"`
	// MockActivation enables the legacy direct-activation endpoint.
	MockActivation bool `env:"MOCK_ACTIVATION" envDefault:"false"`
}

type MailConfig struct {
	SMTPHost     string `env:"SMTP_HOST" envDefault:"smtp.gmail.com"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPUseSSL   bool   `env:"SMTP_USE_SSL" envDefault:"false"`

	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`

	From       string `env:"FROM" envDefault:"no-reply@habitloop.app" validate:"required,email"`
	FromName   string `env:"FROM_NAME" envDefault:"Habitloop"`
	AppBaseURL string `env:"APP_BASE_URL" envDefault:"http://localhost:3000"`
}

// ByPlan keys the configured prices by catalog plan id.
func (p PriceConfig) ByPlan() map[string]string {
	return map[string]string{
		"premium_monthly":      p.PremiumMonthly,
		"premium_yearly":       p.PremiumYearly,
		"premium_plus_monthly": p.PremiumPlusMonthly,
		"premium_plus_yearly":  p.PremiumPlusYearly,
	}
}

func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// UsePostmark reports whether notifications go through Postmark instead of SMTP.
func (m MailConfig) UsePostmark() bool {
	return m.PostmarkServerToken != ""
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "parse config"), ErrInvalidConfig)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ErrInvalidConfig marks every error Load and Validate return.
var ErrInvalidConfig = errors.New("invalid config")

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Mark(errors.Wrap(err, "validate config"), ErrInvalidConfig)
	}
	if c.IsProduction() {
		if c.Stripe.SecretKey == "" {
			return errors.Wrap(ErrInvalidConfig, "STRIPE_SECRET_KEY is required in production")
		}
		if c.Stripe.WebhookSecret == "" {
			return errors.Wrap(ErrInvalidConfig, "STRIPE_WEBHOOK_SECRET is required in production")
		}
	}
	if c.Mail.PostmarkServerToken != "" && c.Mail.PostmarkAccountToken == "" {
		return errors.Wrap(ErrInvalidConfig, "MAIL_POSTMARK_ACCOUNT_TOKEN is required with MAIL_POSTMARK_SERVER_TOKEN")
	}
	return nil
}
