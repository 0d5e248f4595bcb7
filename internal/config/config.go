package config

import (
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const defaultJWTSecret = "change-me-jwt-secret"

type Config struct {
	AppEnv      string `envconfig:"APP_ENV" default:"dev"`
	Port        string `envconfig:"PORT" default:"8080"`
	DatabaseURL string `envconfig:"DATABASE_URL" default:"file:turfarena.db?_pragma=busy_timeout(5000)"`

	JWTSecret string        `envconfig:"JWT_SECRET" default:"change-me-jwt-secret"`
	JWTTTL    time.Duration `envconfig:"JWT_TTL" default:"24h"`

	// Mpesa fields are read from MPESA_* variables.
	Mpesa MpesaConfig

	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	SMTPHost      string `envconfig:"SMTP_HOST"`
	SMTPPort      string `envconfig:"SMTP_PORT" default:"587"`
	SMTPUser      string `envconfig:"SMTP_USER"`
	SMTPPassword  string `envconfig:"SMTP_PASSWORD"`
	EmailFrom     string `envconfig:"EMAIL_FROM" default:"bookings@jujaturfarena.co.ke"`
	EmailFromName string `envconfig:"EMAIL_FROM_NAME" default:"Juja Turf Arena"`

	AMQPURL        string `envconfig:"AMQP_URL"`
	EventsExchange string `envconfig:"EVENTS_EXCHANGE" default:"turfarena.events"`

	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS"`
	RateLimitRPS       float64  `envconfig:"RATE_LIMIT_RPS" default:"5"`
	RateLimitBurst     int      `envconfig:"RATE_LIMIT_BURST" default:"20"`

	PollMaxAttempts int           `envconfig:"POLL_MAX_ATTEMPTS" default:"30"`
	PollInterval    time.Duration `envconfig:"POLL_INTERVAL" default:"1s"`
	ReconcileAfter  time.Duration `envconfig:"RECONCILE_AFTER" default:"2m"`
	ReconcileBatch  int           `envconfig:"RECONCILE_BATCH" default:"100"`
}

type MpesaConfig struct {
	ConsumerKey    string `envconfig:"CONSUMER_KEY"`
	ConsumerSecret string `envconfig:"CONSUMER_SECRET"`
	Passkey        string `envconfig:"PASSKEY"`
	Shortcode      string `envconfig:"SHORTCODE" default:"174379"`
	CallbackURL    string `envconfig:"CALLBACK_URL"`
	Environment    string `envconfig:"ENVIRONMENT" default:"sandbox"`
	BaseURL        string `envconfig:"BASE_URL"`
	// CallbackToken, when set, must come back as ?token= on every callback.
	CallbackToken string `envconfig:"CALLBACK_TOKEN"`
	// CallbackAllowedCIDRs restricts callback source addresses when set.
	CallbackAllowedCIDRs []string `envconfig:"CALLBACK_ALLOWED_CIDRS"`
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("config: no .env file loaded: %v", err)
	}
	return FromEnv()
}

// FromEnv reads the process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	cfg.AppEnv = strings.ToLower(strings.TrimSpace(cfg.AppEnv))
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool { return isProdLike(c.AppEnv) }

// CallbackNetworks parses MPESA_CALLBACK_ALLOWED_CIDRS.
func (c *Config) CallbackNetworks() ([]*net.IPNet, error) {
	out := make([]*net.IPNet, 0, len(c.Mpesa.CallbackAllowedCIDRs))
	for _, raw := range c.Mpesa.CallbackAllowedCIDRs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !strings.Contains(raw, "/") {
			if strings.Contains(raw, ":") {
				raw += "/128"
			} else {
				raw += "/32"
			}
		}
		_, n, err := net.ParseCIDR(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid MPESA_CALLBACK_ALLOWED_CIDRS entry %q: %w", raw, err)
		}
		out = append(out, n)
	}
	return out, nil
}

func validateConfig(cfg *Config) error {
	if cfg.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be > 0")
	}
	if cfg.PollMaxAttempts <= 0 {
		return fmt.Errorf("POLL_MAX_ATTEMPTS must be > 0")
	}
	if cfg.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be > 0")
	}
	if cfg.ReconcileAfter <= 0 {
		return fmt.Errorf("RECONCILE_AFTER must be > 0")
	}
	env := strings.ToLower(strings.TrimSpace(cfg.Mpesa.Environment))
	if env != "sandbox" && env != "production" {
		return fmt.Errorf("MPESA_ENVIRONMENT must be one of: sandbox, production")
	}
	if _, err := cfg.CallbackNetworks(); err != nil {
		return err
	}

	if isProdLike(cfg.AppEnv) {
		if isEmptyOrDefault(cfg.JWTSecret, defaultJWTSecret) {
			return fmt.Errorf("in prod/release JWT_SECRET must be set and not default")
		}
		if cfg.Mpesa.ConsumerKey == "" || cfg.Mpesa.ConsumerSecret == "" || cfg.Mpesa.Passkey == "" {
			return fmt.Errorf("in prod/release MPESA_CONSUMER_KEY, MPESA_CONSUMER_SECRET and MPESA_PASSKEY must be set")
		}
		if !strings.HasPrefix(cfg.Mpesa.CallbackURL, "https://") {
			return fmt.Errorf("in prod/release MPESA_CALLBACK_URL must be an https URL")
		}
	}

	return nil
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}
