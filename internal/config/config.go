package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port        string   `envconfig:"PORT" default:"5000"`
	FrontendURL string   `envconfig:"FRONTEND_URL" default:"https://movie-booking-rho-coral.vercel.app"`
	DevOrigins  []string `envconfig:"CORS_DEV_ORIGINS" default:"http://localhost:3000"`
	QRSecret    string   `envconfig:"QR_SECRET" default:"change-me"`

	Server   ServerConfig   `envconfig:"HTTP"`
	Stripe   StripeConfig   `envconfig:"STRIPE"`
	Database DatabaseConfig `envconfig:"POSTGRES"`
	Redis    RedisConfig    `envconfig:"REDIS"`
	Kafka    KafkaConfig    `envconfig:"KAFKA"`
}

type ServerConfig struct {
	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"5s"`
}

type StripeConfig struct {
	SecretKey     string        `envconfig:"SECRET_KEY" required:"true"`
	WebhookSecret string        `envconfig:"WEBHOOK_SECRET"`
	Currency      string        `envconfig:"CURRENCY" default:"inr"`
	Timeout       time.Duration `envconfig:"TIMEOUT" default:"10s"`
}

type DatabaseConfig struct {
	DSN           string        `envconfig:"DSN" required:"true"`
	MaxOpenConns  int           `envconfig:"MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns  int           `envconfig:"MAX_IDLE_CONNS" default:"25"`
	MaxLifetime   time.Duration `envconfig:"MAX_LIFETIME" default:"5m"`
	Timeout       time.Duration `envconfig:"TIMEOUT" default:"5s"`
	MigrationsDir string        `envconfig:"MIGRATIONS_DIR" default:"./migrations"`
	AutoMigrate   bool          `envconfig:"AUTO_MIGRATE" default:"true"`
}

type RedisConfig struct {
	Addr       string        `envconfig:"ADDR" default:"localhost:6379"`
	SessionTTL time.Duration `envconfig:"SESSION_TTL" default:"30m"`
}

type KafkaConfig struct {
	Enabled      bool     `envconfig:"ENABLED" default:"true"`
	Brokers      []string `envconfig:"BROKERS" default:"localhost:9092"`
	BookingTopic string   `envconfig:"BOOKING_TOPIC" default:"movie.bookings.created"`
}

// Load reads the process environment. Missing required values (the Stripe secret
// key and the Postgres DSN) are reported as an error so the caller can exit
// before accepting traffic.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Stripe.SecretKey) == "" {
		return errors.New("STRIPE_SECRET_KEY not set")
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("POSTGRES_DSN not set")
	}
	u, err := url.Parse(c.FrontendURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("FRONTEND_URL %q is not an absolute URL", c.FrontendURL)
	}
	if c.Stripe.Timeout <= 0 || c.Database.Timeout <= 0 {
		return errors.New("STRIPE_TIMEOUT and POSTGRES_TIMEOUT must be positive")
	}
	return nil
}

// SuccessURL is where the hosted checkout page sends the user after payment.
func (c *Config) SuccessURL() string {
	return strings.TrimRight(c.FrontendURL, "/") + "/success"
}

func (c *Config) CancelURL() string {
	return strings.TrimRight(c.FrontendURL, "/") + "/cancel"
}

// AllowedOrigins lists the origins permitted by CORS.
func (c *Config) AllowedOrigins() []string {
	origins := []string{strings.TrimRight(c.FrontendURL, "/")}
	for _, o := range c.DevOrigins {
		if o = strings.TrimSpace(o); o != "" && o != origins[0] {
			origins = append(origins, o)
		}
	}
	return origins
}

// ListenAddr turns PORT into a listen address; both "5000" and ":5000" are accepted.
func (c *Config) ListenAddr() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

// LoadDatabase reads only the POSTGRES_* settings. The migrate tool uses it so
// it can run without gateway credentials.
func LoadDatabase() (*DatabaseConfig, error) {
	var cfg DatabaseConfig
	if err := envconfig.Process("POSTGRES", &cfg); err != nil {
		return nil, fmt.Errorf("load database config: %w", err)
	}
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("POSTGRES_DSN not set")
	}
	return &cfg, nil
}
