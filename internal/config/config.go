package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"

	"github.com/jobyojnahub-a11y/websevixof/internal/database"
)

var knownWeakSecrets = []string{
	"change-me", "secret", "changeme", "nextauth-secret", "password",
}

// StoreConfig is the DynamoDB part of Config. Tools that only touch the
// store load it on its own.
type StoreConfig struct {
	AWSRegion        string `env:"AWS_REGION" envDefault:"us-east-1"`
	AWSID            string `env:"AWS_ID"`
	AWSSecret        string `env:"AWS_SECRET"`
	AWSToken         string `env:"AWS_TOKEN"`
	DynamoDBEndpoint string `env:"DYNAMODB_ENDPOINT"`
}

func (s StoreConfig) Database() database.Config {
	return database.Config{
		Region:       s.AWSRegion,
		Endpoint:     s.DynamoDBEndpoint,
		AccessKey:    s.AWSID,
		SecretKey:    s.AWSSecret,
		SessionToken: s.AWSToken,
	}
}

type Config struct {
	StoreConfig

	ChatRedisURL  string `env:"CHAT_REDIS_URL"`
	ChatRedisPass string `env:"CHAT_REDIS_PASS"`

	WSPort    int `env:"WS_PORT" envDefault:"8083"`
	AdminPort int `env:"ADMIN_PORT" envDefault:"8081"`

	SocketTokenSecret  string        `env:"SOCKET_TOKEN_SECRET,required,notEmpty"`
	SocketTokenTTL     time.Duration `env:"SOCKET_TOKEN_TTL" envDefault:"12h"`
	TokenIssuerKeyHash string        `env:"TOKEN_ISSUER_KEY_HASH"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	LogLevel       string   `env:"LOG_LEVEL" envDefault:"info"`
	Environment    string   `env:"APP_ENV" envDefault:"development"`

	OfferExpiry       time.Duration `env:"OFFER_EXPIRY" envDefault:"30s"`
	StaleSessionAfter time.Duration `env:"STALE_SESSION_AFTER" envDefault:"0s"`
	ReaperInterval    time.Duration `env:"REAPER_INTERVAL" envDefault:"1m"`

	EventRatePerSecond float64       `env:"EVENT_RATE_PER_SECOND" envDefault:"20"`
	EventBurst         int           `env:"EVENT_BURST" envDefault:"40"`
	HandlerTimeout     time.Duration `env:"HANDLER_TIMEOUT" envDefault:"10s"`
}

func (c *Config) WSAddr() string {
	return fmt.Sprintf(":%d", c.WSPort)
}

func (c *Config) AdminAddr() string {
	return fmt.Sprintf(":%d", c.AdminPort)
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) Validate() error {
	if c.TokenIssuerKeyHash != "" {
		if !strings.HasPrefix(c.TokenIssuerKeyHash, "$2a$") &&
			!strings.HasPrefix(c.TokenIssuerKeyHash, "$2b$") &&
			!strings.HasPrefix(c.TokenIssuerKeyHash, "$2y$") {
			return fmt.Errorf("TOKEN_ISSUER_KEY_HASH must be a bcrypt hash (generate with: chatctl token hash-key <key>)")
		}
	}

	if c.SocketTokenTTL <= 0 {
		return fmt.Errorf("SOCKET_TOKEN_TTL must be positive")
	}
	if c.EventRatePerSecond <= 0 || c.EventBurst <= 0 {
		return fmt.Errorf("EVENT_RATE_PER_SECOND and EVENT_BURST must be positive")
	}
	if (c.OfferExpiry > 0 || c.StaleSessionAfter > 0) && c.ReaperInterval <= 0 {
		return fmt.Errorf("REAPER_INTERVAL must be positive while OFFER_EXPIRY or STALE_SESSION_AFTER is set")
	}

	if c.IsProduction() {
		if err := validateSecret("SOCKET_TOKEN_SECRET", c.SocketTokenSecret); err != nil {
			return err
		}
		if c.ChatRedisURL == "" {
			log.Warn().Msg("CHAT_REDIS_URL is empty in production: realtime events will not reach other processes")
		}
		if c.TokenIssuerKeyHash == "" {
			log.Warn().Msg("TOKEN_ISSUER_KEY_HASH is empty in production: token endpoint disabled")
		}
	}

	return nil
}

func validateSecret(name, value string) error {
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: openssl rand -base64 32)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

func LoadStore() (StoreConfig, error) {
	var cfg StoreConfig
	if err := env.Parse(&cfg); err != nil {
		return StoreConfig{}, fmt.Errorf("failed to parse store config: %w", err)
	}
	return cfg, nil
}
