package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type HTTPConfig struct {
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	PublicURL      string        `yaml:"public_url"`     // used to build notification/back urls
	CheckoutLimit  int           `yaml:"checkout_limit"` // checkouts per user per minute, redis only
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
	Migrate  bool   `yaml:"migrate"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type MercadoPagoConfig struct {
	AccessToken   string        `yaml:"access_token"`
	BaseURL       string        `yaml:"base_url"`
	Timeout       time.Duration `yaml:"timeout"`
	Currency      string        `yaml:"currency"`
	ExcludedTypes []string      `yaml:"excluded_payment_types"`
	Installments  int           `yaml:"installments"`
}

type PaymentConfig struct {
	MercadoPago MercadoPagoConfig `yaml:"mercadopago"`
}

type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	Multiplier   float64       `yaml:"multiplier"`
	Jitter       float64       `yaml:"jitter"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

type DiscordConfig struct {
	BotToken string        `yaml:"bot_token"`
	GuildID  string        `yaml:"guild_id"`
	VIPRole  string        `yaml:"vip_role_id"`
	Timeout  time.Duration `yaml:"timeout"`
}

type GameServerConfig struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

type WebhookConfig struct {
	Secret          string `yaml:"secret"`           // optional X-Webhook-Secret
	SignatureSecret string `yaml:"signature_secret"` // optional x-signature HMAC key
}

type AdminConfig struct {
	Secret string `yaml:"secret"` // X-Admin-Secret for reprocess endpoints
}

type CronConfig struct {
	Secret     string        `yaml:"secret"`  // Authorization: Bearer <secret>
	APIKey     string        `yaml:"api_key"` // X-API-Key header or api_key query param
	BatchSize  int           `yaml:"batch_size"`
	TimeBudget time.Duration `yaml:"time_budget"`
	LockTTL    time.Duration `yaml:"lock_ttl"`
}

type CacheConfig struct {
	PaymentTTL time.Duration `yaml:"payment_ttl"`
	OrderTTL   time.Duration `yaml:"order_ttl"`
	Size       int           `yaml:"size"`
}

type IdempotencyConfig struct {
	Backend  string        `yaml:"backend"` // memory|redis
	Capacity int           `yaml:"capacity"`
	TTL      time.Duration `yaml:"ttl"` // redis only
}

type SchedulerConfig struct {
	Enabled         bool          `yaml:"enabled"`
	PendingInterval time.Duration `yaml:"pending_interval"`
	ExpiryInterval  time.Duration `yaml:"expiry_interval"`
}

type AuthConfig struct {
	JWTSecret    string `yaml:"jwt_secret"`
	CookieName   string `yaml:"cookie_name"`
	CookieDomain string `yaml:"cookie_domain"`
	SecureCookie bool   `yaml:"secure_cookie"`
}

type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Log         LogConfig         `yaml:"log"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	Payment     PaymentConfig     `yaml:"payment"`
	Retry       RetryConfig       `yaml:"retry"`
	Discord     DiscordConfig     `yaml:"discord"`
	GameServer  GameServerConfig  `yaml:"gameserver"`
	Webhook     WebhookConfig     `yaml:"webhook"`
	Admin       AdminConfig       `yaml:"admin"`
	Cron        CronConfig        `yaml:"cron"`
	Cache       CacheConfig       `yaml:"cache"`
	Idempotency IdempotencyConfig `yaml:"idempotency"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
	Auth        AuthConfig        `yaml:"auth"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path. A .env file next to the process is
// loaded first (if present) and ${VAR} references in the YAML are expanded
// from the environment, so secrets can stay out of the file.
func LoadConfig(path string, dev bool) (*Config, error) {
	_ = godotenv.Load()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return cfg, nil
}

// Parse expands environment references, decodes, applies defaults and
// validates.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(b))), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.RequestTimeout <= 0 {
		c.HTTP.RequestTimeout = 30 * time.Second
	}
	if c.HTTP.CheckoutLimit <= 0 {
		c.HTTP.CheckoutLimit = 5
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Database.MaxConns <= 0 {
		c.Database.MaxConns = 10
	}

	mp := &c.Payment.MercadoPago
	if mp.BaseURL == "" {
		mp.BaseURL = "https://api.mercadopago.com"
	}
	if mp.Timeout <= 0 {
		mp.Timeout = 10 * time.Second
	}
	if mp.Currency == "" {
		mp.Currency = "BRL"
	}
	if mp.Installments <= 0 {
		mp.Installments = 1
	}

	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.InitialDelay <= 0 {
		c.Retry.InitialDelay = 500 * time.Millisecond
	}
	if c.Retry.Multiplier <= 1 {
		c.Retry.Multiplier = 2
	}
	if c.Retry.Jitter <= 0 {
		c.Retry.Jitter = 0.15
	}
	if c.Retry.MaxDelay <= 0 {
		c.Retry.MaxDelay = 5 * time.Second
	}

	if c.Discord.Timeout <= 0 {
		c.Discord.Timeout = 10 * time.Second
	}
	if c.GameServer.Timeout <= 0 {
		c.GameServer.Timeout = 10 * time.Second
	}

	if c.Cron.BatchSize <= 0 {
		c.Cron.BatchSize = 50
	}
	if c.Cron.TimeBudget <= 0 {
		c.Cron.TimeBudget = 28 * time.Second
	}
	if c.Cron.LockTTL <= 0 {
		c.Cron.LockTTL = time.Minute
	}

	if c.Cache.PaymentTTL <= 0 {
		c.Cache.PaymentTTL = time.Minute
	}
	if c.Cache.OrderTTL <= 0 {
		c.Cache.OrderTTL = time.Minute
	}
	if c.Cache.Size <= 0 {
		c.Cache.Size = 500
	}

	c.Idempotency.Backend = strings.ToLower(strings.TrimSpace(c.Idempotency.Backend))
	if c.Idempotency.Backend == "" {
		c.Idempotency.Backend = "memory"
	}
	if c.Idempotency.Capacity <= 0 {
		c.Idempotency.Capacity = 1000
	}
	if c.Idempotency.TTL <= 0 {
		c.Idempotency.TTL = 7 * 24 * time.Hour
	}

	if c.Scheduler.PendingInterval <= 0 {
		c.Scheduler.PendingInterval = 10 * time.Minute
	}
	if c.Scheduler.ExpiryInterval <= 0 {
		c.Scheduler.ExpiryInterval = time.Hour
	}

	if c.Auth.CookieName == "" {
		c.Auth.CookieName = "session"
	}
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}
	switch c.Idempotency.Backend {
	case "memory":
	case "redis":
		if c.Redis.URL == "" {
			return errors.New("redis.url is required when idempotency.backend is redis")
		}
	default:
		return fmt.Errorf("idempotency.backend: unknown backend %q", c.Idempotency.Backend)
	}
	return nil
}
