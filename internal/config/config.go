package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type HTTPConfig struct {
	Port            int           `yaml:"port" validate:"gt=0,lt=65536"`
	PublicBaseURL   string        `yaml:"public_base_url"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
}

type LogConfig struct {
	Level    string `yaml:"level" validate:"oneof=trace debug info warn error"`
	Format   string `yaml:"format" validate:"oneof=json console"`
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url" validate:"required"`
	MaxConns int32  `yaml:"max_conns"`
	Migrate  bool   `yaml:"migrate"` // run embedded migrations on startup
}

type RedisConfig struct {
	URL      string        `yaml:"url" validate:"required"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type YooKassaConfig struct {
	ShopID        string `yaml:"shop_id"`
	SecretKey     string `yaml:"secret_key"`
	WebhookSecret string `yaml:"webhook_secret"`
	BaseURL       string `yaml:"base_url"`
}

type SquareConfig struct {
	AccessToken     string `yaml:"access_token"`
	LocationID      string `yaml:"location_id"`
	SignatureKey    string `yaml:"signature_key"`
	NotificationURL string `yaml:"notification_url"` // exact URL Square signs webhooks for
	BaseURL         string `yaml:"base_url"`
}

type NoopPaymentConfig struct {
	WebhookSecret string `yaml:"webhook_secret"`
}

type PaymentConfig struct {
	Provider string            `yaml:"provider" validate:"required"` // yookassa | square | noop
	Currency string            `yaml:"currency" validate:"len=3"`
	Timeout  time.Duration     `yaml:"timeout"`
	YooKassa YooKassaConfig    `yaml:"yookassa"`
	Square   SquareConfig      `yaml:"square"`
	Noop     NoopPaymentConfig `yaml:"noop"`
}

type TelegramConfig struct {
	BotToken       string        `yaml:"bot_token"`
	BotUsername    string        `yaml:"bot_username"`
	AdminChatID    int64         `yaml:"admin_chat_id"`
	InitDataTTL    time.Duration `yaml:"init_data_ttl"` // max age of WebApp init data
	AlertWorkers   int           `yaml:"alert_workers"`
	SkipWebAppAuth bool          `yaml:"skip_webapp_auth"` // dev only
}

type AdminConfig struct {
	Email        string        `yaml:"email" validate:"required,email"`
	PasswordHash string        `yaml:"password_hash" validate:"required"` // bcrypt
	JWTSecret    string        `yaml:"jwt_secret" validate:"required,min=16"`
	TokenTTL     time.Duration `yaml:"token_ttl"`
}

type SchedulerConfig struct {
	OverdueInterval     time.Duration `yaml:"overdue_interval"`
	PerOrderTimeout     time.Duration `yaml:"per_order_timeout"`
	ReconcileInterval   time.Duration `yaml:"reconcile_interval"`
	ReconcileStaleAfter time.Duration `yaml:"reconcile_stale_after"`
	// LockTTL is how long a swept window stays locked; never below
	// OverdueInterval.
	LockTTL             time.Duration `yaml:"lock_ttl"`
}

type InstallmentConfig struct {
	DueOffset time.Duration `yaml:"due_offset"`
}

type Config struct {
	HTTP         HTTPConfig        `yaml:"http"`
	Log          LogConfig         `yaml:"log"`
	Database     DatabaseConfig    `yaml:"database"`
	Redis        RedisConfig       `yaml:"redis"`
	Payment      PaymentConfig     `yaml:"payment"`
	Telegram     TelegramConfig    `yaml:"telegram"`
	Admin        AdminConfig       `yaml:"admin"`
	Scheduler    SchedulerConfig   `yaml:"scheduler"`
	Installments InstallmentConfig `yaml:"installments"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path. A .env file next to the working
// directory is loaded first (if present) and ${VAR} references in the YAML are
// expanded from the environment, so secrets never need to live in the file.
func LoadConfig(path string, dev bool) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b, dev)
}

// Parse decodes, defaults and validates raw YAML.
func Parse(raw []byte, dev bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(expandEnv(raw), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	cfg.Runtime.Dev = dev

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	if cfg.Telegram.SkipWebAppAuth && !dev {
		return nil, errors.New("telegram.skip_webapp_auth is only allowed with -dev")
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.RequestTimeout <= 0 {
		c.HTTP.RequestTimeout = 15 * time.Second
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		c.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		c.HTTP.MaxBodyBytes = 1 << 20
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
	c.Redis.TTL = normalizeTTL(c.Redis.TTL)

	c.Payment.Provider = strings.ToLower(strings.TrimSpace(c.Payment.Provider))
	if c.Payment.Currency == "" {
		c.Payment.Currency = "RUB"
	}
	c.Payment.Currency = strings.ToUpper(c.Payment.Currency)
	if c.Payment.Timeout <= 0 {
		c.Payment.Timeout = 15 * time.Second
	}

	if c.Telegram.InitDataTTL <= 0 {
		c.Telegram.InitDataTTL = 24 * time.Hour
	}
	if c.Telegram.AlertWorkers <= 0 {
		c.Telegram.AlertWorkers = 2
	}
	if c.Admin.TokenTTL <= 0 {
		c.Admin.TokenTTL = 30 * time.Minute
	}

	if c.Scheduler.OverdueInterval <= 0 {
		c.Scheduler.OverdueInterval = time.Hour
	}
	if c.Scheduler.PerOrderTimeout <= 0 {
		c.Scheduler.PerOrderTimeout = 10 * time.Second
	}
	if c.Scheduler.ReconcileInterval <= 0 {
		c.Scheduler.ReconcileInterval = 5 * time.Minute
	}
	if c.Scheduler.ReconcileStaleAfter <= 0 {
		c.Scheduler.ReconcileStaleAfter = 15 * time.Minute
	}
	if c.Scheduler.LockTTL <= 0 {
		c.Scheduler.LockTTL = 10 * time.Minute
	}
	if c.Installments.DueOffset <= 0 {
		c.Installments.DueOffset = 30 * 24 * time.Hour
	}
}

// Only the braced ${NAME} form is expanded; bare $ is common in bcrypt hashes.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

func expandEnv(raw []byte) []byte {
	return envRef.ReplaceAllFunc(raw, func(m []byte) []byte {
		return []byte(os.Getenv(string(envRef.FindSubmatch(m)[1])))
	})
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
