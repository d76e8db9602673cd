package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"telegram-subscription-payments/internal/domain/model"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type AdminConfig struct {
	APIKey        string        `yaml:"api_key"`
	SessionSecret string        `yaml:"session_secret"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
}

type YooKassaConfig struct {
	ShopID        string `yaml:"shop_id"`
	SecretKey     string `yaml:"secret_key"`
	TestMode      bool   `yaml:"test_mode"` // redirect confirmation instead of embedded widget
	ReturnURL     string `yaml:"return_url"`
	ReceiptEmail  string `yaml:"receipt_email"` // fallback customer email for fiscal receipts
	WebhookSecret string `yaml:"webhook_secret"`
}

type ActivationConfig struct {
	URL     string        `yaml:"url"` // entitlement service endpoint
	Timeout time.Duration `yaml:"timeout"`
}

type BotConfig struct {
	Token string `yaml:"token"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"` // order retention
}

type PostgresConfig struct {
	URL string `yaml:"url"`
}

type StoreConfig struct {
	Driver   string         `yaml:"driver"` // memory | redis | postgres
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type PollConfig struct {
	Interval    time.Duration   `yaml:"interval"`
	Budget      time.Duration   `yaml:"budget"`
	Checkpoints []time.Duration `yaml:"checkpoints"` // supplementary one-shot checks
}

type SweepConfig struct {
	Interval   time.Duration `yaml:"interval"`
	StaleAfter time.Duration `yaml:"stale_after"`
}

type PlanConfig struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	PriceRUB     int64  `yaml:"price_rub"`
	Description  string `yaml:"description"`
	DurationDays int    `yaml:"duration_days"`
}

type Config struct {
	Log        LogConfig        `yaml:"log"`
	Server     ServerConfig     `yaml:"server"`
	Admin      AdminConfig      `yaml:"admin"`
	YooKassa   YooKassaConfig   `yaml:"yookassa"`
	Activation ActivationConfig `yaml:"activation"`
	Bot        BotConfig        `yaml:"bot"`
	Store      StoreConfig      `yaml:"store"`
	Poll       PollConfig       `yaml:"poll"`
	Sweep      SweepConfig      `yaml:"sweep"`
	Plans      []PlanConfig     `yaml:"plans"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3000
	}
	if cfg.Admin.SessionTTL <= 0 {
		cfg.Admin.SessionTTL = 30 * time.Minute
	}
	if cfg.Activation.Timeout <= 0 {
		cfg.Activation.Timeout = 10 * time.Second
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "memory"
	}
	if cfg.Store.Redis.TTL <= 0 {
		cfg.Store.Redis.TTL = 30 * 24 * time.Hour
	}
	if cfg.Poll.Interval <= 0 {
		cfg.Poll.Interval = 2 * time.Second
	}
	if cfg.Poll.Budget <= 0 {
		cfg.Poll.Budget = 180 * time.Second
	}
	if len(cfg.Poll.Checkpoints) == 0 {
		cfg.Poll.Checkpoints = []time.Duration{15 * time.Second, 30 * time.Second, 60 * time.Second}
	}
	if cfg.Sweep.Interval <= 0 {
		cfg.Sweep.Interval = time.Minute
	}
	if cfg.Sweep.StaleAfter <= 0 {
		cfg.Sweep.StaleAfter = 10 * time.Minute
	}

	// Minimal validation. In dev mode the noop gateway stands in for
	// YooKassa, so credentials may be absent.
	if !dev && (cfg.YooKassa.ShopID == "" || cfg.YooKassa.SecretKey == "") {
		return nil, errors.New("yookassa.shop_id and yookassa.secret_key are required")
	}
	switch cfg.Store.Driver {
	case "memory":
	case "redis":
		if cfg.Store.Redis.URL == "" {
			return nil, errors.New("store.redis.url is required for the redis driver")
		}
	case "postgres":
		if cfg.Store.Postgres.URL == "" {
			return nil, errors.New("store.postgres.url is required for the postgres driver")
		}
	default:
		return nil, fmt.Errorf("unknown store.driver %q", cfg.Store.Driver)
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

// CatalogPlans converts configured plans into the domain catalog shape,
// falling back to the built-in defaults when none are configured.
func (c *Config) CatalogPlans() []model.Plan {
	if len(c.Plans) == 0 {
		return model.DefaultPlans()
	}
	out := make([]model.Plan, 0, len(c.Plans))
	for _, p := range c.Plans {
		out = append(out, model.Plan{
			ID:           p.ID,
			Name:         p.Name,
			PriceRUB:     p.PriceRUB,
			Description:  p.Description,
			DurationDays: p.DurationDays,
		})
	}
	return out
}
