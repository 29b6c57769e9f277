package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Panel     PanelConfig
	Boosts    BoostConfig
	Store     StoreConfig
	Redis     RedisConfig
	AMQP      AMQPConfig
	RateLimit RateLimitConfig
	LogLevel  string
}

type ServerConfig struct {
	Port         string
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	Driver          string // mysql | sqlite
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type JWTConfig struct {
	AccessSecret string
	AccessExpiry time.Duration
	Issuer       string
}

// PanelConfig points at the Pterodactyl-style application API.
type PanelConfig struct {
	URL      string
	AdminKey string
	Timeout  time.Duration
}

type BoostConfig struct {
	CatalogFile          string
	SweepSchedule        string
	SweepLockTTL         time.Duration
	CancelRefundRate     float64
	ReconcileMaxAttempts int
}

// StoreResources is a per-resource table used by the coin store.
type StoreResources struct {
	RAM     int64 `json:"ram"`
	Disk    int64 `json:"disk"`
	CPU     int64 `json:"cpu"`
	Servers int64 `json:"servers"`
}

type StoreConfig struct {
	Prices      StoreResources // coins per unit
	Multipliers StoreResources // resource amount per unit (MB, %, slots)
	Limits      StoreResources // max units purchasable per user
}

type RedisConfig struct {
	URL       string
	KeyPrefix string
}

type AMQPConfig struct {
	URL      string
	Exchange string
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present.
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Port:         v.GetString("SERVER_PORT"),
			Env:          strings.ToLower(v.GetString("APP_ENV")),
			ReadTimeout:  v.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout: v.GetDuration("SERVER_WRITE_TIMEOUT"),
		},
		Database: DatabaseConfig{
			Driver:          strings.ToLower(v.GetString("DB_DRIVER")),
			DSN:             v.GetString("DB_DSN"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
		},
		JWT: JWTConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
			AccessExpiry: v.GetDuration("JWT_ACCESS_EXPIRY"),
			Issuer:       v.GetString("JWT_ISSUER"),
		},
		Panel: PanelConfig{
			URL:      strings.TrimRight(strings.TrimSpace(v.GetString("PANEL_URL")), "/"),
			AdminKey: strings.TrimSpace(v.GetString("PANEL_ADMIN_KEY")),
			Timeout:  v.GetDuration("PANEL_TIMEOUT"),
		},
		Boosts: BoostConfig{
			CatalogFile:          v.GetString("BOOSTS_CATALOG_FILE"),
			SweepSchedule:        v.GetString("BOOST_SWEEP_SCHEDULE"),
			SweepLockTTL:         v.GetDuration("BOOST_SWEEP_LOCK_TTL"),
			CancelRefundRate:     v.GetFloat64("BOOST_CANCEL_REFUND_RATE"),
			ReconcileMaxAttempts: v.GetInt("BOOST_RECONCILE_MAX_ATTEMPTS"),
		},
		Store: StoreConfig{
			Prices: StoreResources{
				RAM:     v.GetInt64("STORE_PRICE_RAM"),
				Disk:    v.GetInt64("STORE_PRICE_DISK"),
				CPU:     v.GetInt64("STORE_PRICE_CPU"),
				Servers: v.GetInt64("STORE_PRICE_SERVERS"),
			},
			Multipliers: StoreResources{
				RAM:     v.GetInt64("STORE_MULTIPLIER_RAM"),
				Disk:    v.GetInt64("STORE_MULTIPLIER_DISK"),
				CPU:     v.GetInt64("STORE_MULTIPLIER_CPU"),
				Servers: v.GetInt64("STORE_MULTIPLIER_SERVERS"),
			},
			Limits: StoreResources{
				RAM:     v.GetInt64("STORE_LIMIT_RAM"),
				Disk:    v.GetInt64("STORE_LIMIT_DISK"),
				CPU:     v.GetInt64("STORE_LIMIT_CPU"),
				Servers: v.GetInt64("STORE_LIMIT_SERVERS"),
			},
		},
		Redis: RedisConfig{
			URL:       strings.TrimSpace(v.GetString("REDIS_URL")),
			KeyPrefix: v.GetString("REDIS_KEY_PREFIX"),
		},
		AMQP: AMQPConfig{
			URL:      strings.TrimSpace(v.GetString("AMQP_URL")),
			Exchange: v.GetString("AMQP_EXCHANGE"),
		},
		RateLimit: RateLimitConfig{
			Requests: v.GetInt("RATE_LIMIT_REQUESTS"),
			Window:   v.GetDuration("RATE_LIMIT_WINDOW"),
		},
		LogLevel: strings.ToLower(v.GetString("LOG_LEVEL")),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8099")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("SERVER_READ_TIMEOUT", "10s")
	v.SetDefault("SERVER_WRITE_TIMEOUT", "10s")

	v.SetDefault("DB_DRIVER", "mysql")
	v.SetDefault("DB_DSN", "heliactyl:heliactyl@tcp(localhost:3306)/heliactyl?charset=utf8mb4&parseTime=True&loc=UTC")
	v.SetDefault("DB_MAX_IDLE_CONNS", 10)
	v.SetDefault("DB_MAX_OPEN_CONNS", 100)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "1h")

	v.SetDefault("JWT_ACCESS_SECRET", "change-me-in-production")
	v.SetDefault("JWT_ACCESS_EXPIRY", "15m")
	v.SetDefault("JWT_ISSUER", "heliactyl")

	v.SetDefault("PANEL_TIMEOUT", "15s")

	v.SetDefault("BOOST_SWEEP_SCHEDULE", "@every 10s")
	v.SetDefault("BOOST_SWEEP_LOCK_TTL", "50s")
	v.SetDefault("BOOST_CANCEL_REFUND_RATE", 0.5)
	v.SetDefault("BOOST_RECONCILE_MAX_ATTEMPTS", 5)

	v.SetDefault("STORE_PRICE_RAM", 150)
	v.SetDefault("STORE_PRICE_DISK", 100)
	v.SetDefault("STORE_PRICE_CPU", 200)
	v.SetDefault("STORE_PRICE_SERVERS", 300)
	v.SetDefault("STORE_MULTIPLIER_RAM", 1024)
	v.SetDefault("STORE_MULTIPLIER_DISK", 5120)
	v.SetDefault("STORE_MULTIPLIER_CPU", 100)
	v.SetDefault("STORE_MULTIPLIER_SERVERS", 1)
	v.SetDefault("STORE_LIMIT_RAM", 10)
	v.SetDefault("STORE_LIMIT_DISK", 10)
	v.SetDefault("STORE_LIMIT_CPU", 10)
	v.SetDefault("STORE_LIMIT_SERVERS", 5)

	v.SetDefault("REDIS_KEY_PREFIX", "heliactyl")
	v.SetDefault("AMQP_EXCHANGE", "heliactyl.boosts")

	v.SetDefault("RATE_LIMIT_REQUESTS", 100)
	v.SetDefault("RATE_LIMIT_WINDOW", "60s")
	v.SetDefault("LOG_LEVEL", "info")
}

func (c *Config) validate() error {
	var problems []string

	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		problems = append(problems, fmt.Sprintf("DB_DRIVER must be mysql or sqlite, got %q", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		problems = append(problems, "DB_DSN is required")
	}
	if c.Panel.URL == "" {
		problems = append(problems, "PANEL_URL is required")
	}
	if c.Panel.AdminKey == "" {
		problems = append(problems, "PANEL_ADMIN_KEY is required")
	}
	if !c.IsDevelopment() && c.JWT.AccessSecret == "change-me-in-production" {
		problems = append(problems, "JWT_ACCESS_SECRET must be set outside development")
	}
	if _, err := cron.ParseStandard(c.Boosts.SweepSchedule); err != nil {
		problems = append(problems, fmt.Sprintf("BOOST_SWEEP_SCHEDULE is invalid: %v", err))
	}
	if c.Boosts.CancelRefundRate < 0 || c.Boosts.CancelRefundRate > 1 {
		problems = append(problems, "BOOST_CANCEL_REFUND_RATE must be between 0 and 1")
	}
	if c.Boosts.ReconcileMaxAttempts < 1 {
		problems = append(problems, "BOOST_RECONCILE_MAX_ATTEMPTS must be at least 1")
	}

	if len(problems) > 0 {
		return errors.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

func loadEnvFile() error {
	path := os.Getenv("ENV_FILE")
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat env file: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}
