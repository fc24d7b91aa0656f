package config

import (
	"errors"
	"fmt"
	"time"

	"gofolio/internal/logger"
)

// Store drivers.
const (
	DriverRedis  = "redis"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Config is the complete gofolio configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Store   StoreConfig   `yaml:"store"`
	Notify  NotifyConfig  `yaml:"notify"`
	Logging logger.Config `yaml:"logging"`
}

// ServerConfig holds HTTP server and admin auth settings.
type ServerConfig struct {
	Addr            string        `env:"HTTP_ADDR"      yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	Debug           bool          `env:"DEBUG"          yaml:"debug"`

	// APIKeys are static bearer tokens accepted on admin routes.
	APIKeys       []string      `env:"API_KEYS"       yaml:"api_keys"`
	JWTSecret     string        `env:"JWT_SECRET"     yaml:"jwt_secret"`
	AdminPassword string        `env:"ADMIN_PASSWORD" yaml:"admin_password"`
	TokenTTL      time.Duration `yaml:"token_ttl"`

	// FormRatePerMinute limits contact and meeting submissions per client
	// IP. A negative value disables the limit.
	FormRatePerMinute int `env:"FORM_RATE_PER_MINUTE" yaml:"form_rate_per_minute"`
	FormBurst         int `yaml:"form_burst"`
}

// StoreConfig selects and configures the document store backend.
type StoreConfig struct {
	Driver string       `env:"STORE_DRIVER" yaml:"driver"`
	Redis  RedisConfig  `yaml:"redis"`
	SQLite SQLiteConfig `yaml:"sqlite"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"     yaml:"addr"`
	Password string `env:"REDIS_PASSWORD" yaml:"password"`
	DB       int    `env:"REDIS_DB"       yaml:"db"`
}

// SQLiteConfig holds the SQLite database location.
type SQLiteConfig struct {
	Path string `env:"SQLITE_PATH" yaml:"path"`
}

// NotifyConfig configures change-signal distribution.
type NotifyConfig struct {
	Relay RelayConfig `yaml:"relay"`
}

// RelayConfig enables forwarding change signals between processes over Redis.
type RelayConfig struct {
	Enabled bool   `env:"NOTIFY_RELAY_ENABLED" yaml:"enabled"`
	Channel string `yaml:"channel"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	s := &c.Server
	if s.Addr == "" {
		s.Addr = ":9090"
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = 5 * time.Second
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = 10 * time.Second
	}
	if s.IdleTimeout == 0 {
		s.IdleTimeout = 120 * time.Second
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = 5 * time.Second
	}
	if s.TokenTTL == 0 {
		s.TokenTTL = 12 * time.Hour
	}
	if s.FormRatePerMinute == 0 {
		s.FormRatePerMinute = 6
	}
	if s.FormBurst == 0 {
		s.FormBurst = 3
	}

	if c.Store.Driver == "" {
		c.Store.Driver = DriverRedis
	}
	if c.Store.Redis.Addr == "" {
		c.Store.Redis.Addr = "localhost:6379"
	}
	if c.Store.SQLite.Path == "" {
		c.Store.SQLite.Path = "data/gofolio.db"
	}
	if c.Notify.Relay.Channel == "" {
		c.Notify.Relay.Channel = "gofolio:changes"
	}

	c.Logging.SetDefaults()
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverRedis, DriverSQLite, DriverMemory:
	default:
		return fmt.Errorf("store.driver: unknown driver %q", c.Store.Driver)
	}
	if c.Server.AdminPassword != "" && c.Server.JWTSecret == "" {
		return errors.New("server.jwt_secret: required when server.admin_password is set")
	}
	if c.Server.TokenTTL < 0 {
		return errors.New("server.token_ttl: must not be negative")
	}
	return c.Logging.Validate()
}

// LoadFile reads path, applies defaults and validates the result.
func LoadFile(path string) (*Config, error) {
	cfg, err := Load[Config](path)
	if err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
