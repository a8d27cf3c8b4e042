package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"

	LockLocal = "local"
	LockRedis = "redis"
)

type Config struct {
	Port                  string        `mapstructure:"PORT"`
	Env                   string        `mapstructure:"ENV"`
	LogLevel              string        `mapstructure:"LOG_LEVEL"`
	StoreBackend          string        `mapstructure:"STORE_BACKEND"`
	DatabaseURL           string        `mapstructure:"DATABASE_URL"`
	DBMaxConns            int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns            int32         `mapstructure:"DB_MIN_CONNS"`
	DBSchema              string        `mapstructure:"DB_SCHEMA"`
	MigrationsDir         string        `mapstructure:"MIGRATIONS_DIR"`
	RedisURL              string        `mapstructure:"REDIS_URL"`
	SlotLock              string        `mapstructure:"SLOT_LOCK"`
	SlotLockTTL           time.Duration `mapstructure:"SLOT_LOCK_TTL"`
	SlotLockWait          time.Duration `mapstructure:"SLOT_LOCK_WAIT"`
	ClinicTimezone        string        `mapstructure:"CLINIC_TIMEZONE"`
	WalkInDurationMinutes int           `mapstructure:"WALKIN_DURATION_MINUTES"`
	CORSOrigins           []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS          float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst        int           `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout        time.Duration `mapstructure:"REQUEST_TIMEOUT"`
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL", "STORE_BACKEND", "DATABASE_URL", "DB_MAX_CONNS",
	"DB_MIN_CONNS", "DB_SCHEMA", "MIGRATIONS_DIR", "REDIS_URL", "SLOT_LOCK",
	"SLOT_LOCK_TTL", "SLOT_LOCK_WAIT", "CLINIC_TIMEZONE", "WALKIN_DURATION_MINUTES",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "REQUEST_TIMEOUT",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORE_BACKEND", BackendPostgres)
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("DB_SCHEMA", "public")
	v.SetDefault("MIGRATIONS_DIR", "./migrations")
	v.SetDefault("SLOT_LOCK", LockLocal)
	v.SetDefault("SLOT_LOCK_TTL", "10s")
	v.SetDefault("SLOT_LOCK_WAIT", "3s")
	v.SetDefault("CLINIC_TIMEZONE", "UTC")
	v.SetDefault("WALKIN_DURATION_MINUTES", 30)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("REQUEST_TIMEOUT", "30s")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if origins := v.GetString("CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = nil
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}

	if cfg.StoreBackend == BackendPostgres && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required when STORE_BACKEND is %q", BackendPostgres)
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Location returns the clinic time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.ClinicTimezone)
	if err != nil {
		return nil, fmt.Errorf("CLINIC_TIMEZONE %q: %w", c.ClinicTimezone, err)
	}
	return loc, nil
}

// Validate checks settings that Load cannot express as defaults.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendPostgres, BackendMemory:
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendPostgres, BackendMemory, c.StoreBackend)
	}

	switch c.SlotLock {
	case LockLocal:
	case LockRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when SLOT_LOCK is %q", LockRedis)
		}
		if c.SlotLockTTL <= 0 {
			return fmt.Errorf("SLOT_LOCK_TTL must be positive")
		}
	default:
		return fmt.Errorf("SLOT_LOCK must be %q or %q, got %q", LockLocal, LockRedis, c.SlotLock)
	}
	if c.SlotLockWait <= 0 {
		return fmt.Errorf("SLOT_LOCK_WAIT must be positive, got %s", c.SlotLockWait)
	}

	if c.WalkInDurationMinutes <= 0 {
		return fmt.Errorf("WALKIN_DURATION_MINUTES must be positive, got %d", c.WalkInDurationMinutes)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}
