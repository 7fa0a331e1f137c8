package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"hotelbooking/internal/models"
)

const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

type Config struct {
	App          AppConfig          `yaml:"app"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	Cache        CacheConfig        `yaml:"cache"`
	Backup       BackupConfig       `yaml:"backup"`
	Monitoring   MonitoringConfig   `yaml:"monitoring"`
	Logging      LoggingConfig      `yaml:"logging"`
	API          APIConfig          `yaml:"api"`
	Reservations ReservationsConfig `yaml:"reservations"`
	Reconcile    ReconcileConfig    `yaml:"reconcile"`
	Exports      ExportConfig       `yaml:"exports"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Driver    string      `yaml:"driver"`
	Path      string      `yaml:"path"`
	PageSize  int         `yaml:"page_size"`
	BusyRetry RetryConfig `yaml:"busy_retry"`
}

type RetryConfig struct {
	MaxRetries    int           `yaml:"max_retries"`
	InitialDelay  time.Duration `yaml:"initial_delay"`
	MaxDelay      time.Duration `yaml:"max_delay"`
	BackoffFactor float64       `yaml:"backoff_factor"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// CacheConfig controls caching of reference listings (companies, hotels, rooms).
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled"`
	TTL       time.Duration `yaml:"ttl"`
	KeyPrefix string        `yaml:"key_prefix"`
}

type BackupConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Interval      time.Duration `yaml:"interval"`
	RetentionDays int           `yaml:"retention_days"`
	StoragePath   string        `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// APIAuthConfig describes the identity provider whose access tokens the API accepts.
type APIAuthConfig struct {
	Required      bool          `yaml:"required"`
	JWKSURL       string        `yaml:"jwks_url"`
	Issuer        string        `yaml:"issuer"`
	ClientID      string        `yaml:"client_id"`
	TokenUse      string        `yaml:"token_use"`
	UsernameClaim string        `yaml:"username_claim"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
	// Shared switches the limiter to Redis so that all API instances share
	// one budget per caller.
	Shared bool          `yaml:"shared"`
	Window time.Duration `yaml:"window"`
}

type ReservationsConfig struct {
	SystemUser    string `yaml:"system_user"`
	GuardNights   *bool  `yaml:"guard_nights"`
	MaxStayNights int    `yaml:"max_stay_nights"`
}

// NightGuardEnabled reports whether per-night claim records are written.
func (c ReservationsConfig) NightGuardEnabled() bool {
	return c.GuardNights == nil || *c.GuardNights
}

type ReconcileConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	Fix      bool          `yaml:"fix"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return errors.New("database path is required")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	if c.API.Auth.Required && c.API.Auth.JWKSURL == "" {
		return errors.New("api.auth.jwks_url is required when auth is required")
	}
	if c.API.RateLimit.RPS < 0 || c.API.RateLimit.Burst < 0 {
		return errors.New("rate limit values must not be negative")
	}
	if c.Reservations.MaxStayNights < 0 {
		return errors.New("reservations.max_stay_nights must not be negative")
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("unknown logging format %q", c.Logging.Format)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "hotelbooking"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}
	if c.Database.PageSize == 0 {
		c.Database.PageSize = models.DefaultPageSize
	}
	if c.Database.BusyRetry.MaxRetries == 0 {
		c.Database.BusyRetry.MaxRetries = 5
	}
	if c.Database.BusyRetry.InitialDelay == 0 {
		c.Database.BusyRetry.InitialDelay = 20 * time.Millisecond
	}
	if c.Database.BusyRetry.MaxDelay == 0 {
		c.Database.BusyRetry.MaxDelay = 500 * time.Millisecond
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = models.DefaultReferenceCacheTTL * time.Second
	}
	if c.Cache.KeyPrefix == "" {
		c.Cache.KeyPrefix = "hotelbooking:"
	}
	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "backups"
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.API.HTTP.ReadTimeout == 0 {
		c.API.HTTP.ReadTimeout = 15 * time.Second
	}
	if c.API.HTTP.WriteTimeout == 0 {
		c.API.HTTP.WriteTimeout = 30 * time.Second
	}
	if c.API.HTTP.ShutdownTimeout == 0 {
		c.API.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if c.API.Auth.TokenUse == "" {
		c.API.Auth.TokenUse = "access"
	}
	if c.API.Auth.UsernameClaim == "" {
		c.API.Auth.UsernameClaim = "username"
	}
	if c.API.Auth.CacheTTL == 0 {
		c.API.Auth.CacheTTL = time.Hour
	}
	if c.API.RateLimit.Window == 0 {
		c.API.RateLimit.Window = time.Minute
	}
	if c.Reservations.MaxStayNights == 0 && c.Reservations.NightGuardEnabled() {
		c.Reservations.MaxStayNights = models.DefaultMaxStayNights
	}
	if c.Reservations.SystemUser == "" {
		c.Reservations.SystemUser = models.DefaultSystemUser
	}
	if c.Reconcile.Interval == 0 {
		c.Reconcile.Interval = time.Hour
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
}
