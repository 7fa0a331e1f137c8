package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"hotelbooking/internal/models"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("HOTEL_DB_PATH", "data/hotel.db")
	t.Setenv("JWKS_URL", "https://idp.example.com/.well-known/jwks.json")

	configPath := writeConfig(t, `
database:
  path: "${HOTEL_DB_PATH}"
  busy_retry:
    initial_delay: 50ms
api:
  auth:
    required: true
    jwks_url: "${JWKS_URL}"
    cache_ttl: 30m
reservations:
  guard_nights: false
  max_stay_nights: 30
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Database.Path != "data/hotel.db" {
		t.Errorf("expected expanded database path, got %s", cfg.Database.Path)
	}
	if cfg.Database.BusyRetry.InitialDelay != 50*time.Millisecond {
		t.Errorf("expected busy retry delay 50ms, got %s", cfg.Database.BusyRetry.InitialDelay)
	}
	if cfg.API.Auth.JWKSURL != "https://idp.example.com/.well-known/jwks.json" {
		t.Errorf("unexpected jwks url %s", cfg.API.Auth.JWKSURL)
	}
	if cfg.API.Auth.CacheTTL != 30*time.Minute {
		t.Errorf("expected cache ttl 30m, got %s", cfg.API.Auth.CacheTTL)
	}
	if cfg.Reservations.NightGuardEnabled() {
		t.Errorf("expected night guard to be disabled")
	}
	if cfg.Reservations.MaxStayNights != 30 {
		t.Errorf("expected max stay 30, got %d", cfg.Reservations.MaxStayNights)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("expected error for missing file")
	}

	if _, err := Load(writeConfig(t, "database: [unclosed")); err == nil {
		t.Errorf("expected parse error")
	}

	if _, err := Load(writeConfig(t, "database:\n  driver: postgres\n")); err == nil {
		t.Errorf("expected validation error for unknown driver")
	}
}

func TestValidateConfig(t *testing.T) {
	valid := func() Config {
		cfg := Config{Database: DatabaseConfig{Path: "path"}}
		cfg.applyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{name: "memory driver without path", mutate: func(c *Config) {
			c.Database.Driver = DriverMemory
			c.Database.Path = ""
		}},
		{name: "missing path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: true},
		{name: "auth without jwks", mutate: func(c *Config) { c.API.Auth.Required = true }, wantErr: true},
		{name: "negative rps", mutate: func(c *Config) { c.API.RateLimit.RPS = -1 }, wantErr: true},
		{name: "negative stay", mutate: func(c *Config) { c.Reservations.MaxStayNights = -2 }, wantErr: true},
		{name: "bad log format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	if cfg.Database.Driver != DriverSQLite {
		t.Errorf("expected default driver sqlite, got %s", cfg.Database.Driver)
	}
	if cfg.Database.PageSize != models.DefaultPageSize {
		t.Errorf("expected default page size %d, got %d", models.DefaultPageSize, cfg.Database.PageSize)
	}
	if cfg.API.HTTP.Port != 8080 {
		t.Errorf("expected default HTTP port 8080, got %d", cfg.API.HTTP.Port)
	}
	if cfg.API.Auth.CacheTTL != time.Hour {
		t.Errorf("expected default key set ttl 1h, got %s", cfg.API.Auth.CacheTTL)
	}
	if cfg.API.Auth.TokenUse != "access" {
		t.Errorf("expected default token use access, got %s", cfg.API.Auth.TokenUse)
	}
	if cfg.Reservations.SystemUser != models.DefaultSystemUser {
		t.Errorf("expected default system user, got %s", cfg.Reservations.SystemUser)
	}
	if !cfg.Reservations.NightGuardEnabled() {
		t.Errorf("expected night guard enabled by default")
	}
	if cfg.Reservations.MaxStayNights != models.DefaultMaxStayNights {
		t.Errorf("expected max stay %d with the night guard on, got %d", models.DefaultMaxStayNights, cfg.Reservations.MaxStayNights)
	}

	off := false
	unguarded := &Config{Reservations: ReservationsConfig{GuardNights: &off}}
	unguarded.applyDefaults()
	if unguarded.Reservations.MaxStayNights != 0 {
		t.Errorf("expected unlimited stays without the night guard, got %d", unguarded.Reservations.MaxStayNights)
	}
}
