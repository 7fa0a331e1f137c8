package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"hotelbooking/internal/cache"
	"hotelbooking/internal/config"
	"hotelbooking/internal/database"
	"hotelbooking/internal/logging"
	"hotelbooking/internal/seed"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", envOr("CONFIG_PATH", "configs/config.yaml"), "path to config.yaml")
		seedPath   = flag.String("seed", "configs/seed.yaml", "path to seed.yaml")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Database.Driver != config.DriverSQLite {
		return fmt.Errorf("seeding needs the %s driver, got %s", config.DriverSQLite, cfg.Database.Driver)
	}
	logger := logging.NewWithWriter(cfg.Logging, cfg.App, os.Stdout)

	file, err := seed.Load(*seedPath)
	if err != nil {
		return err
	}

	db, err := database.Open(cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	res, err := seed.Apply(ctx, db, file)
	if err != nil {
		return err
	}
	logger.Info().Int("created", res.Created).Int("updated", res.Updated).Msg("Reference data seeded")

	if cfg.Cache.Enabled && cfg.Redis.Address != "" {
		client := cache.NewRedisClient(cfg.Redis)
		defer cache.Close(client)
		if err := seed.InvalidateCache(ctx, cache.NewRedisCache(client, cfg.Cache.TTL, cfg.Cache.KeyPrefix)); err != nil {
			// Entries expire on their own after the cache TTL.
			logger.Warn().Err(err).Dur("ttl", cfg.Cache.TTL).Msg("Failed to invalidate reference cache")
		}
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
