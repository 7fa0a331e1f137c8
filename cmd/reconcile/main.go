package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"hotelbooking/internal/config"
	"hotelbooking/internal/database"
	"hotelbooking/internal/logging"
	"hotelbooking/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "configs/config.yaml", "path to config.yaml")
		fix        = flag.Bool("fix", false, "remove stale night claims and rewrite index keys")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Database.Driver != config.DriverSQLite {
		return fmt.Errorf("reconcile needs the %s driver, got %s", config.DriverSQLite, cfg.Database.Driver)
	}
	logger := logging.NewWithWriter(cfg.Logging, cfg.App, os.Stderr)

	db, err := database.Open(cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := service.NewReconciler(db, service.ReconcilerOptions{
		PageSize: cfg.Database.PageSize,
		Fix:      *fix,
	}, logger).Run(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}
	if !report.Clean() && !*fix {
		return fmt.Errorf("drift found, rerun with -fix to repair claims and keys")
	}
	return nil
}
