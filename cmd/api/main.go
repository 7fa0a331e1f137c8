package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"hotelbooking/internal/api"
	"hotelbooking/internal/auth"
	"hotelbooking/internal/cache"
	"hotelbooking/internal/config"
	"hotelbooking/internal/database"
	"hotelbooking/internal/domain"
	"hotelbooking/internal/events"
	"hotelbooking/internal/logging"
	"hotelbooking/internal/metrics"
	"hotelbooking/internal/report"
	"hotelbooking/internal/service"
	"hotelbooking/internal/store"
	"hotelbooking/internal/worker"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, db, err := initStore(cfg, &logger)
	if err != nil {
		return err
	}
	defer st.Close()

	redisClient := initRedis(cfg, &logger)
	if redisClient != nil {
		defer cache.Close(redisClient)
	}
	backend := initCache(cfg, redisClient, &logger)

	bus := events.NewEventBus()
	subscribeEvents(bus, &logger)

	checker := service.NewAvailabilityChecker(st, cfg.Database.PageSize, &logger)
	writer := service.NewReservationService(st, checker, bus, service.ReservationOptions{
		SystemUser:    cfg.Reservations.SystemUser,
		GuardNights:   cfg.Reservations.NightGuardEnabled(),
		MaxStayNights: cfg.Reservations.MaxStayNights,
		PageSize:      cfg.Database.PageSize,
	}, &logger)

	var referenceCache domain.ReferenceCache
	if backend != nil {
		referenceCache = backend
	}
	query := service.NewQueryService(st, referenceCache, cfg.Database.PageSize, &logger)

	var verifier domain.TokenVerifier
	if cfg.API.Auth.JWKSURL != "" {
		verifier = auth.NewFromConfig(cfg.API.Auth, &logger)
	}
	var shared domain.RateLimiter
	if backend != nil {
		shared = backend
	}

	httpServer := api.NewHTTPServer(cfg.API, api.Services{
		Writer:   writer,
		Checker:  checker,
		Query:    query,
		Exporter: report.NewExporter(cfg.Exports.Path, &logger),
		Store:    st,
	}, api.NewHTTPAuth(cfg.API, verifier, shared, &logger), &logger)

	startMetrics(ctx, cfg, db, &logger)
	startBackground(ctx, cfg, st, db, &logger)

	return startServer(ctx, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

// initStore opens the configured store. db is nil for the in-memory driver.
func initStore(cfg *config.Config, logger *zerolog.Logger) (store.Store, *database.DB, error) {
	if cfg.Database.Driver == config.DriverMemory {
		logger.Warn().Msg("using in-memory store, data is lost on restart")
		return store.NewMemoryStore(), nil, nil
	}

	db, err := database.Open(cfg.Database, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, nil, err
	}
	return db, db, nil
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	client := cache.NewRedisClient(cfg.Redis)
	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := cache.Ping(pingCtx, client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = client.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return client
}

// initCache returns nil when caching is disabled. With Redis available the
// in-memory cache only serves while Redis is down.
func initCache(cfg *config.Config, client *redis.Client, logger *zerolog.Logger) cache.Backend {
	if !cfg.Cache.Enabled {
		return nil
	}
	memory := cache.NewMemoryCache(cfg.Cache.TTL)
	if client == nil {
		return memory
	}
	return cache.NewFailoverCache(cache.NewRedisCache(client, cfg.Cache.TTL, cfg.Cache.KeyPrefix), memory, logger)
}

func subscribeEvents(bus *events.EventBus, logger *zerolog.Logger) {
	l := logger.With().Str("component", "events").Logger()
	logEvent := func(event *events.Event) error {
		var payload events.ReservationEventPayload
		if err := event.Decode(&payload); err != nil {
			return err
		}
		l.Info().
			Str("event", event.Type).
			Str("reservation_id", payload.ReservationID).
			Str("hotel_id", payload.HotelID).
			Str("room_number", payload.RoomNumber).
			Str("check_in", payload.CheckInDate).
			Str("check_out", payload.CheckOutDate).
			Str("changed_by", payload.ChangedBy).
			Msg("Reservation event")
		return nil
	}
	for _, t := range []string{
		events.EventReservationCreated,
		events.EventReservationUpdated,
		events.EventReservationDeleted,
		events.EventReservationConflict,
	} {
		bus.Subscribe(t, logEvent)
	}
}

func startMetrics(ctx context.Context, cfg *config.Config, db *database.DB, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)

	if db != nil {
		go collectRecordCounts(ctx, db, logger)
	}
}

func collectRecordCounts(ctx context.Context, db *database.DB, logger *zerolog.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		counts, err := db.EntityCounts(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("count records")
		} else {
			metrics.SetStoredRecords(counts)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func startBackground(ctx context.Context, cfg *config.Config, st store.Store, db *database.DB, logger *zerolog.Logger) {
	if db != nil {
		go database.NewBackupService(db, cfg.Backup, logger).Start(ctx)
	}

	if !cfg.Reconcile.Enabled {
		return
	}
	reconciler := service.NewReconciler(st, service.ReconcilerOptions{
		PageSize: cfg.Database.PageSize,
		Fix:      cfg.Reconcile.Fix,
	}, logger)
	go worker.NewReconcileWorker(reconciler, cfg.Reconcile.Interval, worker.RetryPolicy{}, logger).Start(ctx)
}

func startServer(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.API.HTTP.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
