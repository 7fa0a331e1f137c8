package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"hotelbooking/internal/config"
	"hotelbooking/internal/store"
	"hotelbooking/internal/worker"
)

// indexColumns maps store index attributes to table columns.
var indexColumns = map[string]string{
	"GSI1PK": "gsi1pk", "GSI1SK": "gsi1sk",
	"GSI2PK": "gsi2pk", "GSI2SK": "gsi2sk",
	"GSI3PK": "gsi3pk", "GSI3SK": "gsi3sk",
	"GSI4PK": "gsi4pk", "GSI4SK": "gsi4sk",
	"GSI5PK": "gsi5pk", "GSI5SK": "gsi5sk",
}

var indexAttrOrder = []string{
	"GSI1PK", "GSI1SK", "GSI2PK", "GSI2SK", "GSI3PK", "GSI3SK",
	"GSI4PK", "GSI4SK", "GSI5PK", "GSI5SK",
}

// DB is a SQLite backed store.Store. Every record lives in one table; the
// attributes are kept as a JSON document and the key attributes are
// mirrored into indexed columns.
type DB struct {
	*sql.DB
	path   string
	retry  worker.RetryPolicy
	logger *zerolog.Logger
}

var _ store.Store = (*DB)(nil)

// DefaultRetryPolicy retries SQLITE_BUSY and SQLITE_LOCKED writes.
var DefaultRetryPolicy = worker.RetryPolicy{
	MaxRetries:    5,
	InitialDelay:  20 * time.Millisecond,
	MaxDelay:      500 * time.Millisecond,
	BackoffFactor: 2,
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	return NewDBWithRetry(path, DefaultRetryPolicy, logger)
}

// Open opens the SQLite store described by cfg.
func Open(cfg config.DatabaseConfig, logger *zerolog.Logger) (*DB, error) {
	retry := worker.RetryPolicy{
		MaxRetries:    cfg.BusyRetry.MaxRetries,
		InitialDelay:  cfg.BusyRetry.InitialDelay,
		MaxDelay:      cfg.BusyRetry.MaxDelay,
		BackoffFactor: cfg.BusyRetry.BackoffFactor,
	}
	return NewDBWithRetry(cfg.Path, retry, logger)
}

func NewDBWithRetry(path string, retry worker.RetryPolicy, logger *zerolog.Logger) (*DB, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate&_foreign_keys=on", path)
	}

	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		sqlDB.SetMaxOpenConns(1)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{DB: sqlDB, path: path, retry: retry, logger: logger}
	if err := db.createTables(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return db, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS records (
            pk TEXT NOT NULL,
            sk TEXT NOT NULL,
            entity_type TEXT,
            gsi1pk TEXT, gsi1sk TEXT,
            gsi2pk TEXT, gsi2sk TEXT,
            gsi3pk TEXT, gsi3sk TEXT,
            gsi4pk TEXT, gsi4sk TEXT,
            gsi5pk TEXT, gsi5sk TEXT,
            attrs TEXT NOT NULL,
            updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
            PRIMARY KEY (pk, sk)
        )`,
		`CREATE INDEX IF NOT EXISTS idx_records_entity_type ON records(entity_type)`,
	}
	for i := 1; i <= 5; i++ {
		queries = append(queries, fmt.Sprintf(
			`CREATE INDEX IF NOT EXISTS idx_records_gsi%[1]d ON records(gsi%[1]dpk, gsi%[1]dsk, pk, sk) WHERE gsi%[1]dpk IS NOT NULL`, i))
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}

func (db *DB) Close() error {
	return db.DB.Close()
}

// EntityCounts returns the number of records per entity type.
func (db *DB) EntityCounts(ctx context.Context) (map[string]int64, error) {
	rows, err := db.QueryContext(ctx, `SELECT IFNULL(entity_type, ''), COUNT(*) FROM records GROUP BY entity_type`)
	if err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var entity string
		var n int64
		if err := rows.Scan(&entity, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[entity] = n
	}
	return counts, rows.Err()
}

// withRetry repeats fn while SQLite reports the database as busy or locked.
func (db *DB) withRetry(ctx context.Context, op string, fn func() error) error {
	return db.retry.Do(ctx, isBusy, func(attempt int, delay time.Duration, err error) {
		db.logger.Warn().Err(err).Str("op", op).Int("attempt", attempt).Dur("delay", delay).Msg("Database busy, retrying")
	}, fn)
}

func isBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
