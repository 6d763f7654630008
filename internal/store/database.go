package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/sirupsen/logrus"
)

// PoolConfig sizes the connection pool; zero values keep the defaults
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Database is the run-history PostgreSQL connection
type Database struct {
	conn   *sql.DB
	logger *logrus.Logger
}

// NewDatabase opens and pings the database
func NewDatabase(ctx context.Context, dsn string, pool PoolConfig, logger *logrus.Logger) (*Database, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if pool.MaxOpenConns <= 0 {
		pool.MaxOpenConns = 10
	}
	if pool.MaxIdleConns <= 0 {
		pool.MaxIdleConns = 5
	}
	if pool.ConnMaxLifetime <= 0 {
		pool.ConnMaxLifetime = time.Hour
	}
	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{conn: db, logger: logger}, nil
}

// Close closes the database connection
func (db *Database) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// DB returns the underlying *sql.DB for queries
func (db *Database) DB() *sql.DB {
	return db.conn
}

// migration is one versioned schema step
type migration struct {
	version string
	sql     string
}

var migrations = []migration{
	{
		version: "001_create_schedule_runs",
		sql: `
			CREATE TABLE IF NOT EXISTS schedule_runs (
				run_id       UUID PRIMARY KEY,
				started_at   TIMESTAMPTZ NOT NULL,
				finished_at  TIMESTAMPTZ NOT NULL,
				fixtures     INTEGER NOT NULL DEFAULT 0,
				enriched     INTEGER NOT NULL DEFAULT 0,
				reviewed     INTEGER NOT NULL DEFAULT 0,
				summary      JSONB NOT NULL,
				schedule     JSONB NOT NULL,
				enriched_schedule JSONB,
				review       JSONB NOT NULL DEFAULT '[]'::jsonb,
				created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
	},
	{
		version: "002_index_schedule_runs_started_at",
		sql:     `CREATE INDEX IF NOT EXISTS idx_schedule_runs_started_at ON schedule_runs (started_at DESC)`,
	},
}

// RunMigrations applies every migration not yet recorded
func (db *Database) RunMigrations(ctx context.Context) error {
	db.logger.Info("Running database migrations...")

	if _, err := db.conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	for _, m := range migrations {
		if err := db.runMigration(ctx, m); err != nil {
			return fmt.Errorf("failed to run migration %s: %w", m.version, err)
		}
	}

	db.logger.Info("✓ All migrations completed successfully")
	return nil
}

func (db *Database) runMigration(ctx context.Context, m migration) error {
	var exists bool
	err := db.conn.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", m.version).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		db.logger.WithField("version", m.version).Debug("Skipping migration (already applied)")
		return nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.sql); err != nil {
		return fmt.Errorf("failed to execute migration: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", m.version); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	db.logger.WithField("version", m.version).Info("  ✓ Applied migration")
	return nil
}

// HealthCheck performs a health check on the database
func (db *Database) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return db.conn.PingContext(ctx)
}
