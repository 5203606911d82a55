// Package database implements the engine's record store on PostgreSQL.
package database

import (
	"context"
	"fmt"
	"time"

	"matrix-board-platform/internal/logging"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// Config holds database configuration
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewDB creates a new database connection
func NewDB(cfg Config) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	// Monetary columns are NUMERIC; scan them straight into decimal.Decimal.
	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	dbLogger := logging.WithComponent("database")
	dbLogger.Info().Str("database", cfg.Database).Msg("connected to PostgreSQL")

	return &DB{Pool: pool}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// RunMigrations executes database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	log := logging.WithComponent("database")
	log.Info().Msg("running database migrations")

	migrations := []string{
		// Members, with per-board child pointers, fill counts and earnings
		`CREATE TABLE IF NOT EXISTS members (
			id BIGSERIAL PRIMARY KEY,
			full_name VARCHAR(255) NOT NULL DEFAULT '',
			ref_id VARCHAR(12) NOT NULL UNIQUE,
			sponsor_id BIGINT REFERENCES members(id) ON DELETE SET NULL,
			is_root BOOLEAN NOT NULL DEFAULT FALSE,
			balance NUMERIC(15, 2) NOT NULL DEFAULT 0,
			wallet NUMERIC(15, 2) NOT NULL DEFAULT 0,
			reward_points NUMERIC(20, 2) NOT NULL DEFAULT 0,
			active BOOLEAN NOT NULL DEFAULT FALSE,
			payment_status VARCHAR(20) NOT NULL DEFAULT 'pending',
			payment_ref VARCHAR(100) UNIQUE,
			payment_order_id VARCHAR(100) NOT NULL DEFAULT '',
			position_locked BOOLEAN NOT NULL DEFAULT FALSE,
			current_board INTEGER NOT NULL DEFAULT 1,
			paid_bonus_count INTEGER NOT NULL DEFAULT 0,
			cycle_count INTEGER NOT NULL DEFAULT 0,
			left_child_b1 BIGINT REFERENCES members(id) ON DELETE SET NULL,
			right_child_b1 BIGINT REFERENCES members(id) ON DELETE SET NULL,
			left_child_b2 BIGINT REFERENCES members(id) ON DELETE SET NULL,
			right_child_b2 BIGINT REFERENCES members(id) ON DELETE SET NULL,
			left_child_b3 BIGINT REFERENCES members(id) ON DELETE SET NULL,
			right_child_b3 BIGINT REFERENCES members(id) ON DELETE SET NULL,
			left_child_b4 BIGINT REFERENCES members(id) ON DELETE SET NULL,
			right_child_b4 BIGINT REFERENCES members(id) ON DELETE SET NULL,
			left_child_b5 BIGINT REFERENCES members(id) ON DELETE SET NULL,
			right_child_b5 BIGINT REFERENCES members(id) ON DELETE SET NULL,
			fill_count_b1 INTEGER NOT NULL DEFAULT 0,
			fill_count_b2 INTEGER NOT NULL DEFAULT 0,
			fill_count_b3 INTEGER NOT NULL DEFAULT 0,
			fill_count_b4 INTEGER NOT NULL DEFAULT 0,
			fill_count_b5 INTEGER NOT NULL DEFAULT 0,
			earned_b1 NUMERIC(15, 2) NOT NULL DEFAULT 0,
			earned_b2 NUMERIC(15, 2) NOT NULL DEFAULT 0,
			earned_b3 NUMERIC(15, 2) NOT NULL DEFAULT 0,
			earned_b4 NUMERIC(15, 2) NOT NULL DEFAULT 0,
			earned_b5 NUMERIC(15, 2) NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_members_sponsor ON members(sponsor_id)`,
		`CREATE INDEX IF NOT EXISTS idx_members_active ON members(active)`,

		// Placements: one seat per member per board. Slot exclusivity is
		// arbitrated by the parent's child-pointer columns, not here: after
		// a cycle clears a parent's pointers, the children's placement rows
		// legitimately still name the freed slots.
		`CREATE TABLE IF NOT EXISTS placements (
			id BIGSERIAL PRIMARY KEY,
			member_id BIGINT NOT NULL REFERENCES members(id) ON DELETE CASCADE,
			board INTEGER NOT NULL,
			parent_id BIGINT NOT NULL REFERENCES members(id) ON DELETE CASCADE,
			position SMALLINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT placements_member_board_key UNIQUE (member_id, board)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_placements_parent ON placements(parent_id, board)`,

		// Append-only transaction log
		`CREATE TABLE IF NOT EXISTS ledger_entries (
			id BIGSERIAL PRIMARY KEY,
			member_id BIGINT NOT NULL REFERENCES members(id) ON DELETE CASCADE,
			kind VARCHAR(20) NOT NULL,
			amount NUMERIC(15, 2) NOT NULL,
			memo VARCHAR(255) NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_member ON ledger_entries(member_id, created_at)`,

		// Singleton revenue aggregate
		`CREATE TABLE IF NOT EXISTS revenue_totals (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			total_fees NUMERIC(18, 2) NOT NULL DEFAULT 0,
			b1_fees NUMERIC(15, 2) NOT NULL DEFAULT 0,
			b2_fees NUMERIC(15, 2) NOT NULL DEFAULT 0,
			b3_fees NUMERIC(15, 2) NOT NULL DEFAULT 0,
			b4_fees NUMERIC(15, 2) NOT NULL DEFAULT 0,
			b5_fees NUMERIC(15, 2) NOT NULL DEFAULT 0,
			total_withdrawals NUMERIC(18, 2) NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		// Withdrawal requests
		`CREATE TABLE IF NOT EXISTS withdrawal_requests (
			id BIGSERIAL PRIMARY KEY,
			member_id BIGINT NOT NULL REFERENCES members(id) ON DELETE CASCADE,
			amount NUMERIC(15, 2) NOT NULL,
			fee NUMERIC(15, 2) NOT NULL DEFAULT 0,
			net_amount NUMERIC(15, 2) NOT NULL DEFAULT 0,
			destination VARCHAR(255) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_withdrawals_member ON withdrawal_requests(member_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_withdrawals_status ON withdrawal_requests(status)`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	log.Info().Int("count", len(migrations)).Msg("migrations complete")
	return nil
}
