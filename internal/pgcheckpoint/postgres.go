// Package pgcheckpoint stores checkpoint records in PostgreSQL through
// database/sql and the pgx driver.
package pgcheckpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/specialistvlad/pipegrid/internal/env"
)

// Config holds the connection settings.
type Config struct {
	URL             string
	PingTimeout     time.Duration
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// ConfigFromEnv reads PIPEGRID_DATABASE_* variables.
func ConfigFromEnv() (Config, error) {
	pingTimeout, err := env.Duration(env.Prefix+"DATABASE_PING_TIMEOUT", 2*time.Second)
	if err != nil {
		return Config{}, err
	}
	maxOpenConns, err := env.Int(env.Prefix+"DATABASE_MAX_OPEN_CONNS", 4)
	if err != nil {
		return Config{}, err
	}
	connMaxLifetime, err := env.Duration(env.Prefix+"DATABASE_CONN_MAX_LIFETIME", 30*time.Minute)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		URL:             env.String(env.Prefix+"DATABASE_URL", ""),
		PingTimeout:     pingTimeout,
		MaxOpenConns:    maxOpenConns,
		ConnMaxLifetime: connMaxLifetime,
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.URL == "" {
		return errors.New("PIPEGRID_DATABASE_URL is required")
	}
	if c.PingTimeout <= 0 {
		return errors.New("PIPEGRID_DATABASE_PING_TIMEOUT must be positive")
	}
	if c.MaxOpenConns < 1 {
		return errors.New("PIPEGRID_DATABASE_MAX_OPEN_CONNS must be >= 1")
	}
	if c.ConnMaxLifetime < 0 {
		return errors.New("PIPEGRID_DATABASE_CONN_MAX_LIFETIME must be >= 0")
	}
	return nil
}

// Open connects and pings the database.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return db, nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS pipeline_checkpoints (
	id              TEXT PRIMARY KEY,
	pipeline_name   TEXT NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL,
	is_completed    BOOLEAN NOT NULL DEFAULT FALSE,
	completed_tasks TEXT[] NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS pipeline_checkpoints_name_created_idx
	ON pipeline_checkpoints (pipeline_name, created_at DESC);
`

// Migrate creates the checkpoint table when it does not exist.
func Migrate(ctx context.Context, db DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate pipeline_checkpoints: %w", err)
	}
	return nil
}
