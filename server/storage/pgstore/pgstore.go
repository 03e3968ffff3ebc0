// Package pgstore opens the hosted Postgres backend and wires it
// through sqlstore, using the database/sql driver registered by
// jackc/pgx/v4/stdlib rather than pgx's native pool API.
package pgstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v4/stdlib"
	"go.uber.org/zap"

	"github.com/chitinlabs/clawbuds/server/storage"
	"github.com/chitinlabs/clawbuds/server/storage/sqlstore"
)

// Config holds the connection-pool tunables this backend consumes.
type Config struct {
	DSN               string
	MaxOpenConns      int
	MaxIdleConns      int
	ConnMaxLifetime   time.Duration
}

func DefaultConfig(dsn string) Config {
	return Config{
		DSN:             dsn,
		MaxOpenConns:    100,
		MaxIdleConns:    100,
		ConnMaxLifetime: time.Hour,
	}
}

// OpenDB connects to Postgres and verifies reachability with a
// bounded ping. Callers that need to run migrations before any
// repository touches the database (see the process entrypoint in
// main.go) use this instead of Open.
func OpenDB(ctx context.Context, logger *zap.Logger, cfg Config) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pgstore: open: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pgstore: ping: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	var version string
	if err := db.QueryRowContext(pingCtx, "SELECT version()").Scan(&version); err != nil {
		db.Close()
		return nil, fmt.Errorf("pgstore: version query: %w", err)
	}
	logger.Info("connected to postgres backend", zap.String("version", version))
	return db, nil
}

// Open connects to Postgres and returns a storage.Store backed by
// sqlstore. It does not run migrations; run migrations.Up against
// OpenDB's *sql.DB first on a fresh database.
func Open(ctx context.Context, logger *zap.Logger, cfg Config) (storage.Store, error) {
	db, err := OpenDB(ctx, logger, cfg)
	if err != nil {
		return nil, err
	}
	return sqlstore.New(db, sqlstore.Postgres), nil
}
