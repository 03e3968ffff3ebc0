// Package litestore opens the embedded SQLite backend used for
// single-node development and tests, wiring it through sqlstore the
// same way pgstore wires Postgres.
package litestore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/chitinlabs/clawbuds/server/storage"
	"github.com/chitinlabs/clawbuds/server/storage/sqlstore"
)

// OpenDB connects to the SQLite file at path (or ":memory:" for an
// ephemeral database), enabling foreign-key enforcement and WAL mode.
// Callers that need to run migrations before any repository touches
// the database (see the process entrypoint in main.go) use this
// instead of Open.
//
// SQLite serializes writers regardless of pool size, so MaxOpenConns
// is pinned to 1 to avoid SQLITE_BUSY errors racing the file lock.
func OpenDB(ctx context.Context, logger *zap.Logger, path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("litestore: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("litestore: ping: %w", err)
	}

	logger.Info("connected to sqlite backend", zap.String("path", path))
	return db, nil
}

// Open connects to the SQLite file at path and returns a
// storage.Store backed by sqlstore. It does not run migrations; run
// migrations.Up against OpenDB's *sql.DB first on a fresh database.
func Open(ctx context.Context, logger *zap.Logger, path string) (storage.Store, error) {
	db, err := OpenDB(ctx, logger, path)
	if err != nil {
		return nil, err
	}
	return sqlstore.New(db, sqlstore.SQLite), nil
}
