// Package migrations drives schema creation for both storage
// backends via rubenv/sql-migrate, the same migration library the
// teacher uses, updated from its packr asset box to go:embed now that
// the toolchain supports it natively.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	migrate "github.com/rubenv/sql-migrate"
	"go.uber.org/zap"
)

//go:embed postgres/*.sql
var postgresFS embed.FS

//go:embed sqlite/*.sql
var sqliteFS embed.FS

const migrationTable = "clawbuds_migrations"

// Up applies every pending migration for dialect ("postgres" or
// "sqlite3") and returns the number applied.
func Up(logger *zap.Logger, db *sql.DB, dialect string) (int, error) {
	migrate.SetTable(migrationTable)
	source, sqlDialect, err := sourceFor(dialect)
	if err != nil {
		return 0, err
	}
	n, err := migrate.Exec(db, sqlDialect, source, migrate.Up)
	if err != nil {
		return 0, fmt.Errorf("migrations: up: %w", err)
	}
	logger.Info("applied migrations", zap.Int("count", n), zap.String("dialect", dialect))
	return n, nil
}

// Down rolls back the most recently applied migration.
func Down(logger *zap.Logger, db *sql.DB, dialect string) (int, error) {
	source, sqlDialect, err := sourceFor(dialect)
	if err != nil {
		return 0, err
	}
	n, err := migrate.ExecMax(db, sqlDialect, source, migrate.Down, 1)
	if err != nil {
		return 0, fmt.Errorf("migrations: down: %w", err)
	}
	return n, nil
}

func sourceFor(dialect string) (migrate.MigrationSource, string, error) {
	switch dialect {
	case "postgres":
		return &migrate.EmbedFileSystemMigrationSource{FileSystem: postgresFS, Root: "postgres"}, "postgres", nil
	case "sqlite", "sqlite3":
		return &migrate.EmbedFileSystemMigrationSource{FileSystem: sqliteFS, Root: "sqlite"}, "sqlite3", nil
	default:
		return nil, "", fmt.Errorf("migrations: unknown dialect %q", dialect)
	}
}
