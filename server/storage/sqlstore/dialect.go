// Package sqlstore implements the storage.Store contracts once, over
// database/sql, parameterized by a small Dialect so the same query
// logic drives both the embedded SQLite backend and the hosted
// Postgres backend with identical semantics, talking to Postgres
// through database/sql via the pgx stdlib driver rather than
// pgx's native API (server/storage/pgstore).
package sqlstore

import (
	"strconv"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgconn"
	"github.com/mattn/go-sqlite3"
)

// Dialect captures the handful of ways the two backends differ:
// placeholder syntax and how to recognize constraint violations from
// the driver's native error type.
type Dialect interface {
	Name() string
	// Rebind rewrites a query written with "?" placeholders into this
	// dialect's native placeholder syntax.
	Rebind(query string) string
	IsUniqueViolation(err error) bool
	IsForeignKeyViolation(err error) bool
}

type postgresDialect struct{}

func (postgresDialect) Name() string { return "postgres" }

func (postgresDialect) Rebind(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (postgresDialect) IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if asPgError(err, &pgErr) {
		return pgErr.Code == pgerrcode.UniqueViolation
	}
	return false
}

func (postgresDialect) IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if asPgError(err, &pgErr) {
		return pgErr.Code == pgerrcode.ForeignKeyViolation
	}
	return false
}

// Postgres is the hosted-backend dialect (
// "hosted SQL service with a connection pool").
var Postgres Dialect = postgresDialect{}

type sqliteDialect struct{}

func (sqliteDialect) Name() string { return "sqlite" }

func (sqliteDialect) Rebind(query string) string { return query }

func (sqliteDialect) IsUniqueViolation(err error) bool {
	if sqErr, ok := err.(sqlite3.Error); ok {
		return sqErr.Code == sqlite3.ErrConstraint &&
			(sqErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
	}
	return false
}

func (sqliteDialect) IsForeignKeyViolation(err error) bool {
	if sqErr, ok := err.(sqlite3.Error); ok {
		return sqErr.Code == sqlite3.ErrConstraint && sqErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	return false
}

// SQLite is the embedded-backend dialect (
// "embedded single-file database for development/testing").
var SQLite Dialect = sqliteDialect{}

func asPgError(err error, out **pgconn.PgError) bool {
	for err != nil {
		if pgErr, ok := err.(*pgconn.PgError); ok {
			*out = pgErr
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
