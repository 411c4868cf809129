// Package database defines the narrow storage surface the repositories are
// written against. The postgres subpackage provides the pgx implementation.
package database

import (
	"context"
	"database/sql"
	"errors"
)

// ErrNoConnection is returned by a DB whose pool was never opened or has
// already been closed.
var ErrNoConnection = errors.New("database: no connection")

type DB interface {
	Ping(ctx context.Context) error
	Close() error

	Exec(ctx context.Context, query string, args ...any) (int64, error)
	Query(ctx context.Context, query string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) Row

	// ExecBatch runs every statement inside one transaction. Either all of
	// them take effect or none do.
	ExecBatch(ctx context.Context, stmts []Statement) error

	// SQLDB exposes a database/sql handle over the same pool for the
	// migration runner.
	SQLDB() *sql.DB
}

// Statement is one queued write of a batch.
type Statement struct {
	SQL  string
	Args []any
}

func NewStatement(query string, args ...any) Statement {
	return Statement{SQL: query, Args: args}
}

type Rows interface {
	Close()
	Next() bool
	Scan(dest ...any) error
	Err() error
}

type Row interface {
	Scan(dest ...any) error
}
