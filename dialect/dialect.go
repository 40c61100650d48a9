// Package dialect provides database dialect abstraction for Velox.
//
// It defines the small set of interfaces the sqlgen phase (spec.md §4.6)
// and dialect/sql builder talk to, so that the same generated SQL tree can
// be handed to a Postgres, MySQL, or SQLite backend driver (spec.md §5:
// "the compiler emits assumes the backend provides transactional
// semantics") without the compiler itself choosing one.
package dialect

import "context"

// Supported dialect names. The compiler does not hardcode SQL text for a
// single backend; the sqlgen phase asks the active dialect how to quote
// identifiers, paginate, and lock rows.
const (
	Postgres = "postgres"
	MySQL    = "mysql"
	SQLite   = "sqlite"
)

// Driver is the interface every backend connection implements.
type Driver interface {
	// Exec executes a query that doesn't return rows. For statements
	// that return rows, Query is used instead. args holds a slice of
	// driver-compatible arguments. v is the resulting value.
	Exec(ctx context.Context, query string, args, v any) error
	// Query executes a query that returns rows. v must be a pointer
	// to a type that implements the ColumnScanner interface.
	Query(ctx context.Context, query string, args, v any) error
	// Tx returns a new transaction.
	Tx(ctx context.Context) (Tx, error)
	// Close closes the underlying connection.
	Close() error
	// Dialect returns the dialect name of the driver.
	Dialect() string
}

// Tx is a transactional Driver. Commit/Rollback end the transaction that
// Driver.Tx opened; the Language exposes the same lifecycle as
// `start/commit/rollback transaction` statements (spec.md §5).
type Tx interface {
	Driver
	// Commit commits the transaction.
	Commit() error
	// Rollback rolls back the transaction.
	Rollback() error
}

// ExecQuerier wraps the Driver's low-level exec/query methods, the
// surface dialect/sql.Conn adapts database/sql's *sql.DB/*sql.Tx to.
type ExecQuerier interface {
	Exec(ctx context.Context, query string, args, v any) error
	Query(ctx context.Context, query string, args, v any) error
}
