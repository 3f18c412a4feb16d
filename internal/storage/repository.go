// Package storage contains the storage-agnostic contracts for the persisted
// entity store: the Repository interface, the backend factory, and the DDL
// bootstrap registry. Concrete backends live in subpackages and register
// themselves at init time, so callers never import a database driver
// directly.
package storage

import (
	"context"
	"fmt"
	"time"
)

// Config configures a repository independent of backend.
type Config struct {
	// Kind selects the backend registered with the factory.
	Kind string

	// DSN is the backend-specific connection string.
	DSN string

	// Table is the destination table, optionally schema-qualified.
	Table string

	// Columns are all destination columns in write order.
	Columns []string

	// KeyColumns identify a record; they form the table's uniqueness
	// constraint and the WHERE clause of updates.
	KeyColumns []string

	// DateColumn names the freshness timestamp column read by the planner's
	// bulk lookup.
	DateColumn string
}

// Scope is one atomic unit of mutation: every row in it is committed or
// rolled back as a whole.
type Scope struct {
	// Inserts holds new rows aligned to Config.Columns.
	Inserts [][]any

	// Updates holds replacement rows aligned to Config.Columns; backends
	// derive the WHERE clause from Config.KeyColumns.
	Updates [][]any
}

// Empty reports whether the scope carries no work.
func (s Scope) Empty() bool { return len(s.Inserts) == 0 && len(s.Updates) == 0 }

// Repository is the persisted-store seam used by the planner and the writer.
//
// FetchLastUpdates is the planner's single bulk read: given the incoming
// identity keys (ordered key-column values per key), it returns the persisted
// freshness timestamp for every key that exists, keyed by the canonical
// composite key (entity.KeyOf). Keys absent from the store are simply absent
// from the map.
//
// ApplyScope opens one transaction, applies the scope's inserts and updates,
// and commits; any failure rolls the whole scope back before the error is
// returned. Implementations must not retain the scope after returning.
type Repository interface {
	FetchLastUpdates(ctx context.Context, keys [][]any) (map[string]time.Time, error)
	ApplyScope(ctx context.Context, scope Scope) error
	Count(ctx context.Context) (int64, error)
	Exec(ctx context.Context, sql string) error
	Close()
}

// ConnectionError indicates the store was unreachable before any transaction
// was opened. Fatal for the run; no partial writes can have occurred.
type ConnectionError struct {
	Kind string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("storage %s: connect: %v", e.Kind, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }
