package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/Ananya0222/entity-data-processor/internal/schema"
)

// DDLBootstrapper is a backend-specific function that renders the contract as
// a create-if-absent table definition and applies it via repo.Exec. Backends
// register their implementation for a given storage kind at init time.
type DDLBootstrapper func(ctx context.Context, repo Repository, cfg Config, contract schema.Contract) error

var (
	ddlMu  sync.RWMutex
	ddlFns = map[string]DDLBootstrapper{}
)

// RegisterDDL registers (or replaces) a DDLBootstrapper for the given storage
// kind. It is typically called from backend packages' init() functions.
func RegisterDDL(kind string, fn DDLBootstrapper) {
	ddlMu.Lock()
	defer ddlMu.Unlock()
	ddlFns[kind] = fn
}

// EnsureTable locates the DDLBootstrapper for cfg.Kind and invokes it.
// Callers do not need to know which backend they are using. The operation is
// idempotent: a table that already exists is left untouched.
func EnsureTable(ctx context.Context, repo Repository, cfg Config, contract schema.Contract) error {
	ddlMu.RLock()
	fn, ok := ddlFns[cfg.Kind]
	ddlMu.RUnlock()
	if !ok {
		return fmt.Errorf("no DDL bootstrapper registered for storage kind %q", cfg.Kind)
	}
	return fn(ctx, repo, cfg, contract)
}
