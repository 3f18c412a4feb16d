// This adapter wires the Postgres backend into the storage-agnostic factory
// by registering a constructor and a DDL bootstrapper at init time. Callers
// obtain a Repository via storage.New(...) without importing this package
// directly (storage/all blank-imports it).
package postgres

import (
	"context"

	"github.com/Ananya0222/entity-data-processor/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
// Tests may replace this variable to avoid real DB connections.
var newRepository = NewRepository

// wrappedRepo implements storage.Repository by delegating to the concrete
// *Repository while providing a Close method that calls the close function
// returned by NewRepository.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

var _ storage.Repository = (*wrappedRepo)(nil)

func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

func init() {
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, cfg)
		if err != nil {
			return nil, &storage.ConnectionError{Kind: "postgres", Err: err}
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})

	storage.RegisterDDL("postgres", EnsureTable)
}
