// Package sqlite implements the entity store on SQLite via database/sql and
// the cgo-free modernc driver. SQLite has no bulk-load API; transactional
// prepared inserts keep scope application atomic and fast enough for
// moderate volumes. It doubles as the storage-semantics test backend
// (":memory:" DSNs need no server).
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Ananya0222/entity-data-processor/internal/ddl"
	"github.com/Ananya0222/entity-data-processor/internal/schema"
	"github.com/Ananya0222/entity-data-processor/internal/storage"
	"github.com/Ananya0222/entity-data-processor/internal/storage/sqlrepo"
	"github.com/Ananya0222/entity-data-processor/internal/storage/sqlutil"
)

// dialect is SQLite: "?" markers, double-quoted identifiers.
var dialect = sqlrepo.Dialect{
	Style:    sqlutil.Question,
	Quote:    quote,
	QuoteFQN: quote,
}

// NewRepository opens the database file (or ":memory:") and returns the
// repository plus a close function.
func NewRepository(ctx context.Context, cfg storage.Config) (*sqlrepo.Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("sqlite: DSN must not be empty")
	}
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: open: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	r := sqlrepo.New(db, cfg, dialect)
	return r, r.Close, nil
}

// MapType maps a contract's logical type onto a SQLite type. Timestamps are
// stored as text; the repository parses them back on read.
func MapType(kind string) string {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "int", "integer", "bigint":
		return "INTEGER"
	case "date", "timestamp", "timestamptz":
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

// EnsureTable creates the target table if it does not exist. Idempotent.
func EnsureTable(ctx context.Context, repo storage.Repository, cfg storage.Config, contract schema.Contract) error {
	cols := make([]ddl.ColumnDef, len(contract.Fields))
	for i, f := range contract.Fields {
		cols[i] = ddl.ColumnDef{
			Name:     quote(f.Name),
			SQLType:  MapType(f.Type),
			Nullable: f.Nullable && !f.Key,
		}
	}
	keys := contract.KeyColumns()
	unique := make([]string, len(keys))
	for i, k := range keys {
		unique[i] = quote(k)
	}

	sqlText, err := ddl.BuildCreateTableSQL(ddl.TableDef{
		FQN:     quote(cfg.Table),
		Columns: cols,
		Unique:  unique,
	}, true)
	if err != nil {
		return err
	}
	return repo.Exec(ctx, sqlText)
}

func quote(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

func init() {
	storage.Register("sqlite", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, _, err := NewRepository(ctx, cfg)
		if err != nil {
			return nil, &storage.ConnectionError{Kind: "sqlite", Err: err}
		}
		return r, nil
	})
	storage.RegisterDDL("sqlite", EnsureTable)
}
