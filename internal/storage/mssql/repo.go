// Package mssql implements the entity store on SQL Server via database/sql
// and the official go-mssqldb driver.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/microsoft/go-mssqldb"

	"github.com/Ananya0222/entity-data-processor/internal/ddl"
	"github.com/Ananya0222/entity-data-processor/internal/schema"
	"github.com/Ananya0222/entity-data-processor/internal/storage"
	"github.com/Ananya0222/entity-data-processor/internal/storage/sqlrepo"
	"github.com/Ananya0222/entity-data-processor/internal/storage/sqlutil"
)

// dialect is SQL Server: "@pN" markers, bracket-quoted identifiers.
var dialect = sqlrepo.Dialect{
	Style:    sqlutil.AtP,
	Quote:    quote,
	QuoteFQN: quoteFQN,
}

// NewRepository opens a connection pool and fails fast with a ping.
func NewRepository(ctx context.Context, cfg storage.Config) (*sqlrepo.Repository, func(), error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("mssql: open: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("mssql: ping: %w", err)
	}

	r := sqlrepo.New(db, cfg, dialect)
	return r, r.Close, nil
}

// MapType maps a contract's logical type onto a SQL Server type. Key text
// columns become NVARCHAR(450) so they fit under the unique-index key-size
// limit.
func MapType(kind string, key bool) string {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "int", "integer", "bigint":
		return "BIGINT"
	case "date", "timestamp", "timestamptz":
		return "DATETIME2"
	default:
		if key {
			return "NVARCHAR(450)"
		}
		return "NVARCHAR(MAX)"
	}
}

// EnsureTable creates the target table if it does not exist. SQL Server has
// no CREATE TABLE IF NOT EXISTS, so the statement is wrapped in an
// OBJECT_ID guard. Idempotent.
func EnsureTable(ctx context.Context, repo storage.Repository, cfg storage.Config, contract schema.Contract) error {
	cols := make([]ddl.ColumnDef, len(contract.Fields))
	for i, f := range contract.Fields {
		cols[i] = ddl.ColumnDef{
			Name:     quote(f.Name),
			SQLType:  MapType(f.Type, f.Key),
			Nullable: f.Nullable && !f.Key,
		}
	}
	keys := contract.KeyColumns()
	unique := make([]string, len(keys))
	for i, k := range keys {
		unique[i] = quote(k)
	}

	create, err := ddl.BuildCreateTableSQL(ddl.TableDef{
		FQN:     quoteFQN(cfg.Table),
		Columns: cols,
		Unique:  unique,
	}, false)
	if err != nil {
		return err
	}

	guarded := fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NULL\nBEGIN\n%s\nEND",
		strings.ReplaceAll(cfg.Table, "'", "''"), create,
	)
	return repo.Exec(ctx, guarded)
}

func quote(id string) string { return "[" + strings.ReplaceAll(id, "]", "]]") + "]" }

func quoteFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = quote(p)
	}
	return strings.Join(parts, ".")
}

func init() {
	storage.Register("mssql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, _, err := NewRepository(ctx, cfg)
		if err != nil {
			return nil, &storage.ConnectionError{Kind: "mssql", Err: err}
		}
		return r, nil
	})
	storage.RegisterDDL("mssql", EnsureTable)
}
