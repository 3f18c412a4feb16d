// Package mysql implements the entity store on MySQL/MariaDB via
// database/sql and go-sql-driver.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/Ananya0222/entity-data-processor/internal/ddl"
	"github.com/Ananya0222/entity-data-processor/internal/schema"
	"github.com/Ananya0222/entity-data-processor/internal/storage"
	"github.com/Ananya0222/entity-data-processor/internal/storage/sqlrepo"
	"github.com/Ananya0222/entity-data-processor/internal/storage/sqlutil"
)

// dialect is MySQL: "?" markers, backtick-quoted identifiers.
var dialect = sqlrepo.Dialect{
	Style:    sqlutil.Question,
	Quote:    quote,
	QuoteFQN: quoteFQN,
}

// NewRepository opens a connection pool and fails fast with a ping. DSNs
// should include parseTime=true so timestamps scan as time.Time; textual
// timestamps are parsed as a fallback either way.
func NewRepository(ctx context.Context, cfg storage.Config) (*sqlrepo.Repository, func(), error) {
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql: open: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("mysql: ping: %w", err)
	}

	r := sqlrepo.New(db, cfg, dialect)
	return r, r.Close, nil
}

// MapType maps a contract's logical type onto a MySQL type. Text columns
// that participate in the identity key become VARCHAR(255) because MySQL
// cannot put a UNIQUE constraint on unbounded TEXT.
func MapType(kind string, key bool) string {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "int", "integer", "bigint":
		return "BIGINT"
	case "date", "timestamp", "timestamptz":
		return "DATETIME(6)"
	default:
		if key {
			return "VARCHAR(255)"
		}
		return "TEXT"
	}
}

// EnsureTable creates the target table if it does not exist. Idempotent.
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

	sqlText, err := ddl.BuildCreateTableSQL(ddl.TableDef{
		FQN:     quoteFQN(cfg.Table),
		Columns: cols,
		Unique:  unique,
	}, true)
	if err != nil {
		return err
	}
	return repo.Exec(ctx, sqlText)
}

func quote(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }

func quoteFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = quote(p)
	}
	return strings.Join(parts, ".")
}

func init() {
	storage.Register("mysql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, _, err := NewRepository(ctx, cfg)
		if err != nil {
			return nil, &storage.ConnectionError{Kind: "mysql", Err: err}
		}
		return r, nil
	})
	storage.RegisterDDL("mysql", EnsureTable)
}
