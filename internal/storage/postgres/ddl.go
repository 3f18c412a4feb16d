package postgres

import (
	"context"
	"strings"

	"github.com/Ananya0222/entity-data-processor/internal/ddl"
	"github.com/Ananya0222/entity-data-processor/internal/schema"
	"github.com/Ananya0222/entity-data-processor/internal/storage"
)

// MapType maps a contract's logical type onto a Postgres SQL type. Dates map
// to TIMESTAMPTZ, not DATE, so freshness comparisons keep their time
// component across a round trip.
func MapType(kind string) string {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "int", "integer", "bigint":
		return "BIGINT"
	case "date", "timestamp", "timestamptz":
		return "TIMESTAMPTZ"
	default:
		return "TEXT"
	}
}

// tableDef renders the contract as a Postgres table definition with the
// identity key as a UNIQUE constraint.
func tableDef(cfg storage.Config, contract schema.Contract) ddl.TableDef {
	cols := make([]ddl.ColumnDef, len(contract.Fields))
	for i, f := range contract.Fields {
		cols[i] = ddl.ColumnDef{
			Name:     pgIdent(f.Name),
			SQLType:  MapType(f.Type),
			Nullable: f.Nullable && !f.Key,
		}
	}
	return ddl.TableDef{
		FQN:     pgFQN(cfg.Table),
		Columns: cols,
		Unique:  mapIdent(contract.KeyColumns()),
	}
}

// EnsureTable creates the target table if it does not exist. Idempotent.
func EnsureTable(ctx context.Context, repo storage.Repository, cfg storage.Config, contract schema.Contract) error {
	sql, err := ddl.BuildCreateTableSQL(tableDef(cfg, contract), true)
	if err != nil {
		return err
	}
	return repo.Exec(ctx, sql)
}
