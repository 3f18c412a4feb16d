// Package ddl defines a small, backend-agnostic model for SQL DDL and a
// helper to render CREATE TABLE statements from it.
//
// The package stays generic: it does not quote identifiers, and it treats
// ColumnDef.Default as raw SQL. Backend packages adapt the model to their
// dialect (type mapping, IF NOT EXISTS phrasing) before or after rendering.
package ddl

import (
	"fmt"
	"strings"
)

// BuildCreateTableSQL renders a CREATE TABLE statement from a TableDef.
//
// Each column is rendered as
//
//	<Name> <SQLType> [NOT NULL] [DEFAULT <Default>]
//
// and TableDef.Unique, when non-empty, adds a trailing
//
//	UNIQUE (<col1>, <col2>, ...)
//
// constraint. When ifNotExists is true the statement uses the widely
// supported CREATE TABLE IF NOT EXISTS form; backends whose dialect lacks it
// (MSSQL) render their own guard instead.
func BuildCreateTableSQL(t TableDef, ifNotExists bool) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("ddl: table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("ddl: at least one column is required")
	}

	cols := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("ddl: column with empty name in table %s", fqn)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", fmt.Errorf("ddl: column %s missing SQLType", name)
		}

		var sb strings.Builder
		sb.WriteString(name)
		sb.WriteByte(' ')
		sb.WriteString(typ)
		if !c.Nullable {
			sb.WriteString(" NOT NULL")
		}
		if def := strings.TrimSpace(c.Default); def != "" {
			sb.WriteString(" DEFAULT ")
			sb.WriteString(def)
		}
		cols = append(cols, sb.String())
	}

	if len(t.Unique) > 0 {
		cols = append(cols, fmt.Sprintf("UNIQUE (%s)", strings.Join(t.Unique, ", ")))
	}

	create := "CREATE TABLE"
	if ifNotExists {
		create = "CREATE TABLE IF NOT EXISTS"
	}
	return fmt.Sprintf("%s %s (\n  %s\n);", create, fqn, strings.Join(cols, ",\n  ")), nil
}
