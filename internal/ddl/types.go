package ddl

// ColumnDef describes a single column in a table definition. It intentionally
// uses simple, database-agnostic fields.
//
// Fields:
//   - Name: logical column name (emitted as-is; quoting happens per backend)
//   - SQLType: target SQL type (e.g., TEXT, BIGINT, TIMESTAMPTZ)
//   - Nullable: whether NULL is allowed
//   - Default: raw default expression (emitted as-is)
type ColumnDef struct {
	Name     string
	SQLType  string
	Nullable bool
	Default  string
}

// TableDef holds the table name and an ordered list of columns. Unique lists
// the identity-key columns rendered as a UNIQUE constraint, giving the store
// a backstop against duplicate identities.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
	Unique  []string
}
