// Package sqlrepo implements storage.Repository over database/sql. The
// sqlite, mysql, and mssql backends differ only in driver, placeholder
// style, and identifier quoting; each wraps this repository with its own
// Dialect.
package sqlrepo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Ananya0222/entity-data-processor/internal/entity"
	"github.com/Ananya0222/entity-data-processor/internal/storage"
	"github.com/Ananya0222/entity-data-processor/internal/storage/sqlutil"
)

// keyChunk bounds the parameter count of one bulk-lookup query. MSSQL caps
// statements at 2100 parameters; 1000 leaves comfortable headroom for
// composite keys.
const keyChunk = 1000

// Dialect carries the per-backend SQL differences.
type Dialect struct {
	// Style is the placeholder dialect.
	Style sqlutil.Style

	// Quote quotes one identifier segment.
	Quote func(string) string

	// QuoteFQN quotes a possibly schema-qualified table name.
	QuoteFQN func(string) string
}

// Repository is a database/sql-backed implementation of storage.Repository.
type Repository struct {
	db  *sql.DB
	cfg storage.Config
	d   Dialect

	insertSQL string
	updateSQL string
	setCols   []string
}

// New builds a Repository over an already-opened (and pinged) handle.
func New(db *sql.DB, cfg storage.Config, d Dialect) *Repository {
	setCols := nonKeyColumns(cfg.Columns, cfg.KeyColumns)
	return &Repository{
		db:        db,
		cfg:       cfg,
		d:         d,
		setCols:   setCols,
		insertSQL: sqlutil.InsertSQL(d.Style, d.QuoteFQN(cfg.Table), quoteAll(d, cfg.Columns)),
		updateSQL: sqlutil.UpdateSQL(d.Style, d.QuoteFQN(cfg.Table), quoteAll(d, setCols), quoteAll(d, cfg.KeyColumns)),
	}
}

// FetchLastUpdates performs the planner's bulk freshness lookup, chunked to
// stay under backend parameter limits.
func (r *Repository) FetchLastUpdates(ctx context.Context, keys [][]any) (map[string]time.Time, error) {
	out := make(map[string]time.Time, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	keyCols := quoteAll(r.d, r.cfg.KeyColumns)
	selectCols := strings.Join(append(append([]string{}, keyCols...), r.d.Quote(r.cfg.DateColumn)), ", ")

	for _, chunk := range sqlutil.ChunkKeys(keys, keyChunk) {
		where, args := sqlutil.KeyFilterSQL(r.d.Style, keyCols, chunk)
		q := fmt.Sprintf("SELECT %s FROM %s WHERE %s", selectCols, r.d.QuoteFQN(r.cfg.Table), where)

		rows, err := r.db.QueryContext(ctx, q, args...)
		if err != nil {
			return nil, fmt.Errorf("bulk lookup: %w", err)
		}
		if err := r.scanLastUpdates(rows, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *Repository) scanLastUpdates(rows *sql.Rows, out map[string]time.Time) error {
	defer rows.Close()

	width := len(r.cfg.KeyColumns) + 1
	for rows.Next() {
		vals := make([]any, width)
		ptrs := make([]any, width)
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("bulk lookup scan: %w", err)
		}

		parts := make([]string, width-1)
		for i := 0; i < width-1; i++ {
			parts[i] = entity.KeyString(vals[i])
		}
		key := entity.JoinKey(parts)

		ts, err := sqlutil.ToTime(vals[width-1])
		if err != nil {
			return fmt.Errorf("bulk lookup: key %s: %w", key, err)
		}
		out[key] = ts
	}
	return rows.Err()
}

// ApplyScope applies one scope inside a single transaction with prepared
// insert/update statements. Any failure rolls the whole scope back.
func (r *Repository) ApplyScope(ctx context.Context, scope storage.Scope) error {
	if scope.Empty() {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() // no-op after commit

	if len(scope.Inserts) > 0 {
		stmt, err := tx.PrepareContext(ctx, r.insertSQL)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		for _, row := range scope.Inserts {
			if _, err := stmt.ExecContext(ctx, row...); err != nil {
				stmt.Close()
				return fmt.Errorf("insert: %w", err)
			}
		}
		stmt.Close()
	}

	if len(scope.Updates) > 0 {
		stmt, err := tx.PrepareContext(ctx, r.updateSQL)
		if err != nil {
			return fmt.Errorf("prepare update: %w", err)
		}
		for _, row := range scope.Updates {
			args := updateArgs(row, r.cfg.Columns, r.setCols, r.cfg.KeyColumns)
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				stmt.Close()
				return fmt.Errorf("update: %w", err)
			}
		}
		stmt.Close()
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Count reports the total number of persisted rows.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+r.d.QuoteFQN(r.cfg.Table)).Scan(&n)
	return n, err
}

// Exec implements storage.Repository.Exec for DDL.
func (r *Repository) Exec(ctx context.Context, query string) error {
	_, err := r.db.ExecContext(ctx, query)
	return err
}

// Close closes the underlying handle.
func (r *Repository) Close() {
	_ = r.db.Close()
}

// updateArgs reorders a full row (aligned to columns) into set values
// followed by key values, matching UpdateSQL's marker order.
func updateArgs(row []any, columns, setCols, keyCols []string) []any {
	idx := make(map[string]int, len(columns))
	for i, c := range columns {
		idx[c] = i
	}
	args := make([]any, 0, len(setCols)+len(keyCols))
	for _, c := range setCols {
		args = append(args, row[idx[c]])
	}
	for _, c := range keyCols {
		args = append(args, row[idx[c]])
	}
	return args
}

func nonKeyColumns(columns, keyCols []string) []string {
	isKey := make(map[string]struct{}, len(keyCols))
	for _, k := range keyCols {
		isKey[k] = struct{}{}
	}
	out := make([]string, 0, len(columns))
	for _, c := range columns {
		if _, ok := isKey[c]; !ok {
			out = append(out, c)
		}
	}
	return out
}

func quoteAll(d Dialect, cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = d.Quote(c)
	}
	return out
}
