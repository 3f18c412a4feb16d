// Package postgres implements the entity store on Postgres using pgx v5.
// Inserts go through COPY inside the scope's transaction; updates ride a
// pgx.Batch in the same transaction, so a scope commits or rolls back as a
// whole.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Ananya0222/entity-data-processor/internal/entity"
	"github.com/Ananya0222/entity-data-processor/internal/storage"
	"github.com/Ananya0222/entity-data-processor/internal/storage/sqlutil"
)

// keyChunk bounds the parameter count of one bulk-lookup query.
const keyChunk = 1000

// Repository is a Postgres-backed implementation of storage.Repository.
type Repository struct {
	pool *pgxpool.Pool
	cfg  storage.Config

	updateSQL string
	setCols   []string
}

// NewRepository connects a pool and fails fast with a ping so an unreachable
// store is reported before any transaction is attempted.
func NewRepository(ctx context.Context, cfg storage.Config) (*Repository, func(), error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}

	setCols := nonKeyColumns(cfg.Columns, cfg.KeyColumns)
	r := &Repository{
		pool:    pool,
		cfg:     cfg,
		setCols: setCols,
		updateSQL: sqlutil.UpdateSQL(
			sqlutil.Dollar, pgFQN(cfg.Table), mapIdent(setCols), mapIdent(cfg.KeyColumns),
		),
	}
	return r, func() { pool.Close() }, nil
}

// FetchLastUpdates performs the planner's bulk freshness lookup, chunked to
// keep each query's parameter list bounded.
func (r *Repository) FetchLastUpdates(ctx context.Context, keys [][]any) (map[string]time.Time, error) {
	out := make(map[string]time.Time, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	selectCols := append(mapIdent(r.cfg.KeyColumns), pgIdent(r.cfg.DateColumn))
	for _, chunk := range sqlutil.ChunkKeys(keys, keyChunk) {
		where, args := sqlutil.KeyFilterSQL(sqlutil.Dollar, mapIdent(r.cfg.KeyColumns), chunk)
		q := fmt.Sprintf(
			"SELECT %s FROM %s WHERE %s",
			strings.Join(selectCols, ", "), pgFQN(r.cfg.Table), where,
		)
		rows, err := r.pool.Query(ctx, q, args...)
		if err != nil {
			return nil, fmt.Errorf("bulk lookup: %w", err)
		}
		if err := scanLastUpdates(rows, len(r.cfg.KeyColumns), out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func scanLastUpdates(rows pgx.Rows, keyWidth int, out map[string]time.Time) error {
	defer rows.Close()
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return fmt.Errorf("bulk lookup scan: %w", err)
		}
		parts := make([]string, keyWidth)
		for i := 0; i < keyWidth; i++ {
			parts[i] = entity.KeyString(vals[i])
		}
		ts, err := sqlutil.ToTime(vals[keyWidth])
		if err != nil {
			return fmt.Errorf("bulk lookup: key %s: %w", entity.JoinKey(parts), err)
		}
		out[entity.JoinKey(parts)] = ts
	}
	return rows.Err()
}

// ApplyScope applies one scope in a single transaction: COPY for the inserts,
// batched UPDATEs for the updates. Any failure rolls the whole scope back.
func (r *Repository) ApplyScope(ctx context.Context, scope storage.Scope) error {
	if scope.Empty() {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) // no-op after commit

	if len(scope.Inserts) > 0 {
		_, err := tx.CopyFrom(ctx, splitFQN(r.cfg.Table), r.cfg.Columns, pgx.CopyFromRows(scope.Inserts))
		if err != nil {
			return fmt.Errorf("copy inserts: %w", pgDetail(err))
		}
	}

	if len(scope.Updates) > 0 {
		b := &pgx.Batch{}
		for _, row := range scope.Updates {
			b.Queue(r.updateSQL, updateArgs(row, r.cfg.Columns, r.setCols, r.cfg.KeyColumns)...)
		}
		if err := tx.SendBatch(ctx, b).Close(); err != nil {
			return fmt.Errorf("batched updates: %w", pgDetail(err))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Count reports the total number of persisted rows.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+pgFQN(r.cfg.Table)).Scan(&n)
	return n, err
}

// Exec implements storage.Repository.Exec for DDL.
func (r *Repository) Exec(ctx context.Context, sql string) error {
	_, err := r.pool.Exec(ctx, sql)
	return err
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

// nonKeyColumns filters key columns out of the write column list.
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

// pgDetail surfaces the server's detail text when present; the generic pgx
// message often omits the offending value.
func pgDetail(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		return fmt.Errorf("%s (%s)", pgErr.Detail, pgErr.SQLState())
	}
	return err
}

// pgIdent safely quotes a single identifier segment for Postgres.
func pgIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// pgFQN quotes a possibly schema-qualified name like "public.entity_metadata"
// to "public"."entity_metadata".
func pgFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = pgIdent(p)
	}
	return strings.Join(parts, ".")
}

// splitFQN converts "schema.table" into a pgx.Identifier {"schema","table"}.
func splitFQN(fqn string) pgx.Identifier {
	parts := strings.Split(fqn, ".")
	id := make(pgx.Identifier, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			id = append(id, p)
		}
	}
	return id
}

// mapIdent maps a list of column names to their quoted forms.
func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = pgIdent(c)
	}
	return out
}
