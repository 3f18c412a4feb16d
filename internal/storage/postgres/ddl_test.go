package postgres

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Ananya0222/entity-data-processor/internal/schema"
	"github.com/Ananya0222/entity-data-processor/internal/storage"
)

// execRecorder captures the DDL handed to Exec.
type execRecorder struct{ sql string }

func (e *execRecorder) FetchLastUpdates(context.Context, [][]any) (map[string]time.Time, error) {
	return nil, nil
}
func (e *execRecorder) ApplyScope(context.Context, storage.Scope) error { return nil }
func (e *execRecorder) Count(context.Context) (int64, error)           { return 0, nil }
func (e *execRecorder) Exec(_ context.Context, sql string) error {
	e.sql = sql
	return nil
}
func (e *execRecorder) Close() {}

func TestMapType(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"int":  "BIGINT",
		"date": "TIMESTAMPTZ",
		"text": "TEXT",
		"":     "TEXT",
	}
	for in, want := range cases {
		if got := MapType(in); got != want {
			t.Errorf("MapType(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEnsureTableSQL(t *testing.T) {
	t.Parallel()

	cfg := storage.Config{Table: "public.entity_metadata"}
	contract := schema.Contract{
		Name:             "entity",
		LastUpdateColumn: "last_update_date",
		Fields: []schema.Field{
			{Name: "customer_id", Type: "int", Key: true},
			{Name: "city", Type: "text", Nullable: true},
			{Name: "last_update_date", Type: "date"},
		},
	}

	rec := &execRecorder{}
	if err := EnsureTable(context.Background(), rec, cfg, contract); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}

	for _, want := range []string{
		`CREATE TABLE IF NOT EXISTS "public"."entity_metadata"`,
		`"customer_id" BIGINT NOT NULL`,
		`"last_update_date" TIMESTAMPTZ NOT NULL`,
		`UNIQUE ("customer_id")`,
	} {
		if !strings.Contains(rec.sql, want) {
			t.Errorf("DDL missing %q:\n%s", want, rec.sql)
		}
	}
	if strings.Contains(rec.sql, `"city" TEXT NOT NULL`) {
		t.Errorf("nullable column rendered NOT NULL:\n%s", rec.sql)
	}
}
