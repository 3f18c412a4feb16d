package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Ananya0222/entity-data-processor/internal/config"
	"github.com/Ananya0222/entity-data-processor/internal/entity"
	"github.com/Ananya0222/entity-data-processor/internal/metrics"
	"github.com/Ananya0222/entity-data-processor/internal/schema"
	"github.com/Ananya0222/entity-data-processor/internal/storage"
)

// memRepo is an in-memory store for end-to-end pipeline tests.
type memRepo struct {
	rows   map[string][]any // key -> full row
	fresh  map[string]time.Time
	scopes int
}

func newMemRepo() *memRepo {
	return &memRepo{rows: map[string][]any{}, fresh: map[string]time.Time{}}
}

func (m *memRepo) FetchLastUpdates(_ context.Context, keys [][]any) (map[string]time.Time, error) {
	out := make(map[string]time.Time)
	for _, k := range keys {
		parts := make([]string, len(k))
		for i, v := range k {
			parts[i] = entity.KeyString(v)
		}
		key := entity.JoinKey(parts)
		if ts, ok := m.fresh[key]; ok {
			out[key] = ts
		}
	}
	return out, nil
}

func (m *memRepo) ApplyScope(_ context.Context, s storage.Scope) error {
	m.scopes++
	for _, row := range append(append([][]any{}, s.Inserts...), s.Updates...) {
		key := entity.KeyString(row[0]) // customer_id is the first column
		m.rows[key] = row
		m.fresh[key] = row[len(row)-1].(time.Time) // last_update_date is last
	}
	return nil
}

func (m *memRepo) Count(context.Context) (int64, error) { return int64(len(m.rows)), nil }
func (m *memRepo) Exec(context.Context, string) error   { return nil }
func (m *memRepo) Close()                               {}

func testSpec(dir string) config.Spec {
	return config.Spec{
		Job: "test_load",
		Source: config.Source{
			Dir:      dir,
			Pattern:  "*.csv",
			Encoding: "utf-8",
		},
		Parser: config.Parser{TrimSpace: true},
		Contract: schema.Contract{
			Name:             "entity",
			LastUpdateColumn: "last_update_date",
			Fields: []schema.Field{
				{Name: "customer_id", Type: "int", Key: true},
				{Name: "corporation_name", Type: "text", Nullable: true},
				{Name: "last_update_date", Type: "date"},
			},
		},
		Storage: config.Storage{
			Kind: "mem",
			DB:   config.DBConfig{DSN: "mem://", Table: "entity_metadata"},
		},
		Runtime: config.Runtime{FileWorkers: 2, WriteBatchSize: 10},
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

// withRepo points the pipeline at repo for the duration of one test.
func withRepo(t *testing.T, repo storage.Repository) {
	t.Helper()
	orig := newRepositoryFn
	newRepositoryFn = func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return repo, nil
	}
	t.Cleanup(func() { newRepositoryFn = orig })
}

func TestRunEndToEnd(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.csv",
		"customer_id,corporation_name,last_update_date\n"+
			"1,acme,2024-03-01\n"+
			"2,globex,2024-03-01\n"+
			"2,globex west,2024-03-02\n") // intra-file duplicate, fresher wins
	writeFile(t, dir, "b.csv",
		"customer_id,corporation_name,last_update_date\n"+
			"2,globex east,2024-02-01\n"+ // cross-file duplicate, stale
			"3,initech,2024-03-01\n")

	repo := newMemRepo()
	// Key 3 already stored and fresher than the file: must stay untouched.
	repo.fresh["3"] = time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	repo.rows["3"] = []any{int64(3), "KEPT", time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)}
	withRepo(t, repo)

	if err := run(context.Background(), testSpec(dir), true); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(repo.rows) != 3 {
		t.Fatalf("store has %d rows, want 3", len(repo.rows))
	}
	if got := repo.rows["2"][1]; got != "GLOBEX WEST" {
		t.Fatalf("key 2 = %#v, want the freshest duplicate", got)
	}
	if got := repo.rows["3"][1]; got != "KEPT" {
		t.Fatalf("key 3 = %#v; a stale row must never overwrite a fresher one", got)
	}
}

func TestRunForceUpdateOverwrites(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.csv",
		"customer_id,corporation_name,last_update_date\n"+
			"1,acme,2024-03-01\n")

	repo := newMemRepo()
	repo.fresh["1"] = time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	repo.rows["1"] = []any{int64(1), "OLD", time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)}
	withRepo(t, repo)

	spec := testSpec(dir)
	spec.ForceUpdate = true
	if err := run(context.Background(), spec, false); err != nil {
		t.Fatalf("run: %v", err)
	}

	if got := repo.rows["1"][1]; got != "ACME" {
		t.Fatalf("key 1 = %#v, want forced overwrite", got)
	}
}

// A rerun of identical input must plan zero writes.
func TestRunIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.csv",
		"customer_id,corporation_name,last_update_date\n"+
			"1,acme,2024-03-01\n"+
			"2,globex,2024-03-02\n")

	repo := newMemRepo()
	withRepo(t, repo)
	spec := testSpec(dir)

	if err := run(context.Background(), spec, false); err != nil {
		t.Fatalf("first run: %v", err)
	}
	scopesAfterFirst := repo.scopes

	if err := run(context.Background(), spec, false); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if repo.scopes != scopesAfterFirst {
		t.Fatalf("second run applied %d extra scope(s)", repo.scopes-scopesAfterFirst)
	}
}

func TestRunSkipsFileWithMissingColumns(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.csv", "customer_id\n1\n")
	writeFile(t, dir, "good.csv",
		"customer_id,corporation_name,last_update_date\n"+
			"1,acme,2024-03-01\n")

	repo := newMemRepo()
	withRepo(t, repo)

	if err := run(context.Background(), testSpec(dir), false); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(repo.rows) != 1 {
		t.Fatalf("store has %d rows, want 1 (bad file skipped)", len(repo.rows))
	}
}

func TestRunSingleFileMode(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.csv",
		"customer_id,corporation_name,last_update_date\n1,acme,2024-03-01\n")
	writeFile(t, dir, "b.csv",
		"customer_id,corporation_name,last_update_date\n2,globex,2024-03-01\n")

	repo := newMemRepo()
	withRepo(t, repo)

	// A bare file name is resolved inside the input directory.
	spec := testSpec(dir)
	spec.Source.File = "a.csv"
	if err := run(context.Background(), spec, false); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(repo.rows) != 1 {
		t.Fatalf("store has %d rows, want 1 (single-file mode)", len(repo.rows))
	}
	if _, ok := repo.rows["1"]; !ok {
		t.Fatalf("rows = %v, want only key 1", repo.rows)
	}

	// An absolute path bypasses the directory join.
	spec.Source.File = filepath.Join(dir, "b.csv")
	if err := run(context.Background(), spec, false); err != nil {
		t.Fatalf("run (absolute): %v", err)
	}
	if _, ok := repo.rows["2"]; !ok {
		t.Fatalf("rows = %v, want key 2 after absolute-path run", repo.rows)
	}
}

func TestRunNoInputs(t *testing.T) {
	repo := newMemRepo()
	withRepo(t, repo)

	if err := run(context.Background(), testSpec(t.TempDir()), false); err == nil {
		t.Fatal("expected error when no files match")
	}
}

func TestRunFailsWhenAllRowsRejected(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.csv",
		"customer_id,corporation_name,last_update_date\nx,acme,2024-03-01\ny,globex,2024-03-01\n")

	repo := newMemRepo()
	withRepo(t, repo)

	err := run(context.Background(), testSpec(dir), false)
	if err == nil {
		t.Fatal("expected error when every row in a file is rejected")
	}
	if !strings.Contains(err.Error(), "every row rejected") {
		t.Fatalf("error = %v, want mention of rejected file", err)
	}
	if len(repo.rows) != 0 {
		t.Fatalf("store has %d rows, want 0", len(repo.rows))
	}
}

func TestRunBadFileStillWritesGoodFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.csv",
		"customer_id,corporation_name,last_update_date\nx,acme,2024-03-01\n")
	writeFile(t, dir, "b.csv",
		"customer_id,corporation_name,last_update_date\n2,globex,2024-03-01\n")

	repo := newMemRepo()
	withRepo(t, repo)

	err := run(context.Background(), testSpec(dir), false)
	if err == nil {
		t.Fatal("expected error for the fully rejected file")
	}
	if !strings.Contains(err.Error(), "a.csv") {
		t.Fatalf("error = %v, want a.csv named", err)
	}
	if _, ok := repo.rows["2"]; !ok {
		t.Fatalf("rows = %v, want key 2 written despite the bad file", repo.rows)
	}
}

// captureBackend records counter increments for wiring tests.
type captureBackend struct {
	counts map[string]float64
}

func (c *captureBackend) IncCounter(name string, delta float64, _ metrics.Labels) {
	c.counts[name] += delta
}
func (c *captureBackend) ObserveHistogram(string, float64, metrics.Labels) {}
func (c *captureBackend) Flush() error                                    { return nil }

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, metrics.Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, metrics.Labels) {}
func (nopBackend) Flush() error                                     { return nil }

func TestRunRecordsWriteBatches(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.csv",
		"customer_id,corporation_name,last_update_date\n1,acme,2024-03-01\n2,globex,2024-03-01\n")

	repo := newMemRepo()
	withRepo(t, repo)

	cb := &captureBackend{counts: map[string]float64{}}
	metrics.SetBackend(cb)
	t.Cleanup(func() { metrics.SetBackend(nopBackend{}) })

	spec := testSpec(dir)
	spec.Runtime.WriteBatchSize = 1
	if err := run(context.Background(), spec, false); err != nil {
		t.Fatalf("run: %v", err)
	}

	// 2 inserts at batch size 1 commit as 2 scopes.
	if got := cb.counts["entitysync_batches_total"]; got != 2 {
		t.Fatalf("entitysync_batches_total = %v, want 2", got)
	}
}

type flushBackend struct {
	nopBackend
	flushed bool
}

func (f *flushBackend) Flush() error {
	f.flushed = true
	return nil
}

func TestFailRunFlushesMetrics(t *testing.T) {
	fb := &flushBackend{}
	metrics.SetBackend(fb)
	t.Cleanup(func() { metrics.SetBackend(nopBackend{}) })

	failRun(errors.New("boom"))
	if !fb.flushed {
		t.Fatal("metrics were not flushed on the failure path")
	}
}
