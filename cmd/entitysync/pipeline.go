// This file contains the run orchestration: list input files, parse and
// normalize them in parallel, fold the per-file sets into one merged set,
// plan against the store, and apply the plan in transactional batches. The
// CLI layer stays thin and depends only on storage-agnostic interfaces.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Ananya0222/entity-data-processor/internal/config"
	"github.com/Ananya0222/entity-data-processor/internal/datasource/file"
	"github.com/Ananya0222/entity-data-processor/internal/dedupe"
	"github.com/Ananya0222/entity-data-processor/internal/entity"
	"github.com/Ananya0222/entity-data-processor/internal/metrics"
	"github.com/Ananya0222/entity-data-processor/internal/normalize"
	csvparser "github.com/Ananya0222/entity-data-processor/internal/parser/csv"
	"github.com/Ananya0222/entity-data-processor/internal/reconcile"
	"github.com/Ananya0222/entity-data-processor/internal/storage"
)

// maxExamples bounds how many rejection messages the end-of-run summary shows.
const maxExamples = 3

// counters holds cross-goroutine statistics for a run. All fields are
// updated atomically by the file workers.
type counters struct {
	filesRead    atomic.Int64 // files parsed to completion
	filesSkipped atomic.Int64 // files dropped for header/schema problems
	rowsRead     atomic.Int64 // data rows handed to normalization
	rowsSkipped  atomic.Int64 // unparsable rows dropped by the CSV reader
	exactDups    atomic.Int64 // byte-identical repeats inside one file
	rejected     atomic.Int64 // rows rejected by normalization
	deduped      atomic.Int64 // rows dropped as stale duplicates of a key
}

// Function variables used to introduce test seams. In production these point
// at the real implementations.
var (
	newRepositoryFn = storage.New

	listFilesFn = file.List
)

// fileResult is the output of one file worker: the file's deduplicated
// record set plus its contribution to the run counters.
type fileResult struct {
	name string
	set  entity.Set
}

// runtimeConfig resolves concurrency and batching with environment
// fallbacks (12-factor style).
type runtimeConfig struct {
	fileWorkers int
	batchSize   int
}

func newRuntimeConfig(spec config.Spec) runtimeConfig {
	return runtimeConfig{
		fileWorkers: pickInt(spec.Runtime.FileWorkers, getenvInt("ENTITYSYNC_FILE_WORKERS", 4)),
		batchSize:   pickInt(spec.Runtime.WriteBatchSize, getenvInt("ENTITYSYNC_BATCH_SIZE", 1000)),
	}
}

func pickInt(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

// run executes one full sync: inputs → merged set → plan → writes.
//
// Failure semantics follow the input taxonomy: a row that fails
// normalization is dropped and counted, a file whose header misses declared
// columns is skipped whole, and only connection or write failures abort the
// run. The summary preserves the count invariant
//
//	rows_read == planned(inserts+updates+skips) + rejected + deduped
//
// for every run, so lost records are visible immediately.
func run(ctx context.Context, spec config.Spec, verbose bool) error {
	rt := newRuntimeConfig(spec)

	inputs, err := resolveInputs(spec.Source)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return fmt.Errorf("no input files matched %q in %s", spec.Source.Pattern, spec.Source.Dir)
	}
	if verbose {
		log.Printf("inputs: %d file(s), workers=%d batch=%d", len(inputs), rt.fileWorkers, rt.batchSize)
	}

	storCfg := storage.Config{
		Kind:       spec.Storage.Kind,
		DSN:        spec.Storage.DB.DSN,
		Table:      spec.Storage.DB.Table,
		Columns:    spec.Contract.Columns(),
		KeyColumns: spec.Contract.KeyColumns(),
		DateColumn: spec.Contract.LastUpdateColumn,
	}

	repo, err := newRepositoryFn(ctx, storCfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	if spec.Storage.DB.AutoCreateTable {
		if err := storage.EnsureTable(ctx, repo, storCfg, spec.Contract); err != nil {
			return fmt.Errorf("ensure table %s: %w", storCfg.Table, err)
		}
	}

	var stats counters
	rejectAgg := newErrAgg(maxExamples)
	bad := &badFiles{}

	// Stage 1: parse, normalize, and dedupe each file concurrently. Results
	// land in a slice indexed by input position so the fold order below is
	// the sorted file-name order regardless of which worker finishes first.
	parseStart := time.Now()
	results := make([]fileResult, len(inputs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(rt.fileWorkers)
	for i, path := range inputs {
		g.Go(func() error {
			set, err := processFile(gctx, spec, path, &stats, rejectAgg, bad)
			if err != nil {
				return err
			}
			results[i] = fileResult{name: path, set: set}
			return nil
		})
	}
	err = g.Wait()
	metrics.RecordStage(spec.Job, "normalize", err, time.Since(parseStart))
	if err != nil {
		return err
	}

	// Stage 2: fold the per-file sets. Later-named files win ties only
	// through the freshness rule inside Merge; the fold order itself is
	// fixed, so reruns are deterministic.
	sets := make([]entity.Set, 0, len(results))
	for _, r := range results {
		if r.set != nil {
			sets = append(sets, r.set)
		}
	}
	merged, crossDropped := dedupe.Merge(sets)
	stats.deduped.Add(int64(crossDropped))

	if len(merged) == 0 {
		log.Printf("nothing to sync: all %d file(s) empty or skipped", len(inputs))
		logSummary(spec.Job, &stats, &reconcile.Plan{}, reconcile.Result{}, rejectAgg)
		return bad.err()
	}

	// Stage 3: one bulk read of the stored freshness for every incoming key.
	lookupStart := time.Now()
	existing, err := repo.FetchLastUpdates(ctx, keyRows(merged, storCfg.KeyColumns))
	metrics.RecordStage(spec.Job, "lookup", err, time.Since(lookupStart))
	if err != nil {
		return err
	}

	plan := reconcile.BuildPlan(merged, existing, spec.ForceUpdate)
	if verbose {
		log.Printf("plan: %d insert(s), %d update(s), %d skip(s)",
			len(plan.Inserts), len(plan.Updates), len(plan.Skips))
	}

	// Stage 4: apply. Partial failure leaves earlier batches committed; the
	// summary reports both the committed counts and the error.
	writeStart := time.Now()
	writer := &reconcile.Writer{Repo: repo, Columns: storCfg.Columns, BatchSize: rt.batchSize}
	res, werr := writer.Apply(ctx, plan)
	metrics.RecordStage(spec.Job, "write", werr, time.Since(writeStart))

	if total, cerr := repo.Count(ctx); cerr != nil {
		log.Printf("table row count unavailable: %v", cerr)
	} else {
		log.Printf("table %s now holds %d row(s)", storCfg.Table, total)
	}

	logSummary(spec.Job, &stats, plan, res, rejectAgg)
	if werr != nil {
		return werr
	}
	return bad.err()
}

// processFile runs the per-file portion of the pipeline: open, parse,
// normalize, intra-file dedupe. A *csv.SchemaError skips the file and
// returns a nil set; row-level problems are counted and aggregated.
func processFile(ctx context.Context, spec config.Spec, path string, stats *counters, agg *errAgg, bad *badFiles) (entity.Set, error) {
	rc, err := file.NewLocal(path).Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	parser := csvparser.NewParser(csvparser.Options{
		Comma:     commaRune(spec.Parser.Comma),
		TrimSpace: spec.Parser.TrimSpace,
		Encoding:  spec.Source.Encoding,
		HeaderMap: spec.Contract.HeaderMap,
		Columns:   spec.Contract.Columns(),
	})

	raw, pstats, err := parser.Parse(rc, path)
	if err != nil {
		var se *csvparser.SchemaError
		if errors.As(err, &se) {
			log.Printf("skipping file: %v", se)
			stats.filesSkipped.Add(1)
			return nil, nil
		}
		return nil, err
	}
	stats.filesRead.Add(1)
	stats.rowsRead.Add(int64(pstats.Rows))
	stats.rowsSkipped.Add(int64(pstats.Skipped))
	stats.exactDups.Add(int64(pstats.ExactDups))

	norm := normalize.New(spec.Contract, nil)
	recs := make([]entity.Record, 0, len(raw))
	rejected := 0
	for _, row := range raw {
		rec, err := norm.Normalize(row, path)
		if err != nil {
			agg.add(err.Error())
			rejected++
			continue
		}
		recs = append(recs, rec)
	}
	stats.rejected.Add(int64(rejected))
	if pstats.Rows > 0 && rejected == pstats.Rows {
		bad.add(filepath.Base(path))
	}

	set, dropped := dedupe.Dedupe(recs)
	stats.deduped.Add(int64(dropped))
	log.Printf("%s: rows=%d unparsable=%d exact_dups=%d rejected=%d deduped=%d",
		filepath.Base(path), pstats.Rows, pstats.Skipped, pstats.ExactDups, rejected, dropped)
	if dropped > 0 {
		log.Printf("%s: duplicate key sample: %s", filepath.Base(path), strings.Join(dupSample(recs, maxExamples), ", "))
	}
	return set, nil
}

// dupSample returns up to limit keys that occur more than once in recs.
func dupSample(recs []entity.Record, limit int) []string {
	seen := make(map[string]int, len(recs))
	var samples []string
	for _, r := range recs {
		seen[r.Key]++
		if seen[r.Key] == 2 && len(samples) < limit {
			samples = append(samples, r.Key)
		}
	}
	return samples
}

// resolveInputs returns the sorted list of files for the run: the single
// configured file, or a case-insensitive directory scan. A relative File is
// looked up inside Dir.
func resolveInputs(src config.Source) ([]string, error) {
	if src.File != "" {
		p := src.File
		if !filepath.IsAbs(p) && src.Dir != "" {
			p = filepath.Join(src.Dir, p)
		}
		return []string{p}, nil
	}
	return listFilesFn(src.Dir, src.Pattern)
}

// keyRows renders the merged set's identity keys as column-value rows for
// the bulk freshness lookup, in sorted key order.
func keyRows(set entity.Set, keyColumns []string) [][]any {
	keys := set.Keys()
	sort.Strings(keys)
	rows := make([][]any, len(keys))
	for i, k := range keys {
		rows[i] = set[k].Row(keyColumns)
	}
	return rows
}

func commaRune(s string) rune {
	if s == "" {
		return ','
	}
	return rune(s[0])
}

// logSummary prints the end-of-run statistics and emits the corresponding
// record-level metrics.
//
// Count invariant for every run:
//
//	rows_read == inserts + updates + skips + rejected + deduped
func logSummary(job string, stats *counters, plan *reconcile.Plan, res reconcile.Result, agg *errAgg) {
	log.Printf("files: read=%d skipped=%d", stats.filesRead.Load(), stats.filesSkipped.Load())
	log.Printf("rows: read=%d unparsable=%d exact_dups=%d rejected=%d deduped=%d",
		stats.rowsRead.Load(), stats.rowsSkipped.Load(), stats.exactDups.Load(),
		stats.rejected.Load(), stats.deduped.Load())
	log.Printf("writes: inserted=%d updated=%d skipped=%d", res.Inserted, res.Updated, res.Skipped)

	planned := int64(len(plan.Inserts) + len(plan.Updates) + len(plan.Skips))
	if accounted := planned + stats.rejected.Load() + stats.deduped.Load(); accounted != stats.rowsRead.Load() {
		log.Printf("WARNING: %d row(s) unaccounted for (read=%d, accounted=%d)",
			stats.rowsRead.Load()-accounted, stats.rowsRead.Load(), accounted)
	}

	if agg.count > 0 {
		log.Printf("rejected rows: %d (showing first %d)", agg.count, len(agg.first))
		for i, s := range agg.first {
			log.Printf("  #%03d: %s", i+1, s)
		}
	}

	metrics.RecordRows(job, "read", stats.rowsRead.Load())
	metrics.RecordRows(job, "rejected", stats.rejected.Load())
	metrics.RecordRows(job, "duplicates", stats.deduped.Load())
	metrics.RecordRows(job, "inserted", int64(res.Inserted))
	metrics.RecordRows(job, "updated", int64(res.Updated))
	metrics.RecordRows(job, "skipped", int64(res.Skipped))
	metrics.RecordBatches(job, int64(res.Batches))
}

// badFiles collects the names of files whose every row was rejected. A run
// that reads such a file finishes its other work but reports failure.
type badFiles struct {
	mu    sync.Mutex
	names []string
}

func (b *badFiles) add(name string) {
	b.mu.Lock()
	b.names = append(b.names, name)
	b.mu.Unlock()
}

func (b *badFiles) err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.names) == 0 {
		return nil
	}
	names := make([]string, len(b.names))
	copy(names, b.names)
	sort.Strings(names)
	return fmt.Errorf("%d file(s) had every row rejected: %s", len(names), strings.Join(names, ", "))
}

// errAgg aggregates rejection messages: full count, first N examples.
type errAgg struct {
	mu    sync.Mutex
	limit int
	count int
	first []string
}

func newErrAgg(limit int) *errAgg {
	return &errAgg{limit: limit}
}

func (a *errAgg) add(msg string) {
	a.mu.Lock()
	if a.count < a.limit {
		a.first = append(a.first, msg)
	}
	a.count++
	a.mu.Unlock()
}
