package reconcile

import (
	"context"
	"fmt"

	"github.com/Ananya0222/entity-data-processor/internal/entity"
	"github.com/Ananya0222/entity-data-processor/internal/storage"
)

// WriteError reports a failed batch. Batches are atomic, so the rows named
// here were rolled back as a unit; earlier batches stay committed.
type WriteError struct {
	Op    string // "insert" or "update"
	First string // first and last keys in the failed batch
	Last  string
	Rows  int
	Err   error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s batch (%d rows, keys %s..%s): %v", e.Op, e.Rows, e.First, e.Last, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Result counts what a writer actually did. Batches is the number of
// committed storage scopes.
type Result struct {
	Inserted int
	Updated  int
	Skipped  int
	Batches  int
}

// Writer applies plans to a repository in batches of at most BatchSize rows.
// Each batch goes through the repository inside one transaction.
type Writer struct {
	Repo      storage.Repository
	Columns   []string
	BatchSize int
}

// Apply executes the plan. Inserts and updates are chunked separately; a
// failing batch stops the run and is reported as a *WriteError with the
// counts of everything committed before it.
func (w *Writer) Apply(ctx context.Context, p *Plan) (Result, error) {
	res := Result{Skipped: len(p.Skips)}
	size := w.BatchSize
	if size <= 0 {
		size = 1000
	}

	for start := 0; start < len(p.Inserts); start += size {
		batch := p.Inserts[start:min(start+size, len(p.Inserts))]
		scope := storage.Scope{Inserts: rows(batch, w.Columns)}
		if err := w.Repo.ApplyScope(ctx, scope); err != nil {
			return res, &WriteError{Op: "insert", First: batch[0].Key, Last: batch[len(batch)-1].Key, Rows: len(batch), Err: err}
		}
		res.Inserted += len(batch)
		res.Batches++
	}

	for start := 0; start < len(p.Updates); start += size {
		batch := p.Updates[start:min(start+size, len(p.Updates))]
		scope := storage.Scope{Updates: rows(batch, w.Columns)}
		if err := w.Repo.ApplyScope(ctx, scope); err != nil {
			return res, &WriteError{Op: "update", First: batch[0].Key, Last: batch[len(batch)-1].Key, Rows: len(batch), Err: err}
		}
		res.Updated += len(batch)
		res.Batches++
	}
	return res, nil
}

func rows(recs []entity.Record, columns []string) [][]any {
	out := make([][]any, len(recs))
	for i, r := range recs {
		out[i] = r.Row(columns)
	}
	return out
}
