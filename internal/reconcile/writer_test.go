package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Ananya0222/entity-data-processor/internal/storage"
)

// fakeRepo records applied scopes and can fail on the nth ApplyScope call.
type fakeRepo struct {
	scopes  []storage.Scope
	failOn  int // 1-based call index to fail on; 0 = never
	applied int
}

func (f *fakeRepo) FetchLastUpdates(context.Context, [][]any) (map[string]time.Time, error) {
	return nil, nil
}

func (f *fakeRepo) ApplyScope(_ context.Context, s storage.Scope) error {
	f.applied++
	if f.failOn != 0 && f.applied == f.failOn {
		return errors.New("boom")
	}
	f.scopes = append(f.scopes, s)
	return nil
}

func (f *fakeRepo) Count(context.Context) (int64, error) { return 0, nil }
func (f *fakeRepo) Exec(context.Context, string) error   { return nil }
func (f *fakeRepo) Close()                               {}

func planOf(inserts, updates, skips int) *Plan {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := &Plan{}
	for i := 0; i < inserts; i++ {
		p.Inserts = append(p.Inserts, rec(string(rune('a'+i)), t0))
	}
	for i := 0; i < updates; i++ {
		p.Updates = append(p.Updates, rec(string(rune('m'+i)), t0))
	}
	for i := 0; i < skips; i++ {
		p.Skips = append(p.Skips, Skip{Key: string(rune('s' + i)), Reason: ReasonUnchanged})
	}
	return p
}

func TestWriterAppliesInBatches(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	w := &Writer{Repo: repo, Columns: []string{"id"}, BatchSize: 2}

	res, err := w.Apply(context.Background(), planOf(5, 3, 2))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.Inserted != 5 || res.Updated != 3 || res.Skipped != 2 || res.Batches != 5 {
		t.Fatalf("result = %+v", res)
	}

	// 5 inserts in batches of 2 -> 3 scopes; 3 updates -> 2 scopes.
	if len(repo.scopes) != 5 {
		t.Fatalf("scopes = %d, want 5", len(repo.scopes))
	}
	if n := len(repo.scopes[0].Inserts); n != 2 {
		t.Fatalf("first insert batch = %d rows, want 2", n)
	}
	if n := len(repo.scopes[2].Inserts); n != 1 {
		t.Fatalf("last insert batch = %d rows, want 1", n)
	}
	if n := len(repo.scopes[4].Updates); n != 1 {
		t.Fatalf("last update batch = %d rows, want 1", n)
	}
}

func TestWriterStopsOnFailedBatch(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{failOn: 2}
	w := &Writer{Repo: repo, Columns: []string{"id"}, BatchSize: 2}

	res, err := w.Apply(context.Background(), planOf(4, 2, 0))
	if err == nil {
		t.Fatal("expected error")
	}

	var we *WriteError
	if !errors.As(err, &we) {
		t.Fatalf("error type = %T, want *WriteError", err)
	}
	if we.Op != "insert" || we.Rows != 2 || we.First != "c" || we.Last != "d" {
		t.Fatalf("WriteError = %+v", we)
	}

	// The first batch committed before the failure; nothing after it ran.
	if res.Inserted != 2 || res.Updated != 0 {
		t.Fatalf("result = %+v", res)
	}
}

func TestWriterDefaultBatchSize(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	w := &Writer{Repo: repo, Columns: []string{"id"}}

	if _, err := w.Apply(context.Background(), planOf(3, 0, 0)); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(repo.scopes) != 1 {
		t.Fatalf("scopes = %d, want 1 (single batch)", len(repo.scopes))
	}
}

func TestWriterEmptyPlan(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	w := &Writer{Repo: repo, Columns: []string{"id"}, BatchSize: 10}

	res, err := w.Apply(context.Background(), planOf(0, 0, 3))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.Skipped != 3 || len(repo.scopes) != 0 {
		t.Fatalf("result = %+v, scopes = %d", res, len(repo.scopes))
	}
}
