package reconcile

import (
	"testing"
	"time"

	"github.com/Ananya0222/entity-data-processor/internal/entity"
)

func rec(key string, ts time.Time) entity.Record {
	return entity.Record{
		Key:        key,
		Attrs:      map[string]any{"id": key, "last_update_date": ts},
		LastUpdate: ts,
	}
}

func setOf(recs ...entity.Record) entity.Set {
	s := make(entity.Set, len(recs))
	for _, r := range recs {
		s[r.Key] = r
	}
	return s
}

func TestBuildPlanPartitions(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	incoming := setOf(
		rec("a", t0),               // absent from store: insert
		rec("b", t0.Add(time.Hour)), // newer than stored: update
		rec("c", t0),               // equal to stored: skip
		rec("d", t0),               // older than stored: skip
	)
	existing := map[string]time.Time{
		"b": t0,
		"c": t0,
		"d": t0.Add(time.Hour),
	}

	p := BuildPlan(incoming, existing, false)

	if len(p.Inserts) != 1 || p.Inserts[0].Key != "a" {
		t.Fatalf("inserts = %v", keysOf(p.Inserts))
	}
	if len(p.Updates) != 1 || p.Updates[0].Key != "b" {
		t.Fatalf("updates = %v", keysOf(p.Updates))
	}
	if len(p.Skips) != 2 {
		t.Fatalf("skips = %v", p.Skips)
	}
	for _, s := range p.Skips {
		switch s.Key {
		case "c":
			if s.Reason != ReasonUnchanged {
				t.Errorf("skip c reason = %q", s.Reason)
			}
		case "d":
			if s.Reason != ReasonNotNewer {
				t.Errorf("skip d reason = %q", s.Reason)
			}
		default:
			t.Errorf("unexpected skip key %q", s.Key)
		}
	}
}

func TestBuildPlanForceUpdatesEverythingPresent(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	incoming := setOf(rec("a", t0), rec("b", t0))
	existing := map[string]time.Time{"b": t0.Add(time.Hour)} // stored is fresher

	p := BuildPlan(incoming, existing, true)
	if len(p.Inserts) != 1 || p.Inserts[0].Key != "a" {
		t.Fatalf("inserts = %v", keysOf(p.Inserts))
	}
	if len(p.Updates) != 1 || p.Updates[0].Key != "b" {
		t.Fatalf("updates = %v", keysOf(p.Updates))
	}
	if len(p.Skips) != 0 {
		t.Fatalf("skips = %v", p.Skips)
	}
}

// Rerunning the same input against the post-write state must produce no
// writes: inserts become present, updates become equal.
func TestBuildPlanIdempotent(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	incoming := setOf(rec("a", t0), rec("b", t0.Add(time.Hour)))

	first := BuildPlan(incoming, map[string]time.Time{"b": t0}, false)
	if len(first.Inserts) != 1 || len(first.Updates) != 1 {
		t.Fatalf("first plan: %d inserts, %d updates", len(first.Inserts), len(first.Updates))
	}

	after := make(map[string]time.Time)
	for _, r := range append(first.Inserts, first.Updates...) {
		after[r.Key] = r.LastUpdate
	}

	second := BuildPlan(incoming, after, false)
	if !second.Empty() {
		t.Fatalf("second plan not empty: %d inserts, %d updates", len(second.Inserts), len(second.Updates))
	}
	if len(second.Skips) != len(incoming) {
		t.Fatalf("second plan skips = %d, want %d", len(second.Skips), len(incoming))
	}
}

func TestBuildPlanSortedOutput(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	incoming := setOf(rec("c", t0), rec("a", t0), rec("b", t0))

	p := BuildPlan(incoming, nil, false)
	got := keysOf(p.Inserts)
	for i := 1; i < len(got); i++ {
		if got[i-1] >= got[i] {
			t.Fatalf("inserts not sorted: %v", got)
		}
	}
}

// Count conservation: every incoming key lands in exactly one bucket.
func TestBuildPlanConservesCounts(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	incoming := setOf(rec("a", t0), rec("b", t0), rec("c", t0), rec("d", t0))
	existing := map[string]time.Time{"b": t0, "c": t0.Add(-time.Hour)}

	p := BuildPlan(incoming, existing, false)
	if got := len(p.Inserts) + len(p.Updates) + len(p.Skips); got != len(incoming) {
		t.Fatalf("buckets sum to %d, want %d", got, len(incoming))
	}
}

func keysOf(recs []entity.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Key
	}
	return out
}
