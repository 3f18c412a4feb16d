// Package dedupe collapses duplicate entity records by identity key, keeping
// the freshest record. The same combine rule serves both the intra-file pass
// and the cross-file merge: a record replaces the stored one only when its
// last-update timestamp is strictly greater, so exact ties keep the
// earlier-seen record.
//
// Because the rule is expressed as a fold over (key -> record) maps with an
// associative combine, merging per-file sets yields the same result for any
// fixed fold order. Callers fold files in sorted-name order so the outcome is
// independent of directory discovery order.
package dedupe

import (
	"github.com/Ananya0222/entity-data-processor/internal/entity"
)

// Dedupe reduces one file's records to at most one per identity key. The
// second return value is the number of duplicates dropped. Pure in-memory
// reduction; no I/O.
func Dedupe(recs []entity.Record) (entity.Set, int) {
	set := make(entity.Set, len(recs))
	dropped := 0
	for _, r := range recs {
		if combine(set, r) {
			dropped++
		}
	}
	return set, dropped
}

// Merge folds per-file sets into one deduplicated set using the same
// later-wins rule across file boundaries. The second return value counts
// cross-file duplicates resolved (keys contributed by more than one set,
// counted per colliding record).
func Merge(sets []entity.Set) (entity.Set, int) {
	total := 0
	for _, s := range sets {
		total += len(s)
	}
	merged := make(entity.Set, total)
	dropped := 0
	for _, s := range sets {
		for _, r := range s {
			if combine(merged, r) {
				dropped++
			}
		}
	}
	return merged, dropped
}

// combine inserts r into set under the later-wins rule and reports whether a
// collision occurred (one record was discarded, whichever side lost).
func combine(set entity.Set, r entity.Record) bool {
	prev, exists := set[r.Key]
	if !exists {
		set[r.Key] = r
		return false
	}
	// Strictly greater replaces; ties keep the stored record.
	if r.LastUpdate.After(prev.LastUpdate) {
		set[r.Key] = r
	}
	return true
}
