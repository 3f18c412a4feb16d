// Package reconcile decides, per incoming record, whether the store needs an
// insert, an update, or nothing, and applies the resulting plan in
// transactional batches.
package reconcile

import (
	"sort"
	"time"

	"github.com/Ananya0222/entity-data-processor/internal/entity"
)

// Skip records a key the planner chose not to write and why.
type Skip struct {
	Key    string
	Reason string
}

const (
	// ReasonNotNewer marks rows whose last-update is older than the stored one.
	ReasonNotNewer = "not newer"
	// ReasonUnchanged marks rows whose last-update equals the stored one.
	ReasonUnchanged = "unchanged"
)

// Plan partitions an incoming set against the store's current state. Every
// incoming key lands in exactly one of the three buckets.
type Plan struct {
	Inserts []entity.Record
	Updates []entity.Record
	Skips   []Skip
}

// Empty reports whether the plan carries no writes.
func (p *Plan) Empty() bool { return len(p.Inserts) == 0 && len(p.Updates) == 0 }

// BuildPlan compares incoming records against the last-update timestamps
// currently stored. Keys absent from existing become inserts. Present keys
// become updates only when the incoming row is strictly newer, or always
// when force is set. Everything else is skipped, so no write ever moves a
// stored timestamp backwards. Output order is sorted by key.
func BuildPlan(incoming entity.Set, existing map[string]time.Time, force bool) *Plan {
	keys := incoming.Keys()
	sort.Strings(keys)

	p := &Plan{}
	for _, k := range keys {
		r := incoming[k]
		stored, ok := existing[k]
		switch {
		case !ok:
			p.Inserts = append(p.Inserts, r)
		case force:
			p.Updates = append(p.Updates, r)
		case r.LastUpdate.After(stored):
			p.Updates = append(p.Updates, r)
		case r.LastUpdate.Equal(stored):
			p.Skips = append(p.Skips, Skip{Key: k, Reason: ReasonUnchanged})
		default:
			p.Skips = append(p.Skips, Skip{Key: k, Reason: ReasonNotNewer})
		}
	}
	return p
}
