// Package entity holds the canonical record types flowing between the
// normalizer, the deduplicators, the planner, and the writer.
package entity

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// keySep joins multi-column identity keys; it cannot occur in CSV field data.
const keySep = "\x1f"

// Record is one normalized entity row.
type Record struct {
	// Key is the composite identity key (key column values joined in
	// declaration order). Unique within any deduplicated Set.
	Key string

	// Attrs maps every declared column (key columns included) to its typed
	// value: int64, time.Time, string, or nil.
	Attrs map[string]any

	// LastUpdate is the record's freshness timestamp. Never zero after
	// normalization.
	LastUpdate time.Time

	// Provenance for error reporting; not persisted.
	File string
	Line int
}

// Set is a deduplicated collection of records keyed by identity.
type Set map[string]Record

// JoinKey builds a composite identity key from ordered key parts.
func JoinKey(parts []string) string {
	if len(parts) == 1 {
		return parts[0]
	}
	return strings.Join(parts, keySep)
}

// SplitKey recovers the ordered key parts from a composite key.
func SplitKey(key string) []string {
	return strings.Split(key, keySep)
}

// KeyString renders one typed key value canonically. Normalization and the
// storage lookups both use it, so composite keys compare equal across the
// CSV and database sides.
func KeyString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case string:
		return t
	case []byte:
		return string(t)
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return fmt.Sprint(t)
	}
}

// KeyOf builds the composite identity key from the record's key-column values.
func KeyOf(attrs map[string]any, keyColumns []string) string {
	parts := make([]string, len(keyColumns))
	for i, c := range keyColumns {
		parts[i] = KeyString(attrs[c])
	}
	return JoinKey(parts)
}

// Keys returns the identity keys of the set in unspecified order.
func (s Set) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	return keys
}

// Row projects the record's attributes onto columns, in order.
func (r Record) Row(columns []string) []any {
	row := make([]any, len(columns))
	for i, c := range columns {
		row[i] = r.Attrs[c]
	}
	return row
}
