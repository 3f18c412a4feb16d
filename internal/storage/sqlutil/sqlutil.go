// Package sqlutil holds the SQL plumbing shared by the database/sql-based
// backends: placeholder styles, statement builders for the scope's inserts
// and updates, and loose driver-value coercion.
package sqlutil

import (
	"fmt"
	"strings"
	"time"
)

// Style selects the parameter placeholder dialect.
type Style int

const (
	// Question is "?" (sqlite, mysql).
	Question Style = iota
	// Dollar is "$1", "$2", ... (postgres).
	Dollar
	// AtP is "@p1", "@p2", ... (mssql).
	AtP
)

// Placeholder renders the n-th (1-based) parameter marker.
func (s Style) Placeholder(n int) string {
	switch s {
	case Dollar:
		return fmt.Sprintf("$%d", n)
	case AtP:
		return fmt.Sprintf("@p%d", n)
	default:
		return "?"
	}
}

// Placeholders renders markers start..start+n-1, comma-joined.
func Placeholders(s Style, start, n int) string {
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = s.Placeholder(start + i)
	}
	return strings.Join(parts, ", ")
}

// InsertSQL builds "INSERT INTO table (cols) VALUES (markers)".
func InsertSQL(s Style, table string, columns []string) string {
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(columns, ", "), Placeholders(s, 1, len(columns)),
	)
}

// UpdateSQL builds "UPDATE table SET c = ? ... WHERE k = ? ...". Set columns
// take the first markers, key columns the following ones, so callers bind
// set values then key values.
func UpdateSQL(s Style, table string, setColumns, keyColumns []string) string {
	sets := make([]string, len(setColumns))
	for i, c := range setColumns {
		sets[i] = fmt.Sprintf("%s = %s", c, s.Placeholder(i+1))
	}
	conds := make([]string, len(keyColumns))
	for i, c := range keyColumns {
		conds[i] = fmt.Sprintf("%s = %s", c, s.Placeholder(len(setColumns)+i+1))
	}
	return fmt.Sprintf(
		"UPDATE %s SET %s WHERE %s",
		table, strings.Join(sets, ", "), strings.Join(conds, " AND "),
	)
}

// KeyFilterSQL builds the WHERE fragment matching a batch of identity keys
// and returns it with the flattened bind arguments. Single-column keys use an
// IN list; composite keys use OR-joined per-key conjunctions, which every
// supported dialect accepts.
func KeyFilterSQL(s Style, keyColumns []string, keys [][]any) (string, []any) {
	if len(keys) == 0 {
		return "1 = 0", nil
	}
	args := make([]any, 0, len(keys)*len(keyColumns))

	if len(keyColumns) == 1 {
		for _, k := range keys {
			args = append(args, k[0])
		}
		return fmt.Sprintf("%s IN (%s)", keyColumns[0], Placeholders(s, 1, len(keys))), args
	}

	groups := make([]string, 0, len(keys))
	n := 1
	for _, k := range keys {
		conds := make([]string, len(keyColumns))
		for i, c := range keyColumns {
			conds[i] = fmt.Sprintf("%s = %s", c, s.Placeholder(n))
			args = append(args, k[i])
			n++
		}
		groups = append(groups, "("+strings.Join(conds, " AND ")+")")
	}
	return strings.Join(groups, " OR "), args
}

// timeLayouts are tried in order when a driver hands back a textual timestamp.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ToTime coerces a driver value into a time.Time. sqlite hands timestamps
// back as text, mysql as []byte unless parseTime is set; the typed drivers
// return time.Time directly.
func ToTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		return parseTime(t)
	case []byte:
		return parseTime(string(t))
	case nil:
		return time.Time{}, fmt.Errorf("null timestamp")
	default:
		return time.Time{}, fmt.Errorf("cannot interpret %T as timestamp", v)
	}
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp %q", s)
}

// ChunkKeys splits keys into slices of at most size, so key-filter queries
// stay under backend parameter limits.
func ChunkKeys(keys [][]any, size int) [][][]any {
	if size <= 0 || len(keys) <= size {
		return [][][]any{keys}
	}
	var out [][][]any
	for start := 0; start < len(keys); start += size {
		end := start + size
		if end > len(keys) {
			end = len(keys)
		}
		out = append(out, keys[start:end])
	}
	return out
}
