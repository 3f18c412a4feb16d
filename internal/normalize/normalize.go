// Package normalize converts raw CSV rows into canonical entity records:
// integers parsed, dates parsed against an ordered layout list, text
// upper-cased and trimmed, and the last-update timestamp guaranteed non-null.
package normalize

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Ananya0222/entity-data-processor/internal/entity"
	csvparser "github.com/Ananya0222/entity-data-processor/internal/parser/csv"
	"github.com/Ananya0222/entity-data-processor/internal/records"
	"github.com/Ananya0222/entity-data-processor/internal/schema"
)

// ValidationError rejects a single row: a missing or unparsable identity-key
// field, or a non-nullable column that failed to parse. The row is dropped
// and counted; the batch continues.
type ValidationError struct {
	File   string
	Line   int
	Column string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s:%d: column %q: %s", e.File, e.Line, e.Column, e.Reason)
}

// Normalizer applies one contract to raw rows. The zero value is not usable;
// construct with New.
type Normalizer struct {
	contract schema.Contract
	layouts  []string

	// now is the processing-timestamp source for missing/unparsable dates.
	// Injectable so tests are deterministic.
	now func() time.Time
}

// New builds a Normalizer for the contract. clock may be nil, in which case
// time.Now is used.
func New(contract schema.Contract, clock func() time.Time) *Normalizer {
	if clock == nil {
		clock = time.Now
	}
	return &Normalizer{
		contract: contract,
		layouts:  contract.Layouts(),
		now:      clock,
	}
}

// Normalize converts one raw row into an entity.Record. On rejection it
// returns a *ValidationError; no other error type is produced. The method
// performs no I/O.
func (n *Normalizer) Normalize(raw records.Record, file string) (entity.Record, error) {
	line, _ := raw[csvparser.LineKey].(int)

	rec := entity.Record{
		Attrs: make(map[string]any, len(n.contract.Fields)),
		File:  file,
		Line:  line,
	}

	for _, f := range n.contract.Fields {
		v, err := n.normalizeField(f, raw.String(f.Name), raw.Has(f.Name))
		if err != nil {
			return entity.Record{}, &ValidationError{
				File: file, Line: line, Column: f.Name, Reason: err.Error(),
			}
		}
		rec.Attrs[f.Name] = v
	}

	// Identity key: every key column must have survived with a value.
	keys := n.contract.KeyColumns()
	parts := make([]string, len(keys))
	for i, k := range keys {
		v := rec.Attrs[k]
		if v == nil {
			return entity.Record{}, &ValidationError{
				File: file, Line: line, Column: k, Reason: "identity-key value missing",
			}
		}
		parts[i] = entity.KeyString(v)
	}
	rec.Key = entity.JoinKey(parts)

	lu, ok := rec.Attrs[n.contract.LastUpdateColumn].(time.Time)
	if !ok {
		// Unreachable for a valid contract: date normalization below always
		// yields a time for the last-update column.
		return entity.Record{}, &ValidationError{
			File: file, Line: line, Column: n.contract.LastUpdateColumn,
			Reason: "last-update value missing after normalization",
		}
	}
	rec.LastUpdate = lu

	return rec, nil
}

// normalizeField converts one raw cell per the field declaration. present is
// false when the cell was empty (the parser stores nil for empty cells).
func (n *Normalizer) normalizeField(f schema.Field, raw string, present bool) (any, error) {
	switch f.Type {
	case "int":
		if !present {
			if f.Nullable {
				return nil, nil
			}
			if f.Key {
				return nil, fmt.Errorf("empty value")
			}
			return int64(0), nil
		}
		i, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			if f.Nullable {
				return nil, nil
			}
			return nil, fmt.Errorf("cannot parse %q as integer", raw)
		}
		return i, nil

	case "date":
		if present {
			s := strings.TrimSpace(raw)
			for _, layout := range n.layouts {
				if t, err := time.Parse(layout, s); err == nil {
					return t, nil
				}
			}
		}
		// Missing or unparsable: the last-update column and fill_now columns
		// take the processing timestamp; other date columns go null.
		if f.FillNow || f.Name == n.contract.LastUpdateColumn {
			return n.now(), nil
		}
		if f.Nullable {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot parse %q as date", raw)

	case "text":
		if !present {
			if f.Key {
				return nil, fmt.Errorf("empty value")
			}
			if f.EmptyIsNull {
				return nil, nil
			}
			return "", nil
		}
		return strings.ToUpper(strings.TrimSpace(raw)), nil

	default:
		return nil, fmt.Errorf("unknown column type %q", f.Type)
	}
}
