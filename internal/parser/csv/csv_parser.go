// Package csv reads entity CSV files into raw records. It decodes the
// declared character encoding on the fly, checks the header against the
// declared column set, and soft-fails individual rows so one bad line never
// aborts a file.
package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/zeebo/xxh3"

	"github.com/Ananya0222/entity-data-processor/internal/records"
)

// Options configures the CSV parser. All fields are optional; sensible
// defaults are applied when a field is zero.
type Options struct {
	// Comma specifies the field delimiter. When zero, ',' is used.
	Comma rune

	// TrimSpace trims leading/trailing ASCII spaces from each field value.
	TrimSpace bool

	// Encoding is the declared character encoding of the input bytes.
	// See DecodeReader for accepted names; empty means latin-1.
	Encoding string

	// HeaderMap maps source header names to canonical column names before
	// the header is checked against Columns.
	HeaderMap map[string]string

	// Columns is the declared column set. Every declared column must appear
	// in the file's header; a miss is a SchemaError for the whole file.
	Columns []string
}

// SchemaError reports declared columns missing from a file's header. It is
// fatal for the file, not for the run.
type SchemaError struct {
	File    string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: header missing declared columns: %s", e.File, strings.Join(e.Missing, ", "))
}

// Stats summarizes one file's parse.
type Stats struct {
	Rows      int // rows handed downstream
	Skipped   int // rows dropped due to parse errors or width mismatch
	ExactDups int // rows byte-identical to an earlier row in the same file
}

// Parser parses CSV input according to Options. It is safe to reuse across
// inputs, but Parser itself is not concurrency-safe.
type Parser struct{ opt Options }

// NewParser constructs a Parser with the provided Options.
func NewParser(opt Options) *Parser { return &Parser{opt: opt} }

// utf8BOM is stripped from the first header cell if present.
const utf8BOM = "\uFEFF"

// logCap bounds how many per-row skip messages a single file may emit.
const logCap = 25

// Parse consumes CSV records from r and returns the parsed rows along with
// parse statistics. The header row is required. Rows that fail to parse or
// have the wrong width are skipped and counted, never fatal; a header that
// lacks declared columns fails the whole file with *SchemaError.
//
// Exact duplicates (rows whose raw fields are byte-identical to an earlier
// row) are still handed downstream; they are only counted here so the run
// summary can report them. Freshness-based deduplication happens later and
// needs normalized values.
func (p *Parser) Parse(r io.Reader, file string) ([]records.Record, Stats, error) {
	var stats Stats

	dr, err := DecodeReader(r, p.opt.Encoding)
	if err != nil {
		return nil, stats, err
	}

	cr := csv.NewReader(dr)
	if p.opt.Comma != 0 {
		cr.Comma = p.opt.Comma
	}
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1 // width enforced after read, against the header

	h, err := cr.Read()
	if err != nil {
		return nil, stats, fmt.Errorf("%s: read csv header: %w", file, err)
	}
	headers := normalizeHeaders(h, p.opt.HeaderMap)

	if missing := missingColumns(p.opt.Columns, headers); len(missing) > 0 {
		return nil, stats, &SchemaError{File: file, Missing: missing}
	}

	var out []records.Record
	seen := make(map[xxh3.Uint128]struct{})

	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			if stats.Skipped < logCap {
				log.Printf("%s: skipping row %d: %v", file, line, err)
			}
			stats.Skipped++
			continue
		}
		if len(row) != len(headers) {
			if stats.Skipped < logCap {
				log.Printf("%s: skipping row %d: expected %d fields, got %d",
					file, line, len(headers), len(row))
			}
			stats.Skipped++
			continue
		}

		if _, dup := seen[fingerprint(row)]; dup {
			stats.ExactDups++
		} else {
			seen[fingerprint(row)] = struct{}{}
		}

		rec := make(records.Record, len(row)+1)
		for i, val := range row {
			if p.opt.TrimSpace {
				val = strings.TrimSpace(val)
			}
			rec[headers[i]] = emptyToNil(val)
		}
		rec[LineKey] = line
		out = append(out, rec)
		stats.Rows++
	}

	return out, stats, nil
}

// LineKey is the pseudo-column carrying the source line number through the
// raw record for provenance. It is not part of the declared column set.
const LineKey = "__line"

// fingerprint hashes the raw fields of one row, with a separator so that
// ["ab","c"] and ["a","bc"] differ.
func fingerprint(row []string) xxh3.Uint128 {
	var b strings.Builder
	for i, f := range row {
		if i > 0 {
			b.WriteByte(0x1f)
		}
		b.WriteString(f)
	}
	return xxh3.HashString128(b.String())
}

// emptyToNil converts an empty string to nil; all other values pass through.
func emptyToNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// missingColumns returns the declared columns absent from headers.
func missingColumns(declared, headers []string) []string {
	have := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		have[h] = struct{}{}
	}
	var missing []string
	for _, c := range declared {
		if _, ok := have[c]; !ok {
			missing = append(missing, c)
		}
	}
	return missing
}

// normalizeHeaders produces canonical header keys using the header map (when
// provided) and simple normalization (lowercase, spaces to underscores). It
// also strips a UTF-8 BOM from the first cell if present.
func normalizeHeaders(h []string, headerMap map[string]string) []string {
	res := make([]string, len(h))
	for i, col := range h {
		c := strings.TrimSpace(col)
		if i == 0 {
			c = strings.TrimPrefix(c, utf8BOM)
		}
		if headerMap != nil {
			if m, ok := headerMap[c]; ok {
				res[i] = m
				continue
			}
		}
		res[i] = strings.ReplaceAll(strings.ToLower(c), " ", "_")
	}
	return res
}
