// Package config defines the canonical, JSON-serializable run specification
// for the entity loader. It is intentionally small and explicit so that run
// specs can be loaded from disk and passed through the program without
// additional glue code.
//
// Example (trimmed):
//
//	{
//	  "job":      "entity_load",
//	  "source":   { "dir": "/data/entity", "pattern": "*.CSV", "encoding": "latin1" },
//	  "contract": { "name": "entity", "fields": [...], "last_update_column": "last_update_date" },
//	  "storage":  { "kind": "postgres", "db": { "dsn": "...", "table": "entity_metadata" } }
//	}
package config

import (
	"encoding/json"
	"io"
	"os"

	"github.com/Ananya0222/entity-data-processor/internal/schema"
)

// Spec is the top-level run specification decoded from a spec file.
type Spec struct {
	// Job names the run for logs and metrics labels.
	Job string `json:"job"`

	// Source describes where input CSV files come from.
	Source Source `json:"source"`

	// Parser configures how raw CSV bytes are turned into rows.
	Parser Parser `json:"parser"`

	// Contract is the declared column specification for the load.
	Contract schema.Contract `json:"contract"`

	// Storage describes the persisted store the plan is applied to.
	Storage Storage `json:"storage"`

	// Runtime controls concurrency and write batching.
	Runtime Runtime `json:"runtime"`

	// ForceUpdate bypasses the freshness comparison: every incoming record
	// with an existing counterpart is classified UPDATE.
	ForceUpdate bool `json:"force_update"`
}

// Source identifies the input directory and file selection.
type Source struct {
	// Dir is the directory scanned for input files.
	Dir string `json:"dir"`

	// Pattern is the filename glob used during the scan. Matching is
	// case-insensitive on the pattern's letters.
	Pattern string `json:"pattern"`

	// File, when set, selects a single file inside Dir and disables the scan.
	File string `json:"file,omitempty"`

	// Encoding is the declared character encoding of the CSV files.
	// Supported: "latin1" (default), "windows-1252", "utf-8".
	Encoding string `json:"encoding,omitempty"`
}

// Parser holds CSV reader settings.
type Parser struct {
	// Comma is the field delimiter as a one-character string. Default ",".
	Comma string `json:"comma,omitempty"`

	// TrimSpace trims leading/trailing spaces from every field value.
	TrimSpace bool `json:"trim_space"`
}

// Storage selects and configures the persisted store.
type Storage struct {
	// Kind selects the backend: "postgres", "sqlite", "mssql", or "mysql".
	Kind string `json:"kind"`

	DB DBConfig `json:"db"`
}

// DBConfig configures the database sink.
type DBConfig struct {
	// DSN is the backend connection string. When empty, the DATABASE_URL
	// environment variable is used.
	DSN string `json:"dsn"`

	// Table is the destination table name, optionally schema-qualified.
	Table string `json:"table"`

	// AutoCreateTable creates the destination table if absent before the
	// plan is applied.
	AutoCreateTable bool `json:"auto_create_table"`
}

// Runtime controls concurrency and batching. Zero values fall back to
// environment overrides and then to defaults (12-factor style).
type Runtime struct {
	// FileWorkers bounds how many files are normalized and deduplicated in
	// parallel. Planning and writing are always sequential.
	FileWorkers int `json:"file_workers"`

	// WriteBatchSize is the maximum number of plan entries applied per
	// transaction scope.
	WriteBatchSize int `json:"write_batch_size"`
}

// Load reads and decodes a run spec from path.
func Load(path string) (Spec, error) {
	f, err := os.Open(path)
	if err != nil {
		return Spec{}, err
	}
	defer f.Close()
	return Decode(f)
}

// Decode decodes a run spec from r.
func Decode(r io.Reader) (Spec, error) {
	var s Spec
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return Spec{}, err
	}
	return s, nil
}

// Default returns the built-in entity run spec matching the legacy loader:
// latin-1 encoded CSVs, customer_id identity key, entity_metadata table.
func Default() Spec {
	return Spec{
		Job: "entity_load",
		Source: Source{
			Pattern:  "*.CSV",
			Encoding: "latin1",
		},
		Parser: Parser{TrimSpace: true},
		Contract: schema.Contract{
			Name:             "entity",
			LastUpdateColumn: "last_update_date",
			Fields: []schema.Field{
				{Name: "customer_id", Type: "int", Key: true},
				{Name: "incorporator_name", Type: "text", Nullable: true},
				{Name: "corporation_name", Type: "text", Nullable: true},
				{Name: "customer_type", Type: "text", Nullable: true},
				{Name: "date_of_incorporation", Type: "date", Nullable: true},
				{Name: "country", Type: "text", Nullable: true},
				{Name: "state_province", Type: "text", Nullable: true},
				{Name: "registration_number", Type: "int", Nullable: true},
				{Name: "tax_identification_no", Type: "int", Nullable: true},
				{Name: "industry", Type: "text", Nullable: true},
				{Name: "unit_number", Type: "int", Nullable: true},
				{Name: "address_line1", Type: "text", Nullable: true},
				{Name: "address_line2", Type: "text", Nullable: true},
				{Name: "city", Type: "text", Nullable: true},
				{Name: "postal_zip_code", Type: "int", Nullable: true},
				{Name: "create_date", Type: "date", FillNow: true},
				{Name: "last_update_date", Type: "date"},
			},
		},
		Storage: Storage{
			Kind: "postgres",
			DB: DBConfig{
				Table:           "entity_metadata",
				AutoCreateTable: true,
			},
		},
		Runtime: Runtime{
			FileWorkers:    4,
			WriteBatchSize: 1000,
		},
	}
}
